package coupon_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-storefront/internal/coupon"
	"github.com/noah-isme/backend-storefront/internal/promo"
)

// mockStore keeps coupon and usage state in memory; WithinTx simply runs the
// callback against the same state.
type mockStore struct {
	coupons map[string]promo.Coupon
	usage   []usageRow
	txCalls int
}

type usageRow struct {
	couponID uuid.UUID
	userID   uuid.UUID
	orderID  uuid.UUID
	amount   int64
}

func newMockStore(coupons ...promo.Coupon) *mockStore {
	m := &mockStore{coupons: map[string]promo.Coupon{}}
	for _, c := range coupons {
		m.coupons[c.Code] = c
	}
	return m
}

func (m *mockStore) WithinTx(ctx context.Context, fn func(coupon.Querier) error) error {
	m.txCalls++
	return fn(m)
}

func (m *mockStore) GetCouponByCode(_ context.Context, code string) (promo.Coupon, error) {
	c, ok := m.coupons[code]
	if !ok {
		return promo.Coupon{}, coupon.ErrNotFound
	}
	return c, nil
}

func (m *mockStore) GetCouponByCodeForUpdate(ctx context.Context, code string) (promo.Coupon, error) {
	return m.GetCouponByCode(ctx, code)
}

func (m *mockStore) CountUsageByUser(_ context.Context, couponID, userID uuid.UUID) (int64, error) {
	var count int64
	for _, u := range m.usage {
		if u.couponID == couponID && u.userID == userID {
			count++
		}
	}
	return count, nil
}

func (m *mockStore) UsageExistsForOrder(_ context.Context, couponID, orderID uuid.UUID) (bool, error) {
	for _, u := range m.usage {
		if u.couponID == couponID && u.orderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) InsertUsage(_ context.Context, couponID, userID, orderID uuid.UUID, amount int64) error {
	m.usage = append(m.usage, usageRow{couponID: couponID, userID: userID, orderID: orderID, amount: amount})
	return nil
}

func (m *mockStore) IncrementUsedCount(_ context.Context, couponID uuid.UUID) error {
	for code, c := range m.coupons {
		if c.ID == couponID {
			c.UsedCount++
			m.coupons[code] = c
		}
	}
	return nil
}

func (m *mockStore) InsertCoupon(_ context.Context, c promo.Coupon) (promo.Coupon, error) {
	c.ID = uuid.New()
	m.coupons[c.Code] = c
	return c, nil
}

func (m *mockStore) ListCoupons(_ context.Context, _, _ int) ([]promo.Coupon, int64, error) {
	out := make([]promo.Coupon, 0, len(m.coupons))
	for _, c := range m.coupons {
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

func newService(store *mockStore) *coupon.Service {
	return &coupon.Service{Store: store, Log: zerolog.Nop(), DefaultPerUserLimit: 1}
}

func TestValidateUnknownCode(t *testing.T) {
	t.Parallel()

	svc := newService(newMockStore())
	_, err := svc.Validate(context.Background(), "NOPE", nil)
	require.ErrorIs(t, err, coupon.ErrNotFound)
}

func TestValidateTotalCap(t *testing.T) {
	t.Parallel()

	c := promo.Coupon{ID: uuid.New(), Code: "SAVE10", Kind: promo.CouponPercent, Percent: 10, MaxTotalUses: 5, UsedCount: 5}
	svc := newService(newMockStore(c))
	_, err := svc.Validate(context.Background(), "SAVE10", nil)
	require.ErrorIs(t, err, coupon.ErrUsageLimitReached)
}

func TestValidatePerUserCapUsesDefault(t *testing.T) {
	t.Parallel()

	c := promo.Coupon{ID: uuid.New(), Code: "ONCE", Kind: promo.CouponFixed, Amount: 500}
	store := newMockStore(c)
	userID := uuid.New()
	store.usage = append(store.usage, usageRow{couponID: c.ID, userID: userID, orderID: uuid.New()})

	svc := newService(store)
	_, err := svc.Validate(context.Background(), "ONCE", &userID)
	require.ErrorIs(t, err, coupon.ErrPerUserLimitReached)

	other := uuid.New()
	got, err := svc.Validate(context.Background(), "ONCE", &other)
	require.NoError(t, err)
	require.Equal(t, "ONCE", got.Code)
}

func TestRedeemRecordsUsageOnce(t *testing.T) {
	t.Parallel()

	c := promo.Coupon{ID: uuid.New(), Code: "SAVE10", Kind: promo.CouponPercent, Percent: 10, MaxTotalUses: 10}
	store := newMockStore(c)
	svc := newService(store)

	userID := uuid.New()
	orderID := uuid.New()
	require.NoError(t, svc.Redeem(context.Background(), "SAVE10", userID, orderID, 300))
	require.Len(t, store.usage, 1)
	require.Equal(t, 1, store.coupons["SAVE10"].UsedCount)

	// Replaying the same order is a no-op.
	require.NoError(t, svc.Redeem(context.Background(), "SAVE10", userID, orderID, 300))
	require.Len(t, store.usage, 1)
	require.Equal(t, 1, store.coupons["SAVE10"].UsedCount)
}

func TestRedeemEnforcesCapsUnderTx(t *testing.T) {
	t.Parallel()

	c := promo.Coupon{ID: uuid.New(), Code: "LAST", Kind: promo.CouponFixed, Amount: 1000, MaxTotalUses: 1}
	store := newMockStore(c)
	svc := newService(store)

	require.NoError(t, svc.Redeem(context.Background(), "LAST", uuid.New(), uuid.New(), 1000))
	err := svc.Redeem(context.Background(), "LAST", uuid.New(), uuid.New(), 1000)
	require.ErrorIs(t, err, coupon.ErrUsageLimitReached)
	require.Len(t, store.usage, 1)
	require.Equal(t, 2, store.txCalls)
}

func TestRedeemBlankCodeIsNoop(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := newService(store)
	require.NoError(t, svc.Redeem(context.Background(), "  ", uuid.New(), uuid.New(), 100))
	require.Zero(t, store.txCalls)
}
