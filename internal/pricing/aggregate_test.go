package pricing_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-storefront/internal/pricing"
	"github.com/noah-isme/backend-storefront/internal/promo"
)

func frozen() time.Time { return time.Unix(1_700_000_000, 0) }

func TestAggregateComputesSubtotalBeforeResolving(t *testing.T) {
	t.Parallel()

	cheap := promo.Line{ProductID: uuid.New(), Name: "socks", UnitPrice: 500, Quantity: 1}
	bulky := promo.Line{ProductID: uuid.New(), Name: "coat", UnitPrice: 14500, Quantity: 1}

	// Spend-more only unlocks because the whole-cart subtotal (150.00) crosses
	// the threshold; neither line does so alone.
	r := promo.Resolver{Now: frozen, Spend: promo.SpendReward{Threshold: 10000, Reward: 1500}}
	totals, err := pricing.Aggregate(r, []promo.Line{cheap, bulky}, nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(15000), totals.Subtotal)
	require.Equal(t, promo.SourceSpendMore, totals.Lines[0].Source)
	require.Equal(t, pricing.Money(0), totals.Lines[0].Price)
}

func TestAggregateSharesOneCoupon(t *testing.T) {
	t.Parallel()

	lines := []promo.Line{
		{ProductID: uuid.New(), Name: "a", UnitPrice: 1000, Quantity: 1},
		{ProductID: uuid.New(), Name: "b", UnitPrice: 2000, Quantity: 1},
	}
	coupon := &promo.Coupon{Code: "SAVE10", Kind: promo.CouponPercent, Percent: 10}

	totals, err := pricing.Aggregate(promo.Resolver{Now: frozen}, lines, nil, nil, coupon)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(3000), totals.Subtotal)
	require.Equal(t, pricing.Money(300), totals.Discount)
	for _, line := range totals.Lines {
		require.Equal(t, promo.SourceCoupon, line.Source)
		require.Equal(t, coupon.Code, line.Coupon.Code)
	}
}

func TestAggregateTotalsAreConsistent(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	c := promo.Campaign{
		ID: uuid.New(), Title: "bulk", Scope: promo.ScopeItem, Kind: promo.KindQuantityDiscount,
		ProductIDs: []uuid.UUID{productID}, Active: true,
		Quantity: &promo.QuantityDiscount{MinQuantity: 2, DiscountPercent: 20},
	}
	lines := []promo.Line{
		{ProductID: productID, Name: "mug", UnitPrice: 1250, Quantity: 3},
		{ProductID: uuid.New(), Name: "pen", UnitPrice: 199, Quantity: 2},
	}

	totals, err := pricing.Aggregate(promo.Resolver{Now: frozen}, lines, []promo.Campaign{c}, nil, nil)
	require.NoError(t, err)

	var sum pricing.Money
	for _, line := range totals.Lines {
		require.GreaterOrEqual(t, line.Price, pricing.Money(0))
		require.LessOrEqual(t, line.Price, line.OriginalPrice)
		sum += line.Price
	}
	require.Equal(t, totals.Subtotal-totals.Discount, sum)
}

func TestAggregateRejectsInvalidLines(t *testing.T) {
	t.Parallel()

	_, err := pricing.Aggregate(promo.Resolver{Now: frozen}, []promo.Line{{ProductID: uuid.New(), UnitPrice: -1, Quantity: 1}}, nil, nil, nil)
	require.ErrorIs(t, err, pricing.ErrInvalidLine)

	_, err = pricing.Aggregate(promo.Resolver{Now: frozen}, []promo.Line{{ProductID: uuid.New(), UnitPrice: 100, Quantity: 0}}, nil, nil, nil)
	require.ErrorIs(t, err, pricing.ErrInvalidLine)
}

func TestUndiscountedFallback(t *testing.T) {
	t.Parallel()

	lines := []promo.Line{
		{ProductID: uuid.New(), Name: "a", UnitPrice: 1000, Quantity: 2},
		{ProductID: uuid.New(), Name: "b", UnitPrice: 500, Quantity: 1},
	}
	totals := pricing.Undiscounted(lines)
	require.Equal(t, pricing.Money(2500), totals.Subtotal)
	require.Equal(t, pricing.Money(0), totals.Discount)
	for _, line := range totals.Lines {
		require.Equal(t, line.OriginalPrice, line.Price)
		require.False(t, line.HasDiscount)
	}
}
