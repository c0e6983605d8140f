package coupon

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-storefront/internal/obs"
	"github.com/noah-isme/backend-storefront/internal/promo"
)

var (
	// ErrUsageLimitReached means the coupon's global redemption cap is exhausted.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrPerUserLimitReached means this user already redeemed the coupon the maximum number of times.
	ErrPerUserLimitReached = errors.New("coupon per-user limit reached")
)

// CouponStore combines query and transaction capabilities.
type CouponStore interface {
	Querier
	TxRunner
}

// Service evaluates coupon eligibility and settles redemptions.
type Service struct {
	Store               CouponStore
	Log                 zerolog.Logger
	Now                 func() time.Time
	DefaultPerUserLimit int
}

// Validate loads a coupon and checks its caps without mutating state. It is
// advisory: the quote path uses it so shoppers see cap problems before
// checkout, and Redeem rechecks under a row lock.
func (s *Service) Validate(ctx context.Context, code string, userID *uuid.UUID) (*promo.Coupon, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("coupon service not configured")
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, ErrNotFound
	}
	c, err := s.Store.GetCouponByCode(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	if c.MaxTotalUses > 0 && c.UsedCount >= c.MaxTotalUses {
		return nil, ErrUsageLimitReached
	}
	if limit := s.perUserLimit(c); limit > 0 && userID != nil {
		used, err := s.Store.CountUsageByUser(ctx, c.ID, *userID)
		if err != nil {
			return nil, err
		}
		if used >= int64(limit) {
			return nil, ErrPerUserLimitReached
		}
	}
	return &c, nil
}

// Redeem settles a coupon against a placed order. The whole check-and-record
// sequence runs in one transaction with the coupon row locked, so concurrent
// checkouts cannot overrun the caps. Redeeming the same order twice is a no-op.
func (s *Service) Redeem(ctx context.Context, code string, userID, orderID uuid.UUID, amount int64) error {
	if s == nil || s.Store == nil {
		return errors.New("coupon service not configured")
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" || orderID == uuid.Nil {
		return nil
	}
	if amount < 0 {
		amount = 0
	}
	err := s.Store.WithinTx(ctx, func(q Querier) error {
		c, err := q.GetCouponByCodeForUpdate(ctx, trimmed)
		if err != nil {
			return err
		}
		exists, err := q.UsageExistsForOrder(ctx, c.ID, orderID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		if c.MaxTotalUses > 0 && c.UsedCount >= c.MaxTotalUses {
			return ErrUsageLimitReached
		}
		if limit := s.perUserLimit(c); limit > 0 {
			used, err := q.CountUsageByUser(ctx, c.ID, userID)
			if err != nil {
				return err
			}
			if used >= int64(limit) {
				return ErrPerUserLimitReached
			}
		}
		if err := q.InsertUsage(ctx, c.ID, userID, orderID, amount); err != nil {
			return err
		}
		return q.IncrementUsedCount(ctx, c.ID)
	})
	s.observeRedemption(err)
	if err != nil {
		s.Log.Warn().Err(err).Str("code", trimmed).Str("order_id", orderID.String()).Msg("coupon redemption failed")
	}
	return err
}

func (s *Service) perUserLimit(c promo.Coupon) int {
	if c.MaxUsagePerUser > 0 {
		return c.MaxUsagePerUser
	}
	return s.DefaultPerUserLimit
}

func (s *Service) observeRedemption(err error) {
	if obs.CouponRedemptionsTotal == nil {
		return
	}
	result := "ok"
	switch {
	case errors.Is(err, ErrUsageLimitReached), errors.Is(err, ErrPerUserLimitReached):
		result = "limit"
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	obs.CouponRedemptionsTotal.WithLabelValues(result).Inc()
}
