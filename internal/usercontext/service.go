// Package usercontext assembles the read-only purchase-history snapshot the
// discount resolver consumes.
package usercontext

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-storefront/internal/promo"
)

// Service loads user purchase history from Postgres.
type Service struct {
	Pool *pgxpool.Pool
}

// Snapshot returns the resolver-facing view of a user's history. Canceled
// orders do not count toward first-purchase eligibility.
func (s *Service) Snapshot(ctx context.Context, userID uuid.UUID) (*promo.UserContext, error) {
	if s == nil || s.Pool == nil {
		return nil, errors.New("usercontext service not configured")
	}
	var orderCount int
	err := s.Pool.QueryRow(ctx, `
		SELECT count(*) FROM orders
		WHERE user_id = $1 AND status <> 'CANCELED'`, userID).Scan(&orderCount)
	if err != nil {
		return nil, err
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT c.code, count(*)
		FROM coupon_usage u
		JOIN coupons c ON c.id = u.coupon_id
		WHERE u.user_id = $1
		GROUP BY c.code`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	usage := map[string]int{}
	for rows.Next() {
		var (
			code  string
			count int
		)
		if err := rows.Scan(&code, &count); err != nil {
			return nil, err
		}
		usage[code] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &promo.UserContext{PriorOrderCount: orderCount, CouponUsage: usage}, nil
}

// Anonymous returns the snapshot used when no identity accompanies the
// request. A shopper we know nothing about is treated as a first-time buyer
// for quoting, but checkout requires identity so first-purchase pricing is
// re-verified there.
func Anonymous() *promo.UserContext {
	return &promo.UserContext{PriorOrderCount: 0}
}
