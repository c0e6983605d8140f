package coupon

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-storefront/internal/promo"
)

// ErrNotFound reports that no coupon matched the code.
var ErrNotFound = errors.New("coupon not found")

// Querier captures the database methods required by the coupon service.
type Querier interface {
	GetCouponByCode(ctx context.Context, code string) (promo.Coupon, error)
	GetCouponByCodeForUpdate(ctx context.Context, code string) (promo.Coupon, error)
	CountUsageByUser(ctx context.Context, couponID, userID uuid.UUID) (int64, error)
	UsageExistsForOrder(ctx context.Context, couponID, orderID uuid.UUID) (bool, error)
	InsertUsage(ctx context.Context, couponID, userID, orderID uuid.UUID, amount int64) error
	IncrementUsedCount(ctx context.Context, couponID uuid.UUID) error
	InsertCoupon(ctx context.Context, c promo.Coupon) (promo.Coupon, error)
	ListCoupons(ctx context.Context, limit, offset int) ([]promo.Coupon, int64, error)
}

// TxRunner executes a function inside a single database transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(Querier) error) error
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconnCommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgconnCommandTag narrows the pgconn.CommandTag surface the queries use.
type pgconnCommandTag = interface{ RowsAffected() int64 }

// Store implements Querier and TxRunner on a pgx pool.
type Store struct {
	Pool *pgxpool.Pool
}

// WithinTx runs fn with a Querier bound to one transaction. Row locks taken by
// FOR UPDATE inside fn hold until commit.
func (s *Store) WithinTx(ctx context.Context, fn func(Querier) error) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(queries{db: txAdapter{tx}}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) GetCouponByCode(ctx context.Context, code string) (promo.Coupon, error) {
	return queries{db: poolAdapter{s.Pool}}.GetCouponByCode(ctx, code)
}

func (s *Store) GetCouponByCodeForUpdate(ctx context.Context, code string) (promo.Coupon, error) {
	return queries{db: poolAdapter{s.Pool}}.GetCouponByCodeForUpdate(ctx, code)
}

func (s *Store) CountUsageByUser(ctx context.Context, couponID, userID uuid.UUID) (int64, error) {
	return queries{db: poolAdapter{s.Pool}}.CountUsageByUser(ctx, couponID, userID)
}

func (s *Store) UsageExistsForOrder(ctx context.Context, couponID, orderID uuid.UUID) (bool, error) {
	return queries{db: poolAdapter{s.Pool}}.UsageExistsForOrder(ctx, couponID, orderID)
}

func (s *Store) InsertUsage(ctx context.Context, couponID, userID, orderID uuid.UUID, amount int64) error {
	return queries{db: poolAdapter{s.Pool}}.InsertUsage(ctx, couponID, userID, orderID, amount)
}

func (s *Store) IncrementUsedCount(ctx context.Context, couponID uuid.UUID) error {
	return queries{db: poolAdapter{s.Pool}}.IncrementUsedCount(ctx, couponID)
}

func (s *Store) InsertCoupon(ctx context.Context, c promo.Coupon) (promo.Coupon, error) {
	return queries{db: poolAdapter{s.Pool}}.InsertCoupon(ctx, c)
}

func (s *Store) ListCoupons(ctx context.Context, limit, offset int) ([]promo.Coupon, int64, error) {
	return queries{db: poolAdapter{s.Pool}}.ListCoupons(ctx, limit, offset)
}

// poolAdapter and txAdapter unify pgxpool.Pool and pgx.Tx behind dbtx.
type poolAdapter struct{ pool *pgxpool.Pool }

func (a poolAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconnCommandTag, error) {
	return a.pool.Exec(ctx, sql, args...)
}
func (a poolAdapter) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return a.pool.Query(ctx, sql, args...)
}
func (a poolAdapter) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return a.pool.QueryRow(ctx, sql, args...)
}

type txAdapter struct{ tx pgx.Tx }

func (a txAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconnCommandTag, error) {
	return a.tx.Exec(ctx, sql, args...)
}
func (a txAdapter) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return a.tx.Query(ctx, sql, args...)
}
func (a txAdapter) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return a.tx.QueryRow(ctx, sql, args...)
}

// queries holds the raw SQL shared by pool- and tx-backed access.
type queries struct{ db dbtx }

const couponColumns = "id, code, kind, percent, amount, max_usage_per_user, max_total_uses, used_count"

func scanCoupon(row pgx.Row) (promo.Coupon, error) {
	var c promo.Coupon
	err := row.Scan(&c.ID, &c.Code, &c.Kind, &c.Percent, &c.Amount, &c.MaxUsagePerUser, &c.MaxTotalUses, &c.UsedCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return promo.Coupon{}, ErrNotFound
	}
	return c, err
}

func (q queries) GetCouponByCode(ctx context.Context, code string) (promo.Coupon, error) {
	return scanCoupon(q.db.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code))
}

func (q queries) GetCouponByCodeForUpdate(ctx context.Context, code string) (promo.Coupon, error) {
	return scanCoupon(q.db.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1 FOR UPDATE`, code))
}

func (q queries) CountUsageByUser(ctx context.Context, couponID, userID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM coupon_usage WHERE coupon_id = $1 AND user_id = $2`, couponID, userID).Scan(&count)
	return count, err
}

func (q queries) UsageExistsForOrder(ctx context.Context, couponID, orderID uuid.UUID) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM coupon_usage WHERE coupon_id = $1 AND order_id = $2)`, couponID, orderID).Scan(&exists)
	return exists, err
}

func (q queries) InsertUsage(ctx context.Context, couponID, userID, orderID uuid.UUID, amount int64) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO coupon_usage (coupon_id, user_id, order_id, amount)
		VALUES ($1, $2, $3, $4)`, couponID, userID, orderID, amount)
	return err
}

func (q queries) IncrementUsedCount(ctx context.Context, couponID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE coupons SET used_count = used_count + 1 WHERE id = $1`, couponID)
	return err
}

func (q queries) InsertCoupon(ctx context.Context, c promo.Coupon) (promo.Coupon, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO coupons (code, kind, percent, amount, max_usage_per_user, max_total_uses)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+couponColumns,
		c.Code, c.Kind, c.Percent, c.Amount, c.MaxUsagePerUser, c.MaxTotalUses)
	return scanCoupon(row)
}

func (q queries) ListCoupons(ctx context.Context, limit, offset int) ([]promo.Coupon, int64, error) {
	var total int64
	if err := q.db.QueryRow(ctx, `SELECT count(*) FROM coupons`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.db.Query(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]promo.Coupon, 0, limit)
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}
