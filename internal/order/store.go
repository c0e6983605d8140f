package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound means the order does not exist or belongs to someone else.
	ErrNotFound = errors.New("order not found")
	// ErrNotCancelable means the order already left the PLACED state.
	ErrNotCancelable = errors.New("order cannot be canceled")
)

// Order is the immutable pricing snapshot written at checkout.
type Order struct {
	ID             uuid.UUID `json:"id"`
	Status         string    `json:"status"`
	CouponCode     *string   `json:"couponCode,omitempty"`
	Region         string    `json:"region"`
	DeliveryMethod string    `json:"deliveryMethod"`
	Subtotal       int64     `json:"subtotal"`
	Discount       int64     `json:"totalDiscount"`
	Shipping       int64     `json:"shippingCost"`
	Tax            int64     `json:"taxAmount"`
	Total          int64     `json:"grandTotal"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Item is one priced order line.
type Item struct {
	ProductID      uuid.UUID `json:"productId"`
	Name           string    `json:"name"`
	UnitPrice      int64     `json:"unitPrice"`
	Quantity       int       `json:"quantity"`
	Size           string    `json:"size,omitempty"`
	Color          string    `json:"color,omitempty"`
	OriginalPrice  int64     `json:"originalPrice"`
	FinalPrice     int64     `json:"finalPrice"`
	DiscountSource string    `json:"discountSource,omitempty"`
}

// Store reads and cancels orders. Writes happen in checkout only.
type Store struct {
	Pool *pgxpool.Pool
}

const orderColumns = `id, status, coupon_code, region, delivery_method,
	subtotal, discount_total, shipping_cost, tax_amount, grand_total, created_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Status, &o.CouponCode, &o.Region, &o.DeliveryMethod,
		&o.Subtotal, &o.Discount, &o.Shipping, &o.Tax, &o.Total, &o.CreatedAt)
	return o, err
}

// ListByUser returns a page of the user's orders, newest first, with the total count.
func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Order, int64, error) {
	var total int64
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders := make([]Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

// GetForUser loads one order with its lines, scoped to the owner.
func (s *Store) GetForUser(ctx context.Context, orderID, userID uuid.UUID) (Order, []Item, error) {
	o, err := scanOrder(s.Pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE id = $1 AND user_id = $2`, orderID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, nil, ErrNotFound
	}
	if err != nil {
		return Order{}, nil, err
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT product_id, name, unit_price, quantity, size, color,
		       original_price, final_price, discount_source
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id`, orderID)
	if err != nil {
		return Order{}, nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Name, &it.UnitPrice, &it.Quantity, &it.Size, &it.Color,
			&it.OriginalPrice, &it.FinalPrice, &it.DiscountSource); err != nil {
			return Order{}, nil, err
		}
		items = append(items, it)
	}
	return o, items, rows.Err()
}

// Cancel flips a PLACED order to CANCELED. Canceled orders stop counting
// toward first-purchase eligibility, so the transition is owner-scoped and
// guarded against double application.
func (s *Store) Cancel(ctx context.Context, orderID, userID uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE orders SET status = 'CANCELED'
		WHERE id = $1 AND user_id = $2 AND status = 'PLACED'`, orderID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, _, err := s.GetForUser(ctx, orderID, userID); err != nil {
			return err
		}
		return ErrNotCancelable
	}
	return nil
}
