package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-storefront/internal/promo"
)

var (
	// ErrNotFound reports that no cart matched the identifier.
	ErrNotFound = errors.New("cart not found")
	// ErrItemNotFound reports that the variant is not in the cart.
	ErrItemNotFound = errors.New("cart item not found")
)

// Cart is the persisted shopping cart. Items carry a price snapshot taken when
// they were added; quotes reprice discounts but not the unit price.
type Cart struct {
	ID         uuid.UUID    `json:"id"`
	UserID     *uuid.UUID   `json:"userId,omitempty"`
	CouponCode *string      `json:"couponCode,omitempty"`
	Items      []promo.Line `json:"items"`
}

// Store persists carts and their items in Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// CreateCart inserts an empty cart, optionally owned by a user.
func (s *Store) CreateCart(ctx context.Context, userID *uuid.UUID) (Cart, error) {
	var c Cart
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO carts (user_id) VALUES ($1)
		RETURNING id, user_id, coupon_code`, userID).
		Scan(&c.ID, &c.UserID, &c.CouponCode)
	if err != nil {
		return Cart{}, err
	}
	c.Items = []promo.Line{}
	return c, nil
}

// GetCart loads a cart with its items in insertion order.
func (s *Store) GetCart(ctx context.Context, cartID uuid.UUID) (Cart, error) {
	var c Cart
	err := s.Pool.QueryRow(ctx, `
		SELECT id, user_id, coupon_code FROM carts WHERE id = $1`, cartID).
		Scan(&c.ID, &c.UserID, &c.CouponCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cart{}, ErrNotFound
	}
	if err != nil {
		return Cart{}, err
	}

	rows, err := s.Pool.Query(ctx, `
		SELECT product_id, name, unit_price, quantity, size, color
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY created_at, product_id`, cartID)
	if err != nil {
		return Cart{}, err
	}
	defer rows.Close()

	c.Items = []promo.Line{}
	for rows.Next() {
		var line promo.Line
		if err := rows.Scan(&line.ProductID, &line.Name, &line.UnitPrice, &line.Quantity, &line.Size, &line.Color); err != nil {
			return Cart{}, err
		}
		c.Items = append(c.Items, line)
	}
	return c, rows.Err()
}

// UpsertItem adds a line to the cart; adding the same variant again increments
// its quantity and refreshes the price snapshot.
func (s *Store) UpsertItem(ctx context.Context, cartID uuid.UUID, line promo.Line) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO cart_items (cart_id, product_id, name, unit_price, quantity, size, color)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cart_id, product_id, size, color)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity,
		              unit_price = EXCLUDED.unit_price,
		              name = EXCLUDED.name`,
		cartID, line.ProductID, line.Name, line.UnitPrice, line.Quantity, line.Size, line.Color)
	if err != nil {
		return err
	}
	return s.touch(ctx, cartID)
}

// SetItemQuantity updates a variant's quantity; zero or negative removes it.
func (s *Store) SetItemQuantity(ctx context.Context, cartID, productID uuid.UUID, size, color string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, cartID, productID, size, color)
	}
	tag, err := s.Pool.Exec(ctx, `
		UPDATE cart_items SET quantity = $5
		WHERE cart_id = $1 AND product_id = $2 AND size = $3 AND color = $4`,
		cartID, productID, size, color, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return s.touch(ctx, cartID)
}

// RemoveItem deletes a variant from the cart.
func (s *Store) RemoveItem(ctx context.Context, cartID, productID uuid.UUID, size, color string) error {
	tag, err := s.Pool.Exec(ctx, `
		DELETE FROM cart_items
		WHERE cart_id = $1 AND product_id = $2 AND size = $3 AND color = $4`,
		cartID, productID, size, color)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return s.touch(ctx, cartID)
}

// SetCoupon attaches or clears the cart's coupon code.
func (s *Store) SetCoupon(ctx context.Context, cartID uuid.UUID, code *string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE carts SET coupon_code = $2, updated_at = now() WHERE id = $1`, cartID, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearCart removes all items and the coupon after a successful checkout.
func (s *Store) ClearCart(ctx context.Context, cartID uuid.UUID) error {
	if _, err := s.Pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return err
	}
	_, err := s.Pool.Exec(ctx, `UPDATE carts SET coupon_code = NULL, updated_at = now() WHERE id = $1`, cartID)
	return err
}

func (s *Store) touch(ctx context.Context, cartID uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID)
	return err
}
