package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-storefront/internal/cart"
	"github.com/noah-isme/backend-storefront/internal/coupon"
	"github.com/noah-isme/backend-storefront/internal/obs"
)

var (
	// ErrEmptyCart rejects checkout of a cart with no items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCartOwnership rejects checkout of someone else's cart.
	ErrCartOwnership = errors.New("cart does not belong to user")
)

// Input is the checkout request.
type Input struct {
	CartID         uuid.UUID
	Region         string
	DeliveryMethod string
}

// Output identifies the placed order and echoes the priced snapshot.
type Output struct {
	OrderID uuid.UUID  `json:"orderId"`
	Status  string     `json:"status"`
	Quote   cart.Quote `json:"quote"`
}

type cartProvider interface {
	Get(ctx context.Context, cartID uuid.UUID) (cart.Cart, error)
	BuildQuote(ctx context.Context, cartID uuid.UUID, region, deliveryMethod string) (cart.Quote, error)
}

type cartCleaner interface {
	ClearCart(ctx context.Context, cartID uuid.UUID) error
}

type couponRedeemer interface {
	Redeem(ctx context.Context, code string, userID, orderID uuid.UUID, amount int64) error
}

// Service turns a priced cart into an order. The order snapshot is written in
// one transaction; coupon settlement runs after commit and is idempotent per
// order, so a crash between the two is repaired by retrying the redemption.
type Service struct {
	Pool    *pgxpool.Pool
	Carts   cartProvider
	Cleaner cartCleaner
	Coupons couponRedeemer
	Log     zerolog.Logger
}

// Create places an order for the user's cart.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in Input) (Output, error) {
	if s == nil || s.Carts == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	c, err := s.Carts.Get(ctx, in.CartID)
	if err != nil {
		return Output{}, err
	}
	if c.UserID != nil && *c.UserID != userID {
		return Output{}, ErrCartOwnership
	}
	if len(c.Items) == 0 {
		return Output{}, ErrEmptyCart
	}

	quote, err := s.Carts.BuildQuote(ctx, in.CartID, in.Region, in.DeliveryMethod)
	if err != nil {
		s.observe("quote_failed")
		return Output{}, err
	}
	// A coupon that no longer validates must not ride along into the order.
	if quote.CouponError != "" {
		quote.CouponCode = ""
	}

	orderID, err := s.writeOrder(ctx, userID, in, quote)
	if err != nil {
		s.observe("error")
		return Output{}, err
	}

	if quote.CouponCode != "" && s.Coupons != nil {
		if err := s.Coupons.Redeem(ctx, quote.CouponCode, userID, orderID, quote.Summary.Discount); err != nil {
			// The order stands; settlement is retried by the next redemption
			// attempt for this order id.
			s.Log.Error().Err(err).
				Str("order_id", orderID.String()).
				Str("code", quote.CouponCode).
				Msg("coupon settlement failed after order commit")
		}
	}
	if s.Cleaner != nil {
		if err := s.Cleaner.ClearCart(ctx, in.CartID); err != nil {
			s.Log.Warn().Err(err).Str("cart_id", in.CartID.String()).Msg("clearing cart after checkout failed")
		}
	}

	s.observe("ok")
	s.Log.Info().
		Str("order_id", orderID.String()).
		Str("user_id", userID.String()).
		Int64("grand_total", quote.Summary.Total).
		Msg("order placed")
	return Output{OrderID: orderID, Status: "PLACED", Quote: quote}, nil
}

// writeOrder snapshots the quote into orders and order_items atomically.
func (s *Service) writeOrder(ctx context.Context, userID uuid.UUID, in Input, quote cart.Quote) (uuid.UUID, error) {
	if s.Pool == nil {
		return uuid.Nil, errors.New("checkout service not configured")
	}
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var couponCode *string
	if quote.CouponCode != "" {
		couponCode = &quote.CouponCode
	}
	var orderID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, cart_id, status, coupon_code, region, delivery_method,
		                    subtotal, discount_total, shipping_cost, tax_amount, grand_total)
		VALUES ($1, $2, 'PLACED', $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		userID, in.CartID, couponCode, in.Region, in.DeliveryMethod,
		quote.Summary.Subtotal, quote.Summary.Discount, quote.Summary.Shipping,
		quote.Summary.Tax, quote.Summary.Total).Scan(&orderID)
	if err != nil {
		return uuid.Nil, err
	}

	for _, line := range quote.Lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, name, unit_price, quantity, size, color,
			                         original_price, final_price, discount_source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			orderID, line.ProductID, line.Name, line.UnitPrice, line.Quantity, line.Size, line.Color,
			line.OriginalPrice, line.Price, string(line.Source))
		if err != nil {
			return uuid.Nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}
	return orderID, nil
}

func (s *Service) observe(result string) {
	if obs.CheckoutsTotal != nil {
		obs.CheckoutsTotal.WithLabelValues(result).Inc()
	}
}

// couponRedeemer is satisfied by *coupon.Service.
var _ couponRedeemer = (*coupon.Service)(nil)
