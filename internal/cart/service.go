package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-storefront/internal/coupon"
	"github.com/noah-isme/backend-storefront/internal/obs"
	"github.com/noah-isme/backend-storefront/internal/pricing"
	"github.com/noah-isme/backend-storefront/internal/promo"
	"github.com/noah-isme/backend-storefront/internal/usercontext"
)

// ErrInvalidCoupon wraps the coupon validation failures surfaced at apply time.
var ErrInvalidCoupon = errors.New("invalid coupon")

type cartStore interface {
	CreateCart(ctx context.Context, userID *uuid.UUID) (Cart, error)
	GetCart(ctx context.Context, cartID uuid.UUID) (Cart, error)
	UpsertItem(ctx context.Context, cartID uuid.UUID, line promo.Line) error
	SetItemQuantity(ctx context.Context, cartID, productID uuid.UUID, size, color string, quantity int) error
	RemoveItem(ctx context.Context, cartID, productID uuid.UUID, size, color string) error
	SetCoupon(ctx context.Context, cartID uuid.UUID, code *string) error
	ClearCart(ctx context.Context, cartID uuid.UUID) error
}

type campaignProvider interface {
	ListActive(ctx context.Context) ([]promo.Campaign, error)
}

type couponValidator interface {
	Validate(ctx context.Context, code string, userID *uuid.UUID) (*promo.Coupon, error)
}

type historyProvider interface {
	Snapshot(ctx context.Context, userID uuid.UUID) (*promo.UserContext, error)
}

// Service owns cart mutation and quoting. Quoting is read-only: it recomputes
// prices from current campaigns on every call and persists nothing.
type Service struct {
	Store     cartStore
	Campaigns campaignProvider
	Coupons   couponValidator
	History   historyProvider
	Log       zerolog.Logger

	Now            func() time.Time
	Spend          promo.SpendReward
	SortByPriority bool
	Compose        pricing.ComposeConfig
}

// QuoteLine pairs a cart item with its pricing verdict.
type QuoteLine struct {
	promo.Line
	promo.PricedLine
}

// Quote is the full priced view of a cart.
type Quote struct {
	CartID      uuid.UUID       `json:"cartId"`
	Lines       []QuoteLine     `json:"lines"`
	Summary     pricing.Summary `json:"summary"`
	CouponCode  string          `json:"couponCode,omitempty"`
	CouponError string          `json:"couponError,omitempty"`
}

// Create opens a new cart, owned by the requesting user when one is present.
func (s *Service) Create(ctx context.Context, userID *uuid.UUID) (Cart, error) {
	return s.Store.CreateCart(ctx, userID)
}

// Get loads a cart.
func (s *Service) Get(ctx context.Context, cartID uuid.UUID) (Cart, error) {
	return s.Store.GetCart(ctx, cartID)
}

// AddItem adds a variant to the cart, merging with an existing line for the
// same product, size and color.
func (s *Service) AddItem(ctx context.Context, cartID uuid.UUID, line promo.Line) (Cart, error) {
	if line.UnitPrice < 0 || line.Quantity <= 0 {
		return Cart{}, pricing.ErrInvalidLine
	}
	if _, err := s.Store.GetCart(ctx, cartID); err != nil {
		return Cart{}, err
	}
	if err := s.Store.UpsertItem(ctx, cartID, line); err != nil {
		return Cart{}, err
	}
	return s.Store.GetCart(ctx, cartID)
}

// SetQuantity updates a line's quantity; zero removes the line.
func (s *Service) SetQuantity(ctx context.Context, cartID, productID uuid.UUID, size, color string, quantity int) (Cart, error) {
	if err := s.Store.SetItemQuantity(ctx, cartID, productID, size, color, quantity); err != nil {
		return Cart{}, err
	}
	return s.Store.GetCart(ctx, cartID)
}

// RemoveItem deletes a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, cartID, productID uuid.UUID, size, color string) (Cart, error) {
	if err := s.Store.RemoveItem(ctx, cartID, productID, size, color); err != nil {
		return Cart{}, err
	}
	return s.Store.GetCart(ctx, cartID)
}

// ApplyCoupon validates a code against the caller's usage history and attaches
// it to the cart. Validation failures reject the apply outright.
func (s *Service) ApplyCoupon(ctx context.Context, cartID uuid.UUID, code string, userID *uuid.UUID) (Cart, error) {
	c, err := s.Coupons.Validate(ctx, code, userID)
	if err != nil {
		return Cart{}, errors.Join(ErrInvalidCoupon, err)
	}
	if err := s.Store.SetCoupon(ctx, cartID, &c.Code); err != nil {
		return Cart{}, err
	}
	return s.Store.GetCart(ctx, cartID)
}

// RemoveCoupon clears the cart's coupon.
func (s *Service) RemoveCoupon(ctx context.Context, cartID uuid.UUID) (Cart, error) {
	if err := s.Store.SetCoupon(ctx, cartID, nil); err != nil {
		return Cart{}, err
	}
	return s.Store.GetCart(ctx, cartID)
}

// BuildQuote prices a cart against current campaigns, the attached coupon and
// the caller's history, then composes the order summary.
//
// Resolution failures degrade rather than break the cart: campaigns that
// cannot be loaded or priced produce an undiscounted quote and a log entry. An
// unknown delivery method is a hard error.
func (s *Service) BuildQuote(ctx context.Context, cartID uuid.UUID, region, deliveryMethod string) (Quote, error) {
	start := time.Now()
	c, err := s.Store.GetCart(ctx, cartID)
	if err != nil {
		return Quote{}, err
	}

	campaigns, err := s.Campaigns.ListActive(ctx)
	if err != nil {
		s.Log.Error().Err(err).Str("cart_id", cartID.String()).Msg("loading campaigns failed, quoting undiscounted")
		campaigns = nil
	}

	user := usercontext.Anonymous()
	if c.UserID != nil && s.History != nil {
		snapshot, err := s.History.Snapshot(ctx, *c.UserID)
		if err != nil {
			s.Log.Error().Err(err).Str("cart_id", cartID.String()).Msg("loading user history failed, quoting undiscounted")
		} else {
			user = snapshot
		}
	}

	quote := Quote{CartID: c.ID}
	var appliedCoupon *promo.Coupon
	if c.CouponCode != nil {
		quote.CouponCode = *c.CouponCode
		validated, err := s.Coupons.Validate(ctx, *c.CouponCode, c.UserID)
		switch {
		case err == nil:
			appliedCoupon = validated
		case errors.Is(err, coupon.ErrNotFound),
			errors.Is(err, coupon.ErrUsageLimitReached),
			errors.Is(err, coupon.ErrPerUserLimitReached):
			// The code was valid when applied but no longer is. Quote without
			// it and tell the shopper why.
			quote.CouponError = err.Error()
		default:
			s.Log.Error().Err(err).Str("cart_id", cartID.String()).Msg("coupon validation failed, quoting without coupon")
			quote.CouponError = "coupon could not be verified"
		}
	}

	spend := promo.SpendRewardFromCampaigns(campaigns, s.Spend)
	resolver := promo.Resolver{Now: s.Now, Spend: spend, SortByPriority: s.SortByPriority}

	totals, err := pricing.Aggregate(resolver, c.Items, campaigns, user, appliedCoupon)
	if err != nil {
		s.Log.Error().Err(err).Str("cart_id", cartID.String()).Msg("resolution failed, serving original prices")
		if obs.QuoteFallbacksTotal != nil {
			obs.QuoteFallbacksTotal.Inc()
		}
		totals = pricing.Undiscounted(c.Items)
	}

	composeCfg := s.Compose
	composeCfg.Spend = spend
	summary, err := pricing.Compose(totals, region, deliveryMethod, composeCfg)
	if err != nil {
		return Quote{}, err
	}

	quote.Summary = summary
	quote.Lines = make([]QuoteLine, 0, len(c.Items))
	sources := make([]string, 0, len(c.Items))
	for i, item := range c.Items {
		quote.Lines = append(quote.Lines, QuoteLine{Line: item, PricedLine: totals.Lines[i]})
		sources = append(sources, string(totals.Lines[i].Source))
	}
	obs.ObserveLineSources(sources)
	if obs.QuoteLatency != nil {
		obs.QuoteLatency.Observe(obs.DurationMillis(time.Since(start)))
	}
	return quote, nil
}
