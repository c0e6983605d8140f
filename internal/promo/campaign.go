package promo

import (
	"time"

	"github.com/google/uuid"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// Scope declares whether a campaign targets individual items or the cart as a whole.
type Scope string

const (
	// ScopeItem campaigns discount individual cart lines.
	ScopeItem Scope = "item"
	// ScopeCart campaigns act on the whole cart (e.g. spend-and-save).
	ScopeCart Scope = "cart"
)

// Kind identifies the rule family a campaign belongs to.
type Kind string

const (
	KindBuyXGetYPercent  Kind = "BUY_X_GET_Y_PERCENT"
	KindFirstPurchase    Kind = "FIRST_PURCHASE_DISCOUNT"
	KindSpendAndSave     Kind = "SPEND_AND_SAVE"
	KindBogo             Kind = "BOGO"
	KindFlashSale        Kind = "FLASH_SALE"
	KindQuantityDiscount Kind = "QUANTITY_DISCOUNT"
)

// BuyXGetYPercent grants a percentage off once the line quantity reaches BuyQuantity.
type BuyXGetYPercent struct {
	BuyQuantity     int `json:"buyQuantity"`
	DiscountPercent int `json:"discountPercent"`
}

// FirstPurchase grants a percentage off for customers with no prior orders.
type FirstPurchase struct {
	DiscountPercent int `json:"discountPercent"`
}

// FlashSale grants a percentage off inside a unix-second window, bounds inclusive.
type FlashSale struct {
	StartAt         int64 `json:"startAt"`
	EndAt           int64 `json:"endAt"`
	DiscountPercent int   `json:"discountPercent"`
}

// QuantityDiscount grants a percentage off once the line quantity reaches MinQuantity.
type QuantityDiscount struct {
	MinQuantity     int `json:"minQuantity"`
	DiscountPercent int `json:"discountPercent"`
}

// Bogo grants free units in fixed buy/get groups.
type Bogo struct {
	Buy     int `json:"buy"`
	GetFree int `json:"getFree"`
}

// SpendAndSave takes a flat amount off a line when the cart subtotal reaches the threshold.
type SpendAndSave struct {
	Threshold Money `json:"threshold"`
	Reward    Money `json:"reward"`
}

// Campaign is a promotional rule authored by an administrator. Exactly one of
// the per-kind config fields should be populated, matching Kind; campaigns
// whose config is missing or malformed are skipped during resolution rather
// than rejected.
type Campaign struct {
	ID         uuid.UUID   `json:"id"`
	Title      string      `json:"title"`
	Scope      Scope       `json:"scope"`
	Kind       Kind        `json:"kind"`
	ProductIDs []uuid.UUID `json:"productIds,omitempty"`
	Priority   int         `json:"priority"`
	Active     bool        `json:"active"`

	BuyXGetY      *BuyXGetYPercent  `json:"buyXGetY,omitempty"`
	FirstPurchase *FirstPurchase    `json:"firstPurchase,omitempty"`
	FlashSale     *FlashSale        `json:"flashSale,omitempty"`
	Quantity      *QuantityDiscount `json:"quantity,omitempty"`
	Bogo          *Bogo             `json:"bogo,omitempty"`
	SpendAndSave  *SpendAndSave     `json:"spendAndSave,omitempty"`
}

// CatalogWide reports whether the campaign applies regardless of product scope.
func (c Campaign) CatalogWide() bool {
	return c.Kind == KindFirstPurchase || c.Kind == KindFlashSale
}

// AppliesTo reports whether the campaign can discount the given product.
func (c Campaign) AppliesTo(productID uuid.UUID) bool {
	if c.Scope == ScopeCart {
		return false
	}
	if c.CatalogWide() {
		return true
	}
	for _, id := range c.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// percentCandidate evaluates the campaign against a line and returns the
// discount percent it would contribute. Malformed configs and unknown kinds
// report not-eligible.
func (c Campaign) percentCandidate(quantity int, user *UserContext, now time.Time) (int, bool) {
	switch c.Kind {
	case KindBuyXGetYPercent:
		cfg := c.BuyXGetY
		if cfg == nil || cfg.BuyQuantity <= 0 || !validPercent(cfg.DiscountPercent) {
			return 0, false
		}
		if quantity >= cfg.BuyQuantity {
			return cfg.DiscountPercent, true
		}
	case KindFirstPurchase:
		cfg := c.FirstPurchase
		if cfg == nil || !validPercent(cfg.DiscountPercent) {
			return 0, false
		}
		if user != nil && user.PriorOrderCount == 0 {
			return cfg.DiscountPercent, true
		}
	case KindFlashSale:
		cfg := c.FlashSale
		if cfg == nil || !validPercent(cfg.DiscountPercent) || cfg.StartAt > cfg.EndAt {
			return 0, false
		}
		ts := now.Unix()
		if ts >= cfg.StartAt && ts <= cfg.EndAt {
			return cfg.DiscountPercent, true
		}
	case KindQuantityDiscount:
		cfg := c.Quantity
		if cfg == nil || cfg.MinQuantity <= 0 || !validPercent(cfg.DiscountPercent) {
			return 0, false
		}
		if quantity >= cfg.MinQuantity {
			return cfg.DiscountPercent, true
		}
	}
	return 0, false
}

func validPercent(p int) bool {
	return p > 0 && p <= 100
}

// SpendReward pairs a cart subtotal threshold with the flat amount it unlocks.
// The same value drives both the resolver override and the unlock messaging so
// the pair is configured exactly once.
type SpendReward struct {
	Threshold Money
	Reward    Money
}

// Enabled reports whether the spend-and-save rule participates in resolution.
func (s SpendReward) Enabled() bool {
	return s.Threshold > 0 && s.Reward > 0
}

// SpendRewardFromCampaigns returns the spend/reward pair of the
// highest-priority active cart-scope SPEND_AND_SAVE campaign, falling back to
// the provided default when none is present. Lower priority numbers win.
func SpendRewardFromCampaigns(campaigns []Campaign, fallback SpendReward) SpendReward {
	best := fallback
	bestPriority := 0
	found := false
	for _, c := range campaigns {
		if !c.Active || c.Scope != ScopeCart || c.Kind != KindSpendAndSave || c.SpendAndSave == nil {
			continue
		}
		sr := SpendReward{Threshold: c.SpendAndSave.Threshold, Reward: c.SpendAndSave.Reward}
		if !sr.Enabled() {
			continue
		}
		if !found || c.Priority < bestPriority {
			best = sr
			bestPriority = c.Priority
			found = true
		}
	}
	return best
}
