package promo

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Source tags which rule produced a line's final price.
type Source string

const (
	SourceNone      Source = ""
	SourceCampaign  Source = "CAMPAIGN"
	SourceCoupon    Source = "COUPON"
	SourceSpendMore Source = "SPEND_MORE"
	SourceBogo      Source = "BOGO"
)

// CouponKind distinguishes percentage coupons from flat-amount coupons.
type CouponKind string

const (
	CouponPercent CouponKind = "PERCENT"
	CouponFixed   CouponKind = "FIXED"
)

// Coupon is a promo code record. The resolver trusts the coupon it is given;
// usage caps are validated by the caller before resolution and enforced
// transactionally at redemption.
type Coupon struct {
	ID              uuid.UUID  `json:"id"`
	Code            string     `json:"code"`
	Kind            CouponKind `json:"kind"`
	Percent         int        `json:"percent,omitempty"`
	Amount          Money      `json:"amount,omitempty"`
	MaxUsagePerUser int        `json:"maxUsagePerUser,omitempty"`
	MaxTotalUses    int        `json:"maxTotalUses,omitempty"`
	UsedCount       int        `json:"usedCount"`
}

// UserContext is a read-only snapshot of the purchase history the resolver
// consults for first-purchase eligibility.
type UserContext struct {
	PriorOrderCount int            `json:"priorOrderCount"`
	CouponUsage     map[string]int `json:"couponUsage,omitempty"`
}

// Line is one cart entry as supplied to the resolver.
type Line struct {
	ProductID uuid.UUID `json:"productId"`
	Name      string    `json:"name"`
	UnitPrice Money     `json:"unitPrice"`
	Quantity  int       `json:"quantity"`
	Size      string    `json:"size,omitempty"`
	Color     string    `json:"color,omitempty"`
}

// PricedLine is the resolver's verdict for a single line. At most one discount
// source applies.
type PricedLine struct {
	OriginalPrice   Money     `json:"originalPrice"`
	Price           Money     `json:"price"`
	HasDiscount     bool      `json:"hasDiscount"`
	DiscountPercent int       `json:"discountPercent"`
	Campaign        *Campaign `json:"appliedCampaign,omitempty"`
	Coupon          *Coupon   `json:"appliedCoupon,omitempty"`
	Source          Source    `json:"discountSource,omitempty"`
}

// Resolver evaluates campaigns, an optional coupon and the spend-and-save rule
// against a single line. It is a pure computation: it reads the clock once per
// call and owns no state, so concurrent calls are safe.
type Resolver struct {
	// Now overrides the wall clock for flash-sale windows. Nil means time.Now.
	Now func() time.Time
	// Spend is the cart-level flat reward; zero value disables the rule.
	Spend SpendReward
	// SortByPriority orders campaigns by ascending Priority before evaluation.
	// When unset, ties between equal percents keep the supplied order.
	SortByPriority bool
}

func (r Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// ResolveLine prices one cart line against the supplied campaign set.
// Campaigns are expected to be pre-filtered to active ones by the caller.
//
// Evaluation order: an eligible BOGO returns immediately and combines with
// nothing else. Otherwise the highest percent among eligible campaigns is
// tracked; a PERCENT coupon may raise it (larger wins, no stacking) while a
// FIXED coupon short-circuits to max(0, original-amount). Finally the
// spend-and-save override wins only if it yields a strictly lower price.
func (r Resolver) ResolveLine(line Line, campaigns []Campaign, user *UserContext, coupon *Coupon, cartSubtotal Money) PricedLine {
	if line.Quantity <= 0 || line.UnitPrice < 0 {
		return PricedLine{}
	}
	original := Money(line.Quantity) * line.UnitPrice
	out := PricedLine{OriginalPrice: original, Price: original}

	set := campaigns
	if r.SortByPriority && len(campaigns) > 1 {
		set = make([]Campaign, len(campaigns))
		copy(set, campaigns)
		sort.SliceStable(set, func(i, j int) bool { return set[i].Priority < set[j].Priority })
	}

	now := r.now()
	bestPercent := 0
	var bestCampaign *Campaign
	for i := range set {
		c := &set[i]
		if !c.AppliesTo(line.ProductID) {
			continue
		}
		if c.Kind == KindBogo {
			if priced, ok := resolveBogo(*c, line, original); ok {
				return priced
			}
			continue
		}
		if p, ok := c.percentCandidate(line.Quantity, user, now); ok && p > bestPercent {
			bestPercent = p
			bestCampaign = c
		}
	}

	var appliedCoupon *Coupon
	if coupon != nil {
		switch coupon.Kind {
		case CouponFixed:
			price := original - coupon.Amount
			if price < 0 {
				price = 0
			}
			return PricedLine{
				OriginalPrice:   original,
				Price:           price,
				HasDiscount:     price < original,
				DiscountPercent: percentOf(original-price, original),
				Coupon:          coupon,
				Source:          SourceCoupon,
			}
		case CouponPercent:
			if validPercent(coupon.Percent) && coupon.Percent > bestPercent {
				bestPercent = coupon.Percent
				bestCampaign = nil
				appliedCoupon = coupon
			}
		}
	}

	if r.Spend.Enabled() && cartSubtotal >= r.Spend.Threshold {
		discounted := original - r.Spend.Reward
		if discounted < 0 {
			discounted = 0
		}
		if discounted < applyPercent(original, bestPercent) {
			return PricedLine{
				OriginalPrice:   original,
				Price:           discounted,
				HasDiscount:     discounted < original,
				DiscountPercent: percentOf(original-discounted, original),
				Source:          SourceSpendMore,
			}
		}
	}

	if bestPercent > 0 {
		out.Price = applyPercent(original, bestPercent)
		out.HasDiscount = out.Price < original
		out.DiscountPercent = bestPercent
		if appliedCoupon != nil {
			out.Coupon = appliedCoupon
			out.Source = SourceCoupon
		} else {
			out.Campaign = bestCampaign
			out.Source = SourceCampaign
		}
	}
	return out
}

func resolveBogo(c Campaign, line Line, original Money) (PricedLine, bool) {
	cfg := c.Bogo
	if cfg == nil || cfg.Buy <= 0 || cfg.GetFree <= 0 {
		return PricedLine{}, false
	}
	group := cfg.Buy + cfg.GetFree
	if line.Quantity < group {
		return PricedLine{}, false
	}
	freeUnits := (line.Quantity / group) * cfg.GetFree
	saving := Money(freeUnits) * line.UnitPrice
	price := original - saving
	if price < 0 {
		price = 0
	}
	return PricedLine{
		OriginalPrice:   original,
		Price:           price,
		HasDiscount:     saving > 0,
		DiscountPercent: percentOf(saving, original),
		Campaign:        &c,
		Source:          SourceBogo,
	}, true
}

// applyPercent returns the price after taking percent off, rounded half-up to
// the nearest minor unit.
func applyPercent(original Money, percent int) Money {
	if percent <= 0 {
		return original
	}
	if percent >= 100 {
		return 0
	}
	return (original*Money(100-percent) + 50) / 100
}

// percentOf reports the informational discount percentage a saving represents.
func percentOf(saving, original Money) int {
	if saving <= 0 || original <= 0 {
		return 0
	}
	p := (saving*100 + original/2) / original
	if p > 100 {
		p = 100
	}
	return int(p)
}
