package promo

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

var frozenNow = func() time.Time { return time.Unix(1_700_000_000, 0) }

func campaignFor(kind Kind, productID uuid.UUID) Campaign {
	return Campaign{
		ID:         uuid.New(),
		Title:      string(kind),
		Scope:      ScopeItem,
		Kind:       kind,
		ProductIDs: []uuid.UUID{productID},
		Active:     true,
	}
}

func TestBuyXGetYScenario(t *testing.T) {
	productID := uuid.New()
	c := campaignFor(KindBuyXGetYPercent, productID)
	c.BuyXGetY = &BuyXGetYPercent{BuyQuantity: 2, DiscountPercent: 10}

	r := Resolver{Now: frozenNow}
	line := Line{ProductID: productID, UnitPrice: 5000, Quantity: 3}
	priced := r.ResolveLine(line, []Campaign{c}, nil, nil, 15000)

	if priced.OriginalPrice != 15000 {
		t.Fatalf("expected original 15000, got %d", priced.OriginalPrice)
	}
	if priced.Price != 13500 {
		t.Fatalf("expected price 13500, got %d", priced.Price)
	}
	if !priced.HasDiscount || priced.DiscountPercent != 10 {
		t.Fatalf("expected 10%% discount, got %+v", priced)
	}
	if priced.Source != SourceCampaign {
		t.Fatalf("expected campaign source, got %q", priced.Source)
	}
}

func TestBogoShortCircuits(t *testing.T) {
	productID := uuid.New()
	bogo := campaignFor(KindBogo, productID)
	bogo.Bogo = &Bogo{Buy: 2, GetFree: 1}
	// A simultaneously-eligible percent campaign must not stack on top.
	pct := campaignFor(KindQuantityDiscount, productID)
	pct.Quantity = &QuantityDiscount{MinQuantity: 2, DiscountPercent: 50}

	r := Resolver{Now: frozenNow}
	line := Line{ProductID: productID, UnitPrice: 2000, Quantity: 6}
	priced := r.ResolveLine(line, []Campaign{bogo, pct}, nil, nil, 12000)

	if priced.OriginalPrice != 12000 {
		t.Fatalf("expected original 12000, got %d", priced.OriginalPrice)
	}
	if priced.Price != 8000 {
		t.Fatalf("expected price 8000 after 2 free units, got %d", priced.Price)
	}
	if priced.Source != SourceBogo {
		t.Fatalf("expected BOGO source, got %q", priced.Source)
	}
	if priced.Coupon != nil {
		t.Fatalf("BOGO must not combine with a coupon")
	}
}

func TestBogoBelowGroupSizeNotEligible(t *testing.T) {
	productID := uuid.New()
	bogo := campaignFor(KindBogo, productID)
	bogo.Bogo = &Bogo{Buy: 2, GetFree: 1}

	r := Resolver{Now: frozenNow}
	priced := r.ResolveLine(Line{ProductID: productID, UnitPrice: 2000, Quantity: 2}, []Campaign{bogo}, nil, nil, 4000)
	if priced.HasDiscount {
		t.Fatalf("quantity below buy+getFree must not discount, got %+v", priced)
	}
}

func TestBestPercentWins(t *testing.T) {
	productID := uuid.New()
	ten := campaignFor(KindBuyXGetYPercent, productID)
	ten.BuyXGetY = &BuyXGetYPercent{BuyQuantity: 2, DiscountPercent: 10}
	twenty := campaignFor(KindQuantityDiscount, productID)
	twenty.Quantity = &QuantityDiscount{MinQuantity: 2, DiscountPercent: 20}

	r := Resolver{Now: frozenNow}
	priced := r.ResolveLine(Line{ProductID: productID, UnitPrice: 1000, Quantity: 2}, []Campaign{ten, twenty}, nil, nil, 2000)
	if priced.DiscountPercent != 20 {
		t.Fatalf("expected best percent 20, got %d", priced.DiscountPercent)
	}
	if priced.Campaign == nil || priced.Campaign.ID != twenty.ID {
		t.Fatalf("expected the 20%% campaign to win")
	}
}

func TestPercentTieKeepsSuppliedOrder(t *testing.T) {
	productID := uuid.New()
	first := campaignFor(KindQuantityDiscount, productID)
	first.Quantity = &QuantityDiscount{MinQuantity: 1, DiscountPercent: 15}
	second := campaignFor(KindBuyXGetYPercent, productID)
	second.BuyXGetY = &BuyXGetYPercent{BuyQuantity: 1, DiscountPercent: 15}

	r := Resolver{Now: frozenNow}
	priced := r.ResolveLine(Line{ProductID: productID, UnitPrice: 1000, Quantity: 1}, []Campaign{first, second}, nil, nil, 1000)
	if priced.Campaign == nil || priced.Campaign.ID != first.ID {
		t.Fatalf("expected first supplied campaign to win the tie")
	}
}

func TestPrioritySortOrdersEvaluation(t *testing.T) {
	productID := uuid.New()
	low := campaignFor(KindQuantityDiscount, productID)
	low.Quantity = &QuantityDiscount{MinQuantity: 1, DiscountPercent: 15}
	low.Priority = 10
	high := campaignFor(KindBuyXGetYPercent, productID)
	high.BuyXGetY = &BuyXGetYPercent{BuyQuantity: 1, DiscountPercent: 15}
	high.Priority = 1

	r := Resolver{Now: frozenNow, SortByPriority: true}
	priced := r.ResolveLine(Line{ProductID: productID, UnitPrice: 1000, Quantity: 1}, []Campaign{low, high}, nil, nil, 1000)
	if priced.Campaign == nil || priced.Campaign.ID != high.ID {
		t.Fatalf("expected lower priority number to win the tie when sorting is enabled")
	}
}

func TestFirstPurchaseEligibility(t *testing.T) {
	c := Campaign{ID: uuid.New(), Title: "welcome", Scope: ScopeItem, Kind: KindFirstPurchase, Active: true}
	c.FirstPurchase = &FirstPurchase{DiscountPercent: 25}
	r := Resolver{Now: frozenNow}
	line := Line{ProductID: uuid.New(), UnitPrice: 1000, Quantity: 1}

	fresh := &UserContext{PriorOrderCount: 0}
	priced := r.ResolveLine(line, []Campaign{c}, fresh, nil, 1000)
	if priced.DiscountPercent != 25 {
		t.Fatalf("first purchase should apply catalog-wide, got %+v", priced)
	}

	returning := &UserContext{PriorOrderCount: 3}
	priced = r.ResolveLine(line, []Campaign{c}, returning, nil, 1000)
	if priced.HasDiscount {
		t.Fatalf("returning customer must not get first-purchase discount")
	}

	priced = r.ResolveLine(line, []Campaign{c}, nil, nil, 1000)
	if priced.HasDiscount {
		t.Fatalf("missing user context must not unlock first-purchase discount")
	}
}

func TestFlashSaleWindowInclusive(t *testing.T) {
	now := frozenNow()
	c := Campaign{ID: uuid.New(), Title: "flash", Scope: ScopeItem, Kind: KindFlashSale, Active: true}
	c.FlashSale = &FlashSale{StartAt: now.Unix(), EndAt: now.Unix(), DiscountPercent: 30}

	r := Resolver{Now: frozenNow}
	line := Line{ProductID: uuid.New(), UnitPrice: 1000, Quantity: 1}
	priced := r.ResolveLine(line, []Campaign{c}, nil, nil, 1000)
	if priced.DiscountPercent != 30 {
		t.Fatalf("window bounds are inclusive, got %+v", priced)
	}

	c.FlashSale.EndAt = now.Unix() - 1
	c.FlashSale.StartAt = now.Unix() - 10
	priced = r.ResolveLine(line, []Campaign{c}, nil, nil, 1000)
	if priced.HasDiscount {
		t.Fatalf("expired flash sale must not apply")
	}
}

func TestFixedCouponShortCircuits(t *testing.T) {
	productID := uuid.New()
	pct := campaignFor(KindQuantityDiscount, productID)
	pct.Quantity = &QuantityDiscount{MinQuantity: 1, DiscountPercent: 50}
	coupon := &Coupon{Code: "TAKE5", Kind: CouponFixed, Amount: 500}

	r := Resolver{Now: frozenNow}
	priced := r.ResolveLine(Line{ProductID: productID, UnitPrice: 1000, Quantity: 2}, []Campaign{pct}, nil, coupon, 2000)
	if priced.Price != 1500 {
		t.Fatalf("fixed coupon must bypass percent comparison, got %d", priced.Price)
	}
	if priced.Source != SourceCoupon || priced.Coupon == nil {
		t.Fatalf("expected coupon source, got %+v", priced)
	}
}

func TestFixedCouponClampsToZero(t *testing.T) {
	coupon := &Coupon{Code: "HUGE", Kind: CouponFixed, Amount: 100_000}
	r := Resolver{Now: frozenNow}
	priced := r.ResolveLine(Line{ProductID: uuid.New(), UnitPrice: 100, Quantity: 1}, nil, nil, coupon, 100)
	if priced.Price != 0 {
		t.Fatalf("price must clamp to zero, got %d", priced.Price)
	}
}

func TestPercentCouponTakesLargerPercent(t *testing.T) {
	productID := uuid.New()
	pct := campaignFor(KindQuantityDiscount, productID)
	pct.Quantity = &QuantityDiscount{MinQuantity: 1, DiscountPercent: 10}
	coupon := &Coupon{Code: "SAVE20", Kind: CouponPercent, Percent: 20}

	r := Resolver{Now: frozenNow}
	priced := r.ResolveLine(Line{ProductID: productID, UnitPrice: 1000, Quantity: 1}, []Campaign{pct}, nil, coupon, 1000)
	if priced.Price != 800 || priced.Source != SourceCoupon {
		t.Fatalf("larger coupon percent must win without stacking, got %+v", priced)
	}

	weak := &Coupon{Code: "SAVE5", Kind: CouponPercent, Percent: 5}
	priced = r.ResolveLine(Line{ProductID: productID, UnitPrice: 1000, Quantity: 1}, []Campaign{pct}, nil, weak, 1000)
	if priced.Price != 900 || priced.Source != SourceCampaign {
		t.Fatalf("campaign must win over weaker coupon percent, got %+v", priced)
	}
}

func TestSpendMoreBoundary(t *testing.T) {
	spend := SpendReward{Threshold: 10000, Reward: 1500}
	r := Resolver{Now: frozenNow, Spend: spend}
	line := Line{ProductID: uuid.New(), UnitPrice: 2500, Quantity: 1}

	priced := r.ResolveLine(line, nil, nil, nil, 9999)
	if priced.HasDiscount {
		t.Fatalf("99.99 subtotal must not trigger spend-more")
	}

	priced = r.ResolveLine(line, nil, nil, nil, 10000)
	if priced.Price != 1000 || priced.Source != SourceSpendMore {
		t.Fatalf("subtotal exactly at threshold must trigger spend-more, got %+v", priced)
	}
}

func TestSpendMorePicksLowerPrice(t *testing.T) {
	productID := uuid.New()
	pct := campaignFor(KindQuantityDiscount, productID)
	pct.Quantity = &QuantityDiscount{MinQuantity: 1, DiscountPercent: 90}

	spend := SpendReward{Threshold: 10000, Reward: 1500}
	r := Resolver{Now: frozenNow, Spend: spend}
	// 90% off a 5.00 line (-> 0.50) beats a flat 15.00 reward clamped at 0.
	priced := r.ResolveLine(Line{ProductID: productID, UnitPrice: 500, Quantity: 1}, []Campaign{pct}, nil, nil, 15000)
	if priced.Source != SourceSpendMore || priced.Price != 0 {
		t.Fatalf("flat reward yielding 0 beats 0.50, got %+v", priced)
	}

	mild := campaignFor(KindQuantityDiscount, productID)
	mild.Quantity = &QuantityDiscount{MinQuantity: 1, DiscountPercent: 95}
	priced = r.ResolveLine(Line{ProductID: productID, UnitPrice: 30000, Quantity: 1}, []Campaign{mild}, nil, nil, 30000)
	if priced.Source != SourceCampaign || priced.Price != 1500 {
		t.Fatalf("95%% off 300.00 (-> 15.00) beats flat reward (-> 285.00), got %+v", priced)
	}
}

func TestMalformedConfigSkipped(t *testing.T) {
	productID := uuid.New()
	broken := campaignFor(KindBuyXGetYPercent, productID)
	// Config missing entirely.
	noPercent := campaignFor(KindQuantityDiscount, productID)
	noPercent.Quantity = &QuantityDiscount{MinQuantity: 1, DiscountPercent: 0}
	unknown := campaignFor(Kind("MYSTERY_DEAL"), productID)

	r := Resolver{Now: frozenNow}
	priced := r.ResolveLine(Line{ProductID: productID, UnitPrice: 1000, Quantity: 5}, []Campaign{broken, noPercent, unknown}, nil, nil, 5000)
	if priced.HasDiscount {
		t.Fatalf("malformed or unknown campaigns must contribute nothing, got %+v", priced)
	}
	if priced.Price != priced.OriginalPrice {
		t.Fatalf("expected undiscounted price")
	}
}

func TestIdempotence(t *testing.T) {
	productID := uuid.New()
	c := campaignFor(KindQuantityDiscount, productID)
	c.Quantity = &QuantityDiscount{MinQuantity: 2, DiscountPercent: 20}
	coupon := &Coupon{Code: "SAVE10", Kind: CouponPercent, Percent: 10}

	r := Resolver{Now: frozenNow, Spend: SpendReward{Threshold: 10000, Reward: 1500}}
	line := Line{ProductID: productID, UnitPrice: 3333, Quantity: 3}

	a := r.ResolveLine(line, []Campaign{c}, &UserContext{PriorOrderCount: 1}, coupon, 9999)
	b := r.ResolveLine(line, []Campaign{c}, &UserContext{PriorOrderCount: 1}, coupon, 9999)
	if a.Price != b.Price || a.Source != b.Source || a.DiscountPercent != b.DiscountPercent {
		t.Fatalf("identical inputs must produce identical outputs: %+v vs %+v", a, b)
	}
	if a.Price < 0 || a.Price > a.OriginalPrice {
		t.Fatalf("price must stay within [0, original], got %+v", a)
	}
}

func TestInvalidLineReturnsZeroValue(t *testing.T) {
	r := Resolver{Now: frozenNow}
	priced := r.ResolveLine(Line{ProductID: uuid.New(), UnitPrice: -100, Quantity: 1}, nil, nil, nil, 0)
	if priced.OriginalPrice != 0 || priced.Price != 0 {
		t.Fatalf("negative unit price must not produce totals, got %+v", priced)
	}
	priced = r.ResolveLine(Line{ProductID: uuid.New(), UnitPrice: 100, Quantity: 0}, nil, nil, nil, 0)
	if priced.OriginalPrice != 0 {
		t.Fatalf("non-positive quantity must not produce totals, got %+v", priced)
	}
}

func TestSpendRewardFromCampaigns(t *testing.T) {
	fallback := SpendReward{Threshold: 10000, Reward: 1500}

	derived := SpendRewardFromCampaigns(nil, fallback)
	if derived != fallback {
		t.Fatalf("empty set must fall back, got %+v", derived)
	}

	low := Campaign{ID: uuid.New(), Title: "big spender", Scope: ScopeCart, Kind: KindSpendAndSave, Active: true, Priority: 5,
		SpendAndSave: &SpendAndSave{Threshold: 20000, Reward: 3000}}
	high := Campaign{ID: uuid.New(), Title: "vip", Scope: ScopeCart, Kind: KindSpendAndSave, Active: true, Priority: 1,
		SpendAndSave: &SpendAndSave{Threshold: 5000, Reward: 500}}
	inactive := Campaign{ID: uuid.New(), Title: "off", Scope: ScopeCart, Kind: KindSpendAndSave, Active: false, Priority: 0,
		SpendAndSave: &SpendAndSave{Threshold: 100, Reward: 100}}

	derived = SpendRewardFromCampaigns([]Campaign{low, high, inactive}, fallback)
	if derived.Threshold != 5000 || derived.Reward != 500 {
		t.Fatalf("lowest priority number must win, got %+v", derived)
	}
}
