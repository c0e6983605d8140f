package promo

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestDuplicateFirstPurchaseIsError(t *testing.T) {
	a := Campaign{ID: uuid.New(), Title: "Welcome A", Scope: ScopeItem, Kind: KindFirstPurchase, Active: true}
	b := Campaign{ID: uuid.New(), Title: "Welcome B", Scope: ScopeItem, Kind: KindFirstPurchase, Active: true}

	warnings := DetectConflicts([]Campaign{a, b})
	var hits []Warning
	for _, w := range warnings {
		if w.Code == "DUPLICATE_FIRST_PURCHASE" {
			hits = append(hits, w)
		}
	}
	if len(hits) != 1 {
		t.Fatalf("expected exactly one duplicate-first-purchase warning, got %d", len(hits))
	}
	if hits[0].Level != LevelError {
		t.Fatalf("expected error level, got %q", hits[0].Level)
	}
	if !strings.Contains(hits[0].Message, "Welcome A") || !strings.Contains(hits[0].Message, "Welcome B") {
		t.Fatalf("warning must name both titles: %q", hits[0].Message)
	}
}

func TestSingleFirstPurchaseIsClean(t *testing.T) {
	a := Campaign{ID: uuid.New(), Title: "Welcome", Scope: ScopeItem, Kind: KindFirstPurchase, Active: true}
	inactive := Campaign{ID: uuid.New(), Title: "Old Welcome", Scope: ScopeItem, Kind: KindFirstPurchase, Active: false}
	for _, w := range DetectConflicts([]Campaign{a, inactive}) {
		if w.Code == "DUPLICATE_FIRST_PURCHASE" {
			t.Fatalf("inactive campaigns must not count: %+v", w)
		}
	}
}

func TestMultipleCartCampaignsWarn(t *testing.T) {
	a := Campaign{ID: uuid.New(), Title: "Spend 100", Scope: ScopeCart, Kind: KindSpendAndSave, Active: true}
	b := Campaign{ID: uuid.New(), Title: "Spend 200", Scope: ScopeCart, Kind: KindSpendAndSave, Active: true}

	warnings := DetectConflicts([]Campaign{a, b})
	found := false
	for _, w := range warnings {
		if w.Code == "MULTIPLE_CART_CAMPAIGNS" {
			found = true
			if w.Level != LevelWarning {
				t.Fatalf("expected warning level, got %q", w.Level)
			}
		}
	}
	if !found {
		t.Fatalf("expected a multiple-cart-campaigns warning, got %+v", warnings)
	}
}

func TestOverlappingProductWarnsWithAllTitles(t *testing.T) {
	shared := uuid.New()
	a := Campaign{ID: uuid.New(), Title: "Sneaker Deal", Scope: ScopeItem, Kind: KindQuantityDiscount, Active: true, ProductIDs: []uuid.UUID{shared}}
	b := Campaign{ID: uuid.New(), Title: "Bulk Bonus", Scope: ScopeItem, Kind: KindBuyXGetYPercent, Active: true, ProductIDs: []uuid.UUID{shared, uuid.New()}}

	warnings := DetectConflicts([]Campaign{a, b})
	found := false
	for _, w := range warnings {
		if w.Code == "OVERLAPPING_PRODUCT" {
			found = true
			if len(w.Campaigns) != 2 {
				t.Fatalf("expected both campaign titles, got %+v", w.Campaigns)
			}
		}
	}
	if !found {
		t.Fatalf("expected overlapping-product warning, got %+v", warnings)
	}
}

func TestNoConflictsForDisjointCampaigns(t *testing.T) {
	a := Campaign{ID: uuid.New(), Title: "A", Scope: ScopeItem, Kind: KindQuantityDiscount, Active: true, ProductIDs: []uuid.UUID{uuid.New()}}
	b := Campaign{ID: uuid.New(), Title: "B", Scope: ScopeItem, Kind: KindBogo, Active: true, ProductIDs: []uuid.UUID{uuid.New()}}
	if warnings := DetectConflicts([]Campaign{a, b}); len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %+v", warnings)
	}
}
