package promo

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Level grades a conflict warning.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Warning describes a campaign configuration conflict. Warnings are advisory
// and surfaced to administrators only; resolution never consults them.
type Warning struct {
	Level     Level    `json:"level"`
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Campaigns []string `json:"campaigns"`
}

// DetectConflicts inspects a campaign set for authoring mistakes. Only active
// campaigns are considered.
func DetectConflicts(campaigns []Campaign) []Warning {
	var warnings []Warning

	var firstPurchase []string
	var cartScoped []string
	productOrder := make([]uuid.UUID, 0)
	productTitles := make(map[uuid.UUID][]string)

	for _, c := range campaigns {
		if !c.Active {
			continue
		}
		if c.Kind == KindFirstPurchase {
			firstPurchase = append(firstPurchase, c.Title)
		}
		if c.Scope == ScopeCart {
			cartScoped = append(cartScoped, c.Title)
		}
		if c.Scope == ScopeItem && !c.CatalogWide() {
			for _, id := range c.ProductIDs {
				if _, seen := productTitles[id]; !seen {
					productOrder = append(productOrder, id)
				}
				productTitles[id] = append(productTitles[id], c.Title)
			}
		}
	}

	if len(firstPurchase) > 1 {
		warnings = append(warnings, Warning{
			Level:     LevelError,
			Code:      "DUPLICATE_FIRST_PURCHASE",
			Message:   fmt.Sprintf("%d first-purchase campaigns are active; only one should exist: %s", len(firstPurchase), strings.Join(firstPurchase, ", ")),
			Campaigns: firstPurchase,
		})
	}
	if len(cartScoped) > 1 {
		warnings = append(warnings, Warning{
			Level:     LevelWarning,
			Code:      "MULTIPLE_CART_CAMPAIGNS",
			Message:   fmt.Sprintf("%d cart-scope campaigns are active; only the highest priority applies: %s", len(cartScoped), strings.Join(cartScoped, ", ")),
			Campaigns: cartScoped,
		})
	}
	for _, id := range productOrder {
		titles := productTitles[id]
		if len(titles) < 2 {
			continue
		}
		warnings = append(warnings, Warning{
			Level:     LevelWarning,
			Code:      "OVERLAPPING_PRODUCT",
			Message:   fmt.Sprintf("product %s is targeted by %d campaigns: %s", id, len(titles), strings.Join(titles, ", ")),
			Campaigns: titles,
		})
	}
	return warnings
}
