package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/backend-storefront/internal/promo"
)

// ErrUnknownDeliveryMethod is returned when the delivery method has no rate
// configured. Unlike an unknown tax region this is a hard configuration error:
// shipping must never default silently.
var ErrUnknownDeliveryMethod = errors.New("unknown delivery method")

// TaxTable maps region codes to flat rates in basis points, with an explicit
// default for unrecognized regions.
type TaxTable struct {
	RateBps    map[string]int
	DefaultBps int
}

// RateFor returns the configured rate for a region, falling back to the default.
func (t TaxTable) RateFor(region string) int {
	if bps, ok := t.RateBps[strings.ToUpper(strings.TrimSpace(region))]; ok {
		return bps
	}
	return t.DefaultBps
}

// ShippingRates maps delivery method names to flat shipping costs.
type ShippingRates map[string]Money

// Messages holds the unlock-progress templates. Placeholders {{missing}},
// {{reward}}, {{threshold}} and {{subtotal}} are replaced with formatted
// currency amounts.
type Messages struct {
	Unlocked  string
	SpendMore string
}

// ComposeConfig bundles the externally configured tables the composer needs.
type ComposeConfig struct {
	Tax      TaxTable
	Shipping ShippingRates
	Spend    promo.SpendReward
	Messages Messages
}

// Summary is the full order summary shown to the customer and snapshotted at
// order creation.
type Summary struct {
	Subtotal       Money  `json:"subtotal"`
	Discount       Money  `json:"totalDiscount"`
	Shipping       Money  `json:"shippingCost"`
	Tax            Money  `json:"taxAmount"`
	Total          Money  `json:"grandTotal"`
	AmountToUnlock Money  `json:"amountRemainingToUnlockReward"`
	RewardMessage  string `json:"rewardMessageText,omitempty"`
}

// Compose adds tax and shipping to aggregated line totals and renders the
// unlock-progress messaging. The messaging path is display-only: it never
// applies the discount itself.
func Compose(totals LineTotals, region, deliveryMethod string, cfg ComposeConfig) (Summary, error) {
	shipping, ok := cfg.Shipping[deliveryMethod]
	if !ok {
		return Summary{}, fmt.Errorf("%q: %w", deliveryMethod, ErrUnknownDeliveryMethod)
	}

	afterDiscount := totals.Subtotal - totals.Discount
	if afterDiscount < 0 {
		afterDiscount = 0
	}
	tax := roundBps(afterDiscount, cfg.Tax.RateFor(region))

	summary := Summary{
		Subtotal: totals.Subtotal,
		Discount: totals.Discount,
		Shipping: shipping,
		Tax:      tax,
		Total:    afterDiscount + tax + shipping,
	}

	if cfg.Spend.Enabled() {
		missing := cfg.Spend.Threshold - totals.Subtotal
		if missing < 0 {
			missing = 0
		}
		summary.AmountToUnlock = missing
		tpl := cfg.Messages.Unlocked
		if missing > 0 {
			tpl = cfg.Messages.SpendMore
		}
		summary.RewardMessage = renderMessage(tpl, missing, cfg.Spend, totals.Subtotal)
	}
	return summary, nil
}

func renderMessage(tpl string, missing Money, spend promo.SpendReward, subtotal Money) string {
	replacer := strings.NewReplacer(
		"{{missing}}", FormatMoney(missing),
		"{{reward}}", FormatMoney(spend.Reward),
		"{{threshold}}", FormatMoney(spend.Threshold),
		"{{subtotal}}", FormatMoney(subtotal),
	)
	return replacer.Replace(tpl)
}

// FormatMoney renders minor units as a decimal amount, e.g. 1599 -> "15.99".
func FormatMoney(amount Money) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}

// roundBps applies a basis-point rate with round-half-up semantics.
func roundBps(amount Money, bps int) Money {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return (amount*Money(bps) + 5000) / 10000
}
