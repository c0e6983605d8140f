package pricing

import (
	"errors"
	"fmt"

	"github.com/noah-isme/backend-storefront/internal/promo"
)

// Money re-exports the shared minor-unit currency type.
type Money = promo.Money

// ErrInvalidLine is returned when a cart line carries a negative price or a
// non-positive quantity. Such input must be rejected before resolution rather
// than silently masked.
var ErrInvalidLine = errors.New("invalid cart line")

// LineTotals is the aggregator output: the cart subtotal, the sum of all line
// discounts and the per-line pricing verdicts.
type LineTotals struct {
	Subtotal Money              `json:"subtotal"`
	Discount Money              `json:"totalDiscount"`
	Lines    []promo.PricedLine `json:"lines"`
}

// Aggregate prices every line of a cart. The whole-cart subtotal is computed
// in a pre-pass because the spend-and-save override depends on it before any
// individual line can be resolved. One coupon instance is shared by all lines.
func Aggregate(r promo.Resolver, lines []promo.Line, campaigns []promo.Campaign, user *promo.UserContext, coupon *promo.Coupon) (LineTotals, error) {
	var subtotal Money
	for i, line := range lines {
		if line.UnitPrice < 0 || line.Quantity <= 0 {
			return LineTotals{}, fmt.Errorf("line %d (%s): %w", i, line.Name, ErrInvalidLine)
		}
		subtotal += Money(line.Quantity) * line.UnitPrice
	}

	out := LineTotals{Subtotal: subtotal, Lines: make([]promo.PricedLine, 0, len(lines))}
	for _, line := range lines {
		priced := r.ResolveLine(line, campaigns, user, coupon, subtotal)
		out.Discount += priced.OriginalPrice - priced.Price
		out.Lines = append(out.Lines, priced)
	}
	return out, nil
}

// Undiscounted returns totals with every discount suppressed. It is the
// fallback summary when resolution fails unexpectedly: the cart must keep
// rendering even if a campaign document is broken.
func Undiscounted(lines []promo.Line) LineTotals {
	out := LineTotals{Lines: make([]promo.PricedLine, 0, len(lines))}
	for _, line := range lines {
		if line.UnitPrice < 0 || line.Quantity <= 0 {
			out.Lines = append(out.Lines, promo.PricedLine{})
			continue
		}
		original := Money(line.Quantity) * line.UnitPrice
		out.Subtotal += original
		out.Lines = append(out.Lines, promo.PricedLine{OriginalPrice: original, Price: original})
	}
	return out
}
