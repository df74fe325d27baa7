package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput is returned when a line item or promo cannot be priced.
var ErrInvalidInput = errors.New("pricing: invalid input")

// Zone identifies a shipping-rate bucket selected by the buyer.
type Zone string

const (
	ZoneInside  Zone = "insideZone"
	ZoneOutside Zone = "outsideZone"
)

// Promo code types accepted by the calculator.
const (
	PromoPercentage   = "percentage"
	PromoFixedAmount  = "fixed_amount"
	PromoFreeShipping = "free_shipping"
)

// ZoneCharges holds per-zone shipping rates.
type ZoneCharges struct {
	InsideZone  decimal.Decimal `json:"insideZone"`
	OutsideZone decimal.Decimal `json:"outsideZone"`
}

// LineItem is a priced cart entry. Prices are snapshots taken when the item
// entered the cart, not live catalog reads.
type LineItem struct {
	ProductID     string
	UnitPrice     decimal.Decimal
	OriginalPrice *decimal.Decimal
	Quantity      int
	TaxPercent    *decimal.Decimal
	FreeDelivery  bool
	Shipping      *ZoneCharges
}

// PromoCode is the already-validated result of the promo service. The
// calculator trusts it verbatim and does not re-check eligibility.
type PromoCode struct {
	Code  string          `json:"code"`
	Type  string          `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// Options carries the call-site policy knobs that used to be hardcoded
// literals duplicated between the cart and checkout paths.
type Options struct {
	InsideZoneDefault      decimal.Decimal
	OutsideZoneDefault     decimal.Decimal
	FreeShippingThreshold  decimal.Decimal
	IncludeShippingInTotal bool
}

// Breakdown is the deterministic pricing result. It has no identity and is
// recomputed from scratch on every input change.
type Breakdown struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	OriginalSubtotal decimal.Decimal `json:"originalSubtotal"`
	Discount         decimal.Decimal `json:"discount"`
	Tax              decimal.Decimal `json:"tax"`
	Shipping         decimal.Decimal `json:"shipping"`
	PromoDiscount    decimal.Decimal `json:"promoDiscount"`
	Total            decimal.Decimal `json:"total"`
	TotalQuantity    int             `json:"totalQuantity"`
}

// ValidateItems rejects malformed line items before any computation happens.
func ValidateItems(items []LineItem) error {
	hundred := decimal.NewFromInt(100)
	for _, it := range items {
		if it.Quantity < 1 {
			return fmt.Errorf("%w: quantity %d for product %s", ErrInvalidInput, it.Quantity, it.ProductID)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: negative unit price for product %s", ErrInvalidInput, it.ProductID)
		}
		if it.OriginalPrice != nil && it.OriginalPrice.IsNegative() {
			return fmt.Errorf("%w: negative original price for product %s", ErrInvalidInput, it.ProductID)
		}
		if it.TaxPercent != nil && (it.TaxPercent.IsNegative() || it.TaxPercent.GreaterThan(hundred)) {
			return fmt.Errorf("%w: tax percent out of range for product %s", ErrInvalidInput, it.ProductID)
		}
		if it.Shipping != nil && (it.Shipping.InsideZone.IsNegative() || it.Shipping.OutsideZone.IsNegative()) {
			return fmt.Errorf("%w: negative shipping charge for product %s", ErrInvalidInput, it.ProductID)
		}
	}
	return nil
}

// SelectedItems filters the full line-item list down to the selected subset.
// Input order is preserved; unselected items are removed entirely so they
// never contribute to any downstream figure.
func SelectedItems(items []LineItem, selected map[string]bool) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, it := range items {
		if selected[it.ProductID] {
			out = append(out, it)
		}
	}
	return out
}

// Subtotal sums unitPrice*quantity. No rounding is applied here.
func Subtotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// OriginalSubtotal sums pre-discount prices, falling back to the sale price
// for items without one.
func OriginalSubtotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		price := it.UnitPrice
		if it.OriginalPrice != nil {
			price = *it.OriginalPrice
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// Discount reports per-item markdown savings. A negative result means an
// upstream data-entry error (originalPrice below unitPrice); it is surfaced
// rather than clamped so the bad data stays visible.
func Discount(items []LineItem) decimal.Decimal {
	return OriginalSubtotal(items).Sub(Subtotal(items))
}

// Tax sums per-line tax contributions. Items without a tax percentage
// contribute zero; tax is never inferred or defaulted.
func Tax(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	hundred := decimal.NewFromInt(100)
	for _, it := range items {
		if it.TaxPercent == nil || !it.TaxPercent.IsPositive() {
			continue
		}
		line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		total = total.Add(line.Mul(*it.TaxPercent).Div(hundred))
	}
	return total
}

// ShippingCharges resolves per-zone rates. Any item flagged free-delivery
// waives shipping for the whole order, taking priority over every per-item
// rate. Otherwise each zone independently charges the highest rate declared
// across items (worst case wins, never summed), and a zone no item priced
// falls back to the configured default.
func ShippingCharges(items []LineItem, opts Options) ZoneCharges {
	for _, it := range items {
		if it.FreeDelivery {
			return ZoneCharges{InsideZone: decimal.Zero, OutsideZone: decimal.Zero}
		}
	}
	inside, outside := decimal.Zero, decimal.Zero
	for _, it := range items {
		if it.Shipping == nil {
			continue
		}
		if it.Shipping.InsideZone.GreaterThan(inside) {
			inside = it.Shipping.InsideZone
		}
		if it.Shipping.OutsideZone.GreaterThan(outside) {
			outside = it.Shipping.OutsideZone
		}
	}
	if inside.IsZero() {
		inside = opts.InsideZoneDefault
	}
	if outside.IsZero() {
		outside = opts.OutsideZoneDefault
	}
	return ZoneCharges{InsideZone: inside, OutsideZone: outside}
}

// Shipping returns the charge for the buyer's zone.
func Shipping(items []LineItem, zone Zone, opts Options) (decimal.Decimal, error) {
	charges := ShippingCharges(items, opts)
	switch zone {
	case ZoneInside:
		return charges.InsideZone, nil
	case ZoneOutside:
		return charges.OutsideZone, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown zone %q", ErrInvalidInput, zone)
	}
}

// PromoDiscount computes the applied promo's subtotal discount, clamped to the
// subtotal and rounded half-up to 2 decimal places. A free_shipping promo
// contributes zero here; its waiver is applied to the shipping figure so the
// order is never discounted twice.
func PromoDiscount(subtotal decimal.Decimal, promo *PromoCode) (decimal.Decimal, error) {
	if promo == nil {
		return decimal.Zero, nil
	}
	var discount decimal.Decimal
	switch promo.Type {
	case PromoPercentage:
		discount = subtotal.Mul(promo.Value).Div(decimal.NewFromInt(100))
	case PromoFixedAmount:
		discount = promo.Value
	case PromoFreeShipping:
		return decimal.Zero, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown promo type %q", ErrInvalidInput, promo.Type)
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount.Round(2), nil
}

// Total combines the components. Whether shipping participates is a per-call-
// site policy carried in by the caller, since the cart and checkout pages
// historically disagreed.
func Total(subtotal, tax, shipping, promoDiscount decimal.Decimal, includeShipping bool) decimal.Decimal {
	total := subtotal.Add(tax).Sub(promoDiscount)
	if includeShipping {
		total = total.Add(shipping)
	}
	return total
}

// TotalQuantity sums quantities across items, for display only.
func TotalQuantity(items []LineItem) int {
	var n int
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// Quote is the consolidated entry point both the cart and checkout paths use.
// It filters to the selected subset, validates it, and produces the full
// breakdown under the provided policy options.
func Quote(items []LineItem, selected map[string]bool, zone Zone, promo *PromoCode, opts Options) (Breakdown, error) {
	picked := SelectedItems(items, selected)
	if err := ValidateItems(picked); err != nil {
		return Breakdown{}, err
	}

	subtotal := Subtotal(picked)
	shipping, err := Shipping(picked, zone, opts)
	if err != nil {
		return Breakdown{}, err
	}
	if opts.FreeShippingThreshold.IsPositive() && subtotal.GreaterThanOrEqual(opts.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	if promo != nil && promo.Type == PromoFreeShipping {
		shipping = decimal.Zero
	}
	promoDiscount, err := PromoDiscount(subtotal, promo)
	if err != nil {
		return Breakdown{}, err
	}
	tax := Tax(picked)

	return Breakdown{
		Subtotal:         subtotal,
		OriginalSubtotal: OriginalSubtotal(picked),
		Discount:         Discount(picked),
		Tax:              tax,
		Shipping:         shipping,
		PromoDiscount:    promoDiscount,
		Total:            Total(subtotal, tax, shipping, promoDiscount, opts.IncludeShippingInTotal),
		TotalQuantity:    TotalQuantity(picked),
	}, nil
}
