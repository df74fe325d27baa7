package promo

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glowmart/backend-glow/internal/pricing"
)

var (
	// ErrNotEligible is returned when the promo cannot be applied to the provided context.
	ErrNotEligible = errors.New("promo not eligible")
	// ErrInactive is returned for codes outside their active window or disabled by an admin.
	ErrInactive = errors.New("promo not active")
	// ErrExpired is returned when the code's validity window has passed.
	ErrExpired = errors.New("promo expired")
	// ErrMinimumOrderUnmet indicates the order amount did not reach the promo minimum.
	ErrMinimumOrderUnmet = errors.New("promo minimum order amount not met")
	// ErrUsageLimitReached indicates the global usage quota is exhausted.
	ErrUsageLimitReached = errors.New("promo usage limit reached")
	// ErrPerUserLimitReached indicates the caller exceeded the per-user allowance.
	ErrPerUserLimitReached = errors.New("promo per-user usage limit reached")
	// ErrUnknownType is returned for promo types the pricing core cannot consume.
	ErrUnknownType = errors.New("unknown promo type")
)

// Rule captures the runtime constraints of a promo code.
type Rule struct {
	ID             uuid.UUID
	Code           string
	Type           string
	Value          decimal.Decimal
	MinOrderAmount decimal.Decimal
	ProductIDs     []uuid.UUID
	CategoryIDs    []uuid.UUID
	BrandIDs       []uuid.UUID
	StartsAt       *time.Time
	EndsAt         *time.Time
	UsageLimit     *int32
	UsedCount      int32
	PerUserLimit   *int32
	PerUserUsed    int32
	Active         bool
}

// Item is a cart line in promo-scoping terms.
type Item struct {
	ProductID  *uuid.UUID
	CategoryID *uuid.UUID
	BrandID    *uuid.UUID
	Subtotal   decimal.Decimal
}

// Validate checks whether the rule can fire at the provided instant and order amount.
func (r Rule) Validate(now time.Time, orderAmount decimal.Decimal) error {
	switch r.Type {
	case pricing.PromoPercentage, pricing.PromoFixedAmount, pricing.PromoFreeShipping:
	default:
		return ErrUnknownType
	}
	if !r.Active {
		return ErrInactive
	}
	if r.StartsAt != nil && now.Before(*r.StartsAt) {
		return ErrInactive
	}
	if r.EndsAt != nil && now.After(*r.EndsAt) {
		return ErrExpired
	}
	if r.MinOrderAmount.IsPositive() && orderAmount.LessThan(r.MinOrderAmount) {
		return ErrMinimumOrderUnmet
	}
	if r.UsageLimit != nil && *r.UsageLimit >= 0 && r.UsedCount >= *r.UsageLimit {
		return ErrUsageLimitReached
	}
	if r.PerUserLimit != nil && *r.PerUserLimit > 0 && r.PerUserUsed >= *r.PerUserLimit {
		return ErrPerUserLimitReached
	}
	return nil
}

// Scoped reports whether the rule is restricted to specific products,
// categories, or brands.
func (r Rule) Scoped() bool {
	return len(r.ProductIDs) > 0 || len(r.CategoryIDs) > 0 || len(r.BrandIDs) > 0
}

// EligibleSubtotal sums the cart portion the rule applies to. An unscoped rule
// covers the whole cart.
func EligibleSubtotal(items []Item, r Rule) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		if !it.Subtotal.IsPositive() {
			continue
		}
		if !r.Scoped() || matches(r, it) {
			total = total.Add(it.Subtotal)
		}
	}
	return total
}

func matches(r Rule, it Item) bool {
	if containsID(r.ProductIDs, it.ProductID) {
		return true
	}
	if containsID(r.CategoryIDs, it.CategoryID) {
		return true
	}
	return containsID(r.BrandIDs, it.BrandID)
}

func containsID(ids []uuid.UUID, id *uuid.UUID) bool {
	if id == nil {
		return false
	}
	for _, candidate := range ids {
		if candidate == *id {
			return true
		}
	}
	return false
}

// MatchesCode compares codes case-insensitively after trimming.
func (r Rule) MatchesCode(code string) bool {
	return strings.EqualFold(strings.TrimSpace(code), r.Code)
}

// ToPromoCode converts a validated rule into the value the pricing calculator
// consumes verbatim.
func (r Rule) ToPromoCode() pricing.PromoCode {
	return pricing.PromoCode{Code: r.Code, Type: r.Type, Value: r.Value}
}
