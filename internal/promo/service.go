package promo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glowmart/backend-glow/internal/pricing"
)

// Result is the outcome of a successful validation: the promo the pricing
// calculator consumes plus the discount preview for display.
type Result struct {
	Promo          pricing.PromoCode `json:"promoCode"`
	Discount       decimal.Decimal   `json:"discount"`
	EligibleAmount decimal.Decimal   `json:"eligibleAmount"`
}

// Service evaluates and settles promo codes.
type Service struct {
	Store Store
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Validate checks a code against the order context and returns the validated
// promo. The pricing calculator trusts this result verbatim.
func (s *Service) Validate(ctx context.Context, code string, userID *uuid.UUID, orderAmount decimal.Decimal, items []Item) (Result, error) {
	if s == nil || s.Store == nil {
		return Result{}, errors.New("promo service not configured")
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return Result{}, fmt.Errorf("code is required: %w", ErrNotEligible)
	}
	rule, err := s.Store.GetByCode(ctx, trimmed)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Result{}, ErrNotEligible
		}
		return Result{}, err
	}

	if userID != nil && rule.PerUserLimit != nil && *rule.PerUserLimit > 0 {
		used, err := s.Store.CountUsageByUser(ctx, rule.ID, *userID)
		if err != nil {
			return Result{}, err
		}
		rule.PerUserUsed = int32(used)
	}
	if err := rule.Validate(s.now(), orderAmount); err != nil {
		return Result{}, err
	}

	eligible := orderAmount
	if rule.Scoped() {
		eligible = EligibleSubtotal(items, rule)
		if !eligible.IsPositive() {
			return Result{}, ErrNotEligible
		}
	}
	discount, err := pricing.PromoDiscount(eligible, &pricing.PromoCode{Code: rule.Code, Type: rule.Type, Value: rule.Value})
	if err != nil {
		return Result{}, err
	}
	return Result{Promo: rule.ToPromoCode(), Discount: discount, EligibleAmount: eligible}, nil
}

// Settle records usage for an order. Replays for the same order are no-ops so
// payment webhooks and checkout retries stay idempotent.
func (s *Service) Settle(ctx context.Context, code string, orderID, userID uuid.UUID) error {
	if s == nil || s.Store == nil {
		return errors.New("promo service not configured")
	}
	rule, err := s.Store.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotEligible
		}
		return err
	}
	exists, err := s.Store.UsageExists(ctx, rule.ID, orderID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.Store.RecordUsage(ctx, rule.ID, orderID, userID)
}
