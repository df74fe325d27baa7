package promo

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/glowmart/backend-glow/internal/pricing"
)

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func int32Ptr(v int32) *int32 { return &v }

func activeRule() Rule {
	return Rule{Code: "GLOW10", Type: pricing.PromoPercentage, Value: dec("10"), Active: true}
}

func TestRuleValidateHappyPath(t *testing.T) {
	require.NoError(t, activeRule().Validate(time.Now(), dec("1000")))
}

func TestRuleValidateWindow(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	r := activeRule()
	r.StartsAt = &future
	require.ErrorIs(t, r.Validate(now, dec("1000")), ErrInactive)

	r = activeRule()
	r.EndsAt = &past
	require.ErrorIs(t, r.Validate(now, dec("1000")), ErrExpired)
}

func TestRuleValidateMinimumOrder(t *testing.T) {
	r := activeRule()
	r.MinOrderAmount = dec("500")
	require.ErrorIs(t, r.Validate(time.Now(), dec("499.99")), ErrMinimumOrderUnmet)
	require.NoError(t, r.Validate(time.Now(), dec("500")))
}

func TestRuleValidateUsageLimits(t *testing.T) {
	r := activeRule()
	r.UsageLimit = int32Ptr(5)
	r.UsedCount = 5
	require.ErrorIs(t, r.Validate(time.Now(), dec("1000")), ErrUsageLimitReached)

	r = activeRule()
	r.PerUserLimit = int32Ptr(1)
	r.PerUserUsed = 1
	require.ErrorIs(t, r.Validate(time.Now(), dec("1000")), ErrPerUserLimitReached)
}

func TestRuleValidateInactiveAndUnknownType(t *testing.T) {
	r := activeRule()
	r.Active = false
	require.ErrorIs(t, r.Validate(time.Now(), dec("1000")), ErrInactive)

	r = activeRule()
	r.Type = "bogo"
	require.ErrorIs(t, r.Validate(time.Now(), dec("1000")), ErrUnknownType)
}

func TestEligibleSubtotalUnscopedCoversAll(t *testing.T) {
	items := []Item{
		{Subtotal: dec("100")},
		{Subtotal: dec("250")},
	}
	got := EligibleSubtotal(items, activeRule())
	require.True(t, got.Equal(dec("350")))
}

func TestEligibleSubtotalScopedByProduct(t *testing.T) {
	target := uuid.New()
	other := uuid.New()
	r := activeRule()
	r.ProductIDs = []uuid.UUID{target}

	items := []Item{
		{ProductID: &target, Subtotal: dec("100")},
		{ProductID: &other, Subtotal: dec("900")},
	}
	got := EligibleSubtotal(items, r)
	require.True(t, got.Equal(dec("100")))
}

func TestEligibleSubtotalScopedByBrandAndCategory(t *testing.T) {
	brand := uuid.New()
	category := uuid.New()
	r := activeRule()
	r.BrandIDs = []uuid.UUID{brand}
	r.CategoryIDs = []uuid.UUID{category}

	items := []Item{
		{BrandID: &brand, Subtotal: dec("40")},
		{CategoryID: &category, Subtotal: dec("60")},
		{Subtotal: dec("500")},
	}
	got := EligibleSubtotal(items, r)
	require.True(t, got.Equal(dec("100")))
}

func TestMatchesCodeCaseInsensitive(t *testing.T) {
	r := activeRule()
	require.True(t, r.MatchesCode("glow10"))
	require.True(t, r.MatchesCode("  GLOW10  "))
	require.False(t, r.MatchesCode("GLOW20"))
}

func TestToPromoCodeRoundTripsThroughPricing(t *testing.T) {
	r := activeRule()
	promo := r.ToPromoCode()
	discount, err := pricing.PromoDiscount(dec("1000"), &promo)
	require.NoError(t, err)
	require.True(t, discount.Equal(dec("100")))
}
