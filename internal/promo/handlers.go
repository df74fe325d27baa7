package promo

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glowmart/backend-glow/internal/common"
	"github.com/glowmart/backend-glow/internal/obs"
)

// Handler exposes the public validation endpoint and admin CRUD.
type Handler struct {
	Svc      *Service
	Store    Store
	Validate *validator.Validate
}

type validateRequest struct {
	Code        string          `json:"code" validate:"required"`
	OrderAmount decimal.Decimal `json:"orderAmount"`
	ProductIDs  []uuid.UUID     `json:"productIds"`
	CategoryIDs []uuid.UUID     `json:"categoryIds"`
	BrandIDs    []uuid.UUID     `json:"brandIds"`
	UserID      *uuid.UUID      `json:"userId"`
}

// ValidateCode handles POST /promos/validate. The response mirrors the
// collaborator contract consumed by storefront clients:
// {success, valid, data:{promoCode}, message}.
func (h *Handler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promo service not configured", nil)
		return
	}
	var payload validateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
	}
	items := scopeItems(payload)
	result, err := h.Svc.Validate(r.Context(), payload.Code, payload.UserID, payload.OrderAmount, items)
	if err != nil {
		message, ok := eligibilityMessage(err)
		if !ok {
			if obs.PromoValidationTotal != nil {
				obs.PromoValidationTotal.WithLabelValues("error").Inc()
			}
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to validate promo code", nil)
			return
		}
		if obs.PromoValidationTotal != nil {
			obs.PromoValidationTotal.WithLabelValues("invalid").Inc()
		}
		common.JSON(w, http.StatusOK, map[string]any{
			"success": true,
			"valid":   false,
			"message": message,
		})
		return
	}
	if obs.PromoValidationTotal != nil {
		obs.PromoValidationTotal.WithLabelValues("valid").Inc()
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"valid":   true,
		"data":    result,
		"message": "promo code applied",
	})
}

// scopeItems turns the flat id lists from the request into scoping items. The
// storefront sends ids only, so each id is treated as one line with the whole
// order amount; scoped eligibility is then re-derived server side at quote and
// checkout time from the actual cart.
func scopeItems(payload validateRequest) []Item {
	var items []Item
	for i := range payload.ProductIDs {
		items = append(items, Item{ProductID: &payload.ProductIDs[i], Subtotal: payload.OrderAmount})
	}
	for i := range payload.CategoryIDs {
		items = append(items, Item{CategoryID: &payload.CategoryIDs[i], Subtotal: payload.OrderAmount})
	}
	for i := range payload.BrandIDs {
		items = append(items, Item{BrandID: &payload.BrandIDs[i], Subtotal: payload.OrderAmount})
	}
	return items
}

func eligibilityMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrNotEligible):
		return "promo code is not valid for this order", true
	case errors.Is(err, ErrInactive):
		return "promo code is not active", true
	case errors.Is(err, ErrExpired):
		return "promo code has expired", true
	case errors.Is(err, ErrMinimumOrderUnmet):
		return "order amount does not meet the promo minimum", true
	case errors.Is(err, ErrUsageLimitReached):
		return "promo code usage limit reached", true
	case errors.Is(err, ErrPerUserLimitReached):
		return "you have already used this promo code", true
	case errors.Is(err, ErrUnknownType):
		return "promo code is misconfigured", true
	default:
		return "", false
	}
}

type upsertRequest struct {
	Code           string          `json:"code" validate:"required,min=2,max=64"`
	Type           string          `json:"type" validate:"required,oneof=percentage fixed_amount free_shipping"`
	Value          decimal.Decimal `json:"value"`
	MinOrderAmount decimal.Decimal `json:"minOrderAmount"`
	ProductIDs     []uuid.UUID     `json:"productIds"`
	CategoryIDs    []uuid.UUID     `json:"categoryIds"`
	BrandIDs       []uuid.UUID     `json:"brandIds"`
	StartsAt       *time.Time      `json:"startsAt"`
	EndsAt         *time.Time      `json:"endsAt"`
	UsageLimit     *int32          `json:"usageLimit"`
	PerUserLimit   *int32          `json:"perUserLimit"`
	Active         bool            `json:"active"`
}

func (p upsertRequest) rule() Rule {
	return Rule{
		Code:           p.Code,
		Type:           p.Type,
		Value:          p.Value,
		MinOrderAmount: p.MinOrderAmount,
		ProductIDs:     p.ProductIDs,
		CategoryIDs:    p.CategoryIDs,
		BrandIDs:       p.BrandIDs,
		StartsAt:       p.StartsAt,
		EndsAt:         p.EndsAt,
		UsageLimit:     p.UsageLimit,
		PerUserLimit:   p.PerUserLimit,
		Active:         p.Active,
	}
}

// Create handles POST /admin/promos.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodeUpsert(w, r)
	if !ok {
		return
	}
	created, err := h.Store.Create(r.Context(), payload.rule())
	if err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "promo code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to create promo", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Update handles PUT /admin/promos/{code}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodeUpsert(w, r)
	if !ok {
		return
	}
	payload.Code = chi.URLParam(r, "code")
	updated, err := h.Store.Update(r.Context(), payload.rule())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "promo not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to update promo", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// List handles GET /admin/promos.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promo store not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20, 100)
	rules, err := h.Store.List(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list promos", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rules})
}

func (h *Handler) decodeUpsert(w http.ResponseWriter, r *http.Request) (upsertRequest, bool) {
	if h == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promo store not configured", nil)
		return upsertRequest{}, false
	}
	var payload upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return upsertRequest{}, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return upsertRequest{}, false
		}
	}
	if payload.Value.IsNegative() {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "value must not be negative", nil)
		return upsertRequest{}, false
	}
	return payload, true
}
