package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/glowmart/backend-glow/internal/common"
	"github.com/glowmart/backend-glow/internal/obs"
	"github.com/glowmart/backend-glow/internal/pricing"
	"github.com/glowmart/backend-glow/internal/promo"
)

// Handler exposes cart endpoints over chi.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

func (h *Handler) identity(r *http.Request) (*uuid.UUID, *string) {
	if raw, ok := common.UserID(r.Context()); ok {
		if id, err := uuid.Parse(raw); err == nil {
			return &id, nil
		}
	}
	if anon := r.Header.Get("X-Anon-Id"); anon != "" {
		return nil, &anon
	}
	return nil, nil
}

func (h *Handler) userID(r *http.Request) *uuid.UUID {
	uid, _ := h.identity(r)
	return uid
}

// EnsureCart returns the caller's active cart, creating one if needed.
func (h *Handler) EnsureCart(w http.ResponseWriter, r *http.Request) {
	userID, anonID := h.identity(r)
	c, err := h.Svc.Ensure(r.Context(), userID, anonID)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "sign in or supply X-Anon-Id", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not load cart", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c})
}

// GetCart returns a cart with its lines.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	c, items, err := h.Svc.Get(r.Context(), cartID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"cart":  c,
		"items": items,
	}})
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// AddItem adds a product to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	item, err := h.Svc.AddItem(r.Context(), cartID, productID, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": item})
}

type updateItemRequest struct {
	Quantity *int  `json:"quantity" validate:"omitempty,gt=0"`
	Selected *bool `json:"selected"`
}

// UpdateItem changes a line's quantity or selection flag.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if req.Quantity == nil && req.Selected == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "nothing to update", nil)
		return
	}
	if req.Quantity != nil {
		if err := h.Svc.UpdateQuantity(r.Context(), cartID, itemID, *req.Quantity); err != nil {
			h.writeError(w, err)
			return
		}
	}
	if req.Selected != nil {
		if err := h.Svc.SetSelected(r.Context(), cartID, itemID, *req.Selected); err != nil {
			h.writeError(w, err)
			return
		}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"updated": true}})
}

// RemoveItem deletes a line from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), cartID, itemID); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"deleted": true}})
}

type applyPromoRequest struct {
	Code string `json:"code" validate:"required,min=1,max=64"`
}

// ApplyPromo validates a code against the selected lines and attaches it.
func (h *Handler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var req applyPromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	result, err := h.Svc.ApplyPromo(r.Context(), cartID, req.Code, h.userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// RemovePromo detaches the applied promo code.
func (h *Handler) RemovePromo(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.RemovePromo(r.Context(), cartID); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"removed": true}})
}

type quoteRequest struct {
	Zone string `json:"zone" validate:"required,oneof=insideZone outsideZone"`
}

// Quote prices the cart's selected lines for a delivery zone.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	breakdown, err := h.Svc.Quote(r.Context(), cartID, pricing.Zone(req.Zone), h.userID(r))
	if err != nil {
		if obs.QuoteTotal != nil {
			obs.QuoteTotal.WithLabelValues(req.Zone, "error").Inc()
		}
		h.writeError(w, err)
		return
	}
	if obs.QuoteTotal != nil {
		obs.QuoteTotal.WithLabelValues(req.Zone, "ok").Inc()
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": breakdown})
}

func (h *Handler) cartID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart or item not found", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrUnavailable):
		common.JSONError(w, http.StatusConflict, "PRODUCT_UNAVAILABLE", err.Error(), nil)
	case errors.Is(err, promo.ErrNotEligible),
		errors.Is(err, promo.ErrInactive),
		errors.Is(err, promo.ErrExpired),
		errors.Is(err, promo.ErrMinimumOrderUnmet),
		errors.Is(err, promo.ErrUsageLimitReached),
		errors.Is(err, promo.ErrPerUserLimitReached):
		common.JSONError(w, http.StatusUnprocessableEntity, "PROMO_NOT_ELIGIBLE", err.Error(), nil)
	case errors.Is(err, promo.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "PROMO_NOT_FOUND", "promo code not found", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unexpected error", nil)
	}
}
