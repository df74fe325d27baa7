package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/glowmart/backend-glow/internal/cart"
	"github.com/glowmart/backend-glow/internal/common"
	"github.com/glowmart/backend-glow/internal/inventory"
	"github.com/glowmart/backend-glow/internal/obs"
	"github.com/glowmart/backend-glow/internal/order"
	"github.com/glowmart/backend-glow/internal/pricing"
	"github.com/glowmart/backend-glow/internal/promo"
)

// Handler exposes the checkout endpoint.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type addressRequest struct {
	ReceiverName string `json:"receiverName" validate:"required,min=2,max=120"`
	Phone        string `json:"phone" validate:"required,min=6,max=32"`
	AddressLine  string `json:"addressLine" validate:"required,min=5,max=255"`
	City         string `json:"city" validate:"required,min=2,max=120"`
	PostalCode   string `json:"postalCode" validate:"required,min=3,max=16"`
}

type createRequest struct {
	CartID  string         `json:"cartId" validate:"required,uuid4"`
	Zone    string         `json:"zone" validate:"required,oneof=insideZone outsideZone"`
	Address addressRequest `json:"address" validate:"required"`
}

// Create runs checkout for the caller's cart.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	raw, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user id", nil)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	cartID, err := uuid.Parse(req.CartID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}

	out, err := h.Svc.Create(r.Context(), userID, Input{
		CartID: cartID,
		Zone:   pricing.Zone(req.Zone),
		Address: order.Address{
			ReceiverName: req.Address.ReceiverName,
			Phone:        req.Address.Phone,
			AddressLine:  req.Address.AddressLine,
			City:         req.Address.City,
			PostalCode:   req.Address.PostalCode,
		},
	})
	if err != nil {
		if obs.CheckoutTotal != nil {
			obs.CheckoutTotal.WithLabelValues("error").Inc()
		}
		h.writeError(w, err)
		return
	}
	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues("ok").Inc()
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrCartNotOwned):
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "cart belongs to another user", nil)
	case errors.Is(err, ErrEmptySelection):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "no items selected for checkout", nil)
	case errors.Is(err, inventory.ErrInsufficientStock):
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error(), nil)
	case errors.Is(err, promo.ErrNotFound):
		common.JSONError(w, http.StatusUnprocessableEntity, "PROMO_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, promo.ErrNotEligible),
		errors.Is(err, promo.ErrInactive),
		errors.Is(err, promo.ErrExpired),
		errors.Is(err, promo.ErrMinimumOrderUnmet),
		errors.Is(err, promo.ErrUsageLimitReached),
		errors.Is(err, promo.ErrPerUserLimitReached):
		common.JSONError(w, http.StatusUnprocessableEntity, "PROMO_NOT_ELIGIBLE", err.Error(), nil)
	case errors.Is(err, pricing.ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
	}
}
