package inventory

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/glowmart/backend-glow/internal/common"
	"github.com/glowmart/backend-glow/internal/obs"
)

// Handler exposes the admin stock adjustment endpoint.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type adjustRequest struct {
	Op       string `json:"op" validate:"required,oneof=set add subtract"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

// AdjustStock handles POST /admin/products/{id}/stock.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "inventory service not configured", nil)
		return
	}
	productID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(productID); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	var payload adjustRequest
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

	result, err := h.Svc.AdjustStock(r.Context(), productID, Op(payload.Op), payload.Quantity)
	if err != nil {
		if obs.StockAdjustmentTotal != nil {
			obs.StockAdjustmentTotal.WithLabelValues(payload.Op, "error").Inc()
		}
		switch {
		case errors.Is(err, ErrInsufficientStock):
			common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", "stock cannot go negative for tracked inventory", nil)
		case errors.Is(err, ErrInvalidInput):
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		case errors.Is(err, ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to adjust stock", nil)
		}
		return
	}
	if obs.StockAdjustmentTotal != nil {
		obs.StockAdjustmentTotal.WithLabelValues(payload.Op, "ok").Inc()
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}
