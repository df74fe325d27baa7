package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/glowmart/backend-glow/internal/common"
)

// AdminHandler exposes the back-office order endpoints.
type AdminHandler struct {
	Store    Store
	Validate *validator.Validate
}

// List returns orders across all users, optionally filtered by status.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20, 100)
	params := ListParams{Page: page, PerPage: perPage}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := Status(raw)
		switch st {
		case StatusPending, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled:
			params.Status = &st
		default:
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown status filter", nil)
			return
		}
	}
	orders, total, err := h.Store.List(r.Context(), params)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	if orders == nil {
		orders = []Order{}
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       orders,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending paid shipped delivered cancelled"`
}

// UpdateStatus advances an order through the lifecycle.
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	o, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	to := Status(req.Status)
	if !CanTransition(o.Status, to) {
		common.JSONError(w, http.StatusConflict, "INVALID_STATUS",
			"cannot move order from "+string(o.Status)+" to "+string(to), nil)
		return
	}
	if err := h.Store.UpdateStatus(r.Context(), o.ID, o.Status, to); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			common.JSONError(w, http.StatusConflict, "INVALID_STATUS", "order status changed concurrently", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update order", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"status": to}})
}
