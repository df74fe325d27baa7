package wishlist

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/glowmart/backend-glow/internal/cart"
	"github.com/glowmart/backend-glow/internal/common"
)

// Handler exposes wishlist endpoints. All routes require authentication.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return uuid.Nil, false
	}
	return id, true
}

// List returns the caller's wishlist.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	entries, err := h.Svc.List(r.Context(), uid)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not list wishlist", nil)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

// Add saves a product. Adding an already-saved product is a no-op.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	pid, ok := productID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Add(r.Context(), uid, pid); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not save product", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"saved": true}})
}

// Remove deletes a saved product.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	pid, ok := productID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Remove(r.Context(), uid, pid); err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not in wishlist", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not remove product", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"removed": true}})
}

type moveRequest struct {
	CartID string `json:"cartId" validate:"required,uuid4"`
}

// MoveToCart moves a saved product into the given cart.
func (h *Handler) MoveToCart(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	pid, ok := productID(w, r)
	if !ok {
		return
	}
	var req moveRequest
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
	item, err := h.Svc.MoveToCart(r.Context(), uid, cartID, pid)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not in wishlist", nil)
		case errors.Is(err, cart.ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
		case errors.Is(err, cart.ErrUnavailable):
			common.JSONError(w, http.StatusConflict, "PRODUCT_UNAVAILABLE", err.Error(), nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not move product", nil)
		}
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": item})
}
