package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glowmart/backend-glow/internal/common"
	"github.com/glowmart/backend-glow/internal/inventory"
)

// Handler serves catalog endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// Products handles GET /products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	q := r.URL.Query()
	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}
	limit := 0
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 {
		limit = l
	}
	params := ListParams{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		Brand:    q.Get("brand"),
		Status:   q.Get("status"),
		Limit:    limit,
	}
	result, err := h.Svc.ListProducts(r.Context(), params, page)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list products", nil)
		return
	}
	common.JSON(w, http.StatusOK, result)
}

// ProductDetail handles GET /products/{slug}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	product, err := h.Svc.GetProduct(r.Context(), slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load product", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}

// Brands handles GET /brands.
func (h *Handler) Brands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.Svc.Brands(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list brands", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": brands})
}

// Categories handles GET /categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Svc.Categories(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list categories", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": categories})
}

type productRequest struct {
	Title             string           `json:"title" validate:"required,min=2,max=200"`
	Slug              string           `json:"slug" validate:"required,min=2,max=200"`
	Description       string           `json:"description"`
	BrandID           *uuid.UUID       `json:"brandId"`
	CategoryID        *uuid.UUID       `json:"categoryId"`
	Price             decimal.Decimal  `json:"price"`
	OriginalPrice     *decimal.Decimal `json:"originalPrice"`
	TaxPercent        *decimal.Decimal `json:"taxPercent"`
	FreeDelivery      bool             `json:"freeDelivery"`
	ShippingInside    *decimal.Decimal `json:"shippingInsideZone"`
	ShippingOutside   *decimal.Decimal `json:"shippingOutsideZone"`
	Stock             int              `json:"stock" validate:"gte=0"`
	LowStockThreshold int              `json:"lowStockThreshold" validate:"gte=0"`
	TrackInventory    bool             `json:"trackInventory"`
	Status            string           `json:"status" validate:"omitempty,oneof=active inactive discontinued low_stock out_of_stock"`
}

func (p productRequest) product() Product {
	status := inventory.Status(p.Status)
	if status == "" {
		status = inventory.StatusActive
	}
	return Product{
		Title:             p.Title,
		Slug:              p.Slug,
		Description:       p.Description,
		BrandID:           p.BrandID,
		CategoryID:        p.CategoryID,
		Price:             p.Price,
		OriginalPrice:     p.OriginalPrice,
		TaxPercent:        p.TaxPercent,
		FreeDelivery:      p.FreeDelivery,
		ShippingInside:    p.ShippingInside,
		ShippingOutside:   p.ShippingOutside,
		Stock:             p.Stock,
		LowStockThreshold: p.LowStockThreshold,
		TrackInventory:    p.TrackInventory,
		Status:            status,
	}
}

// AdminCreate handles POST /admin/products.
func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}
	created, err := h.Svc.CreateProduct(r.Context(), payload.product())
	if err != nil {
		if errors.Is(err, ErrDuplicateSlug) {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "slug already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to create product", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// AdminUpdate handles PUT /admin/products/{id}.
func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	payload, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}
	product := payload.product()
	product.ID = id
	updated, err := h.Svc.UpdateProduct(r.Context(), product)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to update product", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

func (h *Handler) decodeProduct(w http.ResponseWriter, r *http.Request) (productRequest, bool) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return productRequest{}, false
	}
	var payload productRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return productRequest{}, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return productRequest{}, false
		}
	}
	if payload.Price.IsNegative() {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "price must not be negative", nil)
		return productRequest{}, false
	}
	return payload, true
}
