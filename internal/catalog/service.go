package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/glowmart/backend-glow/internal/common"
)

const cachePrefix = "catalog:"

// Service orchestrates catalog reads with a read-through cache and exposes
// admin writes with invalidation.
type Service struct {
	store        Store
	cache        *Cache
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// NewService validates configuration and builds a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	return &Service{
		store:        cfg.Store,
		cache:        cfg.Cache,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
	}, nil
}

// ProductPage is a paginated product listing.
type ProductPage struct {
	Products   []Product         `json:"data"`
	Pagination common.Pagination `json:"pagination"`
}

// ListProducts returns a filtered page of products, cached per filter set.
func (s *Service) ListProducts(ctx context.Context, params ListParams, page int) (ProductPage, error) {
	if params.Limit <= 0 {
		params.Limit = s.defaultLimit
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}
	if page <= 0 {
		page = 1
	}
	params.Offset = (page - 1) * params.Limit

	key := listCacheKey(params, page)
	var cached ProductPage
	if ok, _ := s.cache.GetJSON(ctx, key, &cached); ok {
		return cached, nil
	}

	products, total, err := s.store.ListProducts(ctx, params)
	if err != nil {
		return ProductPage{}, err
	}
	if products == nil {
		products = []Product{}
	}
	result := ProductPage{
		Products:   products,
		Pagination: common.Pagination{Page: page, PerPage: params.Limit, TotalItems: total},
	}
	_ = s.cache.SetJSON(ctx, key, result)
	return result, nil
}

// GetProduct returns the detail payload for a slug.
func (s *Service) GetProduct(ctx context.Context, slug string) (Product, error) {
	key := cachePrefix + "product:" + slug
	var cached Product
	if ok, _ := s.cache.GetJSON(ctx, key, &cached); ok {
		return cached, nil
	}
	product, err := s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		return Product{}, err
	}
	_ = s.cache.SetJSON(ctx, key, product)
	return product, nil
}

// GetProductByID loads a product without caching; used by cart hydration
// where a stale price snapshot would leak into orders.
func (s *Service) GetProductByID(ctx context.Context, id uuid.UUID) (Product, error) {
	return s.store.GetProductByID(ctx, id)
}

// Brands lists all brands.
func (s *Service) Brands(ctx context.Context) ([]Brand, error) {
	key := cachePrefix + "brands"
	var cached []Brand
	if ok, _ := s.cache.GetJSON(ctx, key, &cached); ok {
		return cached, nil
	}
	brands, err := s.store.ListBrands(ctx)
	if err != nil {
		return nil, err
	}
	if brands == nil {
		brands = []Brand{}
	}
	_ = s.cache.SetJSON(ctx, key, brands)
	return brands, nil
}

// Categories lists all categories.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	key := cachePrefix + "categories"
	var cached []Category
	if ok, _ := s.cache.GetJSON(ctx, key, &cached); ok {
		return cached, nil
	}
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []Category{}
	}
	_ = s.cache.SetJSON(ctx, key, categories)
	return categories, nil
}

// CreateProduct persists a new product and invalidates catalog caches.
func (s *Service) CreateProduct(ctx context.Context, p Product) (Product, error) {
	created, err := s.store.CreateProduct(ctx, p)
	if err != nil {
		return Product{}, err
	}
	_ = s.cache.InvalidatePrefix(ctx, cachePrefix)
	return created, nil
}

// UpdateProduct persists product changes and invalidates catalog caches.
func (s *Service) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	updated, err := s.store.UpdateProduct(ctx, p)
	if err != nil {
		return Product{}, err
	}
	_ = s.cache.InvalidatePrefix(ctx, cachePrefix)
	return updated, nil
}

func listCacheKey(params ListParams, page int) string {
	v := url.Values{}
	v.Set("q", params.Query)
	v.Set("cat", params.Category)
	v.Set("brand", params.Brand)
	v.Set("status", params.Status)
	v.Set("page", strconv.Itoa(page))
	v.Set("limit", strconv.Itoa(params.Limit))
	return fmt.Sprintf("%sproducts:%s", cachePrefix, v.Encode())
}
