package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/glowmart/backend-glow/internal/inventory"
)

// ErrNotFound indicates the requested catalog entity does not exist.
var ErrNotFound = errors.New("catalog: not found")

// ErrDuplicateSlug indicates a product slug collision on create.
var ErrDuplicateSlug = errors.New("catalog: slug already exists")

// Product is the catalog record, carrying the pricing snapshot fields line
// items are hydrated from.
type Product struct {
	ID                uuid.UUID         `json:"id"`
	Title             string            `json:"title"`
	Slug              string            `json:"slug"`
	Description       string            `json:"description,omitempty"`
	BrandID           *uuid.UUID        `json:"brandId,omitempty"`
	CategoryID        *uuid.UUID        `json:"categoryId,omitempty"`
	Price             decimal.Decimal   `json:"price"`
	OriginalPrice     *decimal.Decimal  `json:"originalPrice,omitempty"`
	TaxPercent        *decimal.Decimal  `json:"taxPercent,omitempty"`
	FreeDelivery      bool              `json:"freeDelivery"`
	ShippingInside    *decimal.Decimal  `json:"shippingInsideZone,omitempty"`
	ShippingOutside   *decimal.Decimal  `json:"shippingOutsideZone,omitempty"`
	Stock             int               `json:"stock"`
	LowStockThreshold int               `json:"lowStockThreshold"`
	TrackInventory    bool              `json:"trackInventory"`
	Status            inventory.Status  `json:"status"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// Brand is a product manufacturer.
type Brand struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// Category is a product grouping.
type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// ListParams captures product listing filters.
type ListParams struct {
	Query    string
	Category string
	Brand    string
	Status   string
	Limit    int
	Offset   int
}

// Store provides catalog database access.
type Store interface {
	ListProducts(ctx context.Context, p ListParams) ([]Product, int64, error)
	GetProductBySlug(ctx context.Context, slug string) (Product, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) (Product, error)
	ListBrands(ctx context.Context) ([]Brand, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const productColumns = `id, title, slug, description, brand_id, category_id, price, original_price,
tax_percent, free_delivery, shipping_inside, shipping_outside, stock, low_stock_threshold,
track_inventory, status, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Description, &p.BrandID, &p.CategoryID,
		&p.Price, &p.OriginalPrice, &p.TaxPercent, &p.FreeDelivery,
		&p.ShippingInside, &p.ShippingOutside, &p.Stock, &p.LowStockThreshold,
		&p.TrackInventory, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *pgStore) ListProducts(ctx context.Context, params ListParams) ([]Product, int64, error) {
	where := []string{"status <> 'discontinued'"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q := strings.TrimSpace(params.Query); q != "" {
		where = append(where, "title ILIKE "+arg("%"+q+"%"))
	}
	if params.Category != "" {
		where = append(where, "category_id = (SELECT id FROM categories WHERE slug = "+arg(params.Category)+")")
	}
	if params.Brand != "" {
		where = append(where, "brand_id = (SELECT id FROM brands WHERE slug = "+arg(params.Brand)+")")
	}
	if params.Status != "" {
		where = append(where, "status = "+arg(params.Status))
	}
	clause := strings.Join(where, " AND ")

	var total int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM products WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + productColumns + " FROM products WHERE " + clause +
		" ORDER BY created_at DESC LIMIT " + arg(params.Limit) + " OFFSET " + arg(params.Offset)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (s *pgStore) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE slug = $1", slug)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (s *pgStore) GetProductByID(ctx context.Context, id uuid.UUID) (Product, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (s *pgStore) CreateProduct(ctx context.Context, p Product) (Product, error) {
	row := s.pool.QueryRow(ctx, `INSERT INTO products
(title, slug, description, brand_id, category_id, price, original_price, tax_percent,
 free_delivery, shipping_inside, shipping_outside, stock, low_stock_threshold, track_inventory, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING `+productColumns,
		p.Title, p.Slug, p.Description, p.BrandID, p.CategoryID, p.Price, p.OriginalPrice, p.TaxPercent,
		p.FreeDelivery, p.ShippingInside, p.ShippingOutside, p.Stock, p.LowStockThreshold, p.TrackInventory, p.Status)
	created, err := scanProduct(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Product{}, ErrDuplicateSlug
		}
		return Product{}, err
	}
	return created, nil
}

func (s *pgStore) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	row := s.pool.QueryRow(ctx, `UPDATE products SET
title = $2, description = $3, brand_id = $4, category_id = $5, price = $6, original_price = $7,
tax_percent = $8, free_delivery = $9, shipping_inside = $10, shipping_outside = $11,
low_stock_threshold = $12, track_inventory = $13, status = $14, updated_at = now()
WHERE id = $1
RETURNING `+productColumns,
		p.ID, p.Title, p.Description, p.BrandID, p.CategoryID, p.Price, p.OriginalPrice,
		p.TaxPercent, p.FreeDelivery, p.ShippingInside, p.ShippingOutside,
		p.LowStockThreshold, p.TrackInventory, p.Status)
	updated, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return updated, nil
}

func (s *pgStore) ListBrands(ctx context.Context) ([]Brand, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, slug FROM brands ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var brands []Brand
	for rows.Next() {
		var b Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.Slug); err != nil {
			return nil, err
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

func (s *pgStore) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, slug FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
