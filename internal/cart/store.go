package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the requested cart or item could not be located.
var ErrNotFound = errors.New("cart: not found")

// Cart is the persisted cart head row. The server is authoritative; clients
// hold only the cart id.
type Cart struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *uuid.UUID `json:"userId,omitempty"`
	AnonID    *string    `json:"anonId,omitempty"`
	PromoCode *string    `json:"promoCode,omitempty"`
	ExpiresAt time.Time  `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Item is a cart line with its price snapshot taken at add time.
type Item struct {
	ID              uuid.UUID        `json:"id"`
	CartID          uuid.UUID        `json:"cartId"`
	ProductID       uuid.UUID        `json:"productId"`
	CategoryID      *uuid.UUID       `json:"categoryId,omitempty"`
	BrandID         *uuid.UUID       `json:"brandId,omitempty"`
	Title           string           `json:"title"`
	Slug            string           `json:"slug"`
	Quantity        int              `json:"quantity"`
	UnitPrice       decimal.Decimal  `json:"unitPrice"`
	OriginalPrice   *decimal.Decimal `json:"originalPrice,omitempty"`
	TaxPercent      *decimal.Decimal `json:"taxPercent,omitempty"`
	FreeDelivery    bool             `json:"freeDelivery"`
	ShippingInside  *decimal.Decimal `json:"shippingInsideZone,omitempty"`
	ShippingOutside *decimal.Decimal `json:"shippingOutsideZone,omitempty"`
	Selected        bool             `json:"selected"`
}

// Store is the cart repository contract. The pricing calculator stays
// decoupled from whatever backs it.
type Store interface {
	CreateCart(ctx context.Context, userID *uuid.UUID, anonID *string, expiresAt time.Time) (Cart, error)
	GetCart(ctx context.Context, id uuid.UUID) (Cart, error)
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (Cart, error)
	FindActiveByAnon(ctx context.Context, anonID string) (Cart, error)
	TouchCart(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	SetPromoCode(ctx context.Context, id uuid.UUID, code *string) error

	ListItems(ctx context.Context, cartID uuid.UUID) ([]Item, error)
	FindItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (Item, error)
	InsertItem(ctx context.Context, item Item) (Item, error)
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	SetItemSelected(ctx context.Context, itemID uuid.UUID, selected bool) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const cartColumns = `id, user_id, anon_id, promo_code, expires_at, created_at, updated_at`

func scanCart(row pgx.Row) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.AnonID, &c.PromoCode, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, err
	}
	return c, nil
}

func (s *pgStore) CreateCart(ctx context.Context, userID *uuid.UUID, anonID *string, expiresAt time.Time) (Cart, error) {
	row := s.pool.QueryRow(ctx, `INSERT INTO carts (user_id, anon_id, expires_at)
VALUES ($1, $2, $3) RETURNING `+cartColumns, userID, anonID, expiresAt)
	return scanCart(row)
}

func (s *pgStore) GetCart(ctx context.Context, id uuid.UUID) (Cart, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE id = $1`, id)
	return scanCart(row)
}

func (s *pgStore) FindActiveByUser(ctx context.Context, userID uuid.UUID) (Cart, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts
WHERE user_id = $1 AND expires_at > now() ORDER BY created_at DESC LIMIT 1`, userID)
	return scanCart(row)
}

func (s *pgStore) FindActiveByAnon(ctx context.Context, anonID string) (Cart, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts
WHERE anon_id = $1 AND expires_at > now() ORDER BY created_at DESC LIMIT 1`, anonID)
	return scanCart(row)
}

func (s *pgStore) TouchCart(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE carts SET expires_at = $2, updated_at = now() WHERE id = $1`, id, expiresAt)
	return err
}

func (s *pgStore) SetPromoCode(ctx context.Context, id uuid.UUID, code *string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE carts SET promo_code = $2, updated_at = now() WHERE id = $1`, id, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const itemColumns = `id, cart_id, product_id, category_id, brand_id, title, slug, quantity,
unit_price, original_price, tax_percent, free_delivery, shipping_inside, shipping_outside, selected`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.CategoryID, &it.BrandID, &it.Title, &it.Slug,
		&it.Quantity, &it.UnitPrice, &it.OriginalPrice, &it.TaxPercent, &it.FreeDelivery,
		&it.ShippingInside, &it.ShippingOutside, &it.Selected)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return it, nil
}

func (s *pgStore) ListItems(ctx context.Context, cartID uuid.UUID) ([]Item, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+itemColumns+` FROM cart_items
WHERE cart_id = $1 ORDER BY created_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *pgStore) FindItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (Item, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM cart_items
WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	return scanItem(row)
}

func (s *pgStore) InsertItem(ctx context.Context, item Item) (Item, error) {
	row := s.pool.QueryRow(ctx, `INSERT INTO cart_items
(cart_id, product_id, category_id, brand_id, title, slug, quantity, unit_price, original_price,
 tax_percent, free_delivery, shipping_inside, shipping_outside, selected)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING `+itemColumns,
		item.CartID, item.ProductID, item.CategoryID, item.BrandID, item.Title, item.Slug,
		item.Quantity, item.UnitPrice, item.OriginalPrice, item.TaxPercent, item.FreeDelivery,
		item.ShippingInside, item.ShippingOutside, item.Selected)
	return scanItem(row)
}

func (s *pgStore) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	tag, err := s.pool.Exec(ctx, `UPDATE cart_items SET quantity = $2, updated_at = now() WHERE id = $1`, itemID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) SetItemSelected(ctx context.Context, itemID uuid.UUID, selected bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE cart_items SET selected = $2, updated_at = now() WHERE id = $1`, itemID, selected)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
