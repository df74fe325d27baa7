package wishlist

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the wishlist entry does not exist.
var ErrNotFound = errors.New("wishlist: not found")

// Entry is a saved product joined with its current catalog snapshot.
type Entry struct {
	ProductID     uuid.UUID        `json:"productId"`
	Title         string           `json:"title"`
	Slug          string           `json:"slug"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	Status        string           `json:"status"`
	AddedAt       time.Time        `json:"addedAt"`
}

// Store persists per-user wishlists.
type Store interface {
	Add(ctx context.Context, userID, productID uuid.UUID) error
	Remove(ctx context.Context, userID, productID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]Entry, error)
	Contains(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

// NewStore constructs a Store over the given pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

func (s *pgStore) Add(ctx context.Context, userID, productID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO wishlist_items (user_id, product_id)
VALUES ($1, $2) ON CONFLICT (user_id, product_id) DO NOTHING`, userID, productID)
	return err
}

func (s *pgStore) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM wishlist_items
WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) List(ctx context.Context, userID uuid.UUID) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `SELECT w.product_id, p.title, p.slug, p.price, p.original_price, p.status, w.created_at
FROM wishlist_items w
JOIN products p ON p.id = w.product_id
WHERE w.user_id = $1
ORDER BY w.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ProductID, &e.Title, &e.Slug, &e.Price, &e.OriginalPrice, &e.Status, &e.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *pgStore) Contains(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM wishlist_items WHERE user_id = $1 AND product_id = $2)`, userID, productID).Scan(&exists)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}
	return exists, nil
}
