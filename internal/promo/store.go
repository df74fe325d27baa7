package promo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the promo code does not exist.
var ErrNotFound = errors.New("promo not found")

// ErrDuplicateCode indicates an admin tried to create a code that already exists.
var ErrDuplicateCode = errors.New("promo code already exists")

// Store provides database accessors for promo codes and their usage ledger.
type Store interface {
	GetByCode(ctx context.Context, code string) (Rule, error)
	CountUsageByUser(ctx context.Context, promoID, userID uuid.UUID) (int64, error)
	UsageExists(ctx context.Context, promoID, orderID uuid.UUID) (bool, error)
	RecordUsage(ctx context.Context, promoID, orderID, userID uuid.UUID) error
	Create(ctx context.Context, r Rule) (Rule, error)
	Update(ctx context.Context, r Rule) (Rule, error)
	List(ctx context.Context, limit, offset int) ([]Rule, error)
}

// NewStore constructs a Store backed by a pgx connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const ruleColumns = `id, code, type, value, min_order_amount, product_ids, category_ids, brand_ids,
starts_at, ends_at, usage_limit, used_count, per_user_limit, active`

func scanRule(row pgx.Row) (Rule, error) {
	var (
		r        Rule
		startsAt *time.Time
		endsAt   *time.Time
	)
	err := row.Scan(&r.ID, &r.Code, &r.Type, &r.Value, &r.MinOrderAmount,
		&r.ProductIDs, &r.CategoryIDs, &r.BrandIDs,
		&startsAt, &endsAt, &r.UsageLimit, &r.UsedCount, &r.PerUserLimit, &r.Active)
	if err != nil {
		return Rule{}, err
	}
	r.StartsAt = startsAt
	r.EndsAt = endsAt
	return r, nil
}

func (s *pgStore) GetByCode(ctx context.Context, code string) (Rule, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM promo_codes WHERE lower(code) = lower($1)`, code)
	r, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rule{}, ErrNotFound
		}
		return Rule{}, err
	}
	return r, nil
}

func (s *pgStore) CountUsageByUser(ctx context.Context, promoID, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM promo_usages WHERE promo_id = $1 AND user_id = $2`, promoID, userID).Scan(&count)
	return count, err
}

func (s *pgStore) UsageExists(ctx context.Context, promoID, orderID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM promo_usages WHERE promo_id = $1 AND order_id = $2)`, promoID, orderID).Scan(&exists)
	return exists, err
}

func (s *pgStore) RecordUsage(ctx context.Context, promoID, orderID, userID uuid.UUID) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if _, err := tx.Exec(ctx, `INSERT INTO promo_usages (promo_id, order_id, user_id)
VALUES ($1, $2, $3)`, promoID, orderID, userID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// already settled for this order
			return nil
		}
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE promo_codes SET used_count = used_count + 1 WHERE id = $1`, promoID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *pgStore) Create(ctx context.Context, r Rule) (Rule, error) {
	row := s.pool.QueryRow(ctx, `INSERT INTO promo_codes
(code, type, value, min_order_amount, product_ids, category_ids, brand_ids, starts_at, ends_at, usage_limit, per_user_limit, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING `+ruleColumns,
		r.Code, r.Type, r.Value, r.MinOrderAmount, r.ProductIDs, r.CategoryIDs, r.BrandIDs,
		r.StartsAt, r.EndsAt, r.UsageLimit, r.PerUserLimit, r.Active)
	created, err := scanRule(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Rule{}, ErrDuplicateCode
		}
		return Rule{}, err
	}
	return created, nil
}

func (s *pgStore) Update(ctx context.Context, r Rule) (Rule, error) {
	row := s.pool.QueryRow(ctx, `UPDATE promo_codes SET
type = $2, value = $3, min_order_amount = $4, product_ids = $5, category_ids = $6, brand_ids = $7,
starts_at = $8, ends_at = $9, usage_limit = $10, per_user_limit = $11, active = $12, updated_at = now()
WHERE lower(code) = lower($1)
RETURNING `+ruleColumns,
		r.Code, r.Type, r.Value, r.MinOrderAmount, r.ProductIDs, r.CategoryIDs, r.BrandIDs,
		r.StartsAt, r.EndsAt, r.UsageLimit, r.PerUserLimit, r.Active)
	updated, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rule{}, ErrNotFound
		}
		return Rule{}, err
	}
	return updated, nil
}

func (s *pgStore) List(ctx context.Context, limit, offset int) ([]Rule, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+ruleColumns+` FROM promo_codes ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rules []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}
