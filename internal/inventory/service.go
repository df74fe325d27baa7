package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/glowmart/backend-glow/internal/tasks"
)

// ErrNotFound indicates the product does not exist.
var ErrNotFound = errors.New("inventory: product not found")

// Adjustment is the result of a persisted stock change.
type Adjustment struct {
	ProductID string `json:"productId"`
	Stock     int    `json:"stock"`
	Status    Status `json:"status"`
}

// Service applies stock adjustments atomically. The product row is locked for
// the duration of the transaction so two concurrent subtracts cannot both read
// the same pre-update level and oversubscribe inventory.
type Service struct {
	Pool   *pgxpool.Pool
	Tasks  *asynq.Client
	Logger *zerolog.Logger
}

// AdjustStock loads the product under a row lock, applies the operation, and
// persists the new level plus derived status. On ErrInsufficientStock nothing
// is written.
func (s *Service) AdjustStock(ctx context.Context, productID string, op Op, qty int) (Adjustment, error) {
	if s == nil || s.Pool == nil {
		return Adjustment{}, errors.New("inventory service not configured")
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Adjustment{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var (
		title     string
		stock     int
		threshold int
		track     bool
		status    Status
	)
	err = tx.QueryRow(ctx, `SELECT title, stock, low_stock_threshold, track_inventory, status
FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&title, &stock, &threshold, &track, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Adjustment{}, ErrNotFound
		}
		return Adjustment{}, err
	}

	newStock, err := ApplyTo(stock, op, qty, track)
	if err != nil {
		return Adjustment{}, err
	}
	newStatus := NextStatus(status, newStock, threshold)

	if _, err := tx.Exec(ctx, `UPDATE products SET stock = $2, status = $3, updated_at = now()
WHERE id = $1`, productID, newStock, newStatus); err != nil {
		return Adjustment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Adjustment{}, err
	}

	result := Adjustment{ProductID: productID, Stock: newStock, Status: newStatus}
	if newStatus == StatusLowStock || newStatus == StatusOutOfStock {
		s.enqueueAlert(ctx, productID, title, newStock, threshold, newStatus)
	}
	return result, nil
}

// ApplyTo is Adjust with the package's error wrapping kept in one place for
// callers that already hold the current level (e.g. checkout inside its own
// transaction).
func ApplyTo(current int, op Op, qty int, track bool) (int, error) {
	next, err := Adjust(current, op, qty, track)
	if err != nil {
		return 0, fmt.Errorf("apply %s(%d): %w", op, qty, err)
	}
	return next, nil
}

func (s *Service) enqueueAlert(ctx context.Context, productID, title string, stock, threshold int, status Status) {
	if s.Tasks == nil {
		return
	}
	task, err := tasks.NewLowStockAlert(tasks.LowStockPayload{
		ProductID: productID,
		Title:     title,
		Stock:     stock,
		Threshold: threshold,
		Status:    string(status),
	})
	if err == nil {
		_, err = s.Tasks.EnqueueContext(ctx, task)
	}
	if err != nil && s.Logger != nil {
		s.Logger.Error().Err(err).Str("product_id", productID).Msg("enqueue low stock alert")
	}
}
