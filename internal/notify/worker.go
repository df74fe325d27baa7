package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/glowmart/backend-glow/internal/lock"
	"github.com/glowmart/backend-glow/internal/obs"
	"github.com/glowmart/backend-glow/internal/tasks"
)

// Worker consumes storefront notification tasks.
type Worker struct {
	Webhook  *WebhookClient
	Email    EmailNotifier
	OpsEmail string
	Currency string
	Locker   lock.Locker
	LockTTL  time.Duration
	Logger   *zerolog.Logger
}

func (w *Worker) lockTTL() time.Duration {
	if w.LockTTL > 0 {
		return w.LockTTL
	}
	return 10 * time.Minute
}

// HandleLowStockAlert emails ops about a product that crossed its threshold.
// A short-lived Redis lock per product suppresses duplicate alerts when
// several adjustments land around the same level.
func (w *Worker) HandleLowStockAlert(ctx context.Context, t *asynq.Task) error {
	var p tasks.LowStockPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode low stock payload: %v: %w", err, asynq.SkipRetry)
	}
	key := "lowstock:" + p.ProductID
	err := w.Locker.WithLock(ctx, key, w.lockTTL(), func(ctx context.Context) error {
		if obs.LowStockAlertsTotal != nil {
			obs.LowStockAlertsTotal.Inc()
		}
		if err := w.Email.LowStock(w.OpsEmail, p.Title, p.Stock, p.Threshold); err != nil {
			return fmt.Errorf("send low stock email: %w", err)
		}
		if w.Logger != nil {
			w.Logger.Warn().
				Str("product_id", p.ProductID).
				Int("stock", p.Stock).
				Int("threshold", p.Threshold).
				Str("status", p.Status).
				Msg("low stock alert")
		}
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// HandleOrderCreated fans out the confirmation email and the order webhook.
func (w *Worker) HandleOrderCreated(ctx context.Context, t *asynq.Task) error {
	var p tasks.OrderCreatedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode order created payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := w.Email.OrderCreated(p.Email, p.OrderID, p.Total, w.Currency); err != nil {
		if w.Logger != nil {
			w.Logger.Error().Err(err).Str("order_id", p.OrderID).Msg("send confirmation email")
		}
	}
	if w.Webhook != nil {
		if err := w.Webhook.Deliver(ctx, tasks.TypeOrderCreated, p.OrderID, p); err != nil {
			return fmt.Errorf("deliver order webhook: %w", err)
		}
	}
	return nil
}
