package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type names routed through asynq.
const (
	TypeLowStockAlert = "stock:low_alert"
	TypeOrderCreated  = "order:created"
)

// LowStockPayload notifies ops that a product crossed its low-stock threshold.
type LowStockPayload struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	Stock     int    `json:"stock"`
	Threshold int    `json:"threshold"`
	Status    string `json:"status"`
}

// OrderCreatedPayload fans out order confirmation email and webhooks.
type OrderCreatedPayload struct {
	OrderID string `json:"orderId"`
	UserID  string `json:"userId"`
	Email   string `json:"email,omitempty"`
	Total   string `json:"total"`
}

// NewLowStockAlert builds the low-stock alert task.
func NewLowStockAlert(p LowStockPayload) (*asynq.Task, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal low stock payload: %w", err)
	}
	return asynq.NewTask(TypeLowStockAlert, body, asynq.MaxRetry(5)), nil
}

// NewOrderCreated builds the order-created notification task.
func NewOrderCreated(p OrderCreatedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal order created payload: %w", err)
	}
	return asynq.NewTask(TypeOrderCreated, body, asynq.MaxRetry(10)), nil
}
