package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/glowmart/backend-glow/internal/cart"
	"github.com/glowmart/backend-glow/internal/inventory"
	"github.com/glowmart/backend-glow/internal/order"
	"github.com/glowmart/backend-glow/internal/pricing"
	"github.com/glowmart/backend-glow/internal/promo"
	"github.com/glowmart/backend-glow/internal/tasks"
)

// ErrEmptySelection indicates the cart has no selected lines to check out.
var ErrEmptySelection = errors.New("checkout: no items selected")

// ErrCartNotOwned indicates the cart belongs to someone else.
var ErrCartNotOwned = errors.New("checkout: cart not owned by caller")

// Input is the checkout request payload after validation.
type Input struct {
	CartID  uuid.UUID
	Zone    pricing.Zone
	Address order.Address
}

// Output is the created order plus its priced lines.
type Output struct {
	Order order.Order  `json:"order"`
	Items []order.Item `json:"items"`
}

// Beginner starts the checkout transaction. *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// StockReserver decrements stock for every line of an order inside the
// checkout transaction. A shortage on any line fails the whole order.
type StockReserver interface {
	Reserve(ctx context.Context, tx pgx.Tx, items []cart.Item) error
}

// Service turns a cart's selected lines into an order. The whole flow runs in
// one transaction so a stock failure on any line leaves nothing behind.
type Service struct {
	Pool     Beginner
	Carts    cart.Store
	Orders   order.Store
	Promos   *promo.Service
	Tasks    *asynq.Client
	Logger   *zerolog.Logger
	Stock    StockReserver
	Pricing  pricing.Options
	Currency string
}

// Create prices the selection, decrements stock, and persists the order.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in Input) (Output, error) {
	if s == nil || s.Pool == nil || s.Carts == nil || s.Orders == nil {
		return Output{}, errors.New("checkout service not configured")
	}

	c, err := s.Carts.GetCart(ctx, in.CartID)
	if err != nil {
		return Output{}, err
	}
	if c.UserID != nil && *c.UserID != userID {
		return Output{}, ErrCartNotOwned
	}
	items, err := s.Carts.ListItems(ctx, in.CartID)
	if err != nil {
		return Output{}, err
	}
	selected := selectedLines(items)
	if len(selected) == 0 {
		return Output{}, ErrEmptySelection
	}

	// the breakdown the customer pays; checkout includes shipping in the total
	opts := s.Pricing
	opts.IncludeShippingInTotal = true

	var appliedPromo *pricing.PromoCode
	var promoResult promo.Result
	if c.PromoCode != nil && s.Promos != nil {
		promoResult, err = s.Promos.Validate(ctx, *c.PromoCode, &userID,
			selectionSubtotal(selected), promoItems(selected))
		if err != nil {
			return Output{}, fmt.Errorf("promo %q: %w", *c.PromoCode, err)
		}
		appliedPromo = &promoResult.Promo
	}

	lines, selectedIDs := cart.PricingLines(items)
	breakdown, err := pricing.Quote(lines, selectedIDs, in.Zone, appliedPromo, opts)
	if err != nil {
		return Output{}, err
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return Output{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	reserver := s.Stock
	if reserver == nil {
		reserver = rowLockReserver{}
	}
	if err := reserver.Reserve(ctx, tx, selected); err != nil {
		return Output{}, err
	}

	created, err := s.Orders.Create(ctx, tx, order.Order{
		UserID:           userID,
		CartID:           c.ID,
		Status:           order.StatusPending,
		Zone:             in.Zone,
		PromoCode:        c.PromoCode,
		Subtotal:         breakdown.Subtotal,
		OriginalSubtotal: breakdown.OriginalSubtotal,
		Discount:         breakdown.Discount,
		Tax:              breakdown.Tax,
		Shipping:         breakdown.Shipping,
		PromoDiscount:    breakdown.PromoDiscount,
		Total:            breakdown.Total,
		TotalQuantity:    breakdown.TotalQuantity,
		Currency:         s.Currency,
		Address:          in.Address,
	}, orderLines(selected))
	if err != nil {
		return Output{}, err
	}

	// checked-out lines leave the cart inside the same transaction
	for _, it := range selected {
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, it.ID); err != nil {
			return Output{}, err
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE carts SET promo_code = NULL, updated_at = now()
WHERE id = $1`, c.ID); err != nil {
		return Output{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Output{}, err
	}

	if c.PromoCode != nil && s.Promos != nil {
		if err := s.Promos.Settle(ctx, *c.PromoCode, created.ID, userID); err != nil && s.Logger != nil {
			s.Logger.Error().Err(err).
				Str("order_id", created.ID.String()).
				Str("code", *c.PromoCode).
				Msg("promo settlement failed")
		}
	}
	s.enqueueCreated(ctx, created)

	orderItems, err := s.Orders.Items(ctx, created.ID)
	if err != nil {
		orderItems = nil
	}
	return Output{Order: created, Items: orderItems}, nil
}

// rowLockReserver is the production StockReserver. It locks each product row
// so concurrent checkouts serialize on the same stock, decrementing line by
// line; any shortage aborts the order via the caller's rollback.
type rowLockReserver struct{}

func (rowLockReserver) Reserve(ctx context.Context, tx pgx.Tx, items []cart.Item) error {
	for _, it := range items {
		var (
			title     string
			stock     int
			threshold int
			track     bool
			status    inventory.Status
		)
		err := tx.QueryRow(ctx, `SELECT title, stock, low_stock_threshold, track_inventory, status
FROM products WHERE id = $1 FOR UPDATE`, it.ProductID).
			Scan(&title, &stock, &threshold, &track, &status)
		if err != nil {
			return fmt.Errorf("lock product %s: %w", it.ProductID, err)
		}
		next, err := inventory.ApplyTo(stock, inventory.OpSubtract, it.Quantity, track)
		if err != nil {
			if errors.Is(err, inventory.ErrInsufficientStock) {
				return fmt.Errorf("%s: %w", title, err)
			}
			return err
		}
		nextStatus := inventory.NextStatus(status, next, threshold)
		_, err = tx.Exec(ctx, `UPDATE products SET stock = $2, status = $3, updated_at = now()
WHERE id = $1`, it.ProductID, next, nextStatus)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) enqueueCreated(ctx context.Context, o order.Order) {
	if s.Tasks == nil {
		return
	}
	task, err := tasks.NewOrderCreated(tasks.OrderCreatedPayload{
		OrderID: o.ID.String(),
		UserID:  o.UserID.String(),
		Total:   o.Total.StringFixed(2),
	})
	if err == nil {
		_, err = s.Tasks.EnqueueContext(ctx, task)
	}
	if err != nil && s.Logger != nil {
		s.Logger.Error().Err(err).Str("order_id", o.ID.String()).Msg("enqueue order created task")
	}
}

func selectedLines(items []cart.Item) []cart.Item {
	out := make([]cart.Item, 0, len(items))
	for _, it := range items {
		if it.Selected {
			out = append(out, it)
		}
	}
	return out
}

func selectionSubtotal(items []cart.Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func promoItems(items []cart.Item) []promo.Item {
	out := make([]promo.Item, 0, len(items))
	for i := range items {
		it := items[i]
		out = append(out, promo.Item{
			ProductID:  &it.ProductID,
			CategoryID: it.CategoryID,
			BrandID:    it.BrandID,
			Subtotal:   it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))),
		})
	}
	return out
}

func orderLines(items []cart.Item) []order.Item {
	out := make([]order.Item, 0, len(items))
	for _, it := range items {
		out = append(out, order.Item{
			ProductID:  it.ProductID,
			Title:      it.Title,
			Slug:       it.Slug,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TaxPercent: it.TaxPercent,
			LineTotal:  it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))),
		})
	}
	return out
}
