package order

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/glowmart/backend-glow/internal/pricing"
)

// ErrNotFound indicates the order does not exist or is not visible to the caller.
var ErrNotFound = errors.New("order: not found")

// ErrInvalidTransition indicates a disallowed status change.
var ErrInvalidTransition = errors.New("order: invalid status transition")

// Status is the order lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusCancelled},
	StatusPaid:    {StatusShipped, StatusCancelled},
	StatusShipped: {StatusDelivered},
}

// CanTransition reports whether an order may move between the two states.
// Delivered and cancelled are terminal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Address is the delivery destination captured at checkout.
type Address struct {
	ReceiverName string `json:"receiverName"`
	Phone        string `json:"phone"`
	AddressLine  string `json:"addressLine"`
	City         string `json:"city"`
	PostalCode   string `json:"postalCode"`
}

// Order is an immutable snapshot of a priced checkout. The breakdown fields
// are copied from the calculator so later catalog edits never change what the
// customer was charged.
type Order struct {
	ID               uuid.UUID        `json:"id"`
	UserID           uuid.UUID        `json:"userId"`
	CartID           uuid.UUID        `json:"cartId"`
	Status           Status           `json:"status"`
	Zone             pricing.Zone     `json:"zone"`
	PromoCode        *string          `json:"promoCode,omitempty"`
	Subtotal         decimal.Decimal  `json:"subtotal"`
	OriginalSubtotal decimal.Decimal  `json:"originalSubtotal"`
	Discount         decimal.Decimal  `json:"discount"`
	Tax              decimal.Decimal  `json:"tax"`
	Shipping         decimal.Decimal  `json:"shipping"`
	PromoDiscount    decimal.Decimal  `json:"promoDiscount"`
	Total            decimal.Decimal  `json:"total"`
	TotalQuantity    int              `json:"totalQuantity"`
	Currency         string           `json:"currency"`
	Address          Address          `json:"address"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Item is one priced order line.
type Item struct {
	ID         uuid.UUID        `json:"id"`
	OrderID    uuid.UUID        `json:"orderId"`
	ProductID  uuid.UUID        `json:"productId"`
	Title      string           `json:"title"`
	Slug       string           `json:"slug"`
	Quantity   int              `json:"quantity"`
	UnitPrice  decimal.Decimal  `json:"unitPrice"`
	TaxPercent *decimal.Decimal `json:"taxPercent,omitempty"`
	LineTotal  decimal.Decimal  `json:"lineTotal"`
}

// ListParams filters admin order listings.
type ListParams struct {
	Status  *Status
	Page    int
	PerPage int
}

// Store is the order repository contract.
type Store interface {
	Create(ctx context.Context, tx pgx.Tx, o Order, items []Item) (Order, error)
	Get(ctx context.Context, id uuid.UUID) (Order, error)
	GetForUser(ctx context.Context, id, userID uuid.UUID) (Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page, perPage int) ([]Order, int64, error)
	List(ctx context.Context, p ListParams) ([]Order, int64, error)
	Items(ctx context.Context, orderID uuid.UUID) ([]Item, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error
}

// NewStore constructs a Store over the given pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

const orderColumns = `id, user_id, cart_id, status, zone, promo_code,
subtotal, original_subtotal, discount, tax, shipping, promo_discount, total, total_quantity,
currency, receiver_name, phone, address_line, city, postal_code, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.CartID, &o.Status, &o.Zone, &o.PromoCode,
		&o.Subtotal, &o.OriginalSubtotal, &o.Discount, &o.Tax, &o.Shipping,
		&o.PromoDiscount, &o.Total, &o.TotalQuantity,
		&o.Currency, &o.Address.ReceiverName, &o.Address.Phone, &o.Address.AddressLine,
		&o.Address.City, &o.Address.PostalCode, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	return o, nil
}

func (s *pgStore) Create(ctx context.Context, tx pgx.Tx, o Order, items []Item) (Order, error) {
	row := tx.QueryRow(ctx, `INSERT INTO orders
(user_id, cart_id, status, zone, promo_code,
 subtotal, original_subtotal, discount, tax, shipping, promo_discount, total, total_quantity,
 currency, receiver_name, phone, address_line, city, postal_code)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
RETURNING `+orderColumns,
		o.UserID, o.CartID, o.Status, o.Zone, o.PromoCode,
		o.Subtotal, o.OriginalSubtotal, o.Discount, o.Tax, o.Shipping, o.PromoDiscount,
		o.Total, o.TotalQuantity, o.Currency,
		o.Address.ReceiverName, o.Address.Phone, o.Address.AddressLine, o.Address.City, o.Address.PostalCode)
	created, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	for _, it := range items {
		_, err := tx.Exec(ctx, `INSERT INTO order_items
(order_id, product_id, title, slug, quantity, unit_price, tax_percent, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			created.ID, it.ProductID, it.Title, it.Slug, it.Quantity, it.UnitPrice, it.TaxPercent, it.LineTotal)
		if err != nil {
			return Order{}, err
		}
	}
	return created, nil
}

func (s *pgStore) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (s *pgStore) GetForUser(ctx context.Context, id, userID uuid.UUID) (Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID)
	return scanOrder(row)
}

func (s *pgStore) ListForUser(ctx context.Context, userID uuid.UUID, page, perPage int) ([]Order, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders
WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := collectOrders(rows)
	return out, total, err
}

func (s *pgStore) List(ctx context.Context, p ListParams) ([]Order, int64, error) {
	where, args := "", []any{}
	if p.Status != nil {
		where = " WHERE status = $1"
		args = append(args, *p.Status)
	}
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limitPos := len(args) + 1
	args = append(args, p.PerPage, (p.Page-1)*p.PerPage)
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders`+where+
			` ORDER BY created_at DESC LIMIT $`+strconv.Itoa(limitPos)+` OFFSET $`+strconv.Itoa(limitPos+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := collectOrders(rows)
	return out, total, err
}

func (s *pgStore) Items(ctx context.Context, orderID uuid.UUID) ([]Item, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, order_id, product_id, title, slug, quantity, unit_price, tax_percent, line_total
FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Title, &it.Slug,
			&it.Quantity, &it.UnitPrice, &it.TaxPercent, &it.LineTotal); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *pgStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	tag, err := s.pool.Exec(ctx, `UPDATE orders SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
