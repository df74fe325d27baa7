package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/glowmart/backend-glow/internal/cart"
	"github.com/glowmart/backend-glow/internal/inventory"
	"github.com/glowmart/backend-glow/internal/order"
	"github.com/glowmart/backend-glow/internal/pricing"
)

type fakeCartStore struct {
	cart  cart.Cart
	items []cart.Item
}

func (f *fakeCartStore) CreateCart(context.Context, *uuid.UUID, *string, time.Time) (cart.Cart, error) {
	return cart.Cart{}, nil
}

func (f *fakeCartStore) GetCart(_ context.Context, id uuid.UUID) (cart.Cart, error) {
	if f.cart.ID != id {
		return cart.Cart{}, cart.ErrNotFound
	}
	return f.cart, nil
}

func (f *fakeCartStore) FindActiveByUser(context.Context, uuid.UUID) (cart.Cart, error) {
	return cart.Cart{}, cart.ErrNotFound
}

func (f *fakeCartStore) FindActiveByAnon(context.Context, string) (cart.Cart, error) {
	return cart.Cart{}, cart.ErrNotFound
}

func (f *fakeCartStore) TouchCart(context.Context, uuid.UUID, time.Time) error  { return nil }
func (f *fakeCartStore) SetPromoCode(context.Context, uuid.UUID, *string) error { return nil }

func (f *fakeCartStore) ListItems(context.Context, uuid.UUID) ([]cart.Item, error) {
	return f.items, nil
}

func (f *fakeCartStore) FindItemByProduct(context.Context, uuid.UUID, uuid.UUID) (cart.Item, error) {
	return cart.Item{}, cart.ErrNotFound
}

func (f *fakeCartStore) InsertItem(_ context.Context, it cart.Item) (cart.Item, error) {
	return it, nil
}

func (f *fakeCartStore) UpdateItemQuantity(context.Context, uuid.UUID, int) error { return nil }
func (f *fakeCartStore) SetItemSelected(context.Context, uuid.UUID, bool) error   { return nil }
func (f *fakeCartStore) DeleteItem(context.Context, uuid.UUID, uuid.UUID) error   { return nil }

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCreateRejectsForeignCart(t *testing.T) {
	owner := uuid.New()
	cartID := uuid.New()
	store := &fakeCartStore{cart: cart.Cart{ID: cartID, UserID: &owner}}
	svc := &Service{Pool: &pgxpool.Pool{}, Carts: store, Orders: order.NewStore(nil)}

	_, err := svc.Create(context.Background(), uuid.New(), Input{CartID: cartID, Zone: pricing.ZoneInside})
	require.ErrorIs(t, err, ErrCartNotOwned)
}

func TestCreateRejectsEmptySelection(t *testing.T) {
	userID := uuid.New()
	cartID := uuid.New()
	store := &fakeCartStore{
		cart: cart.Cart{ID: cartID, UserID: &userID},
		items: []cart.Item{
			{ID: uuid.New(), CartID: cartID, ProductID: uuid.New(), Quantity: 1, UnitPrice: dec("100"), Selected: false},
		},
	}
	svc := &Service{Pool: &pgxpool.Pool{}, Carts: store, Orders: order.NewStore(nil)}

	_, err := svc.Create(context.Background(), userID, Input{CartID: cartID, Zone: pricing.ZoneInside})
	require.ErrorIs(t, err, ErrEmptySelection)
}

func TestCreateUnknownCart(t *testing.T) {
	svc := &Service{Pool: &pgxpool.Pool{}, Carts: &fakeCartStore{}, Orders: order.NewStore(nil)}
	_, err := svc.Create(context.Background(), uuid.New(), Input{CartID: uuid.New(), Zone: pricing.ZoneInside})
	require.ErrorIs(t, err, cart.ErrNotFound)
}

type stockRow struct {
	title     string
	stock     int
	threshold int
	track     bool
	status    inventory.Status
}

func (r stockRow) Scan(dest ...any) error {
	*dest[0].(*string) = r.title
	*dest[1].(*int) = r.stock
	*dest[2].(*int) = r.threshold
	*dest[3].(*bool) = r.track
	*dest[4].(*inventory.Status) = r.status
	return nil
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// fakeTx feeds canned product rows to the row-lock reserver and records what
// the checkout flow executes against the transaction.
type fakeTx struct {
	products   map[uuid.UUID]stockRow
	execs      []string
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) { return f, nil }
func (f *fakeTx) Commit(context.Context) error          { f.committed = true; return nil }
func (f *fakeTx) Rollback(context.Context) error        { f.rolledBack = true; return nil }

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (f *fakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (f *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }

func (f *fakeTx) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	id, ok := args[0].(uuid.UUID)
	if !ok {
		return errRow{err: pgx.ErrNoRows}
	}
	row, found := f.products[id]
	if !found {
		return errRow{err: pgx.ErrNoRows}
	}
	return row
}

func (f *fakeTx) Conn() *pgx.Conn { return nil }

type fakeBeginner struct{ tx *fakeTx }

func (f *fakeBeginner) Begin(context.Context) (pgx.Tx, error) { return f.tx, nil }

type fakeOrderStore struct{ created []order.Order }

func (f *fakeOrderStore) Create(_ context.Context, _ pgx.Tx, o order.Order, _ []order.Item) (order.Order, error) {
	o.ID = uuid.New()
	f.created = append(f.created, o)
	return o, nil
}

func (f *fakeOrderStore) Get(context.Context, uuid.UUID) (order.Order, error) {
	return order.Order{}, order.ErrNotFound
}

func (f *fakeOrderStore) GetForUser(context.Context, uuid.UUID, uuid.UUID) (order.Order, error) {
	return order.Order{}, order.ErrNotFound
}

func (f *fakeOrderStore) ListForUser(context.Context, uuid.UUID, int, int) ([]order.Order, int64, error) {
	return nil, 0, nil
}

func (f *fakeOrderStore) List(context.Context, order.ListParams) ([]order.Order, int64, error) {
	return nil, 0, nil
}

func (f *fakeOrderStore) Items(context.Context, uuid.UUID) ([]order.Item, error) {
	return nil, nil
}

func (f *fakeOrderStore) UpdateStatus(context.Context, uuid.UUID, order.Status, order.Status) error {
	return nil
}

func TestCreateAbortsWhenAnyLineIsShortOnStock(t *testing.T) {
	userID := uuid.New()
	cartID := uuid.New()
	serumID := uuid.New()
	maskID := uuid.New()
	store := &fakeCartStore{
		cart: cart.Cart{ID: cartID, UserID: &userID},
		items: []cart.Item{
			{ID: uuid.New(), CartID: cartID, ProductID: serumID, Title: "Serum", Quantity: 2, UnitPrice: dec("250"), Selected: true},
			{ID: uuid.New(), CartID: cartID, ProductID: maskID, Title: "Mask", Quantity: 3, UnitPrice: dec("99.95"), Selected: true},
		},
	}
	tx := &fakeTx{products: map[uuid.UUID]stockRow{
		serumID: {title: "Serum", stock: 10, track: true, status: inventory.StatusActive},
		maskID:  {title: "Mask", stock: 2, track: true, status: inventory.StatusActive},
	}}
	orders := &fakeOrderStore{}
	svc := &Service{Pool: &fakeBeginner{tx: tx}, Carts: store, Orders: orders}

	_, err := svc.Create(context.Background(), userID, Input{CartID: cartID, Zone: pricing.ZoneInside})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	// the second line's shortage discards the first line's decrement too
	require.Empty(t, orders.created)
	require.True(t, tx.rolledBack)
	require.False(t, tx.committed)
	require.Len(t, tx.execs, 1)
}

func TestCreateDecrementsStockAndClearsCart(t *testing.T) {
	userID := uuid.New()
	cartID := uuid.New()
	serumID := uuid.New()
	maskID := uuid.New()
	store := &fakeCartStore{
		cart: cart.Cart{ID: cartID, UserID: &userID},
		items: []cart.Item{
			{ID: uuid.New(), CartID: cartID, ProductID: serumID, Title: "Serum", Quantity: 2, UnitPrice: dec("250"), Selected: true},
			{ID: uuid.New(), CartID: cartID, ProductID: maskID, Title: "Mask", Quantity: 1, UnitPrice: dec("99.95"), Selected: true},
		},
	}
	tx := &fakeTx{products: map[uuid.UUID]stockRow{
		serumID: {title: "Serum", stock: 10, track: true, status: inventory.StatusActive},
		maskID:  {title: "Mask", stock: 2, track: true, status: inventory.StatusActive},
	}}
	orders := &fakeOrderStore{}
	svc := &Service{Pool: &fakeBeginner{tx: tx}, Carts: store, Orders: orders, Currency: "BDT"}

	out, err := svc.Create(context.Background(), userID, Input{CartID: cartID, Zone: pricing.ZoneInside})
	require.NoError(t, err)
	require.True(t, tx.committed)
	require.Len(t, orders.created, 1)
	require.True(t, out.Order.Total.Equal(dec("599.95")))
	// two product updates, two cart line deletes, one promo clear
	require.Len(t, tx.execs, 5)
}

func TestOrderLines(t *testing.T) {
	tax := dec("7.5")
	items := []cart.Item{
		{ProductID: uuid.New(), Title: "Serum", Slug: "serum", Quantity: 3, UnitPrice: dec("250"), TaxPercent: &tax},
		{ProductID: uuid.New(), Title: "Mask", Slug: "mask", Quantity: 1, UnitPrice: dec("99.95")},
	}
	lines := orderLines(items)
	require.Len(t, lines, 2)
	require.True(t, lines[0].LineTotal.Equal(dec("750")))
	require.NotNil(t, lines[0].TaxPercent)
	require.True(t, lines[1].LineTotal.Equal(dec("99.95")))
	require.Nil(t, lines[1].TaxPercent)
}

func TestSelectionSubtotal(t *testing.T) {
	items := []cart.Item{
		{Quantity: 2, UnitPrice: dec("100")},
		{Quantity: 1, UnitPrice: dec("49.50")},
	}
	require.True(t, selectionSubtotal(items).Equal(dec("249.50")))
}
