package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/glowmart/backend-glow/internal/catalog"
	"github.com/glowmart/backend-glow/internal/inventory"
	"github.com/glowmart/backend-glow/internal/pricing"
	"github.com/glowmart/backend-glow/internal/promo"
)

type fakeStore struct {
	carts map[uuid.UUID]Cart
	items map[uuid.UUID]Item
}

func newFakeStore() *fakeStore {
	return &fakeStore{carts: map[uuid.UUID]Cart{}, items: map[uuid.UUID]Item{}}
}

func (f *fakeStore) CreateCart(_ context.Context, userID *uuid.UUID, anonID *string, expiresAt time.Time) (Cart, error) {
	c := Cart{ID: uuid.New(), UserID: userID, AnonID: anonID, ExpiresAt: expiresAt}
	f.carts[c.ID] = c
	return c, nil
}

func (f *fakeStore) GetCart(_ context.Context, id uuid.UUID) (Cart, error) {
	c, ok := f.carts[id]
	if !ok {
		return Cart{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) FindActiveByUser(_ context.Context, userID uuid.UUID) (Cart, error) {
	for _, c := range f.carts {
		if c.UserID != nil && *c.UserID == userID {
			return c, nil
		}
	}
	return Cart{}, ErrNotFound
}

func (f *fakeStore) FindActiveByAnon(_ context.Context, anonID string) (Cart, error) {
	for _, c := range f.carts {
		if c.AnonID != nil && *c.AnonID == anonID {
			return c, nil
		}
	}
	return Cart{}, ErrNotFound
}

func (f *fakeStore) TouchCart(_ context.Context, id uuid.UUID, expiresAt time.Time) error {
	c, ok := f.carts[id]
	if !ok {
		return ErrNotFound
	}
	c.ExpiresAt = expiresAt
	f.carts[id] = c
	return nil
}

func (f *fakeStore) SetPromoCode(_ context.Context, id uuid.UUID, code *string) error {
	c, ok := f.carts[id]
	if !ok {
		return ErrNotFound
	}
	c.PromoCode = code
	f.carts[id] = c
	return nil
}

func (f *fakeStore) ListItems(_ context.Context, cartID uuid.UUID) ([]Item, error) {
	var out []Item
	for _, it := range f.items {
		if it.CartID == cartID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeStore) FindItemByProduct(_ context.Context, cartID, productID uuid.UUID) (Item, error) {
	for _, it := range f.items {
		if it.CartID == cartID && it.ProductID == productID {
			return it, nil
		}
	}
	return Item{}, ErrNotFound
}

func (f *fakeStore) InsertItem(_ context.Context, item Item) (Item, error) {
	item.ID = uuid.New()
	f.items[item.ID] = item
	return item, nil
}

func (f *fakeStore) UpdateItemQuantity(_ context.Context, itemID uuid.UUID, quantity int) error {
	it, ok := f.items[itemID]
	if !ok {
		return ErrNotFound
	}
	it.Quantity = quantity
	f.items[itemID] = it
	return nil
}

func (f *fakeStore) SetItemSelected(_ context.Context, itemID uuid.UUID, selected bool) error {
	it, ok := f.items[itemID]
	if !ok {
		return ErrNotFound
	}
	it.Selected = selected
	f.items[itemID] = it
	return nil
}

func (f *fakeStore) DeleteItem(_ context.Context, cartID, itemID uuid.UUID) error {
	it, ok := f.items[itemID]
	if !ok || it.CartID != cartID {
		return ErrNotFound
	}
	delete(f.items, itemID)
	return nil
}

type fakeProducts struct {
	products map[uuid.UUID]catalog.Product
}

func (f *fakeProducts) GetProductByID(_ context.Context, id uuid.UUID) (catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

type fakePromos struct {
	result promo.Result
	err    error
	calls  int
}

func (f *fakePromos) Validate(_ context.Context, _ string, _ *uuid.UUID, _ decimal.Decimal, _ []promo.Item) (promo.Result, error) {
	f.calls++
	return f.result, f.err
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(store *fakeStore, products *fakeProducts, promos *fakePromos) *Service {
	var validator PromoValidator
	if promos != nil {
		validator = promos
	}
	return &Service{
		Store:    store,
		Products: products,
		Promos:   validator,
		Pricing: pricing.Options{
			InsideZoneDefault:  dec("50"),
			OutsideZoneDefault: dec("100"),
		},
		TTL: time.Hour,
		Now: func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestEnsureReusesActiveCart(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeProducts{}, nil)
	userID := uuid.New()

	first, err := svc.Ensure(context.Background(), &userID, nil)
	require.NoError(t, err)
	second, err := svc.Ensure(context.Background(), &userID, nil)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, store.carts, 1)
}

func TestEnsureRequiresIdentity(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeProducts{}, nil)
	_, err := svc.Ensure(context.Background(), nil, nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAddItemSnapshotsProduct(t *testing.T) {
	store := newFakeStore()
	productID := uuid.New()
	orig := dec("150")
	tax := dec("7.5")
	inside := dec("40")
	products := &fakeProducts{products: map[uuid.UUID]catalog.Product{
		productID: {
			ID:             productID,
			Title:          "Rose Water Toner",
			Slug:           "rose-water-toner",
			Price:          dec("120"),
			OriginalPrice:  &orig,
			TaxPercent:     &tax,
			ShippingInside: &inside,
			Stock:          10,
			TrackInventory: true,
			Status:         inventory.StatusActive,
		},
	}}
	svc := newTestService(store, products, nil)
	userID := uuid.New()
	c, err := svc.Ensure(context.Background(), &userID, nil)
	require.NoError(t, err)

	item, err := svc.AddItem(context.Background(), c.ID, productID, 2)
	require.NoError(t, err)
	require.Equal(t, 2, item.Quantity)
	require.True(t, item.Selected)
	require.True(t, item.UnitPrice.Equal(dec("120")))
	require.NotNil(t, item.OriginalPrice)
	require.True(t, item.OriginalPrice.Equal(dec("150")))
	require.NotNil(t, item.ShippingInside)

	// adding again merges into the existing line
	merged, err := svc.AddItem(context.Background(), c.ID, productID, 3)
	require.NoError(t, err)
	require.Equal(t, 5, merged.Quantity)
	require.Len(t, store.items, 1)
}

func TestAddItemMergeRechecksStock(t *testing.T) {
	store := newFakeStore()
	productID := uuid.New()
	products := &fakeProducts{products: map[uuid.UUID]catalog.Product{
		productID: {
			ID:             productID,
			Price:          dec("120"),
			Stock:          5,
			TrackInventory: true,
			Status:         inventory.StatusActive,
		},
	}}
	svc := newTestService(store, products, nil)
	userID := uuid.New()
	c, err := svc.Ensure(context.Background(), &userID, nil)
	require.NoError(t, err)

	item, err := svc.AddItem(context.Background(), c.ID, productID, 3)
	require.NoError(t, err)

	// 3 already in the cart, stock 5: adding 3 more would exceed stock
	_, err = svc.AddItem(context.Background(), c.ID, productID, 3)
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 3, store.items[item.ID].Quantity)

	// topping up to exactly the stock level is fine
	merged, err := svc.AddItem(context.Background(), c.ID, productID, 2)
	require.NoError(t, err)
	require.Equal(t, 5, merged.Quantity)
}

func TestAddItemRejectsUnavailable(t *testing.T) {
	store := newFakeStore()
	discontinued := uuid.New()
	lowStock := uuid.New()
	products := &fakeProducts{products: map[uuid.UUID]catalog.Product{
		discontinued: {ID: discontinued, Price: dec("10"), Status: inventory.StatusDiscontinued},
		lowStock:     {ID: lowStock, Price: dec("10"), Stock: 1, TrackInventory: true, Status: inventory.StatusLowStock},
	}}
	svc := newTestService(store, products, nil)
	userID := uuid.New()
	c, err := svc.Ensure(context.Background(), &userID, nil)
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), c.ID, discontinued, 1)
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = svc.AddItem(context.Background(), c.ID, lowStock, 2)
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = svc.AddItem(context.Background(), c.ID, uuid.New(), 1)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestQuotePricesSelectedLinesOnly(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeProducts{}, nil)
	userID := uuid.New()
	c, err := svc.Ensure(context.Background(), &userID, nil)
	require.NoError(t, err)

	tax := dec("10")
	selectedItem, err := store.InsertItem(context.Background(), Item{
		CartID: c.ID, ProductID: uuid.New(), Quantity: 2,
		UnitPrice: dec("100"), TaxPercent: &tax, Selected: true,
	})
	require.NoError(t, err)
	_, err = store.InsertItem(context.Background(), Item{
		CartID: c.ID, ProductID: uuid.New(), Quantity: 1,
		UnitPrice: dec("999"), Selected: false,
	})
	require.NoError(t, err)

	breakdown, err := svc.Quote(context.Background(), c.ID, pricing.ZoneInside, nil)
	require.NoError(t, err)
	require.True(t, breakdown.Subtotal.Equal(dec("200")), breakdown.Subtotal.String())
	require.True(t, breakdown.Tax.Equal(dec("20")))
	require.True(t, breakdown.Shipping.Equal(dec("50")))
	require.Equal(t, 2, breakdown.TotalQuantity)
	// cart page policy: shipping excluded from the total
	require.True(t, breakdown.Total.Equal(dec("220")), breakdown.Total.String())

	require.NoError(t, svc.SetSelected(context.Background(), c.ID, selectedItem.ID, false))
	empty, err := svc.Quote(context.Background(), c.ID, pricing.ZoneInside, nil)
	require.NoError(t, err)
	require.True(t, empty.Subtotal.IsZero())
	require.Equal(t, 0, empty.TotalQuantity)
}

func TestQuoteAppliesStoredPromo(t *testing.T) {
	store := newFakeStore()
	promos := &fakePromos{result: promo.Result{
		Promo:    pricing.PromoCode{Code: "GLOW10", Type: pricing.PromoPercentage, Value: dec("10")},
		Discount: dec("20"),
	}}
	svc := newTestService(store, &fakeProducts{}, promos)
	userID := uuid.New()
	c, err := svc.Ensure(context.Background(), &userID, nil)
	require.NoError(t, err)
	_, err = store.InsertItem(context.Background(), Item{
		CartID: c.ID, ProductID: uuid.New(), Quantity: 2, UnitPrice: dec("100"), Selected: true,
	})
	require.NoError(t, err)

	result, err := svc.ApplyPromo(context.Background(), c.ID, "GLOW10", &userID)
	require.NoError(t, err)
	require.Equal(t, "GLOW10", result.Promo.Code)
	stored, err := store.GetCart(context.Background(), c.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PromoCode)

	breakdown, err := svc.Quote(context.Background(), c.ID, pricing.ZoneInside, &userID)
	require.NoError(t, err)
	require.True(t, breakdown.PromoDiscount.Equal(dec("20")), breakdown.PromoDiscount.String())
	require.True(t, breakdown.Total.Equal(dec("180")), breakdown.Total.String())
}

func TestQuoteIgnoresInvalidStoredPromo(t *testing.T) {
	store := newFakeStore()
	promos := &fakePromos{err: promo.ErrExpired}
	svc := newTestService(store, &fakeProducts{}, promos)
	userID := uuid.New()
	c, err := svc.Ensure(context.Background(), &userID, nil)
	require.NoError(t, err)
	code := "GLOW10"
	require.NoError(t, store.SetPromoCode(context.Background(), c.ID, &code))
	_, err = store.InsertItem(context.Background(), Item{
		CartID: c.ID, ProductID: uuid.New(), Quantity: 1, UnitPrice: dec("100"), Selected: true,
	})
	require.NoError(t, err)

	breakdown, err := svc.Quote(context.Background(), c.ID, pricing.ZoneInside, &userID)
	require.NoError(t, err)
	require.True(t, breakdown.PromoDiscount.IsZero())
	require.True(t, breakdown.Total.Equal(dec("100")))
}
