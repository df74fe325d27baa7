package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glowmart/backend-glow/internal/catalog"
	"github.com/glowmart/backend-glow/internal/inventory"
	"github.com/glowmart/backend-glow/internal/pricing"
	"github.com/glowmart/backend-glow/internal/promo"
)

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("cart: invalid input")

// ErrUnavailable is returned when a product cannot be added to a cart.
var ErrUnavailable = errors.New("cart: product unavailable")

// ProductSource hydrates line items from the catalog.
type ProductSource interface {
	GetProductByID(ctx context.Context, id uuid.UUID) (catalog.Product, error)
}

// PromoValidator evaluates a promo code against the order context.
type PromoValidator interface {
	Validate(ctx context.Context, code string, userID *uuid.UUID, orderAmount decimal.Decimal, items []promo.Item) (promo.Result, error)
}

// Service encapsulates cart domain operations. Pricing policy arrives via
// Options so the cart page's no-shipping-in-total behavior is configuration,
// not code.
type Service struct {
	Store    Store
	Products ProductSource
	Promos   PromoValidator
	Pricing  pricing.Options
	TTL      time.Duration
	Now      func() time.Time
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Ensure loads or creates the active cart for the given identity.
func (s *Service) Ensure(ctx context.Context, userID *uuid.UUID, anonID *string) (Cart, error) {
	if s == nil || s.Store == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	expires := s.now().Add(s.ttl())
	switch {
	case userID != nil:
		existing, err := s.Store.FindActiveByUser(ctx, *userID)
		if err == nil {
			_ = s.Store.TouchCart(ctx, existing.ID, expires)
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Cart{}, err
		}
		return s.Store.CreateCart(ctx, userID, nil, expires)
	case anonID != nil && *anonID != "":
		existing, err := s.Store.FindActiveByAnon(ctx, *anonID)
		if err == nil {
			_ = s.Store.TouchCart(ctx, existing.ID, expires)
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Cart{}, err
		}
		return s.Store.CreateCart(ctx, nil, anonID, expires)
	default:
		return Cart{}, fmt.Errorf("user or anonymous id required: %w", ErrInvalidInput)
	}
}

// Get returns the cart head and its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Cart, []Item, error) {
	c, err := s.Store.GetCart(ctx, id)
	if err != nil {
		return Cart{}, nil, err
	}
	items, err := s.Store.ListItems(ctx, id)
	if err != nil {
		return Cart{}, nil, err
	}
	return c, items, nil
}

// AddItem inserts or increments a line, snapshotting the product's pricing
// fields at add time.
func (s *Service) AddItem(ctx context.Context, cartID, productID uuid.UUID, qty int) (Item, error) {
	if qty <= 0 {
		return Item{}, fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}
	if _, err := s.Store.GetCart(ctx, cartID); err != nil {
		return Item{}, err
	}

	product, err := s.Products.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Item{}, fmt.Errorf("product not found: %w", ErrUnavailable)
		}
		return Item{}, err
	}
	if product.Status == inventory.StatusInactive || product.Status == inventory.StatusDiscontinued {
		return Item{}, fmt.Errorf("product is %s: %w", product.Status, ErrUnavailable)
	}

	existing, err := s.Store.FindItemByProduct(ctx, cartID, productID)
	if err == nil {
		// stock check applies to the merged line, not just the increment
		combined := existing.Quantity + qty
		if product.TrackInventory && product.Stock < combined {
			return Item{}, fmt.Errorf("only %d in stock: %w", product.Stock, ErrUnavailable)
		}
		if err := s.Store.UpdateItemQuantity(ctx, existing.ID, combined); err != nil {
			return Item{}, err
		}
		existing.Quantity = combined
		s.touch(ctx, cartID)
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Item{}, err
	}

	if product.TrackInventory && product.Stock < qty {
		return Item{}, fmt.Errorf("only %d in stock: %w", product.Stock, ErrUnavailable)
	}

	item, err := s.Store.InsertItem(ctx, Item{
		CartID:          cartID,
		ProductID:       product.ID,
		CategoryID:      product.CategoryID,
		BrandID:         product.BrandID,
		Title:           product.Title,
		Slug:            product.Slug,
		Quantity:        qty,
		UnitPrice:       product.Price,
		OriginalPrice:   product.OriginalPrice,
		TaxPercent:      product.TaxPercent,
		FreeDelivery:    product.FreeDelivery,
		ShippingInside:  product.ShippingInside,
		ShippingOutside: product.ShippingOutside,
		Selected:        true,
	})
	if err != nil {
		return Item{}, err
	}
	s.touch(ctx, cartID)
	return item, nil
}

// UpdateQuantity sets a line's quantity.
func (s *Service) UpdateQuantity(ctx context.Context, cartID, itemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}
	if err := s.Store.UpdateItemQuantity(ctx, itemID, qty); err != nil {
		return err
	}
	s.touch(ctx, cartID)
	return nil
}

// SetSelected toggles whether a line participates in pricing and checkout.
func (s *Service) SetSelected(ctx context.Context, cartID, itemID uuid.UUID, selected bool) error {
	if err := s.Store.SetItemSelected(ctx, itemID, selected); err != nil {
		return err
	}
	s.touch(ctx, cartID)
	return nil
}

// RemoveItem deletes a line.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	if err := s.Store.DeleteItem(ctx, cartID, itemID); err != nil {
		return err
	}
	s.touch(ctx, cartID)
	return nil
}

// ApplyPromo validates the code against the selected lines and attaches it.
func (s *Service) ApplyPromo(ctx context.Context, cartID uuid.UUID, code string, userID *uuid.UUID) (promo.Result, error) {
	if s.Promos == nil {
		return promo.Result{}, errors.New("promo validator not configured")
	}
	if code == "" {
		return promo.Result{}, fmt.Errorf("promo code required: %w", ErrInvalidInput)
	}
	if _, err := s.Store.GetCart(ctx, cartID); err != nil {
		return promo.Result{}, err
	}
	items, err := s.Store.ListItems(ctx, cartID)
	if err != nil {
		return promo.Result{}, err
	}
	selectedLines := selectedOnly(items)
	result, err := s.Promos.Validate(ctx, code, userID, lineSubtotal(selectedLines), promoItems(selectedLines))
	if err != nil {
		return promo.Result{}, err
	}
	applied := result.Promo.Code
	if err := s.Store.SetPromoCode(ctx, cartID, &applied); err != nil {
		return promo.Result{}, err
	}
	s.touch(ctx, cartID)
	return result, nil
}

// RemovePromo detaches any applied promo code.
func (s *Service) RemovePromo(ctx context.Context, cartID uuid.UUID) error {
	if err := s.Store.SetPromoCode(ctx, cartID, nil); err != nil {
		return err
	}
	s.touch(ctx, cartID)
	return nil
}

// Quote recomputes the price breakdown for the cart's selected lines. Nothing
// is persisted; the result has no identity and changes whenever the selection,
// zone, or promo changes.
func (s *Service) Quote(ctx context.Context, cartID uuid.UUID, zone pricing.Zone, userID *uuid.UUID) (pricing.Breakdown, error) {
	c, items, err := s.Get(ctx, cartID)
	if err != nil {
		return pricing.Breakdown{}, err
	}

	var appliedPromo *pricing.PromoCode
	if c.PromoCode != nil && s.Promos != nil {
		selectedLines := selectedOnly(items)
		result, err := s.Promos.Validate(ctx, *c.PromoCode, userID, lineSubtotal(selectedLines), promoItems(selectedLines))
		if err == nil {
			appliedPromo = &result.Promo
		}
		// an invalid promo silently prices as no promo; the apply endpoint is
		// where eligibility errors surface to the user
	}

	lineItems, selected := PricingLines(items)
	return pricing.Quote(lineItems, selected, zone, appliedPromo, s.Pricing)
}

func (s *Service) touch(ctx context.Context, cartID uuid.UUID) {
	_ = s.Store.TouchCart(ctx, cartID, s.now().Add(s.ttl()))
}

// PricingLines converts cart lines into calculator inputs plus the selected-id
// set derived from each line's Selected flag.
func PricingLines(items []Item) ([]pricing.LineItem, map[string]bool) {
	lines := make([]pricing.LineItem, 0, len(items))
	selected := make(map[string]bool, len(items))
	for _, it := range items {
		id := it.ProductID.String()
		var charges *pricing.ZoneCharges
		if it.ShippingInside != nil || it.ShippingOutside != nil {
			charges = &pricing.ZoneCharges{InsideZone: decimal.Zero, OutsideZone: decimal.Zero}
			if it.ShippingInside != nil {
				charges.InsideZone = *it.ShippingInside
			}
			if it.ShippingOutside != nil {
				charges.OutsideZone = *it.ShippingOutside
			}
		}
		lines = append(lines, pricing.LineItem{
			ProductID:     id,
			UnitPrice:     it.UnitPrice,
			OriginalPrice: it.OriginalPrice,
			Quantity:      it.Quantity,
			TaxPercent:    it.TaxPercent,
			FreeDelivery:  it.FreeDelivery,
			Shipping:      charges,
		})
		if it.Selected {
			selected[id] = true
		}
	}
	return lines, selected
}

func selectedOnly(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Selected {
			out = append(out, it)
		}
	}
	return out
}

func lineSubtotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func promoItems(items []Item) []promo.Item {
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
