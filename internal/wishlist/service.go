package wishlist

import (
	"context"

	"github.com/google/uuid"

	"github.com/glowmart/backend-glow/internal/cart"
)

// CartAdder moves a wishlist entry into a cart.
type CartAdder interface {
	AddItem(ctx context.Context, cartID, productID uuid.UUID, qty int) (cart.Item, error)
}

// Service wraps the store and the move-to-cart flow.
type Service struct {
	Store Store
	Carts CartAdder
}

func (s *Service) Add(ctx context.Context, userID, productID uuid.UUID) error {
	return s.Store.Add(ctx, userID, productID)
}

func (s *Service) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	return s.Store.Remove(ctx, userID, productID)
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]Entry, error) {
	return s.Store.List(ctx, userID)
}

func (s *Service) Contains(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	return s.Store.Contains(ctx, userID, productID)
}

// MoveToCart adds the product to the cart and removes it from the wishlist.
// The wishlist removal is best effort once the cart add succeeded.
func (s *Service) MoveToCart(ctx context.Context, userID, cartID, productID uuid.UUID) (cart.Item, error) {
	found, err := s.Store.Contains(ctx, userID, productID)
	if err != nil {
		return cart.Item{}, err
	}
	if !found {
		return cart.Item{}, ErrNotFound
	}
	item, err := s.Carts.AddItem(ctx, cartID, productID, 1)
	if err != nil {
		return cart.Item{}, err
	}
	_ = s.Store.Remove(ctx, userID, productID)
	return item, nil
}
