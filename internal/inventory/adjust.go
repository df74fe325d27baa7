package inventory

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientStock indicates a subtract would drive tracked stock negative.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrInvalidInput is returned for unknown operations or negative quantities.
	ErrInvalidInput = errors.New("inventory: invalid input")
)

// Op enumerates stock adjustment operations.
type Op string

const (
	OpSet      Op = "set"
	OpAdd      Op = "add"
	OpSubtract Op = "subtract"
)

// Status labels a product's availability.
type Status string

const (
	StatusActive       Status = "active"
	StatusInactive     Status = "inactive"
	StatusDiscontinued Status = "discontinued"
	StatusLowStock     Status = "low_stock"
	StatusOutOfStock   Status = "out_of_stock"
)

// Adjust computes the new stock level. When inventory tracking is enabled a
// subtract may not take the level below zero; the caller must apply either the
// full subtraction or nothing.
func Adjust(current int, op Op, qty int, trackInventory bool) (int, error) {
	if qty < 0 {
		return 0, fmt.Errorf("%w: negative quantity %d", ErrInvalidInput, qty)
	}
	switch op {
	case OpSet:
		return qty, nil
	case OpAdd:
		return current + qty, nil
	case OpSubtract:
		next := current - qty
		if next < 0 && trackInventory {
			return 0, fmt.Errorf("%w: have %d, want %d", ErrInsufficientStock, current, qty)
		}
		return next, nil
	default:
		return 0, fmt.Errorf("%w: unknown operation %q", ErrInvalidInput, op)
	}
}

// NextStatus derives the availability label after a successful adjustment.
// Products manually marked inactive or discontinued are never auto-promoted
// back to active by a stock change.
func NextStatus(prev Status, stock, lowStockThreshold int) Status {
	if stock == 0 {
		return StatusOutOfStock
	}
	if lowStockThreshold > 0 && stock <= lowStockThreshold {
		return StatusLowStock
	}
	if prev == StatusOutOfStock || prev == StatusLowStock {
		return StatusActive
	}
	return prev
}
