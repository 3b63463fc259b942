package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrLineItemNotFound is returned when an order has no item with the given id.
	ErrLineItemNotFound = errors.New("order item not found")
	// ErrEmptyCart is returned when an order is requested from an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidQuantity is returned for non-positive line quantities.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	// ErrInvalidPrice is returned for non-positive unit prices.
	ErrInvalidPrice = errors.New("unit price must be a positive amount in whole cents")
	// ErrInvalidTransition matches every *InvalidTransitionError.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// InvalidTransitionError reports an illegal status change.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// InsufficientStockError reports a cart line that exceeds product stock.
type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock. Available: %d, Requested: %d", e.Available, e.Requested)
}
