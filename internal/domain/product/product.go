package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrOutOfStock is returned by DecrementStock when fewer units remain
	// than requested.
	ErrOutOfStock = errors.New("product out of stock")
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID        int64
	SKU       string
	Name      string
	Price     decimal.Decimal
	Stock     int
	UpdatedAt time.Time
}

// Repository defines the catalog operations the order workflow depends on.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	// LockByIDs returns the products with the given ids, locking their rows
	// for the rest of the enclosing transaction. Rows are locked in
	// ascending id order.
	LockByIDs(ctx context.Context, ids []int64) ([]Product, error)
	// DecrementStock removes qty units, returning ErrOutOfStock when that
	// would take stock below zero.
	DecrementStock(ctx context.Context, id int64, qty int) error
	IncrementStock(ctx context.Context, id int64, qty int) error
	Upsert(ctx context.Context, p *Product) error
}
