package cart

import (
	"context"

	"github.com/xenking/storefront/internal/domain/product"
)

// Cart is a user's pending selection of products.
type Cart struct {
	ID     int64
	UserID int64
	Items  []Item
}

// Item is one (product, quantity) line of a cart. Product holds the
// catalog snapshot loaded with the cart.
type Item struct {
	ID        int64
	ProductID int64
	Quantity  int
	Product   product.Product
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ProductIDs returns the distinct product ids referenced by the cart.
func (c *Cart) ProductIDs() []int64 {
	seen := make(map[int64]struct{}, len(c.Items))
	ids := make([]int64, 0, len(c.Items))
	for _, it := range c.Items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}

// Repository manages carts.
type Repository interface {
	// FindOrCreateForUser returns the user's cart with items and product
	// snapshots loaded, creating an empty cart when none exists.
	FindOrCreateForUser(ctx context.Context, userID int64) (*Cart, error)
	// AddItem adds qty of productID, merging with an existing line.
	AddItem(ctx context.Context, cartID, productID int64, qty int) error
	// Clear removes every item from the cart.
	Clear(ctx context.Context, cartID int64) error
}
