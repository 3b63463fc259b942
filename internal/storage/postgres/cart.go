package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
)

const (
	ensureCartSQL = `INSERT INTO carts (user_id) VALUES ($1)
	ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
	RETURNING id`

	listCartItemsSQL = `SELECT ci.id, ci.product_id, ci.quantity,
		p.id, p.sku, p.name, p.price, p.stock, p.updated_at
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
	WHERE ci.cart_id = $1
	ORDER BY ci.id`

	addCartItemSQL = `INSERT INTO cart_items (cart_id, product_id, quantity) VALUES ($1, $2, $3)
	ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`

	clearCartSQL = `DELETE FROM cart_items WHERE cart_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// FindOrCreateForUser returns the user's cart, creating it when missing.
func (r *CartRepository) FindOrCreateForUser(ctx context.Context, userID int64) (*cart.Cart, error) {
	q := conn(ctx, r.pool)

	c := &cart.Cart{UserID: userID}
	if err := q.QueryRow(ctx, ensureCartSQL, userID).Scan(&c.ID); err != nil {
		return nil, fmt.Errorf("ensuring cart for user %d: %w", userID, err)
	}

	rows, err := q.Query(ctx, listCartItemsSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("listing cart %d items: %w", c.ID, err)
	}
	c.Items, err = pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return nil, fmt.Errorf("listing cart %d items: %w", c.ID, err)
	}
	return c, nil
}

// AddItem adds qty of the product, merging with an existing line.
func (r *CartRepository) AddItem(ctx context.Context, cartID, productID int64, qty int) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, addCartItemSQL, cartID, productID, qty); err != nil {
		return fmt.Errorf("adding product %d to cart %d: %w", productID, cartID, err)
	}
	return nil
}

// Clear removes every item from the cart.
func (r *CartRepository) Clear(ctx context.Context, cartID int64) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, clearCartSQL, cartID); err != nil {
		return fmt.Errorf("clearing cart %d: %w", cartID, err)
	}
	return nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var (
		it         cart.Item
		qty, stock int32
	)
	err := row.Scan(
		&it.ID, &it.ProductID, &qty,
		&it.Product.ID, &it.Product.SKU, &it.Product.Name, &it.Product.Price, &stock, &it.Product.UpdatedAt,
	)
	it.Quantity = int(qty)
	it.Product.Stock = int(stock)
	return it, err
}
