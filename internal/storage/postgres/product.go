package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	productColumns = `id, sku, name, price, stock, updated_at`

	getProductSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	lockProductsSQL = `SELECT ` + productColumns + ` FROM products
	WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	decrementStockSQL = `UPDATE products SET stock = stock - $2, updated_at = now()
	WHERE id = $1 AND stock >= $2`

	incrementStockSQL = `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`

	productExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`

	upsertProductSQL = `INSERT INTO products (sku, name, price, stock)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (sku) DO UPDATE
	SET name = EXCLUDED.name, price = EXCLUDED.price, stock = EXCLUDED.stock, updated_at = now()
	RETURNING id, updated_at`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns product.ErrNotFound when no product has the given id.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// LockByIDs takes row locks in id order so concurrent callers locking
// overlapping sets cannot deadlock. Missing ids are omitted from the result.
func (r *ProductRepository) LockByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, lockProductsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("locking products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("locking products: %w", err)
	}
	return products, nil
}

// DecrementStock is a conditional update: stock never goes negative even
// without a prior lock.
func (r *ProductRepository) DecrementStock(ctx context.Context, id int64, qty int) error {
	q := conn(ctx, r.pool)
	tag, err := q.Exec(ctx, decrementStockSQL, id, qty)
	if err != nil {
		return fmt.Errorf("decrementing stock for product %d: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx, productExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking product %d: %w", id, err)
	}
	if !exists {
		return product.ErrNotFound
	}
	return product.ErrOutOfStock
}

// IncrementStock returns qty units to stock.
func (r *ProductRepository) IncrementStock(ctx context.Context, id int64, qty int) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, incrementStockSQL, id, qty)
	if err != nil {
		return fmt.Errorf("incrementing stock for product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Upsert inserts the product or updates the one with the same SKU.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	err := conn(ctx, r.pool).QueryRow(ctx, upsertProductSQL, p.SKU, p.Name, p.Price, p.Stock).
		Scan(&p.ID, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.SKU, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		stock int32
	)
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &stock, &p.UpdatedAt)
	p.Stock = int(stock)
	return p, err
}
