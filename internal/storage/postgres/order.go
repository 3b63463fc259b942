package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	orderColumns = `id, order_number, user_id, status, total_amount, discount_amount, discount_code,
	shipping_address, customer_name, customer_email, customer_phone, notes,
	created_at, updated_at, shipped_at, delivered_at, cancelled_at`

	createOrderSQL = `INSERT INTO orders (order_number, user_id, status, total_amount, discount_amount,
		discount_code, shipping_address, customer_name, customer_email, customer_phone, notes,
		created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	RETURNING id`

	createOrderItemSQL = `INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id`

	updateOrderSQL = `UPDATE orders SET status = $2, total_amount = $3, discount_amount = $4,
		discount_code = $5, updated_at = $6, shipped_at = $7, delivered_at = $8, cancelled_at = $9
	WHERE id = $1`

	updateOrderItemSQL = `UPDATE order_items SET quantity = $2, unit_price = $3, subtotal = $4 WHERE id = $1`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderForUpdateSQL = getOrderSQL + ` FOR UPDATE`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
	WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	listOrderItemsSQL = `SELECT id, order_id, product_id, quantity, unit_price, subtotal
	FROM order_items WHERE order_id = ANY($1) ORDER BY id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order row and its items in one round trip per batch,
// assigning ids to the order and each item.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	q := conn(ctx, r.pool)

	err := q.QueryRow(ctx, createOrderSQL,
		o.Number, o.UserID, string(o.Status), o.TotalAmount, o.DiscountAmount, o.DiscountCode,
		o.ShippingAddress, o.CustomerName, o.CustomerEmail, o.CustomerPhone, o.Notes,
		o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.Number, err)
	}
	if len(o.Items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, li := range o.Items {
		li.OrderID = o.ID
		batch.Queue(createOrderItemSQL, o.ID, li.ProductID, li.Quantity, li.UnitPrice, li.Subtotal)
	}
	br := q.SendBatch(ctx, batch)
	for _, li := range o.Items {
		if err := br.QueryRow().Scan(&li.ID); err != nil {
			_ = br.Close()
			return fmt.Errorf("creating order %q item for product %d: %w", o.Number, li.ProductID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("creating order %q items: %w", o.Number, err)
	}
	return nil
}

// Update writes the mutable order columns.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, updateOrderSQL,
		o.ID, string(o.Status), o.TotalAmount, o.DiscountAmount, o.DiscountCode,
		o.UpdatedAt, o.ShippedAt, o.DeliveredAt, o.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("updating order %d: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// UpdateItem writes a corrected quantity and price.
func (r *OrderRepository) UpdateItem(ctx context.Context, li *order.LineItem) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, updateOrderItemSQL, li.ID, li.Quantity, li.UnitPrice, li.Subtotal)
	if err != nil {
		return fmt.Errorf("updating order item %d: %w", li.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrLineItemNotFound
	}
	return nil
}

// GetByID returns order.ErrNotFound when no order has the given id.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	return r.get(ctx, getOrderSQL, id)
}

// GetForUpdate locks the order row until the enclosing transaction ends.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id int64) (*order.Order, error) {
	return r.get(ctx, getOrderForUpdateSQL, id)
}

func (r *OrderRepository) get(ctx context.Context, sql string, id int64) (*order.Order, error) {
	q := conn(ctx, r.pool)
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	if err := r.attachItems(ctx, q, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ListByUser returns the user's orders newest first, items included.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	q := conn(ctx, r.pool)
	rows, err := q.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %d: %w", userID, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %d: %w", userID, err)
	}
	if err := r.attachItems(ctx, q, orders...); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) attachItems(ctx context.Context, q querier, orders ...*order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}

	rows, err := q.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}

	byOrder := make(map[int64][]*order.LineItem, len(orders))
	for _, li := range items {
		byOrder[li.OrderID] = append(byOrder[li.OrderID], li)
	}
	for _, o := range orders {
		o.Attach(byOrder[o.ID])
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (*order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &status, &o.TotalAmount, &o.DiscountAmount, &o.DiscountCode,
		&o.ShippingAddress, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt,
	)
	o.Status = order.Status(status)
	return &o, err
}

func scanOrderItem(row pgx.CollectableRow) (*order.LineItem, error) {
	var (
		li  order.LineItem
		qty int32
	)
	err := row.Scan(&li.ID, &li.OrderID, &li.ProductID, &qty, &li.UnitPrice, &li.Subtotal)
	li.Quantity = int(qty)
	return &li, err
}
