package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/discount"
)

const (
	createUsageSQL = `INSERT INTO discount_usages (discount_id, user_id, order_id, amount, used_at)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id`

	countUsagesSQL = `SELECT count(*) FROM discount_usages WHERE discount_id = $1`

	totalUsagesSQL = `SELECT COALESCE(sum(amount), 0) FROM discount_usages WHERE discount_id = $1`

	listUsagesByUserSQL = `SELECT id, discount_id, user_id, order_id, amount, used_at
	FROM discount_usages WHERE user_id = $1 ORDER BY used_at DESC, id DESC`

	usageExistsSQL = `SELECT EXISTS (
		SELECT 1 FROM discount_usages WHERE discount_id = $1 AND user_id = $2
	)`
)

var _ discount.UsageRepository = (*UsageRepository)(nil)

// UsageRepository implements discount.UsageRepository backed by PostgreSQL.
type UsageRepository struct {
	pool *pgxpool.Pool
}

// NewUsageRepository returns a UsageRepository that uses the given pool.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// Create appends a usage record and sets u.ID.
func (r *UsageRepository) Create(ctx context.Context, u *discount.Usage) error {
	err := conn(ctx, r.pool).QueryRow(ctx, createUsageSQL,
		u.DiscountID, u.UserID, u.OrderID, u.Amount, u.UsedAt,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("creating usage for discount %d: %w", u.DiscountID, err)
	}
	return nil
}

// CountByDiscount returns the number of usage records for the discount.
func (r *UsageRepository) CountByDiscount(ctx context.Context, discountID int64) (int, error) {
	var n int64
	if err := conn(ctx, r.pool).QueryRow(ctx, countUsagesSQL, discountID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting usages for discount %d: %w", discountID, err)
	}
	return int(n), nil
}

// TotalByDiscount returns the sum of discounted amounts, zero when unused.
func (r *UsageRepository) TotalByDiscount(ctx context.Context, discountID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := conn(ctx, r.pool).QueryRow(ctx, totalUsagesSQL, discountID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("summing usages for discount %d: %w", discountID, err)
	}
	return total, nil
}

// ListByUser returns the user's usage history, newest first.
func (r *UsageRepository) ListByUser(ctx context.Context, userID int64) ([]discount.Usage, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listUsagesByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing usages for user %d: %w", userID, err)
	}
	usages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (discount.Usage, error) {
		var u discount.Usage
		err := row.Scan(&u.ID, &u.DiscountID, &u.UserID, &u.OrderID, &u.Amount, &u.UsedAt)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing usages for user %d: %w", userID, err)
	}
	return usages, nil
}

// ExistsForUser reports whether the user has redeemed the discount.
func (r *UsageRepository) ExistsForUser(ctx context.Context, discountID, userID int64) (bool, error) {
	var exists bool
	if err := conn(ctx, r.pool).QueryRow(ctx, usageExistsSQL, discountID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking usage of discount %d by user %d: %w", discountID, userID, err)
	}
	return exists, nil
}
