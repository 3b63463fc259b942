package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/discount"
)

const (
	getDiscountByCodeSQL = `SELECT id, code, description, discount_type, value, min_order_amount,
		max_discount_amount, usage_limit, used_count, starts_at, ends_at, active, created_at, updated_at
	FROM discounts WHERE upper(code) = upper($1)`

	incrementUsedCountSQL = `UPDATE discounts SET used_count = used_count + 1, updated_at = now()
	WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`

	discountExistsSQL = `SELECT EXISTS (SELECT 1 FROM discounts WHERE id = $1)`

	upsertDiscountSQL = `INSERT INTO discounts (code, description, discount_type, value, min_order_amount,
		max_discount_amount, usage_limit, starts_at, ends_at, active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT ((upper(code))) DO UPDATE SET
		description = EXCLUDED.description,
		discount_type = EXCLUDED.discount_type,
		value = EXCLUDED.value,
		min_order_amount = EXCLUDED.min_order_amount,
		max_discount_amount = EXCLUDED.max_discount_amount,
		usage_limit = EXCLUDED.usage_limit,
		starts_at = EXCLUDED.starts_at,
		ends_at = EXCLUDED.ends_at,
		active = EXCLUDED.active,
		updated_at = now()
	RETURNING id, used_count, created_at, updated_at`

	usedWithinLimitConstraint = "discounts_used_within_limit"
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByCode looks up a discount by code, ignoring case. Inactive codes are
// returned too so the caller can report why they are rejected.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Discount, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getDiscountByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding discount by code %q: %w", code, err)
	}
	d, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, fmt.Errorf("finding discount by code %q: %w", code, err)
	}
	return &d, nil
}

// IncrementUsedCount bumps used_count only while it is under the limit, so
// concurrent redemptions can never overshoot it.
func (r *DiscountRepository) IncrementUsedCount(ctx context.Context, id int64) error {
	q := conn(ctx, r.pool)
	tag, err := q.Exec(ctx, incrementUsedCountSQL, id)
	if err != nil {
		if isCheckViolation(err, usedWithinLimitConstraint) {
			return discount.ErrUsageLimitReached
		}
		return fmt.Errorf("incrementing used count for discount %d: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx, discountExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking discount %d: %w", id, err)
	}
	if !exists {
		return discount.ErrNotFound
	}
	return discount.ErrUsageLimitReached
}

// Upsert inserts the discount or replaces the rules of the one with the
// same code. The used count is preserved.
func (r *DiscountRepository) Upsert(ctx context.Context, d *discount.Discount) error {
	var usageLimit *int32
	if d.UsageLimit != nil {
		v := int32(*d.UsageLimit)
		usageLimit = &v
	}

	var used int32
	err := conn(ctx, r.pool).QueryRow(ctx, upsertDiscountSQL,
		d.Code, d.Description, string(d.Type), d.Value, d.MinOrderAmount,
		d.MaxDiscountAmount, usageLimit, d.StartsAt, d.EndsAt, d.Active,
	).Scan(&d.ID, &used, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting discount %q: %w", d.Code, err)
	}
	d.UsedCount = int(used)
	return nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Discount, error) {
	var (
		d          discount.Discount
		typ        string
		usageLimit *int32
		used       int32
	)
	err := row.Scan(
		&d.ID, &d.Code, &d.Description, &typ, &d.Value, &d.MinOrderAmount,
		&d.MaxDiscountAmount, &usageLimit, &used, &d.StartsAt, &d.EndsAt, &d.Active,
		&d.CreatedAt, &d.UpdatedAt,
	)
	d.Type = discount.Type(typ)
	d.UsedCount = int(used)
	if usageLimit != nil {
		v := int(*usageLimit)
		d.UsageLimit = &v
	}
	return d, err
}
