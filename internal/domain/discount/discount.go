package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypePercentage takes a percentage of the order amount, optionally capped.
	TypePercentage Type = "percentage"
	// TypeFixedAmount takes a flat monetary amount off the order.
	TypeFixedAmount Type = "fixed_amount"
)

var (
	// ErrNotFound is returned when no discount matches the requested code.
	ErrNotFound = errors.New("discount not found")
	// ErrUsageLimitReached is returned by repositories when the conditional
	// used-count increment matches no row.
	ErrUsageLimitReached = errors.New("discount usage limit reached")
	// ErrInvalidDiscount matches every *InvalidDiscountError via errors.Is.
	ErrInvalidDiscount = errors.New("invalid discount")
)

// Discount is a promotional code and its eligibility constraints.
type Discount struct {
	ID          int64
	Code        string
	Description string
	Type        Type
	Value       decimal.Decimal

	// MinOrderAmount is the smallest order amount the code applies to.
	MinOrderAmount decimal.NullDecimal
	// MaxDiscountAmount caps percentage discounts.
	MaxDiscountAmount decimal.NullDecimal
	// UsageLimit is nil for unlimited codes.
	UsageLimit *int
	UsedCount  int

	StartsAt *time.Time
	EndsAt   *time.Time
	Active   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LimitReached reports whether the code has exhausted its usage limit.
func (d *Discount) LimitReached() bool {
	return d.UsageLimit != nil && d.UsedCount >= *d.UsageLimit
}

// Usage is an immutable ledger entry for one discount application.
type Usage struct {
	ID         int64
	DiscountID int64
	UserID     int64
	// OrderID is nil for usages recorded outside the order flow.
	OrderID *int64
	Amount  decimal.Decimal
	UsedAt  time.Time
}

// Stats aggregates usage for a single discount.
type Stats struct {
	DiscountID  int64
	Code        string
	UsageCount  int
	TotalAmount decimal.Decimal
}

// Repository provides lookup and mutation of discounts.
type Repository interface {
	// FindByCode looks the code up case-insensitively. Returns ErrNotFound.
	FindByCode(ctx context.Context, code string) (*Discount, error)
	// IncrementUsedCount bumps used_count by one unless the limit is reached,
	// in which case it returns ErrUsageLimitReached.
	IncrementUsedCount(ctx context.Context, id int64) error
	Upsert(ctx context.Context, d *Discount) error
}

// UsageRepository persists and queries usage records.
type UsageRepository interface {
	Create(ctx context.Context, u *Usage) error
	CountByDiscount(ctx context.Context, discountID int64) (int, error)
	TotalByDiscount(ctx context.Context, discountID int64) (decimal.Decimal, error)
	ListByUser(ctx context.Context, userID int64) ([]Usage, error)
	ExistsForUser(ctx context.Context, discountID, userID int64) (bool, error)
}

// Transactor runs fn inside a single storage transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
