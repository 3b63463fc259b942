package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Ledger records discount applications and answers audit queries.
type Ledger struct {
	discounts Repository
	usages    UsageRepository
	tx        Transactor
	now       func() time.Time
	tracer    trace.Tracer
	m         instruments
}

// NewLedger creates a Ledger. Usage writes and used-count increments are
// grouped by tx.
func NewLedger(discounts Repository, usages UsageRepository, tx Transactor, opts ...Option) *Ledger {
	o := buildOptions(opts)
	return &Ledger{
		discounts: discounts,
		usages:    usages,
		tx:        tx,
		now:       time.Now,
		tracer:    o.tracerProvider.Tracer(instrumentationName),
		m:         newInstruments(o.meterProvider),
	}
}

// RecordUsage writes a usage record for d and increments its used count in
// one transaction. Eligibility is not re-checked, except that the increment
// refuses to pass the usage limit. On success d.UsedCount is advanced.
func (l *Ledger) RecordUsage(ctx context.Context, d *Discount, userID int64, orderID *int64, amount decimal.Decimal) (*Usage, error) {
	ctx, span := l.tracer.Start(ctx, "discount.RecordUsage",
		trace.WithAttributes(
			attribute.Int64("discount.id", d.ID),
			attribute.Int64("user.id", userID),
		),
	)
	defer span.End()

	u := &Usage{
		DiscountID: d.ID,
		UserID:     userID,
		OrderID:    orderID,
		Amount:     amount.Round(2),
		UsedAt:     l.now().UTC(),
	}

	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := l.discounts.IncrementUsedCount(ctx, d.ID); err != nil {
			if errors.Is(err, ErrUsageLimitReached) {
				return &InvalidDiscountError{Reason: ReasonLimitReached}
			}
			return errors.Wrap(err, "increment used count")
		}
		if err := l.usages.Create(ctx, u); err != nil {
			return errors.Wrap(err, "create usage")
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record usage failed")
		return nil, err
	}

	d.UsedCount++
	l.m.usages.Add(ctx, 1)
	zctx.From(ctx).Debug("discount usage recorded",
		zap.String("code", d.Code),
		zap.Int64("user_id", userID),
		zap.String("amount", u.Amount.StringFixed(2)),
	)
	return u, nil
}

// Stats returns the usage count and total discounted amount for code.
func (l *Ledger) Stats(ctx context.Context, code string) (*Stats, error) {
	d, err := l.discounts.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	count, err := l.usages.CountByDiscount(ctx, d.ID)
	if err != nil {
		return nil, errors.Wrap(err, "count usages")
	}
	total, err := l.usages.TotalByDiscount(ctx, d.ID)
	if err != nil {
		return nil, errors.Wrap(err, "sum usages")
	}
	return &Stats{
		DiscountID:  d.ID,
		Code:        d.Code,
		UsageCount:  count,
		TotalAmount: total.Round(2),
	}, nil
}

// History returns every usage recorded for userID, newest first.
func (l *Ledger) History(ctx context.Context, userID int64) ([]Usage, error) {
	usages, err := l.usages.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list usages")
	}
	return usages, nil
}

// HasUserUsed reports whether userID has any usage of code.
func (l *Ledger) HasUserUsed(ctx context.Context, code string, userID int64) (bool, error) {
	d, err := l.discounts.FindByCode(ctx, code)
	if err != nil {
		return false, err
	}
	ok, err := l.usages.ExistsForUser(ctx, d.ID, userID)
	if err != nil {
		return false, errors.Wrap(err, "check usage")
	}
	return ok, nil
}
