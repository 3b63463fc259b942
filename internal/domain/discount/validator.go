package discount

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Validator evaluates discount codes fetched from a Repository. It never
// mutates discount state.
type Validator struct {
	repo   Repository
	now    func() time.Time
	tracer trace.Tracer
	m      instruments
}

// NewValidator creates a Validator backed by the given Repository.
func NewValidator(repo Repository, opts ...Option) *Validator {
	o := buildOptions(opts)
	return &Validator{
		repo:   repo,
		now:    time.Now,
		tracer: o.tracerProvider.Tracer(instrumentationName),
		m:      newInstruments(o.meterProvider),
	}
}

// Validate looks up code and evaluates it against orderAmount. An unknown
// code is reported as an outcome, not an error; errors are reserved for
// storage failures.
func (v *Validator) Validate(ctx context.Context, code string, orderAmount decimal.Decimal) (Outcome, error) {
	ctx, span := v.tracer.Start(ctx, "discount.Validate",
		trace.WithAttributes(attribute.String("discount.code", code)),
	)
	defer span.End()

	code = strings.TrimSpace(code)
	var d *Discount
	if code != "" {
		found, err := v.repo.FindByCode(ctx, code)
		switch {
		case err == nil:
			d = found
		case errors.Is(err, ErrNotFound):
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "lookup failed")
			return Outcome{}, errors.Wrap(err, "lookup discount")
		}
	}

	out := Evaluate(d, orderAmount, v.now())

	reason := string(out.Reason)
	if out.Valid {
		reason = "valid"
	}
	span.SetAttributes(attribute.String("discount.outcome", reason))
	v.m.validations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", reason)))

	return out, nil
}

// Apply validates code and returns the calculated amount, failing with an
// *InvalidDiscountError for any non-valid outcome.
func (v *Validator) Apply(ctx context.Context, code string, orderAmount decimal.Decimal) (decimal.Decimal, error) {
	out, err := v.Validate(ctx, code, orderAmount)
	if err != nil {
		return decimal.Zero, err
	}
	if err := out.Err(); err != nil {
		return decimal.Zero, err
	}
	return out.Amount, nil
}
