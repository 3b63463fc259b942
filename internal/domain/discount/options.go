package discount

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/xenking/storefront/internal/domain/discount"

// Option configures a Validator or Ledger.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithTracerProvider sets the provider used for spans. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the provider used for counters. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

func buildOptions(opts []Option) options {
	o := options{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type instruments struct {
	validations metric.Int64Counter
	usages      metric.Int64Counter
}

func newInstruments(mp metric.MeterProvider) instruments {
	m := mp.Meter(instrumentationName)

	validations, err := m.Int64Counter("discount_validations_total",
		metric.WithDescription("Discount code validations by outcome"),
		metric.WithUnit("{validation}"),
	)
	if err != nil {
		validations = noop.Int64Counter{}
	}
	usages, err := m.Int64Counter("discount_usages_total",
		metric.WithDescription("Recorded discount usages"),
		metric.WithUnit("{usage}"),
	)
	if err != nil {
		usages = noop.Int64Counter{}
	}

	return instruments{validations: validations, usages: usages}
}
