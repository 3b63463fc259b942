package order

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/xenking/storefront/internal/domain/order"

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the provider used for spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the provider used for metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.m = newInstruments(mp) }
}

type instruments struct {
	created     metric.Int64Counter
	duration    metric.Float64Histogram
	transitions metric.Int64Counter
}

func newInstruments(mp metric.MeterProvider) instruments {
	m := mp.Meter(instrumentationName)
	var (
		in  instruments
		err error
	)

	in.created, err = m.Int64Counter("orders_created_total",
		metric.WithDescription("Total number of order creation attempts by result"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		in.created = noop.Int64Counter{}
	}
	in.duration, err = m.Float64Histogram("order_creation_duration_seconds",
		metric.WithDescription("Duration of order creation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		in.duration = noop.Float64Histogram{}
	}
	in.transitions, err = m.Int64Counter("order_status_transitions_total",
		metric.WithDescription("Order status changes by target status"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		in.transitions = noop.Int64Counter{}
	}
	return in
}

func defaultInstruments() instruments {
	return newInstruments(otel.GetMeterProvider())
}
