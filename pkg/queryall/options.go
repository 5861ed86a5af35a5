package queryall

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jzx17/ctsdk/pkg/types"
)

// DefaultConcurrency bounds the number of page fetches in flight after page 0.
const DefaultConcurrency = 10

// Option configures a QueryAll
type Option func(*config)

type config struct {
	concurrency    int
	logger         *slog.Logger
	clock          types.Clock
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

func defaultConfig() *config {
	return &config{
		concurrency:    DefaultConcurrency,
		logger:         slog.Default(),
		clock:          types.NewRealClock(),
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
}

// WithConcurrency limits how many pages are fetched at once. Zero or a
// negative value removes the limit.
func WithConcurrency(n int) Option {
	return func(c *config) {
		c.concurrency = n
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock sets the clock used for timings and blocking timeouts
func WithClock(clock types.Clock) Option {
	return func(c *config) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *config) {
		if provider != nil {
			c.tracerProvider = provider
		}
	}
}

// WithMeterProvider sets the meter provider. Defaults to the global provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *config) {
		if provider != nil {
			c.meterProvider = provider
		}
	}
}
