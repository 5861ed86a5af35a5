package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	jperrors "github.com/JohnPlummer/jp-go-errors"
	"github.com/sony/gobreaker/v2"

	"github.com/jzx17/ctsdk/pkg/query"
	"github.com/jzx17/ctsdk/pkg/types"
)

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	// Name identifies the breaker in logs and errors.
	// Default: "query-executor"
	Name string

	// MaxRequests is the number of trial requests allowed while half-open.
	// Default: 1
	MaxRequests uint32

	// Interval clears the counts while closed. Zero never clears them.
	// Default: 0
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open.
	// Default: 30 seconds
	Timeout time.Duration

	// ConsecutiveFailures trips the breaker.
	// Default: 5
	ConsecutiveFailures uint32

	// Logger for state changes.
	// Default: slog.Default()
	Logger *slog.Logger
}

// BreakerOption configures a CircuitBreakerExecutor
type BreakerOption func(*BreakerConfig)

// DefaultBreakerConfig returns the default circuit breaker settings.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		Name:                "query-executor",
		MaxRequests:         1,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// WithBreakerName sets the breaker name
func WithBreakerName(name string) BreakerOption {
	return func(c *BreakerConfig) {
		c.Name = name
	}
}

// WithConsecutiveFailures sets how many failures in a row open the breaker
func WithConsecutiveFailures(n uint32) BreakerOption {
	return func(c *BreakerConfig) {
		c.ConsecutiveFailures = n
	}
}

// WithOpenTimeout sets how long the breaker stays open
func WithOpenTimeout(d time.Duration) BreakerOption {
	return func(c *BreakerConfig) {
		c.Timeout = d
	}
}

// WithHalfOpenRequests sets the number of trial requests while half-open
func WithHalfOpenRequests(n uint32) BreakerOption {
	return func(c *BreakerConfig) {
		c.MaxRequests = n
	}
}

// WithBreakerLogger sets the logger
func WithBreakerLogger(logger *slog.Logger) BreakerOption {
	return func(c *BreakerConfig) {
		c.Logger = logger
	}
}

// CircuitBreakerExecutor stops sending page requests to a backend that keeps
// failing. Rejected requests fail with an error matching types.ErrCircuitOpen.
type CircuitBreakerExecutor[T any] struct {
	next   query.Executor[T]
	cb     *gobreaker.CircuitBreaker[*query.PagedQueryResult[T]]
	logger *slog.Logger
}

// NewCircuitBreakerExecutor wraps next with a circuit breaker.
func NewCircuitBreakerExecutor[T any](next query.Executor[T], opts ...BreakerOption) (*CircuitBreakerExecutor[T], error) {
	if next == nil {
		return nil, types.ErrNilExecutor
	}

	config := DefaultBreakerConfig()
	for _, opt := range opts {
		opt(config)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.ConsecutiveFailures == 0 {
		config.ConsecutiveFailures = 1
	}

	threshold := config.ConsecutiveFailures
	logger := config.Logger

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about the backend.
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &CircuitBreakerExecutor[T]{
		next:   next,
		cb:     gobreaker.NewCircuitBreaker[*query.PagedQueryResult[T]](settings),
		logger: logger,
	}, nil
}

// Execute implements query.Executor
func (c *CircuitBreakerExecutor[T]) Execute(ctx context.Context, q query.BaseQuery) (*query.PagedQueryResult[T], error) {
	result, err := c.cb.Execute(func() (*query.PagedQueryResult[T], error) {
		return c.next.Execute(ctx, q)
	})
	if err == nil {
		return result, nil
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		c.logger.WarnContext(ctx, "circuit breaker is open, request rejected",
			slog.String("query", q.String()))
		return nil, c.rejection("request rejected", "open", err)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		c.logger.DebugContext(ctx, "circuit breaker in half-open state, too many requests")
		return nil, c.rejection("too many requests in half-open state", "half-open", err)
	}
	return nil, err
}

// State returns the breaker state: "closed", "half-open" or "open".
func (c *CircuitBreakerExecutor[T]) State() string {
	return c.cb.State().String()
}

// Counts returns the request counts of the current generation.
func (c *CircuitBreakerExecutor[T]) Counts() gobreaker.Counts {
	return c.cb.Counts()
}

func (c *CircuitBreakerExecutor[T]) rejection(message, state string, cause error) error {
	counts := c.cb.Counts()
	cbErr := jperrors.NewCircuitBreakerError(
		message,
		"query page",
		state,
		jperrors.WithCause(cause),
		jperrors.WithCounts(jperrors.CircuitCounts{
			Requests:             counts.Requests,
			TotalSuccesses:       counts.TotalSuccesses,
			TotalFailures:        counts.TotalFailures,
			ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
			ConsecutiveFailures:  counts.ConsecutiveFailures,
		}),
	)
	return fmt.Errorf("%w: %w", types.ErrCircuitOpen, cbErr)
}
