package client

import (
	"context"
	"log/slog"
	"time"

	jperrors "github.com/JohnPlummer/jp-go-errors"

	"github.com/jzx17/ctsdk/pkg/query"
	"github.com/jzx17/ctsdk/pkg/types"
)

// BlockingExecutor bounds every page request by a timeout. It implements
// query.Executor so it can be handed to a traversal.
type BlockingExecutor[T any] struct {
	next    query.Executor[T]
	timeout time.Duration
	clock   types.Clock
	logger  *slog.Logger
}

// BlockingOption configures a BlockingExecutor
type BlockingOption func(*blockingConfig)

type blockingConfig struct {
	clock  types.Clock
	logger *slog.Logger
}

// WithBlockingClock sets the clock the timeout runs on
func WithBlockingClock(clock types.Clock) BlockingOption {
	return func(c *blockingConfig) {
		c.clock = clock
	}
}

// WithBlockingLogger sets the logger
func WithBlockingLogger(logger *slog.Logger) BlockingOption {
	return func(c *blockingConfig) {
		c.logger = logger
	}
}

// NewBlockingExecutor wraps next with a default timeout. A non-positive
// timeout falls back to DefaultTimeout.
func NewBlockingExecutor[T any](next query.Executor[T], timeout time.Duration, opts ...BlockingOption) (*BlockingExecutor[T], error) {
	if next == nil {
		return nil, types.ErrNilExecutor
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cfg := &blockingConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.clock == nil {
		cfg.clock = types.NewRealClock()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	return &BlockingExecutor[T]{
		next:    next,
		timeout: timeout,
		clock:   cfg.clock,
		logger:  cfg.logger,
	}, nil
}

// Execute runs the request with the default timeout.
func (b *BlockingExecutor[T]) Execute(ctx context.Context, q query.BaseQuery) (*query.PagedQueryResult[T], error) {
	return b.ExecuteWithTimeout(ctx, q, b.timeout)
}

// ExecuteWithTimeout runs the request with a per-call timeout. The request
// context is cancelled once the call returns.
func (b *BlockingExecutor[T]) ExecuteWithTimeout(ctx context.Context, q query.BaseQuery, timeout time.Duration) (*query.PagedQueryResult[T], error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	future := types.Go(b.clock, func() (*query.PagedQueryResult[T], error) {
		return b.next.Execute(ctx, q)
	})

	result, err := types.Await(ctx, b.clock, future, timeout, "query page")
	if jperrors.IsTimeout(err) {
		b.logger.WarnContext(ctx, "page request timed out",
			slog.String("query", q.String()),
			slog.Duration("timeout", timeout))
	}
	return result, err
}

// Timeout returns the default timeout.
func (b *BlockingExecutor[T]) Timeout() time.Duration {
	return b.timeout
}
