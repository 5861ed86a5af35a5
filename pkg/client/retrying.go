package client

import (
	"context"
	"errors"
	"time"

	jperrors "github.com/JohnPlummer/jp-go-errors"
	goretry "github.com/sethvargo/go-retry"

	"github.com/jzx17/ctsdk/pkg/query"
	"github.com/jzx17/ctsdk/pkg/retry"
	"github.com/jzx17/ctsdk/pkg/types"
)

// RetryingExecutor re-issues failed page requests as its retry actions
// decide. The query is the retry parameter, so an action may rewrite it
// between attempts.
type RetryingExecutor[T any] struct {
	executor *retry.RetryExecutor[query.BaseQuery, *query.PagedQueryResult[T]]
}

// NewRetryingExecutor wraps next with a retry executor running actions.
func NewRetryingExecutor[T any](next query.Executor[T], actions []retry.RetryAction[query.BaseQuery], opts ...retry.ExecutorOption) (*RetryingExecutor[T], error) {
	if next == nil {
		return nil, types.ErrNilExecutor
	}

	executor, err := retry.NewRetryExecutor[query.BaseQuery, *query.PagedQueryResult[T]](next.Execute, actions, opts...)
	if err != nil {
		return nil, err
	}
	return &RetryingExecutor[T]{executor: executor}, nil
}

// Execute implements query.Executor
func (r *RetryingExecutor[T]) Execute(ctx context.Context, q query.BaseQuery) (*query.PagedQueryResult[T], error) {
	return r.executor.Execute(ctx, q)
}

// Stopped reports whether a Stop decision shut the executor down.
func (r *RetryingExecutor[T]) Stopped() bool {
	return r.executor.Stopped()
}

// Stats returns the retry statistics.
func (r *RetryingExecutor[T]) Stats() retry.RetryStats {
	return r.executor.GetStats()
}

// IsTransient reports whether err is worth retrying: timeouts, rate limits
// and open circuits. Caller cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return jperrors.IsTimeout(err) ||
		errors.Is(err, jperrors.ErrRateLimited) ||
		errors.Is(err, types.ErrCircuitOpen)
}

// BackoffConfig shapes the delays of DefaultRetryActions.
type BackoffConfig struct {
	// MaxAttempts is the number of retries after the first failure.
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	// Default: 200ms
	InitialDelay time.Duration

	// MaxDelay caps a single delay.
	// Default: 10s
	MaxDelay time.Duration

	// Jitter is added or removed at random from every delay.
	// Default: 50ms
	Jitter time.Duration
}

// DefaultBackoffConfig returns the default retry backoff.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Jitter:       50 * time.Millisecond,
	}
}

// DefaultRetryActions retries transient failures with capped, jittered
// exponential backoff and gives up with the latest error otherwise.
func DefaultRetryActions(cfg BackoffConfig) ([]retry.RetryAction[query.BaseQuery], error) {
	delay := retry.FromBackoff[query.BaseQuery](func() goretry.Backoff {
		b := goretry.NewExponential(cfg.InitialDelay)
		if cfg.Jitter > 0 {
			b = goretry.WithJitter(cfg.Jitter, b)
		}
		if cfg.MaxDelay > 0 {
			b = goretry.WithCappedDuration(cfg.MaxDelay, b)
		}
		return b
	})

	scheduled, err := retry.ScheduledRetry(cfg.MaxAttempts, delay)
	if err != nil {
		return nil, err
	}

	return []retry.RetryAction[query.BaseQuery]{
		retry.When(IsTransient, scheduled),
		retry.GiveUpAndSendLatestException[query.BaseQuery](),
	}, nil
}
