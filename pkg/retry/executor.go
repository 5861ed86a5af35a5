package retry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jzx17/ctsdk/pkg/types"
)

// Operation is the fallible call a RetryExecutor drives. The parameter may
// change between attempts when a decision supplies a new one.
type Operation[P, R any] func(ctx context.Context, parameter P) (R, error)

// RetryExecutor runs an operation and applies the decisions of a RetryAction
// chain to its failures. A Stop decision shuts the executor down: later
// Execute calls fail with types.ErrServiceStopped.
type RetryExecutor[P, R any] struct {
	operation    Operation[P, R]
	actions      []RetryAction[P]
	name         string
	eventHandler EventHandler
	clock        types.Clock
	stats        RetryStats

	stopped   atomic.Bool
	stopCause atomic.Value
}

// RetryStats contains retry statistics
type RetryStats struct {
	TotalAttempts   int64         // total invocation count
	TotalRetries    int64         // invocations after the first, per operation
	TotalSuccesses  int64         // operations that eventually succeeded
	TotalFailures   int64         // operations resumed or stopped
	TotalRetryDelay time.Duration // time spent waiting on scheduled retries
	LastRetryTime   time.Time     // when the last retry was dispatched
	mu              sync.RWMutex
}

// EventHandler handles retry events
type EventHandler interface {
	OnRetryAttempt(ctx context.Context, event Event)
	OnRetrySuccess(ctx context.Context, event Event)
	OnResume(ctx context.Context, event Event)
	OnStop(ctx context.Context, event Event)
}

// Event describes one step of a retried operation.
type Event struct {
	OperationID string
	Name        string
	Attempt     int
	Err         error
	Decision    string
	Duration    time.Duration
}

// ExecutorOption is a configuration option for retry executor
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	name         string
	eventHandler EventHandler
	clock        types.Clock
	logger       *slog.Logger
}

// WithEventHandler sets the event handler
func WithEventHandler(handler EventHandler) ExecutorOption {
	return func(c *executorConfig) {
		c.eventHandler = handler
	}
}

// WithClock sets the clock scheduled retries wait on
func WithClock(clock types.Clock) ExecutorOption {
	return func(c *executorConfig) {
		c.clock = clock
	}
}

// WithLogger sets the logger of the default event handler
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(c *executorConfig) {
		c.logger = logger
	}
}

// WithName names the executor in events and errors
func WithName(name string) ExecutorOption {
	return func(c *executorConfig) {
		c.name = name
	}
}

// NewRetryExecutor creates a retry executor for operation. The actions are
// evaluated in order on every failure.
func NewRetryExecutor[P, R any](operation Operation[P, R], actions []RetryAction[P], opts ...ExecutorOption) (*RetryExecutor[P, R], error) {
	if operation == nil {
		return nil, fmt.Errorf("retry executor: operation is nil")
	}
	if len(actions) == 0 {
		return nil, types.ErrNoRetryActions
	}

	cfg := &executorConfig{
		name:   "default",
		clock:  types.NewRealClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.clock == nil {
		cfg.clock = types.NewRealClock()
	}
	if cfg.eventHandler == nil {
		if cfg.logger == nil {
			cfg.logger = slog.Default()
		}
		cfg.eventHandler = NewDefaultEventHandler(cfg.logger)
	}

	return &RetryExecutor[P, R]{
		operation:    operation,
		actions:      append([]RetryAction[P](nil), actions...),
		name:         cfg.name,
		eventHandler: cfg.eventHandler,
		clock:        cfg.clock,
	}, nil
}

// Execute invokes the operation with parameter, retrying as the action chain
// decides. It returns the first successful value, the error chosen by a
// Resume or Stop decision, a chain configuration error, or the context error
// when ctx ends during a scheduled wait.
func (r *RetryExecutor[P, R]) Execute(ctx context.Context, parameter P) (R, error) {
	var zero R

	if r.stopped.Load() {
		return zero, r.stoppedError()
	}

	operationID := uuid.NewString()
	var (
		rc      RetryContext[P]
		attempt int
	)

	for {
		attempt++
		r.updateStats(func(stats *RetryStats) {
			stats.TotalAttempts++
			if attempt > 1 {
				stats.TotalRetries++
				stats.LastRetryTime = r.clock.Now()
			}
		})

		start := r.clock.Now()
		result, err := r.operation(ctx, parameter)
		elapsed := r.clock.Since(start)

		if err == nil {
			r.updateStats(func(stats *RetryStats) {
				stats.TotalSuccesses++
			})
			if attempt > 1 {
				r.eventHandler.OnRetrySuccess(ctx, r.event(operationID, attempt, nil, "", elapsed))
			}
			return result, nil
		}

		if attempt == 1 {
			rc = NewRetryContext(err, parameter)
		} else {
			rc = rc.Next(err, parameter)
		}

		decision, decideErr := Decide(rc, r.actions...)
		if decideErr != nil {
			r.recordFailure()
			return zero, decideErr
		}

		switch d := decision.(type) {
		case RetryScheduled[P]:
			r.eventHandler.OnRetryAttempt(ctx, r.event(operationID, attempt, err, d.String(), elapsed))
			r.updateStats(func(stats *RetryStats) {
				stats.TotalRetryDelay += d.Delay
			})
			if waitErr := types.SleepContext(ctx, r.clock, d.Delay); waitErr != nil {
				r.recordFailure()
				return zero, waitErr
			}
			if r.stopped.Load() {
				r.recordFailure()
				return zero, r.wrapError(r.stoppedError(), attempt)
			}
			parameter = d.Parameter
		case RetryImmediate[P]:
			r.eventHandler.OnRetryAttempt(ctx, r.event(operationID, attempt, err, d.String(), elapsed))
			if r.stopped.Load() {
				r.recordFailure()
				return zero, r.wrapError(r.stoppedError(), attempt)
			}
			parameter = d.Parameter
		case Resume[P]:
			r.recordFailure()
			r.eventHandler.OnResume(ctx, r.event(operationID, attempt, d.Err, d.String(), elapsed))
			return zero, r.wrapError(d.Err, attempt)
		case Stop[P]:
			r.recordFailure()
			r.stop(d.Err)
			r.eventHandler.OnStop(ctx, r.event(operationID, attempt, d.Err, d.String(), elapsed))
			return zero, r.wrapError(fmt.Errorf("%w: %w", types.ErrServiceStopped, d.Err), attempt)
		default:
			r.recordFailure()
			return zero, fmt.Errorf("retry executor %s: unknown decision %T", r.name, decision)
		}
	}
}

// ExecuteAsync runs Execute in a goroutine and delivers its outcome on the
// returned channel.
func (r *RetryExecutor[P, R]) ExecuteAsync(ctx context.Context, parameter P) <-chan types.Result[R] {
	return types.Go(r.clock, func() (R, error) {
		return r.Execute(ctx, parameter)
	})
}

// Stopped reports whether a Stop decision shut the executor down.
func (r *RetryExecutor[P, R]) Stopped() bool {
	return r.stopped.Load()
}

// GetStats gets retry statistics
func (r *RetryExecutor[P, R]) GetStats() RetryStats {
	r.stats.mu.RLock()
	defer r.stats.mu.RUnlock()
	return RetryStats{
		TotalAttempts:   r.stats.TotalAttempts,
		TotalRetries:    r.stats.TotalRetries,
		TotalSuccesses:  r.stats.TotalSuccesses,
		TotalFailures:   r.stats.TotalFailures,
		TotalRetryDelay: r.stats.TotalRetryDelay,
		LastRetryTime:   r.stats.LastRetryTime,
	}
}

// ResetStats resets statistics
func (r *RetryExecutor[P, R]) ResetStats() {
	r.stats.mu.Lock()
	defer r.stats.mu.Unlock()

	r.stats.TotalAttempts = 0
	r.stats.TotalRetries = 0
	r.stats.TotalSuccesses = 0
	r.stats.TotalFailures = 0
	r.stats.TotalRetryDelay = 0
	r.stats.LastRetryTime = time.Time{}
}

func (r *RetryExecutor[P, R]) updateStats(fn func(*RetryStats)) {
	r.stats.mu.Lock()
	defer r.stats.mu.Unlock()
	fn(&r.stats)
}

func (r *RetryExecutor[P, R]) recordFailure() {
	r.updateStats(func(stats *RetryStats) {
		stats.TotalFailures++
	})
}

func (r *RetryExecutor[P, R]) stop(cause error) {
	if cause == nil {
		cause = types.ErrServiceStopped
	}
	r.stopCause.CompareAndSwap(nil, causeHolder{cause})
	r.stopped.Store(true)
}

func (r *RetryExecutor[P, R]) stoppedError() error {
	if holder, ok := r.stopCause.Load().(causeHolder); ok {
		return fmt.Errorf("retry executor %s: %w (cause: %w)", r.name, types.ErrServiceStopped, holder.err)
	}
	return fmt.Errorf("retry executor %s: %w", r.name, types.ErrServiceStopped)
}

func (r *RetryExecutor[P, R]) wrapError(err error, attempts int) error {
	return types.NewSDKError("retry "+r.name, err).
		WithContext("attempts", attempts)
}

func (r *RetryExecutor[P, R]) event(operationID string, attempt int, err error, decision string, elapsed time.Duration) Event {
	return Event{
		OperationID: operationID,
		Name:        r.name,
		Attempt:     attempt,
		Err:         err,
		Decision:    decision,
		Duration:    elapsed,
	}
}

// causeHolder keeps atomic.Value stores of a single concrete type.
type causeHolder struct {
	err error
}

// DefaultEventHandler is the default event handler implementation
type DefaultEventHandler struct {
	logger *slog.Logger
}

// NewDefaultEventHandler creates a default event handler
func NewDefaultEventHandler(logger *slog.Logger) *DefaultEventHandler {
	return &DefaultEventHandler{logger: logger}
}

// OnRetryAttempt handles retry attempt events
func (h *DefaultEventHandler) OnRetryAttempt(ctx context.Context, event Event) {
	h.logger.DebugContext(ctx, "operation failed, retrying",
		slog.String("operation_id", event.OperationID),
		slog.String("executor", event.Name),
		slog.Int("attempt", event.Attempt),
		slog.String("decision", event.Decision),
		slog.Any("error", event.Err))
}

// OnRetrySuccess handles success-after-retry events
func (h *DefaultEventHandler) OnRetrySuccess(ctx context.Context, event Event) {
	h.logger.InfoContext(ctx, "operation succeeded after retry",
		slog.String("operation_id", event.OperationID),
		slog.String("executor", event.Name),
		slog.Int("attempts", event.Attempt),
		slog.Duration("duration", event.Duration))
}

// OnResume handles give-up events
func (h *DefaultEventHandler) OnResume(ctx context.Context, event Event) {
	h.logger.WarnContext(ctx, "giving up on operation",
		slog.String("operation_id", event.OperationID),
		slog.String("executor", event.Name),
		slog.Int("attempts", event.Attempt),
		slog.Any("error", event.Err))
}

// OnStop handles shutdown events
func (h *DefaultEventHandler) OnStop(ctx context.Context, event Event) {
	h.logger.ErrorContext(ctx, "retry executor stopped",
		slog.String("operation_id", event.OperationID),
		slog.String("executor", event.Name),
		slog.Int("attempts", event.Attempt),
		slog.Any("error", event.Err))
}
