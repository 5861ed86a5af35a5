// Package retry decides whether, when and how a failed asynchronous operation
// is retried, and provides an executor that applies those decisions.
//
// Decisions are data. A RetryContext is an immutable snapshot of the history
// of one logical operation: the 1-based attempt number, the first and latest
// errors and the first and latest parameters. A RetryAction maps a context to
// a RetryResult, or to nil when it does not apply. The result is one of:
//
//   - RetryScheduled: invoke again with a parameter after a delay
//   - RetryImmediate: invoke again with a parameter right away
//   - Resume: fail this operation with an error, keep the executor running
//   - Stop: fail this operation and shut the executor down
//
// Actions are evaluated in order and the first non-nil result wins, so chains
// should end with a catch-all:
//
//	actions := []retry.RetryAction[query.BaseQuery]{
//		retry.Must(retry.ScheduledRetry(5,
//			retry.ExponentialDelay[query.BaseQuery](100*time.Millisecond, 2, 5*time.Second))),
//		retry.GiveUpAndSendLatestException[query.BaseQuery](),
//	}
//
// Bounded actions validate their limit when they are built:
//
//	action, err := retry.ImmediateRetries[string](-1) // err wraps types.ErrInvalidMaxAttempts
//
// Delay functions:
//
//   - FixedDelay, LinearDelay, ExponentialDelay: closed-form curves
//   - FromBackoff: any github.com/sethvargo/go-retry backoff, evaluated per attempt
//   - WithJitter: proportional jitter around another delay function
//
// Executor:
//
//	executor, err := retry.NewRetryExecutor(fetchPage, actions,
//		retry.WithName("products"),
//		retry.WithLogger(logger))
//
//	page, err := executor.Execute(ctx, q)
//
// Scheduled retries wait on a types.Clock, so tests can drive them with a
// mock clock. A Stop decision blocks later executions and every retry not yet
// issued; an invocation already running is allowed to return.
//
// Thread safety:
//
// Contexts, results and actions are values and safe to share. RetryExecutor
// may be used from multiple goroutines.
package retry
