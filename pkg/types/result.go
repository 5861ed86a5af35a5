package types

import (
	"context"
	"fmt"
	"time"

	jperrors "github.com/JohnPlummer/jp-go-errors"
)

// Result defines the result of asynchronous execution
type Result[R any] struct {
	// Value is the execution result
	Value R

	// Error is the execution error
	Error error

	// Duration is the execution time
	Duration time.Duration
}

// Go runs fn in a new goroutine and returns a channel that receives exactly
// one Result and is then closed. It is the SDK's future: receive once to
// await completion.
func Go[R any](clock Clock, fn func() (R, error)) <-chan Result[R] {
	if clock == nil {
		clock = NewRealClock()
	}
	resultChan := make(chan Result[R], 1)

	go func() {
		defer close(resultChan)

		start := clock.Now()
		value, err := fn()
		resultChan <- Result[R]{
			Value:    value,
			Error:    err,
			Duration: clock.Since(start),
		}
	}()

	return resultChan
}

// Await waits at most timeout for future. Expiry yields a timeout error that
// jperrors.IsTimeout recognises; the future is abandoned, never truncated.
func Await[R any](ctx context.Context, clock Clock, future <-chan Result[R], timeout time.Duration, operation string) (R, error) {
	var zero R
	if clock == nil {
		clock = NewRealClock()
	}

	timer := clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result, ok := <-future:
		if !ok {
			return zero, fmt.Errorf("%s: future closed without a result", operation)
		}
		return result.Value, result.Error
	case <-timer.C():
		return zero, jperrors.NewTimeoutError(
			fmt.Sprintf("%s did not complete within %v", operation, timeout),
			operation,
			timeout,
		)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
