package retry

import (
	"fmt"
	"time"
)

// RetryResult is the outcome of a retry decision. It is a closed set:
// RetryScheduled, RetryImmediate, Resume and Stop are the only
// implementations.
type RetryResult[P any] interface {
	fmt.Stringer
	retryResult(P)
}

// RetryScheduled re-invokes the operation with Parameter after Delay.
type RetryScheduled[P any] struct {
	Parameter P
	Delay     time.Duration
}

// RetryImmediate re-invokes the operation with Parameter without delay.
type RetryImmediate[P any] struct {
	Parameter P
}

// Resume gives up on the operation and fails it with Err. The retrying
// facility stays available for other operations.
type Resume[P any] struct {
	Err error
}

// Stop fails the operation with Err and shuts the retrying facility down.
type Stop[P any] struct {
	Err error
}

func (RetryScheduled[P]) retryResult(P) {}
func (RetryImmediate[P]) retryResult(P) {}
func (Resume[P]) retryResult(P)         {}
func (Stop[P]) retryResult(P)           {}

func (r RetryScheduled[P]) String() string { return fmt.Sprintf("retry in %v", r.Delay) }
func (r RetryImmediate[P]) String() string { return "retry immediately" }
func (r Resume[P]) String() string         { return fmt.Sprintf("resume with %v", r.Err) }
func (r Stop[P]) String() string           { return fmt.Sprintf("stop with %v", r.Err) }
