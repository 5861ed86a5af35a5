package retry

import "fmt"

// RetryContext is an immutable snapshot of the retry history of one logical
// operation at the moment a decision is requested. P is the type of the
// parameter the operation is invoked with.
type RetryContext[P any] struct {
	attempt         int
	firstError      error
	latestError     error
	firstParameter  P
	latestParameter P
}

// NewRetryContext creates the context for the first failure of an operation.
func NewRetryContext[P any](err error, parameter P) RetryContext[P] {
	return RetryContext[P]{
		attempt:         1,
		firstError:      err,
		latestError:     err,
		firstParameter:  parameter,
		latestParameter: parameter,
	}
}

// Next derives the context for the following failure. The receiver is left
// unchanged; the first error and parameter carry over.
func (c RetryContext[P]) Next(err error, parameter P) RetryContext[P] {
	c.attempt++
	c.latestError = err
	c.latestParameter = parameter
	return c
}

// Attempt is the 1-based number of decisions requested so far, this one included.
func (c RetryContext[P]) Attempt() int { return c.attempt }

// FirstError is the error of the first failed invocation.
func (c RetryContext[P]) FirstError() error { return c.firstError }

// LatestError is the error of the most recent failed invocation.
func (c RetryContext[P]) LatestError() error { return c.latestError }

// FirstParameter is the parameter of the first invocation.
func (c RetryContext[P]) FirstParameter() P { return c.firstParameter }

// LatestParameter is the parameter of the most recent invocation.
func (c RetryContext[P]) LatestParameter() P { return c.latestParameter }

// String implements fmt.Stringer
func (c RetryContext[P]) String() string {
	return fmt.Sprintf("attempt %d: %v", c.attempt, c.latestError)
}
