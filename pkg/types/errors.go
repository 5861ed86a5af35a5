// Package types defines error types
package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Predefined errors
var (
	// ErrInvalidPageSize indicates a traversal was configured with a page size below 1
	ErrInvalidPageSize = errors.New("page size must be positive")

	// ErrInvalidMaxAttempts indicates a bounded retry action was configured with a negative limit
	ErrInvalidMaxAttempts = errors.New("max attempts must not be negative")

	// ErrNoApplicableAction indicates no retry action in a chain produced a decision
	ErrNoApplicableAction = errors.New("no retry action applies")

	// ErrNoRetryActions indicates a retry executor was built without actions
	ErrNoRetryActions = errors.New("at least one retry action is required")

	// ErrServiceStopped indicates the retrying facility was stopped and accepts no more work
	ErrServiceStopped = errors.New("service is stopped")

	// ErrCircuitOpen indicates a request was rejected by an open circuit breaker
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrNilExecutor indicates a nil query executor was supplied
	ErrNilExecutor = errors.New("query executor is nil")
)

// SDKError decorates an operational failure with the operation it happened
// in and a set of context values (page number, offset, attempts, ...).
type SDKError struct {
	// Operation is the name of the operation where the error occurred
	Operation string

	// Cause is the underlying error
	Cause error

	// Context contains error context information
	Context map[string]any
}

// NewSDKError creates a new SDK error
func NewSDKError(operation string, cause error) *SDKError {
	return &SDKError{
		Operation: operation,
		Cause:     cause,
		Context:   make(map[string]any),
	}
}

// Error implements the error interface
func (e *SDKError) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("%s failed: %v", e.Operation, e.Cause)
	}

	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, e.Context[k]))
	}
	return fmt.Sprintf("%s failed (%s): %v", e.Operation, strings.Join(pairs, " "), e.Cause)
}

// Unwrap returns the underlying error
func (e *SDKError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is a specific error
func (e *SDKError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

// WithContext adds error context
func (e *SDKError) WithContext(key string, value any) *SDKError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ContextValue returns a context value recorded on err or any SDKError it wraps.
func ContextValue(err error, key string) (any, bool) {
	var sdkErr *SDKError
	for errors.As(err, &sdkErr) {
		if v, ok := sdkErr.Context[key]; ok {
			return v, true
		}
		err = sdkErr.Cause
	}
	return nil, false
}
