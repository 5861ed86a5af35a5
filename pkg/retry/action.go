package retry

import (
	"fmt"

	"github.com/jzx17/ctsdk/pkg/types"
)

// DecideFunc maps a retry history to a decision. A nil result means the
// function does not apply and the next action in the chain is consulted.
type DecideFunc[P any] func(RetryContext[P]) RetryResult[P]

// RetryAction is a named decision function.
type RetryAction[P any] struct {
	description string
	decide      DecideFunc[P]
}

// NewRetryAction creates a named action from a decision function.
func NewRetryAction[P any](description string, decide DecideFunc[P]) RetryAction[P] {
	return RetryAction[P]{description: description, decide: decide}
}

// Apply evaluates the action. A zero RetryAction never applies.
func (a RetryAction[P]) Apply(rc RetryContext[P]) RetryResult[P] {
	if a.decide == nil {
		return nil
	}
	return a.decide(rc)
}

// String returns the action's description
func (a RetryAction[P]) String() string {
	return a.description
}

// Decide evaluates actions in order and returns the first non-nil result.
// types.ErrNoApplicableAction is returned when none applies; terminate chains
// with a catch-all such as GiveUpAndSendLatestException.
func Decide[P any](rc RetryContext[P], actions ...RetryAction[P]) (RetryResult[P], error) {
	for _, action := range actions {
		if result := action.Apply(rc); result != nil {
			return result, nil
		}
	}
	return nil, fmt.Errorf("%w at attempt %d", types.ErrNoApplicableAction, rc.Attempt())
}

// ScheduledRetry retries with the delay computed by delayFn while the attempt
// is at most maxAttempts and resumes with the latest error afterwards.
func ScheduledRetry[P any](maxAttempts int, delayFn DelayFunc[P]) (RetryAction[P], error) {
	if err := validateMaxAttempts(maxAttempts); err != nil {
		return RetryAction[P]{}, err
	}
	if delayFn == nil {
		return RetryAction[P]{}, fmt.Errorf("scheduled retry: delay function is nil")
	}

	return NewRetryAction(
		fmt.Sprintf("schedule retry up to %d times", maxAttempts),
		func(rc RetryContext[P]) RetryResult[P] {
			if rc.Attempt() > maxAttempts {
				return Resume[P]{Err: rc.LatestError()}
			}
			return RetryScheduled[P]{Parameter: rc.LatestParameter(), Delay: delayFn(rc)}
		},
	), nil
}

// ImmediateRetries retries without delay while the attempt is at most
// maxAttempts and resumes with the latest error afterwards.
func ImmediateRetries[P any](maxAttempts int) (RetryAction[P], error) {
	if err := validateMaxAttempts(maxAttempts); err != nil {
		return RetryAction[P]{}, err
	}

	return NewRetryAction(
		fmt.Sprintf("immediate retry up to %d times", maxAttempts),
		func(rc RetryContext[P]) RetryResult[P] {
			if rc.Attempt() > maxAttempts {
				return Resume[P]{Err: rc.LatestError()}
			}
			return RetryImmediate[P]{Parameter: rc.LatestParameter()}
		},
	), nil
}

// GiveUpAndSendFirstException always resumes with the first error.
func GiveUpAndSendFirstException[P any]() RetryAction[P] {
	return NewRetryAction("give up and send first exception", func(rc RetryContext[P]) RetryResult[P] {
		return Resume[P]{Err: rc.FirstError()}
	})
}

// GiveUpAndSendLatestException always resumes with the latest error.
func GiveUpAndSendLatestException[P any]() RetryAction[P] {
	return NewRetryAction("give up and send latest exception", func(rc RetryContext[P]) RetryResult[P] {
		return Resume[P]{Err: rc.LatestError()}
	})
}

// ShutdownServiceAndSendFirstException always stops with the first error.
func ShutdownServiceAndSendFirstException[P any]() RetryAction[P] {
	return NewRetryAction("shut down and send first exception", func(rc RetryContext[P]) RetryResult[P] {
		return Stop[P]{Err: rc.FirstError()}
	})
}

// ShutdownServiceAndSendLatestException always stops with the latest error.
func ShutdownServiceAndSendLatestException[P any]() RetryAction[P] {
	return NewRetryAction("shut down and send latest exception", func(rc RetryContext[P]) RetryResult[P] {
		return Stop[P]{Err: rc.LatestError()}
	})
}

// When restricts action to errors accepted by match; for other errors it does
// not apply.
func When[P any](match func(error) bool, action RetryAction[P]) RetryAction[P] {
	return NewRetryAction(action.description+" when matched", func(rc RetryContext[P]) RetryResult[P] {
		if !match(rc.LatestError()) {
			return nil
		}
		return action.Apply(rc)
	})
}

// Must panics if err is non-nil. It is meant for package-level action chains.
func Must[P any](action RetryAction[P], err error) RetryAction[P] {
	if err != nil {
		panic(err)
	}
	return action
}

func validateMaxAttempts(maxAttempts int) error {
	if maxAttempts < 0 {
		return fmt.Errorf("%w: got %d", types.ErrInvalidMaxAttempts, maxAttempts)
	}
	return nil
}
