package retry

import (
	"math"
	"math/rand"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// DelayFunc computes the wait before a scheduled retry from the retry history.
type DelayFunc[P any] func(RetryContext[P]) time.Duration

// FixedDelay waits the same duration before every retry.
func FixedDelay[P any](delay time.Duration) DelayFunc[P] {
	return func(RetryContext[P]) time.Duration {
		return delay
	}
}

// ExponentialDelay waits initial * multiplier^(attempt-1), capped at maxDelay.
// A non-positive maxDelay disables the cap.
func ExponentialDelay[P any](initial time.Duration, multiplier float64, maxDelay time.Duration) DelayFunc[P] {
	if multiplier <= 0 {
		multiplier = 2.0
	}
	return func(rc RetryContext[P]) time.Duration {
		attempt := max(rc.Attempt(), 1)
		delay := float64(initial) * math.Pow(multiplier, float64(attempt-1))
		if maxDelay > 0 && delay >= float64(maxDelay) {
			return maxDelay
		}
		// float64(math.MaxInt64) rounds up to 2^63, so compare with >=.
		if delay >= float64(math.MaxInt64) {
			return time.Duration(math.MaxInt64)
		}
		return capDelay(time.Duration(delay), maxDelay)
	}
}

// LinearDelay waits initial + (attempt-1)*increment, capped at maxDelay.
func LinearDelay[P any](initial, increment, maxDelay time.Duration) DelayFunc[P] {
	return func(rc RetryContext[P]) time.Duration {
		attempt := max(rc.Attempt(), 1)
		return capDelay(initial+time.Duration(attempt-1)*increment, maxDelay)
	}
}

// FromBackoff adapts a go-retry backoff. factory must return a fresh backoff;
// it is advanced once per attempt so the delay only depends on the attempt
// number. When the backoff stops early the last delay it produced is reused.
func FromBackoff[P any](factory func() goretry.Backoff) DelayFunc[P] {
	return func(rc RetryContext[P]) time.Duration {
		b := factory()
		var delay time.Duration
		for i := 0; i < max(rc.Attempt(), 1); i++ {
			next, stop := b.Next()
			if stop {
				break
			}
			delay = next
		}
		return delay
	}
}

// WithJitter spreads the delay of next by up to ±factor of its value.
// factor outside (0, 1] leaves the delay unchanged.
func WithJitter[P any](factor float64, next DelayFunc[P]) DelayFunc[P] {
	return func(rc RetryContext[P]) time.Duration {
		delay := next(rc)
		if factor <= 0 || factor > 1 || delay <= 0 {
			return delay
		}

		jitterRange := float64(delay) * factor
		jitterAmount := (rand.Float64() - 0.5) * 2 * jitterRange

		result := delay + time.Duration(jitterAmount)
		if result < 0 {
			result = delay / 2
		}
		return result
	}
}

func capDelay(delay, maxDelay time.Duration) time.Duration {
	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}
	return delay
}
