package retry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryContext(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")

	rc := NewRetryContext(first, "p1")
	assert.Equal(t, 1, rc.Attempt())
	assert.Equal(t, first, rc.FirstError())
	assert.Equal(t, first, rc.LatestError())
	assert.Equal(t, "p1", rc.FirstParameter())
	assert.Equal(t, "p1", rc.LatestParameter())

	next := rc.Next(second, "p2")
	assert.Equal(t, 2, next.Attempt())
	assert.Equal(t, first, next.FirstError())
	assert.Equal(t, second, next.LatestError())
	assert.Equal(t, "p1", next.FirstParameter())
	assert.Equal(t, "p2", next.LatestParameter())

	t.Run("next leaves the receiver unchanged", func(t *testing.T) {
		assert.Equal(t, 1, rc.Attempt())
		assert.Equal(t, first, rc.LatestError())
		assert.Equal(t, "p1", rc.LatestParameter())
	})

	t.Run("string", func(t *testing.T) {
		assert.Equal(t, "attempt 2: second", next.String())
	})
}

// contextAt builds a context whose attempt is n.
func contextAt(n int, err error, parameter string) RetryContext[string] {
	rc := NewRetryContext(err, parameter)
	for i := 1; i < n; i++ {
		rc = rc.Next(err, parameter)
	}
	return rc
}
