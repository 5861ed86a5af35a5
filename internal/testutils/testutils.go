// Package testutils provides in-memory query executors and clock helpers for tests
package testutils

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jzx17/ctsdk/pkg/query"
)

// DatasetExecutor serves pages of an in-memory dataset. It stands in for the
// remote API: every request is recorded, and individual pages can be held
// back or made to fail.
type DatasetExecutor[T any] struct {
	items []T

	mu        sync.Mutex
	queries   []query.BaseQuery
	completed []int64
	gates     map[int64]chan struct{}
	failures  map[int64]error
	totalHook func(int64) int64
}

// NewDatasetExecutor creates an executor over items, which are served in the
// order given.
func NewDatasetExecutor[T any](items []T) *DatasetExecutor[T] {
	return &DatasetExecutor[T]{
		items:    append([]T(nil), items...),
		gates:    make(map[int64]chan struct{}),
		failures: make(map[int64]error),
	}
}

// Sequence returns n consecutive ids starting at 1.
func Sequence(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}

// Execute implements query.Executor
func (e *DatasetExecutor[T]) Execute(ctx context.Context, q query.BaseQuery) (*query.PagedQueryResult[T], error) {
	offset, _ := q.Offset()
	limit, hasLimit := q.Limit()
	if !hasLimit {
		limit = int64(len(e.items))
	}

	e.mu.Lock()
	e.queries = append(e.queries, q)
	gate := e.gates[offset]
	failure := e.failures[offset]
	e.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	defer func() {
		e.mu.Lock()
		e.completed = append(e.completed, offset)
		e.mu.Unlock()
	}()

	if failure != nil {
		return nil, failure
	}

	start := min(offset, int64(len(e.items)))
	end := min(start+limit, int64(len(e.items)))
	total := int64(len(e.items))
	if e.totalHook != nil {
		total = e.totalHook(total)
	}

	return &query.PagedQueryResult[T]{
		Results: append([]T(nil), e.items[start:end]...),
		Total:   total,
		Offset:  offset,
		Limit:   limit,
	}, nil
}

// Hold blocks the page at offset until the returned release function is
// called. Release is idempotent.
func (e *DatasetExecutor[T]) Hold(offset int64) (release func()) {
	gate := make(chan struct{})
	e.mu.Lock()
	e.gates[offset] = gate
	e.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// FailAt makes the page at offset fail with err.
func (e *DatasetExecutor[T]) FailAt(offset int64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[offset] = err
}

// ReportTotal overrides the total reported by every page.
func (e *DatasetExecutor[T]) ReportTotal(fn func(actual int64) int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.totalHook = fn
}

// Queries returns the requests received so far, in arrival order.
func (e *DatasetExecutor[T]) Queries() []query.BaseQuery {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]query.BaseQuery(nil), e.queries...)
}

// Offsets returns the offsets requested so far, in arrival order.
func (e *DatasetExecutor[T]) Offsets() []int64 {
	queries := e.Queries()
	offsets := make([]int64, 0, len(queries))
	for _, q := range queries {
		offset, _ := q.Offset()
		offsets = append(offsets, offset)
	}
	return offsets
}

// Completed returns the offsets of finished requests in completion order.
func (e *DatasetExecutor[T]) Completed() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int64(nil), e.completed...)
}

// WaitForCompleted waits until the page at offset has finished.
func (e *DatasetExecutor[T]) WaitForCompleted(t testing.TB, offset int64) {
	t.Helper()
	assert.Eventually(t, func() bool {
		for _, done := range e.Completed() {
			if done == offset {
				return true
			}
		}
		return false
	}, 5*time.Second, time.Millisecond, "page at offset %d did not complete", offset)
}

// ErrInjected is a convenience failure for FailAt.
var ErrInjected = errors.New("injected page failure")
