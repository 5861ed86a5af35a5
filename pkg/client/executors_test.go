package client_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	jperrors "github.com/JohnPlummer/jp-go-errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jzx17/ctsdk/internal/testutils"
	"github.com/jzx17/ctsdk/pkg/client"
	"github.com/jzx17/ctsdk/pkg/query"
	"github.com/jzx17/ctsdk/pkg/queryall"
	"github.com/jzx17/ctsdk/pkg/retry"
	"github.com/jzx17/ctsdk/pkg/types"
)

// countingExecutor fails its first failures calls with err.
type countingExecutor struct {
	calls    int32
	failures int32
	err      error
	next     query.Executor[int]
}

func (c *countingExecutor) Execute(ctx context.Context, q query.BaseQuery) (*query.PagedQueryResult[int], error) {
	n := atomic.AddInt32(&c.calls, 1)
	if n <= atomic.LoadInt32(&c.failures) {
		return nil, c.err
	}
	return c.next.Execute(ctx, q)
}

func (c *countingExecutor) Calls() int {
	return int(atomic.LoadInt32(&c.calls))
}

var _ = Describe("BlockingExecutor", func() {
	var (
		ctx     context.Context
		dataset *testutils.DatasetExecutor[int]
	)

	BeforeEach(func() {
		ctx = context.Background()
		dataset = testutils.NewDatasetExecutor(testutils.Sequence(5))
	})

	It("rejects a nil executor", func() {
		_, err := client.NewBlockingExecutor[int](nil, time.Second)
		Expect(err).To(MatchError(types.ErrNilExecutor))
	})

	It("falls back to the default timeout", func() {
		executor, err := client.NewBlockingExecutor[int](dataset, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(executor.Timeout()).To(Equal(client.DefaultTimeout))
	})

	It("returns the page when it arrives in time", func() {
		executor, err := client.NewBlockingExecutor[int](dataset, time.Second)
		Expect(err).NotTo(HaveOccurred())

		page, err := executor.Execute(ctx, query.New().WithLimit(2))
		Expect(err).NotTo(HaveOccurred())
		Expect(page.Results).To(Equal([]int{1, 2}))
		Expect(page.Total).To(Equal(int64(5)))
	})

	It("reports a timeout instead of a partial result", func() {
		release := dataset.Hold(0)
		defer release()

		executor, err := client.NewBlockingExecutor[int](dataset, time.Minute)
		Expect(err).NotTo(HaveOccurred())

		page, err := executor.ExecuteWithTimeout(ctx, query.New(), 20*time.Millisecond)
		Expect(page).To(BeNil())
		Expect(jperrors.IsTimeout(err)).To(BeTrue())
	})

	It("awaits any future", func() {
		future := types.Go(nil, func() (string, error) { return "done", nil })
		value, err := types.Await(ctx, nil, future, time.Second, "test")
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("done"))
	})
})

var _ = Describe("CircuitBreakerExecutor", func() {
	var (
		ctx     context.Context
		backend *countingExecutor
		boom    error
	)

	BeforeEach(func() {
		ctx = context.Background()
		boom = errors.New("backend unavailable")
		backend = &countingExecutor{
			failures: 1000,
			err:      boom,
			next:     testutils.NewDatasetExecutor(testutils.Sequence(5)),
		}
	})

	It("opens after consecutive failures and rejects without calling the backend", func() {
		executor, err := client.NewCircuitBreakerExecutor[int](backend,
			client.WithBreakerName("products"),
			client.WithConsecutiveFailures(3),
			client.WithOpenTimeout(time.Minute))
		Expect(err).NotTo(HaveOccurred())
		Expect(executor.State()).To(Equal("closed"))

		for i := 0; i < 3; i++ {
			_, err := executor.Execute(ctx, query.New())
			Expect(err).To(MatchError(boom))
		}
		Expect(executor.State()).To(Equal("open"))

		_, err = executor.Execute(ctx, query.New())
		Expect(errors.Is(err, types.ErrCircuitOpen)).To(BeTrue())
		Expect(backend.Calls()).To(Equal(3))
	})

	It("does not count caller cancellation as a failure", func() {
		backend.err = context.Canceled
		executor, err := client.NewCircuitBreakerExecutor[int](backend, client.WithConsecutiveFailures(2))
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 5; i++ {
			_, err := executor.Execute(ctx, query.New())
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		}
		Expect(executor.State()).To(Equal("closed"))
	})

	It("passes pages through while closed", func() {
		backend.failures = 0
		executor, err := client.NewCircuitBreakerExecutor[int](backend)
		Expect(err).NotTo(HaveOccurred())

		page, err := executor.Execute(ctx, query.New().WithLimit(3))
		Expect(err).NotTo(HaveOccurred())
		Expect(page.Results).To(Equal([]int{1, 2, 3}))
		Expect(executor.Counts().TotalSuccesses).To(Equal(uint32(1)))
	})
})

var _ = Describe("RetryingExecutor", func() {
	var (
		ctx     context.Context
		actions []retry.RetryAction[query.BaseQuery]
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		actions, err = client.DefaultRetryActions(client.BackoffConfig{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("retries transient failures", func() {
		backend := &countingExecutor{
			failures: 2,
			err:      jperrors.NewTimeoutError("page timed out", "query page", time.Second),
			next:     testutils.NewDatasetExecutor(testutils.Sequence(5)),
		}
		executor, err := client.NewRetryingExecutor[int](backend, actions, retry.WithName("products"))
		Expect(err).NotTo(HaveOccurred())

		page, err := executor.Execute(ctx, query.New())
		Expect(err).NotTo(HaveOccurred())
		Expect(page.Results).To(HaveLen(5))
		Expect(backend.Calls()).To(Equal(3))
		Expect(executor.Stats().TotalRetries).To(Equal(int64(2)))
	})

	It("gives up on transient failures after the retry budget", func() {
		timeout := jperrors.NewTimeoutError("page timed out", "query page", time.Second)
		backend := &countingExecutor{
			failures: 1000,
			err:      timeout,
			next:     testutils.NewDatasetExecutor(testutils.Sequence(5)),
		}
		executor, err := client.NewRetryingExecutor[int](backend, actions)
		Expect(err).NotTo(HaveOccurred())

		_, err = executor.Execute(ctx, query.New())
		Expect(err).To(MatchError(timeout))
		Expect(backend.Calls()).To(Equal(4))
		Expect(executor.Stopped()).To(BeFalse())
	})

	It("does not retry permanent failures", func() {
		invalid := errors.New("invalid predicate")
		backend := &countingExecutor{
			failures: 1000,
			err:      invalid,
			next:     testutils.NewDatasetExecutor(testutils.Sequence(5)),
		}
		executor, err := client.NewRetryingExecutor[int](backend, actions)
		Expect(err).NotTo(HaveOccurred())

		_, err = executor.Execute(ctx, query.New())
		Expect(err).To(MatchError(invalid))
		Expect(backend.Calls()).To(Equal(1))
	})

	It("stops on a shutdown decision", func() {
		unauthorized := errors.New("invalid_token")
		backend := &countingExecutor{
			failures: 1000,
			err:      unauthorized,
			next:     testutils.NewDatasetExecutor(testutils.Sequence(5)),
		}
		executor, err := client.NewRetryingExecutor[int](backend,
			[]retry.RetryAction[query.BaseQuery]{retry.ShutdownServiceAndSendFirstException[query.BaseQuery]()})
		Expect(err).NotTo(HaveOccurred())

		_, err = executor.Execute(ctx, query.New())
		Expect(err).To(MatchError(unauthorized))
		Expect(executor.Stopped()).To(BeTrue())

		_, err = executor.Execute(ctx, query.New())
		Expect(err).To(MatchError(types.ErrServiceStopped))
		Expect(backend.Calls()).To(Equal(1))
	})

	It("classifies transient errors", func() {
		Expect(client.IsTransient(nil)).To(BeFalse())
		Expect(client.IsTransient(context.Canceled)).To(BeFalse())
		Expect(client.IsTransient(context.DeadlineExceeded)).To(BeFalse())
		Expect(client.IsTransient(errors.New("bad request"))).To(BeFalse())
		Expect(client.IsTransient(jperrors.NewTimeoutError("slow", "op", time.Second))).To(BeTrue())
		Expect(client.IsTransient(jperrors.ErrRateLimited)).To(BeTrue())
		Expect(client.IsTransient(types.ErrCircuitOpen)).To(BeTrue())
	})
})

var _ = Describe("Decorated traversal", func() {
	It("collects every page through blocking, breaker and retry decorators", func() {
		ctx := context.Background()
		backend := &countingExecutor{
			failures: 1,
			err:      jperrors.NewTimeoutError("page timed out", "query page", time.Second),
			next:     testutils.NewDatasetExecutor(testutils.Sequence(57)),
		}

		blocking, err := client.NewBlockingExecutor[int](backend, 5*time.Second)
		Expect(err).NotTo(HaveOccurred())
		breaker, err := client.NewCircuitBreakerExecutor[int](blocking)
		Expect(err).NotTo(HaveOccurred())
		actions, err := client.DefaultRetryActions(client.BackoffConfig{MaxAttempts: 2, InitialDelay: time.Millisecond})
		Expect(err).NotTo(HaveOccurred())
		retrying, err := client.NewRetryingExecutor[int](breaker, actions)
		Expect(err).NotTo(HaveOccurred())

		qa, err := queryall.New[int](query.New(), 10)
		Expect(err).NotTo(HaveOccurred())

		values, err := qa.Run(ctx, retrying)
		Expect(err).NotTo(HaveOccurred())
		Expect(values).To(Equal(testutils.Sequence(57)))
		Expect(backend.Calls()).To(Equal(7))
	})
})
