// Package queryall fetches every page of a paged query and delivers the
// elements in page order.
//
// Page 0 is fetched first because it is the only source of the total element
// count. The remaining pages are then fetched concurrently and reassembled by
// page index, so the output order is concat(page 0, page 1, ...) regardless
// of completion order. The base query is sorted by id ascending when the
// caller gives no sort, which keeps offset pagination stable.
//
// Basic usage:
//
//	qa, err := queryall.New[Product](query.New().WithPredicate("masterData(published = true)"), 500)
//	products, err := qa.Run(ctx, executor)
//
//	names, err := queryall.Collect(ctx, qa, executor, func(p Product) string { return p.Name })
//
// A failed page fails the whole traversal and no partial output is returned.
// Pages already in flight are not cancelled.
package queryall

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	jperrors "github.com/JohnPlummer/jp-go-errors"
	"golang.org/x/sync/errgroup"

	"github.com/jzx17/ctsdk/pkg/query"
	"github.com/jzx17/ctsdk/pkg/types"
)

// QueryAll traverses all pages of a base query. It is immutable and may be
// run any number of times, concurrently.
type QueryAll[T any] struct {
	baseQuery   query.BaseQuery
	pageSize    int64
	concurrency int
	logger      *slog.Logger
	clock       types.Clock
	inst        *instrumentation
}

// New creates a traversal of baseQuery in pages of pageSize elements.
// Offset and limit of baseQuery are replaced per page.
func New[T any](baseQuery query.BaseQuery, pageSize int64, opts ...Option) (*QueryAll[T], error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", types.ErrInvalidPageSize, pageSize)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	inst, err := newInstrumentation(cfg.tracerProvider, cfg.meterProvider, elementTypeName[T]())
	if err != nil {
		return nil, err
	}

	if len(baseQuery.Sort()) == 0 {
		baseQuery = baseQuery.WithSort(query.DefaultSort)
	}

	return &QueryAll[T]{
		baseQuery:   baseQuery,
		pageSize:    pageSize,
		concurrency: cfg.concurrency,
		logger:      cfg.logger,
		clock:       cfg.clock,
		inst:        inst,
	}, nil
}

// BaseQuery returns the normalized base query every page request derives from.
func (qa *QueryAll[T]) BaseQuery() query.BaseQuery {
	return qa.baseQuery
}

// PageSize returns the number of elements requested per page.
func (qa *QueryAll[T]) PageSize() int64 {
	return qa.pageSize
}

// TotalPages returns the number of pages needed for total elements.
func (qa *QueryAll[T]) TotalPages(total int64) int64 {
	if total <= 0 {
		return 0
	}
	return int64(math.Ceil(float64(total) / float64(qa.pageSize)))
}

// Run fetches all elements in order.
func (qa *QueryAll[T]) Run(ctx context.Context, exec query.Executor[T]) ([]T, error) {
	return Collect(ctx, qa, exec, func(v T) T { return v })
}

// ForEach calls consumer for every element. Elements of page 0 are visited
// before any other page is requested; later pages are visited from their own
// goroutines, each in page order, so consumer must be safe for concurrent use.
func (qa *QueryAll[T]) ForEach(ctx context.Context, exec query.Executor[T], consumer func(T)) error {
	return qa.traverse(ctx, exec, pageHandler[T]{
		page: func(_ int64, results []T) {
			for _, v := range results {
				consumer(v)
			}
		},
	})
}

// ForEachAsync runs ForEach in a goroutine.
func (qa *QueryAll[T]) ForEachAsync(ctx context.Context, exec query.Executor[T], consumer func(T)) <-chan types.Result[struct{}] {
	return types.Go(qa.clock, func() (struct{}, error) {
		return struct{}{}, qa.ForEach(ctx, exec, consumer)
	})
}

// Collect fetches all elements and maps them through mapper. The result is
// ordered by page, then by position within the page.
func Collect[T, S any](ctx context.Context, qa *QueryAll[T], exec query.Executor[T], mapper func(T) S) ([]S, error) {
	var slots [][]S

	err := qa.traverse(ctx, exec, pageHandler[T]{
		begin: func(totalPages int64) {
			slots = make([][]S, totalPages)
		},
		page: func(index int64, results []T) {
			mapped := make([]S, len(results))
			for i, v := range results {
				mapped[i] = mapper(v)
			}
			slots[index] = mapped
		},
	})
	if err != nil {
		return nil, err
	}

	size := 0
	for _, slot := range slots {
		size += len(slot)
	}
	out := make([]S, 0, size)
	for _, slot := range slots {
		out = append(out, slot...)
	}
	return out, nil
}

// CollectAsync runs Collect in a goroutine.
func CollectAsync[T, S any](ctx context.Context, qa *QueryAll[T], exec query.Executor[T], mapper func(T) S) <-chan types.Result[[]S] {
	return types.Go(qa.clock, func() ([]S, error) {
		return Collect(ctx, qa, exec, mapper)
	})
}

// CollectBlocking waits at most timeout for Collect. On expiry it returns a
// timeout error and cancels the fetches still in flight; a partial result is
// never returned.
func CollectBlocking[T, S any](ctx context.Context, qa *QueryAll[T], exec query.Executor[T], mapper func(T) S, timeout time.Duration) ([]S, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	future := CollectAsync(ctx, qa, exec, mapper)

	values, err := types.Await(ctx, qa.clock, future, timeout, "queryall.collect")
	if jperrors.IsTimeout(err) {
		qa.logger.WarnContext(ctx, "query all timed out",
			slog.String("query", qa.baseQuery.String()),
			slog.Duration("timeout", timeout))
		return nil, err
	}
	return values, err
}

// pageHandler receives the pages of one traversal. begin is called once with
// the page count before any page is delivered; page is called once per page,
// concurrently for pages after the first.
type pageHandler[T any] struct {
	begin func(totalPages int64)
	page  func(index int64, results []T)
}

func (qa *QueryAll[T]) traverse(ctx context.Context, exec query.Executor[T], handler pageHandler[T]) (err error) {
	if exec == nil {
		return types.ErrNilExecutor
	}

	ctx, span := qa.inst.startTraversal(ctx, qa.pageSize)
	defer func() { endSpan(span, err) }()

	first, err := qa.fetch(ctx, exec, 0)
	if err != nil {
		qa.logger.WarnContext(ctx, "query all failed on first page",
			slog.String("query", qa.baseQuery.String()),
			slog.Any("error", err))
		return err
	}

	totalPages := qa.TotalPages(first.Total)
	qa.logger.DebugContext(ctx, "query all started",
		slog.String("query", qa.baseQuery.String()),
		slog.Int64("total", first.Total),
		slog.Int64("pages", totalPages))

	if handler.begin != nil {
		handler.begin(totalPages)
	}
	if totalPages == 0 {
		return nil
	}

	handler.page(0, first.Results)
	qa.inst.recordElements(ctx, len(first.Results))

	var g errgroup.Group
	if qa.concurrency > 0 {
		g.SetLimit(qa.concurrency)
	}
	for page := int64(1); page < totalPages; page++ {
		g.Go(func() error {
			result, err := qa.fetch(ctx, exec, page)
			if err != nil {
				return err
			}
			handler.page(page, result.Results)
			qa.inst.recordElements(ctx, len(result.Results))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		qa.logger.WarnContext(ctx, "query all failed",
			slog.String("query", qa.baseQuery.String()),
			slog.Int64("pages", totalPages),
			slog.Any("error", err))
		return err
	}
	return nil
}

func (qa *QueryAll[T]) fetch(ctx context.Context, exec query.Executor[T], page int64) (result *query.PagedQueryResult[T], err error) {
	offset := page * qa.pageSize

	ctx, span := qa.inst.startPage(ctx, page, offset)
	start := qa.clock.Now()
	defer func() {
		qa.inst.recordPage(ctx, float64(qa.clock.Since(start))/float64(time.Millisecond), err)
		endSpan(span, err)
	}()

	result, err = exec.Execute(ctx, qa.baseQuery.WithOffset(offset).WithLimit(qa.pageSize))
	if err != nil {
		return nil, types.NewSDKError("query page", err).
			WithContext("page", page).
			WithContext("offset", offset)
	}
	if result == nil {
		return nil, types.NewSDKError("query page", fmt.Errorf("executor returned no result")).
			WithContext("page", page).
			WithContext("offset", offset)
	}
	return result, nil
}
