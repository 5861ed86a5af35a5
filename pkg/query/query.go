// Package query defines the immutable query descriptor and the paged query
// contract the traversal engine runs against.
package query

import (
	"context"
	"fmt"
	"strings"
)

// Direction is a sort direction
type Direction string

const (
	// Asc sorts ascending
	Asc Direction = "asc"
	// Desc sorts descending
	Desc Direction = "desc"
)

// Sort is one sort clause, rendered as "<field> <direction>".
type Sort struct {
	Field     string
	Direction Direction
}

// SortBy creates an ascending sort clause on field
func SortBy(field string) Sort {
	return Sort{Field: field, Direction: Asc}
}

// SortByDesc creates a descending sort clause on field
func SortByDesc(field string) Sort {
	return Sort{Field: field, Direction: Desc}
}

// DefaultSort is the stable order injected by traversals when a query has no sort.
var DefaultSort = SortBy("id")

// String implements fmt.Stringer
func (s Sort) String() string {
	dir := s.Direction
	if dir == "" {
		dir = Asc
	}
	return s.Field + " " + string(dir)
}

// ParseSort parses a clause of the form "id asc" or "createdAt desc".
// A missing direction means ascending.
func ParseSort(expr string) (Sort, error) {
	fields := strings.Fields(expr)
	switch len(fields) {
	case 1:
		return SortBy(fields[0]), nil
	case 2:
		switch Direction(strings.ToLower(fields[1])) {
		case Asc:
			return SortBy(fields[0]), nil
		case Desc:
			return SortByDesc(fields[0]), nil
		}
		return Sort{}, fmt.Errorf("invalid sort direction %q in %q", fields[1], expr)
	default:
		return Sort{}, fmt.Errorf("invalid sort expression %q", expr)
	}
}

// BaseQuery is an immutable query descriptor. The With* methods return a
// modified copy and never touch the receiver.
type BaseQuery struct {
	predicate  string
	args       []any
	sort       []Sort
	offset     *int64
	limit      *int64
	expansions []string
}

// New creates an empty query: no predicate, no sort, server default paging.
func New() BaseQuery {
	return BaseQuery{}
}

// Predicate returns the filter expression and its positional arguments.
func (q BaseQuery) Predicate() (string, []any) {
	return q.predicate, append([]any(nil), q.args...)
}

// Sort returns a copy of the sort clauses.
func (q BaseQuery) Sort() []Sort {
	return append([]Sort(nil), q.sort...)
}

// Offset returns the offset and whether one was set.
func (q BaseQuery) Offset() (int64, bool) {
	if q.offset == nil {
		return 0, false
	}
	return *q.offset, true
}

// Limit returns the limit and whether one was set.
func (q BaseQuery) Limit() (int64, bool) {
	if q.limit == nil {
		return 0, false
	}
	return *q.limit, true
}

// Expansions returns a copy of the reference expansion paths.
func (q BaseQuery) Expansions() []string {
	return append([]string(nil), q.expansions...)
}

// WithPredicate replaces the filter expression.
func (q BaseQuery) WithPredicate(expr string, args ...any) BaseQuery {
	q.predicate = expr
	q.args = append([]any(nil), args...)
	return q
}

// WithSort replaces the sort clauses.
func (q BaseQuery) WithSort(sort ...Sort) BaseQuery {
	q.sort = append([]Sort(nil), sort...)
	return q
}

// WithOffset sets the offset.
func (q BaseQuery) WithOffset(offset int64) BaseQuery {
	q.offset = &offset
	return q
}

// WithLimit sets the limit.
func (q BaseQuery) WithLimit(limit int64) BaseQuery {
	q.limit = &limit
	return q
}

// WithExpansions replaces the reference expansion paths.
func (q BaseQuery) WithExpansions(paths ...string) BaseQuery {
	q.expansions = append([]string(nil), paths...)
	return q
}

// String renders the query for logs and diagnostics.
func (q BaseQuery) String() string {
	var b strings.Builder
	b.WriteString("query{")
	parts := make([]string, 0, 5)
	if q.predicate != "" {
		parts = append(parts, fmt.Sprintf("where=%q", q.predicate))
	}
	if len(q.sort) > 0 {
		clauses := make([]string, len(q.sort))
		for i, s := range q.sort {
			clauses[i] = s.String()
		}
		parts = append(parts, "sort="+strings.Join(clauses, ","))
	}
	if q.offset != nil {
		parts = append(parts, fmt.Sprintf("offset=%d", *q.offset))
	}
	if q.limit != nil {
		parts = append(parts, fmt.Sprintf("limit=%d", *q.limit))
	}
	if len(q.expansions) > 0 {
		parts = append(parts, "expand="+strings.Join(q.expansions, ","))
	}
	b.WriteString(strings.Join(parts, " "))
	b.WriteString("}")
	return b.String()
}

// PagedQueryResult is one page of a query result.
type PagedQueryResult[T any] struct {
	// Results holds the page's elements in server order
	Results []T
	// Total is the number of elements matching the predicate across all pages
	Total int64
	// Offset is the offset the page was fetched with
	Offset int64
	// Limit is the limit the page was fetched with
	Limit int64
}

// Count returns the number of elements on the page.
func (r *PagedQueryResult[T]) Count() int {
	return len(r.Results)
}

// Executor executes a query and returns one page. Implementations must honor
// offset and limit and report Total independently of them.
type Executor[T any] interface {
	Execute(ctx context.Context, q BaseQuery) (*PagedQueryResult[T], error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc[T any] func(ctx context.Context, q BaseQuery) (*PagedQueryResult[T], error)

// Execute calls f.
func (f ExecutorFunc[T]) Execute(ctx context.Context, q BaseQuery) (*PagedQueryResult[T], error) {
	return f(ctx, q)
}
