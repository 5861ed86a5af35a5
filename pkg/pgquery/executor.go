// Package pgquery serves paged queries from a PostgreSQL table. It lets a
// traversal run against a local mirror of platform data with the same
// offset/limit semantics as the remote API.
package pgquery

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jzx17/ctsdk/pkg/query"
	"github.com/jzx17/ctsdk/pkg/types"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Executor implements query.Executor over one table. The predicate of a
// query is used as a SQL WHERE fragment with $1, $2, ... placeholders bound
// to its arguments. Expansions have no SQL meaning and are ignored.
type Executor[T any] struct {
	db      Querier
	table   string
	columns []string
	scan    pgx.RowToFunc[T]
}

// Option configures an Executor
type Option[T any] func(*Executor[T])

// WithColumns selects the given columns instead of *.
func WithColumns[T any](columns ...string) Option[T] {
	return func(e *Executor[T]) {
		e.columns = append([]string(nil), columns...)
	}
}

// WithRowMapper replaces the default struct-by-name row mapping.
func WithRowMapper[T any](scan pgx.RowToFunc[T]) Option[T] {
	return func(e *Executor[T]) {
		e.scan = scan
	}
}

// NewExecutor creates an executor reading table through db.
func NewExecutor[T any](db Querier, table string, opts ...Option[T]) (*Executor[T], error) {
	if db == nil {
		return nil, fmt.Errorf("pgquery: querier is nil")
	}
	if table == "" {
		return nil, fmt.Errorf("pgquery: table name is empty")
	}

	e := &Executor[T]{
		db:    db,
		table: table,
		scan:  pgx.RowToStructByName[T],
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute implements query.Executor
func (e *Executor[T]) Execute(ctx context.Context, q query.BaseQuery) (*query.PagedQueryResult[T], error) {
	countSQL, countArgs := e.CountSQL(q)
	var total int64
	if err := e.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, types.NewSDKError("count rows", err).WithContext("table", e.table)
	}

	selectSQL, args := e.SelectSQL(q)
	rows, err := e.db.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, types.NewSDKError("select rows", err).WithContext("table", e.table)
	}
	results, err := pgx.CollectRows(rows, e.scan)
	if err != nil {
		return nil, types.NewSDKError("scan rows", err).WithContext("table", e.table)
	}

	offset, _ := q.Offset()
	limit, hasLimit := q.Limit()
	if !hasLimit {
		limit = int64(len(results))
	}

	return &query.PagedQueryResult[T]{
		Results: results,
		Total:   total,
		Offset:  offset,
		Limit:   limit,
	}, nil
}

// CountSQL renders the statement counting every row matching the predicate.
func (e *Executor[T]) CountSQL(q query.BaseQuery) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT count(*) FROM ")
	b.WriteString(e.tableIdentifier())

	predicate, args := q.Predicate()
	if predicate != "" {
		b.WriteString(" WHERE ")
		b.WriteString(predicate)
	}
	return b.String(), args
}

// SelectSQL renders the statement fetching one page.
func (e *Executor[T]) SelectSQL(q query.BaseQuery) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if len(e.columns) == 0 {
		b.WriteString("*")
	} else {
		quoted := make([]string, len(e.columns))
		for i, column := range e.columns {
			quoted[i] = pgx.Identifier{column}.Sanitize()
		}
		b.WriteString(strings.Join(quoted, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(e.tableIdentifier())

	predicate, args := q.Predicate()
	if predicate != "" {
		b.WriteString(" WHERE ")
		b.WriteString(predicate)
	}

	if sorts := q.Sort(); len(sorts) > 0 {
		clauses := make([]string, len(sorts))
		for i, s := range sorts {
			direction := "ASC"
			if s.Direction == query.Desc {
				direction = "DESC"
			}
			clauses[i] = pgx.Identifier{s.Field}.Sanitize() + " " + direction
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(clauses, ", "))
	}

	if limit, ok := q.Limit(); ok {
		args = append(args, limit)
		b.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	if offset, ok := q.Offset(); ok {
		args = append(args, offset)
		b.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	}
	return b.String(), args
}

// tableIdentifier quotes the table name. A schema-qualified name such as
// public.products is quoted part by part.
func (e *Executor[T]) tableIdentifier() string {
	return pgx.Identifier(strings.Split(e.table, ".")).Sanitize()
}
