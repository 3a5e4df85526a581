// Package query provides the deferred, composable view over an entity set
// that selectors, filters and sorters operate on. A Query is evaluated by the
// persistence adapter that owns its Source.
package query

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ErrNoSource is returned when a Query built without a Source is executed.
var ErrNoSource = errors.New("query has no source")

// Source enumerates the committed contents of an entity set.
type Source interface {
	Enumerate(ctx context.Context) ([]any, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context) ([]any, error)

// Enumerate calls f.
func (f SourceFunc) Enumerate(ctx context.Context) ([]any, error) { return f(ctx) }

// Slice returns a Source over a fixed slice. Used by tests and by callers
// that already hold the materialized elements.
func Slice(items []any) Source {
	return SourceFunc(func(context.Context) ([]any, error) {
		return slices.Clone(items), nil
	})
}

// Comparer orders two elements the way cmp.Compare does.
type Comparer func(a, b any) int

// Projection maps an element onto its projected form while the query runs.
type Projection func(ctx context.Context, v any) (any, error)

// Query is immutable: every builder method returns a new Query and leaves
// the receiver untouched, so a base query can be shared between requests.
type Query struct {
	source  Source
	where   []func(any) bool
	order   []Comparer
	skip    int
	take    int // negative means unbounded
	project Projection
}

// From starts a query over src.
func From(src Source) *Query {
	return &Query{source: src, take: -1}
}

func (q *Query) clone() *Query {
	c := *q
	c.where = slices.Clone(q.where)
	c.order = slices.Clone(q.order)
	return &c
}

// Where restricts the query to elements matching pred.
func (q *Query) Where(pred func(any) bool) *Query {
	if pred == nil {
		return q
	}
	n := q.clone()
	n.where = append(n.where, pred)
	return n
}

// OrderBy replaces any existing ordering with c.
func (q *Query) OrderBy(c Comparer) *Query {
	n := q.clone()
	n.order = []Comparer{c}
	return n
}

// ThenBy appends c as a tie breaker to the current ordering.
func (q *Query) ThenBy(c Comparer) *Query {
	n := q.clone()
	n.order = append(n.order, c)
	return n
}

// Ordered reports whether an ordering has been applied.
func (q *Query) Ordered() bool { return len(q.order) > 0 }

// Skip drops the first n elements after filtering and ordering.
func (q *Query) Skip(n int) *Query {
	c := q.clone()
	if n > 0 {
		c.skip += n
	}
	return c
}

// Take limits the result to at most n elements.
func (q *Query) Take(n int) *Query {
	c := q.clone()
	if n >= 0 && (c.take < 0 || n < c.take) {
		c.take = n
	}
	return c
}

// Select projects every returned element through p.
func (q *Query) Select(p Projection) *Query {
	c := q.clone()
	c.project = p
	return c
}

// Projected reports whether Select has been applied.
func (q *Query) Projected() bool { return q.project != nil }

// Execute enumerates the source and applies filters, ordering, the page
// window and the projection, in that order. Ordering is stable.
func (q *Query) Execute(ctx context.Context) ([]any, error) {
	items, err := q.window(ctx)
	if err != nil {
		return nil, err
	}
	if q.project == nil {
		return items, nil
	}
	out := make([]any, 0, len(items))
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := q.project(ctx, it)
		if err != nil {
			return nil, fmt.Errorf("projecting element: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Count returns the number of elements Execute would return without
// running the projection.
func (q *Query) Count(ctx context.Context) (int, error) {
	items, err := q.window(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (q *Query) window(ctx context.Context) ([]any, error) {
	if q.source == nil {
		return nil, ErrNoSource
	}
	all, err := q.source.Enumerate(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]any, 0, len(all))
	for _, it := range all {
		if q.matches(it) {
			items = append(items, it)
		}
	}
	if len(q.order) > 0 {
		slices.SortStableFunc(items, q.compare)
	}
	if q.skip > 0 {
		if q.skip >= len(items) {
			return []any{}, nil
		}
		items = items[q.skip:]
	}
	if q.take >= 0 && q.take < len(items) {
		items = items[:q.take]
	}
	return items, nil
}

func (q *Query) matches(v any) bool {
	for _, pred := range q.where {
		if !pred(v) {
			return false
		}
	}
	return true
}

func (q *Query) compare(a, b any) int {
	for _, c := range q.order {
		if r := c(a, b); r != 0 {
			return r
		}
	}
	return 0
}
