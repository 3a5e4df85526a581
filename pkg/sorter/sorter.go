// Package sorter builds the orderings applied to an entity query: Basic
// (gated clause chains), Switch (a control value picks a plan), Table
// (runtime column and direction controls) and Func (caller supplied).
//
// Every sorter is stateless once built and orders with a stable sort, so the
// same request over the same rows always yields the same order.
package sorter

import (
	"cmp"
	"errors"
	"fmt"
	"reflect"

	"github.com/mesh-intelligence/pantry/pkg/query"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// ErrNotOrdered is returned when a property clause names a field whose type
// has no natural order.
var ErrNotOrdered = errors.New("field type is not ordered")

// Sorter orders a query for one request.
type Sorter interface {
	Sort(req any, q *query.Query) (*query.Query, error)
}

// Func is a caller-supplied Sorter.
type Func func(req any, q *query.Query) (*query.Query, error)

// Sort calls f.
func (f Func) Sort(req any, q *query.Query) (*query.Query, error) { return f(req, q) }

// Clause is one ordering key with a direction.
type Clause struct {
	name    string
	compare query.Comparer
	dir     types.SortDirection
}

// By orders ascending by the value get reads from the entity.
func By[TEntity any, V cmp.Ordered](name string, get func(TEntity) V) Clause {
	return ByFunc(name, func(a, b TEntity) int { return cmp.Compare(get(a), get(b)) })
}

// ByFunc orders ascending with an explicit comparison.
func ByFunc[TEntity any](name string, compare func(a, b TEntity) int) Clause {
	return Clause{
		name: name,
		compare: func(a, b any) int {
			x, okA := a.(TEntity)
			y, okB := b.(TEntity)
			switch {
			case okA && okB:
				return compare(x, y)
			case okA:
				return -1
			case okB:
				return 1
			default:
				return 0
			}
		},
	}
}

// Property orders ascending by the exported field name of TEntity. The field
// must be a string, bool, integer or float.
func Property[TEntity any](name string) (Clause, error) {
	cmpFn, err := fieldComparer[TEntity](name)
	if err != nil {
		return Clause{}, fmt.Errorf("sort clause %q: %w", name, err)
	}
	return ByFunc(name, cmpFn), nil
}

// Name returns the clause name.
func (c Clause) Name() string { return c.name }

// Direction returns the clause direction.
func (c Clause) Direction() types.SortDirection { return c.dir }

// Asc returns c ordered ascending.
func (c Clause) Asc() Clause { return c.With(types.Ascending) }

// Desc returns c ordered descending.
func (c Clause) Desc() Clause { return c.With(types.Descending) }

// With returns c ordered in direction d.
func (c Clause) With(d types.SortDirection) Clause {
	c.dir = d
	return c
}

func (c Clause) comparer() query.Comparer {
	if c.dir == types.Descending {
		f := c.compare
		return func(a, b any) int { return f(b, a) }
	}
	return c.compare
}

// plan applies clauses as primary and then-by orderings. An empty plan
// leaves q unordered.
func plan(q *query.Query, clauses []Clause) *query.Query {
	for i, c := range clauses {
		if i == 0 {
			q = q.OrderBy(c.comparer())
			continue
		}
		q = q.ThenBy(c.comparer())
	}
	return q
}

func requestAs[TReq any](req any) (TReq, error) {
	r, ok := req.(TReq)
	if !ok {
		var zero TReq
		return zero, fmt.Errorf("sorter expects request %s, got %T: %w", reflect.TypeFor[TReq](), req, types.ErrTypeMismatch)
	}
	return r, nil
}
