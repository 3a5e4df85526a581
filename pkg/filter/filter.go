// Package filter builds membership restrictions applied to an entity query
// before selection and ordering. Filters compose in declaration order and
// never reorder elements.
package filter

import (
	"fmt"
	"reflect"

	"github.com/mesh-intelligence/pantry/pkg/key"
	"github.com/mesh-intelligence/pantry/pkg/query"
	"github.com/mesh-intelligence/pantry/pkg/selector"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Filter restricts q for req.
type Filter func(req any, q *query.Query) (*query.Query, error)

// Where keeps entities matching pred.
func Where[TEntity any](pred func(TEntity) bool) Filter {
	return fromSelector(selector.Where(pred))
}

// On keeps entities for which pred(req, entity) holds.
func On[TReq, TEntity any](pred func(TReq, TEntity) bool) Filter {
	return fromSelector(selector.Predicate(pred))
}

// Keys keeps entities whose entity key equals the request key.
func Keys(requestKey, entityKey key.Key) Filter {
	return fromSelector(selector.FromKeys(requestKey, entityKey))
}

// When applies f only when gate holds for the request.
func When[TReq any](gate func(TReq) bool, f Filter) Filter {
	return func(req any, q *query.Query) (*query.Query, error) {
		r, ok := req.(TReq)
		if !ok {
			return nil, fmt.Errorf("filter expects request %s, got %T: %w", reflect.TypeFor[TReq](), req, types.ErrTypeMismatch)
		}
		if !gate(r) {
			return q, nil
		}
		return f(req, q)
	}
}

// Using wraps a caller-supplied query transform. The transform must only
// restrict membership.
func Using[TReq any](f func(req TReq, q *query.Query) (*query.Query, error)) Filter {
	return func(req any, q *query.Query) (*query.Query, error) {
		r, ok := req.(TReq)
		if !ok {
			return nil, fmt.Errorf("filter expects request %s, got %T: %w", reflect.TypeFor[TReq](), req, types.ErrTypeMismatch)
		}
		return f(r, q)
	}
}

// Apply runs filters over q in order. Nil filters are skipped.
func Apply(req any, q *query.Query, filters ...Filter) (*query.Query, error) {
	for i, f := range filters {
		if f == nil {
			continue
		}
		next, err := f(req, q)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i, err)
		}
		q = next
	}
	return q, nil
}

func fromSelector(sel selector.Selector) Filter {
	return func(req any, q *query.Query) (*query.Query, error) {
		return sel.Apply(req, q)
	}
}
