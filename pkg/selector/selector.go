// Package selector builds the predicates that pick entities for a request.
// A Selector is built once per profile and evaluated once per request; the
// request-side value is captured when the Selector runs, not per entity.
package selector

import (
	"fmt"
	"reflect"

	"github.com/mesh-intelligence/pantry/pkg/key"
	"github.com/mesh-intelligence/pantry/pkg/query"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Selector maps a request onto a predicate over entities.
type Selector func(req any) (func(entity any) bool, error)

// Apply restricts q to the entities sel picks for req. A nil selector leaves
// q unchanged.
func (sel Selector) Apply(req any, q *query.Query) (*query.Query, error) {
	if sel == nil {
		return q, nil
	}
	pred, err := sel(req)
	if err != nil {
		return nil, err
	}
	return q.Where(pred), nil
}

// FromKeys picks entities whose entity key equals the request key. A key
// held in an interface field must carry a comparable value; entity keys that
// do not are never picked.
func FromKeys(requestKey, entityKey key.Key) Selector {
	return func(req any) (func(any) bool, error) {
		want, err := requestKey.Value(req)
		if err != nil {
			return nil, fmt.Errorf("reading request key: %w", err)
		}
		if !isHashable(want) {
			return nil, fmt.Errorf("request key %T: %w", want, key.ErrNotComparable)
		}
		return func(e any) bool {
			got, err := entityKey.Value(e)
			return err == nil && isHashable(got) && got == want
		}, nil
	}
}

// Where picks entities matching pred, independent of the request.
func Where[TEntity any](pred func(TEntity) bool) Selector {
	return func(any) (func(any) bool, error) {
		return entityPredicate(pred), nil
	}
}

// Predicate picks entities for which pred(req, entity) holds.
func Predicate[TReq, TEntity any](pred func(TReq, TEntity) bool) Selector {
	return func(req any) (func(any) bool, error) {
		r, err := requestAs[TReq](req)
		if err != nil {
			return nil, err
		}
		return entityPredicate(func(e TEntity) bool { return pred(r, e) }), nil
	}
}

// Compare reads a value from the request once and picks entities whose
// value compares equal under eq.
func Compare[TReq, TEntity, V any](fromRequest func(TReq) V, fromEntity func(TEntity) V, eq func(a, b V) bool) Selector {
	return func(req any) (func(any) bool, error) {
		r, err := requestAs[TReq](req)
		if err != nil {
			return nil, err
		}
		want := fromRequest(r)
		return entityPredicate(func(e TEntity) bool { return eq(fromEntity(e), want) }), nil
	}
}

// Many picks every entity whose value is in the set read from the request.
func Many[TReq, TEntity any, V comparable](fromRequest func(TReq) []V, fromEntity func(TEntity) V) Selector {
	return func(req any) (func(any) bool, error) {
		r, err := requestAs[TReq](req)
		if err != nil {
			return nil, err
		}
		set := make(map[V]struct{})
		for _, v := range fromRequest(r) {
			set[v] = struct{}{}
		}
		return entityPredicate(func(e TEntity) bool {
			_, ok := set[fromEntity(e)]
			return ok
		}), nil
	}
}

// Membership picks every entity whose key is among the given key values.
// Values that cannot be used as map keys are skipped.
func Membership(values []any, entityKey key.Key) func(any) bool {
	set := make(map[any]struct{}, len(values))
	for _, v := range values {
		if v != nil && isHashable(v) {
			set[v] = struct{}{}
		}
	}
	return func(e any) bool {
		v, err := entityKey.Value(e)
		if err != nil || !isHashable(v) {
			return false
		}
		_, ok := set[v]
		return ok
	}
}

func requestAs[TReq any](req any) (TReq, error) {
	r, ok := req.(TReq)
	if !ok {
		var zero TReq
		return zero, fmt.Errorf("selector expects request %s, got %T: %w", reflect.TypeFor[TReq](), req, types.ErrTypeMismatch)
	}
	return r, nil
}

func entityPredicate[TEntity any](pred func(TEntity) bool) func(any) bool {
	return func(e any) bool {
		v, ok := e.(TEntity)
		return ok && pred(v)
	}
}

// isHashable reports whether v can be a map key without panicking.
func isHashable(v any) bool {
	return v == nil || reflect.TypeOf(v).Comparable()
}
