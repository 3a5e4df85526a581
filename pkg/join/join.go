// Package join correlates bulk request items with existing entities by key.
package join

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/mesh-intelligence/pantry/pkg/key"
)

// ErrUnhashableKey is returned when a key value cannot index a lookup.
var ErrUnhashableKey = errors.New("key value cannot be used for lookup")

// Pair is one item with the entity it matched, or a nil Entity.
type Pair struct {
	Item   any
	Entity any
}

// Matched reports whether the item found an entity.
func (p Pair) Matched() bool { return p.Entity != nil }

// Left pairs every non-nil item, in input order, with the entity that has the
// same key. Items whose key matches no entity get a nil Entity. Items sharing
// a key are kept and pair with the same entity. When several entities share
// a key the first one wins.
func Left(ctx context.Context, items []any, itemKey key.Key, entities []any, entityKey key.Key) ([]Pair, error) {
	lookup, err := index(entities, entityKey)
	if err != nil {
		return nil, err
	}
	pairs := make([]Pair, 0, len(items))
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if isNil(it) {
			continue
		}
		k, err := itemKey.Value(it)
		if err != nil {
			return nil, fmt.Errorf("reading item key: %w", err)
		}
		if !hashable(k) {
			return nil, fmt.Errorf("item key %v: %w", k, ErrUnhashableKey)
		}
		pairs = append(pairs, Pair{Item: it, Entity: lookup[k]})
	}
	return pairs, nil
}

// Partition splits pairs into those to create (no entity) and those to
// update (matched), keeping order.
func Partition(pairs []Pair) (create, update []Pair) {
	for _, p := range pairs {
		if p.Matched() {
			update = append(update, p)
		} else {
			create = append(create, p)
		}
	}
	return create, update
}

// Keys returns the key values of the non-nil items.
func Keys(items []any, itemKey key.Key) ([]any, error) {
	out := make([]any, 0, len(items))
	for _, it := range items {
		if isNil(it) {
			continue
		}
		k, err := itemKey.Value(it)
		if err != nil {
			return nil, fmt.Errorf("reading item key: %w", err)
		}
		out = append(out, k)
	}
	return out, nil
}

// Unmatched returns the entities whose key is not among the item keys,
// keeping entity order.
func Unmatched(entities []any, entityKey key.Key, items []any, itemKey key.Key) ([]any, error) {
	keys, err := Keys(items, itemKey)
	if err != nil {
		return nil, err
	}
	present := make(map[any]struct{}, len(keys))
	for _, k := range keys {
		if !hashable(k) {
			return nil, fmt.Errorf("item key %v: %w", k, ErrUnhashableKey)
		}
		present[k] = struct{}{}
	}
	var out []any
	for _, e := range entities {
		k, err := entityKey.Value(e)
		if err != nil {
			return nil, fmt.Errorf("reading entity key: %w", err)
		}
		if !hashable(k) {
			return nil, fmt.Errorf("entity key %v: %w", k, ErrUnhashableKey)
		}
		if _, ok := present[k]; !ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func index(entities []any, entityKey key.Key) (map[any]any, error) {
	lookup := make(map[any]any, len(entities))
	for _, e := range entities {
		k, err := entityKey.Value(e)
		if err != nil {
			return nil, fmt.Errorf("reading entity key: %w", err)
		}
		if !hashable(k) {
			return nil, fmt.Errorf("entity key %v: %w", k, ErrUnhashableKey)
		}
		if _, dup := lookup[k]; !dup {
			lookup[k] = e
		}
	}
	return lookup, nil
}

func hashable(v any) bool {
	return v == nil || reflect.TypeOf(v).Comparable()
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
