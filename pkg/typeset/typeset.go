// Package typeset orders Go types by specificity. Profiles and entity
// registrations are keyed by reflect.Type; a concrete type "inherits" every
// registration made for an interface it implements. Lineage turns that into
// an explicit, deterministic most-specific-first list.
package typeset

import (
	"reflect"
	"slices"
)

// Of returns the reflect.Type of T, including interface types.
func Of[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Assignable reports whether a value of type from may be used where type to
// is declared. A nil type is never assignable.
func Assignable(from, to reflect.Type) bool {
	if from == nil || to == nil {
		return false
	}
	return from.AssignableTo(to)
}

// Lineage returns the candidates t is assignable to, most specific first:
// t itself, then other concrete types, then interfaces by descending method
// count. Ties keep candidate order. The empty interface always sorts last.
func Lineage(t reflect.Type, candidates []reflect.Type) []reflect.Type {
	if t == nil {
		return nil
	}
	out := make([]reflect.Type, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || slices.Contains(out, c) {
			continue
		}
		if Assignable(t, c) {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b reflect.Type) int {
		return rank(t, b) - rank(t, a)
	})
	return out
}

// Ancestry is Lineage reversed: least specific first. Hook and action lists
// run in this order so general registrations execute before specific ones.
func Ancestry(t reflect.Type, candidates []reflect.Type) []reflect.Type {
	l := Lineage(t, candidates)
	slices.Reverse(l)
	return l
}

// rank scores how specific c is for t; higher is more specific.
func rank(t, c reflect.Type) int {
	switch {
	case c == t:
		return 1 << 20
	case c.Kind() != reflect.Interface:
		return 1 << 19
	default:
		return c.NumMethod()
	}
}
