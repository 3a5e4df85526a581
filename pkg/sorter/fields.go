package sorter

import (
	"cmp"
	"fmt"
	"reflect"

	"github.com/mesh-intelligence/pantry/pkg/key"
)

// fieldValue reads the exported field name from a struct or struct pointer.
func fieldValue(v any, name string) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("field %q of nil %T: %w", name, v, key.ErrNoField)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("field %q of %T: %w", name, v, key.ErrNoField)
	}
	f, ok := rv.Type().FieldByName(name)
	if !ok || !f.IsExported() {
		return reflect.Value{}, fmt.Errorf("field %q of %T: %w", name, v, key.ErrNoField)
	}
	return rv.FieldByIndex(f.Index), nil
}

// fieldComparer compares two TEntity values by an ordered exported field.
func fieldComparer[TEntity any](name string) (func(a, b TEntity) int, error) {
	t := reflect.TypeFor[TEntity]()
	st := t
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil, key.ErrNoField
	}
	f, ok := st.FieldByName(name)
	if !ok || !f.IsExported() {
		return nil, key.ErrNoField
	}
	var compare func(a, b reflect.Value) int
	switch f.Type.Kind() {
	case reflect.String:
		compare = func(a, b reflect.Value) int { return cmp.Compare(a.String(), b.String()) }
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		compare = func(a, b reflect.Value) int { return cmp.Compare(a.Int(), b.Int()) }
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		compare = func(a, b reflect.Value) int { return cmp.Compare(a.Uint(), b.Uint()) }
	case reflect.Float32, reflect.Float64:
		compare = func(a, b reflect.Value) int { return cmp.Compare(a.Float(), b.Float()) }
	case reflect.Bool:
		compare = func(a, b reflect.Value) int {
			switch {
			case a.Bool() == b.Bool():
				return 0
			case b.Bool():
				return -1
			default:
				return 1
			}
		}
	default:
		return nil, ErrNotOrdered
	}
	index := f.Index
	return func(a, b TEntity) int {
		x, y := reflect.ValueOf(a), reflect.ValueOf(b)
		if x.Kind() == reflect.Pointer {
			if x.IsNil() || y.IsNil() {
				return cmp.Compare(boolRank(!x.IsNil()), boolRank(!y.IsNil()))
			}
			x, y = x.Elem(), y.Elem()
		}
		return compare(x.FieldByIndex(index), y.FieldByIndex(index))
	}, nil
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isHashable reports whether v can be a map key without panicking.
func isHashable(v any) bool {
	return v == nil || reflect.TypeOf(v).Comparable()
}
