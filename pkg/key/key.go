// Package key pairs a type with an accessor that extracts a comparable value
// from a request, an item or an entity. Keys drive key selectors and the
// bulk join.
package key

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Key errors.
var (
	ErrNoField       = errors.New("type has no such field")
	ErrNotComparable = errors.New("key value is not comparable")
)

// Key is immutable once built.
type Key struct {
	name      string
	owner     reflect.Type
	valueType reflect.Type
	get       func(v any) any
}

// New builds a key from a typed accessor. The value type must be comparable.
func New[T any, V comparable](name string, get func(T) V) Key {
	return Key{
		name:      name,
		owner:     reflect.TypeFor[T](),
		valueType: reflect.TypeFor[V](),
		get:       func(v any) any { return get(v.(T)) },
	}
}

// Field builds a key over the exported field of T named name. T may be a
// struct or a pointer to one. The field must exist and be comparable.
func Field[T any](name string) (Key, error) {
	owner := reflect.TypeFor[T]()
	st := owner
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return Key{}, fmt.Errorf("key %q on %s: %w", name, owner, ErrNoField)
	}
	f, ok := st.FieldByName(name)
	if !ok || !f.IsExported() {
		return Key{}, fmt.Errorf("key %q on %s: %w", name, owner, ErrNoField)
	}
	if !f.Type.Comparable() {
		return Key{}, fmt.Errorf("key %q on %s: %w", name, owner, ErrNotComparable)
	}
	index := f.Index
	return Key{
		name:      name,
		owner:     owner,
		valueType: f.Type,
		get: func(v any) any {
			rv := reflect.ValueOf(v)
			if rv.Kind() == reflect.Pointer {
				if rv.IsNil() {
					return reflect.Zero(f.Type).Interface()
				}
				rv = rv.Elem()
			}
			return rv.FieldByIndex(index).Interface()
		},
	}, nil
}

// MustField is Field that panics on error. Intended for profile declarations
// evaluated at startup.
func MustField[T any](name string) Key {
	k, err := Field[T](name)
	if err != nil {
		panic(err)
	}
	return k
}

// Name returns the key's name.
func (k Key) Name() string { return k.name }

// Type returns the type the key reads from.
func (k Key) Type() reflect.Type { return k.owner }

// ValueType returns the type of the extracted value.
func (k Key) ValueType() reflect.Type { return k.valueType }

// IsZero reports whether k was never built.
func (k Key) IsZero() bool { return k.get == nil }

// Value extracts the key value from v. Returns types.ErrTypeMismatch when v
// is not assignable to the key's type.
func (k Key) Value(v any) (any, error) {
	if k.get == nil {
		return nil, fmt.Errorf("key %q: %w", k.name, types.ErrConfiguration)
	}
	if v == nil || !reflect.TypeOf(v).AssignableTo(k.owner) {
		return nil, fmt.Errorf("key %q expects %s, got %T: %w", k.name, k.owner, v, types.ErrTypeMismatch)
	}
	return k.get(v), nil
}

// String returns "Type.Name".
func (k Key) String() string {
	if k.owner == nil {
		return k.name
	}
	return k.owner.String() + "." + k.name
}
