// Package mapper provides the default object mapper used when a profile
// declares no creator, updater or result transform. It copies fields by
// name with go-viper/mapstructure.
package mapper

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// ErrInvalidTarget is returned when Map is given a destination that is not a
// non-nil pointer.
var ErrInvalidTarget = errors.New("map destination must be a non-nil pointer")

// Structure maps structs and maps onto structs by field name. Nested structs
// map recursively. Only exported fields take part.
type Structure struct {
	tagName string
	weak    bool
	hooks   []mapstructure.DecodeHookFunc
}

// Option configures a Structure.
type Option func(*Structure)

// WithTagName reads field names from the given struct tag instead of
// "mapstructure".
func WithTagName(tag string) Option {
	return func(s *Structure) { s.tagName = tag }
}

// WithWeakTypes converts between compatible scalar kinds, for example a
// string "3" onto an int field.
func WithWeakTypes() Option {
	return func(s *Structure) { s.weak = true }
}

// WithDecodeHook adds a mapstructure decode hook.
func WithDecodeHook(h mapstructure.DecodeHookFunc) Option {
	return func(s *Structure) { s.hooks = append(s.hooks, h) }
}

// New returns a Structure mapper.
func New(opts ...Option) *Structure {
	s := &Structure{}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Map copies src onto dst. A nil src leaves dst unchanged.
func (s *Structure) Map(src, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("mapping %T onto %T: %w", src, dst, ErrInvalidTarget)
	}
	if src == nil {
		return nil
	}
	cfg := &mapstructure.DecoderConfig{
		Result:           dst,
		TagName:          s.tagName,
		WeaklyTypedInput: s.weak,
		Squash:           true,
	}
	if len(s.hooks) > 0 {
		cfg.DecodeHook = mapstructure.ComposeDecodeHookFunc(s.hooks...)
	}
	dec, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return fmt.Errorf("building decoder for %T: %w", dst, err)
	}
	if err := dec.Decode(src); err != nil {
		return fmt.Errorf("mapping %T onto %T: %w", src, dst, err)
	}
	return nil
}

// To maps src onto a new T. When T is a pointer type a new element is
// allocated.
func To[T any](m types.Mapper, src any) (T, error) {
	var out T
	if m == nil {
		return out, types.ErrNoMapper
	}
	v, err := Into(m, src, reflect.TypeFor[T]())
	if err != nil {
		return out, err
	}
	return v.(T), nil
}

// Into maps src onto a new value of type t and returns it.
func Into(m types.Mapper, src any, t reflect.Type) (any, error) {
	if m == nil {
		return nil, types.ErrNoMapper
	}
	if t.Kind() == reflect.Pointer {
		v := reflect.New(t.Elem())
		if err := m.Map(src, v.Interface()); err != nil {
			return nil, err
		}
		return v.Interface(), nil
	}
	v := reflect.New(t)
	if err := m.Map(src, v.Interface()); err != nil {
		return nil, err
	}
	return v.Elem().Interface(), nil
}

// Onto maps src onto an existing value and returns the updated value. A
// pointer dst is updated in place; a struct dst is copied, updated and
// returned.
func Onto(m types.Mapper, src, dst any) (any, error) {
	if m == nil {
		return nil, types.ErrNoMapper
	}
	rv := reflect.ValueOf(dst)
	if rv.Kind() == reflect.Pointer {
		if err := m.Map(src, dst); err != nil {
			return nil, err
		}
		return dst, nil
	}
	cp := reflect.New(rv.Type())
	cp.Elem().Set(rv)
	if err := m.Map(src, cp.Interface()); err != nil {
		return nil, err
	}
	return cp.Elem().Interface(), nil
}
