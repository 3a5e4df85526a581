// Package profile turns declarative per-request registrations into the
// resolved configuration the pipelines run against.
//
// A profile is built with For or ForBulk, extended per entity type with
// Entity or BulkEntity, and registered in a Registry. A Store resolves the
// profiles that apply to a request type (the type's own profile, or the one
// it declares, plus profiles registered for every interface it implements)
// and applies them into one RequestConfig, general profiles first.
package profile

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/mesh-intelligence/pantry/pkg/action"
	"github.com/mesh-intelligence/pantry/pkg/hook"
	"github.com/mesh-intelligence/pantry/pkg/typeset"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Profile is a set of registrations for one request type. Profiles are only
// built through this package's builders.
type Profile interface {
	// RequestType returns the request type, or request kind interface, the
	// profile is written for.
	RequestType() reflect.Type

	definition() *definition
}

// Declarer is implemented by request types that carry their own profile,
// typically generic request families whose profile depends on their type
// arguments. The method is called on the zero value.
type Declarer interface {
	DeclareProfile() Profile
}

// definition is the erased content of a profile.
type definition struct {
	requestType  reflect.Type
	bulk         bool
	itemType     reflect.Type
	items        func(req any) ([]any, error)
	requestItem  func(req any) (any, error)
	requestHooks []hook.Request
	itemHooks    []hook.Item
	resultHooks  []hook.Result
	actions      action.Set
	options      types.Options
	errors       types.ErrorConfig
	errorHandler types.ErrorHandlerFactory
	entities     map[reflect.Type]*slots
	entityOrder  []reflect.Type
	errs         []error
}

func newDefinition(t reflect.Type) *definition {
	return &definition{requestType: t, entities: make(map[reflect.Type]*slots)}
}

func (d *definition) slotsFor(t reflect.Type) *slots {
	s, ok := d.entities[t]
	if !ok {
		s = newSlots(t)
		d.entities[t] = s
		d.entityOrder = append(d.entityOrder, t)
	}
	return s
}

// fail records a registration error. It surfaces when the profile is
// applied.
func (d *definition) fail(format string, args ...any) {
	d.errs = append(d.errs, fmt.Errorf(format, args...))
}

// requireAssignable records an error unless the profile's request type can
// be used where declared is expected.
func (d *definition) requireAssignable(what string, declared reflect.Type) {
	if !typeset.Assignable(d.requestType, declared) {
		d.fail("%s declared for request %s cannot run for %s", what, declared, d.requestType)
	}
}

// validate returns the recorded registration errors and checks that bulk
// profiles have an item source.
func (d *definition) validate() error {
	errs := d.errs
	if d.bulk && d.items == nil {
		errs = append(errs, fmt.Errorf("bulk request %s has no item source", d.requestType))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("profile for %s: %w: %w", d.requestType, types.ErrConfiguration, errors.Join(errs...))
}

// Validate reports the registration errors recorded on p.
func Validate(p Profile) error {
	return p.definition().validate()
}
