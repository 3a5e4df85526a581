package profile

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/mesh-intelligence/pantry/pkg/action"
	"github.com/mesh-intelligence/pantry/pkg/filter"
	"github.com/mesh-intelligence/pantry/pkg/hook"
	"github.com/mesh-intelligence/pantry/pkg/key"
	"github.com/mesh-intelligence/pantry/pkg/selector"
	"github.com/mesh-intelligence/pantry/pkg/sorter"
	"github.com/mesh-intelligence/pantry/pkg/typeset"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Creator builds a new entity from a request and one of its items. For
// single-entity requests the item is the request item.
type Creator func(ctx context.Context, req, item any) (any, error)

// Updater applies an item onto an existing entity and returns the entity to
// persist.
type Updater func(ctx context.Context, req, item, entity any) (any, error)

// Transform turns an entity into a result.
type Transform func(ctx context.Context, entity any) (any, error)

// slots holds the per-entity-type registrations of one or more profiles.
// Nil scalars are unset.
type slots struct {
	entityType   reflect.Type
	selector     selector.Selector
	sorter       sorter.Sorter
	filters      []filter.Filter
	creator      Creator
	updater      Updater
	results      map[reflect.Type]Transform
	resultOrder  []reflect.Type
	defaultValue any
	hasDefault   bool
	options      types.Options
	errors       types.ErrorConfig
	errorHandler types.ErrorHandlerFactory
	requestKey   key.Key
	itemKey      key.Key
	entityKey    key.Key
	hooks        []hook.Entity
	actions      action.Set
}

func newSlots(t reflect.Type) *slots {
	return &slots{entityType: t, results: make(map[reflect.Type]Transform)}
}

// merge layers o over s: scalars set in o win, lists append.
func (s *slots) merge(o *slots) {
	if o.selector != nil {
		s.selector = o.selector
	}
	if o.sorter != nil {
		s.sorter = o.sorter
	}
	s.filters = append(s.filters, o.filters...)
	if o.creator != nil {
		s.creator = o.creator
	}
	if o.updater != nil {
		s.updater = o.updater
	}
	for _, rt := range o.resultOrder {
		if _, ok := s.results[rt]; !ok {
			s.resultOrder = append(s.resultOrder, rt)
		}
		s.results[rt] = o.results[rt]
	}
	if o.hasDefault {
		s.defaultValue, s.hasDefault = o.defaultValue, true
	}
	s.options = s.options.Merge(o.options)
	s.errors = s.errors.Merge(o.errors)
	if o.errorHandler != nil {
		s.errorHandler = o.errorHandler
	}
	if !o.requestKey.IsZero() {
		s.requestKey = o.requestKey
	}
	if !o.itemKey.IsZero() {
		s.itemKey = o.itemKey
	}
	if !o.entityKey.IsZero() {
		s.entityKey = o.entityKey
	}
	s.hooks = append(s.hooks, o.hooks...)
	s.actions = s.actions.Merge(o.actions)
}

// RequestConfig is the resolved configuration of one request type. It is
// built once by a Store and only read afterwards.
type RequestConfig struct {
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
	applied      []reflect.Type

	flattened sync.Map // reflect.Type -> *EntityConfig
}

func newRequestConfig(t reflect.Type) *RequestConfig {
	return &RequestConfig{requestType: t, entities: make(map[reflect.Type]*slots)}
}

// RequestType returns the request type the config was built for.
func (c *RequestConfig) RequestType() reflect.Type { return c.requestType }

// Bulk reports whether the request carries items.
func (c *RequestConfig) Bulk() bool { return c.bulk }

// ItemType returns the bulk item type, or nil.
func (c *RequestConfig) ItemType() reflect.Type { return c.itemType }

// Profiles returns the request types of the applied profiles in the order
// they were applied.
func (c *RequestConfig) Profiles() []reflect.Type { return slices.Clone(c.applied) }

// Items returns the bulk items carried by req.
func (c *RequestConfig) Items(req any) ([]any, error) {
	if c.items == nil {
		return nil, fmt.Errorf("request %s has no item source: %w", c.requestType, types.ErrConfiguration)
	}
	return c.items(req)
}

// RequestItem returns the value a single-entity creator or updater maps
// from. Defaults to the request itself.
func (c *RequestConfig) RequestItem(req any) (any, error) {
	if c.requestItem == nil {
		return req, nil
	}
	return c.requestItem(req)
}

// RequestHooks returns the request hooks in declaration order, kind
// profiles first.
func (c *RequestConfig) RequestHooks() []hook.Request { return c.requestHooks }

// ItemHooks returns the item hooks in declaration order.
func (c *RequestConfig) ItemHooks() []hook.Item { return c.itemHooks }

// ResultHooks returns the result hooks in declaration order.
func (c *RequestConfig) ResultHooks() []hook.Result { return c.resultHooks }

// ErrorHandler returns the request-level error handler factory, or nil.
func (c *RequestConfig) ErrorHandler() types.ErrorHandlerFactory { return c.errorHandler }

// EntityConfig is the flattened configuration for one concrete entity type
// within a request. Scalars come from the most specific registration in the
// entity's lineage; lists run from the most general registration to the
// most specific.
type EntityConfig struct {
	EntityType   reflect.Type
	Selector     selector.Selector
	Sorter       sorter.Sorter
	Filters      []filter.Filter
	Creator      Creator
	Updater      Updater
	Default      any
	HasDefault   bool
	Options      types.Options
	Errors       types.ErrorConfig
	ErrorHandler types.ErrorHandlerFactory
	RequestKey   key.Key
	ItemKey      key.Key
	EntityKey    key.Key
	Hooks        []hook.Entity
	Actions      action.Set

	results     map[reflect.Type]Transform
	resultOrder []reflect.Type
}

// Result returns the transform registered for result type t: an exact match
// first, otherwise the first registered type assignable to t.
func (e *EntityConfig) Result(t reflect.Type) (Transform, bool) {
	if tr, ok := e.results[t]; ok {
		return tr, true
	}
	for _, rt := range e.resultOrder {
		if typeset.Assignable(rt, t) {
			return e.results[rt], true
		}
	}
	return nil, false
}

// ForEntity flattens the config for entity type t. The result is cached.
func (c *RequestConfig) ForEntity(t reflect.Type) *EntityConfig {
	if v, ok := c.flattened.Load(t); ok {
		return v.(*EntityConfig)
	}
	v, _ := c.flattened.LoadOrStore(t, c.flatten(t))
	return v.(*EntityConfig)
}

func (c *RequestConfig) flatten(t reflect.Type) *EntityConfig {
	lineage := typeset.Lineage(t, c.entityOrder)
	ec := &EntityConfig{EntityType: t, results: make(map[reflect.Type]Transform)}

	for _, et := range lineage {
		s := c.entities[et]
		if ec.Selector == nil {
			ec.Selector = s.selector
		}
		if ec.Sorter == nil {
			ec.Sorter = s.sorter
		}
		if ec.Creator == nil {
			ec.Creator = s.creator
		}
		if ec.Updater == nil {
			ec.Updater = s.updater
		}
		if !ec.HasDefault && s.hasDefault {
			ec.Default, ec.HasDefault = s.defaultValue, true
		}
		if ec.ErrorHandler == nil {
			ec.ErrorHandler = s.errorHandler
		}
		if ec.RequestKey.IsZero() {
			ec.RequestKey = s.requestKey
		}
		if ec.ItemKey.IsZero() {
			ec.ItemKey = s.itemKey
		}
		if ec.EntityKey.IsZero() {
			ec.EntityKey = s.entityKey
		}
		for _, rt := range s.resultOrder {
			if _, ok := ec.results[rt]; !ok {
				ec.results[rt] = s.results[rt]
				ec.resultOrder = append(ec.resultOrder, rt)
			}
		}
	}

	options, errs := c.options, c.errors
	ec.Actions = action.Set{}.Merge(c.actions)
	for i := len(lineage) - 1; i >= 0; i-- {
		s := c.entities[lineage[i]]
		ec.Filters = append(ec.Filters, s.filters...)
		ec.Hooks = append(ec.Hooks, s.hooks...)
		ec.Actions = ec.Actions.Merge(s.actions)
		options = options.Merge(s.options)
		errs = errs.Merge(s.errors)
	}
	ec.Options, ec.Errors = options, errs
	if ec.ErrorHandler == nil {
		ec.ErrorHandler = c.errorHandler
	}
	return ec
}

// EntityTypes returns the entity types with registrations, in registration
// order.
func (c *RequestConfig) EntityTypes() []reflect.Type { return slices.Clone(c.entityOrder) }

func (c *RequestConfig) slotsFor(t reflect.Type) *slots {
	s, ok := c.entities[t]
	if !ok {
		s = newSlots(t)
		c.entities[t] = s
		c.entityOrder = append(c.entityOrder, t)
	}
	return s
}

// absorb layers one profile definition into c.
func (c *RequestConfig) absorb(d *definition) {
	if d.bulk {
		c.bulk = true
		c.itemType = d.itemType
	}
	if d.items != nil {
		c.items = d.items
	}
	if d.requestItem != nil {
		c.requestItem = d.requestItem
	}
	c.requestHooks = append(c.requestHooks, d.requestHooks...)
	c.itemHooks = append(c.itemHooks, d.itemHooks...)
	c.resultHooks = append(c.resultHooks, d.resultHooks...)
	c.actions = c.actions.Merge(d.actions)
	c.options = c.options.Merge(d.options)
	c.errors = c.errors.Merge(d.errors)
	if d.errorHandler != nil {
		c.errorHandler = d.errorHandler
	}
	for _, et := range d.entityOrder {
		c.slotsFor(et).merge(d.entities[et])
	}
	c.applied = append(c.applied, d.requestType)
}

