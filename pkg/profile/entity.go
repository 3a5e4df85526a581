package profile

import (
	"context"
	"fmt"
	"reflect"

	"github.com/mesh-intelligence/pantry/pkg/action"
	"github.com/mesh-intelligence/pantry/pkg/filter"
	"github.com/mesh-intelligence/pantry/pkg/hook"
	"github.com/mesh-intelligence/pantry/pkg/key"
	"github.com/mesh-intelligence/pantry/pkg/query"
	"github.com/mesh-intelligence/pantry/pkg/selector"
	"github.com/mesh-intelligence/pantry/pkg/sorter"
	"github.com/mesh-intelligence/pantry/pkg/typeset"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// EntityProfile declares how requests of type TReq treat entities of type
// TEntity. TEntity may be an interface; its registrations then apply to
// every entity type implementing it, below any more specific registration.
type EntityProfile[TReq, TEntity any] struct {
	def *definition
	s   *slots
}

// Entity returns the entity registrations of p for TEntity. Calling it again
// for the same entity type returns the same slots.
func Entity[TEntity, TReq any](p *RequestProfile[TReq]) *EntityProfile[TReq, TEntity] {
	return &EntityProfile[TReq, TEntity]{def: p.def, s: p.def.slotsFor(reflect.TypeFor[TEntity]())}
}

func entityAs[TEntity any](entity any) (TEntity, error) {
	e, ok := entity.(TEntity)
	if !ok {
		var zero TEntity
		return zero, fmt.Errorf("profile expects entity %s, got %T: %w", reflect.TypeFor[TEntity](), entity, types.ErrTypeMismatch)
	}
	return e, nil
}

// SelectWith sets the selector.
func (p *EntityProfile[TReq, TEntity]) SelectWith(sel selector.Selector) *EntityProfile[TReq, TEntity] {
	p.s.selector = sel
	return p
}

// SelectBy selects the entities for which pred(req, entity) holds.
func (p *EntityProfile[TReq, TEntity]) SelectBy(pred func(req TReq, entity TEntity) bool) *EntityProfile[TReq, TEntity] {
	return p.SelectWith(selector.Predicate(pred))
}

// SelectWhere selects the entities matching pred regardless of the request.
func (p *EntityProfile[TReq, TEntity]) SelectWhere(pred func(entity TEntity) bool) *EntityProfile[TReq, TEntity] {
	return p.SelectWith(selector.Where(pred))
}

// UseKeys selects the entity whose entityKey equals the request's
// requestKey. requestKey must read TReq and entityKey must read TEntity.
func (p *EntityProfile[TReq, TEntity]) UseKeys(requestKey, entityKey key.Key) *EntityProfile[TReq, TEntity] {
	p.checkKey("request", requestKey, p.def.requestType)
	p.checkKey("entity", entityKey, p.s.entityType)
	p.s.requestKey = requestKey
	p.s.entityKey = entityKey
	p.s.selector = selector.FromKeys(requestKey, entityKey)
	return p
}

func (p *EntityProfile[TReq, TEntity]) checkKey(role string, k key.Key, owner reflect.Type) {
	if k.IsZero() {
		p.def.fail("%s key for %s is not set", role, p.s.entityType)
		return
	}
	if !typeset.Assignable(owner, k.Type()) {
		p.def.fail("%s key %s cannot read %s", role, k, owner)
	}
}

// FilterWith appends a filter.
func (p *EntityProfile[TReq, TEntity]) FilterWith(f filter.Filter) *EntityProfile[TReq, TEntity] {
	p.s.filters = append(p.s.filters, f)
	return p
}

// FilterWhere keeps the entities matching pred.
func (p *EntityProfile[TReq, TEntity]) FilterWhere(pred func(entity TEntity) bool) *EntityProfile[TReq, TEntity] {
	return p.FilterWith(filter.Where(pred))
}

// FilterOn keeps the entities for which pred(req, entity) holds.
func (p *EntityProfile[TReq, TEntity]) FilterOn(pred func(req TReq, entity TEntity) bool) *EntityProfile[TReq, TEntity] {
	return p.FilterWith(filter.On(pred))
}

// FilterWhen applies pred only when gate holds for the request.
func (p *EntityProfile[TReq, TEntity]) FilterWhen(gate func(req TReq) bool, pred func(req TReq, entity TEntity) bool) *EntityProfile[TReq, TEntity] {
	return p.FilterWith(filter.When(gate, filter.On(pred)))
}

// FilterUsing appends a caller-supplied query restriction.
func (p *EntityProfile[TReq, TEntity]) FilterUsing(f func(req TReq, q *query.Query) (*query.Query, error)) *EntityProfile[TReq, TEntity] {
	return p.FilterWith(filter.Using(f))
}

// SortWith sets the sorter.
func (p *EntityProfile[TReq, TEntity]) SortWith(s sorter.Sorter) *EntityProfile[TReq, TEntity] {
	p.s.sorter = s
	return p
}

// SortUsing sets a caller-supplied ordering.
func (p *EntityProfile[TReq, TEntity]) SortUsing(f func(req TReq, q *query.Query) (*query.Query, error)) *EntityProfile[TReq, TEntity] {
	return p.SortWith(sorter.Func(func(req any, q *query.Query) (*query.Query, error) {
		r, err := requestAs[TReq](req)
		if err != nil {
			return nil, err
		}
		return f(r, q)
	}))
}

// CreateEntityWith sets how a new entity is built from the request.
func (p *EntityProfile[TReq, TEntity]) CreateEntityWith(f func(ctx context.Context, req TReq) (TEntity, error)) *EntityProfile[TReq, TEntity] {
	p.s.creator = func(ctx context.Context, req, _ any) (any, error) {
		r, err := requestAs[TReq](req)
		if err != nil {
			return nil, err
		}
		return f(ctx, r)
	}
	return p
}

// UpdateEntityWith sets how the request is applied onto an existing entity.
func (p *EntityProfile[TReq, TEntity]) UpdateEntityWith(f func(ctx context.Context, req TReq, entity TEntity) (TEntity, error)) *EntityProfile[TReq, TEntity] {
	p.s.updater = func(ctx context.Context, req, _, entity any) (any, error) {
		r, err := requestAs[TReq](req)
		if err != nil {
			return nil, err
		}
		e, err := entityAs[TEntity](entity)
		if err != nil {
			return nil, err
		}
		return f(ctx, r, e)
	}
	return p
}

// ResultWith registers the transform from TEntity to TOut. Results of other
// types keep using the default mapper.
func ResultWith[TReq, TEntity, TOut any](p *EntityProfile[TReq, TEntity], f func(ctx context.Context, entity TEntity) (TOut, error)) *EntityProfile[TReq, TEntity] {
	rt := reflect.TypeFor[TOut]()
	if _, ok := p.s.results[rt]; !ok {
		p.s.resultOrder = append(p.s.resultOrder, rt)
	}
	p.s.results[rt] = func(ctx context.Context, entity any) (any, error) {
		e, err := entityAs[TEntity](entity)
		if err != nil {
			return nil, err
		}
		return f(ctx, e)
	}
	return p
}

// UseDefault sets the value returned when a read finds nothing and the
// not-found policy is silent.
func (p *EntityProfile[TReq, TEntity]) UseDefault(v TEntity) *EntityProfile[TReq, TEntity] {
	p.s.defaultValue = v
	p.s.hasDefault = true
	return p
}

// ConfigureOptions layers o over the entity options.
func (p *EntityProfile[TReq, TEntity]) ConfigureOptions(o types.Options) *EntityProfile[TReq, TEntity] {
	p.s.options = p.s.options.Merge(o)
	return p
}

// ConfigureErrors layers c over the entity not-found policy.
func (p *EntityProfile[TReq, TEntity]) ConfigureErrors(c types.ErrorConfig) *EntityProfile[TReq, TEntity] {
	p.s.errors = p.s.errors.Merge(c)
	return p
}

// UseErrorHandler sets the error handler factory for this entity type.
func (p *EntityProfile[TReq, TEntity]) UseErrorHandler(f types.ErrorHandlerFactory) *EntityProfile[TReq, TEntity] {
	p.s.errorHandler = f
	return p
}

// AddEntityHook registers an erased entity hook. Its request type must be
// assignable from TReq and its entity type from TEntity.
func (p *EntityProfile[TReq, TEntity]) AddEntityHook(h hook.Entity) *EntityProfile[TReq, TEntity] {
	p.def.requireAssignable("entity hook", h.RequestType())
	if !typeset.Assignable(p.s.entityType, h.EntityType()) {
		p.def.fail("entity hook declared for entity %s cannot run for %s", h.EntityType(), p.s.entityType)
	}
	p.s.hooks = append(p.s.hooks, h)
	return p
}

// AddEntityHookFunc registers an entity hook function.
func (p *EntityProfile[TReq, TEntity]) AddEntityHookFunc(f func(ctx context.Context, req TReq, entity TEntity) error) *EntityProfile[TReq, TEntity] {
	return p.AddEntityHook(hook.FromEntity[TReq, TEntity](hook.EntityFunc[TReq, TEntity](f)))
}

// EntityAction is an entity-level side effect.
type EntityAction[TReq, TEntity any] func(ctx context.Context, req TReq, entity TEntity) error

func (p *EntityProfile[TReq, TEntity]) addAction(op action.Operation, stage action.Stage, f EntityAction[TReq, TEntity]) *EntityProfile[TReq, TEntity] {
	p.s.actions.Add(op, stage, action.Typed(func(ctx context.Context, req TReq, entity TEntity) error {
		return f(ctx, req, entity)
	}))
	return p
}

// BeforeCreating registers an action run before each TEntity is created.
func (p *EntityProfile[TReq, TEntity]) BeforeCreating(f EntityAction[TReq, TEntity]) *EntityProfile[TReq, TEntity] {
	return p.addAction(action.Create, action.Before, f)
}

// AfterCreating registers an action run after each TEntity is created.
func (p *EntityProfile[TReq, TEntity]) AfterCreating(f EntityAction[TReq, TEntity]) *EntityProfile[TReq, TEntity] {
	return p.addAction(action.Create, action.After, f)
}

// BeforeUpdating registers an action run before each TEntity is updated.
func (p *EntityProfile[TReq, TEntity]) BeforeUpdating(f EntityAction[TReq, TEntity]) *EntityProfile[TReq, TEntity] {
	return p.addAction(action.Update, action.Before, f)
}

// AfterUpdating registers an action run after each TEntity is updated.
func (p *EntityProfile[TReq, TEntity]) AfterUpdating(f EntityAction[TReq, TEntity]) *EntityProfile[TReq, TEntity] {
	return p.addAction(action.Update, action.After, f)
}

// BeforeDeleting registers an action run before each TEntity is deleted.
func (p *EntityProfile[TReq, TEntity]) BeforeDeleting(f EntityAction[TReq, TEntity]) *EntityProfile[TReq, TEntity] {
	return p.addAction(action.Delete, action.Before, f)
}

// AfterDeleting registers an action run after each TEntity is deleted.
func (p *EntityProfile[TReq, TEntity]) AfterDeleting(f EntityAction[TReq, TEntity]) *EntityProfile[TReq, TEntity] {
	return p.addAction(action.Delete, action.After, f)
}

// BeforeSaving registers an action run before each TEntity is saved.
func (p *EntityProfile[TReq, TEntity]) BeforeSaving(f EntityAction[TReq, TEntity]) *EntityProfile[TReq, TEntity] {
	return p.addAction(action.Save, action.Before, f)
}

// AfterSaving registers an action run after each TEntity is saved.
func (p *EntityProfile[TReq, TEntity]) AfterSaving(f EntityAction[TReq, TEntity]) *EntityProfile[TReq, TEntity] {
	return p.addAction(action.Save, action.After, f)
}

// BulkEntityProfile extends EntityProfile with item-aware creators, updaters
// and the join keys used by bulk operations.
type BulkEntityProfile[TReq, TItem, TEntity any] struct {
	*EntityProfile[TReq, TEntity]
}

// BulkEntity returns the entity registrations of the bulk profile p.
func BulkEntity[TEntity, TReq, TItem any](p *BulkProfile[TReq, TItem]) *BulkEntityProfile[TReq, TItem, TEntity] {
	return &BulkEntityProfile[TReq, TItem, TEntity]{EntityProfile: Entity[TEntity](p.RequestProfile)}
}

// UseKeys sets the keys that join items to entities. itemKey must read
// TItem and entityKey must read TEntity.
func (p *BulkEntityProfile[TReq, TItem, TEntity]) UseKeys(itemKey, entityKey key.Key) *BulkEntityProfile[TReq, TItem, TEntity] {
	p.checkKey("item", itemKey, reflect.TypeFor[TItem]())
	p.checkKey("entity", entityKey, p.s.entityType)
	p.s.itemKey = itemKey
	p.s.entityKey = entityKey
	return p
}

// CreateEntityWith sets how a new entity is built from one item.
func (p *BulkEntityProfile[TReq, TItem, TEntity]) CreateEntityWith(f func(ctx context.Context, req TReq, item TItem) (TEntity, error)) *BulkEntityProfile[TReq, TItem, TEntity] {
	p.s.creator = func(ctx context.Context, req, item any) (any, error) {
		r, err := requestAs[TReq](req)
		if err != nil {
			return nil, err
		}
		it, ok := item.(TItem)
		if !ok {
			return nil, fmt.Errorf("profile expects item %s, got %T: %w", reflect.TypeFor[TItem](), item, types.ErrTypeMismatch)
		}
		return f(ctx, r, it)
	}
	return p
}

// UpdateEntityWith sets how one item is applied onto its matching entity.
func (p *BulkEntityProfile[TReq, TItem, TEntity]) UpdateEntityWith(f func(ctx context.Context, req TReq, item TItem, entity TEntity) (TEntity, error)) *BulkEntityProfile[TReq, TItem, TEntity] {
	p.s.updater = func(ctx context.Context, req, item, entity any) (any, error) {
		r, err := requestAs[TReq](req)
		if err != nil {
			return nil, err
		}
		it, ok := item.(TItem)
		if !ok {
			return nil, fmt.Errorf("profile expects item %s, got %T: %w", reflect.TypeFor[TItem](), item, types.ErrTypeMismatch)
		}
		e, err := entityAs[TEntity](entity)
		if err != nil {
			return nil, err
		}
		return f(ctx, r, it, e)
	}
	return p
}
