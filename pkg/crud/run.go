package crud

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/mesh-intelligence/pantry/pkg/action"
	"github.com/mesh-intelligence/pantry/pkg/filter"
	"github.com/mesh-intelligence/pantry/pkg/hook"
	"github.com/mesh-intelligence/pantry/pkg/mapper"
	"github.com/mesh-intelligence/pantry/pkg/profile"
	"github.com/mesh-intelligence/pantry/pkg/query"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

var noResultType = reflect.TypeFor[types.NoResult]()

// run is the state of one request moving through a pipeline. Steps return
// *types.Error for modeled failures and plain errors for everything else.
type run struct {
	e          *Engine
	op         string
	req        any
	cfg        *profile.RequestConfig
	ec         *profile.EntityConfig
	db         types.EntityContext
	set        types.EntitySet
	entityType reflect.Type
	outType    reflect.Type
}

func (e *Engine) begin(ctx context.Context, op string, req any, entityType, outType reflect.Type) (*run, error) {
	if isNil(req) {
		return nil, types.ErrNilRequest
	}
	reqType := reflect.TypeOf(req)
	cfg, err := e.store.Config(reqType)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", reqType, err)
	}
	if e.open == nil {
		return nil, fmt.Errorf("%s: no entity context: %w", op, types.ErrConfiguration)
	}
	db, err := e.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening entity context: %w", err)
	}
	set, err := db.Set(entityType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.logger.Debug("handling request",
		"operation", op,
		"request", reqType.String(),
		"entity", entityType.String())
	return &run{
		e:          e,
		op:         op,
		req:        req,
		cfg:        cfg,
		ec:         cfg.ForEntity(entityType),
		db:         db,
		set:        set,
		entityType: entityType,
		outType:    outType,
	}, nil
}

func canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// fail classifies err from a profile callback as kind. A *types.Error keeps
// its own kind and a context error becomes RequestCanceled.
func (r *run) fail(kind types.ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	if ce, ok := types.AsError(err); ok {
		return ce
	}
	if canceled(err) {
		return types.NewError(types.KindRequestCanceled, r.req, err)
	}
	return types.NewError(kind, r.req, err)
}

// storeErr classifies an error from the entity context. Only cancellation
// and errors raised by callbacks inside a query are modeled.
func (r *run) storeErr(what string, err error) error {
	if err == nil {
		return nil
	}
	if ce, ok := types.AsError(err); ok {
		return ce
	}
	if canceled(err) {
		return types.NewError(types.KindRequestCanceled, r.req, err)
	}
	return fmt.Errorf("%s %s: %w", what, r.entityType, err)
}

// discarder is implemented by entity contexts that can drop staged changes.
type discarder interface {
	Discard()
}

// discard drops whatever a failed run staged so a shared context does not
// commit it with the next request.
func (r *run) discard() {
	if d, ok := r.db.(discarder); ok {
		d.Discard()
	}
}

func (r *run) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return types.NewError(types.KindRequestCanceled, r.req, err)
	}
	return nil
}

func (r *run) requestHooks(ctx context.Context) error {
	return r.fail(types.KindHookFailed, hook.RunRequests(ctx, r.cfg.RequestHooks(), r.req))
}

// scope is the entity set restricted by the profile's filters.
func (r *run) scope() (*query.Query, error) {
	q, err := filter.Apply(r.req, r.set.Query(), r.ec.Filters...)
	if err != nil {
		return nil, r.fail(types.KindGeneric, err)
	}
	return q, nil
}

// selected is scope restricted by the selector, when one is configured.
func (r *run) selected() (*query.Query, error) {
	q, err := r.scope()
	if err != nil {
		return nil, err
	}
	q, err = r.ec.Selector.Apply(r.req, q)
	if err != nil {
		return nil, r.fail(types.KindGeneric, err)
	}
	return q, nil
}

func (r *run) sorted(q *query.Query) (*query.Query, error) {
	if r.ec.Sorter == nil {
		return q, nil
	}
	q, err := r.ec.Sorter.Sort(r.req, q)
	if err != nil {
		return nil, r.fail(types.KindGeneric, err)
	}
	return q, nil
}

// items reads the bulk items, drops nil ones and runs the item hooks over
// each in order.
func (r *run) items(ctx context.Context) ([]any, error) {
	raw, err := r.cfg.Items(r.req)
	if err != nil {
		if errors.Is(err, types.ErrConfiguration) {
			return nil, fmt.Errorf("%s: %w", r.op, err)
		}
		return nil, r.fail(types.KindGeneric, err)
	}
	out := make([]any, 0, len(raw))
	for _, it := range raw {
		if isNil(it) {
			continue
		}
		next, err := hook.RunItems(ctx, r.cfg.ItemHooks(), r.req, it)
		if err != nil {
			return nil, r.fail(types.KindHookFailed, err)
		}
		out = append(out, next)
	}
	return out, nil
}

func (r *run) requestItem() (any, error) {
	item, err := r.cfg.RequestItem(r.req)
	if err != nil {
		return nil, r.fail(types.KindGeneric, err)
	}
	return item, nil
}

func (r *run) requireKeys() error {
	if r.ec.ItemKey.IsZero() || r.ec.EntityKey.IsZero() {
		return fmt.Errorf("%s of %s needs item and entity keys: %w", r.op, r.entityType, types.ErrConfiguration)
	}
	return nil
}

func (r *run) notFound(isError bool) error {
	if !isError {
		return nil
	}
	return types.NewError(types.KindFailedToFind, r.req, fmt.Errorf("%s: %w", r.entityType, types.ErrEntityNotFound))
}

// fallback is the result of a read or mutation that found nothing under a
// silent not-found policy.
func (r *run) fallback(ctx context.Context) (any, error) {
	if !r.ec.HasDefault {
		return nil, nil
	}
	return r.result(ctx, r.ec.Default)
}

func (r *run) act(ctx context.Context, op action.Operation, stage action.Stage, entity any) error {
	return r.fail(types.KindRequestFailed, r.ec.Actions.List(op, stage).Run(ctx, r.req, entity))
}

// actionOps lists the action operations that apply to op. Inside a save,
// save actions always run and op's own actions run unless suppressed.
func (r *run) actionOps(op action.Operation, save bool) []action.Operation {
	if !save {
		return []action.Operation{op}
	}
	suppress := (op == action.Create && r.ec.Options.SuppressCreateInSave()) ||
		(op == action.Update && r.ec.Options.SuppressUpdateInSave())
	if suppress {
		return []action.Operation{action.Save}
	}
	return []action.Operation{action.Save, op}
}

func (r *run) before(ctx context.Context, ops []action.Operation, entity any) error {
	for _, op := range ops {
		if err := r.act(ctx, op, action.Before, entity); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) after(ctx context.Context, ops []action.Operation, entity any) error {
	for i := len(ops) - 1; i >= 0; i-- {
		if err := r.act(ctx, ops[i], action.After, entity); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) entityHooks(ctx context.Context, entity any) error {
	return r.fail(types.KindHookFailed, hook.RunEntities(ctx, r.ec.Hooks, r.req, entity))
}

func (r *run) newEntity(ctx context.Context, item any) (any, error) {
	var (
		entity any
		err    error
	)
	switch {
	case r.ec.Creator != nil:
		entity, err = r.ec.Creator(ctx, r.req, item)
	case r.e.mapper == nil:
		err = types.ErrNoMapper
	default:
		entity, err = mapper.Into(r.e.mapper, item, r.entityType)
	}
	if err == nil && isNil(entity) {
		err = fmt.Errorf("creator returned no %s", r.entityType)
	}
	return entity, r.fail(types.KindCreateEntityFailed, err)
}

func (r *run) changedEntity(ctx context.Context, item, entity any) (any, error) {
	var (
		updated any
		err     error
	)
	switch {
	case r.ec.Updater != nil:
		updated, err = r.ec.Updater(ctx, r.req, item, entity)
	case r.e.mapper == nil:
		err = types.ErrNoMapper
	default:
		updated, err = mapper.Onto(r.e.mapper, item, entity)
	}
	if err == nil && isNil(updated) {
		err = fmt.Errorf("updater returned no %s", r.entityType)
	}
	return updated, r.fail(types.KindUpdateEntityFailed, err)
}

func first(staged []any, fallback any) any {
	if len(staged) > 0 {
		return staged[0]
	}
	return fallback
}

// create builds, stages and post-processes one new entity.
func (r *run) create(ctx context.Context, item any, save bool) (any, error) {
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}
	entity, err := r.newEntity(ctx, item)
	if err != nil {
		return nil, err
	}
	ops := r.actionOps(action.Create, save)
	if err := r.before(ctx, ops, entity); err != nil {
		return nil, err
	}
	staged, err := r.set.Create(ctx, entity)
	if err != nil {
		return nil, r.storeErr("creating", err)
	}
	entity = first(staged, entity)
	if err := r.entityHooks(ctx, entity); err != nil {
		return nil, err
	}
	if err := r.after(ctx, ops, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// update applies item onto entity, stages it and post-processes it.
func (r *run) update(ctx context.Context, item, entity any, save bool) (any, error) {
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}
	updated, err := r.changedEntity(ctx, item, entity)
	if err != nil {
		return nil, err
	}
	ops := r.actionOps(action.Update, save)
	if err := r.before(ctx, ops, updated); err != nil {
		return nil, err
	}
	staged, err := r.set.Update(ctx, updated)
	if err != nil {
		return nil, r.storeErr("updating", err)
	}
	updated = first(staged, updated)
	if err := r.entityHooks(ctx, updated); err != nil {
		return nil, err
	}
	if err := r.after(ctx, ops, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// remove stages the deletion of entity and post-processes it.
func (r *run) remove(ctx context.Context, entity any) (any, error) {
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}
	if err := r.act(ctx, action.Delete, action.Before, entity); err != nil {
		return nil, err
	}
	staged, err := r.set.Delete(ctx, entity)
	if err != nil {
		return nil, r.storeErr("deleting", err)
	}
	entity = first(staged, entity)
	if err := r.entityHooks(ctx, entity); err != nil {
		return nil, err
	}
	if err := r.act(ctx, action.Delete, action.After, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *run) commit(ctx context.Context) error {
	if err := r.checkpoint(ctx); err != nil {
		return err
	}
	n, err := r.db.ApplyChanges(ctx)
	if err != nil {
		return r.storeErr("committing", err)
	}
	r.e.logger.Debug("committed changes", "operation", r.op, "entity", r.entityType.String(), "written", n)
	return nil
}

// transform turns an entity into the handler's result type: a registered
// transform first, the entity itself when it already has the result type,
// otherwise the mapper.
func (r *run) transform(ctx context.Context, entity any) (any, error) {
	if r.outType == noResultType {
		return types.NoResult{}, nil
	}
	if tr, ok := r.ec.Result(r.outType); ok {
		out, err := tr(ctx, entity)
		return out, r.fail(types.KindCreateResultFailed, err)
	}
	if entity == nil {
		return nil, nil
	}
	if reflect.TypeOf(entity).AssignableTo(r.outType) {
		return entity, nil
	}
	if r.e.mapper == nil {
		return nil, r.fail(types.KindCreateResultFailed, types.ErrNoMapper)
	}
	out, err := mapper.Into(r.e.mapper, entity, r.outType)
	return out, r.fail(types.KindCreateResultFailed, err)
}

// projection runs the transform inside a query.
func (r *run) projection() query.Projection {
	return func(ctx context.Context, v any) (any, error) {
		return r.transform(ctx, v)
	}
}

func (r *run) resultHooks(ctx context.Context, result any) (any, error) {
	out, err := hook.RunResults(ctx, r.cfg.ResultHooks(), r.req, result)
	return out, r.fail(types.KindHookFailed, err)
}

// result transforms one entity and runs the result hooks over it.
func (r *run) result(ctx context.Context, entity any) (any, error) {
	out, err := r.transform(ctx, entity)
	if err != nil {
		return nil, err
	}
	return r.resultHooks(ctx, out)
}

// results transforms entities in order. On failure it returns the results
// produced so far along with the error.
func (r *run) results(ctx context.Context, entities []any) ([]any, error) {
	out := make([]any, 0, len(entities))
	for _, e := range entities {
		if err := r.checkpoint(ctx); err != nil {
			return out, err
		}
		v, err := r.result(ctx, e)
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// partial turns the entities a bulk pipeline built before err into the
// partial result that err carries. None of them were committed. A canceled
// request gets no partial result.
func (r *run) partial(ctx context.Context, built []any, err error) ([]any, error) {
	if len(built) == 0 || ctx.Err() != nil {
		return nil, err
	}
	out, _ := r.results(ctx, built)
	return out, err
}

// hooked runs the entity hooks over entities that were read, not mutated.
func (r *run) hooked(ctx context.Context, entities []any) error {
	for _, e := range entities {
		if err := r.entityHooks(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
