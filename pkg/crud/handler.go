package crud

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Handler handles one request type and produces a typed response.
type Handler[TReq, TOut any] interface {
	Handle(ctx context.Context, req TReq) (types.ResponseOf[TOut], error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[TReq, TOut any] func(ctx context.Context, req TReq) (types.ResponseOf[TOut], error)

// Handle calls f.
func (f HandlerFunc[TReq, TOut]) Handle(ctx context.Context, req TReq) (types.ResponseOf[TOut], error) {
	return f(ctx, req)
}

// Operation names used in logs and metrics.
const (
	opCreate      = "create"
	opCreateAll   = "create_all"
	opGet         = "get"
	opGetAll      = "get_all"
	opPagedGet    = "paged_get"
	opPagedGetAll = "paged_get_all"
	opUpdate      = "update"
	opUpdateAll   = "update_all"
	opDelete      = "delete"
	opDeleteAll   = "delete_all"
	opSave        = "save"
	opMerge       = "merge"
	opSynchronize = "synchronize"
)

// execute runs body for req and turns its outcome into a response. A
// modeled failure is logged, counted and handed to the resolved error
// handler; whatever body returned alongside it becomes the partial result.
func execute[TRes any](ctx context.Context, e *Engine, op string, req any, entityType, outType reflect.Type, body func(context.Context, *run) (TRes, error)) (types.ResponseOf[TRes], error) {
	started := time.Now()
	var resp types.ResponseOf[TRes]

	r, err := e.begin(ctx, op, req, entityType, outType)
	if err != nil {
		e.metrics.observe(op, outcomeError, started)
		return resp, err
	}

	res, err := body(ctx, r)
	if err == nil {
		e.metrics.observe(op, outcomeSuccess, started)
		resp.Result = res
		return resp, nil
	}
	r.discard()

	ce, ok := types.AsError(err)
	if !ok {
		e.logger.Error("request failed",
			"operation", op,
			"request", reflect.TypeOf(req).String(),
			"error", err)
		e.metrics.observe(op, outcomeError, started)
		return resp, err
	}
	if ce.Request == nil {
		ce.Request = req
	}
	if ce.Result == nil && !reflect.ValueOf(&res).Elem().IsZero() {
		ce.Result = res
	}
	e.logger.Warn("request failed",
		"operation", op,
		"request", reflect.TypeOf(req).String(),
		"entity", entityType.String(),
		"kind", ce.Kind.String(),
		"error", ce.Err)
	e.metrics.failed(op, ce.Kind.String())

	handled := ce.Dispatch(e.handlerFor(r.ec))
	if handled == nil {
		handled = types.ErrorResponse(ce)
	}
	resp, err = types.Typed[TRes](handled)
	if err != nil {
		e.metrics.observe(op, outcomeError, started)
		return resp, fmt.Errorf("error handler response for %s: %w", op, err)
	}
	if resp.HasErrors() {
		e.metrics.observe(op, outcomeFailure, started)
	} else {
		e.metrics.observe(op, outcomeSuccess, started)
	}
	return resp, nil
}

// as converts an erased result to TOut. A nil value is the zero TOut.
func as[TOut any](r *run, v any) (TOut, error) {
	var zero TOut
	if v == nil {
		return zero, nil
	}
	out, ok := v.(TOut)
	if !ok {
		err := fmt.Errorf("result is %T, want %s: %w", v, reflect.TypeFor[TOut](), types.ErrTypeMismatch)
		return zero, types.NewError(types.KindCreateResultFailed, r.req, err)
	}
	return out, nil
}

// all converts erased results to []TOut. On failure it returns the results
// converted so far.
func all[TOut any](r *run, vs []any) ([]TOut, error) {
	if vs == nil {
		return nil, nil
	}
	out := make([]TOut, 0, len(vs))
	for _, v := range vs {
		t, err := as[TOut](r, v)
		if err != nil {
			return out, err
		}
		out = append(out, t)
	}
	return out, nil
}

// shaped converts vs and keeps err when it came first. Conversion of a
// partial result never masks the failure that cut it short.
func shaped[TOut any](r *run, vs []any, err error) ([]TOut, error) {
	out, cerr := all[TOut](r, vs)
	if err != nil {
		return out, err
	}
	return out, cerr
}

func paged[TOut any](r *run, p page, err error) (types.PagedResult[TOut], error) {
	items, err := shaped[TOut](r, p.items, err)
	if err != nil && len(items) == 0 {
		return types.PagedResult[TOut]{}, err
	}
	return types.PagedResult[TOut]{
		Items:          items,
		PageNumber:     p.number,
		PageSize:       p.size,
		PageCount:      p.count,
		TotalItemCount: p.total,
	}, err
}

func single[TReq, TEntity, TOut any](e *Engine, op string, body func(*run, context.Context) (any, error)) Handler[TReq, TOut] {
	entityType, outType := reflect.TypeFor[TEntity](), reflect.TypeFor[TOut]()
	return HandlerFunc[TReq, TOut](func(ctx context.Context, req TReq) (types.ResponseOf[TOut], error) {
		return execute(ctx, e, op, req, entityType, outType, func(ctx context.Context, r *run) (TOut, error) {
			v, err := body(r, ctx)
			if err != nil {
				var zero TOut
				return zero, err
			}
			return as[TOut](r, v)
		})
	})
}

func list[TReq, TEntity, TOut any](e *Engine, op string, body func(*run, context.Context) ([]any, error)) Handler[TReq, []TOut] {
	entityType, outType := reflect.TypeFor[TEntity](), reflect.TypeFor[TOut]()
	return HandlerFunc[TReq, []TOut](func(ctx context.Context, req TReq) (types.ResponseOf[[]TOut], error) {
		return execute(ctx, e, op, req, entityType, outType, func(ctx context.Context, r *run) ([]TOut, error) {
			vs, err := body(r, ctx)
			return shaped[TOut](r, vs, err)
		})
	})
}

func pagedList[TReq, TEntity, TOut any](e *Engine, op string, body func(*run, context.Context) (page, error)) Handler[TReq, types.PagedResult[TOut]] {
	entityType, outType := reflect.TypeFor[TEntity](), reflect.TypeFor[TOut]()
	return HandlerFunc[TReq, types.PagedResult[TOut]](func(ctx context.Context, req TReq) (types.ResponseOf[types.PagedResult[TOut]], error) {
		return execute(ctx, e, op, req, entityType, outType, func(ctx context.Context, r *run) (types.PagedResult[TOut], error) {
			p, err := body(r, ctx)
			return paged[TOut](r, p, err)
		})
	})
}

// Create builds one TEntity from the request item, persists it and returns
// it as TOut. Use types.NoResult as TOut to return nothing.
func Create[TReq, TEntity, TOut any](e *Engine) Handler[TReq, TOut] {
	return single[TReq, TEntity, TOut](e, opCreate, (*run).createOne)
}

// CreateAll builds one TEntity per bulk item and persists them together.
func CreateAll[TReq, TEntity, TOut any](e *Engine) Handler[TReq, []TOut] {
	return list[TReq, TEntity, TOut](e, opCreateAll, (*run).createAll)
}

// Get returns the single TEntity the request selects.
func Get[TReq, TEntity, TOut any](e *Engine) Handler[TReq, TOut] {
	return single[TReq, TEntity, TOut](e, opGet, (*run).get)
}

// GetAll returns every filtered TEntity in sorted order.
func GetAll[TReq, TEntity, TOut any](e *Engine) Handler[TReq, []TOut] {
	return list[TReq, TEntity, TOut](e, opGetAll, (*run).getAll)
}

// PagedGet returns the page holding the TEntity the request selects.
func PagedGet[TReq, TEntity, TOut any](e *Engine) Handler[TReq, types.PagedResult[TOut]] {
	return pagedList[TReq, TEntity, TOut](e, opPagedGet, (*run).pagedGet)
}

// PagedGetAll returns one page of the filtered, sorted TEntity set.
func PagedGetAll[TReq, TEntity, TOut any](e *Engine) Handler[TReq, types.PagedResult[TOut]] {
	return pagedList[TReq, TEntity, TOut](e, opPagedGetAll, (*run).pagedGetAll)
}

// Update applies the request item to the TEntity the request selects.
func Update[TReq, TEntity, TOut any](e *Engine) Handler[TReq, TOut] {
	return single[TReq, TEntity, TOut](e, opUpdate, (*run).updateOne)
}

// UpdateAll applies each bulk item to the TEntity with the same key.
func UpdateAll[TReq, TEntity, TOut any](e *Engine) Handler[TReq, []TOut] {
	return list[TReq, TEntity, TOut](e, opUpdateAll, (*run).updateAll)
}

// Delete removes the TEntity the request selects.
func Delete[TReq, TEntity, TOut any](e *Engine) Handler[TReq, TOut] {
	return single[TReq, TEntity, TOut](e, opDelete, (*run).deleteOne)
}

// DeleteAll removes the TEntity set the request selects. Bulk requests
// remove the entities whose keys match an item.
func DeleteAll[TReq, TEntity, TOut any](e *Engine) Handler[TReq, []TOut] {
	return list[TReq, TEntity, TOut](e, opDeleteAll, (*run).deleteAll)
}

// Save updates the selected TEntity, or creates one when none matches.
func Save[TReq, TEntity, TOut any](e *Engine) Handler[TReq, TOut] {
	return single[TReq, TEntity, TOut](e, opSave, (*run).save)
}

// Merge updates each TEntity matched by key and creates one for every
// unmatched item. Results follow item order.
func Merge[TReq, TEntity, TOut any](e *Engine) Handler[TReq, []TOut] {
	return list[TReq, TEntity, TOut](e, opMerge, (*run).merge)
}

// Synchronize merges the items and deletes every in-scope TEntity that no
// item matched. Deleted entities are not part of the result.
func Synchronize[TReq, TEntity, TOut any](e *Engine) Handler[TReq, []TOut] {
	return list[TReq, TEntity, TOut](e, opSynchronize, (*run).synchronize)
}
