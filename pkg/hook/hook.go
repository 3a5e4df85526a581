// Package hook defines the callbacks a pipeline runs at fixed phases: once
// per request, once per entity, once per bulk item and once per result.
//
// Each hook kind has a typed interface and a Func adapter. The erased values
// (Request, Entity, Item, Result) are what profiles store; they remember the
// declared types so a profile can check assignability at registration.
// Erased hooks are built from an instance (shared), a type (a fresh value
// per run) or a function.
package hook

import (
	"context"
	"fmt"
	"reflect"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// RequestHook runs once per request before any entity work.
type RequestHook[TReq any] interface {
	HandleRequest(ctx context.Context, req TReq) error
}

// EntityHook runs once per entity after it has been created, updated or
// deleted, before changes are committed.
type EntityHook[TReq, TEntity any] interface {
	HandleEntity(ctx context.Context, req TReq, entity TEntity) error
}

// ItemHook runs once per bulk item and may replace the item.
type ItemHook[TReq, TItem any] interface {
	HandleItem(ctx context.Context, req TReq, item TItem) (TItem, error)
}

// ResultHook runs once per result after the result transform and may
// replace the result.
type ResultHook[TReq, TResult any] interface {
	HandleResult(ctx context.Context, req TReq, result TResult) (TResult, error)
}

// RequestFunc adapts a function to RequestHook.
type RequestFunc[TReq any] func(ctx context.Context, req TReq) error

func (f RequestFunc[TReq]) HandleRequest(ctx context.Context, req TReq) error { return f(ctx, req) }

// EntityFunc adapts a function to EntityHook.
type EntityFunc[TReq, TEntity any] func(ctx context.Context, req TReq, entity TEntity) error

func (f EntityFunc[TReq, TEntity]) HandleEntity(ctx context.Context, req TReq, entity TEntity) error {
	return f(ctx, req, entity)
}

// ItemFunc adapts a function to ItemHook.
type ItemFunc[TReq, TItem any] func(ctx context.Context, req TReq, item TItem) (TItem, error)

func (f ItemFunc[TReq, TItem]) HandleItem(ctx context.Context, req TReq, item TItem) (TItem, error) {
	return f(ctx, req, item)
}

// ResultFunc adapts a function to ResultHook.
type ResultFunc[TReq, TResult any] func(ctx context.Context, req TReq, result TResult) (TResult, error)

func (f ResultFunc[TReq, TResult]) HandleResult(ctx context.Context, req TReq, result TResult) (TResult, error) {
	return f(ctx, req, result)
}

// Request is an erased request hook.
type Request struct {
	reqType reflect.Type
	run     func(ctx context.Context, req any) error
}

// Entity is an erased entity hook.
type Entity struct {
	reqType    reflect.Type
	entityType reflect.Type
	run        func(ctx context.Context, req, entity any) error
}

// Item is an erased item hook.
type Item struct {
	reqType  reflect.Type
	itemType reflect.Type
	run      func(ctx context.Context, req, item any) (any, error)
}

// Result is an erased result hook.
type Result struct {
	reqType    reflect.Type
	resultType reflect.Type
	run        func(ctx context.Context, req, result any) (any, error)
}

// FromRequest erases a request hook instance. The instance is shared by
// every request.
func FromRequest[TReq any](h RequestHook[TReq]) Request {
	return Request{
		reqType: reflect.TypeFor[TReq](),
		run: func(ctx context.Context, req any) error {
			r, err := as[TReq](req, "request")
			if err != nil {
				return err
			}
			return h.HandleRequest(ctx, r)
		},
	}
}

// NewRequest erases a request hook type. Each run uses a fresh zero H.
func NewRequest[TReq, H any, PH interface {
	*H
	RequestHook[TReq]
}]() Request {
	return FromRequest[TReq](RequestFunc[TReq](func(ctx context.Context, req TReq) error {
		var h H
		return PH(&h).HandleRequest(ctx, req)
	}))
}

// FromEntity erases an entity hook instance.
func FromEntity[TReq, TEntity any](h EntityHook[TReq, TEntity]) Entity {
	return Entity{
		reqType:    reflect.TypeFor[TReq](),
		entityType: reflect.TypeFor[TEntity](),
		run: func(ctx context.Context, req, entity any) error {
			r, err := as[TReq](req, "request")
			if err != nil {
				return err
			}
			e, err := as[TEntity](entity, "entity")
			if err != nil {
				return err
			}
			return h.HandleEntity(ctx, r, e)
		},
	}
}

// NewEntity erases an entity hook type. Each run uses a fresh zero H.
func NewEntity[TReq, TEntity, H any, PH interface {
	*H
	EntityHook[TReq, TEntity]
}]() Entity {
	return FromEntity[TReq, TEntity](EntityFunc[TReq, TEntity](func(ctx context.Context, req TReq, entity TEntity) error {
		var h H
		return PH(&h).HandleEntity(ctx, req, entity)
	}))
}

// FromItem erases an item hook instance.
func FromItem[TReq, TItem any](h ItemHook[TReq, TItem]) Item {
	return Item{
		reqType:  reflect.TypeFor[TReq](),
		itemType: reflect.TypeFor[TItem](),
		run: func(ctx context.Context, req, item any) (any, error) {
			r, err := as[TReq](req, "request")
			if err != nil {
				return nil, err
			}
			it, err := as[TItem](item, "item")
			if err != nil {
				return nil, err
			}
			return h.HandleItem(ctx, r, it)
		},
	}
}

// NewItem erases an item hook type. Each run uses a fresh zero H.
func NewItem[TReq, TItem, H any, PH interface {
	*H
	ItemHook[TReq, TItem]
}]() Item {
	return FromItem[TReq, TItem](ItemFunc[TReq, TItem](func(ctx context.Context, req TReq, item TItem) (TItem, error) {
		var h H
		return PH(&h).HandleItem(ctx, req, item)
	}))
}

// FromResult erases a result hook instance. At run time a result that is
// not a TResult passes through untouched.
func FromResult[TReq, TResult any](h ResultHook[TReq, TResult]) Result {
	return Result{
		reqType:    reflect.TypeFor[TReq](),
		resultType: reflect.TypeFor[TResult](),
		run: func(ctx context.Context, req, result any) (any, error) {
			r, err := as[TReq](req, "request")
			if err != nil {
				return nil, err
			}
			res, ok := result.(TResult)
			if !ok {
				return result, nil
			}
			return h.HandleResult(ctx, r, res)
		},
	}
}

// NewResult erases a result hook type. Each run uses a fresh zero H.
func NewResult[TReq, TResult, H any, PH interface {
	*H
	ResultHook[TReq, TResult]
}]() Result {
	return FromResult[TReq, TResult](ResultFunc[TReq, TResult](func(ctx context.Context, req TReq, result TResult) (TResult, error) {
		var h H
		return PH(&h).HandleResult(ctx, req, result)
	}))
}

// RequestType returns the request type the hook was declared for.
func (h Request) RequestType() reflect.Type { return h.reqType }

// Run invokes the hook.
func (h Request) Run(ctx context.Context, req any) error { return h.run(ctx, req) }

// RequestType returns the request type the hook was declared for.
func (h Entity) RequestType() reflect.Type { return h.reqType }

// EntityType returns the entity type the hook was declared for.
func (h Entity) EntityType() reflect.Type { return h.entityType }

// Run invokes the hook.
func (h Entity) Run(ctx context.Context, req, entity any) error { return h.run(ctx, req, entity) }

// RequestType returns the request type the hook was declared for.
func (h Item) RequestType() reflect.Type { return h.reqType }

// ItemType returns the item type the hook was declared for.
func (h Item) ItemType() reflect.Type { return h.itemType }

// Run invokes the hook and returns the possibly replaced item.
func (h Item) Run(ctx context.Context, req, item any) (any, error) { return h.run(ctx, req, item) }

// RequestType returns the request type the hook was declared for.
func (h Result) RequestType() reflect.Type { return h.reqType }

// ResultType returns the result type the hook was declared for.
func (h Result) ResultType() reflect.Type { return h.resultType }

// Run invokes the hook and returns the possibly replaced result.
func (h Result) Run(ctx context.Context, req, result any) (any, error) {
	return h.run(ctx, req, result)
}

func as[T any](v any, role string) (T, error) {
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("hook expects %s %s, got %T: %w", role, reflect.TypeFor[T](), v, types.ErrTypeMismatch)
	}
	return t, nil
}
