package profile

import (
	"context"
	"fmt"
	"reflect"

	"github.com/mesh-intelligence/pantry/pkg/action"
	"github.com/mesh-intelligence/pantry/pkg/hook"
	"github.com/mesh-intelligence/pantry/pkg/typeset"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// RequestProfile declares the request-level registrations for TReq. TReq may
// be an interface, in which case the profile applies to every request type
// that implements it.
type RequestProfile[TReq any] struct {
	def *definition
}

// For starts a profile for TReq.
func For[TReq any]() *RequestProfile[TReq] {
	return &RequestProfile[TReq]{def: newDefinition(reflect.TypeFor[TReq]())}
}

// RequestType implements Profile.
func (p *RequestProfile[TReq]) RequestType() reflect.Type { return p.def.requestType }

func (p *RequestProfile[TReq]) definition() *definition { return p.def }

// AddRequestHook registers an erased request hook. The hook's request type
// must be assignable from TReq.
func (p *RequestProfile[TReq]) AddRequestHook(h hook.Request) *RequestProfile[TReq] {
	p.def.requireAssignable("request hook", h.RequestType())
	p.def.requestHooks = append(p.def.requestHooks, h)
	return p
}

// AddRequestHookFunc registers a request hook function.
func (p *RequestProfile[TReq]) AddRequestHookFunc(f func(ctx context.Context, req TReq) error) *RequestProfile[TReq] {
	return p.AddRequestHook(hook.FromRequest[TReq](hook.RequestFunc[TReq](f)))
}

// AddResultHook registers an erased result hook. Hooks whose result type
// does not match the produced result are skipped when they run.
func (p *RequestProfile[TReq]) AddResultHook(h hook.Result) *RequestProfile[TReq] {
	p.def.requireAssignable("result hook", h.RequestType())
	p.def.resultHooks = append(p.def.resultHooks, h)
	return p
}

// AddResultHookFunc registers a result hook function on p.
func AddResultHookFunc[TReq, TResult any](p *RequestProfile[TReq], f func(ctx context.Context, req TReq, result TResult) (TResult, error)) *RequestProfile[TReq] {
	return p.AddResultHook(hook.FromResult[TReq, TResult](hook.ResultFunc[TReq, TResult](f)))
}

// UseRequestItem sets the value single-entity creators and updaters map
// from. Without it the request itself is used.
func (p *RequestProfile[TReq]) UseRequestItem(f func(req TReq) any) *RequestProfile[TReq] {
	p.def.requestItem = func(req any) (any, error) {
		r, err := requestAs[TReq](req)
		if err != nil {
			return nil, err
		}
		return f(r), nil
	}
	return p
}

// ConfigureOptions layers o over the request-level options. Entity options
// override them.
func (p *RequestProfile[TReq]) ConfigureOptions(o types.Options) *RequestProfile[TReq] {
	p.def.options = p.def.options.Merge(o)
	return p
}

// ConfigureErrors layers c over the request-level not-found policy.
func (p *RequestProfile[TReq]) ConfigureErrors(c types.ErrorConfig) *RequestProfile[TReq] {
	p.def.errors = p.def.errors.Merge(c)
	return p
}

// UseErrorHandler sets the request-level error handler factory. Entity
// handlers take precedence.
func (p *RequestProfile[TReq]) UseErrorHandler(f types.ErrorHandlerFactory) *RequestProfile[TReq] {
	p.def.errorHandler = f
	return p
}

// RequestAction is a request-level side effect. It sees every entity the
// operation touches, whatever its type.
type RequestAction[TReq any] func(ctx context.Context, req TReq, entity any) error

func (p *RequestProfile[TReq]) addAction(op action.Operation, stage action.Stage, f RequestAction[TReq]) *RequestProfile[TReq] {
	p.def.actions.Add(op, stage, func(ctx context.Context, req, entity any) error {
		r, err := requestAs[TReq](req)
		if err != nil {
			return err
		}
		return f(ctx, r, entity)
	})
	return p
}

// BeforeCreating registers a request-level action run before each create.
func (p *RequestProfile[TReq]) BeforeCreating(f RequestAction[TReq]) *RequestProfile[TReq] {
	return p.addAction(action.Create, action.Before, f)
}

// AfterCreating registers a request-level action run after each create.
func (p *RequestProfile[TReq]) AfterCreating(f RequestAction[TReq]) *RequestProfile[TReq] {
	return p.addAction(action.Create, action.After, f)
}

// BeforeUpdating registers a request-level action run before each update.
func (p *RequestProfile[TReq]) BeforeUpdating(f RequestAction[TReq]) *RequestProfile[TReq] {
	return p.addAction(action.Update, action.Before, f)
}

// AfterUpdating registers a request-level action run after each update.
func (p *RequestProfile[TReq]) AfterUpdating(f RequestAction[TReq]) *RequestProfile[TReq] {
	return p.addAction(action.Update, action.After, f)
}

// BeforeDeleting registers a request-level action run before each delete.
func (p *RequestProfile[TReq]) BeforeDeleting(f RequestAction[TReq]) *RequestProfile[TReq] {
	return p.addAction(action.Delete, action.Before, f)
}

// AfterDeleting registers a request-level action run after each delete.
func (p *RequestProfile[TReq]) AfterDeleting(f RequestAction[TReq]) *RequestProfile[TReq] {
	return p.addAction(action.Delete, action.After, f)
}

// BeforeSaving registers a request-level action run before each save.
func (p *RequestProfile[TReq]) BeforeSaving(f RequestAction[TReq]) *RequestProfile[TReq] {
	return p.addAction(action.Save, action.Before, f)
}

// AfterSaving registers a request-level action run after each save.
func (p *RequestProfile[TReq]) AfterSaving(f RequestAction[TReq]) *RequestProfile[TReq] {
	return p.addAction(action.Save, action.After, f)
}

// BulkProfile declares a request that carries a list of TItem. When TReq
// implements types.BulkRequest[TItem] the items are read from it; otherwise
// UseItems must be called.
type BulkProfile[TReq, TItem any] struct {
	*RequestProfile[TReq]
}

// ForBulk starts a bulk profile for TReq with items of type TItem.
func ForBulk[TReq, TItem any]() *BulkProfile[TReq, TItem] {
	p := &BulkProfile[TReq, TItem]{RequestProfile: For[TReq]()}
	p.def.bulk = true
	p.def.itemType = reflect.TypeFor[TItem]()
	if reflect.TypeFor[TReq]().Implements(reflect.TypeFor[types.BulkRequest[TItem]]()) {
		p.UseItems(func(req TReq) []TItem {
			return any(req).(types.BulkRequest[TItem]).RequestItems()
		})
	}
	return p
}

// UseItems sets the accessor that reads the items from the request.
func (p *BulkProfile[TReq, TItem]) UseItems(f func(req TReq) []TItem) *BulkProfile[TReq, TItem] {
	p.def.items = func(req any) ([]any, error) {
		r, err := requestAs[TReq](req)
		if err != nil {
			return nil, err
		}
		items := f(r)
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = it
		}
		return out, nil
	}
	return p
}

// AddItemHook registers an erased item hook. Its request type must be
// assignable from TReq and its item type from TItem.
func (p *BulkProfile[TReq, TItem]) AddItemHook(h hook.Item) *BulkProfile[TReq, TItem] {
	p.def.requireAssignable("item hook", h.RequestType())
	if it := reflect.TypeFor[TItem](); !typeset.Assignable(it, h.ItemType()) {
		p.def.fail("item hook declared for item %s cannot run for %s", h.ItemType(), it)
	}
	p.def.itemHooks = append(p.def.itemHooks, h)
	return p
}

// AddItemHookFunc registers an item hook function.
func (p *BulkProfile[TReq, TItem]) AddItemHookFunc(f func(ctx context.Context, req TReq, item TItem) (TItem, error)) *BulkProfile[TReq, TItem] {
	return p.AddItemHook(hook.FromItem[TReq, TItem](hook.ItemFunc[TReq, TItem](f)))
}

func requestAs[TReq any](req any) (TReq, error) {
	r, ok := req.(TReq)
	if !ok {
		var zero TReq
		return zero, fmt.Errorf("profile for %s got request %T: %w", reflect.TypeFor[TReq](), req, types.ErrTypeMismatch)
	}
	return r, nil
}
