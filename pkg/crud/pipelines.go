package crud

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/pantry/pkg/join"
	"github.com/mesh-intelligence/pantry/pkg/query"
	"github.com/mesh-intelligence/pantry/pkg/selector"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// page is an erased paged result.
type page struct {
	items  []any
	number int
	size   int
	count  int
	total  int
}

func (r *run) createOne(ctx context.Context) (any, error) {
	if err := r.requestHooks(ctx); err != nil {
		return nil, err
	}
	item, err := r.requestItem()
	if err != nil {
		return nil, err
	}
	entity, err := r.create(ctx, item, false)
	if err != nil {
		return nil, err
	}
	if err := r.commit(ctx); err != nil {
		return nil, err
	}
	return r.result(ctx, entity)
}

func (r *run) createAll(ctx context.Context) ([]any, error) {
	if err := r.requestHooks(ctx); err != nil {
		return nil, err
	}
	items, err := r.items(ctx)
	if err != nil {
		return nil, err
	}
	created := make([]any, 0, len(items))
	for _, it := range items {
		entity, err := r.create(ctx, it, false)
		if err != nil {
			return r.partial(ctx, created, err)
		}
		created = append(created, entity)
	}
	if err := r.commit(ctx); err != nil {
		return nil, err
	}
	return r.results(ctx, created)
}

// single reads the one entity the selector picks out of the filtered set.
func (r *run) single(ctx context.Context) (any, bool, error) {
	q, err := r.selected()
	if err != nil {
		return nil, false, err
	}
	entity, found, err := r.db.SingleOrDefault(ctx, q)
	if err != nil {
		return nil, false, r.storeErr("reading", err)
	}
	return entity, found, nil
}

func (r *run) get(ctx context.Context) (any, error) {
	if err := r.requestHooks(ctx); err != nil {
		return nil, err
	}
	q, err := r.selected()
	if err != nil {
		return nil, err
	}
	projected := r.ec.Options.Projection()
	if projected {
		q = q.Select(r.projection())
	}
	v, found, err := r.db.SingleOrDefault(ctx, q)
	if err != nil {
		return nil, r.storeErr("reading", err)
	}
	if !found {
		if err := r.notFound(r.ec.Errors.GetIsError()); err != nil {
			return nil, err
		}
		return r.fallback(ctx)
	}
	if projected {
		return r.resultHooks(ctx, v)
	}
	if err := r.entityHooks(ctx, v); err != nil {
		return nil, err
	}
	return r.result(ctx, v)
}

// listing is the filtered, selected and sorted query behind the list reads.
func (r *run) listing() (*query.Query, error) {
	q, err := r.selected()
	if err != nil {
		return nil, err
	}
	return r.sorted(q)
}

// read executes q and turns what it returns into results.
func (r *run) read(ctx context.Context, q *query.Query) ([]any, error) {
	projected := r.ec.Options.Projection()
	if projected {
		q = q.Select(r.projection())
	}
	list, err := r.db.ToList(ctx, q)
	if err != nil {
		return nil, r.storeErr("listing", err)
	}
	if projected {
		out := make([]any, 0, len(list))
		for _, v := range list {
			res, err := r.resultHooks(ctx, v)
			if err != nil {
				return out, err
			}
			out = append(out, res)
		}
		return out, nil
	}
	if err := r.hooked(ctx, list); err != nil {
		return nil, err
	}
	return r.results(ctx, list)
}

func (r *run) getAll(ctx context.Context) ([]any, error) {
	if err := r.requestHooks(ctx); err != nil {
		return nil, err
	}
	q, err := r.listing()
	if err != nil {
		return nil, err
	}
	out, err := r.read(ctx, q)
	if err != nil {
		return out, err
	}
	if len(out) == 0 {
		if err := r.notFound(r.ec.Errors.GetAllIsError()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// paging reads the requested page, defaulting to a single page holding
// every entity.
func (r *run) paging(total int) (number, size int) {
	number, size = 1, total
	if p, ok := r.req.(types.PagedRequest); ok {
		number, size = p.Paging()
	}
	if number < 1 {
		number = 1
	}
	if size <= 0 {
		size = total
	}
	return number, size
}

func pageCount(total, size int) int {
	if total == 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

func (r *run) pagedGetAll(ctx context.Context) (page, error) {
	if err := r.requestHooks(ctx); err != nil {
		return page{}, err
	}
	q, err := r.listing()
	if err != nil {
		return page{}, err
	}
	total, err := r.db.Count(ctx, q)
	if err != nil {
		return page{}, r.storeErr("counting", err)
	}
	if total == 0 {
		if err := r.notFound(r.ec.Errors.GetAllIsError()); err != nil {
			return page{}, err
		}
	}
	number, size := r.paging(total)
	if size > 0 {
		q = q.Skip((number - 1) * size).Take(size)
	}
	items, err := r.read(ctx, q)
	p := page{items: items, number: number, size: size, count: pageCount(total, size), total: total}
	return p, err
}

// pagedGet returns the page of the sorted, filtered set that holds the
// entity the selector picks.
func (r *run) pagedGet(ctx context.Context) (page, error) {
	if err := r.requestHooks(ctx); err != nil {
		return page{}, err
	}
	if r.ec.Selector == nil {
		return page{}, fmt.Errorf("%s of %s needs a selector: %w", r.op, r.entityType, types.ErrConfiguration)
	}
	q, err := r.scope()
	if err != nil {
		return page{}, err
	}
	if q, err = r.sorted(q); err != nil {
		return page{}, err
	}
	all, err := r.db.ToList(ctx, q)
	if err != nil {
		return page{}, r.storeErr("listing", err)
	}
	match, err := r.ec.Selector(r.req)
	if err != nil {
		return page{}, r.fail(types.KindGeneric, err)
	}
	idx := -1
	for i, v := range all {
		if match(v) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return page{}, r.notFound(r.ec.Errors.GetIsError())
	}
	total := len(all)
	_, size := r.paging(total)
	number := idx/size + 1
	end := min(number*size, total)
	window := all[(number-1)*size : end]
	if err := r.hooked(ctx, window); err != nil {
		return page{}, err
	}
	items, err := r.results(ctx, window)
	p := page{items: items, number: number, size: size, count: pageCount(total, size), total: total}
	return p, err
}

func (r *run) updateOne(ctx context.Context) (any, error) {
	if err := r.requestHooks(ctx); err != nil {
		return nil, err
	}
	entity, found, err := r.single(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		if err := r.notFound(r.ec.Errors.UpdateIsError(false)); err != nil {
			return nil, err
		}
		return r.fallback(ctx)
	}
	item, err := r.requestItem()
	if err != nil {
		return nil, err
	}
	updated, err := r.update(ctx, item, entity, false)
	if err != nil {
		return nil, err
	}
	if err := r.commit(ctx); err != nil {
		return nil, err
	}
	return r.result(ctx, updated)
}

// keyed returns the bulk items with the filtered entities whose keys any of
// them carries.
func (r *run) keyed(ctx context.Context) (items, entities []any, err error) {
	if err := r.requireKeys(); err != nil {
		return nil, nil, err
	}
	if items, err = r.items(ctx); err != nil {
		return nil, nil, err
	}
	keys, err := join.Keys(items, r.ec.ItemKey)
	if err != nil {
		return nil, nil, r.fail(types.KindGeneric, err)
	}
	q, err := r.scope()
	if err != nil {
		return nil, nil, err
	}
	entities, err = r.db.ToList(ctx, q.Where(selector.Membership(keys, r.ec.EntityKey)))
	if err != nil {
		return nil, nil, r.storeErr("listing", err)
	}
	return items, entities, nil
}

func (r *run) pair(ctx context.Context, items, entities []any) ([]join.Pair, error) {
	pairs, err := join.Left(ctx, items, r.ec.ItemKey, entities, r.ec.EntityKey)
	if err != nil {
		return nil, r.fail(types.KindGeneric, err)
	}
	return pairs, nil
}

func (r *run) updateAll(ctx context.Context) ([]any, error) {
	if err := r.requestHooks(ctx); err != nil {
		return nil, err
	}
	items, entities, err := r.keyed(ctx)
	if err != nil {
		return nil, err
	}
	pairs, err := r.pair(ctx, items, entities)
	if err != nil {
		return nil, err
	}
	create, matched := join.Partition(pairs)
	if len(create) > 0 {
		if err := r.notFound(r.ec.Errors.UpdateIsError(true)); err != nil {
			return nil, err
		}
	}
	updated := make([]any, 0, len(matched))
	for _, p := range matched {
		entity, err := r.update(ctx, p.Item, p.Entity, false)
		if err != nil {
			return r.partial(ctx, updated, err)
		}
		updated = append(updated, entity)
	}
	if err := r.commit(ctx); err != nil {
		return nil, err
	}
	return r.results(ctx, updated)
}

func (r *run) deleteOne(ctx context.Context) (any, error) {
	if err := r.requestHooks(ctx); err != nil {
		return nil, err
	}
	entity, found, err := r.single(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		if err := r.notFound(r.ec.Errors.DeleteIsError(false)); err != nil {
			return nil, err
		}
		return r.fallback(ctx)
	}
	removed, err := r.remove(ctx, entity)
	if err != nil {
		return nil, err
	}
	if err := r.commit(ctx); err != nil {
		return nil, err
	}
	return r.result(ctx, removed)
}

func (r *run) deleteAll(ctx context.Context) ([]any, error) {
	if err := r.requestHooks(ctx); err != nil {
		return nil, err
	}
	var entities []any
	if r.cfg.Bulk() {
		var err error
		if _, entities, err = r.keyed(ctx); err != nil {
			return nil, err
		}
	} else {
		q, err := r.selected()
		if err != nil {
			return nil, err
		}
		if entities, err = r.db.ToList(ctx, q); err != nil {
			return nil, r.storeErr("listing", err)
		}
	}
	if len(entities) == 0 {
		if err := r.notFound(r.ec.Errors.DeleteIsError(true)); err != nil {
			return nil, err
		}
	}
	removed := make([]any, 0, len(entities))
	for _, e := range entities {
		entity, err := r.remove(ctx, e)
		if err != nil {
			return r.partial(ctx, removed, err)
		}
		removed = append(removed, entity)
	}
	if err := r.commit(ctx); err != nil {
		return nil, err
	}
	return r.results(ctx, removed)
}

func (r *run) save(ctx context.Context) (any, error) {
	if err := r.requestHooks(ctx); err != nil {
		return nil, err
	}
	existing, found, err := r.single(ctx)
	if err != nil {
		return nil, err
	}
	item, err := r.requestItem()
	if err != nil {
		return nil, err
	}
	var entity any
	if found {
		entity, err = r.update(ctx, item, existing, true)
	} else {
		entity, err = r.create(ctx, item, true)
	}
	if err != nil {
		return nil, err
	}
	if err := r.commit(ctx); err != nil {
		return nil, err
	}
	return r.result(ctx, entity)
}

// apply creates the unmatched pairs and updates the matched ones in item
// order. On failure it returns the entities built so far.
func (r *run) apply(ctx context.Context, pairs []join.Pair) ([]any, error) {
	out := make([]any, 0, len(pairs))
	for _, p := range pairs {
		var (
			entity any
			err    error
		)
		if p.Matched() {
			entity, err = r.update(ctx, p.Item, p.Entity, false)
		} else {
			entity, err = r.create(ctx, p.Item, false)
		}
		if err != nil {
			return out, err
		}
		out = append(out, entity)
	}
	return out, nil
}

func (r *run) merge(ctx context.Context) ([]any, error) {
	if err := r.requestHooks(ctx); err != nil {
		return nil, err
	}
	items, entities, err := r.keyed(ctx)
	if err != nil {
		return nil, err
	}
	pairs, err := r.pair(ctx, items, entities)
	if err != nil {
		return nil, err
	}
	out, err := r.apply(ctx, pairs)
	if err != nil {
		return r.partial(ctx, out, err)
	}
	if err := r.commit(ctx); err != nil {
		return nil, err
	}
	return r.results(ctx, out)
}

// synchronize merges the items into the in-scope set and deletes every
// in-scope entity no item matched.
func (r *run) synchronize(ctx context.Context) ([]any, error) {
	if err := r.requestHooks(ctx); err != nil {
		return nil, err
	}
	if err := r.requireKeys(); err != nil {
		return nil, err
	}
	items, err := r.items(ctx)
	if err != nil {
		return nil, err
	}
	q, err := r.selected()
	if err != nil {
		return nil, err
	}
	inScope, err := r.db.ToList(ctx, q)
	if err != nil {
		return nil, r.storeErr("listing", err)
	}
	pairs, err := r.pair(ctx, items, inScope)
	if err != nil {
		return nil, err
	}
	out, err := r.apply(ctx, pairs)
	if err != nil {
		return r.partial(ctx, out, err)
	}
	stale, err := join.Unmatched(inScope, r.ec.EntityKey, items, r.ec.ItemKey)
	if err != nil {
		return nil, r.fail(types.KindGeneric, err)
	}
	for _, e := range stale {
		if _, err := r.remove(ctx, e); err != nil {
			return r.partial(ctx, out, err)
		}
	}
	if err := r.commit(ctx); err != nil {
		return nil, err
	}
	return r.results(ctx, out)
}
