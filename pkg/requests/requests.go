// Package requests provides ready-made generic requests. Each declares its
// own profile over its type arguments, so a store resolves it without
// registration:
//
//	h := crud.Get[requests.GetByID[*Product, string], *Product, *Product](engine)
//	resp, err := h.Handle(ctx, requests.GetByID[*Product, string]{ID: id})
//
// Requests that match entities by key read the entity's exported ID field.
// A registered profile for the same request type replaces the declared one.
package requests

import (
	"github.com/mesh-intelligence/pantry/pkg/key"
	"github.com/mesh-intelligence/pantry/pkg/profile"
	"github.com/mesh-intelligence/pantry/pkg/sorter"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// IDField names the field keyed requests match on.
const IDField = "ID"

// idKey reads IDField from T. A T without a usable field yields the zero key,
// which the declaring profile reports as a configuration error.
func idKey[T any]() key.Key {
	k, err := key.Field[T](IDField)
	if err != nil {
		return key.Key{}
	}
	return k
}

// GetByID reads the TEntity whose ID equals ID.
type GetByID[TEntity any, TKey comparable] struct {
	ID TKey
}

// DeclareProfile implements profile.Declarer.
func (GetByID[TEntity, TKey]) DeclareProfile() profile.Profile {
	p := profile.For[GetByID[TEntity, TKey]]()
	profile.Entity[TEntity](p).UseKeys(
		key.New(IDField, func(r GetByID[TEntity, TKey]) TKey { return r.ID }),
		idKey[TEntity](),
	)
	return p
}

// DeleteByID removes the TEntity whose ID equals ID.
type DeleteByID[TEntity any, TKey comparable] struct {
	ID TKey
}

// DeclareProfile implements profile.Declarer.
func (DeleteByID[TEntity, TKey]) DeclareProfile() profile.Profile {
	p := profile.For[DeleteByID[TEntity, TKey]]()
	profile.Entity[TEntity](p).UseKeys(
		key.New(IDField, func(r DeleteByID[TEntity, TKey]) TKey { return r.ID }),
		idKey[TEntity](),
	)
	return p
}

// UpdateByID applies Item onto the TEntity whose ID equals ID.
type UpdateByID[TEntity any, TKey comparable, TItem any] struct {
	ID   TKey
	Item TItem
}

// DeclareProfile implements profile.Declarer.
func (UpdateByID[TEntity, TKey, TItem]) DeclareProfile() profile.Profile {
	p := profile.For[UpdateByID[TEntity, TKey, TItem]]().
		UseRequestItem(func(r UpdateByID[TEntity, TKey, TItem]) any { return r.Item })
	profile.Entity[TEntity](p).UseKeys(
		key.New(IDField, func(r UpdateByID[TEntity, TKey, TItem]) TKey { return r.ID }),
		idKey[TEntity](),
	)
	return p
}

// CreateAll creates one TEntity per item.
type CreateAll[TEntity, TItem any] struct {
	Items []TItem
}

// RequestItems implements types.BulkRequest.
func (r CreateAll[TEntity, TItem]) RequestItems() []TItem { return r.Items }

// DeclareProfile implements profile.Declarer.
func (CreateAll[TEntity, TItem]) DeclareProfile() profile.Profile {
	return profile.ForBulk[CreateAll[TEntity, TItem], TItem]()
}

// Merge updates the TEntity sharing each item's ID and creates the rest.
type Merge[TEntity, TItem any] struct {
	Items []TItem
}

// RequestItems implements types.BulkRequest.
func (r Merge[TEntity, TItem]) RequestItems() []TItem { return r.Items }

// DeclareProfile implements profile.Declarer.
func (Merge[TEntity, TItem]) DeclareProfile() profile.Profile {
	p := profile.ForBulk[Merge[TEntity, TItem], TItem]()
	profile.BulkEntity[TEntity](p).UseKeys(idKey[TItem](), idKey[TEntity]())
	return p
}

// Synchronize makes the TEntity set match Items: matches are updated, new
// items created and every entity without an item deleted.
type Synchronize[TEntity, TItem any] struct {
	Items []TItem
}

// RequestItems implements types.BulkRequest.
func (r Synchronize[TEntity, TItem]) RequestItems() []TItem { return r.Items }

// DeclareProfile implements profile.Declarer.
func (Synchronize[TEntity, TItem]) DeclareProfile() profile.Profile {
	p := profile.ForBulk[Synchronize[TEntity, TItem], TItem]()
	profile.BulkEntity[TEntity](p).UseKeys(idKey[TItem](), idKey[TEntity]())
	return p
}

// Page reads one page of every TEntity ordered by the field named in Sort.
// An empty or unknown Sort leaves the stored order.
type Page[TEntity any] struct {
	Number    int
	Size      int
	Sort      string
	Direction types.SortDirection
}

// Paging implements types.PagedRequest.
func (r Page[TEntity]) Paging() (page, size int) { return r.Number, r.Size }

// DeclareProfile implements profile.Declarer.
func (Page[TEntity]) DeclareProfile() profile.Profile {
	p := profile.For[Page[TEntity]]()
	profile.Entity[TEntity](p).SortWith(sorter.Fields[TEntity](sorter.TableOn("Sort", "Direction")))
	return p
}
