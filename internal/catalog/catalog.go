package catalog

import (
	"context"

	"github.com/mesh-intelligence/pantry/internal/memory"
	"github.com/mesh-intelligence/pantry/internal/sqlite"
	"github.com/mesh-intelligence/pantry/pkg/crud"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Catalog runs the product requests against one engine.
type Catalog struct {
	add    crud.Handler[AddProduct, ProductView]
	list   crud.Handler[ListProducts, types.PagedResult[ProductView]]
	rename crud.Handler[RenameProduct, ProductView]
	remove crud.Handler[RemoveProduct, ProductView]
	sync   crud.Handler[SyncProducts, []ProductView]
}

// New builds the catalog handlers on e.
func New(e *crud.Engine) *Catalog {
	return &Catalog{
		add:    crud.Create[AddProduct, *Product, ProductView](e),
		list:   crud.PagedGetAll[ListProducts, *Product, ProductView](e),
		rename: crud.Update[RenameProduct, *Product, ProductView](e),
		remove: crud.Delete[RemoveProduct, *Product, ProductView](e),
		sync:   crud.Synchronize[SyncProducts, *Product, ProductView](e),
	}
}

// RegisterMemory registers the product set with an in-memory store.
func RegisterMemory(s *memory.Store) error {
	return memory.Register(s, "ID", ProductKey)
}

// RegisterSQLite registers the product set with a SQLite backend.
func RegisterSQLite(b *sqlite.Backend) error {
	return sqlite.Register(b, SetName, ProductKey)
}

// result turns a response into a value and a single error.
func result[T any](resp types.ResponseOf[T], err error) (T, error) {
	if err != nil {
		return resp.Result, err
	}
	return resp.Result, resp.Err()
}

// Add creates a product.
func (c *Catalog) Add(ctx context.Context, r AddProduct) (ProductView, error) {
	return result(c.add.Handle(ctx, r))
}

// List returns one page of products.
func (c *Catalog) List(ctx context.Context, r ListProducts) (types.PagedResult[ProductView], error) {
	return result(c.list.Handle(ctx, r))
}

// Rename changes a product's name.
func (c *Catalog) Rename(ctx context.Context, r RenameProduct) (ProductView, error) {
	return result(c.rename.Handle(ctx, r))
}

// Remove deletes a product and returns it.
func (c *Catalog) Remove(ctx context.Context, r RemoveProduct) (ProductView, error) {
	return result(c.remove.Handle(ctx, r))
}

// Sync makes the stored products match the records.
func (c *Catalog) Sync(ctx context.Context, r SyncProducts) ([]ProductView, error) {
	return result(c.sync.Handle(ctx, r))
}
