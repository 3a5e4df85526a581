package catalog

import (
	"time"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// mutating is implemented by every request that writes products. Its kind
// profile stamps the entities those requests touch.
type mutating interface {
	mutates()
}

// timestamped entities record when they change.
type timestamped interface {
	Touch(t time.Time)
}

// AddProduct adds one product.
type AddProduct struct {
	Name     string
	Category string
	Price    int
	Quantity int
}

func (AddProduct) mutates() {}

// ListProducts reads one page of products, optionally in one category.
type ListProducts struct {
	Category  string
	Sort      string
	Direction types.SortDirection
	Page      int
	Size      int
}

// Paging implements types.PagedRequest.
func (r ListProducts) Paging() (page, size int) { return r.Page, r.Size }

// RenameProduct renames the product with ID.
type RenameProduct struct {
	ID   string
	Name string
}

func (RenameProduct) mutates() {}

// RemoveProduct deletes the product with ID.
type RemoveProduct struct {
	ID string
}

// SyncProducts makes the products of Category match Records. An empty
// Category scopes the sync to every product.
type SyncProducts struct {
	Category string
	Records  []ProductRecord
}

// RequestItems implements types.BulkRequest.
func (r SyncProducts) RequestItems() []ProductRecord { return r.Records }

func (SyncProducts) mutates() {}
