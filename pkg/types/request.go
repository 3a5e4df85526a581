package types

// BulkRequest is implemented by requests that carry a list of items, one
// entity per item.
type BulkRequest[TItem any] interface {
	RequestItems() []TItem
}

// PagedRequest is implemented by list requests that ask for one page.
// Page is 1-based; a size of zero or less puts every item on one page.
type PagedRequest interface {
	Paging() (page, size int)
}

// Keyed is implemented by requests and entities that expose a key.
type Keyed[K comparable] interface {
	EntityKey() K
}

// Mapper copies matching fields from src onto dst, which must be a pointer.
type Mapper interface {
	Map(src, dst any) error
}

// MapperFunc adapts a function to Mapper.
type MapperFunc func(src, dst any) error

// Map calls f.
func (f MapperFunc) Map(src, dst any) error { return f(src, dst) }

// SortDirection orders a sort clause.
type SortDirection int

const (
	Ascending SortDirection = iota
	Descending
)

// String returns "asc" or "desc".
func (d SortDirection) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// ParseSortDirection reads "desc"/"descending" as Descending and anything
// else as Ascending.
func ParseSortDirection(s string) SortDirection {
	switch s {
	case "desc", "descending", "DESC", "Descending":
		return Descending
	default:
		return Ascending
	}
}
