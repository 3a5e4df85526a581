// Package sqlite provides the public API for the SQLite entity context
// while keeping implementation details internal.
package sqlite

import "github.com/mesh-intelligence/pantry/internal/sqlite"

// Backend is the SQLite entity store. Its Open method is a crud.Opener.
type Backend = sqlite.Backend

// Option configures a Backend.
type Option = sqlite.Option

// WithLogger sets the backend logger.
var WithLogger = sqlite.WithLogger

// Lifecycle errors.
var (
	ErrDetached        = sqlite.ErrDetached
	ErrAlreadyAttached = sqlite.ErrAlreadyAttached
	ErrSetRegistered   = sqlite.ErrSetRegistered
)

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend := sqlite.NewBackend()
//	sqlite.Register(backend, "products", func(p *Product) string { return p.ID })
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".pantry",
//	})
//	defer backend.Detach()
//	engine := crud.New(store, backend.Open)
func NewBackend(opts ...Option) *Backend {
	return sqlite.NewBackend(opts...)
}

// Register adds a set named name for entities of type T keyed by get.
func Register[T any, K comparable](b *Backend, name string, get func(T) K) error {
	return sqlite.Register(b, name, get)
}


// ReadJSONL decodes every line of the JSONL file at path into a T.
func ReadJSONL[T any](path string) ([]T, error) {
	return sqlite.ReadJSONL[T](path)
}
