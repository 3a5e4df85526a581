// Package sqlite implements a SQLite entity context. Every registered entity
// type is a named set; entities are stored as JSON documents keyed by set
// name and entity key, and a unit of work flushes its staged changes in one
// transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/pantry/pkg/key"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// DatabaseFile is the database file created inside the data directory.
const DatabaseFile = "pantry.db"

// Backend lifecycle errors.
var (
	ErrDetached        = errors.New("backend is not attached")
	ErrAlreadyAttached = errors.New("backend is already attached")
	ErrSetRegistered   = errors.New("entity set already registered")
)

// collection is one registered entity set.
type collection struct {
	name string
	typ  reflect.Type
	key  key.Key
}

// Backend owns the database connection and the registered entity sets.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	sets     map[reflect.Type]*collection
	names    map[string]*collection
	logger   *slog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the backend logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		sets:   make(map[reflect.Type]*collection),
		names:  make(map[string]*collection),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Register adds a set named name for entities of type T keyed by get.
func Register[T any, K comparable](b *Backend, name string, get func(T) K) error {
	return b.RegisterKey(name, key.New("key", get))
}

// RegisterKey adds a set named name for the key's owner type. Sets may be
// registered before or after Attach.
func (b *Backend) RegisterKey(name string, k key.Key) error {
	if name == "" || k.IsZero() {
		return fmt.Errorf("registering set %q: %w", name, types.ErrConfiguration)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.names[name]; ok {
		return fmt.Errorf("%q: %w", name, ErrSetRegistered)
	}
	if _, ok := b.sets[k.Type()]; ok {
		return fmt.Errorf("%s: %w", k.Type(), ErrSetRegistered)
	}
	c := &collection{name: name, typ: k.Type(), key: k}
	b.sets[c.typ] = c
	b.names[name] = c
	return nil
}

// Attach opens the database in the configured data directory, creating the
// directory and schema when missing.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.Backend != types.BackendSQLite {
		return fmt.Errorf("backend %q: %w", config.Backend, types.ErrBackendUnknown)
	}
	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(config.DataDir, DatabaseFile))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)
	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.attached = true
	b.logger.Debug("sqlite backend attached", "data_dir", config.DataDir)
	return nil
}

// Detach closes the database. After Detach, Open returns ErrDetached.
// Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.attached = false
	db := b.db
	b.db = nil
	if err := db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Open returns a fresh unit of work. It matches crud.Opener.
func (b *Backend) Open(context.Context) (types.EntityContext, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, ErrDetached
	}
	return &Context{backend: b}, nil
}

// conn returns the open database.
func (b *Backend) conn() (*sql.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, ErrDetached
	}
	return b.db, nil
}

func (b *Backend) collection(t reflect.Type) (*collection, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.sets[t]
	if !ok {
		return nil, fmt.Errorf("%s: %w", t, types.ErrUnknownSet)
	}
	return c, nil
}

func (b *Backend) named(name string) (*collection, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.names[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, types.ErrUnknownSet)
	}
	return c, nil
}

// newRowID generates a UUID v7 row id. Row ids sort in insertion order.
func newRowID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
