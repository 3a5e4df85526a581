// Package memory is an in-process entity context. Committed entities live in
// a Store shared by every context opened on it; each Context stages its own
// changes and publishes them atomically on ApplyChanges. Readers always see
// copies, so mutating a returned entity never changes committed state.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/mesh-intelligence/pantry/pkg/key"
	"github.com/mesh-intelligence/pantry/pkg/query"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Store holds the committed entity sets.
type Store struct {
	mu     sync.RWMutex
	tables map[reflect.Type]*table
}

// table is one committed entity set: rows in insertion order plus a key
// index into them.
type table struct {
	typ   reflect.Type
	key   key.Key
	rows  []any
	index map[any]int
}

// NewStore returns an empty store with no registered sets.
func NewStore() *Store {
	return &Store{tables: make(map[reflect.Type]*table)}
}

// Register adds a set for entities of type T keyed by get.
func Register[T any, K comparable](s *Store, name string, get func(T) K) error {
	return s.RegisterKey(key.New(name, get))
}

// RegisterKey adds a set for the key's owner type.
func (s *Store) RegisterKey(k key.Key) error {
	if k.IsZero() {
		return fmt.Errorf("registering set: %w", types.ErrConfiguration)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[k.Type()]; ok {
		return fmt.Errorf("set for %s already registered: %w", k.Type(), types.ErrConfiguration)
	}
	s.tables[k.Type()] = &table{typ: k.Type(), key: k, index: make(map[any]int)}
	return nil
}

// Open returns a fresh unit of work. It matches crud.Opener.
func (s *Store) Open(context.Context) (types.EntityContext, error) {
	return &Context{store: s}, nil
}

// Seed commits entities directly, bypassing a unit of work.
func (s *Store) Seed(entities ...any) error {
	c := &Context{store: s}
	for _, e := range entities {
		if e == nil {
			continue
		}
		set, err := c.Set(reflect.TypeOf(e))
		if err != nil {
			return err
		}
		if _, err := set.Create(context.Background(), e); err != nil {
			return err
		}
	}
	_, err := c.ApplyChanges(context.Background())
	return err
}

// Len returns the number of committed entities of type t.
func (s *Store) Len(t reflect.Type) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tb, ok := s.tables[t]; ok {
		return len(tb.rows)
	}
	return 0
}

func (s *Store) table(t reflect.Type) (*table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tb, ok := s.tables[t]
	if !ok {
		return nil, fmt.Errorf("%s: %w", t, types.ErrUnknownSet)
	}
	return tb, nil
}

// snapshot copies the committed rows of tb.
func (s *Store) snapshot(tb *table) []any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]any, len(tb.rows))
	for i, r := range tb.rows {
		out[i] = clone(r)
	}
	return out
}

type op int

const (
	opCreate op = iota
	opUpdate
	opDelete
)

func (o op) String() string {
	switch o {
	case opCreate:
		return "create"
	case opUpdate:
		return "update"
	default:
		return "delete"
	}
}

// change holds the staged entity itself. Hooks that run after staging
// still edit what gets committed.
type change struct {
	op     op
	table  *table
	key    any
	entity any
}

// snapshot copies the entity as it stands now. A create takes its key
// here too, so hooks may assign it.
func (ch change) snapshot() (change, error) {
	ch.entity = clone(ch.entity)
	if ch.op != opCreate {
		return ch, nil
	}
	k, err := ch.table.key.Value(ch.entity)
	if err != nil {
		return ch, fmt.Errorf("%s %s: %w", ch.op, ch.table.typ, err)
	}
	ch.key = k
	return ch, nil
}

// Context is a unit of work over a Store. It is not safe for concurrent use.
type Context struct {
	store  *Store
	staged []change
}

// Set returns the entity set for t.
func (c *Context) Set(t reflect.Type) (types.EntitySet, error) {
	tb, err := c.store.table(t)
	if err != nil {
		return nil, err
	}
	return &set{ctx: c, table: tb}, nil
}

// Pending returns the number of staged changes.
func (c *Context) Pending() int { return len(c.staged) }

// Discard drops every staged change.
func (c *Context) Discard() { c.staged = nil }

// ApplyChanges publishes the staged changes in order. Either all of them
// apply or none do; the staged list is cleared either way.
func (c *Context) ApplyChanges(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	staged := c.staged
	c.staged = nil
	if len(staged) == 0 {
		return 0, nil
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	work := make(map[*table]*table)
	for _, ch := range staged {
		tb, ok := work[ch.table]
		if !ok {
			tb = ch.table.copy()
			work[ch.table] = tb
		}
		snap, err := ch.snapshot()
		if err != nil {
			return 0, err
		}
		if err := tb.apply(snap); err != nil {
			return 0, err
		}
	}
	for live, next := range work {
		live.rows, live.index = next.rows, next.index
	}
	return len(staged), nil
}

// ToList executes q.
func (c *Context) ToList(ctx context.Context, q *query.Query) ([]any, error) {
	return q.Execute(ctx)
}

// SingleOrDefault executes q and expects at most one element.
func (c *Context) SingleOrDefault(ctx context.Context, q *query.Query) (any, bool, error) {
	list, err := q.Take(2).Execute(ctx)
	if err != nil {
		return nil, false, err
	}
	switch len(list) {
	case 0:
		return nil, false, nil
	case 1:
		return list[0], true, nil
	default:
		return nil, false, types.ErrMultipleMatches
	}
}

// Count executes q and counts its elements.
func (c *Context) Count(ctx context.Context, q *query.Query) (int, error) {
	return q.Count(ctx)
}

func (t *table) copy() *table {
	index := make(map[any]int, len(t.index))
	for k, v := range t.index {
		index[k] = v
	}
	return &table{typ: t.typ, key: t.key, rows: slices.Clone(t.rows), index: index}
}

func (t *table) apply(ch change) error {
	i, exists := t.index[ch.key]
	switch ch.op {
	case opCreate:
		if exists {
			return fmt.Errorf("%s %v: %w", t.typ, ch.key, types.ErrDuplicateKey)
		}
		t.index[ch.key] = len(t.rows)
		t.rows = append(t.rows, ch.entity)
	case opUpdate:
		if !exists {
			return fmt.Errorf("%s %v: %w", t.typ, ch.key, types.ErrEntityNotFound)
		}
		t.rows[i] = ch.entity
	case opDelete:
		if !exists {
			return fmt.Errorf("%s %v: %w", t.typ, ch.key, types.ErrEntityNotFound)
		}
		t.rows = slices.Delete(t.rows, i, i+1)
		delete(t.index, ch.key)
		for k, j := range t.index {
			if j > i {
				t.index[k] = j - 1
			}
		}
	}
	return nil
}

type set struct {
	ctx   *Context
	table *table
}

func (s *set) Type() reflect.Type { return s.table.typ }

func (s *set) Query() *query.Query {
	return query.From(query.SourceFunc(func(context.Context) ([]any, error) {
		return s.ctx.store.snapshot(s.table), nil
	}))
}

func (s *set) Create(ctx context.Context, entities ...any) ([]any, error) {
	return s.stage(ctx, opCreate, entities)
}

func (s *set) Update(ctx context.Context, entities ...any) ([]any, error) {
	return s.stage(ctx, opUpdate, entities)
}

func (s *set) Delete(ctx context.Context, entities ...any) ([]any, error) {
	return s.stage(ctx, opDelete, entities)
}

func (s *set) stage(ctx context.Context, o op, entities []any) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	changes := make([]change, 0, len(entities))
	for _, e := range entities {
		k, err := s.table.key.Value(e)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", o, s.table.typ, err)
		}
		changes = append(changes, change{op: o, table: s.table, key: k, entity: e})
	}
	s.ctx.staged = append(s.ctx.staged, changes...)
	return entities, nil
}

// clone copies the value a pointer refers to. Other values are already
// copies.
func clone(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return v
	}
	cp := reflect.New(rv.Elem().Type())
	cp.Elem().Set(rv.Elem())
	return cp.Interface()
}
