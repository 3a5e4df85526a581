package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/mesh-intelligence/pantry/pkg/query"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

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

// change is one staged write. Staged entities are encoded when the
// changes apply, so edits made after staging are committed; imported
// documents arrive with their body already set.
type change struct {
	op     op
	set    *collection
	key    string
	entity any
	body   string
}

// encode fills in the body of a staged entity. A create takes its key
// here too, so hooks may assign it.
func (ch *change) encode() error {
	if ch.entity == nil || ch.op == opDelete {
		return nil
	}
	if ch.op == opCreate {
		k, err := ch.set.docKey(ch.entity)
		if err != nil {
			return fmt.Errorf("%s %s: %w", ch.op, ch.set.name, err)
		}
		ch.key = k
	}
	body, err := json.Marshal(ch.entity)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", ch.set.name, err)
	}
	ch.body = string(body)
	return nil
}

// Context is a unit of work over a Backend. It is not safe for concurrent
// use.
type Context struct {
	backend *Backend
	staged  []change
}

// Set returns the entity set for t.
func (c *Context) Set(t reflect.Type) (types.EntitySet, error) {
	col, err := c.backend.collection(t)
	if err != nil {
		return nil, err
	}
	return &set{ctx: c, col: col}, nil
}

// Pending returns the number of staged changes.
func (c *Context) Pending() int { return len(c.staged) }

// Discard drops every staged change.
func (c *Context) Discard() { c.staged = nil }

// ApplyChanges writes the staged changes in one transaction. Either all of
// them apply or none do; the staged list is cleared either way.
func (c *Context) ApplyChanges(ctx context.Context) (int, error) {
	staged := c.staged
	c.staged = nil
	if len(staged) == 0 {
		return 0, nil
	}
	for i := range staged {
		if err := staged[i].encode(); err != nil {
			return 0, err
		}
	}
	db, err := c.backend.conn()
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, ch := range staged {
		if err := apply(ctx, tx, ch, now); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	c.backend.logger.Debug("applied changes", "count", len(staged))
	return len(staged), nil
}

func apply(ctx context.Context, tx *sql.Tx, ch change, now string) error {
	switch ch.op {
	case opCreate:
		var one int
		err := tx.QueryRowContext(ctx, selectExists, ch.set.name, ch.key).Scan(&one)
		if err == nil {
			return fmt.Errorf("%s %s: %w", ch.set.name, ch.key, types.ErrDuplicateKey)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking %s %s: %w", ch.set.name, ch.key, err)
		}
		if _, err := tx.ExecContext(ctx, insertDoc, ch.set.name, ch.key, newRowID(), ch.body, now, now); err != nil {
			return fmt.Errorf("inserting %s %s: %w", ch.set.name, ch.key, err)
		}
		return nil
	case opUpdate:
		res, err := tx.ExecContext(ctx, updateDoc, ch.body, now, ch.set.name, ch.key)
		return affected(ch, res, err)
	default:
		res, err := tx.ExecContext(ctx, deleteDoc, ch.set.name, ch.key)
		return affected(ch, res, err)
	}
}

// affected checks that a statement touched the staged document.
func affected(ch change, res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("%s %s %s: %w", ch.op, ch.set.name, ch.key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s %s: %w", ch.op, ch.set.name, ch.key, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", ch.set.name, ch.key, types.ErrEntityNotFound)
	}
	return nil
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

// set is the EntitySet view of one collection inside a unit of work.
type set struct {
	ctx *Context
	col *collection
}

func (s *set) Type() reflect.Type { return s.col.typ }

// Query enumerates the committed documents of the set in insertion order.
// Predicates and ordering run in process.
func (s *set) Query() *query.Query {
	return query.From(query.SourceFunc(func(ctx context.Context) ([]any, error) {
		return s.ctx.backend.load(ctx, s.col)
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
		k, err := s.col.docKey(e)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", o, s.col.name, err)
		}
		changes = append(changes, change{op: o, set: s.col, key: k, entity: e})
	}
	s.ctx.staged = append(s.ctx.staged, changes...)
	return entities, nil
}

// docKey encodes the entity key of v as JSON text.
func (c *collection) docKey(v any) (string, error) {
	k, err := c.key.Value(v)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(k)
	if err != nil {
		return "", fmt.Errorf("encoding key: %w", err)
	}
	return string(b), nil
}

// decode turns a document body into a value of the collection's type.
func (c *collection) decode(body []byte) (any, error) {
	t := c.typ
	ptr := t.Kind() == reflect.Pointer
	if ptr {
		t = t.Elem()
	}
	v := reflect.New(t)
	if err := json.Unmarshal(body, v.Interface()); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", c.name, err)
	}
	if ptr {
		return v.Interface(), nil
	}
	return v.Elem().Interface(), nil
}

// load reads every committed document of col.
func (b *Backend) load(ctx context.Context, col *collection) ([]any, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, selectBodies, col.name)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", col.name, err)
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", col.name, err)
		}
		v, err := col.decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", col.name, err)
	}
	return out, nil
}
