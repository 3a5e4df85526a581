// Package action holds the side-effect callbacks that run before and after
// an entity is created, updated, deleted or saved.
package action

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Operation names the mutation an action is attached to.
type Operation int

const (
	Create Operation = iota
	Update
	Delete
	Save
)

// String returns the lower-case operation name.
func (o Operation) String() string {
	switch o {
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	case Save:
		return "save"
	default:
		return "unknown"
	}
}

// Stage says whether an action runs before or after the mutation.
type Stage int

const (
	Before Stage = iota
	After
)

// Func is an erased action.
type Func func(ctx context.Context, req, entity any) error

// Typed erases a typed action. A request or entity of the wrong type is a
// types.ErrTypeMismatch error.
func Typed[TReq, TEntity any](f func(ctx context.Context, req TReq, entity TEntity) error) Func {
	return func(ctx context.Context, req, entity any) error {
		r, ok := req.(TReq)
		if !ok {
			return fmt.Errorf("action expects request %s, got %T: %w", reflect.TypeFor[TReq](), req, types.ErrTypeMismatch)
		}
		e, ok := entity.(TEntity)
		if !ok {
			return fmt.Errorf("action expects entity %s, got %T: %w", reflect.TypeFor[TEntity](), entity, types.ErrTypeMismatch)
		}
		return f(ctx, r, e)
	}
}

// List runs in order.
type List []Func

// Run invokes every action in order and stops at the first error.
func (l List) Run(ctx context.Context, req, entity any) error {
	for _, f := range l {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f(ctx, req, entity); err != nil {
			return err
		}
	}
	return nil
}

type slot struct {
	op    Operation
	stage Stage
}

// Set indexes action lists by operation and stage. The zero value is empty
// and ready to use.
type Set struct {
	lists map[slot]List
}

// Add appends f to the list for op and stage.
func (s *Set) Add(op Operation, stage Stage, f Func) {
	if f == nil {
		return
	}
	if s.lists == nil {
		s.lists = make(map[slot]List)
	}
	k := slot{op, stage}
	s.lists[k] = append(s.lists[k], f)
}

// List returns the actions for op and stage.
func (s Set) List(op Operation, stage Stage) List {
	return s.lists[slot{op, stage}]
}

// Empty reports whether no action is registered.
func (s Set) Empty() bool { return len(s.lists) == 0 }

// Merge returns a new Set with other's lists appended after s's.
func (s Set) Merge(other Set) Set {
	out := Set{lists: make(map[slot]List, len(s.lists)+len(other.lists))}
	for k, l := range s.lists {
		out.lists[k] = slices.Clone(l)
	}
	for k, l := range other.lists {
		out.lists[k] = append(out.lists[k], l...)
	}
	return out
}
