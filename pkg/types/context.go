package types

import (
	"context"
	"errors"
	"reflect"

	"github.com/mesh-intelligence/pantry/pkg/query"
)

// Persistence adapter errors.
var (
	ErrUnknownSet      = errors.New("entity set not registered")
	ErrDuplicateKey    = errors.New("duplicate entity key")
	ErrEntityNotFound  = errors.New("entity not found in set")
	ErrMultipleMatches = errors.New("query matched more than one entity")
)

// EntitySet is the persisted collection of one entity type. Create, Update
// and Delete stage changes; nothing is visible to queries until the owning
// EntityContext applies them.
type EntitySet interface {
	// Type returns the entity type stored in the set.
	Type() reflect.Type

	// Query returns a deferred view over the committed entities.
	Query() *query.Query

	// Create stages the entities for insertion and returns them.
	Create(ctx context.Context, entities ...any) ([]any, error)

	// Update stages the entities for replacement and returns them.
	Update(ctx context.Context, entities ...any) ([]any, error)

	// Delete stages the entities for removal and returns them.
	Delete(ctx context.Context, entities ...any) ([]any, error)
}

// EntityContext is the unit of work a pipeline runs against. It is scoped to
// one in-flight request and is not safe for concurrent mutation.
type EntityContext interface {
	// Set returns the entity set for entities of type t.
	// Returns ErrUnknownSet if no set is registered for t.
	Set(t reflect.Type) (EntitySet, error)

	// ApplyChanges flushes every staged change and returns how many
	// entities were written.
	ApplyChanges(ctx context.Context) (int, error)

	// ToList executes q and returns every element.
	ToList(ctx context.Context, q *query.Query) ([]any, error)

	// SingleOrDefault executes q and returns its only element. The boolean
	// is false when q is empty. Returns ErrMultipleMatches for more than one.
	SingleOrDefault(ctx context.Context, q *query.Query) (any, bool, error)

	// Count executes q and returns the number of elements.
	Count(ctx context.Context, q *query.Query) (int, error)
}

// SetFor returns the entity set for T.
func SetFor[T any](db EntityContext) (EntitySet, error) {
	return db.Set(reflect.TypeFor[T]())
}
