// Package crud runs requests through the profile-driven pipelines:
//
//	request hooks -> filter -> sort -> select or join -> item hooks ->
//	before actions -> mutate -> entity hooks -> after actions -> commit ->
//	result transform -> result hooks -> response
//
// Each operation kind has a generic handler constructor (Create, Get,
// Update, Merge, ...). Modeled failures are dispatched to the resolved error
// handler and returned inside the response; only unmodeled failures, such
// as configuration or persistence errors, are returned as Go errors.
package crud

import (
	"context"
	"log/slog"

	"github.com/mesh-intelligence/pantry/pkg/mapper"
	"github.com/mesh-intelligence/pantry/pkg/profile"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Opener returns the unit of work one request runs against.
type Opener func(ctx context.Context) (types.EntityContext, error)

// Shared returns an Opener that hands out db to every request. Suitable
// when requests are handled one at a time.
func Shared(db types.EntityContext) Opener {
	return func(context.Context) (types.EntityContext, error) { return db, nil }
}

// Engine holds what every pipeline needs: resolved profiles, a way to open
// the persistence context and the default collaborators.
type Engine struct {
	store        *profile.Store
	open         Opener
	mapper       types.Mapper
	logger       *slog.Logger
	errorHandler types.ErrorHandlerFactory
	metrics      *Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithMapper sets the mapper used when a profile declares no creator,
// updater or result transform. A nil mapper disables the fallback.
func WithMapper(m types.Mapper) Option {
	return func(e *Engine) { e.mapper = m }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithErrorHandler sets the handler used when neither the entity nor the
// request profile declares one.
func WithErrorHandler(f types.ErrorHandlerFactory) Option {
	return func(e *Engine) { e.errorHandler = f }
}

// WithMetrics records pipeline metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New returns an engine resolving profiles from store and opening a unit of
// work per request with open.
func New(store *profile.Store, open Opener, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		open:   open,
		mapper: mapper.New(),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Store returns the engine's profile store.
func (e *Engine) Store() *profile.Store { return e.store }

func (e *Engine) handlerFor(ec *profile.EntityConfig) types.ErrorHandler {
	if ec != nil && ec.ErrorHandler != nil {
		return ec.ErrorHandler()
	}
	if e.errorHandler != nil {
		return e.errorHandler()
	}
	return types.DefaultErrorHandler{}
}
