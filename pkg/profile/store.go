package profile

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

// Store resolves and caches the RequestConfig of each request type. A Store
// is owned by the application; configs live as long as the Store.
type Store struct {
	registry *Registry
	logger   *slog.Logger
	configs  sync.Map // reflect.Type -> *RequestConfig
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used to report config builds.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore returns a Store over r. A nil registry behaves as an empty one.
func NewStore(r *Registry, opts ...StoreOption) *Store {
	if r == nil {
		r = NewRegistry()
	}
	s := &Store{registry: r, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Config returns the resolved config for request type t, building it on
// first use. Concurrent first calls may build twice; only the first stored
// config is ever returned. Build failures are not cached.
func (s *Store) Config(t reflect.Type) (*RequestConfig, error) {
	if t == nil {
		return nil, types.ErrNilRequest
	}
	if v, ok := s.configs.Load(t); ok {
		return v.(*RequestConfig), nil
	}
	cfg, err := s.build(t)
	if err != nil {
		return nil, err
	}
	v, loaded := s.configs.LoadOrStore(t, cfg)
	if !loaded {
		s.logger.Debug("built request config",
			"request", t.String(),
			"profiles", len(cfg.applied),
			"entities", len(cfg.entityOrder))
	}
	return v.(*RequestConfig), nil
}

// ConfigFor returns the resolved config for TReq.
func ConfigFor[TReq any](s *Store) (*RequestConfig, error) {
	return s.Config(reflect.TypeFor[TReq]())
}

// Warm builds the configs of the given request types so configuration
// errors surface at startup.
func (s *Store) Warm(requestTypes ...reflect.Type) error {
	var errs []error
	for _, t := range requestTypes {
		if _, err := s.Config(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Resolve returns the profiles that apply to t in application order: kind
// profiles from least to most specific, then t's own profile. The own
// profile is the registered one, else the one t declares, else none.
func (s *Store) Resolve(t reflect.Type) ([]Profile, error) {
	chain := s.registry.Kinds(t)
	own, err := s.own(t)
	if err != nil {
		return nil, err
	}
	if own != nil {
		chain = append(chain, own)
	}

	seen := make(map[reflect.Type]bool, len(chain))
	out := chain[:0]
	for _, p := range chain {
		rt := p.RequestType()
		if seen[rt] {
			continue
		}
		seen[rt] = true
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) own(t reflect.Type) (Profile, error) {
	if p, ok := s.registry.Lookup(t); ok {
		return p, nil
	}
	d, ok := declarer(t)
	if !ok {
		return nil, nil
	}
	p := d.DeclareProfile()
	if p == nil {
		return nil, nil
	}
	if p.RequestType() != t {
		return nil, fmt.Errorf("%s declares a profile for %s: %w", t, p.RequestType(), types.ErrConfiguration)
	}
	return p, nil
}

// declarer returns a zero value of t that implements Declarer, trying t's
// pointer type for value types.
func declarer(t reflect.Type) (Declarer, bool) {
	var v reflect.Value
	switch {
	case t.Kind() == reflect.Interface:
		return nil, false
	case t.Kind() == reflect.Pointer:
		v = reflect.New(t.Elem())
	case t.Implements(reflect.TypeFor[Declarer]()):
		v = reflect.Zero(t)
	default:
		v = reflect.New(t)
	}
	d, ok := v.Interface().(Declarer)
	return d, ok
}

func (s *Store) build(t reflect.Type) (*RequestConfig, error) {
	chain, err := s.Resolve(t)
	if err != nil {
		return nil, err
	}
	cfg := newRequestConfig(t)
	for _, p := range chain {
		d := p.definition()
		if err := d.validate(); err != nil {
			return nil, err
		}
		cfg.absorb(d)
	}
	if cfg.bulk && cfg.items == nil {
		return nil, fmt.Errorf("bulk request %s has no item source: %w", t, types.ErrConfiguration)
	}
	return cfg, nil
}
