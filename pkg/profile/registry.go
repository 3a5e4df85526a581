package profile

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/mesh-intelligence/pantry/pkg/typeset"
)

// Registry errors.
var (
	ErrDuplicateProfile = errors.New("profile already registered for request type")
	ErrNilProfile       = errors.New("profile must not be nil")
)

// Registry maps request types, and request kind interfaces, to their
// profiles. It replaces discovery by scanning: applications register their
// profiles explicitly at startup.
type Registry struct {
	mu       sync.RWMutex
	profiles map[reflect.Type]Profile
	order    []reflect.Type
}

// NewRegistry returns a registry holding profiles. It panics on a duplicate
// request type; use Add to handle the error.
func NewRegistry(profiles ...Profile) *Registry {
	r := &Registry{profiles: make(map[reflect.Type]Profile)}
	if err := r.Add(profiles...); err != nil {
		panic(err)
	}
	return r
}

// Add registers profiles. Only one profile may be registered per request
// type. A batch with a nil or duplicate profile registers nothing.
func (r *Registry) Add(profiles ...Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch := make(map[reflect.Type]struct{}, len(profiles))
	for _, p := range profiles {
		if p == nil {
			return ErrNilProfile
		}
		t := p.RequestType()
		_, registered := r.profiles[t]
		_, repeated := batch[t]
		if registered || repeated {
			return fmt.Errorf("registering %s: %w", t, ErrDuplicateProfile)
		}
		batch[t] = struct{}{}
	}
	for _, p := range profiles {
		t := p.RequestType()
		r.profiles[t] = p
		r.order = append(r.order, t)
	}
	return nil
}

// Lookup returns the profile registered for exactly t.
func (r *Registry) Lookup(t reflect.Type) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[t]
	return p, ok
}

// Kinds returns the profiles registered for interfaces t implements, least
// specific first. The profile for t itself is not included.
func (r *Registry) Kinds(t reflect.Type) []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Profile
	for _, k := range typeset.Ancestry(t, r.order) {
		if k == t || k.Kind() != reflect.Interface {
			continue
		}
		out = append(out, r.profiles[k])
	}
	return out
}

// Len returns the number of registered profiles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}
