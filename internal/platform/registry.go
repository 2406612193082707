package platform

import (
	"errors"
	"sort"
	"sync"

	"postpilot/internal/post"
)

// ErrNotFound is returned by Resolve for platforms that are disabled or were
// never registered. The dispatcher turns it into a configuration failure.
var ErrNotFound = errors.New("platform not registered")

// Registry maps platform identifiers to adapters. It is populated once at
// startup from the enabled-platforms configuration; the engine treats every
// adapter polymorphically and never special-cases a platform name outside
// this lookup.
type Registry struct {
	mu       sync.RWMutex
	adapters map[post.Platform]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: map[post.Platform]Adapter{}}
}

// Register adds or replaces the adapter for its platform.
func (r *Registry) Register(a Adapter) {
	if a == nil {
		return
	}
	r.mu.Lock()
	r.adapters[a.Name()] = a
	r.mu.Unlock()
}

// Resolve returns the adapter for a platform, or ErrNotFound.
func (r *Registry) Resolve(platform post.Platform) (Adapter, error) {
	r.mu.RLock()
	a, ok := r.adapters[platform]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

// Platforms returns the registered platform names, sorted.
func (r *Registry) Platforms() []post.Platform {
	r.mu.RLock()
	out := make([]post.Platform, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, name)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
