// Package registry holds the in-memory truth about what is actually up
// right now. It is the only mutable state shared between the controller,
// health monitor, reconciler, and shutdown drain.
package registry

import (
	"sync"
	"time"

	"github.com/hostling/hostling/internal/resource"
	"github.com/hostling/hostling/internal/supervise"
)

// Handle represents one live resource instance. It exists from a successful
// start until the matching stop; at most one per resource id.
type Handle struct {
	ID        string
	Kind      resource.Kind
	PID       int
	StartedAt time.Time
	Proc      supervise.Proc
}

// Registry is a concurrency-safe id -> Handle map. Mutation goes through
// the controller's per-id serialization; sweeps use Snapshot so iteration
// never blocks a start/stop on another id.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

func New() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Get returns the handle for id, if present.
func (r *Registry) Get(id string) (*Handle, bool) {
	r.mu.RLock()
	h, ok := r.handles[id]
	r.mu.RUnlock()
	return h, ok
}

// Has reports registry membership for id.
func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// Put inserts h, replacing any previous handle for the same id.
func (r *Registry) Put(h *Handle) {
	r.mu.Lock()
	r.handles[h.ID] = h
	r.mu.Unlock()
}

// Delete removes the handle for id, reporting whether one was present.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	_, ok := r.handles[id]
	delete(r.handles, id)
	r.mu.Unlock()
	return ok
}

// Snapshot returns the current handles. The slice is a copy; the *Handle
// values are shared, so callers treat them as read-only.
func (r *Registry) Snapshot() []*Handle {
	r.mu.RLock()
	out := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	r.mu.RUnlock()
	return out
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	n := len(r.handles)
	r.mu.RUnlock()
	return n
}

// CountByKind returns the number of live handles per kind.
func (r *Registry) CountByKind() map[resource.Kind]int {
	counts := make(map[resource.Kind]int)
	r.mu.RLock()
	for _, h := range r.handles {
		counts[h.Kind]++
	}
	r.mu.RUnlock()
	return counts
}
