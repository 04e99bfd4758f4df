package discovery

import (
	"sync"

	"github.com/arbitragex/engine/internal/arbmodel"
)

// Registry holds the latest known snapshot of every watched Pool plus the
// inverted index from a Pool to the Templates it can feed. Pools are
// externally owned: the registry only caches snapshots handed to it by
// PoolUpdated; it never recomputes reserves on its own.
type Registry struct {
	mu         sync.RWMutex
	pools      map[arbmodel.PoolID]arbmodel.Pool
	templates  map[string]*Template
	byPool     map[arbmodel.PoolID]map[string]struct{}
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		pools:     make(map[arbmodel.PoolID]arbmodel.Pool),
		templates: make(map[string]*Template),
		byPool:    make(map[arbmodel.PoolID]map[string]struct{}),
	}
}

// AddTemplate registers a route template and indexes it by every pool it
// touches, so a pool update can cheaply find the templates it affects.
func (r *Registry) AddTemplate(t *Template) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.templates[t.ID] = t
	for _, leg := range t.Legs {
		set, ok := r.byPool[leg.Pool]
		if !ok {
			set = make(map[string]struct{})
			r.byPool[leg.Pool] = set
		}
		set[t.ID] = struct{}{}
	}
}

// PoolUpdated records a new snapshot and returns the templates it affects.
func (r *Registry) PoolUpdated(pool arbmodel.Pool) []*Template {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pools[pool.ID] = pool

	ids := r.byPool[pool.ID]
	affected := make([]*Template, 0, len(ids))
	for id := range ids {
		if t, ok := r.templates[id]; ok {
			affected = append(affected, t)
		}
	}
	return affected
}

// Pool returns the latest snapshot for id, if known.
func (r *Registry) Pool(id arbmodel.PoolID) (arbmodel.Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[id]
	return p, ok
}

// Templates returns every registered template, for test setup/inspection.
func (r *Registry) Templates() []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	return out
}
