package bulkhead

import "sync"

// Registry holds one bulkhead per named dependency.
type Registry struct {
	mu       sync.RWMutex
	pools    map[string]*Bulkhead
	defaults Config
}

// NewRegistry creates a registry whose pools share the given defaults.
func NewRegistry(defaults Config) *Registry {
	return &Registry{
		pools:    make(map[string]*Bulkhead),
		defaults: defaults,
	}
}

// Get returns the bulkhead for name, creating it on first use.
func (r *Registry) Get(name string) *Bulkhead {
	r.mu.RLock()
	p, ok := r.pools[name]
	r.mu.RUnlock()

	if ok {
		return p
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok = r.pools[name]; ok {
		return p
	}

	p = New(name, r.defaults)
	r.pools[name] = p
	return p
}

// Lookup returns the bulkhead for name without creating one.
func (r *Registry) Lookup(name string) (*Bulkhead, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[name]
	return p, ok
}

// Names returns the names of all registered bulkheads.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pools))
	for name := range r.pools {
		names = append(names, name)
	}
	return names
}

// Snapshots returns a point-in-time view of every pool, for health rollup.
func (r *Registry) Snapshots() map[string]Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := make(map[string]Snapshot, len(r.pools))
	for name, p := range r.pools {
		snaps[name] = p.Snapshot()
	}
	return snaps
}

// SetLimits applies new limits to the named pool if it exists.
func (r *Registry) SetLimits(name string, l Limits) {
	r.mu.RLock()
	p, ok := r.pools[name]
	r.mu.RUnlock()

	if ok {
		p.SetLimits(l)
	}
}

// Close shuts down every pool. Used on process shutdown and in tests.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.pools {
		p.Close()
	}
}
