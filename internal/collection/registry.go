// Package collection tracks the active search scope: the vector-store
// collection holding the most recently uploaded batch.
//
// The registry is a single-writer atomic slot. Every write bumps a monotonic
// version so consumers that build long-lived state from a Scope (the agent
// manager) can tell whether a newer scope has since been installed.
package collection

import (
	"sync"
	"sync/atomic"
)

// Default is the sentinel collection used before any upload has happened.
const Default = "default_collection"

// Scope is an immutable snapshot of the registry.
type Scope struct {
	// Collection is the vector-store collection name (the batch id).
	Collection string
	// Version increases by one on every Set. The initial scope has version 0.
	Version uint64
}

// Newer reports whether s was installed after other.
func (s Scope) Newer(other Scope) bool {
	return s.Version > other.Version
}

// Registry holds the active Scope. Reads are lock-free; writes are serialized.
type Registry struct {
	mu      sync.Mutex
	current atomic.Pointer[Scope]
}

// NewRegistry returns a registry initialised to the given collection at
// version 0. An empty initial name selects Default.
func NewRegistry(initial string) *Registry {
	if initial == "" {
		initial = Default
	}
	r := &Registry{}
	r.current.Store(&Scope{Collection: initial})
	return r
}

// Current returns the most recently installed scope. The result may be stale
// by the time the caller uses it.
func (r *Registry) Current() Scope {
	return *r.current.Load()
}

// Set installs collection as the active scope and returns the new snapshot.
func (r *Registry) Set(collection string) Scope {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.current.Load()
	next := &Scope{Collection: collection, Version: prev.Version + 1}
	r.current.Store(next)
	return *next
}
