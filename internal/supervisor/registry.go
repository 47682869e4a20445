package supervisor

import "sync"

// Registry is the authoritative mapping from feed ID to its current Entry.
// It is the only shared mutable state in the supervisor. Lock holds are
// pointer swaps and map copies; process start/kill never happens under the
// lock. Entries are replaced, never mutated in place, and never deleted:
// shutdown terminates handles but leaves the entries behind.
type Registry struct {
	mu      sync.RWMutex
	entries map[int]*Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[int]*Entry)}
}

// Get returns the current entry for id, or nil if the feed was never launched.
func (r *Registry) Get(id int) *Entry {
	r.mu.RLock()
	e := r.entries[id]
	r.mu.RUnlock()
	return e
}

// Put installs e unconditionally. Used only for test setup; launches go
// through Replace so a concurrent writer cannot be silently overwritten.
func (r *Registry) Put(id int, e *Entry) {
	r.mu.Lock()
	r.entries[id] = e
	r.mu.Unlock()
}

// Replace swaps prev for next on id and reports whether the swap happened.
// prev must be the entry the caller observed (nil for a first launch); a
// mismatch means another launcher won the race and the caller must dispose
// of next itself.
func (r *Registry) Replace(id int, prev, next *Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[id] != prev {
		return false
	}
	if next == nil {
		delete(r.entries, id)
		return true
	}
	r.entries[id] = next
	return true
}

// Snapshot returns a copy of the mapping. The entries themselves are shared;
// callers only use their read-side methods.
func (r *Registry) Snapshot() map[int]*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int]*Entry, len(r.entries))
	for id, e := range r.entries {
		out[id] = e
	}
	return out
}

// CountAlive returns the number of entries whose handle is currently live.
// Each liveness probe is a non-blocking channel check, so the read lock is
// held only briefly even with many feeds.
func (r *Registry) CountAlive() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if e.Alive() {
			n++
		}
	}
	return n
}

// Len returns the number of feeds that have been launched at least once.
func (r *Registry) Len() int {
	r.mu.RLock()
	n := len(r.entries)
	r.mu.RUnlock()
	return n
}
