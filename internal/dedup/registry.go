// Package dedup tracks which image references have already been handed to the
// persistence pipeline during the current session.
package dedup

import "sync"

// Registry is a volatile set of image references. It is never persisted: after a
// restart, images rendered afresh are captured again.
type Registry struct {
	mu   sync.Mutex
	refs map[string]struct{}
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{refs: make(map[string]struct{})}
}

// Seen reports whether ref has been marked.
func (r *Registry) Seen(ref string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.refs[ref]
	return ok
}

// MarkSeen records ref.
func (r *Registry) MarkSeen(ref string) {
	r.mu.Lock()
	r.refs[ref] = struct{}{}
	r.mu.Unlock()
}

// TryMark records ref and reports true if it was not already present.
func (r *Registry) TryMark(ref string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.refs[ref]; ok {
		return false
	}
	r.refs[ref] = struct{}{}
	return true
}

// Clear forgets every reference.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.refs = make(map[string]struct{})
	r.mu.Unlock()
}

// Len returns the number of marked references.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refs)
}
