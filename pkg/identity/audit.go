package identity

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCollision is wrapped by CollisionError.
var ErrCollision = errors.New("identity: two paths derived the same NodeID")

// CollisionError reports two distinct paths that derived the same NodeID.
type CollisionError struct {
	ID       NodeID
	Existing string
	Incoming string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("identity: %s derived from both %q and %q", e.ID, e.Existing, e.Incoming)
}

func (e *CollisionError) Unwrap() error {
	return ErrCollision
}

// Auditor remembers which path produced each NodeID it has seen and
// reports a CollisionError when a different path produces a known ID.
// It is intended for debug builds; memory grows with the number of
// distinct nodes ever observed until Reset is called.
type Auditor struct {
	mu   sync.Mutex
	seen map[NodeID]string
}

// NewAuditor creates an empty Auditor.
func NewAuditor() *Auditor {
	return &Auditor{seen: make(map[NodeID]string)}
}

// Observe records that path derived id.
func (a *Auditor) Observe(id NodeID, path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.seen[id]; ok {
		if existing != path {
			return &CollisionError{ID: id, Existing: existing, Incoming: path}
		}
		return nil
	}
	a.seen[id] = path
	return nil
}

// ObserveAll records every (id, path) pair. If any pair collides nothing
// is recorded and the collision is returned.
func (a *Auditor) ObserveAll(paths map[NodeID]string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, path := range paths {
		if existing, ok := a.seen[id]; ok && existing != path {
			return &CollisionError{ID: id, Existing: existing, Incoming: path}
		}
	}
	for id, path := range paths {
		a.seen[id] = path
	}
	return nil
}

// Len returns the number of distinct IDs observed.
func (a *Auditor) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.seen)
}

// Reset forgets all observations.
func (a *Auditor) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.seen)
}
