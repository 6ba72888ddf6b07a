// Package state provides component-owned state containers and composable
// bindings over them.
//
// A State is constructed with an explicit Invalidator, the render scope that
// owns it. Every write stores the value and then invalidates that scope;
// there is no ambient lookup of a "current" component.
//
// State and Binding are NOT thread-safe. They must only be used on the UI
// loop. To update from a background goroutine, dispatch onto the loop:
//
//	go func() {
//	    result := fetch()
//	    loop.Dispatch(func() {
//	        items.Set(result) // Safe - runs on the UI loop
//	    })
//	}()
package state

import (
	"fmt"

	"github.com/go-raven/raven/pkg/errors"
)

// Invalidator is notified when a render scope becomes stale.
type Invalidator interface {
	Invalidate()
}

// InvalidatorFunc adapts a function to the Invalidator interface.
type InvalidatorFunc func()

// Invalidate calls f.
func (f InvalidatorFunc) Invalidate() {
	if f != nil {
		f()
	}
}

// State owns a value for the lifetime of a component instance.
//
// Example:
//
//	count := state.New(scope, 0)
//	count.Update(func(n int) int { return n + 1 })
//	label := fmt.Sprint(count.Get())
type State[T any] struct {
	sink      Invalidator
	value     T
	destroyed bool
}

// New creates a State holding initial whose writes invalidate sink.
func New[T any](sink Invalidator, initial T) *State[T] {
	return &State[T]{sink: sink, value: initial}
}

// Get returns the current value. After Destroy it keeps returning the last
// stored value.
func (s *State[T]) Get() T {
	return s.value
}

// Set stores value and invalidates the owning scope.
// Safe to call after Destroy: the write is dropped and reported as a
// stale-binding error.
func (s *State[T]) Set(value T) {
	if s.destroyed {
		s.reportStale()
		return
	}
	s.value = value
	if s.sink != nil {
		s.sink.Invalidate()
	}
}

// Update applies transform to the current value and stores the result.
func (s *State[T]) Update(transform func(T) T) {
	if s.destroyed {
		s.reportStale()
		return
	}
	s.Set(transform(s.value))
}

// Binding returns a direct Binding over the State's storage. The Binding
// does not keep the State alive; once the State is destroyed its writes are
// dropped.
func (s *State[T]) Binding() Binding[T] {
	return Binding[T]{get: s.Get, set: s.Set}
}

// Destroy ends the State's lifetime. Subsequent writes are no-ops.
func (s *State[T]) Destroy() {
	s.destroyed = true
}

// Destroyed reports whether Destroy has been called.
func (s *State[T]) Destroyed() bool {
	return s.destroyed
}

func (s *State[T]) reportStale() {
	var owner string
	if named, ok := s.sink.(fmt.Stringer); ok {
		owner = named.String()
	}
	errors.Report(&errors.Error{
		Op:   "state.Set",
		Kind: errors.KindStaleBinding,
		Node: owner,
		Err:  errors.ErrStaleBinding,
	})
}
