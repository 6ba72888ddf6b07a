package view

import (
	"fmt"

	"github.com/go-raven/raven/pkg/identity"
	"github.com/go-raven/raven/pkg/state"
)

// Context is handed to Component.Body. It is only valid for the duration
// of the call.
type Context struct {
	scope *scope
	path  identity.Path
	slot  int
}

// Path returns the component's structural path.
func (c *Context) Path() identity.Path { return c.path }

// ID returns the component's NodeID.
func (c *Context) ID() identity.NodeID { return c.scope.id }

// Invalidator returns the component's render scope. States created
// outside UseState should be bound to it.
func (c *Context) Invalidator() state.Invalidator { return c.scope }

// OnDispose registers fn to run when the component leaves the tree.
// Disposers run in reverse registration order.
func (c *Context) OnDispose(fn func()) {
	if fn != nil {
		c.scope.disposers = append(c.scope.disposers, fn)
	}
}

// UseState returns the component's State in the next slot, creating it
// with initial on the first pass. Calls must happen in the same order on
// every pass.
func UseState[T any](ctx *Context, initial T) *state.State[T] {
	sc := ctx.scope
	i := ctx.slot
	ctx.slot++
	if i < len(sc.slots) {
		s, ok := sc.slots[i].(*state.State[T])
		if !ok {
			panic(fmt.Sprintf("view: state slot %d changed type from %T to %T", i, sc.slots[i], s))
		}
		return s
	}
	s := state.New[T](sc, initial)
	sc.slots = append(sc.slots, s)
	return s
}

// scope is the lifetime of one component instance.
type scope struct {
	id        identity.NodeID
	path      string
	sink      state.Invalidator
	slots     []any
	disposers []func()
	disposed  bool
}

// Invalidate marks the owning coordinator stale. No-op once disposed.
func (s *scope) Invalidate() {
	if s.disposed || s.sink == nil {
		return
	}
	s.sink.Invalidate()
}

func (s *scope) String() string { return s.path }

func (s *scope) dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	for _, slot := range s.slots {
		if d, ok := slot.(interface{ Destroy() }); ok {
			d.Destroy()
		}
	}
	for i := len(s.disposers) - 1; i >= 0; i-- {
		s.disposers[i]()
	}
	s.slots = nil
	s.disposers = nil
}

// Instances holds the live component scopes of one tree, keyed by NodeID.
// A scope is created the first time its component is built and disposed
// when a committed pass no longer contains it.
type Instances struct {
	sink   state.Invalidator
	scopes map[identity.NodeID]*scope
}

// NewInstances creates an empty set of scopes whose state writes
// invalidate sink.
func NewInstances(sink state.Invalidator) *Instances {
	return &Instances{sink: sink, scopes: make(map[identity.NodeID]*scope)}
}

// Len returns the number of live component scopes.
func (in *Instances) Len() int { return len(in.scopes) }

// Contains reports whether a live scope exists for id.
func (in *Instances) Contains(id identity.NodeID) bool {
	_, ok := in.scopes[id]
	return ok
}

// DisposeAll disposes every live scope.
func (in *Instances) DisposeAll() {
	for id, s := range in.scopes {
		s.dispose()
		delete(in.scopes, id)
	}
}
