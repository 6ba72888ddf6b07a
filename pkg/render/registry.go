package render

import (
	"fmt"
	"slices"

	"github.com/go-raven/raven/pkg/errors"
	"github.com/go-raven/raven/pkg/identity"
)

// Registry maps NodeIDs to substrate handles. Renderers embed it to
// satisfy the node half of PlatformRenderer.
type Registry struct {
	nodes map[identity.NodeID]any
}

// RegisterNode records handle for id, replacing any previous handle.
func (r *Registry) RegisterNode(id identity.NodeID, handle any) {
	if r.nodes == nil {
		r.nodes = make(map[identity.NodeID]any)
	}
	r.nodes[id] = handle
}

// UnregisterNode forgets id.
func (r *Registry) UnregisterNode(id identity.NodeID) {
	delete(r.nodes, id)
}

// GetNode returns the handle registered for id.
func (r *Registry) GetNode(id identity.NodeID) (any, bool) {
	h, ok := r.nodes[id]
	return h, ok
}

// Nodes returns the number of registered nodes.
func (r *Registry) Nodes() int { return len(r.nodes) }

// HandlerSlot is one bound handler.
type HandlerSlot struct {
	Node  identity.NodeID
	Event string
	// Exactly one of Action and Input is set once a callback is installed.
	Action func()
	Input  func(value string)
}

// HandlerTable is the handler-id indirection renderers keep: substrate
// events carry a HandlerID, the table resolves it to the current
// callback. Swapping a callback never touches the substrate binding.
type HandlerTable struct {
	slots map[identity.HandlerID]*HandlerSlot
	pairs map[pair]identity.HandlerID
}

type pair struct {
	node  identity.NodeID
	event string
}

// Attach binds h to (node, event). A slot already bound to the same pair
// is dropped; an existing callback for h is kept.
func (t *HandlerTable) Attach(h identity.HandlerID, node identity.NodeID, event string) {
	if t.slots == nil {
		t.slots = make(map[identity.HandlerID]*HandlerSlot)
		t.pairs = make(map[pair]identity.HandlerID)
	}
	key := pair{node, event}
	if old, ok := t.pairs[key]; ok && old != h {
		delete(t.slots, old)
	}
	if s, ok := t.slots[h]; ok {
		delete(t.pairs, pair{s.Node, s.Event})
		s.Node, s.Event = node, event
	} else {
		t.slots[h] = &HandlerSlot{Node: node, Event: event}
	}
	t.pairs[key] = h
}

// Update installs an action callback for h. Unknown slots are ignored.
func (t *HandlerTable) Update(h identity.HandlerID, fn func()) {
	if s, ok := t.slots[h]; ok {
		s.Action, s.Input = fn, nil
	}
}

// UpdateInput installs a value-taking callback for h. Unknown slots are
// ignored.
func (t *HandlerTable) UpdateInput(h identity.HandlerID, fn func(string)) {
	if s, ok := t.slots[h]; ok {
		s.Action, s.Input = nil, fn
	}
}

// Cleanup forgets h and reports whether it was bound.
func (t *HandlerTable) Cleanup(h identity.HandlerID) bool {
	s, ok := t.slots[h]
	if !ok {
		return false
	}
	delete(t.slots, h)
	if t.pairs[pair{s.Node, s.Event}] == h {
		delete(t.pairs, pair{s.Node, s.Event})
	}
	return true
}

// Lookup returns the slot for h.
func (t *HandlerTable) Lookup(h identity.HandlerID) (HandlerSlot, bool) {
	s, ok := t.slots[h]
	if !ok {
		return HandlerSlot{}, false
	}
	return *s, true
}

// Find returns the slot bound to (node, event).
func (t *HandlerTable) Find(node identity.NodeID, event string) (identity.HandlerID, bool) {
	h, ok := t.pairs[pair{node, event}]
	return h, ok
}

// IDs returns all bound slots in sorted order.
func (t *HandlerTable) IDs() []identity.HandlerID {
	out := make([]identity.HandlerID, 0, len(t.slots))
	for id := range t.slots {
		out = append(out, id)
	}
	slices.SortFunc(out, identity.CompareHandlers)
	return out
}

// Len returns the number of bound slots.
func (t *HandlerTable) Len() int { return len(t.slots) }

// Invoke fires h. An input slot receives value; an action slot ignores
// it. A panicking callback is recovered and returned as *errors.PanicError.
func (t *HandlerTable) Invoke(h identity.HandlerID, value string) (err error) {
	s, ok := t.slots[h]
	if !ok {
		return &errors.Error{Op: "render.Invoke", Kind: errors.KindRender, Err: fmt.Errorf("%w: %s", errors.ErrUnknownHandler, h)}
	}
	defer errors.RecoverInto("render.Invoke", &err)
	switch {
	case s.Input != nil:
		s.Input(value)
	case s.Action != nil:
		s.Action()
	}
	return nil
}
