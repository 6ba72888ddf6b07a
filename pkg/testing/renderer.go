package testing

import (
	"fmt"

	"github.com/go-raven/raven/pkg/errors"
	"github.com/go-raven/raven/pkg/identity"
	"github.com/go-raven/raven/pkg/patch"
	"github.com/go-raven/raven/pkg/render"
	"github.com/go-raven/raven/pkg/vnode"
	"github.com/go-raven/raven/pkg/vtree"
)

// Method names recorded in Renderer.Calls.
const (
	CallAttach      = "attach"
	CallUpdate      = "update"
	CallUpdateInput = "updateInput"
	CallCleanup     = "cleanup"
)

// Call is one recorded handler-registry call.
type Call struct {
	Method  string
	Node    identity.NodeID
	Event   string
	Handler identity.HandlerID
}

// Renderer is a headless PlatformRenderer that keeps a live model of the
// mounted tree and records every mutating call.
//
// Node handles registered by the renderer are the NodeIDs themselves.
type Renderer struct {
	render.Registry

	handlers  render.HandlerTable
	tree      *vtree.Tree
	container any
	failNext  error

	// LastMounted is a copy of the tree passed to the last MountTree.
	LastMounted *vnode.VNode
	// Batches holds every batch accepted by ApplyPatches, in order.
	Batches [][]patch.Patch
	// RenderCount counts successful MountTree and ApplyPatches calls.
	RenderCount int
	// Calls is the history of attach, update and cleanup calls.
	Calls []Call
}

var _ render.PlatformRenderer = (*Renderer)(nil)

// NewRenderer returns an empty recording renderer.
func NewRenderer() *Renderer {
	return &Renderer{tree: vtree.New()}
}

// SetRootContainer records the container handle.
func (r *Renderer) SetRootContainer(handle any) error {
	if err := r.takeFailure(); err != nil {
		return err
	}
	r.container = handle
	return nil
}

// Container returns the handle passed to SetRootContainer.
func (r *Renderer) Container() any { return r.container }

// FailNext makes the next MountTree, ApplyPatches or SetRootContainer call
// return err without touching any state.
func (r *Renderer) FailNext(err error) { r.failNext = err }

func (r *Renderer) takeFailure() error {
	err := r.failNext
	r.failNext = nil
	return err
}

// MountTree replaces the model with root, registers every node and
// attaches every handler slot bound in it.
func (r *Renderer) MountTree(root *vnode.VNode) error {
	if err := r.takeFailure(); err != nil {
		return err
	}
	fresh := vtree.New()
	if err := fresh.Mount(root); err != nil {
		return err
	}
	if id, ok := r.tree.Root(); ok {
		r.release(r.tree, id)
	}
	r.tree = fresh
	if id, ok := fresh.Root(); ok {
		r.materialise(fresh, id)()
	}
	r.LastMounted = root.Clone()
	r.RenderCount++
	return nil
}

// ApplyPatches applies batch to a copy of the model. Registry and handler
// side effects are replayed only once the whole batch has applied, so a
// failing batch changes nothing.
func (r *Renderer) ApplyPatches(batch []patch.Patch) error {
	if err := r.takeFailure(); err != nil {
		return err
	}
	work := r.tree.Clone()
	var effects []func()
	for i, p := range batch {
		// Removed subtrees must be captured before they disappear.
		if rm, ok := p.(patch.Remove); ok && work.Contains(rm.Node) {
			effects = append(effects, r.releaser(work, rm.Node))
		}
		if err := work.Apply(p); err != nil {
			target, _ := patch.Target(p)
			return &errors.Error{
				Op:   "testing.ApplyPatches",
				Kind: errors.KindRender,
				Node: target.String(),
				Err:  fmt.Errorf("patch %d (%s): %w", i, p, err),
			}
		}
		switch p := p.(type) {
		case patch.Insert:
			effects = append(effects, r.materialise(work, p.Node.ID))
		case patch.AttachHandler:
			effects = append(effects, func() { r.attach(p.Node, p.Event, p.Handler) })
		case patch.DetachHandler:
			effects = append(effects, func() { r.CleanupHandler(p.Handler) })
		}
	}
	r.tree = work
	for _, fn := range effects {
		fn()
	}
	r.Batches = append(r.Batches, batch)
	r.RenderCount++
	return nil
}

// materialise returns the side effects of a subtree appearing in t.
func (r *Renderer) materialise(t *vtree.Tree, id identity.NodeID) func() {
	nodes, handlers := t.Subtree(id)
	type binding struct {
		node  identity.NodeID
		event string
		h     identity.HandlerID
	}
	bindings := make([]binding, 0, len(handlers))
	for _, h := range handlers {
		node, event, _ := t.Slot(h)
		bindings = append(bindings, binding{node, event, h})
	}
	return func() {
		for _, n := range nodes {
			r.RegisterNode(n, n)
		}
		for _, b := range bindings {
			r.attach(b.node, b.event, b.h)
		}
	}
}

func (r *Renderer) releaser(t *vtree.Tree, id identity.NodeID) func() {
	nodes, handlers := t.Subtree(id)
	return func() {
		for _, h := range handlers {
			r.CleanupHandler(h)
		}
		for _, n := range nodes {
			r.UnregisterNode(n)
		}
	}
}

func (r *Renderer) release(t *vtree.Tree, id identity.NodeID) {
	r.releaser(t, id)()
}

// AttachEventHandler binds handler to (node, event). The node must be
// registered.
func (r *Renderer) AttachEventHandler(node identity.NodeID, event string, handler identity.HandlerID) error {
	if _, ok := r.GetNode(node); !ok {
		return &errors.Error{Op: "testing.AttachEventHandler", Kind: errors.KindRender, Node: node.String(), Err: errors.ErrUnknownNode}
	}
	r.attach(node, event, handler)
	return nil
}

func (r *Renderer) attach(node identity.NodeID, event string, h identity.HandlerID) {
	r.handlers.Attach(h, node, event)
	r.Calls = append(r.Calls, Call{Method: CallAttach, Node: node, Event: event, Handler: h})
}

// UpdateEventHandler installs the callback for handler.
func (r *Renderer) UpdateEventHandler(handler identity.HandlerID, fn func()) {
	r.handlers.Update(handler, fn)
	r.Calls = append(r.Calls, Call{Method: CallUpdate, Handler: handler})
}

// UpdateInputEventHandler installs a value-taking callback for handler.
func (r *Renderer) UpdateInputEventHandler(handler identity.HandlerID, fn func(string)) {
	r.handlers.UpdateInput(handler, fn)
	r.Calls = append(r.Calls, Call{Method: CallUpdateInput, Handler: handler})
}

// CleanupHandler forgets handler. Calling it for an unknown handler is
// recorded and otherwise ignored.
func (r *Renderer) CleanupHandler(handler identity.HandlerID) {
	r.handlers.Cleanup(handler)
	r.Calls = append(r.Calls, Call{Method: CallCleanup, Handler: handler})
}

// CallsTo returns the recorded calls with the given method name.
func (r *Renderer) CallsTo(method string) []Call {
	var out []Call
	for _, c := range r.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// ResetHistory clears Batches, RenderCount and Calls. The mounted model
// and registries are kept.
func (r *Renderer) ResetHistory() {
	r.Batches = nil
	r.RenderCount = 0
	r.Calls = nil
}

// Snapshot returns a copy of the live tree, or nil if nothing is mounted.
func (r *Renderer) Snapshot() *vnode.VNode { return r.tree.Snapshot() }

// Parent returns the live parent of id.
func (r *Renderer) Parent(id identity.NodeID) (identity.NodeID, bool) { return r.tree.Parent(id) }

// Handler returns the slot bound to (node, event).
func (r *Renderer) Handler(node identity.NodeID, event string) (identity.HandlerID, bool) {
	return r.handlers.Find(node, event)
}

// Handlers returns the ids of all bound slots in sorted order.
func (r *Renderer) Handlers() []identity.HandlerID { return r.handlers.IDs() }

// HandlerSlot returns the slot bound to h.
func (r *Renderer) HandlerSlot(h identity.HandlerID) (render.HandlerSlot, bool) {
	return r.handlers.Lookup(h)
}

// Fire invokes an action handler the way a substrate event would.
func (r *Renderer) Fire(h identity.HandlerID) error { return r.handlers.Invoke(h, "") }

// Input invokes an input handler with value.
func (r *Renderer) Input(h identity.HandlerID, value string) error {
	return r.handlers.Invoke(h, value)
}
