// Package render connects view evaluation and reconciliation to a
// platform substrate.
//
// The PlatformRenderer interface is the boundary every substrate
// implements: a browser bridge, a remote stream, or the recording test
// double. The Coordinator owns the render loop: it batches state writes
// into passes, evaluates the view graph, diffs against the previous tree
// and hands the result to the renderer.
package render

import (
	"github.com/go-raven/raven/pkg/identity"
	"github.com/go-raven/raven/pkg/patch"
	"github.com/go-raven/raven/pkg/vnode"
)

// PlatformRenderer applies trees and patches to a substrate and owns the
// node and handler registries.
//
// When a renderer materialises a subtree (MountTree or Insert) it attaches
// every handler slot bound in it, and when it removes a subtree it cleans
// up the slots bound there. AttachHandler and DetachHandler patches only
// cover nodes that survive a pass.
type PlatformRenderer interface {
	// SetRootContainer binds the mounting target.
	SetRootContainer(handle any) error
	// MountTree materialises the first tree.
	MountTree(root *vnode.VNode) error
	// ApplyPatches applies one diff pass in order. A failing batch must
	// leave the substrate as it was before the call.
	ApplyPatches(patches []patch.Patch) error

	RegisterNode(id identity.NodeID, handle any)
	UnregisterNode(id identity.NodeID)
	GetNode(id identity.NodeID) (handle any, ok bool)

	// AttachEventHandler binds a handler slot to (node, event), replacing
	// any slot previously bound to the pair.
	AttachEventHandler(node identity.NodeID, event string, handler identity.HandlerID) error
	// UpdateEventHandler sets the callback invoked when the slot fires.
	UpdateEventHandler(handler identity.HandlerID, fn func())
	// UpdateInputEventHandler sets a value-taking callback for the slot.
	UpdateInputEventHandler(handler identity.HandlerID, fn func(value string))
	// CleanupHandler detaches and forgets a slot. Idempotent.
	CleanupHandler(handler identity.HandlerID)
}

// Scheduler runs callbacks later on the UI loop.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(fn func())

// Schedule calls f(fn).
func (f SchedulerFunc) Schedule(fn func()) { f(fn) }
