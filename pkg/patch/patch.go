// Package patch describes the atomic mutations that evolve one live tree
// into the next.
//
// Patches address nodes by NodeID, never by transient tree position, and a
// diff pass produces them as an ordered sequence: later patches may refer
// to nodes created by earlier Insert patches.
//
// Index semantics are sequential. Insert places its subtree at Index among
// the parent's current children (clamped to the end). Move detaches the
// node and reinserts it at Index among Parent's current children.
package patch

import (
	"fmt"

	"github.com/go-raven/raven/pkg/identity"
	"github.com/go-raven/raven/pkg/vnode"
)

// Op identifies the variant of a Patch.
type Op uint8

const (
	OpInsert Op = iota + 1
	OpRemove
	OpMove
	OpUpdateProps
	OpReplaceText
	OpAttachHandler
	OpDetachHandler
)

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpRemove:
		return "remove"
	case OpMove:
		return "move"
	case OpUpdateProps:
		return "update-props"
	case OpReplaceText:
		return "replace-text"
	case OpAttachHandler:
		return "attach-handler"
	case OpDetachHandler:
		return "detach-handler"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

func parseOp(s string) (Op, bool) {
	for o := OpInsert; o <= OpDetachHandler; o++ {
		if o.String() == s {
			return o, true
		}
	}
	return 0, false
}

// Patch is one atomic mutation. The concrete types in this package are the
// only implementations.
type Patch interface {
	Op() Op
	String() string
	patch()
}

// Insert materialises Node as a child of Parent at Index. Parent is
// identity.Root for the top-level node.
type Insert struct {
	Parent identity.NodeID
	Index  int
	Node   *vnode.VNode
}

// Remove deletes the node and its whole subtree.
type Remove struct {
	Node identity.NodeID
}

// Move repositions an existing node at Index under Parent.
type Move struct {
	Node   identity.NodeID
	Index  int
	Parent identity.NodeID
}

// UpdateProps sets the changed or added props and deletes Removed keys.
type UpdateProps struct {
	Node    identity.NodeID
	Set     vnode.Props
	Removed []string
}

// ReplaceText replaces the content of a text leaf.
type ReplaceText struct {
	Node identity.NodeID
	Text string
}

// AttachHandler binds the handler slot to (Node, Event). It replaces any
// slot previously bound to the same pair; no prior DetachHandler is needed.
type AttachHandler struct {
	Node    identity.NodeID
	Event   string
	Handler identity.HandlerID
}

// DetachHandler unbinds and forgets a handler slot.
type DetachHandler struct {
	Handler identity.HandlerID
}

func (Insert) Op() Op        { return OpInsert }
func (Remove) Op() Op        { return OpRemove }
func (Move) Op() Op          { return OpMove }
func (UpdateProps) Op() Op   { return OpUpdateProps }
func (ReplaceText) Op() Op   { return OpReplaceText }
func (AttachHandler) Op() Op { return OpAttachHandler }
func (DetachHandler) Op() Op { return OpDetachHandler }

func (Insert) patch()        {}
func (Remove) patch()        {}
func (Move) patch()          {}
func (UpdateProps) patch()   {}
func (ReplaceText) patch()   {}
func (AttachHandler) patch() {}
func (DetachHandler) patch() {}

func (p Insert) String() string {
	if p.Node == nil {
		return fmt.Sprintf("insert(<nil> under %s @%d)", p.Parent.Short(), p.Index)
	}
	return fmt.Sprintf("insert(%s %s under %s @%d)", p.Node.Kind, p.Node.ID.Short(), p.Parent.Short(), p.Index)
}

func (p Remove) String() string {
	return fmt.Sprintf("remove(%s)", p.Node.Short())
}

func (p Move) String() string {
	return fmt.Sprintf("move(%s under %s @%d)", p.Node.Short(), p.Parent.Short(), p.Index)
}

func (p UpdateProps) String() string {
	return fmt.Sprintf("update-props(%s set=%v removed=%v)", p.Node.Short(), p.Set, p.Removed)
}

func (p ReplaceText) String() string {
	return fmt.Sprintf("replace-text(%s %q)", p.Node.Short(), p.Text)
}

func (p AttachHandler) String() string {
	return fmt.Sprintf("attach-handler(%s %s -> %s)", p.Node.Short(), p.Event, p.Handler.String()[:8])
}

func (p DetachHandler) String() string {
	return fmt.Sprintf("detach-handler(%s)", p.Handler.String()[:8])
}

// Target returns the NodeID a patch addresses. DetachHandler addresses a
// handler slot and reports false.
func Target(p Patch) (identity.NodeID, bool) {
	switch p := p.(type) {
	case Insert:
		if p.Node == nil {
			return identity.Root, false
		}
		return p.Node.ID, true
	case Remove:
		return p.Node, true
	case Move:
		return p.Node, true
	case UpdateProps:
		return p.Node, true
	case ReplaceText:
		return p.Node, true
	case AttachHandler:
		return p.Node, true
	}
	return identity.Root, false
}

// Count tallies a batch by Op.
func Count(batch []Patch) map[Op]int {
	counts := make(map[Op]int)
	for _, p := range batch {
		counts[p.Op()]++
	}
	return counts
}
