package vtree

import (
	"slices"

	"github.com/go-raven/raven/pkg/identity"
	"github.com/go-raven/raven/pkg/vnode"
)

// Snapshot returns the current tree as a fresh VNode tree, or nil if
// nothing is mounted.
func (t *Tree) Snapshot() *vnode.VNode {
	if t.root == nil {
		return nil
	}
	return snapshot(t.root)
}

func snapshot(n *node) *vnode.VNode {
	out := &vnode.VNode{
		ID:    n.id,
		Kind:  n.kind,
		Tag:   n.tag,
		Text:  n.text,
		Props: n.props.Clone(),
	}
	if len(n.events) > 0 {
		out.Events = make(map[string]identity.HandlerID, len(n.events))
		for k, v := range n.events {
			out.Events[k] = v
		}
	}
	if len(n.children) > 0 {
		out.Children = make([]*vnode.VNode, len(n.children))
		for i, c := range n.children {
			out.Children[i] = snapshot(c)
		}
	}
	return out
}

// Root returns the ID of the mounted root.
func (t *Tree) Root() (identity.NodeID, bool) {
	if t.root == nil {
		return identity.Root, false
	}
	return t.root.id, true
}

// Len returns the number of live nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Contains reports whether id is live.
func (t *Tree) Contains(id identity.NodeID) bool {
	_, ok := t.nodes[id]
	return ok
}

// Lookup returns a detached copy of the node id without its children.
func (t *Tree) Lookup(id identity.NodeID) (*vnode.VNode, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, false
	}
	v := snapshot(&node{id: n.id, kind: n.kind, tag: n.tag, text: n.text, props: n.props, events: n.events})
	return v, true
}

// Parent returns the parent of id. The root and unknown nodes report false.
func (t *Tree) Parent(id identity.NodeID) (identity.NodeID, bool) {
	n, ok := t.nodes[id]
	if !ok || n.parent == nil {
		return identity.Root, false
	}
	return n.parent.id, true
}

// Children returns the ordered child IDs of id.
func (t *Tree) Children(id identity.NodeID) []identity.NodeID {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	out := make([]identity.NodeID, len(n.children))
	for i, c := range n.children {
		out[i] = c.id
	}
	return out
}

// Subtree returns the IDs of id and all its descendants in pre-order, and
// the handler slots bound anywhere in that subtree in sorted order.
func (t *Tree) Subtree(id identity.NodeID) (nodes []identity.NodeID, handlers []identity.HandlerID) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, nil
	}
	var walk func(*node)
	walk = func(n *node) {
		nodes = append(nodes, n.id)
		for _, h := range n.events {
			handlers = append(handlers, h)
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(n)
	slices.SortFunc(handlers, identity.CompareHandlers)
	return nodes, handlers
}

// Slot returns the node and event a handler slot is bound to.
func (t *Tree) Slot(h identity.HandlerID) (identity.NodeID, string, bool) {
	s, ok := t.slots[h]
	if !ok {
		return identity.Root, "", false
	}
	return s.node, s.event, true
}

// Handlers returns all bound handler slots in sorted order.
func (t *Tree) Handlers() []identity.HandlerID {
	out := make([]identity.HandlerID, 0, len(t.slots))
	for h := range t.slots {
		out = append(out, h)
	}
	slices.SortFunc(out, identity.CompareHandlers)
	return out
}
