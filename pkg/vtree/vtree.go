// Package vtree keeps a live model of a mounted tree and applies patch
// sequences to it.
//
// Renderers use a Tree as the authoritative mirror of what the substrate
// shows: it answers which nodes a Remove takes with it, which handler slots
// are bound where, and it lets a renderer validate a whole batch before any
// substrate mutation happens (ApplyAll is all-or-nothing).
package vtree

import (
	"fmt"
	"maps"
	"slices"

	"github.com/go-raven/raven/pkg/errors"
	"github.com/go-raven/raven/pkg/identity"
	"github.com/go-raven/raven/pkg/patch"
	"github.com/go-raven/raven/pkg/vnode"
)

type node struct {
	id       identity.NodeID
	kind     vnode.Kind
	tag      string
	text     string
	props    vnode.Props
	events   map[string]identity.HandlerID
	parent   *node
	children []*node
}

type slot struct {
	node  identity.NodeID
	event string
}

// Tree is a mutable model of a live tree. The zero value is not usable;
// call New.
type Tree struct {
	root  *node
	nodes map[identity.NodeID]*node
	slots map[identity.HandlerID]slot
}

// New returns an empty Tree.
func New() *Tree {
	return &Tree{
		nodes: make(map[identity.NodeID]*node),
		slots: make(map[identity.HandlerID]slot),
	}
}

// Mount replaces the whole model with a copy of root.
func (t *Tree) Mount(root *vnode.VNode) error {
	fresh := New()
	if root != nil {
		n, err := fresh.adopt(root, nil)
		if err != nil {
			return err
		}
		fresh.root = n
	}
	*t = *fresh
	return nil
}

// ApplyAll applies batch in order. On error the model is left unchanged.
func (t *Tree) ApplyAll(batch []patch.Patch) error {
	work := t.Clone()
	for i, p := range batch {
		if err := work.Apply(p); err != nil {
			return fmt.Errorf("patch %d (%s): %w", i, p, err)
		}
	}
	*t = *work
	return nil
}

// Apply applies a single patch. A failing patch may leave the model
// partially updated; use ApplyAll for atomic batches.
func (t *Tree) Apply(p patch.Patch) error {
	switch p := p.(type) {
	case patch.Insert:
		return t.insert(p)
	case patch.Remove:
		n, err := t.lookup(p.Node)
		if err != nil {
			return err
		}
		t.detach(n)
		t.forget(n)
		return nil
	case patch.Move:
		return t.move(p)
	case patch.UpdateProps:
		n, err := t.lookup(p.Node)
		if err != nil {
			return err
		}
		if n.props == nil && len(p.Set) > 0 {
			n.props = make(vnode.Props, len(p.Set))
		}
		for k, v := range p.Set {
			n.props[k] = v
		}
		for _, k := range p.Removed {
			delete(n.props, k)
		}
		return nil
	case patch.ReplaceText:
		n, err := t.lookup(p.Node)
		if err != nil {
			return err
		}
		if n.kind != vnode.KindText {
			return fmt.Errorf("vtree: replace-text on %s node %s", n.kind, n.id)
		}
		n.text = p.Text
		return nil
	case patch.AttachHandler:
		n, err := t.lookup(p.Node)
		if err != nil {
			return err
		}
		t.bind(n, p.Event, p.Handler)
		return nil
	case patch.DetachHandler:
		t.unbind(p.Handler)
		return nil
	default:
		return fmt.Errorf("vtree: unsupported patch %T", p)
	}
}

func (t *Tree) insert(p patch.Insert) error {
	if p.Node == nil {
		return fmt.Errorf("vtree: insert without subtree")
	}
	if p.Parent.IsRoot() {
		if t.root != nil {
			return fmt.Errorf("vtree: insert at root while %s is mounted", t.root.id)
		}
		n, err := t.adopt(p.Node, nil)
		if err != nil {
			return err
		}
		t.root = n
		return nil
	}
	parent, err := t.lookup(p.Parent)
	if err != nil {
		return err
	}
	n, err := t.adopt(p.Node, parent)
	if err != nil {
		return err
	}
	parent.children = slices.Insert(parent.children, clamp(p.Index, len(parent.children)), n)
	return nil
}

func (t *Tree) move(p patch.Move) error {
	n, err := t.lookup(p.Node)
	if err != nil {
		return err
	}
	parent, err := t.lookup(p.Parent)
	if err != nil {
		return err
	}
	for a := parent; a != nil; a = a.parent {
		if a == n {
			return fmt.Errorf("vtree: move of %s under its own descendant %s", n.id, parent.id)
		}
	}
	t.detach(n)
	n.parent = parent
	parent.children = slices.Insert(parent.children, clamp(p.Index, len(parent.children)), n)
	return nil
}

// adopt copies src into the model under parent, registering node IDs and
// handler slots. Nothing is registered if src contains a duplicate ID.
func (t *Tree) adopt(src *vnode.VNode, parent *node) (*node, error) {
	var dup error
	src.Walk(func(v *vnode.VNode) bool {
		if dup != nil {
			return false
		}
		if _, ok := t.nodes[v.ID]; ok {
			dup = &vnode.DuplicateIDError{ID: v.ID}
		}
		return dup == nil
	})
	if dup != nil {
		return nil, dup
	}
	if _, err := vnode.BuildIndex(src); err != nil {
		return nil, err
	}
	return t.copyIn(src, parent), nil
}

func (t *Tree) copyIn(src *vnode.VNode, parent *node) *node {
	n := &node{
		id:     src.ID,
		kind:   src.Kind,
		tag:    src.Tag,
		text:   src.Text,
		props:  src.Props.Clone(),
		parent: parent,
	}
	t.nodes[n.id] = n
	for _, event := range src.EventNames() {
		t.bind(n, event, src.Events[event])
	}
	if len(src.Children) > 0 {
		n.children = make([]*node, len(src.Children))
		for i, c := range src.Children {
			n.children[i] = t.copyIn(c, n)
		}
	}
	return n
}

func (t *Tree) bind(n *node, event string, h identity.HandlerID) {
	if old, ok := n.events[event]; ok && old != h {
		delete(t.slots, old)
	}
	if s, ok := t.slots[h]; ok && (s.node != n.id || s.event != event) {
		if other, ok := t.nodes[s.node]; ok && other.events[s.event] == h {
			delete(other.events, s.event)
		}
	}
	if n.events == nil {
		n.events = make(map[string]identity.HandlerID)
	}
	n.events[event] = h
	t.slots[h] = slot{node: n.id, event: event}
}

func (t *Tree) unbind(h identity.HandlerID) {
	s, ok := t.slots[h]
	if !ok {
		return
	}
	delete(t.slots, h)
	if n, ok := t.nodes[s.node]; ok && n.events[s.event] == h {
		delete(n.events, s.event)
	}
}

func (t *Tree) detach(n *node) {
	if n.parent == nil {
		if t.root == n {
			t.root = nil
		}
		return
	}
	siblings := n.parent.children
	if i := slices.Index(siblings, n); i >= 0 {
		n.parent.children = slices.Delete(siblings, i, i+1)
	}
	n.parent = nil
}

func (t *Tree) forget(n *node) {
	delete(t.nodes, n.id)
	for _, h := range n.events {
		delete(t.slots, h)
	}
	for _, c := range n.children {
		t.forget(c)
	}
}

func (t *Tree) lookup(id identity.NodeID) (*node, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, &errors.Error{Op: "vtree.Apply", Kind: errors.KindRender, Node: id.String(), Err: errors.ErrUnknownNode}
	}
	return n, nil
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// Clone returns an independent deep copy of the model.
func (t *Tree) Clone() *Tree {
	out := &Tree{
		nodes: make(map[identity.NodeID]*node, len(t.nodes)),
		slots: maps.Clone(t.slots),
	}
	if out.slots == nil {
		out.slots = make(map[identity.HandlerID]slot)
	}
	if t.root != nil {
		out.root = out.cloneNode(t.root, nil)
	}
	return out
}

func (t *Tree) cloneNode(src, parent *node) *node {
	n := &node{
		id:     src.id,
		kind:   src.kind,
		tag:    src.tag,
		text:   src.text,
		props:  src.props.Clone(),
		events: maps.Clone(src.events),
		parent: parent,
	}
	t.nodes[n.id] = n
	if len(src.children) > 0 {
		n.children = make([]*node, len(src.children))
		for i, c := range src.children {
			n.children[i] = t.cloneNode(c, n)
		}
	}
	return n
}
