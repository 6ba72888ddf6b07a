// Package reconcile computes the ordered patch sequence that evolves one
// VNode tree into the next.
//
// Diff runs in two phases. The first walks the previous tree and removes
// every node that is not retained: a node is retained when the next tree
// holds the same NodeID with the same kind, tag and parent. Removing these
// up front means no Insert can clash with a still-live ID. The second phase
// walks the retained nodes, updating props, text and handler bindings, and
// places children with Insert and Move patches.
//
// Children are matched by NodeID through hash lookups. Among retained
// children, the longest run that already appears in previous order stays
// put; only the others are moved, so a permutation of n children costs
// n minus the length of its longest increasing subsequence Move patches.
package reconcile

import (
	"reflect"
	"slices"

	"github.com/go-raven/raven/pkg/identity"
	"github.com/go-raven/raven/pkg/patch"
	"github.com/go-raven/raven/pkg/vnode"
)

// Diff returns the patches that turn prev into next. A nil prev yields a
// single Insert of next under identity.Root; a nil next removes prev.
//
// Insert patches reference subtrees of next; callers must treat them as
// read-only. Diff never mutates either tree.
func Diff(prev, next *vnode.VNode) []patch.Patch {
	switch {
	case prev == nil && next == nil:
		return nil
	case prev == nil:
		return []patch.Patch{patch.Insert{Parent: identity.Root, Index: 0, Node: next}}
	case next == nil:
		return []patch.Patch{patch.Remove{Node: prev.ID}}
	}

	if !sameNode(prev, next) {
		return []patch.Patch{
			patch.Remove{Node: prev.ID},
			patch.Insert{Parent: identity.Root, Index: 0, Node: next},
		}
	}

	d := &differ{
		next:     make(map[identity.NodeID]*vnode.VNode),
		parent:   make(map[identity.NodeID]identity.NodeID),
		handlers: make(map[identity.HandlerID]struct{}),
	}
	d.index(next, identity.Root)
	d.removeStale(prev)
	d.diffNode(prev, next)
	return d.out
}

type differ struct {
	next     map[identity.NodeID]*vnode.VNode
	parent   map[identity.NodeID]identity.NodeID
	handlers map[identity.HandlerID]struct{}
	out      []patch.Patch
}

func (d *differ) index(n *vnode.VNode, parent identity.NodeID) {
	d.next[n.ID] = n
	d.parent[n.ID] = parent
	for _, h := range n.Events {
		d.handlers[h] = struct{}{}
	}
	for _, c := range n.Children {
		d.index(c, n.ID)
	}
}

// retained reports whether c, a previous child of parent, survives into the
// next tree under the same parent.
func (d *differ) retained(c, parent *vnode.VNode) bool {
	n, ok := d.next[c.ID]
	return ok && sameNode(c, n) && d.parent[c.ID] == parent.ID
}

func (d *differ) removeStale(prev *vnode.VNode) {
	for _, c := range prev.Children {
		if d.retained(c, prev) {
			d.removeStale(c)
			continue
		}
		d.out = append(d.out, patch.Remove{Node: c.ID})
	}
}

func (d *differ) diffNode(prev, next *vnode.VNode) {
	d.diffProps(prev, next)
	if next.Kind == vnode.KindText && prev.Text != next.Text {
		d.out = append(d.out, patch.ReplaceText{Node: next.ID, Text: next.Text})
	}
	d.diffEvents(prev, next)
	d.diffChildren(prev, next)
}

func (d *differ) diffProps(prev, next *vnode.VNode) {
	var set vnode.Props
	for k, v := range next.Props {
		if old, ok := prev.Props[k]; ok && reflect.DeepEqual(old, v) {
			continue
		}
		if set == nil {
			set = make(vnode.Props)
		}
		set[k] = v
	}
	var removed []string
	for k := range prev.Props {
		if _, ok := next.Props[k]; !ok {
			removed = append(removed, k)
		}
	}
	if set == nil && removed == nil {
		return
	}
	slices.Sort(removed)
	d.out = append(d.out, patch.UpdateProps{Node: next.ID, Set: set, Removed: removed})
}

// diffEvents emits bindings for a retained node. A changed slot is attached
// before the old one is detached so the (node, event) pair is never unbound.
func (d *differ) diffEvents(prev, next *vnode.VNode) {
	for _, event := range next.EventNames() {
		h := next.Events[event]
		if old, ok := prev.Events[event]; ok && old == h {
			continue
		}
		d.out = append(d.out, patch.AttachHandler{Node: next.ID, Event: event, Handler: h})
	}
	for _, event := range prev.EventNames() {
		old := prev.Events[event]
		if h, ok := next.Events[event]; ok && h == old {
			continue
		}
		// Still bound by another node of the next tree.
		if _, ok := d.handlers[old]; ok {
			continue
		}
		d.out = append(d.out, patch.DetachHandler{Handler: old})
	}
}

func (d *differ) diffChildren(prev, next *vnode.VNode) {
	// Rank retained previous children by their order after removals.
	rank := make(map[identity.NodeID]int, len(prev.Children))
	prevByID := make(map[identity.NodeID]*vnode.VNode, len(prev.Children))
	for _, c := range prev.Children {
		if d.retained(c, prev) {
			rank[c.ID] = len(rank)
			prevByID[c.ID] = c
		}
	}

	// Ranks of retained children in next order; -1 marks a new child.
	seq := make([]int, len(next.Children))
	var kept []int
	for i, c := range next.Children {
		r, ok := rank[c.ID]
		if !ok {
			seq[i] = -1
			continue
		}
		seq[i] = r
		kept = append(kept, r)
	}
	stable := make([]bool, len(rank))
	for _, r := range longestIncreasing(kept) {
		stable[r] = true
	}

	// pending counts retained children, by rank, that are neither stable nor
	// placed yet. They still sit in their old slots, so every one ranked
	// below the last stable child seen shifts the target index by one.
	pending := newFenwick(len(rank))
	for r, s := range stable {
		if !s {
			pending.add(r, 1)
		}
	}
	anchor := -1
	for i, c := range next.Children {
		r := seq[i]
		switch {
		case r < 0:
			d.out = append(d.out, patch.Insert{Parent: next.ID, Index: i + pending.sum(anchor), Node: c})
		case stable[r]:
			anchor = r
		default:
			pending.add(r, -1)
			d.out = append(d.out, patch.Move{Node: c.ID, Index: i + pending.sum(anchor), Parent: next.ID})
		}
	}

	for i, c := range next.Children {
		if seq[i] >= 0 {
			d.diffNode(prevByID[c.ID], c)
		}
	}
}

func sameNode(a, b *vnode.VNode) bool {
	return a.ID == b.ID && a.Kind == b.Kind && a.Tag == b.Tag
}
