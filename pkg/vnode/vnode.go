// Package vnode defines the virtual node tree produced by one render pass.
//
// A VNode tree is built fresh on every pass and treated as immutable once
// built: the reconciler compares the retained previous tree against the
// new one, and the coordinator keeps only the newest tree. NodeID is the
// sole link between passes; VNode values are never shared across passes.
package vnode

import (
	"fmt"
	"maps"
	"reflect"
	"slices"

	"github.com/go-raven/raven/pkg/identity"
)

// Kind is the variant tag of a VNode.
type Kind uint8

const (
	// KindElement is a primitive element with a tag, props and children.
	KindElement Kind = iota
	// KindText is a text leaf; its content is in VNode.Text.
	KindText
	// KindComponent is the placeholder for a component instance; its single
	// child is the component's body.
	KindComponent
)

func (k Kind) String() string {
	switch k {
	case KindElement:
		return "element"
	case KindText:
		return "text"
	case KindComponent:
		return "component"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case KindElement, KindText, KindComponent:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("vnode: invalid kind %d", uint8(k))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "element":
		*k = KindElement
	case "text":
		*k = KindText
	case "component":
		*k = KindComponent
	default:
		return fmt.Errorf("vnode: unknown kind %q", text)
	}
	return nil
}

// Props holds attributes, styling and content of a node. Values are
// compared structurally (reflect.DeepEqual) by the reconciler.
type Props map[string]any

// Equal reports whether p and other hold the same keys with deeply equal values.
func (p Props) Equal(other Props) bool {
	if len(p) != len(other) {
		return false
	}
	for k, v := range p {
		ov, ok := other[k]
		if !ok || !reflect.DeepEqual(v, ov) {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy of p. Nil stays nil.
func (p Props) Clone() Props {
	return maps.Clone(p)
}

// VNode is one node of a rendered tree.
type VNode struct {
	ID       identity.NodeID               `json:"id"`
	Kind     Kind                          `json:"kind"`
	Tag      string                        `json:"tag,omitempty"`
	Text     string                        `json:"text,omitempty"`
	Props    Props                         `json:"props,omitempty"`
	Children []*VNode                      `json:"children,omitempty"`
	Events   map[string]identity.HandlerID `json:"events,omitempty"`
}

// Clone returns a deep copy of the subtree rooted at n. Prop values are
// copied by assignment.
func (n *VNode) Clone() *VNode {
	if n == nil {
		return nil
	}
	out := &VNode{
		ID:     n.ID,
		Kind:   n.Kind,
		Tag:    n.Tag,
		Text:   n.Text,
		Props:  n.Props.Clone(),
		Events: maps.Clone(n.Events),
	}
	if len(n.Children) > 0 {
		out.Children = make([]*VNode, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Walk visits n and its descendants depth-first in pre-order. Returning
// false from visit skips the node's children.
func (n *VNode) Walk(visit func(*VNode) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(visit)
	}
}

// Count returns the number of nodes in the subtree.
func (n *VNode) Count() int {
	count := 0
	n.Walk(func(*VNode) bool {
		count++
		return true
	})
	return count
}

// EventNames returns the node's bound event names in sorted order.
func (n *VNode) EventNames() []string {
	return slices.Sorted(maps.Keys(n.Events))
}

// Handler is the callback bound to a handler slot. Exactly one of Action
// and Input is set: Action for plain events (tap, submit), Input for events
// that carry a value (text entry).
type Handler struct {
	Action func()
	Input  func(value string)
}

// IsInput reports whether the handler takes a value.
func (h Handler) IsInput() bool {
	return h.Input != nil
}
