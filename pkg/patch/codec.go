package patch

import (
	"encoding/json"
	"fmt"

	"golang.org/x/mod/semver"

	"github.com/go-raven/raven/pkg/identity"
	"github.com/go-raven/raven/pkg/vnode"
)

// ProtocolVersion is the semantic version of the JSON wire format produced
// by Batch. Peers are compatible when their major versions match.
const ProtocolVersion = "v1.0.0"

// Compatible reports whether a peer speaking version v can exchange
// batches with this package.
func Compatible(v string) bool {
	return semver.IsValid(v) && semver.Major(v) == semver.Major(ProtocolVersion)
}

// Batch is an ordered patch sequence with a JSON wire encoding: an array of
// objects discriminated by their "op" field.
//
// Prop values decode as generic JSON values (numbers become float64).
type Batch []Patch

type wirePatch struct {
	Op      string              `json:"op"`
	Node    *identity.NodeID    `json:"node,omitempty"`
	Parent  *identity.NodeID    `json:"parent,omitempty"`
	Index   *int                `json:"index,omitempty"`
	Subtree *vnode.VNode        `json:"subtree,omitempty"`
	Set     vnode.Props         `json:"set,omitempty"`
	Removed []string            `json:"removed,omitempty"`
	Text    *string             `json:"text,omitempty"`
	Event   string              `json:"event,omitempty"`
	Handler *identity.HandlerID `json:"handler,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (b Batch) MarshalJSON() ([]byte, error) {
	wire := make([]wirePatch, 0, len(b))
	for i, p := range b {
		w, err := toWire(p)
		if err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
		wire = append(wire, w)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Batch) UnmarshalJSON(data []byte) error {
	var wire []wirePatch
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	out := make(Batch, 0, len(wire))
	for i, w := range wire {
		p, err := fromWire(w)
		if err != nil {
			return fmt.Errorf("patch %d: %w", i, err)
		}
		out = append(out, p)
	}
	*b = out
	return nil
}

func toWire(p Patch) (wirePatch, error) {
	w := wirePatch{Op: p.Op().String()}
	switch p := p.(type) {
	case Insert:
		w.Parent, w.Index, w.Subtree = &p.Parent, &p.Index, p.Node
	case Remove:
		w.Node = &p.Node
	case Move:
		w.Node, w.Index, w.Parent = &p.Node, &p.Index, &p.Parent
	case UpdateProps:
		w.Node, w.Set, w.Removed = &p.Node, p.Set, p.Removed
	case ReplaceText:
		w.Node, w.Text = &p.Node, &p.Text
	case AttachHandler:
		w.Node, w.Event, w.Handler = &p.Node, p.Event, &p.Handler
	case DetachHandler:
		w.Handler = &p.Handler
	default:
		return w, fmt.Errorf("unsupported patch type %T", p)
	}
	return w, nil
}

func fromWire(w wirePatch) (Patch, error) {
	op, ok := parseOp(w.Op)
	if !ok {
		return nil, fmt.Errorf("unknown op %q", w.Op)
	}
	missing := func(field string) error {
		return fmt.Errorf("%s: missing %q", op, field)
	}
	switch op {
	case OpInsert:
		if w.Parent == nil || w.Index == nil || w.Subtree == nil {
			return nil, missing("parent/index/subtree")
		}
		return Insert{Parent: *w.Parent, Index: *w.Index, Node: w.Subtree}, nil
	case OpRemove:
		if w.Node == nil {
			return nil, missing("node")
		}
		return Remove{Node: *w.Node}, nil
	case OpMove:
		if w.Node == nil || w.Parent == nil || w.Index == nil {
			return nil, missing("node/parent/index")
		}
		return Move{Node: *w.Node, Index: *w.Index, Parent: *w.Parent}, nil
	case OpUpdateProps:
		if w.Node == nil {
			return nil, missing("node")
		}
		return UpdateProps{Node: *w.Node, Set: w.Set, Removed: w.Removed}, nil
	case OpReplaceText:
		if w.Node == nil || w.Text == nil {
			return nil, missing("node/text")
		}
		return ReplaceText{Node: *w.Node, Text: *w.Text}, nil
	case OpAttachHandler:
		if w.Node == nil || w.Handler == nil || w.Event == "" {
			return nil, missing("node/event/handler")
		}
		return AttachHandler{Node: *w.Node, Event: w.Event, Handler: *w.Handler}, nil
	default:
		if w.Handler == nil {
			return nil, missing("handler")
		}
		return DetachHandler{Handler: *w.Handler}, nil
	}
}
