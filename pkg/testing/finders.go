package testing

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-raven/raven/pkg/identity"
	"github.com/go-raven/raven/pkg/vnode"
)

// Finder locates nodes in a tree.
type Finder interface {
	// Evaluate returns all matching nodes under root (depth-first pre-order).
	Evaluate(root *vnode.VNode) []*vnode.VNode
	// Description returns a human-readable description for error messages.
	Description() string
}

// FinderResult wraps finder results with convenient accessors.
type FinderResult struct {
	nodes  []*vnode.VNode
	finder Finder
}

func (r FinderResult) describe() string {
	if r.finder == nil {
		return "unknown"
	}
	return r.finder.Description()
}

// First returns the first match. Panics if no matches.
func (r FinderResult) First() *vnode.VNode {
	if len(r.nodes) == 0 {
		panic(fmt.Sprintf("Finder found no nodes: %s", r.describe()))
	}
	return r.nodes[0]
}

// FirstOrNil returns the first match, or nil if none.
func (r FinderResult) FirstOrNil() *vnode.VNode {
	if len(r.nodes) == 0 {
		return nil
	}
	return r.nodes[0]
}

// At returns the match at index. Panics if out of range.
func (r FinderResult) At(index int) *vnode.VNode {
	if index < 0 || index >= len(r.nodes) {
		panic(fmt.Sprintf("Finder index %d out of range (found %d): %s", index, len(r.nodes), r.describe()))
	}
	return r.nodes[index]
}

// All returns all matches in traversal order.
func (r FinderResult) All() []*vnode.VNode { return r.nodes }

// Count returns the number of matches.
func (r FinderResult) Count() int { return len(r.nodes) }

// Exists returns true if at least one match was found.
func (r FinderResult) Exists() bool { return len(r.nodes) > 0 }

// IDs returns the ids of all matches in traversal order.
func (r FinderResult) IDs() []identity.NodeID {
	out := make([]identity.NodeID, len(r.nodes))
	for i, n := range r.nodes {
		out[i] = n.ID
	}
	return out
}

// Texts returns the content of every text node among the matches.
func (r FinderResult) Texts() []string {
	var out []string
	for _, n := range r.nodes {
		if n.Kind == vnode.KindText {
			out = append(out, n.Text)
		}
	}
	return out
}

type predicateFinder struct {
	fn   func(*vnode.VNode) bool
	desc string
}

func (f *predicateFinder) Evaluate(root *vnode.VNode) []*vnode.VNode {
	return collectMatches(root, f.fn)
}

func (f *predicateFinder) Description() string { return f.desc }

// ByPredicate returns a finder that matches nodes satisfying fn.
func ByPredicate(fn func(*vnode.VNode) bool) Finder {
	return &predicateFinder{fn: fn, desc: "ByPredicate(...)"}
}

// ByTag matches element and component nodes with the given tag. Component
// nodes are tagged with their component type name.
func ByTag(tag string) Finder {
	return &predicateFinder{
		fn:   func(n *vnode.VNode) bool { return n.Kind != vnode.KindText && n.Tag == tag },
		desc: fmt.Sprintf("ByTag(%q)", tag),
	}
}

// ByKind matches nodes of one kind.
func ByKind(kind vnode.Kind) Finder {
	return &predicateFinder{
		fn:   func(n *vnode.VNode) bool { return n.Kind == kind },
		desc: fmt.Sprintf("ByKind(%s)", kind),
	}
}

// ByID matches the node with the given id.
func ByID(id identity.NodeID) Finder {
	return &predicateFinder{
		fn:   func(n *vnode.VNode) bool { return n.ID == id },
		desc: fmt.Sprintf("ByID(%s)", id.Short()),
	}
}

// ByPath matches the node derived from path.
func ByPath(path identity.Path) Finder {
	id := path.ID()
	return &predicateFinder{
		fn:   func(n *vnode.VNode) bool { return n.ID == id },
		desc: fmt.Sprintf("ByPath(%s)", path),
	}
}

// ByText matches text nodes with exact content.
func ByText(text string) Finder {
	return &predicateFinder{
		fn:   func(n *vnode.VNode) bool { return n.Kind == vnode.KindText && n.Text == text },
		desc: fmt.Sprintf("ByText(%q)", text),
	}
}

// ByTextContaining matches text nodes containing substring.
func ByTextContaining(substring string) Finder {
	return &predicateFinder{
		fn: func(n *vnode.VNode) bool {
			return n.Kind == vnode.KindText && strings.Contains(n.Text, substring)
		},
		desc: fmt.Sprintf("ByTextContaining(%q)", substring),
	}
}

// ByProp matches nodes whose prop name deep-equals value.
func ByProp(name string, value any) Finder {
	return &predicateFinder{
		fn: func(n *vnode.VNode) bool {
			v, ok := n.Props[name]
			return ok && reflect.DeepEqual(v, value)
		},
		desc: fmt.Sprintf("ByProp(%s=%v)", name, value),
	}
}

// descendantFinder finds nodes matching 'matching' below nodes matching
// 'of'.
type descendantFinder struct {
	of       Finder
	matching Finder
}

func (f *descendantFinder) Evaluate(root *vnode.VNode) []*vnode.VNode {
	var results []*vnode.VNode
	seen := make(map[identity.NodeID]bool)
	for _, ancestor := range f.of.Evaluate(root) {
		// The ancestor itself is not its own descendant.
		for _, child := range ancestor.Children {
			for _, match := range f.matching.Evaluate(child) {
				if !seen[match.ID] {
					seen[match.ID] = true
					results = append(results, match)
				}
			}
		}
	}
	return results
}

func (f *descendantFinder) Description() string {
	return fmt.Sprintf("Descendant(of: %s, matching: %s)", f.of.Description(), f.matching.Description())
}

// Descendant returns a finder that matches nodes satisfying 'matching'
// that are descendants of nodes matching 'of'.
func Descendant(of, matching Finder) Finder {
	return &descendantFinder{of: of, matching: matching}
}

// ancestorFinder finds nodes matching 'matching' above nodes matching
// 'of'.
type ancestorFinder struct {
	of       Finder
	matching Finder
}

func (f *ancestorFinder) Evaluate(root *vnode.VNode) []*vnode.VNode {
	descendants := f.of.Evaluate(root)
	if len(descendants) == 0 {
		return nil
	}
	var results []*vnode.VNode
	for _, candidate := range f.matching.Evaluate(root) {
		for _, d := range descendants {
			if d.ID != candidate.ID && contains(candidate, d.ID) {
				results = append(results, candidate)
				break
			}
		}
	}
	return results
}

func (f *ancestorFinder) Description() string {
	return fmt.Sprintf("Ancestor(of: %s, matching: %s)", f.of.Description(), f.matching.Description())
}

// Ancestor returns a finder that matches nodes satisfying 'matching' that
// are ancestors of nodes matching 'of'.
func Ancestor(of, matching Finder) Finder {
	return &ancestorFinder{of: of, matching: matching}
}

func contains(root *vnode.VNode, id identity.NodeID) bool {
	found := false
	root.Walk(func(n *vnode.VNode) bool {
		if n.ID == id {
			found = true
		}
		return !found
	})
	return found
}

// collectMatches performs a depth-first pre-order traversal, collecting
// nodes that satisfy the predicate.
func collectMatches(root *vnode.VNode, predicate func(*vnode.VNode) bool) []*vnode.VNode {
	var results []*vnode.VNode
	root.Walk(func(n *vnode.VNode) bool {
		if predicate(n) {
			results = append(results, n)
		}
		return true
	})
	return results
}
