package identity

import (
	"strconv"
	"strings"
)

// Path is the structural position of a node in the view tree, expressed as
// the sequence of segments from the root. Each segment is either
// `name[index]` (positional) or `name#"key"` (keyed). Path values are
// immutable; Child and Keyed return extended copies.
//
// The canonical string form is injective: names containing any of the
// separator characters are quoted, and keys are always quoted, so two
// distinct segment sequences never render to the same string.
type Path struct {
	s     string
	depth int
}

// RootPath returns the empty path. Its ID is Derive("").
func RootPath() Path {
	return Path{}
}

// Child returns p extended with a positional segment.
func (p Path) Child(name string, index int) Path {
	var sb strings.Builder
	sb.Grow(len(p.s) + len(name) + 8)
	sb.WriteString(p.s)
	sb.WriteByte('/')
	writeName(&sb, name)
	sb.WriteByte('[')
	sb.WriteString(strconv.Itoa(index))
	sb.WriteByte(']')
	return Path{s: sb.String(), depth: p.depth + 1}
}

// Keyed returns p extended with a segment discriminated by an explicit key
// instead of the sibling index, so the node keeps its identity when its
// siblings are inserted, removed or reordered.
func (p Path) Keyed(name, key string) Path {
	var sb strings.Builder
	sb.Grow(len(p.s) + len(name) + len(key) + 4)
	sb.WriteString(p.s)
	sb.WriteByte('/')
	writeName(&sb, name)
	sb.WriteByte('#')
	sb.WriteString(strconv.Quote(key))
	return Path{s: sb.String(), depth: p.depth + 1}
}

// String returns the canonical path string. The root path is "".
func (p Path) String() string {
	return p.s
}

// Depth returns the number of segments.
func (p Path) Depth() int {
	return p.depth
}

// ID derives the NodeID for this path.
func (p Path) ID() NodeID {
	return Derive(p.s)
}

// Handler derives the HandlerID for event on the node at this path.
func (p Path) Handler(event string) HandlerID {
	return DeriveHandler(p.s, event)
}

func writeName(sb *strings.Builder, name string) {
	if name == "" || strings.ContainsAny(name, "/[]#\"\\") {
		sb.WriteString(strconv.Quote(name))
		return
	}
	sb.WriteString(name)
}
