// Package identity derives stable node identifiers from structural paths.
//
// A node's identity is a name-based UUID (version 5, SHA-1) computed over
// the node's path string: the chain of ancestor segments from the root,
// each segment carrying a type token plus a sibling index or explicit key.
// Two calls with the same path always yield the same NodeID, and paths of
// any length hash without truncation, so identity survives sibling
// insertions and removals elsewhere in the tree.
//
//	root := identity.RootPath()
//	list := root.Child("VStack", 0)
//	row := list.Keyed("Row", "todo-42")
//	id := row.ID() // == identity.Derive(row.String())
package identity

import (
	"bytes"

	uuid "github.com/satori/go.uuid"
)

var (
	nodeNamespace    = uuid.NewV5(uuid.NamespaceURL, "https://go-raven.dev/identity/node")
	handlerNamespace = uuid.NewV5(uuid.NamespaceURL, "https://go-raven.dev/identity/handler")
)

// NodeID identifies one logical node across render passes. The zero value
// is Root, the conceptual parent of a tree's top-level node.
type NodeID uuid.UUID

// Root is the parent ID used when inserting the top-level node of a tree.
var Root NodeID

// Derive returns the NodeID for a stable path string. It is pure and
// deterministic; the empty path yields a valid, non-zero ID.
func Derive(path string) NodeID {
	return NodeID(uuid.NewV5(nodeNamespace, path))
}

// IsRoot reports whether id is the conceptual root parent.
func (id NodeID) IsRoot() bool {
	return id == Root
}

func (id NodeID) String() string {
	return uuid.UUID(id).String()
}

// Short returns the first eight hex digits, for logs.
func (id NodeID) Short() string {
	return id.String()[:8]
}

// MarshalText implements encoding.TextMarshaler.
func (id NodeID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *NodeID) UnmarshalText(text []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(text); err != nil {
		return err
	}
	*id = NodeID(u)
	return nil
}

// ParseNodeID parses the canonical textual form of a NodeID.
func ParseNodeID(s string) (NodeID, error) {
	u, err := uuid.FromString(s)
	if err != nil {
		return Root, err
	}
	return NodeID(u), nil
}

// HandlerID identifies one event-handler slot: a (node, event) pair.
// It is stable across renders so the callback bound to the slot can be
// swapped without touching the substrate binding.
type HandlerID uuid.UUID

// DeriveHandler returns the HandlerID for event on the node at path.
func DeriveHandler(path, event string) HandlerID {
	return HandlerID(uuid.NewV5(handlerNamespace, path+"\x00"+event))
}

func (id HandlerID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText implements encoding.TextMarshaler.
func (id HandlerID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *HandlerID) UnmarshalText(text []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(text); err != nil {
		return err
	}
	*id = HandlerID(u)
	return nil
}

// Compare orders NodeIDs bytewise. Used for deterministic iteration.
func Compare(a, b NodeID) int {
	return bytes.Compare(a[:], b[:])
}

// CompareHandlers orders HandlerIDs bytewise.
func CompareHandlers(a, b HandlerID) int {
	return Compare(NodeID(a), NodeID(b))
}
