package vnode

import (
	"fmt"

	"github.com/go-raven/raven/pkg/identity"
)

// DuplicateIDError reports a NodeID that appears more than once in a tree.
type DuplicateIDError struct {
	ID identity.NodeID
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("vnode: node %s appears more than once in the tree", e.ID)
}

// Index maps every NodeID in a tree to its node.
type Index map[identity.NodeID]*VNode

// BuildIndex indexes the tree rooted at root. A NodeID appearing twice is
// an identity violation and is reported as *DuplicateIDError.
func BuildIndex(root *VNode) (Index, error) {
	idx := make(Index)
	var dup *DuplicateIDError
	root.Walk(func(n *VNode) bool {
		if dup != nil {
			return false
		}
		if _, ok := idx[n.ID]; ok {
			dup = &DuplicateIDError{ID: n.ID}
			return false
		}
		idx[n.ID] = n
		return true
	})
	if dup != nil {
		return nil, dup
	}
	return idx, nil
}
