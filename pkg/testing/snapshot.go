package testing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/go-raven/raven/pkg/vnode"
)

// UpdateSnapshotsEnv names the variable that makes MatchesFile rewrite
// golden files instead of comparing.
const UpdateSnapshotsEnv = "RAVEN_UPDATE_SNAPSHOTS"

// TestingT is the subset of *testing.T used by MatchesFile, allowing
// test doubles to intercept failures.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Errorf(format string, args ...any)
	Name() string
}

// Snapshot captures the live tree in a stable, readable form.
type Snapshot struct {
	Tree *SnapshotNode `json:"tree"`
}

// SnapshotNode is one node of a serialized tree. IDs are assigned per tag
// in traversal order ("Button#0", "text#1") so golden files do not depend
// on NodeID hashing.
type SnapshotNode struct {
	ID       string          `json:"id"`
	Kind     vnode.Kind      `json:"kind"`
	Tag      string          `json:"tag,omitempty"`
	Text     string          `json:"text,omitempty"`
	Props    map[string]any  `json:"props,omitempty"`
	Events   []string        `json:"events,omitempty"`
	Children []*SnapshotNode `json:"children,omitempty"`
}

// CaptureSnapshot captures the tree currently held by the renderer.
func (t *Tester) CaptureSnapshot() *Snapshot {
	return NewSnapshot(t.renderer.Snapshot())
}

// NewSnapshot converts a VNode tree.
func NewSnapshot(root *vnode.VNode) *Snapshot {
	snap := &Snapshot{}
	if root != nil {
		snap.Tree = captureNode(root, &typeCounter{})
	}
	return snap
}

// MatchesFile compares this snapshot against a golden file. On mismatch it
// reports a diff and instructions for updating. When RAVEN_UPDATE_SNAPSHOTS=1
// is set, the file is silently updated instead.
func (s *Snapshot) MatchesFile(t TestingT, path string) {
	t.Helper()

	if os.Getenv(UpdateSnapshotsEnv) == "1" {
		if err := s.UpdateFile(path); err != nil {
			t.Fatalf("failed to update snapshot: %v", err)
		}
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("snapshot file missing: %s\n\nTo create: %s=1 go test -run %s", path, UpdateSnapshotsEnv, t.Name())
			return
		}
		t.Fatalf("failed to load snapshot: %v", err)
		return
	}
	actual, err := marshalSnapshot(s)
	if err != nil {
		t.Fatalf("failed to encode snapshot: %v", err)
		return
	}
	if diff := lineDiff(expected, actual); diff != "" {
		t.Errorf("snapshot mismatch: %s (-want +got):\n%s\n\nTo update: %s=1 go test -run %s", path, diff, UpdateSnapshotsEnv, t.Name())
	}
}

// UpdateFile writes this snapshot to the given path, creating directories
// as needed.
func (s *Snapshot) UpdateFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := marshalSnapshot(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Diff returns a line diff between other and this snapshot (-other
// +this). Returns empty string if equal.
func (s *Snapshot) Diff(other *Snapshot) string {
	a, _ := marshalSnapshot(other)
	b, _ := marshalSnapshot(s)
	return lineDiff(a, b)
}

// typeCounter assigns stable IDs like "Button#0", "Button#1".
type typeCounter struct {
	counts map[string]int
}

func (c *typeCounter) next(name string) string {
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	n := c.counts[name]
	c.counts[name] = n + 1
	return fmt.Sprintf("%s#%d", name, n)
}

func captureNode(n *vnode.VNode, counter *typeCounter) *SnapshotNode {
	name := n.Tag
	if n.Kind == vnode.KindText {
		name = "text"
	}
	out := &SnapshotNode{
		ID:     counter.next(name),
		Kind:   n.Kind,
		Tag:    n.Tag,
		Text:   n.Text,
		Events: n.EventNames(),
	}
	if len(n.Props) > 0 {
		out.Props = map[string]any(n.Props.Clone())
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, captureNode(c, counter))
	}
	return out
}

func marshalSnapshot(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lineDiff(want, got []byte) string {
	if bytes.Equal(want, got) {
		return ""
	}
	return cmp.Diff(strings.Split(string(want), "\n"), strings.Split(string(got), "\n"))
}
