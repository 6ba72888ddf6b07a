package patch

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-raven/raven/pkg/identity"
	"github.com/go-raven/raven/pkg/vnode"
)

func TestOpString(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpInsert, "insert"},
		{OpRemove, "remove"},
		{OpMove, "move"},
		{OpUpdateProps, "update-props"},
		{OpReplaceText, "replace-text"},
		{OpAttachHandler, "attach-handler"},
		{OpDetachHandler, "detach-handler"},
		{Op(99), "Op(99)"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Op(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestBatchWireRoundTrip(t *testing.T) {
	parent := identity.Derive("/VStack[0]")
	text := identity.Derive(`/VStack[0]/text#"a"`)
	button := identity.Derive("/VStack[0]/Button[1]")
	handler := identity.DeriveHandler("/VStack[0]/Button[1]", "click")

	batch := Batch{
		Remove{Node: text},
		Insert{Parent: parent, Index: 0, Node: &vnode.VNode{ID: text, Kind: vnode.KindText, Text: "a"}},
		Move{Node: button, Index: 0, Parent: parent},
		UpdateProps{Node: button, Set: vnode.Props{"label": "OK"}, Removed: []string{"disabled"}},
		ReplaceText{Node: text, Text: ""},
		AttachHandler{Node: button, Event: "click", Handler: handler},
		DetachHandler{Handler: handler},
	}

	data, err := json.Marshal(batch)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"op":"replace-text"`) {
		t.Errorf("wire form missing op discriminator: %s", data)
	}

	var back Batch
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(batch, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestBatchDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"unknown op", `[{"op":"explode"}]`, "unknown op"},
		{"remove without node", `[{"op":"remove"}]`, "missing"},
		{"insert without subtree", `[{"op":"insert","parent":"00000000-0000-0000-0000-000000000000","index":0}]`, "missing"},
		{"not an array", `{"op":"remove"}`, "cannot unmarshal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Batch
			err := json.Unmarshal([]byte(tt.data), &b)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{ProtocolVersion, true},
		{"v1.7.3", true},
		{"v2.0.0", false},
		{"v0.9.0", false},
		{"1.0.0", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Compatible(tt.version); got != tt.want {
			t.Errorf("Compatible(%q) = %v, want %v", tt.version, got, tt.want)
		}
	}
}

func TestTargetAndCount(t *testing.T) {
	n := identity.Derive("/a[0]")
	batch := []Patch{
		Remove{Node: n},
		ReplaceText{Node: n, Text: "x"},
		DetachHandler{},
	}
	if got, ok := Target(batch[1]); !ok || got != n {
		t.Errorf("Target = %s, %v", got, ok)
	}
	if _, ok := Target(batch[2]); ok {
		t.Error("DetachHandler has no node target")
	}
	counts := Count(batch)
	if counts[OpRemove] != 1 || counts[OpReplaceText] != 1 || counts[OpDetachHandler] != 1 {
		t.Errorf("Count = %v", counts)
	}
}
