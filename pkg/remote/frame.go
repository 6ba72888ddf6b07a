// Package remote implements a PlatformRenderer that streams trees and
// patches to a substrate in another process as newline-delimited JSON.
//
// Outgoing frames:
//
//	{"v":"v1.0.0","type":"root","container":"#app"}
//	{"v":"v1.0.0","type":"mount","tree":{...}}
//	{"v":"v1.0.0","type":"patches","patches":[{"op":"insert",...}]}
//	{"v":"v1.0.0","type":"attach","node":"...","event":"click","handler":"..."}
//	{"v":"v1.0.0","type":"cleanup","handler":"..."}
//
// Incoming events carry the handler slot and, for input handlers, a value:
//
//	{"v":"v1.0.0","handler":"...","value":"typed text"}
package remote

import (
	"encoding/json"
	"fmt"

	"github.com/go-raven/raven/pkg/errors"
	"github.com/go-raven/raven/pkg/identity"
	"github.com/go-raven/raven/pkg/patch"
	"github.com/go-raven/raven/pkg/vnode"
)

// Frame types.
const (
	FrameRoot    = "root"
	FrameMount   = "mount"
	FramePatches = "patches"
	FrameAttach  = "attach"
	FrameCleanup = "cleanup"
)

// Frame is one outgoing message.
type Frame struct {
	Version   string              `json:"v"`
	Type      string              `json:"type"`
	Container string              `json:"container,omitempty"`
	Tree      *vnode.VNode        `json:"tree,omitempty"`
	Patches   patch.Batch         `json:"patches,omitempty"`
	Node      *identity.NodeID    `json:"node,omitempty"`
	Event     string              `json:"event,omitempty"`
	Handler   *identity.HandlerID `json:"handler,omitempty"`
}

// Event is one incoming handler invocation.
type Event struct {
	Version string             `json:"v,omitempty"`
	Handler identity.HandlerID `json:"handler"`
	Value   string             `json:"value,omitempty"`
}

// DecodeFrame parses one outgoing frame line and checks its version.
func DecodeFrame(line []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(line, &f); err != nil {
		return Frame{}, protocolError("remote.DecodeFrame", err)
	}
	if !patch.Compatible(f.Version) {
		return Frame{}, protocolError("remote.DecodeFrame", fmt.Errorf("incompatible protocol version %q", f.Version))
	}
	return f, nil
}

// DecodeEvent parses one incoming event line. A missing version is
// accepted.
func DecodeEvent(line []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(line, &e); err != nil {
		return Event{}, protocolError("remote.DecodeEvent", err)
	}
	if e.Version != "" && !patch.Compatible(e.Version) {
		return Event{}, protocolError("remote.DecodeEvent", fmt.Errorf("incompatible protocol version %q", e.Version))
	}
	return e, nil
}

func protocolError(op string, err error) error {
	return &errors.Error{Op: op, Kind: errors.KindProtocol, Err: err}
}
