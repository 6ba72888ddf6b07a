package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/go-raven/raven/pkg/errors"
	"github.com/go-raven/raven/pkg/identity"
	"github.com/go-raven/raven/pkg/patch"
	"github.com/go-raven/raven/pkg/render"
	"github.com/go-raven/raven/pkg/vnode"
	"github.com/go-raven/raven/pkg/vtree"
)

// maxEventSize bounds one incoming event line.
const maxEventSize = 1 << 20

// Options configures a Renderer.
type Options struct {
	// Logger receives event delivery failures. Nil means slog.Default().
	Logger *slog.Logger
	// Version is stamped on every frame. Empty or incompatible values
	// mean patch.ProtocolVersion.
	Version string
}

// Renderer streams frames to w and mirrors the substrate's tree so the
// node registry and handler table match what the peer shows.
//
// Like every PlatformRenderer it must be used from the UI loop. Serve
// hands incoming events to the loop through its dispatch function.
type Renderer struct {
	render.Registry

	handlers render.HandlerTable
	mirror   *vtree.Tree
	enc      *json.Encoder
	log      *slog.Logger
	version  string
}

var _ render.PlatformRenderer = (*Renderer)(nil)

// New creates a Renderer writing frames to w.
func New(w io.Writer, opts Options) *Renderer {
	r := &Renderer{
		mirror:  vtree.New(),
		enc:     json.NewEncoder(w),
		log:     opts.Logger,
		version: opts.Version,
	}
	r.enc.SetEscapeHTML(false)
	if r.log == nil {
		r.log = slog.Default()
	}
	if !patch.Compatible(r.version) {
		if r.version != "" {
			r.log.Warn("remote protocol version ignored", "version", r.version, "using", patch.ProtocolVersion)
		}
		r.version = patch.ProtocolVersion
	}
	return r
}

// Version returns the protocol version stamped on outgoing frames.
func (r *Renderer) Version() string { return r.version }

func (r *Renderer) send(f Frame) error {
	f.Version = r.version
	if err := r.enc.Encode(f); err != nil {
		return fmt.Errorf("send %s frame: %w", f.Type, err)
	}
	return nil
}

// SetRootContainer sends a root frame naming the container.
func (r *Renderer) SetRootContainer(handle any) error {
	return r.send(Frame{Type: FrameRoot, Container: fmt.Sprint(handle)})
}

// MountTree sends root and replaces the mirror with it.
func (r *Renderer) MountTree(root *vnode.VNode) error {
	next := vtree.New()
	if err := next.Mount(root); err != nil {
		return err
	}
	if err := r.send(Frame{Type: FrameMount, Tree: root}); err != nil {
		return err
	}
	r.swap(next)
	return nil
}

// ApplyPatches validates batch against the mirror, sends it and commits
// the mirror. Nothing changes if validation or sending fails.
func (r *Renderer) ApplyPatches(batch []patch.Patch) error {
	next := r.mirror.Clone()
	if err := next.ApplyAll(batch); err != nil {
		return err
	}
	if err := r.send(Frame{Type: FramePatches, Patches: batch}); err != nil {
		return err
	}
	r.swap(next)
	return nil
}

// swap installs next as the mirror and brings the registry and handler
// table in line with it.
func (r *Renderer) swap(next *vtree.Tree) {
	oldNodes, oldHandlers := contents(r.mirror)
	newNodes, newHandlers := contents(next)

	for _, h := range oldHandlers {
		if !sameSlot(r.mirror, next, h) {
			r.handlers.Cleanup(h)
		}
	}
	for _, id := range oldNodes {
		if !next.Contains(id) {
			r.UnregisterNode(id)
		}
	}
	for _, id := range newNodes {
		if !r.mirror.Contains(id) {
			r.RegisterNode(id, id)
		}
	}
	for _, h := range newHandlers {
		if !sameSlot(r.mirror, next, h) {
			node, event, _ := next.Slot(h)
			r.handlers.Attach(h, node, event)
		}
	}
	r.mirror = next
}

func contents(t *vtree.Tree) ([]identity.NodeID, []identity.HandlerID) {
	root, ok := t.Root()
	if !ok {
		return nil, nil
	}
	return t.Subtree(root)
}

func sameSlot(a, b *vtree.Tree, h identity.HandlerID) bool {
	an, ae, aok := a.Slot(h)
	bn, be, bok := b.Slot(h)
	return aok && bok && an == bn && ae == be
}

// AttachEventHandler binds handler locally and sends an attach frame.
func (r *Renderer) AttachEventHandler(node identity.NodeID, event string, handler identity.HandlerID) error {
	if _, ok := r.GetNode(node); !ok {
		return &errors.Error{Op: "remote.AttachEventHandler", Kind: errors.KindRender, Node: node.String(), Err: errors.ErrUnknownNode}
	}
	if err := r.send(Frame{Type: FrameAttach, Node: &node, Event: event, Handler: &handler}); err != nil {
		return err
	}
	r.handlers.Attach(handler, node, event)
	return nil
}

// UpdateEventHandler installs the callback for handler. Nothing is sent.
func (r *Renderer) UpdateEventHandler(handler identity.HandlerID, fn func()) {
	r.handlers.Update(handler, fn)
}

// UpdateInputEventHandler installs a value-taking callback for handler.
func (r *Renderer) UpdateInputEventHandler(handler identity.HandlerID, fn func(string)) {
	r.handlers.UpdateInput(handler, fn)
}

// CleanupHandler forgets handler and tells the peer. Unknown handlers are
// ignored.
func (r *Renderer) CleanupHandler(handler identity.HandlerID) {
	if !r.handlers.Cleanup(handler) {
		return
	}
	if err := r.send(Frame{Type: FrameCleanup, Handler: &handler}); err != nil {
		r.log.Warn("remote cleanup not delivered", "handler", handler.String(), "err", err)
	}
}

// Snapshot returns a copy of the mirrored tree.
func (r *Renderer) Snapshot() *vnode.VNode { return r.mirror.Snapshot() }

// Handlers returns the bound handler slots in sorted order.
func (r *Renderer) Handlers() []identity.HandlerID { return r.handlers.IDs() }

// HandleEvent decodes one event line and invokes the bound callback.
func (r *Renderer) HandleEvent(line []byte) error {
	ev, err := DecodeEvent(line)
	if err != nil {
		return err
	}
	return r.handlers.Invoke(ev.Handler, ev.Value)
}

// Serve reads event lines from in and hands each to dispatch, which must
// run it on the UI loop (render.Loop.Dispatch). It returns nil at end of
// input, ctx.Err() when ctx is done, or the read error. The reading
// goroutine exits with Serve unless it is blocked inside in.Read, in which
// case it exits when that Read returns.
func (r *Renderer) Serve(ctx context.Context, in io.Reader, dispatch func(func()) bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan []byte)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 4096), maxEventSize)
		for sc.Scan() {
			line := slices.Clone(sc.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return err
		case line := <-lines:
			if len(line) == 0 {
				continue
			}
			ok := dispatch(func() {
				if err := r.HandleEvent(line); err != nil {
					r.log.Warn("remote event dropped", "err", err)
				}
			})
			if !ok {
				return fmt.Errorf("remote: UI loop stopped")
			}
		}
	}
}
