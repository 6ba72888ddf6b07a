package render

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/go-raven/raven/pkg/errors"
	"github.com/go-raven/raven/pkg/identity"
	"github.com/go-raven/raven/pkg/patch"
	"github.com/go-raven/raven/pkg/reconcile"
	"github.com/go-raven/raven/pkg/view"
	"github.com/go-raven/raven/pkg/vnode"
)

// Phase is the scheduling state of a Coordinator.
type Phase int

const (
	// Idle means no pass is pending or running.
	Idle Phase = iota
	// Scheduled means exactly one pass has been handed to the Scheduler.
	Scheduled
	// Rendering means a pass is executing.
	Rendering
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Rendering:
		return "rendering"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Options configures a Coordinator.
type Options struct {
	// Scheduler runs deferred passes. Nil means a new Loop, available from
	// Coordinator.Scheduler; the caller must run it.
	Scheduler Scheduler
	// Logger receives pass diagnostics at debug level. Nil means
	// slog.Default().
	Logger *slog.Logger
	// OnError receives every failed pass: *errors.BuildError for view
	// evaluation failures, *errors.Error for identity and renderer failures.
	// Failures are also sent to the global error handler.
	OnError func(error)
	// AuditIdentity checks every pass for NodeIDs that a different path
	// produced in any earlier pass.
	AuditIdentity bool
}

// Coordinator drives render passes for one root view.
//
// A state write while Idle schedules one pass; writes while Scheduled are
// coalesced into it. A write while Rendering is remembered and causes
// exactly one more pass after the current one finishes.
//
// Coordinator is NOT thread-safe. All methods, and all state writes that
// reach Invalidate, must run on the UI loop.
type Coordinator struct {
	renderer  PlatformRenderer
	sched     Scheduler
	log       *slog.Logger
	onError   func(error)
	auditor   *identity.Auditor
	instances *view.Instances

	root func() view.View
	prev *vnode.VNode

	phase  Phase
	ticket uint64
	rerun  bool
	passes int
}

// New creates a Coordinator rendering into r.
func New(r PlatformRenderer, opts Options) *Coordinator {
	c := &Coordinator{
		renderer: r,
		sched:    opts.Scheduler,
		log:      opts.Logger,
		onError:  opts.OnError,
	}
	if c.sched == nil {
		c.sched = NewLoop()
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if opts.AuditIdentity {
		c.auditor = identity.NewAuditor()
	}
	c.instances = view.NewInstances(c)
	return c
}

// Scheduler returns the scheduler passes are deferred to.
func (c *Coordinator) Scheduler() Scheduler { return c.sched }

// Phase returns the current scheduling state.
func (c *Coordinator) Phase() Phase { return c.phase }

// Passes returns the number of committed passes.
func (c *Coordinator) Passes() int { return c.passes }

// Previous returns the tree of the last committed pass. Callers must not
// modify it.
func (c *Coordinator) Previous() *vnode.VNode { return c.prev }

// SetRootContainer binds the renderer's mounting target.
func (c *Coordinator) SetRootContainer(handle any) error {
	if err := c.renderer.SetRootContainer(handle); err != nil {
		return &errors.Error{Op: "render.SetRootContainer", Kind: errors.KindRender, Err: err}
	}
	return nil
}

// Render sets the root view factory and runs a pass immediately: a full
// mount the first time, a diff afterwards. A pending scheduled pass is
// folded into this one.
func (c *Coordinator) Render(root func() view.View) error {
	if c.phase == Rendering {
		return &errors.Error{Op: "render.Render", Kind: errors.KindRender, Err: errors.ErrReentrantRender}
	}
	if root == nil {
		return &errors.Error{Op: "render.Render", Kind: errors.KindBuild, Err: errors.ErrNoRoot}
	}
	c.root = root
	c.ticket++
	return c.pass()
}

// Invalidate marks the tree stale and arranges a pass. State containers
// created through view.UseState call it on every write.
func (c *Coordinator) Invalidate() {
	if c.root == nil {
		return
	}
	switch c.phase {
	case Idle:
		c.schedule()
	case Rendering:
		c.rerun = true
	}
}

func (c *Coordinator) schedule() {
	c.phase = Scheduled
	c.ticket++
	ticket := c.ticket
	c.sched.Schedule(func() {
		if c.ticket != ticket || c.phase != Scheduled {
			return
		}
		// Failures already went to OnError and the global handler.
		_ = c.pass()
	})
}

// Unmount removes the mounted tree, disposes every component scope and
// cancels any scheduled pass.
func (c *Coordinator) Unmount() error {
	if c.phase == Rendering {
		return &errors.Error{Op: "render.Unmount", Kind: errors.KindRender, Err: errors.ErrReentrantRender}
	}
	c.ticket++
	c.phase = Idle
	c.rerun = false
	c.root = nil
	var err error
	if c.prev != nil {
		if rerr := c.renderer.ApplyPatches([]patch.Patch{patch.Remove{Node: c.prev.ID}}); rerr != nil {
			err = &errors.Error{Op: "render.Unmount", Kind: errors.KindRender, Node: c.prev.ID.String(), Err: rerr}
		}
	}
	c.prev = nil
	c.instances.DisposeAll()
	return err
}

func (c *Coordinator) pass() (err error) {
	c.phase = Rendering
	c.rerun = false
	defer func() {
		c.phase = Idle
		if c.rerun && c.root != nil {
			c.rerun = false
			c.schedule()
		}
	}()

	start := time.Now()
	res, err := c.build()
	if err != nil {
		return c.fail(err)
	}

	if c.auditor != nil {
		if aerr := c.auditor.ObserveAll(res.Paths); aerr != nil {
			res.Discard()
			return c.fail(&errors.Error{
				Op:   "render.Audit",
				Kind: errors.KindIdentity,
				Err:  fmt.Errorf("%w: %w", errors.ErrIdentityCollision, aerr),
			})
		}
	}

	mount := c.prev == nil
	var patches []patch.Patch
	if mount {
		err = c.renderer.MountTree(res.Root)
	} else if patches = reconcile.Diff(c.prev, res.Root); len(patches) > 0 {
		err = c.renderer.ApplyPatches(patches)
	}
	if err != nil {
		res.Discard()
		op := "render.ApplyPatches"
		if mount {
			op = "render.MountTree"
		}
		return c.fail(&errors.Error{Op: op, Kind: errors.KindRender, Node: res.Root.ID.String(), Err: err})
	}

	c.bindHandlers(res.Handlers)
	res.Commit()
	c.prev = res.Root
	c.passes++

	c.log.Debug("render pass",
		"pass", c.passes,
		"mount", mount,
		"nodes", res.Root.Count(),
		"patches", len(patches),
		"duration", time.Since(start),
	)
	return nil
}

// build evaluates the root factory and the view graph. A panic in the
// factory itself is reported like one in a component body.
func (c *Coordinator) build() (res *view.Result, err error) {
	var root view.View
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &errors.BuildError{
					View:       "root factory",
					Path:       identity.RootPath().String(),
					Recovered:  r,
					StackTrace: errors.CaptureStack(),
					Timestamp:  time.Now(),
				}
			}
		}()
		root = c.root()
	}()
	if err != nil {
		return nil, err
	}
	return view.Build(root, c.instances)
}

// bindHandlers installs the current callback of every handler slot. Slots
// keep their ids across passes, so only the callbacks change.
func (c *Coordinator) bindHandlers(handlers map[identity.HandlerID]vnode.Handler) {
	ids := make([]identity.HandlerID, 0, len(handlers))
	for id := range handlers {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, identity.CompareHandlers)
	for _, id := range ids {
		h := handlers[id]
		if h.IsInput() {
			c.renderer.UpdateInputEventHandler(id, h.Input)
		} else {
			c.renderer.UpdateEventHandler(id, h.Action)
		}
	}
}

func (c *Coordinator) fail(err error) error {
	var be *errors.BuildError
	var e *errors.Error
	switch {
	case errors.As(err, &be):
		errors.ReportBuildError(be)
	case errors.As(err, &e):
		errors.Report(e)
	}
	c.log.Debug("render pass failed", "err", err)
	if c.onError != nil {
		c.onError(err)
	}
	return err
}
