package testing

import (
	goerrors "errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/go-raven/raven/pkg/identity"
	"github.com/go-raven/raven/pkg/render"
	"github.com/go-raven/raven/pkg/view"
	"github.com/go-raven/raven/pkg/vnode"
)

// DefaultSettlePumps bounds PumpAndSettle.
const DefaultSettlePumps = 100

// ErrNotSettled is returned when PumpAndSettle runs out of pumps while
// passes are still being scheduled.
var ErrNotSettled = goerrors.New("PumpAndSettle: render loop did not settle")

// Tester drives a Coordinator against a recording Renderer with a manual
// scheduler, so every pass runs exactly when the test pumps.
type Tester struct {
	renderer  *Renderer
	scheduler *ManualScheduler
	coord     *render.Coordinator
	errs      []error
}

// TesterOptions configures a Tester.
type TesterOptions struct {
	// Logger defaults to a logger that discards everything.
	Logger *slog.Logger
	// AuditIdentity enables cross-pass collision auditing.
	AuditIdentity bool
}

// NewTester creates a tester with a fresh renderer and scheduler. Call
// Cleanup when done, or use NewTesterWithT instead.
func NewTester(opts TesterOptions) *Tester {
	t := &Tester{
		renderer:  NewRenderer(),
		scheduler: &ManualScheduler{},
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	t.coord = render.New(t.renderer, render.Options{
		Scheduler:     t.scheduler,
		Logger:        logger,
		OnError:       func(err error) { t.errs = append(t.errs, err) },
		AuditIdentity: opts.AuditIdentity,
	})
	return t
}

// NewTesterWithT creates a tester that unmounts via t.Cleanup(). This is
// the recommended constructor for tests.
func NewTesterWithT(t testing.TB) *Tester {
	tester := NewTester(TesterOptions{AuditIdentity: true})
	t.Cleanup(tester.Cleanup)
	return tester
}

// Cleanup unmounts the tree and disposes every component scope.
func (t *Tester) Cleanup() {
	_ = t.coord.Unmount()
}

// Renderer returns the recording renderer.
func (t *Tester) Renderer() *Renderer { return t.renderer }

// Scheduler returns the manual scheduler passes are queued on.
func (t *Tester) Scheduler() *ManualScheduler { return t.scheduler }

// Coordinator returns the coordinator under test.
func (t *Tester) Coordinator() *render.Coordinator { return t.coord }

// Errors returns every error the coordinator passed to OnError.
func (t *Tester) Errors() []error { return t.errs }

// Render sets the root factory and runs a pass immediately.
func (t *Tester) Render(root func() view.View) error {
	return t.coord.Render(root)
}

// RenderView renders a fixed view value.
func (t *Tester) RenderView(v view.View) error {
	return t.coord.Render(func() view.View { return v })
}

// Pump runs the callbacks queued so far, which includes at most one
// scheduled pass. It returns how many callbacks ran.
func (t *Tester) Pump() int {
	return t.scheduler.RunPending()
}

// PumpAndSettle pumps until nothing is queued, at most maxPumps times
// (DefaultSettlePumps when maxPumps <= 0).
func (t *Tester) PumpAndSettle(maxPumps int) error {
	if maxPumps <= 0 {
		maxPumps = DefaultSettlePumps
	}
	for range maxPumps {
		if t.scheduler.Pending() == 0 {
			return nil
		}
		t.Pump()
	}
	if t.scheduler.Pending() > 0 {
		return ErrNotSettled
	}
	return nil
}

// Tree returns a copy of the live tree in the renderer.
func (t *Tester) Tree() *vnode.VNode {
	return t.renderer.Snapshot()
}

// Find evaluates a finder against the live tree.
func (t *Tester) Find(finder Finder) FinderResult {
	root := t.renderer.Snapshot()
	if root == nil {
		return FinderResult{finder: finder}
	}
	return FinderResult{nodes: finder.Evaluate(root), finder: finder}
}

// Tap fires the "click" handler of the first node matched by finder, or
// of its nearest ancestor that has one.
func (t *Tester) Tap(finder Finder) error {
	return t.Fire(finder, "click", "")
}

// Enter fires the "input" handler of the first node matched by finder with
// value.
func (t *Tester) Enter(finder Finder, value string) error {
	return t.Fire(finder, "input", value)
}

// Fire delivers event to the first node matched by finder, bubbling up to
// the nearest ancestor bound to event. It does not pump.
func (t *Tester) Fire(finder Finder, event, value string) error {
	result := t.Find(finder)
	if !result.Exists() {
		return fmt.Errorf("%s: finder matched no nodes: %s", event, finder.Description())
	}
	id := result.First().ID
	for {
		if h, ok := t.renderer.Handler(id, event); ok {
			return t.renderer.Input(h, value)
		}
		parent, ok := t.renderer.Parent(id)
		if !ok {
			return fmt.Errorf("%s: no handler bound at or above %s", event, finder.Description())
		}
		id = parent
	}
}

// HandlerFor returns the handler bound to event on the first node matched
// by finder, without bubbling.
func (t *Tester) HandlerFor(finder Finder, event string) (identity.HandlerID, bool) {
	n := t.Find(finder).FirstOrNil()
	if n == nil {
		return identity.HandlerID{}, false
	}
	return t.renderer.Handler(n.ID, event)
}
