package render_test

import (
	goerrors "errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-raven/raven/pkg/errors"
	"github.com/go-raven/raven/pkg/identity"
	"github.com/go-raven/raven/pkg/patch"
	"github.com/go-raven/raven/pkg/render"
	"github.com/go-raven/raven/pkg/state"
	raventest "github.com/go-raven/raven/pkg/testing"
	"github.com/go-raven/raven/pkg/view"
)

type harness struct {
	r     *raventest.Renderer
	sched *raventest.ManualScheduler
	c     *render.Coordinator
	errs  []error
}

func newHarness(t *testing.T, audit bool) *harness {
	t.Helper()
	h := &harness{r: raventest.NewRenderer(), sched: &raventest.ManualScheduler{}}
	h.c = render.New(h.r, render.Options{
		Scheduler:     h.sched,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnError:       func(err error) { h.errs = append(h.errs, err) },
		AuditIdentity: audit,
	})
	rec := &reports{}
	errors.SetHandler(rec)
	t.Cleanup(func() { errors.SetHandler(nil) })
	return h
}

type reports struct {
	errs   []*errors.Error
	builds []*errors.BuildError
}

func (r *reports) HandleError(err *errors.Error)           { r.errs = append(r.errs, err) }
func (r *reports) HandlePanic(*errors.PanicError)          {}
func (r *reports) HandleBuildError(err *errors.BuildError) { r.builds = append(r.builds, err) }

var textPath = identity.RootPath().Child("text", 0)

func TestInitialMount(t *testing.T) {
	h := newHarness(t, false)
	if err := h.c.Render(func() view.View { return view.Text{Content: "A"} }); err != nil {
		t.Fatal(err)
	}
	if h.r.RenderCount != 1 || len(h.r.Batches) != 0 {
		t.Errorf("RenderCount = %d, batches = %d; want a single mount", h.r.RenderCount, len(h.r.Batches))
	}
	if h.r.LastMounted.ID != textPath.ID() || h.r.LastMounted.Text != "A" {
		t.Errorf("LastMounted = %+v", h.r.LastMounted)
	}
	if h.c.Passes() != 1 || h.c.Phase() != render.Idle {
		t.Errorf("passes = %d, phase = %s", h.c.Passes(), h.c.Phase())
	}
}

func TestPropUpdateKeepsIdentity(t *testing.T) {
	h := newHarness(t, false)
	content := "A"
	h.c.Render(func() view.View { return view.Text{Content: content} })

	content = "B"
	if err := h.c.Render(func() view.View { return view.Text{Content: content} }); err != nil {
		t.Fatal(err)
	}
	want := [][]patch.Patch{{patch.ReplaceText{Node: textPath.ID(), Text: "B"}}}
	if diff := cmp.Diff(want, h.r.Batches); diff != "" {
		t.Errorf("batches mismatch (-want +got):\n%s", diff)
	}
}

func TestUnchangedPassSendsNothing(t *testing.T) {
	h := newHarness(t, false)
	root := func() view.View { return view.Text{Content: "same"} }
	h.c.Render(root)
	h.c.Render(root)
	if h.r.RenderCount != 1 {
		t.Errorf("RenderCount = %d, want 1", h.r.RenderCount)
	}
	if h.c.Passes() != 2 {
		t.Errorf("Passes() = %d, want 2", h.c.Passes())
	}
}

func TestWritesBatchIntoOnePass(t *testing.T) {
	h := newHarness(t, false)
	var st *state.State[int]
	h.c.Render(func() view.View {
		return view.Func("Counter", func(ctx *view.Context) view.View {
			st = view.UseState(ctx, 0)
			return view.Text{Content: fmt.Sprint(st.Get())}
		})
	})

	for i := 1; i <= 5; i++ {
		st.Set(i)
	}
	if h.c.Phase() != render.Scheduled || h.sched.Pending() != 1 {
		t.Fatalf("phase = %s, pending = %d", h.c.Phase(), h.sched.Pending())
	}
	h.sched.Flush()

	if h.r.RenderCount != 2 || len(h.r.Batches) != 1 {
		t.Errorf("RenderCount = %d, batches = %d; want one extra pass", h.r.RenderCount, len(h.r.Batches))
	}
	if got := h.r.Snapshot().Children[0].Text; got != "5" {
		t.Errorf("text = %q, want 5", got)
	}
}

func TestWriteDuringRenderSchedulesOneMorePass(t *testing.T) {
	h := newHarness(t, false)
	bodies := 0
	h.c.Render(func() view.View {
		return view.Func("Echo", func(ctx *view.Context) view.View {
			bodies++
			n := view.UseState(ctx, 0)
			if n.Get() == 0 {
				n.Set(1)
				n.Set(2)
			}
			return view.Text{Content: fmt.Sprint(n.Get())}
		})
	})

	if h.sched.Pending() != 1 {
		t.Fatalf("pending = %d, want exactly one follow-up pass", h.sched.Pending())
	}
	h.sched.Flush()
	if bodies != 2 || h.c.Passes() != 2 {
		t.Errorf("bodies = %d, passes = %d; want 2 each", bodies, h.c.Passes())
	}
	if h.sched.Pending() != 0 {
		t.Errorf("pending = %d after settling", h.sched.Pending())
	}
}

func TestBuildErrorKeepsPreviousTree(t *testing.T) {
	h := newHarness(t, false)
	fail := false
	root := func() view.View {
		return view.Func("Flaky", func(ctx *view.Context) view.View {
			if fail {
				panic("broken body")
			}
			return view.Text{Content: "ok"}
		})
	}
	h.c.Render(root)
	before := h.r.Snapshot()
	prev := h.c.Previous()

	fail = true
	err := h.c.Render(root)
	var be *errors.BuildError
	if !errors.As(err, &be) || be.Recovered != "broken body" || be.Path != "/Flaky[0]" {
		t.Fatalf("err = %v, want BuildError", err)
	}
	if len(h.errs) != 1 || h.errs[0] != err {
		t.Errorf("OnError got %v", h.errs)
	}
	if diff := cmp.Diff(before, h.r.Snapshot()); diff != "" {
		t.Errorf("tree changed after failed pass:\n%s", diff)
	}
	if h.c.Previous() != prev || h.c.Passes() != 1 || h.r.RenderCount != 1 {
		t.Error("failed pass replaced the previous tree")
	}
}

func TestRootFactoryPanic(t *testing.T) {
	h := newHarness(t, false)
	err := h.c.Render(func() view.View { panic("no root") })
	var be *errors.BuildError
	if !errors.As(err, &be) || be.View != "root factory" {
		t.Fatalf("err = %v", err)
	}
	if h.r.RenderCount != 0 {
		t.Error("renderer touched after failed build")
	}
}

func TestRendererFailure(t *testing.T) {
	h := newHarness(t, false)
	content := "A"
	root := func() view.View { return view.Text{Content: content} }
	h.c.Render(root)

	h.r.FailNext(goerrors.New("substrate rejected patch"))
	content = "B"
	err := h.c.Render(root)
	var e *errors.Error
	if !errors.As(err, &e) || e.Kind != errors.KindRender || e.Op != "render.ApplyPatches" {
		t.Fatalf("err = %#v, want render failure", err)
	}
	if h.c.Previous().Text != "A" {
		t.Error("previous tree replaced by failed pass")
	}

	// The next pass diffs against the last committed tree again.
	if err := h.c.Render(root); err != nil {
		t.Fatal(err)
	}
	if got := h.r.Snapshot().Text; got != "B" {
		t.Errorf("text = %q", got)
	}
}

func TestHandlerReplaceUpdatesWithoutAttach(t *testing.T) {
	h := newHarness(t, false)
	var got []string
	label := "first"
	root := func() view.View {
		l := label
		return view.Element{Tag: "Button", On: map[string]func(){"click": func() { got = append(got, l) }}}
	}
	h.c.Render(root)
	hid := identity.RootPath().Child("Button", 0).Handler("click")
	if n := len(h.r.CallsTo(raventest.CallAttach)); n != 1 {
		t.Fatalf("attach calls = %d", n)
	}
	h.r.Fire(hid)

	h.r.ResetHistory()
	label = "second"
	h.c.Render(root)
	h.r.Fire(hid)

	if n := len(h.r.CallsTo(raventest.CallAttach)); n != 0 {
		t.Errorf("attach called %d times on closure change", n)
	}
	updates := h.r.CallsTo(raventest.CallUpdate)
	if len(updates) != 1 || updates[0].Handler != hid {
		t.Errorf("updates = %+v", updates)
	}
	if diff := cmp.Diff([]string{"first", "second"}, got); diff != "" {
		t.Errorf("invocations mismatch (-want +got):\n%s", diff)
	}
}

func TestKeyedListDiff(t *testing.T) {
	h := newHarness(t, false)
	items := []string{"a", "b", "c"}
	root := func() view.View {
		return view.Element{Tag: "List", Children: []view.View{
			view.ForEach(items, func(s string) string { return s }, func(s string) view.View {
				return view.Text{Content: s}
			}),
		}}
	}
	h.c.Render(root)
	items = []string{"b", "c", "d"}
	h.c.Render(root)

	list := identity.RootPath().Child("List", 0)
	counts := patch.Count(h.r.Batches[0])
	if counts[patch.OpRemove] != 1 || counts[patch.OpInsert] != 1 || len(h.r.Batches[0]) != 2 {
		t.Fatalf("batch = %v", h.r.Batches[0])
	}
	for _, p := range h.r.Batches[0] {
		target, _ := patch.Target(p)
		if target == list.Keyed("text", "b").ID() || target == list.Keyed("text", "c").ID() {
			t.Errorf("patch %s touches a retained child", p)
		}
	}
}

func TestIdentityAudit(t *testing.T) {
	h := newHarness(t, true)
	h.c.Render(func() view.View { return view.Text{Content: "x"} })
	if err := h.c.Render(func() view.View { return view.Text{Content: "y"} }); err != nil {
		t.Fatalf("same paths across passes flagged: %v", err)
	}
}

func TestDuplicateKeyFailsPass(t *testing.T) {
	h := newHarness(t, false)
	err := h.c.Render(func() view.View {
		return view.Element{Tag: "List", Children: []view.View{
			view.Text{Content: "1", Key: "k"},
			view.Text{Content: "2", Key: "k"},
		}}
	})
	if !errors.Is(err, errors.ErrDuplicateKey) {
		t.Fatalf("err = %v", err)
	}
	if h.r.RenderCount != 0 || len(h.errs) != 1 {
		t.Errorf("RenderCount = %d, OnError calls = %d", h.r.RenderCount, len(h.errs))
	}
}

func TestStaleTicketIsIgnored(t *testing.T) {
	h := newHarness(t, false)
	var st *state.State[int]
	root := func() view.View {
		return view.Func("C", func(ctx *view.Context) view.View {
			st = view.UseState(ctx, 0)
			return view.Text{Content: fmt.Sprint(st.Get())}
		})
	}
	h.c.Render(root)
	st.Set(1)
	// A direct render folds the scheduled pass into itself.
	h.c.Render(root)
	passes := h.c.Passes()
	h.sched.Flush()
	if h.c.Passes() != passes {
		t.Errorf("stale scheduled pass ran: passes %d -> %d", passes, h.c.Passes())
	}
}

func TestReentrantRenderRejected(t *testing.T) {
	h := newHarness(t, false)
	var inner error
	h.c.Render(func() view.View {
		inner = h.c.Render(func() view.View { return view.Text{Content: "inner"} })
		return view.Text{Content: "outer"}
	})
	if !errors.Is(inner, errors.ErrReentrantRender) {
		t.Errorf("nested Render = %v", inner)
	}
	if err := h.c.Render(nil); !errors.Is(err, errors.ErrNoRoot) {
		t.Errorf("Render(nil) = %v", err)
	}
}

func TestUnmount(t *testing.T) {
	h := newHarness(t, false)
	disposed := false
	var st *state.State[int]
	h.c.Render(func() view.View {
		return view.Func("C", func(ctx *view.Context) view.View {
			st = view.UseState(ctx, 0)
			ctx.OnDispose(func() { disposed = true })
			return view.Element{Tag: "Button", On: map[string]func(){"click": func() {}}}
		})
	})
	st.Set(1)

	if err := h.c.Unmount(); err != nil {
		t.Fatal(err)
	}
	if h.r.Snapshot() != nil || h.r.Nodes() != 0 || len(h.r.Handlers()) != 0 {
		t.Error("renderer not emptied")
	}
	if !disposed || !st.Destroyed() {
		t.Error("component scope not disposed")
	}
	passes := h.c.Passes()
	h.sched.Flush()
	st.Set(2)
	if h.c.Passes() != passes || h.sched.Pending() != 0 {
		t.Error("work scheduled after unmount")
	}
}

func TestSetRootContainer(t *testing.T) {
	h := newHarness(t, false)
	if err := h.c.SetRootContainer("#app"); err != nil {
		t.Fatal(err)
	}
	if h.r.Container() != "#app" {
		t.Errorf("container = %v", h.r.Container())
	}
	h.r.FailNext(goerrors.New("no such element"))
	var e *errors.Error
	if err := h.c.SetRootContainer("#missing"); !errors.As(err, &e) || e.Kind != errors.KindRender {
		t.Errorf("err = %v", err)
	}
}

func TestLoopDrivesCoordinator(t *testing.T) {
	r := raventest.NewRenderer()
	c := render.New(r, render.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	loop, ok := c.Scheduler().(*render.Loop)
	if !ok {
		t.Fatalf("default scheduler = %T", c.Scheduler())
	}
	var st *state.State[string]
	c.Render(func() view.View {
		return view.Func("C", func(ctx *view.Context) view.View {
			st = view.UseState(ctx, "a")
			return view.Text{Content: st.Get()}
		})
	})
	st.Set("b")
	loop.RunPending()
	if got := r.Snapshot().Children[0].Text; got != "b" {
		t.Errorf("text = %q", got)
	}
}
