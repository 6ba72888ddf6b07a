// Package testing runs raven views headlessly. Import it under an alias,
// since it shares its name with the standard library package:
//
//	import raventest "github.com/go-raven/raven/pkg/testing"
//
// A Tester wires a Coordinator to a recording Renderer and a
// ManualScheduler, so render passes only happen when the test pumps:
//
//	tester := raventest.NewTesterWithT(t)
//	tester.RenderView(Counter{})
//	tester.Tap(raventest.ByText("0"))
//	tester.Pump()
//	if !tester.Find(raventest.ByText("1")).Exists() {
//	    t.Error("counter did not advance")
//	}
//
// Tap and Enter fire the handler bound on the matched node or the nearest
// ancestor that has one, the way a substrate bubbles events.
//
// Renderer can also be used on its own with render.New. It keeps the
// mounted tree, every applied batch and the attach, update and cleanup
// history, and applies each batch atomically.
//
// CaptureSnapshot turns the current tree into JSON with readable
// per-tag ids. MatchesFile compares against a golden file; run with
// RAVEN_UPDATE_SNAPSHOTS=1 to rewrite goldens.
package testing
