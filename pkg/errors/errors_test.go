package errors

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestErrorString(t *testing.T) {
	err := &Error{
		Op:   "render.Coordinator.pass",
		Kind: KindRender,
		Err:  ErrUnknownNode,
	}
	want := "render.Coordinator.pass [render]: unknown node"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorWithNode(t *testing.T) {
	err := &Error{
		Op:   "vtree.Apply",
		Kind: KindRender,
		Node: "6ba7b811-9dad-11d1-80b4-00c04fd430c8",
		Err:  ErrUnknownNode,
	}
	if got := err.Error(); !strings.Contains(got, "node=6ba7b811") {
		t.Errorf("error string %q should contain node id", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := &Error{Op: "view.Build", Kind: KindIdentity, Err: ErrIdentityCollision}
	if !Is(err, ErrIdentityCollision) {
		t.Error("expected Is to see the wrapped sentinel")
	}
	var target *Error
	if !As(err, &target) {
		t.Fatal("expected As to find *Error")
	}
	if target.Kind != KindIdentity {
		t.Errorf("Kind = %v, want %v", target.Kind, KindIdentity)
	}
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindIdentity, "identity"},
		{KindStaleBinding, "stale-binding"},
		{KindBuild, "build"},
		{KindRender, "render"},
		{KindPanic, "panic"},
		{KindStorage, "storage"},
		{KindProtocol, "protocol"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestPanicErrorString(t *testing.T) {
	err := &PanicError{Value: "test panic", Timestamp: time.Now()}
	if got, want := err.Error(), "panic: test panic"; got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}

	err.Op = "testing.Renderer.Fire"
	if got, want := err.Error(), "panic in testing.Renderer.Fire: test panic"; got != want {
		t.Errorf("PanicError.Error() = %q, want %q", got, want)
	}
}

func TestBuildErrorString(t *testing.T) {
	err := &BuildError{View: "main.Counter", Path: "/main.Counter[0]", Recovered: "boom"}
	want := `panic in main.Counter.Body() at "/main.Counter[0]": boom`
	if got := err.Error(); got != want {
		t.Errorf("BuildError.Error() = %q, want %q", got, want)
	}

	err2 := &BuildError{View: "main.Counter", Path: "/x", Err: ErrDuplicateKey}
	if got := err2.Error(); !strings.Contains(got, "error in main.Counter") {
		t.Errorf("BuildError.Error() = %q, should contain 'error in'", got)
	}
	if !Is(err2, ErrDuplicateKey) {
		t.Error("BuildError should unwrap to its Err")
	}

	err3 := &BuildError{View: "main.Counter", Path: "/x"}
	if got, want := err3.Error(), `unknown error in main.Counter at "/x"`; got != want {
		t.Errorf("BuildError.Error() = %q, want %q", got, want)
	}
}

func TestReport(t *testing.T) {
	var captured *Error
	SetHandler(&testHandler{onError: func(err *Error) { captured = err }})
	defer SetHandler(nil)

	Report(&Error{Op: "test.op", Kind: KindStorage, Err: ErrUnknownNode})

	if captured == nil {
		t.Fatal("expected error to be captured")
	}
	if captured.Op != "test.op" {
		t.Errorf("Op = %q, want %q", captured.Op, "test.op")
	}
	if captured.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestReportBuildError(t *testing.T) {
	var captured *BuildError
	SetHandler(&testHandler{onBuildError: func(err *BuildError) { captured = err }})
	defer SetHandler(nil)

	ReportBuildError(&BuildError{View: "main.Test", Recovered: "test panic"})

	if captured == nil {
		t.Fatal("expected build error to be captured")
	}
	if captured.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}
}

func TestRecover(t *testing.T) {
	var captured *PanicError
	SetHandler(&testHandler{onPanic: func(err *PanicError) { captured = err }})
	defer SetHandler(nil)

	func() {
		defer Recover("test.recover")
		panic("intentional test panic")
	}()

	if captured == nil {
		t.Fatal("expected panic to be recovered and captured")
	}
	if captured.Value != "intentional test panic" {
		t.Errorf("Value = %v, want %q", captured.Value, "intentional test panic")
	}
	if captured.Op != "test.recover" {
		t.Errorf("Op = %q, want %q", captured.Op, "test.recover")
	}
}

func TestRecoverInto(t *testing.T) {
	SetHandler(&testHandler{})
	defer SetHandler(nil)

	fire := func() (err error) {
		defer RecoverInto("test.invoke", &err)
		panic(42)
	}
	err := fire()
	var pe *PanicError
	if !As(err, &pe) {
		t.Fatalf("err = %v, want *PanicError", err)
	}
	if pe.Value != 42 || pe.Op != "test.invoke" {
		t.Errorf("PanicError = %+v", pe)
	}
	if strings.Contains(pe.StackTrace, "errors.RecoverInto") {
		t.Errorf("stack should start at the panicking caller:\n%s", pe.StackTrace)
	}

	ok := func() (err error) {
		defer RecoverInto("test.invoke", &err)
		return nil
	}
	if err := ok(); err != nil {
		t.Errorf("no panic should leave err nil, got %v", err)
	}
}

func TestCaptureStack(t *testing.T) {
	stack := CaptureStack()
	if !strings.Contains(stack, "TestCaptureStack") {
		t.Errorf("stack should include the caller, got:\n%s", stack)
	}
	if strings.Contains(stack, "errors.CaptureStack") {
		t.Errorf("stack should skip CaptureStack itself, got:\n%s", stack)
	}
}

func TestSetHandlerNil(t *testing.T) {
	SetHandler(&testHandler{})
	SetHandler(nil)
	if _, ok := Handler().(*LogHandler); !ok {
		t.Errorf("SetHandler(nil) should restore LogHandler, got %T", Handler())
	}
}

func TestLogHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	h := &LogHandler{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	h.HandleError(&Error{Op: "state.State.Set", Kind: KindStaleBinding, Err: ErrStaleBinding})
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("stale binding should log at warn, got %q", buf.String())
	}

	buf.Reset()
	h.HandleError(&Error{Op: "render", Kind: KindRender, Err: ErrUnknownNode, Node: "abc"})
	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "node=abc") {
		t.Errorf("render error log = %q", out)
	}
}

type testHandler struct {
	onError      func(*Error)
	onPanic      func(*PanicError)
	onBuildError func(*BuildError)
}

func (h *testHandler) HandleError(err *Error) {
	if h.onError != nil {
		h.onError(err)
	}
}

func (h *testHandler) HandlePanic(err *PanicError) {
	if h.onPanic != nil {
		h.onPanic(err)
	}
}

func (h *testHandler) HandleBuildError(err *BuildError) {
	if h.onBuildError != nil {
		h.onBuildError(err)
	}
}
