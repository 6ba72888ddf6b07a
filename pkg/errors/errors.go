// Package errors provides structured error handling for the raven framework.
package errors

import (
	goerrors "errors"
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindIdentity indicates two structurally distinct nodes derived the same NodeID.
	KindIdentity
	// KindStaleBinding indicates a write through a binding whose state was destroyed.
	KindStaleBinding
	// KindBuild indicates a failure while evaluating the view graph.
	KindBuild
	// KindRender indicates the platform renderer rejected a mount or patch batch.
	KindRender
	// KindPanic indicates a recovered panic.
	KindPanic
	// KindStorage indicates a persisted binding could not be read or written.
	KindStorage
	// KindProtocol indicates a malformed or incompatible wire frame.
	KindProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case KindIdentity:
		return "identity"
	case KindStaleBinding:
		return "stale-binding"
	case KindBuild:
		return "build"
	case KindRender:
		return "render"
	case KindPanic:
		return "panic"
	case KindStorage:
		return "storage"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Sentinel errors wrapped by the structured error types.
var (
	// ErrIdentityCollision is returned when two different paths derive the same NodeID.
	ErrIdentityCollision = goerrors.New("identity collision")
	// ErrDuplicateKey is returned when siblings share the same explicit key.
	ErrDuplicateKey = goerrors.New("duplicate sibling key")
	// ErrStaleBinding is reported when writing through a destroyed state.
	ErrStaleBinding = goerrors.New("write through destroyed state")
	// ErrUnknownNode is returned when a patch references a node that is not live.
	ErrUnknownNode = goerrors.New("unknown node")
	// ErrUnknownHandler is returned when an event targets a handler slot that is not bound.
	ErrUnknownHandler = goerrors.New("unknown handler")
	// ErrReentrantRender is returned when Render is called from inside a render pass.
	ErrReentrantRender = goerrors.New("render called while a pass is in progress")
	// ErrNoRoot is returned when a pass has no root view to evaluate.
	ErrNoRoot = goerrors.New("no root view")
)

// Error represents a structured error in the raven framework.
type Error struct {
	// Op is the operation that failed (e.g., "render.Coordinator.pass").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
	// Node is the textual NodeID involved, if any.
	Node string
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *Error) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s [%s] node=%s: %v", e.Op, e.Kind, e.Node, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "testing.Renderer.Fire").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// BuildError represents a failure while evaluating the view graph.
type BuildError struct {
	// View is the type name of the view being evaluated when the failure occurred.
	View string
	// Path is the structural path of that view.
	Path string
	// Recovered is the panic value (nil for regular errors).
	Recovered any
	// Err is the underlying error (nil for panics).
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *BuildError) Error() string {
	if e.Recovered != nil {
		return fmt.Sprintf("panic in %s.Body() at %q: %v", e.View, e.Path, e.Recovered)
	}
	if e.Err != nil {
		return fmt.Sprintf("error in %s at %q: %v", e.View, e.Path, e.Err)
	}
	return fmt.Sprintf("unknown error in %s at %q", e.View, e.Path)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Is reports whether err, or any error it wraps, matches target.
func Is(err, target error) bool {
	return goerrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return goerrors.As(err, target)
}

// ErrorHandler receives errors reported by the raven framework.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *Error)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
	// HandleBuildError is called when view evaluation fails.
	HandleBuildError(err *BuildError)
}
