package render

import (
	"context"
	"sync"

	"github.com/go-raven/raven/pkg/errors"
)

// Loop is a serialized UI execution context: callbacks queued with
// Dispatch or Schedule run one at a time, in order, on the goroutine that
// calls Run or RunPending.
//
// Loop implements Scheduler, so a Coordinator can schedule its passes on
// it.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool
}

// NewLoop creates an idle Loop.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Dispatch queues fn to run on the loop. Safe to call from any goroutine.
// Returns false if fn is nil or the loop has stopped.
func (l *Loop) Dispatch(fn func()) bool {
	if fn == nil {
		return false
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Schedule implements Scheduler.
func (l *Loop) Schedule(fn func()) {
	l.Dispatch(fn)
}

// Pending returns the number of queued callbacks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// RunPending runs queued callbacks until the queue is empty, including
// callbacks queued while draining. It returns how many ran.
func (l *Loop) RunPending() int {
	ran := 0
	for {
		batch := l.drain()
		if len(batch) == 0 {
			return ran
		}
		for _, fn := range batch {
			l.run(fn)
			ran++
		}
	}
}

// Run processes callbacks until ctx is done. Once Run returns the loop
// accepts no more work; callbacks still queued are dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.mu.Lock()
		l.closed = true
		l.queue = nil
		l.mu.Unlock()
	}()
	for {
		l.RunPending()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) drain() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.queue
	l.queue = nil
	return batch
}

// run executes one callback. A panic is reported and does not stop the
// loop.
func (l *Loop) run(fn func()) {
	defer errors.Recover("render.Loop")
	fn()
}
