package testing

// ManualScheduler queues scheduled callbacks until the test runs them.
type ManualScheduler struct {
	queue []func()
}

// Schedule implements render.Scheduler.
func (s *ManualScheduler) Schedule(fn func()) {
	if fn != nil {
		s.queue = append(s.queue, fn)
	}
}

// Pending returns the number of queued callbacks.
func (s *ManualScheduler) Pending() int { return len(s.queue) }

// RunPending runs the callbacks queued at the time of the call. Callbacks
// they schedule stay queued. It returns how many ran.
func (s *ManualScheduler) RunPending() int {
	batch := s.queue
	s.queue = nil
	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Flush runs callbacks until the queue is empty and returns how many ran.
func (s *ManualScheduler) Flush() int {
	ran := 0
	for len(s.queue) > 0 {
		ran += s.RunPending()
	}
	return ran
}
