package turn

import "sync"

// Signal is a single-shot broadcast used to interrupt one agent turn. Raising
// it closes a channel, so any number of goroutines can observe the interrupt
// either by polling [Signal.Raised] or by selecting on [Signal.Done]. Clear
// re-arms the signal for the next turn.
type Signal struct {
	mu     sync.Mutex
	ch     chan struct{}
	raised bool
}

// NewSignal returns an armed, unraised Signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Raise fires the signal. Safe to call from any goroutine; calls after the
// first are no-ops until Clear.
func (s *Signal) Raise() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.raised {
		s.raised = true
		close(s.ch)
	}
}

// Raised reports whether the signal has fired since the last Clear.
func (s *Signal) Raised() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raised
}

// Done returns a channel that is closed once the signal fires. After Clear a
// fresh channel is returned; callers must not cache it across turns.
func (s *Signal) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// Clear re-arms the signal. Called at the start of each turn.
func (s *Signal) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raised {
		s.raised = false
		s.ch = make(chan struct{})
	}
}
