// Package mock provides a test double for the policy.Policy interface.
//
// Use Policy to script per-turn event streams and inspect the transcripts
// the turn pipeline submitted.
package mock

import (
	"context"
	"sync"

	"github.com/AmaanP314/AI-Caller-Agent/internal/policy"
)

// RespondCall records a single invocation of Respond.
type RespondCall struct {
	// Transcript is the text passed to Respond.
	Transcript string
}

// Policy is a mock implementation of policy.Policy.
// Zero values cause Respond to return an immediately closed channel.
type Policy struct {
	mu sync.Mutex

	// Events is the event sequence emitted on every call when Responses is
	// exhausted.
	Events []policy.Event

	// Responses holds per-call event sequences consumed in order; calls past
	// the end fall back to Events.
	Responses [][]policy.Event

	// Err, if non-nil, is returned as the error from Respond.
	Err error

	// Release, if non-nil, is closed by the test to let emission proceed.
	// Emission blocks on it (or ctx) before every event.
	Release <-chan struct{}

	// Calls records every invocation of Respond in order.
	Calls []RespondCall
}

// Respond records the call and streams the configured events.
func (p *Policy) Respond(ctx context.Context, transcript string) (<-chan policy.Event, error) {
	p.mu.Lock()
	if p.Err != nil {
		err := p.Err
		p.Calls = append(p.Calls, RespondCall{Transcript: transcript})
		p.mu.Unlock()
		return nil, err
	}
	call := len(p.Calls)
	p.Calls = append(p.Calls, RespondCall{Transcript: transcript})

	source := p.Events
	if call < len(p.Responses) {
		source = p.Responses[call]
	}
	events := make([]policy.Event, len(source))
	copy(events, source)
	release := p.Release
	p.mu.Unlock()

	ch := make(chan policy.Event, len(events))
	go func() {
		defer close(ch)
		for _, ev := range events {
			if release != nil {
				select {
				case <-ctx.Done():
					return
				case <-release:
				}
			}
			select {
			case <-ctx.Done():
				return
			case ch <- ev:
			}
		}
	}()
	return ch, nil
}

// Transcripts returns the transcripts submitted so far, in order. Thread-safe.
func (p *Policy) Transcripts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.Calls))
	for i, c := range p.Calls {
		out[i] = c.Transcript
	}
	return out
}

// Ensure Policy implements policy.Policy at compile time.
var _ policy.Policy = (*Policy)(nil)
