// Package mock provides a test double for the tts.Synthesizer interface.
//
// Use Synthesizer in unit tests to feed controlled PCM without a live TTS
// backend and to inspect the sentences that were synthesized.
package mock

import (
	"context"
	"sync"

	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Text is the sentence passed to Synthesize.
	Text string
}

// Synthesizer is a mock implementation of tts.Synthesizer.
// Zero values cause Synthesize to return nil PCM and a nil error.
type Synthesizer struct {
	mu sync.Mutex

	// PCM is returned by every Synthesize call.
	PCM []byte

	// Err, if non-nil, is returned by every Synthesize call.
	Err error

	// Rate is returned by SampleRate. Zero defaults to 16000.
	Rate int

	// Block, if non-nil, is closed by the test to release Synthesize, which
	// waits on it (or ctx) first. Use this to hold a synthesis in flight while
	// asserting intermediate pipeline state.
	Block <-chan struct{}

	// Calls records every invocation of Synthesize in order.
	Calls []SynthesizeCall
}

// Synthesize records the call and returns the configured PCM.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, SynthesizeCall{Text: text})
	block := s.Block
	pcm, err := s.PCM, s.Err
	s.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-block:
		}
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(pcm))
	copy(out, pcm)
	return out, nil
}

// SampleRate returns Rate, defaulting to 16000.
func (s *Synthesizer) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Rate == 0 {
		return 16000
	}
	return s.Rate
}

// Texts returns the sentences synthesized so far, in order. Thread-safe.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Calls))
	for i, c := range s.Calls {
		out[i] = c.Text
	}
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (s *Synthesizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = nil
}

// Ensure Synthesizer implements tts.Synthesizer at compile time.
var _ tts.Synthesizer = (*Synthesizer)(nil)
