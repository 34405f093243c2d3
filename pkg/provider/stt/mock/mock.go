// Package mock provides a test double for the stt.Transcriber interface.
//
// Use Transcriber in unit tests to feed controlled transcripts without a live
// STT backend and to inspect the PCM that was submitted.
package mock

import (
	"context"
	"sync"

	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// PCM is a copy of the bytes passed to Transcribe.
	PCM []byte
}

// Transcriber is a mock implementation of stt.Transcriber.
// Zero values cause Transcribe to return "" and a nil error.
type Transcriber struct {
	mu sync.Mutex

	// Text is returned by every Transcribe call when Texts is exhausted.
	Text string

	// Texts holds per-call transcripts consumed in order; calls past the end
	// fall back to Text.
	Texts []string

	// Err, if non-nil, is returned by every Transcribe call.
	Err error

	// Delay, when non-nil, makes every Transcribe call wait for a token
	// before returning. Close the channel to release all held calls.
	Delay chan struct{}

	// Calls records every invocation of Transcribe in order.
	Calls []TranscribeCall
}

// Transcribe records the call and returns the configured transcript.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	t.mu.Lock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	call := len(t.Calls)
	t.Calls = append(t.Calls, TranscribeCall{PCM: cp})
	delay := t.Delay
	t.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return "", t.Err
	}
	if call < len(t.Texts) {
		return t.Texts[call], nil
	}
	return t.Text, nil
}

// Reset clears all recorded calls. Thread-safe.
func (t *Transcriber) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls = nil
}

// Ensure Transcriber implements stt.Transcriber at compile time.
var _ stt.Transcriber = (*Transcriber)(nil)
