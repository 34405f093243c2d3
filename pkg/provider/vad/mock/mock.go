// Package mock provides a test double for the vad.Detector interface.
//
// Use Detector to script per-frame speech probabilities and inspect the
// frames that were scored.
//
// Example:
//
//	d := &mock.Detector{Probabilities: []float64{0.9, 0.9, 0.1}}
package mock

import (
	"context"
	"sync"

	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/vad"
)

// ScoreCall records a single invocation of Score.
type ScoreCall struct {
	// Frame is a copy of the bytes passed to Score.
	Frame []byte
}

// Detector is a mock implementation of vad.Detector.
// Zero values cause Score to return 0 and a nil error.
type Detector struct {
	mu sync.Mutex

	// Probability is returned by every Score call when Probabilities is
	// exhausted.
	Probability float64

	// Probabilities holds per-call scores consumed in order; calls past the
	// end fall back to Probability.
	Probabilities []float64

	// Err, if non-nil, is returned by every Score call.
	Err error

	// Calls records every invocation of Score in order.
	Calls []ScoreCall
}

// Score records the call and returns the configured probability.
func (d *Detector) Score(_ context.Context, frame []byte) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	call := len(d.Calls)
	d.Calls = append(d.Calls, ScoreCall{Frame: cp})
	if d.Err != nil {
		return 0, d.Err
	}
	if call < len(d.Probabilities) {
		return d.Probabilities[call], nil
	}
	return d.Probability, nil
}

// Reset clears all recorded calls. Thread-safe.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = nil
}

// Ensure Detector implements vad.Detector at compile time.
var _ vad.Detector = (*Detector)(nil)
