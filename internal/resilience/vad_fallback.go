package resilience

import (
	"context"

	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/vad"
)

// VADFallback implements [vad.Detector] with automatic failover across
// multiple detectors. Each detector has its own circuit breaker, so a dead
// silero sidecar is bypassed in favour of the energy fallback until its
// breaker half-opens again.
type VADFallback struct {
	group *FallbackGroup[vad.Detector]
}

// Compile-time interface assertion.
var _ vad.Detector = (*VADFallback)(nil)

// NewVADFallback creates a [VADFallback] with primary as the preferred
// detector.
func NewVADFallback(primary vad.Detector, primaryName string, cfg FallbackConfig) *VADFallback {
	return &VADFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional detector as a fallback.
func (f *VADFallback) AddFallback(name string, detector vad.Detector) {
	f.group.AddFallback(name, detector)
}

// Score implements vad.Detector against the first healthy detector in the
// group.
func (f *VADFallback) Score(ctx context.Context, frame []byte) (float64, error) {
	return ExecuteWithResult(f.group, func(d vad.Detector) (float64, error) {
		return d.Score(ctx, frame)
	})
}
