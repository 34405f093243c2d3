// Package energy provides a model-free fallback detector that scores frames
// by RMS energy alone. It exists for deployments without a silero-vad sidecar
// and for local development; it will trigger on any sustained sound, music
// and line noise included, so prefer the model-backed detector in production.
package energy

import (
	"context"

	"github.com/AmaanP314/AI-Caller-Agent/pkg/audio"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/vad"
)

// defaultKnee is the normalised RMS level mapped to probability 1.0.
// Conversational speech on a phone line typically sits well above it.
const defaultKnee = 0.02

// Compile-time interface assertion.
var _ vad.Detector = (*Detector)(nil)

// Detector implements vad.Detector using only frame energy.
type Detector struct {
	knee float64
}

// New creates an energy Detector. knee is the normalised RMS level ([0, 1])
// at and above which a frame scores probability 1.0; pass 0 for the default.
func New(knee float64) *Detector {
	if knee <= 0 {
		knee = defaultKnee
	}
	return &Detector{knee: knee}
}

// Score implements vad.Detector. The probability ramps linearly from 0 at
// digital silence to 1 at the knee.
func (d *Detector) Score(_ context.Context, frame []byte) (float64, error) {
	p := audio.RMS(frame) / d.knee
	if p > 1 {
		p = 1
	}
	return p, nil
}
