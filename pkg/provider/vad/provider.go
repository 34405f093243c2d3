// Package vad defines the Detector interface for Voice Activity Detection
// backends.
//
// The endpointing layer (internal/endpoint) assembles fixed-size frames,
// applies pre-emphasis and an energy gate, and asks the Detector for a speech
// probability per frame. A Detector is stateless from the caller's point of
// view: frame in, probability out. Backends that keep internal smoothing
// state must make Score safe for concurrent use or document otherwise.
package vad

import "context"

// FrameSamples is the number of 16 kHz samples per detection frame (32 ms).
// This matches the Silero VAD model's native window size.
const FrameSamples = 512

// FrameBytes is the byte length of one detection frame of 16-bit PCM.
const FrameBytes = FrameSamples * 2

// Detector scores audio frames for speech probability.
type Detector interface {
	// Score returns the probability in [0, 1] that frame contains speech.
	// frame is FrameBytes of 16-bit signed little-endian mono PCM at 16 kHz.
	// Callers treat an error as "no speech" so a flaky backend degrades to
	// missed utterances rather than phantom ones.
	Score(ctx context.Context, frame []byte) (float64, error)
}
