// Package tts defines the Synthesizer interface for Text-to-Speech backends.
//
// The turn pipeline synthesizes one sentence at a time on a bounded worker
// pool, so a Synthesizer is a blocking, single-shot operation: text in, PCM
// out. Sentence-level chunking keeps the time-to-first-audio low without the
// backend needing to support streaming synthesis.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Synthesizer converts one sentence of text into spoken audio.
type Synthesizer interface {
	// Synthesize converts text into 16-bit signed little-endian mono PCM at
	// the rate reported by SampleRate. It blocks until the backend responds
	// or ctx is cancelled.
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// SampleRate returns the sample rate in Hz of the PCM produced by
	// Synthesize. Constant for the lifetime of the Synthesizer.
	SampleRate() int
}
