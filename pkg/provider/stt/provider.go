// Package stt defines the Transcriber interface for Speech-to-Text backends.
//
// Unlike streaming STT integrations, the call pipeline performs endpointing
// itself (see internal/endpoint) and hands the backend one complete utterance
// at a time. A Transcriber is therefore a blocking, single-shot operation:
// PCM in, text out. Implementations run on the shared inference worker pool,
// so per-call concurrency is bounded by the caller.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Transcriber converts a complete spoken utterance into text.
type Transcriber interface {
	// Transcribe converts one utterance of 16-bit signed little-endian mono
	// PCM at 16 kHz into text. It blocks until the backend responds or ctx is
	// cancelled. An empty string with a nil error means the backend heard
	// nothing intelligible.
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}
