// Package audio provides PCM helpers for the telephony pipeline: a stateful
// sample-rate converter, pre-emphasis filtering, and energy measurement.
//
// All functions operate on 16-bit signed little-endian mono PCM, the only
// format that flows through the system (8 kHz on the PBX wire, 16 kHz on the
// agent side).
package audio

import "encoding/binary"

// Resampler converts 16-bit mono PCM between two fixed sample rates using
// linear interpolation. Unlike a per-chunk resampler it carries the fractional
// read position and the last input sample across calls, so chunk boundaries
// introduce no clicks and feeding N samples in arbitrarily sized chunks yields
// ⌊N·to/from⌋ ± 1 output samples in total.
//
// A Resampler is stateful and must not be shared across goroutines. Create one
// per direction per call.
type Resampler struct {
	fromRate int
	toRate   int

	// step is the source-index increment per output sample (from/to).
	step float64

	// pos is the fractional source read position relative to `last`.
	pos float64

	// last is the final input sample of the previous chunk; primed reports
	// whether it is valid yet.
	last   int16
	primed bool
}

// NewResampler creates a Resampler converting fromRate Hz to toRate Hz.
// Both rates must be positive; equal rates produce a pass-through converter.
func NewResampler(fromRate, toRate int) *Resampler {
	return &Resampler{
		fromRate: fromRate,
		toRate:   toRate,
		step:     float64(fromRate) / float64(toRate),
	}
}

// FromRate returns the input sample rate in Hz.
func (r *Resampler) FromRate() int { return r.fromRate }

// ToRate returns the output sample rate in Hz.
func (r *Resampler) ToRate() int { return r.toRate }

// Resample converts one chunk of PCM. The returned slice is freshly allocated;
// it may be empty when the chunk is too short to produce an output sample (the
// remainder is carried into the next call). Odd trailing bytes are dropped.
func (r *Resampler) Resample(chunk []byte) []byte {
	if r.fromRate == r.toRate {
		out := make([]byte, len(chunk)-len(chunk)%2)
		copy(out, chunk)
		return out
	}

	n := len(chunk) / 2
	if n == 0 {
		return nil
	}

	// Extend the new samples with the carried last sample so interpolation
	// can cross the chunk boundary. On the first chunk of a stream the
	// carried sample is the chunk's own first sample, which keeps the total
	// output count at ⌊N·to/from⌋ without inventing a leading transient.
	if !r.primed {
		r.last = int16(binary.LittleEndian.Uint16(chunk))
		r.primed = true
	}
	src := make([]int16, 0, n+1)
	src = append(src, r.last)
	for i := 0; i < n; i++ {
		src = append(src, int16(binary.LittleEndian.Uint16(chunk[i*2:])))
	}

	var out []byte
	pos := r.pos
	for {
		idx := int(pos)
		if idx >= len(src)-1 {
			break
		}
		frac := pos - float64(idx)
		s0 := float64(src[idx])
		s1 := float64(src[idx+1])
		sample := int16(s0 + (s1-s0)*frac)
		out = binary.LittleEndian.AppendUint16(out, uint16(sample))
		pos += r.step
	}

	// Carry the final sample and the leftover fractional position forward.
	r.last = src[len(src)-1]
	r.pos = pos - float64(len(src)-1)

	return out
}

// Reset clears the carried filter state. The next chunk is treated as the
// start of a fresh stream.
func (r *Resampler) Reset() {
	r.pos = 0
	r.last = 0
	r.primed = false
}
