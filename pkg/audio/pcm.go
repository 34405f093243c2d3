package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Samples decodes 16-bit signed little-endian PCM into int16 samples.
// Odd trailing bytes are ignored.
func Samples(pcm []byte) []int16 {
	n := len(pcm) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// Bytes encodes int16 samples as 16-bit signed little-endian PCM.
func Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// RMS returns the root-mean-square energy of a PCM buffer normalised to
// [0, 1], where 1 corresponds to a full-scale square wave. Returns 0 for
// buffers shorter than one sample.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// PreEmphasis applies the first-order high-pass filter y[n] = x[n] − α·x[n−1]
// to a PCM buffer and returns the filtered copy. The input is not modified.
// Used to attenuate low-frequency rumble before VAD scoring.
func PreEmphasis(pcm []byte, alpha float64) []byte {
	samples := Samples(pcm)
	out := make([]int16, len(samples))
	var prev float64
	for i, s := range samples {
		cur := float64(s)
		v := cur - alpha*prev
		prev = cur
		out[i] = clampInt16(v)
	}
	return Bytes(out)
}

// Silence returns d's worth of zero PCM at the given sample rate, rounded
// down to a whole sample. Used as the substitute output when synthesis fails
// so the conversation keeps its rhythm.
func Silence(sampleRate int, d time.Duration) []byte {
	if d <= 0 || sampleRate <= 0 {
		return nil
	}
	samples := int(d.Seconds() * float64(sampleRate))
	return make([]byte, samples*2)
}

func clampInt16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
