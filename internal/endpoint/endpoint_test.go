package endpoint

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/AmaanP314/AI-Caller-Agent/pkg/audio"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/vad"
	vadmock "github.com/AmaanP314/AI-Caller-Agent/pkg/provider/vad/mock"
)

// loudFrame returns one detection frame with enough energy to pass the gate,
// leaving classification to the detector.
func loudFrame() []byte {
	samples := make([]int16, vad.FrameSamples)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 2000
		} else {
			samples[i] = -2000
		}
	}
	return audio.Bytes(samples)
}

func newTestEndpointer(det vad.Detector) *Endpointer {
	return New(det, Config{}, slog.Default())
}

func pushFrames(t *testing.T, e *Endpointer, n int, agentSpeaking bool) []Event {
	t.Helper()
	var events []Event
	for i := 0; i < n; i++ {
		events = append(events, e.Push(context.Background(), loudFrame(), agentSpeaking)...)
	}
	return events
}

func TestUtteranceEmittedAfterSilenceTimeout(t *testing.T) {
	t.Parallel()

	det := &vadmock.Detector{}
	e := newTestEndpointer(det)

	// 15 speech frames, then silence. Default timeout is 1500 ms = 47 frames.
	det.Probability = 0.9
	if got := pushFrames(t, e, 15, false); got != nil {
		t.Fatalf("events during speech: %v", got)
	}

	det.Probability = 0.1
	if got := pushFrames(t, e, 46, false); got != nil {
		t.Fatalf("utterance closed before the silence timeout: %v", got)
	}
	events := pushFrames(t, e, 1, false)
	if len(events) != 1 || events[0].Type != EventUtterance {
		t.Fatalf("events = %v, want one utterance", events)
	}
	// Utterance audio covers the speech and the trailing silence.
	if want := (15 + 47) * vad.FrameBytes; len(events[0].PCM) != want {
		t.Errorf("utterance PCM = %d bytes, want %d", len(events[0].PCM), want)
	}
}

func TestShortUtteranceDropped(t *testing.T) {
	t.Parallel()

	det := &vadmock.Detector{}
	e := newTestEndpointer(det)

	// 5 speech frames (160 ms) is under the 300 ms minimum.
	det.Probability = 0.9
	pushFrames(t, e, 5, false)
	det.Probability = 0.1
	if events := pushFrames(t, e, 47, false); events != nil {
		t.Fatalf("noise blip produced events: %v", events)
	}
}

func TestLeadingSilenceDiscarded(t *testing.T) {
	t.Parallel()

	det := &vadmock.Detector{Probability: 0.1}
	e := newTestEndpointer(det)
	if events := pushFrames(t, e, 100, false); events != nil {
		t.Fatalf("pure silence produced events: %v", events)
	}
	if events := e.Finalize(); events != nil {
		t.Fatalf("Finalize on silence produced events: %v", events)
	}
}

func TestBargeInRequiresConsecutiveSpeech(t *testing.T) {
	t.Parallel()

	det := &vadmock.Detector{}
	e := newTestEndpointer(det)

	// Two speech frames, one silence, two speech: the run never reaches 3.
	det.Probabilities = []float64{0.9, 0.9, 0.1, 0.9, 0.9}
	for i := 0; i < 5; i++ {
		if events := pushFrames(t, e, 1, true); events != nil {
			t.Fatalf("frame %d: premature barge-in: %v", i, events)
		}
	}

	// Third consecutive speech frame trips it exactly once.
	det.Probabilities = nil
	det.Probability = 0.9
	events := pushFrames(t, e, 1, true)
	if len(events) != 1 || events[0].Type != EventBargeIn {
		t.Fatalf("events = %v, want one barge-in", events)
	}
	if events := pushFrames(t, e, 5, true); events != nil {
		t.Fatalf("barge-in reported again within the same speech run: %v", events)
	}
}

func TestBargeInOnlyWhileAgentSpeaking(t *testing.T) {
	t.Parallel()

	det := &vadmock.Detector{Probability: 0.9}
	e := newTestEndpointer(det)
	if events := pushFrames(t, e, 10, false); events != nil {
		t.Fatalf("barge-in without agent playback: %v", events)
	}
}

func TestChunkReassembly(t *testing.T) {
	t.Parallel()

	det := &vadmock.Detector{Probability: 0.9}
	e := newTestEndpointer(det)

	// Feed 320-byte telephony chunks; detector must see whole frames only.
	chunk := loudFrame()[:320]
	for i := 0; i < 16; i++ { // 16 × 320 B = 5 frames of 1024 B
		e.Push(context.Background(), chunk, false)
	}
	if got := len(det.Calls); got != 5 {
		t.Fatalf("detector scored %d frames, want 5", got)
	}
	for i, c := range det.Calls {
		if len(c.Frame) != vad.FrameBytes {
			t.Errorf("call %d: frame size %d", i, len(c.Frame))
		}
	}
}

func TestFinalizeFlushesOpenUtterance(t *testing.T) {
	t.Parallel()

	det := &vadmock.Detector{Probability: 0.9}
	e := newTestEndpointer(det)
	pushFrames(t, e, 12, false)

	events := e.Finalize()
	if len(events) != 1 || events[0].Type != EventUtterance {
		t.Fatalf("events = %v, want one utterance", events)
	}
	if want := 12 * vad.FrameBytes; len(events[0].PCM) != want {
		t.Errorf("utterance PCM = %d bytes, want %d", len(events[0].PCM), want)
	}
	// Finalize resets; new audio starts a fresh utterance.
	if events := pushFrames(t, e, 1, false); events != nil {
		t.Fatalf("events after reset: %v", events)
	}
}

func TestDetectorFailureIsSilence(t *testing.T) {
	t.Parallel()

	det := &vadmock.Detector{Err: errors.New("sidecar down")}
	e := newTestEndpointer(det)
	if events := pushFrames(t, e, 60, false); events != nil {
		t.Fatalf("detector failure produced events: %v", events)
	}
}

func TestEnergyGateSkipsDetector(t *testing.T) {
	t.Parallel()

	det := &vadmock.Detector{Probability: 0.9}
	e := newTestEndpointer(det)
	e.Push(context.Background(), make([]byte, vad.FrameBytes), false)
	if len(det.Calls) != 0 {
		t.Fatalf("detector consulted for a near-silent frame")
	}
}
