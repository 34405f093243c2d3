// Package endpoint turns a continuous caller audio stream into discrete
// utterances and barge-in notifications.
//
// Incoming PCM arrives in whatever chunk sizes the relay produces; the
// Endpointer reassembles it into fixed 512-sample frames (32 ms at 16 kHz),
// scores each frame for speech, and runs a silence-timeout state machine:
// an utterance opens on the first speech frame and closes after a configured
// run of silence, provided enough speech accumulated to rule out a cough or
// line click. A separate consecutive-speech counter detects the caller
// talking over the agent (barge-in); it is only armed while the agent is
// speaking so the agent's own echo cannot interrupt it.
package endpoint

import (
	"context"
	"log/slog"
	"time"

	"github.com/AmaanP314/AI-Caller-Agent/pkg/audio"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/vad"
)

// frameMs is the duration of one detection frame.
const frameMs = vad.FrameSamples * 1000 / 16000 // 32 ms

// EventType discriminates Endpointer events.
type EventType int

const (
	// EventUtterance signals a completed utterance; PCM carries its audio.
	EventUtterance EventType = iota

	// EventBargeIn signals sustained caller speech while the agent was
	// speaking. The caller's audio keeps accumulating toward an utterance.
	EventBargeIn
)

// Event is an occurrence detected in the caller audio stream.
type Event struct {
	Type EventType

	// PCM is the full utterance audio for EventUtterance, nil otherwise.
	PCM []byte
}

// Config holds the endpointing tunables. Zero values select the defaults.
type Config struct {
	// SpeechThreshold is the detector probability at or above which a frame
	// counts as speech. Default 0.45.
	SpeechThreshold float64

	// SilenceTimeout is how long the caller must stay quiet before an open
	// utterance is finalized. Default 1500 ms.
	SilenceTimeout time.Duration

	// MinSpeechDuration is the minimum accumulated speech for an utterance
	// to be emitted rather than dropped as noise. Default 300 ms.
	MinSpeechDuration time.Duration

	// MinBargeInFrames is the number of consecutive speech frames that
	// constitute a barge-in. Default 3.
	MinBargeInFrames int

	// MinEnergy is the normalised RMS level below which a frame is silent
	// without consulting the detector. Default 0.001.
	MinEnergy float64

	// PreEmphasisAlpha is the high-pass coefficient applied to a scratch
	// copy of each frame before scoring. Default 0.95.
	PreEmphasisAlpha float64
}

func (c *Config) applyDefaults() {
	if c.SpeechThreshold == 0 {
		c.SpeechThreshold = 0.45
	}
	if c.SilenceTimeout == 0 {
		c.SilenceTimeout = 1500 * time.Millisecond
	}
	if c.MinSpeechDuration == 0 {
		c.MinSpeechDuration = 300 * time.Millisecond
	}
	if c.MinBargeInFrames == 0 {
		c.MinBargeInFrames = 3
	}
	if c.MinEnergy == 0 {
		c.MinEnergy = 0.001
	}
	if c.PreEmphasisAlpha == 0 {
		c.PreEmphasisAlpha = 0.95
	}
}

// Endpointer segments caller audio into utterances.
// Not safe for concurrent use; each call owns one.
type Endpointer struct {
	det    vad.Detector
	cfg    Config
	logger *slog.Logger

	// frames needed to trip silence finalization / minimum speech, rounded up.
	silenceFrames   int
	minSpeechFrames int

	frameBuf  []byte // partial frame awaiting completion
	utterance []byte // audio of the open utterance

	speaking     bool
	speechFrames int // speech frames in the open utterance
	silentFrames int // consecutive silent frames since last speech

	bargeFrames int  // consecutive speech frames while agent speaking
	bargeFired  bool // barge-in already reported for this speech run
}

// New creates an Endpointer scoring frames with det.
func New(det vad.Detector, cfg Config, logger *slog.Logger) *Endpointer {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Endpointer{
		det:             det,
		cfg:             cfg,
		logger:          logger,
		silenceFrames:   int((cfg.SilenceTimeout.Milliseconds() + frameMs - 1) / frameMs),
		minSpeechFrames: int((cfg.MinSpeechDuration.Milliseconds() + frameMs - 1) / frameMs),
	}
}

// Push feeds a chunk of 16 kHz PCM and returns any events it completed.
// agentSpeaking arms the barge-in counter; pass the current playback state.
func (e *Endpointer) Push(ctx context.Context, chunk []byte, agentSpeaking bool) []Event {
	e.frameBuf = append(e.frameBuf, chunk...)

	var events []Event
	for len(e.frameBuf) >= vad.FrameBytes {
		frame := e.frameBuf[:vad.FrameBytes]
		e.frameBuf = e.frameBuf[vad.FrameBytes:]
		events = append(events, e.processFrame(ctx, frame, agentSpeaking)...)
	}
	return events
}

// Finalize flushes the open utterance, if any, regardless of the silence
// timeout. Called on hangup so trailing speech is not lost. The Endpointer
// is reset and may be reused.
func (e *Endpointer) Finalize() []Event {
	defer e.reset()
	if e.speaking && e.speechFrames >= e.minSpeechFrames {
		return []Event{{Type: EventUtterance, PCM: e.utterance}}
	}
	return nil
}

func (e *Endpointer) reset() {
	e.utterance = nil
	e.speaking = false
	e.speechFrames = 0
	e.silentFrames = 0
	e.bargeFrames = 0
	e.bargeFired = false
}

func (e *Endpointer) processFrame(ctx context.Context, frame []byte, agentSpeaking bool) []Event {
	isSpeech := e.scoreFrame(ctx, frame)

	var events []Event

	// Barge-in runs on its own counter, armed only during agent playback.
	// Silence resets the run; leaving playback disarms without resetting
	// bargeFired so one barge-in is reported per speech run.
	if isSpeech {
		if agentSpeaking {
			e.bargeFrames++
			if e.bargeFrames >= e.cfg.MinBargeInFrames && !e.bargeFired {
				e.bargeFired = true
				events = append(events, Event{Type: EventBargeIn})
			}
		}
	} else {
		e.bargeFrames = 0
		e.bargeFired = false
	}

	if isSpeech {
		if !e.speaking {
			e.speaking = true
			e.utterance = nil
			e.speechFrames = 0
		}
		e.silentFrames = 0
		e.speechFrames++
		e.utterance = append(e.utterance, frame...)
		return events
	}

	if !e.speaking {
		// Leading silence is discarded.
		return events
	}

	// Trailing silence inside an open utterance is kept so the STT model
	// sees a natural decay, then the utterance closes on timeout.
	e.silentFrames++
	e.utterance = append(e.utterance, frame...)
	if e.silentFrames >= e.silenceFrames {
		if e.speechFrames >= e.minSpeechFrames {
			events = append(events, Event{Type: EventUtterance, PCM: e.utterance})
		} else {
			e.logger.Debug("dropping short utterance",
				"speech_frames", e.speechFrames, "min", e.minSpeechFrames)
		}
		e.reset()
	}
	return events
}

// scoreFrame classifies one frame. Pre-emphasis is applied to a scratch copy
// so the stored utterance audio stays unfiltered. Frames below the energy
// gate and frames the detector fails on both count as silence.
func (e *Endpointer) scoreFrame(ctx context.Context, frame []byte) bool {
	if audio.RMS(frame) < e.cfg.MinEnergy {
		return false
	}
	filtered := audio.PreEmphasis(frame, e.cfg.PreEmphasisAlpha)
	p, err := e.det.Score(ctx, filtered)
	if err != nil {
		e.logger.Warn("vad scoring failed, treating frame as silence", "error", err)
		return false
	}
	return p >= e.cfg.SpeechThreshold
}
