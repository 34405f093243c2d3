package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/AmaanP314/AI-Caller-Agent/internal/endpoint"
	"github.com/AmaanP314/AI-Caller-Agent/internal/session"
	"github.com/AmaanP314/AI-Caller-Agent/internal/wire"
)

// receive pumps relay messages: caller audio goes through the endpointer,
// completed utterances are transcribed, and barge-ins raise the shared
// interrupt signal. Returns errCallEnded on a clean hangup.
func (c *Call) receive(ctx context.Context) error {
	for {
		var msg wire.Message
		if err := wsjson.Read(ctx, c.ws, &msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				c.setStatus(statusCompleted)
				return errCallEnded
			}
			c.setStatus(statusDisconnected)
			return errCallEnded
		}

		switch msg.Type {
		case wire.TypeAudioData:
			pcm, err := msg.PCM()
			if err != nil {
				c.srv.logger.Warn("dropping undecodable caller audio",
					"session_id", c.id, "error", err)
				continue
			}
			c.dispatch(ctx, c.endpointer.Push(ctx, pcm, c.agentSpeaking.Load()))

		case wire.TypeHangup:
			// Trailing speech still becomes a transcript in the record, even
			// though no turn will run for it.
			c.dispatch(ctx, c.endpointer.Finalize())
			c.setStatus(statusCompleted)
			return errCallEnded

		default:
			// The relay only ever sends audio_data and hangup.
		}
	}
}

// dispatch reacts to endpointer events.
func (c *Call) dispatch(ctx context.Context, events []endpoint.Event) {
	for _, ev := range events {
		switch ev.Type {
		case endpoint.EventBargeIn:
			c.sig.Raise()
			c.srv.metrics.RecordBargeIn(ctx)
			c.srv.logger.Debug("barge-in detected", "session_id", c.id)

		case endpoint.EventUtterance:
			// Hand off so barge-in detection never waits on STT. A full queue
			// means the transcribe loop is hopelessly behind; dropping the
			// utterance beats stalling the receive pump.
			select {
			case c.utterCh <- ev.PCM:
			default:
				c.srv.logger.Warn("utterance queue full, dropping",
					"session_id", c.id, "bytes", len(ev.PCM))
			}
		}
	}
}

// transcribeLoop runs STT for this call's utterances one at a time, so
// transcripts reach the turn handler in spoken order even when transcription
// times vary.
func (c *Call) transcribeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pcm := <-c.utterCh:
			c.transcribe(ctx, pcm)
		}
	}
}

// transcribe runs STT for one utterance under the shared worker cap and
// queues the transcript for the turn handler. Transcription failures and
// empty results drop the utterance; the caller will repeat themselves, which
// beats responding to a hallucinated transcript.
func (c *Call) transcribe(ctx context.Context, pcm []byte) {
	if err := c.srv.sttWorkers.Acquire(ctx, 1); err != nil {
		return
	}
	defer c.srv.sttWorkers.Release(1)

	start := time.Now()
	text, err := c.srv.providers.STT.Transcribe(ctx, pcm)
	c.srv.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() == nil {
			c.srv.logger.Warn("transcription failed", "session_id", c.id, "error", err)
			c.srv.metrics.RecordProviderError(ctx, "stt", "transcribe")
		}
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	c.srv.sessions.Append(c.id, session.RoleUser, text)
	wsjson.Write(ctx, c.ws, wire.Transcript(session.RoleUser, text))

	select {
	case c.transcriptCh <- transcriptReq{text: text}:
	case <-ctx.Done():
	}
}
