package gateway

import (
	"context"
	"time"

	"github.com/coder/websocket/wsjson"

	"github.com/AmaanP314/AI-Caller-Agent/internal/wire"
)

// send forwards synthesized audio to the relay and relays interrupts.
//
// The loop polls the audio queue on a short ticker so it can react to a
// barge-in even while no audio is flowing. Interrupt handling is
// edge-triggered: one wire interrupt per signal raise, sent after flushing
// whatever the interrupted turn had queued. The handler clears the signal at
// the next turn start, which re-arms the edge.
func (c *Call) send(ctx context.Context) error {
	ticker := time.NewTicker(c.srv.pollInterval)
	defer ticker.Stop()

	handled := false
	for {
		if raised := c.sig.Raised(); raised && !handled {
			handled = true
			c.flushAudio()
			c.agentSpeaking.Store(false)
			if err := wsjson.Write(ctx, c.ws, wire.Message{Type: wire.TypeInterrupt}); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.setStatus(statusDisconnected)
				return errCallEnded
			}
		} else if !raised {
			handled = false
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case pcm, ok := <-c.audioCh:
			if !ok {
				// Final turn done and queue fully drained: the relay plays
				// out what it buffered, then hangs up the PBX leg.
				wsjson.Write(ctx, c.ws, wire.Message{Type: wire.TypeHangup})
				return errCallEnded
			}
			if pcm == nil {
				c.agentSpeaking.Store(false)
				continue
			}
			if c.sig.Raised() {
				// Stale chunk from the interrupted turn.
				continue
			}
			c.agentSpeaking.Store(true)
			msg := wire.AudioResponse(pcm, c.srv.providers.TTS.SampleRate())
			if err := wsjson.Write(ctx, c.ws, msg); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.setStatus(statusDisconnected)
				return errCallEnded
			}

		case <-ticker.C:
			// Re-evaluate the interrupt edge.
		}
	}
}

// flushAudio discards queued chunks without blocking.
func (c *Call) flushAudio() {
	for {
		select {
		case pcm, ok := <-c.audioCh:
			if !ok {
				return
			}
			_ = pcm
		default:
			return
		}
	}
}
