// Package relay bridges Asterisk AudioSocket calls to the agent service.
//
// Asterisk opens one TCP connection per call and speaks the AudioSocket
// framing: a UUID handshake, then 20 ms frames of 8 kHz 16-bit mono PCM. The
// relay dials the agent's WebSocket, upsamples caller audio to 16 kHz on the
// way in, downsamples agent audio to 8 kHz on the way out, and paces playback
// so the PBX always receives real-time audio regardless of how fast the agent
// produces it. An interrupt from the agent flushes any audio still queued for
// playback, which is what makes barge-in feel immediate to the caller.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/errgroup"

	"github.com/AmaanP314/AI-Caller-Agent/internal/wire"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/audio"
)

const (
	pbxSampleRate   = 8000
	agentSampleRate = 16000

	defaultPacing    = 20 * time.Millisecond
	defaultKeepalive = 20 * time.Second
)

// errCallEnded tears down one call's goroutine group without being reported
// as a failure.
var errCallEnded = errors.New("relay: call ended")

// Option is a functional option for configuring a Relay.
type Option func(*Relay)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// WithPacing overrides the playback frame interval. Defaults to 20 ms, the
// AudioSocket frame duration; tests shorten it.
func WithPacing(d time.Duration) Option {
	return func(r *Relay) {
		r.pacing = d
	}
}

// WithKeepalive overrides the WebSocket ping interval. Defaults to 20 s.
func WithKeepalive(d time.Duration) Option {
	return func(r *Relay) {
		r.keepalive = d
	}
}

// Relay accepts AudioSocket connections and bridges each to the agent.
type Relay struct {
	agentURL  string
	logger    *slog.Logger
	pacing    time.Duration
	keepalive time.Duration
}

// New creates a Relay that bridges calls to the agent service at agentURL
// (e.g. "ws://localhost:8080").
func New(agentURL string, opts ...Option) *Relay {
	r := &Relay{
		agentURL:  agentURL,
		logger:    slog.Default(),
		pacing:    defaultPacing,
		keepalive: defaultKeepalive,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Serve accepts connections on ln until ctx is cancelled. Each call is
// bridged on its own goroutine group.
func (r *Relay) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("relay: accept: %w", err)
		}
		go func() {
			if err := r.handleCall(ctx, conn); err != nil {
				r.logger.Error("call bridge failed", "remote", conn.RemoteAddr(), "error", err)
			}
		}()
	}
}

// handleCall bridges one AudioSocket connection for its whole lifetime.
func (r *Relay) handleCall(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	sessionID, err := ReadHandshake(conn)
	if err != nil {
		return err
	}
	logger := r.logger.With("session_id", sessionID.String())
	logger.Info("call connected", "remote", conn.RemoteAddr())

	ws, _, err := websocket.Dial(ctx, r.agentURL+"/ws/vicidial/"+sessionID.String(), nil)
	if err != nil {
		return fmt.Errorf("relay: dial agent: %w", err)
	}
	defer ws.CloseNow()

	g, ctx := errgroup.WithContext(ctx)
	msgCh := make(chan wire.Message, 32)

	// ReadFrame has no context hookup, so closing the socket is the only way
	// to unblock the frame reader. This fires both on server shutdown and
	// when any pump ends the call, which is what closes the PBX side after a
	// hangup frame is emitted.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	g.Go(func() error { return r.pbxToAgent(ctx, conn, ws) })
	g.Go(func() error { return r.readAgent(ctx, ws, msgCh) })
	g.Go(func() error { return r.playToPBX(ctx, conn, msgCh) })
	g.Go(func() error { return r.pingAgent(ctx, ws) })

	err = g.Wait()
	ws.Close(websocket.StatusNormalClosure, "call ended")
	logger.Info("call ended")

	if errors.Is(err, errCallEnded) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// pbxToAgent forwards caller audio upsampled to 16 kHz. A hangup frame (or a
// closed socket) is translated into a wire hangup so the agent can finish the
// call record.
func (r *Relay) pbxToAgent(ctx context.Context, conn net.Conn, ws *websocket.Conn) error {
	up := audio.NewResampler(pbxSampleRate, agentSampleRate)
	for {
		f, err := ReadFrame(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				wsjson.Write(ctx, ws, wire.Message{Type: wire.TypeHangup})
				return errCallEnded
			}
			return err
		}

		switch f.Type {
		case FrameAudio:
			msg := wire.AudioData(up.Resample(f.Payload))
			if err := wsjson.Write(ctx, ws, msg); err != nil {
				return fmt.Errorf("relay: forward audio: %w", err)
			}
		case FrameHangup:
			wsjson.Write(ctx, ws, wire.Message{Type: wire.TypeHangup})
			return errCallEnded
		case FrameUUID:
			// Duplicate handshake, ignore.
		default:
			r.logger.Debug("skipping unknown frame type", "type", fmt.Sprintf("0x%02x", byte(f.Type)))
		}
	}
}

// readAgent pumps agent WebSocket messages into msgCh for the pacer.
func (r *Relay) readAgent(ctx context.Context, ws *websocket.Conn, msgCh chan<- wire.Message) error {
	defer close(msgCh)
	for {
		var msg wire.Message
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return errCallEnded
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("relay: read agent: %w", err)
		}
		select {
		case msgCh <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// playToPBX buffers agent audio and writes it to the PBX one full 320-byte
// frame per pacing tick, so playback stays real time. A partial tail is held
// until more audio arrives; the PBX never sees a short frame mid-call. The
// downsampler is created from the first audio_response's declared rate. An
// interrupt discards everything buffered but not yet played; a hangup from
// the agent lets the buffer play out first (tail zero-padded to a full
// frame) so the farewell is heard.
func (r *Relay) playToPBX(ctx context.Context, conn net.Conn, msgCh <-chan wire.Message) error {
	var (
		buf      []byte
		down     *audio.Resampler
		draining bool
	)
	ticker := time.NewTicker(r.pacing)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-msgCh:
			if !ok {
				return errCallEnded
			}
			switch msg.Type {
			case wire.TypeAudioResponse:
				pcm, err := msg.PCM()
				if err != nil {
					r.logger.Warn("dropping undecodable audio", "error", err)
					continue
				}
				if down == nil {
					rate := msg.SampleRate
					if rate == 0 {
						rate = agentSampleRate
					}
					down = audio.NewResampler(rate, pbxSampleRate)
				}
				buf = append(buf, down.Resample(pcm)...)

			case wire.TypeInterrupt:
				buf = buf[:0]

			case wire.TypeHangup:
				if len(buf) == 0 {
					WriteFrame(conn, Frame{Type: FrameHangup})
					return errCallEnded
				}
				draining = true
			}

		case <-ticker.C:
			if len(buf) >= AudioFrameBytes {
				if err := WriteFrame(conn, Frame{Type: FrameAudio, Payload: buf[:AudioFrameBytes]}); err != nil {
					return err
				}
				buf = buf[AudioFrameBytes:]
				continue
			}
			if !draining {
				continue
			}
			if len(buf) > 0 {
				tail := make([]byte, AudioFrameBytes)
				copy(tail, buf)
				buf = buf[:0]
				if err := WriteFrame(conn, Frame{Type: FrameAudio, Payload: tail}); err != nil {
					return err
				}
				continue
			}
			WriteFrame(conn, Frame{Type: FrameHangup})
			return errCallEnded
		}
	}
}

// pingAgent keeps the WebSocket alive across PBX silence.
func (r *Relay) pingAgent(ctx context.Context, ws *websocket.Conn) error {
	ticker := time.NewTicker(r.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := ws.Ping(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("relay: ping agent: %w", err)
			}
		}
	}
}
