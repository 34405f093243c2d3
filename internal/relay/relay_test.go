package relay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/AmaanP314/AI-Caller-Agent/internal/wire"
)

// fakeAgent accepts one WebSocket call and exposes its message streams.
type fakeAgent struct {
	srv      *httptest.Server
	received chan wire.Message
	send     chan wire.Message
	path     chan string
}

func newFakeAgent(t *testing.T) *fakeAgent {
	t.Helper()
	a := &fakeAgent{
		received: make(chan wire.Message, 32),
		send:     make(chan wire.Message, 32),
		path:     make(chan string, 1),
	}
	a.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.path <- r.URL.Path
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		ctx := r.Context()
		go func() {
			for msg := range a.send {
				if err := wsjson.Write(ctx, ws, msg); err != nil {
					return
				}
			}
		}()
		for {
			var msg wire.Message
			if err := wsjson.Read(ctx, ws, &msg); err != nil {
				return
			}
			a.received <- msg
		}
	}))
	t.Cleanup(a.srv.Close)
	return a
}

func (a *fakeAgent) wsURL() string {
	return "ws" + strings.TrimPrefix(a.srv.URL, "http")
}

func recvMessage(t *testing.T, ch <-chan wire.Message) wire.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for agent message")
		return wire.Message{}
	}
}

func TestRelayBridgesCall(t *testing.T) {
	agent := newFakeAgent(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(agent.wsURL(), WithPacing(time.Millisecond))
	go r.Serve(ctx, ln)

	// Asterisk side: handshake, then one 20 ms audio frame.
	pbx, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer pbx.Close()
	pbx.SetDeadline(time.Now().Add(5 * time.Second))

	sessionID := uuid.New()
	if err := WriteFrame(pbx, Frame{Type: FrameUUID, Payload: sessionID[:]}); err != nil {
		t.Fatal(err)
	}
	callerAudio := bytes.Repeat([]byte{0x10, 0x00}, AudioFrameBytes/2)
	if err := WriteFrame(pbx, Frame{Type: FrameAudio, Payload: callerAudio}); err != nil {
		t.Fatal(err)
	}

	// The relay must dial the per-session path.
	select {
	case path := <-agent.path:
		if want := "/ws/vicidial/" + sessionID.String(); path != want {
			t.Errorf("dial path = %q, want %q", path, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("agent never dialled")
	}

	// Caller audio arrives upsampled to 16 kHz: 320 bytes in, ~640 out.
	msg := recvMessage(t, agent.received)
	if msg.Type != wire.TypeAudioData {
		t.Fatalf("message type = %q", msg.Type)
	}
	pcm, err := msg.PCM()
	if err != nil {
		t.Fatal(err)
	}
	if len(pcm) < 636 || len(pcm) > 644 {
		t.Errorf("upsampled audio = %d bytes, want ~640", len(pcm))
	}

	// Agent audio comes back downsampled and framed.
	agentPCM := bytes.Repeat([]byte{0x20, 0x00}, 320) // 640 bytes @ 16 kHz
	agent.send <- wire.AudioResponse(agentPCM, 16000)

	f, err := ReadFrame(pbx)
	if err != nil {
		t.Fatalf("read playback frame: %v", err)
	}
	if f.Type != FrameAudio {
		t.Fatalf("playback frame type = 0x%02x", byte(f.Type))
	}
	if len(f.Payload) < 316 || len(f.Payload) > AudioFrameBytes {
		t.Errorf("playback frame = %d bytes, want ~320", len(f.Payload))
	}

	// Hangup from the PBX reaches the agent as a wire hangup.
	if err := WriteFrame(pbx, Frame{Type: FrameHangup}); err != nil {
		t.Fatal(err)
	}
	for {
		msg := recvMessage(t, agent.received)
		if msg.Type == wire.TypeHangup {
			break
		}
	}
}

func TestRelayClosesSocketAfterAgentHangup(t *testing.T) {
	agent := newFakeAgent(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(agent.wsURL(), WithPacing(time.Millisecond))
	go r.Serve(ctx, ln)

	pbx, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer pbx.Close()
	pbx.SetDeadline(time.Now().Add(5 * time.Second))

	sessionID := uuid.New()
	if err := WriteFrame(pbx, Frame{Type: FrameUUID, Payload: sessionID[:]}); err != nil {
		t.Fatal(err)
	}
	<-agent.path

	agent.send <- wire.Message{Type: wire.TypeHangup}

	f, err := ReadFrame(pbx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if f.Type != FrameHangup {
		t.Fatalf("frame type = 0x%02x, want hangup", byte(f.Type))
	}

	// The relay owns the socket teardown: after emitting hangup the next read
	// must see the connection closed, not block until the PBX gives up.
	if _, err := ReadFrame(pbx); !errors.Is(err, io.EOF) {
		t.Errorf("read after hangup = %v, want EOF from a closed socket", err)
	}
}

func TestRelayEmitsOnlyFullFrames(t *testing.T) {
	agent := newFakeAgent(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New(agent.wsURL(), WithPacing(time.Millisecond))
	go r.Serve(ctx, ln)

	pbx, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer pbx.Close()
	pbx.SetDeadline(time.Now().Add(5 * time.Second))

	sessionID := uuid.New()
	if err := WriteFrame(pbx, Frame{Type: FrameUUID, Payload: sessionID[:]}); err != nil {
		t.Fatal(err)
	}
	<-agent.path

	// 650 samples at 16 kHz downsample to 650 bytes: two full frames plus a
	// 10-byte tail that must be held back, then zero-padded on the hangup
	// drain rather than sent short mid-stream.
	agent.send <- wire.AudioResponse(bytes.Repeat([]byte{0x30, 0x00}, 650), 16000)
	agent.send <- wire.Message{Type: wire.TypeHangup}

	var audioFrames int
	for {
		f, err := ReadFrame(pbx)
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if f.Type == FrameHangup {
			break
		}
		if f.Type != FrameAudio {
			t.Fatalf("frame type = 0x%02x", byte(f.Type))
		}
		audioFrames++
		if len(f.Payload) != AudioFrameBytes {
			t.Errorf("frame %d = %d bytes, want exactly %d", audioFrames, len(f.Payload), AudioFrameBytes)
		}
	}
	if audioFrames != 3 {
		t.Errorf("audio frames = %d, want 2 full + 1 padded tail", audioFrames)
	}
}

func TestRelayPacesPlayback(t *testing.T) {
	agent := newFakeAgent(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const pacing = 20 * time.Millisecond
	r := New(agent.wsURL(), WithPacing(pacing))
	go r.Serve(ctx, ln)

	pbx, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer pbx.Close()
	pbx.SetDeadline(time.Now().Add(5 * time.Second))

	sessionID := uuid.New()
	if err := WriteFrame(pbx, Frame{Type: FrameUUID, Payload: sessionID[:]}); err != nil {
		t.Fatal(err)
	}
	<-agent.path

	// 100 ms of agent audio: five 320-byte frames after downsampling. They
	// must arrive one per tick, not as a burst.
	agent.send <- wire.AudioResponse(bytes.Repeat([]byte{0x30, 0x00}, 1600), 16000)

	var first time.Time
	for i := 0; i < 5; i++ {
		f, err := ReadFrame(pbx)
		if err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		if f.Type != FrameAudio || len(f.Payload) != AudioFrameBytes {
			t.Fatalf("frame %d: type 0x%02x, %d bytes", i, byte(f.Type), len(f.Payload))
		}
		if i == 0 {
			first = time.Now()
		}
	}

	// Four inter-frame gaps at 20 ms each; allow scheduler slack.
	if elapsed := time.Since(first); elapsed < 3*pacing {
		t.Errorf("five frames in %v, want real-time pacing (≥ %v)", elapsed, 4*pacing)
	}
}

func TestRelayInterruptFlushesPlayback(t *testing.T) {
	agent := newFakeAgent(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Slow pacing: queued audio sits in the buffer long enough to be flushed.
	r := New(agent.wsURL(), WithPacing(time.Hour))
	go r.Serve(ctx, ln)

	pbx, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer pbx.Close()
	pbx.SetDeadline(time.Now().Add(5 * time.Second))

	sessionID := uuid.New()
	if err := WriteFrame(pbx, Frame{Type: FrameUUID, Payload: sessionID[:]}); err != nil {
		t.Fatal(err)
	}
	<-agent.path

	// Queue a response, flush it with an interrupt, then hang up from the
	// agent side. The only frame the PBX may see is the hangup.
	agent.send <- wire.AudioResponse(bytes.Repeat([]byte{0x30, 0x00}, 1600), 16000)
	agent.send <- wire.Message{Type: wire.TypeInterrupt}
	agent.send <- wire.Message{Type: wire.TypeHangup}

	f, err := ReadFrame(pbx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if f.Type != FrameHangup {
		t.Errorf("frame type = 0x%02x, want hangup (flushed audio leaked)", byte(f.Type))
	}
}
