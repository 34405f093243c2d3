package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/errgroup"

	"github.com/AmaanP314/AI-Caller-Agent/internal/endpoint"
	"github.com/AmaanP314/AI-Caller-Agent/internal/policy"
	"github.com/AmaanP314/AI-Caller-Agent/internal/session"
	"github.com/AmaanP314/AI-Caller-Agent/internal/turn"
	"github.com/AmaanP314/AI-Caller-Agent/internal/wire"
)

// Final call statuses persisted in the call record.
const (
	statusCompleted    = "completed"
	statusDisconnected = "disconnected"
	statusError        = "error"
)

const (
	// audioQueueDepth bounds how many synthesized sentences can wait for the
	// sender. Small on purpose: a deep queue makes barge-in feel sluggish.
	audioQueueDepth = 5

	transcriptQueueDepth = 4

	utteranceQueueDepth = 8
)

// errCallEnded tears the call's goroutine group down without being reported
// as a failure.
var errCallEnded = errors.New("gateway: call ended")

// transcriptReq is one unit of work for the turn handler. The voice path
// leaves reply nil; the admin text endpoint sets it (buffered, capacity 1) to
// collect the agent's full response synchronously.
type transcriptReq struct {
	text  string
	reply chan turnReply
}

type turnReply struct {
	text string
	err  error
}

// Call is one live call: the WebSocket to the relay plus all per-call
// pipeline state.
type Call struct {
	id  string
	ws  *websocket.Conn
	srv *Server

	agent      *policy.Agent
	pipeline   *turn.Pipeline
	endpointer *endpoint.Endpointer
	sig        *turn.Signal

	// audioCh carries synthesized sentences to the sender; a nil chunk marks
	// end of agent speech. Closed by the turn handler after the final turn.
	audioCh chan []byte

	// transcriptCh carries endpointed transcripts to the turn handler. An
	// empty text requests the opening greeting.
	transcriptCh chan transcriptReq

	// utterCh carries endpointed utterance audio to the transcribe loop.
	// Transcription runs sequentially per call so transcripts reach the turn
	// handler in the order the caller spoke them.
	utterCh chan []byte

	agentSpeaking atomic.Bool
	cancel        context.CancelFunc

	mu     sync.Mutex
	status string
}

// newCall assembles the per-call pipeline around an accepted WebSocket.
func (s *Server) newCall(sessionID string, ws *websocket.Conn) *Call {
	logger := s.logger.With("session_id", sessionID)

	agent := policy.NewAgent(s.providers.LLM,
		append([]policy.AgentOption{policy.WithLogger(logger)}, s.agentOpts...)...)
	pipeline := turn.New(agent, s.providers.TTS,
		append([]turn.Option{turn.WithLogger(logger), turn.WithMetrics(s.metrics)}, s.turnOpts...)...)

	return &Call{
		id:           sessionID,
		ws:           ws,
		srv:          s,
		agent:        agent,
		pipeline:     pipeline,
		endpointer:   endpoint.New(s.providers.VAD, s.endpointCfg, logger),
		sig:          turn.NewSignal(),
		audioCh:      make(chan []byte, audioQueueDepth),
		transcriptCh: make(chan transcriptReq, transcriptQueueDepth),
		utterCh:      make(chan []byte, utteranceQueueDepth),
	}
}

// run drives the call to completion and persists its record. Exactly one
// Save happens per call, at teardown.
func (c *Call) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	defer cancel()

	logger := c.srv.logger.With("session_id", c.id)
	logger.Info("call connected")

	c.srv.metrics.ActiveCalls.Add(ctx, 1)
	defer c.srv.metrics.ActiveCalls.Add(context.Background(), -1)

	c.srv.sessions.Start(c.id, "")

	// The greeting turn runs before any caller audio arrives.
	c.transcriptCh <- transcriptReq{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.receive(gctx) })
	g.Go(func() error { return c.transcribeLoop(gctx) })
	g.Go(func() error { return c.handleTurns(gctx) })
	g.Go(func() error { return c.send(gctx) })
	err := g.Wait()

	c.ws.Close(websocket.StatusNormalClosure, "call ended")

	status := c.finalStatus(err)
	logger.Info("call ended", "status", status)

	// The request context is gone once the WebSocket handler unwinds; give
	// persistence its own deadline.
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer saveCancel()

	if rec, ok := c.srv.sessions.End(c.id, status, c.agent.Info()); ok {
		if err := c.srv.store.Save(saveCtx, rec); err != nil {
			logger.Error("saving call record failed", "error", err)
		}
	}
	c.srv.metrics.RecordCall(saveCtx, status)
}

// handleTurns consumes transcripts one at a time and runs a full agent turn
// for each. A call-control outcome ends the loop and closes audioCh so the
// sender can flush remaining audio and signal hangup.
func (c *Call) handleTurns(ctx context.Context) error {
	for {
		var req transcriptReq
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req = <-c.transcriptCh:
		}

		// A fresh turn re-arms barge-in.
		c.sig.Clear()

		out, err := c.pipeline.RunTurn(ctx, c.sig, c.audioCh, req.text)
		if out.Text != "" {
			c.srv.sessions.Append(c.id, session.RoleAgent, out.Text)
			wsjson.Write(ctx, c.ws, wire.Transcript(session.RoleAgent, out.Text))
		}
		if req.reply != nil {
			req.reply <- turnReply{text: out.Text, err: err}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.setStatus(statusError)
			return err
		}

		if out.EndCall || out.Forward {
			c.setStatus(out.Reason)
			close(c.audioCh)
			return nil
		}
	}
}

// setStatus records the first final status; later writers lose.
func (c *Call) setStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == "" && status != "" {
		c.status = status
	}
}

// finalStatus maps the goroutine group's exit into a persisted call status.
func (c *Call) finalStatus(err error) string {
	c.mu.Lock()
	status := c.status
	c.mu.Unlock()
	if status != "" {
		return status
	}
	switch {
	case err == nil, errors.Is(err, errCallEnded), errors.Is(err, context.Canceled):
		return statusCompleted
	default:
		return statusError
	}
}
