// Package gateway is the agent-side service surface: it accepts the relay's
// per-call WebSocket at /ws/vicidial/{session_id} and runs the full voice
// pipeline for each connected call, plus a small HTTP admin API for
// inspecting and steering live calls.
package gateway

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/semaphore"

	"github.com/AmaanP314/AI-Caller-Agent/internal/endpoint"
	"github.com/AmaanP314/AI-Caller-Agent/internal/observe"
	"github.com/AmaanP314/AI-Caller-Agent/internal/policy"
	"github.com/AmaanP314/AI-Caller-Agent/internal/session"
	"github.com/AmaanP314/AI-Caller-Agent/internal/turn"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/llm"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/stt"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/tts"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/vad"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/store"
)

const (
	defaultPollInterval = 20 * time.Millisecond
	defaultSTTWorkers   = 4
)

// Providers bundles the external model backends one Server drives.
type Providers struct {
	LLM llm.Provider
	STT stt.Transcriber
	TTS tts.Synthesizer
	VAD vad.Detector
}

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithEndpointConfig sets the endpointing tunables for new calls.
func WithEndpointConfig(cfg endpoint.Config) Option {
	return func(s *Server) {
		s.endpointCfg = cfg
	}
}

// WithTurnOptions appends options applied to each call's turn pipeline.
func WithTurnOptions(opts ...turn.Option) Option {
	return func(s *Server) {
		s.turnOpts = append(s.turnOpts, opts...)
	}
}

// WithAgentOptions appends options applied to each call's policy agent.
func WithAgentOptions(opts ...policy.AgentOption) Option {
	return func(s *Server) {
		s.agentOpts = append(s.agentOpts, opts...)
	}
}

// WithPollInterval sets the sender's audio-queue poll interval. Defaults to
// 20 ms; tests shorten it.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		s.pollInterval = d
	}
}

// WithSTTWorkers caps concurrent transcription requests across all calls.
func WithSTTWorkers(n int64) Option {
	return func(s *Server) {
		s.sttWorkers = semaphore.NewWeighted(n)
	}
}

// WithConfigView sets the value served at GET /config. Serve a sanitized
// copy; whatever is passed here is marshalled verbatim.
func WithConfigView(v any) Option {
	return func(s *Server) {
		s.configView = v
	}
}

// Server runs the voice pipeline for every connected call.
type Server struct {
	providers Providers
	store     store.CallStore
	sessions  *session.Manager

	logger       *slog.Logger
	metrics      *observe.Metrics
	endpointCfg  endpoint.Config
	turnOpts     []turn.Option
	agentOpts    []policy.AgentOption
	pollInterval time.Duration
	sttWorkers   *semaphore.Weighted
	configView   any

	mu    sync.Mutex
	calls map[string]*Call
}

// NewServer creates a Server over the given providers and call store.
func NewServer(providers Providers, st store.CallStore, opts ...Option) *Server {
	s := &Server{
		providers:    providers,
		store:        st,
		sessions:     session.NewManager(),
		logger:       slog.Default(),
		metrics:      observe.DefaultMetrics(),
		pollInterval: defaultPollInterval,
		sttWorkers:   semaphore.NewWeighted(defaultSTTWorkers),
		configView:   map[string]string{},
		calls:        make(map[string]*Call),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register installs the WebSocket endpoint and the admin API on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/vicidial/{session_id}", s.handleWS)
	s.registerAdmin(mux)
}

// handleWS upgrades the relay's connection and runs the call to completion.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}
	if s.lookupCall(sessionID) != nil {
		http.Error(w, "session already connected", http.StatusConflict)
		return
	}

	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Error("websocket accept failed", "session_id", sessionID, "error", err)
		return
	}

	c := s.newCall(sessionID, ws)
	s.addCall(c)
	defer s.removeCall(sessionID)

	c.run(r.Context())
}

func (s *Server) addCall(c *Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[c.id] = c
}

func (s *Server) removeCall(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.calls, sessionID)
}

func (s *Server) lookupCall(sessionID string) *Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[sessionID]
}

func (s *Server) activeCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for id := range s.calls {
		out = append(out, id)
	}
	return out
}
