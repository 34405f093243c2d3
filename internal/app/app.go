// Package app wires all subsystems into a running caller-agent service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithLogger). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AmaanP314/AI-Caller-Agent/internal/config"
	"github.com/AmaanP314/AI-Caller-Agent/internal/endpoint"
	"github.com/AmaanP314/AI-Caller-Agent/internal/gateway"
	"github.com/AmaanP314/AI-Caller-Agent/internal/health"
	"github.com/AmaanP314/AI-Caller-Agent/internal/observe"
	"github.com/AmaanP314/AI-Caller-Agent/internal/policy"
	"github.com/AmaanP314/AI-Caller-Agent/internal/turn"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/store"
	storepg "github.com/AmaanP314/AI-Caller-Agent/pkg/store/postgres"
)

// App owns all subsystem lifetimes for the caller-agent service.
type App struct {
	cfg       *config.Config
	providers gateway.Providers
	logger    *slog.Logger

	// Subsystems — initialised in New, torn down in Shutdown.
	store   store.CallStore
	metrics *observe.Metrics
	gateway *gateway.Server
	httpSrv *http.Server

	// closers are called in reverse order during Shutdown.
	closers []func(context.Context) error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a call store instead of creating one from the config.
func WithStore(s store.CallStore) Option {
	return func(a *App) { a.store = s }
}

// WithLogger sets the application logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithMetrics injects metrics instruments and skips OTel SDK setup. Without
// this option New initialises the global OTel providers, which registers a
// Prometheus exporter and must happen at most once per process.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: telemetry setup, call store
// connection, gateway construction, and HTTP route registration.
func New(ctx context.Context, cfg *config.Config, providers gateway.Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Telemetry ─────────────────────────────────────────────────────
	if err := a.initTelemetry(ctx); err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}

	// ── 2. Call store ────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 3. Gateway + HTTP surface ────────────────────────────────────────
	a.initGateway()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initTelemetry sets up the OTel providers with a Prometheus exporter and
// creates the shared metrics instruments.
func (a *App) initTelemetry(ctx context.Context) error {
	if a.metrics != nil {
		return nil
	}

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "caller-agent",
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, shutdown)

	a.metrics = observe.DefaultMetrics()
	return nil
}

// initStore connects the PostgreSQL call store, or falls back to a
// log-and-drop store when no DSN is configured. Injected stores win.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	dsn := a.cfg.Database.PostgresDSN
	if dsn == "" {
		a.logger.Warn("database.postgres_dsn not set, call records will be logged and dropped")
		a.store = &discardStore{logger: a.logger}
		return nil
	}

	st, err := storepg.New(ctx, dsn)
	if err != nil {
		return err
	}
	a.store = st
	a.closers = append(a.closers, func(context.Context) error {
		st.Close()
		return nil
	})
	return nil
}

// initGateway builds the call gateway from the pipeline config and registers
// all HTTP routes: the call WebSocket, the admin surface, health probes, and
// the Prometheus scrape endpoint.
func (a *App) initGateway() {
	p := a.cfg.Pipeline

	a.gateway = gateway.NewServer(a.providers, a.store,
		gateway.WithLogger(a.logger),
		gateway.WithMetrics(a.metrics),
		gateway.WithEndpointConfig(endpoint.Config{
			SpeechThreshold:   p.VADSpeechThreshold,
			SilenceTimeout:    p.SilenceTimeout(),
			MinSpeechDuration: p.MinSpeechDuration(),
			MinBargeInFrames:  p.MinBargeinSpeechChunks,
			MinEnergy:         p.MinAudioEnergy,
			PreEmphasisAlpha:  p.PreemphasisAlpha,
		}),
		gateway.WithTurnOptions(
			turn.WithMinWords(p.SentenceMinWords),
			turn.WithWorkers(int64(p.TTSWorkers)),
		),
		gateway.WithAgentOptions(
			policy.WithTemperature(p.LLMTemperature),
			policy.WithMaxHistory(p.LLMMaxHistory),
		),
		gateway.WithPollInterval(p.AudioQueueCheckInterval()),
		gateway.WithSTTWorkers(int64(p.STTWorkers)),
		gateway.WithConfigView(a.cfg.Sanitized()),
	)

	mux := http.NewServeMux()
	a.gateway.Register(mux)

	health.New(
		health.Checker{Name: "database", Check: a.store.Ping},
		health.Checker{Name: "providers", Check: a.checkProviders},
	).Register(mux)

	mux.Handle("GET /metrics", promhttp.Handler())

	a.httpSrv = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// checkProviders reports which provider slots are unconfigured. Calls cannot
// be served until all four are present.
func (a *App) checkProviders(context.Context) error {
	var missing []string
	if a.providers.LLM == nil {
		missing = append(missing, "llm")
	}
	if a.providers.STT == nil {
		missing = append(missing, "stt")
	}
	if a.providers.TTS == nil {
		missing = append(missing, "tts")
	}
	if a.providers.VAD == nil {
		missing = append(missing, "vad")
	}
	if len(missing) > 0 {
		return fmt.Errorf("not configured: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and blocks until ctx is cancelled or the listener fails.
// On cancellation the server drains in-flight requests before returning.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.httpSrv.ListenAndServe()
	}()

	a.logger.Info("caller-agent listening", "addr", a.cfg.Server.ListenAddr)

	select {
	case err := <-errCh:
		return fmt.Errorf("app: http server: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown drains the HTTP server and tears down all subsystems in
// reverse-init order. It respects the context deadline: if ctx expires before
// all closers finish, remaining closers are skipped and the context error is
// returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))

		if err := a.httpSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("http shutdown error", "err", err)
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](ctx); err != nil {
				a.logger.Warn("closer error", "index", i, "err", err)
			}
		}

		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Fallback store ──────────────────────────────────────────────────────────

// discardStore satisfies store.CallStore when no database is configured.
// Records are logged at Info so a development setup still shows call
// outcomes, then dropped.
type discardStore struct {
	logger *slog.Logger
}

var _ store.CallStore = (*discardStore)(nil)

func (d *discardStore) Save(_ context.Context, rec store.CallRecord) error {
	d.logger.Info("call record (not persisted)",
		"session_id", rec.SessionID,
		"status", rec.Status,
		"total_turns", rec.TotalTurns,
	)
	return nil
}

func (d *discardStore) Get(context.Context, string) (*store.CallRecord, error) {
	return nil, store.ErrNotFound
}

func (d *discardStore) Ping(context.Context) error { return nil }
