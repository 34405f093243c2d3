package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AmaanP314/AI-Caller-Agent/internal/config"
	"github.com/AmaanP314/AI-Caller-Agent/internal/gateway"
	"github.com/AmaanP314/AI-Caller-Agent/internal/observe"
	llmmock "github.com/AmaanP314/AI-Caller-Agent/pkg/provider/llm/mock"
	sttmock "github.com/AmaanP314/AI-Caller-Agent/pkg/provider/stt/mock"
	ttsmock "github.com/AmaanP314/AI-Caller-Agent/pkg/provider/tts/mock"
	vadmock "github.com/AmaanP314/AI-Caller-Agent/pkg/provider/vad/mock"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/store"
	storemock "github.com/AmaanP314/AI-Caller-Agent/pkg/store/mock"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	var cfg config.Config
	cfg.ApplyDefaults()
	return &cfg
}

func testProviders() gateway.Providers {
	return gateway.Providers{
		LLM: &llmmock.Provider{},
		STT: &sttmock.Transcriber{},
		TTS: &ttsmock.Synthesizer{},
		VAD: &vadmock.Detector{},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(context.Background(), testConfig(t), testProviders(),
		WithStore(&storemock.Store{}),
		WithMetrics(observe.DefaultMetrics()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})
	return a
}

func TestAppRoutes(t *testing.T) {
	a := newTestApp(t)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/", http.StatusOK},
		{"/config", http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			rec := httptest.NewRecorder()
			a.httpSrv.Handler.ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Errorf("GET %s = %d, want %d", tc.path, rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestAppReadyzReportsStoreFailure(t *testing.T) {
	st := &storemock.Store{PingErr: errors.New("connection refused")}
	a, err := New(context.Background(), testConfig(t), testProviders(),
		WithStore(st),
		WithMetrics(observe.DefaultMetrics()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	a.httpSrv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with failing store = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestAppReadyzReportsMissingProvider(t *testing.T) {
	providers := testProviders()
	providers.VAD = nil
	a, err := New(context.Background(), testConfig(t), providers,
		WithStore(&storemock.Store{}),
		WithMetrics(observe.DefaultMetrics()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	a.httpSrv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with missing vad = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestAppShutdownIdempotent(t *testing.T) {
	a := newTestApp(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}

func TestDiscardStore(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Database.PostgresDSN = ""
	a, err := New(context.Background(), cfg, testProviders(),
		WithMetrics(observe.DefaultMetrics()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	if err := a.store.Save(context.Background(), store.CallRecord{SessionID: "s1"}); err != nil {
		t.Errorf("discard Save: %v", err)
	}
	if _, err := a.store.Get(context.Background(), "s1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("discard Get err = %v, want ErrNotFound", err)
	}
	if err := a.store.Ping(context.Background()); err != nil {
		t.Errorf("discard Ping: %v", err)
	}
}
