// Command caller-agent runs the outbound voice agent service: the call
// WebSocket gateway, the admin API, health probes, and the Prometheus
// scrape endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/AmaanP314/AI-Caller-Agent/internal/app"
	"github.com/AmaanP314/AI-Caller-Agent/internal/config"
	"github.com/AmaanP314/AI-Caller-Agent/internal/gateway"
	"github.com/AmaanP314/AI-Caller-Agent/internal/resilience"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/llm"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/llm/anyllm"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/stt"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/stt/whisper"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/tts"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/tts/coqui"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/vad"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/vad/energy"
	"github.com/AmaanP314/AI-Caller-Agent/pkg/provider/vad/silero"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "caller-agent: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "caller-agent: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so the config watcher can change it at
	// runtime without rebuilding the handler.
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("caller-agent starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, providers, app.WithLogger(logger))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	// Log-level changes apply live; anything else needs a restart.
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Compare(old, new)
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		if d.RestartRequired || d.PipelineChanged {
			slog.Warn("configuration change requires a restart to take effect")
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Synthesizer, error) {
		var opts []coqui.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if speaker := optString(entry.Options, "speaker"); speaker != "" {
			opts = append(opts, coqui.WithSpeaker(speaker))
		}
		if mode := optString(entry.Options, "api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	// ── VAD ───────────────────────────────────────────────────────────────────

	reg.RegisterVAD("silero", func(entry config.ProviderEntry) (vad.Detector, error) {
		return silero.New(entry.BaseURL)
	})

	reg.RegisterVAD("energy", func(entry config.ProviderEntry) (vad.Detector, error) {
		return energy.New(optFloat(entry.Options, "knee")), nil
	})
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in a [gateway.Providers] struct.
func buildProviders(cfg *config.Config, reg *config.Registry) (gateway.Providers, error) {
	var ps gateway.Providers

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			return ps, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		ps.LLM = p
		slog.Info("provider created", "kind", "llm", "name", name, "model", cfg.Providers.LLM.Model)
	}

	if name := cfg.Providers.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			return ps, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		ps.STT = p
		slog.Info("provider created", "kind", "stt", "name", name)
	}

	if name := cfg.Providers.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			return ps, fmt.Errorf("create tts provider %q: %w", name, err)
		}
		ps.TTS = p
		slog.Info("provider created", "kind", "tts", "name", name)
	}

	if name := cfg.Providers.VAD.Name; name != "" {
		p, err := reg.CreateVAD(cfg.Providers.VAD)
		if err != nil {
			return ps, fmt.Errorf("create vad provider %q: %w", name, err)
		}
		ps.VAD = p
		slog.Info("provider created", "kind", "vad", "name", name)

		// A model-backed detector reaches an HTTP sidecar that can go away
		// mid-call. Back it with the energy detector so endpointing keeps
		// working while the breaker is open.
		if name != "energy" {
			fb := resilience.NewVADFallback(p, name, resilience.FallbackConfig{})
			fb.AddFallback("energy", energy.New(optFloat(cfg.Providers.VAD.Options, "knee")))
			ps.VAD = fb
			slog.Info("vad failover enabled", "primary", name, "fallback", "energy")
		}
	}

	return ps, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optFloat extracts a float value from a provider Options map[string]any.
// YAML numbers decode as float64 or int depending on their spelling.
func optFloat(opts map[string]any, key string) float64 {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
