package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "gemini", "mistral", "groq", "ollama", "deepseek", "llamacpp", "llamafile"},
	"stt": {"whisper"},
	"tts": {"coqui"},
	"vad": {"silero", "energy"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("vad", cfg.Providers.VAD.Name)

	if cfg.Database.PostgresDSN == "" {
		slog.Warn("database.postgres_dsn is empty; call records will not be persisted")
	}

	p := cfg.Pipeline
	if p.VADSpeechThreshold < 0 || p.VADSpeechThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.vad_speech_threshold %.2f is out of range [0, 1]", p.VADSpeechThreshold))
	}
	if p.MinAudioEnergy < 0 || p.MinAudioEnergy > 1 {
		errs = append(errs, fmt.Errorf("pipeline.min_audio_energy %.4f is out of range [0, 1]", p.MinAudioEnergy))
	}
	if p.PreemphasisAlpha < 0 || p.PreemphasisAlpha >= 1 {
		errs = append(errs, fmt.Errorf("pipeline.preemphasis_alpha %.2f is out of range [0, 1)", p.PreemphasisAlpha))
	}
	if p.LLMTemperature < 0 || p.LLMTemperature > 2 {
		errs = append(errs, fmt.Errorf("pipeline.llm_temperature %.2f is out of range [0, 2]", p.LLMTemperature))
	}
	for name, v := range map[string]int{
		"pipeline.vad_silence_timeout_ms":        p.VADSilenceTimeoutMs,
		"pipeline.min_speech_duration_ms":        p.MinSpeechDurationMs,
		"pipeline.min_bargein_speech_chunks":     p.MinBargeinSpeechChunks,
		"pipeline.audio_queue_check_interval_ms": p.AudioQueueCheckIntervalMs,
		"pipeline.sentence_min_words":            p.SentenceMinWords,
		"pipeline.llm_max_history":               p.LLMMaxHistory,
		"pipeline.tts_workers":                   p.TTSWorkers,
		"pipeline.stt_workers":                   p.STTWorkers,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
