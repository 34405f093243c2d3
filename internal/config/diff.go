package config

import "reflect"

// Diff describes what changed between two configs and whether the change can
// be applied to a running service. Log level and pipeline tunables are safe
// to hot-reload; anything touching providers, addresses, or the database
// needs a restart.
type Diff struct {
	// LogLevelChanged is true when the log level differs; NewLogLevel holds
	// the new value.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PipelineChanged is true when any pipeline tunable differs. New calls
	// pick the new values up; live calls keep the old ones.
	PipelineChanged bool

	// RestartRequired is true when server, relay, provider, or database
	// settings differ. These are bound at startup.
	RestartRequired bool
}

// Compare returns what changed between old and new.
func Compare(old, new *Config) Diff {
	d := Diff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Pipeline != new.Pipeline {
		d.PipelineChanged = true
	}
	if old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Relay != new.Relay ||
		!providerEqual(old.Providers.LLM, new.Providers.LLM) ||
		!providerEqual(old.Providers.STT, new.Providers.STT) ||
		!providerEqual(old.Providers.TTS, new.Providers.TTS) ||
		!providerEqual(old.Providers.VAD, new.Providers.VAD) ||
		old.Database != new.Database {
		d.RestartRequired = true
	}
	return d
}

// providerEqual compares two entries field by field; the Options map keeps
// ProviderEntry from being directly comparable.
func providerEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	return reflect.DeepEqual(a.Options, b.Options)
}
