package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked individually;
// anything else sets RestartRequired.
type ConfigDiff struct {
	// TTSChanged, STTChanged, and LLMChanged are true when the corresponding
	// provider chain or the shared failover tuning changed, meaning the
	// capability orchestrator should be reconfigured.
	TTSChanged bool
	STTChanged bool
	LLMChanged bool

	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired is true when a non-reloadable field changed
	// (listen address, TLS, audit DSN).
	RestartRequired bool
}

// Changed reports whether any tracked difference was found.
func (d ConfigDiff) Changed() bool {
	return d.TTSChanged || d.STTChanged || d.LLMChanged || d.LogLevelChanged || d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// A failover tuning change affects every capability.
	tuningChanged := old.Failover != new.Failover

	d.TTSChanged = tuningChanged || !chainsEqual(old.Providers.TTS, new.Providers.TTS)
	d.STTChanged = tuningChanged || !chainsEqual(old.Providers.STT, new.Providers.STT)
	d.LLMChanged = tuningChanged || !chainsEqual(old.Providers.LLM, new.Providers.LLM)

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = true
	}
	if !reflect.DeepEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = true
	}
	if old.Audit != new.Audit {
		d.RestartRequired = true
	}

	return d
}

// chainsEqual compares two provider chains entry by entry, in order.
// Priority order matters, so no normalisation is applied.
func chainsEqual(a, b []ProviderEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
