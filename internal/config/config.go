// Package config provides the configuration schema, loader, file watcher, and
// provider registry for the Vocalis failover server.
package config

import (
	"time"

	"github.com/vocalis-ai/vocalis/internal/failover"
)

// LogLevel controls log verbosity for the Vocalis server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Vocalis.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Failover  FailoverConfig  `yaml:"failover"`
	Providers ProvidersConfig `yaml:"providers"`
	Audit     AuditConfig     `yaml:"audit"`
}

// ServerConfig holds network and logging settings for the Vocalis server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// FailoverConfig tunes the health tracking and retry behaviour shared by all
// capability orchestrators. Zero values fall back to the orchestrator's
// built-in defaults.
type FailoverConfig struct {
	// ErrorThreshold is the number of consecutive failures that marks a
	// provider unhealthy.
	ErrorThreshold int `yaml:"error_threshold"`

	// MaxAttempts caps how many distinct providers a single call may try.
	MaxAttempts int `yaml:"max_attempts"`

	// FailoverDelayMS is how long (in milliseconds) an unhealthy provider is
	// left alone before an optimistic retry is allowed.
	FailoverDelayMS int `yaml:"failover_delay_ms"`

	// HealthCheckIntervalMS is the background probe interval in milliseconds.
	HealthCheckIntervalMS int `yaml:"health_check_interval_ms"`

	// ProbeTimeoutMS bounds a single background probe in milliseconds.
	ProbeTimeoutMS int `yaml:"probe_timeout_ms"`

	// CallTimeoutMS bounds a single provider call in milliseconds.
	// Zero means no per-call timeout.
	CallTimeoutMS int `yaml:"call_timeout_ms"`

	// HistorySize is the number of failover events retained in memory.
	HistorySize int `yaml:"history_size"`
}

// Settings converts the YAML representation into [failover.Settings].
func (f FailoverConfig) Settings() failover.Settings {
	return failover.Settings{
		ErrorThreshold:      f.ErrorThreshold,
		MaxAttempts:         f.MaxAttempts,
		FailoverDelay:       time.Duration(f.FailoverDelayMS) * time.Millisecond,
		HealthCheckInterval: time.Duration(f.HealthCheckIntervalMS) * time.Millisecond,
		ProbeTimeout:        time.Duration(f.ProbeTimeoutMS) * time.Millisecond,
		CallTimeout:         time.Duration(f.CallTimeoutMS) * time.Millisecond,
		HistorySize:         f.HistorySize,
	}
}

// ProvidersConfig declares the priority-ordered provider chain for each
// capability. Each entry selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	TTS []ProviderEntry `yaml:"tts"`
	STT []ProviderEntry `yaml:"stt"`
	LLM []ProviderEntry `yaml:"llm"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai",
	// "deepgram"). Names must be unique within a capability.
	Name string `yaml:"name"`

	// Priority orders providers within a capability; lower is preferred.
	Priority int `yaml:"priority"`

	// Enabled removes the provider from selection when explicitly false.
	// Omitting the field means enabled.
	Enabled *bool `yaml:"enabled"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o",
	// "nova-2").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or
	// nested maps.
	Options map[string]any `yaml:"options"`
}

// IsEnabled reports whether the entry participates in selection.
func (e ProviderEntry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// StringOption returns the named entry from Options as a string, or def when
// absent or of the wrong type.
func (e ProviderEntry) StringOption(key, def string) string {
	v, ok := e.Options[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

// AuditConfig controls the persistent failover-event audit trail.
type AuditConfig struct {
	// PostgresDSN is the connection string for the audit database. When empty
	// the audit trail is disabled and events are kept only in memory.
	PostgresDSN string `yaml:"postgres_dsn"`
}
