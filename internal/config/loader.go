package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per capability.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"tts": {"elevenlabs", "coqui", "openai"},
	"stt": {"deepgram", "openai"},
	"llm": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path, expands ${ENV_VAR}
// references against the process environment, and returns a validated
// [Config].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}

	cfg, err := LoadFromReader(strings.NewReader(os.ExpandEnv(string(data))))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Failover tuning
	fo := cfg.Failover
	if fo.ErrorThreshold < 0 {
		errs = append(errs, fmt.Errorf("failover.error_threshold %d must not be negative", fo.ErrorThreshold))
	}
	if fo.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("failover.max_attempts %d must not be negative", fo.MaxAttempts))
	}
	if fo.FailoverDelayMS < 0 {
		errs = append(errs, fmt.Errorf("failover.failover_delay_ms %d must not be negative", fo.FailoverDelayMS))
	}
	if fo.HealthCheckIntervalMS < 0 {
		errs = append(errs, fmt.Errorf("failover.health_check_interval_ms %d must not be negative", fo.HealthCheckIntervalMS))
	}
	if fo.CallTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("failover.call_timeout_ms %d must not be negative", fo.CallTimeoutMS))
	}
	if fo.HistorySize < 0 {
		errs = append(errs, fmt.Errorf("failover.history_size %d must not be negative", fo.HistorySize))
	}

	// Provider chains
	errs = append(errs, validateChain("tts", cfg.Providers.TTS)...)
	errs = append(errs, validateChain("stt", cfg.Providers.STT)...)
	errs = append(errs, validateChain("llm", cfg.Providers.LLM)...)

	if len(cfg.Providers.TTS) == 0 && len(cfg.Providers.STT) == 0 && len(cfg.Providers.LLM) == 0 {
		slog.Warn("no providers configured; all capability endpoints will report unavailable")
	}

	return errors.Join(errs...)
}

// validateChain checks one capability's provider list for structural problems.
func validateChain(kind string, entries []ProviderEntry) []error {
	var errs []error
	seen := make(map[string]int, len(entries))
	enabled := 0
	for i, e := range entries {
		prefix := fmt.Sprintf("providers.%s[%d]", kind, i)
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if prev, ok := seen[e.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of providers.%s[%d]", prefix, e.Name, kind, prev))
		}
		seen[e.Name] = i
		if e.IsEnabled() {
			enabled++
		}
		validateProviderName(kind, e.Name)
	}
	if len(entries) > 0 && enabled == 0 {
		slog.Warn("all providers for capability are disabled", "capability", kind)
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
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
