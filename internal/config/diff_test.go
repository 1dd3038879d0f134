package config_test

import (
	"testing"

	"github.com/vocalis-ai/vocalis/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   config.LogInfo,
		},
		Failover: config.FailoverConfig{
			ErrorThreshold:  3,
			FailoverDelayMS: 30000,
		},
		Providers: config.ProvidersConfig{
			TTS: []config.ProviderEntry{{Name: "elevenlabs", Priority: 1}},
			STT: []config.ProviderEntry{{Name: "deepgram", Priority: 1}},
			LLM: []config.ProviderEntry{{Name: "openai", Priority: 1}},
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	d := config.Diff(baseConfig(), baseConfig())
	if d.Changed() {
		t.Errorf("identical configs report a change: %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()

	newCfg := baseConfig()
	newCfg.Server.LogLevel = config.LogDebug

	d := config.Diff(baseConfig(), newCfg)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level change not detected: %+v", d)
	}
	if d.TTSChanged || d.STTChanged || d.LLMChanged || d.RestartRequired {
		t.Errorf("log level change should not touch anything else: %+v", d)
	}
}

func TestDiff_SingleChainChange(t *testing.T) {
	t.Parallel()

	newCfg := baseConfig()
	newCfg.Providers.TTS = append(newCfg.Providers.TTS, config.ProviderEntry{Name: "openai", Priority: 2})

	d := config.Diff(baseConfig(), newCfg)
	if !d.TTSChanged {
		t.Error("tts chain change not detected")
	}
	if d.STTChanged || d.LLMChanged {
		t.Errorf("unrelated chains flagged: %+v", d)
	}
	if d.RestartRequired {
		t.Error("chain change should be hot-reloadable")
	}
}

func TestDiff_EnabledFlagChange(t *testing.T) {
	t.Parallel()

	disabled := false
	newCfg := baseConfig()
	newCfg.Providers.LLM[0].Enabled = &disabled

	d := config.Diff(baseConfig(), newCfg)
	if !d.LLMChanged {
		t.Error("enabled flag flip not detected")
	}
}

func TestDiff_PriorityReorder(t *testing.T) {
	t.Parallel()

	old := baseConfig()
	old.Providers.LLM = []config.ProviderEntry{
		{Name: "openai", Priority: 1},
		{Name: "anthropic", Priority: 2},
	}
	newCfg := baseConfig()
	newCfg.Providers.LLM = []config.ProviderEntry{
		{Name: "openai", Priority: 2},
		{Name: "anthropic", Priority: 1},
	}

	d := config.Diff(old, newCfg)
	if !d.LLMChanged {
		t.Error("priority reorder not detected")
	}
}

func TestDiff_TuningAffectsAllCapabilities(t *testing.T) {
	t.Parallel()

	newCfg := baseConfig()
	newCfg.Failover.ErrorThreshold = 5

	d := config.Diff(baseConfig(), newCfg)
	if !d.TTSChanged || !d.STTChanged || !d.LLMChanged {
		t.Errorf("tuning change should reconfigure every capability: %+v", d)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()

	t.Run("listen addr", func(t *testing.T) {
		t.Parallel()
		newCfg := baseConfig()
		newCfg.Server.ListenAddr = ":9090"
		if d := config.Diff(baseConfig(), newCfg); !d.RestartRequired {
			t.Error("listen addr change should require restart")
		}
	})

	t.Run("tls added", func(t *testing.T) {
		t.Parallel()
		newCfg := baseConfig()
		newCfg.Server.TLS = &config.TLSConfig{CertFile: "c.pem", KeyFile: "k.pem"}
		if d := config.Diff(baseConfig(), newCfg); !d.RestartRequired {
			t.Error("tls change should require restart")
		}
	})

	t.Run("audit dsn", func(t *testing.T) {
		t.Parallel()
		newCfg := baseConfig()
		newCfg.Audit.PostgresDSN = "postgres://localhost/audit"
		if d := config.Diff(baseConfig(), newCfg); !d.RestartRequired {
			t.Error("audit dsn change should require restart")
		}
	})
}
