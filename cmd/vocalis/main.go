// Command vocalis is the multi-provider voice failover server. It fronts
// priority-ordered chains of TTS, STT, and LLM providers with automatic
// health-tracked failover and exposes them over HTTP.
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
	"golang.org/x/sync/errgroup"

	"github.com/vocalis-ai/vocalis/internal/api"
	"github.com/vocalis-ai/vocalis/internal/audit"
	"github.com/vocalis-ai/vocalis/internal/config"
	"github.com/vocalis-ai/vocalis/internal/failover"
	"github.com/vocalis-ai/vocalis/internal/observe"
	"github.com/vocalis-ai/vocalis/pkg/provider/llm"
	"github.com/vocalis-ai/vocalis/pkg/provider/llm/anyllm"
	oaillm "github.com/vocalis-ai/vocalis/pkg/provider/llm/openai"
	"github.com/vocalis-ai/vocalis/pkg/provider/stt"
	"github.com/vocalis-ai/vocalis/pkg/provider/stt/deepgram"
	oaistt "github.com/vocalis-ai/vocalis/pkg/provider/stt/openai"
	"github.com/vocalis-ai/vocalis/pkg/provider/tts"
	"github.com/vocalis-ai/vocalis/pkg/provider/tts/coqui"
	"github.com/vocalis-ai/vocalis/pkg/provider/tts/elevenlabs"
	oaitts "github.com/vocalis-ai/vocalis/pkg/provider/tts/openai"
)

// version is injected at build time via -ldflags "-X main.version=…".
var version = "dev"

// eventBuffer is the subscription buffer used by the audit recorder.
const eventBuffer = 64

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("vocalis", version)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "vocalis: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "vocalis: %v\n", err)
		}
		return 1
	}

	// Logger with a hot-reloadable level.
	levelVar := new(slog.LevelVar)
	levelVar.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)

	slog.Info("vocalis starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// OpenTelemetry metrics + tracing.
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "vocalis",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	groups, err := buildGroups(cfg, reg)
	if err != nil {
		slog.Error("failed to build provider chains", "err", err)
		return 1
	}
	defer groups.Close()

	// Failover switches and health transitions feed /metrics.
	metrics := observe.DefaultMetrics()
	metricsRecorder := observe.NewEventRecorder(metrics)
	groups.watch(metricsRecorder)
	defer metricsRecorder.Stop()

	// Optional persistent audit trail.
	var (
		auditStore *audit.Store
		recorder   *audit.Recorder
	)
	if cfg.Audit.PostgresDSN != "" {
		auditStore, err = audit.NewStore(ctx, cfg.Audit.PostgresDSN)
		if err != nil {
			slog.Error("failed to initialise audit store", "err", err)
			return 1
		}
		defer auditStore.Close()

		recorder = audit.NewRecorder(auditStore)
		groups.watch(recorder)
		defer recorder.Stop()
		slog.Info("audit trail enabled")
	}

	server := api.New(api.Config{
		ListenAddr: cfg.Server.ListenAddr,
		TTS:        groups.TTS,
		STT:        groups.STT,
		LLM:        groups.LLM,
		AuditStore: auditStore,
		Metrics:    metrics,
	})

	// Config hot reload: provider chains, failover tuning, and log level are
	// applied in place; anything else logs a restart-required warning.
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		applyReload(reg, groups, levelVar, old, new)
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		certFile, keyFile := "", ""
		if cfg.Server.TLS != nil {
			certFile, keyFile = cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile
		}
		return server.Run(ctx, certFile, keyFile)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// ── Capability groups ─────────────────────────────────────────────────────────

// capabilityGroups bundles the per-capability failover groups. Nil fields mean
// the capability has no configured providers.
type capabilityGroups struct {
	TTS *failover.TTS
	STT *failover.STT
	LLM *failover.LLM
}

// buildGroups instantiates every configured provider chain through the
// registry and wraps each in a failover group.
func buildGroups(cfg *config.Config, reg *config.Registry) (*capabilityGroups, error) {
	settings := cfg.Failover.Settings()
	groups := &capabilityGroups{}

	if len(cfg.Providers.TTS) > 0 {
		regs, err := reg.TTSRegistrations(cfg.Providers.TTS)
		if err != nil {
			return nil, fmt.Errorf("build tts chain: %w", err)
		}
		groups.TTS, err = failover.NewTTS(regs, settings)
		if err != nil {
			return nil, fmt.Errorf("build tts chain: %w", err)
		}
	}

	if len(cfg.Providers.STT) > 0 {
		regs, err := reg.STTRegistrations(cfg.Providers.STT)
		if err != nil {
			return nil, fmt.Errorf("build stt chain: %w", err)
		}
		groups.STT, err = failover.NewSTT(regs, settings)
		if err != nil {
			return nil, fmt.Errorf("build stt chain: %w", err)
		}
	}

	if len(cfg.Providers.LLM) > 0 {
		regs, err := reg.LLMRegistrations(cfg.Providers.LLM)
		if err != nil {
			return nil, fmt.Errorf("build llm chain: %w", err)
		}
		groups.LLM, err = failover.NewLLM(regs, settings)
		if err != nil {
			return nil, fmt.Errorf("build llm chain: %w", err)
		}
	}

	return groups, nil
}

// eventWatcher consumes a capability's failover event subscription. Both the
// audit recorder and the metrics event recorder satisfy it.
type eventWatcher interface {
	Watch(capability string, events <-chan failover.Event, cancel func())
}

// watch subscribes rec to every configured group.
func (g *capabilityGroups) watch(rec eventWatcher) {
	if g.TTS != nil {
		events, cancel := g.TTS.Orchestrator().Subscribe(eventBuffer)
		rec.Watch("tts", events, cancel)
	}
	if g.STT != nil {
		events, cancel := g.STT.Orchestrator().Subscribe(eventBuffer)
		rec.Watch("stt", events, cancel)
	}
	if g.LLM != nil {
		events, cancel := g.LLM.Orchestrator().Subscribe(eventBuffer)
		rec.Watch("llm", events, cancel)
	}
}

// Close shuts down all groups.
func (g *capabilityGroups) Close() {
	if g.TTS != nil {
		g.TTS.Close()
	}
	if g.STT != nil {
		g.STT.Close()
	}
	if g.LLM != nil {
		g.LLM.Close()
	}
}

// applyReload applies hot-reloadable config changes to the running process.
func applyReload(reg *config.Registry, groups *capabilityGroups, levelVar *slog.LevelVar, old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Changed() {
		return
	}

	if d.LogLevelChanged {
		levelVar.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}

	settings := new.Failover.Settings()

	if d.TTSChanged && groups.TTS != nil {
		regs, err := reg.TTSRegistrations(new.Providers.TTS)
		if err != nil {
			slog.Error("reload: rebuild tts chain failed, keeping previous", "err", err)
		} else if err := groups.TTS.Orchestrator().UpdateConfig(regs, settings); err != nil {
			slog.Error("reload: apply tts chain failed, keeping previous", "err", err)
		} else {
			slog.Info("reload: tts chain updated", "providers", len(regs))
		}
	}

	if d.STTChanged && groups.STT != nil {
		regs, err := reg.STTRegistrations(new.Providers.STT)
		if err != nil {
			slog.Error("reload: rebuild stt chain failed, keeping previous", "err", err)
		} else if err := groups.STT.Orchestrator().UpdateConfig(regs, settings); err != nil {
			slog.Error("reload: apply stt chain failed, keeping previous", "err", err)
		} else {
			slog.Info("reload: stt chain updated", "providers", len(regs))
		}
	}

	if d.LLMChanged && groups.LLM != nil {
		regs, err := reg.LLMRegistrations(new.Providers.LLM)
		if err != nil {
			slog.Error("reload: rebuild llm chain failed, keeping previous", "err", err)
		} else if err := groups.LLM.Orchestrator().UpdateConfig(regs, settings); err != nil {
			slog.Error("reload: apply llm chain failed, keeping previous", "err", err)
		} else {
			slog.Info("reload: llm chain updated", "providers", len(regs))
		}
	}

	if d.RestartRequired {
		slog.Warn("reload: listen address, TLS, or audit settings changed — restart required to apply")
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		if format := entry.StringOption("output_format", ""); format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(format))
		}
		if voice := entry.StringOption("voice_id", ""); voice != "" {
			opts = append(opts, elevenlabs.WithDefaultVoice(voice))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := entry.StringOption("language", ""); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []oaitts.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaitts.WithBaseURL(entry.BaseURL))
		}
		return oaitts.New(entry.APIKey, entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		if lang := entry.StringOption("language", ""); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []oaistt.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaistt.WithBaseURL(entry.BaseURL))
		}
		return oaistt.New(entry.APIKey, entry.Model, opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	// anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile all go
	// through any-llm-go and share the same pattern: optional APIKey +
	// optional BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
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
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	printChain := func(kind string, entries []config.ProviderEntry) {
		if len(entries) == 0 {
			fmt.Printf("  %-3s : (none)\n", kind)
			return
		}
		fmt.Printf("  %-3s :", kind)
		for _, e := range entries {
			marker := ""
			if !e.IsEnabled() {
				marker = " (disabled)"
			}
			fmt.Printf(" %s%s", e.Name, marker)
		}
		fmt.Println()
	}

	fmt.Println("vocalis — provider chains in priority order")
	printChain("tts", cfg.Providers.TTS)
	printChain("stt", cfg.Providers.STT)
	printChain("llm", cfg.Providers.LLM)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("  listening on %s\n", cfg.Server.ListenAddr)
	}
}

// slogLevel maps a config log level onto slog.
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
