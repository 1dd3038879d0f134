// Package api exposes the Vocalis HTTP surface: capability endpoints that run
// through the failover orchestrators, provider status reporting, health
// probes, and the Prometheus metrics endpoint.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vocalis-ai/vocalis/internal/audit"
	"github.com/vocalis-ai/vocalis/internal/failover"
	"github.com/vocalis-ai/vocalis/internal/health"
	"github.com/vocalis-ai/vocalis/internal/observe"
)

// shutdownTimeout bounds the drain of in-flight requests on Close.
const shutdownTimeout = 15 * time.Second

// Server wires the capability failover groups into HTTP handlers. Capability
// fields may be nil when the corresponding chain is not configured; their
// endpoints then return 503.
type Server struct {
	tts *failover.TTS
	stt *failover.STT
	llm *failover.LLM

	auditStore *audit.Store // may be nil
	metrics    *observe.Metrics

	httpSrv *http.Server
}

// Config carries the dependencies for a [Server].
type Config struct {
	ListenAddr string

	TTS *failover.TTS
	STT *failover.STT
	LLM *failover.LLM

	// AuditStore is optional; when set, GET /v1/events reads from it.
	AuditStore *audit.Store

	// Metrics defaults to [observe.DefaultMetrics] when nil.
	Metrics *observe.Metrics
}

// New creates a Server. The HTTP listener is not started until [Server.Run].
func New(cfg Config) *Server {
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}

	s := &Server{
		tts:        cfg.TTS,
		stt:        cfg.STT,
		llm:        cfg.LLM,
		auditStore: cfg.AuditStore,
		metrics:    m,
	}

	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler builds the full route table, wrapped in the observe middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/synthesize", s.handleSynthesize)
	mux.HandleFunc("POST /v1/transcribe", s.handleTranscribe)
	mux.HandleFunc("POST /v1/complete", s.handleComplete)
	mux.HandleFunc("GET /v1/voices", s.handleVoices)
	mux.HandleFunc("GET /v1/providers", s.handleProviders)
	mux.HandleFunc("GET /v1/events", s.handleEvents)

	s.healthHandler().Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}

// healthHandler builds readiness checkers from the configured capabilities
// and the audit store.
func (s *Server) healthHandler() *health.Handler {
	var checkers []health.Checker
	if s.tts != nil {
		checkers = append(checkers, health.Checker{Name: "tts", Check: s.tts.Probe})
	}
	if s.stt != nil {
		checkers = append(checkers, health.Checker{Name: "stt", Check: s.stt.Probe})
	}
	if s.llm != nil {
		checkers = append(checkers, health.Checker{Name: "llm", Check: s.llm.Probe})
	}
	if s.auditStore != nil {
		checkers = append(checkers, health.Checker{Name: "audit", Check: s.auditStore.Ping})
	}
	return health.New(checkers...)
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
// certFile and keyFile enable TLS when both are non-empty.
func (s *Server) Run(ctx context.Context, certFile, keyFile string) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if certFile != "" && keyFile != "" {
			err = s.httpSrv.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("api server listening", "addr", s.httpSrv.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}
