package failover

import (
	"context"

	"github.com/vocalis-ai/vocalis/pkg/provider/stt"
)

// STT implements [stt.Provider] with automatic failover across multiple
// speech-to-text backends.
type STT struct {
	orch *Orchestrator[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STT)(nil)

// NewSTT creates a failover group over the given STT registrations.
func NewSTT(regs []Registration[stt.Provider], settings Settings) (*STT, error) {
	orch, err := New(regs, settings, WithLabel[stt.Provider]("stt"))
	if err != nil {
		return nil, err
	}
	return &STT{orch: orch}, nil
}

// Orchestrator exposes the underlying orchestrator for stats, event
// subscription, and reconfiguration.
func (f *STT) Orchestrator() *Orchestrator[stt.Provider] {
	return f.orch
}

// Name implements stt.Provider.
func (f *STT) Name() string {
	return "failover"
}

// Transcribe converts a complete audio clip to text using the first healthy
// provider.
func (f *STT) Transcribe(ctx context.Context, req stt.TranscriptionRequest) (*stt.Transcript, error) {
	return ExecuteWithResult(ctx, f.orch, func(ctx context.Context, p stt.Provider) (*stt.Transcript, error) {
		return p.Transcribe(ctx, req)
	})
}

// StartStream opens a live transcription session on the first healthy
// provider. Only session setup is covered by failover; errors on an
// established session surface through the session itself.
//
// The session must outlive the per-attempt call timeout, so the caller's
// context is passed through unchanged.
func (f *STT) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	return ExecuteWithResult(ctx, f.orch, func(_ context.Context, p stt.Provider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
}

// Probe implements stt.Provider.
func (f *STT) Probe(ctx context.Context) error {
	return f.orch.Ready(ctx)
}

// Close stops the health monitor and releases event subscribers.
func (f *STT) Close() {
	f.orch.Close()
}
