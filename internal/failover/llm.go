package failover

import (
	"context"

	"github.com/vocalis-ai/vocalis/pkg/provider/llm"
)

// LLM implements [llm.Provider] with automatic failover across multiple
// completion backends.
type LLM struct {
	orch *Orchestrator[llm.Provider]
}

// Compile-time interface assertion.
var _ llm.Provider = (*LLM)(nil)

// NewLLM creates a failover group over the given LLM registrations.
func NewLLM(regs []Registration[llm.Provider], settings Settings) (*LLM, error) {
	orch, err := New(regs, settings, WithLabel[llm.Provider]("llm"))
	if err != nil {
		return nil, err
	}
	return &LLM{orch: orch}, nil
}

// Orchestrator exposes the underlying orchestrator for stats, event
// subscription, and reconfiguration.
func (f *LLM) Orchestrator() *Orchestrator[llm.Provider] {
	return f.orch
}

// Name implements llm.Provider.
func (f *LLM) Name() string {
	return "failover"
}

// Complete produces a full completion using the first healthy provider.
func (f *LLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(ctx, f.orch, func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// StreamCompletion starts a streaming completion on the first healthy
// provider. Only stream setup is covered by failover; a stream that fails
// after its first chunk surfaces the error as a terminal "error" chunk.
//
// The stream must outlive the per-attempt call timeout, so the caller's
// context is passed through unchanged.
func (f *LLM) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return ExecuteWithResult(ctx, f.orch, func(_ context.Context, p llm.Provider) (<-chan llm.Chunk, error) {
		return p.StreamCompletion(ctx, req)
	})
}

// Probe implements llm.Provider.
func (f *LLM) Probe(ctx context.Context) error {
	return f.orch.Ready(ctx)
}

// Close stops the health monitor and releases event subscribers.
func (f *LLM) Close() {
	f.orch.Close()
}
