package failover

import (
	"context"

	"github.com/vocalis-ai/vocalis/pkg/provider/tts"
)

// TTS implements [tts.Provider] with automatic failover across multiple
// speech-synthesis backends, sharing one Orchestrator for health tracking,
// selection, and events.
type TTS struct {
	orch *Orchestrator[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTS)(nil)

// NewTTS creates a failover group over the given TTS registrations.
func NewTTS(regs []Registration[tts.Provider], settings Settings) (*TTS, error) {
	orch, err := New(regs, settings, WithLabel[tts.Provider]("tts"))
	if err != nil {
		return nil, err
	}
	return &TTS{orch: orch}, nil
}

// Orchestrator exposes the underlying orchestrator for stats, event
// subscription, and reconfiguration.
func (f *TTS) Orchestrator() *Orchestrator[tts.Provider] {
	return f.orch
}

// Name implements tts.Provider.
func (f *TTS) Name() string {
	return "failover"
}

// Synthesize converts text to audio using the first healthy provider.
func (f *TTS) Synthesize(ctx context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	return ExecuteWithResult(ctx, f.orch, func(ctx context.Context, p tts.Provider) (*tts.SynthesisResult, error) {
		return p.Synthesize(ctx, req)
	})
}

// SynthesizeStream consumes text fragments and returns a channel of audio
// bytes, trying the first healthy provider. Only the initial stream setup is
// covered by failover; mid-stream errors are the caller's responsibility.
//
// The returned stream must outlive the per-attempt call timeout, so the
// caller's context is passed through unchanged.
func (f *TTS) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	return ExecuteWithResult(ctx, f.orch, func(_ context.Context, p tts.Provider) (<-chan []byte, error) {
		return p.SynthesizeStream(ctx, text, voice)
	})
}

// Voices returns available voices from the first healthy provider.
func (f *TTS) Voices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return ExecuteWithResult(ctx, f.orch, func(ctx context.Context, p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.Voices(ctx)
	})
}

// Probe implements tts.Provider. The group is considered live as long as at
// least one enabled provider is registered.
func (f *TTS) Probe(ctx context.Context) error {
	return f.orch.Ready(ctx)
}

// Close stops the health monitor and releases event subscribers.
func (f *TTS) Close() {
	f.orch.Close()
}
