// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs, OpenAI,
// or a self-hosted Coqui instance) behind a uniform interface so that the
// failover orchestrator can treat backends as interchangeable. Batch synthesis
// via Synthesize is the common path; SynthesizeStream pipes text fragments
// into audio chunks for low-latency pipelines.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Name returns the provider's stable identifier (e.g., "elevenlabs").
	Name() string

	// Synthesize renders req.Text to audio in one round trip. The call is
	// idempotent under "generate audio for this text" semantics and therefore
	// safe to retry end-to-end against another backend.
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)

	// SynthesizeStream consumes text fragments from the text channel and
	// returns a channel emitting raw PCM audio chunks as they are synthesised.
	// The audio channel is closed when all text has been rendered or ctx is
	// cancelled.
	//
	// A non-nil error is returned only when the stream cannot be started.
	// Errors after chunks have flowed are signalled by closing the channel
	// early; the caller must not assume the output is complete.
	SynthesizeStream(ctx context.Context, text <-chan string, voice VoiceProfile) (<-chan []byte, error)

	// Voices returns the provider's current voice catalogue.
	Voices(ctx context.Context) ([]VoiceProfile, error)

	// Probe performs a lightweight availability check without serving real
	// traffic. Providers without a dedicated status endpoint should issue the
	// cheapest real call available.
	Probe(ctx context.Context) error
}
