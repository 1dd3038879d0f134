// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to feed controlled audio to consumers and to verify the
// requests the orchestrator dispatches, without a live TTS backend.
//
// Example:
//
//	p := &mock.Provider{
//	    ProviderName:     "fake-tts",
//	    SynthesizeResult: &tts.SynthesisResult{Audio: []byte("pcm")},
//	}
//	res, _ := p.Synthesize(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/vocalis-ai/vocalis/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Provider is a mock implementation of tts.Provider. Zero values for response
// fields cause methods to return zero values and nil errors; set Err fields to
// inject failures.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// SynthesizeResult is returned by Synthesize when SynthesizeErr is nil.
	SynthesizeResult *tts.SynthesisResult

	// SynthesizeErr, if non-nil, is returned by Synthesize.
	SynthesizeErr error

	// StreamChunks is the sequence of audio slices emitted by SynthesizeStream.
	StreamChunks [][]byte

	// StreamErr, if non-nil, is returned by SynthesizeStream instead of a channel.
	StreamErr error

	// VoicesResult and VoicesErr configure Voices.
	VoicesResult []tts.VoiceProfile
	VoicesErr    error

	// ProbeErr, if non-nil, is returned by Probe.
	ProbeErr error

	// --- Call records ---

	SynthesizeCalls []tts.SynthesisRequest
	ProbeCalls      int
}

// Name implements tts.Provider.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Synthesize records the request and returns the configured result or error.
func (p *Provider) Synthesize(_ context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, req)
	if p.SynthesizeErr != nil {
		return nil, p.SynthesizeErr
	}
	return p.SynthesizeResult, nil
}

// SynthesizeStream returns a channel emitting StreamChunks then closes, unless
// StreamErr is set.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, _ tts.VoiceProfile) (<-chan []byte, error) {
	p.mu.Lock()
	if p.StreamErr != nil {
		err := p.StreamErr
		p.mu.Unlock()
		return nil, err
	}
	chunks := make([][]byte, len(p.StreamChunks))
	copy(chunks, p.StreamChunks)
	p.mu.Unlock()

	ch := make(chan []byte, len(chunks))
	go func() {
		defer close(ch)
		// Drain text so the producing goroutine never blocks.
		go func() {
			for range text {
			}
		}()
		for _, audio := range chunks {
			select {
			case <-ctx.Done():
				return
			case ch <- audio:
			}
		}
	}()
	return ch, nil
}

// Voices returns the configured catalogue.
func (p *Provider) Voices(context.Context) ([]tts.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.VoicesResult, p.VoicesErr
}

// Probe records the call and returns ProbeErr.
func (p *Provider) Probe(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ProbeCalls++
	return p.ProbeErr
}

// SetProbeErr swaps the probe behaviour mid-test. Thread-safe.
func (p *Provider) SetProbeErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ProbeErr = err
}

// SetSynthesizeErr swaps the synthesis behaviour mid-test. Thread-safe.
func (p *Provider) SetSynthesizeErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeErr = err
}
