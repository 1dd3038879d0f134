// Package coqui provides a self-hosted Coqui TTS-backed provider talking to a
// standard Coqui TTS server (ghcr.io/coqui-ai/tts-cpu) via its REST API. It
// implements the tts.Provider interface.
//
// The server operates in batch mode (one HTTP call per utterance), so
// SynthesizeStream accumulates incoming text fragments into complete sentences
// and dispatches a request per sentence, preserving sentence order on the
// output channel.
//
// Typical usage:
//
//	p, err := coqui.New("http://localhost:5002",
//	    coqui.WithLanguage("en"),
//	    coqui.WithTimeout(15*time.Second),
//	)
package coqui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/vocalis-ai/vocalis/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second
	apiTTSEndpoint  = "/api/tts"
	detailsEndpoint = "/details"

	// audioChanBuf is the buffer depth of the returned audio channel.
	audioChanBuf = 256
)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithLanguage sets the language code sent to the TTS server (e.g., "en",
// "de"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements tts.Provider against a local Coqui TTS server.
type Provider struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

// New creates a Coqui Provider targeting the server at baseURL.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("coqui: baseURL must not be empty")
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "coqui" }

// Synthesize renders req.Text via GET /api/tts. The server answers with a WAV
// payload which is returned as-is.
func (p *Provider) Synthesize(ctx context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	if req.Text == "" {
		return nil, errors.New("coqui: text must not be empty")
	}
	audio, err := p.fetchAudio(ctx, req.Text, req.Voice.ID)
	if err != nil {
		return nil, err
	}
	return &tts.SynthesisResult{
		Audio:      audio,
		Format:     "wav",
		SampleRate: 22050,
		Provider:   p.Name(),
	}, nil
}

// SynthesizeStream buffers text fragments into sentences and synthesises each
// with a separate HTTP call, emitting audio payloads in sentence order.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	audioCh := make(chan []byte, audioChanBuf)

	go func() {
		defer close(audioCh)

		var pending strings.Builder
		flush := func() bool {
			sentence := strings.TrimSpace(pending.String())
			pending.Reset()
			if sentence == "" {
				return true
			}
			audio, err := p.fetchAudio(ctx, sentence, voice.ID)
			if err != nil {
				// Mid-stream failure: stop emitting; the caller observes the
				// early close.
				return false
			}
			select {
			case audioCh <- audio:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case fragment, ok := <-text:
				if !ok {
					flush()
					return
				}
				pending.WriteString(fragment)
				if endsSentence(fragment) {
					if !flush() {
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return audioCh, nil
}

// endsSentence reports whether the fragment's last non-space rune terminates a
// sentence.
func endsSentence(fragment string) bool {
	trimmed := strings.TrimRightFunc(fragment, unicode.IsSpace)
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?', ':', ';':
		return true
	}
	return false
}

// fetchAudio performs one GET /api/tts call and returns the WAV payload.
func (p *Provider) fetchAudio(ctx context.Context, text, speakerID string) ([]byte, error) {
	q := url.Values{}
	q.Set("text", text)
	q.Set("language_id", p.language)
	if speakerID != "" {
		q.Set("speaker_id", speakerID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+apiTTSEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: synthesize: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: synthesize HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: synthesize: unexpected status %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: synthesize read body: %w", err)
	}
	return audio, nil
}

// Voices queries GET /details for the server's loaded speakers. Servers
// running a single-speaker model report one synthetic "default" profile.
func (p *Provider) Voices(ctx context.Context) ([]tts.VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+detailsEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: details: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: details HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: details: unexpected status %d", resp.StatusCode)
	}
	// The details page is HTML, not a machine-readable catalogue; reaching it
	// confirms the model is loaded.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return nil, fmt.Errorf("coqui: details read body: %w", err)
	}
	return []tts.VoiceProfile{{
		ID:       "default",
		Name:     "default",
		Provider: p.Name(),
	}}, nil
}

// Probe checks that the server is up and its model loaded via GET /details.
func (p *Provider) Probe(ctx context.Context) error {
	_, err := p.Voices(ctx)
	return err
}
