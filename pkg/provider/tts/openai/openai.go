// Package openai provides an OpenAI-backed TTS provider using the audio
// speech endpoint. It implements the tts.Provider interface.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/vocalis-ai/vocalis/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const defaultVoice = "alloy"

// builtinVoices is the fixed voice set offered by the OpenAI speech API.
var builtinVoices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Provider implements tts.Provider using the OpenAI speech API.
type Provider struct {
	client oai.Client
	model  string
}

// New constructs a new OpenAI TTS Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai tts: apiKey must not be empty")
	}
	if model == "" {
		model = string(oai.SpeechModelTTS1)
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "openai" }

// Synthesize renders req.Text via the speech endpoint, returning raw PCM.
func (p *Provider) Synthesize(ctx context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	if req.Text == "" {
		return nil, errors.New("openai tts: text must not be empty")
	}
	voice := req.Voice.ID
	if voice == "" {
		voice = defaultVoice
	}

	res, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Input:          req.Text,
		Voice:          oai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, fmt.Errorf("openai tts: synthesize: %w", err)
	}
	defer res.Body.Close()

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("openai tts: read audio: %w", err)
	}
	// The speech endpoint emits 24 kHz mono s16le when PCM is requested.
	return &tts.SynthesisResult{
		Audio:      audio,
		Format:     "pcm_s16le",
		SampleRate: 24000,
		Provider:   p.Name(),
	}, nil
}

// SynthesizeStream adapts the batch speech endpoint to the streaming contract:
// text fragments accumulate into sentences, each rendered with one API call.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	audioCh := make(chan []byte, 64)

	go func() {
		defer close(audioCh)

		var pending strings.Builder
		flush := func() bool {
			sentence := strings.TrimSpace(pending.String())
			pending.Reset()
			if sentence == "" {
				return true
			}
			res, err := p.Synthesize(ctx, tts.SynthesisRequest{Text: sentence, Voice: voice})
			if err != nil {
				return false
			}
			select {
			case audioCh <- res.Audio:
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
				if strings.ContainsAny(fragment, ".!?") {
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

// Voices returns the fixed catalogue of the OpenAI speech API.
func (p *Provider) Voices(context.Context) ([]tts.VoiceProfile, error) {
	profiles := make([]tts.VoiceProfile, 0, len(builtinVoices))
	for _, v := range builtinVoices {
		profiles = append(profiles, tts.VoiceProfile{
			ID:       v,
			Name:     v,
			Provider: p.Name(),
		})
	}
	return profiles, nil
}

// Probe verifies API reachability and key validity by listing models.
func (p *Provider) Probe(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("openai tts: probe: %w", err)
	}
	return nil
}
