// Package openai provides an STT provider backed by the OpenAI audio
// transcription API. It implements the stt.Provider interface.
//
// The transcription endpoint is batch-only, so StartStream returns a
// buffering session: audio chunks accumulate and a single final transcript is
// emitted when the session is closed.
package openai

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/vocalis-ai/vocalis/pkg/provider/stt"
)

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

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

// Provider implements stt.Provider using the OpenAI transcription API.
type Provider struct {
	client oai.Client
	model  string
}

// New constructs a new OpenAI STT Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai stt: apiKey must not be empty")
	}
	if model == "" {
		model = string(oai.AudioModelWhisper1)
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

// Name implements stt.Provider.
func (p *Provider) Name() string { return "openai" }

// Transcribe sends the audio payload to the transcription endpoint. Raw PCM
// payloads are wrapped in a WAV header first; everything else is passed
// through unchanged.
func (p *Provider) Transcribe(ctx context.Context, req stt.TranscriptionRequest) (*stt.Transcript, error) {
	if len(req.Audio) == 0 {
		return nil, errors.New("openai stt: audio must not be empty")
	}

	audio := req.Audio
	if req.MIMEType == "" || req.MIMEType == "audio/pcm" {
		rate := req.SampleRate
		if rate == 0 {
			rate = 16000
		}
		audio = wrapWAV(audio, rate)
	}

	params := oai.AudioTranscriptionNewParams{
		File:  bytes.NewReader(audio),
		Model: oai.AudioModel(p.model),
	}
	if req.Language != "" {
		params.Language = oai.String(req.Language)
	}

	res, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai stt: transcribe: %w", err)
	}
	return &stt.Transcript{
		Text:     res.Text,
		IsFinal:  true,
		Provider: p.Name(),
	}, nil
}

// StartStream returns a buffering session adapting the batch endpoint to the
// streaming contract. The transcript arrives only after Close.
func (p *Provider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	rate := cfg.SampleRate
	if rate == 0 {
		rate = 16000
	}
	return &bufferSession{
		provider: p,
		language: cfg.Language,
		rate:     rate,
		results:  make(chan stt.Transcript, 1),
	}, nil
}

// Probe verifies API reachability and key validity by listing models.
func (p *Provider) Probe(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("openai stt: probe: %w", err)
	}
	return nil
}

// ---- buffering session ----

// bufferSession accumulates PCM audio and transcribes it in one call on Close.
type bufferSession struct {
	provider *Provider
	language string
	rate     int

	mu      sync.Mutex
	buf     bytes.Buffer
	closed  bool
	results chan stt.Transcript
}

// SendAudio appends a chunk to the session buffer.
func (s *bufferSession) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("openai stt: session is closed")
	}
	s.buf.Write(chunk)
	return nil
}

// Results returns the transcript channel; it delivers at most one final
// transcript, after Close.
func (s *bufferSession) Results() <-chan stt.Transcript { return s.results }

// Close transcribes the buffered audio and closes the results channel. A
// transcription failure closes the channel without a result; the caller
// distinguishes the cases by the channel being empty.
func (s *bufferSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	audio := s.buf.Bytes()
	s.mu.Unlock()

	defer close(s.results)
	if len(audio) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	t, err := s.provider.Transcribe(ctx, stt.TranscriptionRequest{
		Audio:      audio,
		MIMEType:   "audio/pcm",
		Language:   s.language,
		SampleRate: s.rate,
	})
	if err != nil {
		return fmt.Errorf("openai stt: close: %w", err)
	}
	s.results <- *t
	return nil
}

// wrapWAV prepends a 44-byte RIFF header describing mono s16le PCM at the
// given sample rate.
func wrapWAV(pcm []byte, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
