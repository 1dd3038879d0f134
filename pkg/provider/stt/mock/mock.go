// Package mock provides a test double for the stt.Provider interface.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/vocalis-ai/vocalis/pkg/provider/stt"
)

// Compile-time interface assertions.
var (
	_ stt.Provider      = (*Provider)(nil)
	_ stt.SessionHandle = (*Session)(nil)
)

// Provider is a mock implementation of stt.Provider. Zero values for response
// fields cause methods to return zero values and nil errors; set Err fields to
// inject failures.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// TranscribeResult and TranscribeErr configure Transcribe.
	TranscribeResult *stt.Transcript
	TranscribeErr    error

	// StreamTranscripts is emitted by sessions created via StartStream.
	StreamTranscripts []stt.Transcript

	// StartStreamErr, if non-nil, is returned by StartStream.
	StartStreamErr error

	// ProbeErr, if non-nil, is returned by Probe.
	ProbeErr error

	// --- Call records ---

	TranscribeCalls []stt.TranscriptionRequest
	ProbeCalls      int
}

// Name implements stt.Provider.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Transcribe records the request and returns the configured result or error.
func (p *Provider) Transcribe(_ context.Context, req stt.TranscriptionRequest) (*stt.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, req)
	if p.TranscribeErr != nil {
		return nil, p.TranscribeErr
	}
	return p.TranscribeResult, nil
}

// StartStream returns a Session pre-loaded with StreamTranscripts, unless
// StartStreamErr is set.
func (p *Provider) StartStream(context.Context, stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}

	results := make(chan stt.Transcript, len(p.StreamTranscripts))
	for _, t := range p.StreamTranscripts {
		results <- t
	}
	return &Session{results: results}, nil
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

// Session is a mock stt.SessionHandle whose results are fixed at creation.
type Session struct {
	mu      sync.Mutex
	closed  bool
	results chan stt.Transcript

	// Audio records every chunk passed to SendAudio.
	Audio [][]byte
}

// SendAudio records the chunk.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)
	s.Audio = append(s.Audio, c)
	return nil
}

// Results returns the pre-loaded transcript channel.
func (s *Session) Results() <-chan stt.Transcript { return s.results }

// Close closes the results channel. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.results)
	}
	return nil
}

var errSessionClosed = errors.New("mock stt: session is closed")
