// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (e.g., Deepgram or the OpenAI
// audio API) behind a uniform interface so that the failover orchestrator can
// treat backends as interchangeable. Transcribe handles pre-recorded audio in
// one call; StartStream opens a live session for real-time ingress.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Name returns the provider's stable identifier (e.g., "deepgram").
	Name() string

	// Transcribe converts a complete audio payload to text in one round trip.
	// The call is idempotent and safe to retry end-to-end against another
	// backend.
	Transcribe(ctx context.Context, req TranscriptionRequest) (*Transcript, error)

	// StartStream opens a live transcription session. Failover covers only the
	// session open; once a SessionHandle exists, mid-stream errors are surfaced
	// through the handle and are the caller's responsibility.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)

	// Probe performs a lightweight availability check without serving real
	// traffic.
	Probe(ctx context.Context) error
}

// SessionHandle represents an open live transcription session. It is an
// interface so tests can substitute mock sessions without a provider
// connection.
//
// Callers must call Close when done; failing to do so leaks goroutines and
// network connections inside the provider implementation. All methods are safe
// for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio for transcription. The chunk
	// must match the SampleRate and Channels agreed in StreamConfig. Calling
	// SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Results returns a read-only channel emitting Transcript values, both
	// interim (IsFinal=false) and committed (IsFinal=true). The channel is
	// closed when the session ends.
	Results() <-chan Transcript

	// Close terminates the session, flushing any buffered audio first.
	Close() error
}
