package stt

import "time"

// TranscriptionRequest carries one batch transcription call.
type TranscriptionRequest struct {
	// Audio is the complete audio payload.
	Audio []byte

	// MIMEType names the payload encoding (e.g., "audio/wav", "audio/mpeg").
	MIMEType string

	// Language is a BCP-47 language tag hint. Empty lets the provider
	// auto-detect when supported.
	Language string

	// SampleRate is the audio sample rate in Hz for raw PCM payloads.
	SampleRate int
}

// Transcript is a speech-to-text result. Batch transcription always returns a
// final transcript; streaming sessions emit both interim and final values.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string `json:"text"`

	// IsFinal distinguishes committed results from low-latency interim guesses.
	IsFinal bool `json:"is_final"`

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// provider does not report confidence.
	Confidence float64 `json:"confidence,omitempty"`

	// Words holds per-word detail for providers that support it. May be nil.
	Words []WordDetail `json:"words,omitempty"`

	// Provider names the backend that produced the transcript.
	Provider string `json:"provider,omitempty"`
}

// WordDetail holds per-word metadata from STT providers that support it.
type WordDetail struct {
	Word       string        `json:"word"`
	Start      time.Duration `json:"start"`
	End        time.Duration `json:"end"`
	Confidence float64       `json:"confidence,omitempty"`
}

// StreamConfig describes the audio format and recognition hints for a live
// session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz (e.g., 16000).
	SampleRate int

	// Channels is the number of audio channels; 1 = mono, required by most
	// providers.
	Channels int

	// Language is the BCP-47 language tag for recognition. Empty auto-detects
	// when supported.
	Language string

	// InterimResults requests low-latency partial transcripts.
	InterimResults bool
}
