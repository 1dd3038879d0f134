package tts

// VoiceProfile describes a synthesis voice configuration.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string `json:"id"`

	// Name is the human-readable voice name.
	Name string `json:"name,omitempty"`

	// Provider identifies which TTS provider this voice belongs to.
	Provider string `json:"provider,omitempty"`

	// SpeedFactor adjusts speaking rate (0.5–2.0, 0 = provider default).
	SpeedFactor float64 `json:"speed_factor,omitempty"`

	// Metadata holds provider-specific voice attributes (gender, accent, etc.).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SynthesisRequest carries one batch synthesis call.
type SynthesisRequest struct {
	// Text is the content to render. Must be non-empty.
	Text string

	// Voice selects the voice profile. An empty Voice.ID uses the provider
	// default voice when one exists.
	Voice VoiceProfile

	// SampleRate is the requested output rate in Hz. Zero uses the provider
	// default.
	SampleRate int
}

// SynthesisResult is the output of a batch synthesis call.
type SynthesisResult struct {
	// Audio is the rendered audio payload.
	Audio []byte

	// Format names the payload encoding (e.g., "pcm_s16le", "mp3").
	Format string

	// SampleRate is the audio sample rate in Hz.
	SampleRate int

	// Provider names the backend that produced the audio.
	Provider string
}
