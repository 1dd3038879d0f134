package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vocalis-ai/vocalis/internal/failover"
	"github.com/vocalis-ai/vocalis/pkg/provider/llm"
	"github.com/vocalis-ai/vocalis/pkg/provider/stt"
	"github.com/vocalis-ai/vocalis/pkg/provider/tts"
)

// maxAudioBytes caps the transcription request body. 25 MiB matches the
// upload limits of the hosted STT APIs.
const maxAudioBytes = 25 << 20

// errorResponse is the JSON body for all error replies.
type errorResponse struct {
	Error string `json:"error"`
}

// synthesizeRequest is the JSON body for POST /v1/synthesize.
type synthesizeRequest struct {
	Text       string `json:"text"`
	VoiceID    string `json:"voice_id,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// handleSynthesize converts text to speech and streams the audio bytes back.
// The provider that produced the audio is reported in the X-Provider header.
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if s.tts == nil {
		writeError(w, http.StatusServiceUnavailable, "no tts providers configured")
		return
	}

	var req synthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	ctx := r.Context()
	start := time.Now()
	result, err := s.tts.Synthesize(ctx, tts.SynthesisRequest{
		Text:       req.Text,
		Voice:      tts.VoiceProfile{ID: req.VoiceID},
		SampleRate: req.SampleRate,
	})
	s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordProviderError(ctx, activeName(s.tts.Orchestrator()), "tts")
		writeFailoverError(w, err)
		return
	}
	s.metrics.RecordProviderRequest(ctx, result.Provider, "tts", "ok")

	w.Header().Set("Content-Type", audioContentType(result.Format))
	w.Header().Set("X-Provider", result.Provider)
	w.Header().Set("X-Sample-Rate", strconv.Itoa(result.SampleRate))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Audio)
}

// handleTranscribe converts an uploaded audio clip to text. The raw audio is
// the request body; its format travels in the Content-Type header.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.stt == nil {
		writeError(w, http.StatusServiceUnavailable, "no stt providers configured")
		return
	}

	audio, err := io.ReadAll(io.LimitReader(r.Body, maxAudioBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if len(audio) == 0 {
		writeError(w, http.StatusBadRequest, "audio body is required")
		return
	}
	if len(audio) > maxAudioBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "audio exceeds 25 MiB limit")
		return
	}

	sampleRate := 0
	if v := r.URL.Query().Get("sample_rate"); v != "" {
		sampleRate, err = strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid sample_rate: "+v)
			return
		}
	}

	ctx := r.Context()
	start := time.Now()
	transcript, err := s.stt.Transcribe(ctx, stt.TranscriptionRequest{
		Audio:      audio,
		MIMEType:   r.Header.Get("Content-Type"),
		Language:   r.URL.Query().Get("language"),
		SampleRate: sampleRate,
	})
	s.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordProviderError(ctx, activeName(s.stt.Orchestrator()), "stt")
		writeFailoverError(w, err)
		return
	}
	s.metrics.RecordProviderRequest(ctx, transcript.Provider, "stt", "ok")

	writeJSON(w, http.StatusOK, transcript)
}

// completeRequest is the JSON body for POST /v1/complete.
type completeRequest struct {
	Messages     []llm.Message `json:"messages"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	Temperature  float64       `json:"temperature,omitempty"`
	MaxTokens    int           `json:"max_tokens,omitempty"`
	Stream       bool          `json:"stream,omitempty"`
}

// completeResponse is the JSON reply for non-streaming completions.
type completeResponse struct {
	Content   string         `json:"content"`
	ToolCalls []llm.ToolCall `json:"tool_calls,omitempty"`
	Usage     llm.Usage      `json:"usage"`
	Provider  string         `json:"provider,omitempty"`
}

// handleComplete produces an LLM completion. With "stream": true the reply is
// a Server-Sent Events stream of chunk objects terminated by a [DONE] marker.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	if s.llm == nil {
		writeError(w, http.StatusServiceUnavailable, "no llm providers configured")
		return
	}

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	creq := llm.CompletionRequest{
		Messages:     req.Messages,
		SystemPrompt: req.SystemPrompt,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
	}

	if req.Stream {
		s.streamCompletion(w, r, creq)
		return
	}

	ctx := r.Context()
	start := time.Now()
	resp, err := s.llm.Complete(ctx, creq)
	s.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordProviderError(ctx, activeName(s.llm.Orchestrator()), "llm")
		writeFailoverError(w, err)
		return
	}

	provider := activeName(s.llm.Orchestrator())
	s.metrics.RecordProviderRequest(ctx, provider, "llm", "ok")

	writeJSON(w, http.StatusOK, completeResponse{
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
		Usage:     resp.Usage,
		Provider:  provider,
	})
}

// streamCompletion writes completion chunks as Server-Sent Events.
func (s *Server) streamCompletion(w http.ResponseWriter, r *http.Request, req llm.CompletionRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported by connection")
		return
	}

	ctx := r.Context()
	start := time.Now()
	chunks, err := s.llm.StreamCompletion(ctx, req)
	if err != nil {
		s.metrics.RecordProviderError(ctx, activeName(s.llm.Orchestrator()), "llm")
		writeFailoverError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for chunk := range chunks {
		fmt.Fprint(w, "data: ")
		if err := enc.Encode(chunk); err != nil {
			return
		}
		fmt.Fprint(w, "\n")
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()

	s.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	s.metrics.RecordProviderRequest(ctx, activeName(s.llm.Orchestrator()), "llm", "ok")
}

// handleVoices lists the voice catalogue of the first healthy TTS provider.
func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	if s.tts == nil {
		writeError(w, http.StatusServiceUnavailable, "no tts providers configured")
		return
	}

	voices, err := s.tts.Voices(r.Context())
	if err != nil {
		writeFailoverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, voices)
}

// capabilityStatus is one capability's entry in the /v1/providers reply.
type capabilityStatus struct {
	failover.Stats
	RecentEvents []failover.Event `json:"recent_events,omitempty"`
}

// handleProviders reports live provider health, the active provider, and the
// in-memory event history for every configured capability.
func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]capabilityStatus, 3)
	if s.tts != nil {
		out["tts"] = capabilityStatus{Stats: s.tts.Orchestrator().Stats(), RecentEvents: s.tts.Orchestrator().History()}
	}
	if s.stt != nil {
		out["stt"] = capabilityStatus{Stats: s.stt.Orchestrator().Stats(), RecentEvents: s.stt.Orchestrator().History()}
	}
	if s.llm != nil {
		out["llm"] = capabilityStatus{Stats: s.llm.Orchestrator().Stats(), RecentEvents: s.llm.Orchestrator().History()}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleEvents reads the persisted audit trail. Without an audit store the
// endpoint returns 404; the in-memory history is available on /v1/providers.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.auditStore == nil {
		writeError(w, http.StatusNotFound, "audit trail not configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit: "+v)
			return
		}
		limit = n
	}

	records, err := s.auditStore.Recent(r.Context(), r.URL.Query().Get("capability"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// activeName reads the orchestrator's cached active provider for reporting.
func activeName[T any](o *failover.Orchestrator[T]) string {
	return o.Stats().ActiveProvider
}

// audioContentType maps a synthesis result format to a MIME type.
func audioContentType(format string) string {
	switch format {
	case "wav":
		return "audio/wav"
	case "mp3":
		return "audio/mpeg"
	case "pcm_s16le":
		return "audio/pcm"
	default:
		return "application/octet-stream"
	}
}

// writeFailoverError maps orchestrator errors to HTTP status codes: exhausted
// chains and missing providers are 503, everything else is 502.
func writeFailoverError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, failover.ErrNoProviders), errors.Is(err, failover.ErrExhausted):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
	}
}
