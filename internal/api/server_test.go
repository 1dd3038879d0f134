package api_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vocalis-ai/vocalis/internal/api"
	"github.com/vocalis-ai/vocalis/internal/failover"
	"github.com/vocalis-ai/vocalis/pkg/provider/llm"
	llmmock "github.com/vocalis-ai/vocalis/pkg/provider/llm/mock"
	"github.com/vocalis-ai/vocalis/pkg/provider/stt"
	sttmock "github.com/vocalis-ai/vocalis/pkg/provider/stt/mock"
	"github.com/vocalis-ai/vocalis/pkg/provider/tts"
	ttsmock "github.com/vocalis-ai/vocalis/pkg/provider/tts/mock"
)

// testBackends bundles the mock providers behind a test server.
type testBackends struct {
	tts *ttsmock.Provider
	stt *sttmock.Provider
	llm *llmmock.Provider
}

// newTestServer builds a Server over single-provider failover groups backed by
// mocks and registers cleanup for the monitor goroutines.
func newTestServer(t *testing.T) (*httptest.Server, *testBackends) {
	t.Helper()

	backends := &testBackends{
		tts: &ttsmock.Provider{
			ProviderName: "elevenlabs",
			SynthesizeResult: &tts.SynthesisResult{
				Audio:      []byte("raw-pcm-bytes"),
				Format:     "wav",
				SampleRate: 24000,
				Provider:   "elevenlabs",
			},
			VoicesResult: []tts.VoiceProfile{{ID: "rachel", Name: "Rachel", Provider: "elevenlabs"}},
		},
		stt: &sttmock.Provider{
			ProviderName:     "deepgram",
			TranscribeResult: &stt.Transcript{Text: "hello world", IsFinal: true, Provider: "deepgram"},
		},
		llm: &llmmock.Provider{
			ProviderName:     "openai",
			CompleteResponse: &llm.CompletionResponse{Content: "hi there", Usage: llm.Usage{TotalTokens: 5}},
			StreamChunks:     []llm.Chunk{{Text: "hi "}, {Text: "there"}, {FinishReason: "stop"}},
		},
	}

	settings := failover.Settings{
		ErrorThreshold:      2,
		FailoverDelay:       time.Hour,
		HealthCheckInterval: time.Hour, // keep the monitor quiet during tests
	}

	ttsGroup, err := failover.NewTTS([]failover.Registration[tts.Provider]{
		{Name: "elevenlabs", Priority: 1, Enabled: true, Client: backends.tts, Probe: backends.tts.Probe},
	}, settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(ttsGroup.Close)

	sttGroup, err := failover.NewSTT([]failover.Registration[stt.Provider]{
		{Name: "deepgram", Priority: 1, Enabled: true, Client: backends.stt, Probe: backends.stt.Probe},
	}, settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(sttGroup.Close)

	llmGroup, err := failover.NewLLM([]failover.Registration[llm.Provider]{
		{Name: "openai", Priority: 1, Enabled: true, Client: backends.llm, Probe: backends.llm.Probe},
	}, settings)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(llmGroup.Close)

	srv := api.New(api.Config{TTS: ttsGroup, STT: sttGroup, LLM: llmGroup})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, backends
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeJSON[T any](t *testing.T, r io.Reader) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// ── synthesize ───────────────────────────────────────────────────────────────

func TestSynthesize(t *testing.T) {
	t.Parallel()
	ts, backends := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/synthesize", map[string]any{
		"text":     "hello",
		"voice_id": "rachel",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "audio/wav" {
		t.Errorf("content type: got %q, want audio/wav", got)
	}
	if got := resp.Header.Get("X-Provider"); got != "elevenlabs" {
		t.Errorf("provider header: got %q", got)
	}
	if got := resp.Header.Get("X-Sample-Rate"); got != "24000" {
		t.Errorf("sample rate header: got %q", got)
	}

	audio, _ := io.ReadAll(resp.Body)
	if string(audio) != "raw-pcm-bytes" {
		t.Errorf("audio body: got %q", audio)
	}
	if len(backends.tts.SynthesizeCalls) != 1 {
		t.Fatalf("synthesize calls: got %d, want 1", len(backends.tts.SynthesizeCalls))
	}
	if backends.tts.SynthesizeCalls[0].Voice.ID != "rachel" {
		t.Errorf("voice id: got %q", backends.tts.SynthesizeCalls[0].Voice.ID)
	}
}

func TestSynthesize_BadRequests(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	t.Run("invalid json", func(t *testing.T) {
		t.Parallel()
		resp, err := http.Post(ts.URL+"/v1/synthesize", "application/json", strings.NewReader("{"))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status: got %d, want 400", resp.StatusCode)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		t.Parallel()
		resp := postJSON(t, ts.URL+"/v1/synthesize", map[string]any{"text": ""})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status: got %d, want 400", resp.StatusCode)
		}
	})
}

func TestSynthesize_ExhaustedChainIs503(t *testing.T) {
	t.Parallel()
	ts, backends := newTestServer(t)

	backends.tts.SetSynthesizeErr(errors.New("quota exceeded"))

	resp := postJSON(t, ts.URL+"/v1/synthesize", map[string]any{"text": "hello"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", resp.StatusCode)
	}
	body := decodeJSON[map[string]string](t, resp.Body)
	if !strings.Contains(body["error"], "exhausted") {
		t.Errorf("error body: got %q", body["error"])
	}
}

func TestSynthesize_NoCapabilityConfigured(t *testing.T) {
	t.Parallel()

	srv := api.New(api.Config{}) // no capabilities at all
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/v1/synthesize", map[string]any{"text": "hello"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", resp.StatusCode)
	}
}

// ── transcribe ───────────────────────────────────────────────────────────────

func TestTranscribe(t *testing.T) {
	t.Parallel()
	ts, backends := newTestServer(t)

	resp, err := http.Post(
		ts.URL+"/v1/transcribe?language=en-US&sample_rate=16000",
		"audio/wav",
		bytes.NewReader([]byte("fake-wav")),
	)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	transcript := decodeJSON[stt.Transcript](t, resp.Body)
	if transcript.Text != "hello world" || transcript.Provider != "deepgram" {
		t.Errorf("transcript: got %+v", transcript)
	}

	if len(backends.stt.TranscribeCalls) != 1 {
		t.Fatalf("transcribe calls: got %d, want 1", len(backends.stt.TranscribeCalls))
	}
	req := backends.stt.TranscribeCalls[0]
	if req.MIMEType != "audio/wav" || req.Language != "en-US" || req.SampleRate != 16000 {
		t.Errorf("transcription request: got %+v", req)
	}
	if string(req.Audio) != "fake-wav" {
		t.Errorf("audio payload: got %q", req.Audio)
	}
}

func TestTranscribe_BadRequests(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()
		resp, err := http.Post(ts.URL+"/v1/transcribe", "audio/wav", bytes.NewReader(nil))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status: got %d, want 400", resp.StatusCode)
		}
	})

	t.Run("non-numeric sample rate", func(t *testing.T) {
		t.Parallel()
		resp, err := http.Post(ts.URL+"/v1/transcribe?sample_rate=fast", "audio/wav", bytes.NewReader([]byte("x")))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status: got %d, want 400", resp.StatusCode)
		}
	})
}

// ── complete ─────────────────────────────────────────────────────────────────

func TestComplete(t *testing.T) {
	t.Parallel()
	ts, backends := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/complete", map[string]any{
		"messages":      []map[string]string{{"role": "user", "content": "hi"}},
		"system_prompt": "be brief",
		"max_tokens":    64,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	body := decodeJSON[map[string]any](t, resp.Body)
	if body["content"] != "hi there" {
		t.Errorf("content: got %v", body["content"])
	}
	if body["provider"] != "openai" {
		t.Errorf("provider: got %v", body["provider"])
	}

	if len(backends.llm.CompleteCalls) != 1 {
		t.Fatalf("complete calls: got %d, want 1", len(backends.llm.CompleteCalls))
	}
	got := backends.llm.CompleteCalls[0].Req
	if got.SystemPrompt != "be brief" || got.MaxTokens != 64 {
		t.Errorf("completion request: got %+v", got)
	}
}

func TestComplete_EmptyMessages(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/complete", map[string]any{"messages": []any{}})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

func TestComplete_Streaming(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/complete", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
		"stream":   true,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type: got %q", got)
	}

	var text string
	var sawDone bool
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			sawDone = true
			break
		}
		var chunk llm.Chunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			t.Fatalf("bad chunk %q: %v", payload, err)
		}
		text += chunk.Text
	}
	if text != "hi there" {
		t.Errorf("streamed text: got %q", text)
	}
	if !sawDone {
		t.Error("missing [DONE] terminator")
	}
}

// ── voices, providers, events ────────────────────────────────────────────────

func TestVoices(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/voices")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	voices := decodeJSON[[]tts.VoiceProfile](t, resp.Body)
	if len(voices) != 1 || voices[0].ID != "rachel" {
		t.Errorf("voices: got %+v", voices)
	}
}

func TestProviders(t *testing.T) {
	t.Parallel()
	ts, backends := newTestServer(t)

	// Drive one failed and one successful call so the report has substance.
	backends.llm.SetCompleteErr(errors.New("down"))
	resp := postJSON(t, ts.URL+"/v1/complete", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	resp.Body.Close()
	backends.llm.SetCompleteErr(nil)
	resp = postJSON(t, ts.URL+"/v1/complete", map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	resp.Body.Close()

	resp, err := http.Get(ts.URL + "/v1/providers")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}

	type capability struct {
		ActiveProvider   string                    `json:"active_provider"`
		HealthyProviders int                       `json:"healthy_providers"`
		Providers        []failover.ProviderStatus `json:"providers"`
		RecentEvents     []failover.Event          `json:"recent_events"`
	}
	report := decodeJSON[map[string]capability](t, resp.Body)

	for _, name := range []string{"tts", "stt", "llm"} {
		if _, ok := report[name]; !ok {
			t.Errorf("report missing capability %q", name)
		}
	}
	llmReport := report["llm"]
	if llmReport.ActiveProvider != "openai" {
		t.Errorf("llm active provider: got %q", llmReport.ActiveProvider)
	}
	if len(llmReport.Providers) != 1 || llmReport.Providers[0].Name != "openai" {
		t.Errorf("llm providers: got %+v", llmReport.Providers)
	}
	if len(llmReport.RecentEvents) == 0 {
		t.Error("llm recent events should include the selection switch")
	}
}

func TestEvents_NotConfigured(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/events")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

// ── operational endpoints ────────────────────────────────────────────────────

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status: got %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}
