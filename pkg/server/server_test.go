package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voiceguard-ai/voiceguard/pkg/audio"
	"github.com/voiceguard-ai/voiceguard/pkg/embedding"
	"github.com/voiceguard-ai/voiceguard/pkg/monitor"
	"github.com/voiceguard-ai/voiceguard/pkg/voiceprint"
)

const testRate = 16000

type stubSource struct {
	mu      sync.Mutex
	started bool
}

func (s *stubSource) Start(ctx context.Context, sink chan<- audio.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *stubSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return nil
}

func wavSample(value float32, n int) []byte {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = value
	}
	return audio.EncodeWAV(audio.Float32ToBytes(samples), testRate, 1)
}

func newTestServer(t *testing.T) (*Server, *monitor.Worker) {
	t.Helper()

	extractor := embedding.NewMockExtractorWithVector([]float32{1, 0, 0, 0})
	store := voiceprint.NewStore(t.TempDir(), testRate, extractor)
	matcher := voiceprint.NewMatcher(0.75)

	cfg := monitor.DefaultConfig()
	cfg.HopInterval = 10 * time.Millisecond
	worker := monitor.NewWorker(cfg, store, matcher, extractor, &stubSource{})

	return NewServer(worker, store, extractor, testRate), worker
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body []byte) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var parsed map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	}
	return rec, parsed
}

func TestHandleStats(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.Routes()

	rec, body := doJSON(t, mux, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Idle", body["state"])
	assert.Equal(t, float64(0), body["enrolled"])
	assert.Equal(t, 0.75, body["threshold"])

	stats, ok := body["stats"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(0), stats["total_calls"])

	rec, _ = doJSON(t, mux, http.MethodPost, "/stats", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEnrollAndListVoices(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.Routes()

	rec, body := doJSON(t, mux, http.MethodPost, "/voices/Mom", wavSample(0.5, testRate))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Mom", body["name"])
	assert.Equal(t, float64(1), body["enrolled"])

	rec, body = doJSON(t, mux, http.MethodGet, "/voices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	voices, ok := body["voices"].([]any)
	require.True(t, ok)
	require.Len(t, voices, 1)
	assert.Equal(t, "Mom", voices[0].(map[string]any)["name"])
}

func TestEnrollRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.Routes()

	rec, _ := doJSON(t, mux, http.MethodPost, "/voices/", wavSample(0.5, testRate))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, mux, http.MethodPost, "/voices/Mom", []byte("not a wav"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearVoicesRequiresConfirm(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.Routes()

	_, _ = doJSON(t, mux, http.MethodPost, "/voices/Mom", wavSample(0.5, testRate))

	rec, _ := doJSON(t, mux, http.MethodDelete, "/voices", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := doJSON(t, mux, http.MethodDelete, "/voices?confirm=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["cleared"])

	_, body = doJSON(t, mux, http.MethodGet, "/voices", nil)
	assert.Empty(t, body["voices"])
}

func TestThreshold(t *testing.T) {
	srv, worker := newTestServer(t)
	mux := srv.Routes()

	rec, body := doJSON(t, mux, http.MethodGet, "/threshold", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.75, body["threshold"])

	rec, _ = doJSON(t, mux, http.MethodPut, "/threshold", []byte(`{"threshold":0.9}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.9, worker.Matcher().Threshold())

	rec, _ = doJSON(t, mux, http.MethodPut, "/threshold", []byte(`{"threshold":1.5}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, mux, http.MethodPut, "/threshold", []byte(`garbage`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdentify(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.Routes()

	_, _ = doJSON(t, mux, http.MethodPost, "/voices/Mom", wavSample(0.5, testRate))

	rec, body := doJSON(t, mux, http.MethodPost, "/identify", wavSample(0.5, testRate))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mom", body["caller"])
	assert.Equal(t, true, body["authorized"])
	assert.Equal(t, "Authorized", body["status"])
	assert.InDelta(t, 1.0, body["confidence"].(float64), 1e-6)

	rec, _ = doJSON(t, mux, http.MethodPost, "/identify", []byte("not a wav"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	wrongRate := audio.EncodeWAV(audio.Float32ToBytes(make([]float32, 8000)), 8000, 1)
	rec, _ = doJSON(t, mux, http.MethodPost, "/identify", wrongRate)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdentifyWithNoVoices(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.Routes()

	rec, body := doJSON(t, mux, http.MethodPost, "/identify", wavSample(0.5, testRate))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, voiceprint.UnknownCaller, body["caller"])
	assert.Equal(t, false, body["authorized"])
	assert.Equal(t, "Blocked", body["status"])
}

func TestEventsDrainIntoHistory(t *testing.T) {
	srv, worker := newTestServer(t)
	mux := srv.Routes()

	worker.Events().Publish(monitor.NewCallEvent(voiceprint.Decision{Caller: "Mom", Confidence: 0.9, Authorized: true}))
	worker.Events().Publish(monitor.NewCallEvent(voiceprint.Decision{Caller: voiceprint.UnknownCaller, Confidence: 0.2}))

	rec, body := doJSON(t, mux, http.MethodGet, "/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events, ok := body["events"].([]any)
	require.True(t, ok)
	require.Len(t, events, 2)

	// Newest first.
	assert.Equal(t, voiceprint.UnknownCaller, events[0].(map[string]any)["caller"])
	assert.Equal(t, "Mom", events[1].(map[string]any)["caller"])
	assert.Equal(t, "Blocked", events[0].(map[string]any)["status"])
}

func TestMonitorControl(t *testing.T) {
	srv, worker := newTestServer(t)
	mux := srv.Routes()

	// No enrolled voices yet.
	rec, _ := doJSON(t, mux, http.MethodPost, "/monitor", []byte(`{"action":"start"}`))
	assert.Equal(t, http.StatusConflict, rec.Code)

	_, _ = doJSON(t, mux, http.MethodPost, "/voices/Mom", wavSample(0.5, testRate))

	rec, body := doJSON(t, mux, http.MethodPost, "/monitor", []byte(`{"action":"start"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Running", body["state"])
	assert.Equal(t, monitor.StateRunning, worker.State())

	rec, body = doJSON(t, mux, http.MethodPost, "/monitor", []byte(`{"action":"stop"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Idle", body["state"])

	rec, _ = doJSON(t, mux, http.MethodPost, "/monitor", []byte(`{"action":"reboot"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebSocketFeed(t *testing.T) {
	srv, worker := newTestServer(t)
	srv.Start(context.Background())
	defer srv.Stop()

	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	worker.Events().Publish(monitor.NewCallEvent(voiceprint.Decision{Caller: "Mom", Confidence: 0.95, Authorized: true}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt monitor.CallEvent
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "Mom", evt.Caller)
	assert.Equal(t, monitor.StatusAuthorized, evt.Status)
	assert.NotEmpty(t, evt.ID)

	// The pump also retains broadcast events.
	require.Eventually(t, func() bool { return len(srv.History()) == 1 }, time.Second, 10*time.Millisecond)
}
