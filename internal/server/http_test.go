package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maksspace/audiotee/internal/audio"
	"github.com/maksspace/audiotee/internal/config"
	"github.com/maksspace/audiotee/internal/device"
	"github.com/maksspace/audiotee/internal/metrics"
	"github.com/maksspace/audiotee/internal/recorder"
)

// promauto registers into the default registry, so the package shares one
// Metrics value across tests.
var testMetrics = metrics.NewMetrics()

type stubDevice struct{}

func (stubDevice) Format() audio.Format {
	return audio.Format{SampleRate: 48000, Channels: 1, BitsPerSample: 16}
}
func (stubDevice) Alive() bool                     { return true }
func (stubDevice) Start(device.RawFrameFunc) error { return nil }
func (stubDevice) Stop() error                     { return nil }
func (stubDevice) Close() error                    { return nil }

type nopHandler struct{}

func (nopHandler) HandleMetadata(recorder.Metadata) error             { return nil }
func (nopHandler) HandleStreamStart(string) error                     { return nil }
func (nopHandler) HandleAudioPacket(string, audio.Packet, bool) error { return nil }
func (nopHandler) HandleStreamStop(string) error                      { return nil }

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHTTPServer(config.HTTPConfig{Address: "127.0.0.1", Port: 0}, logger, config.Default(), testMetrics)

	r := recorder.New(recorder.SourceSystem, stubDevice{}, config.AudioConfig{ChunkDuration: 0.2}, nopHandler{}, logger, nil)
	h.AddRecorder(r)
	return h
}

func doRequest(t *testing.T, h *HTTPServer, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	mux := http.NewServeMux()
	h.setupRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return rec, body
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestServer(t)
	rec, body := doRequest(t, h, "/health")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	// No recorder is running, so the service reports stopped.
	if body["status"] != "stopped" {
		t.Errorf("health status = %v, want stopped", body["status"])
	}
}

func TestRecordersEndpoint(t *testing.T) {
	h := newTestServer(t)
	_, body := doRequest(t, h, "/recorders")

	if body["total_recorders"] != float64(1) {
		t.Errorf("total_recorders = %v, want 1", body["total_recorders"])
	}
	recorders, ok := body["recorders"].([]interface{})
	if !ok || len(recorders) != 1 {
		t.Fatalf("recorders = %v, want one entry", body["recorders"])
	}
	entry := recorders[0].(map[string]interface{})
	if entry["source"] != recorder.SourceSystem {
		t.Errorf("recorder source = %v, want system", entry["source"])
	}
}

func TestConfigEndpointSections(t *testing.T) {
	h := newTestServer(t)
	_, body := doRequest(t, h, "/config")

	for _, section := range []string{"audio", "capture", "microphone", "output", "logging"} {
		if _, ok := body[section]; !ok {
			t.Errorf("config response missing section %q", section)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(t)
	mux := http.NewServeMux()
	h.setupRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health status = %d, want 405", rec.Code)
	}
}
