package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maksspace/audiotee/internal/config"
	"github.com/maksspace/audiotee/internal/metrics"
	"github.com/maksspace/audiotee/internal/recorder"
)

// HTTPServer provides HTTP endpoints for monitoring the capture service
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	config    *config.Config
	metrics   *metrics.Metrics
	startTime time.Time

	mu        sync.RWMutex
	recorders []*recorder.Recorder
}

// NewHTTPServer creates a new HTTP status server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger, appConfig *config.Config, m *metrics.Metrics) *HTTPServer {
	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// AddRecorder registers a recorder for status reporting.
func (h *HTTPServer) AddRecorder(r *recorder.Recorder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recorders = append(h.recorders, r)
}

func (h *HTTPServer) recorderStats() []recorder.Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := make([]recorder.Stats, 0, len(h.recorders))
	for _, r := range h.recorders {
		stats = append(stats, r.Stats())
	}
	return stats
}

// setupRoutes configures HTTP routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Recorder monitoring endpoint
	mux.HandleFunc("/recorders", h.withMetrics("/recorders", h.handleRecorders))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		h.metrics.RecordHTTPRequest(r.Method, endpoint, fmt.Sprintf("%d", ww.statusCode), duration)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP status server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP status server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := h.recorderStats()
	running := 0
	for _, s := range stats {
		if s.Running {
			running++
		}
	}

	status := "healthy"
	if running == 0 {
		status = "stopped"
	}

	health := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "audiotee",
			"version": "1.0.0",
		},
		"recorders": map[string]interface{}{
			"total":   len(stats),
			"running": running,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleRecorders implements the /recorders endpoint
func (h *HTTPServer) handleRecorders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := h.recorderStats()
	recorders := make([]map[string]interface{}, 0, len(stats))
	for _, s := range stats {
		recorders = append(recorders, map[string]interface{}{
			"source":          s.Source,
			"running":         s.Running,
			"duration":        s.Duration.String(),
			"callbacks":       s.Callbacks,
			"empty_ticks":     s.EmptyTicks,
			"bytes_captured":  s.BytesCaptured,
			"chunks_emitted":  s.ChunksEmitted,
			"packets_emitted": s.PacketsEmitted,
			"emit_errors":     s.EmitErrors,
		})
	}

	response := map[string]interface{}{
		"total_recorders": len(recorders),
		"timestamp":       time.Now().UTC(),
		"recorders":       recorders,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sanitizedConfig := map[string]interface{}{
		"audio": map[string]interface{}{
			"chunk_duration":     h.config.Audio.ChunkDuration,
			"target_sample_rate": h.config.Audio.TargetSampleRate,
		},
		"capture": map[string]interface{}{
			"include_processes": h.config.Capture.IncludeProcesses,
			"exclude_processes": h.config.Capture.ExcludeProcesses,
			"mute":              h.config.Capture.Mute,
			"channel_mode":      h.config.Capture.ChannelMode,
		},
		"microphone": map[string]interface{}{
			"enabled": h.config.Microphone.Enabled,
		},
		"output": map[string]interface{}{
			"mode":      h.config.Output.Mode,
			"directory": h.config.Output.Directory,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := h.recorderStats()
	var bytesCaptured, chunksEmitted, packetsEmitted, emitErrors uint64
	for _, s := range stats {
		bytesCaptured += s.BytesCaptured
		chunksEmitted += s.ChunksEmitted
		packetsEmitted += s.PacketsEmitted
		emitErrors += s.EmitErrors
	}

	response := map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"totals": map[string]interface{}{
			"bytes_captured":  bytesCaptured,
			"chunks_emitted":  chunksEmitted,
			"packets_emitted": packetsEmitted,
			"emit_errors":     emitErrors,
		},
		"recorders": len(stats),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "audiotee",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":          "API documentation",
			"GET /health":    "Service health check",
			"GET /recorders": "Per-recorder capture statistics",
			"GET /config":    "Get service configuration",
			"GET /stats":     "Aggregate capture statistics",
			"GET /metrics":   "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
