package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maksspace/audiotee/internal/config"
	"github.com/maksspace/audiotee/internal/device"
	"github.com/maksspace/audiotee/internal/metrics"
	"github.com/maksspace/audiotee/internal/output"
	"github.com/maksspace/audiotee/internal/recorder"
	"github.com/maksspace/audiotee/internal/server"
)

const (
	serviceName    = "audiotee"
	serviceVersion = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (built-in defaults when empty)")
	flag.Parse()

	// Load configuration
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg = config.Default()
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// In stream mode stdout carries the binary audio stream, so logs must
	// not share it.
	if cfg.Output.Mode == config.OutputModeStream && (cfg.Logging.Output == "stdout" || cfg.Logging.Output == "") {
		cfg.Logging.Output = "stderr"
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary
	logger.Info("Configuration loaded",
		slog.Float64("chunk_duration", cfg.Audio.ChunkDuration),
		slog.Int("target_sample_rate", cfg.Audio.TargetSampleRate),
		slog.Int("include_pids", len(cfg.Capture.IncludeProcesses)),
		slog.Int("exclude_pids", len(cfg.Capture.ExcludeProcesses)),
		slog.Bool("mute", cfg.Capture.Mute),
		slog.String("channel_mode", cfg.Capture.ChannelMode),
		slog.Bool("microphone", cfg.Microphone.Enabled),
		slog.String("output_mode", cfg.Output.Mode),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()

	// Build the output sink shared by all recorders
	handler, closeSink, err := buildSink(cfg.Output)
	if err != nil {
		logger.Error("Failed to create output sink", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Resolve capture devices. Either source may fail on its own; only
	// losing both is fatal.
	manager := device.NewManager(logger)
	recorders := setupRecorders(cfg, manager, handler, logger, appMetrics)
	if len(recorders) == 0 {
		logger.Error("No capture sources available")
		os.Exit(1)
	}

	// Start recorders; a recorder that fails to start is dropped from the
	// session but does not abort the others.
	started := make([]*recorder.Recorder, 0, len(recorders))
	for _, r := range recorders {
		if err := r.Start(); err != nil {
			logger.Warn("Recorder failed to start",
				slog.String("source", r.Source()),
				slog.String("error", err.Error()),
			)
			r.Close()
			continue
		}
		started = append(started, r)
	}
	if len(started) == 0 {
		logger.Error("No recorder could be started")
		os.Exit(1)
	}
	logCaptureOutcome(logger, started)

	// Initialize HTTP status server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, appMetrics)
		for _, r := range started {
			httpServer.AddRecorder(r)
		}
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Capture running, waiting for signal...")

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	// Stop recorders first so buffered remainders are flushed into the
	// sink before it is closed.
	for _, r := range started {
		if err := r.Stop(); err != nil {
			logger.Error("Error stopping recorder",
				slog.String("source", r.Source()),
				slog.String("error", err.Error()),
			)
		}
		if err := r.Close(); err != nil {
			logger.Error("Error closing device",
				slog.String("source", r.Source()),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := closeSink(); err != nil {
		logger.Error("Error closing output sink", slog.String("error", err.Error()))
	}

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Final statistics
	for _, r := range started {
		stats := r.Stats()
		logger.Info("Final recorder statistics",
			slog.String("source", stats.Source),
			slog.Duration("duration", stats.Duration),
			slog.Uint64("bytes_captured", stats.BytesCaptured),
			slog.Uint64("chunks_emitted", stats.ChunksEmitted),
			slog.Uint64("packets_emitted", stats.PacketsEmitted),
			slog.Uint64("emit_errors", stats.EmitErrors),
		)
	}

	logger.Info("Service stopped")
}

// buildSink creates the configured output sink and returns it with its
// cleanup function.
func buildSink(cfg config.OutputConfig) (recorder.Handler, func() error, error) {
	switch cfg.Mode {
	case config.OutputModeWAV:
		sink, err := output.NewWAVSink(cfg.Directory)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink.Close, nil
	default:
		return output.NewStreamWriter(os.Stdout), func() error { return nil }, nil
	}
}

// setupRecorders resolves the system tap and, when enabled, the default
// microphone. Failures are logged per source; the caller decides whether
// the surviving set is enough.
func setupRecorders(cfg *config.Config, manager *device.Manager, handler recorder.Handler, logger *slog.Logger, m *metrics.Metrics) []*recorder.Recorder {
	var recorders []*recorder.Recorder

	tap, err := manager.SetupTap(cfg.Capture)
	if err != nil {
		var pidErr *device.PIDTranslationError
		if errors.As(err, &pidErr) {
			logger.Warn("System audio capture unavailable: process filter contains unknown pids",
				slog.Any("pids", pidErr.PIDs),
			)
		} else {
			logger.Warn("System audio capture unavailable", slog.String("error", err.Error()))
		}
	} else {
		recorders = append(recorders, recorder.New(recorder.SourceSystem, tap, cfg.Audio, handler, logger, m))
	}

	if cfg.Microphone.Enabled {
		mic, err := manager.DefaultInputDevice()
		if err != nil {
			logger.Warn("Microphone capture unavailable", slog.String("error", err.Error()))
		} else {
			recorders = append(recorders, recorder.New(recorder.SourceMic, mic, cfg.Audio, handler, logger, m))
		}
	}

	return recorders
}

// logCaptureOutcome reports which of the requested sources actually made
// it into the session.
func logCaptureOutcome(logger *slog.Logger, started []*recorder.Recorder) {
	var system, mic bool
	for _, r := range started {
		switch r.Source() {
		case recorder.SourceSystem:
			system = true
		case recorder.SourceMic:
			mic = true
		}
	}

	switch {
	case system && mic:
		logger.Info("Capturing system audio and microphone")
	case system:
		logger.Info("Capturing system audio only")
	case mic:
		logger.Info("Capturing microphone only")
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var out *os.File
	switch cfg.Output {
	case "stdout":
		out = os.Stdout
	case "stderr", "":
		out = os.Stderr
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			out = os.Stderr
		} else {
			out = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}
