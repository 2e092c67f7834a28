package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maksspace/audiotee/internal/audio"
	"github.com/maksspace/audiotee/internal/config"
	"github.com/maksspace/audiotee/internal/device"
	"github.com/maksspace/audiotee/internal/metrics"
)

// Source names, used for output routing and metric labels.
const (
	SourceSystem = "system"
	SourceMic    = "mic"
)

// Recorder lifecycle states.
const (
	stateConfigured = iota
	stateRunning
	stateStopped
)

// Metadata describes the packet stream a recorder emits. It is delivered
// to the handler exactly once, before any audio.
type Metadata struct {
	Source        string  `json:"source"`
	SampleRate    int     `json:"sample_rate"`
	Channels      int     `json:"channels"`
	BitsPerSample int     `json:"bits_per_sample"`
	Float         bool    `json:"float"`
	BigEndian     bool    `json:"big_endian"`
	ChunkDuration float64 `json:"chunk_duration"`
}

// Handler receives a recorder's output in order: HandleMetadata once,
// HandleStreamStart once, any number of HandleAudioPacket calls, then
// HandleStreamStop once. HandleAudioPacket runs on the real-time capture
// thread; implementations must not block for long.
type Handler interface {
	HandleMetadata(meta Metadata) error
	HandleStreamStart(source string) error
	HandleAudioPacket(source string, pkt audio.Packet, partial bool) error
	HandleStreamStop(source string) error
}

// Stats is a point-in-time snapshot of a recorder's counters.
type Stats struct {
	Source         string
	Callbacks      uint64
	EmptyTicks     uint64
	BytesCaptured  uint64
	ChunksEmitted  uint64
	PacketsEmitted uint64
	EmitErrors     uint64
	Running        bool
	Duration       time.Duration
}

// Recorder owns one capture device and pushes its audio through chunking
// and optional sample-rate conversion into a Handler.
type Recorder struct {
	source  string
	dev     device.CaptureDevice
	buffer  *audio.ChunkBuffer
	conv    *audio.Converter // nil means passthrough
	handler Handler
	logger  *slog.Logger
	metrics *metrics.Metrics // optional

	mu        sync.Mutex
	state     int
	startedAt time.Time
	stoppedAt time.Time

	callbacks      atomic.Uint64
	emptyTicks     atomic.Uint64
	bytesCaptured  atomic.Uint64
	chunksEmitted  atomic.Uint64
	packetsEmitted atomic.Uint64
	emitErrors     atomic.Uint64
}

// New builds a configured recorder around an already resolved device. The
// chunk buffer is sized from the device's native format. When conversion
// is enabled but the device format cannot be converted, the recorder logs
// a warning and falls back to passthrough rather than failing.
func New(source string, dev device.CaptureDevice, audioCfg config.AudioConfig, handler Handler, logger *slog.Logger, m *metrics.Metrics) *Recorder {
	r := &Recorder{
		source:  source,
		dev:     dev,
		buffer:  audio.NewChunkBuffer(dev.Format(), audioCfg.ChunkDuration),
		handler: handler,
		logger:  logger,
		metrics: m,
		state:   stateConfigured,
	}

	if audioCfg.ConversionEnabled() {
		conv, err := audio.NewConverter(dev.Format(), audioCfg.TargetSampleRate)
		if err != nil {
			logger.Warn("Format conversion unavailable, using passthrough",
				slog.String("source", source),
				slog.String("device_format", dev.Format().String()),
				slog.Int("target_sample_rate", audioCfg.TargetSampleRate),
				slog.String("error", err.Error()),
			)
		} else {
			r.conv = conv
		}
	}

	return r
}

// OutputFormat returns the format of the packets the recorder emits.
func (r *Recorder) OutputFormat() audio.Format {
	if r.conv != nil {
		return r.conv.TargetFormat()
	}
	return r.dev.Format()
}

// Metadata returns the stream description delivered to the handler.
func (r *Recorder) Metadata() Metadata {
	f := r.OutputFormat()
	// The buffer is sized in device-format bytes, so chunk duration is
	// derived from the device format, not the output format.
	df := r.dev.Format()
	return Metadata{
		Source:        r.source,
		SampleRate:    int(f.SampleRate),
		Channels:      f.Channels,
		BitsPerSample: f.BitsPerSample,
		Float:         f.Float,
		BigEndian:     f.BigEndian,
		ChunkDuration: float64(r.buffer.ChunkBytes()) / (df.SampleRate * float64(df.BytesPerFrame())),
	}
}

// Start verifies the device is still alive, announces the stream to the
// handler, and starts capture. On any failure the recorder stays stopped
// and everything half-started is torn down.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != stateConfigured {
		return fmt.Errorf("recorder %s: start from invalid state %d", r.source, r.state)
	}

	// Devices can disappear between resolution and start.
	if !r.dev.Alive() {
		return fmt.Errorf("recorder %s: %w: device no longer alive", r.source, device.ErrSetupFailed)
	}

	if err := r.handler.HandleMetadata(r.Metadata()); err != nil {
		return fmt.Errorf("recorder %s: metadata: %w", r.source, err)
	}
	if err := r.handler.HandleStreamStart(r.source); err != nil {
		return fmt.Errorf("recorder %s: stream start: %w", r.source, err)
	}

	if err := r.dev.Start(r.onFrame); err != nil {
		// The handler saw a start with no audio following; close the
		// stream so downstream framing stays balanced.
		if stopErr := r.handler.HandleStreamStop(r.source); stopErr != nil {
			r.logger.Error("Failed to close stream after start failure",
				slog.String("source", r.source),
				slog.String("error", stopErr.Error()),
			)
		}
		return fmt.Errorf("recorder %s: %w", r.source, err)
	}

	r.state = stateRunning
	r.startedAt = time.Now()
	if r.metrics != nil {
		r.metrics.RecorderStarted()
	}

	r.logger.Info("Recorder started",
		slog.String("source", r.source),
		slog.String("device_format", r.dev.Format().String()),
		slog.String("output_format", r.OutputFormat().String()),
		slog.Bool("converting", r.conv != nil),
	)
	return nil
}

// onFrame is the real-time capture callback. It never returns an error to
// the platform layer; emission failures are counted and logged.
func (r *Recorder) onFrame(data []byte) {
	r.callbacks.Add(1)
	if r.metrics != nil {
		r.metrics.RecordCallback(r.source, len(data))
	}
	if len(data) == 0 {
		r.emptyTicks.Add(1)
		return
	}
	r.bytesCaptured.Add(uint64(len(data)))

	r.buffer.Append(data)
	for _, pkt := range r.buffer.DrainChunks() {
		r.chunksEmitted.Add(1)
		if r.metrics != nil {
			r.metrics.RecordChunk(r.source, len(pkt.Data))
		}
		r.emit(pkt, false)
	}
}

// emit converts one packet if a converter is attached and hands it to the
// handler.
func (r *Recorder) emit(pkt audio.Packet, partial bool) {
	if r.conv != nil {
		pkt = r.conv.Transform(pkt)
		if r.metrics != nil {
			r.metrics.RecordConversion(r.source)
		}
		if len(pkt.Data) == 0 {
			// The converter is still priming its interpolation history.
			return
		}
	}

	if err := r.handler.HandleAudioPacket(r.source, pkt, partial); err != nil {
		r.emitErrors.Add(1)
		if r.metrics != nil {
			r.metrics.RecordEmitError(r.source)
		}
		r.logger.Error("Failed to emit audio packet",
			slog.String("source", r.source),
			slog.Int("bytes", len(pkt.Data)),
			slog.String("error", err.Error()),
		)
		return
	}
	r.packetsEmitted.Add(1)
}

// Stop halts capture, flushes the buffered remainder as a final partial
// packet, and closes the stream. The device is always stopped, even when
// flushing or the handler fails.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != stateRunning {
		return fmt.Errorf("recorder %s: stop from invalid state %d", r.source, r.state)
	}

	var errs []error
	if err := r.dev.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("device stop: %w", err))
	}

	// No callback is in flight past dev.Stop, so touching the buffer
	// here is safe.
	if pkt, ok := r.buffer.FlushRemainder(); ok {
		if r.metrics != nil {
			r.metrics.RecordPartialFlush(r.source)
		}
		r.emit(pkt, true)
	}

	if err := r.handler.HandleStreamStop(r.source); err != nil {
		errs = append(errs, fmt.Errorf("stream stop: %w", err))
	}

	r.state = stateStopped
	r.stoppedAt = time.Now()
	if r.metrics != nil {
		r.metrics.RecorderStopped(r.stoppedAt.Sub(r.startedAt).Seconds())
	}

	r.logger.Info("Recorder stopped",
		slog.String("source", r.source),
		slog.Duration("duration", r.stoppedAt.Sub(r.startedAt)),
		slog.Uint64("chunks_emitted", r.chunksEmitted.Load()),
		slog.Uint64("bytes_captured", r.bytesCaptured.Load()),
	)

	if len(errs) > 0 {
		return fmt.Errorf("recorder %s: %w", r.source, errors.Join(errs...))
	}
	return nil
}

// Close releases the underlying device.
func (r *Recorder) Close() error {
	return r.dev.Close()
}

// Source returns the recorder's source name.
func (r *Recorder) Source() string {
	return r.source
}

// Stats returns a snapshot of the recorder's counters.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	state := r.state
	startedAt := r.startedAt
	stoppedAt := r.stoppedAt
	r.mu.Unlock()

	var d time.Duration
	switch state {
	case stateRunning:
		d = time.Since(startedAt)
	case stateStopped:
		d = stoppedAt.Sub(startedAt)
	}

	return Stats{
		Source:         r.source,
		Callbacks:      r.callbacks.Load(),
		EmptyTicks:     r.emptyTicks.Load(),
		BytesCaptured:  r.bytesCaptured.Load(),
		ChunksEmitted:  r.chunksEmitted.Load(),
		PacketsEmitted: r.packetsEmitted.Load(),
		EmitErrors:     r.emitErrors.Load(),
		Running:        state == stateRunning,
		Duration:       d,
	}
}
