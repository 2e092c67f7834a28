package device

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/maksspace/audiotee/internal/audio"
	"github.com/maksspace/audiotee/internal/config"
)

// ErrSetupFailed indicates the platform facility could not be created or
// started, or that a previously resolved device is no longer usable.
var ErrSetupFailed = errors.New("device setup failed")

// PIDTranslationError reports process identifiers from the capture filter
// that could not be resolved to live audio-producing objects. This is
// surfaced rather than silently dropped: a mistyped or exited PID taps
// nothing and looks exactly like empty audio.
type PIDTranslationError struct {
	PIDs []int32
}

func (e *PIDTranslationError) Error() string {
	return fmt.Sprintf("failed to translate pids to audio objects: %v", e.PIDs)
}

// RawFrameFunc receives one real-time callback's worth of raw audio bytes.
// The slice is only valid for the duration of the call; implementations
// must copy anything they keep. A zero-length call is a normal "no audio"
// tick.
type RawFrameFunc func(data []byte)

// CaptureDevice is a live, format-describable capture source. Exactly one
// recorder owns a device; Start and Stop must not be called concurrently
// with each other, and the platform guarantees no callback is in flight
// once Stop returns.
type CaptureDevice interface {
	// Format returns the device's native stream format, fixed for the
	// device's lifetime. Read once before conversion setup.
	Format() audio.Format

	// Alive reports whether the underlying device still exists. Devices
	// can disappear between resolution and start.
	Alive() bool

	// Start registers fn as the real-time callback and starts the device.
	// On failure any half-made registration is torn down before the error
	// is returned.
	Start(fn RawFrameFunc) error

	// Stop stops the device and unregisters the callback. No callback is
	// in flight after Stop returns.
	Stop() error

	// Close releases the underlying platform resources.
	Close() error
}

// Manager resolves logical capture targets into CaptureDevices.
type Manager struct {
	logger *slog.Logger
}

// NewManager creates a device manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{logger: logger}
}

// SetupTap creates a system-audio tap for the given capture configuration.
// The configuration is assumed validated (include/exclude mutual exclusion
// in particular). Returns ErrSetupFailed if the platform facility cannot be
// created and a PIDTranslationError if any filtered process cannot be
// resolved to a live audio object.
func (m *Manager) SetupTap(cfg config.CaptureConfig) (CaptureDevice, error) {
	dev, err := newTapDevice(cfg, m.logger)
	if err != nil {
		return nil, err
	}

	m.logger.Info("System audio tap created",
		slog.String("format", dev.Format().String()),
		slog.Int("include_pids", len(cfg.IncludeProcesses)),
		slog.Int("exclude_pids", len(cfg.ExcludeProcesses)),
		slog.Bool("mute", cfg.Mute),
		slog.String("channel_mode", cfg.ChannelMode),
	)

	return dev, nil
}

// DefaultInputDevice resolves the platform's default microphone input.
// Returns ErrSetupFailed if no default input exists or the device reports
// itself not alive.
func (m *Manager) DefaultInputDevice() (CaptureDevice, error) {
	dev, err := newMicDevice(m.logger)
	if err != nil {
		return nil, err
	}

	m.logger.Info("Default input device resolved",
		slog.String("format", dev.Format().String()),
	)

	return dev, nil
}
