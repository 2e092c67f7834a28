package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/maksspace/audiotee/internal/audio"
)

// Channel modes for the system-audio tap.
const (
	ChannelModeMono   = "mono"
	ChannelModeStereo = "stereo"
)

// Output modes.
const (
	OutputModeStream = "stream"
	OutputModeWAV    = "wav"
)

// Config represents the complete service configuration
type Config struct {
	Audio      AudioConfig      `yaml:"audio"`
	Capture    CaptureConfig    `yaml:"capture"`
	Microphone MicrophoneConfig `yaml:"microphone"`
	Output     OutputConfig     `yaml:"output"`
	HTTP       HTTPConfig       `yaml:"http"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// AudioConfig contains chunking and conversion parameters shared by both
// recorders
type AudioConfig struct {
	ChunkDuration    float64 `yaml:"chunk_duration"`     // seconds
	TargetSampleRate int     `yaml:"target_sample_rate"` // Hz, 0 disables conversion
}

// CaptureConfig contains system-audio tap configuration. The process filter
// is an ordered PID list; include and exclude are mutually exclusive.
type CaptureConfig struct {
	IncludeProcesses []int32 `yaml:"include_processes"`
	ExcludeProcesses []int32 `yaml:"exclude_processes"`
	Mute             bool    `yaml:"mute"`
	ChannelMode      string  `yaml:"channel_mode"`
}

// MicrophoneConfig contains microphone capture configuration
type MicrophoneConfig struct {
	Enabled bool `yaml:"enabled"`
}

// OutputConfig selects where finished packets go
type OutputConfig struct {
	Mode      string `yaml:"mode"`
	Directory string `yaml:"directory"` // wav mode only
}

// HTTPConfig contains HTTP status server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			ChunkDuration:    0.2,
			TargetSampleRate: 0,
		},
		Capture: CaptureConfig{
			ChannelMode: ChannelModeStereo,
		},
		Output: OutputConfig{
			Mode: OutputModeStream,
		},
		HTTP: HTTPConfig{
			Address: "127.0.0.1",
			Port:    9090,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates chunking and conversion parameters
func (a *AudioConfig) Validate() error {
	if a.ChunkDuration <= 0 || a.ChunkDuration > 5.0 {
		return fmt.Errorf("chunk_duration must be in (0, 5.0] seconds, got %g", a.ChunkDuration)
	}

	if a.TargetSampleRate != 0 && !audio.IsSupportedRate(a.TargetSampleRate) {
		return fmt.Errorf("target_sample_rate must be one of %v, got %d",
			audio.SupportedRates, a.TargetSampleRate)
	}

	return nil
}

// Validate validates the system-audio capture configuration
func (c *CaptureConfig) Validate() error {
	if len(c.IncludeProcesses) > 0 && len(c.ExcludeProcesses) > 0 {
		return fmt.Errorf("include_processes and exclude_processes are mutually exclusive")
	}

	for _, pid := range c.IncludeProcesses {
		if pid <= 0 {
			return fmt.Errorf("include_processes contains invalid pid %d", pid)
		}
	}

	for _, pid := range c.ExcludeProcesses {
		if pid <= 0 {
			return fmt.Errorf("exclude_processes contains invalid pid %d", pid)
		}
	}

	if c.ChannelMode != ChannelModeMono && c.ChannelMode != ChannelModeStereo {
		return fmt.Errorf("channel_mode must be '%s' or '%s', got '%s'",
			ChannelModeMono, ChannelModeStereo, c.ChannelMode)
	}

	return nil
}

// Validate validates output configuration
func (o *OutputConfig) Validate() error {
	switch o.Mode {
	case OutputModeStream:
	case OutputModeWAV:
		if o.Directory == "" {
			return fmt.Errorf("directory cannot be empty in wav output mode")
		}
	default:
		return fmt.Errorf("mode must be '%s' or '%s', got '%s'",
			OutputModeStream, OutputModeWAV, o.Mode)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// ChannelCount returns the channel count implied by the configured channel
// mode.
func (c *CaptureConfig) ChannelCount() int {
	if c.ChannelMode == ChannelModeMono {
		return 1
	}
	return 2
}

// ConversionEnabled reports whether a sample-rate converter should be built.
func (a *AudioConfig) ConversionEnabled() bool {
	return a.TargetSampleRate != 0
}
