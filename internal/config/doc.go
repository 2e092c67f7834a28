// Package config provides configuration loading and validation for the capture pipeline.
// It handles YAML-based configuration with struct validation, including the
// process-filter mutual exclusion and chunk duration range checks that must
// pass before any device setup is attempted.
package config
