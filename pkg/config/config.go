// Package config provides the unified configuration system for tabular.
// It defines a single ConvertConfig structure that the conversion engine
// and the CLI both use, organized into logical sections with validated
// defaults.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// ErrorColumnPolicy decides what happens to columns whose merged category
// reduced to Error.
type ErrorColumnPolicy string

const (
	// ErrorColumnDrop silently omits Error-merged columns from the output.
	ErrorColumnDrop ErrorColumnPolicy = "drop"
	// ErrorColumnAbort fails the whole conversion when one is encountered.
	ErrorColumnAbort ErrorColumnPolicy = "abort"
)

// ConvertConfig is the single configuration structure for a conversion.
type ConvertConfig struct {
	// Performance settings control worker parallelism within passes.
	Performance PerformanceConfig `yaml:"performance" json:"performance"`

	// Data settings control value interpretation.
	Data DataConfig `yaml:"data" json:"data"`

	// Observability settings for logging and metrics.
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// PerformanceConfig controls throughput and resource usage.
type PerformanceConfig struct {
	// Workers is the number of goroutines used per parallel pass.
	// 0 means runtime.NumCPU().
	Workers int `yaml:"workers" json:"workers"`

	// MinChunk is the smallest per-worker slice of nodes worth spawning
	// a goroutine for.
	MinChunk int `yaml:"min_chunk" json:"min_chunk"`
}

// DataConfig controls how scalar tokens are interpreted.
type DataConfig struct {
	// NullLiterals is the set of unquoted tokens treated as null.
	NullLiterals []string `yaml:"null_literals" json:"null_literals"`

	// ErrorColumns selects the policy for Error-merged columns.
	ErrorColumns ErrorColumnPolicy `yaml:"error_columns" json:"error_columns"`
}

// ObservabilityConfig controls logging and metrics.
type ObservabilityConfig struct {
	LogLevel      string `yaml:"log_level" json:"log_level"`
	EnableMetrics bool   `yaml:"enable_metrics" json:"enable_metrics"`
}

// NewConvertConfig returns a config populated with sensible defaults.
func NewConvertConfig() *ConvertConfig {
	return &ConvertConfig{
		Performance: PerformanceConfig{
			Workers:  runtime.NumCPU(),
			MinChunk: 1024,
		},
		Data: DataConfig{
			NullLiterals: []string{"null"},
			ErrorColumns: ErrorColumnDrop,
		},
		Observability: ObservabilityConfig{
			LogLevel:      "info",
			EnableMetrics: true,
		},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*ConvertConfig, error) {
	cfg := NewConvertConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *ConvertConfig) Validate() error {
	if c.Performance.Workers < 0 {
		return fmt.Errorf("performance.workers must be >= 0, got %d", c.Performance.Workers)
	}
	if c.Performance.MinChunk < 1 {
		return fmt.Errorf("performance.min_chunk must be >= 1, got %d", c.Performance.MinChunk)
	}
	switch c.Data.ErrorColumns {
	case ErrorColumnDrop, ErrorColumnAbort:
	default:
		return fmt.Errorf("data.error_columns must be %q or %q, got %q",
			ErrorColumnDrop, ErrorColumnAbort, c.Data.ErrorColumns)
	}
	return nil
}

// EffectiveWorkers resolves the worker count, applying the auto default.
func (c *ConvertConfig) EffectiveWorkers() int {
	if c.Performance.Workers == 0 {
		return runtime.NumCPU()
	}
	return c.Performance.Workers
}
