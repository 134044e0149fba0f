package config

import (
	"github.com/ajitpratap0/dremel/pkg/compression"
	"github.com/ajitpratap0/dremel/pkg/errors"
	"github.com/ajitpratap0/dremel/pkg/logger"
	"github.com/ajitpratap0/dremel/pkg/tracing"
)

// DefaultMaxDepth bounds recursive schema walks.
const DefaultMaxDepth = 64

// Config is the root configuration.
type Config struct {
	// Engine limits for schema walks and container allocation
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Snapshot controls physical flattening and compression of stores
	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`

	// Logging configures the global zap logger
	Logging logger.Config `yaml:"logging" json:"logging"`

	// Metrics configures Prometheus instrumentation
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Tracing configures OpenTelemetry spans
	Tracing tracing.Config `yaml:"tracing" json:"tracing"`
}

// EngineConfig holds limits for the schema tree and the tabular store.
type EngineConfig struct {
	// MaxDepth is the deepest schema nesting accepted and walked
	MaxDepth int `yaml:"max_depth" json:"max_depth"`
	// InitialCapacity is the capacity hint for lazily created containers
	InitialCapacity int `yaml:"initial_capacity" json:"initial_capacity"`
}

// SnapshotConfig controls store snapshots.
type SnapshotConfig struct {
	// Algorithm compresses the encoded chunks
	Algorithm compression.Algorithm `yaml:"algorithm" json:"algorithm"`
	// Level is the compression level
	Level compression.Level `yaml:"level" json:"level"`
	// DictionaryThreshold is the distinct/total ratio under which string
	// and bytes columns are dictionary encoded; 0 disables dictionaries
	DictionaryThreshold float64 `yaml:"dictionary_threshold" json:"dictionary_threshold"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxDepth: DefaultMaxDepth,
		},
		Snapshot: SnapshotConfig{
			Algorithm:           compression.Zstd,
			Level:               compression.Default,
			DictionaryThreshold: 0.5,
		},
		Logging: logger.DefaultConfig(),
		Metrics: MetricsConfig{
			Namespace: "dremel",
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if c.Engine.MaxDepth <= 0 {
		return errors.New(errors.ErrorTypeConfig, "engine.max_depth must be positive").
			WithDetail("max_depth", c.Engine.MaxDepth)
	}
	if c.Engine.InitialCapacity < 0 {
		return errors.New(errors.ErrorTypeConfig, "engine.initial_capacity must not be negative").
			WithDetail("initial_capacity", c.Engine.InitialCapacity)
	}
	if c.Snapshot.DictionaryThreshold < 0 || c.Snapshot.DictionaryThreshold > 1 {
		return errors.New(errors.ErrorTypeConfig, "snapshot.dictionary_threshold must be within [0, 1]").
			WithDetail("dictionary_threshold", c.Snapshot.DictionaryThreshold)
	}
	if !compression.Supported(c.Snapshot.Algorithm) {
		return errors.New(errors.ErrorTypeConfig, "unsupported snapshot compression algorithm").
			WithDetail("algorithm", c.Snapshot.Algorithm)
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return errors.New(errors.ErrorTypeConfig, "metrics.namespace is required when metrics are enabled")
	}
	return c.Tracing.Validate()
}

// Compression returns the compressor configuration for snapshots.
func (c *Config) Compression() *compression.Config {
	cfg := compression.DefaultConfig()
	cfg.Algorithm = c.Snapshot.Algorithm
	cfg.Level = c.Snapshot.Level
	return cfg
}
