package config

import (
	"strings"
	"time"

	"github.com/marmos91/streamcore/internal/bytesize"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyStreamingDefaults(&cfg.Streaming)
	applyShutdownTimeoutDefaults(cfg)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyStreamingDefaults fills in the tunables governing chunking,
// prefetching, caching, and range serving.
func applyStreamingDefaults(cfg *StreamingConfig) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = bytesize.MiB
	}
	if cfg.CacheMaxBytes == 0 {
		cfg.CacheMaxBytes = 700 * bytesize.MiB
	}
	if cfg.ClientPoolSize == 0 {
		cfg.ClientPoolSize = 3
	}
	if cfg.ParallelWorkers == 0 {
		cfg.ParallelWorkers = 9
	}
	if cfg.PrefetchChunks == 0 {
		cfg.PrefetchChunks = 50
	}
	if cfg.TailChunks == 0 {
		cfg.TailChunks = 3
	}
	if cfg.SeekPrebufChunks == 0 {
		cfg.SeekPrebufChunks = 10
	}
	if cfg.LookaheadChunks == 0 {
		cfg.LookaheadChunks = 250
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 4
	}
	if cfg.MaxConsecutiveFailures == 0 {
		cfg.MaxConsecutiveFailures = 5
	}
}

// applyShutdownTimeoutDefaults sets shutdown timeout defaults.
func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for generating sample configuration files and for tests.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
