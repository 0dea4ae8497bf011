// Package config loads streamcore's runtime configuration from a YAML
// config file and built-in defaults. STREAMCORE_* environment variables
// override only keys that the config file sets; no CLI flag is bound to a
// config field.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/streamcore/internal/bytesize"
)

// Config is streamcore's static configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (STREAMCORE_*), for keys present in the file
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// When no config file is found, Load returns the defaults without reading
// the environment. No CLI flag sets a config field.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Streaming contains the chunk size, worker counts, and windows that
	// govern prefetching, caching, and range serving.
	Streaming StreamingConfig `mapstructure:"streaming" yaml:"streaming"`

	// Remote configures the authenticated session pool against the
	// upstream chunked object store.
	Remote RemoteConfig `mapstructure:"remote" yaml:"remote"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// StreamingConfig holds the tunables for chunking, prefetching, caching,
// and range serving. Every field is loaded, defaulted, and validated, but
// Core reads only CacheMaxBytes, ClientPoolSize, PrefetchChunks, and
// ChunkSize (the last only to count a stream's chunks; the fetcher and
// range server use fetcher.ChunkSize). ParallelWorkers, TailChunks,
// SeekPrebufChunks, LookaheadChunks, MaxRetries, and
// MaxConsecutiveFailures are not read by any component; the prefetch,
// fetcher, and rangeserver packages use their own constants instead.
type StreamingConfig struct {
	// ChunkSize is the fixed size of a chunk, in bytes.
	// Default: 1MiB
	ChunkSize bytesize.ByteSize `mapstructure:"chunk_size" yaml:"chunk_size"`

	// CacheMaxBytes is the weighted LRU cache's byte budget.
	// Default: 700MiB
	CacheMaxBytes bytesize.ByteSize `mapstructure:"cache_max_bytes" yaml:"cache_max_bytes"`

	// ClientPoolSize is the number of authenticated sessions kept open
	// per stream source.
	// Default: 3
	ClientPoolSize int `mapstructure:"client_pool_size" validate:"omitempty,min=1" yaml:"client_pool_size"`

	// ParallelWorkers is the number of concurrent prefetch workers per
	// active stream.
	// Default: 9
	ParallelWorkers int `mapstructure:"parallel_workers" validate:"omitempty,min=1" yaml:"parallel_workers"`

	// PrefetchChunks is the chunk index Core passes to Engine.Start as the
	// prefetch cursor's starting point after warm-up; the warm-up head
	// window itself uses the prefetch.PrefetchChunks constant.
	// Default: 50
	PrefetchChunks int `mapstructure:"prefetch_chunks" validate:"omitempty,min=1" yaml:"prefetch_chunks"`

	// TailChunks is how many chunks at the end of the stream are warmed
	// up eagerly, ahead of any playback request.
	// Default: 3
	TailChunks int `mapstructure:"tail_chunks" validate:"omitempty,min=0" yaml:"tail_chunks"`

	// SeekPrebufChunks is how many chunks are fetched synchronously,
	// in parallel, before the first byte of a seek response is written.
	// Default: 10
	SeekPrebufChunks int `mapstructure:"seek_prebuf_chunks" validate:"omitempty,min=1" yaml:"seek_prebuf_chunks"`

	// LookaheadChunks bounds how far past the playback cursor the
	// prefetch engine will scan before concluding there is nothing left
	// to do.
	// Default: 250
	LookaheadChunks int `mapstructure:"lookahead_chunks" validate:"omitempty,min=1" yaml:"lookahead_chunks"`

	// MaxRetries is the number of attempts the chunk fetcher makes
	// before giving up on a single chunk.
	// Default: 4
	MaxRetries int `mapstructure:"max_retries" validate:"omitempty,min=1" yaml:"max_retries"`

	// MaxConsecutiveFailures is how many consecutive chunk failures the
	// range server tolerates mid-response before aborting the response.
	// Default: 5
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures" validate:"omitempty,min=1" yaml:"max_consecutive_failures"`
}

// RemoteConfig configures the session pool's authentication behavior
// against the upstream chunked object store.
type RemoteConfig struct {
	// CredentialDir overrides the directory used to persist the
	// authenticated session credential between runs. Empty uses the
	// platform default (see remote.DefaultCredentialStore).
	CredentialDir string `mapstructure:"credential_dir" yaml:"credential_dir,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use STREAMCORE_ prefix and underscores.
	// Example: STREAMCORE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("STREAMCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize,
// enabling config files to use human-readable sizes like "1Gi" or "512MB".
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration, enabling config
// files to use human-readable durations like "30s" or "5m".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "streamcore")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "streamcore")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
