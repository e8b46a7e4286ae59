// Package config manages reludpd daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete reludpd configuration.
type Config struct {
	Listen  string        `koanf:"listen"`
	Admin   AdminConfig   `koanf:"admin"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	Timing  TimingConfig  `koanf:"timing"`
}

// AdminConfig holds the admin JSON API server configuration.
type AdminConfig struct {
	// Addr is the admin HTTP listen address (e.g., ":7780").
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// TimingConfig holds the protocol timing parameters applied to every
// connection. Field names mirror transport.Timing.
type TimingConfig struct {
	// SendTimeout is how long Send blocks before giving up on a payload.
	SendTimeout time.Duration `koanf:"send_timeout" yaml:"send_timeout"`
	// AckWait is how long a Send attempt waits for an ack before retrying.
	AckWait time.Duration `koanf:"ack_wait" yaml:"ack_wait"`
	// PacedSendInterval paces consecutive packet writes within one attempt.
	PacedSendInterval time.Duration `koanf:"paced_send_interval" yaml:"paced_send_interval"`
	// QuietTimeout disconnects a peer that has gone silent for this long.
	QuietTimeout time.Duration `koanf:"quiet_timeout" yaml:"quiet_timeout"`
	// ServerTick is the period of the server's quiet-timeout/reap sweep.
	ServerTick time.Duration `koanf:"server_tick" yaml:"server_tick"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen: ":8080",
		Admin: AdminConfig{
			Addr: ":7780",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Timing: TimingConfig{
			SendTimeout:       5 * time.Second,
			AckWait:           200 * time.Millisecond,
			PacedSendInterval: 20 * time.Millisecond,
			QuietTimeout:      3 * time.Second,
			ServerTick:        1 * time.Second,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for reludpd configuration.
// Variables are named RELUDP_<section>_<key>, e.g., RELUDP_ADMIN_ADDR.
const envPrefix = "RELUDP_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (RELUDP_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	RELUDP_LISTEN          -> listen
//	RELUDP_ADMIN_ADDR      -> admin.addr
//	RELUDP_METRICS_ADDR    -> metrics.addr
//	RELUDP_METRICS_PATH    -> metrics.path
//	RELUDP_LOG_LEVEL       -> log.level
//	RELUDP_LOG_FORMAT      -> log.format
//
// Only single-word keys map cleanly through env vars: the mapper lowercases
// and turns every remaining underscore into a dot, so a nested multi-word
// key like timing.quiet_timeout has no unambiguous env var spelling and
// should be set via the YAML file instead.
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms RELUDP_ADMIN_ADDR -> admin.addr.
// Strips the RELUDP_ prefix, lowercases, and replaces _ with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"listen":                      defaults.Listen,
		"admin.addr":                 defaults.Admin.Addr,
		"metrics.addr":               defaults.Metrics.Addr,
		"metrics.path":               defaults.Metrics.Path,
		"log.level":                  defaults.Log.Level,
		"log.format":                 defaults.Log.Format,
		"timing.send_timeout":        defaults.Timing.SendTimeout.String(),
		"timing.ack_wait":            defaults.Timing.AckWait.String(),
		"timing.paced_send_interval": defaults.Timing.PacedSendInterval.String(),
		"timing.quiet_timeout":       defaults.Timing.QuietTimeout.String(),
		"timing.server_tick":         defaults.Timing.ServerTick.String(),
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyListenAddr indicates the UDP listen address is empty.
	ErrEmptyListenAddr = errors.New("listen must not be empty")

	// ErrEmptyAdminAddr indicates the admin API listen address is empty.
	ErrEmptyAdminAddr = errors.New("admin.addr must not be empty")

	// ErrInvalidSendTimeout indicates timing.send_timeout is non-positive.
	ErrInvalidSendTimeout = errors.New("timing.send_timeout must be > 0")

	// ErrInvalidAckWait indicates timing.ack_wait is non-positive.
	ErrInvalidAckWait = errors.New("timing.ack_wait must be > 0")

	// ErrInvalidPacedSendInterval indicates timing.paced_send_interval is negative.
	ErrInvalidPacedSendInterval = errors.New("timing.paced_send_interval must be >= 0")

	// ErrInvalidQuietTimeout indicates timing.quiet_timeout is non-positive.
	ErrInvalidQuietTimeout = errors.New("timing.quiet_timeout must be > 0")

	// ErrInvalidServerTick indicates timing.server_tick is non-positive.
	ErrInvalidServerTick = errors.New("timing.server_tick must be > 0")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Listen == "" {
		return ErrEmptyListenAddr
	}

	if cfg.Admin.Addr == "" {
		return ErrEmptyAdminAddr
	}

	if cfg.Timing.SendTimeout <= 0 {
		return ErrInvalidSendTimeout
	}

	if cfg.Timing.AckWait <= 0 {
		return ErrInvalidAckWait
	}

	if cfg.Timing.PacedSendInterval < 0 {
		return ErrInvalidPacedSendInterval
	}

	if cfg.Timing.QuietTimeout <= 0 {
		return ErrInvalidQuietTimeout
	}

	if cfg.Timing.ServerTick <= 0 {
		return ErrInvalidServerTick
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
