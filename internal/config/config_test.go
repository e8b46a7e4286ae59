package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/corvidlabs/reludp/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Listen != ":8080" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, ":8080")
	}

	if cfg.Admin.Addr != ":7780" {
		t.Errorf("Admin.Addr = %q, want %q", cfg.Admin.Addr, ":7780")
	}

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	if cfg.Timing.SendTimeout != 5*time.Second {
		t.Errorf("Timing.SendTimeout = %v, want %v", cfg.Timing.SendTimeout, 5*time.Second)
	}

	if cfg.Timing.AckWait != 200*time.Millisecond {
		t.Errorf("Timing.AckWait = %v, want %v", cfg.Timing.AckWait, 200*time.Millisecond)
	}

	if cfg.Timing.QuietTimeout != 3*time.Second {
		t.Errorf("Timing.QuietTimeout = %v, want %v", cfg.Timing.QuietTimeout, 3*time.Second)
	}

	// Defaults must pass validation.
	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
listen: ":9999"
admin:
  addr: ":7790"
metrics:
  addr: ":9200"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
timing:
  send_timeout: "10s"
  ack_wait: "500ms"
  paced_send_interval: "50ms"
  quiet_timeout: "6s"
  server_tick: "2s"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Listen != ":9999" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, ":9999")
	}

	if cfg.Admin.Addr != ":7790" {
		t.Errorf("Admin.Addr = %q, want %q", cfg.Admin.Addr, ":7790")
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/custom-metrics")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}

	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}

	if cfg.Timing.SendTimeout != 10*time.Second {
		t.Errorf("Timing.SendTimeout = %v, want %v", cfg.Timing.SendTimeout, 10*time.Second)
	}

	if cfg.Timing.AckWait != 500*time.Millisecond {
		t.Errorf("Timing.AckWait = %v, want %v", cfg.Timing.AckWait, 500*time.Millisecond)
	}

	if cfg.Timing.PacedSendInterval != 50*time.Millisecond {
		t.Errorf("Timing.PacedSendInterval = %v, want %v", cfg.Timing.PacedSendInterval, 50*time.Millisecond)
	}

	if cfg.Timing.QuietTimeout != 6*time.Second {
		t.Errorf("Timing.QuietTimeout = %v, want %v", cfg.Timing.QuietTimeout, 6*time.Second)
	}

	if cfg.Timing.ServerTick != 2*time.Second {
		t.Errorf("Timing.ServerTick = %v, want %v", cfg.Timing.ServerTick, 2*time.Second)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override listen and log.level.
	// Everything else should inherit from defaults.
	yamlContent := `
listen: ":5555"
log:
  level: "warn"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	// Overridden values.
	if cfg.Listen != ":5555" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, ":5555")
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	// Default values should be preserved.
	if cfg.Admin.Addr != ":7780" {
		t.Errorf("Admin.Addr = %q, want default %q", cfg.Admin.Addr, ":7780")
	}

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, "json")
	}

	if cfg.Timing.SendTimeout != 5*time.Second {
		t.Errorf("Timing.SendTimeout = %v, want default %v", cfg.Timing.SendTimeout, 5*time.Second)
	}

	if cfg.Timing.QuietTimeout != 3*time.Second {
		t.Errorf("Timing.QuietTimeout = %v, want default %v", cfg.Timing.QuietTimeout, 3*time.Second)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "empty listen addr",
			modify: func(cfg *config.Config) {
				cfg.Listen = ""
			},
			wantErr: config.ErrEmptyListenAddr,
		},
		{
			name: "empty admin addr",
			modify: func(cfg *config.Config) {
				cfg.Admin.Addr = ""
			},
			wantErr: config.ErrEmptyAdminAddr,
		},
		{
			name: "zero send timeout",
			modify: func(cfg *config.Config) {
				cfg.Timing.SendTimeout = 0
			},
			wantErr: config.ErrInvalidSendTimeout,
		},
		{
			name: "negative send timeout",
			modify: func(cfg *config.Config) {
				cfg.Timing.SendTimeout = -1 * time.Second
			},
			wantErr: config.ErrInvalidSendTimeout,
		},
		{
			name: "zero ack wait",
			modify: func(cfg *config.Config) {
				cfg.Timing.AckWait = 0
			},
			wantErr: config.ErrInvalidAckWait,
		},
		{
			name: "negative paced send interval",
			modify: func(cfg *config.Config) {
				cfg.Timing.PacedSendInterval = -1 * time.Millisecond
			},
			wantErr: config.ErrInvalidPacedSendInterval,
		},
		{
			name: "zero quiet timeout",
			modify: func(cfg *config.Config) {
				cfg.Timing.QuietTimeout = 0
			},
			wantErr: config.ErrInvalidQuietTimeout,
		},
		{
			name: "zero server tick",
			modify: func(cfg *config.Config) {
				cfg.Timing.ServerTick = 0
			},
			wantErr: config.ErrInvalidServerTick,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	// Environment variable tests cannot be parallel because they modify
	// process-wide state (os.Setenv).

	yamlContent := `
listen: ":8080"
log:
  level: "info"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("RELUDP_LISTEN", ":6000")
	t.Setenv("RELUDP_LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Listen != ":6000" {
		t.Errorf("Listen = %q, want %q (from env)", cfg.Listen, ":6000")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}
}

func TestLoadEnvOverridesMetrics(t *testing.T) {
	yamlContent := `
listen: ":8080"
metrics:
  addr: ":9100"
  path: "/metrics"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("RELUDP_METRICS_ADDR", ":9200")
	t.Setenv("RELUDP_METRICS_PATH", "/custom")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q (from env)", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom" {
		t.Errorf("Metrics.Path = %q, want %q (from env)", cfg.Metrics.Path, "/custom")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "reludp.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
