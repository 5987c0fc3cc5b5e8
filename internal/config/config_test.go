package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "flush too short", mutate: func(c *Config) { c.Tracker.FlushInterval = time.Second }, wantErr: true},
		{name: "flush too long", mutate: func(c *Config) { c.Tracker.FlushInterval = time.Hour }, wantErr: true},
		{name: "zero write timeout", mutate: func(c *Config) { c.Tracker.WriteTimeout = 0 }, wantErr: true},
		{name: "negative write timeout", mutate: func(c *Config) { c.Tracker.WriteTimeout = -time.Second }, wantErr: true},
		{name: "zero idle threshold", mutate: func(c *Config) { c.Tracker.IdleThreshold = 0 }, wantErr: true},
		{name: "weights over one", mutate: func(c *Config) { c.Busy.MouseWeight = 0.5 }, wantErr: true},
		{name: "negative weight", mutate: func(c *Config) {
			c.Busy.MouseWeight = -0.1
			c.Busy.KeyboardWeight = 0.7
		}, wantErr: true},
		{name: "rebalanced weights", mutate: func(c *Config) {
			c.Busy.MouseWeight = 0.4
			c.Busy.KeyboardWeight = 0.4
			c.Busy.WindowWeight = 0.1
			c.Busy.SystemWeight = 0.1
		}},
		{name: "zero expectation", mutate: func(c *Config) { c.Busy.KeysPerMinute = 0 }, wantErr: true},
		{name: "bad schedule", mutate: func(c *Config) { c.Rollup.Schedule = "every hour" }, wantErr: true},
		{name: "bad time zone", mutate: func(c *Config) { c.Rollup.TimeZone = "Mars/Olympus" }, wantErr: true},
		{name: "inverted nap window", mutate: func(c *Config) { c.Rollup.NapStartHour = 15 }, wantErr: true},
		{name: "sample window longer than flush", mutate: func(c *Config) { c.Tracker.SystemSampleWindow = 2 * time.Minute }, wantErr: true},
		{name: "metrics without endpoint", mutate: func(c *Config) { c.Metrics.Enabled = true }, wantErr: true},
		{name: "empty pid file", mutate: func(c *Config) { c.Daemon.PIDFile = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DAYPULSE_DB_PATH", "/tmp/x.db")
	t.Setenv("DAYPULSE_FLUSH_INTERVAL", "30")
	t.Setenv("DAYPULSE_IDLE_THRESHOLD", "120")
	t.Setenv("DAYPULSE_TIMEZONE", "UTC")
	t.Setenv("DAYPULSE_RETENTION_DAYS", "0")
	t.Setenv("DAYPULSE_OTEL_ENABLED", "true")
	t.Setenv("DAYPULSE_OTEL_ENDPOINT", "localhost:4317")

	cfg := New()
	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.Equal(t, 30*time.Second, cfg.Tracker.FlushInterval)
	assert.Equal(t, 2*time.Minute, cfg.Tracker.IdleThreshold)
	assert.Equal(t, "UTC", cfg.Rollup.TimeZone)
	assert.Equal(t, 0, cfg.Retention.Days)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Metrics.Endpoint)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvIgnoresOutOfRangeFlush(t *testing.T) {
	t.Setenv("DAYPULSE_FLUSH_INTERVAL", "5")

	cfg := New()
	assert.Equal(t, 60*time.Second, cfg.Tracker.FlushInterval)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tracker:
  flush_interval: 30s
  idle_threshold: 5m
busy:
  mouse_weight: 0.25
  keyboard_weight: 0.35
rollup:
  time_zone: UTC
  day_end_hour: 3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Tracker.FlushInterval)
	assert.Equal(t, 5*time.Minute, cfg.Tracker.IdleThreshold)
	assert.InDelta(t, 0.25, cfg.Busy.MouseWeight, 1e-9)
	assert.InDelta(t, 0.35, cfg.Busy.KeyboardWeight, 1e-9)
	// Untouched fields keep their defaults.
	assert.InDelta(t, 0.20, cfg.Busy.WindowWeight, 1e-9)
	assert.Equal(t, 3, cfg.Rollup.DayEndHour)
	assert.Equal(t, 12, cfg.Rollup.NapStartHour)
	require.NoError(t, cfg.Validate())
}

func TestLoadFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Tracker.FlushInterval, cfg.Tracker.FlushInterval)
}

func TestLoadFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tracker: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLocation(t *testing.T) {
	cfg := Default()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Rollup.TimeZone = "UTC"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadResolvesDefaultDBPath(t *testing.T) {
	dataHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)
	t.Setenv("DAYPULSE_DB_PATH", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataHome, "daypulse", "daypulse.db"), cfg.Database.Path)
}

func TestLoadKeepsExplicitDBPath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("DAYPULSE_DB_PATH", "/var/lib/daypulse/pulse.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/daypulse/pulse.db", cfg.Database.Path)
}
