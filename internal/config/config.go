package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig `yaml:"database"`

	// Tracker configuration (flush scheduler, idle detection, sampling)
	Tracker TrackerConfig `yaml:"tracker"`

	// Busy index weights and per-minute expectations
	Busy BusyConfig `yaml:"busy"`

	// Session lifecycle configuration
	Session SessionConfig `yaml:"session"`

	// Daily rollup configuration
	Rollup RollupConfig `yaml:"rollup"`

	// Data retention configuration
	Retention RetentionConfig `yaml:"retention"`

	// Daemon configuration
	Daemon DaemonConfig `yaml:"daemon"`

	// Input source configuration
	Input InputConfig `yaml:"input"`

	// Metrics export configuration
	Metrics MetricsConfig `yaml:"metrics"`

	// Report configuration
	Report ReportConfig `yaml:"report"`

	// Log configuration
	Log LogConfig `yaml:"log"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Path string `yaml:"path"` // Path to SQLite database file
}

// TrackerConfig holds flush scheduler configuration
type TrackerConfig struct {
	FlushInterval      time.Duration `yaml:"flush_interval"`       // How often counters are persisted
	MinFlushInterval   time.Duration `yaml:"-"`                    // Minimum allowed flush interval
	MaxFlushInterval   time.Duration `yaml:"-"`                    // Maximum allowed flush interval
	IdleThreshold      time.Duration `yaml:"idle_threshold"`       // Time without input before considering user idle
	SystemSampleWindow time.Duration `yaml:"system_sample_window"` // CPU sampling window per tick
	EventBuffer        int           `yaml:"event_buffer"`         // Capacity of the input event channel
	TitleMaxLength     int           `yaml:"title_max_length"`     // Foreground title is truncated to this many runes
	WriteRetries       uint64        `yaml:"write_retries"`        // Retries for a failed minute-record write
	WriteTimeout       time.Duration `yaml:"write_timeout"`        // Upper bound for one write including retries
}

// BusyConfig holds the busy index weights and empirical per-minute expectations
type BusyConfig struct {
	MouseWeight    float64 `yaml:"mouse_weight"`
	KeyboardWeight float64 `yaml:"keyboard_weight"`
	WindowWeight   float64 `yaml:"window_weight"`
	SystemWeight   float64 `yaml:"system_weight"`

	DistancePerMinute float64 `yaml:"distance_per_minute"` // pixels
	ClicksPerMinute   float64 `yaml:"clicks_per_minute"`
	MovesPerMinute    float64 `yaml:"moves_per_minute"`
	KeysPerMinute     float64 `yaml:"keys_per_minute"`
	SwitchesPerMinute float64 `yaml:"switches_per_minute"`
}

// SessionConfig holds session lifecycle configuration
type SessionConfig struct {
	StaleGrace time.Duration `yaml:"stale_grace"` // Open sessions quiet for longer than this are closed at startup
}

// RollupConfig holds daily rollup configuration
type RollupConfig struct {
	TimeZone     string `yaml:"time_zone"`      // Location used for calendar days, "Local" by default
	DayEndHour   int    `yaml:"day_end_hour"`   // Records before this hour of D+1 belong to D
	NapStartHour int    `yaml:"nap_start_hour"` // First hour (inclusive) counted as nap window
	NapEndHour   int    `yaml:"nap_end_hour"`   // Last hour (inclusive) counted as nap window
	Schedule     string `yaml:"schedule"`       // Cron expression for periodic rollups
}

// RetentionConfig holds data retention configuration
type RetentionConfig struct {
	Days     int    `yaml:"days"`     // 0 keeps everything
	Schedule string `yaml:"schedule"` // Cron expression for the cleanup
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	PIDFile       string        `yaml:"pid_file"`       // Path to PID file for daemon management
	ShutdownGrace time.Duration `yaml:"shutdown_grace"` // Upper bound for the final flush, session close and rollup
}

// InputConfig holds input source configuration
type InputConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"` // X11 pointer/keymap polling period
}

// MetricsConfig holds OTLP metrics export configuration
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// ReportConfig holds report generation configuration
type ReportConfig struct {
	PixelsPerMeter float64 `yaml:"pixels_per_meter"`
}

// LogConfig holds log output configuration
type LogConfig struct {
	Path    string `yaml:"path"`
	Verbose bool   `yaml:"verbose"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "", // resolved by Load
		},
		Tracker: TrackerConfig{
			FlushInterval:      60 * time.Second,
			MinFlushInterval:   10 * time.Second,
			MaxFlushInterval:   300 * time.Second,
			IdleThreshold:      600 * time.Second,
			SystemSampleWindow: time.Second,
			EventBuffer:        4096,
			TitleMaxLength:     200,
			WriteRetries:       3,
			WriteTimeout:       5 * time.Second,
		},
		Busy: BusyConfig{
			MouseWeight:       0.30,
			KeyboardWeight:    0.30,
			WindowWeight:      0.20,
			SystemWeight:      0.20,
			DistancePerMinute: 5000,
			ClicksPerMinute:   50,
			MovesPerMinute:    500,
			KeysPerMinute:     300,
			SwitchesPerMinute: 10,
		},
		Session: SessionConfig{
			StaleGrace: 5 * time.Minute,
		},
		Rollup: RollupConfig{
			TimeZone:     "Local",
			DayEndHour:   2,
			NapStartHour: 12,
			NapEndHour:   14,
			Schedule:     "0 * * * *",
		},
		Retention: RetentionConfig{
			Days:     365,
			Schedule: "@daily",
		},
		Daemon: DaemonConfig{
			PIDFile:       fmt.Sprintf("/tmp/daypulse-%d.pid", os.Getuid()),
			ShutdownGrace: 10 * time.Second,
		},
		Input: InputConfig{
			PollInterval: 50 * time.Millisecond,
		},
		Report: ReportConfig{
			PixelsPerMeter: 5200,
		},
		Log: LogConfig{
			Path: fmt.Sprintf("/tmp/daypulse-%d.log", os.Getuid()),
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Tracker.FlushInterval < c.Tracker.MinFlushInterval {
		return fmt.Errorf("flush interval (%v) cannot be less than minimum (%v)",
			c.Tracker.FlushInterval, c.Tracker.MinFlushInterval)
	}

	if c.Tracker.FlushInterval > c.Tracker.MaxFlushInterval {
		return fmt.Errorf("flush interval (%v) cannot be greater than maximum (%v)",
			c.Tracker.FlushInterval, c.Tracker.MaxFlushInterval)
	}

	if c.Tracker.IdleThreshold <= 0 {
		return fmt.Errorf("idle threshold must be positive")
	}

	if c.Tracker.EventBuffer < 1 {
		return fmt.Errorf("event buffer must hold at least one event, got %d", c.Tracker.EventBuffer)
	}

	if c.Tracker.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive, got %v", c.Tracker.WriteTimeout)
	}

	if c.Tracker.SystemSampleWindow < 0 || c.Tracker.SystemSampleWindow >= c.Tracker.FlushInterval {
		return fmt.Errorf("system sample window (%v) must be within [0, flush interval)", c.Tracker.SystemSampleWindow)
	}

	if err := c.Busy.validate(); err != nil {
		return err
	}

	if c.Rollup.DayEndHour < 0 || c.Rollup.DayEndHour > 12 {
		return fmt.Errorf("day end hour must be between 0 and 12, got %d", c.Rollup.DayEndHour)
	}

	if c.Rollup.NapStartHour < 0 || c.Rollup.NapEndHour > 23 || c.Rollup.NapStartHour > c.Rollup.NapEndHour {
		return fmt.Errorf("nap window %d-%d is not a valid hour range", c.Rollup.NapStartHour, c.Rollup.NapEndHour)
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	if _, err := cron.ParseStandard(c.Rollup.Schedule); err != nil {
		return fmt.Errorf("invalid rollup schedule %q: %w", c.Rollup.Schedule, err)
	}

	if c.Retention.Days < 0 {
		return fmt.Errorf("retention days cannot be negative")
	}

	if _, err := cron.ParseStandard(c.Retention.Schedule); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", c.Retention.Schedule, err)
	}

	if c.Daemon.PIDFile == "" {
		return fmt.Errorf("PID file path cannot be empty")
	}

	if c.Daemon.ShutdownGrace <= 0 {
		return fmt.Errorf("shutdown grace must be positive")
	}

	if c.Input.PollInterval <= 0 {
		return fmt.Errorf("input poll interval must be positive")
	}

	if c.Metrics.Enabled && c.Metrics.Endpoint == "" {
		return fmt.Errorf("metrics endpoint cannot be empty when metrics are enabled")
	}

	return nil
}

func (b BusyConfig) validate() error {
	for name, w := range map[string]float64{
		"mouse":    b.MouseWeight,
		"keyboard": b.KeyboardWeight,
		"window":   b.WindowWeight,
		"system":   b.SystemWeight,
	} {
		if w < 0 {
			return fmt.Errorf("%s weight cannot be negative", name)
		}
	}

	sum := b.MouseWeight + b.KeyboardWeight + b.WindowWeight + b.SystemWeight
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("busy weights must sum to 1.0, got %.4f", sum)
	}

	for name, v := range map[string]float64{
		"distance": b.DistancePerMinute,
		"clicks":   b.ClicksPerMinute,
		"moves":    b.MovesPerMinute,
		"keys":     b.KeysPerMinute,
		"switches": b.SwitchesPerMinute,
	} {
		if v <= 0 {
			return fmt.Errorf("%s per minute expectation must be positive", name)
		}
	}

	return nil
}

// SetFlushInterval sets the flush interval with validation
func (c *Config) SetFlushInterval(interval time.Duration) error {
	if interval < c.Tracker.MinFlushInterval {
		return fmt.Errorf("flush interval cannot be less than %v", c.Tracker.MinFlushInterval)
	}
	if interval > c.Tracker.MaxFlushInterval {
		return fmt.Errorf("flush interval cannot be greater than %v", c.Tracker.MaxFlushInterval)
	}
	c.Tracker.FlushInterval = interval
	return nil
}

// Location resolves the rollup time zone
func (c *Config) Location() (*time.Location, error) {
	switch c.Rollup.TimeZone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Rollup.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", c.Rollup.TimeZone, err)
	}
	return loc, nil
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(`Configuration:
  Database:
    Path: %s
  Tracker:
    Flush Interval: %v
    Idle Threshold: %v
    Event Buffer: %d
  Busy Weights:
    Mouse: %.2f  Keyboard: %.2f  Window: %.2f  System: %.2f
  Session:
    Stale Grace: %v
  Rollup:
    Time Zone: %s
    Day End Hour: %d
    Schedule: %s
  Retention:
    Days: %d
    Schedule: %s
  Daemon:
    PID File: %s
    Shutdown Grace: %v
  Metrics:
    Enabled: %v
    Endpoint: %s`,
		c.Database.Path,
		c.Tracker.FlushInterval,
		c.Tracker.IdleThreshold,
		c.Tracker.EventBuffer,
		c.Busy.MouseWeight, c.Busy.KeyboardWeight, c.Busy.WindowWeight, c.Busy.SystemWeight,
		c.Session.StaleGrace,
		c.Rollup.TimeZone,
		c.Rollup.DayEndHour,
		c.Rollup.Schedule,
		c.Retention.Days,
		c.Retention.Schedule,
		c.Daemon.PIDFile,
		c.Daemon.ShutdownGrace,
		c.Metrics.Enabled,
		c.Metrics.Endpoint,
	)
}
