package config

import (
	"os"
	"strconv"
	"time"
)

// LoadFromEnv loads configuration from environment variables
// Environment variables override default and file values
func LoadFromEnv(cfg *Config) {
	// Database configuration
	if dbPath := os.Getenv("DAYPULSE_DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	// Tracker configuration
	if flushInterval := os.Getenv("DAYPULSE_FLUSH_INTERVAL"); flushInterval != "" {
		if seconds, err := strconv.Atoi(flushInterval); err == nil && seconds > 0 {
			interval := time.Duration(seconds) * time.Second
			if interval >= cfg.Tracker.MinFlushInterval && interval <= cfg.Tracker.MaxFlushInterval {
				cfg.Tracker.FlushInterval = interval
			}
		}
	}

	if idleThreshold := os.Getenv("DAYPULSE_IDLE_THRESHOLD"); idleThreshold != "" {
		if seconds, err := strconv.Atoi(idleThreshold); err == nil && seconds > 0 {
			cfg.Tracker.IdleThreshold = time.Duration(seconds) * time.Second
		}
	}

	// Session configuration
	if grace := os.Getenv("DAYPULSE_STALE_GRACE"); grace != "" {
		if seconds, err := strconv.Atoi(grace); err == nil && seconds >= 0 {
			cfg.Session.StaleGrace = time.Duration(seconds) * time.Second
		}
	}

	// Rollup configuration
	if timeZone := os.Getenv("DAYPULSE_TIMEZONE"); timeZone != "" {
		cfg.Rollup.TimeZone = timeZone
	}

	if schedule := os.Getenv("DAYPULSE_ROLLUP_SCHEDULE"); schedule != "" {
		cfg.Rollup.Schedule = schedule
	}

	// Retention configuration
	if days := os.Getenv("DAYPULSE_RETENTION_DAYS"); days != "" {
		if val, err := strconv.Atoi(days); err == nil && val >= 0 {
			cfg.Retention.Days = val
		}
	}

	// Daemon configuration
	if pidFile := os.Getenv("DAYPULSE_PID_FILE"); pidFile != "" {
		cfg.Daemon.PIDFile = pidFile
	}

	// Metrics configuration
	if enabled := os.Getenv("DAYPULSE_OTEL_ENABLED"); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			cfg.Metrics.Enabled = val
		}
	}

	if endpoint := os.Getenv("DAYPULSE_OTEL_ENDPOINT"); endpoint != "" {
		cfg.Metrics.Endpoint = endpoint
	}

	if insecure := os.Getenv("DAYPULSE_OTEL_INSECURE"); insecure != "" {
		if val, err := strconv.ParseBool(insecure); err == nil {
			cfg.Metrics.Insecure = val
		}
	}

	// Log configuration
	if logPath := os.Getenv("DAYPULSE_LOG_PATH"); logPath != "" {
		cfg.Log.Path = logPath
	}

	if verbose := os.Getenv("DAYPULSE_VERBOSE"); verbose != "" {
		if val, err := strconv.ParseBool(verbose); err == nil {
			cfg.Log.Verbose = val
		}
	}
}

// New creates a new Config with default values and loads from environment
func New() *Config {
	cfg := Default()
	LoadFromEnv(cfg)
	return cfg
}
