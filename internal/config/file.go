package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFilePath returns $XDG_CONFIG_HOME/daypulse/config.yaml, falling back
// to ~/.config when XDG_CONFIG_HOME is unset.
func DefaultFilePath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "daypulse", "config.yaml"), nil
}

// DefaultDBPath returns $XDG_DATA_HOME/daypulse/daypulse.db, falling back to
// ~/.local/share when XDG_DATA_HOME is unset.
func DefaultDBPath() (string, error) {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "daypulse", "daypulse.db"), nil
}

// LoadFile overlays the YAML file at path onto cfg. A missing file is not an
// error; fields absent from the file keep their current values.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Load builds the effective configuration: defaults, then the YAML file (the
// default location when path is empty), then environment variables. An unset
// database path resolves to DefaultDBPath.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultFilePath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if err := LoadFile(cfg, path); err != nil {
		return nil, err
	}

	LoadFromEnv(cfg)

	if cfg.Database.Path == "" {
		p, err := DefaultDBPath()
		if err != nil {
			return nil, err
		}
		cfg.Database.Path = p
	}
	return cfg, nil
}
