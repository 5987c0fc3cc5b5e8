package cli

import (
	"fmt"
	"io"
	"os"

	"cdr.dev/slog"
	"cdr.dev/slog/sloggers/sloghuman"
	"github.com/spf13/cobra"

	"daypulse/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "daypulse",
	Short: "Desktop activity intensity tracker",
	Long: `daypulse records mouse, keyboard, window and system activity once per
minute, derives a busy index, groups minutes into work sessions and rolls them
up into daily statistics.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Flags
var (
	configPath string
	verbose    bool
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default $XDG_CONFIG_HOME/daypulse/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg *config.Config) slog.Logger {
	logger := slog.Make(sloghuman.Sink(w)).Named("daypulse")
	if cfg.Log.Verbose {
		logger = logger.Leveled(slog.LevelDebug)
	}
	return logger
}
