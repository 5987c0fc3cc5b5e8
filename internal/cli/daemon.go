package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cdr.dev/slog"
	"github.com/coder/quartz"
	"github.com/spf13/cobra"

	"daypulse/internal/config"
	"daypulse/internal/daemon"
	"daypulse/internal/database"
	"daypulse/internal/metrics"
	"daypulse/internal/tracker"
	"daypulse/pkg/detector"
	"daypulse/pkg/sysstat"
	"daypulse/version"
)

const daemonChildEnv = "DAYPULSE_DAEMON_CHILD"

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tracking daemon in the background",
	Args:  cobra.NoArgs,
	RunE:  runStart,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tracker in the foreground",
	Long: `Run the tracker in the foreground, logging to stderr. SIGINT or SIGTERM
performs a final flush, closes the work session and rolls up the current day.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runTracker(cmd.Context(), cfg, newLogger(cmd.ErrOrStderr(), cfg))
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the tracking daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		dm := daemon.New(cfg.Daemon.PIDFile)
		running, pid, err := dm.IsRunning()
		if err != nil {
			return fmt.Errorf("failed to check daemon status: %w", err)
		}
		if !running {
			fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Stopping daemon (PID: %d)...\n", pid)
		// The daemon itself is bounded by the shutdown grace; allow a little more.
		if err := dm.Stop(2 * cfg.Daemon.ShutdownGrace); err != nil {
			return fmt.Errorf("failed to stop daemon: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stopCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if os.Getenv(daemonChildEnv) == "1" {
		logFile, err := os.OpenFile(cfg.Log.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer logFile.Close()
		return runTracker(cmd.Context(), cfg, newLogger(logFile, cfg))
	}

	dm := daemon.New(cfg.Daemon.PIDFile)
	running, pid, err := dm.IsRunning()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if running {
		return fmt.Errorf("daemon is already running (PID: %d)", pid)
	}

	pid, err = daemonize()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Daemon started successfully (PID: %d)\n", pid)
	fmt.Fprintf(cmd.OutOrStdout(), "Logs: %s\n", cfg.Log.Path)
	return nil
}

// daemonize re-executes the current command line detached from the terminal
func daemonize() (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to resolve executable: %w", err)
	}

	procAttr := &os.ProcAttr{
		Env:   append(os.Environ(), daemonChildEnv+"=1"),
		Files: []*os.File{nil, nil, nil},
		Sys:   &syscall.SysProcAttr{Setsid: true},
	}
	process, err := os.StartProcess(exe, os.Args, procAttr)
	if err != nil {
		return 0, fmt.Errorf("failed to start daemon process: %w", err)
	}
	pid := process.Pid
	_ = process.Release()
	return pid, nil
}

// runTracker runs the tracker until SIGINT or SIGTERM. Signals are caught
// from the start so an early one still closes the session.
func runTracker(ctx context.Context, cfg *config.Config, logger slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return trackUntil(ctx, sigCtx.Done(), cfg, logger)
}

// trackUntil holds the instance lock, wires the tracker to the desktop and
// the database and blocks until shutdown is closed.
func trackUntil(ctx context.Context, shutdown <-chan struct{}, cfg *config.Config, logger slog.Logger) error {
	dm := daemon.New(cfg.Daemon.PIDFile)
	if err := dm.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := dm.Release(); err != nil {
			logger.Warn(ctx, "failed to release instance lock", slog.Error(err))
		}
	}()

	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		return err
	}

	env, err := detector.New(cfg.Input.PollInterval)
	if err != nil {
		logger.Warn(ctx, "desktop capture unavailable, recording idle minutes", slog.Error(err))
	}
	defer env.Close()

	recorder, err := metrics.New(ctx, cfg.Metrics, version.Version)
	if err != nil {
		return fmt.Errorf("failed to set up metrics: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Daemon.ShutdownGrace)
		defer cancel()
		if err := recorder.Close(closeCtx); err != nil {
			logger.Warn(closeCtx, "failed to flush metrics", slog.Error(err))
		}
	}()

	svc, err := tracker.NewService(tracker.Options{
		Config:  cfg,
		Store:   database.NewRepository(db),
		Window:  env.Window,
		System:  sysstat.NewHostSampler(cfg.Tracker.SystemSampleWindow),
		Input:   env.Input,
		Metrics: recorder,
		Clock:   quartz.NewReal(),
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "starting daypulse",
		slog.F("version", version.Version),
		slog.F("pid", os.Getpid()),
		slog.F("display_server", env.DisplayServer))
	logger.Debug(ctx, cfg.String())

	if err := svc.Start(ctx); err != nil {
		return err
	}

	<-shutdown
	logger.Info(ctx, "received shutdown signal")

	// The parent context may already be canceled; the final flush needs its own.
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Daemon.ShutdownGrace)
	defer cancel()
	if err := svc.Stop(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
