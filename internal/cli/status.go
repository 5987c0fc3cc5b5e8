package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"daypulse/internal/daemon"
	"daypulse/pkg/detector"
	"daypulse/pkg/utils"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status, the open session and the latest minute",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

// Flags
var statusErrors int

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().IntVar(&statusErrors, "errors", 5, "Number of recent capture errors to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	dm := daemon.New(cfg.Daemon.PIDFile)
	running, pid, err := dm.IsRunning()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if running {
		fmt.Fprintf(out, "Status: Running (PID: %d)\n", pid)
	} else {
		fmt.Fprintln(out, "Status: Not running")
	}
	fmt.Fprintf(out, "Flush Interval: %v\n", cfg.Tracker.FlushInterval)
	fmt.Fprintf(out, "Display Server: %s\n", detector.DetectDisplayServer())

	repo, closeDB, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	open, err := repo.GetOpenSessions(ctx)
	if err != nil {
		return err
	}
	for _, s := range open {
		fmt.Fprintf(out, "\nOpen Session #%d\n", s.ID)
		fmt.Fprintf(out, "  Started: %s\n", formatTime(&s.StartTime, loc))
		fmt.Fprintf(out, "  Elapsed: %s\n", utils.FormatMinutes(int64(time.Since(s.StartTime).Minutes())))
	}

	now := time.Now()
	latest, err := repo.GetLatestRecordBetween(ctx, now.Add(-24*time.Hour), now)
	if err != nil {
		return err
	}
	if latest != nil {
		fmt.Fprintf(out, "\nLatest Minute (%s, %s ago)\n", formatTime(&latest.Timestamp, loc),
			utils.FormatRoundedUnit(int64(time.Since(latest.Timestamp).Seconds())))
		fmt.Fprintf(out, "  Busy Index: %.2f\n", latest.BusyIndex)
		fmt.Fprintf(out, "  Idle: %v\n", latest.IsIdle)
		fmt.Fprintf(out, "  Clicks: %d  Keys: %d  Switches: %d\n",
			latest.MouseClicks, latest.KeyboardPresses, latest.WindowSwitches)
		fmt.Fprintf(out, "  CPU: %.1f%%  Memory: %.1f%%\n", latest.CPUUsage, latest.MemoryUsage)
		if latest.ActiveWindowTitle != "" {
			fmt.Fprintf(out, "  Window: %s\n", latest.ActiveWindowTitle)
		}
	}

	if statusErrors > 0 {
		logs, err := repo.GetRecentErrorLogs(ctx, statusErrors)
		if err != nil {
			return err
		}
		if len(logs) > 0 {
			fmt.Fprintln(out, "\nRecent Capture Errors:")
			for _, l := range logs {
				fmt.Fprintf(out, "  %s [%s] %s\n", formatTime(&l.Timestamp, loc), l.Source, l.ErrorMsg)
			}
		}
	}

	printCurrentWindow(ctx, cmd, cfg.Input.PollInterval)
	return nil
}

func printCurrentWindow(ctx context.Context, cmd *cobra.Command, pollInterval time.Duration) {
	env, err := detector.New(pollInterval)
	defer env.Close()
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "\nCould not detect current window: %v\n", err)
		return
	}

	info, err := env.Window.Sample(ctx)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "\nCould not detect current window: %v\n", err)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\nCurrent Window:")
	fmt.Fprintf(cmd.OutOrStdout(), "  App: %s\n", info.AppName)
	fmt.Fprintf(cmd.OutOrStdout(), "  Title: %s\n", info.Title)
	fmt.Fprintf(cmd.OutOrStdout(), "  Visible Windows: %d\n", info.VisibleCount)
}
