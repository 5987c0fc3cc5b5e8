package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"daypulse/internal/models"
	"daypulse/internal/rollup"
)

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Recompute the daily statistics for one day",
	Long: `Recompute the daily statistics for one day from its minute records and
sessions. Recomputation is idempotent and overwrites the stored row.

Examples:
  daypulse rollup                    # Today
  daypulse rollup --date 2025-03-10`,
	Args: cobra.NoArgs,
	RunE: runRollup,
}

// Flags
var rollupDate string

func init() {
	rootCmd.AddCommand(rollupCmd)

	rollupCmd.Flags().StringVarP(&rollupDate, "date", "d", "", "Day to recompute (YYYY-MM-DD, default today)")
}

func runRollup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	now := time.Now().In(loc)
	date, err := parseDate(rollupDate, loc, time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc))
	if err != nil {
		return err
	}

	repo, closeDB, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	agg := rollup.NewAggregator(repo, rollup.Options{
		Location:     loc,
		DayEndHour:   cfg.Rollup.DayEndHour,
		NapStartHour: cfg.Rollup.NapStartHour,
		NapEndHour:   cfg.Rollup.NapEndHour,
	}, newLogger(cmd.ErrOrStderr(), cfg))

	stat, err := agg.Rollup(ctx, date)
	if err != nil {
		return fmt.Errorf("failed to roll up %s: %w", date.Format(models.DateLayout), err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Rolled up %s\n", stat.StatDate)
	fmt.Fprintf(out, "  First Boot: %s\n", formatTime(stat.FirstBootTime, loc))
	fmt.Fprintf(out, "  Last Shutdown: %s\n", formatTime(stat.LastShutdownTime, loc))
	fmt.Fprintf(out, "  Active: %d min  Idle: %d min  Nap: %d min\n",
		stat.TotalActiveMinutes, stat.TotalIdleMinutes, stat.NapMinutes)
	fmt.Fprintf(out, "  Busy Index: avg %.2f  max %.2f\n", stat.AverageBusyIndex, stat.MaxBusyIndex)
	fmt.Fprintf(out, "  Work Sessions: %d\n", stat.WorkSessions)
	return nil
}
