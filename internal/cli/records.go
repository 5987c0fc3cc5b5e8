package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List minute records",
	Long: `List persisted minute records in [from, to], oldest first.

Examples:
  daypulse records                                  # Today
  daypulse records --from 2025-03-10 --to 2025-03-11
  daypulse records --json`,
	Args: cobra.NoArgs,
	RunE: runRecords,
}

// Flags
var (
	recordsFrom string
	recordsTo   string
	recordsJSON bool
)

func init() {
	rootCmd.AddCommand(recordsCmd)

	recordsCmd.Flags().StringVar(&recordsFrom, "from", "", "First day (YYYY-MM-DD, default today)")
	recordsCmd.Flags().StringVar(&recordsTo, "to", "", "Last day, inclusive (YYYY-MM-DD, default --from)")
	recordsCmd.Flags().BoolVar(&recordsJSON, "json", false, "Output JSON")
}

func runRecords(cmd *cobra.Command, args []string) error {
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
	from, err := parseDate(recordsFrom, loc, time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc))
	if err != nil {
		return err
	}
	to, err := parseDate(recordsTo, loc, from)
	if err != nil {
		return err
	}
	if to.Before(from) {
		return fmt.Errorf("--to is before --from")
	}
	end := to.AddDate(0, 0, 1).Add(-time.Millisecond)

	repo, closeDB, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	records, err := repo.GetActivityRecords(ctx, from, end)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if recordsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No records in range")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tBUSY\tIDLE\tCLICKS\tKEYS\tMOVES\tSWITCHES\tCPU\tMEM\tWINDOW")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%.2f\t%v\t%d\t%d\t%d\t%d\t%.1f\t%.1f\t%s\n",
			r.Timestamp.In(loc).Format("2006-01-02 15:04:05"),
			r.BusyIndex, r.IsIdle,
			r.MouseClicks, r.KeyboardPresses, r.MouseMoves, r.WindowSwitches,
			r.CPUUsage, r.MemoryUsage,
			r.ActiveWindowTitle)
	}
	return w.Flush()
}
