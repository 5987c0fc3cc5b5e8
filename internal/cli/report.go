package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"daypulse/internal/models"
	"daypulse/internal/reporter"
)

var reportCmd = &cobra.Command{
	Use:   "report [day|week|month]",
	Short: "Summarize daily statistics",
	Long: `Summarize rolled-up daily statistics.

Examples:
  daypulse report                              # Today
  daypulse report week                         # The last seven days
  daypulse report month --json                 # This month as JSON
  daypulse report --from 2025-03-01 --to 2025-03-15`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"day", "week", "month"},
	RunE:      runReport,
}

// Flags
var (
	reportJSON bool
	reportFrom string
	reportTo   string
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Output JSON")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "First day of a custom range (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "Last day of a custom range (YYYY-MM-DD, default today)")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	repo, closeDB, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	rep, err := reporter.New(cfg, repo, nil)
	if err != nil {
		return err
	}

	var report *models.Report
	switch {
	case reportFrom != "":
		if len(args) > 0 {
			return fmt.Errorf("a period and --from cannot be combined")
		}
		from, err := parseDate(reportFrom, loc, rep.Today())
		if err != nil {
			return err
		}
		to, err := parseDate(reportTo, loc, rep.Today())
		if err != nil {
			return err
		}
		report, err = rep.GenerateCustomReport(ctx, from, to)
		if err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}
	default:
		period := "day"
		if len(args) > 0 {
			period = args[0]
		}
		report, err = rep.GenerateReport(ctx, period)
		if err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}
	}

	if reportJSON {
		out, err := rep.FormatReportJSON(report)
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), rep.FormatReportText(report))
	return nil
}
