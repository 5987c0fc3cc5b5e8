package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"daypulse/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "version: %s\n", version.Version)
		fmt.Fprintf(out, "commit : %s\n", version.Commit)
		fmt.Fprintf(out, "built  : %s\n", version.Date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
