package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all tracking data",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

// Flags
var clearYes bool

func init() {
	rootCmd.AddCommand(clearCmd)

	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !clearYes {
		fmt.Fprint(out, "This will delete all tracking data. Are you sure? (yes/no): ")
		response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "yes" && response != "y" {
			fmt.Fprintln(out, "Operation cancelled")
			return nil
		}
	}

	repo, closeDB, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := repo.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("failed to clear database: %w", err)
	}
	fmt.Fprintln(out, "Database cleared successfully")
	return nil
}
