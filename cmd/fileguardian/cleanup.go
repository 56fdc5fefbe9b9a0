package fileguardian

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cleanupRetentionDays int
	cleanupNameFilter    string
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup <destination>",
	Short: "Delete backup artifacts older than the retention window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := engineCtx.Cleanup(args[0], cleanupRetentionDays, cleanupNameFilter)
		if err != nil {
			return err
		}
		if err := printJSON(result); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "cleanup: %d deleted, %d retained\n", len(result.Deleted), len(result.Retained))
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupRetentionDays, "retention-days", 0, "delete artifacts older than this many days (0 = never delete)")
	cleanupCmd.Flags().StringVar(&cleanupNameFilter, "name-filter", "", "only consider artifacts whose backup id contains this substring")
}
