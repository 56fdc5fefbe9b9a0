package fileguardian

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var restorePointInTime string

var restoreCmd = &cobra.Command{
	Use:   "restore <destination> <target>",
	Short: "Resolve the backup chain and replay it into an empty target tree",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var pit *time.Time
		if restorePointInTime != "" {
			t, err := time.Parse(time.RFC3339, restorePointInTime)
			if err != nil {
				return fmt.Errorf("invalid --point-in-time (want RFC3339): %w", err)
			}
			pit = &t
		}

		result, err := engineCtx.Restore(args[0], args[1], pit)
		if err != nil {
			return err
		}
		if err := printJSON(result); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "restore %s: %d files written, %d deleted, chain=%v\n",
			result.State, result.FilesWritten, result.FilesDeleted, result.ChainIDs)
		return nil
	},
}

func init() {
	restoreCmd.Flags().StringVar(&restorePointInTime, "point-in-time", "", "restore to the latest chain on or before this RFC3339 timestamp (default: the latest available)")
}
