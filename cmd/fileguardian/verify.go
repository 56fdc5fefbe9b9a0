package fileguardian

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <backup-artifact>",
	Short: "Recompute hashes for one backup artifact and report Intact/Corrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		id := strings.TrimSuffix(filepath.Base(path), ".zip")

		result, err := engineCtx.Verify(path, id)
		if err != nil {
			return err
		}
		if err := printJSON(result); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "verify %s: %s (%d corrupted, %d missing, %d extra)\n",
			result.BackupID, result.Status, result.CorruptedCount, result.MissingCount, result.ExtraCount)
		return nil
	},
}
