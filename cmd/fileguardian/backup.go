package fileguardian

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/fileguardian/internal/cloud"
	"github.com/example/fileguardian/internal/engine"
)

var (
	backupName     string
	backupFull     bool
	backupIncr     bool
	backupCompress bool
	backupExclude  []string
	backupSign     bool
	signerTarget   string
	reportPath     string
	mirrorURI      string
)

var backupCmd = &cobra.Command{
	Use:   "backup <source> <destination>",
	Short: "Take a Full or Incremental backup of source into destination",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := engine.BackupOptions{
			BackupName:         backupName,
			ForceFull:          backupFull,
			RequestIncremental: backupIncr,
			Compress:           backupCompress,
			ExcludePatterns:    backupExclude,
			ReportFormat:       engine.FormatJSON,
			ReportOutputPath:   reportPath,
			SignReport:         backupSign,
			SignerTarget:       signerTarget,
		}
		if mirrorURI != "" {
			uri, err := cloud.ParseCloudURI(mirrorURI)
			if err != nil {
				return fmt.Errorf("invalid --mirror URI: %w", err)
			}
			opts.Mirror = uri.ToConfig()
		}

		result, err := engineCtx.Backup(args[0], args[1], opts)
		if err != nil {
			return err
		}
		if err := printJSON(result); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "backup %s: %s (%d new, %d modified, %d deleted)\n",
			result.BackupID, result.BackupType, len(result.Diff.New), len(result.Diff.Modified), len(result.Diff.Deleted))
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVar(&backupName, "name", "", "backup name, used to build the artifact id (required)")
	backupCmd.Flags().BoolVar(&backupFull, "full", false, "force a Full backup regardless of prior state")
	backupCmd.Flags().BoolVar(&backupIncr, "incremental", false, "request an Incremental backup (falls back to Full with a warning if no prior backup exists)")
	backupCmd.Flags().BoolVar(&backupCompress, "compress", false, "pack the artifact as a .zip instead of a mirrored directory")
	backupCmd.Flags().StringArrayVar(&backupExclude, "exclude", nil, "glob pattern to exclude (repeatable, supports **)")
	backupCmd.Flags().BoolVar(&backupSign, "sign", false, "sign the run report with the OS-keyring-held HMAC key")
	backupCmd.Flags().StringVar(&signerTarget, "signer-target", "", "OS keyring service name for the signing key (default: fileguardian's own)")
	backupCmd.Flags().StringVar(&reportPath, "report", "", "write the JSON report (and, with --sign, its .sig sidecar) to this path")
	backupCmd.Flags().StringVar(&mirrorURI, "mirror", "", "cloud URI to best-effort upload the artifact to (e.g. s3://bucket/prefix)")
	backupCmd.MarkFlagRequired("name")
}
