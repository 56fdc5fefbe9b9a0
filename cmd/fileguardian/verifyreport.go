package fileguardian

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/fileguardian/internal/sign"
)

var verifyReportSigPath string

var verifyReportCmd = &cobra.Command{
	Use:   "verify-report <report-file>",
	Short: "Verify a report's .sig sidecar against the report bytes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reportBytes, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read report file: %w", err)
		}

		sigPath := verifyReportSigPath
		if sigPath == "" {
			sigPath = args[0] + ".sig"
		}
		sig, err := sign.LoadSignature(sigPath)
		if err != nil {
			return err
		}

		result, err := engineCtx.VerifyReport(reportBytes, sig)
		if err != nil {
			return err
		}
		if err := printJSON(result); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "verify-report %s: valid=%v\n", args[0], result.Valid)
		if !result.Valid {
			return fmt.Errorf("signature mismatch")
		}
		return nil
	},
}

func init() {
	verifyReportCmd.Flags().StringVar(&verifyReportSigPath, "sig", "", "path to the .sig sidecar (default: <report-file>.sig)")
}
