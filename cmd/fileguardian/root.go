// Package fileguardian is the CLI entry point: thin cobra subcommands
// that parse flags into an engine.Context and the matching operation's
// options struct, call the operation, and print its structured result
// as JSON to stdout. No config-file loading (flags only) and no
// audit/rate-limit wiring (see DESIGN.md for what that would have
// needed and why it was dropped).
package fileguardian

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/fileguardian/internal/engine"
	"github.com/example/fileguardian/internal/logger"
)

var (
	logLevel    string
	logFormat   string
	logFile     string
	hashWorkers int

	engineCtx *engine.Context
)

var rootCmd = &cobra.Command{
	Use:   "fileguardian",
	Short: "Point-in-time file backup and restore",
	Long: `fileguardian takes Full and Incremental backups of a file tree,
verifies artifacts for bit-rot, signs run reports, and restores a
source tree to any recorded point in time.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var log logger.Logger
		var err error
		if logFile != "" {
			log, err = logger.FileLogger(logLevel, logFormat, logFile)
			if err != nil {
				return err
			}
		} else {
			log = logger.New(logLevel, logFormat)
		}

		engineCtx = engine.NewContext()
		engineCtx.Logger = log
		if hashWorkers > 0 {
			engineCtx.HashWorkers = hashWorkers
		}
		return nil
	},
}

// Execute runs the CLI to completion.
func Execute(ctx context.Context) error {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text|json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().IntVar(&hashWorkers, "hash-workers", 0, "bound on concurrent file hashing (0 = auto)")
	return rootCmd.ExecuteContext(ctx)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(verifyReportCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(cleanupCmd)
}
