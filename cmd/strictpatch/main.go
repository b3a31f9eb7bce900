package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose   bool
	workspace string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "strictpatch",
	Short: "strictpatch - verified exact-substring file patching with backup/rollback",
	Long: `strictpatch applies exact-substring patches to files inside a safety envelope:

  1. The old string must occur exactly once (no ambiguous edits)
  2. A byte-for-byte backup is taken before any write
  3. The written file runs through a verification pipeline
     (syntax balance, encoding, integrity, optional type check)
  4. Verification failure rolls the file back automatically
  5. All mutations are serialized FIFO, one in flight at a time

Backups are retained per the configured age and count limits and can be
listed, restored and pruned from here.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// applyCmd applies a single patch
var applyCmd = &cobra.Command{
	Use:   "apply [file]",
	Short: "Apply a verified exact-substring patch to a file",
	Long: `Replaces one exact occurrence of --old with --new in the target file.

The patch is rejected before any write when the old string is absent or
ambiguous, and rolled back from backup when post-write verification fails.

Example:
  strictpatch apply src/pricing.ts --old "const rate = 1;" --new "const rate = 2;"`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

// verifyCmd runs the pipeline without patching
var verifyCmd = &cobra.Command{
	Use:   "verify [file]",
	Short: "Run the verification pipeline against a file as-is",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

// backupsCmd groups backup administration
var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Inspect and manage patch backups",
}

var backupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	RunE:  runBackupsList,
}

var backupsRestoreCmd = &cobra.Command{
	Use:   "restore [backup-id]",
	Short: "Restore a file from a backup",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupsRestore,
}

var backupsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy now",
	RunE:  runBackupsPrune,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "workspace directory")

	applyCmd.Flags().String("old", "", "exact string to replace (required)")
	applyCmd.Flags().String("new", "", "replacement string (required)")
	applyCmd.Flags().Bool("allow-large", false, "permit replacements above the line ceiling")
	applyCmd.Flags().Bool("build-check", false, "enable the shallow import/export scan")
	applyCmd.Flags().Bool("text-check", false, "enable non-Latin script integrity checking")
	applyCmd.Flags().Duration("timeout", 2*time.Minute, "overall request timeout")
	_ = applyCmd.MarkFlagRequired("old")
	_ = applyCmd.MarkFlagRequired("new")

	verifyCmd.Flags().Bool("build-check", false, "enable the shallow import/export scan")
	verifyCmd.Flags().Bool("text-check", false, "enable non-Latin script integrity checking")

	backupsCmd.AddCommand(backupsListCmd)
	backupsCmd.AddCommand(backupsRestoreCmd)
	backupsCmd.AddCommand(backupsPruneCmd)

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(backupsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
