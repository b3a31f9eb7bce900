package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"strictpatch/internal/patch"
	"strictpatch/internal/typecheck"
	"strictpatch/internal/verify"
)

func runApply(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	oldString, _ := cmd.Flags().GetString("old")
	newString, _ := cmd.Flags().GetString("new")
	allowLarge, _ := cmd.Flags().GetBool("allow-large")
	buildCheck, _ := cmd.Flags().GetBool("build-check")
	textCheck, _ := cmd.Flags().GetBool("text-check")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	svc, err := patch.Open(workspace)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Debug("submitting patch",
		zap.String("file", filePath),
		zap.Int("old_len", len(oldString)),
		zap.Int("new_len", len(newString)))

	res, err := svc.Serializer.Submit(ctx, &patch.Request{
		FilePath:  filePath,
		OldString: oldString,
		NewString: newString,
		Options: patch.Options{
			AllowLargeChanges: allowLarge,
			BuildCheck:        buildCheck,
			TextCheck:         textCheck,
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("Patched %s\n", res.FilePath)
	fmt.Printf("  patch id:      %s\n", res.PatchID)
	if res.BackupID != "" {
		fmt.Printf("  backup id:     %s\n", res.BackupID)
	}
	fmt.Printf("  lines changed: %d (+%d/-%d)\n",
		res.LinesChanged, res.Changes.LinesAdded, res.Changes.LinesRemoved)
	fmt.Printf("  size change:   %+d bytes\n", res.Changes.SizeChange)
	fmt.Printf("  duration:      %v (queued %v)\n", res.ExecutionTime, res.QueueWait)
	for _, w := range res.Warnings {
		fmt.Printf("  warning:       %s\n", w)
	}
	for _, w := range res.Verification.Warnings {
		fmt.Printf("  warning:       %s\n", w)
	}

	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	buildCheck, _ := cmd.Flags().GetBool("build-check")
	textCheck, _ := cmd.Flags().GetBool("text-check")

	svc, err := patch.Open(workspace)
	if err != nil {
		return err
	}
	defer svc.Close()

	cfg := svc.Config
	checker := typecheck.NewCommandChecker(cfg.Verification.TypeCheckers)
	pipeline := verify.NewPipeline(checker)

	res := pipeline.Run(context.Background(), filePath, verify.Options{
		MaxFileSize: cfg.Verification.MaxFileSizeBytes,
		FailClosed:  cfg.Verification.FailClosed,
		BuildCheck:  cfg.Verification.BuildCheck || buildCheck,
		TextCheck:   cfg.Verification.TextCheck || textCheck,
		TextScript:  cfg.Verification.TextScript,
		StepTimeout: cfg.GetStepTimeout(),
	})

	for name, sr := range res.Steps {
		status := "pass"
		if sr.Skipped {
			status = "skipped"
		} else if len(sr.Errors) > 0 {
			status = "FAIL"
		}
		fmt.Printf("  %-16s %s\n", name, status)
	}
	for _, e := range res.Errors {
		fmt.Printf("  error:   %s\n", e)
	}
	for _, w := range res.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}

	if !res.Success {
		return fmt.Errorf("verification failed for %s", filePath)
	}
	fmt.Printf("%s verified\n", filePath)
	return nil
}

func runBackupsList(cmd *cobra.Command, args []string) error {
	svc, err := patch.Open(workspace)
	if err != nil {
		return err
	}
	defer svc.Close()

	metas, err := svc.ListBackups()
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Println("No backups.")
		return nil
	}

	fmt.Printf("%-26s  %-20s  %10s  %s\n", "ID", "CREATED", "SIZE", "FILE")
	for _, m := range metas {
		fmt.Printf("%-26s  %-20s  %10d  %s\n",
			m.ID, m.CreatedAt.Format(time.RFC3339), m.Size, m.OriginalPath)
	}
	return nil
}

func runBackupsRestore(cmd *cobra.Command, args []string) error {
	backupID := args[0]

	svc, err := patch.Open(workspace)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.Serializer.Restore(context.Background(), backupID)
	if err != nil {
		return err
	}

	fmt.Printf("Restored %s from backup %s at %s\n",
		res.FilePath, res.BackupID, res.RestoredAt.Format(time.RFC3339))
	return nil
}

func runBackupsPrune(cmd *cobra.Command, args []string) error {
	svc, err := patch.Open(workspace)
	if err != nil {
		return err
	}
	defer svc.Close()

	stats, err := svc.Serializer.Prune(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Examined %d backups, removed %d (%d failures)\n",
		stats.Examined, stats.Removed, stats.Failed)
	return nil
}
