// executor.go applies a single verified patch: uniqueness check, backup,
// write, pipeline, rollback. It must only ever be invoked from the
// serializer; it assumes exclusive ownership of the target file.
package patch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"strictpatch/internal/backup"
	"strictpatch/internal/config"
	"strictpatch/internal/diff"
	"strictpatch/internal/logging"
	"strictpatch/internal/telemetry"
	"strictpatch/internal/verify"
)

// Executor performs patch runs against the filesystem.
type Executor struct {
	cfg      *config.Config
	backups  *backup.Store
	pipeline *verify.Pipeline
}

// NewExecutor wires the executor to its backup store and pipeline.
func NewExecutor(cfg *config.Config, backups *backup.Store, pipeline *verify.Pipeline) *Executor {
	return &Executor{cfg: cfg, backups: backups, pipeline: pipeline}
}

// verifyOptions merges config defaults with per-request opt-ins.
func (e *Executor) verifyOptions(opts Options) verify.Options {
	v := e.cfg.Verification
	return verify.Options{
		MaxFileSize: v.MaxFileSizeBytes,
		FailClosed:  v.FailClosed,
		BuildCheck:  v.BuildCheck || opts.BuildCheck,
		TextCheck:   v.TextCheck || opts.TextCheck,
		TextScript:  v.TextScript,
		StepTimeout: e.cfg.GetStepTimeout(),
	}
}

// Execute applies one patch request.
//
// Ordering note: the backup is created before the size ceiling is
// checked, so a rejected too-large patch leaves a backup behind. That
// matches the long-standing behavior callers observe; retention cleans
// the orphan up on the next pass.
func (e *Executor) Execute(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	timer := logging.StartTimer(logging.CategoryPatch, "Execute")
	defer timer.Stop()

	raw, err := os.ReadFile(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read target file %s: %w", req.FilePath, err)
	}
	original := string(raw)

	mode := fs.FileMode(0644)
	if info, statErr := os.Stat(req.FilePath); statErr == nil {
		mode = info.Mode()
	}

	// Pre-mutation guard: the old string must identify exactly one site.
	count := strings.Count(original, req.OldString)
	switch {
	case count == 0:
		telemetry.ObservePatchFailed(string(CodeNotFound))
		return nil, &Error{
			Code:    CodeNotFound,
			Path:    req.FilePath,
			Message: "old string not found in file",
		}
	case count > 1:
		telemetry.ObservePatchFailed(string(CodeAmbiguous))
		return nil, &Error{
			Code:    CodeAmbiguous,
			Path:    req.FilePath,
			Message: fmt.Sprintf("old string occurs %d times, must uniquely identify one location", count),
		}
	}

	patchID := uuid.NewString()
	logging.Patch("patch %s: %s (%d -> %d bytes of old/new string)",
		patchID, req.FilePath, len(req.OldString), len(req.NewString))

	var warnings []string
	backupID := ""
	meta, backupErr := e.backups.Create(req.FilePath, raw, patchID)
	if backupErr != nil {
		// Degraded run: the patch proceeds without a durable safety
		// net. Rollback falls back to the in-memory original.
		logging.BackupWarn("patch %s: backup creation failed, degraded run: %v", patchID, backupErr)
		warnings = append(warnings,
			fmt.Sprintf("%s: %v", CodeBackupUnavailable, backupErr))
	} else {
		backupID = meta.ID
	}

	linesChanged := strings.Count(req.NewString, "\n") + 1
	if linesChanged > e.cfg.Patch.MaxLinesChanged && !req.Options.AllowLargeChanges {
		telemetry.ObservePatchFailed(string(CodeTooLarge))
		return nil, &Error{
			Code: CodeTooLarge,
			Path: req.FilePath,
			Message: fmt.Sprintf("replacement spans %d lines, limit is %d (set AllowLargeChanges to override)",
				linesChanged, e.cfg.Patch.MaxLinesChanged),
		}
	}

	newContent := strings.Replace(original, req.OldString, req.NewString, 1)
	if err := os.WriteFile(req.FilePath, []byte(newContent), mode); err != nil {
		telemetry.ObservePatchFailed("write_failed")
		if restoreErr := e.restoreContent(req.FilePath, raw, mode, backupID); restoreErr != nil {
			return nil, restoreErr
		}
		return nil, fmt.Errorf("failed to write patched file %s: %w", req.FilePath, err)
	}

	verifyStart := time.Now()
	vres := e.pipeline.Run(ctx, req.FilePath, e.verifyOptions(req.Options))
	telemetry.ObserveVerifyDuration(time.Since(verifyStart))

	if !vres.Success {
		telemetry.ObservePatchFailed(string(CodeVerificationFailed))
		if restoreErr := e.restoreContent(req.FilePath, raw, mode, backupID); restoreErr != nil {
			return nil, restoreErr
		}
		telemetry.ObserveRollback()
		logging.Patch("patch %s rolled back: %v", patchID, vres.Errors)
		return nil, &Error{
			Code:    CodeVerificationFailed,
			Path:    req.FilePath,
			Message: "post-write verification failed, file restored",
			Errors:  vres.Errors,
		}
	}

	stats := diff.Compute(original, newContent)
	previewLen := e.cfg.Patch.PreviewLength

	res := &Result{
		Success:       true,
		PatchID:       patchID,
		FilePath:      req.FilePath,
		LinesChanged:  linesChanged,
		ExecutionTime: time.Since(start),
		Verification:  vres,
		BackupID:      backupID,
		Warnings:      warnings,
		Changes: Changes{
			OldPreview:   truncate(req.OldString, previewLen),
			NewPreview:   truncate(req.NewString, previewLen),
			SizeChange:   len(newContent) - len(original),
			LinesAdded:   stats.LinesAdded,
			LinesRemoved: stats.LinesRemoved,
		},
	}

	logging.Patch("patch %s applied to %s (%+d bytes, %d lines)",
		patchID, req.FilePath, res.Changes.SizeChange, linesChanged)

	return res, nil
}

// restoreContent puts the pre-write bytes back. Preference order: the
// durable backup when one was taken, the in-memory original otherwise.
// A failure here violates the rollback invariant and is fatal.
func (e *Executor) restoreContent(path string, original []byte, mode fs.FileMode, backupID string) error {
	content := original
	if backupID != "" {
		if b, err := e.backups.Read(backupID); err == nil {
			content = b.Content
		} else {
			logging.BackupWarn("rollback: cannot read backup %s, using in-memory copy: %v", backupID, err)
		}
	}

	if err := os.WriteFile(path, content, mode); err != nil {
		logging.PatchError("ROLLBACK FAILED for %s: %v — file may be in an inconsistent state", path, err)
		telemetry.ObservePatchFailed(string(CodeRestoreFailed))
		return &Error{
			Code:    CodeRestoreFailed,
			Path:    path,
			Message: "rollback write failed, file may be in an inconsistent state",
			Wrapped: err,
		}
	}
	return nil
}

// Restore rewrites a file from an explicit backup id.
func (e *Executor) Restore(ctx context.Context, backupID string) (*RestoreResult, error) {
	b, err := e.backups.Read(backupID)
	if err != nil {
		return nil, err
	}

	mode := fs.FileMode(0644)
	if info, statErr := os.Stat(b.OriginalPath); statErr == nil {
		mode = info.Mode()
	}

	if err := os.WriteFile(b.OriginalPath, b.Content, mode); err != nil {
		logging.PatchError("restore of backup %s to %s failed: %v", backupID, b.OriginalPath, err)
		return nil, &Error{
			Code:    CodeRestoreFailed,
			Path:    b.OriginalPath,
			Message: "restore write failed",
			Wrapped: err,
		}
	}

	logging.Patch("restored %s from backup %s", b.OriginalPath, backupID)
	return &RestoreResult{
		FilePath:   b.OriginalPath,
		BackupID:   backupID,
		RestoredAt: time.Now(),
	}, nil
}
