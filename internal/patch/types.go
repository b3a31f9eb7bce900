// types.go defines the request/result shapes exchanged with callers.
package patch

import (
	"time"

	"strictpatch/internal/verify"
)

// Options are caller-supplied knobs for a single patch request.
type Options struct {
	// AllowLargeChanges bypasses the lines-changed ceiling
	AllowLargeChanges bool

	// BuildCheck enables the shallow import/export scan for this run
	BuildCheck bool

	// TextCheck enables non-Latin script integrity checking for this run
	TextCheck bool
}

// Request is one exact-substring patch submission. Owned by the
// serializer until dequeued; discarded after resolution.
type Request struct {
	ID          string
	FilePath    string
	OldString   string
	NewString   string
	Options     Options
	SubmittedAt time.Time
}

// Changes carries an audit-friendly summary of what the patch did,
// with truncated previews so logs do not leak full diffs.
type Changes struct {
	OldPreview   string
	NewPreview   string
	SizeChange   int
	LinesAdded   int
	LinesRemoved int
}

// Result is returned to the caller on success.
type Result struct {
	Success       bool
	PatchID       string
	FilePath      string
	LinesChanged  int
	ExecutionTime time.Duration
	QueueWait     time.Duration
	Verification  verify.Result
	BackupID      string
	Changes       Changes

	// Warnings surfaced outside the pipeline, e.g. a degraded run
	// after a failed backup write
	Warnings []string
}

// RestoreResult is returned by an explicit rollback-to-backup.
type RestoreResult struct {
	FilePath   string
	BackupID   string
	RestoredAt time.Time
}

// truncate shortens s to max runes for previews.
func truncate(s string, max int) string {
	if max <= 0 {
		max = 100
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
