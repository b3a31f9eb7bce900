// errors.go defines the patch error taxonomy. Every failure surfaced to
// a caller is a *Error carrying a stable code, the target path and a
// human-readable message, never a bare stack trace.
package patch

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies a patch failure.
type Code string

const (
	// CodeNotFound: the old string does not occur in the file.
	// Pre-mutation guard, no filesystem side effect.
	CodeNotFound Code = "not_found"

	// CodeAmbiguous: the old string occurs more than once.
	// Pre-mutation guard, no filesystem side effect.
	CodeAmbiguous Code = "ambiguous"

	// CodeTooLarge: the replacement exceeds the configured line ceiling
	// and the caller did not opt into large changes.
	CodeTooLarge Code = "too_large"

	// CodeVerificationFailed: post-write checks failed; the file was
	// rolled back to its pre-write content before this error surfaced.
	CodeVerificationFailed Code = "verification_failed"

	// CodeBackupUnavailable: backup creation failed. Degraded but
	// non-fatal; the run continues without a durable safety net.
	CodeBackupUnavailable Code = "backup_unavailable"

	// CodeRestoreFailed: the rollback write itself failed. Fatal: the
	// file may be in an unknown state.
	CodeRestoreFailed Code = "restore_failed"
)

// Error is a structured patch failure.
type Error struct {
	Code    Code
	Path    string
	Message string

	// Errors carries the aggregated verification errors for
	// CodeVerificationFailed
	Errors []string

	// Wrapped holds an underlying cause, if any
	Wrapped error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Path)
	if len(e.Errors) > 0 {
		msg += ": " + strings.Join(e.Errors, "; ")
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Wrapped }

// IsCode reports whether err is a patch error with the given code.
func IsCode(err error, code Code) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == code
}
