// integrity.go enforces basic file sanity bounds after a write.
package verify

import (
	"context"
	"fmt"
	"os"
)

// DefaultMaxFileSize bounds patched files when no limit is configured.
const DefaultMaxFileSize = 1 << 20 // 1 MiB

// IntegrityStep requires the written file to exist, be non-empty and
// stay under the configured size ceiling.
type IntegrityStep struct{}

// NewIntegrityStep creates the file-integrity step.
func NewIntegrityStep() *IntegrityStep { return &IntegrityStep{} }

func (s *IntegrityStep) Name() string { return "integrity" }

func (s *IntegrityStep) Advisory() bool { return false }

func (s *IntegrityStep) Applicable(path string, opts Options) bool { return true }

func (s *IntegrityStep) Check(ctx context.Context, path string, opts Options) StepResult {
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	info, err := os.Stat(path)
	if err != nil {
		return StepResult{Errors: []string{fmt.Sprintf("cannot stat file: %v", err)}}
	}

	sr := StepResult{
		Passed:  true,
		Details: map[string]interface{}{"size": info.Size(), "max_size": maxSize},
	}

	if info.Size() == 0 {
		sr.Passed = false
		sr.Errors = append(sr.Errors, "file is empty after patch")
	}
	if info.Size() > maxSize {
		sr.Passed = false
		sr.Errors = append(sr.Errors,
			fmt.Sprintf("file size %d exceeds limit %d", info.Size(), maxSize))
	}

	return sr
}
