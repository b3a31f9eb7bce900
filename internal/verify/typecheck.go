// typecheck.go bridges the pipeline to an external type-checking tool.
// The step is deliberately fail-open: a missing or broken tool degrades
// to a warning so patches are not blocked by absent tooling. Deployments
// that prefer strictness set fail_closed in the verification config.
package verify

import (
	"context"
	"fmt"
)

// TypeCheckReport is the contract required from an external type checker.
type TypeCheckReport struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// TypeChecker is the collaborator consumed by the typecheck step.
// Implementations must be safely callable when the underlying tool is
// not installed: report unavailability, never panic.
type TypeChecker interface {
	// Supports reports whether the checker handles this file type
	Supports(path string) bool

	// Available reports whether the underlying tool is installed
	Available(path string) bool

	// Check runs the tool. An error return means the tool itself
	// misbehaved, not that the file failed to type-check.
	Check(ctx context.Context, path string) (TypeCheckReport, error)
}

// TypeCheckStep invokes the external type checker for applicable files.
type TypeCheckStep struct {
	checker TypeChecker
}

// NewTypeCheckStep creates the typecheck step. checker may be nil.
func NewTypeCheckStep(checker TypeChecker) *TypeCheckStep {
	return &TypeCheckStep{checker: checker}
}

func (s *TypeCheckStep) Name() string { return "typecheck" }

func (s *TypeCheckStep) Advisory() bool { return false }

func (s *TypeCheckStep) Applicable(path string, opts Options) bool {
	return s.checker != nil && s.checker.Supports(path)
}

func (s *TypeCheckStep) Check(ctx context.Context, path string, opts Options) StepResult {
	if !s.checker.Available(path) {
		return s.degraded(opts, "type checker not installed")
	}

	report, err := s.checker.Check(ctx, path)
	if err != nil {
		// Tool crashed or could not be invoked. Same treatment as
		// an absent tool: availability over strict correctness.
		return s.degraded(opts, fmt.Sprintf("type checker failed to run: %v", err))
	}

	sr := StepResult{
		Passed:   report.Valid,
		Warnings: report.Warnings,
		Details:  map[string]interface{}{"error_count": len(report.Errors)},
	}
	if !report.Valid {
		sr.Errors = report.Errors
		if len(sr.Errors) == 0 {
			sr.Errors = []string{"type check reported failure without details"}
		}
	}
	return sr
}

// degraded converts tool unavailability into the configured outcome.
func (s *TypeCheckStep) degraded(opts Options, reason string) StepResult {
	if opts.FailClosed {
		return StepResult{Errors: []string{reason}}
	}
	return StepResult{
		Passed:   true,
		Warnings: []string{reason + ", coverage degraded"},
	}
}
