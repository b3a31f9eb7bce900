// Package verify provides the post-write verification pipeline.
// Every patched file is checked after the write lands to ensure the
// mutation actually produced acceptable content, not just returned
// without error. Steps run in a fixed order and accumulate errors;
// a failing step never prevents later steps from running.
package verify

import (
	"context"
	"fmt"
	"time"

	"strictpatch/internal/logging"
)

// StepResult captures the outcome of a single verification step.
type StepResult struct {
	// Passed indicates whether the step found no errors
	Passed bool

	// Errors are hard failures that gate the overall result
	Errors []string

	// Warnings are advisory findings that never gate the result
	Warnings []string

	// Skipped is true when the step did not apply to this file
	Skipped bool

	// Duration is how long the step took
	Duration time.Duration

	// Details contains step-specific information
	Details map[string]interface{}
}

// Result aggregates all step results for one pipeline run.
type Result struct {
	// Success is true iff no gating step reported an error
	Success bool

	// Errors from all gating steps, in step order
	Errors []string

	// Warnings from all steps, in step order
	Warnings []string

	// Steps maps step name to its individual result
	Steps map[string]StepResult
}

// Step is a single verification check. Steps must be independent:
// each inspects the written file on its own and must not rely on
// another step having run.
type Step interface {
	// Name returns a stable identifier used in results and logs
	Name() string

	// Applicable reports whether the step should run for this file
	Applicable(path string, opts Options) bool

	// Check inspects the file. Implementations should honor ctx
	// cancellation; the pipeline enforces a per-step deadline.
	Check(ctx context.Context, path string, opts Options) StepResult

	// Advisory steps contribute warnings only; any errors they
	// report are demoted to warnings by the pipeline
	Advisory() bool
}

// Options carries per-run knobs into the steps.
type Options struct {
	// MaxFileSize is the integrity ceiling in bytes
	MaxFileSize int64

	// FailClosed turns a missing external type checker into an error
	// instead of a degraded-coverage warning
	FailClosed bool

	// BuildCheck enables the shallow import/export scan
	BuildCheck bool

	// TextCheck enables non-Latin script integrity checking
	TextCheck bool

	// TextScript names the Unicode script validated by the text check
	TextScript string

	// StepTimeout bounds each step; an overrun degrades to a warning
	StepTimeout time.Duration
}

// Pipeline runs an ordered, fixed set of verification steps.
type Pipeline struct {
	steps []Step
}

// NewPipeline composes the standard step order:
// syntax balance, encoding, integrity, typecheck, build sanity, text integrity.
// checker may be nil, in which case the typecheck step always degrades.
func NewPipeline(checker TypeChecker) *Pipeline {
	return &Pipeline{
		steps: []Step{
			NewBalanceStep(),
			NewEncodingStep(),
			NewIntegrityStep(),
			NewTypeCheckStep(checker),
			NewBuildSanityStep(),
			NewTextIntegrityStep(),
		},
	}
}

// NewPipelineWithSteps builds a pipeline from an explicit step list (tests).
func NewPipelineWithSteps(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Run executes every applicable step against the file and aggregates
// the results. Steps that exceed opts.StepTimeout are abandoned and
// recorded as a degraded-coverage warning rather than a failure.
func (p *Pipeline) Run(ctx context.Context, path string, opts Options) Result {
	timer := logging.StartTimer(logging.CategoryVerify, "pipeline.Run")
	defer timer.Stop()

	res := Result{
		Success: true,
		Steps:   make(map[string]StepResult, len(p.steps)),
	}

	for _, step := range p.steps {
		if !step.Applicable(path, opts) {
			res.Steps[step.Name()] = StepResult{Passed: true, Skipped: true}
			continue
		}

		sr := p.runStep(ctx, step, path, opts)
		if step.Advisory() && len(sr.Errors) > 0 {
			// Advisory steps never gate the result
			sr.Warnings = append(sr.Warnings, sr.Errors...)
			sr.Errors = nil
			sr.Passed = true
		}
		res.Steps[step.Name()] = sr

		for _, e := range sr.Errors {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", step.Name(), e))
		}
		for _, w := range sr.Warnings {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %s", step.Name(), w))
		}
		if len(sr.Errors) > 0 {
			res.Success = false
			logging.Verify("step %s failed on %s: %v", step.Name(), path, sr.Errors)
		} else {
			logging.VerifyDebug("step %s passed on %s (%d warnings)", step.Name(), path, len(sr.Warnings))
		}
	}

	return res
}

// runStep enforces the per-step deadline. A step that does not return
// in time is reported as unavailable tooling, not a verification failure,
// so a hung external tool cannot stall the whole patch queue.
func (p *Pipeline) runStep(ctx context.Context, step Step, path string, opts Options) StepResult {
	timeout := opts.StepTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan StepResult, 1)
	start := time.Now()
	go func() {
		done <- step.Check(stepCtx, path, opts)
	}()

	select {
	case sr := <-done:
		sr.Duration = time.Since(start)
		return sr
	case <-stepCtx.Done():
		return StepResult{
			Passed:   true,
			Warnings: []string{fmt.Sprintf("check did not complete within %v, coverage degraded", timeout)},
			Duration: time.Since(start),
		}
	}
}
