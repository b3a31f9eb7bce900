// Package typecheck runs external type-checking tools against patched
// files. It implements the verify.TypeChecker contract: report tool
// unavailability instead of failing, so the pipeline can stay fail-open.
package typecheck

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"strictpatch/internal/verify"
)

// CommandChecker shells out to a per-extension command line, appending
// the target file path as the final argument.
type CommandChecker struct {
	// commands maps lowercase file extensions to argv prefixes
	commands map[string][]string

	mu        sync.Mutex
	available map[string]bool // binary name -> LookPath result
}

// NewCommandChecker creates a checker for the given extension->argv map.
func NewCommandChecker(commands map[string][]string) *CommandChecker {
	normalized := make(map[string][]string, len(commands))
	for ext, argv := range commands {
		if len(argv) == 0 {
			continue
		}
		normalized[strings.ToLower(ext)] = argv
	}
	return &CommandChecker{
		commands:  normalized,
		available: make(map[string]bool),
	}
}

// Supports reports whether a command is configured for this file type.
func (c *CommandChecker) Supports(path string) bool {
	_, ok := c.commands[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Available reports whether the configured binary is on PATH.
func (c *CommandChecker) Available(path string) bool {
	argv, ok := c.commands[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return false
	}
	return c.binaryOnPath(argv[0])
}

func (c *CommandChecker) binaryOnPath(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if found, ok := c.available[name]; ok {
		return found
	}
	_, err := exec.LookPath(name)
	c.available[name] = err == nil
	return err == nil
}

// Check invokes the tool. A non-zero exit is a type-check failure with
// the tool's diagnostics as errors; only invocation problems return err.
func (c *CommandChecker) Check(ctx context.Context, path string) (verify.TypeCheckReport, error) {
	argv, ok := c.commands[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return verify.TypeCheckReport{}, fmt.Errorf("no checker configured for %s", filepath.Ext(path))
	}

	args := append(append([]string(nil), argv[1:]...), path)
	cmd := exec.CommandContext(ctx, argv[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return verify.TypeCheckReport{Valid: true}, nil
	}

	if _, isExit := err.(*exec.ExitError); !isExit {
		// Could not even start the tool
		return verify.TypeCheckReport{}, fmt.Errorf("running %s: %w", argv[0], err)
	}

	report := verify.TypeCheckReport{Valid: false}
	report.Errors, report.Warnings = splitDiagnostics(stdout.String() + stderr.String())
	if len(report.Errors) == 0 {
		report.Errors = []string{fmt.Sprintf("%s exited non-zero", argv[0])}
	}
	return report, nil
}

// splitDiagnostics classifies tool output lines. Lines explicitly marked
// as warnings stay warnings; everything else on a failing run is an error.
func splitDiagnostics(output string) (errors, warnings []string) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if strings.Contains(lower, "warning") && !strings.Contains(lower, "error") {
			warnings = append(warnings, line)
		} else {
			errors = append(errors, line)
		}
	}
	return errors, warnings
}
