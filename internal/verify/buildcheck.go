// buildcheck.go performs a shallow static scan for obviously malformed
// import/export statements. Findings are warnings, never hard errors:
// the scan is heuristic and must not veto a patch on its own.
package verify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// BuildSanityStep scans module files for import/export lines that cannot
// possibly resolve. Config-gated via the build_check option.
type BuildSanityStep struct{}

// NewBuildSanityStep creates the build-sanity step.
func NewBuildSanityStep() *BuildSanityStep { return &BuildSanityStep{} }

func (s *BuildSanityStep) Name() string { return "build_sanity" }

func (s *BuildSanityStep) Advisory() bool { return true }

var buildCheckExts = map[string]bool{
	".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".mjs": true, ".cjs": true,
}

func (s *BuildSanityStep) Applicable(path string, opts Options) bool {
	return opts.BuildCheck && buildCheckExts[strings.ToLower(filepath.Ext(path))]
}

var (
	// import ... from <specifier> where the specifier is not quoted
	unquotedFromRe = regexp.MustCompile(`^\s*import\s+.*\bfrom\s+([^'"\s;]+)\s*;?\s*$`)

	// bare "import X" with neither a from clause nor a quoted side-effect module
	danglingImportRe = regexp.MustCompile(`^\s*import\s+[A-Za-z_$][\w$]*\s*;?\s*$`)

	// export from with an unquoted specifier
	exportFromRe = regexp.MustCompile(`^\s*export\s+.*\bfrom\s+([^'"\s;]+)\s*;?\s*$`)
)

func (s *BuildSanityStep) Check(ctx context.Context, path string, opts Options) StepResult {
	content, err := os.ReadFile(path)
	if err != nil {
		return StepResult{Passed: true, Warnings: []string{fmt.Sprintf("cannot read file: %v", err)}}
	}

	sr := StepResult{Passed: true}

	for i, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			continue
		}

		if m := unquotedFromRe.FindStringSubmatch(line); m != nil {
			sr.Warnings = append(sr.Warnings,
				fmt.Sprintf("line %d: unquoted import specifier %q", i+1, m[1]))
		}
		if danglingImportRe.MatchString(line) {
			sr.Warnings = append(sr.Warnings,
				fmt.Sprintf("line %d: import without module specifier", i+1))
		}
		if m := exportFromRe.FindStringSubmatch(line); m != nil {
			sr.Warnings = append(sr.Warnings,
				fmt.Sprintf("line %d: unquoted export specifier %q", i+1, m[1]))
		}
		if strings.Count(trimmed, "export default") > 1 {
			sr.Warnings = append(sr.Warnings,
				fmt.Sprintf("line %d: multiple default exports on one line", i+1))
		}
	}

	return sr
}
