// script.go validates encoding integrity of non-Latin script text.
// The booking domain carries Hebrew copy inside source literals; a patch
// that round-trips that text through the wrong encoding produces mojibake
// that every other step is blind to. Advisory only.
package verify

import (
	"context"
	"fmt"
	"os"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// TextIntegrityStep checks the configured Unicode script's text for
// mojibake artifacts and normalization drift. Config-gated via the
// text_check option; defaults to the Hebrew script.
type TextIntegrityStep struct{}

// NewTextIntegrityStep creates the text-integrity step.
func NewTextIntegrityStep() *TextIntegrityStep { return &TextIntegrityStep{} }

func (s *TextIntegrityStep) Name() string { return "text_integrity" }

func (s *TextIntegrityStep) Advisory() bool { return true }

func (s *TextIntegrityStep) Applicable(path string, opts Options) bool {
	return opts.TextCheck
}

func (s *TextIntegrityStep) Check(ctx context.Context, path string, opts Options) StepResult {
	content, err := os.ReadFile(path)
	if err != nil {
		return StepResult{Passed: true, Warnings: []string{fmt.Sprintf("cannot read file: %v", err)}}
	}

	scriptName := opts.TextScript
	if scriptName == "" {
		scriptName = "Hebrew"
	}
	script, ok := unicode.Scripts[scriptName]
	if !ok {
		return StepResult{
			Passed:   true,
			Warnings: []string{fmt.Sprintf("unknown script %q, text check skipped", scriptName)},
		}
	}

	text := string(content)
	sr := StepResult{Passed: true, Details: map[string]interface{}{"script": scriptName}}

	scriptRunes := 0
	for _, r := range text {
		if unicode.Is(script, r) {
			scriptRunes++
		}
	}
	sr.Details["script_runes"] = scriptRunes
	if scriptRunes == 0 {
		return sr
	}

	// Hebrew text mangled through a Latin-1 round trip decodes as a
	// multiplication sign followed by a stray Latin-1 character.
	if scriptName == "Hebrew" {
		if n := countMojibakePairs(text); n > 0 {
			sr.Warnings = append(sr.Warnings,
				fmt.Sprintf("%d suspected mojibake sequences (Hebrew read as Latin-1)", n))
		}
	}

	if !norm.NFC.IsNormalString(text) {
		sr.Warnings = append(sr.Warnings,
			fmt.Sprintf("%s text is not NFC-normalized, possible double-encoding", scriptName))
	}

	// A combining mark with no base character means a split rune sequence.
	prev := rune(0)
	for _, r := range text {
		if unicode.Is(unicode.Mn, r) && (prev == 0 || prev == '\n' || unicode.IsSpace(prev)) {
			sr.Warnings = append(sr.Warnings, "orphaned combining mark detected")
			break
		}
		prev = r
	}

	return sr
}

// countMojibakePairs counts U+00D7 MULTIPLICATION SIGN immediately
// followed by a Latin-1 supplement or low-ASCII mark character, the
// signature of UTF-8 Hebrew decoded as Latin-1.
func countMojibakePairs(text string) int {
	count := 0
	runes := []rune(text)
	for i := 0; i < len(runes)-1; i++ {
		if runes[i] != '×' {
			continue
		}
		next := runes[i+1]
		if next >= 0x80 && next <= 0xBF {
			count++
		}
	}
	return count
}
