// encoding.go detects corrupted encodings left behind by a bad write.
package verify

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// EncodingStep flags replacement characters, invalid UTF-8 sequences and
// NUL bytes. Any occurrence means the write corrupted the file.
type EncodingStep struct{}

// NewEncodingStep creates the encoding-validity step.
func NewEncodingStep() *EncodingStep { return &EncodingStep{} }

func (s *EncodingStep) Name() string { return "encoding" }

func (s *EncodingStep) Advisory() bool { return false }

func (s *EncodingStep) Applicable(path string, opts Options) bool { return true }

func (s *EncodingStep) Check(ctx context.Context, path string, opts Options) StepResult {
	content, err := os.ReadFile(path)
	if err != nil {
		return StepResult{Errors: []string{fmt.Sprintf("cannot read file: %v", err)}}
	}

	sr := StepResult{Passed: true}

	if !utf8.Valid(content) {
		sr.Passed = false
		sr.Errors = append(sr.Errors, "file contains invalid UTF-8 sequences")
	}

	if n := strings.Count(string(content), "�"); n > 0 {
		sr.Passed = false
		sr.Errors = append(sr.Errors,
			fmt.Sprintf("file contains %d replacement characters (U+FFFD), encoding corrupted", n))
	}

	if bytes.IndexByte(content, 0) >= 0 {
		sr.Passed = false
		sr.Errors = append(sr.Errors, "file contains NUL bytes")
	}

	return sr
}
