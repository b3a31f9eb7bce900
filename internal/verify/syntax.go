// syntax.go provides the bracket-balance step with native parsers for
// file types Go can check directly.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// BalanceStep counts matching bracket, paren and brace pairs. A mismatch
// is a hard error. For extensions with a registered native parser the
// content is additionally parsed; parse failures are hard errors too.
type BalanceStep struct {
	// parsers maps file extensions to parser functions
	parsers map[string]func([]byte) error
}

// NewBalanceStep creates the syntax-balance step with built-in parsers.
func NewBalanceStep() *BalanceStep {
	s := &BalanceStep{
		parsers: make(map[string]func([]byte) error),
	}

	s.parsers[".go"] = parseGoSyntax
	s.parsers[".json"] = parseJSONSyntax
	s.parsers[".yaml"] = parseYAMLSyntax
	s.parsers[".yml"] = parseYAMLSyntax

	return s
}

// RegisterParser adds a custom parser for a file extension.
func (s *BalanceStep) RegisterParser(ext string, parserFunc func([]byte) error) {
	s.parsers[ext] = parserFunc
}

func (s *BalanceStep) Name() string { return "syntax_balance" }

func (s *BalanceStep) Advisory() bool { return false }

func (s *BalanceStep) Applicable(path string, opts Options) bool { return true }

// pairs checked by the balance counter
var bracketPairs = []struct {
	open, close rune
	label       string
}{
	{'(', ')', "parentheses"},
	{'{', '}', "braces"},
	{'[', ']', "brackets"},
}

func (s *BalanceStep) Check(ctx context.Context, path string, opts Options) StepResult {
	content, err := os.ReadFile(path)
	if err != nil {
		return StepResult{Errors: []string{fmt.Sprintf("cannot read file: %v", err)}}
	}

	sr := StepResult{Passed: true, Details: map[string]interface{}{}}

	text := string(content)
	for _, p := range bracketPairs {
		opens := strings.Count(text, string(p.open))
		closes := strings.Count(text, string(p.close))
		sr.Details[p.label] = [2]int{opens, closes}
		if opens != closes {
			sr.Passed = false
			sr.Errors = append(sr.Errors,
				fmt.Sprintf("unbalanced %s: %d open vs %d close", p.label, opens, closes))
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	if parserFunc, ok := s.parsers[ext]; ok {
		if err := parserFunc(content); err != nil {
			sr.Passed = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("parse failed (%s): %v", ext, err))
		}
	}

	return sr
}

// parseGoSyntax parses Go source code.
func parseGoSyntax(content []byte) error {
	fset := token.NewFileSet()
	_, err := parser.ParseFile(fset, "check.go", content, parser.AllErrors)
	return err
}

// parseJSONSyntax parses JSON content.
func parseJSONSyntax(content []byte) error {
	var v interface{}
	return json.Unmarshal(content, &v)
}

// parseYAMLSyntax parses YAML content.
func parseYAMLSyntax(content []byte) error {
	var v interface{}
	return yaml.Unmarshal(content, &v)
}
