package typecheck

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCommandChecker_Supports(t *testing.T) {
	c := NewCommandChecker(map[string][]string{
		".TS": {"tsc", "--noEmit"},
		".js": {"node", "--check"},
		".py": nil, // empty argv is dropped
	})

	if !c.Supports("app/main.ts") {
		t.Error("extension matching must be case-insensitive")
	}
	if !c.Supports("a.js") {
		t.Error("expected .js support")
	}
	if c.Supports("a.py") {
		t.Error("empty argv must not register a checker")
	}
	if c.Supports("a.rb") {
		t.Error("unconfigured extension reported as supported")
	}
}

func TestCommandChecker_AvailableCaches(t *testing.T) {
	c := NewCommandChecker(map[string][]string{
		".sh":   {"sh"},
		".nope": {"definitely-not-a-real-binary-xyz"},
	})

	if !c.Available("a.sh") {
		t.Skip("sh not on PATH")
	}
	if c.Available("a.nope") {
		t.Error("missing binary reported available")
	}
	// Second lookup hits the cache; same answer either way
	if c.Available("a.nope") {
		t.Error("cache returned a different availability")
	}
	if c.Available("a.rb") {
		t.Error("unconfigured extension reported available")
	}
}

func TestCommandChecker_CheckPassAndFail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.ok")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	pass := NewCommandChecker(map[string][]string{".ok": {"true"}})
	report, err := pass.Check(context.Background(), path)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !report.Valid {
		t.Error("zero exit must report Valid")
	}

	fail := NewCommandChecker(map[string][]string{".ok": {"false"}})
	report, err = fail.Check(context.Background(), path)
	if err != nil {
		t.Fatalf("non-zero exit must not be an invocation error: %v", err)
	}
	if report.Valid {
		t.Error("non-zero exit must report invalid")
	}
	if len(report.Errors) == 0 {
		t.Error("failing run must carry at least one diagnostic")
	}
}

func TestCommandChecker_MissingBinaryIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.ok")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	c := NewCommandChecker(map[string][]string{".ok": {"definitely-not-a-real-binary-xyz"}})
	if _, err := c.Check(context.Background(), path); err == nil {
		t.Error("unstartable tool must return an error")
	}
}

func TestSplitDiagnostics(t *testing.T) {
	errors, warnings := splitDiagnostics(
		"src/a.ts(3,5): error TS2322: type mismatch\n" +
			"\n" +
			"src/a.ts(9,1): warning: unused variable\n" +
			"note without marker\n")

	if len(errors) != 2 {
		t.Errorf("errors = %v, want 2 entries", errors)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want 1 entry", warnings)
	}
}
