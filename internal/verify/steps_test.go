package verify

import (
	"context"
	"strings"
	"testing"
)

func TestBalanceStep(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantOK  bool
	}{
		{"balanced js", "a.js", "function f() { return [1, (2)]; }", true},
		{"missing close brace", "a.js", "function f() { return 1;", false},
		{"extra close paren", "a.js", "f())", false},
		{"unbalanced brackets", "a.js", "const a = [1, 2;", false},
		{"valid go", "a.go", "package a\n\nfunc F() int { return 1 }\n", true},
		{"invalid go", "a.go", "package a\n\nfunc F() int { return }{\n", false},
		{"valid json", "a.json", `{"k": [1, 2]}`, true},
		{"invalid json", "a.json", `{"k": }{`, false},
		{"valid yaml", "a.yaml", "key: value\nlist:\n  - one\n", true},
		{"plain text ignores parsers", "a.txt", "no brackets here", true},
	}

	step := NewBalanceStep()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, tt.file, tt.content)
			sr := step.Check(context.Background(), path, Options{})
			if sr.Passed != tt.wantOK {
				t.Errorf("Passed = %v, want %v (errors: %v)", sr.Passed, tt.wantOK, sr.Errors)
			}
		})
	}
}

func TestBalanceStep_RegisterParser(t *testing.T) {
	step := NewBalanceStep()
	step.RegisterParser(".cfg", func(content []byte) error {
		if strings.Contains(string(content), "bad") {
			return context.Canceled
		}
		return nil
	})

	good := writeTemp(t, "a.cfg", "all fine")
	if sr := step.Check(context.Background(), good, Options{}); !sr.Passed {
		t.Errorf("custom parser rejected valid content: %v", sr.Errors)
	}

	bad := writeTemp(t, "b.cfg", "bad value")
	if sr := step.Check(context.Background(), bad, Options{}); sr.Passed {
		t.Error("custom parser did not reject invalid content")
	}
}

func TestEncodingStep(t *testing.T) {
	step := NewEncodingStep()

	t.Run("clean utf8 passes", func(t *testing.T) {
		path := writeTemp(t, "a.txt", "hello שלום world\n")
		if sr := step.Check(context.Background(), path, Options{}); !sr.Passed {
			t.Errorf("valid UTF-8 rejected: %v", sr.Errors)
		}
	})

	t.Run("replacement character fails", func(t *testing.T) {
		path := writeTemp(t, "a.txt", "corrupted � here")
		sr := step.Check(context.Background(), path, Options{})
		if sr.Passed {
			t.Error("U+FFFD not flagged")
		}
	})

	t.Run("invalid utf8 fails", func(t *testing.T) {
		path := writeTemp(t, "a.txt", string([]byte{0x68, 0x69, 0xC3, 0x28}))
		sr := step.Check(context.Background(), path, Options{})
		if sr.Passed {
			t.Error("invalid UTF-8 sequence not flagged")
		}
	})

	t.Run("nul byte fails", func(t *testing.T) {
		path := writeTemp(t, "a.txt", "text\x00more")
		sr := step.Check(context.Background(), path, Options{})
		if sr.Passed {
			t.Error("NUL byte not flagged")
		}
	})
}

func TestIntegrityStep(t *testing.T) {
	step := NewIntegrityStep()

	t.Run("normal file passes", func(t *testing.T) {
		path := writeTemp(t, "a.txt", "content")
		if sr := step.Check(context.Background(), path, Options{}); !sr.Passed {
			t.Errorf("normal file rejected: %v", sr.Errors)
		}
	})

	t.Run("empty file fails", func(t *testing.T) {
		path := writeTemp(t, "a.txt", "")
		sr := step.Check(context.Background(), path, Options{})
		if sr.Passed {
			t.Error("empty file not flagged")
		}
	})

	t.Run("oversize fails", func(t *testing.T) {
		path := writeTemp(t, "a.txt", strings.Repeat("x", 100))
		sr := step.Check(context.Background(), path, Options{MaxFileSize: 50})
		if sr.Passed {
			t.Error("oversize file not flagged")
		}
	})

	t.Run("missing file fails", func(t *testing.T) {
		sr := step.Check(context.Background(), "/nonexistent/path", Options{})
		if sr.Passed {
			t.Error("missing file not flagged")
		}
	})
}

func TestBuildSanityStep(t *testing.T) {
	step := NewBuildSanityStep()

	if step.Applicable("a.py", Options{BuildCheck: true}) {
		t.Error("python file should not be applicable")
	}
	if step.Applicable("a.ts", Options{}) {
		t.Error("step must be gated by the build_check option")
	}
	if !step.Applicable("a.tsx", Options{BuildCheck: true}) {
		t.Error("tsx file should be applicable with build_check on")
	}

	t.Run("clean imports pass", func(t *testing.T) {
		path := writeTemp(t, "a.ts", "import x from './x';\nexport { y } from \"./y\";\nimport './side-effect';\n")
		sr := step.Check(context.Background(), path, Options{BuildCheck: true})
		if len(sr.Warnings) != 0 {
			t.Errorf("clean imports flagged: %v", sr.Warnings)
		}
	})

	t.Run("unquoted specifier warns", func(t *testing.T) {
		path := writeTemp(t, "a.ts", "import x from ./x\n")
		sr := step.Check(context.Background(), path, Options{BuildCheck: true})
		if len(sr.Warnings) == 0 {
			t.Error("unquoted import specifier not flagged")
		}
		if !sr.Passed {
			t.Error("advisory step must report Passed")
		}
	})

	t.Run("dangling import warns", func(t *testing.T) {
		path := writeTemp(t, "a.ts", "import utils\n")
		sr := step.Check(context.Background(), path, Options{BuildCheck: true})
		if len(sr.Warnings) == 0 {
			t.Error("dangling import not flagged")
		}
	})
}

func TestTextIntegrityStep(t *testing.T) {
	step := NewTextIntegrityStep()

	if step.Applicable("a.txt", Options{}) {
		t.Error("step must be gated by the text_check option")
	}

	t.Run("clean hebrew passes", func(t *testing.T) {
		path := writeTemp(t, "a.txt", "שלום עולם, הזמנה אושרה\n")
		sr := step.Check(context.Background(), path, Options{TextCheck: true})
		if len(sr.Warnings) != 0 {
			t.Errorf("clean Hebrew flagged: %v", sr.Warnings)
		}
	})

	t.Run("mojibake warns", func(t *testing.T) {
		// UTF-8 Hebrew decoded as Latin-1: each letter becomes × plus a
		// Latin-1 supplement character. One real Hebrew rune keeps the
		// script scan engaged.
		path := writeTemp(t, "a.txt", "ש ×©×¨\n")
		sr := step.Check(context.Background(), path, Options{TextCheck: true})
		if !sr.Passed {
			t.Error("advisory step must report Passed")
		}
		if len(sr.Warnings) == 0 {
			t.Error("mojibake sequence not flagged")
		}
	})

	t.Run("latin only file passes quickly", func(t *testing.T) {
		path := writeTemp(t, "a.txt", "plain ascii only\n")
		sr := step.Check(context.Background(), path, Options{TextCheck: true})
		if len(sr.Warnings) != 0 {
			t.Errorf("latin-only file flagged: %v", sr.Warnings)
		}
	})

	t.Run("unknown script skips", func(t *testing.T) {
		path := writeTemp(t, "a.txt", "content\n")
		sr := step.Check(context.Background(), path, Options{TextCheck: true, TextScript: "Klingon"})
		if !sr.Passed {
			t.Error("unknown script must not fail")
		}
		if len(sr.Warnings) == 0 {
			t.Error("unknown script should warn")
		}
	})
}

func TestCountMojibakePairs(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"clean text", 0},
		{"×©", 1},
		{"×©×¨", 2},
		{"3 × 4 = 12", 0}, // multiplication sign followed by space is fine
	}
	for _, tt := range tests {
		if got := countMojibakePairs(tt.text); got != tt.want {
			t.Errorf("countMojibakePairs(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
