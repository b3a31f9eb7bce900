package diff

import "testing"

func TestCompute(t *testing.T) {
	tests := []struct {
		name        string
		oldText     string
		newText     string
		wantAdded   int
		wantRemoved int
	}{
		{
			name:    "identical",
			oldText: "a\nb\nc\n",
			newText: "a\nb\nc\n",
		},
		{
			name:        "one line replaced",
			oldText:     "a\nb\nc\n",
			newText:     "a\nX\nc\n",
			wantAdded:   1,
			wantRemoved: 1,
		},
		{
			name:      "lines appended",
			oldText:   "a\n",
			newText:   "a\nb\nc\n",
			wantAdded: 2,
		},
		{
			name:        "lines deleted",
			oldText:     "a\nb\nc\n",
			newText:     "a\n",
			wantRemoved: 2,
		},
		{
			name:        "full rewrite",
			oldText:     "a\nb\n",
			newText:     "x\ny\nz\n",
			wantAdded:   3,
			wantRemoved: 2,
		},
		{
			name:      "empty to content",
			oldText:   "",
			newText:   "a\nb\n",
			wantAdded: 2,
		},
		{
			name:        "edit inside large file counts as one swap",
			oldText:     "l1\nl2\nl3\nl4\nl5\nl6\nl7\nl8\n",
			newText:     "l1\nl2\nl3\nCHANGED\nl5\nl6\nl7\nl8\n",
			wantAdded:   1,
			wantRemoved: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.oldText, tt.newText)
			if got.LinesAdded != tt.wantAdded || got.LinesRemoved != tt.wantRemoved {
				t.Errorf("Compute() = +%d/-%d, want +%d/-%d",
					got.LinesAdded, got.LinesRemoved, tt.wantAdded, tt.wantRemoved)
			}
		})
	}
}

func TestCountLines(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"one line", 1},
		{"one line\n", 1},
		{"a\nb", 2},
		{"a\nb\n", 2},
	}
	for _, tt := range tests {
		if got := countLines(tt.text); got != tt.want {
			t.Errorf("countLines(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
