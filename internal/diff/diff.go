// Package diff computes line-level change statistics using the
// sergi/go-diff library rather than a hand-rolled LCS.
package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Stats summarizes the line-level delta between two file contents.
type Stats struct {
	LinesAdded   int
	LinesRemoved int
}

// Compute returns line-level change statistics for oldText -> newText.
// Inputs are diffed in line mode so a one-line edit inside a large file
// counts as one removal plus one addition, not a character soup.
func Compute(oldText, newText string) Stats {
	dmp := diffmatchpatch.New()

	chars1, chars2, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(chars1, chars2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var stats Stats
	for _, d := range diffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			stats.LinesAdded += n
		case diffmatchpatch.DiffDelete:
			stats.LinesRemoved += n
		}
	}
	return stats
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
