// Package diff computes line-level diffs between two text buffers using a
// longest-common-subsequence alignment. Complexity is O(n·m) in the line
// counts of the two inputs; callers feeding very large buffers should expect
// quadratic cost.
package diff

import "strings"

// Kind tags a diff line.
type Kind int

const (
	Unchanged Kind = iota
	Added
	Removed
)

// Line is one line of a computed diff. Number is 1-based: for Unchanged and
// Added lines it indexes the modified sequence, for Removed lines the
// original sequence.
type Line struct {
	Kind   Kind
	Number int
	Text   string
}

// Summary aggregates a diff result.
type Summary struct {
	Added      int
	Removed    int
	HasChanges bool
}

// Diff aligns original against modified line by line. Concatenating the
// Unchanged and Added lines in order reconstructs modified; Unchanged and
// Removed lines reconstruct original. Backtrack ties always record the
// removal before the addition, so output is deterministic.
func Diff(original, modified string) []Line {
	a := splitLines(original)
	b := splitLines(modified)

	// LCS length table: lcs[i][j] is the LCS of a[i:] and b[j:].
	lcs := make([][]int, len(a)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	lines := make([]Line, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			lines = append(lines, Line{Kind: Unchanged, Number: j + 1, Text: b[j]})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			// Tie-break: prefer the removal.
			lines = append(lines, Line{Kind: Removed, Number: i + 1, Text: a[i]})
			i++
		default:
			lines = append(lines, Line{Kind: Added, Number: j + 1, Text: b[j]})
			j++
		}
	}
	for ; i < len(a); i++ {
		lines = append(lines, Line{Kind: Removed, Number: i + 1, Text: a[i]})
	}
	for ; j < len(b); j++ {
		lines = append(lines, Line{Kind: Added, Number: j + 1, Text: b[j]})
	}

	return lines
}

// Summarize counts added and removed lines.
func Summarize(lines []Line) Summary {
	var s Summary
	for _, l := range lines {
		switch l.Kind {
		case Added:
			s.Added++
		case Removed:
			s.Removed++
		}
	}
	s.HasChanges = s.Added > 0 || s.Removed > 0
	return s
}

// SideBySide renders a diff as a single plain-text block: removed lines
// prefixed "- ", added lines "+ ", unchanged lines "  ".
func SideBySide(lines []Line) string {
	var sb strings.Builder
	for n, l := range lines {
		if n > 0 {
			sb.WriteByte('\n')
		}
		switch l.Kind {
		case Removed:
			sb.WriteString("- ")
		case Added:
			sb.WriteString("+ ")
		default:
			sb.WriteString("  ")
		}
		sb.WriteString(l.Text)
	}
	return sb.String()
}

// splitLines splits on \n only, keeping any \r so joining the lines back
// with \n reproduces the input byte for byte. An empty input yields no
// lines rather than one empty line, so diffing two empty buffers is a no-op.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
