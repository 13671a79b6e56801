// internal/diff/diff.go
package diff

import (
	"bytes"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// DiffResult is a unified diff of one file plus line counts.
type DiffResult struct {
	Path    string
	Unified string
	Stats   struct {
		Additions int
		Deletions int
		Changes   int
	}
}

// Engine provides diffing capabilities
type Engine struct {
	contextLines int
}

// NewEngine creates a new diff engine with specified context lines
func NewEngine(contextLines int) *Engine {
	return &Engine{
		contextLines: contextLines,
	}
}

// Diff compares two versions of path line by line. A nil side is treated as
// an absent file and labelled /dev/null.
func (e *Engine) Diff(path string, oldContent, newContent []byte) (*DiffResult, error) {
	a := splitLines(oldContent)
	b := splitLines(newContent)

	from, to := "a/"+path, "b/"+path
	if oldContent == nil {
		from = "/dev/null"
	}
	if newContent == nil {
		to = "/dev/null"
	}

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: from,
		ToFile:   to,
		Context:  e.contextLines,
	})
	if err != nil {
		return nil, fmt.Errorf("diffing %s: %w", path, err)
	}

	result := &DiffResult{Path: path, Unified: text}
	for _, op := range difflib.NewMatcher(a, b).GetOpCodes() {
		switch op.Tag {
		case 'r':
			result.Stats.Deletions += op.I2 - op.I1
			result.Stats.Additions += op.J2 - op.J1
		case 'd':
			result.Stats.Deletions += op.I2 - op.I1
		case 'i':
			result.Stats.Additions += op.J2 - op.J1
		}
	}
	result.Stats.Changes = result.Stats.Additions + result.Stats.Deletions

	return result, nil
}

// splitLines keeps line terminators. difflib.SplitLines adds a phantom line
// after a trailing newline; drop it.
func splitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	lines := difflib.SplitLines(string(content))
	if bytes.HasSuffix(content, []byte("\n")) {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Empty reports whether the two sides were identical.
func (r *DiffResult) Empty() bool {
	return r.Stats.Changes == 0
}

// Format returns a string representation of the diff
func (r *DiffResult) Format() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "diff --twig a/%s b/%s\n", r.Path, r.Path)
	buf.WriteString(r.Unified)
	return buf.String()
}
