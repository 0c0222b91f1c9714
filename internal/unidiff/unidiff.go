// Package unidiff computes unified-diff hunks between two line sequences.
//
// The snapshot store uses it to diff blob contents and the edit sandbox uses
// it to synthesize new-file hunks; both get the same header format git emits.
package unidiff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultContext is the number of unchanged lines kept around each change.
const DefaultContext = 3

const noNewline = "\\ No newline at end of file\n"

// Hunk is one contiguous block of changes. Starts are 1-based; when a side
// has zero lines its start is the line after which the change applies, as in
// git's output.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Header   string
	// Lines are the body lines, each prefixed with '+', '-' or ' ' and
	// terminated by a newline.
	Lines []string
	// FirstOld and FirstNew are the 1-based line numbers of the first
	// changed line on each side.
	FirstOld int
	FirstNew int
}

// Content returns the unified body of the hunk.
func (h Hunk) Content() string {
	return strings.Join(h.Lines, "")
}

// SplitLines splits s after each newline. A trailing newline does not
// produce an empty final element; a missing one leaves the last line
// unterminated.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Compute diffs a against b and returns hunks in position order. A negative
// context selects DefaultContext. Equal inputs yield no hunks.
func Compute(a, b []string, context int) []Hunk {
	if context < 0 {
		context = DefaultContext
	}
	m := difflib.NewMatcherWithJunk(a, b, false, nil)

	var hunks []Hunk
	for _, group := range m.GetGroupedOpCodes(context) {
		first, last := group[0], group[len(group)-1]
		h := Hunk{
			OldLines: last.I2 - first.I1,
			NewLines: last.J2 - first.J1,
		}
		h.OldStart = startLine(first.I1, h.OldLines)
		h.NewStart = startLine(first.J1, h.NewLines)
		h.Header = header(h.OldStart, h.OldLines, h.NewStart, h.NewLines)

		for _, op := range group {
			if op.Tag != 'e' && h.FirstOld == 0 && h.FirstNew == 0 {
				h.FirstOld = op.I1 + 1
				h.FirstNew = op.J1 + 1
			}
			switch op.Tag {
			case 'e':
				h.Lines = appendPrefixed(h.Lines, " ", a[op.I1:op.I2])
			case 'd':
				h.Lines = appendPrefixed(h.Lines, "-", a[op.I1:op.I2])
			case 'i':
				h.Lines = appendPrefixed(h.Lines, "+", b[op.J1:op.J2])
			case 'r':
				h.Lines = appendPrefixed(h.Lines, "-", a[op.I1:op.I2])
				h.Lines = appendPrefixed(h.Lines, "+", b[op.J1:op.J2])
			}
		}
		hunks = append(hunks, h)
	}
	return hunks
}

// NewFile returns the single hunk describing the creation of a file with the
// given content, or nil for empty content.
func NewFile(content string) []Hunk {
	return Compute(nil, SplitLines(content), DefaultContext)
}

func startLine(i, count int) int {
	if count == 0 {
		return i
	}
	return i + 1
}

func header(oldStart, oldLines, newStart, newLines int) string {
	return fmt.Sprintf("@@ -%s +%s @@", rangeSpec(oldStart, oldLines), rangeSpec(newStart, newLines))
}

func rangeSpec(start, count int) string {
	if count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

func appendPrefixed(dst []string, prefix string, lines []string) []string {
	for _, l := range lines {
		if strings.HasSuffix(l, "\n") {
			dst = append(dst, prefix+l)
			continue
		}
		dst = append(dst, prefix+l+"\n", noNewline)
	}
	return dst
}

// Format renders a git-style file diff with ---/+++ headers. oldName or
// newName may be empty to denote /dev/null.
func Format(oldName, newName string, hunks []Hunk) string {
	if len(hunks) == 0 {
		return ""
	}
	var b strings.Builder
	if oldName == "" {
		b.WriteString("--- /dev/null\n")
	} else {
		fmt.Fprintf(&b, "--- a/%s\n", oldName)
	}
	if newName == "" {
		b.WriteString("+++ /dev/null\n")
	} else {
		fmt.Fprintf(&b, "+++ b/%s\n", newName)
	}
	for _, h := range hunks {
		b.WriteString(h.Header)
		b.WriteByte('\n')
		b.WriteString(h.Content())
	}
	return b.String()
}
