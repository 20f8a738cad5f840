package parser

import (
	"fmt"
	"strings"
)

// ProblemRecord is the $PROBLEM record: a free-text title on the marker
// line. Continuation lines are retained as part of the raw text only.
type ProblemRecord struct {
	base
	title string
	dirty bool
}

func parseProblemRecord(b base) *ProblemRecord {
	body := b.body()
	line := body
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	return &ProblemRecord{base: b, title: strings.TrimSpace(line)}
}

// Title returns the problem title.
func (r *ProblemRecord) Title() string { return r.title }

// SetTitle replaces the problem title.
func (r *ProblemRecord) SetTitle(title string) {
	r.title = title
	r.dirty = true
}

// Raw implements Record.
func (r *ProblemRecord) Raw() string {
	if !r.dirty {
		return r.raw
	}
	return fmt.Sprintf("$PROBLEM %s\n", r.title)
}

// NewProblemRecord creates a fresh $PROBLEM record.
func NewProblemRecord(title string) *ProblemRecord {
	return &ProblemRecord{base: base{name: "PROBLEM"}, title: title, dirty: true}
}

// CodeRecord is an abbreviated-code record: $PK, $ERROR, $PRED or $DES.
// Lines are kept verbatim; the model layer extracts assignments from them.
type CodeRecord struct {
	base
	lines []string
	dirty bool
}

func parseCodeRecord(b base) *CodeRecord {
	body := b.body()
	var lines []string
	for i, line := range strings.Split(body, "\n") {
		if i == 0 && strings.TrimSpace(line) != "" {
			// code may start on the marker line
			lines = append(lines, strings.TrimSpace(line))
			continue
		}
		if i == 0 {
			continue
		}
		lines = append(lines, strings.TrimRight(line, "\r"))
	}
	// drop trailing blank lines from the logical view
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return &CodeRecord{base: b, lines: lines}
}

// Lines returns the code lines without the record marker.
func (r *CodeRecord) Lines() []string {
	return append([]string(nil), r.lines...)
}

// SetLines replaces the code lines.
func (r *CodeRecord) SetLines(lines []string) {
	r.lines = append([]string(nil), lines...)
	r.dirty = true
}

// Raw implements Record.
func (r *CodeRecord) Raw() string {
	if !r.dirty {
		return r.raw
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "$%s\n", r.name)
	for _, line := range r.lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// NewCodeRecord creates a fresh code record for the given canonical name.
func NewCodeRecord(name string, lines []string) *CodeRecord {
	return &CodeRecord{base: base{name: name}, lines: append([]string(nil), lines...), dirty: true}
}
