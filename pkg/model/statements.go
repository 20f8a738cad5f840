package model

import (
	"fmt"
	"regexp"
	"strings"
)

// Assignment is one SYMBOL = expression line from an abbreviated-code
// record ($PK, $ERROR, $PRED, $DES). Expressions are kept verbatim; the
// toolkit edits them textually the way NM-TRAN users do.
type Assignment struct {
	Symbol     string
	Expression string
}

func (a Assignment) String() string {
	return fmt.Sprintf("%s = %s", a.Symbol, a.Expression)
}

// Statements is the ordered abbreviated code of one record. The original
// lines are kept so an unmodified record renders byte-identical; any edit
// switches rendering to the canonical SYMBOL = expression form.
type Statements struct {
	lines []Assignment
	raw   []string
	dirty bool
}

var assignRe = regexp.MustCompile(`^\s*(\w+(?:\(\w+\))?)\s*=\s*(.*?)\s*$`)

// ParseStatements extracts assignments from raw code lines. Non-assignment
// lines (IF blocks, calls) are carried with an empty Symbol so the record
// round-trips.
func ParseStatements(lines []string) *Statements {
	s := &Statements{raw: append([]string(nil), lines...)}
	for _, line := range lines {
		code := line
		if i := strings.IndexByte(code, ';'); i >= 0 {
			code = code[:i]
		}
		if strings.TrimSpace(code) == "" {
			continue
		}
		if m := assignRe.FindStringSubmatch(code); m != nil {
			s.lines = append(s.lines, Assignment{Symbol: m[1], Expression: m[2]})
		} else {
			s.lines = append(s.lines, Assignment{Expression: strings.TrimSpace(code)})
		}
	}
	return s
}

// All returns the statements in order.
func (s *Statements) All() []Assignment {
	return append([]Assignment(nil), s.lines...)
}

// Find returns the last assignment to symbol, NM-TRAN's effective value.
func (s *Statements) Find(symbol string) (Assignment, bool) {
	for i := len(s.lines) - 1; i >= 0; i-- {
		if s.lines[i].Symbol == symbol {
			return s.lines[i], true
		}
	}
	return Assignment{}, false
}

// Assign sets the expression for symbol, replacing the last assignment or
// appending a new one.
func (s *Statements) Assign(symbol, expression string) {
	s.dirty = true
	for i := len(s.lines) - 1; i >= 0; i-- {
		if s.lines[i].Symbol == symbol {
			s.lines[i].Expression = expression
			return
		}
	}
	s.lines = append(s.lines, Assignment{Symbol: symbol, Expression: expression})
}

// Remove drops every assignment to symbol.
func (s *Statements) Remove(symbol string) {
	s.dirty = true
	var kept []Assignment
	for _, a := range s.lines {
		if a.Symbol != symbol {
			kept = append(kept, a)
		}
	}
	s.lines = kept
}

// Insert places an assignment at index i.
func (s *Statements) Insert(i int, a Assignment) {
	s.dirty = true
	if i < 0 {
		i = 0
	}
	if i > len(s.lines) {
		i = len(s.lines)
	}
	s.lines = append(s.lines[:i], append([]Assignment{a}, s.lines[i:]...)...)
}

// Index returns the position of the last assignment to symbol, or -1.
func (s *Statements) Index(symbol string) int {
	for i := len(s.lines) - 1; i >= 0; i-- {
		if s.lines[i].Symbol == symbol {
			return i
		}
	}
	return -1
}

// Symbols returns all assigned symbols in first-assignment order.
func (s *Statements) Symbols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range s.lines {
		if a.Symbol != "" && !seen[a.Symbol] {
			seen[a.Symbol] = true
			out = append(out, a.Symbol)
		}
	}
	return out
}

// DependsOn reports whether the effective expression for symbol references
// ref as a whole word.
func (s *Statements) DependsOn(symbol, ref string) bool {
	a, ok := s.Find(symbol)
	if !ok {
		return false
	}
	// \b only works against word characters, so guard each end that has one
	// (a ref like ETA(1) ends in a parenthesis).
	pat := regexp.QuoteMeta(ref)
	if isWordByte(ref[0]) {
		pat = `\b` + pat
	}
	if isWordByte(ref[len(ref)-1]) {
		pat += `\b`
	}
	return regexp.MustCompile(pat).MatchString(a.Expression)
}

func isWordByte(c byte) bool {
	return c == '_' || '0' <= c && c <= '9' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

// Render returns the code lines, the original text when nothing changed.
func (s *Statements) Render() []string {
	if !s.dirty {
		return append([]string(nil), s.raw...)
	}
	out := make([]string, len(s.lines))
	for i, a := range s.lines {
		if a.Symbol == "" {
			out[i] = a.Expression
		} else {
			out[i] = a.String()
		}
	}
	return out
}
