package parser

import (
	"fmt"
	"strings"

	"github.com/pharmgo/pharmgo/pkg/token"
)

// quotedDataChars force quoting of a $DATA filename on write.
var quotedDataChars = []string{
	",", ";", "(", ")", "=", " ", "IGNORE", "NULL", "ACCEPT", "NOWIDE", "WIDE",
	"CHECKOUT", "RECORDS", "LRECL", "NOREWIND", "REWIND", "NOOPEN", "LAST20",
	"TRANSLATE", "BLANKOK", "MISDAT",
}

// Filter is one IGNORE/ACCEPT condition: COLUMN op VALUE. Op is the token
// type of the comparison; the short form `COL n` parses as OpEq.
type Filter struct {
	Column string
	Op     token.Type
	Value  string
}

func (f Filter) String() string {
	return fmt.Sprintf("%s%s%s", f.Column, f.Op, f.Value)
}

// DataRecord is the $DATA record: dataset path, ignore character and row
// filters.
type DataRecord struct {
	base
	filename   string
	wildcard   bool // * meaning reuse previous subproblem dataset
	ignoreChar byte // 0 if unset
	nullValue  byte // 0 if unset
	ignore     []Filter
	accept     []Filter
	extra      []string // passthrough options such as NOWIDE
	dirty      bool
}

func parseDataRecord(b base) (*DataRecord, error) {
	r := &DataRecord{base: b}
	toks := b.lex()
	i := 0
	next := func() token.Token { t := toks[i]; i++; return t }
	peek := func() token.Token { return toks[i] }

	// skip leading newlines
	for peek().Type == token.NEWLINE {
		next()
	}
	// first token is the filename (or *)
	switch t := next(); t.Type {
	case token.STAR:
		r.wildcard = true
	case token.IDENT, token.STRING, token.NUMBER:
		r.filename = unquote(t.Literal)
	case token.EOF:
		return nil, &ParseError{Record: b.name, Pos: t.Pos, Message: "missing dataset filename"}
	default:
		return nil, &ParseError{Record: b.name, Pos: t.Pos, Message: fmt.Sprintf("unexpected %s before filename", t.Type)}
	}

	for {
		t := next()
		switch t.Type {
		case token.EOF:
			return r, nil
		case token.NEWLINE, token.COMMA:
			continue
		case token.IDENT:
			key := strings.ToUpper(t.Literal)
			switch {
			case key == "IGNORE" || key == "IGN":
				filters, ch, err := parseIgnoreTail(toks, &i, b.name)
				if err != nil {
					return nil, err
				}
				if ch != 0 {
					r.ignoreChar = ch
				}
				r.ignore = append(r.ignore, filters...)
			case key == "ACCEPT" || key == "ACC":
				filters, _, err := parseIgnoreTail(toks, &i, b.name)
				if err != nil {
					return nil, err
				}
				r.accept = append(r.accept, filters...)
			case key == "NULL":
				if peek().Type == token.EQ {
					next()
					v := next()
					if len(v.Literal) > 0 {
						r.nullValue = unquote(v.Literal)[0]
					}
				}
			default:
				r.extra = append(r.extra, t.Literal)
				if peek().Type == token.EQ {
					next()
					v := next()
					r.extra[len(r.extra)-1] += "=" + v.Literal
				}
			}
		default:
			return nil, &ParseError{Record: b.name, Pos: t.Pos, Message: fmt.Sprintf("unexpected %s", t.Type)}
		}
	}
}

// parseIgnoreTail parses what follows IGNORE/ACCEPT: either =c (single
// ignore character) or =( filter {, filter} ).
func parseIgnoreTail(toks []token.Token, i *int, record string) ([]Filter, byte, error) {
	next := func() token.Token { t := toks[*i]; *i++; return t }
	peek := func() token.Token { return toks[*i] }

	if peek().Type == token.EQ {
		next()
	}
	if peek().Type != token.LPAREN {
		// single character form: IGNORE=@ or IGNORE=C or IGNORE='#'
		t := next()
		lit := unquote(t.Literal)
		if len(lit) != 1 {
			return nil, 0, &ParseError{Record: record, Pos: t.Pos,
				Message: fmt.Sprintf("IGNORE character must be a single character, got %q", lit)}
		}
		return nil, lit[0], nil
	}
	next() // consume (
	var filters []Filter
	for {
		t := next()
		switch t.Type {
		case token.RPAREN:
			return filters, 0, nil
		case token.COMMA, token.NEWLINE:
			continue
		case token.IDENT:
			f := Filter{Column: t.Literal}
			op := next()
			if op.IsComparison() {
				f.Op = op.Type
				val := next()
				f.Value = unquote(val.Literal)
			} else if op.Type == token.EQ {
				f.Op = token.OpStrEq
				val := next()
				f.Value = unquote(val.Literal)
			} else if op.Type == token.NUMBER || op.Type == token.IDENT || op.Type == token.STRING {
				// short form: COL n
				f.Op = token.OpEq
				f.Value = unquote(op.Literal)
			} else {
				return nil, 0, &ParseError{Record: record, Pos: op.Pos,
					Message: fmt.Sprintf("expected comparison operator, got %s", op.Type)}
			}
			filters = append(filters, f)
		case token.EOF:
			return nil, 0, &ParseError{Record: record, Pos: t.Pos, Message: "unterminated filter list"}
		default:
			return nil, 0, &ParseError{Record: record, Pos: t.Pos,
				Message: fmt.Sprintf("unexpected %s in filter list", t.Type)}
		}
	}
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// Filename returns the dataset path as written, unquoted.
func (r *DataRecord) Filename() string { return r.filename }

// SetFilename replaces the dataset path. An empty value turns the record
// into the wildcard form reusing the previous subproblem dataset.
func (r *DataRecord) SetFilename(name string) {
	r.filename = name
	r.wildcard = name == ""
	r.dirty = true
}

// Wildcard reports the $DATA * form.
func (r *DataRecord) Wildcard() bool { return r.wildcard }

// IgnoreCharacter returns the IGNORE=c character, or 0 if unset.
func (r *DataRecord) IgnoreCharacter() byte { return r.ignoreChar }

// SetIgnoreCharacter sets the IGNORE=c character.
func (r *DataRecord) SetIgnoreCharacter(c byte) {
	r.ignoreChar = c
	r.dirty = true
}

// NullValue returns the NULL=c replacement for missing values. + and -
// mean zero, per NM-TRAN.
func (r *DataRecord) NullValue() float64 {
	switch r.nullValue {
	case 0, '+', '-':
		return 0
	default:
		return float64(r.nullValue - '0')
	}
}

// Ignore returns the IGNORE filters in order.
func (r *DataRecord) Ignore() []Filter { return append([]Filter(nil), r.ignore...) }

// Accept returns the ACCEPT filters in order.
func (r *DataRecord) Accept() []Filter { return append([]Filter(nil), r.accept...) }

// RemoveIgnoreAccept drops all filters, keeping any ignore character.
func (r *DataRecord) RemoveIgnoreAccept() {
	r.ignore = nil
	r.accept = nil
	r.dirty = true
}

// SetIgnore replaces the IGNORE filter list.
func (r *DataRecord) SetIgnore(filters []Filter) {
	r.ignore = append([]Filter(nil), filters...)
	r.dirty = true
}

// Raw implements Record.
func (r *DataRecord) Raw() string {
	if !r.dirty {
		return r.raw
	}
	var sb strings.Builder
	sb.WriteString("$DATA ")
	switch {
	case r.wildcard:
		sb.WriteString("*")
	case needsQuoting(r.filename):
		if strings.Contains(r.filename, "'") {
			fmt.Fprintf(&sb, "%q", r.filename)
		} else {
			fmt.Fprintf(&sb, "'%s'", r.filename)
		}
	default:
		sb.WriteString(r.filename)
	}
	if r.ignoreChar != 0 {
		fmt.Fprintf(&sb, " IGNORE=%c", r.ignoreChar)
	}
	writeFilters := func(kw string, filters []Filter) {
		if len(filters) == 0 {
			return
		}
		fmt.Fprintf(&sb, " %s=(", kw)
		for i, f := range filters {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(f.String())
		}
		sb.WriteString(")")
	}
	writeFilters("IGNORE", r.ignore)
	writeFilters("ACCEPT", r.accept)
	for _, e := range r.extra {
		sb.WriteString(" " + e)
	}
	sb.WriteString("\n")
	return sb.String()
}

func needsQuoting(filename string) bool {
	for _, x := range quotedDataChars {
		if strings.Contains(filename, x) {
			return true
		}
	}
	return false
}

// NewDataRecord creates a fresh $DATA record.
func NewDataRecord(filename string, ignoreChar byte) *DataRecord {
	return &DataRecord{
		base:       base{name: "DATA"},
		filename:   filename,
		ignoreChar: ignoreChar,
		dirty:      true,
	}
}
