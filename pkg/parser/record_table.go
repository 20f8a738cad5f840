package parser

import (
	"strings"

	"github.com/pharmgo/pharmgo/pkg/token"
)

// TableRecord is one $TABLE record.
type TableRecord struct {
	base
	columns   []string
	file      string
	noHeader  bool
	oneHeader bool
	firstOnly bool
	noAppend  bool
	extra     []string
	dirty     bool
}

var tableFlags = map[string]struct{}{
	"NOPRINT": {}, "PRINT": {}, "NOFORWARD": {}, "FORWARD": {},
	"UNCONDITIONAL": {}, "CONDITIONAL": {}, "NOAPPEND": {}, "APPEND": {},
}

func parseTableRecord(b base) (*TableRecord, error) {
	r := &TableRecord{base: b}
	toks := b.lex()
	i := 0
	next := func() token.Token { t := toks[i]; i++; return t }
	peek := func() token.Token { return toks[i] }

	for {
		t := next()
		switch t.Type {
		case token.EOF:
			return r, nil
		case token.NEWLINE, token.COMMA:
			continue
		case token.IDENT, token.NUMBER:
			up := strings.ToUpper(t.Literal)
			switch {
			case up == "FILE" || up == "FIL":
				if peek().Type == token.EQ {
					next()
				}
				v := next()
				r.file = v.Literal
			case up == "NOHEADER" || up == "NOTITLE" || up == "NOLABEL":
				r.noHeader = true
				r.extra = append(r.extra, t.Literal)
			case up == "ONEHEADER" || up == "ONEHEADERALL":
				r.oneHeader = true
				r.extra = append(r.extra, t.Literal)
			case up == "FIRSTONLY" || up == "FIRSTRECORDONLY" || up == "FIRSTRECONLY":
				r.firstOnly = true
				r.extra = append(r.extra, t.Literal)
			case up == "NOAPPEND":
				r.noAppend = true
				r.extra = append(r.extra, t.Literal)
			default:
				if _, flag := tableFlags[up]; flag {
					r.extra = append(r.extra, t.Literal)
					continue
				}
				if peek().Type == token.EQ {
					next()
					v := next()
					r.extra = append(r.extra, t.Literal+"="+v.Literal)
					continue
				}
				r.columns = append(r.columns, t.Literal)
			}
		default:
			r.extra = append(r.extra, t.Literal)
		}
	}
}

// Columns returns the requested output columns in order.
func (r *TableRecord) Columns() []string { return append([]string(nil), r.columns...) }

// File returns the FILE= value, empty when unset.
func (r *TableRecord) File() string { return r.file }

// NoHeader reports whether any of NOHEADER, NOTITLE or NOLABEL was given.
func (r *TableRecord) NoHeader() bool { return r.noHeader }

// OneHeader reports the ONEHEADER flag.
func (r *TableRecord) OneHeader() bool { return r.oneHeader }

// FirstOnly reports the FIRSTONLY flag.
func (r *TableRecord) FirstOnly() bool { return r.firstOnly }

// NoAppend reports the NOAPPEND flag.
func (r *TableRecord) NoAppend() bool { return r.noAppend }

// SetColumns replaces the output column list.
func (r *TableRecord) SetColumns(columns []string) {
	r.columns = append([]string(nil), columns...)
	r.dirty = true
}

// SetFile replaces the FILE= value.
func (r *TableRecord) SetFile(name string) {
	r.file = name
	r.dirty = true
}

// Raw implements Record.
func (r *TableRecord) Raw() string {
	if !r.dirty {
		return r.raw
	}
	var sb strings.Builder
	sb.WriteString("$TABLE")
	for _, c := range r.columns {
		sb.WriteString(" " + c)
	}
	for _, e := range r.extra {
		sb.WriteString(" " + e)
	}
	if r.file != "" {
		sb.WriteString(" FILE=" + r.file)
	}
	sb.WriteString("\n")
	return sb.String()
}

// NewTableRecord creates a fresh $TABLE record.
func NewTableRecord(columns []string, file string) *TableRecord {
	return &TableRecord{base: base{name: "TABLE"},
		columns: append([]string(nil), columns...), file: file,
		extra: []string{"NOAPPEND", "NOPRINT", "ONEHEADER"},
		noAppend: true, oneHeader: true, dirty: true}
}
