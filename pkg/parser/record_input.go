package parser

import (
	"fmt"
	"strings"

	"github.com/pharmgo/pharmgo/pkg/token"
)

// InputColumn is one entry of $INPUT: a column name with an optional
// synonym (A=B) or DROP/SKIP marker.
type InputColumn struct {
	Name    string
	Synonym string
	Drop    bool
}

func (c InputColumn) String() string {
	switch {
	case c.Drop && c.Synonym == "":
		return c.Name + "=DROP"
	case c.Synonym != "":
		return c.Name + "=" + c.Synonym
	default:
		return c.Name
	}
}

// InputRecord is the $INPUT record: the ordered column to field mapping
// of the dataset.
type InputRecord struct {
	base
	columns []InputColumn
	dirty   bool
}

func parseInputRecord(b base) (*InputRecord, error) {
	r := &InputRecord{base: b}
	toks := b.lex()
	i := 0
	for {
		t := toks[i]
		i++
		switch t.Type {
		case token.EOF:
			return r, nil
		case token.NEWLINE, token.COMMA:
			continue
		case token.IDENT:
			col := InputColumn{Name: t.Literal}
			if toks[i].Type == token.EQ {
				i++
				v := toks[i]
				if v.Type != token.IDENT {
					return nil, &ParseError{Record: b.name, Pos: v.Pos,
						Message: fmt.Sprintf("expected column synonym, got %s", v.Type)}
				}
				i++
				syn := strings.ToUpper(v.Literal)
				if syn == "DROP" || syn == "SKIP" {
					col.Drop = true
				} else {
					col.Synonym = v.Literal
				}
			}
			if up := strings.ToUpper(col.Name); up == "DROP" || up == "SKIP" {
				// DROP=NAME form: the data column has no model meaning
				col.Name, col.Synonym = col.Synonym, ""
				col.Drop = true
				if col.Name == "" {
					col.Name = up
				}
			}
			r.columns = append(r.columns, col)
		default:
			return nil, &ParseError{Record: b.name, Pos: t.Pos,
				Message: fmt.Sprintf("unexpected %s in column list", t.Type)}
		}
	}
}

// Columns returns the declared columns in order.
func (r *InputRecord) Columns() []InputColumn {
	return append([]InputColumn(nil), r.columns...)
}

// Names returns the column names in order.
func (r *InputRecord) Names() []string {
	out := make([]string, len(r.columns))
	for i, c := range r.columns {
		out[i] = c.Name
	}
	return out
}

// SetColumns replaces the column list.
func (r *InputRecord) SetColumns(cols []InputColumn) {
	r.columns = append([]InputColumn(nil), cols...)
	r.dirty = true
}

// Raw implements Record.
func (r *InputRecord) Raw() string {
	if !r.dirty {
		return r.raw
	}
	parts := make([]string, len(r.columns))
	for i, c := range r.columns {
		parts[i] = c.String()
	}
	return "$INPUT " + strings.Join(parts, " ") + "\n"
}

// NewInputRecord creates a fresh $INPUT record.
func NewInputRecord(cols []InputColumn) *InputRecord {
	return &InputRecord{base: base{name: "INPUT"}, columns: append([]InputColumn(nil), cols...), dirty: true}
}
