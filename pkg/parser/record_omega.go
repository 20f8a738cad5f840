package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pharmgo/pharmgo/pkg/token"
)

// OmegaRecord is a $OMEGA or $SIGMA record. The same grammar covers both:
// either a run of diagonal variances or a BLOCK(n) lower triangle.
type OmegaRecord struct {
	base
	block    int  // 0 for diagonal form
	same     bool // BLOCK(n) SAME
	fix      bool // record-level FIX (BLOCK form)
	sd       bool // values given as standard deviations
	corr     bool // off-diagonals given as correlations
	values   []float64
	valueFix []bool // per-value FIX for the diagonal form
	dirty    bool
}

func parseOmegaRecord(b base) (*OmegaRecord, error) {
	r := &OmegaRecord{base: b}
	toks := b.lex()
	i := 0
	next := func() token.Token { t := toks[i]; i++; return t }
	peek := func() token.Token { return toks[i] }

	parseNum := func() (float64, error) {
		sign := 1.0
		t := next()
		for t.Type == token.PLUS || t.Type == token.MINUS {
			if t.Type == token.MINUS {
				sign = -sign
			}
			t = next()
		}
		if t.Type != token.NUMBER {
			return 0, &ParseError{Record: b.name, Pos: t.Pos,
				Message: fmt.Sprintf("expected number, got %s %q", t.Type, t.Literal)}
		}
		v, err := parseFortranFloat(t.Literal)
		if err != nil {
			return 0, &ParseError{Record: b.name, Pos: t.Pos, Message: err.Error()}
		}
		return sign * v, nil
	}

	for {
		switch t := peek(); t.Type {
		case token.EOF:
			if err := r.validate(); err != nil {
				return nil, err
			}
			return r, nil
		case token.NEWLINE, token.COMMA:
			next()
		case token.LPAREN:
			// parenthesized value, possibly with FIX inside
			next()
			v, err := parseNum()
			if err != nil {
				return nil, err
			}
			fix := false
			for peek().Type != token.RPAREN {
				if peek().Type == token.IDENT {
					up := strings.ToUpper(peek().Literal)
					if up == "FIX" || up == "FIXED" {
						fix = true
						next()
						continue
					}
				}
				return nil, &ParseError{Record: b.name, Pos: peek().Pos,
					Message: fmt.Sprintf("unexpected %q in value group", peek().Literal)}
			}
			next()
			r.values = append(r.values, v)
			r.valueFix = append(r.valueFix, fix)
		case token.NUMBER, token.PLUS, token.MINUS:
			v, err := parseNum()
			if err != nil {
				return nil, err
			}
			r.values = append(r.values, v)
			r.valueFix = append(r.valueFix, false)
		case token.IDENT:
			up := strings.ToUpper(t.Literal)
			switch {
			case up == "BLOCK":
				next()
				n, err := parseParenInt(toks, &i, b.name)
				if err != nil {
					return nil, err
				}
				r.block = n
			case up == "SAME":
				next()
				r.same = true
			case up == "FIX" || up == "FIXED":
				next()
				if len(r.values) > 0 && r.block == 0 {
					r.valueFix[len(r.valueFix)-1] = true
				} else {
					r.fix = true
				}
			case up == "SD" || up == "STANDARD":
				next()
				r.sd = true
			case up == "VARIANCE":
				next()
				r.sd = false
			case up == "CORRELATION":
				next()
				r.corr = true
			case up == "COVARIANCE":
				next()
				r.corr = false
			case up == "DIAGONAL":
				next()
				if _, err := parseParenInt(toks, &i, b.name); err != nil {
					return nil, err
				}
			default:
				return nil, &ParseError{Record: b.name, Pos: t.Pos,
					Message: fmt.Sprintf("unexpected %q in $%s", t.Literal, b.name)}
			}
		default:
			return nil, &ParseError{Record: b.name, Pos: t.Pos,
				Message: fmt.Sprintf("unexpected %s in $%s", t.Type, b.name)}
		}
	}
}

// parseParenInt parses an (n) group.
func parseParenInt(toks []token.Token, i *int, record string) (int, error) {
	next := func() token.Token { t := toks[*i]; *i++; return t }
	t := next()
	if t.Type != token.LPAREN {
		return 0, &ParseError{Record: record, Pos: t.Pos, Message: "expected ("}
	}
	v := next()
	if v.Type != token.NUMBER {
		return 0, &ParseError{Record: record, Pos: v.Pos, Message: "expected integer"}
	}
	n, err := strconv.Atoi(v.Literal)
	if err != nil {
		return 0, &ParseError{Record: record, Pos: v.Pos, Message: fmt.Sprintf("invalid integer %q", v.Literal)}
	}
	if t := next(); t.Type != token.RPAREN {
		return 0, &ParseError{Record: record, Pos: t.Pos, Message: "expected )"}
	}
	return n, nil
}

func (r *OmegaRecord) validate() error {
	if r.block > 0 && !r.same {
		want := r.block * (r.block + 1) / 2
		if len(r.values) != want {
			return &ParseError{Record: r.name, Pos: token.Position{Line: r.line, Column: 1},
				Message: fmt.Sprintf("BLOCK(%d) needs %d values, got %d", r.block, want, len(r.values))}
		}
	}
	if r.same && len(r.values) != 0 {
		return &ParseError{Record: r.name, Pos: token.Position{Line: r.line, Column: 1},
			Message: "SAME block cannot carry values"}
	}
	return nil
}

// Block returns the BLOCK(n) size, 0 for the diagonal form.
func (r *OmegaRecord) Block() int { return r.block }

// Same reports the BLOCK(n) SAME form.
func (r *OmegaRecord) Same() bool { return r.same }

// Fix reports the record-level FIX flag (BLOCK form).
func (r *OmegaRecord) Fix() bool { return r.fix }

// Values returns the declared values: diagonal entries, or the row-major
// lower triangle for the BLOCK form.
func (r *OmegaRecord) Values() []float64 {
	return append([]float64(nil), r.values...)
}

// ValueFix returns per-value FIX flags for the diagonal form.
func (r *OmegaRecord) ValueFix() []bool {
	return append([]bool(nil), r.valueFix...)
}

// Size returns the number of etas (or epsilons) this record declares.
func (r *OmegaRecord) Size() int {
	if r.block > 0 {
		return r.block
	}
	return len(r.values)
}

// SetValues replaces the values, keeping the record shape.
func (r *OmegaRecord) SetValues(values []float64) error {
	if r.block > 0 && !r.same {
		want := r.block * (r.block + 1) / 2
		if len(values) != want {
			return fmt.Errorf("BLOCK(%d) needs %d values, got %d", r.block, want, len(values))
		}
	}
	r.values = append([]float64(nil), values...)
	if r.block == 0 {
		for len(r.valueFix) < len(r.values) {
			r.valueFix = append(r.valueFix, false)
		}
		r.valueFix = r.valueFix[:len(r.values)]
	}
	r.dirty = true
	return nil
}

// Raw implements Record.
func (r *OmegaRecord) Raw() string {
	if !r.dirty {
		return r.raw
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "$%s", r.name)
	if r.block > 0 {
		fmt.Fprintf(&sb, " BLOCK(%d)", r.block)
		if r.same {
			sb.WriteString(" SAME\n")
			return sb.String()
		}
		if r.fix {
			sb.WriteString(" FIX")
		}
		// one matrix row per line
		idx := 0
		for row := 1; row <= r.block; row++ {
			sb.WriteString("\n")
			for col := 1; col <= row; col++ {
				sb.WriteString(" " + formatNM(r.values[idx]))
				idx++
			}
		}
		sb.WriteString("\n")
		return sb.String()
	}
	for i, v := range r.values {
		if r.valueFix[i] {
			fmt.Fprintf(&sb, " %s FIX", formatNM(v))
		} else {
			sb.WriteString(" " + formatNM(v))
		}
	}
	sb.WriteString("\n")
	return sb.String()
}

// NewOmegaRecord creates a fresh diagonal $OMEGA or $SIGMA record.
func NewOmegaRecord(name string, values []float64, fix []bool) *OmegaRecord {
	if fix == nil {
		fix = make([]bool, len(values))
	}
	return &OmegaRecord{
		base:     base{name: name},
		values:   append([]float64(nil), values...),
		valueFix: append([]bool(nil), fix...),
		dirty:    true,
	}
}

// NewOmegaSameRecord creates a fresh $OMEGA BLOCK(n) SAME record.
func NewOmegaSameRecord(name string, n int) *OmegaRecord {
	return &OmegaRecord{base: base{name: name}, block: n, same: true, dirty: true}
}

// NewOmegaBlockRecord creates a fresh $OMEGA BLOCK(n) record from the
// row-major lower triangle.
func NewOmegaBlockRecord(name string, n int, lower []float64, fix bool) (*OmegaRecord, error) {
	if len(lower) != n*(n+1)/2 {
		return nil, fmt.Errorf("BLOCK(%d) needs %d values, got %d", n, n*(n+1)/2, len(lower))
	}
	return &OmegaRecord{
		base:   base{name: name},
		block:  n,
		fix:    fix,
		values: append([]float64(nil), lower...),
		dirty:  true,
	}, nil
}
