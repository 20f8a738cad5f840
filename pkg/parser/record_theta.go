package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pharmgo/pharmgo/pkg/token"
)

// ThetaInit is one structural parameter declaration from $THETA: an
// initial estimate with optional bounds and FIX flag. Absent bounds are
// -Inf/+Inf.
type ThetaInit struct {
	Low  float64
	Init float64
	Up   float64
	Fix  bool
}

// ThetaRecord is the $THETA record.
type ThetaRecord struct {
	base
	inits []ThetaInit
	dirty bool
}

func parseThetaRecord(b base) (*ThetaRecord, error) {
	r := &ThetaRecord{base: b}
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

	// consumeFix eats a FIX/FIXED keyword if present.
	consumeFix := func() bool {
		if peek().Type == token.IDENT {
			up := strings.ToUpper(peek().Literal)
			if up == "FIX" || up == "FIXED" {
				next()
				return true
			}
		}
		return false
	}

	for {
		switch t := peek(); t.Type {
		case token.EOF:
			return r, nil
		case token.NEWLINE, token.COMMA:
			next()
		case token.LPAREN:
			next()
			// (low, init [, up]) [FIX]  or  (value) FIX
			var vals []float64
			fix := false
			for peek().Type != token.RPAREN {
				switch peek().Type {
				case token.COMMA, token.NEWLINE:
					next()
				case token.IDENT:
					up := strings.ToUpper(peek().Literal)
					if up == "FIX" || up == "FIXED" {
						next()
						fix = true
						continue
					}
					if up == "INF" || up == "INFINITY" {
						next()
						vals = append(vals, math.Inf(1))
						continue
					}
					return nil, &ParseError{Record: b.name, Pos: peek().Pos,
						Message: fmt.Sprintf("unexpected %q in theta bounds", peek().Literal)}
				case token.MINUS:
					// -INF lexes as MINUS IDENT
					if toks[i+1].Type == token.IDENT {
						up := strings.ToUpper(toks[i+1].Literal)
						if up == "INF" || up == "INFINITY" {
							next()
							next()
							vals = append(vals, math.Inf(-1))
							continue
						}
					}
					v, err := parseNum()
					if err != nil {
						return nil, err
					}
					vals = append(vals, v)
				case token.EOF:
					return nil, &ParseError{Record: b.name, Pos: peek().Pos, Message: "unterminated theta bounds"}
				default:
					v, err := parseNum()
					if err != nil {
						return nil, err
					}
					vals = append(vals, v)
				}
			}
			next() // consume )
			if consumeFix() {
				fix = true
			}
			ti := ThetaInit{Low: math.Inf(-1), Up: math.Inf(1), Fix: fix}
			switch len(vals) {
			case 1:
				ti.Init = vals[0]
			case 2:
				ti.Low, ti.Init = vals[0], vals[1]
			case 3:
				ti.Low, ti.Init, ti.Up = vals[0], vals[1], vals[2]
			default:
				return nil, &ParseError{Record: b.name, Pos: t.Pos,
					Message: fmt.Sprintf("theta bounds need 1-3 values, got %d", len(vals))}
			}
			r.appendWithMultiplier(ti, toks, &i)
		case token.NUMBER, token.PLUS, token.MINUS:
			v, err := parseNum()
			if err != nil {
				return nil, err
			}
			ti := ThetaInit{Low: math.Inf(-1), Init: v, Up: math.Inf(1)}
			if consumeFix() {
				ti.Fix = true
			}
			r.appendWithMultiplier(ti, toks, &i)
		default:
			return nil, &ParseError{Record: b.name, Pos: t.Pos,
				Message: fmt.Sprintf("unexpected %s %q in $THETA", t.Type, t.Literal)}
		}
	}
}

// appendWithMultiplier handles the xN repetition suffix: `(0,1) x3`.
func (r *ThetaRecord) appendWithMultiplier(ti ThetaInit, toks []token.Token, i *int) {
	n := 1
	if toks[*i].Type == token.IDENT {
		lit := strings.ToUpper(toks[*i].Literal)
		if strings.HasPrefix(lit, "X") {
			if m, err := strconv.Atoi(lit[1:]); err == nil && m > 0 {
				n = m
				*i++
			}
		}
	}
	for k := 0; k < n; k++ {
		r.inits = append(r.inits, ti)
	}
}

// parseFortranFloat parses a number literal allowing the Fortran D
// exponent marker.
func parseFortranFloat(s string) (float64, error) {
	norm := strings.Map(func(r rune) rune {
		if r == 'd' || r == 'D' {
			return 'E'
		}
		return r
	}, s)
	v, err := strconv.ParseFloat(norm, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

// Inits returns the theta declarations in order.
func (r *ThetaRecord) Inits() []ThetaInit {
	return append([]ThetaInit(nil), r.inits...)
}

// Len returns the number of thetas declared by this record.
func (r *ThetaRecord) Len() int { return len(r.inits) }

// SetInits replaces the theta declarations.
func (r *ThetaRecord) SetInits(inits []ThetaInit) {
	r.inits = append([]ThetaInit(nil), inits...)
	r.dirty = true
}

// SetInit updates a single theta (0-based within the record).
func (r *ThetaRecord) SetInit(i int, ti ThetaInit) error {
	if i < 0 || i >= len(r.inits) {
		return fmt.Errorf("theta index %d out of range", i)
	}
	r.inits[i] = ti
	r.dirty = true
	return nil
}

// Raw implements Record.
func (r *ThetaRecord) Raw() string {
	if !r.dirty {
		return r.raw
	}
	var sb strings.Builder
	sb.WriteString("$THETA")
	for _, ti := range r.inits {
		sb.WriteString(" " + formatThetaInit(ti))
	}
	sb.WriteString("\n")
	return sb.String()
}

func formatThetaInit(ti ThetaInit) string {
	var s string
	noLow := math.IsInf(ti.Low, -1)
	noUp := math.IsInf(ti.Up, 1)
	switch {
	case noLow && noUp:
		s = formatNM(ti.Init)
	case noLow:
		s = fmt.Sprintf("(-INF,%s,%s)", formatNM(ti.Init), formatNM(ti.Up))
	case noUp:
		s = fmt.Sprintf("(%s,%s)", formatNM(ti.Low), formatNM(ti.Init))
	default:
		s = fmt.Sprintf("(%s,%s,%s)", formatNM(ti.Low), formatNM(ti.Init), formatNM(ti.Up))
	}
	if ti.Fix {
		s += " FIX"
	}
	return s
}

// formatNM renders a float the compact way NM-TRAN users write them.
func formatNM(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// NewThetaRecord creates a fresh $THETA record.
func NewThetaRecord(inits []ThetaInit) *ThetaRecord {
	return &ThetaRecord{base: base{name: "THETA"}, inits: append([]ThetaInit(nil), inits...), dirty: true}
}
