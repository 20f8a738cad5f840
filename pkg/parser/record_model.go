package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pharmgo/pharmgo/pkg/token"
)

// SubroutinesRecord is the $SUBROUTINES record: ADVAN/TRANS selection and
// solver tolerance.
type SubroutinesRecord struct {
	base
	advan string
	trans string
	tol   int
	extra []string
	dirty bool
}

func parseSubroutinesRecord(b base) (*SubroutinesRecord, error) {
	r := &SubroutinesRecord{base: b}
	for _, t := range b.lex() {
		switch t.Type {
		case token.EOF, token.NEWLINE, token.COMMA, token.EQ:
			continue
		case token.IDENT:
			up := strings.ToUpper(t.Literal)
			switch {
			case strings.HasPrefix(up, "ADVAN"):
				r.advan = up
			case strings.HasPrefix(up, "TRANS"):
				r.trans = up
			case strings.HasPrefix(up, "TOL"):
				// TOL=n arrives as separate tokens; the value is handled below
			default:
				r.extra = append(r.extra, t.Literal)
			}
		case token.NUMBER:
			if n, err := strconv.Atoi(t.Literal); err == nil {
				r.tol = n
			}
		default:
			return nil, &ParseError{Record: b.name, Pos: t.Pos,
				Message: fmt.Sprintf("unexpected %s in $SUBROUTINES", t.Type)}
		}
	}
	return r, nil
}

// Advan returns the ADVANn selection, e.g. "ADVAN1".
func (r *SubroutinesRecord) Advan() string { return r.advan }

// Trans returns the TRANSn selection, empty for the default TRANS1.
func (r *SubroutinesRecord) Trans() string { return r.trans }

// Tol returns the TOL value, 0 if unset.
func (r *SubroutinesRecord) Tol() int { return r.tol }

// SetAdvan replaces the ADVAN/TRANS selection.
func (r *SubroutinesRecord) SetAdvan(advan, trans string) {
	r.advan = strings.ToUpper(advan)
	r.trans = strings.ToUpper(trans)
	r.dirty = true
}

// SetTol sets the solver tolerance the general ADVANs require.
func (r *SubroutinesRecord) SetTol(n int) {
	r.tol = n
	r.dirty = true
}

// Raw implements Record.
func (r *SubroutinesRecord) Raw() string {
	if !r.dirty {
		return r.raw
	}
	var sb strings.Builder
	sb.WriteString("$SUBROUTINES")
	if r.advan != "" {
		sb.WriteString(" " + r.advan)
	}
	if r.trans != "" {
		sb.WriteString(" " + r.trans)
	}
	if r.tol > 0 {
		fmt.Fprintf(&sb, " TOL=%d", r.tol)
	}
	for _, e := range r.extra {
		sb.WriteString(" " + e)
	}
	sb.WriteString("\n")
	return sb.String()
}

// NewSubroutinesRecord creates a fresh $SUBROUTINES record.
func NewSubroutinesRecord(advan, trans string) *SubroutinesRecord {
	return &SubroutinesRecord{base: base{name: "SUBROUTINES"},
		advan: strings.ToUpper(advan), trans: strings.ToUpper(trans), dirty: true}
}

// CompartmentDef is one COMP=(NAME flags) declaration of $MODEL.
type CompartmentDef struct {
	Name       string
	DefDose    bool
	DefObs     bool
	InitialOff bool
}

// ModelRecord is the $MODEL record declaring general-model compartments.
type ModelRecord struct {
	base
	ncomp int
	comps []CompartmentDef
	dirty bool
}

func parseModelRecord(b base) (*ModelRecord, error) {
	r := &ModelRecord{base: b}
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
		case token.IDENT:
			up := strings.ToUpper(t.Literal)
			switch {
			case up == "COMP" || up == "COMPARTMENT":
				if peek().Type == token.EQ {
					next()
				}
				def, err := parseCompDef(toks, &i, b.name)
				if err != nil {
					return nil, err
				}
				r.comps = append(r.comps, def)
			case up == "NCOMPARTMENTS" || up == "NCOMPS" || up == "NCM":
				if peek().Type == token.EQ {
					next()
				}
				v := next()
				if v.Type != token.NUMBER {
					return nil, &ParseError{Record: b.name, Pos: v.Pos, Message: "expected compartment count"}
				}
				n, _ := strconv.Atoi(v.Literal)
				r.ncomp = n
			default:
				return nil, &ParseError{Record: b.name, Pos: t.Pos,
					Message: fmt.Sprintf("unexpected %q in $MODEL", t.Literal)}
			}
		default:
			return nil, &ParseError{Record: b.name, Pos: t.Pos,
				Message: fmt.Sprintf("unexpected %s in $MODEL", t.Type)}
		}
	}
}

func parseCompDef(toks []token.Token, i *int, record string) (CompartmentDef, error) {
	next := func() token.Token { t := toks[*i]; *i++; return t }

	t := next()
	// COMP=NAME without parentheses
	if t.Type == token.IDENT {
		return CompartmentDef{Name: t.Literal}, nil
	}
	if t.Type != token.LPAREN {
		return CompartmentDef{}, &ParseError{Record: record, Pos: t.Pos, Message: "expected ( after COMP"}
	}
	var def CompartmentDef
	first := true
	for {
		t := next()
		switch t.Type {
		case token.RPAREN:
			if def.Name == "" {
				return CompartmentDef{}, &ParseError{Record: record, Pos: t.Pos, Message: "compartment has no name"}
			}
			return def, nil
		case token.COMMA, token.NEWLINE:
			continue
		case token.IDENT, token.STRING:
			lit := unquote(t.Literal)
			up := strings.ToUpper(lit)
			switch up {
			case "DEFDOSE":
				def.DefDose = true
			case "DEFOBSERVATION", "DEFOBS":
				def.DefObs = true
			case "INITIALOFF":
				def.InitialOff = true
			case "NOOFF", "NODOSE", "EQUILIBRIUM", "EXCLUDE":
				// accepted and ignored
			default:
				if first {
					def.Name = lit
				}
			}
			first = false
		case token.EOF:
			return CompartmentDef{}, &ParseError{Record: record, Pos: t.Pos, Message: "unterminated COMP definition"}
		default:
			return CompartmentDef{}, &ParseError{Record: record, Pos: t.Pos,
				Message: fmt.Sprintf("unexpected %s in COMP definition", t.Type)}
		}
	}
}

// Compartments returns the declared compartments in order.
func (r *ModelRecord) Compartments() []CompartmentDef {
	return append([]CompartmentDef(nil), r.comps...)
}

// SetCompartments replaces the compartment declarations.
func (r *ModelRecord) SetCompartments(comps []CompartmentDef) {
	r.comps = append([]CompartmentDef(nil), comps...)
	r.dirty = true
}

// Raw implements Record.
func (r *ModelRecord) Raw() string {
	if !r.dirty {
		return r.raw
	}
	var sb strings.Builder
	sb.WriteString("$MODEL")
	for _, c := range r.comps {
		fmt.Fprintf(&sb, " COMP=(%s", c.Name)
		if c.DefDose {
			sb.WriteString(" DEFDOSE")
		}
		if c.DefObs {
			sb.WriteString(" DEFOBS")
		}
		if c.InitialOff {
			sb.WriteString(" INITIALOFF")
		}
		sb.WriteString(")")
	}
	sb.WriteString("\n")
	return sb.String()
}

// NewModelRecord creates a fresh $MODEL record.
func NewModelRecord(comps []CompartmentDef) *ModelRecord {
	return &ModelRecord{base: base{name: "MODEL"}, comps: append([]CompartmentDef(nil), comps...), dirty: true}
}
