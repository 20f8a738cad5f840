package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pharmgo/pharmgo/pkg/token"
)

// EstimationRecord is one $ESTIMATION record.
type EstimationRecord struct {
	base
	method      string
	interaction bool
	laplace     bool
	maxEvals    int
	printEvery  int
	posthoc     bool
	extra       []string
	dirty       bool
}

func parseEstimationRecord(b base) (*EstimationRecord, error) {
	r := &EstimationRecord{base: b}
	toks := b.lex()
	i := 0
	next := func() token.Token { t := toks[i]; i++; return t }
	peek := func() token.Token { return toks[i] }

	intValue := func() (int, error) {
		if peek().Type == token.EQ {
			next()
		}
		v := next()
		if v.Type != token.NUMBER {
			return 0, &ParseError{Record: b.name, Pos: v.Pos, Message: "expected integer value"}
		}
		n, err := strconv.Atoi(v.Literal)
		if err != nil {
			return 0, &ParseError{Record: b.name, Pos: v.Pos, Message: fmt.Sprintf("invalid integer %q", v.Literal)}
		}
		return n, nil
	}

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
			case up == "METHOD" || up == "METH":
				if peek().Type == token.EQ {
					next()
				}
				v := next()
				if v.Type != token.IDENT && v.Type != token.NUMBER {
					return nil, &ParseError{Record: b.name, Pos: v.Pos, Message: "expected method name"}
				}
				r.method = strings.ToUpper(v.Literal)
			case up == "INTERACTION" || up == "INTER":
				r.interaction = true
			case up == "LAPLACIAN" || up == "LAPLACE":
				r.laplace = true
			case up == "POSTHOC":
				r.posthoc = true
			case up == "MAXEVAL" || up == "MAXEVALS":
				n, err := intValue()
				if err != nil {
					return nil, err
				}
				r.maxEvals = n
			case up == "PRINT":
				n, err := intValue()
				if err != nil {
					return nil, err
				}
				r.printEvery = n
			default:
				opt := t.Literal
				if peek().Type == token.EQ {
					next()
					v := next()
					opt += "=" + v.Literal
				}
				r.extra = append(r.extra, opt)
			}
		default:
			return nil, &ParseError{Record: b.name, Pos: t.Pos,
				Message: fmt.Sprintf("unexpected %s in $ESTIMATION", t.Type)}
		}
	}
}

// Method returns the METHOD= value as written (upper-cased), empty for
// the engine default (FO).
func (r *EstimationRecord) Method() string { return r.method }

// Interaction reports the INTERACTION flag.
func (r *EstimationRecord) Interaction() bool { return r.interaction }

// Laplace reports the LAPLACIAN flag.
func (r *EstimationRecord) Laplace() bool { return r.laplace }

// MaxEvals returns MAXEVAL, 0 if unset.
func (r *EstimationRecord) MaxEvals() int { return r.maxEvals }

// Posthoc reports the POSTHOC flag.
func (r *EstimationRecord) Posthoc() bool { return r.posthoc }

// SetMethod replaces the METHOD selection.
func (r *EstimationRecord) SetMethod(method string, interaction bool) {
	r.method = strings.ToUpper(method)
	r.interaction = interaction
	r.dirty = true
}

// SetMaxEvals replaces the MAXEVAL option, 0 removes it.
func (r *EstimationRecord) SetMaxEvals(n int) {
	r.maxEvals = n
	r.dirty = true
}

// Raw implements Record.
func (r *EstimationRecord) Raw() string {
	if !r.dirty {
		return r.raw
	}
	var sb strings.Builder
	sb.WriteString("$ESTIMATION")
	if r.method != "" {
		fmt.Fprintf(&sb, " METHOD=%s", r.method)
	}
	if r.interaction {
		sb.WriteString(" INTERACTION")
	}
	if r.laplace {
		sb.WriteString(" LAPLACIAN")
	}
	if r.maxEvals > 0 {
		fmt.Fprintf(&sb, " MAXEVAL=%d", r.maxEvals)
	}
	if r.printEvery > 0 {
		fmt.Fprintf(&sb, " PRINT=%d", r.printEvery)
	}
	if r.posthoc {
		sb.WriteString(" POSTHOC")
	}
	for _, e := range r.extra {
		sb.WriteString(" " + e)
	}
	sb.WriteString("\n")
	return sb.String()
}

// NewEstimationRecord creates a fresh $ESTIMATION record.
func NewEstimationRecord(method string, interaction bool) *EstimationRecord {
	return &EstimationRecord{base: base{name: "ESTIMATION"},
		method: strings.ToUpper(method), interaction: interaction, dirty: true}
}

// CovarianceRecord is the $COVARIANCE record. Options are carried as an
// ordered key list; presence of the record is what matters to the model.
type CovarianceRecord struct {
	base
	options []string
	dirty   bool
}

func parseCovarianceRecord(b base) *CovarianceRecord {
	r := &CovarianceRecord{base: b}
	toks := b.lex()
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Type != token.IDENT {
			continue
		}
		opt := t.Literal
		if i+2 < len(toks) && toks[i+1].Type == token.EQ {
			opt += "=" + toks[i+2].Literal
			i += 2
		}
		r.options = append(r.options, opt)
	}
	return r
}

// Options returns the record options as written.
func (r *CovarianceRecord) Options() []string {
	return append([]string(nil), r.options...)
}

// Raw implements Record.
func (r *CovarianceRecord) Raw() string {
	if !r.dirty {
		return r.raw
	}
	s := "$COVARIANCE"
	for _, o := range r.options {
		s += " " + o
	}
	return s + "\n"
}

// NewCovarianceRecord creates a fresh $COVARIANCE record.
func NewCovarianceRecord(options ...string) *CovarianceRecord {
	return &CovarianceRecord{base: base{name: "COVARIANCE"}, options: options, dirty: true}
}

// SimulationRecord is the $SIMULATION record.
type SimulationRecord struct {
	base
	seeds    []int
	nsubs    int
	onlySim  bool
	dirty    bool
}

func parseSimulationRecord(b base) (*SimulationRecord, error) {
	r := &SimulationRecord{base: b, nsubs: 1}
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
		case token.LPAREN:
			// (seed [NEW [UNIFORM]]) groups
			for peek().Type != token.RPAREN && peek().Type != token.EOF {
				v := next()
				if v.Type == token.NUMBER {
					n, err := strconv.Atoi(v.Literal)
					if err != nil {
						return nil, &ParseError{Record: b.name, Pos: v.Pos,
							Message: fmt.Sprintf("invalid seed %q", v.Literal)}
					}
					r.seeds = append(r.seeds, n)
				}
			}
			if peek().Type == token.RPAREN {
				next()
			}
		case token.IDENT:
			up := strings.ToUpper(t.Literal)
			switch {
			case up == "NSUBPROBLEMS" || up == "NSUBPROBS" || up == "SUBPROBLEMS" || up == "SUBPROBS" || up == "NSUB":
				if peek().Type == token.EQ {
					next()
				}
				v := next()
				if v.Type != token.NUMBER {
					return nil, &ParseError{Record: b.name, Pos: v.Pos, Message: "expected subproblem count"}
				}
				n, _ := strconv.Atoi(v.Literal)
				r.nsubs = n
			case up == "ONLYSIMULATION" || up == "ONLYSIM":
				r.onlySim = true
			}
		}
	}
}

// Seeds returns the simulation seeds.
func (r *SimulationRecord) Seeds() []int { return append([]int(nil), r.seeds...) }

// NSubs returns the number of subproblems, at least 1.
func (r *SimulationRecord) NSubs() int { return r.nsubs }

// OnlySimulation reports the ONLYSIMULATION flag.
func (r *SimulationRecord) OnlySimulation() bool { return r.onlySim }

// Raw implements Record.
func (r *SimulationRecord) Raw() string {
	if !r.dirty {
		return r.raw
	}
	var sb strings.Builder
	sb.WriteString("$SIMULATION")
	for _, s := range r.seeds {
		fmt.Fprintf(&sb, " (%d)", s)
	}
	if r.nsubs > 1 {
		fmt.Fprintf(&sb, " NSUBPROBLEMS=%d", r.nsubs)
	}
	if r.onlySim {
		sb.WriteString(" ONLYSIMULATION")
	}
	sb.WriteString("\n")
	return sb.String()
}
