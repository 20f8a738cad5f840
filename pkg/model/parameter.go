// Package model defines the in-memory representation of a pharmacometric
// model: parameters, random variables, the compartmental structure, column
// metadata and estimation steps. Models are built from parsed NM-TRAN
// control streams and can write themselves back out.
package model

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Parameter is a scalar model parameter with initial estimate and bounds.
// Unbounded sides are represented by -Inf/+Inf.
type Parameter struct {
	Name  string
	Init  float64
	Lower float64
	Upper float64
	Fix   bool
}

// NewParameter creates a parameter and validates its constraints. The
// initial estimate must lie within [lower, upper] and a fixed parameter
// cannot carry bounds.
func NewParameter(name string, init float64, opts ...ParameterOption) (Parameter, error) {
	if name == "" {
		return Parameter{}, fmt.Errorf("parameter name must not be empty")
	}
	p := Parameter{
		Name:  name,
		Init:  init,
		Lower: math.Inf(-1),
		Upper: math.Inf(1),
	}
	for _, opt := range opts {
		opt(&p)
	}
	if p.Lower > p.Upper {
		return Parameter{}, fmt.Errorf("parameter %s: lower bound %g above upper bound %g", name, p.Lower, p.Upper)
	}
	if p.Init < p.Lower || p.Init > p.Upper {
		return Parameter{}, fmt.Errorf("parameter %s: init %g outside bounds [%g, %g]", name, p.Init, p.Lower, p.Upper)
	}
	if p.Fix && (!math.IsInf(p.Lower, -1) || !math.IsInf(p.Upper, 1)) {
		return Parameter{}, fmt.Errorf("parameter %s: a fixed parameter cannot have bounds", name)
	}
	return p, nil
}

// ParameterOption configures optional parameter attributes.
type ParameterOption func(*Parameter)

// WithLower sets the lower bound.
func WithLower(v float64) ParameterOption { return func(p *Parameter) { p.Lower = v } }

// WithUpper sets the upper bound.
func WithUpper(v float64) ParameterOption { return func(p *Parameter) { p.Upper = v } }

// WithFix marks the parameter as fixed.
func WithFix() ParameterOption { return func(p *Parameter) { p.Fix = true } }

// Unconstrain removes both bounds.
func (p *Parameter) Unconstrain() {
	p.Lower = math.Inf(-1)
	p.Upper = math.Inf(1)
}

// String renders the parameter in the form used by `pharmgo model print`.
func (p Parameter) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s = %g", p.Name, p.Init)
	if !math.IsInf(p.Lower, -1) || !math.IsInf(p.Upper, 1) {
		fmt.Fprintf(&b, " [%g, %g]", p.Lower, p.Upper)
	}
	if p.Fix {
		b.WriteString(" FIX")
	}
	return b.String()
}

// Parameters is an ordered collection of parameters with name lookup.
type Parameters struct {
	params []Parameter
	index  map[string]int
}

// NewParameters builds a collection, rejecting duplicate names.
func NewParameters(params ...Parameter) (*Parameters, error) {
	ps := &Parameters{index: make(map[string]int, len(params))}
	for _, p := range params {
		if _, dup := ps.index[p.Name]; dup {
			return nil, fmt.Errorf("duplicate parameter name %s", p.Name)
		}
		ps.index[p.Name] = len(ps.params)
		ps.params = append(ps.params, p)
	}
	return ps, nil
}

// Len returns the number of parameters.
func (ps *Parameters) Len() int { return len(ps.params) }

// All returns the parameters in declaration order.
func (ps *Parameters) All() []Parameter {
	out := make([]Parameter, len(ps.params))
	copy(out, ps.params)
	return out
}

// Get looks up a parameter by name.
func (ps *Parameters) Get(name string) (Parameter, bool) {
	i, ok := ps.index[name]
	if !ok {
		return Parameter{}, false
	}
	return ps.params[i], true
}

// Names returns parameter names in declaration order.
func (ps *Parameters) Names() []string {
	names := make([]string, len(ps.params))
	for i, p := range ps.params {
		names[i] = p.Name
	}
	return names
}

// Inits returns a name to initial estimate map.
func (ps *Parameters) Inits() map[string]float64 {
	m := make(map[string]float64, len(ps.params))
	for _, p := range ps.params {
		m[p.Name] = p.Init
	}
	return m
}

// Nonfixed returns the subset of parameters that are not fixed.
func (ps *Parameters) Nonfixed() []Parameter {
	var out []Parameter
	for _, p := range ps.params {
		if !p.Fix {
			out = append(out, p)
		}
	}
	return out
}

// SetFix fixes or unfixes the named parameters.
func (ps *Parameters) SetFix(fix map[string]bool) error {
	for name := range fix {
		if _, ok := ps.index[name]; !ok {
			return fmt.Errorf("unknown parameter %s", name)
		}
	}
	for name, f := range fix {
		ps.params[ps.index[name]].Fix = f
	}
	return nil
}

// SetInit updates an initial estimate, revalidating against its bounds.
func (ps *Parameters) SetInit(name string, init float64) error {
	i, ok := ps.index[name]
	if !ok {
		return fmt.Errorf("unknown parameter %s", name)
	}
	p := ps.params[i]
	if init < p.Lower || init > p.Upper {
		return fmt.Errorf("parameter %s: init %g outside bounds [%g, %g]", name, init, p.Lower, p.Upper)
	}
	ps.params[i].Init = init
	return nil
}

// SetInits updates several initial estimates. Names missing from the
// collection are ignored, which lets final estimates from a fit (which may
// include fixed or derived values) be pushed back wholesale.
func (ps *Parameters) SetInits(inits map[string]float64) error {
	names := make([]string, 0, len(inits))
	for name := range inits {
		if _, ok := ps.index[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if err := ps.SetInit(name, inits[name]); err != nil {
			return err
		}
	}
	return nil
}

// Add appends a parameter to the collection.
func (ps *Parameters) Add(p Parameter) error {
	if _, dup := ps.index[p.Name]; dup {
		return fmt.Errorf("duplicate parameter name %s", p.Name)
	}
	if ps.index == nil {
		ps.index = make(map[string]int)
	}
	ps.index[p.Name] = len(ps.params)
	ps.params = append(ps.params, p)
	return nil
}

// Remove deletes a parameter by name.
func (ps *Parameters) Remove(name string) error {
	i, ok := ps.index[name]
	if !ok {
		return fmt.Errorf("unknown parameter %s", name)
	}
	ps.params = append(ps.params[:i], ps.params[i+1:]...)
	ps.index = make(map[string]int, len(ps.params))
	for j, p := range ps.params {
		ps.index[p.Name] = j
	}
	return nil
}
