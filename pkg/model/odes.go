package model

import (
	"fmt"
	"sort"
	"strings"
)

// Compartment is a node in the kinetic transfer graph declared by $MODEL
// (or implied by an ADVAN subroutine).
type Compartment struct {
	Name            string
	Dose            bool   // default dose compartment (DEFDOSE)
	Observation     bool   // default observation compartment (DEFOBS)
	InitialOff      bool   // INITIALOFF
	LagTime         string // symbol for ALAG, empty if none
	Bioavailability string // symbol for F, empty if none
}

// Flow is a directed transfer between compartments with a named rate
// constant, or an elimination out of the system when To is empty.
type Flow struct {
	From string
	To   string // empty means elimination
	Rate string // rate expression, e.g. K, CL/V, KA
}

// CompartmentalSystem is the directed graph of compartments and rate
// constants behind a structural PK model.
type CompartmentalSystem struct {
	compartments []Compartment
	flows        []Flow
}

// NewCompartmentalSystem creates an empty system.
func NewCompartmentalSystem() *CompartmentalSystem {
	return &CompartmentalSystem{}
}

// AddCompartment appends a compartment, rejecting duplicates.
func (cs *CompartmentalSystem) AddCompartment(c Compartment) error {
	if _, ok := cs.find(c.Name); ok {
		return fmt.Errorf("duplicate compartment %s", c.Name)
	}
	cs.compartments = append(cs.compartments, c)
	return nil
}

// RemoveCompartment deletes a compartment and all flows touching it.
func (cs *CompartmentalSystem) RemoveCompartment(name string) error {
	i, ok := cs.find(name)
	if !ok {
		return fmt.Errorf("unknown compartment %s", name)
	}
	cs.compartments = append(cs.compartments[:i], cs.compartments[i+1:]...)
	var flows []Flow
	for _, f := range cs.flows {
		if f.From != name && f.To != name {
			flows = append(flows, f)
		}
	}
	cs.flows = flows
	return nil
}

// AddFlow adds a transfer between existing compartments. An empty To adds
// an elimination flow.
func (cs *CompartmentalSystem) AddFlow(from, to, rate string) error {
	if _, ok := cs.find(from); !ok {
		return fmt.Errorf("unknown compartment %s", from)
	}
	if to != "" {
		if _, ok := cs.find(to); !ok {
			return fmt.Errorf("unknown compartment %s", to)
		}
	}
	for i, f := range cs.flows {
		if f.From == from && f.To == to {
			cs.flows[i].Rate = rate
			return nil
		}
	}
	cs.flows = append(cs.flows, Flow{From: from, To: to, Rate: rate})
	return nil
}

// RemoveFlow deletes the transfer from one compartment to another.
func (cs *CompartmentalSystem) RemoveFlow(from, to string) error {
	for i, f := range cs.flows {
		if f.From == from && f.To == to {
			cs.flows = append(cs.flows[:i], cs.flows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no flow from %s to %s", from, to)
}

func (cs *CompartmentalSystem) find(name string) (int, bool) {
	for i, c := range cs.compartments {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Compartments returns all compartments in declaration order.
func (cs *CompartmentalSystem) Compartments() []Compartment {
	return append([]Compartment(nil), cs.compartments...)
}

// Flows returns all flows.
func (cs *CompartmentalSystem) Flows() []Flow {
	return append([]Flow(nil), cs.flows...)
}

// Compartment looks up a compartment by name.
func (cs *CompartmentalSystem) Compartment(name string) (Compartment, bool) {
	i, ok := cs.find(name)
	if !ok {
		return Compartment{}, false
	}
	return cs.compartments[i], true
}

// SetCompartment replaces the named compartment's attributes.
func (cs *CompartmentalSystem) SetCompartment(c Compartment) error {
	i, ok := cs.find(c.Name)
	if !ok {
		return fmt.Errorf("unknown compartment %s", c.Name)
	}
	cs.compartments[i] = c
	return nil
}

// DosingCompartment returns the compartment doses enter. Falls back to the
// first compartment when no DEFDOSE flag is set.
func (cs *CompartmentalSystem) DosingCompartment() (Compartment, bool) {
	for _, c := range cs.compartments {
		if c.Dose {
			return c, true
		}
	}
	if len(cs.compartments) > 0 {
		return cs.compartments[0], true
	}
	return Compartment{}, false
}

// CentralCompartment returns the observation compartment. NONMEM defaults
// observation to the first compartment unless DEFOBS says otherwise.
func (cs *CompartmentalSystem) CentralCompartment() (Compartment, bool) {
	for _, c := range cs.compartments {
		if c.Observation {
			return c, true
		}
	}
	if len(cs.compartments) > 0 {
		return cs.compartments[0], true
	}
	return Compartment{}, false
}

// PeripheralCompartments returns compartments connected to the central
// compartment in both directions, sorted by name.
func (cs *CompartmentalSystem) PeripheralCompartments() []Compartment {
	central, ok := cs.CentralCompartment()
	if !ok {
		return nil
	}
	fromCentral := make(map[string]bool)
	toCentral := make(map[string]bool)
	for _, f := range cs.flows {
		if f.From == central.Name && f.To != "" {
			fromCentral[f.To] = true
		}
		if f.To == central.Name {
			toCentral[f.From] = true
		}
	}
	var out []Compartment
	for _, c := range cs.compartments {
		if c.Name == central.Name {
			continue
		}
		if fromCentral[c.Name] && toCentral[c.Name] && !cs.eliminates(c.Name) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (cs *CompartmentalSystem) eliminates(name string) bool {
	for _, f := range cs.flows {
		if f.From == name && f.To == "" {
			return true
		}
	}
	return false
}

// AbsorptionCompartment returns the depot compartment: the dose compartment
// when it only feeds forward into the rest of the system and is not the
// central compartment.
func (cs *CompartmentalSystem) AbsorptionCompartment() (Compartment, bool) {
	dose, ok := cs.DosingCompartment()
	if !ok {
		return Compartment{}, false
	}
	central, _ := cs.CentralCompartment()
	if dose.Name == central.Name {
		return Compartment{}, false
	}
	for _, f := range cs.flows {
		if f.To == dose.Name {
			return Compartment{}, false
		}
	}
	return dose, true
}

// TransitChain returns the names of transit compartments: the linear chain
// of single-in single-out compartments between dosing and absorption (or
// central), in flow order.
func (cs *CompartmentalSystem) TransitChain() []string {
	next := make(map[string]string)
	indeg := make(map[string]int)
	outdeg := make(map[string]int)
	for _, f := range cs.flows {
		if f.To == "" {
			continue
		}
		outdeg[f.From]++
		indeg[f.To]++
		next[f.From] = f.To
	}
	central, _ := cs.CentralCompartment()
	var chain []string
	dose, ok := cs.DosingCompartment()
	if !ok {
		return nil
	}
	cur := dose.Name
	for cur != "" && cur != central.Name && outdeg[cur] == 1 && indeg[cur] <= 1 && !cs.eliminates(cur) {
		chain = append(chain, cur)
		cur = next[cur]
	}
	// The dose compartment itself only counts as transit when followed by
	// further pre-central compartments.
	if len(chain) <= 1 {
		return nil
	}
	return chain[:len(chain)-1]
}

// Advan recognizes the classic NONMEM subroutine matching the topology,
// or returns an empty string for a general model.
func (cs *CompartmentalSystem) Advan() string {
	n := len(cs.compartments)
	periph := len(cs.PeripheralCompartments())
	_, hasDepot := cs.AbsorptionCompartment()
	switch {
	case n == 1 && periph == 0 && !hasDepot:
		return "ADVAN1"
	case n == 2 && periph == 0 && hasDepot:
		return "ADVAN2"
	case n == 2 && periph == 1 && !hasDepot:
		return "ADVAN3"
	case n == 3 && periph == 1 && hasDepot:
		return "ADVAN4"
	case n == 3 && periph == 2 && !hasDepot:
		return "ADVAN11"
	case n == 4 && periph == 2 && hasDepot:
		return "ADVAN12"
	}
	return ""
}

// String renders the kinetic graph one flow per line.
func (cs *CompartmentalSystem) String() string {
	var b strings.Builder
	for _, f := range cs.flows {
		to := f.To
		if to == "" {
			to = "OUT"
		}
		fmt.Fprintf(&b, "%s -> %s [%s]\n", f.From, to, f.Rate)
	}
	return b.String()
}
