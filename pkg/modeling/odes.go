package modeling

import (
	"fmt"
	"strings"

	"github.com/pharmgo/pharmgo/pkg/model"
)

// Default inits for structural parameters introduced by transformations,
// used when nothing better can be read off the model.
const (
	defaultMATInit = 1.0
	defaultMDTInit = 0.5
	defaultQInit   = 0.1
	defaultVInit   = 1.0
)

// SetBolusAbsorption removes any absorption machinery: the dose goes
// straight into the central compartment.
func SetBolusAbsorption(m *model.Model) error {
	odes := m.ODESystem()
	if odes == nil {
		return fmt.Errorf("model has no compartment structure")
	}
	if err := SetTransitCompartments(m, 0); err != nil {
		return err
	}
	if abs, ok := odes.AbsorptionCompartment(); ok {
		if err := odes.RemoveCompartment(abs.Name); err != nil {
			return err
		}
	}
	central, ok := odes.CentralCompartment()
	if !ok {
		return fmt.Errorf("model has no central compartment")
	}
	central.Dose = true
	if err := odes.SetCompartment(central); err != nil {
		return err
	}
	for _, sym := range []string{"KA", "D1", "MAT"} {
		if err := removeStructural(m, sym); err != nil {
			return err
		}
	}
	if !referenced(m, "MDT") {
		if err := removeStructural(m, "MDT"); err != nil {
			return err
		}
	}
	return normalizeNames(m)
}

// SetFirstOrderAbsorption gives the model a depot compartment with rate
// KA = 1/MAT, MAT being a fresh mean absorption time parameter.
func SetFirstOrderAbsorption(m *model.Model) error {
	if err := SetBolusAbsorption(m); err != nil {
		return err
	}
	odes := m.ODESystem()
	central, _ := odes.CentralCompartment()
	central.Dose = false
	if err := odes.SetCompartment(central); err != nil {
		return err
	}
	if err := odes.AddCompartment(model.Compartment{Name: "DEPOT", Dose: true}); err != nil {
		return err
	}
	if err := odes.AddFlow("DEPOT", central.Name, "KA"); err != nil {
		return err
	}
	if _, err := AddParameter(m, "MAT", defaultMATInit); err != nil {
		return err
	}
	code := structuralCode(m)
	code.Insert(code.Index("MAT")+1, model.Assignment{Symbol: "KA", Expression: "1/MAT"})
	return nil
}

// SetZeroOrderAbsorption models a constant-rate input of duration
// D1 = 2*MAT into the central compartment. The dataset must dose with
// RATE=-2 for NONMEM to honor the duration.
func SetZeroOrderAbsorption(m *model.Model) error {
	if err := SetBolusAbsorption(m); err != nil {
		return err
	}
	if _, err := AddParameter(m, "MAT", defaultMATInit); err != nil {
		return err
	}
	code := structuralCode(m)
	code.Insert(code.Index("MAT")+1, model.Assignment{Symbol: "D1", Expression: "2*MAT"})
	return nil
}

// SetSeqZOFOAbsorption combines a zero-order infusion into the depot with
// first-order absorption out of it.
func SetSeqZOFOAbsorption(m *model.Model) error {
	if err := SetFirstOrderAbsorption(m); err != nil {
		return err
	}
	if _, err := AddParameter(m, "MDT", defaultMDTInit); err != nil {
		return err
	}
	code := structuralCode(m)
	code.Insert(code.Index("MDT")+1, model.Assignment{Symbol: "D1", Expression: "2*MDT"})
	return nil
}

// AddLagTime puts a lag of MDT on the dosing compartment.
func AddLagTime(m *model.Model) error {
	odes := m.ODESystem()
	if odes == nil {
		return fmt.Errorf("model has no compartment structure")
	}
	dose, ok := odes.DosingCompartment()
	if !ok {
		return fmt.Errorf("model has no dosing compartment")
	}
	if dose.LagTime != "" {
		return fmt.Errorf("dosing compartment already has a lag time")
	}
	if _, err := AddParameter(m, "MDT", defaultMDTInit); err != nil {
		return err
	}
	alag := fmt.Sprintf("ALAG%d", compartmentNumber(odes, dose.Name))
	code := structuralCode(m)
	code.Insert(code.Index("MDT")+1, model.Assignment{Symbol: alag, Expression: "MDT"})
	dose.LagTime = alag
	return odes.SetCompartment(dose)
}

// RemoveLagTime drops the dosing compartment's lag.
func RemoveLagTime(m *model.Model) error {
	odes := m.ODESystem()
	if odes == nil {
		return fmt.Errorf("model has no compartment structure")
	}
	dose, ok := odes.DosingCompartment()
	if !ok || dose.LagTime == "" {
		return nil
	}
	code := structuralCode(m)
	if code != nil {
		code.Remove(dose.LagTime)
	}
	dose.LagTime = ""
	if err := odes.SetCompartment(dose); err != nil {
		return err
	}
	if err := removeStructural(m, "MDT"); err != nil {
		return err
	}
	return normalizeNames(m)
}

// AddPeripheralCompartment attaches one more peripheral compartment with
// fresh inter-compartmental clearance and volume. Inits lean on the
// existing clearance and volume when they can be read off the code.
func AddPeripheralCompartment(m *model.Model) error {
	odes := m.ODESystem()
	if odes == nil {
		return fmt.Errorf("model has no compartment structure")
	}
	central, ok := odes.CentralCompartment()
	if !ok {
		return fmt.Errorf("model has no central compartment")
	}
	p := len(odes.PeripheralCompartments())
	i := p + 1
	name := fmt.Sprintf("PERIPHERAL%d", i)
	if err := odes.AddCompartment(model.Compartment{Name: name}); err != nil {
		return err
	}

	if clearanceParameterized(odes) {
		if p == 0 {
			// the central volume picks up a subscript alongside V2
			renameInStatements(m, map[string]string{"V": "V1"})
			renameFlows(odes, "V", "V1")
		}
		q := fmt.Sprintf("Q%d", i)
		v := fmt.Sprintf("V%d", i+1)
		if _, err := AddParameter(m, q, symbolInit(m, "CL", defaultQInit)/2); err != nil {
			return err
		}
		if _, err := AddParameter(m, v, symbolInit(m, "V1", symbolInit(m, "V", defaultVInit))); err != nil {
			return err
		}
		if err := odes.AddFlow(central.Name, name, q+"/V1"); err != nil {
			return err
		}
		return odes.AddFlow(name, central.Name, q+"/"+v)
	}

	cno := 1
	if _, ok := odes.AbsorptionCompartment(); ok {
		cno = 2
	}
	kin := fmt.Sprintf("K%d%d", cno, cno+i)
	kout := fmt.Sprintf("K%d%d", cno+i, cno)
	if _, err := AddParameter(m, kin, defaultQInit); err != nil {
		return err
	}
	if _, err := AddParameter(m, kout, defaultQInit); err != nil {
		return err
	}
	if err := odes.AddFlow(central.Name, name, kin); err != nil {
		return err
	}
	return odes.AddFlow(name, central.Name, kout)
}

// RemovePeripheralCompartment drops the highest-numbered peripheral with
// its parameters.
func RemovePeripheralCompartment(m *model.Model) error {
	odes := m.ODESystem()
	if odes == nil {
		return fmt.Errorf("model has no compartment structure")
	}
	periph := odes.PeripheralCompartments()
	if len(periph) == 0 {
		return fmt.Errorf("model has no peripheral compartment")
	}
	last := periph[len(periph)-1]
	i := len(periph)
	if err := odes.RemoveCompartment(last.Name); err != nil {
		return err
	}
	var syms []string
	if clearanceParameterized(odes) {
		syms = []string{fmt.Sprintf("Q%d", i), fmt.Sprintf("V%d", i+1)}
	} else {
		cno := 1
		if _, ok := odes.AbsorptionCompartment(); ok {
			cno = 2
		}
		syms = []string{fmt.Sprintf("K%d%d", cno, cno+i), fmt.Sprintf("K%d%d", cno+i, cno)}
	}
	for _, s := range syms {
		if err := removeStructural(m, s); err != nil {
			return err
		}
	}
	if len(periph) == 1 && clearanceParameterized(odes) {
		renameInStatements(m, map[string]string{"V1": "V"})
		renameFlows(odes, "V1", "V")
	}
	return normalizeNames(m)
}

// SetTransitCompartments places n transit compartments in front of the
// absorption site with rate KTR = (n+1)/MDT.
func SetTransitCompartments(m *model.Model, n int) error {
	odes := m.ODESystem()
	if odes == nil {
		return fmt.Errorf("model has no compartment structure")
	}
	// tear down any existing chain
	chain := odes.TransitChain()
	if len(chain) > 0 {
		dose, _ := odes.DosingCompartment()
		var target model.Compartment
		for _, f := range odes.Flows() {
			if f.From == chain[len(chain)-1] && f.To != "" && !strings.HasPrefix(f.To, "TRANSIT") {
				target, _ = odes.Compartment(f.To)
			}
		}
		for _, name := range chain {
			if err := odes.RemoveCompartment(name); err != nil {
				return err
			}
		}
		if target.Name != "" {
			target.Dose = dose.Name == chain[0] || target.Dose
			if err := odes.SetCompartment(target); err != nil {
				return err
			}
		}
	}
	code := structuralCode(m)
	if n == 0 {
		if code != nil && len(chain) > 0 {
			code.Remove("KTR")
			if err := removeStructural(m, "MDT"); err != nil {
				return err
			}
			return normalizeNames(m)
		}
		return nil
	}

	entry, ok := odes.AbsorptionCompartment()
	if !ok {
		entry, ok = odes.CentralCompartment()
		if !ok {
			return fmt.Errorf("model has no central compartment")
		}
	}
	entry.Dose = false
	if err := odes.SetCompartment(entry); err != nil {
		return err
	}
	if _, found := code.Find("MDT"); !found {
		if _, err := AddParameter(m, "MDT", defaultMDTInit); err != nil {
			return err
		}
	}
	code.Insert(code.Index("MDT")+1, model.Assignment{
		Symbol: "KTR", Expression: fmt.Sprintf("%d/MDT", n+1)})

	prev := ""
	for i := 1; i <= n; i++ {
		name := fmt.Sprintf("TRANSIT%d", i)
		if err := odes.AddCompartment(model.Compartment{Name: name, Dose: i == 1}); err != nil {
			return err
		}
		if prev != "" {
			if err := odes.AddFlow(prev, name, "KTR"); err != nil {
				return err
			}
		}
		prev = name
	}
	return odes.AddFlow(prev, entry.Name, "KTR")
}

// SetFirstOrderElimination restores plain CL/V (or K) elimination.
func SetFirstOrderElimination(m *model.Model) error {
	odes := m.ODESystem()
	if odes == nil {
		return fmt.Errorf("model has no compartment structure")
	}
	central, ok := odes.CentralCompartment()
	if !ok {
		return fmt.Errorf("model has no central compartment")
	}
	rate := "K"
	switch {
	case symbolDefined(m, "CL"):
		rate = "CL/" + centralVolume(odes)
	case symbolDefined(m, "VM") && symbolDefined(m, "V"):
		// coming back from a saturable model: CL = VM/KM at low
		// concentrations
		init := symbolInit(m, "VM", defaultQInit) / symbolInit(m, "KM", defaultVInit)
		if _, err := AddParameter(m, "CL", init); err != nil {
			return err
		}
		rate = "CL/" + centralVolume(odes)
	case clearanceParameterized(odes):
		rate = "CL/" + centralVolume(odes)
	}
	if err := odes.AddFlow(central.Name, "", rate); err != nil {
		return err
	}
	for _, sym := range []string{"VM", "KM"} {
		if err := removeStructural(m, sym); err != nil {
			return err
		}
	}
	return normalizeNames(m)
}

// SetMichaelisMentenElimination replaces elimination with a saturable
// VM/KM form.
func SetMichaelisMentenElimination(m *model.Model) error {
	return setMMElimination(m, false)
}

// SetZeroOrderElimination is Michaelis-Menten with KM fixed: at
// concentrations far above KM the elimination rate is constant.
func SetZeroOrderElimination(m *model.Model) error {
	if err := setMMElimination(m, false); err != nil {
		return err
	}
	km, ok := thetaFor(m, "KM")
	if !ok {
		return fmt.Errorf("no KM parameter after transformation")
	}
	return FixParameters(m, km)
}

// SetCombinedMMFOElimination layers first-order elimination on top of the
// saturable pathway.
func SetCombinedMMFOElimination(m *model.Model) error {
	return setMMElimination(m, true)
}

func setMMElimination(m *model.Model, keepFO bool) error {
	odes := m.ODESystem()
	if odes == nil {
		return fmt.Errorf("model has no compartment structure")
	}
	central, ok := odes.CentralCompartment()
	if !ok {
		return fmt.Errorf("model has no central compartment")
	}
	vol := centralVolume(odes)
	if !symbolDefined(m, "VM") {
		if _, err := AddParameter(m, "VM", symbolInit(m, "CL", defaultQInit)); err != nil {
			return err
		}
	}
	if !symbolDefined(m, "KM") {
		if _, err := AddParameter(m, "KM", defaultVInit); err != nil {
			return err
		}
	}
	cno := compartmentNumber(odes, central.Name)
	mm := fmt.Sprintf("VM/(%s*(KM + A(%d)/%s))", vol, cno, vol)
	rate := mm
	if keepFO {
		rate = fmt.Sprintf("CL/%s + %s", vol, mm)
	} else if err := removeStructural(m, "CL"); err != nil {
		return err
	}
	if err := odes.AddFlow(central.Name, "", rate); err != nil {
		return err
	}
	return normalizeNames(m)
}

// removeStructural drops a structural symbol, its assignment and any
// thetas or etas only it references.
func removeStructural(m *model.Model, symbol string) error {
	code := structuralCode(m)
	if code == nil {
		return nil
	}
	a, ok := code.Find(symbol)
	if !ok {
		return nil
	}
	thetas := thetaRefs(a.Expression)
	etas := etaNumRe.FindAllString(a.Expression, -1)
	code.Remove(symbol)
	for _, th := range thetas {
		if referenced(m, th) {
			continue
		}
		if err := m.Parameters().Remove(th); err != nil {
			return err
		}
	}
	for _, eta := range etas {
		if referenced(m, eta) {
			continue
		}
		removed, err := m.RandomVariables().Remove(eta)
		if err != nil {
			return err
		}
		for _, p := range removed {
			if err := m.Parameters().Remove(p); err != nil {
				return err
			}
		}
	}
	return nil
}

func referenced(m *model.Model, name string) bool {
	for _, code := range []*model.Statements{m.PKStatements(), m.ErrorStatements()} {
		if code == nil {
			continue
		}
		for _, a := range code.All() {
			if symbolRe(name).MatchString(a.Expression) {
				return true
			}
		}
	}
	return false
}

func thetaRefs(expr string) []string {
	return thetaRefRe.FindAllString(expr, -1)
}

func symbolDefined(m *model.Model, symbol string) bool {
	code := structuralCode(m)
	if code == nil {
		return false
	}
	_, ok := code.Find(symbol)
	return ok
}

// thetaFor finds the theta backing a structural symbol's assignment.
func thetaFor(m *model.Model, symbol string) (string, bool) {
	code := structuralCode(m)
	if code == nil {
		return "", false
	}
	a, ok := code.Find(symbol)
	if !ok {
		return "", false
	}
	refs := thetaRefs(a.Expression)
	if len(refs) == 0 {
		return "", false
	}
	return refs[0], true
}

// symbolInit reads the init of the theta backing a symbol, or def.
func symbolInit(m *model.Model, symbol string, def float64) float64 {
	th, ok := thetaFor(m, symbol)
	if !ok {
		return def
	}
	p, ok := m.Parameters().Get(th)
	if !ok {
		return def
	}
	return p.Init
}

func clearanceParameterized(odes *model.CompartmentalSystem) bool {
	for _, f := range odes.Flows() {
		if f.To == "" && strings.Contains(f.Rate, "CL") {
			return true
		}
	}
	return false
}

func centralVolume(odes *model.CompartmentalSystem) string {
	if len(odes.PeripheralCompartments()) > 0 && clearanceParameterized(odes) {
		return "V1"
	}
	return "V"
}

func compartmentNumber(odes *model.CompartmentalSystem, name string) int {
	for i, c := range odes.Compartments() {
		if c.Name == name {
			return i + 1
		}
	}
	return 0
}

func renameFlows(odes *model.CompartmentalSystem, from, to string) {
	for _, f := range odes.Flows() {
		if strings.Contains(f.Rate, from) {
			odes.AddFlow(f.From, f.To, strings.ReplaceAll(f.Rate, from, to))
		}
	}
}
