package model

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pharmgo/pharmgo/pkg/parser"
)

// Model is a pharmacometric model bound to its NM-TRAN source. The typed
// components (parameters, random variables, statements, compartments) are
// built once at parse time; UpdateSource pushes them back into the control
// stream before writing.
type Model struct {
	name     string
	path     string // file the model was read from, empty for in-memory models
	stream   *parser.ControlStream
	params   *Parameters
	rvs      *RandomVariables
	pk       *Statements
	errcode  *Statements
	odes     *CompartmentalSystem
	datainfo *DataInfo
	steps    []EstimationStep
}

// ParseModel builds a model from control stream text.
func ParseModel(name, text string) (*Model, error) {
	cs, err := parser.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}
	m := &Model{name: name, stream: cs}

	if err := m.buildParameters(); err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}
	m.buildStatements()
	if err := m.buildODESystem(); err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}
	if err := m.buildDataInfo(); err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}
	if err := m.buildEstimationSteps(); err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}
	return m, nil
}

// ReadModel reads and parses a control stream file. The model name is the
// file stem.
func ReadModel(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m, err := ParseModel(stem, string(raw))
	if err != nil {
		return nil, err
	}
	m.path = path
	return m, nil
}

// WriteModel updates the model source and writes it to path.
func (m *Model) WriteModel(path string) error {
	if err := m.UpdateSource(); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(m.stream.String()), 0o644); err != nil {
		return err
	}
	m.path = path
	return nil
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// SetName renames the model.
func (m *Model) SetName(name string) { m.name = name }

// Path returns the file the model was read from, empty for in-memory
// models.
func (m *Model) Path() string { return m.path }

// SetPath changes where relative dataset paths resolve from.
func (m *Model) SetPath(path string) { m.path = path }

// ControlStream exposes the underlying parsed source.
func (m *Model) ControlStream() *parser.ControlStream { return m.stream }

// Parameters returns the model parameters (thetas, omegas, sigmas).
func (m *Model) Parameters() *Parameters { return m.params }

// SetParameters replaces the parameter collection.
func (m *Model) SetParameters(ps *Parameters) { m.params = ps }

// RandomVariables returns the etas and epsilons.
func (m *Model) RandomVariables() *RandomVariables { return m.rvs }

// SetRandomVariables replaces the random variables.
func (m *Model) SetRandomVariables(rvs *RandomVariables) { m.rvs = rvs }

// PKStatements returns the $PK (or $PRED) code as parsed assignments, nil
// when the model has neither.
func (m *Model) PKStatements() *Statements { return m.pk }

// ErrorStatements returns the $ERROR code, nil when absent.
func (m *Model) ErrorStatements() *Statements { return m.errcode }

// ODESystem returns the compartmental structure, nil for $PRED models.
func (m *Model) ODESystem() *CompartmentalSystem { return m.odes }

// SetODESystem replaces the compartmental structure.
func (m *Model) SetODESystem(odes *CompartmentalSystem) { m.odes = odes }

// DataInfo returns the dataset column metadata.
func (m *Model) DataInfo() *DataInfo { return m.datainfo }

// EstimationSteps returns the estimation steps in execution order.
func (m *Model) EstimationSteps() []EstimationStep {
	return append([]EstimationStep(nil), m.steps...)
}

// SetEstimationSteps replaces the estimation steps.
func (m *Model) SetEstimationSteps(steps []EstimationStep) {
	m.steps = append([]EstimationStep(nil), steps...)
}

// DatasetPath resolves the $DATA path relative to the model file.
func (m *Model) DatasetPath() string {
	p := m.datainfo.Path
	if filepath.IsAbs(p) || m.path == "" {
		return p
	}
	return filepath.Join(filepath.Dir(m.path), p)
}

// String renders the model source as last written. Call UpdateSource first
// to reflect component changes.
func (m *Model) String() string { return m.stream.String() }

func (m *Model) buildParameters() error {
	var params []Parameter

	idx := 1
	for _, rec := range m.stream.Get("THETA") {
		for _, ti := range rec.(*parser.ThetaRecord).Inits() {
			name := fmt.Sprintf("THETA(%d)", idx)
			idx++
			p, err := thetaParameter(name, ti)
			if err != nil {
				return err
			}
			params = append(params, p)
		}
	}

	omegaParams, etas, err := buildRandomEffects(m.stream.Get("OMEGA"), "OMEGA", "ETA", IIV)
	if err != nil {
		return err
	}
	sigmaParams, epsilons, err := buildRandomEffects(m.stream.Get("SIGMA"), "SIGMA", "EPS", RUV)
	if err != nil {
		return err
	}
	params = append(params, omegaParams...)
	params = append(params, sigmaParams...)

	m.params, err = NewParameters(params...)
	if err != nil {
		return err
	}
	m.rvs, err = NewRandomVariables(append(etas, epsilons...)...)
	return err
}

// thetaParameter maps one $THETA declaration to a named parameter. NONMEM
// ignores bounds on fixed thetas, so they are dropped here.
func thetaParameter(name string, ti parser.ThetaInit) (Parameter, error) {
	if ti.Fix {
		return NewParameter(name, ti.Init, WithFix())
	}
	var opts []ParameterOption
	if !math.IsInf(ti.Low, -1) {
		opts = append(opts, WithLower(ti.Low))
	}
	if !math.IsInf(ti.Up, 1) {
		opts = append(opts, WithUpper(ti.Up))
	}
	return NewParameter(name, ti.Init, opts...)
}

// buildRandomEffects walks the $OMEGA (or $SIGMA) records, naming the
// matrix elements OMEGA(i,j) with a global 1-based index and pairing them
// with ETA(n)/EPS(n) random variables.
func buildRandomEffects(recs []parser.Record, matrix, varPrefix string, level VariabilityLevel) ([]Parameter, []Distribution, error) {
	var params []Parameter
	var dists []Distribution

	base := 1 // global index of this record's first eta
	var prevRefs []VarRef
	var prevSize int

	for _, rec := range recs {
		or := rec.(*parser.OmegaRecord)

		if or.Same() {
			if prevRefs == nil {
				return nil, nil, fmt.Errorf("$%s BLOCK SAME without a preceding block", matrix)
			}
			n := or.Block()
			if n == 0 {
				n = prevSize
			}
			if n != prevSize {
				return nil, nil, fmt.Errorf("$%s BLOCK(%d) SAME after block of size %d", matrix, n, prevSize)
			}
			names := varNames(varPrefix, base, n)
			d, err := distributionFor(names, level, prevRefs)
			if err != nil {
				return nil, nil, err
			}
			dists = append(dists, d)
			base += n
			continue
		}

		if n := or.Block(); n > 0 {
			values := or.Values()
			names := varNames(varPrefix, base, n)
			var refs []VarRef
			vi := 0
			for i := 1; i <= n; i++ {
				for j := 1; j <= i; j++ {
					pname := fmt.Sprintf("%s(%d,%d)", matrix, base+i-1, base+j-1)
					p, err := covParameter(pname, values[vi], i == j, or.Fix())
					if err != nil {
						return nil, nil, err
					}
					params = append(params, p)
					refs = append(refs, VarRef{Parameter: pname, Row: i, Col: j})
					vi++
				}
			}
			d, err := distributionFor(names, level, refs)
			if err != nil {
				return nil, nil, err
			}
			dists = append(dists, d)
			prevRefs, prevSize = refs, n
			base += n
			continue
		}

		// diagonal form: one univariate distribution per value
		valueFix := or.ValueFix()
		for vi, v := range or.Values() {
			pname := fmt.Sprintf("%s(%d,%d)", matrix, base, base)
			fix := or.Fix()
			if vi < len(valueFix) && valueFix[vi] {
				fix = true
			}
			p, err := covParameter(pname, v, true, fix)
			if err != nil {
				return nil, nil, err
			}
			params = append(params, p)
			dists = append(dists, NewNormalRef(fmt.Sprintf("%s(%d)", varPrefix, base), level, pname))
			prevRefs = []VarRef{{Parameter: pname, Row: 1, Col: 1}}
			prevSize = 1
			base++
		}
	}
	return params, dists, nil
}

func varNames(prefix string, base, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s(%d)", prefix, base+i)
	}
	return names
}

// covParameter names one covariance matrix element. Diagonal elements are
// variances and get a zero lower bound unless fixed.
func covParameter(name string, init float64, diagonal, fix bool) (Parameter, error) {
	if fix {
		return NewParameter(name, init, WithFix())
	}
	if diagonal {
		return NewParameter(name, init, WithLower(0))
	}
	return NewParameter(name, init)
}

// distributionFor builds a distribution over parameter-held covariance
// elements, univariate for a single name.
func distributionFor(names []string, level VariabilityLevel, refs []VarRef) (Distribution, error) {
	if len(names) == 1 {
		return NewNormalRef(names[0], level, refs[0].Parameter), nil
	}
	return NewJointNormalRef(names, level, refs)
}

func (m *Model) buildStatements() {
	for _, name := range []string{"PK", "PRED"} {
		if rec, ok := m.stream.First(name); ok {
			m.pk = ParseStatements(rec.(*parser.CodeRecord).Lines())
			break
		}
	}
	if rec, ok := m.stream.First("ERROR"); ok {
		m.errcode = ParseStatements(rec.(*parser.CodeRecord).Lines())
	}
}

var advanRe = regexp.MustCompile(`^ADVAN(\d+)$`)

func (m *Model) buildODESystem() error {
	rec, ok := m.stream.First("SUBROUTINES")
	if !ok {
		return nil // $PRED model
	}
	sub := rec.(*parser.SubroutinesRecord)
	match := advanRe.FindStringSubmatch(sub.Advan())
	if match == nil {
		return nil
	}
	switch match[1] {
	case "1":
		m.odes = closedFormSystem(false, 0, sub.Trans())
	case "2":
		m.odes = closedFormSystem(true, 0, sub.Trans())
	case "3":
		m.odes = closedFormSystem(false, 1, sub.Trans())
	case "4":
		m.odes = closedFormSystem(true, 1, sub.Trans())
	case "11":
		m.odes = closedFormSystem(false, 2, sub.Trans())
	case "12":
		m.odes = closedFormSystem(true, 2, sub.Trans())
	default:
		return m.generalSystem()
	}
	return nil
}

// closedFormSystem builds the compartment graph implied by the closed form
// ADVAN subroutines: an optional depot, a central compartment with
// elimination and zero or more peripherals.
func closedFormSystem(depot bool, peripherals int, trans string) *CompartmentalSystem {
	sys := NewCompartmentalSystem()
	central := Compartment{Name: "CENTRAL", Observation: true, Dose: !depot}
	if depot {
		sys.AddCompartment(Compartment{Name: "DEPOT", Dose: true})
	}
	sys.AddCompartment(central)
	if depot {
		sys.AddFlow("DEPOT", "CENTRAL", "KA")
	}

	clearance := trans == "TRANS2" || trans == "TRANS4"
	centralVol := "V"
	if peripherals > 0 && clearance {
		centralVol = "V1"
	}
	if clearance {
		sys.AddFlow("CENTRAL", "", "CL/"+centralVol)
	} else {
		sys.AddFlow("CENTRAL", "", "K")
	}
	cno := 1 // NONMEM number of the central compartment
	if depot {
		cno = 2
	}
	for i := 1; i <= peripherals; i++ {
		name := fmt.Sprintf("PERIPHERAL%d", i)
		sys.AddCompartment(Compartment{Name: name})
		if clearance {
			sys.AddFlow("CENTRAL", name, fmt.Sprintf("Q%d/%s", i, centralVol))
			sys.AddFlow(name, "CENTRAL", fmt.Sprintf("Q%d/V%d", i, i+1))
		} else {
			sys.AddFlow("CENTRAL", name, fmt.Sprintf("K%d%d", cno, cno+i))
			sys.AddFlow(name, "CENTRAL", fmt.Sprintf("K%d%d", cno+i, cno))
		}
	}
	return sys
}

// generalSystem builds the graph from $MODEL for the general subroutines
// (ADVAN5 and up). Transfer rates live in $DES/$PK, so only the topology
// is known here.
func (m *Model) generalSystem() error {
	rec, ok := m.stream.First("MODEL")
	if !ok {
		return nil
	}
	sys := NewCompartmentalSystem()
	comps := rec.(*parser.ModelRecord).Compartments()
	for i, c := range comps {
		err := sys.AddCompartment(Compartment{
			Name:        c.Name,
			Dose:        c.DefDose || (i == 0 && !anyDefDose(comps)),
			Observation: c.DefObs || (i == 0 && !anyDefObs(comps)),
			InitialOff:  c.InitialOff,
		})
		if err != nil {
			return err
		}
	}
	m.odes = sys
	return nil
}

func anyDefDose(comps []parser.CompartmentDef) bool {
	for _, c := range comps {
		if c.DefDose {
			return true
		}
	}
	return false
}

func anyDefObs(comps []parser.CompartmentDef) bool {
	for _, c := range comps {
		if c.DefObs {
			return true
		}
	}
	return false
}

// columnTypeFor guesses the column type from its conventional NM-TRAN name.
func columnTypeFor(name string) ColumnType {
	switch name {
	case "ID":
		return ColID
	case "TIME", "TAD":
		return ColIDV
	case "DV":
		return ColDV
	case "AMT":
		return ColDose
	case "EVID", "MDV", "CMT", "SS", "II", "RATE", "ADDL":
		return ColEvent
	}
	return ColCovariate
}

func (m *Model) buildDataInfo() error {
	var cols []*ColumnInfo
	if rec, ok := m.stream.First("INPUT"); ok {
		for _, ic := range rec.(*parser.InputRecord).Columns() {
			ci, err := NewColumnInfo(ic.Name)
			if err != nil {
				return err
			}
			ci.Drop = ic.Drop
			ci.Synonym = ic.Synonym
			if err := ci.SetType(columnTypeFor(ic.Name)); err != nil {
				return err
			}
			cols = append(cols, ci)
		}
	}
	di, err := NewDataInfo(cols...)
	if err != nil {
		return err
	}
	if rec, ok := m.stream.First("DATA"); ok {
		di.Path = rec.(*parser.DataRecord).Filename()
	}
	m.datainfo = di
	return nil
}

func (m *Model) buildEstimationSteps() error {
	hasCov := len(m.stream.Get("COVARIANCE")) > 0
	recs := m.stream.Get("ESTIMATION")
	for i, rec := range recs {
		er := rec.(*parser.EstimationRecord)
		methodStr := er.Method()
		if methodStr == "" {
			methodStr = "0"
		}
		method, err := NormalizeMethod(methodStr)
		if err != nil {
			return err
		}
		step := EstimationStep{
			Method:      method,
			Interaction: er.Interaction(),
			Laplace:     er.Laplace(),
			MaxEvals:    er.MaxEvals(),
			Posthoc:     er.Posthoc(),
			Cov:         hasCov && i == len(recs)-1,
		}
		m.steps = append(m.steps, step)
	}
	return nil
}

// UpdateSource pushes the typed components back into the control stream so
// that String and WriteModel reflect every transformation. Records whose
// components did not change keep their original text.
func (m *Model) UpdateSource() error {
	if err := m.updateThetas(); err != nil {
		return err
	}
	if err := m.updateRandomEffects("OMEGA", IIV); err != nil {
		return err
	}
	if err := m.updateRandomEffects("SIGMA", RUV); err != nil {
		return err
	}
	m.updateCode()
	m.updateData()
	m.updateEstimation()
	m.updateSubroutines()
	m.updateGeneralModel()
	return nil
}

// updateSubroutines rewrites $SUBROUTINES when the compartment topology
// matches a different classic ADVAN than the one on record.
func (m *Model) updateSubroutines() {
	if m.odes == nil || len(m.odes.Flows()) == 0 {
		// parsed general models carry no flows, their records stay as-is
		return
	}
	advan := m.odes.Advan()
	if advan == "" {
		return
	}
	rec, ok := m.stream.First("SUBROUTINES")
	if !ok {
		return
	}
	sub := rec.(*parser.SubroutinesRecord)
	trans := "TRANS1"
	clearance := false
	for _, f := range m.odes.Flows() {
		if f.To == "" && strings.Contains(f.Rate, "CL") {
			clearance = true
		}
	}
	if clearance {
		trans = "TRANS2"
		if len(m.odes.PeripheralCompartments()) > 0 {
			trans = "TRANS4"
		}
	}
	recTrans := sub.Trans()
	if recTrans == "" {
		recTrans = "TRANS1" // NONMEM's default
	}
	if sub.Advan() != advan || recTrans != trans {
		sub.SetAdvan(advan, trans)
	}
	m.stream.Remove("MODEL")
	m.stream.Remove("DES")
}

// updateGeneralModel emits $MODEL and $DES when the topology no longer
// matches a classic ADVAN. Parsed general models carry no flows (their
// rates live in the original $DES) and are left alone.
func (m *Model) updateGeneralModel() {
	if m.odes == nil || m.odes.Advan() != "" || len(m.odes.Flows()) == 0 {
		return
	}
	rec, ok := m.stream.First("SUBROUTINES")
	if !ok {
		return
	}
	sub := rec.(*parser.SubroutinesRecord)
	if sub.Advan() != "ADVAN13" {
		sub.SetAdvan("ADVAN13", "")
	}
	if sub.Tol() == 0 {
		sub.SetTol(9)
	}

	comps := make([]parser.CompartmentDef, 0, len(m.odes.Compartments()))
	for _, c := range m.odes.Compartments() {
		comps = append(comps, parser.CompartmentDef{
			Name: c.Name, DefDose: c.Dose, DefObs: c.Observation, InitialOff: c.InitialOff})
	}
	if mr, ok := m.stream.First("MODEL"); ok {
		if !compDefsEqual(mr.(*parser.ModelRecord).Compartments(), comps) {
			mr.(*parser.ModelRecord).SetCompartments(comps)
		}
	} else {
		m.stream.InsertAfter("SUBROUTINES", parser.NewModelRecord(comps))
	}

	lines := m.desLines()
	if dr, ok := m.stream.First("DES"); ok {
		cr := dr.(*parser.CodeRecord)
		if !linesEqual(cr.Lines(), lines) {
			cr.SetLines(lines)
		}
	} else {
		m.stream.InsertAfter("PK", parser.NewCodeRecord("DES", lines))
	}
}

func compDefsEqual(a, b []parser.CompartmentDef) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// desLines renders the differential equations of the compartment graph in
// $MODEL numbering.
func (m *Model) desLines() []string {
	comps := m.odes.Compartments()
	num := make(map[string]int, len(comps))
	for i, c := range comps {
		num[c.Name] = i + 1
	}
	lines := make([]string, 0, len(comps))
	for i, c := range comps {
		var terms []string
		for _, f := range m.odes.Flows() {
			switch {
			case f.From == c.Name:
				terms = append(terms, fmt.Sprintf("- (%s)*A(%d)", f.Rate, i+1))
			case f.To == c.Name:
				terms = append(terms, fmt.Sprintf("+ (%s)*A(%d)", f.Rate, num[f.From]))
			}
		}
		rhs := "0"
		if len(terms) > 0 {
			rhs = strings.TrimPrefix(strings.Join(terms, " "), "+ ")
		}
		lines = append(lines, fmt.Sprintf("DADT(%d) = %s", i+1, rhs))
	}
	return lines
}

func (m *Model) updateThetas() error {
	var inits []parser.ThetaInit
	for _, p := range m.params.All() {
		if !strings.HasPrefix(p.Name, "THETA(") {
			continue
		}
		inits = append(inits, parser.ThetaInit{Low: p.Lower, Init: p.Init, Up: p.Upper, Fix: p.Fix})
	}

	recs := m.stream.Get("THETA")
	total := 0
	for _, rec := range recs {
		total += rec.(*parser.ThetaRecord).Len()
	}
	if total == len(inits) {
		// shape unchanged: update in place, keeping untouched records verbatim
		i := 0
		for _, rec := range recs {
			tr := rec.(*parser.ThetaRecord)
			slice := inits[i : i+tr.Len()]
			i += tr.Len()
			if !thetaEqual(tr.Inits(), slice) {
				tr.SetInits(slice)
			}
		}
		return nil
	}
	return replaceRecords(m.stream, "THETA", []parser.Record{parser.NewThetaRecord(inits)})
}

func thetaEqual(a, b []parser.ThetaInit) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// updateRandomEffects rebuilds the $OMEGA or $SIGMA records from the
// distributions of the given level.
func (m *Model) updateRandomEffects(matrix string, level VariabilityLevel) error {
	var dists []Distribution
	for _, d := range m.rvs.Distributions() {
		if d.Level() == level || (level == IIV && d.Level() == IOV) {
			dists = append(dists, d)
		}
	}

	var want []parser.Record
	seen := make(map[string]bool)
	for _, d := range dists {
		rec, err := m.randomEffectRecord(matrix, d, seen)
		if err != nil {
			return err
		}
		want = append(want, rec)
	}

	have := m.stream.Get(matrix)
	if omegaRecordsEqual(have, want) {
		return nil
	}
	return replaceRecords(m.stream, matrix, want)
}

// randomEffectRecord renders one distribution as an $OMEGA/$SIGMA record.
// A distribution whose parameters were already emitted becomes BLOCK SAME.
func (m *Model) randomEffectRecord(matrix string, d Distribution, seen map[string]bool) (parser.Record, error) {
	pnames := d.ParameterNames()
	same := len(pnames) > 0
	for _, pn := range pnames {
		if !seen[pn] {
			same = false
		}
	}
	n := len(d.Names())
	if same {
		return parser.NewOmegaSameRecord(matrix, n), nil
	}
	for _, pn := range pnames {
		seen[pn] = true
	}

	inits := m.params.Inits()
	cov := d.Covariance(inits)
	fix := m.distributionFixed(d)
	if n == 1 {
		var fixes []bool
		if fix {
			fixes = []bool{true}
		}
		return parser.NewOmegaRecord(matrix, []float64{cov.At(0, 0)}, fixes), nil
	}
	var lower []float64
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			lower = append(lower, cov.At(i, j))
		}
	}
	return parser.NewOmegaBlockRecord(matrix, n, lower, fix)
}

// distributionFixed reports whether every parameter of the distribution is
// fixed. Literal-valued distributions count as fixed.
func (m *Model) distributionFixed(d Distribution) bool {
	pnames := d.ParameterNames()
	if len(pnames) == 0 {
		return true
	}
	for _, pn := range pnames {
		p, ok := m.params.Get(pn)
		if !ok || !p.Fix {
			return false
		}
	}
	return true
}

// omegaRecordsEqual compares records by shape and values rather than text,
// so comment and whitespace differences do not force a rewrite.
func omegaRecordsEqual(have, want []parser.Record) bool {
	if len(have) != len(want) {
		return false
	}
	for i := range have {
		h, w := have[i].(*parser.OmegaRecord), want[i].(*parser.OmegaRecord)
		if h.Block() != w.Block() || h.Same() != w.Same() || h.Fix() != w.Fix() {
			return false
		}
		hv, wv := h.Values(), w.Values()
		if len(hv) != len(wv) {
			return false
		}
		for j := range hv {
			if hv[j] != wv[j] {
				return false
			}
		}
		hf, wf := h.ValueFix(), w.ValueFix()
		for j := range hv {
			if j < len(hf) && j < len(wf) && hf[j] != wf[j] {
				return false
			}
		}
	}
	return true
}

// replaceRecords swaps all records of one kind for new ones, keeping the
// position of the first existing record.
func replaceRecords(cs *parser.ControlStream, name string, recs []parser.Record) error {
	idx := -1
	for i, r := range cs.Records {
		if r.Name() == name {
			idx = i
			break
		}
	}
	cs.Remove(name)
	if idx < 0 || idx > len(cs.Records) {
		idx = len(cs.Records)
	}
	tail := append([]parser.Record(nil), cs.Records[idx:]...)
	cs.Records = append(cs.Records[:idx], append(recs, tail...)...)
	return nil
}

func (m *Model) updateCode() {
	if m.pk != nil {
		for _, name := range []string{"PK", "PRED"} {
			if rec, ok := m.stream.First(name); ok {
				cr := rec.(*parser.CodeRecord)
				lines := m.pk.Render()
				if !linesEqual(cr.Lines(), lines) {
					cr.SetLines(lines)
				}
				break
			}
		}
	}
	if m.errcode != nil {
		if rec, ok := m.stream.First("ERROR"); ok {
			cr := rec.(*parser.CodeRecord)
			lines := m.errcode.Render()
			if !linesEqual(cr.Lines(), lines) {
				cr.SetLines(lines)
			}
		}
	}
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (m *Model) updateData() {
	rec, ok := m.stream.First("DATA")
	if !ok {
		return
	}
	dr := rec.(*parser.DataRecord)
	if m.datainfo.Path != dr.Filename() {
		dr.SetFilename(m.datainfo.Path)
	}

	irec, ok := m.stream.First("INPUT")
	if !ok {
		return
	}
	ir := irec.(*parser.InputRecord)
	var cols []parser.InputColumn
	for _, ci := range m.datainfo.Columns() {
		cols = append(cols, parser.InputColumn{Name: ci.Name, Synonym: ci.Synonym, Drop: ci.Drop})
	}
	if !inputColumnsEqual(ir.Columns(), cols) {
		ir.SetColumns(cols)
	}
}

func inputColumnsEqual(a, b []parser.InputColumn) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// nonmemMethod maps a canonical method back to the METHOD= spelling used
// on write.
func nonmemMethod(m EstimationMethod) string {
	switch m {
	case FO:
		return "ZERO"
	case FOCE:
		return "COND"
	}
	return string(m)
}

func (m *Model) updateEstimation() {
	recs := m.stream.Get("ESTIMATION")
	if len(recs) == len(m.steps) {
		for i, rec := range recs {
			er := rec.(*parser.EstimationRecord)
			step := m.steps[i]
			current, err := NormalizeMethod(methodOrDefault(er.Method()))
			if err != nil || current != step.Method || er.Interaction() != step.Interaction {
				er.SetMethod(nonmemMethod(step.Method), step.Interaction)
			}
			if er.MaxEvals() != step.MaxEvals {
				er.SetMaxEvals(step.MaxEvals)
			}
		}
		return
	}
	var want []parser.Record
	for _, step := range m.steps {
		er := parser.NewEstimationRecord(nonmemMethod(step.Method), step.Interaction)
		if step.MaxEvals > 0 {
			er.SetMaxEvals(step.MaxEvals)
		}
		want = append(want, er)
	}
	replaceRecords(m.stream, "ESTIMATION", want)
}

func methodOrDefault(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// BumpModelNumber increments a trailing run number in a model name, so
// run5 becomes run6. Names without a number get a 2 suffix.
func BumpModelNumber(name string) string {
	match := trailingDigits.FindStringSubmatch(name)
	if match == nil {
		return name + "2"
	}
	n := 0
	fmt.Sscanf(match[1], "%d", &n)
	return trailingDigits.ReplaceAllString(name, fmt.Sprintf("%d", n+1))
}
