// Package results reads the output files NONMEM writes next to a control
// stream (run1.mod -> run1.ext, run1.lst, run1.cov, ...) into structured
// estimation results. Missing or broken files degrade to partial results
// with the problem noted in the log, never to a panic.
package results

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/pharmgo/pharmgo/pkg/model"
)

// EstimationResult holds one estimation step's results.
type EstimationResult struct {
	Method              string
	OFV                 float64
	Trajectory          []OFVPoint
	ParameterEstimates  map[string]float64 // model names, fixed filtered out
	StandardErrors      map[string]float64
	CovarianceMatrix    *NamedMatrix
	CorrelationMatrix   *NamedMatrix
	InformationMatrix   *NamedMatrix
	Termination         *TerminationStatus
	IndividualOFVs      map[int]float64
	IndividualEtas      map[int][]float64
	IndividualEtaCovs   map[int]*mat.SymDense
	Residuals           []ObsRecord
	Predictions         []ObsRecord
	CovarianceStepOK    bool
	EstimationRuntime   float64
	MinimizationFailure bool
}

// ModelfitResults is everything read for one model run. Steps are chained
// in estimation order; Final points at the last one.
type ModelfitResults struct {
	Steps        []*EstimationResult
	TotalRuntime time.Duration
	Log          []string // per-file problems found while reading
}

// Final returns the last estimation step's results, nil when nothing was
// readable.
func (r *ModelfitResults) Final() *EstimationResult {
	if len(r.Steps) == 0 {
		return nil
	}
	return r.Steps[len(r.Steps)-1]
}

// OFV returns the final objective function value.
func (r *ModelfitResults) OFV() (float64, bool) {
	f := r.Final()
	if f == nil {
		return 0, false
	}
	return f.OFV, true
}

// Read gathers results for a model from the files next to its control
// stream. Every output file is optional; what cannot be read is skipped
// and noted in the log.
func Read(m *model.Model) (*ModelfitResults, error) {
	if m.Path() == "" {
		return nil, fmt.Errorf("model %s has no path", m.Name())
	}
	return ReadPath(m.Path(), fixedNames(m))
}

// ReadPath gathers results given the control stream path directly. fixed
// names parameters to drop from the estimate maps; nil keeps everything.
func ReadPath(modelPath string, fixed map[string]bool) (*ModelfitResults, error) {
	stem := strings.TrimSuffix(modelPath, filepath.Ext(modelPath))
	res := &ModelfitResults{}

	extSteps, err := readExt(stem + ".ext")
	if err != nil {
		res.Log = append(res.Log, err.Error())
	}
	for _, s := range extSteps {
		step := &EstimationResult{
			Method:     s.Method,
			OFV:        s.FinalOFV,
			Trajectory: s.Trajectory,
		}
		step.ParameterEstimates = translate(s.Estimates, s.Fixed, fixed)
		if s.StandardErrors != nil {
			step.StandardErrors = translate(s.StandardErrors, s.Fixed, fixed)
		}
		res.Steps = append(res.Steps, step)
	}

	lst, err := readLst(stem + ".lst")
	if err != nil {
		res.Log = append(res.Log, err.Error())
	} else if lst != nil {
		res.TotalRuntime = lst.TotalRuntime
		for i := range res.Steps {
			if i < len(lst.Steps) {
				res.Steps[i].Termination = &lst.Steps[i]
				res.Steps[i].EstimationRuntime = lst.Steps[i].EstimationRuntime
				res.Steps[i].MinimizationFailure = !lst.Steps[i].MinimizationSuccessful
			}
		}
		if f := res.Final(); f != nil {
			f.CovarianceStepOK = lst.CovarianceStepOK
		}
	}

	if f := res.Final(); f != nil {
		readMatrices(stem, f, res)
		readPhi(stem+".phi", f, res)
	}
	return res, nil
}

// ReadTableOutputs attaches the residuals and predictions of a $TABLE
// output file to the final step.
func (r *ModelfitResults) ReadTableOutputs(path string, opts TableOutputOptions) {
	f := r.Final()
	if f == nil {
		return
	}
	t, err := ParseTableOutputFile(path, opts)
	if err != nil {
		r.Log = append(r.Log, fmt.Sprintf("%s: %v", path, err))
		return
	}
	if recs, err := Residuals(t); err == nil {
		f.Residuals = recs
	} else {
		r.Log = append(r.Log, fmt.Sprintf("%s: %v", path, err))
	}
	if recs, err := Predictions(t); err == nil {
		f.Predictions = recs
	} else {
		r.Log = append(r.Log, fmt.Sprintf("%s: %v", path, err))
	}
}

func readExt(path string) ([]*ExtStep, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: missing", filepath.Base(path))
	}
	steps, err := ParseExtFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", filepath.Base(path), err)
	}
	return steps, nil
}

func readLst(path string) (*LstResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: missing", filepath.Base(path))
	}
	lst, err := ParseLstFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", filepath.Base(path), err)
	}
	return lst, nil
}

func readMatrices(stem string, f *EstimationResult, res *ModelfitResults) {
	u := &uncertainty{}
	var names []string
	load := func(ext string, force bool) (*NamedMatrix, []float64) {
		path := stem + ext
		if _, err := os.Stat(path); err != nil {
			return nil, nil
		}
		tables, err := ParseTableFile(path)
		if err != nil || len(tables) == 0 {
			res.Log = append(res.Log, fmt.Sprintf("%s: broken table", filepath.Base(path)))
			return nil, nil
		}
		nm, diag, err := matrixFromTable(tables[len(tables)-1], force)
		if err != nil {
			res.Log = append(res.Log, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			return nil, nil
		}
		names = nm.Names
		return nm, diag
	}
	cov, _ := load(".cov", false)
	cor, corDiag := load(".cor", true)
	info, _ := load(".coi", false)
	if cov != nil {
		u.cov = cov.Matrix
	}
	if cor != nil {
		u.cor = cor.Matrix
		u.se = corDiag
	}
	if info != nil {
		u.info = info.Matrix
	}
	u.complete()
	if names == nil {
		return
	}
	if u.cov != nil {
		f.CovarianceMatrix = &NamedMatrix{Names: names, Matrix: u.cov}
	}
	if u.cor != nil {
		f.CorrelationMatrix = &NamedMatrix{Names: names, Matrix: u.cor}
	}
	if u.info != nil {
		f.InformationMatrix = &NamedMatrix{Names: names, Matrix: u.info}
	}
	if f.StandardErrors == nil && u.se != nil {
		f.StandardErrors = make(map[string]float64, len(names))
		for i, n := range names {
			f.StandardErrors[n] = u.se[i]
		}
	}
}

func readPhi(path string, f *EstimationResult, res *ModelfitResults) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	steps, err := ParsePhiFile(path)
	if err != nil || len(steps) == 0 {
		res.Log = append(res.Log, fmt.Sprintf("%s: %v", filepath.Base(path), err))
		return
	}
	last := steps[len(steps)-1]
	f.IndividualOFVs = make(map[int]float64, len(last.Individuals))
	f.IndividualEtas = make(map[int][]float64, len(last.Individuals))
	f.IndividualEtaCovs = make(map[int]*mat.SymDense, len(last.Individuals))
	for _, ind := range last.Individuals {
		f.IndividualOFVs[ind.ID] = ind.OFV
		f.IndividualEtas[ind.ID] = ind.Etas
		if ind.EtaCov != nil {
			f.IndividualEtaCovs[ind.ID] = ind.EtaCov
		}
	}
}

// translate maps NONMEM .ext names to model names and drops fixed
// parameters, both the ones the .ext marks and the ones the model knows.
func translate(values map[string]float64, extFixed, modelFixed map[string]bool) map[string]float64 {
	out := make(map[string]float64, len(values))
	for name, v := range values {
		if extFixed[name] {
			continue
		}
		t := TranslateName(name)
		if modelFixed[t] {
			continue
		}
		out[t] = v
	}
	return out
}

func fixedNames(m *model.Model) map[string]bool {
	fixed := make(map[string]bool)
	for _, p := range m.Parameters().All() {
		if p.Fix {
			fixed[p.Name] = true
		}
	}
	return fixed
}
