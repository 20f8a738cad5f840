package modeling

import (
	"fmt"

	"github.com/pharmgo/pharmgo/pkg/model"
)

// Default variance inits for fresh residual error parameters.
const (
	defaultPropVariance = 0.09
	defaultAddVariance  = 1.0
)

// SetAdditiveErrorModel replaces the residual error with Y = F + EPS(1).
func SetAdditiveErrorModel(m *model.Model) error {
	return setErrorModel(m, []float64{defaultAddVariance}, "F + EPS(1)")
}

// SetProportionalErrorModel replaces the residual error with
// Y = F + F*EPS(1).
func SetProportionalErrorModel(m *model.Model) error {
	return setErrorModel(m, []float64{defaultPropVariance}, "F + F*EPS(1)")
}

// SetCombinedErrorModel replaces the residual error with a proportional
// plus additive term.
func SetCombinedErrorModel(m *model.Model) error {
	return setErrorModel(m, []float64{defaultPropVariance, defaultAddVariance},
		"F + F*EPS(1) + EPS(2)")
}

// RemoveErrorModel drops the residual error entirely: Y = F and no
// epsilons. Mostly useful before simulation-only runs.
func RemoveErrorModel(m *model.Model) error {
	return setErrorModel(m, nil, "F")
}

// setErrorModel swaps every epsilon for fresh ones with the given variance
// inits and rewrites the observation.
func setErrorModel(m *model.Model, variances []float64, yExpr string) error {
	code := observationCode(m)
	if code == nil {
		return fmt.Errorf("model has no error code")
	}

	// drop the old epsilons and their sigmas
	drop := map[string]bool{}
	var dists []model.Distribution
	for _, d := range m.RandomVariables().Distributions() {
		if d.Level() == model.RUV {
			for _, p := range d.ParameterNames() {
				drop[p] = true
			}
			continue
		}
		dists = append(dists, d)
	}
	var kept []model.Parameter
	for _, p := range m.Parameters().All() {
		if !drop[p.Name] {
			kept = append(kept, p)
		}
	}

	for i, v := range variances {
		name := fmt.Sprintf("SIGMA(%d,%d)", i+1, i+1)
		p, err := model.NewParameter(name, v, model.WithLower(0))
		if err != nil {
			return err
		}
		kept = append(kept, p)
		dists = append(dists, model.NewNormalRef(fmt.Sprintf("EPS(%d)", i+1), model.RUV, name))
	}

	ps, err := model.NewParameters(kept...)
	if err != nil {
		return err
	}
	m.SetParameters(ps)
	rvs, err := model.NewRandomVariables(dists...)
	if err != nil {
		return err
	}
	m.SetRandomVariables(rvs)
	code.Assign("Y", yExpr)
	return normalizeNames(m)
}
