package modeling

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pharmgo/pharmgo/pkg/model"
)

// Covariate effect shapes.
const (
	EffectLinear      = "lin"
	EffectExponential = "exp"
	EffectPower       = "pow"
	EffectCategorical = "cat"
)

const defaultCovThetaInit = 0.001

// AddCovariateEffect multiplies (operation "*", the default) or adds
// (operation "+") a covariate effect onto a structural parameter. The
// reference value is the median of the per-individual baselines for
// continuous effects and the most common category for categorical ones.
func AddCovariateEffect(m *model.Model, parameter, covariate, effect, operation string) error {
	switch operation {
	case "", "*":
		operation = "*"
	case "+":
	default:
		return fmt.Errorf("unknown operation %q", operation)
	}
	code := structuralCode(m)
	if code == nil {
		return fmt.Errorf("model has no abbreviated code")
	}
	if _, ok := code.Find(parameter); !ok {
		return fmt.Errorf("no parameter %s in the model code", parameter)
	}
	if _, ok := m.DataInfo().Column(covariate); !ok {
		return fmt.Errorf("no column %s in the dataset", covariate)
	}
	vals, err := covariateBaselines(m, covariate)
	if err != nil {
		return err
	}

	sym := parameter + covariate
	if _, ok := code.Find(sym); ok {
		return fmt.Errorf("parameter %s already has a %s effect", parameter, covariate)
	}

	switch effect {
	case EffectLinear, EffectExponential, EffectPower:
		ref := formatValue(median(vals))
		theta, err := addCovTheta(m, defaultCovThetaInit)
		if err != nil {
			return err
		}
		var expr string
		switch effect {
		case EffectLinear:
			expr = fmt.Sprintf("1 + %s*(%s - %s)", theta, covariate, ref)
		case EffectExponential:
			expr = fmt.Sprintf("EXP(%s*(%s - %s))", theta, covariate, ref)
		case EffectPower:
			expr = fmt.Sprintf("(%s/%s)**%s", covariate, ref, theta)
		}
		insertEffect(code, parameter, sym, expr, operation)
	case EffectCategorical:
		refCat := mostCommon(vals)
		var lines []model.Assignment
		lines = append(lines, model.Assignment{Symbol: sym, Expression: "1"})
		for _, cat := range categories(vals) {
			if cat == refCat {
				continue
			}
			theta, err := addCovTheta(m, defaultCovThetaInit)
			if err != nil {
				return err
			}
			lines = append(lines, model.Assignment{Expression: fmt.Sprintf(
				"IF(%s.EQ.%s) %s = 1 + %s", covariate, formatValue(cat), sym, theta)})
		}
		if len(lines) == 1 {
			return fmt.Errorf("column %s has a single category", covariate)
		}
		at := code.Index(parameter)
		for i, a := range lines {
			code.Insert(at+i, a)
		}
		applyEffect(code, parameter, sym, operation)
	default:
		return fmt.Errorf("unknown covariate effect %q", effect)
	}
	return nil
}

// addCovTheta adds an unbounded effect theta. Covariate coefficients can
// be negative, so the usual lower bound of zero does not apply.
func addCovTheta(m *model.Model, init float64) (string, error) {
	name := fmt.Sprintf("THETA(%d)", countThetas(m)+1)
	p, err := model.NewParameter(name, init)
	if err != nil {
		return "", err
	}
	if err := addTheta(m, p); err != nil {
		return "", err
	}
	return name, nil
}

func insertEffect(code *model.Statements, parameter, sym, expr, operation string) {
	code.Insert(code.Index(parameter), model.Assignment{Symbol: sym, Expression: expr})
	applyEffect(code, parameter, sym, operation)
}

// applyEffect appends PARAMETER = PARAMETER op EFFECT after the last
// assignment of the parameter.
func applyEffect(code *model.Statements, parameter, sym, operation string) {
	code.Insert(code.Index(parameter)+1, model.Assignment{
		Symbol:     parameter,
		Expression: fmt.Sprintf("%s%s%s", parameter, operation, sym),
	})
}

// RemoveCovariateEffect undoes AddCovariateEffect for one parameter and
// covariate pair.
func RemoveCovariateEffect(m *model.Model, parameter, covariate string) error {
	code := structuralCode(m)
	if code == nil {
		return fmt.Errorf("model has no abbreviated code")
	}
	sym := parameter + covariate
	if _, ok := code.Find(sym); !ok {
		return fmt.Errorf("parameter %s has no %s effect", parameter, covariate)
	}
	var thetas []string
	var kept []model.Assignment
	for _, a := range code.All() {
		switch {
		case a.Symbol == sym:
			thetas = append(thetas, thetaRefs(a.Expression)...)
		case a.Symbol == "" && strings.Contains(a.Expression, sym+" ="):
			thetas = append(thetas, thetaRefs(a.Expression)...)
		case a.Symbol == parameter && strings.Contains(a.Expression, sym):
		default:
			kept = append(kept, a)
			continue
		}
	}
	rebuild(code, kept)
	for _, th := range thetas {
		if referenced(m, th) {
			continue
		}
		if err := m.Parameters().Remove(th); err != nil {
			return err
		}
	}
	return normalizeNames(m)
}

// rebuild replaces the whole statement list.
func rebuild(code *model.Statements, lines []model.Assignment) {
	for _, s := range code.Symbols() {
		code.Remove(s)
	}
	code.Remove("")
	for i, a := range lines {
		code.Insert(i, a)
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
