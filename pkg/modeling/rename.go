package modeling

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pharmgo/pharmgo/pkg/model"
)

// normalizeNames renumbers every parameter and random variable into the
// canonical NONMEM scheme after a structural edit: thetas THETA(1..n) in
// order, etas ETA(k) with variances OMEGA(i,j) by global position, and
// epsilons EPS(k)/SIGMA(i,j) the same way. Statement references follow.
// Transforms may introduce parameters and variables under temporary names;
// this pass fixes them up.
func normalizeNames(m *model.Model) error {
	mapping := map[string]string{}
	params := m.Parameters().All()
	byName := make(map[string]model.Parameter, len(params))
	for _, p := range params {
		byName[p.Name] = p
	}

	var rebuilt []model.Parameter
	take := func(oldName, newName string) error {
		p, ok := byName[oldName]
		if !ok {
			return fmt.Errorf("distribution references unknown parameter %s", oldName)
		}
		if oldName != newName {
			mapping[oldName] = newName
		}
		p.Name = newName
		rebuilt = append(rebuilt, p)
		return nil
	}

	n := 0
	for _, p := range params {
		if strings.HasPrefix(p.Name, "THETA(") {
			n++
			if err := take(p.Name, fmt.Sprintf("THETA(%d)", n)); err != nil {
				return err
			}
		}
	}

	etas, err := renumberLevel(m, m.RandomVariables().Etas(), "ETA", "OMEGA", mapping, take)
	if err != nil {
		return err
	}
	eps, err := renumberLevel(m, m.RandomVariables().Epsilons(), "EPS", "SIGMA", mapping, take)
	if err != nil {
		return err
	}

	ps, err := model.NewParameters(rebuilt...)
	if err != nil {
		return err
	}
	m.SetParameters(ps)
	rvs, err := model.NewRandomVariables(append(etas, eps...)...)
	if err != nil {
		return err
	}
	m.SetRandomVariables(rvs)
	renameInStatements(m, mapping)
	return nil
}

// renumberLevel rewrites one family of distributions (etas or epsilons)
// with canonical variable and matrix-parameter names.
func renumberLevel(m *model.Model, dists []model.Distribution, varPrefix, matPrefix string,
	mapping map[string]string, take func(oldName, newName string) error) ([]model.Distribution, error) {

	var out []model.Distribution
	base := 0 // global variable index before this distribution
	for _, d := range dists {
		names := d.Names()
		size := len(names)
		newNames := make([]string, size)
		for i := range names {
			newNames[i] = fmt.Sprintf("%s(%d)", varPrefix, base+i+1)
			if names[i] != newNames[i] {
				mapping[names[i]] = newNames[i]
			}
		}
		pnames := d.ParameterNames()
		if len(pnames) == 0 {
			// literal covariance, nothing to renumber but the variables
			nd, err := literalDistribution(d, newNames)
			if err != nil {
				return nil, err
			}
			out = append(out, nd)
			base += size
			continue
		}
		if size == 1 {
			newParam := fmt.Sprintf("%s(%d,%d)", matPrefix, base+1, base+1)
			if err := take(pnames[0], newParam); err != nil {
				return nil, err
			}
			out = append(out, model.NewNormalRef(newNames[0], d.Level(), newParam))
			base++
			continue
		}
		if len(pnames) != size*(size+1)/2 {
			return nil, fmt.Errorf("distribution over %d variables has %d parameters", size, len(pnames))
		}
		var refs []model.VarRef
		idx := 0
		for i := 1; i <= size; i++ {
			for j := 1; j <= i; j++ {
				newParam := fmt.Sprintf("%s(%d,%d)", matPrefix, base+i, base+j)
				if err := take(pnames[idx], newParam); err != nil {
					return nil, err
				}
				refs = append(refs, model.VarRef{Parameter: newParam, Row: i, Col: j})
				idx++
			}
		}
		nd, err := model.NewJointNormalRef(newNames, d.Level(), refs)
		if err != nil {
			return nil, err
		}
		out = append(out, nd)
		base += size
	}
	return out, nil
}

func literalDistribution(d model.Distribution, newNames []string) (model.Distribution, error) {
	cov := d.Covariance(nil)
	if len(newNames) == 1 {
		return model.NewNormal(newNames[0], d.Level(), cov.At(0, 0))
	}
	rows := make([][]float64, len(newNames))
	for i := range rows {
		rows[i] = make([]float64, len(newNames))
		for j := range rows[i] {
			rows[i][j] = cov.At(i, j)
		}
	}
	return model.NewJointNormal(newNames, d.Level(), rows)
}

// renameInStatements applies a symbol mapping to the PK and ERROR code.
// Replacement is two-phase so chains like ETA(2) -> ETA(1) cannot cascade.
func renameInStatements(m *model.Model, mapping map[string]string) {
	if len(mapping) == 0 {
		return
	}
	for _, code := range []*model.Statements{m.PKStatements(), m.ErrorStatements()} {
		if code == nil {
			continue
		}
		for _, a := range code.All() {
			expr := replaceSymbols(a.Expression, mapping)
			sym := a.Symbol
			if to, ok := mapping[sym]; ok {
				sym = to
			}
			if expr != a.Expression || sym != a.Symbol {
				if sym != a.Symbol {
					code.Remove(a.Symbol)
					code.Assign(sym, expr)
				} else {
					code.Assign(sym, expr)
				}
			}
		}
	}
}

func replaceSymbols(expr string, mapping map[string]string) string {
	// phase one: old names to opaque placeholders
	tokens := make([]string, 0, len(mapping))
	i := 0
	for from, to := range mapping {
		ph := fmt.Sprintf("\x00%d\x00", i)
		expr = symbolRe(from).ReplaceAllString(expr, ph)
		tokens = append(tokens, ph, to)
		i++
	}
	return strings.NewReplacer(tokens...).Replace(expr)
}

func symbolRe(sym string) *regexp.Regexp {
	pat := regexp.QuoteMeta(sym)
	if isWordByte(sym[0]) {
		pat = `\b` + pat
	}
	if isWordByte(sym[len(sym)-1]) {
		pat += `\b`
	}
	return regexp.MustCompile(pat)
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}
