package modeling

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pharmgo/pharmgo/pkg/model"
)

const defaultIIVVariance = 0.09

// AddIIV puts a fresh eta on a structural parameter. kind selects how the
// eta enters: "exp" multiplies by EXP(eta), "prop" by (1 + eta), "add"
// adds the eta. A non-positive init falls back to the default variance.
func AddIIV(m *model.Model, symbol, kind string, init float64) error {
	code := structuralCode(m)
	if code == nil {
		return fmt.Errorf("model has no structural code")
	}
	a, ok := code.Find(symbol)
	if !ok {
		return fmt.Errorf("no assignment for %s", symbol)
	}
	for _, eta := range m.RandomVariables().EtaNames() {
		if code.DependsOn(symbol, eta) {
			return fmt.Errorf("%s already has variability through %s", symbol, eta)
		}
	}
	if init <= 0 {
		init = defaultIIVVariance
	}

	n := len(m.RandomVariables().EtaNames()) + 1
	etaName := fmt.Sprintf("ETA(%d)", n)
	paramName := fmt.Sprintf("OMEGA(%d,%d)", n, n)
	p, err := model.NewParameter(paramName, init, model.WithLower(0))
	if err != nil {
		return err
	}
	if err := m.Parameters().Add(p); err != nil {
		return err
	}
	dists := append(m.RandomVariables().Distributions(),
		model.NewNormalRef(etaName, model.IIV, paramName))
	rvs, err := model.NewRandomVariables(dists...)
	if err != nil {
		return err
	}
	m.SetRandomVariables(rvs)

	var expr string
	switch kind {
	case "exp", "":
		expr = fmt.Sprintf("%s*EXP(%s)", parenthesize(a.Expression), etaName)
	case "prop":
		expr = fmt.Sprintf("%s*(1 + %s)", parenthesize(a.Expression), etaName)
	case "add":
		expr = fmt.Sprintf("%s + %s", a.Expression, etaName)
	default:
		return fmt.Errorf("unknown eta kind %q", kind)
	}
	code.Assign(symbol, expr)
	return normalizeNames(m)
}

// RemoveIIV strips etas from the model. Each name may be an eta
// ("ETA(1)") or a structural parameter symbol, in which case every eta
// its assignment uses goes away. No names removes all etas.
func RemoveIIV(m *model.Model, names ...string) error {
	etas, err := resolveEtas(m, names)
	if err != nil {
		return err
	}
	for _, eta := range etas {
		removed, err := m.RandomVariables().Remove(eta)
		if err != nil {
			return err
		}
		for _, p := range removed {
			if err := m.Parameters().Remove(p); err != nil {
				return err
			}
		}
		stripEta(m, eta)
	}
	return normalizeNames(m)
}

func resolveEtas(m *model.Model, names []string) ([]string, error) {
	if len(names) == 0 {
		return m.RandomVariables().EtaNames(), nil
	}
	code := structuralCode(m)
	var out []string
	seen := map[string]bool{}
	for _, name := range names {
		if _, ok := m.RandomVariables().FindDistribution(name); ok {
			if !seen[name] {
				out = append(out, name)
				seen[name] = true
			}
			continue
		}
		if code == nil {
			return nil, fmt.Errorf("no random variable %s", name)
		}
		if _, ok := code.Find(name); !ok {
			return nil, fmt.Errorf("no random variable or parameter %s", name)
		}
		found := false
		for _, eta := range m.RandomVariables().EtaNames() {
			if code.DependsOn(name, eta) {
				found = true
				if !seen[eta] {
					out = append(out, eta)
					seen[eta] = true
				}
			}
		}
		if !found {
			return nil, fmt.Errorf("%s has no variability to remove", name)
		}
	}
	return out, nil
}

// stripEta removes an eta from every statement, preferring clean pattern
// removal and falling back to substituting zero.
func stripEta(m *model.Model, eta string) {
	patterns := []string{
		"*EXP(" + eta + ")",
		"*(1 + " + eta + ")",
		"*(1+" + eta + ")",
		" + " + eta,
		"+" + eta,
	}
	for _, code := range []*model.Statements{m.PKStatements(), m.ErrorStatements()} {
		if code == nil {
			continue
		}
		for _, a := range code.All() {
			expr := a.Expression
			for _, p := range patterns {
				expr = strings.ReplaceAll(expr, p, "")
			}
			expr = symbolRe(eta).ReplaceAllString(expr, "0")
			expr = strings.TrimSpace(expr)
			if expr != a.Expression {
				code.Assign(a.Symbol, expr)
			}
		}
	}
}

var etaNumRe = regexp.MustCompile(`ETA\((\d+)\)`)

// TransformEtasBoxcox applies a Boxcox transform to the given etas (all
// etas when none are named): each ETA(k) is replaced by ETAB k defined as
// (EXP(ETA(k))**lambda - 1)/lambda with lambda a fresh theta.
func TransformEtasBoxcox(m *model.Model, names ...string) error {
	if len(names) == 0 {
		names = m.RandomVariables().EtaNames()
	}
	code := structuralCode(m)
	if code == nil {
		return fmt.Errorf("model has no structural code")
	}
	for _, eta := range names {
		if _, ok := m.RandomVariables().FindDistribution(eta); !ok {
			return fmt.Errorf("no random variable %s", eta)
		}
		num := etaNumRe.FindStringSubmatch(eta)
		if num == nil {
			return fmt.Errorf("cannot transform %s", eta)
		}
		lambda := fmt.Sprintf("THETA(%d)", countThetas(m)+1)
		p, err := model.NewParameter(lambda, 0.01, model.WithLower(-3), model.WithUpper(3))
		if err != nil {
			return err
		}
		if err := addTheta(m, p); err != nil {
			return err
		}
		etab := "ETAB" + num[1]
		mapping := map[string]string{eta: etab}
		for _, a := range code.All() {
			if expr := replaceSymbols(a.Expression, mapping); expr != a.Expression {
				code.Assign(a.Symbol, expr)
			}
		}
		code.Insert(0, model.Assignment{
			Symbol:     etab,
			Expression: fmt.Sprintf("(EXP(%s)**%s - 1)/%s", eta, lambda, lambda),
		})
	}
	return nil
}

func parenthesize(expr string) string {
	if strings.ContainsAny(expr, "+- ") {
		return "(" + expr + ")"
	}
	return expr
}
