// Package modeling transforms models: parameter handling, error models,
// absorption and distribution changes, random effect surgery and covariate
// effects. Transformations mutate the model in place; WriteModel then
// emits the corresponding NM-TRAN.
package modeling

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pharmgo/pharmgo/pkg/model"
)

var thetaRefRe = regexp.MustCompile(`THETA\(\d+\)`)

// FixParameters marks the named parameters as fixed.
func FixParameters(m *model.Model, names ...string) error {
	return setFix(m, names, true)
}

// UnfixParameters clears the fix flag of the named parameters.
func UnfixParameters(m *model.Model, names ...string) error {
	return setFix(m, names, false)
}

func setFix(m *model.Model, names []string, fix bool) error {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := m.Parameters().Get(n); !ok {
			return fmt.Errorf("no parameter %s", n)
		}
		want[n] = fix
	}
	return m.Parameters().SetFix(want)
}

// AddParameter introduces a new structural parameter: a fresh theta plus
// the assignment symbol = THETA(n) in the PK code. The theta name is
// returned.
func AddParameter(m *model.Model, symbol string, init float64) (string, error) {
	if init <= 0 {
		return "", fmt.Errorf("parameter %s needs a positive initial estimate", symbol)
	}
	name := fmt.Sprintf("THETA(%d)", countThetas(m)+1)
	p, err := model.NewParameter(name, init, model.WithLower(0))
	if err != nil {
		return "", err
	}
	if err := addTheta(m, p); err != nil {
		return "", err
	}
	code := structuralCode(m)
	if code == nil {
		return "", fmt.Errorf("model has no abbreviated code to hold %s", symbol)
	}
	code.Insert(0, model.Assignment{Symbol: symbol, Expression: name})
	return name, nil
}

func countThetas(m *model.Model) int {
	n := 0
	for _, p := range m.Parameters().All() {
		if strings.HasPrefix(p.Name, "THETA(") {
			n++
		}
	}
	return n
}

// addTheta keeps the theta block contiguous: the new theta goes in front
// of the omega and sigma parameters.
func addTheta(m *model.Model, p model.Parameter) error {
	all := m.Parameters().All()
	rebuilt := make([]model.Parameter, 0, len(all)+1)
	inserted := false
	for _, q := range all {
		if !inserted && !strings.HasPrefix(q.Name, "THETA(") {
			rebuilt = append(rebuilt, p)
			inserted = true
		}
		rebuilt = append(rebuilt, q)
	}
	if !inserted {
		rebuilt = append(rebuilt, p)
	}
	ps, err := model.NewParameters(rebuilt...)
	if err != nil {
		return err
	}
	m.SetParameters(ps)
	return nil
}

// structuralCode returns the statements holding the structural parameter
// assignments: $PK when present, otherwise $PRED code.
func structuralCode(m *model.Model) *model.Statements {
	if s := m.PKStatements(); s != nil {
		return s
	}
	return m.ErrorStatements()
}

// observationCode returns the statements holding the Y assignment: $ERROR
// when present, otherwise $PRED code.
func observationCode(m *model.Model) *model.Statements {
	if s := m.ErrorStatements(); s != nil {
		return s
	}
	return m.PKStatements()
}
