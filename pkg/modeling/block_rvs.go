package modeling

import (
	"fmt"
	"math"

	"github.com/pharmgo/pharmgo/pkg/model"
)

// CreateJointDistribution merges separate etas into one correlated block.
// No names joins every IIV eta. Off-diagonal covariances start at a
// correlation of 0.1: cov = 0.1*sqrt(v1*v2).
func CreateJointDistribution(m *model.Model, names ...string) error {
	if len(names) == 0 {
		for _, d := range m.RandomVariables().Etas() {
			if d.Level() == model.IIV {
				names = append(names, d.Names()...)
			}
		}
	}
	if len(names) < 2 {
		return fmt.Errorf("a joint distribution needs at least two etas")
	}

	inits := m.Parameters().Inits()
	type diag struct {
		param    string
		variance float64
	}
	diags := make([]diag, len(names))
	for i, name := range names {
		d, ok := m.RandomVariables().FindDistribution(name)
		if !ok {
			return fmt.Errorf("no random variable %s", name)
		}
		if len(d.Names()) != 1 {
			return fmt.Errorf("%s is already part of a joint distribution", name)
		}
		if d.Level() != model.IIV {
			return fmt.Errorf("%s is not an IIV eta", name)
		}
		pnames := d.ParameterNames()
		if len(pnames) != 1 {
			return fmt.Errorf("%s has a literal variance", name)
		}
		diags[i] = diag{param: pnames[0], variance: inits[pnames[0]]}
	}

	var refs []model.VarRef
	for i := 1; i <= len(names); i++ {
		for j := 1; j <= i; j++ {
			if i == j {
				refs = append(refs, model.VarRef{Parameter: diags[i-1].param, Row: i, Col: i})
				continue
			}
			name := fmt.Sprintf("OMEGA(BLOCK %d,%d)", i, j)
			init := 0.1 * math.Sqrt(diags[i-1].variance*diags[j-1].variance)
			p, err := model.NewParameter(name, init)
			if err != nil {
				return err
			}
			if err := m.Parameters().Add(p); err != nil {
				return err
			}
			refs = append(refs, model.VarRef{Parameter: name, Row: i, Col: j})
		}
	}
	joint, err := model.NewJointNormalRef(names, model.IIV, refs)
	if err != nil {
		return err
	}
	if err := m.RandomVariables().Replace(names, joint); err != nil {
		return err
	}
	return normalizeNames(m)
}

// SplitJointDistribution breaks joint eta blocks back into independent
// etas, dropping the covariance parameters. Names select which blocks to
// split (any member name selects its block); no names splits them all.
func SplitJointDistribution(m *model.Model, names ...string) error {
	want := map[string]bool{}
	for _, n := range names {
		want[n] = true
	}
	selectAll := len(names) == 0

	var dists []model.Distribution
	drop := map[string]bool{}
	split := false
	for _, d := range m.RandomVariables().Distributions() {
		joint, ok := d.(*model.JointNormalDistribution)
		if !ok || d.Level() == model.RUV {
			dists = append(dists, d)
			continue
		}
		selected := selectAll
		for _, n := range d.Names() {
			if want[n] {
				selected = true
			}
		}
		if !selected {
			dists = append(dists, d)
			continue
		}
		dnames := joint.Names()
		pnames := joint.ParameterNames()
		if len(pnames) != len(dnames)*(len(dnames)+1)/2 {
			return fmt.Errorf("cannot split a literal joint distribution")
		}
		split = true
		for i, n := range dnames {
			// row-major lower triangle: the diagonal of row i sits last
			diagIdx := (i+1)*(i+2)/2 - 1
			dists = append(dists, model.NewNormalRef(n, joint.Level(), pnames[diagIdx]))
			for j := 0; j < i; j++ {
				drop[pnames[diagIdx-i+j]] = true
			}
		}
	}
	if !split && !selectAll {
		return fmt.Errorf("no joint distribution found for %v", names)
	}
	for p := range drop {
		if err := m.Parameters().Remove(p); err != nil {
			return err
		}
	}
	rvs, err := model.NewRandomVariables(dists...)
	if err != nil {
		return err
	}
	m.SetRandomVariables(rvs)
	return normalizeNames(m)
}
