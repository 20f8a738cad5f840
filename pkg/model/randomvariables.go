package model

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// VariabilityLevel classifies a random effect.
type VariabilityLevel string

const (
	IIV VariabilityLevel = "IIV" // inter-individual (etas from $OMEGA)
	IOV VariabilityLevel = "IOV" // inter-occasion
	RUV VariabilityLevel = "RUV" // residual (epsilons from $SIGMA)
)

// VarRef ties a variance or covariance element to the model parameter that
// holds its value, e.g. OMEGA(2,1).
type VarRef struct {
	Parameter string
	Row, Col  int // 1-based position within the distribution
}

// Distribution is a normal or joint normal distribution over one or more
// named random variables.
type Distribution interface {
	Names() []string
	Level() VariabilityLevel
	ParameterNames() []string
	// Covariance returns the (symmetric) covariance matrix with parameter
	// references resolved through inits.
	Covariance(inits map[string]float64) *mat.SymDense
	fmt.Stringer
}

// NormalDistribution is a univariate N(0, variance) random variable.
// Variance refers to a parameter name (the usual case) while literal
// variances are carried in Value with an empty reference.
type NormalDistribution struct {
	name     string
	level    VariabilityLevel
	variance VarRef
	value    float64 // used when variance.Parameter == ""
}

// NewNormal creates a univariate distribution with a literal variance.
func NewNormal(name string, level VariabilityLevel, variance float64) (*NormalDistribution, error) {
	if variance < 0 {
		return nil, fmt.Errorf("distribution %s: negative variance %g", name, variance)
	}
	return &NormalDistribution{name: name, level: level, value: variance}, nil
}

// NewNormalRef creates a univariate distribution whose variance is held by
// a model parameter.
func NewNormalRef(name string, level VariabilityLevel, parameter string) *NormalDistribution {
	return &NormalDistribution{
		name:     name,
		level:    level,
		variance: VarRef{Parameter: parameter, Row: 1, Col: 1},
	}
}

// Names implements Distribution.
func (d *NormalDistribution) Names() []string { return []string{d.name} }

// Level implements Distribution.
func (d *NormalDistribution) Level() VariabilityLevel { return d.level }

// ParameterNames implements Distribution.
func (d *NormalDistribution) ParameterNames() []string {
	if d.variance.Parameter == "" {
		return nil
	}
	return []string{d.variance.Parameter}
}

// Covariance implements Distribution.
func (d *NormalDistribution) Covariance(inits map[string]float64) *mat.SymDense {
	v := d.value
	if d.variance.Parameter != "" {
		v = inits[d.variance.Parameter]
	}
	s := mat.NewSymDense(1, nil)
	s.SetSym(0, 0, v)
	return s
}

// Rename returns a copy with a new variable name.
func (d *NormalDistribution) Rename(name string) *NormalDistribution {
	cp := *d
	cp.name = name
	return &cp
}

func (d *NormalDistribution) String() string {
	if d.variance.Parameter != "" {
		return fmt.Sprintf("%s ~ N(0, %s)", d.name, d.variance.Parameter)
	}
	return fmt.Sprintf("%s ~ N(0, %g)", d.name, d.value)
}

// JointNormalDistribution is a multivariate normal over two or more
// correlated random variables, as declared by $OMEGA BLOCK(n).
type JointNormalDistribution struct {
	names []string
	level VariabilityLevel
	refs  []VarRef      // parameter-held elements
	cov   *mat.SymDense // literal covariance when refs is empty
}

// NewJointNormal creates a joint distribution with a literal covariance
// matrix given as its lower triangle rows. The matrix must be symmetric
// positive semidefinite with strictly positive diagonal.
func NewJointNormal(names []string, level VariabilityLevel, cov [][]float64) (*JointNormalDistribution, error) {
	n := len(names)
	if n < 2 {
		return nil, fmt.Errorf("joint distribution needs at least two variables")
	}
	if len(cov) != n {
		return nil, fmt.Errorf("joint distribution over %d variables given %d covariance rows", n, len(cov))
	}
	s := mat.NewSymDense(n, nil)
	for i := range cov {
		if len(cov[i]) != n {
			return nil, fmt.Errorf("covariance row %d has %d entries, want %d", i, len(cov[i]), n)
		}
		for j := 0; j <= i; j++ {
			if cov[i][j] != cov[j][i] {
				return nil, fmt.Errorf("covariance not symmetric at (%d,%d)", i, j)
			}
			s.SetSym(i, j, cov[i][j])
		}
	}
	if err := checkValidCovariance(s); err != nil {
		return nil, err
	}
	return &JointNormalDistribution{names: append([]string(nil), names...), level: level, cov: s}, nil
}

// NewJointNormalRef creates a joint distribution whose covariance elements
// are held by model parameters (for example OMEGA(1,1), OMEGA(2,1),
// OMEGA(2,2) for a 2x2 block).
func NewJointNormalRef(names []string, level VariabilityLevel, refs []VarRef) (*JointNormalDistribution, error) {
	n := len(names)
	if n < 2 {
		return nil, fmt.Errorf("joint distribution needs at least two variables")
	}
	if len(refs) != n*(n+1)/2 {
		return nil, fmt.Errorf("joint distribution over %d variables needs %d covariance refs, got %d",
			n, n*(n+1)/2, len(refs))
	}
	return &JointNormalDistribution{names: append([]string(nil), names...), level: level, refs: refs}, nil
}

func checkValidCovariance(s *mat.SymDense) error {
	n := s.SymmetricDim()
	for i := 0; i < n; i++ {
		if s.At(i, i) < 0 {
			return fmt.Errorf("negative variance %g on covariance diagonal", s.At(i, i))
		}
	}
	var ch mat.Cholesky
	if !ch.Factorize(s) {
		return fmt.Errorf("covariance matrix is not positive definite")
	}
	return nil
}

// Names implements Distribution.
func (d *JointNormalDistribution) Names() []string {
	return append([]string(nil), d.names...)
}

// Level implements Distribution.
func (d *JointNormalDistribution) Level() VariabilityLevel { return d.level }

// ParameterNames implements Distribution.
func (d *JointNormalDistribution) ParameterNames() []string {
	out := make([]string, 0, len(d.refs))
	for _, r := range d.refs {
		if r.Parameter != "" {
			out = append(out, r.Parameter)
		}
	}
	return out
}

// Covariance implements Distribution.
func (d *JointNormalDistribution) Covariance(inits map[string]float64) *mat.SymDense {
	n := len(d.names)
	if d.cov != nil {
		s := mat.NewSymDense(n, nil)
		s.CopySym(d.cov)
		return s
	}
	s := mat.NewSymDense(n, nil)
	for _, r := range d.refs {
		s.SetSym(r.Row-1, r.Col-1, inits[r.Parameter])
	}
	return s
}

// Rename returns a copy with variable oldName replaced by newName.
func (d *JointNormalDistribution) Rename(oldName, newName string) *JointNormalDistribution {
	cp := *d
	cp.names = append([]string(nil), d.names...)
	for i, n := range cp.names {
		if n == oldName {
			cp.names[i] = newName
		}
	}
	return &cp
}

func (d *JointNormalDistribution) String() string {
	return fmt.Sprintf("[%s] ~ N(0, %dx%d)", strings.Join(d.names, ", "), len(d.names), len(d.names))
}

// RandomVariables is the ordered set of all random effects in a model.
type RandomVariables struct {
	dists []Distribution
}

// NewRandomVariables builds the collection, rejecting duplicate variable
// names across distributions.
func NewRandomVariables(dists ...Distribution) (*RandomVariables, error) {
	seen := make(map[string]bool)
	for _, d := range dists {
		for _, name := range d.Names() {
			if seen[name] {
				return nil, fmt.Errorf("duplicate random variable %s", name)
			}
			seen[name] = true
		}
	}
	return &RandomVariables{dists: append([]Distribution(nil), dists...)}, nil
}

// Len returns the number of distributions.
func (rvs *RandomVariables) Len() int { return len(rvs.dists) }

// Distributions returns the distributions in declaration order.
func (rvs *RandomVariables) Distributions() []Distribution {
	return append([]Distribution(nil), rvs.dists...)
}

// Names returns all variable names in declaration order.
func (rvs *RandomVariables) Names() []string {
	var out []string
	for _, d := range rvs.dists {
		out = append(out, d.Names()...)
	}
	return out
}

// Etas returns the distributions at the IIV and IOV levels.
func (rvs *RandomVariables) Etas() []Distribution {
	var out []Distribution
	for _, d := range rvs.dists {
		if d.Level() == IIV || d.Level() == IOV {
			out = append(out, d)
		}
	}
	return out
}

// Epsilons returns the residual-level distributions.
func (rvs *RandomVariables) Epsilons() []Distribution {
	var out []Distribution
	for _, d := range rvs.dists {
		if d.Level() == RUV {
			out = append(out, d)
		}
	}
	return out
}

// EtaNames returns the names of all etas.
func (rvs *RandomVariables) EtaNames() []string {
	var out []string
	for _, d := range rvs.Etas() {
		out = append(out, d.Names()...)
	}
	return out
}

// ParameterNames returns the names of all parameters referenced as
// variances or covariances, without duplicates, in declaration order.
func (rvs *RandomVariables) ParameterNames() []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range rvs.dists {
		for _, p := range d.ParameterNames() {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// FindDistribution returns the distribution containing the named variable.
func (rvs *RandomVariables) FindDistribution(name string) (Distribution, bool) {
	for _, d := range rvs.dists {
		for _, n := range d.Names() {
			if n == name {
				return d, true
			}
		}
	}
	return nil, false
}

// Remove drops the named variable. Removing one member of a joint
// distribution shrinks it; a joint distribution reduced to a single
// variable becomes univariate. The parameters referenced only by removed
// elements are returned so callers can drop them from the model.
func (rvs *RandomVariables) Remove(name string) ([]string, error) {
	for i, d := range rvs.dists {
		switch dist := d.(type) {
		case *NormalDistribution:
			if dist.name == name {
				rvs.dists = append(rvs.dists[:i], rvs.dists[i+1:]...)
				return dist.ParameterNames(), nil
			}
		case *JointNormalDistribution:
			idx := -1
			for j, n := range dist.names {
				if n == name {
					idx = j
					break
				}
			}
			if idx < 0 {
				continue
			}
			kept, removed := shrinkJoint(dist, idx)
			rvs.dists[i] = kept
			return removed, nil
		}
	}
	return nil, fmt.Errorf("unknown random variable %s", name)
}

// shrinkJoint removes position idx (0-based) from a joint distribution and
// returns the reduced distribution plus the parameter names that vanished.
func shrinkJoint(d *JointNormalDistribution, idx int) (Distribution, []string) {
	var removed []string
	var keptRefs []VarRef
	for _, r := range d.refs {
		if r.Row-1 == idx || r.Col-1 == idx {
			removed = append(removed, r.Parameter)
			continue
		}
		nr := r
		if nr.Row-1 > idx {
			nr.Row--
		}
		if nr.Col-1 > idx {
			nr.Col--
		}
		keptRefs = append(keptRefs, nr)
	}
	names := make([]string, 0, len(d.names)-1)
	for j, n := range d.names {
		if j != idx {
			names = append(names, n)
		}
	}
	if len(names) == 1 {
		nd := &NormalDistribution{name: names[0], level: d.level}
		if len(keptRefs) == 1 {
			nd.variance = VarRef{Parameter: keptRefs[0].Parameter, Row: 1, Col: 1}
		}
		return nd, removed
	}
	return &JointNormalDistribution{names: names, level: d.level, refs: keptRefs}, removed
}

// CovarianceMatrix assembles the block-diagonal covariance over all etas.
func (rvs *RandomVariables) CovarianceMatrix(inits map[string]float64) *mat.SymDense {
	etas := rvs.Etas()
	n := 0
	for _, d := range etas {
		n += len(d.Names())
	}
	if n == 0 {
		return mat.NewSymDense(0, nil)
	}
	full := mat.NewSymDense(n, nil)
	off := 0
	for _, d := range etas {
		c := d.Covariance(inits)
		k := c.SymmetricDim()
		for i := 0; i < k; i++ {
			for j := 0; j <= i; j++ {
				full.SetSym(off+i, off+j, c.At(i, j))
			}
		}
		off += k
	}
	return full
}

// Replace substitutes the distribution containing any of the given names
// with repl. All named variables must belong to distributions being
// replaced; their previous distributions are removed.
func (rvs *RandomVariables) Replace(names []string, repl Distribution) error {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var kept []Distribution
	inserted := false
	for _, d := range rvs.dists {
		match := false
		for _, n := range d.Names() {
			if want[n] {
				match = true
				break
			}
		}
		if !match {
			kept = append(kept, d)
			continue
		}
		if !inserted {
			kept = append(kept, repl)
			inserted = true
		}
	}
	if !inserted {
		return fmt.Errorf("no distribution found for %v", names)
	}
	rvs.dists = kept
	return nil
}
