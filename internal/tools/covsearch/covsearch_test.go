package covsearch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmgo/pharmgo/internal/rundir"
	"github.com/pharmgo/pharmgo/internal/tools"
	"github.com/pharmgo/pharmgo/pkg/model"
	"github.com/pharmgo/pharmgo/pkg/modeling"
	"github.com/pharmgo/pharmgo/pkg/results"
)

const pheno = `$PROBLEM PHENOBARB SIMPLE MODEL
$DATA pheno.dta IGNORE=@
$INPUT ID TIME AMT WGT APGR DV
$SUBROUTINES ADVAN1 TRANS2
$PK
CL=THETA(1)*EXP(ETA(1))
V=THETA(2)*EXP(ETA(2))
S1=V
$ERROR
Y=F+F*EPS(1)
$THETA (0,0.00469307) ; CL
$THETA (0,1.00916) ; V
$OMEGA 0.0309626
$OMEGA 0.031128
$SIGMA 0.013241
$ESTIMATION METHOD=1 INTERACTION
`

const phenoData = `ID TIME AMT WGT APGR DV
1 0 25 1.4 7 0
1 2 0 1.4 7 17.3
2 0 15 0.8 5 0
2 2 0 0.8 5 9.7
3 0 30 1.1 9 0
3 1.5 0 1.1 9 24.6
`

type stubRunner struct {
	ofvs map[string]float64
}

func (r stubRunner) Fit(ctx context.Context, m *model.Model, dir *rundir.Directory) (*results.ModelfitResults, error) {
	ofv, ok := r.ofvs[m.Name()]
	if !ok {
		return nil, fmt.Errorf("unexpected model %s", m.Name())
	}
	return &results.ModelfitResults{
		Steps: []*results.EstimationResult{{Method: "foce", OFV: ofv}},
	}, nil
}

// readBase puts the model and its dataset on disk so covariate
// references can be computed from the data.
func readBase(t *testing.T) *model.Model {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pheno.dta"), []byte(phenoData), 0o644))
	path := filepath.Join(dir, "run1.mod")
	require.NoError(t, os.WriteFile(path, []byte(pheno), 0o644))
	m, err := model.ReadModel(path)
	require.NoError(t, err)
	return m
}

func testEffects() []Effect {
	return []Effect{
		{Parameter: "CL", Covariate: "WGT", Type: modeling.EffectExponential},
		{Parameter: "V", Covariate: "WGT", Type: modeling.EffectExponential},
	}
}

func candidateByName(t *testing.T, res *tools.Results, name string) tools.Candidate {
	t.Helper()
	for _, c := range res.Candidates {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no candidate %s", name)
	return tools.Candidate{}
}

func TestRunForwardSelectsBestEffect(t *testing.T) {
	// step 1: CL-WGT wins on OFV; step 2: adding V-WGT on top is not
	// significant, so the search stops after one inclusion
	runner := stubRunner{ofvs: map[string]float64{
		"run1":       100,
		"candidate1": 90, // add CL-WGT
		"candidate2": 95, // add V-WGT
		"candidate3": 89, // add V-WGT on top of CL-WGT
	}}
	res, err := Run(context.Background(), Options{
		Model:   readBase(t),
		Effects: testEffects(),
		Runner:  runner,
		Parent:  t.TempDir(),
	})
	require.NoError(t, err)

	assert.Equal(t, "run1", res.BaseModel)
	assert.Equal(t, "candidate1", res.BestModel)
	require.Len(t, res.Candidates, 3)

	c1 := candidateByName(t, res, "candidate1")
	assert.Equal(t, "add CL-WGT-exp", c1.Description)
	assert.Equal(t, 1, c1.DF)
	assert.Less(t, *c1.PValue, 0.05)
	assert.True(t, c1.Selected)

	c3 := candidateByName(t, res, "candidate3")
	assert.GreaterOrEqual(t, *c3.PValue, 0.05)
	assert.False(t, c3.Selected)
}

func TestRunNoSignificantEffect(t *testing.T) {
	runner := stubRunner{ofvs: map[string]float64{
		"run1":       100,
		"candidate1": 99,
		"candidate2": 100,
	}}
	res, err := Run(context.Background(), Options{
		Model:   readBase(t),
		Effects: testEffects(),
		Runner:  runner,
		Parent:  t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, "run1", res.BestModel)
	for _, c := range res.Candidates {
		assert.False(t, c.Selected)
	}
}

func TestRunBackwardElimination(t *testing.T) {
	// forward includes both effects, backward drops CL-WGT since its
	// removal barely moves the fit at the stricter level
	runner := stubRunner{ofvs: map[string]float64{
		"run1":       100,
		"candidate1": 90,  // add CL-WGT
		"candidate2": 95,  // add V-WGT
		"candidate3": 84,  // add V-WGT on top of CL-WGT
		"candidate4": 85,  // remove CL-WGT
		"candidate5": 95,  // remove V-WGT
		"candidate6": 100, // remove V-WGT after CL-WGT is gone
	}}
	res, err := Run(context.Background(), Options{
		Model:    readBase(t),
		Effects:  testEffects(),
		Backward: true,
		Runner:   runner,
		Parent:   t.TempDir(),
	})
	require.NoError(t, err)

	assert.Equal(t, "candidate4", res.BestModel)
	require.Len(t, res.Candidates, 6)

	c4 := candidateByName(t, res, "candidate4")
	assert.Equal(t, "remove CL-WGT-exp", c4.Description)
	assert.GreaterOrEqual(t, *c4.PValue, 0.01)
	assert.True(t, c4.Selected)

	c5 := candidateByName(t, res, "candidate5")
	assert.Less(t, *c5.PValue, 0.01)
	assert.False(t, c5.Selected)
}

func TestRunMaxSteps(t *testing.T) {
	runner := stubRunner{ofvs: map[string]float64{
		"run1":       100,
		"candidate1": 90,
		"candidate2": 85,
	}}
	res, err := Run(context.Background(), Options{
		Model:    readBase(t),
		Effects:  testEffects(),
		MaxSteps: 1,
		Runner:   runner,
		Parent:   t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, "candidate2", res.BestModel)
	assert.Len(t, res.Candidates, 2)
}

func TestRunValidation(t *testing.T) {
	_, err := Run(context.Background(), Options{Runner: stubRunner{}, Effects: testEffects()})
	assert.ErrorContains(t, err, "base model")

	_, err = Run(context.Background(), Options{Model: readBase(t), Effects: testEffects()})
	assert.ErrorContains(t, err, "fit runner")

	_, err = Run(context.Background(), Options{Model: readBase(t), Runner: stubRunner{}})
	assert.ErrorContains(t, err, "candidate effects")
}
