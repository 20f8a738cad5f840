package iivsearch

import (
	"context"
	"fmt"
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

func parseBase(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.ParseModel("run1", pheno)
	require.NoError(t, err)
	return m
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

func TestRunPicksSupportedRemoval(t *testing.T) {
	// dropping ETA(1) costs only 1 OFV point, dropping ETA(2) costs 8
	runner := stubRunner{ofvs: map[string]float64{
		"run1":       100,
		"candidate1": 101,
		"candidate2": 108,
	}}
	res, err := Run(context.Background(), Options{
		Model:  parseBase(t),
		Runner: runner,
		Parent: t.TempDir(),
	})
	require.NoError(t, err)

	assert.Equal(t, "run1", res.BaseModel)
	assert.Equal(t, 100.0, *res.BaseOFV)
	assert.Equal(t, "candidate1", res.BestModel)
	require.Len(t, res.Candidates, 2)

	c1 := candidateByName(t, res, "candidate1")
	assert.Equal(t, "remove ETA(1)", c1.Description)
	assert.Equal(t, 1, c1.DF)
	assert.InDelta(t, 0.3173, *c1.PValue, 1e-3)
	assert.True(t, c1.Selected)

	c2 := candidateByName(t, res, "candidate2")
	assert.Less(t, *c2.PValue, 0.05)
	assert.False(t, c2.Selected)
}

func TestRunBlockStep(t *testing.T) {
	// both removals degrade the fit, the joint block improves it
	runner := stubRunner{ofvs: map[string]float64{
		"run1":       100,
		"candidate1": 110,
		"candidate2": 109,
		"candidate3": 92,
	}}
	res, err := Run(context.Background(), Options{
		Model:  parseBase(t),
		Runner: runner,
		Parent: t.TempDir(),
	})
	require.NoError(t, err)

	assert.Equal(t, "candidate3", res.BestModel)
	blk := candidateByName(t, res, "candidate3")
	assert.Equal(t, "joint block over ETA(1), ETA(2)", blk.Description)
	assert.Equal(t, 1, blk.DF)
	assert.Less(t, *blk.PValue, 0.01)
	assert.True(t, blk.Selected)
}

func TestRunSkipBlock(t *testing.T) {
	runner := stubRunner{ofvs: map[string]float64{
		"run1":       100,
		"candidate1": 110,
		"candidate2": 109,
	}}
	res, err := Run(context.Background(), Options{
		Model:     parseBase(t),
		Runner:    runner,
		Parent:    t.TempDir(),
		SkipBlock: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "run1", res.BestModel)
	assert.Len(t, res.Candidates, 2)
}

func TestRunComputesBIC(t *testing.T) {
	runner := stubRunner{ofvs: map[string]float64{
		"run1":       100,
		"candidate1": 101,
		"candidate2": 108,
	}}
	res, err := Run(context.Background(), Options{
		Model:        parseBase(t),
		Runner:       runner,
		Parent:       t.TempDir(),
		Observations: 155,
		SkipBlock:    true,
	})
	require.NoError(t, err)
	c1 := candidateByName(t, res, "candidate1")
	require.NotNil(t, c1.BIC)
	assert.Greater(t, *c1.BIC, *c1.OFV)
}

func TestRunWritesResultsFile(t *testing.T) {
	parent := t.TempDir()
	runner := stubRunner{ofvs: map[string]float64{
		"run1":       100,
		"candidate1": 101,
		"candidate2": 108,
	}}
	res, err := Run(context.Background(), Options{
		Model:     parseBase(t),
		Runner:    runner,
		Parent:    parent,
		SkipBlock: true,
	})
	require.NoError(t, err)

	onDisk, err := tools.ReadResults(filepath.Join(parent, "iivsearch_dir1", "results.yaml"))
	require.NoError(t, err)
	assert.Equal(t, res, onDisk)
}

func TestRunValidation(t *testing.T) {
	_, err := Run(context.Background(), Options{Runner: stubRunner{}, Parent: t.TempDir()})
	assert.ErrorContains(t, err, "base model")

	m := parseBase(t)
	require.NoError(t, modeling.RemoveIIV(m, "ETA(2)"))
	_, err = Run(context.Background(), Options{
		Model:  m,
		Runner: stubRunner{},
		Parent: t.TempDir(),
	})
	assert.ErrorContains(t, err, "at least two etas")
}
