package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmgo/pharmgo/internal/rundir"
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

func parseBase(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.ParseModel("run1", pheno)
	require.NoError(t, err)
	return m
}

// stubRunner returns canned OFVs by model name without estimating.
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

func TestCopyModelIsDetached(t *testing.T) {
	base := parseBase(t)
	cp, err := CopyModel(base, "candidate1")
	require.NoError(t, err)
	assert.Equal(t, "candidate1", cp.Name())

	require.NoError(t, modeling.RemoveIIV(cp, "ETA(2)"))
	assert.Len(t, cp.RandomVariables().EtaNames(), 1)
	assert.Len(t, base.RandomVariables().EtaNames(), 2)
}

func TestCopyModelKeepsDatasetAnchor(t *testing.T) {
	base := parseBase(t)
	base.SetPath("/data/models/run1.mod")
	cp, err := CopyModel(base, "candidate1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data/models", "pheno.dta"), cp.DatasetPath())
}

func TestFixedParameters(t *testing.T) {
	base := parseBase(t)
	require.NoError(t, modeling.FixParameters(base, "THETA(2)"))
	assert.Equal(t, map[string]bool{"THETA(2)": true}, fixedParameters(base))
}

func TestRunFits(t *testing.T) {
	base := parseBase(t)
	cand, err := CopyModel(base, "candidate1")
	require.NoError(t, err)

	dir, err := rundir.New(t.TempDir(), "test")
	require.NoError(t, err)

	runner := stubRunner{ofvs: map[string]float64{"run1": 100, "candidate1": 95}}
	fits, err := RunFits(context.Background(), runner, dir, 2, nil, base, cand)
	require.NoError(t, err)

	ofv, err := OFVOf(fits["run1"])
	require.NoError(t, err)
	assert.Equal(t, 100.0, ofv)
	ofv, err = OFVOf(fits["candidate1"])
	require.NoError(t, err)
	assert.Equal(t, 95.0, ofv)
}

func TestRunFitsPropagatesErrors(t *testing.T) {
	base := parseBase(t)
	dir, err := rundir.New(t.TempDir(), "test")
	require.NoError(t, err)

	_, err = RunFits(context.Background(), stubRunner{}, dir, 1, nil, base)
	assert.ErrorContains(t, err, "unexpected model")
}

func TestOFVOfFailures(t *testing.T) {
	_, err := OFVOf(&results.ModelfitResults{})
	assert.ErrorContains(t, err, "no objective function value")

	_, err = OFVOf(&results.ModelfitResults{
		Steps: []*results.EstimationResult{{OFV: 12, MinimizationFailure: true}},
	})
	assert.ErrorContains(t, err, "minimization failed")
}

func TestResultsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.yaml")
	in := &Results{
		Tool:      "iivsearch",
		BaseModel: "run1",
		BaseOFV:   Float(586.3),
		BestModel: "candidate2",
		Candidates: []Candidate{
			{Name: "candidate1", Description: "remove ETA(1)", OFV: Float(590.1), DF: 1, PValue: Float(0.051)},
			{Name: "candidate2", Description: "remove ETA(2)", OFV: Float(586.9), DF: 1, PValue: Float(0.43), Selected: true},
		},
	}
	require.NoError(t, WriteResults(path, in))

	out, err := ReadResults(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "boom", firstLine([]byte("boom\ntrace\n")))
	assert.Equal(t, "boom", firstLine([]byte("  boom  ")))
}
