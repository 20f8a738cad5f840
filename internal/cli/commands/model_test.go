package commands

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmgo/pharmgo/internal/cli/testutil"
	"github.com/pharmgo/pharmgo/pkg/model"
)

func TestBumpModelPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"run1.mod", "run2.mod"},
		{"run9.mod", "run10.mod"},
		{"models/pheno3.ctl", filepath.Join("models", "pheno4.ctl")},
		{"base.mod", "base_2.mod"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bumpModelPath(tt.in), tt.in)
	}
}

func TestModelPrintText(t *testing.T) {
	m, err := model.ParseModel("pheno", pheno)
	require.NoError(t, err)

	tr := testutil.NewTestRendererText()
	require.NoError(t, printModel(tr.Renderer, m, false, false, true))

	out := tr.Output()
	assert.Contains(t, out, "pheno")
	assert.Contains(t, out, "THETA(1)")
	assert.Contains(t, out, "0.00469307")
	assert.Contains(t, out, "ETA(1)")
	assert.Contains(t, out, "pheno.dta")
	assert.Contains(t, out, "WGT")
}

func TestModelPrintJSON(t *testing.T) {
	m, err := model.ParseModel("pheno", pheno)
	require.NoError(t, err)

	tr := testutil.NewTestRendererJSON()
	require.NoError(t, printModel(tr.Renderer, m, false, false, true))

	var s modelSummary
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &s))
	assert.Equal(t, "pheno", s.Name)
	assert.Len(t, s.Parameters, 5)
	assert.Equal(t, []string{"ETA(1)", "ETA(2)"}, s.Etas)
	assert.Equal(t, "pheno.dta", s.DataPath)
}

func TestModelTransformWritesBumpedFile(t *testing.T) {
	path := writeFixture(t)

	out, err := execute(t, newModelTransformCommand(), path, "--op", "remove-iiv=ETA(2)")
	require.NoError(t, err)
	dest := filepath.Join(filepath.Dir(path), "run2.mod")
	assert.Contains(t, out, dest)

	m, err := model.ReadModel(dest)
	require.NoError(t, err)
	assert.Len(t, m.RandomVariables().EtaNames(), 1)
}

func TestModelTransformChain(t *testing.T) {
	path := writeFixture(t)
	dest := filepath.Join(filepath.Dir(path), "out.mod")

	_, err := execute(t, newModelTransformCommand(), path,
		"--op", "absorption-fo", "--op", "peripheral", "-o", dest)
	require.NoError(t, err)

	m, err := model.ReadModel(dest)
	require.NoError(t, err)
	assert.Len(t, m.ODESystem().Compartments(), 3)
}

func TestModelTransformRefusesOverwrite(t *testing.T) {
	path := writeFixture(t)

	_, err := execute(t, newModelTransformCommand(), path, "--op", "lagtime", "-o", path)
	var exists *ExistsError
	require.ErrorAs(t, err, &exists)

	_, err = execute(t, newModelTransformCommand(), path, "--op", "lagtime", "-o", path, "--force")
	require.NoError(t, err)
}

func TestModelTransformUnknownOp(t *testing.T) {
	path := writeFixture(t)
	_, err := execute(t, newModelTransformCommand(), path, "--op", "frobnicate")
	assert.ErrorContains(t, err, "unknown operation")
}
