package modeling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDataset(t *testing.T) {
	m := readModelWithData(t)
	ds, err := LoadDataset(m)
	require.NoError(t, err)

	assert.Equal(t, []string{"ID", "TIME", "AMT", "WGT", "APGR", "DV"}, ds.Columns())
	assert.Equal(t, 6, ds.NRows())

	v, err := ds.Float(1, "DV")
	require.NoError(t, err)
	assert.Equal(t, 17.3, v)
}

func TestCovariateBaselines(t *testing.T) {
	m := readModelWithData(t)
	vals, err := covariateBaselines(m, "WGT")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.4, 0.8, 1.1}, vals)
}

func TestCovariateBaselinesUnknownColumn(t *testing.T) {
	m := readModelWithData(t)
	_, err := covariateBaselines(m, "CRCL")
	assert.Error(t, err)
}

func TestStatistics(t *testing.T) {
	vals := []float64{1.4, 0.8, 1.1}
	assert.InDelta(t, 1.1, mean(vals), 1e-12)
	assert.Equal(t, 1.1, median(vals))
	assert.Equal(t, 0.95, median([]float64{0.8, 1.1}))

	assert.Equal(t, 5.0, mostCommon([]float64{7, 5, 9}))
	assert.Equal(t, 7.0, mostCommon([]float64{7, 5, 7, 9}))
	assert.Equal(t, []float64{5, 7, 9}, categories([]float64{7, 5, 9, 5}))
}
