package results

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const corFixture = `TABLE NO.     1: First Order Conditional Estimation with Interaction
 NAME         THETA1       OMEGA(1,1)
 THETA1       2.00000E-01  5.00000E-01
 OMEGA(1,1)   5.00000E-01  1.00000E-01
`

func TestMatrixFromTable(t *testing.T) {
	tables, err := ParseTables(strings.NewReader(corFixture))
	require.NoError(t, err)
	nm, diag, err := matrixFromTable(tables[0], true)
	require.NoError(t, err)
	assert.Equal(t, []string{"THETA(1)", "OMEGA(1,1)"}, nm.Names)
	// .cor diagonal holds standard errors, forced to 1 in the matrix
	assert.Equal(t, []float64{0.2, 0.1}, diag)
	assert.Equal(t, 1.0, nm.Matrix.At(0, 0))
	assert.Equal(t, 1.0, nm.Matrix.At(1, 1))
	assert.Equal(t, 0.5, nm.Matrix.At(0, 1))
}

func TestCovFromCorAndBack(t *testing.T) {
	cor := mat.NewSymDense(2, []float64{1, 0.5, 0.5, 1})
	se := []float64{0.2, 0.1}
	cov, err := CovFromCor(cor, se)
	require.NoError(t, err)
	assert.InDelta(t, 0.04, cov.At(0, 0), 1e-12)
	assert.InDelta(t, 0.01, cov.At(1, 1), 1e-12)
	assert.InDelta(t, 0.01, cov.At(0, 1), 1e-12)

	assert.InDelta(t, 0.2, SEFromCov(cov)[0], 1e-12)
	back := CorFromCov(cov)
	assert.InDelta(t, 0.5, back.At(0, 1), 1e-12)
	assert.InDelta(t, 1.0, back.At(0, 0), 1e-12)
}

func TestCovInfoInverses(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{0.04, 0.01, 0.01, 0.01})
	info, err := InfoFromCov(cov)
	require.NoError(t, err)
	round, err := CovFromInfo(info)
	require.NoError(t, err)
	assert.InDelta(t, cov.At(0, 0), round.At(0, 0), 1e-9)
	assert.InDelta(t, cov.At(0, 1), round.At(0, 1), 1e-9)
}

func TestUncertaintyComplete(t *testing.T) {
	u := &uncertainty{
		cor: mat.NewSymDense(2, []float64{1, 0.5, 0.5, 1}),
		se:  []float64{0.2, 0.1},
	}
	u.complete()
	require.NotNil(t, u.cov)
	require.NotNil(t, u.info)
	assert.InDelta(t, 0.04, u.cov.At(0, 0), 1e-12)
}

func TestCovFromCorSizeMismatch(t *testing.T) {
	cor := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	_, err := CovFromCor(cor, []float64{0.1})
	assert.Error(t, err)
}
