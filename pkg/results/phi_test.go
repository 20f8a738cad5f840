package results

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const phiFixture = `TABLE NO.     1: First Order Conditional Estimation with Interaction
 SUBJECT_NO   ID           ETA(1)       ETA(2)       ETC(1,1)     ETC(2,1)     ETC(2,2)     OBJ
            1            1 -2.60524E-03 -1.95833E-02  1.20000E-02  1.00000E-03  2.50000E-02  8.46485178
            2            4  1.12000E-01  3.00000E-02  1.30000E-02  2.00000E-03  2.60000E-02  9.11200000
`

func TestParsePhi(t *testing.T) {
	steps, err := ParsePhi(strings.NewReader(phiFixture))
	require.NoError(t, err)
	require.Len(t, steps, 1)
	inds := steps[0].Individuals
	require.Len(t, inds, 2)

	assert.Equal(t, 1, inds[0].ID)
	assert.Equal(t, 4, inds[1].ID)
	assert.InDelta(t, 8.46485178, inds[0].OFV, 1e-9)
	require.Len(t, inds[0].Etas, 2)
	assert.InDelta(t, -2.60524e-03, inds[0].Etas[0], 1e-12)
	assert.InDelta(t, 3.0e-02, inds[1].Etas[1], 1e-12)

	cov := inds[0].EtaCov
	require.NotNil(t, cov)
	assert.InDelta(t, 0.012, cov.At(0, 0), 1e-12)
	assert.InDelta(t, 0.001, cov.At(0, 1), 1e-12)
	assert.InDelta(t, 0.025, cov.At(1, 1), 1e-12)
}

func TestParsePhiNoEtc(t *testing.T) {
	text := `TABLE NO.     1
 SUBJECT_NO   ID           ETA(1)       OBJ
            1            7  2.00000E-01  5.5
`
	steps, err := ParsePhi(strings.NewReader(text))
	require.NoError(t, err)
	ind := steps[0].Individuals[0]
	assert.Equal(t, 7, ind.ID)
	assert.Nil(t, ind.EtaCov)
	assert.Equal(t, []float64{0.2}, ind.Etas)
}
