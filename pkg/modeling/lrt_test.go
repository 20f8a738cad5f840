package modeling

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRTPValue(t *testing.T) {
	p, err := LRTPValue(100, 96.159, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, p, 1e-3)

	p, err = LRTPValue(100, 110, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)

	_, err = LRTPValue(100, 90, 0)
	assert.Error(t, err)
	_, err = LRTPValue(math.NaN(), 90, 1)
	assert.Error(t, err)
}

func TestCutoffOFV(t *testing.T) {
	assert.InDelta(t, 3.841, CutoffOFV(1, 0.05), 1e-3)
	assert.InDelta(t, 5.991, CutoffOFV(2, 0.05), 1e-3)
	assert.InDelta(t, 6.635, CutoffOFV(1, 0.01), 1e-3)
}

func TestDegreesOfFreedom(t *testing.T) {
	base := parseTestModel(t)
	ext := parseTestModel(t)
	_, err := AddParameter(ext, "MAT", 1.0)
	require.NoError(t, err)
	assert.Equal(t, 1, DegreesOfFreedom(base, ext))
}

func TestLRTBetter(t *testing.T) {
	base := parseTestModel(t)
	ext := parseTestModel(t)
	_, err := AddParameter(ext, "MAT", 1.0)
	require.NoError(t, err)

	better, err := LRTBetter(base, ext, 100, 90, 0.05)
	require.NoError(t, err)
	assert.True(t, better)

	better, err = LRTBetter(base, ext, 100, 99, 0.05)
	require.NoError(t, err)
	assert.False(t, better)

	// no extra parameters means nothing to test
	better, err = LRTBetter(base, base, 100, 90, 0.05)
	require.NoError(t, err)
	assert.False(t, better)
}

func TestBestOfMany(t *testing.T) {
	best, err := BestOfMany(100, []float64{95, 90, 99, math.NaN()}, []int{1, 1, 1, 1}, 0.05)
	require.NoError(t, err)
	assert.Equal(t, 1, best)

	// none significant
	best, err = BestOfMany(100, []float64{99, 98}, []int{1, 1}, 0.05)
	require.NoError(t, err)
	assert.Equal(t, -1, best)

	_, err = BestOfMany(100, []float64{90}, []int{1, 2}, 0.05)
	assert.Error(t, err)
}

func TestBIC(t *testing.T) {
	assert.InDelta(t, 100+3*math.Log(50), BIC(100, 3, 50), 1e-12)
}
