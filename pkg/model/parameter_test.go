package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParameter(t *testing.T) {
	p, err := NewParameter("THETA(1)", 0.1, WithLower(0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Lower)
	assert.True(t, math.IsInf(p.Upper, 1))
	assert.False(t, p.Fix)
}

func TestNewParameterValidation(t *testing.T) {
	tests := []struct {
		name string
		init float64
		opts []ParameterOption
	}{
		{"init below lower", -1, []ParameterOption{WithLower(0)}},
		{"init above upper", 2, []ParameterOption{WithUpper(1)}},
		{"crossed bounds", 0.5, []ParameterOption{WithLower(1), WithUpper(0)}},
		{"fixed with bounds", 0.5, []ParameterOption{WithLower(0), WithFix()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParameter("P", tt.init, tt.opts...)
			assert.Error(t, err)
		})
	}
}

func TestParametersCollection(t *testing.T) {
	cl, err := NewParameter("CL", 1, WithLower(0))
	require.NoError(t, err)
	v, err := NewParameter("V", 10, WithLower(0))
	require.NoError(t, err)
	ka, err := NewParameter("KA", 2, WithFix())
	require.NoError(t, err)

	ps, err := NewParameters(cl, v, ka)
	require.NoError(t, err)
	assert.Equal(t, 3, ps.Len())
	assert.Equal(t, []string{"CL", "V", "KA"}, ps.Names())
	assert.Len(t, ps.Nonfixed(), 2)

	_, err = NewParameters(cl, cl)
	assert.Error(t, err)
}

func TestParametersSetInit(t *testing.T) {
	cl, _ := NewParameter("CL", 1, WithLower(0))
	ps, err := NewParameters(cl)
	require.NoError(t, err)

	require.NoError(t, ps.SetInit("CL", 2))
	got, _ := ps.Get("CL")
	assert.Equal(t, 2.0, got.Init)

	assert.Error(t, ps.SetInit("CL", -1), "below lower bound")
	assert.Error(t, ps.SetInit("KA", 1), "unknown name")
}

func TestParametersSetInitsIgnoresUnknown(t *testing.T) {
	cl, _ := NewParameter("CL", 1, WithLower(0))
	v, _ := NewParameter("V", 10, WithLower(0))
	ps, err := NewParameters(cl, v)
	require.NoError(t, err)

	// final estimates from a fit include names not in the collection
	require.NoError(t, ps.SetInits(map[string]float64{"CL": 1.5, "OMEGA(1,1)": 0.2}))
	got, _ := ps.Get("CL")
	assert.Equal(t, 1.5, got.Init)
}

func TestParametersAddRemove(t *testing.T) {
	cl, _ := NewParameter("CL", 1, WithLower(0))
	ps, err := NewParameters(cl)
	require.NoError(t, err)

	v, _ := NewParameter("V", 10, WithLower(0))
	require.NoError(t, ps.Add(v))
	require.NoError(t, ps.Remove("CL"))
	assert.Equal(t, []string{"V"}, ps.Names())

	got, ok := ps.Get("V")
	require.True(t, ok)
	assert.Equal(t, 10.0, got.Init)
}
