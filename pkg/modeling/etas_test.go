package modeling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddIIVExp(t *testing.T) {
	m := parseTestModel(t)
	require.NoError(t, AddIIV(m, "S1", "exp", 0))

	a, _ := m.PKStatements().Find("S1")
	assert.Equal(t, "V*EXP(ETA(3))", a.Expression)

	p, ok := m.Parameters().Get("OMEGA(3,3)")
	require.True(t, ok)
	assert.Equal(t, 0.09, p.Init)
	assert.Equal(t, []string{"ETA(1)", "ETA(2)", "ETA(3)"}, m.RandomVariables().EtaNames())
}

func TestAddIIVProp(t *testing.T) {
	m := parseTestModel(t)
	require.NoError(t, AddIIV(m, "S1", "prop", 0.04))

	a, _ := m.PKStatements().Find("S1")
	assert.Equal(t, "V*(1 + ETA(3))", a.Expression)
	p, _ := m.Parameters().Get("OMEGA(3,3)")
	assert.Equal(t, 0.04, p.Init)
}

func TestAddIIVAdd(t *testing.T) {
	m := parseTestModel(t)
	require.NoError(t, AddIIV(m, "S1", "add", 0))

	a, _ := m.PKStatements().Find("S1")
	assert.Equal(t, "V + ETA(3)", a.Expression)
}

func TestAddIIVAlreadyPresent(t *testing.T) {
	m := parseTestModel(t)
	err := AddIIV(m, "CL", "exp", 0)
	assert.ErrorContains(t, err, "already has variability")
}

func TestAddIIVUnknownSymbol(t *testing.T) {
	m := parseTestModel(t)
	assert.Error(t, AddIIV(m, "KA", "exp", 0))
}

func TestRemoveIIVByEta(t *testing.T) {
	m := parseTestModel(t)
	require.NoError(t, RemoveIIV(m, "ETA(2)"))

	a, _ := m.PKStatements().Find("V")
	assert.Equal(t, "THETA(2)", a.Expression)
	assert.Equal(t, []string{"ETA(1)"}, m.RandomVariables().EtaNames())
	assert.Equal(t, []string{
		"THETA(1)", "THETA(2)", "OMEGA(1,1)", "SIGMA(1,1)",
	}, m.Parameters().Names())
}

func TestRemoveIIVBySymbol(t *testing.T) {
	m := parseTestModel(t)
	require.NoError(t, RemoveIIV(m, "CL"))

	a, _ := m.PKStatements().Find("CL")
	assert.Equal(t, "THETA(1)", a.Expression)
	// the remaining eta is renumbered
	assert.Equal(t, []string{"ETA(1)"}, m.RandomVariables().EtaNames())
	v, _ := m.PKStatements().Find("V")
	assert.Equal(t, "THETA(2)*EXP(ETA(1))", v.Expression)
}

func TestRemoveIIVAll(t *testing.T) {
	m := parseTestModel(t)
	require.NoError(t, RemoveIIV(m))

	assert.Empty(t, m.RandomVariables().EtaNames())
	assert.Equal(t, []string{"THETA(1)", "THETA(2)", "SIGMA(1,1)"}, m.Parameters().Names())
}

func TestRemoveIIVNoVariability(t *testing.T) {
	m := parseTestModel(t)
	err := RemoveIIV(m, "S1")
	assert.ErrorContains(t, err, "no variability")
}

func TestTransformEtasBoxcox(t *testing.T) {
	m := parseTestModel(t)
	require.NoError(t, TransformEtasBoxcox(m, "ETA(1)"))

	etab, ok := m.PKStatements().Find("ETAB1")
	require.True(t, ok)
	assert.Equal(t, "(EXP(ETA(1))**THETA(3) - 1)/THETA(3)", etab.Expression)

	cl, _ := m.PKStatements().Find("CL")
	assert.Equal(t, "THETA(1)*EXP(ETAB1)", cl.Expression)

	lambda, ok := m.Parameters().Get("THETA(3)")
	require.True(t, ok)
	assert.Equal(t, 0.01, lambda.Init)
	assert.Equal(t, -3.0, lambda.Lower)
	assert.Equal(t, 3.0, lambda.Upper)
}

func TestTransformEtasBoxcoxAll(t *testing.T) {
	m := parseTestModel(t)
	require.NoError(t, TransformEtasBoxcox(m))

	_, ok := m.PKStatements().Find("ETAB1")
	assert.True(t, ok)
	_, ok = m.PKStatements().Find("ETAB2")
	assert.True(t, ok)
	assert.Equal(t, 4, countThetas(m))
}

func TestTransformEtasBoxcoxUnknown(t *testing.T) {
	m := parseTestModel(t)
	assert.Error(t, TransformEtasBoxcox(m, "ETA(9)"))
}
