package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatements(t *testing.T) {
	s := ParseStatements([]string{
		"CL=THETA(1)*EXP(ETA(1)) ; clearance",
		"V = THETA(2)",
		"",
		"IF (WGT.GT.0) CL=CL*WGT",
		"S1=V",
	})
	assert.Equal(t, []string{"CL", "V", "S1"}, s.Symbols())

	a, ok := s.Find("CL")
	require.True(t, ok)
	assert.Equal(t, "THETA(1)*EXP(ETA(1))", a.Expression)
}

func TestFindReturnsLastAssignment(t *testing.T) {
	s := ParseStatements([]string{"CL=1", "CL=2"})
	a, ok := s.Find("CL")
	require.True(t, ok)
	assert.Equal(t, "2", a.Expression)
	assert.Equal(t, 1, s.Index("CL"))
}

func TestAssignReplacesOrAppends(t *testing.T) {
	s := ParseStatements([]string{"CL=THETA(1)"})
	s.Assign("CL", "THETA(1)*WGT")
	s.Assign("V", "THETA(2)")
	assert.Equal(t, []string{"CL = THETA(1)*WGT", "V = THETA(2)"}, s.Render())
}

func TestRemoveAndInsert(t *testing.T) {
	s := ParseStatements([]string{"CL=1", "V=2", "S1=V"})
	s.Remove("V")
	assert.Equal(t, []string{"CL", "S1"}, s.Symbols())

	s.Insert(1, Assignment{Symbol: "V", Expression: "THETA(2)"})
	assert.Equal(t, []string{"CL = 1", "V = THETA(2)", "S1 = V"}, s.Render())
}

func TestDependsOn(t *testing.T) {
	s := ParseStatements([]string{"CL=TVCL*EXP(ETA(1))", "V=THETA(2)"})
	assert.True(t, s.DependsOn("CL", "TVCL"))
	assert.True(t, s.DependsOn("CL", "ETA(1)"))
	assert.False(t, s.DependsOn("V", "TVCL"))
	assert.False(t, s.DependsOn("CL", "TV"), "whole word matching")
}

func TestRenderKeepsRawWhenUntouched(t *testing.T) {
	lines := []string{"CL=THETA(1) ; with comment", "  V=THETA(2)"}
	s := ParseStatements(lines)
	assert.Equal(t, lines, s.Render())

	s.Assign("CL", "THETA(1)*WGT")
	assert.Equal(t, []string{"CL = THETA(1)*WGT", "V = THETA(2)"}, s.Render())
}
