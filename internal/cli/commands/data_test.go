package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmgo/pharmgo/pkg/token"
)

func TestParseCondition(t *testing.T) {
	f, err := parseCondition("APGR.GT.5")
	require.NoError(t, err)
	assert.Equal(t, "APGR", f.Column)
	assert.Equal(t, token.OpGt, f.Op)
	assert.Equal(t, "5", f.Value)

	f, err = parseCondition("id.eq.2")
	require.NoError(t, err)
	assert.Equal(t, "ID", f.Column)
	assert.Equal(t, token.OpStrEq, f.Op)

	_, err = parseCondition("APGR>5")
	assert.ErrorContains(t, err, "cannot parse condition")
}

func TestDataWrite(t *testing.T) {
	path := writeFixture(t)
	dest := filepath.Join(t.TempDir(), "data.csv")

	out, err := execute(t, newDataWriteCommand(), path, "-o", dest)
	require.NoError(t, err)
	assert.Contains(t, out, dest)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Equal(t, "ID,TIME,AMT,WGT,APGR,DV", lines[0])
	assert.Len(t, lines, 7)
}

func TestDataWriteDefaultPath(t *testing.T) {
	path := writeFixture(t)

	_, err := execute(t, newDataWriteCommand(), path)
	require.NoError(t, err)
	assert.FileExists(t, strings.TrimSuffix(path, ".mod")+".csv")
}

func TestDataFilter(t *testing.T) {
	path := writeFixture(t)
	dest := filepath.Join(t.TempDir(), "filtered.csv")

	_, err := execute(t, newDataFilterCommand(), path, "APGR.GT.5", "-o", dest)
	require.NoError(t, err)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	// subjects 1 and 3 have APGR 7 and 9
	assert.Len(t, lines, 5)
	assert.NotContains(t, string(content), "0.8")
}

func TestDataResampleDeterministic(t *testing.T) {
	path := writeFixture(t)
	dest1 := filepath.Join(t.TempDir(), "r1.csv")
	dest2 := filepath.Join(t.TempDir(), "r2.csv")

	_, err := execute(t, newDataResampleCommand(), path, "--seed", "7", "-o", dest1)
	require.NoError(t, err)
	_, err = execute(t, newDataResampleCommand(), path, "--seed", "7", "-o", dest2)
	require.NoError(t, err)

	c1, err := os.ReadFile(dest1)
	require.NoError(t, err)
	c2, err := os.ReadFile(dest2)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestDataAnonymizeKeepsRowCount(t *testing.T) {
	path := writeFixture(t)
	dest := filepath.Join(t.TempDir(), "anon.csv")

	_, err := execute(t, newDataAnonymizeCommand(), path, "--seed", "3", "-o", dest)
	require.NoError(t, err)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Len(t, lines, 7)
}

func TestDataWriteRefusesOverwrite(t *testing.T) {
	path := writeFixture(t)
	dest := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(dest, []byte("x"), 0o644))

	_, err := execute(t, newDataWriteCommand(), path, "-o", dest)
	var exists *ExistsError
	require.ErrorAs(t, err, &exists)

	_, err = execute(t, newDataWriteCommand(), path, "-o", dest, "--force")
	require.NoError(t, err)
}
