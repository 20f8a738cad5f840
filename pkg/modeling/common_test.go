package modeling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmgo/pharmgo/pkg/model"
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
$OMEGA 0.0309626  ; IVCL
$OMEGA 0.031128  ; IVV
$SIGMA 0.013241
$ESTIMATION METHOD=1 INTERACTION
`

const phenoData = `ID TIME AMT WGT APGR DV
1 0 25 1.4 7 0
1 2 0 1.4 7 17.3
2 0 15 0.8 5 0
2 2 0 0.8 5 9.7
3 0 30 1.1 9 0
3 1.5 0 1.1 9 24.6
`

func parseTestModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.ParseModel("pheno", pheno)
	require.NoError(t, err)
	return m
}

// readModelWithData puts the model and its dataset on disk so dataset
// statistics can be computed.
func readModelWithData(t *testing.T) *model.Model {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pheno.dta"), []byte(phenoData), 0o644))
	path := filepath.Join(dir, "run1.mod")
	require.NoError(t, os.WriteFile(path, []byte(pheno), 0o644))
	m, err := model.ReadModel(path)
	require.NoError(t, err)
	return m
}

func TestFixParameters(t *testing.T) {
	m := parseTestModel(t)
	require.NoError(t, FixParameters(m, "THETA(1)", "OMEGA(2,2)"))

	p, _ := m.Parameters().Get("THETA(1)")
	assert.True(t, p.Fix)
	p, _ = m.Parameters().Get("OMEGA(2,2)")
	assert.True(t, p.Fix)
	p, _ = m.Parameters().Get("THETA(2)")
	assert.False(t, p.Fix)

	require.NoError(t, UnfixParameters(m, "THETA(1)"))
	p, _ = m.Parameters().Get("THETA(1)")
	assert.False(t, p.Fix)
}

func TestFixParametersUnknown(t *testing.T) {
	m := parseTestModel(t)
	assert.Error(t, FixParameters(m, "THETA(9)"))
}

func TestAddParameter(t *testing.T) {
	m := parseTestModel(t)
	name, err := AddParameter(m, "MAT", 2.0)
	require.NoError(t, err)
	assert.Equal(t, "THETA(3)", name)

	p, ok := m.Parameters().Get("THETA(3)")
	require.True(t, ok)
	assert.Equal(t, 2.0, p.Init)
	assert.Equal(t, 0.0, p.Lower)

	// the theta block stays contiguous
	assert.Equal(t, []string{
		"THETA(1)", "THETA(2)", "THETA(3)", "OMEGA(1,1)", "OMEGA(2,2)", "SIGMA(1,1)",
	}, m.Parameters().Names())

	a, ok := m.PKStatements().Find("MAT")
	require.True(t, ok)
	assert.Equal(t, "THETA(3)", a.Expression)
}

func TestAddParameterNonPositiveInit(t *testing.T) {
	m := parseTestModel(t)
	_, err := AddParameter(m, "MAT", 0)
	assert.Error(t, err)
}
