package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
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
$OMEGA 0.0309626
$OMEGA 0.031128
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

// writeFixture puts the pheno model and dataset into a temp dir and
// returns the model path.
func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pheno.dta"), []byte(phenoData), 0o644))
	path := filepath.Join(dir, "run1.mod")
	require.NoError(t, os.WriteFile(path, []byte(pheno), 0o644))
	return path
}

// execute runs a command with captured output.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
