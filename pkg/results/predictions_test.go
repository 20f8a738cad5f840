package results

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sdtabFixture = `TABLE NO.  1
 ID          TIME        DV          PRED        IPRED       RES         WRES        CWRES
  1.0000E+00  0.0000E+00  0.0000E+00  1.5000E+01  1.4000E+01  0.0000E+00  0.0000E+00  0.0000E+00
  1.0000E+00  2.0000E+00  1.7300E+01  1.5500E+01  1.6100E+01  1.8000E+00  9.0000E-01  8.0000E-01
  2.0000E+00  0.0000E+00  2.4600E+01  2.4000E+01  2.4200E+01  6.0000E-01  3.0000E-01  2.0000E-01
`

func TestResidualsDropZeroRows(t *testing.T) {
	tb, err := ParseTableOutput(strings.NewReader(sdtabFixture), TableOutputOptions{})
	require.NoError(t, err)
	recs, err := Residuals(tb)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 1.0, recs[0].ID)
	assert.Equal(t, 2.0, recs[0].Time)
	assert.InDelta(t, 0.8, recs[0].Values["CWRES"], 1e-12)
	assert.Equal(t, 2.0, recs[1].ID)
}

func TestPredictionsKeepAllRows(t *testing.T) {
	tb, err := ParseTableOutput(strings.NewReader(sdtabFixture), TableOutputOptions{})
	require.NoError(t, err)
	recs, err := Predictions(tb)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.InDelta(t, 15.0, recs[0].Values["PRED"], 1e-12)
	assert.InDelta(t, 16.1, recs[1].Values["IPRED"], 1e-12)
}

func TestParseTableOutputNoLabel(t *testing.T) {
	text := "  1.0000E+00  0.0000E+00  1.5000E+01\n  1.0000E+00  2.0000E+00  1.5500E+01\n"
	tb, err := ParseTableOutput(strings.NewReader(text), TableOutputOptions{
		NoTitle: true,
		NoLabel: true,
		Columns: []string{"ID", "TIME", "PRED"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, tb.NRows())
	pred, ok := tb.Column("PRED")
	require.True(t, ok)
	assert.Equal(t, []float64{15, 15.5}, pred)
}

func TestParseTableOutputNoTitleOnly(t *testing.T) {
	text := " ID TIME PRED\n 1 0 15\n"
	tb, err := ParseTableOutput(strings.NewReader(text), TableOutputOptions{NoTitle: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "TIME", "PRED"}, tb.Columns)
	assert.Equal(t, 1, tb.NRows())
}

func TestParseTableOutputMissingColumns(t *testing.T) {
	_, err := ParseTableOutput(strings.NewReader("1 2\n"), TableOutputOptions{
		NoTitle: true, NoLabel: true})
	assert.Error(t, err)
}
