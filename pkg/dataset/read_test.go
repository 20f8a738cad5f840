package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRead(t *testing.T, text string, opts ReadOptions) (*Dataset, []DatasetWarning) {
	t.Helper()
	ds, warns, err := Read(strings.NewReader(text), opts)
	require.NoError(t, err)
	return ds, warns
}

func TestReadSpaceSeparated(t *testing.T) {
	ds, warns := mustRead(t, "1 0. 25.0 1.4\n1 2. 0 1.1\n",
		ReadOptions{Columns: []string{"ID", "TIME", "AMT", "DV"}})
	assert.Empty(t, warns)
	assert.Equal(t, 2, ds.NRows())
	dv, err := ds.FloatColumn("DV")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.4, 1.1}, dv)
}

func TestReadCommaSeparated(t *testing.T) {
	ds, _ := mustRead(t, "1,0,1.4\n1 , 2 , 1.1\n",
		ReadOptions{Columns: []string{"ID", "TIME", "DV"}})
	assert.Equal(t, 2, ds.NRows())
	tv, err := ds.FloatColumn("TIME")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2}, tv)
}

func TestReadTabSeparated(t *testing.T) {
	ds, _ := mustRead(t, "1\t0\t1.4\n2\t1\t2.2\n",
		ReadOptions{Columns: []string{"ID", "TIME", "DV"}})
	assert.Equal(t, 2, ds.NRows())
	cell, err := ds.Cell(1, "DV")
	require.NoError(t, err)
	assert.Equal(t, "2.2", cell)
}

func TestReadTabAfterSpace(t *testing.T) {
	_, _, err := Read(strings.NewReader("1 \t0 1.4\n"),
		ReadOptions{Columns: []string{"ID", "TIME", "DV"}})
	var derr *DatasetError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, 1, derr.Line)
}

func TestReadBlankLine(t *testing.T) {
	_, _, err := Read(strings.NewReader("1 0 1.4\n\n2 0 2.2\n"),
		ReadOptions{Columns: []string{"ID", "TIME", "DV"}})
	var derr *DatasetError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, 2, derr.Line)
}

func TestReadTrailingNewlinesOK(t *testing.T) {
	ds, warns := mustRead(t, "1 0 1.4\n\n\n", ReadOptions{Columns: []string{"ID", "TIME", "DV"}})
	assert.Empty(t, warns)
	assert.Equal(t, 1, ds.NRows())
}

func TestReadShortRowPadded(t *testing.T) {
	ds, warns := mustRead(t, "1 0 1.4\n2 3\n",
		ReadOptions{Columns: []string{"ID", "TIME", "DV"}})
	require.Len(t, warns, 1)
	assert.Equal(t, 2, warns[0].Line)
	assert.Contains(t, warns[0].Message, "padded")
	cell, err := ds.Cell(1, "DV")
	require.NoError(t, err)
	assert.Equal(t, "0", cell)
}

func TestReadShortRowCustomNull(t *testing.T) {
	ds, _ := mustRead(t, "1 0 1.4\n2 3\n",
		ReadOptions{Columns: []string{"ID", "TIME", "DV"}, NullValue: "9"})
	cell, err := ds.Cell(1, "DV")
	require.NoError(t, err)
	assert.Equal(t, "9", cell)
}

func TestReadLongRowTruncated(t *testing.T) {
	ds, warns := mustRead(t, "1 0 1.4 99\n", ReadOptions{Columns: []string{"ID", "TIME", "DV"}})
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0].Message, "truncated")
	assert.Equal(t, []string{"1", "0", "1.4"}, ds.Rows()[0])
}

func TestReadEmptyCommaCell(t *testing.T) {
	ds, warns := mustRead(t, "1,,1.4\n", ReadOptions{Columns: []string{"ID", "TIME", "DV"}})
	assert.Empty(t, warns)
	cell, err := ds.Cell(0, "TIME")
	require.NoError(t, err)
	assert.Equal(t, "0", cell)
}

func TestReadIgnoreAt(t *testing.T) {
	text := "ID TIME DV\n1 0 1.4\n  WT 2 3\n2 0 2.2\n"
	ds, _ := mustRead(t, text, ReadOptions{
		Columns: []string{"ID", "TIME", "DV"}, IgnoreChar: '@'})
	assert.Equal(t, 2, ds.NRows())
	ids, err := ds.Column("ID")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids)
}

func TestReadIgnoreChar(t *testing.T) {
	text := "#comment row\n1 0 1.4\n#another\n2 0 2.2\n"
	ds, _ := mustRead(t, text, ReadOptions{
		Columns: []string{"ID", "TIME", "DV"}, IgnoreChar: '#'})
	assert.Equal(t, 2, ds.NRows())
}

func TestReadFortranCells(t *testing.T) {
	ds, _ := mustRead(t, "1 1d1 1.25D+2\n2 1+2 4-1\n",
		ReadOptions{Columns: []string{"ID", "TIME", "DV"}})
	tv, err := ds.FloatColumn("TIME")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 100}, tv)
	dv, err := ds.FloatColumn("DV")
	require.NoError(t, err)
	assert.Equal(t, []float64{125, 0.4}, dv)
}

func TestReadNonNumericCell(t *testing.T) {
	_, _, err := Read(strings.NewReader("1 0 HIGH\n"),
		ReadOptions{Columns: []string{"ID", "TIME", "DV"}})
	var derr *DatasetError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, derr.Message, "DV")
}

func TestReadRawMode(t *testing.T) {
	ds, _ := mustRead(t, "1 0 HIGH\n2 1d1 LOW\n", ReadOptions{
		Columns:      []string{"ID", "TIME", "SEX"},
		Raw:          true,
		ParseColumns: []string{"TIME"},
	})
	sex, err := ds.Column("SEX")
	require.NoError(t, err)
	assert.Equal(t, []string{"HIGH", "LOW"}, sex)
	// parsed columns are normalized even in raw mode
	cell, err := ds.Cell(1, "TIME")
	require.NoError(t, err)
	assert.Equal(t, "10", cell)
}

func TestReadDropColumns(t *testing.T) {
	ds, _ := mustRead(t, "1 0 XX 1.4\n", ReadOptions{
		Columns:     []string{"ID", "TIME", "JUNK", "DV"},
		Raw:         false,
		DropColumns: []string{"JUNK"},
	})
	assert.Equal(t, []string{"ID", "TIME", "DV"}, ds.Columns())
	assert.Equal(t, []string{"1", "0", "1.4"}, ds.Rows()[0])
}

func TestReadRenumberIDs(t *testing.T) {
	text := "1 0\n1 1\n2 0\n1 0\n3 0\n"
	ds, warns := mustRead(t, text, ReadOptions{
		Columns: []string{"ID", "TIME"}, IDColumn: "ID"})
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0].Message, "renumbered")
	ids, err := ds.Column("ID")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "1", "2", "3", "4"}, ids)
}

func TestReadUniqueIDsUntouched(t *testing.T) {
	ds, warns := mustRead(t, "7 0\n7 1\n9 0\n", ReadOptions{
		Columns: []string{"ID", "TIME"}, IDColumn: "ID"})
	assert.Empty(t, warns)
	ids, err := ds.Column("ID")
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "7", "9"}, ids)
}
