package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmgo/pharmgo/pkg/parser"
	"github.com/pharmgo/pharmgo/pkg/token"
)

func filterFixture(t *testing.T) *Dataset {
	t.Helper()
	text := "1 0 1.4 M\n1 2 1.1 M\n2 0 2.2 F\n2 2 0.9 F\n3 0 3.3 M\n"
	ds, _, err := Read(strings.NewReader(text), ReadOptions{
		Columns:      []string{"ID", "TIME", "DV", "SEX"},
		Raw:          true,
		ParseColumns: []string{"ID", "TIME", "DV"},
	})
	require.NoError(t, err)
	return ds
}

func TestFilterIgnore(t *testing.T) {
	ds := filterFixture(t)
	out, err := Filter(ds, []parser.Filter{
		{Column: "ID", Op: token.OpEq, Value: "2"},
	}, nil)
	require.NoError(t, err)
	ids, err := out.Column("ID")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "1", "3"}, ids)
}

func TestFilterIgnoreMultipleAnyMatch(t *testing.T) {
	ds := filterFixture(t)
	out, err := Filter(ds, []parser.Filter{
		{Column: "ID", Op: token.OpEq, Value: "1"},
		{Column: "TIME", Op: token.OpGt, Value: "0"},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, out.NRows())
	ids, _ := out.Column("ID")
	assert.Equal(t, []string{"2", "3"}, ids)
}

func TestFilterAcceptAllMustMatch(t *testing.T) {
	ds := filterFixture(t)
	out, err := Filter(ds, nil, []parser.Filter{
		{Column: "TIME", Op: token.OpGe, Value: "0"},
		{Column: "DV", Op: token.OpLt, Value: "2"},
	})
	require.NoError(t, err)
	dv, err := out.Column("DV")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.4", "1.1", "0.9"}, dv)
}

func TestFilterStringOps(t *testing.T) {
	ds := filterFixture(t)
	out, err := Filter(ds, []parser.Filter{
		{Column: "SEX", Op: token.OpStrEq, Value: "M"},
	}, nil)
	require.NoError(t, err)
	ids, _ := out.Column("ID")
	assert.Equal(t, []string{"2", "2"}, ids)

	out, err = Filter(ds, nil, []parser.Filter{
		{Column: "SEX", Op: token.OpStrNe, Value: "F"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, out.NRows())
}

func TestFilterNumericOnNonNumeric(t *testing.T) {
	ds := filterFixture(t)
	_, err := Filter(ds, []parser.Filter{
		{Column: "SEX", Op: token.OpGt, Value: "1"},
	}, nil)
	var derr *DatasetError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, derr.Message, "non-numeric")
}

func TestFilterUnknownColumn(t *testing.T) {
	ds := filterFixture(t)
	_, err := Filter(ds, []parser.Filter{
		{Column: "WT", Op: token.OpEq, Value: "70"},
	}, nil)
	assert.ErrorContains(t, err, "unknown column")
}

func TestFilterSignOperators(t *testing.T) {
	ds := filterFixture(t)
	out, err := Filter(ds, nil, []parser.Filter{
		{Column: "DV", Op: token.OpGeSign, Value: "2.2"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, out.NRows())
}
