package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resampleFixture(t *testing.T) *Dataset {
	t.Helper()
	text := "1 0 10 M\n1 1 11 M\n2 0 20 F\n3 0 30 M\n3 1 31 M\n3 2 32 M\n4 0 40 F\n"
	ds, _, err := Read(strings.NewReader(text), ReadOptions{
		Columns:      []string{"ID", "TIME", "DV", "SEX"},
		Raw:          true,
		ParseColumns: []string{"ID", "TIME", "DV"},
	})
	require.NoError(t, err)
	return ds
}

func TestResampleWithoutReplacementKeepsAllGroups(t *testing.T) {
	ds := resampleFixture(t)
	out, err := Resample(ds, ResampleOptions{Seed: 17})
	require.NoError(t, err)
	assert.Equal(t, ds.NRows(), out.NRows())
	ids, err := out.Column("ID")
	require.NoError(t, err)
	// renumbered sequentially, one run per drawn group
	counts := map[string]int{}
	for _, id := range ids {
		counts[id]++
	}
	assert.Len(t, counts, 4)
	assert.Equal(t, "1", ids[0])
	// every original group's observation set appears exactly once
	dvs, err := out.Column("DV")
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, dv := range dvs {
		seen[dv] = true
	}
	assert.Len(t, seen, 7)
}

func TestResampleDeterministicSeed(t *testing.T) {
	ds := resampleFixture(t)
	a, err := Resample(ds, ResampleOptions{Replace: true, Seed: 5})
	require.NoError(t, err)
	b, err := Resample(ds, ResampleOptions{Replace: true, Seed: 5})
	require.NoError(t, err)
	assert.Equal(t, a.Rows(), b.Rows())
}

func TestResampleWithReplacementSize(t *testing.T) {
	ds := resampleFixture(t)
	out, err := Resample(ds, ResampleOptions{
		Replace:    true,
		SampleSize: map[string]int{"": 10},
		Seed:       1,
	})
	require.NoError(t, err)
	ids, err := out.Column("ID")
	require.NoError(t, err)
	counts := map[string]int{}
	for _, id := range ids {
		counts[id]++
	}
	assert.Len(t, counts, 10)
}

func TestResampleSizeTooLarge(t *testing.T) {
	ds := resampleFixture(t)
	_, err := Resample(ds, ResampleOptions{
		SampleSize: map[string]int{"": 5},
	})
	assert.ErrorContains(t, err, "without replacement")
}

func TestResampleStratified(t *testing.T) {
	ds := resampleFixture(t)
	out, err := Resample(ds, ResampleOptions{
		Stratify:   "SEX",
		SampleSize: map[string]int{"M": 1, "F": 2},
		Seed:       3,
	})
	require.NoError(t, err)
	sexes, err := out.Column("SEX")
	require.NoError(t, err)
	counts := map[string]map[string]bool{}
	ids, _ := out.Column("ID")
	for i, s := range sexes {
		if counts[s] == nil {
			counts[s] = map[string]bool{}
		}
		counts[s][ids[i]] = true
	}
	assert.Len(t, counts["M"], 1)
	assert.Len(t, counts["F"], 2)
}

func TestResampleStratumSpanError(t *testing.T) {
	text := "1 0 M\n1 1 F\n"
	ds, _, err := Read(strings.NewReader(text), ReadOptions{
		Columns: []string{"ID", "TIME", "SEX"}, Raw: true})
	require.NoError(t, err)
	_, err = Resample(ds, ResampleOptions{Stratify: "SEX"})
	assert.ErrorContains(t, err, "more than one SEX value")
}

func TestAnonymize(t *testing.T) {
	ds := resampleFixture(t)
	out, err := Anonymize(ds, "ID", 99)
	require.NoError(t, err)
	assert.Equal(t, ds.NRows(), out.NRows())
	ids, err := out.Column("ID")
	require.NoError(t, err)
	uniq := map[string]bool{}
	for _, id := range ids {
		uniq[id] = true
	}
	assert.Equal(t, map[string]bool{"1": true, "2": true, "3": true, "4": true}, uniq)
}
