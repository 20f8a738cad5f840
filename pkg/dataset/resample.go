package dataset

import (
	"fmt"
	"math/rand"
)

// ResampleOptions controls group-level resampling.
type ResampleOptions struct {
	// Group names the column whose values define groups, normally the
	// subject ID. Defaults to "ID".
	Group string
	// Replace samples groups with replacement.
	Replace bool
	// Stratify names an optional column; sampling happens within each
	// stratum separately. A group must have a single stratum value.
	Stratify string
	// SampleSize gives the number of groups drawn per stratum value. With
	// no stratification the single entry is keyed by "". Missing entries
	// default to the number of groups available.
	SampleSize map[string]int
	// Seed makes the draw deterministic.
	Seed int64
}

type group struct {
	start, end int // row range, end exclusive
	stratum    string
}

// Resample draws groups of rows and concatenates them into a new dataset.
// The group column is rewritten with fresh sequential numbers so drawn
// duplicates stay distinct individuals.
func Resample(ds *Dataset, opts ResampleOptions) (*Dataset, error) {
	if opts.Group == "" {
		opts.Group = "ID"
	}
	groups, order, err := splitGroups(ds, opts.Group, opts.Stratify)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	var chosen []group
	for _, stratum := range order {
		pool := groups[stratum]
		size := len(pool)
		if n, ok := opts.SampleSize[stratum]; ok {
			size = n
		}
		if opts.Replace {
			for i := 0; i < size; i++ {
				chosen = append(chosen, pool[rng.Intn(len(pool))])
			}
			continue
		}
		if size > len(pool) {
			return nil, fmt.Errorf("stratum %q has %d groups, cannot draw %d without replacement",
				stratum, len(pool), size)
		}
		for _, i := range rng.Perm(len(pool))[:size] {
			chosen = append(chosen, pool[i])
		}
	}
	return assemble(ds, opts.Group, chosen)
}

// Anonymize shuffles all groups without replacement and renumbers them,
// severing the link between original and new IDs.
func Anonymize(ds *Dataset, groupColumn string, seed int64) (*Dataset, error) {
	if groupColumn == "" {
		groupColumn = "ID"
	}
	return Resample(ds, ResampleOptions{Group: groupColumn, Seed: seed})
}

// splitGroups finds contiguous runs of equal group values and buckets them
// by stratum value, keeping first-appearance order of strata.
func splitGroups(ds *Dataset, groupCol, stratifyCol string) (map[string][]group, []string, error) {
	gi, ok := ds.ColumnIndex(groupCol)
	if !ok {
		return nil, nil, fmt.Errorf("no group column %s", groupCol)
	}
	si := -1
	if stratifyCol != "" {
		si, ok = ds.ColumnIndex(stratifyCol)
		if !ok {
			return nil, nil, fmt.Errorf("no stratification column %s", stratifyCol)
		}
	}
	groups := make(map[string][]group)
	var order []string
	start := 0
	for r := 1; r <= len(ds.rows); r++ {
		if r < len(ds.rows) && ds.rows[r][gi] == ds.rows[start][gi] {
			continue
		}
		g := group{start: start, end: r}
		if si >= 0 {
			g.stratum = ds.rows[start][si]
			for i := start; i < r; i++ {
				if ds.rows[i][si] != g.stratum {
					return nil, nil, fmt.Errorf("group %s spans more than one %s value",
						ds.rows[start][gi], stratifyCol)
				}
			}
		}
		if _, ok := groups[g.stratum]; !ok {
			order = append(order, g.stratum)
		}
		groups[g.stratum] = append(groups[g.stratum], g)
		start = r
	}
	return groups, order, nil
}

func assemble(ds *Dataset, groupCol string, chosen []group) (*Dataset, error) {
	gi, _ := ds.ColumnIndex(groupCol)
	var rows [][]string
	for n, g := range chosen {
		id := fmt.Sprintf("%d", n+1)
		for r := g.start; r < g.end; r++ {
			row := append([]string(nil), ds.rows[r]...)
			row[gi] = id
			rows = append(rows, row)
		}
	}
	return &Dataset{columns: ds.Columns(), rows: rows}, nil
}
