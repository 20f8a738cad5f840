package modeling

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/pharmgo/pharmgo/pkg/dataset"
	"github.com/pharmgo/pharmgo/pkg/model"
	"github.com/pharmgo/pharmgo/pkg/parser"
)

// LoadDataset reads the model's dataset the way NONMEM would: the column
// names come from $INPUT, the ignore character and IGNORE/ACCEPT filters
// from $DATA.
func LoadDataset(m *model.Model) (*dataset.Dataset, error) {
	di := m.DataInfo()
	if di == nil || di.Path == "" {
		return nil, fmt.Errorf("model %s has no dataset", m.Name())
	}
	opts := dataset.ReadOptions{
		Columns:  di.Names(),
		IDColumn: di.IDColumn(),
	}
	var ignore, accept []parser.Filter
	if rec, ok := m.ControlStream().First("DATA"); ok {
		data := rec.(*parser.DataRecord)
		opts.IgnoreChar = data.IgnoreCharacter()
		opts.NullValue = strconv.FormatFloat(data.NullValue(), 'g', -1, 64)
		ignore = data.Ignore()
		accept = data.Accept()
	}
	ds, _, err := dataset.ReadFile(m.DatasetPath(), opts)
	if err != nil {
		return nil, err
	}
	return dataset.Filter(ds, ignore, accept)
}

// covariateBaselines extracts one value per individual: the first row of
// each contiguous ID run.
func covariateBaselines(m *model.Model, column string) ([]float64, error) {
	ds, err := LoadDataset(m)
	if err != nil {
		return nil, err
	}
	idcol := m.DataInfo().IDColumn()
	idIdx, ok := ds.ColumnIndex(idcol)
	if !ok {
		return nil, fmt.Errorf("unknown column %s", idcol)
	}
	if _, ok := ds.ColumnIndex(column); !ok {
		return nil, fmt.Errorf("unknown column %s", column)
	}
	var vals []float64
	prev := ""
	for i, row := range ds.Rows() {
		if i > 0 && row[idIdx] == prev {
			continue
		}
		prev = row[idIdx]
		v, err := ds.Float(i, column)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("column %s has no values", column)
	}
	return vals, nil
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func median(vals []float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// mostCommon returns the modal value, breaking ties toward the smallest.
func mostCommon(vals []float64) float64 {
	counts := make(map[float64]int)
	for _, v := range vals {
		counts[v]++
	}
	best := math.Inf(1)
	bestN := 0
	for v, n := range counts {
		if n > bestN || n == bestN && v < best {
			best = v
			bestN = n
		}
	}
	return best
}

func categories(vals []float64) []float64 {
	seen := make(map[float64]bool)
	var out []float64
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}
