package results

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// NONMEM marks special rows in .ext files with large negative iteration
// numbers.
const (
	iterFinal = -1000000000 // final estimates, final OFV
	iterSE    = -1000000001 // standard errors
	iterFixed = -1000000006 // 1 for fixed parameters
)

// OFVPoint is one step of the objective function trajectory.
type OFVPoint struct {
	Iteration int
	OFV       float64
}

// ExtStep holds the parsed content of one estimation step's .ext table.
type ExtStep struct {
	Method         string // table title, e.g. "First Order Conditional Estimation"
	Trajectory     []OFVPoint
	FinalOFV       float64
	Estimates      map[string]float64 // by NONMEM name: THETA1, OMEGA(1,1), ...
	StandardErrors map[string]float64 // nil when the covariance step gave none
	Fixed          map[string]bool
}

// ParseExt reads a NONMEM .ext file, one ExtStep per table.
func ParseExt(r io.Reader) ([]*ExtStep, error) {
	tables, err := ParseTables(r)
	if err != nil {
		return nil, err
	}
	steps := make([]*ExtStep, 0, len(tables))
	for _, t := range tables {
		s, err := extStep(t)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// ParseExtFile reads a .ext file from disk.
func ParseExtFile(path string) ([]*ExtStep, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseExt(f)
}

func extStep(t *Table) (*ExtStep, error) {
	iter, ok := t.ColumnIndex("ITERATION")
	if !ok {
		return nil, fmt.Errorf("table %d: no ITERATION column", t.Number)
	}
	obj := -1
	for i, c := range t.Columns {
		if c == "OBJ" || strings.Contains(c, "OBJECTIVE") {
			obj = i
		}
	}
	if obj < 0 {
		return nil, fmt.Errorf("table %d: no objective column", t.Number)
	}
	s := &ExtStep{Method: t.Title}
	for _, row := range t.rows {
		switch it := int(row[iter]); {
		case it >= 0:
			s.Trajectory = append(s.Trajectory, OFVPoint{Iteration: it, OFV: row[obj]})
		case it == iterFinal:
			s.FinalOFV = row[obj]
			s.Estimates = paramRow(t, row, iter, obj)
		case it == iterSE:
			s.StandardErrors = paramRow(t, row, iter, obj)
		case it == iterFixed:
			s.Fixed = make(map[string]bool)
			for name, v := range paramRow(t, row, iter, obj) {
				s.Fixed[name] = v != 0
			}
		}
	}
	if s.Estimates == nil {
		return nil, fmt.Errorf("table %d: no final estimate row", t.Number)
	}
	return s, nil
}

func paramRow(t *Table, row []float64, iter, obj int) map[string]float64 {
	out := make(map[string]float64, len(row)-2)
	for i, v := range row {
		if i == iter || i == obj {
			continue
		}
		out[t.Columns[i]] = v
	}
	return out
}

// TranslateName turns a NONMEM .ext column name into the model parameter
// name: THETA1 becomes THETA(1), the matrix forms pass through.
func TranslateName(name string) string {
	for _, prefix := range []string{"THETA", "OMEGA", "SIGMA"} {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok || rest == "" {
			continue
		}
		if rest[0] == '(' {
			return name
		}
		return prefix + "(" + rest + ")"
	}
	return name
}
