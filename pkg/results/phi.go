package results

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Individual is one subject's row from a .phi file: the empirical Bayes
// eta estimates, their conditional covariance and the individual OFV.
type Individual struct {
	ID     int
	Etas   []float64
	EtaCov *mat.SymDense
	OFV    float64
}

// PhiStep is one estimation step's .phi table.
type PhiStep struct {
	Method      string
	Individuals []Individual
}

var etaColRe = regexp.MustCompile(`^(?:ETA|PHI)\((\d+)\)$`)
var etcColRe = regexp.MustCompile(`^ETC\((\d+),(\d+)\)$`)

// ParsePhi reads a NONMEM .phi file.
func ParsePhi(r io.Reader) ([]*PhiStep, error) {
	tables, err := ParseTables(r)
	if err != nil {
		return nil, err
	}
	steps := make([]*PhiStep, 0, len(tables))
	for _, t := range tables {
		s, err := phiStep(t)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// ParsePhiFile reads a .phi file from disk.
func ParsePhiFile(path string) ([]*PhiStep, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePhi(f)
}

func phiStep(t *Table) (*PhiStep, error) {
	id, ok := t.ColumnIndex("ID")
	if !ok {
		return nil, fmt.Errorf("table %d: no ID column", t.Number)
	}
	obj := -1
	etaCols := map[int]int{} // eta number -> column
	etcCols := map[[2]int]int{}
	neta := 0
	for i, c := range t.Columns {
		if c == "OBJ" {
			obj = i
			continue
		}
		if m := etaColRe.FindStringSubmatch(c); m != nil {
			n, _ := strconv.Atoi(m[1])
			etaCols[n] = i
			if n > neta {
				neta = n
			}
			continue
		}
		if m := etcColRe.FindStringSubmatch(c); m != nil {
			r, _ := strconv.Atoi(m[1])
			cc, _ := strconv.Atoi(m[2])
			etcCols[[2]int{r, cc}] = i
		}
	}
	if obj < 0 {
		return nil, fmt.Errorf("table %d: no OBJ column", t.Number)
	}
	s := &PhiStep{Method: t.Title}
	for _, row := range t.rows {
		ind := Individual{ID: int(row[id]), OFV: row[obj]}
		ind.Etas = make([]float64, neta)
		for n, col := range etaCols {
			ind.Etas[n-1] = row[col]
		}
		if len(etcCols) > 0 {
			cov := mat.NewSymDense(neta, nil)
			for rc, col := range etcCols {
				cov.SetSym(rc[0]-1, rc[1]-1, row[col])
			}
			ind.EtaCov = cov
		}
		s.Individuals = append(s.Individuals, ind)
	}
	return s, nil
}
