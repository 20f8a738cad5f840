package dataset

import (
	"fmt"
	"strings"

	"github.com/pharmgo/pharmgo/pkg/parser"
	"github.com/pharmgo/pharmgo/pkg/token"
)

// Filter applies $DATA row filters and returns the surviving rows as a new
// dataset. Rows matching any IGNORE condition are dropped, then only rows
// matching every ACCEPT condition are kept. A numeric comparison against a
// cell that does not parse as a number is a *DatasetError.
func Filter(ds *Dataset, ignore, accept []parser.Filter) (*Dataset, error) {
	rows := make([][]string, 0, len(ds.rows))
	for r := range ds.rows {
		keep := true
		for _, f := range ignore {
			m, err := matchRow(ds, r, f)
			if err != nil {
				return nil, err
			}
			if m {
				keep = false
				break
			}
		}
		if keep {
			for _, f := range accept {
				m, err := matchRow(ds, r, f)
				if err != nil {
					return nil, err
				}
				if !m {
					keep = false
					break
				}
			}
		}
		if keep {
			rows = append(rows, ds.rows[r])
		}
	}
	return &Dataset{columns: ds.columns, rows: rows}, nil
}

func matchRow(ds *Dataset, row int, f parser.Filter) (bool, error) {
	i, ok := ds.ColumnIndex(f.Column)
	if !ok {
		return false, fmt.Errorf("filter on unknown column %s", f.Column)
	}
	cell := ds.rows[row][i]
	switch f.Op {
	case token.OpStrEq:
		return strings.TrimSpace(cell) == f.Value, nil
	case token.OpStrNe:
		return strings.TrimSpace(cell) != f.Value, nil
	}
	cv, err := ConvertFortranNumber(cell)
	if err != nil {
		return false, &DatasetError{Message: fmt.Sprintf(
			"numeric filter %s on non-numeric value %q", f, cell)}
	}
	fv, err := ConvertFortranNumber(f.Value)
	if err != nil {
		return false, &DatasetError{Message: fmt.Sprintf(
			"filter %s: %v", f, err)}
	}
	switch f.Op {
	case token.OpEq, token.OpEqSign:
		return cv == fv, nil
	case token.OpNe, token.OpNeSign:
		return cv != fv, nil
	case token.OpLt, token.OpLtSign:
		return cv < fv, nil
	case token.OpGt, token.OpGtSign:
		return cv > fv, nil
	case token.OpLe, token.OpLeSign:
		return cv <= fv, nil
	case token.OpGe, token.OpGeSign:
		return cv >= fv, nil
	}
	return false, fmt.Errorf("unsupported filter operator %s", f.Op)
}
