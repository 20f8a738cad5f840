package dataset

import (
	"fmt"
	"strconv"
)

// Dataset is an in-memory table of cell text. Cells stay strings so the
// file content survives untouched; numeric access goes through the
// NM-TRAN conversion rules on demand.
type Dataset struct {
	columns []string
	rows    [][]string
}

// New builds a dataset from ordered column names and rows. Every row must
// have one cell per column.
func New(columns []string, rows [][]string) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("dataset needs at least one column")
	}
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c] {
			return nil, fmt.Errorf("duplicate column %s", c)
		}
		seen[c] = true
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i, len(r), len(columns))
		}
	}
	return &Dataset{columns: append([]string(nil), columns...), rows: rows}, nil
}

// Columns returns the column names in order.
func (d *Dataset) Columns() []string {
	return append([]string(nil), d.columns...)
}

// NRows returns the number of data rows.
func (d *Dataset) NRows() int { return len(d.rows) }

// Rows returns the underlying rows. The slice is shared; callers that
// mutate it should copy first.
func (d *Dataset) Rows() [][]string { return d.rows }

// ColumnIndex returns the position of a named column.
func (d *Dataset) ColumnIndex(name string) (int, bool) {
	for i, c := range d.columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// Cell returns the text of one cell.
func (d *Dataset) Cell(row int, column string) (string, error) {
	i, ok := d.ColumnIndex(column)
	if !ok {
		return "", fmt.Errorf("no column %s", column)
	}
	if row < 0 || row >= len(d.rows) {
		return "", fmt.Errorf("row %d out of range", row)
	}
	return d.rows[row][i], nil
}

// Column returns the text of a whole column.
func (d *Dataset) Column(name string) ([]string, error) {
	i, ok := d.ColumnIndex(name)
	if !ok {
		return nil, fmt.Errorf("no column %s", name)
	}
	out := make([]string, len(d.rows))
	for r, row := range d.rows {
		out[r] = row[i]
	}
	return out, nil
}

// Float converts one cell with the NM-TRAN number rules.
func (d *Dataset) Float(row int, column string) (float64, error) {
	cell, err := d.Cell(row, column)
	if err != nil {
		return 0, err
	}
	return ConvertFortranNumber(cell)
}

// FloatColumn converts a whole column with the NM-TRAN number rules.
func (d *Dataset) FloatColumn(name string) ([]float64, error) {
	cells, err := d.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for i, c := range cells {
		v, err := ConvertFortranNumber(c)
		if err != nil {
			return nil, &DatasetError{Message: fmt.Sprintf("column %s: %v", name, err)}
		}
		out[i] = v
	}
	return out, nil
}

// DropColumns returns a copy of the dataset without the named columns.
// Unknown names are ignored.
func (d *Dataset) DropColumns(names ...string) *Dataset {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	var cols []string
	var keep []int
	for i, c := range d.columns {
		if !drop[c] {
			cols = append(cols, c)
			keep = append(keep, i)
		}
	}
	rows := make([][]string, len(d.rows))
	for r, row := range d.rows {
		out := make([]string, len(keep))
		for j, i := range keep {
			out[j] = row[i]
		}
		rows[r] = out
	}
	return &Dataset{columns: cols, rows: rows}
}

// formatCell renders a float back to cell text without trailing noise.
func formatCell(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
