package results

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Table is one "TABLE NO. n" block from a NONMEM table file (.ext, .cov,
// .cor, .coi, .phi or $TABLE output).
type Table struct {
	Number     int
	Subproblem int    // 0 when absent
	Title      string // rest of the header line
	Columns    []string
	RowNames   []string // set when the first column is NAME (.cov/.cor/.coi)
	rows       [][]float64
}

var tableHeaderRe = regexp.MustCompile(`^TABLE NO\.\s+(\d+)(?::\s*(.*))?$`)
var subproblemRe = regexp.MustCompile(`SUBPROBLEM NO\.:\s*(\d+)`)

// ParseTables reads every table block in a NONMEM table file. Lines that
// parse as neither a header nor a float row are an error.
func ParseTables(r io.Reader) ([]*Table, error) {
	var tables []*Table
	var cur *Table
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimRight(sc.Text(), " \r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := tableHeaderRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			n, _ := strconv.Atoi(m[1])
			cur = &Table{Number: n, Title: strings.TrimSpace(m[2])}
			if sm := subproblemRe.FindStringSubmatch(line); sm != nil {
				cur.Subproblem, _ = strconv.Atoi(sm[1])
			}
			tables = append(tables, cur)
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("line %d: data before any TABLE NO. header", lineno)
		}
		fields := strings.Fields(line)
		if cur.Columns == nil {
			cur.Columns = fields
			continue
		}
		want := len(cur.Columns)
		if cur.Columns[0] == "NAME" {
			// matrix tables label each row with a parameter name
			cur.RowNames = append(cur.RowNames, fields[0])
			fields = fields[1:]
			want--
		}
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad value %q", lineno, f)
			}
			row[i] = v
		}
		if len(row) != want {
			return nil, fmt.Errorf("line %d: %d values for %d columns", lineno, len(row), want)
		}
		cur.rows = append(cur.rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return tables, nil
}

// ParseTableFile reads the tables of a file on disk.
func ParseTableFile(path string) ([]*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseTables(f)
}

// NRows returns the number of data rows.
func (t *Table) NRows() int { return len(t.rows) }

// Rows returns the raw float rows.
func (t *Table) Rows() [][]float64 { return t.rows }

// ColumnIndex returns the position of a named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// Column returns one column's values.
func (t *Table) Column(name string) ([]float64, bool) {
	i, ok := t.ColumnIndex(name)
	if !ok {
		return nil, false
	}
	out := make([]float64, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[i]
	}
	return out, true
}

// Row returns the first row whose column col equals key.
func (t *Table) Row(col string, key float64) ([]float64, bool) {
	i, ok := t.ColumnIndex(col)
	if !ok {
		return nil, false
	}
	for _, row := range t.rows {
		if row[i] == key {
			return row, true
		}
	}
	return nil, false
}
