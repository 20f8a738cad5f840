package results

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// residualColumns and predictionColumns are the $TABLE columns that feed
// model evaluation.
var residualColumns = []string{"RES", "WRES", "CWRES", "CWRESI"}
var predictionColumns = []string{"PRED", "CPRED", "IPRED", "CIPREDI"}

// TableOutputOptions describes how a $TABLE output file was written.
// NOTITLE drops the "TABLE NO." line, NOLABEL the column header line;
// NOHEADER in the control stream means both.
type TableOutputOptions struct {
	NoTitle bool
	NoLabel bool
	// Columns supplies names when the file carries no label line. With a
	// label line present these are ignored.
	Columns []string
}

// ParseTableOutput reads a $TABLE output file, tolerating the header
// variants $TABLE can be asked to omit.
func ParseTableOutput(r io.Reader, opts TableOutputOptions) (*Table, error) {
	if !opts.NoTitle && !opts.NoLabel {
		tables, err := ParseTables(r)
		if err != nil {
			return nil, err
		}
		if len(tables) == 0 {
			return nil, fmt.Errorf("empty table file")
		}
		return tables[0], nil
	}
	t := &Table{Number: 1}
	if !opts.NoLabel {
		t.Columns = nil // read from the first line below
	} else {
		if len(opts.Columns) == 0 {
			return nil, fmt.Errorf("no column names for an unlabeled table")
		}
		t.Columns = append([]string(nil), opts.Columns...)
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(strings.TrimRight(sc.Text(), "\r"))
		if line == "" || strings.HasPrefix(line, "TABLE NO.") {
			continue
		}
		fields := strings.Fields(line)
		if t.Columns == nil {
			t.Columns = fields
			continue
		}
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad value %q", lineno, f)
			}
			row[i] = v
		}
		if len(row) != len(t.Columns) {
			return nil, fmt.Errorf("line %d: %d values for %d columns", lineno, len(row), len(t.Columns))
		}
		t.rows = append(t.rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseTableOutputFile reads a $TABLE output file from disk.
func ParseTableOutputFile(path string, opts TableOutputOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseTableOutput(f, opts)
}

// ObsRecord is one observation row keyed by subject and time.
type ObsRecord struct {
	ID     float64
	Time   float64
	Values map[string]float64
}

// Residuals extracts the residual columns present in a $TABLE output,
// keyed by ID and TIME. Rows where every residual is zero are dose
// records and are dropped.
func Residuals(t *Table) ([]ObsRecord, error) {
	return extract(t, residualColumns, true)
}

// Predictions extracts the prediction columns keyed by ID and TIME.
func Predictions(t *Table) ([]ObsRecord, error) {
	return extract(t, predictionColumns, false)
}

func extract(t *Table, wanted []string, dropAllZero bool) ([]ObsRecord, error) {
	id, ok := t.ColumnIndex("ID")
	if !ok {
		return nil, fmt.Errorf("table has no ID column")
	}
	tm, ok := t.ColumnIndex("TIME")
	if !ok {
		return nil, fmt.Errorf("table has no TIME column")
	}
	cols := map[string]int{}
	for _, name := range wanted {
		if i, ok := t.ColumnIndex(name); ok {
			cols[name] = i
		}
	}
	if len(cols) == 0 {
		return nil, nil
	}
	var out []ObsRecord
	for _, row := range t.rows {
		rec := ObsRecord{ID: row[id], Time: row[tm], Values: make(map[string]float64, len(cols))}
		allZero := true
		for name, i := range cols {
			rec.Values[name] = row[i]
			if row[i] != 0 {
				allZero = false
			}
		}
		if dropAllZero && allZero {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
