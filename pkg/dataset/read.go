package dataset

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadOptions controls how an NM-TRAN dataset file is interpreted.
type ReadOptions struct {
	// Columns are the dataset column names in file order, normally the
	// $INPUT list. Required.
	Columns []string
	// IgnoreChar skips data rows. '@' skips any row whose first non-blank
	// character is alphabetic, which is how header lines are kept out of
	// the data. Any other byte skips rows starting with that byte. Zero
	// disables skipping.
	IgnoreChar byte
	// NullValue replaces empty and missing cells. Defaults to "0".
	NullValue string
	// Raw keeps cells as the file text without number conversion.
	Raw bool
	// ParseColumns are converted to numbers even in raw mode.
	ParseColumns []string
	// DropColumns are removed from the result.
	DropColumns []string
	// IDColumn enables renumbering of non-unique IDs. IDs that reappear
	// after an intervening different ID are given fresh sequential numbers
	// under a warning. Empty disables the check.
	IDColumn string
}

// ReadFile reads an NM-TRAN dataset from disk.
func ReadFile(path string, opts ReadOptions) (*Dataset, []DatasetWarning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return Read(f, opts)
}

// Read parses an NM-TRAN dataset. Structural problems (mixed separators,
// blank lines inside the data, unparseable numeric cells) are returned as
// *DatasetError; repairable irregularities come back as warnings.
func Read(r io.Reader, opts ReadOptions) (*Dataset, []DatasetWarning, error) {
	if len(opts.Columns) == 0 {
		return nil, nil, fmt.Errorf("no columns given")
	}
	if opts.NullValue == "" {
		opts.NullValue = "0"
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	lines := strings.Split(string(raw), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	var warnings []DatasetWarning
	ncols := len(opts.Columns)
	var rows [][]string
	for li, line := range lines {
		lineno := li + 1
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			return nil, nil, &DatasetError{Line: lineno, Message: "blank line inside data"}
		}
		if skipRow(line, opts.IgnoreChar) {
			continue
		}
		cells, err := splitRow(line, lineno)
		if err != nil {
			return nil, nil, err
		}
		if len(cells) < ncols {
			warnings = append(warnings, DatasetWarning{Line: lineno,
				Message: fmt.Sprintf("row has %d values, padded to %d columns", len(cells), ncols)})
			for len(cells) < ncols {
				cells = append(cells, opts.NullValue)
			}
		} else if len(cells) > ncols {
			warnings = append(warnings, DatasetWarning{Line: lineno,
				Message: fmt.Sprintf("row has %d values, truncated to %d columns", len(cells), ncols)})
			cells = cells[:ncols]
		}
		for i, c := range cells {
			if c == "" {
				cells[i] = opts.NullValue
			}
		}
		rows = append(rows, cells)
	}

	parse := parseMask(opts)
	for _, row := range rows {
		for i, c := range row {
			if !parse[i] {
				continue
			}
			v, err := ConvertFortranNumber(c)
			if err != nil {
				return nil, nil, &DatasetError{
					Message: fmt.Sprintf("column %s: %v", opts.Columns[i], err)}
			}
			row[i] = formatCell(v)
		}
	}

	ds, err := New(opts.Columns, rows)
	if err != nil {
		return nil, nil, err
	}
	if opts.IDColumn != "" {
		if w := renumberIDs(ds, opts.IDColumn); w != nil {
			warnings = append(warnings, *w)
		}
	}
	if len(opts.DropColumns) > 0 {
		ds = ds.DropColumns(opts.DropColumns...)
	}
	return ds, warnings, nil
}

// parseMask marks which columns get number conversion: all non-dropped
// columns normally, only the requested ones in raw mode.
func parseMask(opts ReadOptions) []bool {
	mask := make([]bool, len(opts.Columns))
	if opts.Raw {
		for _, name := range opts.ParseColumns {
			for i, c := range opts.Columns {
				if c == name {
					mask[i] = true
				}
			}
		}
		return mask
	}
	drop := make(map[string]bool, len(opts.DropColumns))
	for _, n := range opts.DropColumns {
		drop[n] = true
	}
	for i, c := range opts.Columns {
		mask[i] = !drop[c]
	}
	return mask
}

func skipRow(line string, ignore byte) bool {
	if ignore == 0 {
		return false
	}
	if ignore == '@' {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			return false
		}
		c := trimmed[0]
		return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
	}
	return line[0] == ignore
}

// splitRow splits one data line on NM-TRAN separators: runs of spaces,
// single tabs, and commas (null items between commas stay empty). A tab
// directly after a space is malformed input.
func splitRow(line string, lineno int) ([]string, error) {
	var cells []string
	var field strings.Builder
	pending := false // a separator ended the previous field
	i := 0
	for i < len(line) {
		switch line[i] {
		case ' ':
			j := i
			for j < len(line) && line[j] == ' ' {
				j++
			}
			if j < len(line) && line[j] == '\t' {
				return nil, &DatasetError{Line: lineno, Message: "tab after space in data row"}
			}
			// Spaces around a comma belong to the comma separator.
			if j < len(line) && line[j] == ',' {
				i = j
				continue
			}
			if field.Len() > 0 {
				cells = append(cells, field.String())
				field.Reset()
				pending = false
			}
			i = j
		case '\t':
			cells = append(cells, field.String())
			field.Reset()
			pending = true
			i++
		case ',':
			cells = append(cells, field.String())
			field.Reset()
			pending = true
			i++
			for i < len(line) && line[i] == ' ' {
				i++
			}
		default:
			field.WriteByte(line[i])
			pending = false
			i++
		}
	}
	if field.Len() > 0 || pending {
		cells = append(cells, field.String())
	}
	return cells, nil
}

// renumberIDs gives every contiguous ID run a fresh sequential number when
// some ID value reappears after a different one.
func renumberIDs(ds *Dataset, column string) *DatasetWarning {
	col, ok := ds.ColumnIndex(column)
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	prev := ""
	unique := true
	for r, row := range ds.rows {
		id := row[col]
		if r == 0 || id != prev {
			if seen[id] {
				unique = false
				break
			}
			seen[id] = true
			prev = id
		}
	}
	if unique {
		return nil
	}
	n := 0
	prev = ""
	for r, row := range ds.rows {
		if r == 0 || row[col] != prev {
			n++
			prev = row[col]
		}
		row[col] = fmt.Sprintf("%d", n)
	}
	return &DatasetWarning{Message: fmt.Sprintf("non-unique values in %s column, individuals renumbered 1..%d", column, n)}
}
