package dataset

import "fmt"

// DatasetError is a fatal problem with a dataset file: malformed separators,
// a blank line inside the data, or a cell that cannot be parsed where a
// number is required.
type DatasetError struct {
	Line    int // 1-based line in the file, 0 when not tied to a line
	Message string
}

func (e *DatasetError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("dataset error at line %d: %s", e.Line, e.Message)
	}
	return "dataset error: " + e.Message
}

// DatasetWarning is a recoverable irregularity: short or long rows,
// renumbered IDs. The reader repairs the data and reports what it did.
type DatasetWarning struct {
	Line    int
	Message string
}

func (w DatasetWarning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("line %d: %s", w.Line, w.Message)
	}
	return w.Message
}
