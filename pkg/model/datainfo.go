package model

import (
	"fmt"
	"strings"
)

// ColumnType classifies what a dataset column means to the model.
type ColumnType string

const (
	ColUnknown   ColumnType = "unknown"
	ColID        ColumnType = "id"
	ColIDV       ColumnType = "idv" // independent variable, normally TIME
	ColDV        ColumnType = "dv"
	ColDose      ColumnType = "dose"
	ColEvent     ColumnType = "event"
	ColCovariate ColumnType = "covariate"
)

// ColumnScale is the statistical scale of measurement of a column.
type ColumnScale string

const (
	ScaleNominal  ColumnScale = "nominal"
	ScaleOrdinal  ColumnScale = "ordinal"
	ScaleInterval ColumnScale = "interval"
	ScaleRatio    ColumnScale = "ratio"
)

var knownTypes = map[ColumnType]bool{
	ColUnknown: true, ColID: true, ColIDV: true, ColDV: true,
	ColDose: true, ColEvent: true, ColCovariate: true,
}

var knownScales = map[ColumnScale]bool{
	ScaleNominal: true, ScaleOrdinal: true, ScaleInterval: true, ScaleRatio: true,
}

// ColumnInfo carries metadata for one dataset column.
type ColumnInfo struct {
	Name       string
	typ        ColumnType
	scale      ColumnScale
	continuous bool
	Unit       string
	Drop       bool
	Synonym    string // alternate name from $INPUT A=B
}

// NewColumnInfo creates column metadata with default type unknown and
// ratio scale (continuous).
func NewColumnInfo(name string) (*ColumnInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("column name must not be empty")
	}
	return &ColumnInfo{Name: name, typ: ColUnknown, scale: ScaleRatio, continuous: true}, nil
}

// Type returns the column type.
func (c *ColumnInfo) Type() ColumnType { return c.typ }

// SetType sets the column type, rejecting unknown values.
func (c *ColumnInfo) SetType(t ColumnType) error {
	if !knownTypes[t] {
		return fmt.Errorf("unknown column type %q", t)
	}
	c.typ = t
	return nil
}

// Scale returns the scale of measurement.
func (c *ColumnInfo) Scale() ColumnScale { return c.scale }

// SetScale sets the scale. Nominal and ordinal scales force the column to
// be non-continuous.
func (c *ColumnInfo) SetScale(s ColumnScale) error {
	if !knownScales[s] {
		return fmt.Errorf("unknown column scale %q", s)
	}
	c.scale = s
	if s == ScaleNominal || s == ScaleOrdinal {
		c.continuous = false
	}
	return nil
}

// Continuous reports whether the column holds continuous values.
func (c *ColumnInfo) Continuous() bool { return c.continuous }

// SetContinuous marks the column continuous or discrete. A nominal or
// ordinal column cannot be continuous.
func (c *ColumnInfo) SetContinuous(v bool) error {
	if v && (c.scale == ScaleNominal || c.scale == ScaleOrdinal) {
		return fmt.Errorf("column %s: a %s column cannot be continuous", c.Name, c.scale)
	}
	c.continuous = v
	return nil
}

// IsNumerical reports whether arithmetic on the column is meaningful.
func (c *ColumnInfo) IsNumerical() bool {
	return c.scale == ScaleInterval || c.scale == ScaleRatio
}

func (c *ColumnInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s type=%s scale=%s continuous=%t", c.Name, c.typ, c.scale, c.continuous)
	if c.Drop {
		b.WriteString(" drop")
	}
	return b.String()
}

// DataInfo is the ordered column metadata for a model's dataset,
// constructed from $INPUT.
type DataInfo struct {
	Path    string // dataset path as written in $DATA
	columns []*ColumnInfo
}

// NewDataInfo builds metadata from ordered column infos.
func NewDataInfo(columns ...*ColumnInfo) (*DataInfo, error) {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate column %s", c.Name)
		}
		seen[c.Name] = true
	}
	return &DataInfo{columns: append([]*ColumnInfo(nil), columns...)}, nil
}

// Columns returns the columns in dataset order.
func (di *DataInfo) Columns() []*ColumnInfo {
	return append([]*ColumnInfo(nil), di.columns...)
}

// Names returns the column names in dataset order.
func (di *DataInfo) Names() []string {
	names := make([]string, len(di.columns))
	for i, c := range di.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name or synonym.
func (di *DataInfo) Column(name string) (*ColumnInfo, bool) {
	for _, c := range di.columns {
		if c.Name == name || c.Synonym == name {
			return c, true
		}
	}
	return nil, false
}

// IDColumn returns the name of the id column, defaulting to "ID".
func (di *DataInfo) IDColumn() string {
	for _, c := range di.columns {
		if c.typ == ColID {
			return c.Name
		}
	}
	return "ID"
}

// DVColumn returns the name of the dependent variable column, defaulting
// to "DV".
func (di *DataInfo) DVColumn() string {
	for _, c := range di.columns {
		if c.typ == ColDV {
			return c.Name
		}
	}
	return "DV"
}

// Drop returns a per-column drop mask in dataset order.
func (di *DataInfo) Drop() []bool {
	mask := make([]bool, len(di.columns))
	for i, c := range di.columns {
		mask[i] = c.Drop
	}
	return mask
}
