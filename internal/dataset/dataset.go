// Package dataset provides the typed columnar view that rules evaluate.
//
// A Dataset is produced by a driver (see package connector) or built
// directly in tests with FromRows. It is immutable after construction and
// safe for concurrent reads, which lets the orchestrator evaluate rules in
// parallel without copying.
package dataset

import (
	"fmt"

	"github.com/roach88/pipeaudit/internal/ir"
)

// Column is a named sequence of nullable scalar values.
type Column struct {
	Name   string
	Values []ir.Value
}

// Len returns the number of values in the column.
func (c Column) Len() int {
	return len(c.Values)
}

// NullCount returns the number of null values in the column.
func (c Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if ir.IsNull(v) {
			n++
		}
	}
	return n
}

// Dataset is an ordered set of equal-length columns.
type Dataset struct {
	columns []Column
	index   map[string]int
	rows    int
}

// New builds a dataset from columns. All columns must have the same length
// and names must be unique.
func New(columns ...Column) (*Dataset, error) {
	d := &Dataset{
		columns: make([]Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if _, dup := d.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if i == 0 {
			d.rows = c.Len()
		} else if c.Len() != d.rows {
			return nil, fmt.Errorf("column %q has %d values, expected %d", c.Name, c.Len(), d.rows)
		}
		d.index[c.Name] = len(d.columns)
		d.columns = append(d.columns, c)
	}
	return d, nil
}

// Empty returns a dataset with no columns and no rows.
func Empty() *Dataset {
	return &Dataset{index: map[string]int{}}
}

// FromRows builds a dataset from row-major Go scalars. Each row must have
// one entry per name; values are converted with ir.ValueOf.
func FromRows(names []string, rows [][]any) (*Dataset, error) {
	cols := make([]Column, len(names))
	for i, name := range names {
		cols[i] = Column{Name: name, Values: make([]ir.Value, len(rows))}
	}
	for r, row := range rows {
		if len(row) != len(names) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", r, len(row), len(names))
		}
		for i, v := range row {
			cols[i].Values[r] = ir.ValueOf(v)
		}
	}
	return New(cols...)
}

// MustFromRows is like FromRows but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFromRows(names []string, rows [][]any) *Dataset {
	d, err := FromRows(names, rows)
	if err != nil {
		panic(err)
	}
	return d
}

// Rows returns the row count.
func (d *Dataset) Rows() int {
	return d.rows
}

// Width returns the column count.
func (d *Dataset) Width() int {
	return len(d.columns)
}

// Names returns column names in source order.
func (d *Dataset) Names() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (d *Dataset) Column(name string) (Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return Column{}, false
	}
	return d.columns[i], true
}

// Columns returns all columns in source order.
func (d *Dataset) Columns() []Column {
	return d.columns
}

// Row returns the values of row r in column order.
func (d *Dataset) Row(r int) []ir.Value {
	row := make([]ir.Value, len(d.columns))
	for i, c := range d.columns {
		row[i] = c.Values[r]
	}
	return row
}
