// Package table holds the time-indexed wide table shared by every stage of
// the merge-and-label pipeline.
//
// A Table is a strictly increasing slice of instants plus an ordered list of
// named columns. Column names may repeat until the table has been reconciled.
package table

import (
	"fmt"
	"sort"
	"time"
)

// Column is one named series aligned with the table index
type Column struct {
	Name   string
	Values []Value
}

// IsNumeric reports whether every present cell is a number or bool.
// An all-missing column counts as numeric.
func (c *Column) IsNumeric() bool {
	return isNumeric(c.Values)
}

// Floats returns the column as float64 with ok=false for non-numeric cells
func (c *Column) Floats() ([]float64, []bool) {
	vals := make([]float64, len(c.Values))
	ok := make([]bool, len(c.Values))
	for i, v := range c.Values {
		vals[i], ok[i] = v.Float()
	}
	return vals, ok
}

// Count returns the number of non-missing cells
func (c *Column) Count() int {
	n := 0
	for _, v := range c.Values {
		if !v.IsMissing() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the column
func (c *Column) Clone() *Column {
	vals := make([]Value, len(c.Values))
	copy(vals, c.Values)
	return &Column{Name: c.Name, Values: vals}
}

// Table is a wide, time-indexed table
type Table struct {
	Index   []time.Time
	Columns []*Column
}

// New creates an empty table over the given index
func New(index []time.Time) *Table {
	return &Table{Index: index}
}

// Len returns the number of rows
func (t *Table) Len() int { return len(t.Index) }

// AddColumn appends a column; its length must match the index
func (t *Table) AddColumn(name string, values []Value) error {
	if len(values) != len(t.Index) {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), len(t.Index))
	}
	t.Columns = append(t.Columns, &Column{Name: name, Values: values})
	return nil
}

// Column returns the first column with the given name
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Names returns the column names in order
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	idx := make([]time.Time, len(t.Index))
	copy(idx, t.Index)
	out := &Table{Index: idx, Columns: make([]*Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = c.Clone()
	}
	return out
}

// WithColumns returns a new table sharing this table's index and columns
// followed by extra. Neither table's column slice is modified.
func (t *Table) WithColumns(extra []*Column) *Table {
	cols := make([]*Column, 0, len(t.Columns)+len(extra))
	cols = append(cols, t.Columns...)
	cols = append(cols, extra...)
	return &Table{Index: t.Index, Columns: cols}
}

// Rename returns a shallow copy with every column renamed by fn
func (t *Table) Rename(fn func(string) string) *Table {
	out := &Table{Index: t.Index, Columns: make([]*Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = &Column{Name: fn(c.Name), Values: c.Values}
	}
	return out
}

// Drop returns a shallow copy without the named columns
func (t *Table) Drop(names ...string) *Table {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	out := &Table{Index: t.Index}
	for _, c := range t.Columns {
		if !skip[c.Name] {
			out.Columns = append(out.Columns, c)
		}
	}
	return out
}

// FilterRows returns a copy keeping only the rows where keep returns true
func (t *Table) FilterRows(keep func(i int) bool) *Table {
	var rows []int
	for i := range t.Index {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	out := &Table{Index: make([]time.Time, len(rows)), Columns: make([]*Column, len(t.Columns))}
	for j, r := range rows {
		out.Index[j] = t.Index[r]
	}
	for ci, c := range t.Columns {
		vals := make([]Value, len(rows))
		for j, r := range rows {
			vals[j] = c.Values[r]
		}
		out.Columns[ci] = &Column{Name: c.Name, Values: vals}
	}
	return out
}

// SortDedup sorts rows by time and drops earlier rows that share a timestamp
// with a later one (last write wins). It modifies t in place.
func (t *Table) SortDedup() {
	order := make([]int, len(t.Index))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return t.Index[order[a]].Before(t.Index[order[b]])
	})

	var keep []int
	for k, r := range order {
		if k+1 < len(order) && t.Index[order[k+1]].Equal(t.Index[r]) {
			continue
		}
		keep = append(keep, r)
	}

	idx := make([]time.Time, len(keep))
	for j, r := range keep {
		idx[j] = t.Index[r]
	}
	for _, c := range t.Columns {
		vals := make([]Value, len(keep))
		for j, r := range keep {
			vals[j] = c.Values[r]
		}
		c.Values = vals
	}
	t.Index = idx
}
