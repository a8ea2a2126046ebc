// Package reconcile collapses repeated column names into one column.
//
// Repeats come from concatenating per-room tables that share sensor names or
// from files carrying the same device twice. All-numeric groups combine by
// row-wise maximum, which is a logical OR for 0/1 flags; any other group takes
// the first non-missing value scanning left to right.
package reconcile

import (
	"room_occupancy/table"
)

// Duplicates returns the names that occur more than once, in first-seen order
func Duplicates(t *table.Table) []string {
	seen := make(map[string]int, len(t.Columns))
	var dups []string
	for _, c := range t.Columns {
		seen[c.Name]++
		if seen[c.Name] == 2 {
			dups = append(dups, c.Name)
		}
	}
	return dups
}

// Reconcile returns a table whose column names are unique. Columns appear in
// the order of their first occurrence and the row index is unchanged.
func Reconcile(t *table.Table) *table.Table {
	groups := make(map[string][]*table.Column, len(t.Columns))
	var order []string
	for _, c := range t.Columns {
		if _, ok := groups[c.Name]; !ok {
			order = append(order, c.Name)
		}
		groups[c.Name] = append(groups[c.Name], c)
	}

	out := table.New(t.Index)
	for _, name := range order {
		group := groups[name]
		switch {
		case len(group) == 1:
			out.Columns = append(out.Columns, group[0])
		case allNumeric(group):
			out.Columns = append(out.Columns, &table.Column{Name: name, Values: maxCombine(group, t.Len())})
		default:
			out.Columns = append(out.Columns, &table.Column{Name: name, Values: firstObserved(group, t.Len())})
		}
	}
	return out
}

func allNumeric(group []*table.Column) bool {
	for _, c := range group {
		if !c.IsNumeric() {
			return false
		}
	}
	return true
}

func maxCombine(group []*table.Column, rows int) []table.Value {
	out := make([]table.Value, rows)
	for i := 0; i < rows; i++ {
		have := false
		var best float64
		for _, c := range group {
			f, ok := c.Values[i].Float()
			if !ok {
				continue
			}
			if !have || f > best {
				best = f
				have = true
			}
		}
		if have {
			out[i] = table.Number(best)
		}
	}
	return out
}

func firstObserved(group []*table.Column, rows int) []table.Value {
	out := make([]table.Value, rows)
	for i := 0; i < rows; i++ {
		for _, c := range group {
			if !c.Values[i].IsMissing() {
				out[i] = c.Values[i]
				break
			}
		}
	}
	return out
}
