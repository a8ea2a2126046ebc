// Package resample re-bases irregular sensor tables onto a fixed time grid.
package resample

import (
	"time"

	"room_occupancy/table"
)

// Options controls the grid
type Options struct {
	Period time.Duration
}

// Grid returns every bucket start from start to end inclusive
func Grid(start, end time.Time, period time.Duration) []time.Time {
	if end.Before(start) {
		return nil
	}
	n := int(end.Sub(start)/period) + 1
	grid := make([]time.Time, n)
	for i := range grid {
		grid[i] = start.Add(time.Duration(i) * period)
	}
	return grid
}

// Resample returns t on a uniform grid of opts.Period. Numeric columns take
// the bucket mean; categorical columns hold the last value seen at or before
// the bucket end. The input table is not modified.
func Resample(t *table.Table, opts Options) *table.Table {
	period := opts.Period
	if period <= 0 {
		period = time.Second
	}
	if t.Len() == 0 {
		out := table.New(nil)
		for _, c := range t.Columns {
			out.Columns = append(out.Columns, &table.Column{Name: c.Name})
		}
		return out
	}

	start := t.Index[0].Truncate(period)
	grid := Grid(start, t.Index[len(t.Index)-1].Truncate(period), period)
	bucket := make([]int, t.Len())
	for i, ts := range t.Index {
		bucket[i] = int(ts.Truncate(period).Sub(start) / period)
	}

	out := table.New(grid)
	for _, c := range t.Columns {
		var values []table.Value
		if c.IsNumeric() {
			values = meanBuckets(c.Values, bucket, len(grid))
		} else {
			values = holdBuckets(c.Values, bucket, len(grid))
		}
		out.Columns = append(out.Columns, &table.Column{Name: c.Name, Values: values})
	}
	return out
}

func meanBuckets(raw []table.Value, bucket []int, n int) []table.Value {
	sums := make([]float64, n)
	counts := make([]int, n)
	for i, v := range raw {
		if f, ok := v.Float(); ok {
			sums[bucket[i]] += f
			counts[bucket[i]]++
		}
	}
	out := make([]table.Value, n)
	for b := range out {
		if counts[b] > 0 {
			out[b] = table.Number(sums[b] / float64(counts[b]))
		}
	}
	return out
}

func holdBuckets(raw []table.Value, bucket []int, n int) []table.Value {
	out := make([]table.Value, n)
	for i, v := range raw {
		if !v.IsMissing() {
			out[bucket[i]] = v
		}
	}
	var last table.Value
	for b := range out {
		if out[b].IsMissing() {
			out[b] = last
		} else {
			last = out[b]
		}
	}
	return out
}

// Fill forward-fills the numeric columns of an already resampled table across
// at most limit consecutive empty buckets. It runs after Resample so that
// resampling a gridded table again leaves it unchanged. Zero disables filling.
func Fill(t *table.Table, limit int) *table.Table {
	out := table.New(t.Index)
	for _, c := range t.Columns {
		if limit > 0 && c.IsNumeric() {
			out.Columns = append(out.Columns, &table.Column{Name: c.Name, Values: ForwardFill(c.Values, limit)})
			continue
		}
		out.Columns = append(out.Columns, c.Clone())
	}
	return out
}

// ForwardFill carries the last present value across at most limit
// consecutive missing cells; longer gaps stay missing after the limit.
func ForwardFill(values []table.Value, limit int) []table.Value {
	out := make([]table.Value, len(values))
	copy(out, values)
	var last table.Value
	gap := 0
	for i, v := range out {
		if !v.IsMissing() {
			last = v
			gap = 0
			continue
		}
		gap++
		if !last.IsMissing() && gap <= limit {
			out[i] = last
		}
	}
	return out
}

// Align outer-joins already resampled tables onto one continuous grid that
// spans the union of their time ranges. Columns keep their table order and
// names may repeat; rows with no data in a table are missing for its columns.
func Align(tables []*table.Table, period time.Duration) *table.Table {
	if period <= 0 {
		period = time.Second
	}

	var start, end time.Time
	first := true
	for _, t := range tables {
		if t.Len() == 0 {
			continue
		}
		s := t.Index[0].Truncate(period)
		e := t.Index[t.Len()-1].Truncate(period)
		if first || s.Before(start) {
			start = s
		}
		if first || e.After(end) {
			end = e
		}
		first = false
	}

	var grid []time.Time
	if !first {
		grid = Grid(start, end, period)
	}
	out := table.New(grid)

	for _, t := range tables {
		pos := make([]int, t.Len())
		for i, ts := range t.Index {
			pos[i] = int(ts.Truncate(period).Sub(start) / period)
		}
		for _, c := range t.Columns {
			values := make([]table.Value, len(grid))
			for i, v := range c.Values {
				values[pos[i]] = v
			}
			out.Columns = append(out.Columns, &table.Column{Name: c.Name, Values: values})
		}
	}
	return out
}
