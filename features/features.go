// Package features derives rolling-window statistics from numeric sensor
// columns.
package features

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"room_occupancy/table"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Statistic suffixes; a feature is named <column>__<stat><window>
const (
	StatMean = "mean"
	StatStd  = "std"
	StatDiff = "diff"
)

// DefaultWindows mirrors the windows used for the testbed datasets
var DefaultWindows = []time.Duration{5 * time.Second, 10 * time.Second, 30 * time.Second, 60 * time.Second}

// Name returns the feature column name for a column, statistic and window
func Name(column, statistic string, window time.Duration) string {
	return fmt.Sprintf("%s__%s%s", column, statistic, windowTag(window))
}

func windowTag(w time.Duration) string {
	if w%time.Second == 0 {
		return fmt.Sprintf("%ds", int64(w/time.Second))
	}
	return w.String()
}

type job struct {
	col    *table.Column
	window time.Duration
	slot   int
}

// Augment returns a copy of t with, for every numeric column and window, the
// rolling mean, the rolling sample standard deviation and the rolling mean of
// the row-to-row difference. Windows cover the elapsed interval (t-w, t].
// All derived columns are computed first and appended in one step; t itself
// is left untouched.
func Augment(ctx context.Context, t *table.Table, windows []time.Duration) (*table.Table, error) {
	var numeric []*table.Column
	for _, c := range t.Columns {
		if c.IsNumeric() {
			numeric = append(numeric, c)
		}
	}

	// layout per window: means, stds, diffs
	perWindow := 3 * len(numeric)
	extra := make([]*table.Column, perWindow*len(windows))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for wi, w := range windows {
		for ci, c := range numeric {
			j := job{col: c, window: w, slot: wi*perWindow + ci}
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				mean, std, diff := rollColumn(t.Index, j.col.Values, j.window)
				extra[j.slot] = &table.Column{Name: Name(j.col.Name, StatMean, j.window), Values: mean}
				extra[j.slot+len(numeric)] = &table.Column{Name: Name(j.col.Name, StatStd, j.window), Values: std}
				extra[j.slot+2*len(numeric)] = &table.Column{Name: Name(j.col.Name, StatDiff, j.window), Values: diff}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("feature augmentation: %w", err)
	}

	return t.WithColumns(extra), nil
}

func rollColumn(index []time.Time, values []table.Value, w time.Duration) (mean, std, diff []table.Value) {
	x, ok := floats(values)

	d := make([]float64, len(x))
	dok := make([]bool, len(x))
	for i := 1; i < len(x); i++ {
		if ok[i] && ok[i-1] {
			d[i] = x[i] - x[i-1]
			dok[i] = true
		}
	}

	mean = make([]table.Value, len(x))
	std = make([]table.Value, len(x))
	diff = make([]table.Value, len(x))
	table.Rolling(index, w, func(i, lo int) {
		buf := collect(x, ok, lo, i)
		switch len(buf) {
		case 0:
		case 1:
			mean[i] = table.Number(buf[0])
		default:
			m, s := stat.MeanStdDev(buf, nil)
			mean[i] = table.Number(m)
			std[i] = table.Number(s)
		}
		if dbuf := collect(d, dok, lo, i); len(dbuf) > 0 {
			diff[i] = table.Number(stat.Mean(dbuf, nil))
		}
	})
	return mean, std, diff
}

func floats(values []table.Value) ([]float64, []bool) {
	x := make([]float64, len(values))
	ok := make([]bool, len(values))
	for i, v := range values {
		x[i], ok[i] = v.Float()
	}
	return x, ok
}

func collect(x []float64, ok []bool, lo, hi int) []float64 {
	buf := make([]float64, 0, hi-lo+1)
	for k := lo; k <= hi; k++ {
		if ok[k] {
			buf = append(buf, x[k])
		}
	}
	return buf
}
