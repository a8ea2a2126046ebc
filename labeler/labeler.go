// Package labeler turns per-room presence signals into a single occupancy
// label per row.
//
// Every room is evaluated independently: a windowed any-true over its trigger
// columns, a sticky hold, and an optional CO2-rise flag ORed in. Rows where
// several rooms are active are resolved by the configured policy.
package labeler

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"room_occupancy/table"
)

// ErrSingleClass reports a labeling outcome with only one distinct label
var ErrSingleClass = errors.New("labels contain a single class")

// Result holds the per-row label and the per-room intermediate series
type Result struct {
	Index     []time.Time
	Labels    []table.Value
	NoneLabel string
	Rooms     []string
	// Flags and Scores are keyed by room name
	Flags  map[string][]bool
	Scores map[string][]float64
	// RawPositives counts rows where any trigger column of a room is active
	RawPositives map[string]int
	// Flagged counts rows where a room's flag was set before resolution
	Flagged     map[string]int
	UsedColumns []string
	Multi       int
	Dropped     int
}

// Label runs the rules over t. period is the grid spacing of t and converts
// the second-based rule durations to ticks.
func Label(t *table.Table, rules *Rules, period time.Duration) (*Result, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive, got %s", period)
	}

	res := &Result{
		Index:        t.Index,
		Labels:       make([]table.Value, t.Len()),
		NoneLabel:    rules.NoneLabel,
		Flags:        make(map[string][]bool, len(rules.Rooms)),
		Scores:       make(map[string][]float64, len(rules.Rooms)),
		RawPositives: make(map[string]int, len(rules.Rooms)),
		Flagged:      make(map[string]int, len(rules.Rooms)),
		UsedColumns:  rules.UsedColumns(),
	}

	pirWindow := seconds(rules.PIRWindowSec)
	co2Window := seconds(rules.CO2WindowSec)
	for _, room := range rules.Rooms {
		res.Rooms = append(res.Rooms, room.Name)

		activity := activityColumns(t, room.TriggerColumns)
		flag := Sticky(anyTrue(t.Index, activity, pirWindow), ticks(rules.StickyAfterSec, period))
		if co2 := co2Rise(t, room.CO2Columns, co2Window, rules.CO2RisePPMPerMin); co2 != nil {
			held := Sticky(co2, ticks(rules.CO2StickySec, period))
			for i := range flag {
				flag[i] = flag[i] || held[i]
			}
		}

		res.Flags[room.Name] = flag
		res.Scores[room.Name] = score(t.Index, activity, pirWindow)
		for i, on := range flag {
			if on {
				res.Flagged[room.Name]++
			}
			for _, act := range activity {
				if act[i] > 0 {
					res.RawPositives[room.Name]++
					break
				}
			}
		}
	}

	resolve(res, rules)
	return res, nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func ticks(sec int, period time.Duration) int {
	return int(math.Round(float64(seconds(sec)) / float64(period)))
}

// activityColumns maps each trigger column to 0/1; absent columns are all 0
func activityColumns(t *table.Table, names []string) [][]float64 {
	out := make([][]float64, 0, len(names))
	for _, name := range names {
		act := make([]float64, t.Len())
		if c, ok := t.Column(name); ok {
			for i, v := range c.Values {
				if v.Active() {
					act[i] = 1
				}
			}
		}
		out = append(out, act)
	}
	return out
}

func anyTrue(index []time.Time, activity [][]float64, w time.Duration) []bool {
	raw := make([]bool, len(index))
	for _, act := range activity {
		table.Rolling(index, w, func(i, lo int) {
			if raw[i] {
				return
			}
			for k := lo; k <= i; k++ {
				if act[k] > 0 {
					raw[i] = true
					return
				}
			}
		})
	}
	return raw
}

// score is the highest windowed mean activity across the room's columns
func score(index []time.Time, activity [][]float64, w time.Duration) []float64 {
	out := make([]float64, len(index))
	for _, act := range activity {
		table.Rolling(index, w, func(i, lo int) {
			var sum float64
			for k := lo; k <= i; k++ {
				sum += act[k]
			}
			if m := sum / float64(i-lo+1); m > out[i] {
				out[i] = m
			}
		})
	}
	return out
}

// Sticky holds a true input for n further ticks. A true input resets the
// counter to n; every false tick with a positive counter stays true and
// decrements it.
func Sticky(raw []bool, n int) []bool {
	out := make([]bool, len(raw))
	counter := 0
	for i, v := range raw {
		switch {
		case v:
			counter = n
			out[i] = true
		case counter > 0:
			out[i] = true
			counter--
		}
	}
	return out
}

// co2Rise flags rows whose smoothed CO2 rose by at least rate*w/60 ppm since
// the last row at or before t-w. Returns nil when the room has no CO2 column.
func co2Rise(t *table.Table, names []string, w time.Duration, ratePerMin float64) []bool {
	var cols []*table.Column
	for _, name := range names {
		if c, ok := t.Column(name); ok {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return nil
	}

	n := t.Len()
	rowMean := make([]float64, n)
	present := make([]bool, n)
	for i := 0; i < n; i++ {
		var sum float64
		var cnt int
		for _, c := range cols {
			if f, ok := c.Values[i].Float(); ok {
				sum += f
				cnt++
			}
		}
		if cnt > 0 {
			rowMean[i] = sum / float64(cnt)
			present[i] = true
		}
	}

	smooth := make([]float64, n)
	smoothOK := make([]bool, n)
	table.Rolling(t.Index, w, func(i, lo int) {
		var sum float64
		var cnt int
		for k := lo; k <= i; k++ {
			if present[k] {
				sum += rowMean[k]
				cnt++
			}
		}
		if cnt > 0 {
			smooth[i] = sum / float64(cnt)
			smoothOK[i] = true
		}
	})

	need := ratePerMin * w.Minutes()
	flag := make([]bool, n)
	prev := -1
	for i, ts := range t.Index {
		edge := ts.Add(-w)
		for prev+1 < i && !t.Index[prev+1].After(edge) {
			prev++
		}
		if prev < 0 || t.Index[prev].After(edge) {
			continue
		}
		if smoothOK[i] && smoothOK[prev] && smooth[i]-smooth[prev] >= need {
			flag[i] = true
		}
	}
	return flag
}

func resolve(res *Result, rules *Rules) {
	policy := rules.EffectivePolicy()
	rank := priorityRank(rules)

	for i := range res.Labels {
		var active []string
		for _, room := range res.Rooms {
			if res.Flags[room][i] {
				active = append(active, room)
			}
		}

		switch len(active) {
		case 0:
			res.Labels[i] = table.Text(res.NoneLabel)
			continue
		case 1:
			res.Labels[i] = table.Text(active[0])
			continue
		}

		res.Multi++
		switch policy {
		case PolicyDrop:
			res.Labels[i] = table.Missing()
			res.Dropped++
		case PolicyPriority:
			best := active[0]
			for _, room := range active[1:] {
				if rank[room] < rank[best] {
					best = room
				}
			}
			res.Labels[i] = table.Text(best)
		case PolicyScore:
			best := active[0]
			for _, room := range active[1:] {
				if res.Scores[room][i] > res.Scores[best][i] {
					best = room
				}
			}
			res.Labels[i] = table.Text(best)
		default:
			res.Labels[i] = table.Text(active[0])
		}
	}
}

// priorityRank orders the priority list first, then remaining rooms in rule order
func priorityRank(rules *Rules) map[string]int {
	rank := make(map[string]int, len(rules.Rooms))
	for _, name := range rules.Priority {
		if _, ok := rank[name]; !ok {
			rank[name] = len(rank)
		}
	}
	for _, room := range rules.Rooms {
		if _, ok := rank[room.Name]; !ok {
			rank[room.Name] = len(rank)
		}
	}
	return rank
}

// LabelCount is one entry of a label distribution
type LabelCount struct {
	Label string
	Count int
}

// Distribution counts labels, largest first; dropped rows are not counted
func (r *Result) Distribution() []LabelCount {
	counts := map[string]int{}
	for _, v := range r.Labels {
		if v.IsMissing() {
			continue
		}
		counts[v.Str]++
	}
	out := make([]LabelCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, LabelCount{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// CheckClasses returns ErrSingleClass when fewer than two labels occur
func (r *Result) CheckClasses() error {
	dist := r.Distribution()
	if len(dist) < 2 {
		label := "<none>"
		if len(dist) == 1 {
			label = dist[0].Label
		}
		return fmt.Errorf("%w: every labeled row is %q", ErrSingleClass, label)
	}
	return nil
}

// Column returns the labels as a table column
func (r *Result) Column(name string) *table.Column {
	values := make([]table.Value, len(r.Labels))
	copy(values, r.Labels)
	return &table.Column{Name: name, Values: values}
}
