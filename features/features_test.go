package features

import (
	"context"
	"math"
	"testing"
	"time"

	"room_occupancy/table"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 9, 18, 20, 0, 0, 0, time.UTC)

func secs(s ...int) []time.Time {
	out := make([]time.Time, len(s))
	for i, v := range s {
		out[i] = t0.Add(time.Duration(v) * time.Second)
	}
	return out
}

func nums(v ...float64) []table.Value {
	out := make([]table.Value, len(v))
	for i, f := range v {
		if math.IsNaN(f) {
			out[i] = table.Missing()
			continue
		}
		out[i] = table.Number(f)
	}
	return out
}

func col(t *testing.T, tbl *table.Table, name string) []table.Value {
	t.Helper()
	c, ok := tbl.Column(name)
	require.True(t, ok, "missing column %s", name)
	return c.Values
}

func assertValues(t *testing.T, want, got []table.Value) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if want[i].IsMissing() {
			assert.True(t, got[i].IsMissing(), "row %d: want missing, got %v", i, got[i])
			continue
		}
		f, ok := got[i].Float()
		require.True(t, ok, "row %d: want %v, got missing", i, want[i].Num)
		assert.InDelta(t, want[i].Num, f, 1e-9, "row %d", i)
	}
}

func TestAugmentNamesAndLayout(t *testing.T) {
	tbl := table.New(secs(0, 1))
	require.NoError(t, tbl.AddColumn("co2", nums(400, 402)))
	require.NoError(t, tbl.AddColumn("mode", []table.Value{table.Text("cool"), table.Text("cool")}))
	require.NoError(t, tbl.AddColumn("pir", nums(0, 1)))

	out, err := Augment(context.Background(), tbl, []time.Duration{5 * time.Second, 10 * time.Second})
	require.NoError(t, err)

	want := []string{
		"co2", "mode", "pir",
		"co2__mean5s", "pir__mean5s", "co2__std5s", "pir__std5s", "co2__diff5s", "pir__diff5s",
		"co2__mean10s", "pir__mean10s", "co2__std10s", "pir__std10s", "co2__diff10s", "pir__diff10s",
	}
	assert.Equal(t, want, out.Names())
	assert.Equal(t, []string{"co2", "mode", "pir"}, tbl.Names(), "input must not change")
}

func TestAugmentTimeBasedWindow(t *testing.T) {
	// gap between 2s and 10s: a 3s window at 10s must not reach back to 2s
	tbl := table.New(secs(0, 1, 2, 10, 11))
	require.NoError(t, tbl.AddColumn("x", nums(1, 3, 5, 10, math.NaN())))
	before := tbl.Clone()

	out, err := Augment(context.Background(), tbl, []time.Duration{3 * time.Second})
	require.NoError(t, err)

	nan := math.NaN()
	assertValues(t, nums(1, 2, 3, 10, 10), col(t, out, "x__mean3s"))
	assertValues(t, nums(nan, math.Sqrt2, 2, nan, nan), col(t, out, "x__std3s"))
	assertValues(t, nums(nan, 2, 2, 5, 5), col(t, out, "x__diff3s"))
	assert.Empty(t, cmp.Diff(before, tbl))
}

func TestAugmentNoObservations(t *testing.T) {
	tbl := table.New(secs(0, 1))
	require.NoError(t, tbl.AddColumn("dead", nums(math.NaN(), math.NaN())))

	out, err := Augment(context.Background(), tbl, []time.Duration{5 * time.Second})
	require.NoError(t, err)

	for _, name := range []string{"dead__mean5s", "dead__std5s", "dead__diff5s"} {
		for _, v := range col(t, out, name) {
			assert.True(t, v.IsMissing(), name)
		}
	}
}

func TestAugmentCancelled(t *testing.T) {
	tbl := table.New(secs(0))
	require.NoError(t, tbl.AddColumn("x", nums(1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Augment(ctx, tbl, []time.Duration{time.Second})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestName(t *testing.T) {
	assert.Equal(t, "pir__mean60s", Name("pir", StatMean, time.Minute))
	assert.Equal(t, "pir__std500ms", Name("pir", StatStd, 500*time.Millisecond))
}
