package reconcile

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"room_occupancy/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func index(n int) []time.Time {
	base := time.Date(2025, 9, 16, 12, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = base.Add(time.Duration(i) * time.Second)
	}
	return out
}

func TestReconcileORCombine(t *testing.T) {
	tbl := table.New(index(3))
	require.NoError(t, tbl.AddColumn("pir", []table.Value{table.Number(1), table.Number(0), table.Missing()}))
	require.NoError(t, tbl.AddColumn("pir", []table.Value{table.Number(0), table.Number(1), table.Number(0)}))

	out := Reconcile(tbl)

	require.Len(t, out.Columns, 1)
	assert.Equal(t, []table.Value{table.Number(1), table.Number(1), table.Number(0)}, out.Columns[0].Values)
}

func TestReconcileBoolAndNumber(t *testing.T) {
	tbl := table.New(index(2))
	require.NoError(t, tbl.AddColumn("door", []table.Value{table.Bool(true), table.Missing()}))
	require.NoError(t, tbl.AddColumn("door", []table.Value{table.Number(0.5), table.Missing()}))

	out := Reconcile(tbl)
	assert.Equal(t, []table.Value{table.Number(1), table.Missing()}, out.Columns[0].Values)
}

func TestReconcileFirstObservedForText(t *testing.T) {
	tbl := table.New(index(3))
	require.NoError(t, tbl.AddColumn("mode", []table.Value{table.Missing(), table.Text("cool"), table.Missing()}))
	require.NoError(t, tbl.AddColumn("mode", []table.Value{table.Number(2), table.Text("heat"), table.Missing()}))

	out := Reconcile(tbl)
	assert.Equal(t, []table.Value{table.Number(2), table.Text("cool"), table.Missing()}, out.Columns[0].Values)
}

func TestReconcilePreservesOrderAndSingletons(t *testing.T) {
	tbl := table.New(index(1))
	a := []table.Value{table.Number(7)}
	require.NoError(t, tbl.AddColumn("a", a))
	require.NoError(t, tbl.AddColumn("b", []table.Value{table.Number(1)}))
	require.NoError(t, tbl.AddColumn("a", []table.Value{table.Number(3)}))
	require.NoError(t, tbl.AddColumn("c", []table.Value{table.Text("x")}))

	assert.Equal(t, []string{"a"}, Duplicates(tbl))

	out := Reconcile(tbl)
	assert.Equal(t, []string{"a", "b", "c"}, out.Names())
	assert.Equal(t, table.Number(7), out.Columns[0].Values[0])
	assert.Same(t, tbl.Columns[1], out.Columns[1])
}

func TestReconcileUniqueNamesProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	names := []string{"pir", "co2", "temp", "door", "mode"}

	for trial := 0; trial < 50; trial++ {
		rows := 1 + rng.Intn(20)
		tbl := table.New(index(rows))
		cols := 1 + rng.Intn(12)
		distinct := map[string]bool{}
		for c := 0; c < cols; c++ {
			name := names[rng.Intn(len(names))]
			distinct[name] = true
			values := make([]table.Value, rows)
			for r := range values {
				switch rng.Intn(4) {
				case 0:
					values[r] = table.Missing()
				case 1:
					values[r] = table.Text(fmt.Sprintf("s%d", rng.Intn(3)))
				default:
					values[r] = table.Number(float64(rng.Intn(3)))
				}
			}
			require.NoError(t, tbl.AddColumn(name, values))
		}

		out := Reconcile(tbl)

		assert.Len(t, out.Columns, len(distinct))
		assert.Empty(t, Duplicates(out))
		assert.Equal(t, tbl.Index, out.Index)
		for _, c := range out.Columns {
			assert.Len(t, c.Values, rows)
		}
	}
}
