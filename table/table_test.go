package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCell(t *testing.T) {
	cases := []struct {
		raw  string
		want Value
	}{
		{"", Missing()},
		{"  NaN ", Missing()},
		{"null", Missing()},
		{"12.5", Number(12.5)},
		{"-3", Number(-3)},
		{"closed", Text("closed")},
		{"hello world", Text("hello world")},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseCell(tc.raw), "raw=%q", tc.raw)
	}
}

func TestNormalizeColumn(t *testing.T) {
	t.Run("boolean-like text becomes 0/1", func(t *testing.T) {
		in := []Value{Text("ON"), Text("off"), Text("OPEN"), Text("Closed"), Text("idle"), Missing()}
		got := NormalizeColumn(in)
		assert.Equal(t, []Value{Bool(true), Bool(false), Bool(false), Bool(true), Text("idle"), Missing()}, got)
		assert.False(t, (&Column{Values: got}).IsNumeric())
	})

	t.Run("numeric column untouched", func(t *testing.T) {
		in := []Value{Number(1), Missing(), Number(0)}
		assert.Equal(t, in, NormalizeColumn(in))
	})

	t.Run("all tokens matched gives a numeric column", func(t *testing.T) {
		got := NormalizeColumn([]Value{Text("yes"), Text("n"), Number(1)})
		assert.True(t, (&Column{Values: got}).IsNumeric())
	})
}

func TestValueActive(t *testing.T) {
	assert.True(t, Number(0.5).Active())
	assert.False(t, Number(0).Active())
	assert.True(t, Bool(true).Active())
	assert.True(t, Text("Yes").Active())
	assert.False(t, Text("motion").Active())
	assert.False(t, Missing().Active())
}

func TestSortDedup(t *testing.T) {
	base := time.Date(2025, 9, 9, 1, 0, 0, 0, time.UTC)
	tbl := New([]time.Time{base.Add(2 * time.Second), base, base.Add(2 * time.Second), base.Add(time.Second)})
	require.NoError(t, tbl.AddColumn("v", []Value{Number(1), Number(2), Number(3), Number(4)}))

	tbl.SortDedup()

	assert.Equal(t, []time.Time{base, base.Add(time.Second), base.Add(2 * time.Second)}, tbl.Index)
	assert.Equal(t, []Value{Number(2), Number(4), Number(3)}, tbl.Columns[0].Values)
}

func TestWithColumnsDoesNotMutate(t *testing.T) {
	tbl := New([]time.Time{time.Unix(0, 0)})
	require.NoError(t, tbl.AddColumn("a", []Value{Number(1)}))

	out := tbl.WithColumns([]*Column{{Name: "b", Values: []Value{Number(2)}}})

	assert.Equal(t, []string{"a"}, tbl.Names())
	assert.Equal(t, []string{"a", "b"}, out.Names())
}

func TestAddColumnLengthMismatch(t *testing.T) {
	tbl := New([]time.Time{time.Unix(0, 0)})
	assert.Error(t, tbl.AddColumn("a", nil))
}
