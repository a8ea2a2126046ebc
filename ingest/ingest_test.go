package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"room_occupancy/logger"
	"room_occupancy/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/japanese"
)

func TestMain(m *testing.M) {
	logger.SetLogger(zap.NewNop())
	os.Exit(m.Run())
}

func TestReadDetectsCandidateColumn(t *testing.T) {
	csv := "time,pir,door,note\n" +
		"2025-09-09 01:00:02,1,OPEN,hello\n" +
		"2025-09-09 01:00:00,0,closed,\n" +
		"garbage,1,open,x\n" +
		"2025-09-09 01:00:02,0,CLOSED,late\n"

	res, err := Read(strings.NewReader(csv), "living.csv")
	require.NoError(t, err)

	assert.Equal(t, "time", res.TimeColumn)
	assert.Equal(t, 1, res.DroppedRows)
	assert.Equal(t, 2, res.Rows)

	base := time.Date(2025, 9, 9, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, []time.Time{base, base.Add(2 * time.Second)}, res.Table.Index)

	pir, ok := res.Table.Column("pir")
	require.True(t, ok)
	assert.Equal(t, []table.Value{table.Number(0), table.Number(0)}, pir.Values, "later duplicate row wins")

	door, _ := res.Table.Column("door")
	assert.Equal(t, []table.Value{table.Bool(true), table.Bool(true)}, door.Values)
	assert.True(t, door.IsNumeric())

	note, _ := res.Table.Column("note")
	assert.Equal(t, []table.Value{table.Missing(), table.Text("late")}, note.Values)
}

func TestReadSniffsTimestampColumn(t *testing.T) {
	csv := "sensor,when,value\n" +
		"a,2025-01-01T00:00:00Z,1\n" +
		"b,2025-01-01T00:00:01Z,2\n"

	res, err := Read(strings.NewReader(csv), "x.csv")
	require.NoError(t, err)
	assert.Equal(t, "when", res.TimeColumn)
	assert.Equal(t, []string{"sensor", "value"}, res.Table.Names())
}

func TestReadMissingTimestampColumn(t *testing.T) {
	_, err := Read(strings.NewReader("a,b\n1,2\n3,4\n"), "bad.csv")
	assert.ErrorIs(t, err, ErrMissingTimestampColumn)
}

func TestReadShiftJIS(t *testing.T) {
	body := "timestamp,和室_pir\n2025-09-09 01:00:00,1\n"
	encoded, err := japanese.ShiftJIS.NewEncoder().String(body)
	require.NoError(t, err)

	res, err := Read(strings.NewReader(encoded), "sjis.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"和室_pir"}, res.Table.Names())
}

func TestParseTimestampsEpoch(t *testing.T) {
	t.Run("seconds", func(t *testing.T) {
		got, ok := ParseTimestamps([]string{"1757379600", "1757379601.5", ""})
		assert.Equal(t, []bool{true, true, false}, ok)
		assert.Equal(t, time.Unix(1757379600, 0).UTC(), got[0])
		assert.Equal(t, time.Unix(1757379601, 5e8).UTC(), got[1])
	})

	t.Run("milliseconds", func(t *testing.T) {
		got, ok := ParseTimestamps([]string{"1757379600000", "1757379600250"})
		assert.Equal(t, []bool{true, true}, ok)
		assert.Equal(t, time.UnixMilli(1757379600250).UTC(), got[1])
	})

	t.Run("calendar wins when mostly valid", func(t *testing.T) {
		_, ok := ParseTimestamps([]string{"2025-09-09 01:00:00", "2025-09-09 01:00:01", "1757379600"})
		assert.Equal(t, []bool{true, true, false}, ok)
	})

	t.Run("fractional and zoned", func(t *testing.T) {
		got, ok := ParseTimestamps([]string{"2025-09-09 10:00:00.5+09:00"})
		require.True(t, ok[0])
		assert.Equal(t, time.Date(2025, 9, 9, 1, 0, 0, 5e8, time.UTC), got[0])
	})
}

func TestLoaderSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0644))
		return p
	}
	good := write("b_living.csv", "timestamp,pir\n2025-09-09 01:00:00,1\n")
	bad := write("a_bad.csv", "x,y\n1,2\n")
	write("notes.txt", "ignored")

	files, err := FindCSVFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{bad, good}, files)

	loader := NewLoader()
	loader.SetWorkerCount(2)
	results, all := loader.LoadFiles(files)

	require.Len(t, results, 1)
	assert.Equal(t, good, results[0].Path)
	require.Len(t, all, 2)
	assert.ErrorIs(t, all[0].Error, ErrMissingTimestampColumn)
	assert.NoError(t, all[1].Error)
}

func TestFindCSVFilesMissingDir(t *testing.T) {
	_, err := FindCSVFiles(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
