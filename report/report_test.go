package report

import (
	"path/filepath"
	"strings"
	"testing"

	"room_occupancy/dataset"
	"room_occupancy/labeler"
	"room_occupancy/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleResult() *labeler.Result {
	return &labeler.Result{
		Labels: []table.Value{
			table.Text("living"), table.Text("unknown"), table.Text("living"), table.Missing(), table.Text("unknown"),
		},
		Rooms:        []string{"living", "washitsu"},
		RawPositives: map[string]int{"living": 1, "washitsu": 0},
		Flagged:      map[string]int{"living": 3, "washitsu": 1},
		Multi:        1,
		Dropped:      1,
	}
}

func TestDistribution(t *testing.T) {
	rows := Distribution(sampleResult())
	assert.Equal(t, []Row{
		{Label: "living", Count: 2, Share: 0.5},
		{Label: "unknown", Count: 2, Share: 0.5},
	}, rows)
}

func TestWriteText(t *testing.T) {
	var b strings.Builder
	require.NoError(t, WriteText(&b, sampleResult()))

	out := b.String()
	assert.Contains(t, out, "Label distribution:")
	assert.Contains(t, out, "50.00%")
	assert.Contains(t, out, "<dropped>")
	assert.Contains(t, out, "Rows with several active rooms: 1")
	assert.Regexp(t, `washitsu\s+raw positives\s+0\s+flagged\s+1`, out)
}

func TestWriteMetrics(t *testing.T) {
	var b strings.Builder
	ev := &dataset.Evaluation{
		Classes:   []string{"living", "unknown"},
		Confusion: [][]int{{3, 1}, {0, 4}},
		Accuracy:  0.875,
		TrainRows: 20,
		TestRows:  8,
	}
	require.NoError(t, WriteMetrics(&b, ev))
	assert.Contains(t, b.String(), "accuracy: 0.8750")
	assert.Contains(t, b.String(), "train rows: 20, test rows: 8")
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.xlsx")
	ev := &dataset.Evaluation{
		Classes:   []string{"living", "unknown"},
		Confusion: [][]int{{3, 1}, {0, 4}},
		Accuracy:  0.5,
	}
	require.NoError(t, WriteXLSX(path, sampleResult(), ev))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetLabels, SheetRooms, SheetConfusion}, f.GetSheetList())

	rows, err := f.GetRows(SheetLabels)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"label", "count", "share"},
		{"living", "2", "0.5"},
		{"unknown", "2", "0.5"},
	}, rows)

	rows, err = f.GetRows(SheetRooms)
	require.NoError(t, err)
	assert.Equal(t, []string{"washitsu", "0", "1"}, rows[2])

	rows, err = f.GetRows(SheetConfusion)
	require.NoError(t, err)
	assert.Equal(t, []string{"unknown", "0", "4"}, rows[2])
}
