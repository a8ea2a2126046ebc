// Package report renders label distributions and evaluation results.
package report

import (
	"fmt"
	"io"
	"strings"

	"room_occupancy/dataset"
	"room_occupancy/labeler"
	"room_occupancy/logger"
)

// Row is one line of the label distribution
type Row struct {
	Label string
	Count int
	Share float64
}

// Distribution converts label counts into rows with shares of the labeled total
func Distribution(res *labeler.Result) []Row {
	counts := res.Distribution()
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	rows := make([]Row, len(counts))
	for i, c := range counts {
		rows[i] = Row{Label: c.Label, Count: c.Count}
		if total > 0 {
			rows[i].Share = float64(c.Count) / float64(total)
		}
	}
	return rows
}

// WriteText writes the distribution and the per-room positives as plain text
func WriteText(w io.Writer, res *labeler.Result) error {
	var b strings.Builder
	b.WriteString("Label distribution:\n")
	for _, r := range Distribution(res) {
		fmt.Fprintf(&b, "  %-20s %8d  %6.2f%%\n", r.Label, r.Count, r.Share*100)
	}
	if res.Dropped > 0 {
		fmt.Fprintf(&b, "  %-20s %8d\n", "<dropped>", res.Dropped)
	}
	b.WriteString("\nPer room:\n")
	for _, room := range res.Rooms {
		fmt.Fprintf(&b, "  %-20s raw positives %6d  flagged %6d\n", room, res.RawPositives[room], res.Flagged[room])
	}
	if res.Multi > 0 {
		fmt.Fprintf(&b, "\nRows with several active rooms: %d\n", res.Multi)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Log writes the text report through the application logger
func Log(res *labeler.Result) {
	var b strings.Builder
	_ = WriteText(&b, res)
	for _, line := range strings.Split(strings.TrimRight(b.String(), "\n"), "\n") {
		logger.Println(line)
	}
}

// WriteMetrics writes accuracy and the confusion matrix as plain text
func WriteMetrics(w io.Writer, ev *dataset.Evaluation) error {
	var b strings.Builder
	fmt.Fprintf(&b, "train rows: %d, test rows: %d\n", ev.TrainRows, ev.TestRows)
	fmt.Fprintf(&b, "accuracy: %.4f\n\n", ev.Accuracy)
	b.WriteString("Confusion matrix (rows=true, cols=pred):\n")

	width := 8
	for _, c := range ev.Classes {
		if len(c) > width {
			width = len(c)
		}
	}
	fmt.Fprintf(&b, "%*s", width, "")
	for _, c := range ev.Classes {
		fmt.Fprintf(&b, " %*s", width, c)
	}
	b.WriteString("\n")
	for i, c := range ev.Classes {
		fmt.Fprintf(&b, "%*s", width, c)
		for _, n := range ev.Confusion[i] {
			fmt.Fprintf(&b, " %*d", width, n)
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
