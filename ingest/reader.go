// Package ingest reads heterogeneous per-room sensor CSVs into time-indexed
// tables.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"room_occupancy/table"

	"golang.org/x/text/encoding/japanese"
)

// ErrMissingTimestampColumn is returned when no column can serve as the time axis
var ErrMissingTimestampColumn = errors.New("no timestamp column found")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Result is one ingested CSV file
type Result struct {
	Path        string
	Table       *table.Table
	TimeColumn  string
	Rows        int
	DroppedRows int
}

// ReadFile ingests the CSV file at path
func ReadFile(path string) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Read(file, path)
}

// Read ingests CSV content; name is used for the result path and messages
func Read(r io.Reader, name string) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		// testbed exports from Windows tools are Shift_JIS
		if decoded, derr := japanese.ShiftJIS.NewDecoder().Bytes(data); derr == nil {
			data = decoded
		}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty CSV file: %s", name)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		header[i] = h
	}

	var rows [][]string
	for _, rec := range records[1:] {
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}
		rows = append(rows, rec)
	}

	tsCol, err := DetectTimestampColumn(header, rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	rawTimes := make([]string, len(rows))
	for i, row := range rows {
		if tsCol < len(row) {
			rawTimes[i] = row[tsCol]
		}
	}
	times, ok := ParseTimestamps(rawTimes)

	var index []time.Time
	var keep []int
	for i := range rows {
		if ok[i] {
			index = append(index, times[i])
			keep = append(keep, i)
		}
	}

	tbl := table.New(index)
	for col, colName := range header {
		if col == tsCol {
			continue
		}
		values := make([]table.Value, len(keep))
		for j, r := range keep {
			if col < len(rows[r]) {
				values[j] = table.ParseCell(rows[r][col])
			}
		}
		tbl.Columns = append(tbl.Columns, &table.Column{Name: colName, Values: table.NormalizeColumn(values)})
	}
	tbl.SortDedup()

	return &Result{
		Path:        name,
		Table:       tbl,
		TimeColumn:  header[tsCol],
		Rows:        tbl.Len(),
		DroppedRows: len(rows) - len(keep),
	}, nil
}
