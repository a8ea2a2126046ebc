package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"room_occupancy/table"
)

// TimestampLayout is the timestamp format of merged CSV output
const TimestampLayout = "2006-01-02 15:04:05.999999999"

// TimestampColumn is the header of the first output column
const TimestampColumn = "timestamp"

// WriteCSV writes t with a leading timestamp column. When labelColumn names a
// column of t it is moved to the end. Missing cells are written empty.
func WriteCSV(path string, t *table.Table, labelColumn string) error {
	ordered := orderColumns(t, labelColumn)
	return writeAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		header := make([]string, 0, len(ordered)+1)
		header = append(header, TimestampColumn)
		for _, c := range ordered {
			header = append(header, c.Name)
		}
		if err := cw.Write(header); err != nil {
			return err
		}

		record := make([]string, len(header))
		for i, ts := range t.Index {
			record[0] = ts.UTC().Format(TimestampLayout)
			for j, c := range ordered {
				record[j+1] = c.Values[i].String()
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// WriteFeatureList writes the feature column names as a JSON array
func WriteFeatureList(path string, names []string) error {
	if names == nil {
		names = []string{}
	}
	return WriteJSON(path, names)
}

// WriteJSON atomically writes v as indented JSON
func WriteJSON(path string, v interface{}) error {
	return writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// FeatureNames lists every column except the label column
func FeatureNames(t *table.Table, labelColumn string) []string {
	var out []string
	for _, c := range t.Columns {
		if c.Name != labelColumn && c.Name != TimestampColumn {
			out = append(out, c.Name)
		}
	}
	return out
}

func orderColumns(t *table.Table, labelColumn string) []*table.Column {
	out := make([]*table.Column, 0, len(t.Columns))
	var label *table.Column
	for _, c := range t.Columns {
		if labelColumn != "" && c.Name == labelColumn && label == nil {
			label = c
			continue
		}
		out = append(out, c)
	}
	if label != nil {
		out = append(out, label)
	}
	return out
}

// writeAtomic writes to a temporary file next to path, syncs it and renames
// it into place so readers never see a partial file.
func writeAtomic(path string, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if err := fill(tmp); err != nil {
		cleanup()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
