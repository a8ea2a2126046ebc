// Package pipeline merges per-room sensor CSVs into one labeled, feature
// augmented table on a fixed time grid.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"room_occupancy/features"
	"room_occupancy/ingest"
	"room_occupancy/labeler"
	"room_occupancy/logger"
	"room_occupancy/reconcile"
	"room_occupancy/resample"
	"room_occupancy/table"

	"github.com/google/uuid"
)

// ErrNoInput is returned when no input file could be loaded
var ErrNoInput = errors.New("no usable input files")

// Options configures a merge run
type Options struct {
	// Inputs are CSV files or directories holding CSV files
	Inputs       []string
	OutputCSV    string
	FeaturesJSON string

	// Rules enables labeling when set
	Rules       *labeler.Rules
	LabelColumn string

	Period    time.Duration
	FillLimit int
	Windows   []time.Duration
	Workers   int

	// RoomOrder and RoomKeywords guess the room of a file from its name
	RoomOrder    []string
	RoomKeywords map[string][]string
	NoPrefix     bool
}

// Summary describes a finished run
type Summary struct {
	RunID        string
	StartedAt    time.Time
	Duration     time.Duration
	Files        []string
	Skipped      []string
	Rows         int
	Columns      int
	Features     []string
	Distribution []labeler.LabelCount
	SingleClass  bool

	Table  *table.Table
	Labels *labeler.Result
}

func (o *Options) applyDefaults() {
	if o.Period <= 0 {
		o.Period = time.Second
	}
	if o.LabelColumn == "" {
		o.LabelColumn = "target_room"
	}
	if o.Windows == nil {
		o.Windows = features.DefaultWindows
	}
}

// Merge loads, resamples, reconciles, labels and augments the inputs and
// writes the configured outputs. Outputs are skipped when their path is empty.
func Merge(ctx context.Context, opts Options) (*Summary, error) {
	opts.applyDefaults()
	sum := &Summary{RunID: uuid.NewString(), StartedAt: time.Now()}

	paths, err := expandInputs(opts.Inputs)
	if err != nil {
		return nil, err
	}

	loader := ingest.NewLoader()
	loader.SetWorkerCount(opts.Workers)
	loaded, outcomes := loader.LoadFiles(paths)
	for _, o := range outcomes {
		if o.Error != nil {
			sum.Skipped = append(sum.Skipped, o.FilePath)
		}
	}
	if len(loaded) == 0 {
		return nil, ErrNoInput
	}

	rsOpts := resample.Options{Period: opts.Period}
	perFile := make([]*table.Table, 0, len(loaded))
	for _, res := range loaded {
		sum.Files = append(sum.Files, res.Path)
		t := res.Table
		if !opts.NoPrefix {
			room := GuessRoom(res.Path, opts.RoomOrder, opts.RoomKeywords)
			t = t.Rename(func(name string) string { return room + "__" + name })
			logger.Debugf("%s -> room %s", filepath.Base(res.Path), room)
		}
		gridded := resample.Fill(resample.Resample(t, rsOpts), opts.FillLimit)
		perFile = append(perFile, reconcile.Reconcile(gridded))
	}

	merged := resample.Align(perFile, opts.Period)
	if dups := reconcile.Duplicates(merged); len(dups) > 0 {
		logger.Printf("Reconciling %d duplicated columns: %s", len(dups), strings.Join(dups, ", "))
	}
	merged = reconcile.Reconcile(merged)
	logger.Printf("Merged grid: %d rows x %d columns at %s", merged.Len(), len(merged.Columns), opts.Period)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := features.Augment(ctx, merged, opts.Windows)
	if err != nil {
		return nil, err
	}

	if opts.Rules != nil {
		res, err := labeler.Label(merged, opts.Rules, opts.Period)
		if err != nil {
			return nil, fmt.Errorf("labeling failed: %w", err)
		}
		out = out.Drop(opts.LabelColumn).WithColumns([]*table.Column{res.Column(opts.LabelColumn)})
		sum.Labels = res
		sum.Distribution = res.Distribution()
		if err := res.CheckClasses(); err != nil {
			sum.SingleClass = true
			logger.Warnf("%v", err)
		}
	}

	sum.Table = out
	sum.Rows = out.Len()
	sum.Columns = len(out.Columns)
	sum.Features = FeatureNames(out, opts.LabelColumn)

	if opts.OutputCSV != "" {
		if err := WriteCSV(opts.OutputCSV, out, opts.LabelColumn); err != nil {
			return nil, err
		}
		logger.Printf("Wrote %s (%d rows)", opts.OutputCSV, sum.Rows)
	}
	if opts.FeaturesJSON != "" {
		if err := WriteFeatureList(opts.FeaturesJSON, sum.Features); err != nil {
			return nil, err
		}
		logger.Printf("Wrote %s (%d features)", opts.FeaturesJSON, len(sum.Features))
	}

	sum.Duration = time.Since(sum.StartedAt)
	return sum, nil
}

// RelabelOptions configures labeling of an already merged CSV
type RelabelOptions struct {
	Input       string
	Output      string
	Rules       *labeler.Rules
	LabelColumn string
	Period      time.Duration
}

// Relabel reads a merged CSV, replaces its label column and writes the result
func Relabel(opts RelabelOptions) (*labeler.Result, error) {
	if opts.Period <= 0 {
		opts.Period = time.Second
	}
	if opts.LabelColumn == "" {
		opts.LabelColumn = "target_room"
	}
	if opts.Rules == nil {
		return nil, fmt.Errorf("relabel needs label rules")
	}

	in, err := ingest.ReadFile(opts.Input)
	if err != nil {
		return nil, err
	}
	t := in.Table.Drop(opts.LabelColumn)

	res, err := labeler.Label(t, opts.Rules, opts.Period)
	if err != nil {
		return nil, err
	}
	if err := res.CheckClasses(); err != nil {
		logger.Warnf("%v", err)
	}

	out := t.WithColumns([]*table.Column{res.Column(opts.LabelColumn)})
	if opts.Output != "" {
		if err := WriteCSV(opts.Output, out, opts.LabelColumn); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// GuessRoom picks the first room whose name or keyword appears in the file
// name, falling back to the file stem.
func GuessRoom(path string, order []string, keywords map[string][]string) string {
	base := strings.ToLower(filepath.Base(path))
	for _, room := range order {
		candidates := append([]string{strings.ToLower(room)}, keywords[room]...)
		for _, k := range candidates {
			if k != "" && strings.Contains(base, strings.ToLower(k)) {
				return room
			}
		}
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func expandInputs(inputs []string) ([]string, error) {
	var paths []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", in, err)
		}
		if !info.IsDir() {
			paths = append(paths, in)
			continue
		}
		found, err := ingest.FindCSVFiles(in)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, ErrNoInput
	}
	return paths, nil
}
