// Package dataset assembles training matrices from a labeled table and
// defines the classifier contract used to evaluate them.
package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"room_occupancy/labeler"
	"room_occupancy/table"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNoLabeledRows is returned when every row has a missing label
	ErrNoLabeledRows = errors.New("no labeled rows after filtering")
	// ErrSingleClass is shared with the labeler so callers can test one error
	ErrSingleClass = labeler.ErrSingleClass
	// ErrNoFeatures is returned when no usable numeric column remains
	ErrNoFeatures = errors.New("no numeric feature columns")
)

// Classifier is any model that can be fitted on a feature matrix. Rows of X
// align with y; missing cells are NaN.
type Classifier interface {
	Fit(X mat.Matrix, y []string) error
	Predict(X mat.Matrix) ([]string, error)
	PredictProba(X mat.Matrix) (*mat.Dense, error)
	Classes() []string
}

// Dataset is a feature matrix with one label per row
type Dataset struct {
	Index    []time.Time
	Features []string
	X        *mat.Dense
	Y        []string
}

// Len returns the number of rows
func (d *Dataset) Len() int { return len(d.Y) }

// Classes returns the distinct labels, sorted
func (d *Dataset) Classes() []string {
	seen := map[string]bool{}
	var out []string
	for _, y := range d.Y {
		if !seen[y] {
			seen[y] = true
			out = append(out, y)
		}
	}
	sort.Strings(out)
	return out
}

// Build turns a labeled table into a dataset. Rows with a missing label are
// dropped, the label column and every column in exclude are removed, and only
// numeric columns with at least one observation are kept.
func Build(t *table.Table, labelColumn string, exclude []string) (*Dataset, error) {
	labels, ok := t.Column(labelColumn)
	if !ok {
		return nil, fmt.Errorf("label column %q not found", labelColumn)
	}

	var rows []int
	for i, v := range labels.Values {
		if !v.IsMissing() {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return nil, ErrNoLabeledRows
	}

	skip := map[string]bool{labelColumn: true}
	for _, name := range exclude {
		skip[name] = true
	}

	var cols []*table.Column
	for _, c := range t.Columns {
		if skip[c.Name] || !c.IsNumeric() {
			continue
		}
		observed := false
		for _, r := range rows {
			if !c.Values[r].IsMissing() {
				observed = true
				break
			}
		}
		if observed {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return nil, ErrNoFeatures
	}

	ds := &Dataset{
		Index:    make([]time.Time, len(rows)),
		Features: make([]string, len(cols)),
		X:        mat.NewDense(len(rows), len(cols), nil),
		Y:        make([]string, len(rows)),
	}
	for j, c := range cols {
		ds.Features[j] = c.Name
	}
	for i, r := range rows {
		ds.Index[i] = t.Index[r]
		ds.Y[i] = labels.Values[r].String()
		for j, c := range cols {
			ds.X.Set(i, j, cell(c.Values[r]))
		}
	}

	if len(ds.Classes()) < 2 {
		return nil, fmt.Errorf("%w: only %q remains", ErrSingleClass, ds.Y[0])
	}
	return ds, nil
}

func cell(v table.Value) float64 {
	if f, ok := v.Float(); ok && !math.IsInf(f, 0) {
		return f
	}
	return math.NaN()
}

// Split divides ds in time order: the last testRatio share of rows becomes the
// test set. A ratio that leaves either side empty falls back to a 70/30 split
// with at least one row on each side.
func Split(ds *Dataset, testRatio float64) (train, test *Dataset) {
	n := ds.Len()
	at := int(float64(n) * (1 - testRatio))
	if at <= 0 || at >= n {
		at = n - max(1, int(0.3*float64(n)))
		if at < 1 {
			at = 1
		}
	}
	if at > n {
		at = n
	}
	return ds.slice(0, at), ds.slice(at, n)
}

func (d *Dataset) slice(lo, hi int) *Dataset {
	out := &Dataset{
		Index:    d.Index[lo:hi],
		Features: d.Features,
		Y:        d.Y[lo:hi],
	}
	if hi > lo {
		out.X = mat.DenseCopyOf(d.X.Slice(lo, hi, 0, len(d.Features)))
	}
	return out
}

// Align builds a matrix over the given feature columns for prediction.
// Columns absent from t are all NaN.
func Align(t *table.Table, features []string) *mat.Dense {
	if t.Len() == 0 || len(features) == 0 {
		return &mat.Dense{}
	}
	x := mat.NewDense(t.Len(), len(features), nil)
	for j, name := range features {
		c, ok := t.Column(name)
		for i := 0; i < t.Len(); i++ {
			if !ok {
				x.Set(i, j, math.NaN())
				continue
			}
			x.Set(i, j, cell(c.Values[i]))
		}
	}
	return x
}

// Meta describes a trained feature set
type Meta struct {
	TimeColumn       string            `json:"ts_col"`
	LabelColumnsUsed []string          `json:"label_columns_used"`
	ClassNames       []string          `json:"class_names"`
	Features         []string          `json:"feature_cols"`
	FeatureHash      string            `json:"feature_hash"`
	Args             map[string]string `json:"args,omitempty"`
}

// NewMeta fills Meta for a dataset
func NewMeta(ds *Dataset, timeColumn string, labelColumnsUsed []string) Meta {
	used := append([]string{}, labelColumnsUsed...)
	sort.Strings(used)
	return Meta{
		TimeColumn:       timeColumn,
		LabelColumnsUsed: used,
		ClassNames:       ds.Classes(),
		Features:         ds.Features,
		FeatureHash:      FeatureHash(ds.Features),
	}
}

// FeatureHash is the hex sha256 of the comma-joined feature names
func FeatureHash(features []string) string {
	sum := sha256.Sum256([]byte(strings.Join(features, ",")))
	return hex.EncodeToString(sum[:])
}
