package dataset

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ErrNotFitted is returned by a classifier used before Fit
var ErrNotFitted = errors.New("classifier is not fitted")

// Evaluation is the result of scoring a classifier on a held-out set
type Evaluation struct {
	Classes []string
	// Confusion rows are true classes, columns predicted classes
	Confusion [][]int
	Accuracy  float64
	Support   map[string]int
	TestRows  int
	TrainRows int
}

// Evaluate fits clf on train and scores it on test
func Evaluate(clf Classifier, train, test *Dataset) (*Evaluation, error) {
	if train.Len() == 0 {
		return nil, fmt.Errorf("empty training set")
	}
	if err := clf.Fit(train.X, train.Y); err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}

	classes := unionClasses(train.Classes(), test.Classes())
	pos := make(map[string]int, len(classes))
	for i, c := range classes {
		pos[c] = i
	}

	ev := &Evaluation{
		Classes:   classes,
		Confusion: make([][]int, len(classes)),
		Support:   make(map[string]int, len(classes)),
		TestRows:  test.Len(),
		TrainRows: train.Len(),
	}
	for i := range ev.Confusion {
		ev.Confusion[i] = make([]int, len(classes))
	}
	if test.Len() == 0 {
		return ev, nil
	}

	pred, err := clf.Predict(test.X)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if len(pred) != test.Len() {
		return nil, fmt.Errorf("predict returned %d labels for %d rows", len(pred), test.Len())
	}

	correct := 0
	for i, want := range test.Y {
		got := pred[i]
		if _, ok := pos[got]; !ok {
			return nil, fmt.Errorf("predicted unknown class %q", got)
		}
		ev.Confusion[pos[want]][pos[got]]++
		ev.Support[want]++
		if got == want {
			correct++
		}
	}
	ev.Accuracy = float64(correct) / float64(test.Len())
	return ev, nil
}

func unionClasses(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Majority always predicts the most frequent training label. It is the
// baseline any real model has to beat.
type Majority struct {
	classes []string
	prior   []float64
	best    string
}

// Fit records the class frequencies of y
func (m *Majority) Fit(_ mat.Matrix, y []string) error {
	if len(y) == 0 {
		return fmt.Errorf("no labels")
	}
	counts := map[string]int{}
	for _, label := range y {
		counts[label]++
	}
	m.classes = m.classes[:0]
	for c := range counts {
		m.classes = append(m.classes, c)
	}
	sort.Strings(m.classes)

	m.prior = make([]float64, len(m.classes))
	bestCount := -1
	for i, c := range m.classes {
		m.prior[i] = float64(counts[c]) / float64(len(y))
		if counts[c] > bestCount {
			bestCount = counts[c]
			m.best = c
		}
	}
	return nil
}

// Predict returns the majority class for every row
func (m *Majority) Predict(X mat.Matrix) ([]string, error) {
	if m.classes == nil {
		return nil, ErrNotFitted
	}
	rows, _ := X.Dims()
	out := make([]string, rows)
	for i := range out {
		out[i] = m.best
	}
	return out, nil
}

// PredictProba returns the training class frequencies for every row; columns
// follow Classes.
func (m *Majority) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if m.classes == nil {
		return nil, ErrNotFitted
	}
	rows, _ := X.Dims()
	if rows == 0 {
		return &mat.Dense{}, nil
	}
	out := mat.NewDense(rows, len(m.classes), nil)
	for i := 0; i < rows; i++ {
		out.SetRow(i, m.prior)
	}
	return out, nil
}

// Classes returns the fitted classes, sorted
func (m *Majority) Classes() []string { return m.classes }
