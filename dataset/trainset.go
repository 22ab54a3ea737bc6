package dataset

import (
	"fmt"

	"github.com/YuminosukeSato/radcv/pkg/errors"
	"github.com/YuminosukeSato/radcv/sklearn/model_selection"
)

// TrainSet is the training side of a split. It has no exported constructor:
// it comes from Table.Split, TrainSet.Split or Table.Deployment.
type TrainSet struct {
	t *Table
}

// Split applies a fold to the table and returns the training partition as a
// TrainSet and the evaluation partition as an EvalSet.
func (t *Table) Split(f model_selection.Fold) (TrainSet, EvalSet, error) {
	if err := checkFold(f, t.NRows()); err != nil {
		return TrainSet{}, EvalSet{}, err
	}
	test := t.Subset(f.TestIndices)
	test.heldOut = true
	return TrainSet{t: t.Subset(f.TrainIndices)}, EvalSet{t: test}, nil
}

// Deployment returns the whole table as a TrainSet. Only the final model
// build and the hyper-parameter curve fit on every subject. Rows that came
// out of an EvalSet give an invalid TrainSet, which every Fit rejects.
func (t *Table) Deployment() TrainSet {
	if t.heldOut {
		return TrainSet{}
	}
	return TrainSet{t: t}
}

func checkFold(f model_selection.Fold, n int) error {
	if len(f.TrainIndices) == 0 {
		return errors.NewValueError("dataset.Split", "fold has an empty training side")
	}
	side := make([]int8, n)
	for _, i := range f.TrainIndices {
		if i < 0 || i >= n {
			return errors.NewValueError("dataset.Split", fmt.Sprintf("train index %d out of range [0,%d)", i, n))
		}
		side[i] = 1
	}
	for _, i := range f.TestIndices {
		if i < 0 || i >= n {
			return errors.NewValueError("dataset.Split", fmt.Sprintf("test index %d out of range [0,%d)", i, n))
		}
		if side[i] == 1 {
			return errors.NewValueError("dataset.Split", fmt.Sprintf("row %d is on both sides of the fold", i))
		}
	}
	return nil
}

// Table returns the training rows. Tables are immutable, so the caller
// cannot alter the partition through it.
func (s TrainSet) Table() *Table {
	return s.t
}

// Valid reports whether s was produced by a split.
func (s TrainSet) Valid() bool {
	return s.t != nil && s.t.NRows() > 0
}

// NRows returns the number of training subjects.
func (s TrainSet) NRows() int {
	if s.t == nil {
		return 0
	}
	return s.t.NRows()
}

// Split applies a fold to the training rows, for inner cross-validation.
func (s TrainSet) Split(f model_selection.Fold) (TrainSet, EvalSet, error) {
	if s.t == nil {
		return TrainSet{}, EvalSet{}, errors.NewValueError("dataset.TrainSet.Split", "empty training set")
	}
	return s.t.Split(f)
}

// SelectFeatures narrows the training set to the named columns.
func (s TrainSet) SelectFeatures(names []string) (TrainSet, error) {
	if s.t == nil {
		return TrainSet{}, errors.NewValueError("dataset.TrainSet.SelectFeatures", "empty training set")
	}
	t, err := s.t.SelectFeatures(names)
	if err != nil {
		return TrainSet{}, err
	}
	return TrainSet{t: t}, nil
}

// Map applies a fitted transform to the training rows. The transform must
// keep the subjects and their order, so the result is still training data.
func (s TrainSet) Map(fn func(*Table) (*Table, error)) (TrainSet, error) {
	if s.t == nil {
		return TrainSet{}, errors.NewValueError("dataset.TrainSet.Map", "empty training set")
	}
	out, err := fn(s.t)
	if err != nil {
		return TrainSet{}, err
	}
	if out.NRows() != s.t.NRows() {
		return TrainSet{}, errors.NewDimensionError("dataset.TrainSet.Map", s.t.NRows(), out.NRows(), 0)
	}
	for i := range out.ids {
		if out.ids[i] != s.t.ids[i] {
			return TrainSet{}, errors.NewDataIntegrityError("dataset.TrainSet.Map", out.ids[i], "",
				"transform reordered or replaced training subjects")
		}
	}
	return TrainSet{t: out}, nil
}
