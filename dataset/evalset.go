package dataset

import (
	"github.com/YuminosukeSato/radcv/pkg/errors"
)

// EvalSet is the evaluation side of a split. It can be narrowed,
// transformed and predicted on, but nothing turns it into a TrainSet.
type EvalSet struct {
	t *Table
}

// NRows returns the number of evaluation subjects.
func (e EvalSet) NRows() int {
	if e.t == nil {
		return 0
	}
	return e.t.NRows()
}

func (e EvalSet) IDs() []string {
	if e.t == nil {
		return nil
	}
	return e.t.IDs()
}

func (e EvalSet) Features() []string {
	if e.t == nil {
		return nil
	}
	return e.t.Features()
}

func (e EvalSet) Labels() []int {
	if e.t == nil {
		return nil
	}
	return e.t.Labels()
}

// Groups returns the group column, or nil without one.
func (e EvalSet) Groups() []string {
	if e.t == nil {
		return nil
	}
	return e.t.Groups()
}

// SelectFeatures narrows the evaluation rows to the named columns.
func (e EvalSet) SelectFeatures(names []string) (EvalSet, error) {
	if e.t == nil {
		return EvalSet{}, errors.NewValueError("dataset.EvalSet.SelectFeatures", "empty evaluation set")
	}
	t, err := e.t.SelectFeatures(names)
	if err != nil {
		return EvalSet{}, err
	}
	return EvalSet{t: t}, nil
}

// Map applies a fitted transform to the evaluation rows.
func (e EvalSet) Map(fn func(*Table) (*Table, error)) (EvalSet, error) {
	if e.t == nil {
		return EvalSet{}, errors.NewValueError("dataset.EvalSet.Map", "empty evaluation set")
	}
	out, err := fn(e.t)
	if err != nil {
		return EvalSet{}, err
	}
	if out.NRows() != e.t.NRows() {
		return EvalSet{}, errors.NewDimensionError("dataset.EvalSet.Map", e.t.NRows(), out.NRows(), 0)
	}
	out.heldOut = true
	return EvalSet{t: out}, nil
}

// Predict runs a fitted model over the evaluation rows and returns one
// score per subject.
func (e EvalSet) Predict(fn func(*Table) ([]float64, error)) ([]float64, error) {
	if e.t == nil {
		return nil, errors.NewValueError("dataset.EvalSet.Predict", "empty evaluation set")
	}
	scores, err := fn(e.t)
	if err != nil {
		return nil, err
	}
	if len(scores) != e.t.NRows() {
		return nil, errors.NewDimensionError("dataset.EvalSet.Predict", e.t.NRows(), len(scores), 0)
	}
	return scores, nil
}
