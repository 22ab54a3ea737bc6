// Package dataset holds the immutable feature table and the TrainSet type
// that every Fit in radcv consumes.
//
// A TrainSet can only be obtained by splitting a table with a fold
// (Table.Split, TrainSet.Split) or by Table.Deployment. The evaluation side
// of a split is an EvalSet, which has no way back to a TrainSet, so fitting
// a filter, harmonizer or pipeline on evaluation rows does not type-check.
package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/radcv/pkg/errors"
)

// Table is an immutable subjects × features matrix with binary labels.
type Table struct {
	ids      []string
	features []string
	x        *mat.Dense
	labels   []int
	groups   []string
	batches  []string
	// heldOut marks rows that came out of an EvalSet.
	heldOut bool
}

// New builds and validates a table. groups and batches may be nil.
// The inputs are copied.
func New(ids, features []string, x mat.Matrix, labels []int, groups, batches []string) (*Table, error) {
	r, c := 0, 0
	if x != nil {
		r, c = x.Dims()
	}
	if r != len(ids) {
		return nil, errors.NewDataIntegrityError("dataset.New", "", "",
			fmt.Sprintf("%d ids for %d rows", len(ids), r))
	}
	if c != len(features) {
		return nil, errors.NewDataIntegrityError("dataset.New", "", "",
			fmt.Sprintf("%d feature names for %d columns", len(features), c))
	}
	t := &Table{
		ids:      append([]string(nil), ids...),
		features: append([]string(nil), features...),
		x:        &mat.Dense{},
		labels:   append([]int(nil), labels...),
	}
	if r > 0 && c > 0 {
		t.x = mat.DenseCopyOf(x)
	}
	if groups != nil {
		t.groups = append([]string(nil), groups...)
	}
	if batches != nil {
		t.batches = append([]string(nil), batches...)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the table schema and reports the first violation with the
// subject and feature that triggered it.
func (t *Table) Validate() error {
	const op = "dataset.Validate"
	n := len(t.ids)
	if n == 0 {
		return errors.NewDataIntegrityError(op, "", "", "table has no rows")
	}
	if len(t.features) == 0 {
		return errors.NewDataIntegrityError(op, "", "", "table has no feature columns")
	}
	if len(t.labels) != n {
		return errors.NewDataIntegrityError(op, "", "",
			fmt.Sprintf("%d labels for %d subjects", len(t.labels), n))
	}
	if t.groups != nil && len(t.groups) != n {
		return errors.NewDataIntegrityError(op, "", "",
			fmt.Sprintf("%d group entries for %d subjects", len(t.groups), n))
	}
	if t.batches != nil && len(t.batches) != n {
		return errors.NewDataIntegrityError(op, "", "",
			fmt.Sprintf("%d batch entries for %d subjects", len(t.batches), n))
	}

	seen := make(map[string]struct{}, n)
	for _, id := range t.ids {
		if id == "" {
			return errors.NewDataIntegrityError(op, "", "", "empty subject id")
		}
		if _, dup := seen[id]; dup {
			return errors.NewDataIntegrityError(op, id, "", "duplicate subject id")
		}
		seen[id] = struct{}{}
	}

	names := make(map[string]struct{}, len(t.features))
	for _, f := range t.features {
		if _, dup := names[f]; dup {
			return errors.NewDataIntegrityError(op, "", f, "duplicate feature name")
		}
		names[f] = struct{}{}
	}

	for i, y := range t.labels {
		if y != 0 && y != 1 {
			return errors.NewDataIntegrityError(op, t.ids[i], "",
				fmt.Sprintf("label %d outside {0,1}", y))
		}
	}

	if t.groups != nil {
		groupLabel := make(map[string]int)
		for i, g := range t.groups {
			if g == "" {
				continue
			}
			if y, ok := groupLabel[g]; ok && y != t.labels[i] {
				return errors.NewDataIntegrityError(op, t.ids[i], "",
					fmt.Sprintf("group %q mixes labels", g))
			}
			groupLabel[g] = t.labels[i]
		}
	}

	for i := 0; i < n; i++ {
		for j, f := range t.features {
			if v := t.x.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.NewDataIntegrityError(op, t.ids[i], f, "non-finite value")
			}
		}
	}
	return nil
}

// NRows returns the number of subjects.
func (t *Table) NRows() int { return len(t.ids) }

// NFeatures returns the number of feature columns.
func (t *Table) NFeatures() int { return len(t.features) }

// IDs returns a copy of the subject identifiers.
func (t *Table) IDs() []string { return append([]string(nil), t.ids...) }

// Features returns a copy of the feature names in column order.
func (t *Table) Features() []string { return append([]string(nil), t.features...) }

// Labels returns a copy of the class labels.
func (t *Table) Labels() []int { return append([]int(nil), t.labels...) }

// HasGroups reports whether any row belongs to a repeatability group.
func (t *Table) HasGroups() bool {
	for _, g := range t.groups {
		if g != "" {
			return true
		}
	}
	return false
}

// Groups returns a copy of the repeatability groups ("" = no group), or a
// slice of empty strings when the table has none.
func (t *Table) Groups() []string {
	if t.groups == nil {
		return make([]string, len(t.ids))
	}
	return append([]string(nil), t.groups...)
}

// SplitKeys returns one key per row such that rows sharing a key must fall on
// the same side of any split. Ungrouped rows get a key of their own.
func (t *Table) SplitKeys() []string {
	keys := make([]string, len(t.ids))
	for i, id := range t.ids {
		if t.groups != nil && t.groups[i] != "" {
			keys[i] = "g:" + t.groups[i]
		} else {
			keys[i] = "s:" + id
		}
	}
	return keys
}

// Batches returns a copy of the acquisition batches, or nil if absent.
func (t *Table) Batches() []string {
	if t.batches == nil {
		return nil
	}
	return append([]string(nil), t.batches...)
}

// At returns the value of subject i, feature j.
func (t *Table) At(i, j int) float64 { return t.x.At(i, j) }

// X returns a copy of the feature matrix.
func (t *Table) X() *mat.Dense {
	if t.x.IsEmpty() {
		return &mat.Dense{}
	}
	return mat.DenseCopyOf(t.x)
}

// Column returns a copy of feature column j.
func (t *Table) Column(j int) []float64 {
	return mat.Col(nil, j, t.x)
}

// Row returns a copy of subject row i.
func (t *Table) Row(i int) []float64 {
	return mat.Row(nil, i, t.x)
}

// FeatureIndex returns the column of the named feature, or -1.
func (t *Table) FeatureIndex(name string) int {
	for j, f := range t.features {
		if f == name {
			return j
		}
	}
	return -1
}

// Subset returns a new table holding the given rows in the given order.
func (t *Table) Subset(rows []int) *Table {
	c := len(t.features)
	out := &Table{
		ids:      make([]string, len(rows)),
		features: t.Features(),
		labels:   make([]int, len(rows)),
		heldOut:  t.heldOut,
	}
	if len(rows) > 0 {
		out.x = mat.NewDense(len(rows), c, nil)
	} else {
		out.x = &mat.Dense{}
	}
	if t.groups != nil {
		out.groups = make([]string, len(rows))
	}
	if t.batches != nil {
		out.batches = make([]string, len(rows))
	}
	for k, i := range rows {
		out.ids[k] = t.ids[i]
		out.labels[k] = t.labels[i]
		out.x.SetRow(k, t.x.RawRowView(i))
		if t.groups != nil {
			out.groups[k] = t.groups[i]
		}
		if t.batches != nil {
			out.batches[k] = t.batches[i]
		}
	}
	return out
}

// SelectFeatures returns a new table restricted to the named columns, in the
// order given. Unknown names fail with a DataIntegrityError.
func (t *Table) SelectFeatures(names []string) (*Table, error) {
	cols := make([]int, len(names))
	for k, name := range names {
		j := t.FeatureIndex(name)
		if j < 0 {
			return nil, errors.NewDataIntegrityError("dataset.SelectFeatures", "", name, "unknown feature")
		}
		cols[k] = j
	}
	return t.selectColumns(cols), nil
}

func (t *Table) selectColumns(cols []int) *Table {
	n := len(t.ids)
	out := &Table{
		ids:     t.IDs(),
		labels:  t.Labels(),
		batches: t.Batches(),
		heldOut: t.heldOut,
	}
	if t.groups != nil {
		out.groups = t.Groups()
	}
	out.features = make([]string, len(cols))
	for k, j := range cols {
		out.features[k] = t.features[j]
	}
	if n == 0 || len(cols) == 0 {
		out.x = &mat.Dense{}
		return out
	}
	out.x = mat.NewDense(n, len(cols), nil)
	for k, j := range cols {
		out.x.SetCol(k, mat.Col(nil, j, t.x))
	}
	return out
}

// WithValues returns a table sharing t's metadata with a replaced feature
// matrix of the same shape. Transforms use it to emit their output.
func (t *Table) WithValues(x *mat.Dense) (*Table, error) {
	r, c := x.Dims()
	if r != len(t.ids) || c != len(t.features) {
		return nil, errors.NewDimensionError("dataset.WithValues", len(t.features), c, 1)
	}
	out := t.selectColumns(nil)
	out.features = t.Features()
	if r > 0 && c > 0 {
		out.x = mat.DenseCopyOf(x)
	}
	return out, nil
}

// ClassCounts returns the number of rows with label 0 and 1.
func (t *Table) ClassCounts() (neg, pos int) {
	for _, y := range t.labels {
		if y == 1 {
			pos++
		} else {
			neg++
		}
	}
	return neg, pos
}
