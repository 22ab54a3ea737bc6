package dataset

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/radcv/sklearn/model_selection"
)

func TestSplitEvaluationSideIsEvalSet(t *testing.T) {
	tbl := smallTable(t)
	train, test, err := tbl.Split(model_selection.Fold{TrainIndices: []int{0, 1}, TestIndices: []int{2, 3}})
	require.NoError(t, err)

	var _ EvalSet = test
	assert.Equal(t, 2, train.NRows())
	assert.Equal(t, []string{"P3", "P4"}, test.IDs())

	// evaluation rows never expose the table or a way to fit on them
	typ := reflect.TypeOf(test)
	for _, name := range []string{"Deployment", "Table", "Split"} {
		_, ok := typ.MethodByName(name)
		assert.False(t, ok, "EvalSet.%s", name)
	}
}

func TestEvalSetRowsCannotBecomeTrainSet(t *testing.T) {
	tbl := smallTable(t)
	_, test, err := tbl.Split(model_selection.Fold{TrainIndices: []int{0, 1}, TestIndices: []int{2, 3}})
	require.NoError(t, err)

	var escaped TrainSet
	_, err = test.Map(func(rows *Table) (*Table, error) {
		escaped = rows.Deployment()
		return rows, nil
	})
	require.NoError(t, err)
	assert.False(t, escaped.Valid())

	narrowed, err := test.SelectFeatures([]string{"f2"})
	require.NoError(t, err)
	_, err = narrowed.Predict(func(rows *Table) ([]float64, error) {
		escaped = rows.Subset([]int{0}).Deployment()
		return make([]float64, rows.NRows()), nil
	})
	require.NoError(t, err)
	assert.False(t, escaped.Valid())

	// the source table itself is still deployable
	assert.True(t, tbl.Deployment().Valid())
}

func TestEvalSetPredict(t *testing.T) {
	tbl := smallTable(t)
	_, test, err := tbl.Split(model_selection.Fold{TrainIndices: []int{0, 1}, TestIndices: []int{3, 2}})
	require.NoError(t, err)

	scores, err := test.Predict(func(rows *Table) ([]float64, error) {
		return rows.Column(0), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 3}, scores)

	_, err = test.Predict(func(*Table) ([]float64, error) { return []float64{1}, nil })
	assert.Error(t, err)

	var empty EvalSet
	assert.Equal(t, 0, empty.NRows())
	_, err = empty.Predict(func(*Table) ([]float64, error) { return nil, nil })
	assert.Error(t, err)
}
