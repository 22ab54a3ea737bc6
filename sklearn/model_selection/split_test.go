package model_selection

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenario returns 50 rows: rows 0-9 form group "a" (label 0), rows 10-19
// form group "b" (label 1), the rest are singletons with alternating labels.
func scenario() ([]int, []string) {
	labels := make([]int, 50)
	keys := make([]string, 50)
	for i := range labels {
		switch {
		case i < 10:
			labels[i], keys[i] = 0, "a"
		case i < 20:
			labels[i], keys[i] = 1, "b"
		default:
			labels[i], keys[i] = i%2, fmt.Sprintf("s%d", i)
		}
	}
	return labels, keys
}

func assertPartition(t *testing.T, f Fold, n int) {
	t.Helper()
	seen := make([]int, n)
	for _, i := range f.TrainIndices {
		seen[i]++
	}
	for _, i := range f.TestIndices {
		seen[i]++
	}
	for i, c := range seen {
		assert.Equal(t, 1, c, "row %d must appear exactly once", i)
	}
}

func assertGroupsIntact(t *testing.T, f Fold, keys []string) {
	t.Helper()
	train := make(map[string]bool)
	for _, i := range f.TrainIndices {
		train[keys[i]] = true
	}
	for _, i := range f.TestIndices {
		assert.False(t, train[keys[i]], "key %s on both sides", keys[i])
	}
}

func TestStratifiedGroupKFold(t *testing.T) {
	labels, keys := scenario()
	folds, err := NewStratifiedGroupKFold(5, 7).Split(labels, keys)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	testCount := make([]int, len(labels))
	for _, f := range folds {
		assertPartition(t, f, len(labels))
		assertGroupsIntact(t, f, keys)

		var pos, neg int
		for _, i := range f.TestIndices {
			testCount[i]++
			if labels[i] == 1 {
				pos++
			} else {
				neg++
			}
		}
		assert.Positive(t, pos, "every test fold sees class 1")
		assert.Positive(t, neg, "every test fold sees class 0")
	}
	for i, c := range testCount {
		assert.Equal(t, 1, c, "row %d tested exactly once", i)
	}
}

func TestStratifiedGroupKFoldDeterministic(t *testing.T) {
	labels, keys := scenario()
	a, err := NewStratifiedGroupKFold(3, 11).Split(labels, keys)
	require.NoError(t, err)
	b, err := NewStratifiedGroupKFold(3, 11).Split(labels, keys)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := NewStratifiedGroupKFold(3, 12).Split(labels, keys)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestStratifiedGroupKFoldErrors(t *testing.T) {
	labels, keys := scenario()

	_, err := NewStratifiedGroupKFold(1, 0).Split(labels, keys)
	assert.Error(t, err)

	// Only two units of class 0 in this table.
	_, err = NewStratifiedGroupKFold(3, 0).Split([]int{0, 0, 1, 1, 1}, []string{"a", "b", "c", "d", "e"})
	assert.Error(t, err)

	_, err = NewStratifiedGroupKFold(2, 0).Split([]int{0, 1, 0, 1}, []string{"a", "a", "b", "c"})
	assert.Error(t, err, "a key mixing labels is rejected")
}

func TestHoldoutSplit(t *testing.T) {
	labels, keys := scenario()
	fold, err := NewHoldoutSplit(0.25, 3).Split(labels, keys)
	require.NoError(t, err)

	assertPartition(t, fold, len(labels))
	assertGroupsIntact(t, fold, keys)

	var pos, neg int
	for _, i := range fold.TestIndices {
		if labels[i] == 1 {
			pos++
		} else {
			neg++
		}
	}
	// 25 rows per class, 25% of each is about 6.
	assert.InDelta(t, 6, pos, 1)
	assert.InDelta(t, 6, neg, 1)
}

func TestHoldoutSplitKeepsBothClassesInTraining(t *testing.T) {
	labels := []int{0, 0, 1, 1}
	keys := []string{"a", "b", "c", "d"}
	fold, err := NewHoldoutSplit(0.9, 1).Split(labels, keys)
	require.NoError(t, err)

	train := make(map[int]bool)
	for _, i := range fold.TrainIndices {
		train[labels[i]] = true
	}
	assert.True(t, train[0])
	assert.True(t, train[1])
	assert.Len(t, fold.TestIndices, 2)
}

func TestHoldoutSplitInvalidFraction(t *testing.T) {
	labels, keys := scenario()
	for _, f := range []float64{0, 1, -0.1, 1.5} {
		_, err := NewHoldoutSplit(f, 0).Split(labels, keys)
		assert.Error(t, err, "fraction %v", f)
	}
}
