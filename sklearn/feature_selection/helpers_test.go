package feature_selection

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/radcv/dataset"
)

// buildTable assembles a table from named columns. Row i is subject "s<i>".
func buildTable(t *testing.T, names []string, cols [][]float64, labels []int, groups []string) *dataset.Table {
	t.Helper()
	n := len(labels)
	x := mat.NewDense(n, len(cols), nil)
	for j, c := range cols {
		x.SetCol(j, c)
	}
	ids := make([]string, n)
	for i := range ids {
		ids[i] = "s" + string(rune('A'+i/26)) + string(rune('a'+i%26))
	}
	tbl, err := dataset.New(ids, names, x, labels, groups, nil)
	require.NoError(t, err)
	return tbl
}

// repeatTable has 10 repeat groups of 3 segmentation variants each.
//
//	signal   group level + tiny variant noise
//	constant zero variance
//	copy     signal within 1e-10 relative
//	sparse   27 zeros, 3 fives (binarized variance 0.09)
//	noisy    independent per row (low ICC)
//	level    coarse group level, repeatable
func repeatTable(t *testing.T, withGroups bool) *dataset.Table {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 7))
	const groupsN, variants = 10, 3
	n := groupsN * variants
	signal := make([]float64, n)
	constant := make([]float64, n)
	cp := make([]float64, n)
	sparse := make([]float64, n)
	noisy := make([]float64, n)
	level := make([]float64, n)
	labels := make([]int, n)
	var groups []string
	if withGroups {
		groups = make([]string, n)
	}
	for g := 0; g < groupsN; g++ {
		for v := 0; v < variants; v++ {
			i := g*variants + v
			signal[i] = float64(g) + 0.01*float64(v)
			constant[i] = 3
			cp[i] = signal[i] * (1 + 1e-10)
			if i%10 == 0 {
				sparse[i] = 5
			}
			noisy[i] = rng.NormFloat64()
			level[i] = float64(g%5)*2 + 0.02*float64(v)
			labels[i] = g % 2
			if withGroups {
				groups[i] = "g" + string(rune('0'+g))
			}
		}
	}
	return buildTable(t,
		[]string{"signal", "constant", "copy", "sparse", "noisy", "level"},
		[][]float64{signal, constant, cp, sparse, noisy, level},
		labels, groups)
}

// classTable has one column separating the classes and k noise columns.
func classTable(t *testing.T, n, k int, seed uint64) *dataset.Table {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, 3))
	names := []string{"strong"}
	cols := [][]float64{make([]float64, n)}
	for j := 0; j < k; j++ {
		names = append(names, "noise"+string(rune('a'+j)))
		cols = append(cols, make([]float64, n))
	}
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		labels[i] = i % 2
		cols[0][i] = 3*float64(labels[i]) + 0.5*rng.NormFloat64()
		for j := 1; j <= k; j++ {
			cols[j][i] = rng.NormFloat64()
		}
	}
	return buildTable(t, names, cols, labels, nil)
}
