package feature_selection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWelchTTest(t *testing.T) {
	res := WelchTTest([]float64{1, 2, 3, 4, 5}, []float64{3, 4, 5, 6, 7})
	assert.InDelta(t, 2.0, res.Statistic, 1e-12)
	assert.InDelta(t, 0.080516, res.PValue, 1e-4)

	t.Run("constant classes", func(t *testing.T) {
		res := WelchTTest([]float64{1, 1}, []float64{1, 1})
		assert.Equal(t, 1.0, res.PValue)
		res = WelchTTest([]float64{1, 1}, []float64{2, 2})
		assert.Equal(t, 0.0, res.PValue)
	})

	t.Run("too few subjects", func(t *testing.T) {
		res := WelchTTest([]float64{1}, []float64{2, 3})
		assert.True(t, math.IsNaN(res.Statistic))
		assert.Equal(t, 1.0, res.PValue)
	})
}

func TestMannWhitneyU(t *testing.T) {
	res := MannWhitneyU([]float64{1, 2, 3}, []float64{4, 5, 6})
	assert.Equal(t, 9.0, res.Statistic)
	assert.InDelta(t, 0.080856, res.PValue, 1e-3)

	// identical samples carry no evidence
	res = MannWhitneyU([]float64{1, 2, 3}, []float64{1, 2, 3})
	assert.InDelta(t, 1.0, res.PValue, 1e-9)
}

func TestAverageRanks(t *testing.T) {
	ranks, tieSum := averageRanks([]float64{10, 20, 20, 30})
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, ranks)
	assert.Equal(t, 6.0, tieSum)
}

func TestANOVAF(t *testing.T) {
	assert.InDelta(t, 13.5, ANOVAF([]float64{1, 2, 3}, []float64{4, 5, 6}), 1e-12)
	assert.Equal(t, 0.0, ANOVAF(nil, []float64{1, 2}))
	assert.True(t, math.IsInf(ANOVAF([]float64{1, 1}, []float64{2, 2}), 1))
}

func TestICC1(t *testing.T) {
	values := []float64{1, 1.1, 5, 5.1, 9, 9.1}
	groups := []int{0, 0, 1, 1, 2, 2}

	res := ICC1(values, groups, 3)
	assert.InDelta(t, (32-0.005)/(32+0.005), res.ICC, 1e-9)
	assert.InDelta(t, 6400, res.F, 1e-6)
	assert.Less(t, res.PValue, 1e-4)

	t.Run("no within-group spread", func(t *testing.T) {
		res := ICC1([]float64{1, 1, 2, 2}, []int{0, 0, 1, 1}, 2)
		assert.Equal(t, 1.0, res.ICC)
		assert.Equal(t, 0.0, res.PValue)
	})

	t.Run("single group", func(t *testing.T) {
		res := ICC1([]float64{1, 2}, []int{0, 0}, 1)
		assert.True(t, math.IsNaN(res.ICC))
	})
}

func TestCorrectionAdjust(t *testing.T) {
	p := []float64{0.01, 0.04, 0.03, 0.5}

	assert.Equal(t, p, CorrectionNone.Adjust(p))
	assert.InDeltaSlice(t, []float64{0.04, 0.16, 0.12, 1}, CorrectionBonferroni.Adjust(p), 1e-12)
	assert.InDeltaSlice(t, []float64{0.04, 0.16 / 3, 0.16 / 3, 0.5}, CorrectionFDRBH.Adjust(p), 1e-12)
}
