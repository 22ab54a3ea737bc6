package feature_selection

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// TestResult is the outcome of a univariate two-class test.
type TestResult struct {
	Statistic float64
	PValue    float64
}

// splitByClass returns the values of x for label 0 and label 1.
func splitByClass(x []float64, y []int) (neg, pos []float64) {
	for i, v := range x {
		if y[i] == 1 {
			pos = append(pos, v)
		} else {
			neg = append(neg, v)
		}
	}
	return neg, pos
}

// WelchTTest is the two-sided unequal-variance t-test of pos against neg.
func WelchTTest(neg, pos []float64) TestResult {
	n0, n1 := float64(len(neg)), float64(len(pos))
	if n0 < 2 || n1 < 2 {
		return TestResult{Statistic: math.NaN(), PValue: 1}
	}
	m0, v0 := stat.MeanVariance(neg, nil)
	m1, v1 := stat.MeanVariance(pos, nil)
	se0, se1 := v0/n0, v1/n1
	se := se0 + se1
	if se == 0 {
		if m0 == m1 {
			return TestResult{Statistic: 0, PValue: 1}
		}
		return TestResult{Statistic: math.Copysign(math.Inf(1), m1-m0), PValue: 0}
	}
	t := (m1 - m0) / math.Sqrt(se)
	df := se * se / (se0*se0/(n0-1) + se1*se1/(n1-1))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.Survival(math.Abs(t))
	return TestResult{Statistic: t, PValue: math.Min(p, 1)}
}

// MannWhitneyU is the two-sided rank-sum test of pos against neg using the
// normal approximation with tie and continuity correction. Statistic is U
// of pos.
func MannWhitneyU(neg, pos []float64) TestResult {
	n0, n1 := len(neg), len(pos)
	if n0 == 0 || n1 == 0 {
		return TestResult{Statistic: math.NaN(), PValue: 1}
	}
	all := make([]float64, 0, n0+n1)
	all = append(all, pos...)
	all = append(all, neg...)
	ranks, tieSum := averageRanks(all)

	var r1 float64
	for i := 0; i < n1; i++ {
		r1 += ranks[i]
	}
	fn0, fn1, n := float64(n0), float64(n1), float64(n0+n1)
	u := r1 - fn1*(fn1+1)/2
	mu := fn0 * fn1 / 2
	sigma2 := fn0 * fn1 / 12 * ((n + 1) - tieSum/(n*(n-1)))
	if sigma2 <= 0 {
		return TestResult{Statistic: u, PValue: 1}
	}
	z := (math.Abs(u-mu) - 0.5) / math.Sqrt(sigma2)
	if z < 0 {
		z = 0
	}
	p := 2 * distuv.UnitNormal.Survival(z)
	return TestResult{Statistic: u, PValue: math.Min(p, 1)}
}

// averageRanks returns 1-based ranks with ties averaged, and Σ(t³−t) over
// tie blocks.
func averageRanks(x []float64) ([]float64, float64) {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })

	ranks := make([]float64, len(x))
	var tieSum float64
	for i := 0; i < len(idx); {
		j := i + 1
		for j < len(idx) && x[idx[j]] == x[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		if t := float64(j - i); t > 1 {
			tieSum += t*t*t - t
		}
		i = j
	}
	return ranks, tieSum
}

// ANOVAF is the one-way ANOVA F statistic of a feature across the two
// classes (f_classif).
func ANOVAF(neg, pos []float64) float64 {
	n0, n1 := float64(len(neg)), float64(len(pos))
	n := n0 + n1
	if n0 == 0 || n1 == 0 || n < 3 {
		return 0
	}
	m0, m1 := stat.Mean(neg, nil), stat.Mean(pos, nil)
	grand := (m0*n0 + m1*n1) / n
	ssb := n0*(m0-grand)*(m0-grand) + n1*(m1-grand)*(m1-grand)
	var ssw float64
	for _, v := range neg {
		ssw += (v - m0) * (v - m0)
	}
	for _, v := range pos {
		ssw += (v - m1) * (v - m1)
	}
	msw := ssw / (n - 2)
	if msw == 0 {
		if ssb == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return ssb / msw
}

// ICCResult is a one-way random-effects intraclass correlation.
type ICCResult struct {
	ICC    float64
	F      float64
	PValue float64
}

// ICC1 computes ICC(1) of values grouped by groups[i] with the unbalanced
// n0 correction, and the F-test p-value of the between-group effect.
// Only groups with at least two members should be passed.
func ICC1(values []float64, groups []int, k int) ICCResult {
	n := len(values)
	if k < 2 || n <= k {
		return ICCResult{ICC: math.NaN(), F: math.NaN(), PValue: 1}
	}
	sums := make([]float64, k)
	counts := make([]float64, k)
	for i, v := range values {
		sums[groups[i]] += v
		counts[groups[i]]++
	}
	grand := stat.Mean(values, nil)
	var ssb, ssw, sumN2 float64
	for g := 0; g < k; g++ {
		m := sums[g] / counts[g]
		ssb += counts[g] * (m - grand) * (m - grand)
		sumN2 += counts[g] * counts[g]
	}
	for i, v := range values {
		m := sums[groups[i]] / counts[groups[i]]
		ssw += (v - m) * (v - m)
	}
	fn, fk := float64(n), float64(k)
	msb := ssb / (fk - 1)
	msw := ssw / (fn - fk)
	n0 := (fn - sumN2/fn) / (fk - 1)

	if msw == 0 {
		if msb == 0 {
			return ICCResult{ICC: math.NaN(), F: math.NaN(), PValue: 1}
		}
		return ICCResult{ICC: 1, F: math.Inf(1), PValue: 0}
	}
	icc := (msb - msw) / (msb + (n0-1)*msw)
	f := msb / msw
	dist := distuv.F{D1: fk - 1, D2: fn - fk}
	return ICCResult{ICC: icc, F: f, PValue: dist.Survival(f)}
}

// Correction is a multiple-comparison correction for p-values.
type Correction string

const (
	CorrectionNone       Correction = "none"
	CorrectionBonferroni Correction = "bonferroni"
	CorrectionFDRBH      Correction = "fdr_bh"
)

// Adjust returns corrected p-values in input order.
func (c Correction) Adjust(p []float64) []float64 {
	m := float64(len(p))
	out := make([]float64, len(p))
	switch c {
	case CorrectionBonferroni:
		for i, v := range p {
			out[i] = math.Min(v*m, 1)
		}
	case CorrectionFDRBH:
		idx := make([]int, len(p))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return p[idx[a]] < p[idx[b]] })
		running := 1.0
		for r := len(idx) - 1; r >= 0; r-- {
			adj := p[idx[r]] * m / float64(r+1)
			if adj < running {
				running = adj
			}
			out[idx[r]] = math.Min(running, 1)
		}
	default:
		copy(out, p)
	}
	return out
}
