package pipeline

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/radcv/dataset"
	"github.com/YuminosukeSato/radcv/metrics"
	"github.com/YuminosukeSato/radcv/pkg/log"
)

const (
	scenarioInformative = 5
	scenarioNoise       = 25
)

// scenarioTable has 50 subjects: two repeat groups of ten segmentations
// (g0 label 0, g1 label 1) and 30 ungrouped subjects with alternating labels.
// Columns inf0..inf4 shift by 3 between classes; n0..n24 are noise.
// Rows of a group share their values up to 0.01 noise.
func scenarioTable(t *testing.T, seed uint64) *dataset.Table {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, 11))
	const groupsN, variants, singles = 2, 10, 30
	p := scenarioInformative + scenarioNoise

	var ids, groups []string
	var labels []int
	var rows [][]float64
	draw := func(label int) []float64 {
		row := make([]float64, p)
		for j := range row {
			if j < scenarioInformative {
				row[j] = 3*float64(label) + 0.5*rng.NormFloat64()
			} else {
				row[j] = rng.NormFloat64()
			}
		}
		return row
	}
	for g := 0; g < groupsN; g++ {
		base := draw(g % 2)
		for v := 0; v < variants; v++ {
			row := make([]float64, p)
			for j := range row {
				row[j] = base[j] + 0.01*rng.NormFloat64()
			}
			ids = append(ids, fmt.Sprintf("g%d_v%d", g, v))
			groups = append(groups, fmt.Sprintf("g%d", g))
			labels = append(labels, g%2)
			rows = append(rows, row)
		}
	}
	for i := 0; i < singles; i++ {
		ids = append(ids, fmt.Sprintf("s%02d", i))
		groups = append(groups, "")
		labels = append(labels, i%2)
		rows = append(rows, draw(i%2))
	}

	x := mat.NewDense(len(rows), p, nil)
	for i, r := range rows {
		x.SetRow(i, r)
	}
	names := make([]string, p)
	for j := range names {
		if j < scenarioInformative {
			names[j] = fmt.Sprintf("inf%d", j)
		} else {
			names[j] = fmt.Sprintf("n%d", j-scenarioInformative)
		}
	}
	tbl, err := dataset.New(ids, names, x, labels, groups, nil)
	require.NoError(t, err)
	return tbl
}

func logisticCandidate(cs ...float64) Candidate {
	return Candidate{
		Selector:  SelectorPassthrough,
		Estimator: EstimatorLogistic,
		Grid:      []Param{{Name: "C", Values: cs}},
	}
}

func nbCandidate() Candidate {
	return Candidate{
		Selector:  SelectorKBest,
		Estimator: EstimatorGaussianNB,
		Grid:      []Param{{Name: "k", Values: []float64{3, 5}}},
	}
}

// scenarioEvaluator runs two trials of 5 outer x 3 inner folds.
func scenarioEvaluator(logger log.Logger, cands ...Candidate) NestedEvaluator {
	e := NewNestedEvaluator(cands...)
	e.Trials = 2
	e.BaseSeed = 42
	e.Workers = 4
	e.Logger = logger
	return e
}

func quietLogger() log.Logger {
	l, _ := log.NewTestLogger(log.LevelWarn)
	return l
}

type rowSet interface {
	NRows() int
	IDs() []string
	Groups() []string
}

func idSet(t rowSet) map[string]bool {
	out := make(map[string]bool, t.NRows())
	for _, id := range t.IDs() {
		out[id] = true
	}
	return out
}

func groupSet(t rowSet) map[string]bool {
	out := map[string]bool{}
	for _, g := range t.Groups() {
		if g != "" {
			out[g] = true
		}
	}
	return out
}

func mustScorer(t *testing.T, name string) metrics.Scorer {
	t.Helper()
	s, err := metrics.GetScorer(name)
	require.NoError(t, err)
	return s
}
