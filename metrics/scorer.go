package metrics

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/radcv/pkg/errors"
)

// Scorer scores positive-class probabilities against true labels. Higher is
// always better.
type Scorer struct {
	Name string
	// Ranking scorers only depend on the order of the scores, so decision
	// values can be passed in place of probabilities.
	Ranking bool
	fn      func(yTrue, proba *mat.VecDense) (float64, error)
}

// Score evaluates the scorer.
func (s Scorer) Score(yTrue []int, proba []float64) (float64, error) {
	if len(yTrue) == 0 {
		return 0, errors.NewValueError(s.Name, "empty vector")
	}
	if len(proba) != len(yTrue) {
		return 0, errors.NewDimensionError(s.Name, len(yTrue), len(proba), 0)
	}
	yt := mat.NewVecDense(len(yTrue), nil)
	for i, y := range yTrue {
		yt.SetVec(i, float64(y))
	}
	return s.fn(yt, mat.NewVecDense(len(proba), append([]float64(nil), proba...)))
}

func thresholded(f func(yTrue, yPred *mat.VecDense) (float64, error)) func(yTrue, proba *mat.VecDense) (float64, error) {
	return func(yTrue, proba *mat.VecDense) (float64, error) {
		pred := mat.NewVecDense(proba.Len(), nil)
		for i := 0; i < proba.Len(); i++ {
			if proba.AtVec(i) >= 0.5 {
				pred.SetVec(i, 1)
			}
		}
		return f(yTrue, pred)
	}
}

var scorers = map[string]Scorer{
	"roc_auc":           {Name: "roc_auc", Ranking: true, fn: AUC},
	"accuracy":          {Name: "accuracy", fn: thresholded(Accuracy)},
	"balanced_accuracy": {Name: "balanced_accuracy", fn: thresholded(BalancedAccuracy)},
	"neg_log_loss": {Name: "neg_log_loss", fn: func(yTrue, proba *mat.VecDense) (float64, error) {
		l, err := BinaryLogLoss(yTrue, proba)
		return -l, err
	}},
}

// GetScorer returns the scorer registered under name.
func GetScorer(name string) (Scorer, error) {
	s, ok := scorers[name]
	if !ok {
		return Scorer{}, errors.NewConfigurationError("metrics", fmt.Sprintf("unknown scoring %q", name), ScorerNames())
	}
	return s, nil
}

// ScorerNames lists the registered scorer names in sorted order.
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for n := range scorers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
