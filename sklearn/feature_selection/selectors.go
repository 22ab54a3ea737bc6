package feature_selection

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/radcv/dataset"
	"github.com/YuminosukeSato/radcv/pkg/errors"
	"github.com/YuminosukeSato/radcv/pkg/log"
	"github.com/YuminosukeSato/radcv/sklearn/linear_model"
)

// FittedSelection is the column subset chosen by a selector on a training
// partition.
type FittedSelection struct {
	features []string
	scores   []float64
}

// Features returns the selected feature names in input order.
func (s *FittedSelection) Features() []string { return append([]string(nil), s.features...) }

// Scores returns the per-feature score the selector ranked by, aligned with
// Features. Passthrough leaves it empty.
func (s *FittedSelection) Scores() []float64 { return append([]float64(nil), s.scores...) }

// Apply narrows t to the selected features.
func (s *FittedSelection) Apply(t *dataset.Table) (*dataset.Table, error) {
	return t.SelectFeatures(s.features)
}

// NewFittedSelection rebuilds a selection from stored feature names, as
// found in a persisted model.
func NewFittedSelection(features []string) *FittedSelection {
	return &FittedSelection{features: append([]string(nil), features...)}
}

// Passthrough keeps every column.
type Passthrough struct{}

// Fit returns all features of the partition.
func (Passthrough) Fit(train dataset.TrainSet) (*FittedSelection, error) {
	if !train.Valid() {
		return nil, errors.Wrap(errors.ErrEmptyData, "Passthrough.Fit")
	}
	return &FittedSelection{features: train.Table().Features()}, nil
}

// SelectKBest keeps the K features with the highest ANOVA F statistic.
// K larger than the number of columns keeps all of them.
type SelectKBest struct {
	K int
}

// Fit ranks features by F, ties broken by column order.
func (s SelectKBest) Fit(train dataset.TrainSet) (*FittedSelection, error) {
	if s.K <= 0 {
		return nil, errors.NewConfigurationError("SelectKBest", "k must be positive", s.K)
	}
	if !train.Valid() {
		return nil, errors.Wrap(errors.ErrEmptyData, "SelectKBest.Fit")
	}
	tbl := train.Table()
	names := tbl.Features()
	y := tbl.Labels()
	f := make([]float64, len(names))
	for j := range names {
		neg, pos := splitByClass(tbl.Column(j), y)
		f[j] = ANOVAF(neg, pos)
	}

	idx := make([]int, len(names))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return f[idx[a]] > f[idx[b]] })
	k := s.K
	if k > len(idx) {
		k = len(idx)
	}
	top := append([]int(nil), idx[:k]...)
	sort.Ints(top)

	out := &FittedSelection{}
	for _, j := range top {
		out.features = append(out.features, names[j])
		out.scores = append(out.scores, f[j])
	}
	return out, nil
}

// SelectFromL1 keeps the features with a non-zero coefficient in an
// L1-penalized logistic regression with inverse strength C.
// If the penalty zeroes every coefficient the single feature with the highest
// ANOVA F statistic is kept and a warning is logged.
type SelectFromL1 struct {
	C       float64
	MaxIter int
	Logger  log.Logger
}

// Fit fits the L1 model on the partition. A solver that does not converge
// fails the fit.
func (s SelectFromL1) Fit(train dataset.TrainSet) (*FittedSelection, error) {
	if s.C <= 0 {
		return nil, errors.NewConfigurationError("SelectFromL1", "C must be positive", s.C)
	}
	if !train.Valid() {
		return nil, errors.Wrap(errors.ErrEmptyData, "SelectFromL1.Fit")
	}
	tbl := train.Table()
	names := tbl.Features()

	opts := []linear_model.LogisticRegressionOption{
		linear_model.WithLRPenalty("l1"),
		linear_model.WithLRC(s.C),
	}
	if s.MaxIter > 0 {
		opts = append(opts, linear_model.WithLRMaxIter(s.MaxIter))
	}
	lr := linear_model.NewLogisticRegression(opts...)
	if err := lr.Fit(tbl.X(), tbl.Labels()); err != nil {
		return nil, errors.Wrap(err, "SelectFromL1.Fit")
	}
	coef := lr.Coef()

	out := &FittedSelection{}
	for _, j := range lr.Support(0) {
		out.features = append(out.features, names[j])
		out.scores = append(out.scores, math.Abs(coef[j]))
	}
	if len(out.features) > 0 {
		return out, nil
	}

	best, bestScore := 0, -1.0
	y := tbl.Labels()
	for j := range names {
		neg, pos := splitByClass(tbl.Column(j), y)
		if f := ANOVAF(neg, pos); f > bestScore {
			best, bestScore = j, f
		}
	}
	log.OrDefault(s.Logger, "feature_selection.l1").Warn("L1 selector zeroed every coefficient, keeping strongest feature",
		log.FilterStepKey, log.FilterStepSelection,
		log.FilterReasonKey, log.ReasonL1Fallback,
		log.FeatureKey, names[best],
	)
	out.features = []string{names[best]}
	out.scores = []float64{0}
	return out, nil
}
