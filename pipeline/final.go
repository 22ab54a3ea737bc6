package pipeline

import (
	"context"
	"io"
	"math"

	"github.com/YuminosukeSato/radcv/core/model"
	"github.com/YuminosukeSato/radcv/dataset"
	"github.com/YuminosukeSato/radcv/pkg/errors"
	"github.com/YuminosukeSato/radcv/pkg/log"
	"github.com/YuminosukeSato/radcv/preprocessing"
	"github.com/YuminosukeSato/radcv/sklearn/feature_selection"
)

// FinalModelVersion is written into every bundle.
const FinalModelVersion = "1"

// FinalModelBuilder picks the best pipeline from a TrialReport and refits it
// on every subject.
type FinalModelBuilder struct {
	// Penalty weighs the across-trial std: the pipeline maximizing
	// mean - Penalty*std wins.
	Penalty float64 `yaml:"penalty"`
	Seed    uint64  `yaml:"seed"`

	Repeatability feature_selection.RepeatabilityFilter `yaml:"-"`
	Significance  feature_selection.SignificanceFilter  `yaml:"-"`
	Inner         InnerSelector                         `yaml:"-"`
	Candidates    []Candidate                           `yaml:"-"`

	Logger log.Logger `yaml:"-"`
}

// NewFinalModelBuilder copies filters, inner selector and candidates from
// the evaluator so the final model is built the way it was evaluated.
func NewFinalModelBuilder(e NestedEvaluator) FinalModelBuilder {
	return FinalModelBuilder{
		Seed:          e.BaseSeed,
		Repeatability: e.Repeatability,
		Significance:  e.Significance,
		Inner:         e.Inner,
		Candidates:    e.Candidates,
		Logger:        e.Logger,
	}
}

// Select returns the candidate with the best mean - Penalty*std of its
// per-trial mean outer scores. Ties keep candidate order.
func (b FinalModelBuilder) Select(report *TrialReport) (Candidate, PipelineSummary, error) {
	if b.Penalty < 0 {
		return Candidate{}, PipelineSummary{}, errors.NewConfigurationError("FinalModelBuilder", "penalty must be >= 0", b.Penalty)
	}
	summary := map[string]PipelineSummary{}
	for _, s := range report.Summary() {
		summary[s.Pipeline] = s
	}
	best, bestValue := -1, math.Inf(-1)
	for i, c := range b.Candidates {
		s, ok := summary[c.ID()]
		if !ok || s.Trials == 0 {
			continue
		}
		if v := s.MeanOuter - b.Penalty*s.StdOuter; v > bestValue {
			best, bestValue = i, v
		}
	}
	if best < 0 {
		return Candidate{}, PipelineSummary{}, errors.NewConfigurationError("FinalModelBuilder",
			"report has no successful record for any candidate", len(b.Candidates))
	}
	c := b.Candidates[best]
	return c, summary[c.ID()], nil
}

// Build selects the pipeline and refits filters, inner search and
// harmonizer on the whole table.
func (b FinalModelBuilder) Build(ctx context.Context, tbl *dataset.Table, report *TrialReport) (*FinalModel, error) {
	cand, summary, err := b.Select(report)
	if err != nil {
		return nil, err
	}
	if err := tbl.Validate(); err != nil {
		return nil, err
	}
	logger := log.OrDefault(b.Logger, "pipeline.final").With(log.PipelineKey, cand.ID())
	inner := b.Inner
	if inner.Logger == nil {
		inner.Logger = logger
	}

	all := tbl.Deployment()
	rep, err := b.Repeatability.Fit(all)
	if err != nil {
		return nil, err
	}
	if all, err = all.Map(rep.Apply); err != nil {
		return nil, err
	}
	sig, err := b.Significance.Fit(all)
	if err != nil {
		return nil, err
	}
	if all, err = all.Map(sig.Apply); err != nil {
		return nil, err
	}
	res, err := inner.Search(ctx, cand, all, b.Seed)
	if err != nil {
		return nil, err
	}
	weights, err := res.Pipeline.Weights()
	if err != nil {
		return nil, err
	}

	fm := &FinalModel{
		Version:          FinalModelVersion,
		Pipeline:         cand.ID(),
		Candidate:        cand,
		Config:           res.BestConfig(),
		Seed:             b.Seed,
		Metric:           report.Metric,
		CVMean:           summary.MeanOuter,
		CVStd:            summary.StdOuter,
		RetainedFeatures: all.Table().Features(),
		Harmonizer:       res.Pipeline.Harmonizer(),
		SelectedFeatures: res.Pipeline.Features(),
		Weights:          weights,
		estimator:        res.Pipeline.estimator,
	}
	logger.Info("final model built",
		log.ConfigKey, fm.Config.String(),
		log.RetainedKey, len(fm.RetainedFeatures),
		log.FeaturesKey, len(fm.SelectedFeatures),
		log.ScoreKey, fm.CVMean,
	)
	return fm, nil
}

// FinalModel is the deployable bundle: retained features, harmonizer state,
// selected features and estimator weights.
type FinalModel struct {
	Version          string                         `json:"version"`
	Pipeline         string                         `json:"pipeline"`
	Candidate        Candidate                      `json:"candidate"`
	Config           Config                         `json:"config"`
	Seed             uint64                         `json:"seed"`
	Metric           string                         `json:"metric"`
	CVMean           float64                        `json:"cv_mean"`
	CVStd            float64                        `json:"cv_std"`
	RetainedFeatures []string                       `json:"retained_features"`
	Harmonizer       *preprocessing.HarmonizerState `json:"harmonizer"`
	SelectedFeatures []string                       `json:"selected_features"`
	Weights          *model.ModelWeights            `json:"weights"`

	estimator model.BinaryClassifier
}

// Save writes the bundle as JSON.
func (m *FinalModel) Save(path string) error {
	return model.SaveJSON(m, path)
}

// Write encodes the bundle to w.
func (m *FinalModel) Write(w io.Writer) error {
	return model.WriteJSON(m, w)
}

// LoadFinalModel reads a bundle written by Save.
func LoadFinalModel(path string) (*FinalModel, error) {
	m := &FinalModel{}
	if err := model.LoadJSON(m, path); err != nil {
		return nil, errors.Wrapf(err, "load final model %s", path)
	}
	return m, m.restore()
}

// ReadFinalModel decodes a bundle from r.
func ReadFinalModel(r io.Reader) (*FinalModel, error) {
	m := &FinalModel{}
	if err := model.ReadJSON(m, r); err != nil {
		return nil, err
	}
	return m, m.restore()
}

func (m *FinalModel) restore() error {
	if m.Version != FinalModelVersion {
		return errors.NewValueError("FinalModel", "unsupported bundle version "+m.Version)
	}
	if m.Harmonizer == nil || m.Weights == nil {
		return errors.NewValueError("FinalModel", "bundle lacks harmonizer or weights")
	}
	est, err := newEstimator(m.Candidate.Estimator, m.Config)
	if err != nil {
		return err
	}
	if err := est.ImportWeights(m.Weights); err != nil {
		return err
	}
	m.estimator = est
	return nil
}

// Predict returns P(y=1) for every subject of t. t must hold every retained
// feature; other columns are ignored. Labels of t are not used.
func (m *FinalModel) Predict(t *dataset.Table) ([]float64, error) {
	if m.estimator == nil {
		if err := m.restore(); err != nil {
			return nil, err
		}
	}
	x, err := t.SelectFeatures(m.RetainedFeatures)
	if err != nil {
		return nil, err
	}
	if x, err = m.Harmonizer.Transform(x); err != nil {
		return nil, err
	}
	if x, err = feature_selection.NewFittedSelection(m.SelectedFeatures).Apply(x); err != nil {
		return nil, err
	}
	return m.estimator.PredictProba(x.X())
}
