package pipeline

import (
	"context"
	"math"
	"time"

	"github.com/YuminosukeSato/radcv/core/parallel"
	"github.com/YuminosukeSato/radcv/dataset"
	"github.com/YuminosukeSato/radcv/metrics"
	"github.com/YuminosukeSato/radcv/pkg/errors"
	"github.com/YuminosukeSato/radcv/pkg/log"
	"github.com/YuminosukeSato/radcv/sklearn/feature_selection"
	"github.com/YuminosukeSato/radcv/sklearn/model_selection"
)

// Observer receives records as they are produced. Methods are called from
// worker goroutines and must be safe for concurrent use.
type Observer interface {
	FoldDone(rec TrialRecord, elapsed time.Duration)
	HoldoutDone(rec HoldoutRecord, elapsed time.Duration)
}

// Observers fans records out to several observers in order.
type Observers []Observer

// FoldDone implements Observer.
func (obs Observers) FoldDone(rec TrialRecord, elapsed time.Duration) {
	for _, o := range obs {
		o.FoldDone(rec, elapsed)
	}
}

// HoldoutDone implements Observer.
func (obs Observers) HoldoutDone(rec HoldoutRecord, elapsed time.Duration) {
	for _, o := range obs {
		o.HoldoutDone(rec, elapsed)
	}
}

// NestedEvaluator repeats a hold-out split plus outer K-fold evaluation of
// every candidate, with hyper-parameters chosen by an InnerSelector inside
// each outer training partition.
type NestedEvaluator struct {
	Trials          int     `yaml:"trials"`
	OuterFolds      int     `yaml:"outer_folds"`
	HoldoutFraction float64 `yaml:"holdout_fraction"`
	BaseSeed        uint64  `yaml:"seed"`
	// Workers bounds concurrent (trial, outer fold) units; < 1 means NumCPU.
	Workers int `yaml:"workers"`

	Repeatability feature_selection.RepeatabilityFilter `yaml:"repeatability"`
	Significance  feature_selection.SignificanceFilter  `yaml:"significance"`
	Inner         InnerSelector                         `yaml:"inner"`
	Candidates    []Candidate                           `yaml:"candidates"`

	Logger   log.Logger `yaml:"-"`
	Observer Observer   `yaml:"-"`
}

// NewNestedEvaluator returns an evaluator with 15 trials, 5 outer folds,
// a 25% hold-out and the default filters and inner selector.
func NewNestedEvaluator(candidates ...Candidate) NestedEvaluator {
	return NestedEvaluator{
		Trials:          15,
		OuterFolds:      5,
		HoldoutFraction: 0.25,
		Repeatability:   feature_selection.NewRepeatabilityFilter(),
		Significance:    feature_selection.NewSignificanceFilter(),
		Inner:           NewInnerSelector(),
		Candidates:      candidates,
	}
}

// Validate checks the settings of the evaluator and everything it runs.
func (e NestedEvaluator) Validate() error {
	if e.Trials < 1 {
		return errors.NewConfigurationError("NestedEvaluator", "trials must be positive", e.Trials)
	}
	if e.OuterFolds < 2 {
		return errors.NewConfigurationError("NestedEvaluator", "outer_folds must be at least 2", e.OuterFolds)
	}
	if e.HoldoutFraction <= 0 || e.HoldoutFraction >= 1 {
		return errors.NewConfigurationError("NestedEvaluator", "holdout_fraction must be in (0,1)", e.HoldoutFraction)
	}
	if len(e.Candidates) == 0 {
		return errors.NewConfigurationError("NestedEvaluator", "no candidates", 0)
	}
	seen := map[string]bool{}
	for _, c := range e.Candidates {
		if err := c.Validate(); err != nil {
			return err
		}
		if seen[c.ID()] {
			return errors.NewConfigurationError("NestedEvaluator", "duplicate candidate", c.ID())
		}
		seen[c.ID()] = true
	}
	if err := e.Repeatability.Validate(); err != nil {
		return err
	}
	if err := e.Significance.Validate(); err != nil {
		return err
	}
	return e.Inner.Validate()
}

// trialSplit is the fixed partition of one trial.
type trialSplit struct {
	trial   int
	seed    uint64
	pool    dataset.TrainSet
	holdout dataset.EvalSet
	folds   []model_selection.Fold
}

// TrialSeed returns the explicit seed of trial t.
func (e NestedEvaluator) TrialSeed(t int) uint64 { return e.BaseSeed + uint64(t) }

// innerSeed derives the inner split seed of an outer fold; the hold-out
// refit uses fold -1.
func innerSeed(seed uint64, fold int) uint64 {
	return seed ^ uint64(fold+2)<<32
}

// Run evaluates every candidate. On cancellation the report holds the
// records of every unit that completed, and the context error is returned.
func (e NestedEvaluator) Run(ctx context.Context, tbl *dataset.Table) (*TrialReport, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := tbl.Validate(); err != nil {
		return nil, err
	}
	scorer, err := metrics.GetScorer(e.Inner.Scoring)
	if err != nil {
		return nil, err
	}
	logger := log.OrDefault(e.Logger, "pipeline.nested")
	e.propagateLogger(logger)
	report := NewTrialReport(scorer.Name)

	splits := make([]trialSplit, e.Trials)
	for t := range splits {
		s, err := e.split(tbl, t)
		if err != nil {
			return nil, err
		}
		splits[t] = s
	}
	logger.Info("nested evaluation started",
		log.SamplesKey, tbl.NRows(),
		log.FeaturesKey, tbl.NFeatures(),
		"trials", e.Trials,
		"candidates", len(e.Candidates),
	)

	units := e.Trials * e.OuterFolds
	err = parallel.ForEach(ctx, units, e.Workers, func(ctx context.Context, u int) error {
		s := splits[u/e.OuterFolds]
		return e.runFold(ctx, s, u%e.OuterFolds, scorer, report.Buffer(), logger)
	})
	if err != nil {
		return report, err
	}

	// Hold-out refits start once every outer fold has finished.
	records := report.Records()
	err = parallel.ForEach(ctx, e.Trials, e.Workers, func(ctx context.Context, t int) error {
		return e.runHoldout(ctx, splits[t], records, scorer, report.Buffer(), logger)
	})
	if err != nil {
		return report, err
	}
	logger.Info("nested evaluation finished",
		"records", len(report.Records()),
		"holdouts", len(report.Holdouts()),
	)
	return report, nil
}

func (e *NestedEvaluator) propagateLogger(l log.Logger) {
	if e.Repeatability.Logger == nil {
		e.Repeatability.Logger = l
	}
	if e.Significance.Logger == nil {
		e.Significance.Logger = l
	}
	if e.Inner.Logger == nil {
		e.Inner.Logger = l
	}
}

func (e NestedEvaluator) split(tbl *dataset.Table, t int) (trialSplit, error) {
	seed := e.TrialSeed(t)
	hold, err := model_selection.NewHoldoutSplit(e.HoldoutFraction, seed).Split(tbl.Labels(), tbl.SplitKeys())
	if err != nil {
		return trialSplit{}, errors.Wrapf(err, "trial %d hold-out split", t)
	}
	pool, holdout, err := tbl.Split(hold)
	if err != nil {
		return trialSplit{}, err
	}
	pt := pool.Table()
	folds, err := model_selection.NewStratifiedGroupKFold(e.OuterFolds, seed).Split(pt.Labels(), pt.SplitKeys())
	if err != nil {
		return trialSplit{}, errors.Wrapf(err, "trial %d outer split", t)
	}
	return trialSplit{trial: t, seed: seed, pool: pool, holdout: holdout, folds: folds}, nil
}

// filter fits both filters on train and narrows train and every evaluation
// set in apply to the survivors.
func (e NestedEvaluator) filter(train dataset.TrainSet, apply ...dataset.EvalSet) (dataset.TrainSet, []dataset.EvalSet, error) {
	rep, err := e.Repeatability.Fit(train)
	if err != nil {
		return dataset.TrainSet{}, nil, err
	}
	train, err = train.Map(rep.Apply)
	if err != nil {
		return dataset.TrainSet{}, nil, err
	}
	sig, err := e.Significance.Fit(train)
	if err != nil {
		return dataset.TrainSet{}, nil, err
	}
	train, err = train.Map(sig.Apply)
	if err != nil {
		return dataset.TrainSet{}, nil, err
	}
	out := make([]dataset.EvalSet, len(apply))
	for i, t := range apply {
		if out[i], err = t.SelectFeatures(train.Table().Features()); err != nil {
			return dataset.TrainSet{}, nil, err
		}
	}
	return train, out, nil
}

func (e NestedEvaluator) runFold(ctx context.Context, s trialSplit, fold int, scorer metrics.Scorer, buf *Buffer, logger log.Logger) error {
	start := time.Now()
	logger = logger.With(log.TrialKey, s.trial, log.SeedKey, s.seed, log.OuterFoldKey, fold)

	train, test, err := s.pool.Split(s.folds[fold])
	if err != nil {
		return err
	}
	train, tables, err := e.filter(train, test)
	if err != nil {
		return errors.Wrapf(err, "trial %d outer fold %d", s.trial, fold)
	}
	test = tables[0]

	for _, cand := range e.Candidates {
		rec := TrialRecord{Trial: s.trial, Seed: s.seed, Pipeline: cand.ID(), OuterFold: fold, Score: math.NaN()}
		res, err := e.Inner.Search(ctx, cand, train, innerSeed(s.seed, fold))
		switch {
		case err == nil:
			rec.Config = res.BestConfig().String()
			rec.NFeatures = res.Pipeline.NFeatures()
			rec.Score, err = res.Pipeline.Evaluate(test, scorer)
			if err != nil {
				return errors.Wrapf(err, "trial %d outer fold %d: score %s", s.trial, fold, cand.ID())
			}
			logger.Debug("outer fold scored",
				log.PipelineKey, cand.ID(),
				log.ConfigKey, rec.Config,
				log.ScoreKey, rec.Score,
			)
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.IsFitFailure(err):
			rec.Failed = true
			logger.Warn("candidate failed on outer fold", err, log.PipelineKey, cand.ID())
		default:
			return errors.Wrapf(err, "trial %d outer fold %d: %s", s.trial, fold, cand.ID())
		}
		buf.AddFold(rec)
		if e.Observer != nil {
			e.Observer.FoldDone(rec, time.Since(start))
		}
	}
	logger.Debug("outer fold finished", log.DurationMsKey, time.Since(start).Milliseconds())
	return nil
}

// bestCandidate returns the candidate with the highest mean outer score in
// the trial; ties keep candidate order. ok is false if every candidate failed.
func (e NestedEvaluator) bestCandidate(records []TrialRecord, trial int) (Candidate, float64, bool) {
	best, bestMean := -1, math.Inf(-1)
	for i, c := range e.Candidates {
		m := meanOuter(records, trial, c.ID())
		if !math.IsNaN(m) && m > bestMean {
			best, bestMean = i, m
		}
	}
	if best < 0 {
		return Candidate{}, math.NaN(), false
	}
	return e.Candidates[best], bestMean, true
}

func (e NestedEvaluator) runHoldout(ctx context.Context, s trialSplit, records []TrialRecord, scorer metrics.Scorer, buf *Buffer, logger log.Logger) error {
	start := time.Now()
	logger = logger.With(log.TrialKey, s.trial)

	cand, mean, ok := e.bestCandidate(records, s.trial)
	rec := HoldoutRecord{Trial: s.trial, Seed: s.seed, Score: math.NaN(), MeanOuter: mean}
	if !ok {
		rec.Failed = true
		logger.Warn("no candidate succeeded, hold-out skipped")
		buf.AddHoldout(rec)
		if e.Observer != nil {
			e.Observer.HoldoutDone(rec, time.Since(start))
		}
		return nil
	}
	rec.Pipeline = cand.ID()

	pool, tables, err := e.filter(s.pool, s.holdout)
	if err != nil {
		return errors.Wrapf(err, "trial %d hold-out refit", s.trial)
	}
	res, err := e.Inner.Search(ctx, cand, pool, innerSeed(s.seed, -1))
	switch {
	case err == nil:
		rec.Config = res.BestConfig().String()
		rec.NFeatures = res.Pipeline.NFeatures()
		if rec.Score, err = res.Pipeline.Evaluate(tables[0], scorer); err != nil {
			return errors.Wrapf(err, "trial %d hold-out score", s.trial)
		}
		logger.Info("trial finished",
			log.PipelineKey, rec.Pipeline,
			log.ScoreKey, rec.Score,
			"mean_outer", rec.MeanOuter,
		)
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.IsFitFailure(err):
		rec.Failed = true
		logger.Warn("hold-out refit failed", err, log.PipelineKey, rec.Pipeline)
	default:
		return errors.Wrapf(err, "trial %d hold-out refit", s.trial)
	}
	buf.AddHoldout(rec)
	if e.Observer != nil {
		e.Observer.HoldoutDone(rec, time.Since(start))
	}
	return nil
}
