package pipeline

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/radcv/core/parallel"
	"github.com/YuminosukeSato/radcv/dataset"
	"github.com/YuminosukeSato/radcv/metrics"
	"github.com/YuminosukeSato/radcv/pkg/errors"
	"github.com/YuminosukeSato/radcv/pkg/log"
	"github.com/YuminosukeSato/radcv/sklearn/model_selection"
)

var (
	// ErrFitTimeout marks a fit that exceeded InnerSelector.FitTimeout.
	ErrFitTimeout = errors.New("fit exceeded timeout")
	// ErrAllDisqualified is returned when no configuration of a candidate
	// kept enough successful inner folds.
	ErrAllDisqualified = errors.New("every configuration disqualified")
)

// InnerSelector chooses hyper-parameters for one candidate by stratified,
// group-aware K-fold cross-validation on a training partition, then refits
// the winner on the whole partition.
type InnerSelector struct {
	Folds   int    `yaml:"folds"`
	Scoring string `yaml:"scoring"`
	// FitTimeout bounds each fit; 0 disables the bound. A timed-out fit is
	// abandoned, not interrupted; max_iter still bounds its goroutine.
	FitTimeout time.Duration `yaml:"fit_timeout"`

	Logger log.Logger `yaml:"-"`

	// fit is replaced in tests to inject failing folds.
	fit func(c Candidate, train dataset.TrainSet, cfg Config, fold int) (*FittedPipeline, error)
}

// NewInnerSelector returns a 3-fold roc_auc selector.
func NewInnerSelector() InnerSelector {
	return InnerSelector{Folds: 3, Scoring: "roc_auc"}
}

// Validate checks the settings.
func (s InnerSelector) Validate() error {
	if s.Folds < 2 {
		return errors.NewConfigurationError("InnerSelector", "folds must be at least 2", s.Folds)
	}
	if _, err := metrics.GetScorer(s.Scoring); err != nil {
		return err
	}
	if s.FitTimeout < 0 {
		return errors.NewConfigurationError("InnerSelector", "fit_timeout must be >= 0", s.FitTimeout)
	}
	return nil
}

// ConfigResult is the inner cross-validation outcome of one configuration.
// Failed folds hold NaN in FoldScores and are excluded from Mean.
type ConfigResult struct {
	Config       Config
	FoldScores   []float64
	Mean         float64
	Failed       int
	MeanFeatures float64
	Disqualified bool
}

// SearchResult is the outcome of InnerSelector.Search.
type SearchResult struct {
	Candidate Candidate
	Metric    string
	Results   []ConfigResult
	Best      int
	Pipeline  *FittedPipeline
}

// BestConfig returns the selected configuration.
func (r *SearchResult) BestConfig() Config { return r.Results[r.Best].Config }

// Search runs the grid of cand on train. seed drives the inner fold
// assignment. It returns a ConvergenceFailure when every configuration is
// disqualified or the refit fails.
func (s InnerSelector) Search(ctx context.Context, cand Candidate, train dataset.TrainSet, seed uint64) (*SearchResult, error) {
	res, err := s.Scan(ctx, cand, train, seed)
	if err != nil {
		return res, err
	}
	logger := log.OrDefault(s.Logger, "pipeline.search").With(log.PipelineKey, cand.ID())
	best := res.Results[res.Best].Config
	p, err := s.fitOne(ctx, cand, train, best, -1)
	if err != nil {
		if errors.IsFitFailure(err) {
			return res, errors.NewConvergenceFailure(cand.ID(), best.String(), -1, err)
		}
		return res, err
	}
	res.Pipeline = p
	logger.Debug("configuration selected",
		log.ConfigKey, best.String(),
		log.ScoreKey, res.Results[res.Best].Mean,
		log.FeaturesKey, p.NFeatures(),
	)
	return res, nil
}

// Scan cross-validates every configuration of cand and picks the best one
// without refitting it. Every fit sees only an inner training fold.
func (s InnerSelector) Scan(ctx context.Context, cand Candidate, train dataset.TrainSet, seed uint64) (*SearchResult, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := cand.Validate(); err != nil {
		return nil, err
	}
	if !train.Valid() {
		return nil, errors.Wrap(errors.ErrEmptyData, "InnerSelector.Scan")
	}
	scorer, _ := metrics.GetScorer(s.Scoring)
	logger := log.OrDefault(s.Logger, "pipeline.search").With(log.PipelineKey, cand.ID())

	tbl := train.Table()
	folds, err := model_selection.NewStratifiedGroupKFold(s.Folds, seed).Split(tbl.Labels(), tbl.SplitKeys())
	if err != nil {
		return nil, errors.Wrapf(err, "inner split of %s", cand.ID())
	}
	type part struct {
		train dataset.TrainSet
		test  dataset.EvalSet
	}
	parts := make([]part, len(folds))
	for k, f := range folds {
		tr, te, err := train.Split(f)
		if err != nil {
			return nil, err
		}
		parts[k] = part{tr, te}
	}

	configs := cand.Configs()
	res := &SearchResult{Candidate: cand, Metric: scorer.Name, Results: make([]ConfigResult, len(configs)), Best: -1}
	for ci, cfg := range configs {
		cr := ConfigResult{Config: cfg, FoldScores: make([]float64, len(parts))}
		var scores, widths []float64
		for k, p := range parts {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			score, width, err := s.evaluate(ctx, cand, cfg, k, p.train, p.test, scorer)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				if !errors.IsFitFailure(err) {
					return nil, err
				}
				cr.FoldScores[k] = math.NaN()
				cr.Failed++
				logger.Debug("inner fold failed", err,
					log.ConfigKey, cfg.String(),
					log.InnerFoldKey, k,
				)
				continue
			}
			cr.FoldScores[k] = score
			scores = append(scores, score)
			widths = append(widths, float64(width))
		}
		cr.Mean = math.NaN()
		if len(scores) > 0 {
			cr.Mean = stat.Mean(scores, nil)
			cr.MeanFeatures = stat.Mean(widths, nil)
		}
		// Strictly more than half of the folds failing disqualifies.
		if 2*cr.Failed > len(parts) {
			cr.Disqualified = true
			logger.Warn("configuration disqualified",
				log.ConfigKey, cfg.String(),
				log.FailedFoldsKey, cr.Failed,
			)
		} else {
			logger.Debug("configuration scored",
				log.ConfigKey, cfg.String(),
				log.MetricKey, scorer.Name,
				log.ScoreKey, cr.Mean,
				log.FailedFoldsKey, cr.Failed,
			)
		}
		res.Results[ci] = cr
		if !cr.Disqualified && (res.Best < 0 || better(cr, res.Results[res.Best])) {
			res.Best = ci
		}
	}

	if res.Best < 0 {
		return res, errors.NewConvergenceFailure(cand.ID(), "", -1, ErrAllDisqualified)
	}
	return res, nil
}

// better orders configurations: higher mean, then fewer retained features,
// then fewer active hyper-parameters. Equal on all three keeps the earlier
// one.
func better(a, b ConfigResult) bool {
	if !scalar.EqualWithinAbsOrRel(a.Mean, b.Mean, 1e-12, 1e-12) {
		return a.Mean > b.Mean
	}
	if !scalar.EqualWithinAbsOrRel(a.MeanFeatures, b.MeanFeatures, 1e-12, 1e-12) {
		return a.MeanFeatures < b.MeanFeatures
	}
	return a.Config.Active() < b.Config.Active()
}

func (s InnerSelector) evaluate(ctx context.Context, cand Candidate, cfg Config, fold int,
	train dataset.TrainSet, test dataset.EvalSet, scorer metrics.Scorer) (float64, int, error) {
	p, err := s.fitOne(ctx, cand, train, cfg, fold)
	if err != nil {
		return 0, 0, err
	}
	score, err := p.Evaluate(test, scorer)
	if err != nil {
		return 0, 0, err
	}
	if math.IsNaN(score) {
		return 0, 0, errors.NewConvergenceFailure(cand.ID(), cfg.String(), fold, errors.New("score is NaN"))
	}
	return score, p.NFeatures(), nil
}

// fitOne fits one configuration, bounded by FitTimeout.
func (s InnerSelector) fitOne(ctx context.Context, cand Candidate, train dataset.TrainSet, cfg Config, fold int) (*FittedPipeline, error) {
	fit := s.fit
	if fit == nil {
		logger := s.Logger
		fit = func(c Candidate, tr dataset.TrainSet, cf Config, _ int) (*FittedPipeline, error) {
			return c.Fit(tr, cf, logger)
		}
	}
	if s.FitTimeout <= 0 {
		return fit(cand, train, cfg, fold)
	}

	type result struct {
		p   *FittedPipeline
		err error
	}
	done := make(chan result, 1)
	go func() {
		p, err := fit(cand, train, cfg, fold)
		done <- result{p, err}
	}()
	timer := time.NewTimer(s.FitTimeout)
	defer timer.Stop()
	select {
	case r := <-done:
		return r.p, r.err
	case <-timer.C:
		return nil, errors.NewConvergenceFailure(cand.ID(), cfg.String(), fold, ErrFitTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CurvePoint is the mean inner score of one configuration across repeated
// searches.
type CurvePoint struct {
	Pipeline string  `csv:"pipeline" json:"pipeline"`
	Config   string  `csv:"config" json:"config"`
	Mean     float64 `csv:"mean_score" json:"mean_score"`
	Std      float64 `csv:"std_score" json:"std_score"`
	Repeats  int     `csv:"repeats" json:"repeats"`
	Settings Config  `csv:"-" json:"settings"`
}

// HyperparamCurve aggregates the per-configuration means of repeated
// searches. Disqualified configurations of a repeat are skipped. Points
// keep the order of first appearance.
func HyperparamCurve(results []*SearchResult) []CurvePoint {
	type acc struct {
		point  CurvePoint
		scores []float64
	}
	index := make(map[string]int)
	var accs []*acc
	for _, r := range results {
		if r == nil {
			continue
		}
		for _, cr := range r.Results {
			key := r.Candidate.ID() + "|" + cr.Config.String()
			i, ok := index[key]
			if !ok {
				i = len(accs)
				index[key] = i
				accs = append(accs, &acc{point: CurvePoint{
					Pipeline: r.Candidate.ID(),
					Config:   cr.Config.String(),
					Settings: cr.Config,
				}})
			}
			if !cr.Disqualified && !math.IsNaN(cr.Mean) {
				accs[i].scores = append(accs[i].scores, cr.Mean)
			}
		}
	}
	out := make([]CurvePoint, len(accs))
	for i, a := range accs {
		p := a.point
		p.Repeats = len(a.scores)
		p.Mean, p.Std = math.NaN(), math.NaN()
		if len(a.scores) > 0 {
			p.Mean = stat.Mean(a.scores, nil)
			p.Std = 0
		}
		if len(a.scores) > 1 {
			p.Std = stat.StdDev(a.scores, nil)
		}
		out[i] = p
	}
	return out
}

// Curve scans every candidate repeats times on t, with fold seeds
// seed, seed+1, ..., and aggregates the configuration means. Nothing is
// refit on the whole table. A candidate whose every configuration is
// disqualified in a repeat contributes no score for that repeat.
func (s InnerSelector) Curve(ctx context.Context, cands []Candidate, t *dataset.Table, repeats int, seed uint64, workers int) ([]CurvePoint, error) {
	if repeats < 1 {
		return nil, errors.NewConfigurationError("InnerSelector", "repeats must be positive", repeats)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	train := t.Deployment()
	results := make([]*SearchResult, repeats*len(cands))
	err := parallel.ForEach(ctx, len(results), workers, func(ctx context.Context, i int) error {
		r, c := i/len(cands), i%len(cands)
		res, err := s.Scan(ctx, cands[c], train, seed+uint64(r))
		if err != nil && !errors.Is(err, ErrAllDisqualified) {
			return errors.Wrapf(err, "curve repeat %d of %s", r, cands[c].ID())
		}
		results[i] = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return HyperparamCurve(results), nil
}
