package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/radcv/core/model"
	"github.com/YuminosukeSato/radcv/dataset"
	"github.com/YuminosukeSato/radcv/metrics"
	"github.com/YuminosukeSato/radcv/pkg/errors"
	"github.com/YuminosukeSato/radcv/pkg/log"
	"github.com/YuminosukeSato/radcv/preprocessing"
	"github.com/YuminosukeSato/radcv/sklearn/feature_selection"
	"github.com/YuminosukeSato/radcv/sklearn/linear_model"
	"github.com/YuminosukeSato/radcv/sklearn/naive_bayes"
)

// SelectorKind is the closed set of embedded selectors.
type SelectorKind string

const (
	SelectorPassthrough SelectorKind = "passthrough"
	SelectorKBest       SelectorKind = "kbest"
	SelectorL1          SelectorKind = "l1"
)

// EstimatorKind is the closed set of estimators.
type EstimatorKind string

const (
	EstimatorLogistic   EstimatorKind = "logistic"
	EstimatorElasticNet EstimatorKind = "elasticnet"
	EstimatorGaussianNB EstimatorKind = "gaussian_nb"
)

// Hyper-parameter names understood by each kind.
var (
	selectorParams = map[SelectorKind][]string{
		SelectorPassthrough: nil,
		SelectorKBest:       {"k"},
		SelectorL1:          {"selector_c"},
	}
	estimatorParams = map[EstimatorKind][]string{
		EstimatorLogistic:   {"C", "l1_ratio", "max_iter"},
		EstimatorElasticNet: {"alpha", "l1_ratio", "max_iter"},
		EstimatorGaussianNB: {"var_smoothing"},
	}
)

// Param is one axis of a hyper-parameter grid.
type Param struct {
	Name   string    `yaml:"name" json:"name"`
	Values []float64 `yaml:"values" json:"values"`
}

// Setting is one hyper-parameter value.
type Setting struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Config is one point of a grid, in grid order.
type Config []Setting

// Get returns the value of name, or def when the config does not set it.
func (c Config) Get(name string, def float64) float64 {
	for _, s := range c {
		if s.Name == name {
			return s.Value
		}
	}
	return def
}

// Has reports whether the config sets name.
func (c Config) Has(name string) bool {
	for _, s := range c {
		if s.Name == name {
			return true
		}
	}
	return false
}

// String renders "alpha=0.02,l1_ratio=0.4".
func (c Config) String() string {
	parts := make([]string, len(c))
	for i, s := range c {
		parts[i] = s.Name + "=" + strconv.FormatFloat(s.Value, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// Active counts the settings with a non-zero value. A zero mixing ratio,
// shrinkage or penalty switches that part of the model off.
func (c Config) Active() int {
	n := 0
	for _, s := range c {
		if s.Value != 0 {
			n++
		}
	}
	return n
}

// Map returns the settings as a map.
func (c Config) Map() map[string]float64 {
	out := make(map[string]float64, len(c))
	for _, s := range c {
		out[s.Name] = s.Value
	}
	return out
}

// Candidate is a pipeline template: harmonizer strategy, selector kind,
// estimator kind and a hyper-parameter grid. Templates are values and are
// never mutated by fitting.
type Candidate struct {
	Selector   SelectorKind           `yaml:"selector" json:"selector"`
	Estimator  EstimatorKind          `yaml:"estimator" json:"estimator"`
	Harmonizer preprocessing.Strategy `yaml:"harmonizer" json:"harmonizer"`
	Grid       []Param                `yaml:"grid" json:"grid"`
}

// ID is the identity "selector+estimator".
func (c Candidate) ID() string {
	return string(c.Selector) + "+" + string(c.Estimator)
}

// Validate checks kinds and grid parameter names.
func (c Candidate) Validate() error {
	sp, ok := selectorParams[c.Selector]
	if !ok {
		return errors.NewConfigurationError("Candidate", "unknown selector", c.Selector)
	}
	ep, ok := estimatorParams[c.Estimator]
	if !ok {
		return errors.NewConfigurationError("Candidate", "unknown estimator", c.Estimator)
	}
	if c.Harmonizer != "" {
		if err := preprocessing.NewHarmonizer(c.Harmonizer).Validate(); err != nil {
			return err
		}
	}
	allowed := append(append([]string(nil), sp...), ep...)
	seen := make(map[string]bool)
	for _, p := range c.Grid {
		if !contains(allowed, p.Name) {
			return errors.NewConfigurationError("Candidate",
				fmt.Sprintf("%s does not take parameter %q", c.ID(), p.Name), allowed)
		}
		if seen[p.Name] {
			return errors.NewConfigurationError("Candidate", "duplicate grid parameter", p.Name)
		}
		seen[p.Name] = true
		if len(p.Values) == 0 {
			return errors.NewConfigurationError("Candidate", "empty grid axis", p.Name)
		}
	}
	return nil
}

// Configs returns the cartesian product of the grid. The last axis varies
// fastest. An empty grid yields one empty configuration.
func (c Candidate) Configs() []Config {
	out := []Config{{}}
	for _, p := range c.Grid {
		next := make([]Config, 0, len(out)*len(p.Values))
		for _, prefix := range out {
			for _, v := range p.Values {
				cfg := append(append(Config(nil), prefix...), Setting{Name: p.Name, Value: v})
				next = append(next, cfg)
			}
		}
		out = next
	}
	return out
}

func (c Candidate) harmonizer() preprocessing.Harmonizer {
	if c.Harmonizer == "" {
		return preprocessing.NewHarmonizer(preprocessing.StrategyZScore)
	}
	return preprocessing.NewHarmonizer(c.Harmonizer)
}

func (c Candidate) fitSelector(train dataset.TrainSet, cfg Config, logger log.Logger) (*feature_selection.FittedSelection, error) {
	switch c.Selector {
	case SelectorKBest:
		return feature_selection.SelectKBest{K: int(cfg.Get("k", 10))}.Fit(train)
	case SelectorL1:
		return feature_selection.SelectFromL1{C: cfg.Get("selector_c", 1), Logger: logger}.Fit(train)
	default:
		return feature_selection.Passthrough{}.Fit(train)
	}
}

// newEstimator builds an unfitted estimator for cfg.
func newEstimator(kind EstimatorKind, cfg Config) (model.BinaryClassifier, error) {
	switch kind {
	case EstimatorLogistic:
		opts := []linear_model.LogisticRegressionOption{
			linear_model.WithLRC(cfg.Get("C", 1)),
			linear_model.WithLRMaxIter(int(cfg.Get("max_iter", 1000))),
		}
		if cfg.Has("l1_ratio") {
			opts = append(opts,
				linear_model.WithLRPenalty("elasticnet"),
				linear_model.WithLRL1Ratio(cfg.Get("l1_ratio", 0.5)))
		}
		return linear_model.NewLogisticRegression(opts...), nil
	case EstimatorElasticNet:
		return linear_model.NewElasticNet(
			linear_model.WithENAlpha(cfg.Get("alpha", 1)),
			linear_model.WithENL1Ratio(cfg.Get("l1_ratio", 0.5)),
			linear_model.WithENMaxIter(int(cfg.Get("max_iter", 5500))),
		), nil
	case EstimatorGaussianNB:
		return naive_bayes.NewGaussianNB(naive_bayes.WithVarSmoothing(cfg.Get("var_smoothing", 1e-9))), nil
	}
	return nil, errors.NewConfigurationError("Candidate", "unknown estimator", kind)
}

// Fit fits harmonizer, selector and estimator on the training partition.
// Each fit sees only the output of the previous step on the same rows.
func (c Candidate) Fit(train dataset.TrainSet, cfg Config, logger log.Logger) (*FittedPipeline, error) {
	harm, err := c.harmonizer().Fit(train)
	if err != nil {
		return nil, err
	}
	harmonized, err := train.Map(harm.Transform)
	if err != nil {
		return nil, err
	}
	sel, err := c.fitSelector(harmonized, cfg, logger)
	if err != nil {
		return nil, err
	}
	selected, err := harmonized.SelectFeatures(sel.Features())
	if err != nil {
		return nil, err
	}
	est, err := newEstimator(c.Estimator, cfg)
	if err != nil {
		return nil, err
	}
	tbl := selected.Table()
	if err := errors.SafeExecute(c.ID()+".Fit", func() error {
		return est.Fit(tbl.X(), tbl.Labels())
	}); err != nil {
		return nil, err
	}
	return &FittedPipeline{
		candidate:  c,
		config:     append(Config(nil), cfg...),
		harmonizer: harm,
		selection:  sel,
		estimator:  est,
	}, nil
}

// FittedPipeline is a candidate fitted on one training partition. It has no
// exported constructor.
type FittedPipeline struct {
	candidate  Candidate
	config     Config
	harmonizer *preprocessing.HarmonizerState
	selection  *feature_selection.FittedSelection
	estimator  model.BinaryClassifier
}

// Candidate returns the template the pipeline was fitted from.
func (p *FittedPipeline) Candidate() Candidate { return p.candidate }

// Config returns the hyper-parameters.
func (p *FittedPipeline) Config() Config { return append(Config(nil), p.config...) }

// Features returns the features the estimator consumes.
func (p *FittedPipeline) Features() []string { return p.selection.Features() }

// NFeatures returns the number of features the estimator consumes.
func (p *FittedPipeline) NFeatures() int { return len(p.selection.Features()) }

// InputFeatures returns the features the pipeline expects as input.
func (p *FittedPipeline) InputFeatures() []string {
	return append([]string(nil), p.harmonizer.Features...)
}

// Harmonizer returns the fitted harmonizer state.
func (p *FittedPipeline) Harmonizer() *preprocessing.HarmonizerState { return p.harmonizer }

// Weights exports the fitted estimator.
func (p *FittedPipeline) Weights() (*model.ModelWeights, error) { return p.estimator.ExportWeights() }

// Scores runs t through the pipeline. Ranking scorers get decision values,
// the others positive-class probabilities.
func (p *FittedPipeline) Scores(t *dataset.Table, ranking bool) ([]float64, error) {
	h, err := p.harmonizer.Transform(t)
	if err != nil {
		return nil, err
	}
	s, err := p.selection.Apply(h)
	if err != nil {
		return nil, err
	}
	if ranking {
		return p.estimator.DecisionFunction(s.X())
	}
	return p.estimator.PredictProba(s.X())
}

// PredictProba returns P(y=1) for every row of t.
func (p *FittedPipeline) PredictProba(t *dataset.Table) ([]float64, error) {
	return p.Scores(t, false)
}

// Evaluate scores the pipeline on the evaluation side of a split.
func (p *FittedPipeline) Evaluate(test dataset.EvalSet, scorer metrics.Scorer) (float64, error) {
	scores, err := test.Predict(func(t *dataset.Table) ([]float64, error) {
		return p.Scores(t, scorer.Ranking)
	})
	if err != nil {
		return 0, err
	}
	return scorer.Score(test.Labels(), scores)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// DefaultCandidates is the reference suite. The ElasticNet grid is
// alpha {0.02..0.1} x l1_ratio {0..1}.
func DefaultCandidates() []Candidate {
	return []Candidate{
		{
			Selector:   SelectorPassthrough,
			Estimator:  EstimatorElasticNet,
			Harmonizer: preprocessing.StrategyZScore,
			Grid: []Param{
				{Name: "alpha", Values: []float64{0.02, 0.04, 0.06, 0.08, 0.1}},
				{Name: "l1_ratio", Values: []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0}},
			},
		},
		{
			Selector:   SelectorL1,
			Estimator:  EstimatorLogistic,
			Harmonizer: preprocessing.StrategyZScore,
			Grid: []Param{
				{Name: "selector_c", Values: []float64{0.1, 1}},
				{Name: "C", Values: []float64{0.01, 0.1, 1, 10}},
			},
		},
		{
			Selector:   SelectorKBest,
			Estimator:  EstimatorGaussianNB,
			Harmonizer: preprocessing.StrategyZScore,
			Grid: []Param{
				{Name: "k", Values: []float64{5, 10, 20}},
			},
		},
	}
}
