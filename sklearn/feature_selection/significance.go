package feature_selection

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/radcv/core/parallel"
	"github.com/YuminosukeSato/radcv/dataset"
	"github.com/YuminosukeSato/radcv/pkg/errors"
	"github.com/YuminosukeSato/radcv/pkg/log"
)

// UnivariateTest names a two-class test.
type UnivariateTest string

const (
	TestWelch       UnivariateTest = "welch"
	TestMannWhitney UnivariateTest = "mannwhitney"
)

// SignificanceFilter keeps features whose two-class test p-value is below
// Alpha after the configured correction.
type SignificanceFilter struct {
	Test       UnivariateTest `yaml:"test"`
	Alpha      float64        `yaml:"alpha"`
	Correction Correction     `yaml:"correction"`
	// MinRetained > 0 keeps that many smallest p-values when nothing passes.
	MinRetained int `yaml:"min_retained"`

	Logger log.Logger `yaml:"-"`
}

// NewSignificanceFilter returns the filter with default settings.
func NewSignificanceFilter() SignificanceFilter {
	return SignificanceFilter{Test: TestWelch, Alpha: 0.05, Correction: CorrectionNone}
}

// Validate checks the settings.
func (f SignificanceFilter) Validate() error {
	switch f.Test {
	case TestWelch, TestMannWhitney:
	default:
		return errors.NewConfigurationError("SignificanceFilter", "unknown test", f.Test)
	}
	switch f.Correction {
	case CorrectionNone, CorrectionBonferroni, CorrectionFDRBH:
	default:
		return errors.NewConfigurationError("SignificanceFilter", "unknown correction", f.Correction)
	}
	if f.Alpha <= 0 || f.Alpha > 1 {
		return errors.NewConfigurationError("SignificanceFilter", "alpha must be in (0,1]", f.Alpha)
	}
	if f.MinRetained < 0 {
		return errors.NewConfigurationError("SignificanceFilter", "min_retained must be >= 0", f.MinRetained)
	}
	return nil
}

// FittedSignificance is the outcome of SignificanceFilter.Fit.
type FittedSignificance struct {
	features []string
	adjusted []float64
	retained []string
}

// Retained returns the kept feature names in input order.
func (s *FittedSignificance) Retained() []string { return append([]string(nil), s.retained...) }

// PValue returns the corrected p-value of a feature seen at fit time.
func (s *FittedSignificance) PValue(feature string) (float64, bool) {
	for j, f := range s.features {
		if f == feature {
			return s.adjusted[j], true
		}
	}
	return 0, false
}

// Apply narrows t to the retained features.
func (s *FittedSignificance) Apply(t *dataset.Table) (*dataset.Table, error) {
	return t.SelectFeatures(s.retained)
}

// Fit tests every feature of the training partition.
func (f SignificanceFilter) Fit(train dataset.TrainSet) (*FittedSignificance, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if !train.Valid() {
		return nil, errors.Wrap(errors.ErrEmptyData, "SignificanceFilter.Fit")
	}
	logger := log.OrDefault(f.Logger, "feature_selection.significance")
	tbl := train.Table()
	y := tbl.Labels()
	if neg, pos := tbl.ClassCounts(); neg < 2 || pos < 2 {
		return nil, errors.NewValueError("SignificanceFilter.Fit",
			fmt.Sprintf("need at least two subjects per class, got %d/%d", neg, pos))
	}

	names := tbl.Features()
	results := make([]TestResult, len(names))
	parallel.ParallelizeWithThreshold(len(names), 64, func(start, end int) {
		for j := start; j < end; j++ {
			neg, pos := splitByClass(tbl.Column(j), y)
			if f.Test == TestMannWhitney {
				results[j] = MannWhitneyU(neg, pos)
			} else {
				results[j] = WelchTTest(neg, pos)
			}
		}
	})

	raw := make([]float64, len(results))
	for j, r := range results {
		raw[j] = r.PValue
	}
	adjusted := f.Correction.Adjust(raw)

	out := &FittedSignificance{features: names, adjusted: adjusted}
	for j, name := range names {
		if adjusted[j] < f.Alpha {
			out.retained = append(out.retained, name)
			continue
		}
		logger.Debug("feature removed",
			log.FeatureKey, name,
			log.FilterStepKey, log.FilterStepSignificance,
			log.FilterReasonKey, log.ReasonNotSignif,
			log.PValueKey, adjusted[j],
		)
	}

	if len(out.retained) == 0 {
		if f.MinRetained == 0 {
			return nil, errors.NewConfigurationError("SignificanceFilter",
				fmt.Sprintf("no feature has p < %g", f.Alpha), len(names))
		}
		out.retained = smallestP(names, adjusted, f.MinRetained)
		logger.Warn("no feature significant, keeping smallest p-values",
			log.FilterStepKey, log.FilterStepSignificance,
			log.RetainedKey, len(out.retained),
		)
	}
	return out, nil
}

// smallestP returns the k names with the smallest p, in input order.
func smallestP(names []string, p []float64, k int) []string {
	idx := make([]int, len(names))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return p[idx[a]] < p[idx[b]] })
	if k > len(idx) {
		k = len(idx)
	}
	top := append([]int(nil), idx[:k]...)
	sort.Ints(top)
	out := make([]string, k)
	for i, j := range top {
		out[i] = names[j]
	}
	return out
}
