// Package feature_selection implements the training-partition filters and
// the embedded selectors of a pipeline.
//
// Every filter follows the same shape: a value-typed configuration whose
// Fit takes a dataset.TrainSet and returns a fitted state, and a fitted
// state whose Apply narrows any table to the retained columns. Retained
// columns are always a subset of the input columns, in input order.
package feature_selection

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/radcv/core/parallel"
	"github.com/YuminosukeSato/radcv/dataset"
	"github.com/YuminosukeSato/radcv/pkg/errors"
	"github.com/YuminosukeSato/radcv/pkg/log"
)

// VarianceRepresentation selects how feature variance is measured.
type VarianceRepresentation string

const (
	// VarianceBinarized binarizes each feature at its median and compares
	// the Bernoulli variance p(1-p) to the threshold.
	VarianceBinarized VarianceRepresentation = "binarized"
	// VarianceNormalized min-max scales to [0,1] and uses the sample variance.
	VarianceNormalized VarianceRepresentation = "normalized"
)

// Removal records why a feature was dropped.
type Removal struct {
	Feature   string  `json:"feature"`
	Step      string  `json:"step"`
	Reason    string  `json:"reason"`
	Statistic float64 `json:"statistic"`
}

// RepeatabilityFilter removes low-variance, duplicated and non-repeatable
// features, in that order.
type RepeatabilityFilter struct {
	// VarianceThreshold: features with variance <= threshold are removed.
	// 0.16 is p(1-p) at p=0.8.
	VarianceThreshold float64                `yaml:"variance_threshold"`
	Representation    VarianceRepresentation `yaml:"representation"`
	// DuplicateTolerance is the relative tolerance below which two columns
	// are equal element-wise.
	DuplicateTolerance float64 `yaml:"duplicate_tolerance"`
	// MaxCorrelation drops later columns whose absolute Pearson correlation
	// with a kept column reaches it. 0 disables the check.
	MaxCorrelation float64 `yaml:"max_correlation"`
	ICCThreshold   float64 `yaml:"icc_threshold"`
	ICCAlpha       float64 `yaml:"icc_alpha"`

	Logger log.Logger `yaml:"-"`
}

// NewRepeatabilityFilter returns the filter with default settings.
func NewRepeatabilityFilter() RepeatabilityFilter {
	return RepeatabilityFilter{
		VarianceThreshold:  0.16,
		Representation:     VarianceBinarized,
		DuplicateTolerance: 1e-8,
		ICCThreshold:       0.9,
		ICCAlpha:           0.05,
	}
}

// Validate checks the settings.
func (f RepeatabilityFilter) Validate() error {
	if f.VarianceThreshold < 0 {
		return errors.NewConfigurationError("RepeatabilityFilter", "variance_threshold must be >= 0", f.VarianceThreshold)
	}
	if f.Representation != VarianceBinarized && f.Representation != VarianceNormalized {
		return errors.NewConfigurationError("RepeatabilityFilter", "unknown variance representation", f.Representation)
	}
	if f.DuplicateTolerance < 0 {
		return errors.NewConfigurationError("RepeatabilityFilter", "duplicate_tolerance must be >= 0", f.DuplicateTolerance)
	}
	if f.MaxCorrelation < 0 || f.MaxCorrelation > 1 {
		return errors.NewConfigurationError("RepeatabilityFilter", "max_correlation must be in [0,1]", f.MaxCorrelation)
	}
	if f.ICCThreshold > 1 {
		return errors.NewConfigurationError("RepeatabilityFilter", "icc_threshold must be <= 1", f.ICCThreshold)
	}
	if f.ICCAlpha <= 0 || f.ICCAlpha > 1 {
		return errors.NewConfigurationError("RepeatabilityFilter", "icc_alpha must be in (0,1]", f.ICCAlpha)
	}
	return nil
}

// FittedRepeatability is the outcome of RepeatabilityFilter.Fit.
type FittedRepeatability struct {
	retained   []string
	removed    []Removal
	iccSkipped bool
}

// Retained returns the kept feature names in input order.
func (r *FittedRepeatability) Retained() []string { return append([]string(nil), r.retained...) }

// Removed returns every removal with its step and reason.
func (r *FittedRepeatability) Removed() []Removal { return append([]Removal(nil), r.removed...) }

// ICCSkipped reports whether the repeatability step was skipped for lack of
// repeat groups.
func (r *FittedRepeatability) ICCSkipped() bool { return r.iccSkipped }

// Apply narrows t to the retained features.
func (r *FittedRepeatability) Apply(t *dataset.Table) (*dataset.Table, error) {
	return t.SelectFeatures(r.retained)
}

// Fit runs the three steps on the training partition.
func (f RepeatabilityFilter) Fit(train dataset.TrainSet) (*FittedRepeatability, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if !train.Valid() {
		return nil, errors.Wrap(errors.ErrEmptyData, "RepeatabilityFilter.Fit")
	}
	logger := log.OrDefault(f.Logger, "feature_selection.repeatability")
	tbl := train.Table()
	names := tbl.Features()
	cols := make([][]float64, len(names))
	for j := range names {
		cols[j] = tbl.Column(j)
	}

	out := &FittedRepeatability{}
	drop := func(j int, step, reason string, stat float64) {
		out.removed = append(out.removed, Removal{Feature: names[j], Step: step, Reason: reason, Statistic: stat})
		logger.Debug("feature removed",
			log.FeatureKey, names[j],
			log.FilterStepKey, step,
			log.FilterReasonKey, reason,
			log.StatisticKey, stat,
		)
	}

	// Step 1: variance.
	var alive []int
	for j := range names {
		if v := stat.Variance(cols[j], nil); v == 0 || math.IsNaN(v) {
			drop(j, log.FilterStepVariance, log.ReasonZeroVariance, 0)
			continue
		}
		v := f.representedVariance(cols[j])
		if v <= f.VarianceThreshold {
			drop(j, log.FilterStepVariance, log.ReasonLowVariance, v)
			continue
		}
		alive = append(alive, j)
	}

	// Step 2: duplicates, first occurrence wins.
	var kept []int
	for _, j := range alive {
		dup := false
		for _, k := range kept {
			if columnsEqual(cols[j], cols[k], f.DuplicateTolerance) {
				drop(j, log.FilterStepDuplicate, log.ReasonDuplicate, 1)
				dup = true
				break
			}
			if f.MaxCorrelation > 0 {
				if r := math.Abs(stat.Correlation(cols[j], cols[k], nil)); r >= f.MaxCorrelation {
					drop(j, log.FilterStepDuplicate, log.ReasonCorrelated, r)
					dup = true
					break
				}
			}
		}
		if !dup {
			kept = append(kept, j)
		}
	}

	// Step 3: ICC(1) across repeat groups.
	groupIdx, rows, k := repeatGroups(tbl.Groups())
	if k < 2 {
		out.iccSkipped = true
		logger.Warn("repeatability step skipped",
			log.FilterStepKey, log.FilterStepICC,
			log.GroupsKey, k,
		)
	} else {
		results := make([]ICCResult, len(kept))
		parallel.ParallelizeWithThreshold(len(kept), 64, func(start, end int) {
			vals := make([]float64, len(rows))
			for p := start; p < end; p++ {
				col := cols[kept[p]]
				for i, r := range rows {
					vals[i] = col[r]
				}
				results[p] = ICC1(vals, groupIdx, k)
			}
		})
		var survivors []int
		for p, j := range kept {
			res := results[p]
			switch {
			case math.IsNaN(res.ICC) || res.ICC < f.ICCThreshold:
				drop(j, log.FilterStepICC, log.ReasonLowICC, res.ICC)
			case res.PValue >= f.ICCAlpha:
				drop(j, log.FilterStepICC, log.ReasonICCPValue, res.PValue)
			default:
				survivors = append(survivors, j)
			}
		}
		kept = survivors
	}

	sort.Ints(kept)
	for _, j := range kept {
		out.retained = append(out.retained, names[j])
	}
	logger.Debug("repeatability filter fitted",
		log.FeaturesKey, len(names),
		log.RetainedKey, len(out.retained),
	)
	if len(out.retained) == 0 {
		return nil, errors.NewConfigurationError("RepeatabilityFilter", "no feature survived filtration", len(names))
	}
	return out, nil
}

func (f RepeatabilityFilter) representedVariance(col []float64) float64 {
	switch f.Representation {
	case VarianceNormalized:
		lo, hi := col[0], col[0]
		for _, v := range col {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		scaled := make([]float64, len(col))
		for i, v := range col {
			scaled[i] = (v - lo) / (hi - lo)
		}
		return stat.Variance(scaled, nil)
	default:
		med := median(col)
		var ones float64
		for _, v := range col {
			if v > med {
				ones++
			}
		}
		p := ones / float64(len(col))
		return p * (1 - p)
	}
}

func median(x []float64) float64 {
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func columnsEqual(a, b []float64, tol float64) bool {
	for i := range a {
		if !scalar.EqualWithinRel(a[i], b[i], tol) {
			return false
		}
	}
	return true
}

// repeatGroups maps rows of groups with at least two members to dense group
// indices. It returns the index per selected row, the selected rows, and
// the number of groups.
func repeatGroups(groups []string) ([]int, []int, int) {
	count := make(map[string]int)
	for _, g := range groups {
		if g != "" {
			count[g]++
		}
	}
	index := make(map[string]int)
	var idx, rows []int
	for i, g := range groups {
		if g == "" || count[g] < 2 {
			continue
		}
		gi, ok := index[g]
		if !ok {
			gi = len(index)
			index[g] = gi
		}
		idx = append(idx, gi)
		rows = append(rows, i)
	}
	return idx, rows, len(index)
}
