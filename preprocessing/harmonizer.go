package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/radcv/dataset"
	"github.com/YuminosukeSato/radcv/pkg/errors"
)

// Strategy names a harmonization method.
type Strategy string

const (
	// StrategyZScore standardizes with the mean and population std of the
	// fit partition.
	StrategyZScore Strategy = "zscore"
	// StrategyMinMax scales to [0,1] with the min and max of the fit partition.
	StrategyMinMax Strategy = "minmax"
	// StrategyBatchMatch removes per-batch location and scale and maps every
	// batch onto the pooled distribution of the fit partition.
	StrategyBatchMatch Strategy = "batch_match"
)

// Strategies lists the supported strategies.
func Strategies() []Strategy {
	return []Strategy{StrategyZScore, StrategyMinMax, StrategyBatchMatch}
}

// Harmonizer aligns feature distributions. It is fitted on a training
// partition only.
type Harmonizer struct {
	Strategy Strategy `yaml:"strategy" json:"strategy"`
}

// NewHarmonizer returns a Harmonizer with the given strategy.
func NewHarmonizer(s Strategy) Harmonizer {
	return Harmonizer{Strategy: s}
}

// Validate checks the strategy.
func (h Harmonizer) Validate() error {
	switch h.Strategy {
	case StrategyZScore, StrategyMinMax, StrategyBatchMatch:
		return nil
	}
	return errors.NewConfigurationError("Harmonizer", "unknown strategy", h.Strategy)
}

// BatchStats is the location and scale of one batch.
type BatchStats struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
	Rows int       `json:"rows"`
}

// HarmonizerState records the strategy and every fitted parameter.
type HarmonizerState struct {
	Strategy Strategy               `json:"strategy"`
	Features []string               `json:"features"`
	Standard *StandardScaler        `json:"standard,omitempty"`
	MinMax   *MinMaxScaler          `json:"minmax,omitempty"`
	Pooled   *BatchStats            `json:"pooled,omitempty"`
	Batches  map[string]*BatchStats `json:"batches,omitempty"`
}

// Fit estimates the strategy's parameters on the training partition.
func (h Harmonizer) Fit(train dataset.TrainSet) (*HarmonizerState, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if !train.Valid() {
		return nil, errors.Wrap(errors.ErrEmptyData, "Harmonizer.Fit")
	}
	tbl := train.Table()
	X := tbl.X()
	state := &HarmonizerState{Strategy: h.Strategy, Features: tbl.Features()}

	var err error
	switch h.Strategy {
	case StrategyZScore:
		state.Standard, err = FitStandardScaler(X)
	case StrategyMinMax:
		state.MinMax, err = FitMinMaxScaler(X, [2]float64{0, 1})
	case StrategyBatchMatch:
		state.Pooled = batchStats(X, allRows(tbl.NRows()))
		state.Batches = make(map[string]*BatchStats)
		for batch, rows := range rowsByBatch(tbl.Batches()) {
			// A single row has no scale; it is treated like an unseen batch.
			if batch == "" || len(rows) < 2 {
				continue
			}
			state.Batches[batch] = batchStats(X, rows)
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "Harmonizer.Fit")
	}
	return state, nil
}

// Transform applies the fitted parameters to t. Columns are matched by name,
// so t may carry extra features; the result holds exactly the fitted ones.
func (s *HarmonizerState) Transform(t *dataset.Table) (*dataset.Table, error) {
	sel, err := t.SelectFeatures(s.Features)
	if err != nil {
		return nil, errors.Wrap(err, "Harmonizer.Transform")
	}
	if sel.NRows() == 0 {
		return sel, nil
	}
	x, err := s.TransformMatrix(sel.X(), sel.Batches())
	if err != nil {
		return nil, err
	}
	return sel.WithValues(x)
}

// TransformMatrix applies the fitted parameters to raw rows whose columns
// follow Features. batches may be nil.
func (s *HarmonizerState) TransformMatrix(X mat.Matrix, batches []string) (*mat.Dense, error) {
	r, c := X.Dims()
	if r == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "Harmonizer.Transform")
	}
	if c != len(s.Features) {
		return nil, errors.NewDimensionError("Harmonizer.Transform", len(s.Features), c, 1)
	}
	switch s.Strategy {
	case StrategyZScore:
		if s.Standard == nil {
			return nil, errors.NewNotFittedError("Harmonizer", "Transform")
		}
		return s.Standard.Transform(X)
	case StrategyMinMax:
		if s.MinMax == nil {
			return nil, errors.NewNotFittedError("Harmonizer", "Transform")
		}
		return s.MinMax.Transform(X)
	case StrategyBatchMatch:
		if s.Pooled == nil {
			return nil, errors.NewNotFittedError("Harmonizer", "Transform")
		}
		if batches != nil && len(batches) != r {
			return nil, errors.NewDimensionError("Harmonizer.Transform", r, len(batches), 0)
		}
		out := mat.NewDense(r, c, nil)
		out.Apply(func(i, j int, v float64) float64 {
			src := s.Pooled
			if batches != nil {
				if b, ok := s.Batches[batches[i]]; ok {
					src = b
				}
			}
			return (v-src.Mean[j])/src.Std[j]*s.Pooled.Std[j] + s.Pooled.Mean[j]
		}, X)
		return out, nil
	}
	return nil, errors.NewConfigurationError("Harmonizer", "unknown strategy", s.Strategy)
}

// BatchNames returns the batches with fitted statistics, sorted.
func (s *HarmonizerState) BatchNames() []string {
	names := make([]string, 0, len(s.Batches))
	for b := range s.Batches {
		names = append(names, b)
	}
	sort.Strings(names)
	return names
}

// String summarizes the state for logs.
func (s *HarmonizerState) String() string {
	return fmt.Sprintf("Harmonizer(strategy=%s, n_features=%d, batches=%d)", s.Strategy, len(s.Features), len(s.Batches))
}

func batchStats(X mat.Matrix, rows []int) *BatchStats {
	_, c := X.Dims()
	bs := &BatchStats{Mean: make([]float64, c), Std: make([]float64, c), Rows: len(rows)}
	vals := make([]float64, len(rows))
	for j := 0; j < c; j++ {
		for k, i := range rows {
			vals[k] = X.At(i, j)
		}
		mean, variance := stat.PopMeanVariance(vals, nil)
		bs.Mean[j] = mean
		bs.Std[j] = math.Sqrt(variance)
		if bs.Std[j] < scaleEpsilon {
			bs.Std[j] = 1.0
		}
	}
	return bs
}

func rowsByBatch(batches []string) map[string][]int {
	out := make(map[string][]int)
	for i, b := range batches {
		out[b] = append(out[b], i)
	}
	return out
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}
