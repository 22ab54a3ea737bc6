// Package naive_bayes provides a two-class Gaussian naive Bayes estimator.
package naive_bayes

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/radcv/core/model"
	"github.com/YuminosukeSato/radcv/pkg/errors"
)

// GaussianNB は特徴量ごとに独立な正規分布を仮定するナイーブベイズ分類器です。
type GaussianNB struct {
	state *model.StateManager

	// varSmoothing は全特徴量の最大分散に対する比率で、各分散に加算されます。
	varSmoothing float64

	theta  [2][]float64 // クラスごとの平均
	sigma  [2][]float64 // クラスごとの分散
	priors [2]float64
}

// GaussianNBOption is a functional option for GaussianNB
type GaussianNBOption func(*GaussianNB)

// NewGaussianNB creates a GaussianNB with var_smoothing 1e-9.
func NewGaussianNB(opts ...GaussianNBOption) *GaussianNB {
	nb := &GaussianNB{
		state:        model.NewStateManager("GaussianNB"),
		varSmoothing: 1e-9,
	}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

// WithVarSmoothing sets the variance smoothing ratio
func WithVarSmoothing(v float64) GaussianNBOption {
	return func(nb *GaussianNB) { nb.varSmoothing = v }
}

// Fit estimates per-class means, variances and priors.
func (nb *GaussianNB) Fit(X mat.Matrix, y []int) (err error) {
	defer errors.Recover(&err, "GaussianNB.Fit")
	if nb.varSmoothing < 0 {
		return errors.NewConfigurationError("GaussianNB", "var_smoothing must be >= 0", nb.varSmoothing)
	}
	nb.state.Reset()
	if X == nil {
		return errors.NewValueError("GaussianNB.Fit", "nil design matrix")
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.Wrap(errors.ErrEmptyData, "GaussianNB.Fit")
	}
	if len(y) != n {
		return errors.NewDimensionError("GaussianNB.Fit", n, len(y), 0)
	}
	if err := errors.CheckMatrix("GaussianNB.Fit", X); err != nil {
		return err
	}

	var rows [2][]int
	for i, v := range y {
		if v != 0 && v != 1 {
			return errors.NewValueError("GaussianNB.Fit", "labels must be 0/1")
		}
		rows[v] = append(rows[v], i)
	}
	if len(rows[0]) == 0 || len(rows[1]) == 0 {
		return errors.Wrap(errors.ErrSingleClass, "GaussianNB.Fit")
	}

	// epsilon = varSmoothing * max feature variance over all rows
	var maxVar float64
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, X)
		_, v := stat.PopMeanVariance(col, nil)
		maxVar = math.Max(maxVar, v)
	}
	eps := nb.varSmoothing * maxVar
	if eps == 0 {
		eps = nb.varSmoothing
	}

	for c := 0; c < 2; c++ {
		nb.theta[c] = make([]float64, p)
		nb.sigma[c] = make([]float64, p)
		vals := make([]float64, len(rows[c]))
		for j := 0; j < p; j++ {
			for k, i := range rows[c] {
				vals[k] = X.At(i, j)
			}
			m, v := stat.PopMeanVariance(vals, nil)
			nb.theta[c][j] = m
			nb.sigma[c][j] = v + eps
		}
		nb.priors[c] = float64(len(rows[c])) / float64(n)
	}
	for c := 0; c < 2; c++ {
		for _, v := range nb.sigma[c] {
			if v <= 0 {
				return errors.NewValueError("GaussianNB.Fit", "zero within-class variance; raise var_smoothing")
			}
		}
	}
	nb.state.SetFitted(p, n)
	return nil
}

// jointLogLikelihood returns log P(c) + Σ log N(x | θ_c, σ²_c) for both classes.
func (nb *GaussianNB) jointLogLikelihood(x []float64) [2]float64 {
	var out [2]float64
	for c := 0; c < 2; c++ {
		ll := math.Log(nb.priors[c])
		for j, v := range x {
			d := v - nb.theta[c][j]
			ll -= 0.5 * (math.Log(2*math.Pi*nb.sigma[c][j]) + d*d/nb.sigma[c][j])
		}
		out[c] = ll
	}
	return out
}

// DecisionFunction returns the log-odds of class 1.
func (nb *GaussianNB) DecisionFunction(X mat.Matrix) ([]float64, error) {
	r, p := X.Dims()
	if err := nb.state.RequireWidth("DecisionFunction", p); err != nil {
		return nil, err
	}
	out := make([]float64, r)
	row := make([]float64, p)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		jll := nb.jointLogLikelihood(row)
		out[i] = jll[1] - jll[0]
	}
	return out, nil
}

// PredictProba returns P(y=1 | x) normalized with log-sum-exp.
func (nb *GaussianNB) PredictProba(X mat.Matrix) ([]float64, error) {
	r, p := X.Dims()
	if err := nb.state.RequireWidth("PredictProba", p); err != nil {
		return nil, err
	}
	out := make([]float64, r)
	row := make([]float64, p)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		jll := nb.jointLogLikelihood(row)
		out[i] = math.Exp(jll[1] - floats.LogSumExp(jll[:]))
	}
	return out, nil
}

// IsFitted reports whether Fit succeeded.
func (nb *GaussianNB) IsFitted() bool { return nb.state.IsFitted() }

// Theta returns a copy of the class means.
func (nb *GaussianNB) Theta(class int) []float64 {
	return append([]float64(nil), nb.theta[class]...)
}

// Var returns a copy of the smoothed class variances.
func (nb *GaussianNB) Var(class int) []float64 {
	return append([]float64(nil), nb.sigma[class]...)
}

// Priors returns the class priors.
func (nb *GaussianNB) Priors() [2]float64 { return nb.priors }

// GetParams returns the model hyperparameters
func (nb *GaussianNB) GetParams() map[string]float64 {
	return map[string]float64{"var_smoothing": nb.varSmoothing}
}

// ExportWeights implements model.Exporter.
func (nb *GaussianNB) ExportWeights() (*model.ModelWeights, error) {
	if err := nb.state.RequireFitted("ExportWeights"); err != nil {
		return nil, err
	}
	return &model.ModelWeights{
		ModelType: "GaussianNB",
		Version:   model.WeightsVersion,
		Arrays: map[string][]float64{
			"theta_0": nb.Theta(0),
			"theta_1": nb.Theta(1),
			"var_0":   nb.Var(0),
			"var_1":   nb.Var(1),
			"priors":  {nb.priors[0], nb.priors[1]},
		},
		Hyperparameters: nb.GetParams(),
		NFeatures:       nb.state.NFeatures(),
		IsFitted:        true,
	}, nil
}

// ImportWeights implements model.Exporter.
func (nb *GaussianNB) ImportWeights(w *model.ModelWeights) error {
	if w.ModelType != "GaussianNB" {
		return errors.NewValueError("GaussianNB.ImportWeights", "weights are for "+w.ModelType)
	}
	if err := w.Validate(); err != nil {
		return errors.Wrap(err, "GaussianNB.ImportWeights")
	}
	for _, key := range []string{"theta_0", "theta_1", "var_0", "var_1"} {
		if len(w.Arrays[key]) != w.NFeatures {
			return errors.NewDimensionError("GaussianNB.ImportWeights", w.NFeatures, len(w.Arrays[key]), 1)
		}
	}
	priors := w.Arrays["priors"]
	if len(priors) != 2 {
		return errors.NewValueError("GaussianNB.ImportWeights", "priors must hold two values")
	}
	nb.varSmoothing = w.Hyperparameters["var_smoothing"]
	nb.theta[0] = append([]float64(nil), w.Arrays["theta_0"]...)
	nb.theta[1] = append([]float64(nil), w.Arrays["theta_1"]...)
	nb.sigma[0] = append([]float64(nil), w.Arrays["var_0"]...)
	nb.sigma[1] = append([]float64(nil), w.Arrays["var_1"]...)
	nb.priors = [2]float64{priors[0], priors[1]}
	nb.state.SetFitted(w.NFeatures, 0)
	return nil
}
