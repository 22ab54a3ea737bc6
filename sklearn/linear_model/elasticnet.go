package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/radcv/core/model"
	"github.com/YuminosukeSato/radcv/pkg/errors"
)

// ElasticNet is least-squares regression of the 0/1 label with combined
// L1/L2 penalty, fitted by cyclic coordinate descent:
//
//	1/(2n)·‖y − Xw − b‖² + alpha·l1Ratio·‖w‖₁ + alpha·(1−l1Ratio)/2·‖w‖²
//
// As a classifier its decision values rank subjects (AUC) and its clipped
// predictions serve as probabilities.
type ElasticNet struct {
	state *model.StateManager

	alpha        float64
	l1Ratio      float64
	fitIntercept bool
	maxIter      int
	tol          float64

	coef_      []float64
	intercept_ float64
	nIter_     int
}

// ElasticNetOption is a functional option for ElasticNet
type ElasticNetOption func(*ElasticNet)

// NewElasticNet creates an ElasticNet with scikit-learn defaults.
func NewElasticNet(opts ...ElasticNetOption) *ElasticNet {
	en := &ElasticNet{
		state:        model.NewStateManager("ElasticNet"),
		alpha:        1.0,
		l1Ratio:      0.5,
		fitIntercept: true,
		maxIter:      1000,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(en)
	}
	return en
}

// WithENAlpha sets the penalty strength
func WithENAlpha(alpha float64) ElasticNetOption {
	return func(en *ElasticNet) { en.alpha = alpha }
}

// WithENL1Ratio sets the L1 share of the penalty
func WithENL1Ratio(r float64) ElasticNetOption {
	return func(en *ElasticNet) { en.l1Ratio = r }
}

// WithENMaxIter sets the maximum number of coordinate sweeps
func WithENMaxIter(n int) ElasticNetOption {
	return func(en *ElasticNet) { en.maxIter = n }
}

// WithENTol sets the stopping tolerance
func WithENTol(tol float64) ElasticNetOption {
	return func(en *ElasticNet) { en.tol = tol }
}

// WithENFitIntercept sets whether to fit intercept
func WithENFitIntercept(fit bool) ElasticNetOption {
	return func(en *ElasticNet) { en.fitIntercept = fit }
}

func (en *ElasticNet) validate() error {
	if en.alpha < 0 {
		return errors.NewConfigurationError("ElasticNet", "alpha must be >= 0", en.alpha)
	}
	if en.l1Ratio < 0 || en.l1Ratio > 1 {
		return errors.NewConfigurationError("ElasticNet", "l1_ratio must be in [0,1]", en.l1Ratio)
	}
	if en.maxIter <= 0 {
		return errors.NewConfigurationError("ElasticNet", "max_iter must be positive", en.maxIter)
	}
	return nil
}

// Fit runs coordinate descent. Non-convergence returns a *ConvergenceWarning
// and leaves the model unfitted.
func (en *ElasticNet) Fit(X mat.Matrix, y []int) (err error) {
	defer errors.Recover(&err, "ElasticNet.Fit")
	if err := en.validate(); err != nil {
		return err
	}
	en.state.Reset()
	n, p, err := checkXY("ElasticNet.Fit", X, y)
	if err != nil {
		return err
	}

	// Centered columns and target.
	cols := make([][]float64, p)
	means := make([]float64, p)
	norms := make([]float64, p)
	for j := 0; j < p; j++ {
		cols[j] = mat.Col(nil, j, X)
		if en.fitIntercept {
			means[j] = stat.Mean(cols[j], nil)
			for i := range cols[j] {
				cols[j][i] -= means[j]
			}
		}
		for _, v := range cols[j] {
			norms[j] += v * v
		}
		norms[j] /= float64(n)
	}
	target := make([]float64, n)
	for i, v := range y {
		target[i] = float64(v)
	}
	yMean := 0.0
	if en.fitIntercept {
		yMean = stat.Mean(target, nil)
		for i := range target {
			target[i] -= yMean
		}
	}

	l1 := en.alpha * en.l1Ratio
	l2 := en.alpha * (1 - en.l1Ratio)
	w := make([]float64, p)
	resid := append([]float64(nil), target...)

	for iter := 1; iter <= en.maxIter; iter++ {
		var maxDelta, maxW float64
		for j := 0; j < p; j++ {
			if norms[j] == 0 {
				continue
			}
			var rho float64
			for i, v := range cols[j] {
				rho += v * resid[i]
			}
			rho = rho/float64(n) + norms[j]*w[j]
			next := softThreshold(rho, l1) / (norms[j] + l2)
			if d := next - w[j]; d != 0 {
				for i, v := range cols[j] {
					resid[i] -= v * d
				}
				maxDelta = math.Max(maxDelta, math.Abs(d))
				w[j] = next
			}
			maxW = math.Max(maxW, math.Abs(w[j]))
		}
		if err := errors.CheckNumericalStability("ElasticNet.Fit", w, iter); err != nil {
			return err
		}
		en.nIter_ = iter
		if maxW == 0 || maxDelta <= en.tol*maxW {
			en.coef_ = w
			en.intercept_ = yMean
			for j := range w {
				en.intercept_ -= means[j] * w[j]
			}
			en.state.SetFitted(p, n)
			return nil
		}
	}
	return errors.NewConvergenceWarning("ElasticNet", en.maxIter,
		fmt.Sprintf("coordinate updates above tol=%g", en.tol))
}

// DecisionFunction returns Xw + b.
func (en *ElasticNet) DecisionFunction(X mat.Matrix) ([]float64, error) {
	_, p := X.Dims()
	if err := en.state.RequireWidth("DecisionFunction", p); err != nil {
		return nil, err
	}
	return linearScores(X, en.coef_, en.intercept_), nil
}

// PredictProba returns the decision values clipped to [0,1].
func (en *ElasticNet) PredictProba(X mat.Matrix) ([]float64, error) {
	z, err := en.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	for i := range z {
		z[i] = math.Min(math.Max(z[i], 0), 1)
	}
	return z, nil
}

// IsFitted reports whether Fit succeeded.
func (en *ElasticNet) IsFitted() bool { return en.state.IsFitted() }

// Coef returns a copy of the fitted coefficients.
func (en *ElasticNet) Coef() []float64 { return append([]float64(nil), en.coef_...) }

// Intercept returns the fitted intercept.
func (en *ElasticNet) Intercept() float64 { return en.intercept_ }

// NIter returns the number of sweeps the last Fit ran.
func (en *ElasticNet) NIter() int { return en.nIter_ }

// Support returns the columns whose |coef| exceeds tol.
func (en *ElasticNet) Support(tol float64) []int { return support(en.coef_, tol) }

// GetParams returns the model hyperparameters
func (en *ElasticNet) GetParams() map[string]float64 {
	return map[string]float64{
		"alpha":    en.alpha,
		"l1_ratio": en.l1Ratio,
		"max_iter": float64(en.maxIter),
		"tol":      en.tol,
	}
}

// ExportWeights implements model.Exporter.
func (en *ElasticNet) ExportWeights() (*model.ModelWeights, error) {
	if err := en.state.RequireFitted("ExportWeights"); err != nil {
		return nil, err
	}
	return &model.ModelWeights{
		ModelType:       "ElasticNet",
		Version:         model.WeightsVersion,
		Coefficients:    en.Coef(),
		Intercept:       en.intercept_,
		Hyperparameters: en.GetParams(),
		NFeatures:       len(en.coef_),
		IsFitted:        true,
	}, nil
}

// ImportWeights implements model.Exporter.
func (en *ElasticNet) ImportWeights(w *model.ModelWeights) error {
	if w.ModelType != "ElasticNet" {
		return errors.NewValueError("ElasticNet.ImportWeights", "weights are for "+w.ModelType)
	}
	if err := w.Validate(); err != nil {
		return errors.Wrap(err, "ElasticNet.ImportWeights")
	}
	en.alpha = w.Hyperparameters["alpha"]
	en.l1Ratio = w.Hyperparameters["l1_ratio"]
	en.coef_ = append([]float64(nil), w.Coefficients...)
	en.intercept_ = w.Intercept
	en.state.SetFitted(w.NFeatures, 0)
	return nil
}
