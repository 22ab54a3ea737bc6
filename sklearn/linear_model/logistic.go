package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/radcv/core/model"
	"github.com/YuminosukeSato/radcv/pkg/errors"
)

// LogisticRegression is a binary logistic regression with an elastic-net
// penalty, fitted by accelerated proximal gradient descent (FISTA).
//
// The objective is
//
//	mean log-loss + 1/(C·n) · (l1Ratio·‖w‖₁ + (1−l1Ratio)/2·‖w‖²)
//
// which matches scikit-learn's C·Σ log-loss + penalty up to scaling.
type LogisticRegression struct {
	state *model.StateManager

	// Hyperparameters
	penalty      string  // "l2", "l1", "elasticnet", "none"
	C            float64 // Inverse regularization strength
	l1Ratio      float64 // Used when penalty is "elasticnet"
	fitIntercept bool
	maxIter      int
	tol          float64

	// Model parameters
	coef_      []float64
	intercept_ float64
	nIter_     int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager("LogisticRegression"),
		penalty:      "l2",
		C:            1.0,
		l1Ratio:      0.5,
		fitIntercept: true,
		maxIter:      1000,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLRL1Ratio sets the elastic-net mixing parameter
func WithLRL1Ratio(r float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.l1Ratio = r
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

func (lr *LogisticRegression) validate() error {
	switch lr.penalty {
	case "l1", "l2", "elasticnet", "none":
	default:
		return errors.NewConfigurationError("LogisticRegression", "unknown penalty", lr.penalty)
	}
	if lr.C <= 0 {
		return errors.NewConfigurationError("LogisticRegression", "C must be positive", lr.C)
	}
	if lr.l1Ratio < 0 || lr.l1Ratio > 1 {
		return errors.NewConfigurationError("LogisticRegression", "l1_ratio must be in [0,1]", lr.l1Ratio)
	}
	if lr.maxIter <= 0 {
		return errors.NewConfigurationError("LogisticRegression", "max_iter must be positive", lr.maxIter)
	}
	return nil
}

// l1l2 returns the L1 and L2 penalty weights per unit of mean loss.
func (lr *LogisticRegression) l1l2(n int) (float64, float64) {
	lambda := 1.0 / (lr.C * float64(n))
	switch lr.penalty {
	case "l1":
		return lambda, 0
	case "l2":
		return 0, lambda
	case "elasticnet":
		return lambda * lr.l1Ratio, lambda * (1 - lr.l1Ratio)
	default:
		return 0, 0
	}
}

// Fit trains the model. Labels must be 0/1 and both classes present.
// If the solver does not reach tol within maxIter a *ConvergenceWarning is
// returned and the model stays unfitted.
func (lr *LogisticRegression) Fit(X mat.Matrix, y []int) (err error) {
	defer errors.Recover(&err, "LogisticRegression.Fit")
	if err := lr.validate(); err != nil {
		return err
	}
	lr.state.Reset()
	n, p, err := checkXY("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}

	l1, l2 := lr.l1l2(n)
	// Lipschitz constant of the smooth part: λmax(XᵀX)/(4n) + l2, with the
	// intercept column included.
	L := spectralNorm(X, lr.fitIntercept)/(4*float64(n)) + l2
	step := 1 / L

	w := make([]float64, p)
	var b float64
	zw := make([]float64, p) // extrapolated point
	zb := 0.0
	t := 1.0
	grad := make([]float64, p)
	prev := make([]float64, p)

	for iter := 1; iter <= lr.maxIter; iter++ {
		gb := logisticGradient(X, y, zw, zb, grad)
		for j := range grad {
			grad[j] += l2 * zw[j]
		}

		copy(prev, w)
		prevB := b
		for j := range w {
			w[j] = softThreshold(zw[j]-step*grad[j], step*l1)
		}
		if lr.fitIntercept {
			b = zb - step*gb
		}

		if err := errors.CheckNumericalStability("LogisticRegression.Fit", w, iter); err != nil {
			return err
		}

		var delta, scale float64
		for j := range w {
			delta = math.Max(delta, math.Abs(w[j]-prev[j]))
			scale = math.Max(scale, math.Abs(w[j]))
		}
		delta = math.Max(delta, math.Abs(b-prevB))
		lr.nIter_ = iter
		if delta <= lr.tol*math.Max(1, scale) {
			lr.coef_, lr.intercept_ = w, b
			lr.state.SetFitted(p, n)
			return nil
		}

		// FISTA momentum with restart when the step moved uphill.
		tNext := (1 + math.Sqrt(1+4*t*t)) / 2
		mom := (t - 1) / tNext
		var dot float64
		for j := range w {
			dot += (zw[j] - w[j]) * (w[j] - prev[j])
		}
		if dot > 0 {
			tNext, mom = 1, 0
		}
		for j := range w {
			zw[j] = w[j] + mom*(w[j]-prev[j])
		}
		zb = b + mom*(b-prevB)
		t = tNext
	}
	return errors.NewConvergenceWarning("LogisticRegression", lr.maxIter,
		fmt.Sprintf("coefficient change above tol=%g", lr.tol))
}

// logisticGradient fills grad with the gradient of the mean log-loss wrt w
// and returns the gradient wrt the intercept.
func logisticGradient(X mat.Matrix, y []int, w []float64, b float64, grad []float64) float64 {
	n, p := X.Dims()
	for j := range grad {
		grad[j] = 0
	}
	var gb float64
	for i := 0; i < n; i++ {
		z := b
		for j := 0; j < p; j++ {
			z += X.At(i, j) * w[j]
		}
		r := sigmoid(z) - float64(y[i])
		gb += r
		for j := 0; j < p; j++ {
			grad[j] += r * X.At(i, j)
		}
	}
	for j := range grad {
		grad[j] /= float64(n)
	}
	return gb / float64(n)
}

// DecisionFunction returns Xw + b.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) ([]float64, error) {
	_, p := X.Dims()
	if err := lr.state.RequireWidth("DecisionFunction", p); err != nil {
		return nil, err
	}
	return linearScores(X, lr.coef_, lr.intercept_), nil
}

// PredictProba returns P(y=1) per row.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) ([]float64, error) {
	z, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	for i := range z {
		z[i] = sigmoid(z[i])
	}
	return z, nil
}

// IsFitted reports whether Fit succeeded.
func (lr *LogisticRegression) IsFitted() bool { return lr.state.IsFitted() }

// Coef returns a copy of the fitted coefficients.
func (lr *LogisticRegression) Coef() []float64 { return append([]float64(nil), lr.coef_...) }

// Intercept returns the fitted intercept.
func (lr *LogisticRegression) Intercept() float64 { return lr.intercept_ }

// NIter returns the number of iterations the last Fit ran.
func (lr *LogisticRegression) NIter() int { return lr.nIter_ }

// Support returns the columns whose |coef| exceeds tol.
func (lr *LogisticRegression) Support(tol float64) []int {
	return support(lr.coef_, tol)
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]float64 {
	return map[string]float64{
		"C":        lr.C,
		"l1_ratio": lr.l1Ratio,
		"max_iter": float64(lr.maxIter),
		"tol":      lr.tol,
	}
}

// ExportWeights implements model.Exporter.
func (lr *LogisticRegression) ExportWeights() (*model.ModelWeights, error) {
	if err := lr.state.RequireFitted("ExportWeights"); err != nil {
		return nil, err
	}
	params := lr.GetParams()
	params["penalty_"+lr.penalty] = 1
	if lr.fitIntercept {
		params["fit_intercept"] = 1
	}
	return &model.ModelWeights{
		ModelType:       "LogisticRegression",
		Version:         model.WeightsVersion,
		Coefficients:    lr.Coef(),
		Intercept:       lr.intercept_,
		Hyperparameters: params,
		NFeatures:       len(lr.coef_),
		IsFitted:        true,
	}, nil
}

// ImportWeights implements model.Exporter.
func (lr *LogisticRegression) ImportWeights(w *model.ModelWeights) error {
	if w.ModelType != "LogisticRegression" {
		return errors.NewValueError("LogisticRegression.ImportWeights", "weights are for "+w.ModelType)
	}
	if err := w.Validate(); err != nil {
		return errors.Wrap(err, "LogisticRegression.ImportWeights")
	}
	for _, pen := range []string{"l1", "l2", "elasticnet", "none"} {
		if w.Hyperparameters["penalty_"+pen] == 1 {
			lr.penalty = pen
		}
	}
	lr.C = w.Hyperparameters["C"]
	lr.l1Ratio = w.Hyperparameters["l1_ratio"]
	lr.fitIntercept = w.Hyperparameters["fit_intercept"] == 1
	lr.coef_ = append([]float64(nil), w.Coefficients...)
	lr.intercept_ = w.Intercept
	lr.state.SetFitted(w.NFeatures, 0)
	return nil
}

// sigmoid computes the sigmoid function
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
