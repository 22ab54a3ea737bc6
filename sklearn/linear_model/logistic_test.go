package linear_model

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/radcv/core/model"
	"github.com/YuminosukeSato/radcv/pkg/errors"
)

// separable returns two well separated clusters around (1,1) and (3,3).
func separable() (*mat.Dense, []int) {
	X := mat.NewDense(6, 2, []float64{
		0.5, 0.5,
		1.0, 1.5,
		1.5, 1.0,
		3.0, 2.5,
		2.5, 3.0,
		3.5, 3.5,
	})
	return X, []int{0, 0, 0, 1, 1, 1}
}

// noisy returns n rows where only the first of p columns carries signal.
func noisy(n, p int, seed uint64) (*mat.Dense, []int) {
	rng := rand.New(rand.NewPCG(seed, 1))
	X := mat.NewDense(n, p, nil)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		y[i] = i % 2
		for j := 0; j < p; j++ {
			v := rng.NormFloat64()
			if j == 0 {
				v += 2 * float64(y[i])
			}
			X.Set(i, j, v)
		}
	}
	return X, y
}

// TestLogisticRegression_FitPredict_Binary tests binary classification
func TestLogisticRegression_FitPredict_Binary(t *testing.T) {
	X, y := separable()

	lr := NewLogisticRegression(WithLRC(10))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	pred, err := model.Predict(lr, X)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	for i := range y {
		if pred[i] != y[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, y[i], pred[i])
		}
	}

	proba, err := lr.PredictProba(mat.NewDense(2, 2, []float64{1, 1, 3, 3}))
	if err != nil {
		t.Fatalf("Failed to predict on test data: %v", err)
	}
	if proba[0] >= 0.5 || proba[1] <= 0.5 {
		t.Errorf("unexpected probabilities %v", proba)
	}
}

func TestLogisticRegression_L1Sparsity(t *testing.T) {
	X, y := noisy(120, 6, 3)

	lr := NewLogisticRegression(WithLRPenalty("l1"), WithLRC(0.05))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	support := lr.Support(1e-10)
	if len(support) == 0 || support[0] != 0 {
		t.Fatalf("expected the informative column in the support, got %v", support)
	}
	if len(support) == 6 {
		t.Errorf("strong L1 penalty should zero some coefficients, got %v", lr.Coef())
	}
}

func TestLogisticRegression_ConvergenceWarning(t *testing.T) {
	X, y := noisy(60, 4, 5)

	lr := NewLogisticRegression(WithLRMaxIter(1), WithLRTol(1e-12))
	err := lr.Fit(X, y)

	var warn *errors.ConvergenceWarning
	if !errors.As(err, &warn) {
		t.Fatalf("expected ConvergenceWarning, got %v", err)
	}
	if !errors.IsFitFailure(err) {
		t.Error("ConvergenceWarning must count as a fit failure")
	}
	if lr.IsFitted() {
		t.Error("model must stay unfitted after a convergence failure")
	}
}

func TestLogisticRegression_InputErrors(t *testing.T) {
	X, _ := separable()

	tests := []struct {
		name string
		y    []int
	}{
		{"single class", []int{1, 1, 1, 1, 1, 1}},
		{"non binary", []int{0, 1, 2, 0, 1, 0}},
		{"length mismatch", []int{0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewLogisticRegression().Fit(X, tt.y); err == nil {
				t.Error("expected error")
			}
		})
	}

	if err := NewLogisticRegression(WithLRPenalty("l3")).Fit(X, []int{0, 0, 0, 1, 1, 1}); err == nil {
		t.Error("expected configuration error for unknown penalty")
	}
}

func TestLogisticRegression_NotFitted(t *testing.T) {
	X, _ := separable()
	_, err := NewLogisticRegression().PredictProba(X)

	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFittedError, got %v", err)
	}
}

// TestLogisticRegressionWeightReproducibility は重みの完全な再現性をテスト
func TestLogisticRegressionWeightReproducibility(t *testing.T) {
	X, y := noisy(80, 3, 9)

	model1 := NewLogisticRegression(WithLRPenalty("elasticnet"), WithLRC(0.5), WithLRL1Ratio(0.3))
	if err := model1.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model1: %v", err)
	}
	weights, err := model1.ExportWeights()
	if err != nil {
		t.Fatalf("Failed to export weights: %v", err)
	}
	jsonData, err := json.Marshal(weights)
	if err != nil {
		t.Fatalf("Failed to serialize weights: %v", err)
	}
	loaded := &model.ModelWeights{}
	if err := json.Unmarshal(jsonData, loaded); err != nil {
		t.Fatalf("Failed to deserialize weights: %v", err)
	}

	model2 := NewLogisticRegression()
	if err := model2.ImportWeights(loaded); err != nil {
		t.Fatalf("Failed to import weights: %v", err)
	}

	p1, _ := model1.PredictProba(X)
	p2, _ := model2.PredictProba(X)
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Fatalf("row %d: %v != %v", i, p1[i], p2[i])
		}
	}

	// Refitting with identical inputs is deterministic.
	model3 := NewLogisticRegression(WithLRPenalty("elasticnet"), WithLRC(0.5), WithLRL1Ratio(0.3))
	if err := model3.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	for j, c := range model1.Coef() {
		if c != model3.Coef()[j] {
			t.Errorf("coef %d differs between identical fits", j)
		}
	}
}

func TestSigmoidIsStable(t *testing.T) {
	if v := sigmoid(-1000); v != 0 || math.IsNaN(v) {
		t.Errorf("sigmoid(-1000) = %v", v)
	}
	if v := sigmoid(1000); v != 1 {
		t.Errorf("sigmoid(1000) = %v", v)
	}
}
