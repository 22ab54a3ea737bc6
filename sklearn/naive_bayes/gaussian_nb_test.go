package naive_bayes

import (
	"encoding/json"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/radcv/core/model"
	"github.com/YuminosukeSato/radcv/pkg/errors"
)

func trainingData() (*mat.Dense, []int) {
	X := mat.NewDense(6, 2, []float64{
		1.0, 2.0, // class 0
		1.2, 1.8, // class 0
		0.8, 2.2, // class 0
		4.0, 5.0, // class 1
		4.2, 4.8, // class 1
		3.8, 5.2, // class 1
	})
	return X, []int{0, 0, 0, 1, 1, 1}
}

// TestGaussianNBBasicFit tests basic fitting functionality
func TestGaussianNBBasicFit(t *testing.T) {
	X, y := trainingData()

	nb := NewGaussianNB()
	if err := nb.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !nb.IsFitted() {
		t.Error("Model should be fitted after Fit()")
	}

	if got := nb.Theta(0)[0]; math.Abs(got-1.0) > 1e-12 {
		t.Errorf("class 0 mean of feature 0 = %v, want 1.0", got)
	}
	if got := nb.Theta(1)[1]; math.Abs(got-5.0) > 1e-12 {
		t.Errorf("class 1 mean of feature 1 = %v, want 5.0", got)
	}
	// population variance of {1.0, 1.2, 0.8}
	if got := nb.Var(0)[0]; math.Abs(got-0.08/3) > 1e-6 {
		t.Errorf("class 0 variance of feature 0 = %v", got)
	}
	if p := nb.Priors(); p[0] != 0.5 || p[1] != 0.5 {
		t.Errorf("priors = %v", p)
	}
}

// TestGaussianNBPredictProba tests probability prediction
func TestGaussianNBPredictProba(t *testing.T) {
	X, y := trainingData()
	nb := NewGaussianNB()
	if err := nb.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	XTest := mat.NewDense(3, 2, []float64{
		1.1, 2.1, // class 0
		4.1, 4.9, // class 1
		2.5, 3.5, // midway
	})
	proba, err := nb.PredictProba(XTest)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	if proba[0] > 0.01 {
		t.Errorf("sample 0 should be class 0, P(1)=%v", proba[0])
	}
	if proba[1] < 0.99 {
		t.Errorf("sample 1 should be class 1, P(1)=%v", proba[1])
	}
	for i, p := range proba {
		if p < 0 || p > 1 || math.IsNaN(p) {
			t.Errorf("probability %d out of range: %v", i, p)
		}
	}

	pred, err := model.Predict(nb, XTest)
	if err != nil {
		t.Fatal(err)
	}
	if pred[0] != 0 || pred[1] != 1 {
		t.Errorf("predictions = %v", pred)
	}

	scores, err := nb.DecisionFunction(XTest)
	if err != nil {
		t.Fatal(err)
	}
	if !(scores[0] < scores[2] && scores[2] < scores[1]) {
		t.Errorf("decision values not ordered: %v", scores)
	}
}

func TestGaussianNBConstantFeature(t *testing.T) {
	// A constant column within a class must not divide by zero.
	X := mat.NewDense(4, 2, []float64{
		1, 7,
		2, 7,
		5, 7,
		6, 7,
	})
	nb := NewGaussianNB()
	if err := nb.Fit(X, []int{0, 0, 1, 1}); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	proba, err := nb.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range proba {
		if math.IsNaN(p) {
			t.Fatal("NaN probability")
		}
	}
}

func TestGaussianNBErrors(t *testing.T) {
	X, _ := trainingData()

	if err := NewGaussianNB().Fit(X, []int{0, 0, 0, 0, 0, 0}); !errors.Is(err, errors.ErrSingleClass) {
		t.Errorf("expected ErrSingleClass, got %v", err)
	}
	if err := NewGaussianNB().Fit(X, []int{0, 1}); err == nil {
		t.Error("expected dimension error")
	}

	_, err := NewGaussianNB().PredictProba(X)
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError, got %v", err)
	}

	nb := NewGaussianNB()
	_, y := trainingData()
	if err := nb.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if _, err := nb.PredictProba(mat.NewDense(1, 3, nil)); err == nil {
		t.Error("expected width mismatch error")
	}
}

// TestGaussianNBWeightReproducibility は重みの完全な再現性をテスト
func TestGaussianNBWeightReproducibility(t *testing.T) {
	X, y := trainingData()
	nb := NewGaussianNB(WithVarSmoothing(1e-6))
	if err := nb.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	w, err := nb.ExportWeights()
	if err != nil {
		t.Fatalf("Failed to export weights: %v", err)
	}
	data, err := json.Marshal(w)
	if err != nil {
		t.Fatal(err)
	}
	var loaded model.ModelWeights
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatal(err)
	}

	restored := NewGaussianNB()
	if err := restored.ImportWeights(&loaded); err != nil {
		t.Fatalf("Failed to import weights: %v", err)
	}
	p1, _ := nb.PredictProba(X)
	p2, _ := restored.PredictProba(X)
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Errorf("row %d: %v != %v", i, p1[i], p2[i])
		}
	}

	broken := loaded.Clone()
	broken.Arrays["var_1"] = broken.Arrays["var_1"][:1]
	if err := NewGaussianNB().ImportWeights(broken); err == nil {
		t.Error("expected error for truncated variances")
	}
}
