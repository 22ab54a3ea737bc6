// Package model defines the estimator contracts shared by the classifiers and
// the JSON persistence used for fitted weights.
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能な二値分類モデルのインターフェース
// y holds class labels in {0, 1}, one per row of X.
type Fitter interface {
	Fit(X mat.Matrix, y []int) error
}

// Scorer returns a continuous score per row; larger means more likely class 1.
// AUC only needs the ordering, so probabilities and decision values both work.
type Scorer interface {
	DecisionFunction(X mat.Matrix) ([]float64, error)
}

// ProbaPredictor は陽性クラスの確率を予測するインターフェース
type ProbaPredictor interface {
	PredictProba(X mat.Matrix) ([]float64, error)
}

// Exporter はモデルの重みをシリアライズ可能な形で書き出す
type Exporter interface {
	ExportWeights() (*ModelWeights, error)
	ImportWeights(w *ModelWeights) error
}

// BinaryClassifier is what a pipeline needs from an estimator.
type BinaryClassifier interface {
	Fitter
	Scorer
	ProbaPredictor
	Exporter
	IsFitted() bool
}

// Predict thresholds probabilities at 0.5.
func Predict(c ProbaPredictor, X mat.Matrix) ([]int, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(proba))
	for i, p := range proba {
		if p >= 0.5 {
			out[i] = 1
		}
	}
	return out, nil
}
