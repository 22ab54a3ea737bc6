package model

import "fmt"

// WeightsVersion is written into every exported ModelWeights.
const WeightsVersion = "1"

// ModelWeights はモデルの重みを表す構造体（シリアライゼーション用）
type ModelWeights struct {
	// ModelType はモデルの種類（LogisticRegression, ElasticNet, GaussianNB）
	ModelType string `json:"model_type"`

	// Version はモデルのバージョン（互換性チェック用）
	Version string `json:"version"`

	// Coefficients は重み係数
	Coefficients []float64 `json:"coefficients,omitempty"`

	// Intercept は切片
	Intercept float64 `json:"intercept"`

	// Arrays holds named parameter vectors that do not fit the linear
	// layout, e.g. per-class means and variances of GaussianNB.
	Arrays map[string][]float64 `json:"arrays,omitempty"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters map[string]float64 `json:"hyperparameters,omitempty"`

	// NFeatures is the input width the weights expect.
	NFeatures int `json:"n_features"`

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool `json:"is_fitted"`
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return fmt.Errorf("model_type is required")
	}
	if mw.Version == "" {
		return fmt.Errorf("version is required")
	}
	if !mw.IsFitted {
		return fmt.Errorf("weights of %s are not fitted", mw.ModelType)
	}
	if mw.NFeatures <= 0 {
		return fmt.Errorf("n_features must be positive, got %d", mw.NFeatures)
	}
	if len(mw.Coefficients) > 0 && len(mw.Coefficients) != mw.NFeatures {
		return fmt.Errorf("%d coefficients for %d features", len(mw.Coefficients), mw.NFeatures)
	}
	return nil
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := &ModelWeights{
		ModelType:       mw.ModelType,
		Version:         mw.Version,
		Intercept:       mw.Intercept,
		NFeatures:       mw.NFeatures,
		IsFitted:        mw.IsFitted,
		Coefficients:    append([]float64(nil), mw.Coefficients...),
		Arrays:          make(map[string][]float64, len(mw.Arrays)),
		Hyperparameters: make(map[string]float64, len(mw.Hyperparameters)),
	}
	for k, v := range mw.Arrays {
		clone.Arrays[k] = append([]float64(nil), v...)
	}
	for k, v := range mw.Hyperparameters {
		clone.Hyperparameters[k] = v
	}
	return clone
}
