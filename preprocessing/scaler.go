// Package preprocessing provides the feature scalers and the Harmonizer that
// aligns feature distributions inside a pipeline.
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/radcv/pkg/errors"
)

// scaleEpsilon 未満の標準偏差・範囲は定数特徴量として扱いスケール1にする
const scaleEpsilon = 1e-8

// StandardScaler はscikit-learn互換の標準化スケーラー
// データを平均0、標準偏差1に変換する
type StandardScaler struct {
	// Mean は各特徴量の平均値
	Mean []float64 `json:"mean"`

	// Scale は各特徴量の母標準偏差
	Scale []float64 `json:"scale"`
}

// FitStandardScaler は訓練データから平均と母標準偏差を計算する
//
// 使用例:
//
//	scaler, err := preprocessing.FitStandardScaler(X)
//	XScaled, err := scaler.Transform(X)
func FitStandardScaler(X mat.Matrix) (*StandardScaler, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	s := &StandardScaler{Mean: make([]float64, c), Scale: make([]float64, c)}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, variance := stat.PopMeanVariance(col, nil)
		s.Mean[j] = mean
		s.Scale[j] = math.Sqrt(variance)
		// 標準偏差が0に近い場合は1に設定（ゼロ除算を避ける）
		if s.Scale[j] < scaleEpsilon {
			s.Scale[j] = 1.0
		}
	}
	return s, nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	r, c := X.Dims()
	if c != len(s.Mean) {
		return nil, errors.NewDimensionError("StandardScaler.Transform", len(s.Mean), c, 1)
	}
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return result, nil
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	return fmt.Sprintf("StandardScaler(n_features=%d)", len(s.Mean))
}

// MinMaxScaler はscikit-learn互換のMin-Maxスケーラー
// データを指定した範囲（デフォルト[0,1]）にスケーリングする
type MinMaxScaler struct {
	// DataMin は学習データの最小値
	DataMin []float64 `json:"data_min"`

	// Scale は各特徴量のスケール (max - min)
	Scale []float64 `json:"scale"`

	// FeatureRange はスケーリング後の範囲 [min, max]
	FeatureRange [2]float64 `json:"feature_range"`
}

// FitMinMaxScaler は訓練データから最小値・最大値を計算する
func FitMinMaxScaler(X mat.Matrix, featureRange [2]float64) (*MinMaxScaler, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if featureRange[0] >= featureRange[1] {
		return nil, errors.NewValueError("MinMaxScaler.Fit",
			fmt.Sprintf("feature_range min %v must be below max %v", featureRange[0], featureRange[1]))
	}
	m := &MinMaxScaler{
		DataMin:      make([]float64, c),
		Scale:        make([]float64, c),
		FeatureRange: featureRange,
	}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		lo, hi := col[0], col[0]
		for _, v := range col[1:] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		m.DataMin[j] = lo
		// 定数特徴量の場合、スケールを1に設定
		if hi-lo < scaleEpsilon {
			m.Scale[j] = 1.0
		} else {
			m.Scale[j] = hi - lo
		}
	}
	return m, nil
}

// Transform は学習済みの統計情報を使ってデータをスケーリングする
// 学習範囲外の値はクリップしない
func (m *MinMaxScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	r, c := X.Dims()
	if c != len(m.DataMin) {
		return nil, errors.NewDimensionError("MinMaxScaler.Transform", len(m.DataMin), c, 1)
	}
	width := m.FeatureRange[1] - m.FeatureRange[0]
	result := mat.NewDense(r, c, nil)
	// X_scaled = (X - X.min) / (X.max - X.min) * (max - min) + min
	result.Apply(func(i, j int, v float64) float64 {
		return (v-m.DataMin[j])/m.Scale[j]*width + m.FeatureRange[0]
	}, X)
	return result, nil
}
