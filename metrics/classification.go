// Package metrics provides the binary classification scores used to rank
// pipelines: ROC AUC, accuracy, balanced accuracy and log loss.
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/radcv/pkg/errors"
)

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

func checkBinary(op string, y *mat.VecDense) (pos, neg int, err error) {
	for i := 0; i < y.Len(); i++ {
		switch y.AtVec(i) {
		case 1:
			pos++
		case 0:
			neg++
		default:
			return 0, 0, errors.NewValueError(op, "labels must be 0 or 1")
		}
	}
	return pos, neg, nil
}

// AUC はROC曲線下面積を計算する
//
// Computed from the Mann-Whitney statistic with average ranks for tied
// scores. When yTrue holds a single class the AUC is undefined: an
// UndefinedMetricWarning is raised and 0.5 is returned.
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	pos, neg, err := checkBinary("AUC", yTrue)
	if err != nil {
		return 0, err
	}
	if pos == 0 || neg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "only one class present in y_true", 0.5))
		return 0.5, nil
	}
	for i := 0; i < n; i++ {
		if v := yPred.AtVec(i); math.IsNaN(v) {
			return 0, errors.NewValueError("AUC", "scores contain NaN")
		}
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return yPred.AtVec(idx[a]) < yPred.AtVec(idx[b]) })

	// 同順位は平均順位を割り当てる
	var rankSumPos float64
	for i := 0; i < n; {
		j := i + 1
		for j < n && yPred.AtVec(idx[j]) == yPred.AtVec(idx[i]) {
			j++
		}
		avgRank := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			if yTrue.AtVec(idx[k]) == 1 {
				rankSumPos += avgRank
			}
		}
		i = j
	}

	u := rankSumPos - float64(pos*(pos+1))/2
	return u / float64(pos*neg), nil
}

// AUCMatrix は行列形式の入力に対してAUCを計算する（先頭列を使用）
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil matrix")
	}
	yt, err := firstColumn("AUCMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	yp, err := firstColumn("AUCMatrix", yPred)
	if err != nil {
		return 0, err
	}
	return AUC(yt, yp)
}

func firstColumn(op string, m mat.Matrix) (*mat.VecDense, error) {
	if d, ok := m.(*mat.Dense); ok && d.IsEmpty() {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, m)), nil
}

// BinaryLogLoss は二値交差エントロピーを計算する
// Probabilities are clipped to [eps, 1-eps].
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if _, _, err := checkBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}
	const eps = 1e-15
	var sum float64
	for i := 0; i < n; i++ {
		p := math.Min(math.Max(yPred.AtVec(i), eps), 1-eps)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// BalancedAccuracy は各クラスの再現率の平均を計算する
// Classes absent from yTrue are skipped.
func BalancedAccuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("BalancedAccuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var hit, total [2]int
	for i := 0; i < n; i++ {
		c := 0
		if yTrue.AtVec(i) == 1 {
			c = 1
		} else if yTrue.AtVec(i) != 0 {
			return 0, errors.NewValueError("BalancedAccuracy", "labels must be 0 or 1")
		}
		total[c]++
		if yPred.AtVec(i) == yTrue.AtVec(i) {
			hit[c]++
		}
	}
	var sum float64
	var classes int
	for c := 0; c < 2; c++ {
		if total[c] > 0 {
			sum += float64(hit[c]) / float64(total[c])
			classes++
		}
	}
	return sum / float64(classes), nil
}
