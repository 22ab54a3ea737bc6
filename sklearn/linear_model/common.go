// Package linear_model provides the linear binary classifiers used as
// pipeline estimators: an elastic-net LogisticRegression and an ElasticNet
// least-squares model scored by its decision values.
package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/radcv/pkg/errors"
)

// checkXY validates a design matrix against binary labels.
func checkXY(op string, X mat.Matrix, y []int) (n, p int, err error) {
	if X == nil {
		return 0, 0, errors.NewValueError(op, "nil design matrix")
	}
	if d, ok := X.(*mat.Dense); ok && d.IsEmpty() {
		return 0, 0, errors.Wrap(errors.ErrEmptyData, op)
	}
	n, p = X.Dims()
	if n == 0 || p == 0 {
		return 0, 0, errors.Wrap(errors.ErrEmptyData, op)
	}
	if len(y) != n {
		return 0, 0, errors.NewDimensionError(op, n, len(y), 0)
	}
	var pos int
	for i, v := range y {
		if v != 0 && v != 1 {
			return 0, 0, errors.NewValueError(op, fmt.Sprintf("label %d at row %d is not 0/1", v, i))
		}
		pos += v
	}
	if pos == 0 || pos == n {
		return 0, 0, errors.Wrap(errors.ErrSingleClass, op)
	}
	if err := errors.CheckMatrix(op, X); err != nil {
		return 0, 0, err
	}
	return n, p, nil
}

// spectralNorm returns the largest eigenvalue of XᵀX, with a column of
// ones appended when intercept is set.
func spectralNorm(X mat.Matrix, intercept bool) float64 {
	n, p := X.Dims()
	q := p
	if intercept {
		q++
	}
	A := mat.NewDense(n, q, nil)
	A.Slice(0, n, 0, p).(*mat.Dense).Copy(X)
	if intercept {
		for i := 0; i < n; i++ {
			A.Set(i, p, 1)
		}
	}
	var gram mat.SymDense
	gram.SymOuterK(1, A.T())
	var eig mat.EigenSym
	if !eig.Factorize(&gram, false) {
		// Frobenius norm bounds the spectral norm.
		return math.Max(mat.Norm(A, 2)*mat.Norm(A, 2), 1e-12)
	}
	vals := eig.Values(nil)
	return math.Max(vals[len(vals)-1], 1e-12)
}

func softThreshold(x, t float64) float64 {
	switch {
	case x > t:
		return x - t
	case x < -t:
		return x + t
	default:
		return 0
	}
}

func linearScores(X mat.Matrix, w []float64, b float64) []float64 {
	n, p := X.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		z := b
		for j := 0; j < p; j++ {
			z += X.At(i, j) * w[j]
		}
		out[i] = z
	}
	return out
}

func support(w []float64, tol float64) []int {
	var idx []int
	for j, v := range w {
		if math.Abs(v) > tol {
			idx = append(idx, j)
		}
	}
	return idx
}
