// Package linear_model implements linear models: L2 logistic regression solved
// with L-BFGS, ElasticNet by coordinate descent, SVD least squares and the
// passive-aggressive margin classifier.
package linear_model

import (
	crand "crypto/rand"
	"math"
	"math/big"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/core/model"
	"github.com/ezoic/medscore/pkg/errors"
)

func init() {
	model.Register(&LogisticRegression{}, &ElasticNet{}, &LinearRegression{}, &PassiveAggressiveClassifier{})
}

func checkXY(op string, X, y mat.Matrix) (*mat.Dense, []float64, error) {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return nil, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return nil, nil, errors.NewDimensionError(op, nSamples, yRows, 0)
	}
	if yCols != 1 {
		return nil, nil, errors.NewDimensionError(op, 1, yCols, 1)
	}
	target := make([]float64, yRows)
	for i := range target {
		target[i] = y.At(i, 0)
		if math.IsNaN(target[i]) {
			return nil, nil, errors.NewValueError(op, "target contains NaN")
		}
	}
	return mat.DenseCopyOf(X), target, nil
}

// binaryClasses returns the two sorted labels of y and y recoded to 0/1 where 1
// marks the larger label.
func binaryClasses(op string, y []float64) ([]float64, []float64, error) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range y {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	for _, v := range y {
		if v != lo && v != hi {
			return nil, nil, errors.NewValueError(op, "only binary targets are supported")
		}
	}
	if lo == hi {
		return nil, nil, errors.NewValueError(op, "target has a single class")
	}
	coded := make([]float64, len(y))
	for i, v := range y {
		if v == hi {
			coded[i] = 1
		}
	}
	return []float64{lo, hi}, coded, nil
}

// absImportances returns |coef| normalised to sum to one, or nil when every
// coefficient is zero.
func absImportances(coef []float64) []float64 {
	total := 0.0
	for _, c := range coef {
		total += math.Abs(c)
	}
	if total == 0 {
		return nil
	}
	out := make([]float64, len(coef))
	for i, c := range coef {
		out[i] = math.Abs(c) / total
	}
	return out
}

// linearScores returns X·coef + intercept.
func linearScores(X mat.Matrix, coef []float64, intercept float64) *mat.VecDense {
	n, _ := X.Dims()
	scores := mat.NewVecDense(n, nil)
	scores.MulVec(X, mat.NewVecDense(len(coef), coef))
	for i := 0; i < n; i++ {
		scores.SetVec(i, scores.AtVec(i)+intercept)
	}
	return scores
}

func checkFitted(e *model.BaseEstimator, name, op string, X mat.Matrix, nFeatures int) error {
	if !e.IsFitted() {
		return errors.NewNotFittedError(name, op)
	}
	if _, c := X.Dims(); c != nFeatures {
		return errors.NewDimensionError(name+"."+op, nFeatures, c, 1)
	}
	return nil
}

// resolveSeed returns state, or a random seed when state is negative.
func resolveSeed(state int64) int64 {
	if state >= 0 {
		return state
	}
	seed, err := crand.Int(crand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return 0
	}
	return seed.Int64()
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}
