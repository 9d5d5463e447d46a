// Package metrics provides the evaluation metrics used by training and model search.
//
// Regression:
//   - MAE, MSE, RMSE
//   - R2Score and ExplainedVarianceScore
//
// Classification (classification.go):
//   - AUC, AveragePrecision, Accuracy
//   - PrecisionRecallF1, ClassificationReport
//   - BestF1Threshold, the threshold sweep used to pick a decision cutoff
//
// Association (association.go):
//   - PointBiserial and MutualInformation, used by the leakage guard
//
// Inputs are gonum vectors. Degenerate inputs that make a metric undefined
// (one class only, constant target) produce an UndefinedMetricWarning and a
// conventional value instead of an error, matching scikit-learn.
//
// Example usage:
//
//	mae, err := metrics.MAE(yTrue, yPred)
//	auc, err := metrics.AUC(yTrue, scores)
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	medErrors "github.com/ezoic/medscore/pkg/errors"
)

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, medErrors.NewValueError(op, "input vectors cannot be nil")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, medErrors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, medErrors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE calculates the mean squared error.
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var diff mat.VecDense
	diff.SubVec(yTrue, yPred)
	return mat.Dot(&diff, &diff) / float64(n), nil
}

// RMSE calculates the root mean squared error.
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE is the mean absolute error, in the target's units.
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return floats.Distance(values(yTrue), values(yPred), 1) / float64(n), nil
}

// R2Score is the coefficient of determination. A constant yTrue scores 1 for a
// perfect prediction and 0 otherwise, with an UndefinedMetricWarning.
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	if _, err := checkPair("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}
	truth := values(yTrue)
	resid := make([]float64, len(truth))
	floats.SubTo(resid, truth, values(yPred))
	floats.AddConst(-stat.Mean(truth, nil), truth)
	return varianceRatio("r2_score", floats.Dot(resid, resid), floats.Dot(truth, truth)), nil
}

// ExplainedVarianceScore is 1 - Var(yTrue - yPred) / Var(yTrue). A constant
// offset in the predictions does not lower it.
func ExplainedVarianceScore(yTrue, yPred *mat.VecDense) (float64, error) {
	if _, err := checkPair("ExplainedVarianceScore", yTrue, yPred); err != nil {
		return 0, err
	}
	truth := values(yTrue)
	resid := make([]float64, len(truth))
	floats.SubTo(resid, truth, values(yPred))
	_, varResid := stat.PopMeanVariance(resid, nil)
	_, varTrue := stat.PopMeanVariance(truth, nil)
	return varianceRatio("explained_variance_score", varResid, varTrue), nil
}

// varianceRatio returns 1 - unexplained/total, falling back to 1 or 0 when the
// total is zero.
func varianceRatio(metric string, unexplained, total float64) float64 {
	if total != 0 {
		return 1 - unexplained/total
	}
	score := 0.0
	if unexplained == 0 {
		score = 1
	}
	medErrors.Warn(medErrors.NewUndefinedMetricWarning(metric, "yTrue has no variance", score))
	return score
}

// values copies v into a fresh slice; views may be strided.
func values(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
