package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/medscore/core/model"
	"github.com/ezoic/medscore/core/parallel"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/pkg/log"
)

// rcond is the relative singular value cut-off of the least-squares solve.
const rcond = 1e-10

// LinearRegression is least-squares regression with an optional L2 penalty,
// minimising ||y - Xw - b||² + alpha·||w||². It is solved by SVD on centred
// data, so rank-deficient designs such as full one-hot blocks get the
// minimum-norm solution.
type LinearRegression struct {
	model.BaseEstimator

	Alpha        float64
	FitIntercept bool

	Coef      []float64
	Intercept float64
	NFeatures int
	Rank      int
}

// LinearRegressionOption is a functional option for LinearRegression
type LinearRegressionOption func(*LinearRegression)

// WithRidge sets the L2 penalty; zero is ordinary least squares
func WithRidge(alpha float64) LinearRegressionOption {
	return func(lr *LinearRegression) { lr.Alpha = alpha }
}

// NewLinearRegression creates an ordinary least squares regressor.
func NewLinearRegression(opts ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{FitIntercept: true}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit solves the (penalised) least-squares problem.
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")
	if lr.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", lr.Alpha)
	}
	Xd, target, err := checkXY("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}
	r, c := Xd.Dims()

	means := make([]float64, c)
	yMean := 0.0
	if lr.FitIntercept {
		for j := range means {
			means[j] = stat.Mean(mat.Col(nil, j, Xd), nil)
		}
		yMean = stat.Mean(target, nil)
	}

	// Ridge rows are appended below the data: [X - mean; sqrt(alpha)·I].
	extra := 0
	if lr.Alpha > 0 {
		extra = c
	}
	A := mat.NewDense(r+extra, c, nil)
	b := mat.NewDense(r+extra, 1, nil)
	parallel.ParallelizeWithThreshold(r, 1000, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				A.Set(i, j, Xd.At(i, j)-means[j])
			}
			b.Set(i, 0, target[i]-yMean)
		}
	})
	for j := 0; j < extra; j++ {
		A.Set(r+j, j, math.Sqrt(lr.Alpha))
	}

	var svd mat.SVD
	if !svd.Factorize(A, mat.SVDThin) {
		return errors.NewModelError("LinearRegression.Fit", "SVD did not converge", errors.ErrSingularMatrix)
	}
	rank := svd.Rank(rcond)
	if rank == 0 {
		return errors.NewModelError("LinearRegression.Fit", "design matrix has rank zero", errors.ErrSingularMatrix)
	}
	var w mat.Dense
	svd.SolveTo(&w, b, rank)

	lr.Coef = mat.Col(nil, 0, &w)
	lr.Intercept = 0
	if lr.FitIntercept {
		lr.Intercept = yMean - floats.Dot(means, lr.Coef)
	}
	lr.NFeatures = c
	lr.Rank = rank
	lr.SetFitted()

	log.GetLoggerWithName("linear_model").Debug("least squares solved",
		log.ModelNameKey, "LinearRegression",
		log.SamplesKey, r,
		log.FeaturesKey, c,
		"rank", rank,
	)
	return nil
}

// Predict returns X·w + b.
func (lr *LinearRegression) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "LinearRegression.Predict")
	if err := checkFitted(&lr.BaseEstimator, "LinearRegression", "Predict", X, lr.NFeatures); err != nil {
		return nil, err
	}
	return linearScores(X, lr.Coef, lr.Intercept), nil
}

// FeatureImportances returns normalised absolute coefficients.
func (lr *LinearRegression) FeatureImportances() []float64 {
	return absImportances(lr.Coef)
}

// GetParams returns the hyperparameters
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         lr.Alpha,
		"fit_intercept": lr.FitIntercept,
	}
}

// SetParams sets the hyperparameters
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "alpha":
			alpha, err := model.FloatParam(key, value)
			if err != nil {
				return errors.NewValidationError(key, err.Error(), value)
			}
			lr.Alpha = alpha
		case "fit_intercept":
			b, ok := value.(bool)
			if !ok {
				return errors.NewValidationError(key, "must be a bool", value)
			}
			lr.FitIntercept = b
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}

func (lr *LinearRegression) String() string {
	return fmt.Sprintf("LinearRegression(alpha=%g)", lr.Alpha)
}
