package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/medscore/core/model"
	"github.com/ezoic/medscore/pkg/errors"
)

// ElasticNet is linear regression with combined L1 and L2 penalties,
// minimising
//
//	1/(2n) ||y - Xw - b||² + alpha·l1_ratio·||w||₁ + alpha·(1-l1_ratio)/2·||w||²
//
// by cyclic coordinate descent on centred data.
type ElasticNet struct {
	model.BaseEstimator

	Alpha        float64
	L1Ratio      float64
	FitIntercept bool
	MaxIter      int
	Tol          float64

	Coef      []float64
	Intercept float64
	NFeatures int
	NIter     int
}

// ElasticNetOption is a functional option for ElasticNet
type ElasticNetOption func(*ElasticNet)

// WithAlpha sets the overall penalty strength
func WithAlpha(alpha float64) ElasticNetOption {
	return func(en *ElasticNet) { en.Alpha = alpha }
}

// WithL1Ratio sets the L1 share of the penalty
func WithL1Ratio(ratio float64) ElasticNetOption {
	return func(en *ElasticNet) { en.L1Ratio = ratio }
}

// WithENMaxIter sets the maximum number of coordinate descent sweeps
func WithENMaxIter(n int) ElasticNetOption {
	return func(en *ElasticNet) { en.MaxIter = n }
}

// NewElasticNet creates an ElasticNet regressor with alpha 1 and l1_ratio 0.5.
func NewElasticNet(opts ...ElasticNetOption) *ElasticNet {
	en := &ElasticNet{
		Alpha:        1.0,
		L1Ratio:      0.5,
		FitIntercept: true,
		MaxIter:      1000,
		Tol:          1e-4,
	}
	for _, opt := range opts {
		opt(en)
	}
	return en
}

func softThreshold(x, lambda float64) float64 {
	switch {
	case x > lambda:
		return x - lambda
	case x < -lambda:
		return x + lambda
	}
	return 0
}

// Fit runs coordinate descent until the largest coefficient change in a sweep
// falls below Tol times the largest coefficient.
func (en *ElasticNet) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "ElasticNet.Fit")
	if en.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", en.Alpha)
	}
	if en.L1Ratio < 0 || en.L1Ratio > 1 {
		return errors.NewValidationError("l1_ratio", "must be in [0, 1]", en.L1Ratio)
	}
	Xd, target, err := checkXY("ElasticNet.Fit", X, y)
	if err != nil {
		return err
	}
	nSamples, nFeatures := Xd.Dims()
	n := float64(nSamples)

	cols := make([][]float64, nFeatures)
	means := make([]float64, nFeatures)
	for j := range cols {
		cols[j] = mat.Col(nil, j, Xd)
		if en.FitIntercept {
			means[j] = stat.Mean(cols[j], nil)
			floats.AddConst(-means[j], cols[j])
		}
	}
	yMean := 0.0
	residual := append([]float64(nil), target...)
	if en.FitIntercept {
		yMean = stat.Mean(target, nil)
		floats.AddConst(-yMean, residual)
	}

	l1 := en.Alpha * en.L1Ratio
	l2 := en.Alpha * (1 - en.L1Ratio)
	sqNorms := make([]float64, nFeatures)
	for j, c := range cols {
		sqNorms[j] = floats.Dot(c, c) / n
	}

	coef := make([]float64, nFeatures)
	converged := false
	iter := 0
	for iter < en.MaxIter && !converged {
		iter++
		maxDelta, maxCoef := 0.0, 0.0
		for j, c := range cols {
			if sqNorms[j] == 0 {
				continue
			}
			old := coef[j]
			// rho = x_j · (r + x_j w_j) / n
			rho := floats.Dot(c, residual)/n + sqNorms[j]*old
			coef[j] = softThreshold(rho, l1) / (sqNorms[j] + l2)
			if delta := coef[j] - old; delta != 0 {
				floats.AddScaled(residual, -delta, c)
				maxDelta = math.Max(maxDelta, math.Abs(delta))
			}
			maxCoef = math.Max(maxCoef, math.Abs(coef[j]))
		}
		converged = maxCoef == 0 || maxDelta <= en.Tol*maxCoef
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("ElasticNet", iter,
			"coordinate descent did not converge; increase MaxIter or alpha"))
	}

	en.Coef = coef
	en.Intercept = 0
	if en.FitIntercept {
		en.Intercept = yMean - floats.Dot(means, coef)
	}
	en.NFeatures = nFeatures
	en.NIter = iter
	en.SetFitted()
	return nil
}

// Predict returns X·w + b.
func (en *ElasticNet) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "ElasticNet.Predict")
	if err := checkFitted(&en.BaseEstimator, "ElasticNet", "Predict", X, en.NFeatures); err != nil {
		return nil, err
	}
	return linearScores(X, en.Coef, en.Intercept), nil
}

// FeatureImportances returns normalised absolute coefficients.
func (en *ElasticNet) FeatureImportances() []float64 {
	return absImportances(en.Coef)
}

// GetParams returns the hyperparameters
func (en *ElasticNet) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":    en.Alpha,
		"l1_ratio": en.L1Ratio,
		"max_iter": en.MaxIter,
		"tol":      en.Tol,
	}
}

// SetParams sets the hyperparameters
func (en *ElasticNet) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "alpha":
			en.Alpha, err = model.FloatParam(key, value)
		case "l1_ratio":
			en.L1Ratio, err = model.FloatParam(key, value)
		case "max_iter":
			en.MaxIter, err = model.IntParam(key, value)
		case "tol":
			en.Tol, err = model.FloatParam(key, value)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if err != nil {
			return errors.NewValidationError(key, err.Error(), value)
		}
	}
	return nil
}

func (en *ElasticNet) String() string {
	return fmt.Sprintf("ElasticNet(alpha=%g, l1_ratio=%g)", en.Alpha, en.L1Ratio)
}
