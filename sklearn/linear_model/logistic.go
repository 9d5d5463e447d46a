package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/ezoic/medscore/core/model"
	"github.com/ezoic/medscore/pkg/errors"
)

const epsilonSmall = 1e-15

// LogisticRegression is a binary logistic regression classifier with an L2
// penalty, fitted by minimising the mean log-loss plus ||w||²/(2C) with L-BFGS.
// The intercept is not penalised.
type LogisticRegression struct {
	model.BaseEstimator

	C            float64 // inverse regularisation strength
	FitIntercept bool
	MaxIter      int
	Tol          float64 // gradient norm threshold

	Coef      []float64
	Intercept float64
	Classes   []float64 // [negative, positive]
	NFeatures int
	NIter     int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// WithC sets the inverse regularisation strength
func WithC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithLRMaxIter sets the maximum number of L-BFGS iterations
func WithLRMaxIter(n int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.MaxIter = n }
}

// WithLRTol sets the gradient tolerance
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.Tol = tol }
}

// WithFitIntercept sets whether an intercept is learned
func WithFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.FitIntercept = fit }
}

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		C:            1.0,
		FitIntercept: true,
		MaxIter:      100,
		Tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// stableSigmoid computes sigmoid(z) without overflowing for large |z|.
func stableSigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	ez := math.Exp(z)
	return ez / (1.0 + ez)
}

func clampProbability(p float64) float64 {
	return math.Min(math.Max(p, epsilonSmall), 1-epsilonSmall)
}

// Fit learns the coefficients. y must hold exactly two distinct labels; the
// larger one is the positive class.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LogisticRegression.Fit")
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	Xd, target, err := checkXY("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	classes, yBinary, err := binaryClasses("LogisticRegression.Fit", target)
	if err != nil {
		return err
	}

	nSamples, nFeatures := Xd.Dims()
	lambda := 1.0 / lr.C
	invN := 1.0 / float64(nSamples)
	dim := nFeatures
	if lr.FitIntercept {
		dim++
	}

	// margins fills z = Xw + b for theta = [w..., b].
	z := mat.NewVecDense(nSamples, nil)
	margins := func(theta []float64) {
		z.MulVec(Xd, mat.NewVecDense(nFeatures, theta[:nFeatures]))
		if lr.FitIntercept {
			b := theta[nFeatures]
			for i := 0; i < nSamples; i++ {
				z.SetVec(i, z.AtVec(i)+b)
			}
		}
	}

	problem := optimize.Problem{
		Func: func(theta []float64) float64 {
			margins(theta)
			loss := 0.0
			for i := 0; i < nSamples; i++ {
				p := clampProbability(stableSigmoid(z.AtVec(i)))
				loss -= yBinary[i]*math.Log(p) + (1-yBinary[i])*math.Log(1-p)
			}
			reg := 0.0
			for _, w := range theta[:nFeatures] {
				reg += w * w
			}
			return loss*invN + 0.5*lambda*reg
		},
		Grad: func(grad, theta []float64) {
			margins(theta)
			diff := mat.NewVecDense(nSamples, nil)
			for i := 0; i < nSamples; i++ {
				diff.SetVec(i, (stableSigmoid(z.AtVec(i))-yBinary[i])*invN)
			}
			g := mat.NewVecDense(nFeatures, grad[:nFeatures])
			g.MulVec(Xd.T(), diff)
			for j := 0; j < nFeatures; j++ {
				grad[j] += lambda * theta[j]
			}
			if lr.FitIntercept {
				grad[nFeatures] = mat.Sum(diff)
			}
		},
	}

	settings := &optimize.Settings{
		GradientThreshold: lr.Tol,
		MajorIterations:   lr.MaxIter,
	}
	result, err := optimize.Minimize(problem, make([]float64, dim), settings, &optimize.LBFGS{})
	if err != nil && result == nil {
		return errors.Wrap(err, "lbfgs optimization failed")
	}
	if result.Status == optimize.IterationLimit {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", result.Stats.MajorIterations,
			"lbfgs reached the iteration limit; increase MaxIter"))
	}

	lr.Coef = append([]float64(nil), result.X[:nFeatures]...)
	lr.Intercept = 0
	if lr.FitIntercept {
		lr.Intercept = result.X[nFeatures]
	}
	lr.Classes = classes
	lr.NFeatures = nFeatures
	lr.NIter = result.Stats.MajorIterations
	lr.SetFitted()
	return nil
}

// DecisionFunction returns the signed distance X·w + b of every row.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "LogisticRegression.DecisionFunction")
	if err := checkFitted(&lr.BaseEstimator, "LogisticRegression", "DecisionFunction", X, lr.NFeatures); err != nil {
		return nil, err
	}
	return linearScores(X, lr.Coef, lr.Intercept), nil
}

// PredictProba returns [P(negative), P(positive)] per row.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "LogisticRegression.PredictProba")
	if err := checkFitted(&lr.BaseEstimator, "LogisticRegression", "PredictProba", X, lr.NFeatures); err != nil {
		return nil, err
	}
	scores := linearScores(X, lr.Coef, lr.Intercept)
	n := scores.Len()
	proba := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		p := stableSigmoid(scores.AtVec(i))
		proba.Set(i, 0, 1-p)
		proba.Set(i, 1, p)
	}
	return proba, nil
}

// Predict returns the positive label where the decision value is positive.
func (lr *LogisticRegression) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "LogisticRegression.Predict")
	if err := checkFitted(&lr.BaseEstimator, "LogisticRegression", "Predict", X, lr.NFeatures); err != nil {
		return nil, err
	}
	scores := linearScores(X, lr.Coef, lr.Intercept)
	for i := 0; i < scores.Len(); i++ {
		label := lr.Classes[0]
		if scores.AtVec(i) > 0 {
			label = lr.Classes[1]
		}
		scores.SetVec(i, label)
	}
	return scores, nil
}

// FeatureImportances returns normalised absolute coefficients.
func (lr *LogisticRegression) FeatureImportances() []float64 {
	return absImportances(lr.Coef)
}

// GetParams returns the hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":             lr.C,
		"fit_intercept": lr.FitIntercept,
		"max_iter":      lr.MaxIter,
		"tol":           lr.Tol,
	}
}

// SetParams sets the hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "C":
			lr.C, err = model.FloatParam(key, value)
		case "max_iter":
			lr.MaxIter, err = model.IntParam(key, value)
		case "tol":
			lr.Tol, err = model.FloatParam(key, value)
		case "fit_intercept":
			fit, ok := value.(bool)
			if !ok {
				err = fmt.Errorf("parameter %s: expected bool, got %T", key, value)
			}
			lr.FitIntercept = fit
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if err != nil {
			return errors.NewValidationError(key, err.Error(), value)
		}
	}
	return nil
}

func (lr *LogisticRegression) String() string {
	return fmt.Sprintf("LogisticRegression(C=%g, max_iter=%d)", lr.C, lr.MaxIter)
}
