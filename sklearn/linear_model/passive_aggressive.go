package linear_model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/core/model"
	"github.com/ezoic/medscore/pkg/errors"
)

// nIterNoChange is the number of epochs without hinge-loss improvement after
// which training stops.
const nIterNoChange = 5

// PassiveAggressiveClassifier is a binary online margin classifier using PA-I
// hinge updates. It exposes decision scores but no probabilities.
type PassiveAggressiveClassifier struct {
	model.BaseEstimator

	C            float64 // maximum step size
	FitIntercept bool
	MaxIter      int     // epochs
	Tol          float64 // per-sample loss improvement required to keep going
	Shuffle      bool
	RandomState  int64 // negative = random

	Coef      []float64
	Intercept float64
	Classes   []float64
	NFeatures int
	NIter     int
}

// PassiveAggressiveOption is a functional option for PassiveAggressiveClassifier
type PassiveAggressiveOption func(*PassiveAggressiveClassifier)

// WithPAC sets the aggressiveness parameter C
func WithPAC(c float64) PassiveAggressiveOption {
	return func(pa *PassiveAggressiveClassifier) { pa.C = c }
}

// WithPAMaxIter sets the maximum number of epochs
func WithPAMaxIter(n int) PassiveAggressiveOption {
	return func(pa *PassiveAggressiveClassifier) { pa.MaxIter = n }
}

// WithPARandomState sets the shuffling seed
func WithPARandomState(seed int64) PassiveAggressiveOption {
	return func(pa *PassiveAggressiveClassifier) { pa.RandomState = seed }
}

// NewPassiveAggressiveClassifier creates a classifier with C=1 and shuffling on.
func NewPassiveAggressiveClassifier(opts ...PassiveAggressiveOption) *PassiveAggressiveClassifier {
	pa := &PassiveAggressiveClassifier{
		C:            1.0,
		FitIntercept: true,
		MaxIter:      1000,
		Tol:          1e-3,
		Shuffle:      true,
		RandomState:  -1,
	}
	for _, opt := range opts {
		opt(pa)
	}
	return pa
}

// Fit runs epochs over the data until the summed hinge loss stops improving
// by more than Tol per sample for five consecutive epochs.
func (pa *PassiveAggressiveClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "PassiveAggressiveClassifier.Fit")
	if pa.C <= 0 {
		return errors.NewValidationError("C", "must be positive", pa.C)
	}
	Xd, target, err := checkXY("PassiveAggressiveClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	classes, coded, err := binaryClasses("PassiveAggressiveClassifier.Fit", target)
	if err != nil {
		return err
	}
	nSamples, nFeatures := Xd.Dims()

	rows := make([][]float64, nSamples)
	sqNorms := make([]float64, nSamples)
	signs := make([]float64, nSamples)
	for i := range rows {
		rows[i] = Xd.RawRowView(i)
		sqNorms[i] = floats.Dot(rows[i], rows[i])
		signs[i] = 2*coded[i] - 1
	}

	rng := rand.New(rand.NewSource(resolveSeed(pa.RandomState)))
	order := allRows(nSamples)
	coef := make([]float64, nFeatures)
	intercept := 0.0
	bestLoss := math.Inf(1)
	noImprovement := 0
	epoch := 0
	for epoch < pa.MaxIter {
		epoch++
		if pa.Shuffle {
			rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })
		}
		sumLoss := 0.0
		for _, i := range order {
			margin := signs[i] * (floats.Dot(coef, rows[i]) + intercept)
			loss := 1 - margin
			if loss <= 0 {
				continue
			}
			sumLoss += loss
			norm := sqNorms[i]
			if pa.FitIntercept {
				norm++
			}
			if norm == 0 {
				continue
			}
			tau := math.Min(pa.C, loss/norm) * signs[i]
			floats.AddScaled(coef, tau, rows[i])
			if pa.FitIntercept {
				intercept += tau
			}
		}
		if sumLoss > bestLoss-pa.Tol*float64(nSamples) {
			noImprovement++
		} else {
			noImprovement = 0
		}
		bestLoss = math.Min(bestLoss, sumLoss)
		if noImprovement >= nIterNoChange {
			break
		}
	}
	if noImprovement < nIterNoChange {
		errors.Warn(errors.NewConvergenceWarning("PassiveAggressiveClassifier", epoch,
			"maximum number of iterations reached"))
	}

	pa.Coef = coef
	pa.Intercept = intercept
	pa.Classes = classes
	pa.NFeatures = nFeatures
	pa.NIter = epoch
	pa.SetFitted()
	return nil
}

// DecisionFunction returns the signed margin of every row.
func (pa *PassiveAggressiveClassifier) DecisionFunction(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "PassiveAggressiveClassifier.DecisionFunction")
	if err := checkFitted(&pa.BaseEstimator, "PassiveAggressiveClassifier", "DecisionFunction", X, pa.NFeatures); err != nil {
		return nil, err
	}
	return linearScores(X, pa.Coef, pa.Intercept), nil
}

// Predict returns the positive label where the margin is positive.
func (pa *PassiveAggressiveClassifier) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "PassiveAggressiveClassifier.Predict")
	if err := checkFitted(&pa.BaseEstimator, "PassiveAggressiveClassifier", "Predict", X, pa.NFeatures); err != nil {
		return nil, err
	}
	scores := linearScores(X, pa.Coef, pa.Intercept)
	for i := 0; i < scores.Len(); i++ {
		label := pa.Classes[0]
		if scores.AtVec(i) > 0 {
			label = pa.Classes[1]
		}
		scores.SetVec(i, label)
	}
	return scores, nil
}

// FeatureImportances returns normalised absolute coefficients.
func (pa *PassiveAggressiveClassifier) FeatureImportances() []float64 {
	return absImportances(pa.Coef)
}

// GetParams returns the hyperparameters
func (pa *PassiveAggressiveClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":            pa.C,
		"max_iter":     pa.MaxIter,
		"tol":          pa.Tol,
		"random_state": pa.RandomState,
	}
}

// SetParams sets the hyperparameters
func (pa *PassiveAggressiveClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "C":
			pa.C, err = model.FloatParam(key, value)
		case "max_iter":
			pa.MaxIter, err = model.IntParam(key, value)
		case "tol":
			pa.Tol, err = model.FloatParam(key, value)
		case "random_state":
			var seed int
			seed, err = model.IntParam(key, value)
			pa.RandomState = int64(seed)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if err != nil {
			return errors.NewValidationError(key, err.Error(), value)
		}
	}
	return nil
}

func (pa *PassiveAggressiveClassifier) String() string {
	return fmt.Sprintf("PassiveAggressiveClassifier(C=%g)", pa.C)
}
