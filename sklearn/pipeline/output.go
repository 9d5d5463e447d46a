package pipeline

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/core/model"
	"github.com/ezoic/medscore/pkg/errors"
)

// OutputKind tells which estimator method produced an Output.
type OutputKind int

const (
	// OutputProba is the positive-class column of PredictProba.
	OutputProba OutputKind = iota + 1
	// OutputDecision is a DecisionFunction score; 0 is the decision boundary.
	OutputDecision
	// OutputValue is a Predict output: a regression value or a class label.
	OutputValue
)

func (k OutputKind) String() string {
	switch k {
	case OutputProba:
		return "proba"
	case OutputDecision:
		return "decision"
	case OutputValue:
		return "value"
	}
	return "unknown"
}

// Output is one value per input row and the method that produced it.
type Output struct {
	Kind   OutputKind
	Values []float64
}

// ContinuousOutput runs the richest method the final estimator supports:
// PredictProba (last column, the positive class), then DecisionFunction, then
// Predict. A final step with none of them yields an error.
func (p *Pipeline) ContinuousOutput(X *frame.Frame) (Output, error) {
	caps := p.Capabilities()
	var (
		m    mat.Matrix
		kind OutputKind
		err  error
	)
	switch {
	case caps.Has(model.CanPredictProba):
		m, err = p.PredictProba(X)
		kind = OutputProba
	case caps.Has(model.CanDecisionFunction):
		m, err = p.DecisionFunction(X)
		kind = OutputDecision
	case caps.Has(model.CanPredict):
		m, err = p.Predict(X)
		kind = OutputValue
	default:
		return Output{}, errors.NewValidationError("pipeline final step",
			"supports neither predict_proba, decision_function nor predict", p.finalName())
	}
	if err != nil {
		return Output{}, err
	}
	rows, cols := m.Dims()
	if kind == OutputProba && cols < 2 {
		return Output{}, errors.NewValueError("Pipeline.ContinuousOutput", "probabilities cover a single class")
	}
	values := make([]float64, rows)
	for i := range values {
		values[i] = m.At(i, cols-1)
	}
	return Output{Kind: kind, Values: values}, nil
}
