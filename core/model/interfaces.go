package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/core/frame"
)

// Fitter is implemented by supervised estimators.
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Transformer is a matrix-to-matrix stage fitted without a target.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
}

// FrameTransformer is a frame-to-frame stage. y may be nil when no target is known.
type FrameTransformer interface {
	Fit(X *frame.Frame, y []float64) error
	Transform(X *frame.Frame) (*frame.Frame, error)
}

// FrameEncoder turns a frame into a numeric design matrix.
type FrameEncoder interface {
	Fit(X *frame.Frame, y []float64) error
	Transform(X *frame.Frame) (*mat.Dense, error)
	FeatureNamesOut() []string
}

// Predictor produces point predictions: class labels or regression values.
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ProbabilisticClassifier produces class-membership probabilities, one column per
// class in ascending label order.
type ProbabilisticClassifier interface {
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// DecisionScorer produces an unbounded confidence score per row. Positive scores
// favour the positive class.
type DecisionScorer interface {
	DecisionFunction(X mat.Matrix) (mat.Matrix, error)
}

// Classifier combines the interfaces of a probabilistic classifier.
type Classifier interface {
	Fitter
	Predictor
	ProbabilisticClassifier
}

// Regressor combines the interfaces of a regressor.
type Regressor interface {
	Fitter
	Predictor
}

// FeatureImportancer exposes impurity or coefficient based importances, one per
// input feature.
type FeatureImportancer interface {
	FeatureImportances() []float64
}

// ParamSetter accepts hyperparameters by sklearn-style name.
type ParamSetter interface {
	GetParams() map[string]interface{}
	SetParams(params map[string]interface{}) error
}

// Composite is implemented by components that own other components: pipelines,
// ensembles, search wrappers. The schema reconciler walks it recursively.
type Composite interface {
	Components() []any
}

// ColumnRouter is implemented by stages that route named input columns to
// transformers. FeatureNamesIn is the exact list recorded at fit time (nil before
// fit); DeclaredColumns reconstructs the list from the stage's selectors.
type ColumnRouter interface {
	FeatureNamesIn() []string
	DeclaredColumns() []string
}

// Capability is a bit set describing what an estimator can output.
type Capability uint8

const (
	// CanPredictProba marks ProbabilisticClassifier.
	CanPredictProba Capability = 1 << iota
	// CanDecisionFunction marks DecisionScorer.
	CanDecisionFunction
	// CanPredict marks Predictor.
	CanPredict
)

// Has reports whether c includes all bits of other.
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

func (c Capability) String() string {
	var s string
	add := func(name string) {
		if s != "" {
			s += "|"
		}
		s += name
	}
	if c.Has(CanPredictProba) {
		add("predict_proba")
	}
	if c.Has(CanDecisionFunction) {
		add("decision_function")
	}
	if c.Has(CanPredict) {
		add("predict")
	}
	if s == "" {
		return "none"
	}
	return s
}

// CapabilityReporter is implemented by wrappers whose method set does not reflect
// what their wrapped estimator can do.
type CapabilityReporter interface {
	Capabilities() Capability
}

// CapabilitiesOf reports what est can output. Wrappers are asked directly; other
// values are probed by interface assertion.
func CapabilitiesOf(est any) Capability {
	if r, ok := est.(CapabilityReporter); ok {
		return r.Capabilities()
	}
	var c Capability
	if _, ok := est.(ProbabilisticClassifier); ok {
		c |= CanPredictProba
	}
	if _, ok := est.(DecisionScorer); ok {
		c |= CanDecisionFunction
	}
	if _, ok := est.(Predictor); ok {
		c |= CanPredict
	}
	return c
}
