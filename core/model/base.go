// Package model provides the core abstractions shared by every medscore component.
//
// It defines:
//
//   - BaseEstimator and StateManager: fitted-state tracking for estimators and
//     transformers, with exported fields so fitted components survive gob encoding
//   - Capability interfaces (ProbabilisticClassifier, DecisionScorer, Predictor) used
//     by the serving engine to dispatch without knowing concrete estimator types
//   - Structural interfaces (Composite, ColumnRouter) walked by the schema reconciler
//   - Model persistence helpers built on encoding/gob
//
// Example usage:
//
//	type MyModel struct {
//		model.BaseEstimator
//		// learned fields, exported for gob
//	}
//
//	func (m *MyModel) Fit(X, y mat.Matrix) error {
//		// training logic
//		m.SetFitted()
//		return nil
//	}
package model

// EstimatorState is the fitted state of a component.
type EstimatorState int

const (
	NotFitted EstimatorState = iota
	Fitted
)

// BaseEstimator is embedded by every estimator and frame transformer. Its
// state is exported so fitted components survive gob encoding.
type BaseEstimator struct {
	State EstimatorState
}

// IsFitted reports whether Fit completed.
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted marks the component as fitted; implementations call it last in Fit.
func (e *BaseEstimator) SetFitted() {
	e.State = Fitted
}

// Reset returns the component to the unfitted state.
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
}
