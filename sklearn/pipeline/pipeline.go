// Package pipeline implements a scikit-learn style Pipeline over frames: frame
// stages, then an encoder that produces the design matrix, then matrix stages and
// an optional final estimator.
package pipeline

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/core/model"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/pkg/log"
)

func init() {
	model.Register(&Pipeline{})
}

// Step represents a single step in the pipeline.
type Step struct {
	Name      string      // Name of this step (for identification)
	Estimator interface{} // FrameTransformer, FrameEncoder, Transformer or estimator
}

// Pipeline chains steps. Every step but the last must transform; the last may be
// a transformer, an encoder or an estimator. Data starts as a frame and becomes a
// matrix at the first FrameEncoder (a nested fitted Pipeline ending in an encoder
// counts as one).
type Pipeline struct {
	// State management using composition. Public for gob encoding.
	State *model.StateManager
	// Stages holds the steps. Public for gob encoding.
	Stages []Step

	logger log.Logger
}

// New creates a new Pipeline with the given steps.
func New(steps ...Step) *Pipeline {
	return &Pipeline{
		State:  model.NewStateManager(),
		Stages: steps,
	}
}

// Make is a convenience function similar to sklearn.pipeline.make_pipeline.
func Make(estimators ...interface{}) *Pipeline {
	steps := make([]Step, len(estimators))
	for i, estimator := range estimators {
		steps[i] = Step{Name: fmt.Sprintf("step%d", i+1), Estimator: estimator}
	}
	return New(steps...)
}

func (p *Pipeline) getLogger() log.Logger {
	if p.logger == nil {
		p.logger = log.GetLoggerWithName("Pipeline")
	}
	return p.logger
}

// data is the value flowing between steps: a frame until an encoder runs, a matrix after.
type data struct {
	frame  *frame.Frame
	matrix mat.Matrix
}

func (d data) columns() int {
	if d.matrix != nil {
		_, c := d.matrix.Dims()
		return c
	}
	return d.frame.NCols()
}

func (p *Pipeline) fitStep(step Step, d data, y []float64) error {
	switch est := step.Estimator.(type) {
	case model.FrameTransformer:
		if d.frame == nil {
			return errors.NewValidationError("pipeline step", "frame transformer after encoding", step.Name)
		}
		return est.Fit(d.frame, y)
	case model.FrameEncoder:
		if d.frame == nil {
			return errors.NewValidationError("pipeline step", "encoder after encoding", step.Name)
		}
		return est.Fit(d.frame, y)
	case model.Transformer:
		if d.matrix == nil {
			return errors.NewValidationError("pipeline step", "matrix transformer before encoding", step.Name)
		}
		return est.Fit(d.matrix)
	case model.Fitter:
		if d.matrix == nil {
			return errors.NewValidationError("pipeline step", "estimator before encoding", step.Name)
		}
		if y == nil {
			return errors.NewValidationError("pipeline step", "estimator requires a target", step.Name)
		}
		return est.Fit(d.matrix, mat.NewVecDense(len(y), y))
	}
	return errors.NewValidationError("pipeline step", "unsupported step type", step.Name)
}

func transformStep(step Step, d data) (data, error) {
	switch est := step.Estimator.(type) {
	case model.FrameTransformer:
		if d.frame == nil {
			return d, errors.NewValidationError("pipeline step", "frame transformer after encoding", step.Name)
		}
		f, err := est.Transform(d.frame)
		return data{frame: f}, err
	case model.FrameEncoder:
		if d.frame == nil {
			return d, errors.NewValidationError("pipeline step", "encoder after encoding", step.Name)
		}
		m, err := est.Transform(d.frame)
		return data{matrix: m}, err
	case model.Transformer:
		if d.matrix == nil {
			return d, errors.NewValidationError("pipeline step", "matrix transformer before encoding", step.Name)
		}
		m, err := est.Transform(d.matrix)
		return data{matrix: m}, err
	}
	return d, errors.NewValidationError("pipeline step", "intermediate steps must be transformers", step.Name)
}

// Fit fits all the transformers one after the other, transforming the data as it
// goes, then fits the final step.
func (p *Pipeline) Fit(X *frame.Frame, y []float64) (err error) {
	defer errors.Recover(&err, "Pipeline.Fit")
	if len(p.Stages) == 0 {
		return errors.New("pipeline has no steps")
	}

	d := data{frame: X}
	for i, step := range p.Stages {
		if err := p.fitStep(step, d, y); err != nil {
			return errors.Wrap(err, fmt.Sprintf("failed to fit step '%s'", step.Name))
		}
		if i == len(p.Stages)-1 {
			break
		}
		if d, err = transformStep(step, d); err != nil {
			return errors.Wrap(err, fmt.Sprintf("failed to transform at step '%s'", step.Name))
		}
		p.getLogger().Debug("pipeline step fitted",
			log.OperationKey, log.OperationFit,
			"step", step.Name,
			log.FeaturesKey, d.columns(),
		)
	}

	p.State.SetDimensions(X.NCols(), X.NRows())
	p.State.SetFitted()
	return nil
}

// transform applies every step except the final one and requires the result to be
// a matrix.
func (p *Pipeline) transform(X *frame.Frame, op string) (mat.Matrix, error) {
	if !p.State.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", op)
	}
	d := data{frame: X}
	var err error
	for _, step := range p.Stages[:len(p.Stages)-1] {
		if d, err = transformStep(step, d); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("failed to transform at step '%s'", step.Name))
		}
	}
	if d.matrix == nil {
		return nil, errors.NewValidationError("pipeline", "no step produces a matrix", op)
	}
	return d.matrix, nil
}

// Transform applies every step, including the last, which must produce a matrix.
func (p *Pipeline) Transform(X *frame.Frame) (_ *mat.Dense, err error) {
	defer errors.Recover(&err, "Pipeline.Transform")
	if !p.State.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Transform")
	}
	d := data{frame: X}
	for _, step := range p.Stages {
		if d, err = transformStep(step, d); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("failed to transform at step '%s'", step.Name))
		}
	}
	if d.matrix == nil {
		return nil, errors.NewValidationError("pipeline", "no step produces a matrix", "Transform")
	}
	return mat.DenseCopyOf(d.matrix), nil
}

// FeatureNamesOut returns the output names of the last encoder or transformer
// that exposes them.
func (p *Pipeline) FeatureNamesOut() []string {
	for i := len(p.Stages) - 1; i >= 0; i-- {
		if named, ok := p.Stages[i].Estimator.(interface{ FeatureNamesOut() []string }); ok {
			return named.FeatureNamesOut()
		}
	}
	return nil
}

// Predict applies transforms to the data, and predicts with the final estimator.
func (p *Pipeline) Predict(X *frame.Frame) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "Pipeline.Predict")
	Xt, err := p.transform(X, "Predict")
	if err != nil {
		return nil, err
	}
	if predictor, ok := p.Final().(model.Predictor); ok {
		return predictor.Predict(Xt)
	}
	return nil, errors.NewValidationError("pipeline final step", "final step must have Predict method", p.finalName())
}

// PredictProba applies transforms to the data, and predict_proba with the final estimator.
func (p *Pipeline) PredictProba(X *frame.Frame) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "Pipeline.PredictProba")
	Xt, err := p.transform(X, "PredictProba")
	if err != nil {
		return nil, err
	}
	if predictor, ok := p.Final().(model.ProbabilisticClassifier); ok {
		return predictor.PredictProba(Xt)
	}
	return nil, errors.NewValidationError("pipeline final step", "final step must have PredictProba method", p.finalName())
}

// DecisionFunction applies transforms to the data, and decision_function with the
// final estimator.
func (p *Pipeline) DecisionFunction(X *frame.Frame) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "Pipeline.DecisionFunction")
	Xt, err := p.transform(X, "DecisionFunction")
	if err != nil {
		return nil, err
	}
	if scorer, ok := p.Final().(model.DecisionScorer); ok {
		return scorer.DecisionFunction(Xt)
	}
	return nil, errors.NewValidationError("pipeline final step", "final step must have DecisionFunction method", p.finalName())
}

// Capabilities reports what the final estimator can output.
func (p *Pipeline) Capabilities() model.Capability {
	if len(p.Stages) == 0 {
		return 0
	}
	return model.CapabilitiesOf(p.Final())
}

// Final returns the final step's estimator, or nil for an empty pipeline.
func (p *Pipeline) Final() interface{} {
	if len(p.Stages) == 0 {
		return nil
	}
	return p.Stages[len(p.Stages)-1].Estimator
}

func (p *Pipeline) finalName() string {
	if len(p.Stages) == 0 {
		return ""
	}
	return p.Stages[len(p.Stages)-1].Name
}

// Components returns every step's estimator.
func (p *Pipeline) Components() []any {
	out := make([]any, len(p.Stages))
	for i, s := range p.Stages {
		out[i] = s.Estimator
	}
	return out
}

// IsFitted reports whether Fit completed.
func (p *Pipeline) IsFitted() bool {
	return p.State != nil && p.State.IsFitted()
}

// GetParams returns the parameters of every step, prefixed "<step>__".
func (p *Pipeline) GetParams() map[string]interface{} {
	params := make(map[string]interface{})
	for _, step := range p.Stages {
		if getter, ok := step.Estimator.(model.ParamSetter); ok {
			for key, value := range getter.GetParams() {
				params[fmt.Sprintf("%s__%s", step.Name, key)] = value
			}
		}
	}
	return params
}

// SetParams routes "<step>__<param>" keys to the named step.
func (p *Pipeline) SetParams(params map[string]interface{}) error {
	perStep := make(map[string]map[string]interface{})
	for key, value := range params {
		name, param, found := strings.Cut(key, "__")
		if !found || name == "" || param == "" {
			return errors.NewValidationError("params", "expected <step>__<param>", key)
		}
		if perStep[name] == nil {
			perStep[name] = make(map[string]interface{})
		}
		perStep[name][param] = value
	}
	for name, stepParams := range perStep {
		est := p.NamedSteps()[name]
		if est == nil {
			return errors.NewValidationError("params", "unknown step", name)
		}
		setter, ok := est.(model.ParamSetter)
		if !ok {
			return errors.NewValidationError("params", "step does not accept parameters", name)
		}
		if err := setter.SetParams(stepParams); err != nil {
			return errors.Wrap(err, fmt.Sprintf("failed to set params on step '%s'", name))
		}
	}
	return nil
}

// NamedSteps returns the steps as a map for easy access by name.
func (p *Pipeline) NamedSteps() map[string]interface{} {
	named := make(map[string]interface{}, len(p.Stages))
	for _, s := range p.Stages {
		named[s.Name] = s.Estimator
	}
	return named
}

// Steps returns a copy of the list of steps.
func (p *Pipeline) Steps() []Step {
	steps := make([]Step, len(p.Stages))
	copy(steps, p.Stages)
	return steps
}
