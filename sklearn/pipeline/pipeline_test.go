package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/core/model"
	"github.com/ezoic/medscore/preprocessing"
	"github.com/ezoic/medscore/sklearn/pipeline"
)

// meanRegressor predicts the training mean of y.
type meanRegressor struct {
	Mean  float64
	Shift float64
}

func (m *meanRegressor) Fit(_, y mat.Matrix) error {
	r, _ := y.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		sum += y.At(i, 0)
	}
	m.Mean = sum / float64(r)
	return nil
}

func (m *meanRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		out.SetVec(i, m.Mean+m.Shift)
	}
	return out, nil
}

func (m *meanRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{"shift": m.Shift}
}

func (m *meanRegressor) SetParams(params map[string]interface{}) error {
	if v, ok := params["shift"].(float64); ok {
		m.Shift = v
	}
	return nil
}

func labs() (*frame.Frame, []float64) {
	X := frame.MustFromSeries(
		frame.NewNumeric("glucose", []float64{90, 140, 110, 90, 200}),
		frame.NewCategorical("fasting", []string{"yes", "no", "yes", "no", "no"}, nil),
	)
	return X, []float64{1, 3, 2, 1, 3}
}

func TestPipeline_FitPredict(t *testing.T) {
	X, y := labs()
	reg := &meanRegressor{}
	p := pipeline.New(
		pipeline.Step{Name: "pre", Estimator: preprocessing.NewPreprocessor()},
		pipeline.Step{Name: "reg", Estimator: reg},
	)
	require.NoError(t, p.Fit(X, y))
	assert.True(t, p.IsFitted())
	assert.Equal(t, 2.0, reg.Mean)

	pred, err := p.Predict(X)
	require.NoError(t, err)
	r, _ := pred.Dims()
	assert.Equal(t, 5, r)
	assert.Equal(t, 2.0, pred.At(0, 0))

	assert.True(t, p.Capabilities().Has(model.CanPredict))
	assert.False(t, p.Capabilities().Has(model.CanPredictProba))

	_, err = p.PredictProba(X)
	assert.Error(t, err)
	_, err = p.DecisionFunction(X)
	assert.Error(t, err)
}

func TestPipeline_TransformEndsInEncoder(t *testing.T) {
	X, y := labs()
	p := pipeline.Make(preprocessing.NewPreprocessor())
	require.NoError(t, p.Fit(X, y))

	out, err := p.Transform(X)
	require.NoError(t, err)
	_, c := out.Dims()
	assert.Equal(t, len(p.FeatureNamesOut()), c)
	assert.Equal(t, "step1", p.Steps()[0].Name)
}

func TestPipeline_Errors(t *testing.T) {
	X, y := labs()

	empty := pipeline.New()
	assert.Error(t, empty.Fit(X, y))

	p := pipeline.New(
		pipeline.Step{Name: "pre", Estimator: preprocessing.NewPreprocessor()},
		pipeline.Step{Name: "reg", Estimator: &meanRegressor{}},
	)
	_, err := p.Predict(X)
	assert.Error(t, err, "not fitted")

	assert.Error(t, p.Fit(X, nil), "estimator without target")

	misordered := pipeline.New(
		pipeline.Step{Name: "scale", Estimator: preprocessing.NewStandardScalerDefault()},
		pipeline.Step{Name: "pre", Estimator: preprocessing.NewPreprocessor()},
	)
	assert.Error(t, misordered.Fit(X, y))
}

func TestPipeline_Params(t *testing.T) {
	reg := &meanRegressor{}
	p := pipeline.New(
		pipeline.Step{Name: "pre", Estimator: preprocessing.NewPreprocessor()},
		pipeline.Step{Name: "reg", Estimator: reg},
	)
	assert.Equal(t, map[string]interface{}{"reg__shift": 0.0}, p.GetParams())

	require.NoError(t, p.SetParams(map[string]interface{}{"reg__shift": 0.5}))
	assert.Equal(t, 0.5, reg.Shift)

	assert.Error(t, p.SetParams(map[string]interface{}{"shift": 1.0}))
	assert.Error(t, p.SetParams(map[string]interface{}{"missing__shift": 1.0}))
	assert.Error(t, p.SetParams(map[string]interface{}{"pre__x": 1.0}))

	assert.Same(t, reg, p.NamedSteps()["reg"])
	assert.Len(t, p.Components(), 2)
}
