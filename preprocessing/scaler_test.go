package preprocessing_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/preprocessing"
)

const epsilon = 1e-10

func TestStandardScaler_BasicFunctionality(t *testing.T) {
	// Feature 1: [1, 2, 3] -> mean=2, std=0.816
	// Feature 2: [4, 5, 6] -> mean=5, std=0.816
	X := mat.NewDense(3, 2, []float64{
		1.0, 4.0,
		2.0, 5.0,
		3.0, 6.0,
	})

	scaler := preprocessing.NewStandardScalerDefault()
	require.NoError(t, scaler.Fit(X))

	assert.InDeltaSlice(t, []float64{2.0, 5.0}, scaler.Mean, epsilon)
	assert.InDeltaSlice(t, []float64{0.816496580927726, 0.816496580927726}, scaler.Scale, epsilon)

	XScaled, err := scaler.Transform(X)
	require.NoError(t, err)
	assert.InDelta(t, -1.224744871391589, XScaled.At(0, 0), 1e-9)
	assert.InDelta(t, 0.0, XScaled.At(1, 1), epsilon)

	back, err := scaler.InverseTransform(XScaled)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-9))
}

func TestStandardScaler_WithMeanFalseIgnoresNaN(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{2, math.NaN(), 4, 6})
	scaler := preprocessing.NewStandardScaler(false, true)
	require.NoError(t, scaler.Fit(X))

	assert.Equal(t, 0.0, scaler.Mean[0])
	assert.InDelta(t, math.Sqrt(8.0/3.0), scaler.Scale[0], epsilon)

	out, err := scaler.Transform(X)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(out.At(1, 0)), "missing values pass through")
	assert.InDelta(t, 2/math.Sqrt(8.0/3.0), out.At(0, 0), epsilon)
}

func TestStandardScaler_ConstantFeature(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{5, 5, 5})
	scaler := preprocessing.NewStandardScalerDefault()
	out, err := scaler.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, 1.0, scaler.Scale[0])
	assert.Equal(t, 0.0, out.At(2, 0))
}

func TestStandardScaler_ErrorCases(t *testing.T) {
	scaler := preprocessing.NewStandardScalerDefault()
	_, err := scaler.Transform(mat.NewDense(1, 1, []float64{1}))
	assert.Error(t, err, "transform before fit")

	require.NoError(t, scaler.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	_, err = scaler.Transform(mat.NewDense(1, 3, []float64{1, 2, 3}))
	assert.Error(t, err, "dimension mismatch")
}

func TestStandardScaler_String(t *testing.T) {
	scaler := preprocessing.NewStandardScaler(false, true)
	assert.Equal(t, "StandardScaler(with_mean=false, with_std=true)", scaler.String())
	assert.Equal(t, map[string]interface{}{"with_mean": false, "with_std": true}, scaler.GetParams())
}

func TestMinMaxScaler_CustomRange(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{10, 20, 30})
	scaler := preprocessing.NewMinMaxScaler([2]float64{-1, 1})
	out, err := scaler.FitTransform(X)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, out.At(0, 0), epsilon)
	assert.InDelta(t, 0.0, out.At(1, 0), epsilon)
	assert.InDelta(t, 1.0, out.At(2, 0), epsilon)
}

func TestProbabilityLike(t *testing.T) {
	got, err := preprocessing.ProbabilityLike([]float64{-2, 0, 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, got[0], 1e-6)
	assert.InDelta(t, 0.5, got[1], 1e-6)
	assert.InDelta(t, 1.0, got[2], 1e-6)

	constant, err := preprocessing.ProbabilityLike([]float64{3, 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, constant)
}
