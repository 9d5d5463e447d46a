package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	medErrors "github.com/ezoic/medscore/pkg/errors"
)

func vec(v ...float64) *mat.VecDense { return mat.NewVecDense(len(v), v) }

func silenceWarnings(t *testing.T) *[]error {
	var got []error
	medErrors.SetWarningHandler(func(w error) { got = append(got, w) })
	medErrors.SetZerologWarnFunc(nil)
	t.Cleanup(func() { medErrors.SetWarningHandler(func(error) {}) })
	return &got
}

func TestAUC(t *testing.T) {
	tests := []struct {
		name  string
		yTrue *mat.VecDense
		score *mat.VecDense
		want  float64
	}{
		{"perfect", vec(0, 0, 1, 1), vec(0.1, 0.2, 0.8, 0.9), 1.0},
		{"inverted", vec(0, 0, 1, 1), vec(0.9, 0.8, 0.2, 0.1), 0.0},
		{"all tied", vec(0, 1, 0, 1), vec(0.5, 0.5, 0.5, 0.5), 0.5},
		{"one misordered pair", vec(0, 0, 1, 1), vec(0.1, 0.4, 0.35, 0.8), 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AUC(tt.yTrue, tt.score)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestAUCSingleClassWarns(t *testing.T) {
	warnings := silenceWarnings(t)
	got, err := AUC(vec(1, 1, 1), vec(0.2, 0.4, 0.9))
	require.NoError(t, err)
	assert.Equal(t, 0.5, got)
	require.Len(t, *warnings, 1)
	var w *medErrors.UndefinedMetricWarning
	assert.ErrorAs(t, (*warnings)[0], &w)
}

func TestAUCRejectsNonBinary(t *testing.T) {
	_, err := AUC(vec(0, 2), vec(0.1, 0.2))
	assert.Error(t, err)
	_, err = AUC(vec(0, 1), vec(0.1))
	assert.Error(t, err)
}

func TestClassificationReport(t *testing.T) {
	yTrue := vec(0, 0, 0, 1, 1)
	yPred := vec(0, 0, 1, 1, 0)
	r, err := ClassificationReport(yTrue, yPred)
	require.NoError(t, err)

	require.Contains(t, r.Classes, "0")
	require.Contains(t, r.Classes, "1")
	assert.InDelta(t, 2.0/3.0, r.Classes["0"].Precision, 1e-12)
	assert.InDelta(t, 0.5, r.Classes["1"].Recall, 1e-12)
	assert.Equal(t, 3, r.Classes["0"].Support)
	assert.InDelta(t, 0.6, r.Accuracy, 1e-12)
	assert.Equal(t, 5, r.WeightedAvg.Support)
}

func TestPrecisionRecallF1NoPredictedPositives(t *testing.T) {
	s, err := PrecisionRecallF1(vec(1, 0, 1), vec(0, 0, 0), 1)
	require.NoError(t, err)
	assert.Zero(t, s.Precision)
	assert.Zero(t, s.F1)
	assert.Equal(t, 2, s.Support)
}

func TestBestF1ThresholdInGrid(t *testing.T) {
	grid := ThresholdGrid()
	require.Len(t, grid, 17)
	assert.InDelta(t, 0.1, grid[0], 1e-12)
	assert.InDelta(t, 0.9, grid[16], 1e-12)

	th, f1, err := BestF1Threshold(vec(0, 0, 0, 1), vec(0.05, 0.05, 0.05, 0.05))
	require.NoError(t, err)
	assert.InDelta(t, 0.1, th, 1e-12, "ties keep the lowest cutoff")
	assert.Zero(t, f1)
}

func TestRegressionMetrics(t *testing.T) {
	yTrue := vec(3, -0.5, 2, 7)
	yPred := vec(2.5, 0.0, 2, 8)

	mae, err := MAE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, mae, 1e-12)

	mse, err := MSE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.375, mse, 1e-12)

	r2, err := R2Score(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.948608, r2, 1e-6)

	evs, err := ExplainedVarianceScore(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.957173, evs, 1e-6)
}

func TestR2ConstantTarget(t *testing.T) {
	silenceWarnings(t)
	r2, err := R2Score(vec(2, 2, 2), vec(2, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, 1.0, r2)

	r2, err = R2Score(vec(2, 2, 2), vec(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, 0.0, r2)
}

func TestPointBiserial(t *testing.T) {
	y := []float64{0, 0, 1, 1, math.NaN()}
	x := []float64{1, 2, 10, 11, 5}
	r, ok := PointBiserial(x, y)
	require.True(t, ok)
	assert.Greater(t, r, 0.98)

	_, ok = PointBiserial([]float64{4, 4, 4, 4}, []float64{0, 1, 0, 1})
	assert.False(t, ok, "constant column has no correlation")

	_, ok = PointBiserial([]float64{1, 2}, []float64{0, 1})
	assert.False(t, ok, "too few rows")
}

func TestMutualInformation(t *testing.T) {
	a := []int{0, 0, 1, 1, 0, 1}
	mi := MutualInformation(a, a)
	assert.InDelta(t, math.Log(2), mi, 1e-12)

	indep := MutualInformation([]int{0, 1, 0, 1}, []int{0, 0, 1, 1})
	assert.InDelta(t, 0, indep, 1e-12)

	assert.Zero(t, MutualInformation([]int{-1, -1}, []int{0, 1}))
}
