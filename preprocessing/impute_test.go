package preprocessing_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/preprocessing"
)

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{0.25, 1.75},
		{0.5, 2.5},
		{0.75, 3.25},
		{1, 4},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, preprocessing.Quantile(sorted, tt.p), 1e-12, "p=%v", tt.p)
	}
	assert.True(t, math.IsNaN(preprocessing.Quantile(nil, 0.5)))
	assert.Equal(t, 7.0, preprocessing.Quantile([]float64{7}, 0.9))
}

func TestSimpleImputer_Strategies(t *testing.T) {
	nan := math.NaN()
	X := mat.NewDense(4, 2, []float64{
		1, nan,
		nan, nan,
		3, nan,
		10, nan,
	})

	median := preprocessing.NewSimpleImputer(preprocessing.StrategyMedian)
	out, err := median.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, 3.0, out.At(1, 0))
	assert.Equal(t, 0.0, out.At(0, 1), "column without values falls back to FillValue")

	mean := preprocessing.NewSimpleImputer(preprocessing.StrategyMean)
	out, err = mean.FitTransform(X)
	require.NoError(t, err)
	assert.InDelta(t, 14.0/3.0, out.At(1, 0), 1e-12)

	constant := preprocessing.NewSimpleImputer(preprocessing.StrategyConstant)
	constant.FillValue = -1
	out, err = constant.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, -1.0, out.At(1, 0))
	assert.Equal(t, 10.0, out.At(3, 0))
}

func TestSimpleImputer_Errors(t *testing.T) {
	bad := preprocessing.NewSimpleImputer("mode")
	assert.Error(t, bad.Fit(mat.NewDense(1, 1, []float64{1})))

	imp := preprocessing.NewSimpleImputer(preprocessing.StrategyMedian)
	_, err := imp.Transform(mat.NewDense(1, 1, []float64{1}))
	assert.Error(t, err)
}

func TestCategoricalImputer_MostFrequentWithTies(t *testing.T) {
	X := frame.MustFromSeries(
		frame.NewCategorical("sex", []string{"M", "F", "", "F"}, nil),
		frame.NewCategorical("ward", []string{"b", "a", "", ""}, nil),
		frame.NewMissing("empty", 4),
	)
	imp := preprocessing.NewCategoricalImputer()
	require.NoError(t, imp.Fit(X, nil))
	assert.Equal(t, map[string]string{"sex": "F", "ward": "a"}, imp.Fill)

	out, err := imp.Transform(X)
	require.NoError(t, err)
	sex, ok := out.Strings("sex")
	assert.Equal(t, []string{"M", "F", "F", "F"}, sex)
	assert.Equal(t, []bool{true, true, true, true}, ok)
	assert.Equal(t, 4, out.Column("empty").CountMissing())
}

func TestIQRClipper(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 100, math.NaN()})
	c := preprocessing.NewIQRClipper(1.5)
	require.NoError(t, c.Fit(X))

	// Q1=2, Q3=4 over the five present values
	assert.InDelta(t, -1.0, c.Lower[0], 1e-12)
	assert.InDelta(t, 7.0, c.Upper[0], 1e-12)
	assert.True(t, c.Outside(0, 100))
	assert.False(t, c.Outside(0, 7))

	out, err := c.Transform(X)
	require.NoError(t, err)
	assert.Equal(t, 7.0, out.At(4, 0))
	assert.Equal(t, 3.0, out.At(2, 0))
	assert.True(t, math.IsNaN(out.At(5, 0)))
}

func TestIQRClipper_Errors(t *testing.T) {
	assert.Error(t, preprocessing.NewIQRClipper(-1).Fit(mat.NewDense(1, 1, []float64{1})))

	c := preprocessing.NewIQRClipper(1.5)
	require.NoError(t, c.Fit(mat.NewDense(2, 1, []float64{1, 2})))
	_, err := c.Transform(mat.NewDense(1, 2, []float64{1, 2}))
	assert.Error(t, err)
}
