package preprocessing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/preprocessing"
)

func TestOneHotEncoder_FitTransform(t *testing.T) {
	X := frame.MustFromSeries(
		frame.NewCategorical("sex", []string{"M", "F", "", "M"}, nil),
		frame.NewNumeric("grade", []float64{2, 1, 2, 3}),
	)
	enc := preprocessing.NewOneHotEncoder()
	require.NoError(t, enc.Fit(X, nil))

	assert.Equal(t, 5, enc.NOutputs)
	assert.Equal(t, []string{"sex_F", "sex_M", "grade_1", "grade_2", "grade_3"}, enc.FeatureNamesOut())

	out, err := enc.Transform(X)
	require.NoError(t, err)
	want := mat.NewDense(4, 5, []float64{
		0, 1, 0, 1, 0,
		1, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
		0, 1, 0, 0, 1,
	})
	assert.True(t, mat.Equal(want, out))
}

func TestOneHotEncoder_UnknownAndAbsent(t *testing.T) {
	train := frame.MustFromSeries(
		frame.NewCategorical("sex", []string{"M", "F"}, nil),
		frame.NewCategorical("ward", []string{"a", "b"}, nil),
	)
	enc := preprocessing.NewOneHotEncoder()
	require.NoError(t, enc.Fit(train, nil))

	// reordered columns, an unknown category and a missing column
	serve := frame.MustFromSeries(
		frame.NewCategorical("extra", []string{"z"}, nil),
		frame.NewCategorical("sex", []string{"X"}, nil),
	)
	out, err := enc.Transform(serve)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, mat.Row(nil, 0, out))
}

func TestOneHotEncoder_Errors(t *testing.T) {
	enc := preprocessing.NewOneHotEncoder()
	_, err := enc.Transform(frame.New(1))
	assert.Error(t, err, "not fitted")

	assert.Error(t, enc.Fit(frame.New(0), nil))

	allMissing := frame.MustFromSeries(frame.NewMissing("x", 3))
	require.NoError(t, enc.Fit(allMissing, nil))
	_, err = enc.Transform(allMissing)
	assert.Error(t, err, "no outputs")
	assert.Empty(t, enc.FeatureNamesOut())
}
