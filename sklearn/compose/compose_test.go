package compose_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/preprocessing"
	"github.com/ezoic/medscore/sklearn/compose"
	"github.com/ezoic/medscore/sklearn/pipeline"
)

func vitals() *frame.Frame {
	return frame.MustFromSeries(
		frame.NewNumeric("hr", []float64{72, 88, 95, 72, 110, 79}),
		frame.NewNumeric("sbp", []float64{120, 135, 90, 150, 120, 128}),
		frame.NewCategorical("unit", []string{"icu", "ward", "ward", "icu", "ed", "ward"}, nil),
	)
}

func TestColumnTransformer_FitTransform(t *testing.T) {
	ct := compose.NewColumnTransformer(
		compose.NewBranch("num", preprocessing.NewNumericBranch(false), compose.ByKind(frame.Numeric)),
		compose.NewBranch("cat", preprocessing.NewCategoricalBranch(), compose.ExcludeKinds(frame.Numeric)),
	)
	X := vitals()
	require.NoError(t, ct.Fit(X, nil))

	assert.Equal(t, []string{"hr", "sbp", "unit"}, ct.FeatureNamesIn())
	assert.Equal(t,
		[]string{"num__hr", "num__sbp", "cat__unit_ed", "cat__unit_icu", "cat__unit_ward"},
		ct.FeatureNamesOut())

	out, err := ct.Transform(X)
	require.NoError(t, err)
	r, c := out.Dims()
	assert.Equal(t, 6, r)
	assert.Equal(t, 5, c)
	assert.Equal(t, 1.0, out.At(4, 2))
}

func TestColumnTransformer_ColumnClaimedOnce(t *testing.T) {
	ct := compose.NewColumnTransformer(
		compose.NewBranch("first", preprocessing.NewNumericBranch(false), compose.Columns("hr")),
		compose.NewBranch("rest", preprocessing.NewNumericBranch(false), compose.ByKind(frame.Numeric)),
	)
	require.NoError(t, ct.Fit(vitals(), nil))
	assert.Equal(t, []string{"first__hr", "rest__sbp"}, ct.FeatureNamesOut())
}

func TestColumnTransformer_ConstantWhenNothingRoutes(t *testing.T) {
	ct := compose.NewColumnTransformer(
		compose.NewBranch("num", preprocessing.NewNumericBranch(false), compose.ByKind(frame.Numeric)),
	)
	X := frame.MustFromSeries(frame.NewCategorical("note", []string{"a", "b"}, nil))
	require.NoError(t, ct.Fit(X, nil))
	assert.Equal(t, []string{compose.ConstantFeature}, ct.FeatureNamesOut())

	out, err := ct.Transform(X)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.At(1, 0))
}

func TestColumnTransformer_NotFitted(t *testing.T) {
	ct := compose.NewColumnTransformer()
	_, err := ct.Transform(vitals())
	assert.Error(t, err)
	assert.Nil(t, ct.FeatureNamesIn())
}

func TestExpectedInputColumns_DeclaredBeforeFit(t *testing.T) {
	ct := compose.NewColumnTransformer(
		compose.NewBranch("num", preprocessing.NewNumericBranch(false), compose.Columns("hr", "sbp")),
		compose.NewBranch("cat", preprocessing.NewCategoricalBranch(), compose.Columns("unit", "hr")),
	)
	cols, ok := compose.ExpectedInputColumns(pipeline.New(pipeline.Step{Name: "ct", Estimator: ct}))
	require.True(t, ok)
	assert.Equal(t, []string{"hr", "sbp", "unit"}, cols)
}

func TestExpectedInputColumns_NestedFittedPipeline(t *testing.T) {
	X := vitals()
	ids := []string{"a1", "a2", "a3", "a4", "a5", "a6"}
	X, err := X.Add(frame.NewCategorical("visit_id", ids, nil))
	require.NoError(t, err)

	pre := preprocessing.NewPreprocessor()
	outer := pipeline.New(pipeline.Step{Name: "pre", Estimator: pre})
	require.NoError(t, outer.Fit(X, nil))

	cols, ok := compose.ExpectedInputColumns(outer)
	require.True(t, ok)
	// the identifier dropper ran before the router, so visit_id is not expected
	assert.Equal(t, []string{"hr", "sbp", "unit"}, cols)
}

// loop is a composite that contains itself.
type loop struct {
	self   *loop
	router *compose.ColumnTransformer
}

func (l *loop) Components() []any { return []any{l.self, l.router} }

func TestExpectedInputColumns_CycleSafe(t *testing.T) {
	ct := compose.NewColumnTransformer(
		compose.NewBranch("num", preprocessing.NewNumericBranch(false), compose.Columns("hr")),
	)
	l := &loop{router: ct}
	l.self = l

	cols, ok := compose.ExpectedInputColumns(l)
	require.True(t, ok)
	assert.Equal(t, []string{"hr"}, cols)
}

func TestExpectedInputColumns_NoRouter(t *testing.T) {
	_, ok := compose.ExpectedInputColumns(preprocessing.NewStandardScalerDefault())
	assert.False(t, ok)
	_, ok = compose.ExpectedInputColumns(nil)
	assert.False(t, ok)
}

func TestAlign_Drift(t *testing.T) {
	X := frame.MustFromSeries(
		frame.NewNumeric("A", []float64{1, 2}),
		frame.NewNumeric("C", []float64{3, 4}),
		frame.NewNumeric("D", []float64{5, 6}),
	)
	aligned := compose.Align(X, []string{"A", "B", "C"})

	assert.Equal(t, []string{"A", "B", "C"}, aligned.Names())
	assert.Equal(t, 2, aligned.Column("B").CountMissing())
	assert.Equal(t, []float64{3, 4}, aligned.Floats("C"))
	for _, v := range aligned.Floats("B") {
		assert.True(t, math.IsNaN(v))
	}

	again := compose.Align(aligned, []string{"A", "B", "C"})
	assert.Equal(t, aligned.Names(), again.Names())
	assert.Equal(t, aligned.Records(), again.Records())
}

func TestAlign_EmptyColumnList(t *testing.T) {
	aligned := compose.Align(vitals(), nil)
	assert.Equal(t, 0, aligned.NCols())
	assert.Equal(t, 6, aligned.NRows())
}
