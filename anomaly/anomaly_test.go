package anomaly_test

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/medscore/anomaly"
	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/dataset"
)

func agesWithOutlier() *frame.Frame {
	var ages []float64
	var ids []string
	for a := 20; a <= 90; a++ {
		ages = append(ages, float64(a))
		ids = append(ids, fmt.Sprintf("P%d", a))
	}
	ages = append(ages, 999)
	ids = append(ids, "P999")
	return frame.MustFromSeries(
		frame.NewCategorical("patient_id", ids, nil),
		frame.NewNumeric("age", ages),
	)
}

func TestDetectSingleExtremeValue(t *testing.T) {
	res, err := anomaly.NewFuser().Detect(context.Background(), agesWithOutlier())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Summary.NFlagged)
	assert.Equal(t, 72, res.Summary.NTotal)
	assert.Equal(t, anomaly.Method, res.Summary.Method)
	assert.Equal(t, []string{anomaly.RuleZScore, anomaly.RuleIQR}, res.Summary.Components)
	assert.Equal(t, []string{"age"}, res.Summary.Columns)

	for _, rec := range res.Records[:71] {
		assert.False(t, rec.Flagged, "record %s", rec.ID)
	}
	last := res.Records[71]
	assert.True(t, last.Flagged)
	assert.Equal(t, "P999", last.ID)
	assert.Equal(t, 71, last.Index)
	assert.True(t, last.IQR)
	assert.Contains(t, last.Rules, anomaly.RuleIQR)
	assert.Equal(t, []string{"age"}, last.Columns)
	assert.Equal(t, last.ZScore, last.Severity)
	assert.Greater(t, last.Severity, 3.0)
}

func TestDetectFillsMissingWithMedian(t *testing.T) {
	X := frame.MustFromSeries(frame.NewNumeric("glucose", []float64{100, math.NaN(), 101, 99, 100, 102, 98}))
	res, err := anomaly.NewFuser().Detect(context.Background(), X)
	require.NoError(t, err)
	assert.False(t, res.Records[1].Flagged)
	assert.Equal(t, 0, res.Summary.NFlagged)
}

func TestDetectConstantColumn(t *testing.T) {
	X := frame.MustFromSeries(frame.NewNumeric("sbp", []float64{120, 120, 120, 120}))
	res, err := anomaly.NewFuser().Detect(context.Background(), X)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Summary.NFlagged)
	for _, rec := range res.Records {
		assert.Equal(t, 0.0, rec.Severity)
	}
}

func TestDetectWithoutNumericColumns(t *testing.T) {
	X := frame.MustFromSeries(
		frame.NewCategorical("sex", []string{"F", "M"}, nil),
		frame.NewNumeric("empty", []float64{math.NaN(), math.NaN()}),
	)
	res, err := anomaly.NewFuser().Detect(context.Background(), X)
	require.NoError(t, err)
	assert.Equal(t, anomaly.NoteNoNumeric, res.Summary.Note)
	assert.Equal(t, 2, res.Summary.NTotal)
	assert.Len(t, res.Records, 2)
	assert.False(t, res.Records[0].Flagged)
}

func TestDetectEmptyFrame(t *testing.T) {
	res, err := anomaly.NewFuser().Detect(context.Background(), frame.New(0))
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, 0, res.Summary.NTotal)
}

func TestDetectNumericIDColumnIsNotScored(t *testing.T) {
	X := frame.MustFromSeries(
		frame.NewNumeric("mrn", []float64{1, 2, 3, 4, 5, 6, 7, 100000}),
		frame.NewNumeric("bmi", []float64{25, 26, 24, 25, 27, 26, 25, 24}),
	)
	res, err := anomaly.NewFuser(anomaly.WithIDColumn("mrn")).Detect(context.Background(), X)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Summary.NFlagged)
	assert.Equal(t, "100000", res.Records[7].ID)
	assert.Equal(t, []string{"bmi"}, res.Summary.Columns)
}

func TestDetectWithIsolationForest(t *testing.T) {
	X, err := dataset.Synthetic(300, 0.1, 12)
	require.NoError(t, err)

	res, err := anomaly.NewFuser(anomaly.WithIsolationForest(50, 0.02)).Detect(context.Background(), X)
	require.NoError(t, err)

	require.NotNil(t, res.Summary.NIsolationOutliers)
	assert.Greater(t, *res.Summary.NIsolationOutliers, 0)
	for _, rec := range res.Records {
		require.NotNil(t, rec.IsolationScore)
		assert.GreaterOrEqual(t, *rec.IsolationScore, 0.0)
		assert.LessOrEqual(t, *rec.IsolationScore, 1.0)
	}

	plain, err := anomaly.NewFuser().Detect(context.Background(), X)
	require.NoError(t, err)
	assert.Equal(t, plain.Summary.NFlagged, res.Summary.NFlagged, "the forest does not change flags")
}

func TestDetectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := anomaly.NewFuser().Detect(ctx, agesWithOutlier())
	assert.ErrorIs(t, err, context.Canceled)
}
