package serving_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/medscore/anomaly"
	"github.com/ezoic/medscore/artifact"
	"github.com/ezoic/medscore/catalog"
	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/dataset"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/serving"
	"github.com/ezoic/medscore/sklearn/linear_model"
	"github.com/ezoic/medscore/sklearn/pipeline"
	"github.com/ezoic/medscore/training"
)

var (
	storeOnce sync.Once
	storeDir  string
	storeErr  error
)

// trainedStore trains a probabilistic classifier, a decision-only classifier
// and a regressor once and returns the store holding them.
func trainedStore(t testing.TB) *artifact.FileStore {
	t.Helper()
	storeOnce.Do(func() {
		storeDir, storeErr = trainAll()
	})
	require.NoError(t, storeErr)
	return artifact.NewFileStore(storeDir)
}

func trainAll() (string, error) {
	dir, err := tempDir()
	if err != nil {
		return "", err
	}
	cohort, err := dataset.Synthetic(300, 0.2, 17)
	if err != nil {
		return "", err
	}
	store := artifact.NewFileStore(dir)
	ctx := context.Background()
	jobs := []struct {
		name   string
		task   training.Task
		family string
		target string
	}{
		{"ReadmissionPredictor", training.TaskClassification, training.FamilyLogistic, dataset.ColumnReadmit},
		{"NoShowAppointmentPredictor", training.TaskClassification, training.FamilyPassiveAggressive, dataset.ColumnReadmit},
		{"CostOfCareRegressor", training.TaskRegression, training.FamilyElasticNet, dataset.ColumnCost},
	}
	for _, job := range jobs {
		res, err := training.NewTrainer(
			training.WithTask(job.task),
			training.WithEstimatorFamily(job.family),
		).Train(ctx, cohort, job.target)
		if err != nil {
			return "", err
		}
		if _, err := store.Publish(ctx, job.name, res); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func records(t *testing.T, n int) *frame.Frame {
	t.Helper()
	f, err := dataset.Synthetic(n, 0.2, 99)
	require.NoError(t, err)
	return f.Drop(dataset.ColumnReadmit, dataset.ColumnCost)
}

func newEngine(t *testing.T) *serving.Engine {
	store := trainedStore(t)
	return serving.NewEngine(store, artifact.NewCache(store))
}

func TestScoreBatchDispatchesByCapability(t *testing.T) {
	engine := newEngine(t)
	req := serving.Request{
		Models:     []string{"ReadmissionPredictor", "NoShowAppointmentPredictor", "CostOfCareRegressor"},
		Records:    records(t, 25),
		Thresholds: map[string]float64{"ReadmissionPredictor": 0.3},
	}
	res, err := engine.ScoreBatch(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Records, 25)
	assert.NotEmpty(t, res.RequestID)

	first := res.Records[0]
	assert.Equal(t, "P000001", first.ID)

	proba := first.Predictions["ReadmissionPredictor"]
	require.NotNil(t, proba.Score)
	assert.Equal(t, 0.3, *proba.Threshold)
	assert.Equal(t, *proba.Score >= 0.3, *proba.Decision)
	assert.GreaterOrEqual(t, *proba.Score, 0.0)
	assert.LessOrEqual(t, *proba.Score, 1.0)

	decision := first.Predictions["NoShowAppointmentPredictor"]
	require.NotNil(t, decision.Score)
	assert.Equal(t, 0.0, *decision.Threshold)
	assert.Equal(t, *decision.Score >= 0, *decision.Decision)

	value := first.Predictions["CostOfCareRegressor"]
	require.NotNil(t, value.Value)
	assert.Nil(t, value.Score)

	assert.Equal(t, serving.KindProbability, res.Models["ReadmissionPredictor"].Kind)
	assert.Equal(t, serving.KindDecision, res.Models["NoShowAppointmentPredictor"].Kind)
	regression := res.Models["CostOfCareRegressor"]
	assert.Equal(t, serving.KindRegression, regression.Kind)
	require.NotNil(t, regression.Mean)
	assert.Equal(t, 25, regression.N)
	require.NotNil(t, res.Models["ReadmissionPredictor"].Positives)
}

func TestScoreBatchMissingArtifactIsScoped(t *testing.T) {
	engine := newEngine(t)
	res, err := engine.ScoreBatch(context.Background(), serving.Request{
		Models:  []string{"ReadmissionPredictor", "MortalityRiskModel", "CostOfCareRegressor"},
		Records: records(t, 5),
	})
	require.NoError(t, err)

	var ok, failed int
	for name, summary := range res.Models {
		if summary.Error != nil {
			failed++
			assert.Equal(t, "MortalityRiskModel", name)
			assert.Equal(t, errors.KindArtifactNotFound, summary.Error.Type)
			continue
		}
		ok++
	}
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, failed)
	for _, rec := range res.Records {
		require.NotNil(t, rec.Predictions["MortalityRiskModel"].Error)
		assert.NotNil(t, rec.Predictions["ReadmissionPredictor"].Score)
	}
}

func TestScoreBatchDefaultThresholds(t *testing.T) {
	tests := []struct {
		name       string
		thresholds map[string]float64
		want       float64
	}{
		{"out of range", map[string]float64{"ReadmissionPredictor": 7}, catalog.DefaultThreshold},
		{"negative", map[string]float64{"ReadmissionPredictor": -0.2}, catalog.DefaultThreshold},
		{"absent", nil, catalog.DefaultThreshold},
		{"requested", map[string]float64{"ReadmissionPredictor": 0.3}, 0.3},
	}
	engine := newEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := engine.ScoreBatch(context.Background(), serving.Request{
				Models:     []string{"ReadmissionPredictor"},
				Records:    records(t, 3),
				Thresholds: tt.thresholds,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, *res.Records[0].Predictions["ReadmissionPredictor"].Threshold)
			assert.Equal(t, tt.want, *res.Models["ReadmissionPredictor"].Threshold)
		})
	}
}

func TestScoreBatchIsIdempotent(t *testing.T) {
	engine := newEngine(t)
	req := serving.Request{Models: []string{"ReadmissionPredictor", "CostOfCareRegressor"}, Records: records(t, 10)}
	first, err := engine.ScoreBatch(context.Background(), req)
	require.NoError(t, err)
	second, err := engine.ScoreBatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, first.Models, second.Models)
}

func TestScoreBatchToleratesSchemaDrift(t *testing.T) {
	engine := newEngine(t)
	drifted, err := records(t, 8).Drop("bmi", "smoker").
		Add(frame.NewNumeric("unexpected", []float64{1, 2, 3, 4, 5, 6, 7, 8}))
	require.NoError(t, err)

	res, err := engine.ScoreBatch(context.Background(), serving.Request{
		Models:  []string{"ReadmissionPredictor"},
		Records: drifted,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Models["ReadmissionPredictor"].Error)
	assert.NotNil(t, res.Records[7].Predictions["ReadmissionPredictor"].Score)
}

func TestScoreBatchEmptyRecords(t *testing.T) {
	engine := newEngine(t)
	res, err := engine.ScoreBatch(context.Background(), serving.Request{
		Models:  []string{"ReadmissionPredictor"},
		Records: frame.New(0),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Empty(t, res.Models)
}

type staticResolver struct{}

func (staticResolver) Resolve(name string) (string, error) { return "mem/" + name, nil }

type unfittedLoader struct{}

func (unfittedLoader) Load(_ context.Context, path string) (*artifact.Artifact, error) {
	p := pipeline.New(pipeline.Step{Name: "clf", Estimator: linear_model.NewLogisticRegression()})
	return &artifact.Artifact{Name: path, Pipeline: p}, nil
}

func TestScoreBatchPredictionFailure(t *testing.T) {
	engine := serving.NewEngine(staticResolver{}, artifact.NewCache(unfittedLoader{}))
	res, err := engine.ScoreBatch(context.Background(), serving.Request{
		Models:  []string{"Broken"},
		Records: records(t, 4),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Models["Broken"].Error)
	assert.Equal(t, errors.KindPredictionFailure, res.Models["Broken"].Error.Type)
}

func TestReportMergesAnomalies(t *testing.T) {
	engine := newEngine(t)
	data := records(t, 30)
	ages := data.Floats("age")
	ages[4] = 999
	data, err := data.Drop("age").Add(frame.NewNumeric("age", ages))
	require.NoError(t, err)

	report, err := engine.Report(context.Background(), serving.Request{
		Models:  []string{"MortalityRiskModel"},
		Records: data,
	})
	require.NoError(t, err)
	require.Len(t, report.Records, 30)
	assert.NotNil(t, report.Models["MortalityRiskModel"].Error, "every model failed")
	require.NotNil(t, report.Records[4].Anomaly)
	assert.True(t, report.Records[4].Anomaly.Flagged)
	assert.Contains(t, report.Records[4].Anomaly.Columns, "age")
	assert.Equal(t, anomaly.Method, report.Anomalies.Method)
	assert.GreaterOrEqual(t, report.Anomalies.NFlagged, 1)
}

func TestDetectAnomaliesEmpty(t *testing.T) {
	engine := newEngine(t)
	res, err := engine.DetectAnomalies(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}
