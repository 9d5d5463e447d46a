package training_test

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/dataset"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/pkg/log"
	"github.com/ezoic/medscore/training"
)

func cohort(t *testing.T, n int, prevalence float64, seed uint64) *frame.Frame {
	t.Helper()
	f, err := dataset.Synthetic(n, prevalence, seed)
	require.NoError(t, err)
	return f
}

// constantLabel replaces label_readmit with all zeros.
func constantLabel(f *frame.Frame) *frame.Frame {
	out, _ := f.Drop(dataset.ColumnReadmit).Add(frame.NewNumeric(dataset.ColumnReadmit, make([]float64, f.NRows())))
	return out
}

func TestTrainerClassificationScenario(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	trainer := training.NewTrainer(
		training.WithEstimatorFamily(training.FamilyLogistic),
		training.WithLogger(logger),
	)
	res, err := trainer.Train(context.Background(), cohort(t, 1000, 0.1, 11), dataset.ColumnReadmit)
	require.NoError(t, err)

	ev := res.Evaluation
	assert.Equal(t, []training.Phase{
		training.PhaseSplit, training.PhaseSearch, training.PhaseSearchOK,
		training.PhaseEvaluate, training.PhaseDone,
	}, ev.Phases)
	assert.Equal(t, training.SearchPathSearch, ev.SearchPath)
	assert.Equal(t, training.LabelSourceObserved, ev.LabelSource)
	assert.Equal(t, 800, ev.TrainSize)
	assert.Equal(t, 200, ev.TestSize)
	assert.NotEmpty(t, ev.RunID)
	assert.Contains(t, ev.BestParams, "clf__C")

	require.NotNil(t, ev.Classification)
	assert.GreaterOrEqual(t, ev.Classification.AUC, 0.5)
	assert.LessOrEqual(t, ev.Classification.AUC, 1.0)
	assert.GreaterOrEqual(t, ev.Classification.Threshold, 0.1)
	assert.LessOrEqual(t, ev.Classification.Threshold, 0.9)
	assert.InDelta(t, 0.1, ev.Classification.Prevalence, 1e-9)
	assert.Contains(t, ev.DroppedIdentifiers, dataset.ColumnPatientID)
	assert.NotEmpty(t, ev.Importances)
	assert.True(t, res.Pipeline.IsFitted())

	assert.True(t, logger.ContainsField(log.PhaseKey, string(training.PhaseDone)))
	assert.True(t, logger.ContainsField(log.RunIDKey, ev.RunID))
}

func TestTrainerDefaultFamilyDropsTargetCopy(t *testing.T) {
	data := cohort(t, 1000, 0.1, 11)
	data, err := data.Add(frame.NewNumeric("readmit_copy", data.Floats(dataset.ColumnReadmit)))
	require.NoError(t, err)

	res, err := training.NewTrainer().Train(context.Background(), data, dataset.ColumnReadmit)
	require.NoError(t, err)

	ev := res.Evaluation
	assert.Equal(t, training.FamilyRandomForest, ev.Family)
	assert.Equal(t, training.SearchPathSearch, ev.SearchPath)
	assert.Contains(t, ev.DroppedLeakage, "readmit_copy")
	require.NotNil(t, ev.Classification)
	assert.Greater(t, ev.Classification.AUC, 0.7)
	assert.LessOrEqual(t, ev.Classification.AUC, 1.0)
	assert.GreaterOrEqual(t, ev.Classification.Threshold, 0.1)
	assert.LessOrEqual(t, ev.Classification.Threshold, 0.9)
	for _, imp := range ev.Importances {
		assert.NotContains(t, imp.Feature, "readmit_copy")
	}
}

func TestTrainerFallsBackWhenSearchFails(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	trainer := training.NewTrainer(
		training.WithEstimatorFamily(training.FamilyLogistic),
		training.WithLogger(logger),
	)
	// three positives: two land in training, fewer than the three CV folds
	res, err := trainer.Train(context.Background(), cohort(t, 40, 0.075, 5), dataset.ColumnReadmit)
	require.NoError(t, err)

	ev := res.Evaluation
	assert.Equal(t, training.SearchPathFallback, ev.SearchPath)
	assert.Contains(t, ev.Phases, training.PhaseSearchFallback)
	assert.NotContains(t, ev.Phases, training.PhaseSearchOK)
	assert.Equal(t, training.PhaseDone, ev.Phases[len(ev.Phases)-1])
	assert.NotNil(t, ev.BestParams)
	assert.True(t, logger.ContainsField(log.TrainingPathKey, training.SearchPathFallback))
	assert.True(t, logger.ContainsMessage("hyperparameter search failed"))
}

func TestTrainerDecisionOnlyEstimator(t *testing.T) {
	trainer := training.NewTrainer(training.WithEstimatorFamily(training.FamilyPassiveAggressive))
	res, err := trainer.Train(context.Background(), cohort(t, 300, 0.2, 8), dataset.ColumnReadmit)
	require.NoError(t, err)
	require.NotNil(t, res.Evaluation.Classification)
	assert.GreaterOrEqual(t, res.Evaluation.Classification.AUC, 0.0)
	assert.LessOrEqual(t, res.Evaluation.Classification.AUC, 1.0)
}

func TestTrainerRegression(t *testing.T) {
	data := cohort(t, 300, 0.1, 21).Drop(dataset.ColumnReadmit)
	trainer := training.NewTrainer(
		training.WithTask(training.TaskRegression),
		training.WithEstimatorFamily(training.FamilyElasticNet),
	)
	res, err := trainer.Train(context.Background(), data, dataset.ColumnCost)
	require.NoError(t, err)

	ev := res.Evaluation
	assert.Nil(t, ev.Classification)
	require.NotNil(t, ev.Regression)
	assert.Greater(t, ev.Regression.R2, 0.5)
	assert.Greater(t, ev.Regression.MAE, 0.0)
	assert.Equal(t, 0.5, ev.Threshold())
	assert.Contains(t, ev.BestParams, "reg__alpha")
}

func TestTrainerTargetErrors(t *testing.T) {
	trainer := training.NewTrainer(training.WithEstimatorFamily(training.FamilyLogistic))
	data := cohort(t, 100, 0.1, 1)

	_, err := trainer.Train(context.Background(), data, "mortality_1y")
	assert.True(t, errors.IsConfiguration(err))

	multi := frame.MustFromSeries(
		frame.NewNumeric("x", []float64{1, 2, 3, 4, 5, 6}),
		frame.NewCategorical("y", []string{"a", "b", "c", "a", "b", "c"}, nil),
	)
	_, err = trainer.Train(context.Background(), multi, "y")
	assert.True(t, errors.IsConfiguration(err))

	_, err = training.NewTrainer(training.WithEstimatorFamily("svm")).Train(context.Background(), data, dataset.ColumnReadmit)
	assert.True(t, errors.IsConfiguration(err))
}

func TestTrainerDropsRowsWithMissingTarget(t *testing.T) {
	data := cohort(t, 200, 0.2, 4)
	labels := append([]float64(nil), data.Floats(dataset.ColumnReadmit)...)
	for i := 0; i < 20; i++ {
		labels[i*10] = math.NaN()
	}
	data, err := data.Drop(dataset.ColumnReadmit).Add(frame.NewNumeric(dataset.ColumnReadmit, labels))
	require.NoError(t, err)

	res, err := training.NewTrainer(training.WithEstimatorFamily(training.FamilyLogistic)).
		Train(context.Background(), data, dataset.ColumnReadmit)
	require.NoError(t, err)
	assert.Equal(t, 180, res.Evaluation.TrainSize+res.Evaluation.TestSize)
}

func TestLabelPolicyProxy(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	trainer := training.NewTrainer(
		training.WithEstimatorFamily(training.FamilyLogistic),
		training.WithLogger(logger),
	)
	res, err := trainer.Train(context.Background(), constantLabel(cohort(t, 200, 0.1, 2)), dataset.ColumnReadmit)
	require.NoError(t, err)

	assert.Equal(t, "proxy:glucose", res.Evaluation.LabelSource)
	for _, name := range res.Evaluation.FeatureNames {
		assert.False(t, strings.HasPrefix(name, "glucose"), "proxy column %s leaked into features", name)
	}
	assert.True(t, logger.ContainsField(log.LabelSourceKey, "proxy:glucose"))
}

func TestLabelPolicyFail(t *testing.T) {
	trainer := training.NewTrainer(
		training.WithEstimatorFamily(training.FamilyLogistic),
		training.WithLabelPolicy(training.LabelPolicyFail),
	)
	_, err := trainer.Train(context.Background(), constantLabel(cohort(t, 100, 0.1, 2)), dataset.ColumnReadmit)
	assert.True(t, errors.IsConfiguration(err))
}

func TestLabelPolicyWithoutProxy(t *testing.T) {
	data := constantLabel(cohort(t, 200, 0.1, 6)).Drop("glucose")

	_, err := training.NewTrainer(training.WithEstimatorFamily(training.FamilyLogistic)).
		Train(context.Background(), data, dataset.ColumnReadmit)
	assert.True(t, errors.IsConfiguration(err))

	res, err := training.NewTrainer(
		training.WithEstimatorFamily(training.FamilyLogistic),
		training.WithLabelPolicy(training.LabelPolicyProxyOrSynthesize),
	).Train(context.Background(), data, dataset.ColumnReadmit)
	require.NoError(t, err)
	assert.Equal(t, training.LabelSourceSynthetic, res.Evaluation.LabelSource)
}

func TestEncodeBinaryTarget(t *testing.T) {
	codes, classes, err := training.EncodeBinaryTarget(
		frame.NewCategorical("y", []string{"yes", "no", "", "yes"}, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"no", "yes"}, classes)
	assert.Equal(t, 1.0, codes[0])
	assert.Equal(t, 0.0, codes[1])
	assert.True(t, math.IsNaN(codes[2]))

	_, classes, err = training.EncodeBinaryTarget(frame.NewNumeric("y", []float64{2, 2, 2}))
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, classes)
}

func TestParsePolicyAndTask(t *testing.T) {
	p, err := training.ParseLabelPolicy("proxy-or-synthesize")
	require.NoError(t, err)
	assert.Equal(t, training.LabelPolicyProxyOrSynthesize, p)
	_, err = training.ParseLabelPolicy("guess")
	assert.True(t, errors.IsConfiguration(err))

	task, err := training.ParseTask("reg")
	require.NoError(t, err)
	assert.Equal(t, training.TaskRegression, task)
	_, err = training.ParseTask("ranking")
	assert.True(t, errors.IsConfiguration(err))
}

func TestResolveFamily(t *testing.T) {
	spec, err := training.ResolveFamily(training.TaskClassification, "xgboost", 1)
	require.NoError(t, err)
	assert.Equal(t, training.FamilyXGBoost, spec.Requested)
	assert.Equal(t, training.FamilyRandomForest, spec.Resolved)
	assert.Contains(t, spec.Grid, "clf__n_estimators")

	spec, err = training.ResolveFamily(training.TaskRegression, "rf", 1)
	require.NoError(t, err)
	assert.Equal(t, "reg", spec.Step)
	assert.Contains(t, spec.Grid, "reg__max_depth")

	spec, err = training.ResolveFamily(training.TaskRegression, "ols", 1)
	require.NoError(t, err)
	assert.Equal(t, training.FamilyLinear, spec.Resolved)
	assert.False(t, spec.Negotiated())
	assert.Contains(t, spec.Grid, "reg__alpha")

	spec, err = training.ResolveFamily(training.TaskClassification, "gbm", 1)
	require.NoError(t, err)
	assert.Equal(t, training.FamilyGradientBoosting, spec.Resolved)
	assert.Contains(t, spec.Grid, "clf__learning_rate")

	_, err = training.ResolveFamily(training.TaskClassification, training.FamilyElasticNet, 1)
	assert.True(t, errors.IsConfiguration(err))
	_, err = training.ResolveFamily(training.TaskRegression, training.FamilyLogistic, 1)
	assert.True(t, errors.IsConfiguration(err))

	for _, task := range []training.Task{training.TaskClassification, training.TaskRegression} {
		for _, family := range training.Families(task) {
			spec, err := training.ResolveFamily(task, family, 1)
			require.NoError(t, err, "%s/%s", task, family)
			assert.NotNil(t, spec.New())
		}
	}
}
