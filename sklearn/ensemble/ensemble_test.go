package ensemble_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/metrics"
	"github.com/ezoic/medscore/sklearn/ensemble"
)

// cohort draws n rows where only the first of four features drives the label.
func cohort(n int, seed int64) (*mat.Dense, *mat.VecDense) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, 4, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < 4; j++ {
			X.Set(i, j, rng.NormFloat64())
		}
		if X.At(i, 0)+0.3*rng.NormFloat64() > 0 {
			y.SetVec(i, 1)
		}
	}
	return X, y
}

func TestRandomForestClassifier_LearnsSignal(t *testing.T) {
	X, y := cohort(300, 1)
	rf := ensemble.NewRandomForestClassifier(ensemble.WithNEstimators(30), ensemble.WithRandomState(7))
	require.NoError(t, rf.Fit(X, y))

	Xt, yt := cohort(200, 2)
	proba, err := rf.PredictProba(Xt)
	require.NoError(t, err)
	auc, err := metrics.AUC(yt, mat.VecDenseCopyOf(proba.(*mat.Dense).ColView(1)))
	require.NoError(t, err)
	assert.Greater(t, auc, 0.85)

	imp := rf.FeatureImportances()
	assert.InDelta(t, 1.0, floats.Sum(imp), 1e-9)
	assert.Equal(t, 0, floats.MaxIdx(imp))

	pred, err := rf.Predict(Xt)
	require.NoError(t, err)
	r, _ := pred.Dims()
	assert.Equal(t, 200, r)
}

func TestRandomForestClassifier_Deterministic(t *testing.T) {
	X, y := cohort(120, 3)
	fit := func() mat.Matrix {
		rf := ensemble.NewRandomForestClassifier(ensemble.WithNEstimators(10), ensemble.WithRandomState(42))
		require.NoError(t, rf.Fit(X, y))
		p, err := rf.PredictProba(X)
		require.NoError(t, err)
		return p
	}
	assert.True(t, mat.Equal(fit(), fit()))
}

func TestRandomForestClassifier_Params(t *testing.T) {
	rf := ensemble.NewRandomForestClassifier()
	require.NoError(t, rf.SetParams(map[string]interface{}{
		"n_estimators": 300.0,
		"max_depth":    nil,
	}))
	assert.Equal(t, 300, rf.NEstimators)
	assert.Equal(t, 0, rf.MaxDepth)

	assert.Error(t, rf.SetParams(map[string]interface{}{"C": 1.0}))

	bad := ensemble.NewRandomForestClassifier(ensemble.WithMaxFeatures("half"))
	X, y := cohort(20, 4)
	assert.Error(t, bad.Fit(X, y))

	_, err := ensemble.NewRandomForestClassifier().PredictProba(X)
	assert.Error(t, err)
}

func TestRandomForestRegressor(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	n := 200
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x0, x1 := rng.Float64()*10, rng.Float64()
		X.SetRow(i, []float64{x0, x1})
		y.SetVec(i, 3*x0+rng.NormFloat64()*0.1)
	}
	rf := ensemble.NewRandomForestRegressor(ensemble.WithNEstimators(20), ensemble.WithRandomState(1))
	require.NoError(t, rf.Fit(X, y))

	pred, err := rf.Predict(X)
	require.NoError(t, err)
	r2, err := metrics.R2Score(y, pred.(*mat.VecDense))
	require.NoError(t, err)
	assert.Greater(t, r2, 0.95)
	assert.Greater(t, rf.FeatureImportances()[0], 0.9)
}

func TestIsolationForest_FlagsOutlier(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	n := 200
	X := mat.NewDense(n, 2, nil)
	for i := 0; i < n-1; i++ {
		X.SetRow(i, []float64{rng.NormFloat64(), rng.NormFloat64()})
	}
	X.SetRow(n-1, []float64{12, -12})

	f := ensemble.NewIsolationForest(ensemble.WithTrees(50), ensemble.WithContamination(0.02))
	require.NoError(t, f.Fit(X))

	scores, err := f.Score(X)
	require.NoError(t, err)
	assert.Equal(t, n-1, floats.MaxIdx(scores))
	assert.Greater(t, scores[n-1], 0.6)

	flags, err := f.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, 1.0, flags.At(n-1, 0))
	flagged := 0
	for i := 0; i < n; i++ {
		flagged += int(flags.At(i, 0))
	}
	assert.LessOrEqual(t, flagged, 10)
}

func TestIsolationForest_Errors(t *testing.T) {
	f := ensemble.NewIsolationForest()
	_, err := f.Score(mat.NewDense(1, 1, nil))
	assert.Error(t, err)

	assert.Error(t, ensemble.NewIsolationForest(ensemble.WithContamination(0.7)).Fit(mat.NewDense(3, 1, []float64{1, 2, 3})))
}
