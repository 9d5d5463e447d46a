// Package ensemble implements tree ensembles: random forests and gradient
// boosting for classification and regression, and an isolation forest for
// unsupervised anomaly scoring. Forest trees are grown concurrently with
// core/parallel; every tree gets its own seed derived from RandomState so
// results do not depend on scheduling.
package ensemble

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/core/model"
	"github.com/ezoic/medscore/core/parallel"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/pkg/log"
	"github.com/ezoic/medscore/sklearn/tree"
)

func init() {
	model.Register(&RandomForestClassifier{}, &RandomForestRegressor{}, &IsolationForest{})
}

// Max feature rules.
const (
	MaxFeaturesSqrt = "sqrt"
	MaxFeaturesLog2 = "log2"
	MaxFeaturesAll  = "all"
)

// ForestParams holds the hyperparameters shared by both forests.
type ForestParams struct {
	NEstimators    int
	MaxDepth       int    // 0 = unlimited
	MinSamplesLeaf int
	MaxFeatures    string // "sqrt", "log2" or "all"
	Bootstrap      bool
	RandomState    int64 // negative = random
}

// ForestOption is a functional option for both forests.
type ForestOption func(*ForestParams)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) ForestOption {
	return func(p *ForestParams) { p.NEstimators = n }
}

// WithMaxDepth sets the maximum depth of every tree.
func WithMaxDepth(depth int) ForestOption {
	return func(p *ForestParams) { p.MaxDepth = depth }
}

// WithMinSamplesLeaf sets the minimum samples per leaf.
func WithMinSamplesLeaf(n int) ForestOption {
	return func(p *ForestParams) { p.MinSamplesLeaf = n }
}

// WithMaxFeatures sets the per-split feature rule.
func WithMaxFeatures(rule string) ForestOption {
	return func(p *ForestParams) { p.MaxFeatures = rule }
}

// WithBootstrap toggles bootstrap sampling.
func WithBootstrap(enabled bool) ForestOption {
	return func(p *ForestParams) { p.Bootstrap = enabled }
}

// WithRandomState sets the random seed.
func WithRandomState(seed int64) ForestOption {
	return func(p *ForestParams) { p.RandomState = seed }
}

func newForestParams(maxFeatures string, opts []ForestOption) ForestParams {
	p := ForestParams{
		NEstimators:    100,
		MinSamplesLeaf: 1,
		MaxFeatures:    maxFeatures,
		Bootstrap:      true,
		RandomState:    -1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// GetParams returns the forest hyperparameters.
func (p *ForestParams) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     p.NEstimators,
		"max_depth":        p.MaxDepth,
		"min_samples_leaf": p.MinSamplesLeaf,
		"max_features":     p.MaxFeatures,
		"bootstrap":        p.Bootstrap,
		"random_state":     p.RandomState,
	}
}

// SetParams sets the forest hyperparameters. A nil max_depth means unlimited.
func (p *ForestParams) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "n_estimators":
			p.NEstimators, err = model.IntParam(key, value)
		case "max_depth":
			p.MaxDepth, err = model.IntParam(key, value)
		case "min_samples_leaf":
			p.MinSamplesLeaf, err = model.IntParam(key, value)
		case "max_features":
			p.MaxFeatures, err = model.StringParam(key, value)
		case "bootstrap":
			b, ok := value.(bool)
			if !ok {
				err = fmt.Errorf("expected bool")
			}
			p.Bootstrap = b
		case "random_state":
			var seed int
			seed, err = model.IntParam(key, value)
			p.RandomState = int64(seed)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if err != nil {
			return errors.NewValidationError(key, err.Error(), value)
		}
	}
	return nil
}

func (p *ForestParams) validate() error {
	if p.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", p.NEstimators)
	}
	switch p.MaxFeatures {
	case MaxFeaturesSqrt, MaxFeaturesLog2, MaxFeaturesAll, "":
	default:
		return errors.NewValidationError("max_features", "must be sqrt, log2 or all", p.MaxFeatures)
	}
	return nil
}

// featuresPerSplit resolves MaxFeatures against the number of input features.
func (p *ForestParams) featuresPerSplit(nFeatures int) int {
	var k int
	switch p.MaxFeatures {
	case MaxFeaturesSqrt:
		k = int(math.Sqrt(float64(nFeatures)))
	case MaxFeaturesLog2:
		k = int(math.Log2(float64(nFeatures)))
	default:
		return 0
	}
	return max(1, k)
}

// treeSeeds draws one seed per tree from the forest seed.
func (p *ForestParams) treeSeeds() []int64 {
	rng := rand.New(rand.NewSource(tree.NewSeed(p.RandomState)))
	seeds := make([]int64, p.NEstimators)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}
	return seeds
}

// sampleRows returns a bootstrap sample of n rows, or every row when bootstrap
// is off.
func sampleRows(n int, bootstrap bool, seed int64) []int {
	rows := make([]int, n)
	if !bootstrap {
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	rng := rand.New(rand.NewSource(seed))
	for i := range rows {
		rows[i] = rng.Intn(n)
	}
	return rows
}

func (p *ForestParams) treeOptions(nFeatures int, seed int64) []tree.Option {
	return []tree.Option{
		tree.WithMaxDepth(p.MaxDepth),
		tree.WithMinSamplesLeaf(p.MinSamplesLeaf),
		tree.WithMaxFeatures(p.featuresPerSplit(nFeatures)),
		tree.WithRandomState(seed),
	}
}

// checkXY validates inputs and returns X as dense and y as a slice.
func checkXY(op string, X, y mat.Matrix) (*mat.Dense, []float64, error) {
	r, c := X.Dims()
	yr, yc := y.Dims()
	if r == 0 || c == 0 {
		return nil, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if r != yr {
		return nil, nil, errors.NewDimensionError(op, r, yr, 0)
	}
	if yc != 1 {
		return nil, nil, errors.NewDimensionError(op, 1, yc, 1)
	}
	return mat.DenseCopyOf(X), mat.Col(nil, 0, y), nil
}

// meanImportances averages per-tree importances and renormalises.
func meanImportances(perTree [][]float64, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	for _, imp := range perTree {
		for j, v := range imp {
			out[j] += v
		}
	}
	sum := 0.0
	for _, v := range out {
		sum += v
	}
	if sum > 0 {
		for j := range out {
			out[j] /= sum
		}
	}
	return out
}

// RandomForestClassifier averages the class probabilities of bagged CART trees.
type RandomForestClassifier struct {
	model.BaseEstimator
	ForestParams

	Trees       []*tree.DecisionTreeClassifier
	Classes     []float64
	NFeatures   int
	Importances []float64
}

// NewRandomForestClassifier creates a forest that tries sqrt(n_features) features
// per split.
func NewRandomForestClassifier(opts ...ForestOption) *RandomForestClassifier {
	return &RandomForestClassifier{ForestParams: newForestParams(MaxFeaturesSqrt, opts)}
}

// Fit grows NEstimators trees in parallel.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Fit")
	if err := rf.validate(); err != nil {
		return err
	}
	Xd, target, err := checkXY("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	start := time.Now()
	n, nFeatures := Xd.Dims()
	classes := tree.UniqueLabels(target)
	seeds := rf.treeSeeds()

	trees := make([]*tree.DecisionTreeClassifier, rf.NEstimators)
	errs := parallel.ForEach(rf.NEstimators, func(i int) error {
		t := tree.NewDecisionTreeClassifier(rf.treeOptions(nFeatures, seeds[i])...)
		trees[i] = t
		return t.FitSample(Xd, target, sampleRows(n, rf.Bootstrap, seeds[i]), classes)
	})
	if err := parallel.FirstError(errs); err != nil {
		return errors.Wrap(err, "failed to grow tree")
	}

	rf.Trees = trees
	rf.Classes = classes
	rf.NFeatures = nFeatures
	perTree := make([][]float64, len(trees))
	for i, t := range trees {
		perTree[i] = t.Importances
	}
	rf.Importances = meanImportances(perTree, nFeatures)
	rf.SetFitted()

	log.GetLoggerWithName("RandomForestClassifier").Debug("forest grown",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, nFeatures,
		"n_estimators", rf.NEstimators,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// PredictProba returns the mean class probabilities over all trees.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "RandomForestClassifier.PredictProba")
	if !rf.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestClassifier", "PredictProba")
	}
	r, c := X.Dims()
	if c != rf.NFeatures {
		return nil, errors.NewDimensionError("RandomForestClassifier.PredictProba", rf.NFeatures, c, 1)
	}
	sum := mat.NewDense(r, len(rf.Classes), nil)
	for _, t := range rf.Trees {
		p, err := t.PredictProba(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, p)
	}
	sum.Scale(1/float64(len(rf.Trees)), sum)
	return sum, nil
}

// Predict returns the class with the highest mean probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Predict")
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, _ := proba.Dims()
	out := mat.NewVecDense(r, nil)
	dense := proba.(*mat.Dense)
	for i := 0; i < r; i++ {
		row := dense.RawRowView(i)
		best := 0
		for k := range row {
			if row[k] > row[best] {
				best = k
			}
		}
		out.SetVec(i, rf.Classes[best])
	}
	return out, nil
}

// FeatureImportances returns the mean impurity-decrease importances.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	return append([]float64(nil), rf.Importances...)
}

func (rf *RandomForestClassifier) String() string {
	return fmt.Sprintf("RandomForestClassifier(n_estimators=%d, max_depth=%d, max_features=%s)",
		rf.NEstimators, rf.MaxDepth, rf.MaxFeatures)
}

// RandomForestRegressor averages the predictions of bagged regression trees.
type RandomForestRegressor struct {
	model.BaseEstimator
	ForestParams

	Trees       []*tree.DecisionTreeRegressor
	NFeatures   int
	Importances []float64
}

// NewRandomForestRegressor creates a forest that considers every feature per split.
func NewRandomForestRegressor(opts ...ForestOption) *RandomForestRegressor {
	return &RandomForestRegressor{ForestParams: newForestParams(MaxFeaturesAll, opts)}
}

// Fit grows NEstimators regression trees in parallel.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")
	if err := rf.validate(); err != nil {
		return err
	}
	Xd, target, err := checkXY("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	n, nFeatures := Xd.Dims()
	seeds := rf.treeSeeds()

	trees := make([]*tree.DecisionTreeRegressor, rf.NEstimators)
	errs := parallel.ForEach(rf.NEstimators, func(i int) error {
		t := tree.NewDecisionTreeRegressor(rf.treeOptions(nFeatures, seeds[i])...)
		trees[i] = t
		return t.FitSample(Xd, target, sampleRows(n, rf.Bootstrap, seeds[i]))
	})
	if err := parallel.FirstError(errs); err != nil {
		return errors.Wrap(err, "failed to grow tree")
	}

	rf.Trees = trees
	rf.NFeatures = nFeatures
	perTree := make([][]float64, len(trees))
	for i, t := range trees {
		perTree[i] = t.Importances
	}
	rf.Importances = meanImportances(perTree, nFeatures)
	rf.SetFitted()
	return nil
}

// Predict returns the mean tree prediction.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Predict")
	if !rf.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "Predict")
	}
	r, c := X.Dims()
	if c != rf.NFeatures {
		return nil, errors.NewDimensionError("RandomForestRegressor.Predict", rf.NFeatures, c, 1)
	}
	sum := mat.NewVecDense(r, nil)
	for _, t := range rf.Trees {
		p, err := t.Predict(X)
		if err != nil {
			return nil, err
		}
		sum.AddVec(sum, p.(*mat.VecDense))
	}
	sum.ScaleVec(1/float64(len(rf.Trees)), sum)
	return sum, nil
}

// FeatureImportances returns the mean variance-reduction importances.
func (rf *RandomForestRegressor) FeatureImportances() []float64 {
	return append([]float64(nil), rf.Importances...)
}

func (rf *RandomForestRegressor) String() string {
	return fmt.Sprintf("RandomForestRegressor(n_estimators=%d, max_depth=%d)", rf.NEstimators, rf.MaxDepth)
}
