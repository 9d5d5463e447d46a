package ensemble

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/core/model"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/pkg/log"
	"github.com/ezoic/medscore/sklearn/tree"
)

func init() {
	model.Register(&GradientBoostingClassifier{}, &GradientBoostingRegressor{})
}

// BoostingParams holds the hyperparameters shared by both boosters.
type BoostingParams struct {
	NEstimators    int
	LearningRate   float64
	MaxDepth       int
	MinSamplesLeaf int
	Subsample      float64 // row fraction drawn without replacement per round
	Lambda         float64 // L2 penalty on leaf values
	RandomState    int64
}

// BoostingOption is a functional option for both boosters.
type BoostingOption func(*BoostingParams)

// WithBoostingRounds sets the number of trees.
func WithBoostingRounds(n int) BoostingOption {
	return func(p *BoostingParams) { p.NEstimators = n }
}

// WithLearningRate sets the shrinkage applied to every tree.
func WithLearningRate(rate float64) BoostingOption {
	return func(p *BoostingParams) { p.LearningRate = rate }
}

// WithBoostingDepth sets the depth of every tree.
func WithBoostingDepth(depth int) BoostingOption {
	return func(p *BoostingParams) { p.MaxDepth = depth }
}

// WithSubsample sets the per-round row fraction.
func WithSubsample(fraction float64) BoostingOption {
	return func(p *BoostingParams) { p.Subsample = fraction }
}

// WithBoostingSeed sets the random seed.
func WithBoostingSeed(seed int64) BoostingOption {
	return func(p *BoostingParams) { p.RandomState = seed }
}

func newBoostingParams(opts []BoostingOption) BoostingParams {
	p := BoostingParams{
		NEstimators:    100,
		LearningRate:   0.1,
		MaxDepth:       3,
		MinSamplesLeaf: 1,
		Subsample:      1,
		Lambda:         1,
		RandomState:    -1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// GetParams returns the boosting hyperparameters.
func (p *BoostingParams) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     p.NEstimators,
		"learning_rate":    p.LearningRate,
		"max_depth":        p.MaxDepth,
		"min_samples_leaf": p.MinSamplesLeaf,
		"subsample":        p.Subsample,
		"reg_lambda":       p.Lambda,
		"random_state":     p.RandomState,
	}
}

// SetParams sets the boosting hyperparameters.
func (p *BoostingParams) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "n_estimators":
			p.NEstimators, err = model.IntParam(key, value)
		case "learning_rate":
			p.LearningRate, err = model.FloatParam(key, value)
		case "max_depth":
			p.MaxDepth, err = model.IntParam(key, value)
		case "min_samples_leaf":
			p.MinSamplesLeaf, err = model.IntParam(key, value)
		case "subsample":
			p.Subsample, err = model.FloatParam(key, value)
		case "reg_lambda":
			p.Lambda, err = model.FloatParam(key, value)
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

func (p *BoostingParams) validate() error {
	switch {
	case p.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be at least 1", p.NEstimators)
	case p.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	case p.Subsample <= 0 || p.Subsample > 1:
		return errors.NewValidationError("subsample", "must be in (0, 1]", p.Subsample)
	case p.Lambda < 0:
		return errors.NewValidationError("reg_lambda", "must be non-negative", p.Lambda)
	}
	return nil
}

// objective gives the gradient and hessian of the loss at a raw score.
type objective func(raw, target float64) (grad, hess float64)

func squaredError(raw, target float64) (float64, float64) { return raw - target, 1 }

func binaryLogloss(raw, target float64) (float64, float64) {
	p := sigmoid(raw)
	return p - target, math.Max(p*(1-p), 1e-16)
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// boost fits NEstimators regression trees to the negative gradients of obj,
// then sets every leaf to the Newton step -G/(H+lambda) over its rows.
func (p *BoostingParams) boost(X *mat.Dense, y []float64, init float64, obj objective) ([]*tree.DecisionTreeRegressor, [][]float64) {
	n, _ := X.Dims()
	rng := rand.New(rand.NewSource(tree.NewSeed(p.RandomState)))
	raw := make([]float64, n)
	floats.AddConst(init, raw)
	grad := make([]float64, n)
	hess := make([]float64, n)
	residual := make([]float64, n)
	sampleSize := max(1, int(math.Round(p.Subsample*float64(n))))

	trees := make([]*tree.DecisionTreeRegressor, 0, p.NEstimators)
	importances := make([][]float64, 0, p.NEstimators)
	for round := 0; round < p.NEstimators; round++ {
		for i := range raw {
			grad[i], hess[i] = obj(raw[i], y[i])
			residual[i] = -grad[i]
		}
		rows := rng.Perm(n)[:sampleSize]

		t := tree.NewDecisionTreeRegressor(
			tree.WithMaxDepth(p.MaxDepth),
			tree.WithMinSamplesLeaf(p.MinSamplesLeaf),
			tree.WithRandomState(rng.Int63()),
		)
		if err := t.FitSample(X, residual, rows); err != nil {
			// FitSample only fails on an empty sample, which sampleSize rules out.
			panic(err)
		}

		type sums struct{ g, h float64 }
		leaves := make(map[*tree.TreeNode]*sums)
		for _, i := range rows {
			leaf := t.Leaf(X, i)
			s := leaves[leaf]
			if s == nil {
				s = &sums{}
				leaves[leaf] = s
			}
			s.g += grad[i]
			s.h += hess[i]
		}
		for leaf, s := range leaves {
			leaf.Value[0] = -s.g / (s.h + p.Lambda)
		}

		for i := range raw {
			raw[i] += p.LearningRate * t.Leaf(X, i).Value[0]
		}
		trees = append(trees, t)
		importances = append(importances, t.Importances)
	}
	return trees, importances
}

// rawScores returns init plus the shrunken sum of tree outputs.
func rawScores(X mat.Matrix, trees []*tree.DecisionTreeRegressor, init, shrinkage float64) []float64 {
	n, _ := X.Dims()
	raw := make([]float64, n)
	for i := range raw {
		raw[i] = init
		for _, t := range trees {
			raw[i] += shrinkage * t.Leaf(X, i).Value[0]
		}
	}
	return raw
}

// GradientBoostingClassifier is a binary classifier boosted on log loss.
type GradientBoostingClassifier struct {
	model.BaseEstimator
	BoostingParams

	Trees       []*tree.DecisionTreeRegressor
	Classes     []float64
	InitScore   float64
	Shrinkage   float64
	NFeatures   int
	Importances []float64
}

// NewGradientBoostingClassifier creates a booster with 100 depth-3 trees at
// learning rate 0.1.
func NewGradientBoostingClassifier(opts ...BoostingOption) *GradientBoostingClassifier {
	return &GradientBoostingClassifier{BoostingParams: newBoostingParams(opts)}
}

// Fit boosts from the log-odds of the positive class.
func (gb *GradientBoostingClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingClassifier.Fit")
	if err := gb.validate(); err != nil {
		return err
	}
	Xd, target, err := checkXY("GradientBoostingClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	classes := tree.UniqueLabels(target)
	if len(classes) != 2 {
		return errors.NewValueError("GradientBoostingClassifier.Fit", "only binary targets are supported")
	}
	coded := make([]float64, len(target))
	for i, v := range target {
		if v == classes[1] {
			coded[i] = 1
		}
	}
	start := time.Now()
	prior := floats.Sum(coded) / float64(len(coded))
	init := math.Log(prior / (1 - prior))

	trees, perTree := gb.boost(Xd, coded, init, binaryLogloss)
	_, nFeatures := Xd.Dims()
	gb.Trees = trees
	gb.Classes = classes
	gb.InitScore = init
	gb.Shrinkage = gb.LearningRate
	gb.NFeatures = nFeatures
	gb.Importances = meanImportances(perTree, nFeatures)
	gb.SetFitted()

	log.GetLoggerWithName("GradientBoostingClassifier").Debug("booster fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, len(target),
		log.FeaturesKey, nFeatures,
		"n_estimators", gb.NEstimators,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (gb *GradientBoostingClassifier) check(X mat.Matrix, op string) error {
	if !gb.IsFitted() {
		return errors.NewNotFittedError("GradientBoostingClassifier", op)
	}
	if _, c := X.Dims(); c != gb.NFeatures {
		return errors.NewDimensionError("GradientBoostingClassifier."+op, gb.NFeatures, c, 1)
	}
	return nil
}

// DecisionFunction returns the raw log-odds score.
func (gb *GradientBoostingClassifier) DecisionFunction(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "GradientBoostingClassifier.DecisionFunction")
	if err := gb.check(X, "DecisionFunction"); err != nil {
		return nil, err
	}
	raw := rawScores(X, gb.Trees, gb.InitScore, gb.Shrinkage)
	return mat.NewVecDense(len(raw), raw), nil
}

// PredictProba returns [P(classes[0]), P(classes[1])] per row.
func (gb *GradientBoostingClassifier) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "GradientBoostingClassifier.PredictProba")
	if err := gb.check(X, "PredictProba"); err != nil {
		return nil, err
	}
	raw := rawScores(X, gb.Trees, gb.InitScore, gb.Shrinkage)
	out := mat.NewDense(len(raw), 2, nil)
	for i, r := range raw {
		p := sigmoid(r)
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// Predict returns the more probable class.
func (gb *GradientBoostingClassifier) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "GradientBoostingClassifier.Predict")
	if err := gb.check(X, "Predict"); err != nil {
		return nil, err
	}
	raw := rawScores(X, gb.Trees, gb.InitScore, gb.Shrinkage)
	out := mat.NewVecDense(len(raw), nil)
	for i, r := range raw {
		out.SetVec(i, gb.Classes[0])
		if r > 0 {
			out.SetVec(i, gb.Classes[1])
		}
	}
	return out, nil
}

// FeatureImportances returns the mean per-tree variance-reduction importances.
func (gb *GradientBoostingClassifier) FeatureImportances() []float64 {
	return append([]float64(nil), gb.Importances...)
}

func (gb *GradientBoostingClassifier) String() string {
	return fmt.Sprintf("GradientBoostingClassifier(n_estimators=%d, learning_rate=%g, max_depth=%d)",
		gb.NEstimators, gb.LearningRate, gb.MaxDepth)
}

// GradientBoostingRegressor is boosted on squared error from the target mean.
type GradientBoostingRegressor struct {
	model.BaseEstimator
	BoostingParams

	Trees       []*tree.DecisionTreeRegressor
	InitScore   float64
	Shrinkage   float64
	NFeatures   int
	Importances []float64
}

// NewGradientBoostingRegressor creates a booster with 100 depth-3 trees at
// learning rate 0.1.
func NewGradientBoostingRegressor(opts ...BoostingOption) *GradientBoostingRegressor {
	return &GradientBoostingRegressor{BoostingParams: newBoostingParams(opts)}
}

// Fit boosts from the target mean.
func (gb *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")
	if err := gb.validate(); err != nil {
		return err
	}
	Xd, target, err := checkXY("GradientBoostingRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	init := floats.Sum(target) / float64(len(target))
	trees, perTree := gb.boost(Xd, target, init, squaredError)
	_, nFeatures := Xd.Dims()
	gb.Trees = trees
	gb.InitScore = init
	gb.Shrinkage = gb.LearningRate
	gb.NFeatures = nFeatures
	gb.Importances = meanImportances(perTree, nFeatures)
	gb.SetFitted()
	return nil
}

// Predict returns the boosted prediction.
func (gb *GradientBoostingRegressor) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Predict")
	if !gb.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingRegressor", "Predict")
	}
	if _, c := X.Dims(); c != gb.NFeatures {
		return nil, errors.NewDimensionError("GradientBoostingRegressor.Predict", gb.NFeatures, c, 1)
	}
	raw := rawScores(X, gb.Trees, gb.InitScore, gb.Shrinkage)
	return mat.NewVecDense(len(raw), raw), nil
}

// FeatureImportances returns the mean per-tree variance-reduction importances.
func (gb *GradientBoostingRegressor) FeatureImportances() []float64 {
	return append([]float64(nil), gb.Importances...)
}

func (gb *GradientBoostingRegressor) String() string {
	return fmt.Sprintf("GradientBoostingRegressor(n_estimators=%d, learning_rate=%g, max_depth=%d)",
		gb.NEstimators, gb.LearningRate, gb.MaxDepth)
}
