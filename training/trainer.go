package training

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/core/model"
	"github.com/ezoic/medscore/metrics"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/pkg/log"
	"github.com/ezoic/medscore/preprocessing"
	"github.com/ezoic/medscore/sklearn/model_selection"
	"github.com/ezoic/medscore/sklearn/pipeline"
)

// StepPreprocess is the pipeline step holding the preprocessor.
const StepPreprocess = "pre"

// Trainer runs one training protocol. The zero value is not usable; create
// trainers with NewTrainer.
type Trainer struct {
	Task             Task
	Family           string
	Seed             int64
	TestSize         float64
	SearchIterations int
	CVFolds          int
	LabelPolicy      LabelPolicy
	ProxyColumn      string
	Preprocessing    []preprocessing.PreprocessorOption

	logger log.Logger
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithTask sets the task (default classification).
func WithTask(task Task) TrainerOption {
	return func(t *Trainer) { t.Task = task }
}

// WithEstimatorFamily sets the requested estimator family (default random_forest).
func WithEstimatorFamily(family string) TrainerOption {
	return func(t *Trainer) { t.Family = family }
}

// WithSeed sets the seed of the split, the search and the estimators.
func WithSeed(seed int64) TrainerOption {
	return func(t *Trainer) { t.Seed = seed }
}

// WithTestSize sets the hold-out fraction.
func WithTestSize(size float64) TrainerOption {
	return func(t *Trainer) { t.TestSize = size }
}

// WithSearchIterations sets the number of sampled candidates.
func WithSearchIterations(n int) TrainerOption {
	return func(t *Trainer) { t.SearchIterations = n }
}

// WithCVFolds sets the number of cross-validation folds.
func WithCVFolds(k int) TrainerOption {
	return func(t *Trainer) { t.CVFolds = k }
}

// WithLabelPolicy sets the degenerate label policy.
func WithLabelPolicy(p LabelPolicy) TrainerOption {
	return func(t *Trainer) { t.LabelPolicy = p }
}

// WithProxyColumn sets the column thresholded by the proxy label policy.
func WithProxyColumn(column string) TrainerOption {
	return func(t *Trainer) { t.ProxyColumn = column }
}

// WithPreprocessorOptions passes options to preprocessing.NewPreprocessor.
func WithPreprocessorOptions(opts ...preprocessing.PreprocessorOption) TrainerOption {
	return func(t *Trainer) { t.Preprocessing = append(t.Preprocessing, opts...) }
}

// WithLogger sets the logger; the default comes from the global provider.
func WithLogger(logger log.Logger) TrainerOption {
	return func(t *Trainer) { t.logger = logger }
}

// NewTrainer creates a trainer with seed 42, a 20% hold-out, 3 search
// iterations over 3 folds and the proxy label policy on "glucose".
func NewTrainer(opts ...TrainerOption) *Trainer {
	t := &Trainer{
		Task:             TaskClassification,
		Family:           FamilyRandomForest,
		Seed:             42,
		TestSize:         0.2,
		SearchIterations: 3,
		CVFolds:          3,
		LabelPolicy:      LabelPolicyProxy,
		ProxyColumn:      defaultProxyColumn,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Trainer) getLogger() log.Logger {
	if t.logger == nil {
		t.logger = log.GetLoggerWithName("Trainer")
	}
	return t.logger
}

// Result is a fitted pipeline and its evaluation.
type Result struct {
	Pipeline   *pipeline.Pipeline
	Evaluation *Evaluation
}

// run carries the state of one Train call.
type run struct {
	ev     *Evaluation
	spec   EstimatorSpec
	logger log.Logger
}

func (r *run) enter(phase Phase, fields ...any) {
	r.ev.Phases = append(r.ev.Phases, phase)
	r.logger.Info("training phase", append([]any{log.PhaseKey, string(phase)}, fields...)...)
}

// Train fits a pipeline predicting target from the other columns of X.
//
// Rows with a missing target are dropped. Classification targets must be
// binary; a single-class target is handled by the label policy. The search
// stage never fails the run: any error it raises switches to a sweep over the
// same candidates scored on the hold-out split.
func (t *Trainer) Train(ctx context.Context, X *frame.Frame, target string) (_ *Result, err error) {
	defer errors.Recover(&err, "Trainer.Train")
	runID := uuid.NewString()
	r := &run{
		ev: &Evaluation{
			RunID:     runID,
			Task:      t.Task,
			Target:    target,
			StartedAt: time.Now().UTC(),
		},
		logger: t.getLogger().With(log.RunIDKey, runID, log.TaskKey, string(t.Task)),
	}
	if t.Task != TaskClassification && t.Task != TaskRegression {
		return nil, errors.NewConfigurationError("Trainer.Train", "task", "unknown task type "+string(t.Task))
	}
	if r.spec, err = ResolveFamily(t.Task, t.Family, t.Seed); err != nil {
		return nil, err
	}
	r.ev.RequestedFamily, r.ev.Family = r.spec.Requested, r.spec.Resolved

	features, y, err := t.prepareTarget(r, X, target)
	if err != nil {
		return nil, err
	}

	r.enter(PhaseSplit, log.SamplesKey, len(y), log.FamilyKey, r.spec.Resolved)
	train, test, err := t.split(r, y)
	if err != nil {
		return nil, err
	}
	Xtr, ytr := features.Rows(train), take(y, train)
	Xte, yte := features.Rows(test), take(y, test)
	r.ev.TrainSize, r.ev.TestSize = len(train), len(test)

	r.enter(PhaseSearch, log.HyperParamsKey, r.spec.Grid)
	best, params, err := t.search(ctx, r, Xtr, ytr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logger.Warn("hyperparameter search failed, running fallback sweep",
			log.TrainingPathKey, SearchPathFallback,
			log.ErrorTypeKey, errors.Kind(err),
			log.ErrAttrKey, err,
		)
		r.enter(PhaseSearchFallback, log.TrainingPathKey, SearchPathFallback)
		r.ev.SearchPath = SearchPathFallback
		if best, params, err = t.fallback(ctx, r, Xtr, ytr, Xte, yte); err != nil {
			return nil, err
		}
	} else {
		r.enter(PhaseSearchOK, log.TrainingPathKey, SearchPathSearch)
		r.ev.SearchPath = SearchPathSearch
	}
	r.ev.BestParams = params

	r.enter(PhaseEvaluate)
	if err := t.evaluate(r, best, Xte, yte, y); err != nil {
		return nil, err
	}

	r.ev.FinishedAt = time.Now().UTC()
	r.enter(PhaseDone, log.DurationMsKey, r.ev.FinishedAt.Sub(r.ev.StartedAt).Milliseconds())
	return &Result{Pipeline: best, Evaluation: r.ev}, nil
}

// prepareTarget separates the target, drops rows where it is missing and
// applies the label policy to degenerate classification targets.
func (t *Trainer) prepareTarget(r *run, X *frame.Frame, target string) (*frame.Frame, []float64, error) {
	const op = "Trainer.Train"
	col := X.Column(target)
	if col == nil {
		return nil, nil, errors.NewConfigurationError(op, target, "target column not found")
	}
	features := X.Drop(target)

	var y []float64
	if t.Task == TaskClassification {
		codes, classes, err := EncodeBinaryTarget(col)
		if err != nil {
			return nil, nil, err
		}
		y, r.ev.Classes = codes, classes
	} else {
		y = X.Floats(target)
	}

	keep := make([]int, 0, len(y))
	for i, v := range y {
		if !math.IsNaN(v) {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return nil, nil, errors.NewConfigurationError(op, target, "target has no usable values")
	}
	if len(keep) < len(y) {
		r.logger.Info("dropped rows with missing target", "rows.dropped", len(y)-len(keep))
		features, y = features.Rows(keep), take(y, keep)
	}

	r.ev.LabelSource = LabelSourceObserved
	if t.Task == TaskClassification && !twoClasses(y) {
		var err error
		features, y, r.ev.LabelSource, err = applyLabelPolicy(features, t.LabelPolicy, t.ProxyColumn, t.Seed, r.logger)
		if err != nil {
			return nil, nil, err
		}
		r.ev.Classes = []string{"0", "1"}
	}
	return features, y, nil
}

// split holds out TestSize of the rows, stratified for classification. A
// stratified split that cannot be made falls back to a plain one.
func (t *Trainer) split(r *run, y []float64) ([]int, []int, error) {
	if t.Task == TaskClassification {
		train, test, err := model_selection.TrainTestSplit(len(y), t.TestSize, t.Seed, y)
		if err == nil {
			return train, test, nil
		}
		r.logger.Warn("stratified split failed, using plain split", log.ErrAttrKey, err)
	}
	train, test, err := model_selection.TrainTestSplit(len(y), t.TestSize, t.Seed, nil)
	if err != nil {
		return nil, nil, errors.NewConfigurationError("Trainer.split", "test_size", err.Error())
	}
	return train, test, nil
}

func (t *Trainer) factory(spec EstimatorSpec) model_selection.Factory {
	return func() *pipeline.Pipeline {
		return pipeline.New(
			pipeline.Step{Name: StepPreprocess, Estimator: preprocessing.NewPreprocessor(t.Preprocessing...)},
			pipeline.Step{Name: spec.Step, Estimator: spec.New()},
		)
	}
}

func (t *Trainer) scoring() (model_selection.Splitter, model_selection.Scorer) {
	if t.Task == TaskClassification {
		return model_selection.NewStratifiedKFold(t.CVFolds, true, t.Seed), model_selection.ROCAUC
	}
	return model_selection.NewKFold(t.CVFolds, true, t.Seed), model_selection.NegMeanAbsoluteError
}

func (t *Trainer) search(ctx context.Context, r *run, X *frame.Frame, y []float64) (*pipeline.Pipeline, map[string]interface{}, error) {
	cv, scorer := t.scoring()
	s := model_selection.NewRandomizedSearchCV(r.spec.Resolved, t.factory(r.spec), r.spec.Grid,
		t.SearchIterations, cv, scorer, t.Seed)
	if err := s.Fit(ctx, X, y); err != nil {
		return nil, nil, err
	}
	return s.BestEstimator, s.BestParams, nil
}

// fallback refits every sampled candidate on the training split and keeps the
// one with the best hold-out AUC (classification) or lowest MAE (regression).
// Candidates that fail to fit are skipped.
func (t *Trainer) fallback(ctx context.Context, r *run, Xtr *frame.Frame, ytr []float64, Xte *frame.Frame, yte []float64) (*pipeline.Pipeline, map[string]interface{}, error) {
	candidates, err := model_selection.NewParameterSampler(r.spec.Grid, t.SearchIterations, t.Seed).Candidates()
	if err != nil {
		return nil, nil, err
	}
	_, scorer := t.scoring()
	newPipeline := t.factory(r.spec)

	var (
		best       *pipeline.Pipeline
		bestParams map[string]interface{}
		bestScore  = math.Inf(-1)
		lastErr    error
	)
	for _, params := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		p := newPipeline()
		if err := p.SetParams(params); err != nil {
			lastErr = err
			continue
		}
		if err := p.Fit(Xtr, ytr); err != nil {
			lastErr = err
			r.logger.Warn("fallback candidate failed", log.HyperParamsKey, params, log.ErrAttrKey, err)
			continue
		}
		score, err := scorer(p, Xte, yte)
		if err != nil {
			lastErr = err
			continue
		}
		if best == nil || score > bestScore {
			best, bestParams, bestScore = p, params, score
		}
	}
	if best == nil {
		if lastErr == nil {
			lastErr = errors.New("no candidates")
		}
		return nil, nil, errors.Wrap(lastErr, "every fallback candidate failed")
	}
	return best, bestParams, nil
}

func (t *Trainer) evaluate(r *run, best *pipeline.Pipeline, Xte *frame.Frame, yte, yAll []float64) error {
	yTrue := mat.NewVecDense(len(yte), yte)
	if t.Task == TaskClassification {
		out, err := best.ContinuousOutput(Xte)
		if err != nil {
			return errors.Wrap(err, "hold-out scoring failed")
		}
		scores := out.Values
		if out.Kind != pipeline.OutputProba {
			if scores, err = preprocessing.ProbabilityLike(scores); err != nil {
				return err
			}
		}
		s := mat.NewVecDense(len(scores), scores)
		m := &ClassificationMetrics{Prevalence: stat.Mean(yAll, nil)}
		if m.AUC, err = metrics.AUC(yTrue, s); err != nil {
			return err
		}
		if m.Threshold, m.F1, err = metrics.BestF1Threshold(yTrue, s); err != nil {
			return err
		}
		pred := mat.NewVecDense(len(scores), nil)
		for i, v := range scores {
			if v >= m.Threshold {
				pred.SetVec(i, 1)
			}
		}
		if m.Report, err = metrics.ClassificationReport(yTrue, pred); err != nil {
			return err
		}
		r.ev.Classification = m
		r.logger.Info("hold-out evaluation",
			log.AUCKey, m.AUC,
			log.ThresholdKey, m.Threshold,
			"metrics.prevalence", m.Prevalence,
		)
	} else {
		predM, err := best.Predict(Xte)
		if err != nil {
			return errors.Wrap(err, "hold-out prediction failed")
		}
		rows, _ := predM.Dims()
		pred := mat.NewVecDense(rows, mat.Col(nil, 0, predM))
		m := &RegressionMetrics{}
		if m.MAE, err = metrics.MAE(yTrue, pred); err != nil {
			return err
		}
		if m.R2, err = metrics.R2Score(yTrue, pred); err != nil {
			return err
		}
		if m.ExplainedVariance, err = metrics.ExplainedVarianceScore(yTrue, pred); err != nil {
			return err
		}
		r.ev.Regression = m
		r.logger.Info("hold-out evaluation", log.MAEKey, m.MAE, log.R2ScoreKey, m.R2)
	}

	if pre, ok := best.NamedSteps()[StepPreprocess].(*pipeline.Pipeline); ok {
		r.ev.DroppedIdentifiers, r.ev.DroppedLeakage = preprocessing.DroppedColumns(pre)
	}
	r.ev.FeatureNames = best.FeatureNamesOut()
	if imp, ok := best.Final().(model.FeatureImportancer); ok {
		r.ev.setImportances(r.ev.FeatureNames, imp.FeatureImportances())
	}
	return nil
}

func take(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, r := range idx {
		out[i] = y[r]
	}
	return out
}

// String summarises the trainer configuration.
func (t *Trainer) String() string {
	return fmt.Sprintf("Trainer(task=%s, family=%s, seed=%d, label_policy=%s)", t.Task, t.Family, t.Seed, t.LabelPolicy)
}
