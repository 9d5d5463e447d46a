package model_selection

import (
	"context"
	"math"
	"time"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/core/parallel"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/pkg/log"
	"github.com/ezoic/medscore/sklearn/pipeline"
)

// Factory returns a fresh, unfitted pipeline. Every fold of every candidate
// fits its own instance.
type Factory func() *pipeline.Pipeline

// CandidateResult is the cross-validated score of one parameter combination.
type CandidateResult struct {
	Params     map[string]interface{}
	FoldScores []float64
	MeanScore  float64
}

// RandomizedSearchCV fits NIter sampled grid combinations on every CV fold in
// parallel, keeps the combination with the highest mean score and refits it on
// all rows.
type RandomizedSearchCV struct {
	Name        string // estimator family, used in errors and logs
	Factory     Factory
	Grid        Grid
	NIter       int
	CV          Splitter
	Scoring     Scorer
	RandomState int64

	Results       []CandidateResult
	BestIndex     int
	BestParams    map[string]interface{}
	BestScore     float64
	BestEstimator *pipeline.Pipeline

	logger log.Logger
}

// NewRandomizedSearchCV creates a search.
func NewRandomizedSearchCV(name string, factory Factory, grid Grid, nIter int, cv Splitter, scoring Scorer, randomState int64) *RandomizedSearchCV {
	return &RandomizedSearchCV{
		Name:        name,
		Factory:     factory,
		Grid:        grid,
		NIter:       nIter,
		CV:          cv,
		Scoring:     scoring,
		RandomState: randomState,
	}
}

func (s *RandomizedSearchCV) getLogger() log.Logger {
	if s.logger == nil {
		s.logger = log.GetLoggerWithName("RandomizedSearchCV")
	}
	return s.logger
}

// Fit runs the search. Every error, including splitter and scorer failures and
// panics inside estimators, is returned as a SearchFailure.
func (s *RandomizedSearchCV) Fit(ctx context.Context, X *frame.Frame, y []float64) (err error) {
	defer func() {
		if err != nil && !errors.IsSearchFailure(err) {
			err = errors.NewSearchFailure(s.Name, err)
		}
	}()
	defer errors.Recover(&err, "RandomizedSearchCV.Fit")

	if s.Factory == nil || s.CV == nil || s.Scoring == nil {
		return errors.NewValidationError("search", "factory, cv and scoring are required", s.Name)
	}
	if X.NRows() != len(y) {
		return errors.NewDimensionError("RandomizedSearchCV.Fit", X.NRows(), len(y), 0)
	}
	candidates, err := NewParameterSampler(s.Grid, s.NIter, s.RandomState).Candidates()
	if err != nil {
		return err
	}
	folds, err := s.CV.Split(len(y), y)
	if err != nil {
		return err
	}

	start := time.Now()
	nFolds := len(folds)
	scores := make([]float64, len(candidates)*nFolds)
	errs := parallel.ForEach(len(scores), func(i int) (err error) {
		defer errors.Recover(&err, "RandomizedSearchCV.fold")
		if err := ctx.Err(); err != nil {
			return err
		}
		fold := folds[i%nFolds]
		scores[i], err = s.fitAndScore(candidates[i/nFolds], X, y, fold)
		return err
	})
	if err := parallel.FirstError(errs); err != nil {
		return err
	}

	s.Results = make([]CandidateResult, len(candidates))
	s.BestIndex = -1
	s.BestScore = math.Inf(-1)
	for c, params := range candidates {
		foldScores := scores[c*nFolds : (c+1)*nFolds]
		mean := 0.0
		for _, v := range foldScores {
			mean += v
		}
		mean /= float64(nFolds)
		s.Results[c] = CandidateResult{Params: params, FoldScores: append([]float64(nil), foldScores...), MeanScore: mean}
		if mean > s.BestScore {
			s.BestIndex, s.BestScore = c, mean
		}
	}
	if s.BestIndex < 0 {
		return errors.NewValueError("RandomizedSearchCV.Fit", "no candidate produced a finite score")
	}
	s.BestParams = candidates[s.BestIndex]

	best := s.Factory()
	if err := best.SetParams(s.BestParams); err != nil {
		return err
	}
	if err := best.Fit(X, y); err != nil {
		return errors.Wrap(err, "refit of best candidate failed")
	}
	s.BestEstimator = best

	s.getLogger().Info("search completed",
		log.OperationKey, log.OperationSearch,
		log.FamilyKey, s.Name,
		"candidates", len(candidates),
		"folds", nFolds,
		"best_score", s.BestScore,
		log.HyperParamsKey, s.BestParams,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *RandomizedSearchCV) fitAndScore(params map[string]interface{}, X *frame.Frame, y []float64, fold Fold) (float64, error) {
	est := s.Factory()
	if err := est.SetParams(params); err != nil {
		return 0, err
	}
	if err := est.Fit(X.Rows(fold.Train), take(y, fold.Train)); err != nil {
		return 0, err
	}
	return s.Scoring(est, X.Rows(fold.Test), take(y, fold.Test))
}

func take(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, r := range idx {
		out[i] = y[r]
	}
	return out
}
