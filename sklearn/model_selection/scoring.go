package model_selection

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/metrics"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/sklearn/pipeline"
)

// Scoring names.
const (
	ScoringROCAUC = "roc_auc"
	ScoringNegMAE = "neg_mean_absolute_error"
)

// Scorer evaluates a fitted pipeline on held-out rows; greater is better.
type Scorer func(p *pipeline.Pipeline, X *frame.Frame, y []float64) (float64, error)

// ROCAUC scores 0/1 targets by the area under the ROC curve of the pipeline's
// continuous output. AUC only depends on ranks, so probabilities, decision
// scores and point predictions are all usable.
func ROCAUC(p *pipeline.Pipeline, X *frame.Frame, y []float64) (float64, error) {
	out, err := p.ContinuousOutput(X)
	if err != nil {
		return 0, err
	}
	return metrics.AUC(mat.NewVecDense(len(y), y), mat.NewVecDense(len(out.Values), out.Values))
}

// NegMeanAbsoluteError scores regressors by -MAE.
func NegMeanAbsoluteError(p *pipeline.Pipeline, X *frame.Frame, y []float64) (float64, error) {
	pred, err := p.Predict(X)
	if err != nil {
		return 0, err
	}
	rows, _ := pred.Dims()
	mae, err := metrics.MAE(mat.NewVecDense(len(y), y), mat.NewVecDense(rows, mat.Col(nil, 0, pred)))
	return -mae, err
}

// ScorerFor returns the scorer registered under name.
func ScorerFor(name string) (Scorer, error) {
	switch name {
	case ScoringROCAUC:
		return ROCAUC, nil
	case ScoringNegMAE:
		return NegMeanAbsoluteError, nil
	}
	return nil, errors.NewValidationError("scoring", "unknown scorer", name)
}
