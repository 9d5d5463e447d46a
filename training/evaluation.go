package training

import (
	"sort"
	"time"

	"github.com/ezoic/medscore/metrics"
)

// Phase is a state of the training run.
type Phase string

const (
	PhaseSplit          Phase = "SPLIT"
	PhaseSearch         Phase = "SEARCH"
	PhaseSearchOK       Phase = "SEARCH_OK"
	PhaseSearchFallback Phase = "SEARCH_FALLBACK"
	PhaseEvaluate       Phase = "EVALUATE"
	PhaseDone           Phase = "DONE"
)

// Search paths recorded in Evaluation.SearchPath.
const (
	SearchPathSearch   = "search"
	SearchPathFallback = "fallback"
)

// ClassificationMetrics are hold-out metrics of a binary classifier. Scores
// are probabilities, or min-max normalised decision values or predictions.
type ClassificationMetrics struct {
	AUC        float64         `json:"auc"`
	Threshold  float64         `json:"best_threshold"`
	F1         float64         `json:"f1"`
	Prevalence float64         `json:"prevalence"`
	Report     *metrics.Report `json:"report"`
}

// RegressionMetrics are hold-out metrics of a regressor.
type RegressionMetrics struct {
	MAE               float64 `json:"mae"`
	R2                float64 `json:"r2"`
	ExplainedVariance float64 `json:"explained_variance"`
}

// FeatureImportance is the importance of one output feature of the
// preprocessor.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Evaluation records one training run.
type Evaluation struct {
	RunID           string                 `json:"run_id"`
	Task            Task                   `json:"task"`
	Target          string                 `json:"target"`
	RequestedFamily string                 `json:"requested_family"`
	Family          string                 `json:"family"`
	BestParams      map[string]interface{} `json:"best_params"`
	SearchPath      string                 `json:"search_path"`
	LabelSource     string                 `json:"label_source"`
	Classes         []string               `json:"classes,omitempty"`

	DroppedIdentifiers []string `json:"dropped_identifiers"`
	DroppedLeakage     []string `json:"dropped_leakage"`
	FeatureNames       []string `json:"feature_names"`
	TrainSize          int      `json:"train_size"`
	TestSize           int      `json:"test_size"`

	Classification *ClassificationMetrics `json:"classification,omitempty"`
	Regression     *RegressionMetrics     `json:"regression,omitempty"`
	Importances    []FeatureImportance    `json:"feature_importances,omitempty"`

	Phases     []Phase   `json:"phases"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Threshold returns the tuned decision threshold, or 0.5 for regressions.
func (e *Evaluation) Threshold() float64 {
	if e.Classification == nil {
		return 0.5
	}
	return e.Classification.Threshold
}

// setImportances pairs importances with feature names, most important first.
// Mismatched lengths leave the record without importances.
func (e *Evaluation) setImportances(names []string, importances []float64) {
	if len(importances) == 0 || len(names) != len(importances) {
		return
	}
	e.Importances = make([]FeatureImportance, len(names))
	for i, name := range names {
		e.Importances[i] = FeatureImportance{Feature: name, Importance: importances[i]}
	}
	sort.SliceStable(e.Importances, func(a, b int) bool {
		return e.Importances[a].Importance > e.Importances[b].Importance
	})
}
