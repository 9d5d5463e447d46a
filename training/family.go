// Package training builds, tunes and evaluates clinical outcome models.
//
// A Trainer takes a frame and a target column and walks the run through
//
//	SPLIT -> SEARCH -> (SEARCH_OK | SEARCH_FALLBACK) -> EVALUATE -> DONE
//
// producing a fitted pipeline (leakage-safe preprocessing plus estimator) and an
// Evaluation record. Service ties the trainer to the model catalog, a dataset
// source and an artifact store.
package training

import (
	"strings"

	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/pkg/log"
	"github.com/ezoic/medscore/sklearn/ensemble"
	"github.com/ezoic/medscore/sklearn/linear_model"
	"github.com/ezoic/medscore/sklearn/model_selection"
	"github.com/ezoic/medscore/sklearn/tree"
)

// Task is the learning problem of a run.
type Task string

const (
	TaskClassification Task = "classification"
	TaskRegression     Task = "regression"
)

// ParseTask accepts "classification" / "regression" and the short forms
// "clf" / "reg".
func ParseTask(s string) (Task, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "classification", "clf", "":
		return TaskClassification, nil
	case "regression", "reg":
		return TaskRegression, nil
	}
	return "", errors.NewConfigurationError("ParseTask", "task", "unknown task type "+s)
}

// Estimator family names.
const (
	FamilyRandomForest      = "random_forest"
	FamilyLogistic          = "logistic_regression"
	FamilyDecisionTree      = "decision_tree"
	FamilyPassiveAggressive = "passive_aggressive"
	FamilyElasticNet        = "elasticnet"
	FamilyLinear            = "linear_regression"
	FamilyXGBoost           = "xgboost"
	FamilyGradientBoosting  = "gradient_boosting"
)

var familyAliases = map[string]string{
	"rf":       FamilyRandomForest,
	"logistic": FamilyLogistic,
	"lr":       FamilyLogistic,
	"tree":     FamilyDecisionTree,
	"pa":       FamilyPassiveAggressive,
	"xgb":      FamilyXGBoost,
	"gbm":      FamilyGradientBoosting,
	"ols":      FamilyLinear,
	"ridge":    FamilyLinear,
}

// unavailable families are accepted and built as their substitute.
var unavailable = map[string]string{
	FamilyXGBoost: FamilyRandomForest,
}

var boostingGrid = map[string][]interface{}{
	"n_estimators":  {100, 200},
	"learning_rate": {0.05, 0.1},
	"max_depth":     {2, 3},
}

// EstimatorSpec is a resolved family: how to build a fresh estimator and the
// grid searched over it.
type EstimatorSpec struct {
	Task      Task
	Requested string
	Resolved  string
	// Step is the pipeline step name of the estimator, "clf" or "reg".
	Step string
	// Grid keys are prefixed with Step.
	Grid model_selection.Grid
	New  func() interface{}
}

// Negotiated reports whether the requested family was substituted.
func (s EstimatorSpec) Negotiated() bool { return s.Requested != s.Resolved }

func normaliseFamily(family string) string {
	f := strings.ToLower(strings.TrimSpace(family))
	if f == "" {
		return FamilyRandomForest
	}
	if canonical, ok := familyAliases[f]; ok {
		return canonical
	}
	return f
}

// ResolveFamily maps a requested family to a buildable estimator for task.
// Families this build cannot provide are negotiated to their substitute and the
// substitution is logged; families that do not fit the task are a
// ConfigurationError.
func ResolveFamily(task Task, family string, seed int64) (EstimatorSpec, error) {
	requested := normaliseFamily(family)
	resolved := requested
	if sub, ok := unavailable[requested]; ok {
		resolved = sub
		log.GetLoggerWithName("training").Warn("estimator family unavailable, using substitute",
			"family.requested", requested,
			log.FamilyKey, resolved,
			log.TaskKey, string(task),
		)
	}

	spec := EstimatorSpec{Task: task, Requested: requested, Resolved: resolved, Step: "clf"}
	if task == TaskRegression {
		spec.Step = "reg"
	}
	grid := func(g map[string][]interface{}) model_selection.Grid {
		out := make(model_selection.Grid, len(g))
		for k, v := range g {
			out[spec.Step+"__"+k] = v
		}
		return out
	}

	switch {
	case resolved == FamilyRandomForest && task == TaskClassification:
		spec.New = func() interface{} {
			return ensemble.NewRandomForestClassifier(ensemble.WithNEstimators(300), ensemble.WithRandomState(seed))
		}
		spec.Grid = grid(map[string][]interface{}{
			"n_estimators": {200, 300, 400},
			"max_depth":    {nil, 10, 20},
		})
	case resolved == FamilyRandomForest && task == TaskRegression:
		spec.New = func() interface{} {
			return ensemble.NewRandomForestRegressor(ensemble.WithNEstimators(300), ensemble.WithRandomState(seed))
		}
		spec.Grid = grid(map[string][]interface{}{
			"n_estimators": {200, 300, 400},
			"max_depth":    {nil, 10, 20},
		})
	case resolved == FamilyDecisionTree && task == TaskClassification:
		spec.New = func() interface{} { return tree.NewDecisionTreeClassifier(tree.WithRandomState(seed)) }
		spec.Grid = grid(map[string][]interface{}{"max_depth": {nil, 5, 10}})
	case resolved == FamilyDecisionTree && task == TaskRegression:
		spec.New = func() interface{} { return tree.NewDecisionTreeRegressor(tree.WithRandomState(seed)) }
		spec.Grid = grid(map[string][]interface{}{"max_depth": {nil, 5, 10}})
	case resolved == FamilyLogistic && task == TaskClassification:
		spec.New = func() interface{} { return linear_model.NewLogisticRegression(linear_model.WithLRMaxIter(200)) }
		spec.Grid = grid(map[string][]interface{}{"C": {0.1, 1.0, 10.0}})
	case resolved == FamilyPassiveAggressive && task == TaskClassification:
		spec.New = func() interface{} {
			return linear_model.NewPassiveAggressiveClassifier(linear_model.WithPARandomState(seed))
		}
		spec.Grid = grid(map[string][]interface{}{"C": {0.1, 1.0, 10.0}})
	case resolved == FamilyElasticNet && task == TaskRegression:
		spec.New = func() interface{} { return linear_model.NewElasticNet(linear_model.WithENMaxIter(5000)) }
		spec.Grid = grid(map[string][]interface{}{
			"alpha":    {0.01, 0.1, 1.0},
			"l1_ratio": {0.1, 0.5, 0.9},
		})
	case resolved == FamilyGradientBoosting && task == TaskClassification:
		spec.New = func() interface{} {
			return ensemble.NewGradientBoostingClassifier(ensemble.WithBoostingSeed(seed))
		}
		spec.Grid = grid(boostingGrid)
	case resolved == FamilyGradientBoosting && task == TaskRegression:
		spec.New = func() interface{} {
			return ensemble.NewGradientBoostingRegressor(ensemble.WithBoostingSeed(seed))
		}
		spec.Grid = grid(boostingGrid)
	case resolved == FamilyLinear && task == TaskRegression:
		spec.New = func() interface{} { return linear_model.NewLinearRegression() }
		spec.Grid = grid(map[string][]interface{}{"alpha": {0.0, 1.0, 10.0}})
	default:
		return EstimatorSpec{}, errors.NewConfigurationError("ResolveFamily", "family",
			"estimator family "+requested+" is not available for "+string(task))
	}
	return spec, nil
}

// Families lists the buildable family names per task, substitutes excluded.
func Families(task Task) []string {
	if task == TaskRegression {
		return []string{FamilyRandomForest, FamilyGradientBoosting, FamilyDecisionTree, FamilyElasticNet, FamilyLinear}
	}
	return []string{FamilyRandomForest, FamilyGradientBoosting, FamilyLogistic, FamilyDecisionTree, FamilyPassiveAggressive}
}
