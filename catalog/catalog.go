// Package catalog lists the clinical models the service knows how to train,
// the preset strategies that group them and the default decision thresholds.
package catalog

import (
	"sort"

	"github.com/ezoic/medscore/pkg/errors"
)

// Task names, as accepted by training.ParseTask.
const (
	Classification = "classification"
	Regression     = "regression"
)

// Entry describes one catalogued model. Family is the requested estimator
// family; the trainer negotiates it against what the build provides.
type Entry struct {
	Name   string `json:"name"`
	Task   string `json:"task"`
	Target string `json:"target,omitempty"`
	Family string `json:"family"`
}

// IsClassifier reports whether the entry is a classification model.
func (e Entry) IsClassifier() bool { return e.Task == Classification }

// ClassifierFallbackTargets are tried in order when a classifier has no
// configured target or its target is absent from the dataset.
var ClassifierFallbackTargets = []string{"label_readmit", "outcome"}

const (
	rf  = "random_forest"
	xgb = "xgboost"
	en  = "elasticnet"
)

var entries = []Entry{
	{Name: "DiseaseRiskPredictor", Task: Classification, Family: rf},
	{Name: "ReadmissionPredictor", Task: Classification, Target: "label_readmit", Family: rf},
	{Name: "Readmission90DPredictor", Task: Classification, Target: "label_readmit", Family: rf},
	{Name: "MortalityRiskModel", Task: Classification, Target: "mortality_1y", Family: xgb},
	{Name: "ICUAdmissionPredictor", Task: Classification, Target: "icu_admit", Family: rf},
	{Name: "SepsisEarlyWarning", Task: Classification, Target: "sepsis_label", Family: xgb},
	{Name: "DiabetesComplicationRisk", Task: Classification, Target: "dm_complication", Family: rf},
	{Name: "HypertensionControlPredictor", Task: Classification, Target: "htn_uncontrolled", Family: rf},
	{Name: "HeartFailure30DRisk", Task: Classification, Target: "hf_30d", Family: xgb},
	{Name: "StrokeRiskPredictor", Task: Classification, Target: "stroke_label", Family: xgb},
	{Name: "COPDExacerbationPredictor", Task: Classification, Target: "copd_exac", Family: rf},
	{Name: "AKIRiskPredictor", Task: Classification, Target: "aki_label", Family: rf},
	{Name: "AdverseDrugEventPredictor", Task: Classification, Target: "ade_label", Family: rf},
	{Name: "NoShowAppointmentPredictor", Task: Classification, Target: "no_show", Family: rf},

	{Name: "LengthOfStayRegressor", Task: Regression, Target: "los_days", Family: rf},
	{Name: "CostOfCareRegressor", Task: Regression, Target: "cost_of_care", Family: en},
	{Name: "AnemiaSeverityRegressor", Task: Regression, Target: "anemia_severity_score", Family: rf},
}

var byName = func() map[string]Entry {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.Name] = e
	}
	return m
}()

var defaultThresholds = map[string]float64{
	"ReadmissionPredictor":         0.10,
	"Readmission90DPredictor":      0.10,
	"MortalityRiskModel":           0.35,
	"SepsisEarlyWarning":           0.35,
	"AKIRiskPredictor":             0.35,
	"HeartFailure30DRisk":          0.40,
	"StrokeRiskPredictor":          0.45,
	"DiabetesComplicationRisk":     0.40,
	"HypertensionControlPredictor": 0.50,
	"COPDExacerbationPredictor":    0.50,
	"NoShowAppointmentPredictor":   0.50,
	"AdverseDrugEventPredictor":    0.50,
	"DiseaseRiskPredictor":         0.50,
}

// DefaultThreshold is used for classifiers with no catalogued threshold.
const DefaultThreshold = 0.5

// Lookup returns the catalog entry of name. Unknown names are a
// ConfigurationError.
func Lookup(name string) (Entry, error) {
	e, ok := byName[name]
	if !ok {
		return Entry{}, errors.NewConfigurationError("catalog.Lookup", "model", "unknown model "+name)
	}
	return e, nil
}

// Entries returns every catalogued model, classifiers first.
func Entries() []Entry {
	return append([]Entry(nil), entries...)
}

// Classifiers returns the sorted names of the classification models.
func Classifiers() []string {
	var out []string
	for _, e := range entries {
		if e.IsClassifier() {
			out = append(out, e.Name)
		}
	}
	sort.Strings(out)
	return out
}

// IsClassifier reports whether name is a catalogued classifier.
func IsClassifier(name string) bool {
	e, ok := byName[name]
	return ok && e.IsClassifier()
}

// CatalogThreshold returns the catalogued default threshold of a classifier.
func CatalogThreshold(name string) (float64, bool) {
	t, ok := defaultThresholds[name]
	return t, ok
}

// Targets returns the target columns to try for e, in order.
func (e Entry) Targets() []string {
	var out []string
	if e.Target != "" {
		out = append(out, e.Target)
	}
	if e.IsClassifier() {
		for _, t := range ClassifierFallbackTargets {
			if t != e.Target {
				out = append(out, t)
			}
		}
	}
	return out
}
