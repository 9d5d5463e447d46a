package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/medscore/catalog"
	"github.com/ezoic/medscore/pkg/errors"
)

func TestCatalogContents(t *testing.T) {
	var classifiers, regressors int
	for _, e := range catalog.Entries() {
		if e.IsClassifier() {
			classifiers++
		} else {
			regressors++
		}
	}
	assert.Equal(t, 14, classifiers)
	assert.Equal(t, 3, regressors)
	assert.Len(t, catalog.Classifiers(), 14)

	mortality, err := catalog.Lookup("MortalityRiskModel")
	require.NoError(t, err)
	assert.Equal(t, "mortality_1y", mortality.Target)
	assert.Equal(t, "xgboost", mortality.Family)

	cost, err := catalog.Lookup("CostOfCareRegressor")
	require.NoError(t, err)
	assert.Equal(t, catalog.Regression, cost.Task)
	assert.Equal(t, []string{"cost_of_care"}, cost.Targets())

	_, err = catalog.Lookup("Nope")
	assert.True(t, errors.IsConfiguration(err))
}

func TestEntryTargets(t *testing.T) {
	readmit, err := catalog.Lookup("ReadmissionPredictor")
	require.NoError(t, err)
	assert.Equal(t, []string{"label_readmit", "outcome"}, readmit.Targets())

	disease, err := catalog.Lookup("DiseaseRiskPredictor")
	require.NoError(t, err)
	assert.Equal(t, []string{"label_readmit", "outcome"}, disease.Targets())
}

func TestFromPreset(t *testing.T) {
	s, err := catalog.FromPreset("critical-care")
	require.NoError(t, err)
	assert.Equal(t, []string{"SepsisEarlyWarning", "ICUAdmissionPredictor", "MortalityRiskModel", "AKIRiskPredictor"}, s.SelectedModels)
	assert.Equal(t, 0.35, s.Thresholds["SepsisEarlyWarning"])
	assert.Equal(t, 0.5, s.Thresholds["ICUAdmissionPredictor"])

	readmission, err := catalog.FromPreset("readmission")
	require.NoError(t, err)
	assert.Len(t, readmission.SelectedModels, 3)
	assert.NotContains(t, readmission.Thresholds, "LengthOfStayRegressor")

	_, err = catalog.FromPreset("unknown")
	assert.True(t, errors.IsConfiguration(err))
}

func TestAugment(t *testing.T) {
	got := catalog.Augment([]string{"StrokeRiskPredictor"}, 8)
	assert.Equal(t, []string{
		"StrokeRiskPredictor",
		"ReadmissionPredictor",
		"SepsisEarlyWarning",
		"DiabetesComplicationRisk",
		"NoShowAppointmentPredictor",
		"Readmission90DPredictor",
		"LengthOfStayRegressor",
		"ICUAdmissionPredictor",
	}, got)

	long := catalog.Augment([]string{"a", "b", "a", "c", "d"}, 3)
	assert.Equal(t, []string{"a", "b", "c"}, long)

	assert.Len(t, catalog.Augment(nil, 0), catalog.DefaultCap)
}

func TestParseStrategyTolerant(t *testing.T) {
	doc := `{
	  "selected_models": ["ReadmissionPredictor", {"model_name": "SepsisEarlyWarning"}, "ReadmissionPredictor"],
	  "thresholds": {
	    "ReadmissionPredictor": "0.2",
	    "SepsisEarlyWarning": 0.3,
	    "CostOfCareRegressor": 0.4,
	    "MortalityRiskModel": "high"
	  }
	}`
	s, err := catalog.ParseStrategy([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"ReadmissionPredictor", "SepsisEarlyWarning"}, s.SelectedModels)
	assert.Equal(t, map[string]float64{"ReadmissionPredictor": 0.2, "SepsisEarlyWarning": 0.3}, s.Thresholds)
}

func TestParseStrategyYAMLPlan(t *testing.T) {
	doc := `
model_execution_plan:
  primary_models:
    - model_name: HeartFailure30DRisk
    - model_name: LengthOfStayRegressor
  thresholds:
    HeartFailure30DRisk: 0.25
`
	s, err := catalog.ParseStrategy([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"HeartFailure30DRisk", "LengthOfStayRegressor"}, s.SelectedModels)
	assert.Equal(t, 0.25, s.ThresholdFor("HeartFailure30DRisk"))

	_, err = catalog.ParseStrategy([]byte("selected_models: [unclosed"))
	assert.True(t, errors.IsConfiguration(err))
}

func TestThresholdFor(t *testing.T) {
	s := &catalog.Strategy{Thresholds: map[string]float64{
		"ReadmissionPredictor": 0.3,
		"SepsisEarlyWarning":   1.5,
		"StrokeRiskPredictor":  0,
	}}
	assert.Equal(t, 0.3, s.ThresholdFor("ReadmissionPredictor"))
	assert.Equal(t, 0.0, s.ThresholdFor("StrokeRiskPredictor"))
	// out of range and absent entries use the fixed default, not the catalogue
	assert.Equal(t, catalog.DefaultThreshold, s.ThresholdFor("SepsisEarlyWarning"))
	assert.Equal(t, catalog.DefaultThreshold, s.ThresholdFor("ICUAdmissionPredictor"))
	assert.Equal(t, catalog.DefaultThreshold, s.ThresholdFor("custom_model"))

	var none *catalog.Strategy
	assert.Equal(t, catalog.DefaultThreshold, none.ThresholdFor("ReadmissionPredictor"))
}
