package catalog

import (
	"github.com/ezoic/medscore/pkg/errors"
)

// Preset is a named group of catalogued models.
type Preset struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Models []string `json:"models"`
}

var presets = []Preset{
	{
		ID:     "readmission",
		Name:   "Readmission Risk Suite",
		Models: []string{"ReadmissionPredictor", "Readmission90DPredictor", "LengthOfStayRegressor"},
	},
	{
		ID:     "critical-care",
		Name:   "Critical Care Early Warning",
		Models: []string{"SepsisEarlyWarning", "ICUAdmissionPredictor", "MortalityRiskModel", "AKIRiskPredictor"},
	},
	{
		ID:   "chronic",
		Name: "Chronic Disease Risk",
		Models: []string{
			"DiabetesComplicationRisk", "HypertensionControlPredictor", "HeartFailure30DRisk",
			"StrokeRiskPredictor", "COPDExacerbationPredictor", "AnemiaSeverityRegressor",
		},
	},
	{
		ID:     "ops",
		Name:   "Operational & Quality",
		Models: []string{"NoShowAppointmentPredictor", "CostOfCareRegressor", "AdverseDrugEventPredictor", "DiseaseRiskPredictor"},
	},
}

const (
	minSelection = 3
	// DefaultCap bounds the size of an augmented selection.
	DefaultCap = 8
)

// Presets returns the preset strategies.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	for i, p := range presets {
		out[i] = Preset{ID: p.ID, Name: p.Name, Models: append([]string(nil), p.Models...)}
	}
	return out
}

// FromPreset builds the strategy of preset id: its models augmented to the
// minimum selection, with catalogued thresholds for the classifiers.
func FromPreset(id string) (*Strategy, error) {
	for _, p := range presets {
		if p.ID != id {
			continue
		}
		models := Augment(p.Models, DefaultCap)
		s := &Strategy{SelectedModels: models, Thresholds: map[string]float64{}}
		for _, m := range models {
			if IsClassifier(m) {
				s.Thresholds[m] = catalogOrDefault(m)
			}
		}
		return s, nil
	}
	return nil, errors.NewConfigurationError("catalog.FromPreset", "preset", "unknown preset "+id)
}

// Augment de-duplicates selected keeping first occurrences. Selections of at
// least three models are truncated to limit. Shorter ones are seeded with the
// first unselected model of each preset, then filled from the whole catalog
// in preset order, up to limit.
func Augment(selected []string, limit int) []string {
	if limit <= 0 {
		limit = DefaultCap
	}
	var out []string
	seen := map[string]bool{}
	add := func(m string) {
		if m != "" && !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	for _, m := range selected {
		add(m)
	}
	if len(out) >= minSelection {
		return truncate(out, limit)
	}
	for _, p := range presets {
		for _, m := range p.Models {
			if !seen[m] {
				add(m)
				break
			}
		}
		if len(out) >= limit {
			return truncate(out, limit)
		}
	}
	for _, p := range presets {
		for _, m := range p.Models {
			if len(out) >= limit {
				return out
			}
			add(m)
		}
	}
	return truncate(out, limit)
}

func truncate(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
