package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/pkg/log"
)

// Strategy selects the models to score and their decision thresholds.
type Strategy struct {
	SelectedModels []string           `json:"selected_models" yaml:"selected_models"`
	Thresholds     map[string]float64 `json:"thresholds" yaml:"thresholds"`
}

// ParseStrategy decodes a strategy document, JSON or YAML. Selected models may
// be strings or objects with a model_name field, and are also read from
// model_execution_plan.primary_models. Thresholds may be numbers or numeric
// strings; unparseable ones and those of non-classifiers are discarded.
func ParseStrategy(data []byte) (*Strategy, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewConfigurationError("catalog.ParseStrategy", "strategy", "malformed document: "+err.Error())
	}
	s := &Strategy{Thresholds: map[string]float64{}}
	plan, _ := raw["model_execution_plan"].(map[string]interface{})

	models := modelNames(raw["selected_models"])
	if plan != nil {
		models = append(models, modelNames(plan["primary_models"])...)
	}
	models = append(models, modelNames(raw["primary_models"])...)
	s.SelectedModels = dedupe(models)

	thresholds, _ := raw["thresholds"].(map[string]interface{})
	if thresholds == nil && plan != nil {
		thresholds, _ = plan["thresholds"].(map[string]interface{})
	}
	logger := log.GetLoggerWithName("catalog")
	for name, v := range thresholds {
		t, ok := toFloat(v)
		if !ok {
			logger.Warn("ignoring unparseable threshold", log.ModelNameKey, name, "value", fmt.Sprint(v))
			continue
		}
		if !IsClassifier(name) {
			continue
		}
		s.Thresholds[name] = t
	}
	return s, nil
}

// ThresholdFor returns the strategy's threshold for name when it lies in
// [0, 1], else DefaultThreshold. Catalogued defaults are applied when a
// strategy is built, not here.
func (s *Strategy) ThresholdFor(name string) float64 {
	if s != nil {
		if t, ok := s.Thresholds[name]; ok && t >= 0 && t <= 1 {
			return t
		}
	}
	return DefaultThreshold
}

func catalogOrDefault(name string) float64 {
	if t, ok := CatalogThreshold(name); ok {
		return t
	}
	return DefaultThreshold
}

func modelNames(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		switch m := item.(type) {
		case string:
			out = append(out, strings.TrimSpace(m))
		case map[string]interface{}:
			if name, ok := m["model_name"]; ok {
				out = append(out, strings.TrimSpace(fmt.Sprint(name)))
			}
		case nil:
		default:
			out = append(out, fmt.Sprint(m))
		}
	}
	return out
}

func dedupe(names []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, n := range names {
		if n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}
