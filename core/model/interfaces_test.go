package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/core/model"
)

type probaOnly struct{}

func (probaOnly) PredictProba(mat.Matrix) (mat.Matrix, error) { return nil, nil }
func (probaOnly) Predict(mat.Matrix) (mat.Matrix, error)      { return nil, nil }

type decisionOnly struct{}

func (decisionOnly) DecisionFunction(mat.Matrix) (mat.Matrix, error) { return nil, nil }

type reporter struct{ caps model.Capability }

func (r reporter) Capabilities() model.Capability { return r.caps }

func TestCapabilitiesOf(t *testing.T) {
	tests := []struct {
		name string
		est  any
		want model.Capability
		str  string
	}{
		{"proba and predict", probaOnly{}, model.CanPredictProba | model.CanPredict, "predict_proba|predict"},
		{"decision only", decisionOnly{}, model.CanDecisionFunction, "decision_function"},
		{"reporter wins", reporter{caps: model.CanPredict}, model.CanPredict, "predict"},
		{"nothing", struct{}{}, 0, "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := model.CapabilitiesOf(tt.est)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.str, got.String())
		})
	}
}

func TestCapabilityHas(t *testing.T) {
	c := model.CanPredictProba | model.CanPredict
	assert.True(t, c.Has(model.CanPredictProba))
	assert.True(t, c.Has(model.CanPredictProba|model.CanPredict))
	assert.False(t, c.Has(model.CanDecisionFunction))
}
