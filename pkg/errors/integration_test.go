package errors_test

import (
	"errors"
	"fmt"
	"testing"

	cockroach "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	medErrors "github.com/ezoic/medscore/pkg/errors"
)

// The batch engine classifies errors after several layers of wrapping; the
// kind must survive both stdlib and cockroachdb wrappers.
func TestKindSurvivesWrapping(t *testing.T) {
	base := medErrors.NewArtifactNotFoundError("AKIRiskPredictor", "models/AKIRiskPredictor")

	chains := map[string]error{
		"fmt":       fmt.Errorf("resolve: %w", base),
		"wrap":      medErrors.Wrap(base, "resolve"),
		"wrapf":     medErrors.Wrapf(base, "resolve %s", "AKIRiskPredictor"),
		"hint":      medErrors.WithHint(base, "train the model first"),
		"stack+fmt": fmt.Errorf("batch: %w", medErrors.WithStack(base)),
	}
	for name, err := range chains {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, medErrors.KindArtifactNotFound, medErrors.Kind(err))
			assert.True(t, medErrors.IsArtifactNotFound(err))
			assert.True(t, errors.Is(err, base))
		})
	}

	hinted := medErrors.WithHint(base, "train the model first")
	assert.Contains(t, cockroach.FlattenHints(hinted), "train the model first")
}

func TestPredictionFailureWrapsPanic(t *testing.T) {
	panicErr := medErrors.NewPanicError("Engine.scoreModel", "index out of range")
	err := medErrors.NewPredictionFailure("HeartFailure30DRisk", "panic during scoring", panicErr)

	assert.Equal(t, medErrors.KindPredictionFailure, medErrors.Kind(err))
	var recovered *medErrors.PanicError
	require.True(t, medErrors.As(err, &recovered))
	assert.Equal(t, "index out of range", recovered.PanicValue)
}

func TestModelErrorInsideSearchFailure(t *testing.T) {
	fitErr := medErrors.NewModelError("LogisticRegression.Fit", "empty data", medErrors.ErrEmptyData)
	err := medErrors.NewSearchFailure("logistic_regression", fmt.Errorf("candidate 0: %w", fitErr))

	assert.Equal(t, medErrors.KindSearchFailure, medErrors.Kind(err))
	assert.True(t, errors.Is(err, medErrors.ErrEmptyData))

	var modelErr *medErrors.ModelError
	require.True(t, errors.As(err, &modelErr))
	assert.Equal(t, "LogisticRegression.Fit", modelErr.Op)
	assert.Equal(t, medErrors.ErrEmptyData, modelErr.Unwrap())
}

func TestConfigurationErrorOutranksCause(t *testing.T) {
	// A configuration error is never reported as internal even when its
	// message came from a lower-level failure.
	err := medErrors.Wrap(medErrors.NewConfigurationError("loadConfig", "medscore.yaml", "yaml: line 2: did not find expected key"), "startup")
	assert.Equal(t, medErrors.KindConfiguration, medErrors.Kind(err))
	assert.Equal(t, medErrors.KindInternal, medErrors.Kind(medErrors.Wrap(medErrors.ErrSingularMatrix, "solve")))
}
