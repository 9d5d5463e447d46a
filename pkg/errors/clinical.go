package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Taxonomy names reported in per-model result entries.
const (
	KindConfiguration     = "ConfigurationError"
	KindArtifactNotFound  = "ArtifactNotFoundError"
	KindSearchFailure     = "SearchFailure"
	KindPredictionFailure = "PredictionFailure"
	KindInternal          = "InternalError"
)

// ConfigurationError is a fatal, non-retryable problem with the caller's request:
// a missing or invalid target, an unknown model name or an unsupported task type.
type ConfigurationError struct {
	Op     string
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("medscore: %s: invalid configuration for %q: %s", e.Op, e.Field, e.Reason)
	}
	return fmt.Sprintf("medscore: %s: invalid configuration: %s", e.Op, e.Reason)
}

// MarshalZerologObject adds the error's fields to a zerolog event.
func (e *ConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("field", e.Field).
		Str("reason", e.Reason).
		Str("type", KindConfiguration)
}

// NewConfigurationError creates a ConfigurationError with a stack trace.
func NewConfigurationError(op, field, reason string) error {
	return errors.WithStack(&ConfigurationError{Op: op, Field: field, Reason: reason})
}

// ArtifactNotFoundError reports that no stored artifact matched a model name.
type ArtifactNotFoundError struct {
	Model    string
	Searched []string
}

func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("medscore: artifact for model %q not found (searched: %s)", e.Model, strings.Join(e.Searched, ", "))
}

// MarshalZerologObject adds the error's fields to a zerolog event.
func (e *ArtifactNotFoundError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model", e.Model).
		Strs("searched", e.Searched).
		Str("type", KindArtifactNotFound)
}

// NewArtifactNotFoundError creates an ArtifactNotFoundError with a stack trace.
func NewArtifactNotFoundError(model string, searched ...string) error {
	return errors.WithStack(&ArtifactNotFoundError{Model: model, Searched: searched})
}

// SearchFailure wraps any error raised by hyperparameter search. The trainer always
// recovers from it with a manual sweep.
type SearchFailure struct {
	Estimator string
	Err       error
}

func (e *SearchFailure) Error() string {
	return fmt.Sprintf("medscore: hyperparameter search failed for %s: %v", e.Estimator, e.Err)
}

func (e *SearchFailure) Unwrap() error {
	return e.Err
}

// NewSearchFailure creates a SearchFailure with a stack trace.
func NewSearchFailure(estimator string, err error) error {
	return errors.WithStack(&SearchFailure{Estimator: estimator, Err: err})
}

// PredictionFailure reports that a model could not produce output for a batch.
type PredictionFailure struct {
	Model  string
	Reason string
	Err    error
}

func (e *PredictionFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("medscore: prediction failure for %q: %s: %v", e.Model, e.Reason, e.Err)
	}
	return fmt.Sprintf("medscore: prediction failure for %q: %s", e.Model, e.Reason)
}

func (e *PredictionFailure) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the error's fields to a zerolog event.
func (e *PredictionFailure) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model", e.Model).
		Str("reason", e.Reason).
		Str("type", KindPredictionFailure)
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// NewPredictionFailure creates a PredictionFailure with a stack trace.
func NewPredictionFailure(model, reason string, err error) error {
	return errors.WithStack(&PredictionFailure{Model: model, Reason: reason, Err: err})
}

// IsConfiguration reports whether err is, or wraps, a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsArtifactNotFound reports whether err is, or wraps, an ArtifactNotFoundError.
func IsArtifactNotFound(err error) bool {
	var target *ArtifactNotFoundError
	return errors.As(err, &target)
}

// IsSearchFailure reports whether err is, or wraps, a SearchFailure.
func IsSearchFailure(err error) bool {
	var target *SearchFailure
	return errors.As(err, &target)
}

// IsPredictionFailure reports whether err is, or wraps, a PredictionFailure.
func IsPredictionFailure(err error) bool {
	var target *PredictionFailure
	return errors.As(err, &target)
}

// Kind maps err onto its taxonomy name. Errors outside the taxonomy report
// KindInternal.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsConfiguration(err):
		return KindConfiguration
	case IsArtifactNotFound(err):
		return KindArtifactNotFound
	case IsSearchFailure(err):
		return KindSearchFailure
	case IsPredictionFailure(err):
		return KindPredictionFailure
	default:
		return KindInternal
	}
}
