package serving

import (
	"github.com/ezoic/medscore/anomaly"
	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/pkg/errors"
)

// Request asks for predictions of Models on every row of Records.
// Thresholds hold per-model decision thresholds; absent or out of range
// entries use catalog.DefaultThreshold.
type Request struct {
	Models     []string
	Records    *frame.Frame
	Thresholds map[string]float64
}

// Output kinds of a model.
const (
	KindProbability = "probability"
	KindDecision    = "decision"
	KindRegression  = "regression"
)

// ModelError is a failure scoped to one model.
type ModelError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newModelError(err error) *ModelError {
	return &ModelError{Type: errors.Kind(err), Message: err.Error()}
}

// Prediction is one model's output for one record: a score with its decision
// and threshold, a regression value, or an error.
type Prediction struct {
	Score     *float64    `json:"score,omitempty"`
	Decision  *bool       `json:"decision,omitempty"`
	Threshold *float64    `json:"threshold,omitempty"`
	Value     *float64    `json:"value,omitempty"`
	Error     *ModelError `json:"error,omitempty"`
}

// RecordResult holds every requested model's prediction for one input row.
type RecordResult struct {
	Index       int                   `json:"index"`
	ID          string                `json:"id,omitempty"`
	Predictions map[string]Prediction `json:"predictions"`
	Anomaly     *anomaly.Record       `json:"anomaly,omitempty"`
}

// ModelSummary aggregates one model over the batch.
type ModelSummary struct {
	Kind      string      `json:"kind,omitempty"`
	N         int         `json:"n"`
	Positives *int        `json:"positives,omitempty"`
	Threshold *float64    `json:"threshold,omitempty"`
	Mean      *float64    `json:"mean,omitempty"`
	Note      string      `json:"note,omitempty"`
	Version   string      `json:"version,omitempty"`
	Error     *ModelError `json:"error,omitempty"`
}

// BatchResult is row-aligned with the request's records.
type BatchResult struct {
	RequestID string                  `json:"request_id"`
	Records   []RecordResult          `json:"records"`
	Models    map[string]ModelSummary `json:"models"`
}

// Report is a batch result with the anomaly signal merged into every record.
type Report struct {
	BatchResult
	Anomalies anomaly.Summary `json:"anomalies"`
}
