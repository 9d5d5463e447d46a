// Package serving scores record batches against trained artifacts and fuses
// the anomaly signal into the same per-record output.
package serving

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/medscore/anomaly"
	"github.com/ezoic/medscore/artifact"
	"github.com/ezoic/medscore/catalog"
	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/core/parallel"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/pkg/log"
	"github.com/ezoic/medscore/sklearn/compose"
	"github.com/ezoic/medscore/sklearn/pipeline"
)

const (
	constantScoreStd = 1e-12
	noteConstant     = "near-constant scores"
)

// Resolver maps a model name onto the path of its newest artifact.
type Resolver interface {
	Resolve(name string) (string, error)
}

// Engine scores batches. It holds no per-request state; concurrent calls
// share the artifact cache.
type Engine struct {
	resolver Resolver
	cache    *artifact.Cache
	fuser    *anomaly.Fuser
	idColumn string
	logger   log.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithIDColumn names the column copied into RecordResult.ID.
func WithIDColumn(name string) EngineOption {
	return func(e *Engine) { e.idColumn = name }
}

// WithFuser replaces the default anomaly fuser.
func WithFuser(f *anomaly.Fuser) EngineOption {
	return func(e *Engine) { e.fuser = f }
}

// WithLogger sets the engine logger.
func WithLogger(logger log.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an engine that resolves names with resolver and loads
// artifacts through cache.
func NewEngine(resolver Resolver, cache *artifact.Cache, opts ...EngineOption) *Engine {
	e := &Engine{
		resolver: resolver,
		cache:    cache,
		idColumn: "patient_id",
		logger:   log.GetLoggerWithName("serving"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fuser == nil {
		e.fuser = anomaly.NewFuser(anomaly.WithIDColumn(e.idColumn))
	}
	return e
}

// modelOutput is the outcome of one model over the whole batch.
type modelOutput struct {
	kind      string
	values    []float64
	threshold float64
	version   string
	err       error
}

// ScoreBatch runs every requested model over the records. A model that
// cannot be resolved, loaded or evaluated yields an error entry for that
// model in every record and in its summary; the other models are unaffected.
// The only call-level error is cancellation of ctx.
func (e *Engine) ScoreBatch(ctx context.Context, req Request) (*BatchResult, error) {
	res := &BatchResult{
		RequestID: uuid.NewString(),
		Records:   []RecordResult{},
		Models:    map[string]ModelSummary{},
	}
	if req.Records == nil || req.Records.NRows() == 0 {
		return res, nil
	}
	logger := e.logger.With(log.RequestIDKey, res.RequestID)
	models := dedupe(req.Models)
	strategy := &catalog.Strategy{Thresholds: req.Thresholds}

	outputs := make([]modelOutput, len(models))
	parallel.ForEach(len(models), func(i int) error {
		outputs[i] = e.scoreModel(ctx, models[i], req.Records, strategy, logger)
		return nil
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := req.Records.NRows()
	ids := recordIDs(req.Records, e.idColumn)
	res.Records = make([]RecordResult, n)
	for i := range res.Records {
		res.Records[i] = RecordResult{Index: i, ID: ids[i], Predictions: make(map[string]Prediction, len(models))}
	}
	for m, name := range models {
		out := outputs[m]
		res.Models[name] = summarise(out, n)
		var modelErr *ModelError
		if out.err != nil {
			modelErr = newModelError(out.err)
		}
		for i := range res.Records {
			res.Records[i].Predictions[name] = prediction(out, i, modelErr)
		}
	}
	return res, nil
}

// scoreModel never panics; a panic inside an estimator becomes a
// PredictionFailure.
func (e *Engine) scoreModel(ctx context.Context, name string, records *frame.Frame, strategy *catalog.Strategy, logger log.Logger) (out modelOutput) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = modelOutput{err: errors.NewPredictionFailure(name, "estimator panicked",
				errors.NewPanicError("Engine.scoreModel", r))}
		}
		if out.err != nil {
			logger.Warn("model scoring failed",
				log.ModelNameKey, name,
				log.ErrorTypeKey, errors.Kind(out.err),
				log.ErrAttrKey, out.err,
			)
			return
		}
		logger.Info("model scored",
			log.ModelNameKey, name,
			log.SamplesKey, len(out.values),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}()

	if err := ctx.Err(); err != nil {
		return modelOutput{err: err}
	}
	path, err := e.resolver.Resolve(name)
	if err != nil {
		return modelOutput{err: err}
	}
	a, err := e.cache.Get(ctx, path)
	if err != nil {
		return modelOutput{err: err}
	}

	X := records
	if cols, ok := compose.ExpectedInputColumns(a.Pipeline); ok {
		X = compose.Align(records, cols)
	}
	pred, err := a.Pipeline.ContinuousOutput(X)
	if err != nil {
		return modelOutput{err: errors.NewPredictionFailure(name, "no usable output", err)}
	}
	if len(pred.Values) != records.NRows() {
		return modelOutput{err: errors.NewPredictionFailure(name, "output is not row-aligned", nil)}
	}

	out = modelOutput{values: pred.Values, version: a.Version}
	switch pred.Kind {
	case pipeline.OutputProba:
		out.kind, out.threshold = KindProbability, strategy.ThresholdFor(name)
	case pipeline.OutputDecision:
		out.kind = KindDecision
	default:
		out.kind = KindRegression
	}
	return out
}

func prediction(out modelOutput, i int, modelErr *ModelError) Prediction {
	if modelErr != nil {
		return Prediction{Error: modelErr}
	}
	v := out.values[i]
	if out.kind == KindRegression {
		return Prediction{Value: &v}
	}
	decision := v >= out.threshold
	threshold := out.threshold
	return Prediction{Score: &v, Decision: &decision, Threshold: &threshold}
}

func summarise(out modelOutput, n int) ModelSummary {
	if out.err != nil {
		return ModelSummary{N: n, Error: newModelError(out.err)}
	}
	s := ModelSummary{Kind: out.kind, N: n, Version: out.version}
	if out.kind == KindRegression {
		mean := stat.Mean(out.values, nil)
		s.Mean = &mean
		return s
	}
	positives := 0
	for _, v := range out.values {
		if v >= out.threshold {
			positives++
		}
	}
	threshold := out.threshold
	s.Positives, s.Threshold = &positives, &threshold
	if n > 1 && math.Sqrt(stat.Variance(out.values, nil)) < constantScoreStd {
		s.Note = noteConstant
	}
	return s
}

// DetectAnomalies runs the anomaly fuser over records.
func (e *Engine) DetectAnomalies(ctx context.Context, records *frame.Frame) (*anomaly.Result, error) {
	if records == nil {
		records = frame.New(0)
	}
	return e.fuser.Detect(ctx, records)
}

// Report scores the batch and merges each record's anomaly result into it.
// Anomaly output does not depend on any model succeeding.
func (e *Engine) Report(ctx context.Context, req Request) (*Report, error) {
	batch, err := e.ScoreBatch(ctx, req)
	if err != nil {
		return nil, err
	}
	anomalies, err := e.DetectAnomalies(ctx, req.Records)
	if err != nil {
		return nil, errors.Wrap(err, "anomaly detection")
	}
	for i := range batch.Records {
		if i < len(anomalies.Records) {
			rec := anomalies.Records[i]
			batch.Records[i].Anomaly = &rec
		}
	}
	return &Report{BatchResult: *batch, Anomalies: anomalies.Summary}, nil
}

func recordIDs(X *frame.Frame, column string) []string {
	ids := make([]string, X.NRows())
	if col := X.Column(column); col != nil {
		for i := range ids {
			ids[i], _ = col.Text(i)
		}
	}
	return ids
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
