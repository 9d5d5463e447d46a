package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator or catalog model, e.g. "RandomForestClassifier".
	ModelNameKey = "model.name"

	// EstimatorIDKey identifies one estimator instance.
	EstimatorIDKey = "estimator.id"

	// OperationKey is the ML operation: fit, predict, transform, score.
	OperationKey = "ml.operation"

	// ComponentKey is the component emitting the record.
	ComponentKey = "ml.component"

	// PhaseKey is the lifecycle phase or trainer state.
	PhaseKey = "ml.phase"

	// TaskKey is "classification" or "regression".
	TaskKey = "ml.task"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ColumnsKey  = "data.columns"

	// DroppedColumnsKey lists columns removed by a dropper stage.
	DroppedColumnsKey = "columns.dropped"
)

// Performance and metrics.
const (
	DurationMsKey = "perf.duration_ms"
	AccuracyKey   = "metrics.accuracy"
	AUCKey        = "metrics.roc_auc"
	MAEKey        = "metrics.mae"
	R2ScoreKey    = "metrics.r2_score"
	LossKey       = "metrics.loss"
	IterationKey  = "training.iteration"
)

// Predictions.
const (
	PredsKey     = "preds.count"
	ThresholdKey = "preds.threshold"
)

// Training runs and artifacts.
const (
	// RunIDKey is the uuid of a training run.
	RunIDKey = "training.run_id"

	// TrainingPathKey records whether search succeeded ("search") or the manual sweep
	// produced the estimator ("fallback").
	TrainingPathKey = "training.path"

	// LabelSourceKey records where the training label came from:
	// observed, proxy:<column> or synthetic.
	LabelSourceKey = "label.source"

	// FamilyKey is the estimator family requested or resolved.
	FamilyKey = "model.family"

	ArtifactPathKey    = "artifact.path"
	ArtifactVersionKey = "artifact.version"

	// RequestIDKey is the uuid of a scoring request.
	RequestIDKey = "request.id"

	AnomalyFlaggedKey = "anomaly.flagged"
)

// Errors and configuration.
const (
	ErrorCodeKey   = "error.code"
	ErrorTypeKey   = "error.type"
	StacktraceKey  = "error.stacktrace"
	HyperParamsKey = "model.hyperparams"
	RandomSeedKey  = "config.random_seed"
	ErrAttrKey     = "error"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationSearch    = "search"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
	ErrorConvergence       = "CONVERGENCE_FAILURE"
)
