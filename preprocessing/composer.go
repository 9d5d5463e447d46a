package preprocessing

import (
	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/sklearn/compose"
	"github.com/ezoic/medscore/sklearn/pipeline"
)

// Step names of the preprocessor pipeline.
const (
	StepIdentifierDrop = "id_drop"
	StepLeakageGuard   = "leak_guard"
	StepRouter         = "ct"
)

type preprocessorConfig struct {
	identifier   []IdentifierOption
	leakage      []LeakageOption
	clipOutliers bool
}

// PreprocessorOption configures NewPreprocessor.
type PreprocessorOption func(*preprocessorConfig)

// WithIdentifierOptions configures the identifier dropper.
func WithIdentifierOptions(opts ...IdentifierOption) PreprocessorOption {
	return func(c *preprocessorConfig) { c.identifier = append(c.identifier, opts...) }
}

// WithLeakageOptions configures the leakage guard.
func WithLeakageOptions(opts ...LeakageOption) PreprocessorOption {
	return func(c *preprocessorConfig) { c.leakage = append(c.leakage, opts...) }
}

// WithOutlierClipping inserts an IQR clipper into the numeric branch.
func WithOutlierClipping(enabled bool) PreprocessorOption {
	return func(c *preprocessorConfig) { c.clipOutliers = enabled }
}

// NewPreprocessor builds the unfitted preprocessing pipeline:
//
//	id_drop    IdentifierDropper
//	leak_guard LeakageGuard
//	ct         ColumnTransformer
//	             num: numeric columns, median impute [-> IQR clip] -> scale
//	             cat: all other columns, most-frequent impute -> one-hot
//
// The droppers run before the router at fit and transform time, so the router's
// recorded input columns are the survivors of both.
func NewPreprocessor(opts ...PreprocessorOption) *pipeline.Pipeline {
	cfg := &preprocessorConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	ct := compose.NewColumnTransformer(
		compose.NewBranch("num", NewNumericBranch(cfg.clipOutliers), compose.ByKind(frame.Numeric)),
		compose.NewBranch("cat", NewCategoricalBranch(), compose.ExcludeKinds(frame.Numeric)),
	)
	return pipeline.New(
		pipeline.Step{Name: StepIdentifierDrop, Estimator: NewIdentifierDropper(cfg.identifier...)},
		pipeline.Step{Name: StepLeakageGuard, Estimator: NewLeakageGuard(cfg.leakage...)},
		pipeline.Step{Name: StepRouter, Estimator: ct},
	)
}

// DroppedColumns returns the identifier and leakage drop lists of a fitted
// preprocessor built by NewPreprocessor.
func DroppedColumns(pre *pipeline.Pipeline) (identifiers, leaking []string) {
	steps := pre.NamedSteps()
	if d, ok := steps[StepIdentifierDrop].(*IdentifierDropper); ok {
		identifiers = d.DropColumns()
	}
	if g, ok := steps[StepLeakageGuard].(*LeakageGuard); ok {
		leaking = g.DropColumns()
	}
	return identifiers, leaking
}
