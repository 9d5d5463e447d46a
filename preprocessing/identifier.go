package preprocessing

import (
	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/core/model"
	"github.com/ezoic/medscore/pkg/log"
)

// DefaultMaxUniqueRatio is the distinct-to-rows ratio at which a column is treated
// as an identifier.
const DefaultMaxUniqueRatio = 0.98

// IdentifierDropper removes columns that look like record identifiers (nearly every
// value distinct) or carry no information (at most one distinct value). Detection
// is purely statistical; column names play no part.
type IdentifierDropper struct {
	model.BaseEstimator

	MaxUniqueRatio float64

	// Columns is the drop list learned at fit.
	Columns []string
}

// IdentifierOption configures an IdentifierDropper.
type IdentifierOption func(*IdentifierDropper)

// WithMaxUniqueRatio sets the ratio at or above which a column is dropped.
func WithMaxUniqueRatio(r float64) IdentifierOption {
	return func(d *IdentifierDropper) {
		d.MaxUniqueRatio = r
	}
}

// NewIdentifierDropper creates a dropper with the default ratio of 0.98.
func NewIdentifierDropper(opts ...IdentifierOption) *IdentifierDropper {
	d := &IdentifierDropper{MaxUniqueRatio: DefaultMaxUniqueRatio}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fit computes the drop list. A frame with no rows yields an empty list.
func (d *IdentifierDropper) Fit(X *frame.Frame, _ []float64) error {
	d.Columns = nil
	n := X.NRows()
	if n > 0 {
		for _, name := range X.Names() {
			u := X.Column(name).NUnique()
			if u <= 1 || float64(u)/float64(n) >= d.MaxUniqueRatio {
				d.Columns = append(d.Columns, name)
			}
		}
	}
	if len(d.Columns) > 0 {
		log.GetLoggerWithName("IdentifierDropper").Debug("identifier-like columns detected",
			log.OperationKey, log.OperationFit,
			log.DroppedColumnsKey, d.Columns,
		)
	}
	d.SetFitted()
	return nil
}

// Transform drops the learned columns; ones absent from X are ignored.
func (d *IdentifierDropper) Transform(X *frame.Frame) (*frame.Frame, error) {
	return X.Drop(d.Columns...), nil
}

// DropColumns returns the learned drop list.
func (d *IdentifierDropper) DropColumns() []string {
	return append([]string(nil), d.Columns...)
}
