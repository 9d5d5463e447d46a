// Package anomaly flags unusual records from their numeric columns alone,
// independently of any trained model.
//
// A record is flagged when any numeric value lies more than three population
// standard deviations from its column mean, or outside the column's
// 1.5·IQR fences. Missing values are filled with the column median first.
package anomaly

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/core/parallel"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/pkg/log"
	"github.com/ezoic/medscore/preprocessing"
	"github.com/ezoic/medscore/sklearn/ensemble"
)

// Rule names reported per record and in Summary.Components.
const (
	RuleZScore = "zscore>3"
	RuleIQR    = "iqr_1.5"

	// Method is reported in Summary.Method.
	Method = "zscore+iqr"

	// NoteNoNumeric is the summary note when nothing can be scored.
	NoteNoNumeric = "no numeric columns"

	stdEpsilon = 1e-9
)

// Record is the anomaly result of one input row.
type Record struct {
	Index   int    `json:"index"`
	ID      string `json:"id,omitempty"`
	Flagged bool   `json:"flagged"`
	// ZScore is the largest |z| over the numeric columns.
	ZScore float64 `json:"zscore"`
	// IQR reports whether any value lies outside its column's fences.
	IQR      bool     `json:"iqr"`
	Rules    []string `json:"rules,omitempty"`
	Severity float64  `json:"severity"`
	// Columns lists the columns that fired a rule.
	Columns []string `json:"columns,omitempty"`
	// IsolationScore is set when an isolation forest is configured.
	IsolationScore *float64 `json:"isolation_score,omitempty"`
}

// Summary describes one detection run.
type Summary struct {
	NFlagged   int      `json:"n_flagged"`
	NTotal     int      `json:"n_total"`
	Method     string   `json:"method"`
	Components []string `json:"components"`
	Columns    []string `json:"columns"`
	Note       string   `json:"note,omitempty"`
	// NIsolationOutliers counts rows at or above the forest's contamination
	// threshold, when a forest is configured.
	NIsolationOutliers *int `json:"n_isolation_outliers,omitempty"`
}

// Result holds one Record per input row, in input order.
type Result struct {
	Summary Summary  `json:"summary"`
	Records []Record `json:"records"`
}

// Fuser detects anomalies. The zero value is not usable; call NewFuser.
type Fuser struct {
	ZThreshold float64
	IQRFactor  float64
	IDColumn   string

	isolationTrees         int
	isolationContamination float64
	seed                   int64
	logger                 log.Logger
}

// Option configures a Fuser.
type Option func(*Fuser)

// WithZThreshold sets the |z| above which a value is anomalous.
func WithZThreshold(z float64) Option {
	return func(f *Fuser) { f.ZThreshold = z }
}

// WithIQRFactor sets the fence width in interquartile ranges.
func WithIQRFactor(k float64) Option {
	return func(f *Fuser) { f.IQRFactor = k }
}

// WithIDColumn names the column copied into Record.ID. It is never scored.
func WithIDColumn(name string) Option {
	return func(f *Fuser) { f.IDColumn = name }
}

// WithIsolationForest adds an isolation forest score to every record. It is
// reported alongside the rules and does not affect Flagged.
func WithIsolationForest(trees int, contamination float64) Option {
	return func(f *Fuser) {
		f.isolationTrees = trees
		f.isolationContamination = contamination
	}
}

// WithSeed seeds the isolation forest.
func WithSeed(seed int64) Option {
	return func(f *Fuser) { f.seed = seed }
}

// NewFuser creates a fuser with |z| > 3, 1.5·IQR fences and ids taken from
// patient_id.
func NewFuser(opts ...Option) *Fuser {
	f := &Fuser{
		ZThreshold: 3,
		IQRFactor:  1.5,
		IDColumn:   "patient_id",
		seed:       42,
		logger:     log.GetLoggerWithName("anomaly"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// columnFlags is the per-row outcome of one column.
type columnFlags struct {
	z   []float64
	out []bool
}

// Detect scores every row of X.
func (f *Fuser) Detect(ctx context.Context, X *frame.Frame) (_ *Result, err error) {
	defer errors.Recover(&err, "Fuser.Detect")
	n := X.NRows()
	res := &Result{
		Summary: Summary{
			NTotal:     n,
			Method:     Method,
			Components: []string{RuleZScore, RuleIQR},
			Columns:    []string{},
		},
		Records: make([]Record, n),
	}
	ids := f.ids(X)
	for i := range res.Records {
		res.Records[i] = Record{Index: i, ID: ids[i]}
	}

	columns, filled := f.numericColumns(X)
	res.Summary.Columns = columns
	if len(columns) == 0 {
		res.Summary.Note = NoteNoNumeric
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	flags := make([]columnFlags, len(columns))
	parallel.ForEach(len(columns), func(j int) error {
		flags[j] = f.scoreColumn(filled[j])
		return nil
	})

	for i := range res.Records {
		rec := &res.Records[i]
		zFired := false
		for j, cf := range flags {
			rec.ZScore = math.Max(rec.ZScore, cf.z[i])
			fired := false
			if cf.z[i] > f.ZThreshold {
				zFired, fired = true, true
			}
			if cf.out[i] {
				rec.IQR, fired = true, true
			}
			if fired {
				rec.Columns = append(rec.Columns, columns[j])
			}
		}
		if zFired {
			rec.Rules = append(rec.Rules, RuleZScore)
		}
		if rec.IQR {
			rec.Rules = append(rec.Rules, RuleIQR)
		}
		rec.Flagged = len(rec.Rules) > 0
		rec.Severity = rec.ZScore
		if rec.Flagged {
			res.Summary.NFlagged++
		}
	}

	if f.isolationTrees > 0 && n > 1 {
		if err := f.isolation(res, filled); err != nil {
			return nil, err
		}
	}
	f.logger.Info("anomaly detection finished",
		log.SamplesKey, n,
		log.ColumnsKey, len(columns),
		log.AnomalyFlaggedKey, res.Summary.NFlagged,
	)
	return res, nil
}

func (f *Fuser) ids(X *frame.Frame) []string {
	ids := make([]string, X.NRows())
	if col := X.Column(f.IDColumn); col != nil {
		for i := range ids {
			ids[i], _ = col.Text(i)
		}
	}
	return ids
}

// numericColumns returns the scored columns and their median-filled values.
// Columns with no present value are skipped.
func (f *Fuser) numericColumns(X *frame.Frame) ([]string, [][]float64) {
	var names []string
	var filled [][]float64
	for _, name := range X.NumericNames() {
		if name == f.IDColumn {
			continue
		}
		values := X.Floats(name)
		var present []float64
		for _, v := range values {
			if !math.IsNaN(v) {
				present = append(present, v)
			}
		}
		if len(present) == 0 {
			continue
		}
		sort.Float64s(present)
		median := preprocessing.Quantile(present, 0.5)
		col := make([]float64, len(values))
		for i, v := range values {
			if math.IsNaN(v) {
				v = median
			}
			col[i] = v
		}
		names = append(names, name)
		filled = append(filled, col)
	}
	return names, filled
}

func (f *Fuser) scoreColumn(x []float64) columnFlags {
	mean, variance := stat.PopMeanVariance(x, nil)
	std := math.Sqrt(variance) + stdEpsilon

	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	q1 := preprocessing.Quantile(sorted, 0.25)
	q3 := preprocessing.Quantile(sorted, 0.75)
	iqr := q3 - q1
	lo, hi := q1-f.IQRFactor*iqr, q3+f.IQRFactor*iqr

	cf := columnFlags{z: make([]float64, len(x)), out: make([]bool, len(x))}
	for i, v := range x {
		cf.z[i] = math.Abs(v-mean) / std
		cf.out[i] = v < lo || v > hi
	}
	return cf
}

func (f *Fuser) isolation(res *Result, filled [][]float64) error {
	n, d := len(res.Records), len(filled)
	X := mat.NewDense(n, d, nil)
	for j, col := range filled {
		X.SetCol(j, col)
	}
	forest := ensemble.NewIsolationForest(
		ensemble.WithTrees(f.isolationTrees),
		ensemble.WithContamination(f.isolationContamination),
		ensemble.WithSeed(f.seed),
	)
	if err := forest.Fit(X); err != nil {
		return errors.Wrap(err, "isolation forest fit")
	}
	scores, err := forest.Score(X)
	if err != nil {
		return errors.Wrap(err, "isolation forest score")
	}
	outliers := 0
	for i, s := range scores {
		s := s
		res.Records[i].IsolationScore = &s
		if s >= forest.Threshold {
			outliers++
		}
	}
	res.Summary.NIsolationOutliers = &outliers
	return nil
}
