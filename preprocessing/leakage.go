package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/core/model"
	"github.com/ezoic/medscore/metrics"
	medErrors "github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/pkg/log"
)

// Leakage rules.
const (
	RuleEquality    = "equality"
	RuleCorrelation = "correlation"
	RuleAssociation = "association"
)

// ConflictPolicy decides what happens when several columns are flagged.
type ConflictPolicy int

const (
	// DropAllFlagged removes every flagged column.
	DropAllFlagged ConflictPolicy = iota
	// KeepWeakestStatistical keeps the column with the weakest evidence among those
	// flagged only by the correlation or association rules, provided at least two
	// such columns were flagged. Equality-flagged columns are always dropped.
	KeepWeakestStatistical
)

func (p ConflictPolicy) String() string {
	if p == KeepWeakestStatistical {
		return "keep_weakest_statistical"
	}
	return "drop_all"
}

// ParseConflictPolicy parses "drop_all" or "keep_weakest_statistical".
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch s {
	case "", "drop_all":
		return DropAllFlagged, nil
	case "keep_weakest_statistical", "keep_weakest":
		return KeepWeakestStatistical, nil
	}
	return DropAllFlagged, medErrors.NewConfigurationError("ParseConflictPolicy", "conflict_policy", "unknown leakage conflict policy "+s)
}

// Finding records why a column was flagged. Strength is the strongest statistic
// among the rules that fired: agreement rate, |correlation| or normalised MI.
type Finding struct {
	Column   string   `json:"column"`
	Rules    []string `json:"rules"`
	Strength float64  `json:"strength"`
	Dropped  bool     `json:"dropped"`
}

func (f Finding) statisticalOnly() bool {
	for _, r := range f.Rules {
		if r == RuleEquality {
			return false
		}
	}
	return true
}

// LeakageGuard removes columns that duplicate the target or predict it implausibly
// well. It needs the target at fit; without one it drops nothing.
type LeakageGuard struct {
	model.BaseEstimator

	EqTol        float64
	CorrTol      float64
	MITol        float64
	MaxCardForMI int
	Policy       ConflictPolicy

	// Columns is the sorted drop list learned at fit.
	Columns []string
	// Flagged holds one finding per flagged column, sorted by column.
	Flagged []Finding
}

// LeakageOption configures a LeakageGuard.
type LeakageOption func(*LeakageGuard)

// WithEqualityTolerance sets the agreement rate that marks a low-cardinality column
// as a copy of the target.
func WithEqualityTolerance(tol float64) LeakageOption {
	return func(g *LeakageGuard) { g.EqTol = tol }
}

// WithCorrelationTolerance sets the |point-biserial correlation| threshold.
func WithCorrelationTolerance(tol float64) LeakageOption {
	return func(g *LeakageGuard) { g.CorrTol = tol }
}

// WithMITolerance sets the normalised mutual information threshold.
func WithMITolerance(tol float64) LeakageOption {
	return func(g *LeakageGuard) { g.MITol = tol }
}

// WithConflictPolicy sets the conflict policy.
func WithConflictPolicy(p ConflictPolicy) LeakageOption {
	return func(g *LeakageGuard) { g.Policy = p }
}

// NewLeakageGuard creates a guard with tolerances 0.995 / 0.98 / 0.8 and MI
// restricted to columns with at most 20 distinct values.
func NewLeakageGuard(opts ...LeakageOption) *LeakageGuard {
	g := &LeakageGuard{
		EqTol:        0.995,
		CorrTol:      0.98,
		MITol:        0.8,
		MaxCardForMI: 20,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fit evaluates every column of X against y. NaN in y marks a missing label.
func (g *LeakageGuard) Fit(X *frame.Frame, y []float64) error {
	g.Columns, g.Flagged = nil, nil
	defer g.SetFitted()
	if y == nil {
		return nil
	}

	yCodes, yCard := factorizeFloats(y)
	yBinary := yCard <= 2

	for _, name := range X.Names() {
		col := X.Column(name)
		f := Finding{Column: name}
		flag := func(rule string, strength float64) {
			f.Rules = append(f.Rules, rule)
			f.Strength = math.Max(f.Strength, strength)
		}

		codes, card := factorizeSeries(col)

		if card <= 2 {
			if rate := agreement(codes, y); rate >= g.EqTol {
				flag(RuleEquality, rate)
			}
		}

		if yBinary && col.Kind == frame.Numeric {
			if r, ok := metrics.PointBiserial(col.Floats, y); ok && math.Abs(r) >= g.CorrTol {
				flag(RuleCorrelation, math.Abs(r))
			}
		}

		if yBinary && card <= g.MaxCardForMI {
			if mi, ok := normalisedMI(codes, yCodes); ok && mi >= g.MITol {
				flag(RuleAssociation, mi)
			}
		}

		if len(f.Rules) > 0 {
			f.Dropped = true
			g.Flagged = append(g.Flagged, f)
		}
	}
	sort.Slice(g.Flagged, func(i, j int) bool { return g.Flagged[i].Column < g.Flagged[j].Column })

	g.resolveConflicts()
	for _, f := range g.Flagged {
		if f.Dropped {
			g.Columns = append(g.Columns, f.Column)
		}
	}

	if len(g.Flagged) > 0 {
		log.GetLoggerWithName("LeakageGuard").Info("leaking columns detected",
			log.OperationKey, log.OperationFit,
			log.DroppedColumnsKey, g.Columns,
			"leakage.flagged", len(g.Flagged),
			"leakage.policy", g.Policy.String(),
		)
	}
	return nil
}

func (g *LeakageGuard) resolveConflicts() {
	if g.Policy != KeepWeakestStatistical {
		return
	}
	weakest, candidates := -1, 0
	for i, f := range g.Flagged {
		if !f.statisticalOnly() {
			continue
		}
		candidates++
		if weakest < 0 || f.Strength < g.Flagged[weakest].Strength {
			weakest = i
		}
	}
	if candidates >= 2 {
		g.Flagged[weakest].Dropped = false
	}
}

// Transform drops the learned columns; ones absent from X are ignored.
func (g *LeakageGuard) Transform(X *frame.Frame) (*frame.Frame, error) {
	return X.Drop(g.Columns...), nil
}

// DropColumns returns the learned drop list.
func (g *LeakageGuard) DropColumns() []string {
	return append([]string(nil), g.Columns...)
}

// Findings returns one entry per flagged column, including any kept by the
// conflict policy.
func (g *LeakageGuard) Findings() []Finding {
	return append([]Finding(nil), g.Flagged...)
}

// agreement compares the 0/1 codes of a low-cardinality column with y, directly
// and inverted, over rows where both are present. It returns the larger rate.
func agreement(codes []int, y []float64) float64 {
	same, inverted, n := 0, 0, 0
	for i, c := range codes {
		if c < 0 || math.IsNaN(y[i]) {
			continue
		}
		n++
		if float64(c) == y[i] {
			same++
		}
		if float64(1-c) == y[i] {
			inverted++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(max(same, inverted)) / float64(n)
}

func normalisedMI(codes, yCodes []int) (float64, bool) {
	a := make([]int, 0, len(codes))
	b := make([]int, 0, len(codes))
	distinct := map[int]struct{}{}
	for i := range codes {
		if codes[i] < 0 || yCodes[i] < 0 {
			continue
		}
		a = append(a, codes[i])
		b = append(b, yCodes[i])
		distinct[codes[i]] = struct{}{}
	}
	if len(a) <= 5 {
		return 0, false
	}
	card := math.Max(2, float64(len(distinct)))
	return metrics.MutualInformation(a, b) / math.Log(card), true
}

// factorizeSeries assigns codes by sorted distinct value, numerically for numeric
// series and lexically otherwise. Missing rows get -1.
func factorizeSeries(s *frame.Series) ([]int, int) {
	if s.Kind == frame.Numeric {
		return factorizeFloats(s.Floats)
	}
	keys, ok := s.Keys()
	uniq := map[string]struct{}{}
	for i, k := range keys {
		if ok[i] {
			uniq[k] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(uniq))
	for k := range uniq {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)
	index := make(map[string]int, len(sorted))
	for i, k := range sorted {
		index[k] = i
	}
	codes := make([]int, len(keys))
	for i, k := range keys {
		codes[i] = -1
		if ok[i] {
			codes[i] = index[k]
		}
	}
	return codes, len(sorted)
}

func factorizeFloats(v []float64) ([]int, int) {
	uniq := map[float64]struct{}{}
	for _, x := range v {
		if !math.IsNaN(x) {
			uniq[x] = struct{}{}
		}
	}
	sorted := make([]float64, 0, len(uniq))
	for x := range uniq {
		sorted = append(sorted, x)
	}
	sort.Float64s(sorted)
	index := make(map[float64]int, len(sorted))
	for i, x := range sorted {
		index[x] = i
	}
	codes := make([]int, len(v))
	for i, x := range v {
		codes[i] = -1
		if !math.IsNaN(x) {
			codes[i] = index[x]
		}
	}
	return codes, len(sorted)
}

// String summarises the guard's tolerances.
func (g *LeakageGuard) String() string {
	return fmt.Sprintf("LeakageGuard(eq_tol=%g, corr_tol=%g, mi_tol=%g, policy=%s)",
		g.EqTol, g.CorrTol, g.MITol, g.Policy)
}
