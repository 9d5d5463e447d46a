package training

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/pkg/log"
	"github.com/ezoic/medscore/preprocessing"
)

// LabelPolicy decides what happens when a classification target has fewer
// than two classes after rows with a missing target are dropped.
type LabelPolicy int

const (
	// LabelPolicyFail rejects the run with a ConfigurationError.
	LabelPolicyFail LabelPolicy = iota
	// LabelPolicyProxy thresholds a numeric proxy column at its 95th
	// percentile. A missing proxy is a ConfigurationError.
	LabelPolicyProxy
	// LabelPolicyProxyOrSynthesize tries the proxy, then synthesises a seeded
	// label with 5% prevalence.
	LabelPolicyProxyOrSynthesize
)

// Label sources recorded in Evaluation.LabelSource.
const (
	LabelSourceObserved  = "observed"
	LabelSourceSynthetic = "synthetic"
	labelSourceProxy     = "proxy:"
)

const (
	proxyQuantile        = 0.95
	syntheticPrevalence  = 0.05
	defaultProxyColumn   = "glucose"
	minRowsForProxyLabel = 2
)

func (p LabelPolicy) String() string {
	switch p {
	case LabelPolicyFail:
		return "fail"
	case LabelPolicyProxy:
		return "proxy"
	case LabelPolicyProxyOrSynthesize:
		return "proxy_or_synthesize"
	}
	return "unknown"
}

// ParseLabelPolicy parses "fail", "proxy" or "proxy_or_synthesize".
func ParseLabelPolicy(s string) (LabelPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fail":
		return LabelPolicyFail, nil
	case "proxy", "":
		return LabelPolicyProxy, nil
	case "proxy_or_synthesize", "proxy-or-synthesize", "synthesize":
		return LabelPolicyProxyOrSynthesize, nil
	}
	return 0, errors.NewConfigurationError("ParseLabelPolicy", "label_policy", "unknown label policy "+s)
}

// EncodeBinaryTarget codes a classification target as 0/1 with NaN for missing
// values. Distinct values are sorted (numerically for numeric columns) and the
// second one is the positive class. More than two classes is a
// ConfigurationError; a single class is returned as-is for the label policy to
// handle.
func EncodeBinaryTarget(s *frame.Series) ([]float64, []string, error) {
	n := s.Len()
	codes := make([]float64, n)
	var classes []string
	if s.Kind == frame.Numeric {
		var distinct []float64
		seen := map[float64]bool{}
		for _, v := range s.Floats {
			if !math.IsNaN(v) && !seen[v] {
				seen[v] = true
				distinct = append(distinct, v)
			}
		}
		if len(distinct) > 2 {
			return nil, nil, errors.NewConfigurationError("EncodeBinaryTarget", s.Name,
				fmt.Sprintf("classification target has %d classes; only binary targets are supported", len(distinct)))
		}
		sort.Float64s(distinct)
		for _, v := range distinct {
			classes = append(classes, strconv.FormatFloat(v, 'g', -1, 64))
		}
		for i, v := range s.Floats {
			switch {
			case math.IsNaN(v):
				codes[i] = math.NaN()
			case len(distinct) == 2 && v == distinct[1]:
				codes[i] = 1
			}
		}
		return codes, classes, nil
	}

	keys, valid := s.Keys()
	seen := map[string]bool{}
	for i, k := range keys {
		if valid[i] && !seen[k] {
			seen[k] = true
			classes = append(classes, k)
		}
	}
	if len(classes) > 2 {
		return nil, nil, errors.NewConfigurationError("EncodeBinaryTarget", s.Name,
			fmt.Sprintf("classification target has %d classes; only binary targets are supported", len(classes)))
	}
	sort.Strings(classes)
	for i, k := range keys {
		switch {
		case !valid[i]:
			codes[i] = math.NaN()
		case len(classes) == 2 && k == classes[1]:
			codes[i] = 1
		}
	}
	return codes, classes, nil
}

// proxyLabels thresholds the proxy column at its 95th percentile. ok is false
// when the column is absent or has no numeric values.
func proxyLabels(X *frame.Frame, column string) (y []float64, threshold float64, ok bool) {
	if !X.Has(column) {
		return nil, 0, false
	}
	values := X.Floats(column)
	var present []float64
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return nil, 0, false
	}
	sort.Float64s(present)
	threshold = preprocessing.Quantile(present, proxyQuantile)
	y = make([]float64, len(values))
	for i, v := range values {
		if v >= threshold {
			y[i] = 1
		}
	}
	return y, threshold, true
}

// syntheticLabels marks round(5% of n), at least one, seeded rows positive.
func syntheticLabels(n int, seed int64) []float64 {
	y := make([]float64, n)
	k := max(1, int(math.Round(syntheticPrevalence*float64(n))))
	for _, i := range rand.New(rand.NewSource(seed)).Perm(n)[:k] {
		y[i] = 1
	}
	return y
}

func twoClasses(y []float64) bool {
	for _, v := range y[1:] {
		if v != y[0] {
			return true
		}
	}
	return false
}

// applyLabelPolicy replaces a degenerate target according to policy. It
// returns the features (the proxy column removed when used), the new labels
// and the label source.
func applyLabelPolicy(X *frame.Frame, policy LabelPolicy, proxy string, seed int64, logger log.Logger) (*frame.Frame, []float64, string, error) {
	const op = "Trainer.labels"
	if X.NRows() < minRowsForProxyLabel {
		return nil, nil, "", errors.NewConfigurationError(op, "target", "too few rows to derive a label")
	}
	if policy == LabelPolicyFail {
		return nil, nil, "", errors.NewConfigurationError(op, "target",
			"classification target has a single class and the label policy is fail")
	}

	if y, threshold, ok := proxyLabels(X, proxy); ok && twoClasses(y) {
		source := labelSourceProxy + proxy
		logger.Warn("degenerate target replaced by proxy label",
			log.LabelSourceKey, source,
			"label.policy", policy.String(),
			log.ThresholdKey, threshold,
		)
		return X.Drop(proxy), y, source, nil
	}
	if policy == LabelPolicyProxy {
		return nil, nil, "", errors.NewConfigurationError(op, proxy,
			"classification target has a single class and proxy column "+proxy+" cannot separate rows")
	}

	logger.Warn("degenerate target replaced by synthetic label",
		log.LabelSourceKey, LabelSourceSynthetic,
		"label.policy", policy.String(),
		"label.prevalence", syntheticPrevalence,
	)
	return X, syntheticLabels(X.NRows(), seed), LabelSourceSynthetic, nil
}
