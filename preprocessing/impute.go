package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/core/model"
	medErrors "github.com/ezoic/medscore/pkg/errors"
)

// Quantile returns the p-quantile of sorted values using linear interpolation
// between closest ranks (the default estimator of numpy and pandas). sorted must
// be ascending and free of NaN.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return math.NaN()
	case n == 1:
		return sorted[0]
	}
	h := p * float64(n-1)
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// presentSorted returns the non-NaN values of column j in ascending order.
func presentSorted(X mat.Matrix, j int) []float64 {
	r, _ := X.Dims()
	vals := make([]float64, 0, r)
	for i := 0; i < r; i++ {
		if v := X.At(i, j); !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	sort.Float64s(vals)
	return vals
}

// Imputation strategies for SimpleImputer.
const (
	StrategyMedian   = "median"
	StrategyMean     = "mean"
	StrategyConstant = "constant"
)

// SimpleImputer replaces NaN with a per-column statistic learned at fit. Columns
// with no observed values are filled with FillValue.
type SimpleImputer struct {
	model.BaseEstimator

	Strategy  string
	FillValue float64

	// Statistics holds the learned fill value per column.
	Statistics []float64
	NFeatures  int
}

// NewSimpleImputer creates an imputer for the given strategy.
func NewSimpleImputer(strategy string) *SimpleImputer {
	return &SimpleImputer{Strategy: strategy}
}

// Fit learns the fill value of every column.
func (s *SimpleImputer) Fit(X mat.Matrix) (err error) {
	defer medErrors.Recover(&err, "SimpleImputer.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return medErrors.NewModelError("SimpleImputer.Fit", "empty data", medErrors.ErrEmptyData)
	}
	switch s.Strategy {
	case StrategyMedian, StrategyMean, StrategyConstant:
	default:
		return medErrors.NewValidationError("strategy", "must be median, mean or constant", s.Strategy)
	}

	s.NFeatures = c
	s.Statistics = make([]float64, c)
	for j := 0; j < c; j++ {
		vals := presentSorted(X, j)
		switch {
		case s.Strategy == StrategyConstant || len(vals) == 0:
			s.Statistics[j] = s.FillValue
		case s.Strategy == StrategyMedian:
			s.Statistics[j] = Quantile(vals, 0.5)
		default:
			s.Statistics[j] = stat.Mean(vals, nil)
		}
	}

	s.SetFitted()
	return nil
}

// Transform fills NaN entries with the learned statistics.
func (s *SimpleImputer) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer medErrors.Recover(&err, "SimpleImputer.Transform")
	if !s.IsFitted() {
		return nil, medErrors.NewNotFittedError("SimpleImputer", "Transform")
	}
	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, medErrors.NewDimensionError("SimpleImputer.Transform", s.NFeatures, c, 1)
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		if math.IsNaN(v) {
			return s.Statistics[j]
		}
		return v
	}, X)
	return out, nil
}

// FitTransform fits the imputer and fills X in one step.
func (s *SimpleImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

func (s *SimpleImputer) String() string {
	return fmt.Sprintf("SimpleImputer(strategy=%s)", s.Strategy)
}

// CategoricalImputer fills missing values in text columns with the most frequent
// value seen at fit. Ties go to the lexically smallest value.
type CategoricalImputer struct {
	model.BaseEstimator

	// Fill maps column name to its fill value. Columns with no observed value at
	// fit have no entry and stay missing.
	Fill map[string]string
}

// NewCategoricalImputer creates a most-frequent imputer.
func NewCategoricalImputer() *CategoricalImputer {
	return &CategoricalImputer{}
}

// Fit learns the modal value of every column in X.
func (c *CategoricalImputer) Fit(X *frame.Frame, _ []float64) (err error) {
	defer medErrors.Recover(&err, "CategoricalImputer.Fit")
	c.Fill = make(map[string]string, X.NCols())
	for _, name := range X.Names() {
		keys, ok := X.Strings(name)
		counts := make(map[string]int)
		for i, k := range keys {
			if ok[i] {
				counts[k]++
			}
		}
		best, bestN := "", 0
		for k, n := range counts {
			if n > bestN || (n == bestN && k < best) {
				best, bestN = k, n
			}
		}
		if bestN > 0 {
			c.Fill[name] = best
		}
	}
	c.SetFitted()
	return nil
}

// Transform returns X with every column rendered as categorical text and missing
// entries filled. Columns unseen at fit pass through unchanged.
func (c *CategoricalImputer) Transform(X *frame.Frame) (_ *frame.Frame, err error) {
	defer medErrors.Recover(&err, "CategoricalImputer.Transform")
	if !c.IsFitted() {
		return nil, medErrors.NewNotFittedError("CategoricalImputer", "Transform")
	}
	out := X
	for _, name := range X.Names() {
		fill, known := c.Fill[name]
		if !known {
			continue
		}
		keys, ok := X.Strings(name)
		vals := make([]string, len(keys))
		valid := make([]bool, len(keys))
		for i := range keys {
			vals[i], valid[i] = keys[i], ok[i]
			if !ok[i] {
				vals[i], valid[i] = fill, true
			}
		}
		if out, err = out.Add(frame.NewCategorical(name, vals, valid)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
