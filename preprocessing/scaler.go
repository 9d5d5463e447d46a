// Package preprocessing provides the fitted transformers that turn a clinical frame
// into a model-ready design matrix.
//
// Frame stages (column selection):
//
//   - IdentifierDropper: removes near-unique and constant columns
//   - LeakageGuard: removes columns that duplicate or strongly predict the target
//
// Matrix stages (per-column statistics, NaN marks a missing value):
//
//   - SimpleImputer: median / mean / constant fill
//   - IQRClipper: clamps values to Tukey fences
//   - StandardScaler, MinMaxScaler
//
// Encoders (frame to matrix):
//
//   - NumericBranch: imputer, optional clipper and scaler over numeric columns
//   - CategoricalBranch: most-frequent imputation then one-hot encoding
//
// NewPreprocessor composes all of them into the leakage-safe preprocessing unit
// shared by the classification and regression trainers:
//
//	pre := preprocessing.NewPreprocessor()
//	if err := pre.Fit(train, y); err != nil {
//		return err
//	}
//	X, err := pre.Transform(test)
//
// Every stage is fitted once and reused unmodified afterwards. Learned state lives
// in exported fields so a fitted preprocessor survives gob encoding.
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/medscore/core/model"
	medErrors "github.com/ezoic/medscore/pkg/errors"
)

// StandardScaler standardizes features by removing the mean and scaling to unit
// variance. NaN entries are ignored when fitting and passed through on transform.
type StandardScaler struct {
	model.BaseEstimator

	// Mean holds the per-feature mean (zero when WithMean is false).
	Mean []float64

	// Scale holds the per-feature population standard deviation.
	Scale []float64

	NFeatures int

	// WithMean centers the data before scaling (default: true).
	WithMean bool

	// WithStd divides by the standard deviation (default: true).
	WithStd bool
}

// NewStandardScaler returns an unfitted scaler. withMean=false scales without
// centring, which keeps zero entries at zero.
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault creates a StandardScaler that centers and scales.
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit records the per-column mean and population standard deviation over the
// non-missing values. Constant or all-missing columns get a scale of 1.
func (s *StandardScaler) Fit(X mat.Matrix) (err error) {
	defer medErrors.Recover(&err, "StandardScaler.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return medErrors.NewModelError("StandardScaler.Fit", "empty data", medErrors.ErrEmptyData)
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	present := make([]float64, 0, r)
	for j := range c {
		present = present[:0]
		for i := range r {
			if v := X.At(i, j); !math.IsNaN(v) {
				present = append(present, v)
			}
		}
		s.Scale[j] = 1
		if len(present) == 0 {
			continue
		}
		mean, std := stat.PopMeanStdDev(present, nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		if s.WithStd && std >= 1e-8 {
			s.Scale[j] = std
		}
	}

	s.SetFitted()
	return nil
}

// Transform returns (X - Mean) / Scale.
func (s *StandardScaler) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer medErrors.Recover(&err, "StandardScaler.Transform")
	if !s.IsFitted() {
		return nil, medErrors.NewNotFittedError("StandardScaler", "Transform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, medErrors.NewDimensionError("StandardScaler.Transform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return result, nil
}

// FitTransform fits the scaler and transforms the training data in one step.
func (s *StandardScaler) FitTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer medErrors.Recover(&err, "StandardScaler.FitTransform")
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps standardized values back to the original units.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer medErrors.Recover(&err, "StandardScaler.InverseTransform")
	if !s.IsFitted() {
		return nil, medErrors.NewNotFittedError("StandardScaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, medErrors.NewDimensionError("StandardScaler.InverseTransform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	}, X)
	return result, nil
}

// GetParams returns the scaler's hyperparameters.
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, s.NFeatures)
}

// MinMaxScaler rescales each feature to FeatureRange. It is also used to turn
// unbounded decision scores into probability-like values in [0, 1].
type MinMaxScaler struct {
	model.BaseEstimator

	// DataMin and DataMax are the per-feature extremes seen at fit.
	DataMin []float64
	DataMax []float64

	// Scale is DataMax - DataMin plus Epsilon, or 1 for constant features when
	// Epsilon is zero.
	Scale []float64

	NFeatures int

	// FeatureRange is the target interval [min, max].
	FeatureRange [2]float64

	// Epsilon is added to every range. A positive value maps constant features to
	// FeatureRange[0] instead of dividing by zero.
	Epsilon float64
}

// NewMinMaxScaler returns an unfitted scaler targeting featureRange.
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault creates a MinMaxScaler for the [0, 1] range.
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// Fit computes the per-feature minimum and maximum, ignoring NaN.
func (m *MinMaxScaler) Fit(X mat.Matrix) (err error) {
	defer medErrors.Recover(&err, "MinMaxScaler.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return medErrors.NewModelError("MinMaxScaler.Fit", "empty data", medErrors.ErrEmptyData)
	}

	m.NFeatures = c
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.Scale = make([]float64, c)

	for j := 0; j < c; j++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < r; i++ {
			v := X.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if math.IsInf(lo, 1) {
			lo, hi = 0, 0
		}
		m.DataMin[j] = lo
		m.DataMax[j] = hi

		m.Scale[j] = hi - lo + m.Epsilon
		if m.Scale[j] < 1e-12 {
			m.Scale[j] = 1.0
		}
	}

	m.SetFitted()
	return nil
}

// Transform scales X into FeatureRange using the fitted extremes.
func (m *MinMaxScaler) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer medErrors.Recover(&err, "MinMaxScaler.Transform")
	if !m.IsFitted() {
		return nil, medErrors.NewNotFittedError("MinMaxScaler", "Transform")
	}

	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, medErrors.NewDimensionError("MinMaxScaler.Transform", m.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	featureRange := m.FeatureRange[1] - m.FeatureRange[0]
	result.Apply(func(i, j int, v float64) float64 {
		return (v-m.DataMin[j])/m.Scale[j]*featureRange + m.FeatureRange[0]
	}, X)
	return result, nil
}

// FitTransform fits the scaler and transforms the training data in one step.
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer medErrors.Recover(&err, "MinMaxScaler.FitTransform")
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// GetParams returns the scaler's hyperparameters.
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"feature_range": m.FeatureRange,
		"epsilon":       m.Epsilon,
	}
}

func (m *MinMaxScaler) String() string {
	if !m.IsFitted() {
		return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f])",
			m.FeatureRange[0], m.FeatureRange[1])
	}
	return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f], n_features=%d)",
		m.FeatureRange[0], m.FeatureRange[1], m.NFeatures)
}

// ProbabilityLike rescales scores to [0, 1] as (s - min) / (max - min + 1e-9).
// Constant scores all map to 0.
func ProbabilityLike(scores []float64) ([]float64, error) {
	if len(scores) == 0 {
		return nil, nil
	}
	m := NewMinMaxScalerDefault()
	m.Epsilon = 1e-9
	out, err := m.FitTransform(mat.NewDense(len(scores), 1, append([]float64(nil), scores...)))
	if err != nil {
		return nil, err
	}
	return mat.Col(nil, 0, out), nil
}
