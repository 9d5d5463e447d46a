package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/core/model"
	medErrors "github.com/ezoic/medscore/pkg/errors"
)

// IQRClipper clamps every column to [Q1 - K*IQR, Q3 + K*IQR], with quartiles
// computed on the non-missing training values. NaN passes through.
type IQRClipper struct {
	model.BaseEstimator

	K float64

	Lower     []float64
	Upper     []float64
	NFeatures int
}

// NewIQRClipper creates a clipper with Tukey's k (1.5 for the usual fences).
func NewIQRClipper(k float64) *IQRClipper {
	return &IQRClipper{K: k}
}

// Fit learns the fences of every column. A column with no values gets infinite
// fences and is never clipped.
func (c *IQRClipper) Fit(X mat.Matrix) (err error) {
	defer medErrors.Recover(&err, "IQRClipper.Fit")
	r, cols := X.Dims()
	if r == 0 || cols == 0 {
		return medErrors.NewModelError("IQRClipper.Fit", "empty data", medErrors.ErrEmptyData)
	}
	if c.K < 0 {
		return medErrors.NewValidationError("k", "must be non-negative", c.K)
	}

	c.NFeatures = cols
	c.Lower = make([]float64, cols)
	c.Upper = make([]float64, cols)
	for j := 0; j < cols; j++ {
		vals := presentSorted(X, j)
		if len(vals) == 0 {
			c.Lower[j], c.Upper[j] = math.Inf(-1), math.Inf(1)
			continue
		}
		q1, q3 := Quantile(vals, 0.25), Quantile(vals, 0.75)
		iqr := q3 - q1
		c.Lower[j] = q1 - c.K*iqr
		c.Upper[j] = q3 + c.K*iqr
	}

	c.SetFitted()
	return nil
}

// Transform clamps X to the fitted fences.
func (c *IQRClipper) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer medErrors.Recover(&err, "IQRClipper.Transform")
	if !c.IsFitted() {
		return nil, medErrors.NewNotFittedError("IQRClipper", "Transform")
	}
	r, cols := X.Dims()
	if cols != c.NFeatures {
		return nil, medErrors.NewDimensionError("IQRClipper.Transform", c.NFeatures, cols, 1)
	}
	out := mat.NewDense(r, cols, nil)
	out.Apply(func(i, j int, v float64) float64 {
		if math.IsNaN(v) {
			return v
		}
		return math.Min(math.Max(v, c.Lower[j]), c.Upper[j])
	}, X)
	return out, nil
}

// Outside reports whether v lies strictly beyond the fences of column j.
func (c *IQRClipper) Outside(j int, v float64) bool {
	return v < c.Lower[j] || v > c.Upper[j]
}

func (c *IQRClipper) String() string {
	return fmt.Sprintf("IQRClipper(k=%g)", c.K)
}
