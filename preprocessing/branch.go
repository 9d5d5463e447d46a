package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/core/model"
	medErrors "github.com/ezoic/medscore/pkg/errors"
)

func init() {
	model.Register(&NumericBranch{}, &CategoricalBranch{}, &IdentifierDropper{}, &LeakageGuard{})
}

// NumericBranch encodes numeric columns: median imputation, optional IQR clipping,
// then scaling without centering.
type NumericBranch struct {
	model.BaseEstimator

	Columns []string
	Imputer *SimpleImputer
	Clipper *IQRClipper
	Scaler  *StandardScaler
}

// NewNumericBranch creates the numeric branch. clipOutliers inserts an IQRClipper
// with k=1.5 between imputation and scaling.
func NewNumericBranch(clipOutliers bool) *NumericBranch {
	b := &NumericBranch{
		Imputer: NewSimpleImputer(StrategyMedian),
		Scaler:  NewStandardScaler(false, true),
	}
	if clipOutliers {
		b.Clipper = NewIQRClipper(1.5)
	}
	return b
}

func (b *NumericBranch) matrix(X *frame.Frame) *mat.Dense {
	m := mat.NewDense(X.NRows(), len(b.Columns), nil)
	for j, name := range b.Columns {
		m.SetCol(j, X.Floats(name))
	}
	return m
}

// Fit learns imputation values, fences and scales for every column of X.
func (b *NumericBranch) Fit(X *frame.Frame, _ []float64) (err error) {
	defer medErrors.Recover(&err, "NumericBranch.Fit")
	b.Columns = X.Names()
	if len(b.Columns) == 0 || X.NRows() == 0 {
		return medErrors.NewModelError("NumericBranch.Fit", "empty data", medErrors.ErrEmptyData)
	}
	if _, err := b.fitTransform(b.matrix(X)); err != nil {
		return err
	}
	b.SetFitted()
	return nil
}

func (b *NumericBranch) fitTransform(m mat.Matrix) (mat.Matrix, error) {
	out, err := b.Imputer.FitTransform(m)
	if err != nil {
		return nil, err
	}
	if b.Clipper != nil {
		if err := b.Clipper.Fit(out); err != nil {
			return nil, err
		}
		if out, err = b.Clipper.Transform(out); err != nil {
			return nil, err
		}
	}
	return b.Scaler.FitTransform(out)
}

// Transform encodes X. Absent columns are treated as entirely missing.
func (b *NumericBranch) Transform(X *frame.Frame) (_ *mat.Dense, err error) {
	defer medErrors.Recover(&err, "NumericBranch.Transform")
	if !b.IsFitted() {
		return nil, medErrors.NewNotFittedError("NumericBranch", "Transform")
	}
	out, err := b.Imputer.Transform(b.matrix(X))
	if err != nil {
		return nil, err
	}
	if b.Clipper != nil {
		if out, err = b.Clipper.Transform(out); err != nil {
			return nil, err
		}
	}
	if out, err = b.Scaler.Transform(out); err != nil {
		return nil, err
	}
	return mat.DenseCopyOf(out), nil
}

// FeatureNamesOut returns the numeric column names.
func (b *NumericBranch) FeatureNamesOut() []string {
	return append([]string(nil), b.Columns...)
}

// Components exposes the fitted steps.
func (b *NumericBranch) Components() []any {
	out := []any{b.Imputer}
	if b.Clipper != nil {
		out = append(out, b.Clipper)
	}
	return append(out, b.Scaler)
}

// CategoricalBranch encodes the remaining columns: most-frequent imputation, then
// one-hot encoding that ignores unknown categories.
type CategoricalBranch struct {
	model.BaseEstimator

	Imputer *CategoricalImputer
	Encoder *OneHotEncoder
}

// NewCategoricalBranch creates the categorical branch.
func NewCategoricalBranch() *CategoricalBranch {
	return &CategoricalBranch{
		Imputer: NewCategoricalImputer(),
		Encoder: NewOneHotEncoder(),
	}
}

// Fit learns fill values and vocabularies.
func (b *CategoricalBranch) Fit(X *frame.Frame, y []float64) (err error) {
	defer medErrors.Recover(&err, "CategoricalBranch.Fit")
	if err := b.Imputer.Fit(X, y); err != nil {
		return err
	}
	filled, err := b.Imputer.Transform(X)
	if err != nil {
		return err
	}
	if err := b.Encoder.Fit(filled, y); err != nil {
		return err
	}
	b.SetFitted()
	return nil
}

// Transform imputes and encodes X.
func (b *CategoricalBranch) Transform(X *frame.Frame) (_ *mat.Dense, err error) {
	defer medErrors.Recover(&err, "CategoricalBranch.Transform")
	if !b.IsFitted() {
		return nil, medErrors.NewNotFittedError("CategoricalBranch", "Transform")
	}
	filled, err := b.Imputer.Transform(X)
	if err != nil {
		return nil, err
	}
	return b.Encoder.Transform(filled)
}

// FeatureNamesOut returns the one-hot column names.
func (b *CategoricalBranch) FeatureNamesOut() []string {
	return b.Encoder.FeatureNamesOut()
}

// Components exposes the fitted steps.
func (b *CategoricalBranch) Components() []any {
	return []any{b.Imputer, b.Encoder}
}
