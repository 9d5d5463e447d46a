package tree

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/core/model"
	"github.com/ezoic/medscore/pkg/errors"
)

// DecisionTreeRegressor implements a CART regression tree minimising squared error.
type DecisionTreeRegressor struct {
	model.BaseEstimator
	Params

	Root        *TreeNode
	NFeatures   int
	Importances []float64
}

// NewDecisionTreeRegressor creates a new regression tree.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	return &DecisionTreeRegressor{Params: newParams("squared_error", opts)}
}

// Fit trains the regression tree.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")
	Xd, target, err := checkXY("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	return dt.FitSample(Xd, target, allRows(len(target)))
}

// FitSample grows the tree on the given rows of X (duplicates allowed).
func (dt *DecisionTreeRegressor) FitSample(X *mat.Dense, y []float64, rows []int) error {
	if len(rows) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	b := newBuilder(X, dt.Params)
	b.y = y

	_, dt.NFeatures = X.Dims()
	dt.Root = b.build(rows, 0)
	dt.Importances = b.normalizedImportances()
	dt.SetFitted()
	return nil
}

// Predict returns the leaf mean for every row.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Predict")
	if !dt.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeRegressor", "Predict")
	}
	nSamples, c := X.Dims()
	if c != dt.NFeatures {
		return nil, errors.NewDimensionError("DecisionTreeRegressor.Predict", dt.NFeatures, c, 1)
	}
	predictions := mat.NewVecDense(nSamples, nil)
	for i := 0; i < nSamples; i++ {
		predictions.SetVec(i, dt.Root.leaf(X, i).Value[0])
	}
	return predictions, nil
}

// Leaf returns the leaf reached by row i of X. Boosting rewrites leaf values
// through it.
func (dt *DecisionTreeRegressor) Leaf(X mat.Matrix, i int) *TreeNode {
	return dt.Root.leaf(X, i)
}

// FeatureImportances returns normalized variance-reduction importances.
func (dt *DecisionTreeRegressor) FeatureImportances() []float64 {
	return append([]float64(nil), dt.Importances...)
}

func (dt *DecisionTreeRegressor) String() string {
	return fmt.Sprintf("DecisionTreeRegressor(max_depth=%d)", dt.MaxDepth)
}
