package tree

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/core/model"
	"github.com/ezoic/medscore/pkg/errors"
)

// DecisionTreeClassifier implements a CART decision tree for classification.
type DecisionTreeClassifier struct {
	model.BaseEstimator
	Params

	Root        *TreeNode
	Classes     []float64 // sorted class labels
	NFeatures   int
	Importances []float64
}

// NewDecisionTreeClassifier creates a new decision tree classifier using the
// gini criterion.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	return &DecisionTreeClassifier{Params: newParams("gini", opts)}
}

// Fit trains the decision tree
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")
	Xd, target, err := checkXY("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	return dt.FitSample(Xd, target, allRows(len(target)), UniqueLabels(target))
}

// FitSample grows the tree on the given rows of X (duplicates allowed) with a
// fixed class list, so trees fitted on bootstrap samples agree on probability
// columns. Ensembles call it directly.
func (dt *DecisionTreeClassifier) FitSample(X *mat.Dense, y []float64, rows []int, classes []float64) error {
	if len(rows) == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if dt.Criterion != "gini" && dt.Criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.Criterion)
	}
	index := make(map[float64]int, len(classes))
	for k, c := range classes {
		index[c] = k
	}
	classIdx := make([]int, len(y))
	for _, r := range rows {
		k, ok := index[y[r]]
		if !ok {
			return errors.NewValueError("DecisionTreeClassifier.Fit", fmt.Sprintf("label %v not in classes", y[r]))
		}
		classIdx[r] = k
	}

	b := newBuilder(X, dt.Params)
	b.classIdx = classIdx
	b.nClasses = len(classes)

	dt.Classes = append([]float64(nil), classes...)
	_, dt.NFeatures = X.Dims()
	dt.Root = b.build(rows, 0)
	dt.Importances = b.normalizedImportances()
	dt.SetFitted()
	return nil
}

// UniqueLabels returns the sorted distinct values of y.
func UniqueLabels(y []float64) []float64 {
	seen := make(map[float64]bool)
	var out []float64
	for _, v := range y {
		if !seen[v] && !math.IsNaN(v) {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

func (dt *DecisionTreeClassifier) check(X mat.Matrix, op string) error {
	if !dt.IsFitted() {
		return errors.NewNotFittedError("DecisionTreeClassifier", op)
	}
	if _, c := X.Dims(); c != dt.NFeatures {
		return errors.NewDimensionError("DecisionTreeClassifier."+op, dt.NFeatures, c, 1)
	}
	return nil
}

// PredictProba returns probability estimates for each class, one column per
// entry of Classes.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.PredictProba")
	if err := dt.check(X, "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, _ := X.Dims()
	probas := mat.NewDense(nSamples, len(dt.Classes), nil)
	for i := 0; i < nSamples; i++ {
		probas.SetRow(i, dt.Root.leaf(X, i).Value)
	}
	return probas, nil
}

// Predict returns the most probable class of every row.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Predict")
	if err := dt.check(X, "Predict"); err != nil {
		return nil, err
	}
	nSamples, _ := X.Dims()
	predictions := mat.NewVecDense(nSamples, nil)
	for i := 0; i < nSamples; i++ {
		predictions.SetVec(i, dt.Classes[argmax(dt.Root.leaf(X, i).Value)])
	}
	return predictions, nil
}

// FeatureImportances returns normalized impurity-decrease importances.
func (dt *DecisionTreeClassifier) FeatureImportances() []float64 {
	return append([]float64(nil), dt.Importances...)
}

// Depth returns the depth of the fitted tree.
func (dt *DecisionTreeClassifier) Depth() int {
	return dt.Root.MaxDepth()
}

// NLeaves returns the number of leaf nodes.
func (dt *DecisionTreeClassifier) NLeaves() int {
	return dt.Root.NLeaves()
}

func (dt *DecisionTreeClassifier) String() string {
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d)", dt.Criterion, dt.MaxDepth)
}

// argmax returns the index of the first largest value.
func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
