package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/core/model"
	medErrors "github.com/ezoic/medscore/pkg/errors"
)

// OneHotEncoder encodes categorical columns as 0/1 indicator columns, one per
// category seen at fit. Unknown categories and missing values encode as all zeros.
type OneHotEncoder struct {
	model.BaseEstimator

	// Columns are the input columns in fit order.
	Columns []string

	// Categories holds the sorted categories of each column.
	Categories [][]string

	// CategoryToIdx maps category to its position within the column's block.
	CategoryToIdx []map[string]int

	// NOutputs is the total number of indicator columns.
	NOutputs int
}

// NewOneHotEncoder creates a new OneHotEncoder.
//
//	encoder := preprocessing.NewOneHotEncoder()
//	err := encoder.Fit(X, nil)
//	encoded, err := encoder.Transform(X)
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{}
}

// Fit learns the category vocabulary of every column in X.
func (e *OneHotEncoder) Fit(X *frame.Frame, _ []float64) (err error) {
	defer medErrors.Recover(&err, "OneHotEncoder.Fit")
	if X.NRows() == 0 {
		return medErrors.NewModelError("OneHotEncoder.Fit", "empty data", medErrors.ErrEmptyData)
	}

	e.Columns = X.Names()
	e.Categories = make([][]string, len(e.Columns))
	e.CategoryToIdx = make([]map[string]int, len(e.Columns))
	e.NOutputs = 0

	for j, name := range e.Columns {
		keys, ok := X.Strings(name)
		categorySet := make(map[string]bool)
		for i, k := range keys {
			if ok[i] {
				categorySet[k] = true
			}
		}

		categories := make([]string, 0, len(categorySet))
		for category := range categorySet {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		e.Categories[j] = categories

		categoryToIdx := make(map[string]int, len(categories))
		for idx, category := range categories {
			categoryToIdx[category] = idx
		}
		e.CategoryToIdx[j] = categoryToIdx
		e.NOutputs += len(categories)
	}

	e.SetFitted()
	return nil
}

// Transform encodes X. Columns are looked up by name, so column order in X does not
// matter and absent columns encode as all zeros.
func (e *OneHotEncoder) Transform(X *frame.Frame) (_ *mat.Dense, err error) {
	defer medErrors.Recover(&err, "OneHotEncoder.Transform")
	if !e.IsFitted() {
		return nil, medErrors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	nSamples := X.NRows()
	if nSamples == 0 || e.NOutputs == 0 {
		return nil, medErrors.NewModelError("OneHotEncoder.Transform", "nothing to encode", medErrors.ErrEmptyData)
	}

	result := mat.NewDense(nSamples, e.NOutputs, nil)
	offset := 0
	for j, name := range e.Columns {
		keys, ok := X.Strings(name)
		for i, k := range keys {
			if !ok[i] {
				continue
			}
			if idx, exists := e.CategoryToIdx[j][k]; exists {
				result.Set(i, offset+idx, 1.0)
			}
		}
		offset += len(e.Categories[j])
	}
	return result, nil
}

// FeatureNamesOut returns "<column>_<category>" for every output column.
func (e *OneHotEncoder) FeatureNamesOut() []string {
	if !e.IsFitted() {
		return nil
	}
	var out []string
	for j, categories := range e.Categories {
		for _, category := range categories {
			out = append(out, fmt.Sprintf("%s_%s", e.Columns[j], category))
		}
	}
	return out
}
