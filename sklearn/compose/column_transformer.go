// Package compose implements the column router that turns a frame into a design
// matrix, and the schema reconciler that recovers a fitted router's input columns.
package compose

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/core/model"
	"github.com/ezoic/medscore/pkg/errors"
)

func init() {
	model.Register(&ColumnTransformer{})
}

// ConstantFeature names the single output column emitted when no branch produced
// any feature at fit.
const ConstantFeature = "constant"

// Selector picks the columns a branch consumes. Names, when set, are used as
// given; otherwise columns are chosen by kind.
type Selector struct {
	Names   []string
	Kinds   []frame.Kind
	Exclude bool
}

// Columns selects the named columns.
func Columns(names ...string) Selector {
	return Selector{Names: names}
}

// ByKind selects every column of one of the given kinds.
func ByKind(kinds ...frame.Kind) Selector {
	return Selector{Kinds: kinds}
}

// ExcludeKinds selects every column not of the given kinds.
func ExcludeKinds(kinds ...frame.Kind) Selector {
	return Selector{Kinds: kinds, Exclude: true}
}

// Resolve returns the columns of X the selector matches, in frame order.
func (s Selector) Resolve(X *frame.Frame) []string {
	if s.Names != nil {
		return append([]string(nil), s.Names...)
	}
	if !s.Exclude {
		return X.NamesOfKind(s.Kinds...)
	}
	var out []string
	for _, name := range X.Names() {
		kind := X.Column(name).Kind
		excluded := false
		for _, k := range s.Kinds {
			if k == kind {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, name)
		}
	}
	return out
}

// Branch routes the columns chosen by Selector to Encoder.
type Branch struct {
	Name     string
	Encoder  model.FrameEncoder
	Selector Selector

	// Columns are the resolved input columns, recorded at fit.
	Columns []string
	// Active is false when the branch matched no column or produced no feature.
	Active bool
}

// NewBranch creates a branch.
func NewBranch(name string, encoder model.FrameEncoder, selector Selector) Branch {
	return Branch{Name: name, Encoder: encoder, Selector: selector}
}

// ColumnTransformer applies one encoder per branch and concatenates their outputs.
// Columns matched by no branch are dropped. Branch membership is resolved once at
// fit; at transform time columns are looked up by name and absent ones are treated
// as missing.
type ColumnTransformer struct {
	model.BaseEstimator

	Branches []Branch

	// NamesIn are the columns of the frame seen at fit, in order.
	NamesIn []string
	// NamesOut are "<branch>__<feature>" for every output column.
	NamesOut []string
	// Constant is set when no branch is active; Transform then emits one column of ones.
	Constant bool
}

// NewColumnTransformer creates a router over the given branches.
//
//	ct := compose.NewColumnTransformer(
//		compose.NewBranch("num", numeric, compose.ByKind(frame.Numeric)),
//		compose.NewBranch("cat", categorical, compose.ExcludeKinds(frame.Numeric)),
//	)
func NewColumnTransformer(branches ...Branch) *ColumnTransformer {
	return &ColumnTransformer{Branches: branches}
}

// Fit resolves every branch against X and fits its encoder. A column already
// claimed by an earlier branch is not routed again.
func (ct *ColumnTransformer) Fit(X *frame.Frame, y []float64) (err error) {
	defer errors.Recover(&err, "ColumnTransformer.Fit")
	if X.NRows() == 0 {
		return errors.NewModelError("ColumnTransformer.Fit", "empty data", errors.ErrEmptyData)
	}

	ct.NamesIn = X.Names()
	ct.NamesOut = nil
	claimed := make(map[string]bool)
	for i := range ct.Branches {
		b := &ct.Branches[i]
		b.Columns, b.Active = nil, false
		for _, name := range b.Selector.Resolve(X) {
			if !claimed[name] {
				b.Columns = append(b.Columns, name)
			}
		}
		if len(b.Columns) == 0 {
			continue
		}
		for _, name := range b.Columns {
			claimed[name] = true
		}
		if err := b.Encoder.Fit(Align(X, b.Columns), y); err != nil {
			return errors.Wrapf(err, "failed to fit branch '%s'", b.Name)
		}
		out := b.Encoder.FeatureNamesOut()
		if len(out) == 0 {
			continue
		}
		b.Active = true
		for _, name := range out {
			ct.NamesOut = append(ct.NamesOut, fmt.Sprintf("%s__%s", b.Name, name))
		}
	}

	ct.Constant = len(ct.NamesOut) == 0
	if ct.Constant {
		ct.NamesOut = []string{ConstantFeature}
	}
	ct.SetFitted()
	return nil
}

// Transform encodes X with every active branch and concatenates the results.
func (ct *ColumnTransformer) Transform(X *frame.Frame) (_ *mat.Dense, err error) {
	defer errors.Recover(&err, "ColumnTransformer.Transform")
	if !ct.IsFitted() {
		return nil, errors.NewNotFittedError("ColumnTransformer", "Transform")
	}
	n := X.NRows()
	if n == 0 {
		return nil, errors.NewModelError("ColumnTransformer.Transform", "empty data", errors.ErrEmptyData)
	}
	if ct.Constant {
		ones := make([]float64, n)
		for i := range ones {
			ones[i] = 1
		}
		return mat.NewDense(n, 1, ones), nil
	}

	var result *mat.Dense
	for _, b := range ct.Branches {
		if !b.Active {
			continue
		}
		m, err := b.Encoder.Transform(Align(X, b.Columns))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to transform branch '%s'", b.Name)
		}
		if result == nil {
			result = m
			continue
		}
		var joined mat.Dense
		joined.Augment(result, m)
		result = &joined
	}
	return result, nil
}

// FeatureNamesIn returns the columns seen at fit, or nil before fit.
func (ct *ColumnTransformer) FeatureNamesIn() []string {
	if ct.NamesIn == nil {
		return nil
	}
	return append([]string(nil), ct.NamesIn...)
}

// DeclaredColumns returns the explicitly named selector columns plus the columns
// each branch resolved at fit.
func (ct *ColumnTransformer) DeclaredColumns() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(names []string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	for _, b := range ct.Branches {
		add(b.Selector.Names)
		add(b.Columns)
	}
	return out
}

// FeatureNamesOut returns the output column names.
func (ct *ColumnTransformer) FeatureNamesOut() []string {
	return append([]string(nil), ct.NamesOut...)
}

// Components returns the branch encoders.
func (ct *ColumnTransformer) Components() []any {
	out := make([]any, 0, len(ct.Branches))
	for _, b := range ct.Branches {
		out = append(out, b.Encoder)
	}
	return out
}
