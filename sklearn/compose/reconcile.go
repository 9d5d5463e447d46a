package compose

import (
	"reflect"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/core/model"
)

// ExpectedInputColumns walks root and everything reachable from it through
// model.Composite, collecting the input columns of every model.ColumnRouter found.
// A router's recorded fit-time columns are preferred; its declared columns are used
// when it has none. The union is returned in walk order without duplicates. ok is
// false when no router is reachable or the union is empty, in which case the caller
// should pass its frame through unchanged.
func ExpectedInputColumns(root any) (cols []string, ok bool) {
	w := walker{visited: make(map[uintptr]bool), seen: make(map[string]bool)}
	w.visit(root)
	return w.cols, len(w.cols) > 0
}

type walker struct {
	visited map[uintptr]bool
	seen    map[string]bool
	cols    []string
}

func (w *walker) visit(node any) {
	if node == nil {
		return
	}
	if v := reflect.ValueOf(node); v.Kind() == reflect.Ptr {
		if v.IsNil() || w.visited[v.Pointer()] {
			return
		}
		w.visited[v.Pointer()] = true
	}

	if r, isRouter := node.(model.ColumnRouter); isRouter {
		names := r.FeatureNamesIn()
		if names == nil {
			names = r.DeclaredColumns()
		}
		for _, n := range names {
			if !w.seen[n] {
				w.seen[n] = true
				w.cols = append(w.cols, n)
			}
		}
	}

	if c, isComposite := node.(model.Composite); isComposite {
		for _, child := range c.Components() {
			w.visit(child)
		}
	}
}

// Align returns a frame with exactly cols, in order: columns missing from X are
// added as all-missing and columns not in cols are discarded. Align is idempotent.
func Align(X *frame.Frame, cols []string) *frame.Frame {
	series := make([]*frame.Series, 0, len(cols))
	seen := make(map[string]bool, len(cols))
	for _, name := range cols {
		if seen[name] {
			continue
		}
		seen[name] = true
		if s := X.Column(name); s != nil {
			series = append(series, s)
			continue
		}
		series = append(series, frame.NewMissing(name, X.NRows()))
	}
	if len(series) == 0 {
		return frame.New(X.NRows())
	}
	return frame.MustFromSeries(series...)
}
