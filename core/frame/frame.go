// Package frame provides the tabular view every medscore stage consumes: an ordered
// set of named, typed columns with explicit missing values.
//
// Column membership and order are incidental. Stages look columns up by name and
// tolerate columns that appear or disappear between fit and transform.
package frame

import (
	"fmt"
	"math"

	medErrors "github.com/ezoic/medscore/pkg/errors"
)

// Frame is an ordered collection of equally long series. Operations return new
// frames that share unchanged series with their source.
type Frame struct {
	nrows int
	order []string
	cols  map[string]*Series
}

// New returns an empty frame with nrows rows and no columns.
func New(nrows int) *Frame {
	return &Frame{nrows: nrows, cols: make(map[string]*Series)}
}

// FromSeries builds a frame from series of equal length. Duplicate names are an error.
func FromSeries(series ...*Series) (*Frame, error) {
	nrows := 0
	if len(series) > 0 {
		nrows = series[0].Len()
	}
	f := New(nrows)
	for _, s := range series {
		if err := f.add(s); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// MustFromSeries is FromSeries that panics on error, for literals in tests and examples.
func MustFromSeries(series ...*Series) *Frame {
	f, err := FromSeries(series...)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Frame) add(s *Series) error {
	if s.Len() != f.nrows {
		return medErrors.NewDimensionError("FromSeries", f.nrows, s.Len(), 0)
	}
	if _, exists := f.cols[s.Name]; exists {
		return medErrors.NewValueError("FromSeries", fmt.Sprintf("duplicate column %q", s.Name))
	}
	f.order = append(f.order, s.Name)
	f.cols[s.Name] = s
	return nil
}

func (f *Frame) shallow() *Frame {
	c := &Frame{nrows: f.nrows, order: append([]string(nil), f.order...), cols: make(map[string]*Series, len(f.cols))}
	for k, v := range f.cols {
		c.cols[k] = v
	}
	return c
}

// NRows returns the number of rows.
func (f *Frame) NRows() int { return f.nrows }

// NCols returns the number of columns.
func (f *Frame) NCols() int { return len(f.order) }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	return append([]string(nil), f.order...)
}

// Has reports whether the frame has a column called name.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Column returns the named series or nil.
func (f *Frame) Column(name string) *Series {
	return f.cols[name]
}

// Add returns a frame with s appended, or replacing an existing column of the
// same name in place.
func (f *Frame) Add(s *Series) (*Frame, error) {
	if s.Len() != f.nrows {
		return nil, medErrors.NewDimensionError("Frame.Add", f.nrows, s.Len(), 0)
	}
	c := f.shallow()
	if _, exists := c.cols[s.Name]; !exists {
		c.order = append(c.order, s.Name)
	}
	c.cols[s.Name] = s
	return c, nil
}

// Drop returns a frame without the named columns. Absent names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	c := New(f.nrows)
	for _, n := range f.order {
		if _, skip := drop[n]; !skip {
			c.order = append(c.order, n)
			c.cols[n] = f.cols[n]
		}
	}
	return c
}

// Select returns a frame with exactly the named columns in the given order.
// Unknown names are an error; use compose.Align to fill them instead.
func (f *Frame) Select(names []string) (*Frame, error) {
	c := New(f.nrows)
	for _, n := range names {
		s, ok := f.cols[n]
		if !ok {
			return nil, medErrors.NewValueError("Frame.Select", fmt.Sprintf("unknown column %q", n))
		}
		if _, dup := c.cols[n]; dup {
			continue
		}
		c.order = append(c.order, n)
		c.cols[n] = s
	}
	return c, nil
}

// Rows returns a frame holding the given rows in the given order.
func (f *Frame) Rows(idx []int) *Frame {
	c := New(len(idx))
	for _, n := range f.order {
		c.order = append(c.order, n)
		c.cols[n] = f.cols[n].take(idx)
	}
	return c
}

// NamesOfKind returns the names of columns whose kind is one of kinds, in order.
func (f *Frame) NamesOfKind(kinds ...Kind) []string {
	var out []string
	for _, n := range f.order {
		for _, k := range kinds {
			if f.cols[n].Kind == k {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// NumericNames returns the names of numeric columns in order.
func (f *Frame) NumericNames() []string {
	return f.NamesOfKind(Numeric)
}

// Clone returns a frame sharing series with f but with its own column index.
func (f *Frame) Clone() *Frame {
	return f.shallow()
}

// Floats returns the named column as numbers, parsing text where possible. An
// absent column yields all NaN. Present text that does not parse becomes NaN and
// raises one DataConversionWarning for the column.
func (f *Frame) Floats(name string) []float64 {
	out := make([]float64, f.nrows)
	s, ok := f.cols[name]
	if !ok {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	if s.Kind == Numeric {
		copy(out, s.Floats)
		return out
	}
	unparsed := 0
	for i := range out {
		var ok bool
		if out[i], ok = s.Float(i); !ok && s.Valid[i] {
			unparsed++
		}
	}
	if unparsed > 0 {
		medErrors.Warn(medErrors.NewDataConversionWarning(s.Kind.String(), "numeric",
			fmt.Sprintf("%d of %d values in column %q are not numbers and became missing", unparsed, f.nrows, name)))
	}
	return out
}

// Strings returns the named column as text plus a presence mask. An absent column
// yields all missing.
func (f *Frame) Strings(name string) ([]string, []bool) {
	s, ok := f.cols[name]
	if !ok {
		return make([]string, f.nrows), make([]bool, f.nrows)
	}
	return s.Keys()
}

// Records converts the frame into one map per row. Missing values become nil.
func (f *Frame) Records() []Record {
	out := make([]Record, f.nrows)
	for i := range out {
		r := make(Record, len(f.order))
		for _, n := range f.order {
			r[n] = f.cols[n].Value(i)
		}
		out[i] = r
	}
	return out
}
