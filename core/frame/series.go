package frame

import (
	"math"
	"strconv"
)

// Kind is the inferred or declared type of a column.
type Kind int

const (
	// Other covers columns with no usable values, such as all-missing columns.
	Other Kind = iota
	// Numeric columns hold float64 values; NaN marks a missing value.
	Numeric
	// Categorical columns hold text (and booleans rendered as text).
	Categorical
	// Datetime columns hold RFC3339 timestamps as text.
	Datetime
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	case Datetime:
		return "datetime"
	default:
		return "other"
	}
}

// Series is one named column. Numeric series use Floats; all other kinds use
// Strings with Valid marking present values. Series are shared between frames
// and must not be mutated after construction.
type Series struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
	Valid   []bool
}

// NewNumeric creates a numeric series. NaN entries are missing.
func NewNumeric(name string, values []float64) *Series {
	return &Series{Name: name, Kind: Numeric, Floats: values}
}

// NewCategorical creates a text series. A nil valid slice marks every value
// present except the empty string.
func NewCategorical(name string, values []string, valid []bool) *Series {
	return newText(name, Categorical, values, valid)
}

// NewDatetime creates a datetime series from normalised timestamp strings.
func NewDatetime(name string, values []string, valid []bool) *Series {
	return newText(name, Datetime, values, valid)
}

func newText(name string, kind Kind, values []string, valid []bool) *Series {
	if valid == nil {
		valid = make([]bool, len(values))
		for i, v := range values {
			valid[i] = v != ""
		}
	}
	return &Series{Name: name, Kind: kind, Strings: values, Valid: valid}
}

// NewMissing creates an all-missing series of n rows.
func NewMissing(name string, n int) *Series {
	return &Series{Name: name, Kind: Other, Strings: make([]string, n), Valid: make([]bool, n)}
}

// Len returns the number of rows.
func (s *Series) Len() int {
	if s.Kind == Numeric {
		return len(s.Floats)
	}
	return len(s.Strings)
}

// IsMissing reports whether row i has no value.
func (s *Series) IsMissing(i int) bool {
	if s.Kind == Numeric {
		return math.IsNaN(s.Floats[i])
	}
	return !s.Valid[i]
}

// Float returns row i as a number. Text values are parsed; unparseable or missing
// values report false.
func (s *Series) Float(i int) (float64, bool) {
	if s.Kind == Numeric {
		v := s.Floats[i]
		return v, !math.IsNaN(v)
	}
	if !s.Valid[i] {
		return math.NaN(), false
	}
	v, err := strconv.ParseFloat(s.Strings[i], 64)
	if err != nil || math.IsNaN(v) {
		return math.NaN(), false
	}
	return v, true
}

// Text returns row i as text. Numbers are formatted in their shortest form.
func (s *Series) Text(i int) (string, bool) {
	if s.Kind == Numeric {
		v := s.Floats[i]
		if math.IsNaN(v) {
			return "", false
		}
		return strconv.FormatFloat(v, 'g', -1, 64), true
	}
	return s.Strings[i], s.Valid[i]
}

// Value returns row i as nil, float64 or string.
func (s *Series) Value(i int) any {
	if s.IsMissing(i) {
		return nil
	}
	if s.Kind == Numeric {
		return s.Floats[i]
	}
	return s.Strings[i]
}

// NUnique counts distinct non-missing values.
func (s *Series) NUnique() int {
	if s.Kind == Numeric {
		seen := make(map[float64]struct{})
		for _, v := range s.Floats {
			if !math.IsNaN(v) {
				seen[v] = struct{}{}
			}
		}
		return len(seen)
	}
	seen := make(map[string]struct{})
	for i, v := range s.Strings {
		if s.Valid[i] {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

// CountMissing counts missing rows.
func (s *Series) CountMissing() int {
	n := 0
	for i := 0; i < s.Len(); i++ {
		if s.IsMissing(i) {
			n++
		}
	}
	return n
}

// Keys returns a comparable key per row (text form), with ok=false for missing rows.
// Used where numeric and text columns must be treated alike, such as factorisation.
func (s *Series) Keys() ([]string, []bool) {
	n := s.Len()
	keys := make([]string, n)
	ok := make([]bool, n)
	for i := 0; i < n; i++ {
		keys[i], ok[i] = s.Text(i)
	}
	return keys, ok
}

func (s *Series) take(idx []int) *Series {
	out := &Series{Name: s.Name, Kind: s.Kind}
	if s.Kind == Numeric {
		out.Floats = make([]float64, len(idx))
		for i, j := range idx {
			out.Floats[i] = s.Floats[j]
		}
		return out
	}
	out.Strings = make([]string, len(idx))
	out.Valid = make([]bool, len(idx))
	for i, j := range idx {
		out.Strings[i] = s.Strings[j]
		out.Valid[i] = s.Valid[j]
	}
	return out
}
