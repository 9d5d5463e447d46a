package frame

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Record is one row keyed by column name. Values are nil, numbers, bools or strings.
type Record = map[string]any

var missingTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "NaN": {}, "nan": {}, "null": {}, "NULL": {}, "None": {},
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// IsMissingToken reports whether raw text denotes a missing value.
func IsMissingToken(raw string) bool {
	_, ok := missingTokens[strings.TrimSpace(raw)]
	return ok
}

// ParseTime parses the timestamp layouts accepted for datetime columns.
func ParseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// InferKind classifies raw text values. Missing tokens are ignored; a column with
// nothing else is Other.
func InferKind(raw []string) Kind {
	present, numeric, dated := 0, 0, 0
	for _, v := range raw {
		if IsMissingToken(v) {
			continue
		}
		present++
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			numeric++
			continue
		}
		if _, ok := ParseTime(v); ok {
			dated++
		}
	}
	switch {
	case present == 0:
		return Other
	case numeric == present:
		return Numeric
	case dated == present:
		return Datetime
	default:
		return Categorical
	}
}

// ParseColumn builds a series from raw text, inferring its kind.
func ParseColumn(name string, raw []string) *Series {
	n := len(raw)
	switch InferKind(raw) {
	case Other:
		return NewMissing(name, n)
	case Numeric:
		vals := make([]float64, n)
		for i, v := range raw {
			vals[i] = math.NaN()
			if IsMissingToken(v) {
				continue
			}
			vals[i], _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
		}
		return NewNumeric(name, vals)
	case Datetime:
		vals, valid := make([]string, n), make([]bool, n)
		for i, v := range raw {
			if t, ok := ParseTime(v); ok && !IsMissingToken(v) {
				vals[i], valid[i] = t.UTC().Format(time.RFC3339), true
			}
		}
		return NewDatetime(name, vals, valid)
	default:
		vals, valid := make([]string, n), make([]bool, n)
		for i, v := range raw {
			if !IsMissingToken(v) {
				vals[i], valid[i] = v, true
			}
		}
		return NewCategorical(name, vals, valid)
	}
}

// FromRecords builds a frame from row maps. Column order is order of first
// appearance, with keys of a single record taken in sorted order. Numbers, bools
// and strings are rendered to text and kinds inferred as for ParseColumn, except
// that booleans always make a column categorical.
func FromRecords(records []Record) *Frame {
	var order []string
	seen := make(map[string]struct{})
	for _, r := range records {
		keys := make([]string, 0, len(r))
		for k := range r {
			if _, ok := seen[k]; !ok {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = struct{}{}
			order = append(order, k)
		}
	}

	f := New(len(records))
	for _, name := range order {
		raw := make([]string, len(records))
		hasBool := false
		for i, r := range records {
			var isBool bool
			raw[i], isBool = renderValue(r[name])
			hasBool = hasBool || isBool
		}
		s := ParseColumn(name, raw)
		if hasBool && s.Kind != Categorical && s.Kind != Other {
			s = forceCategorical(name, raw)
		}
		f.order = append(f.order, name)
		f.cols[name] = s
	}
	return f
}

func forceCategorical(name string, raw []string) *Series {
	vals, valid := make([]string, len(raw)), make([]bool, len(raw))
	for i, v := range raw {
		if !IsMissingToken(v) {
			vals[i], valid[i] = v, true
		}
	}
	return NewCategorical(name, vals, valid)
}

func renderValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, false
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		if math.IsNaN(x) {
			return "", false
		}
		return strconv.FormatFloat(x, 'g', -1, 64), false
	case float32:
		return renderValue(float64(x))
	case int:
		return strconv.Itoa(x), false
	case int64:
		return strconv.FormatInt(x, 10), false
	case int32:
		return strconv.FormatInt(int64(x), 10), false
	case json.Number:
		return x.String(), false
	case time.Time:
		return x.UTC().Format(time.RFC3339), false
	default:
		return "", false
	}
}
