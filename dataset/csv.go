package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/pkg/errors"
)

type csvConfig struct {
	hasHeader bool
	comma     rune
}

// CSVOption configures ReadCSV.
type CSVOption func(*csvConfig)

// WithHeader indicates whether the first row holds column names. Without a
// header columns are named col_0, col_1, ...
func WithHeader(has bool) CSVOption {
	return func(c *csvConfig) { c.hasHeader = has }
}

// WithComma sets the field delimiter.
func WithComma(r rune) CSVOption {
	return func(c *csvConfig) { c.comma = r }
}

// ReadCSV reads a whole CSV stream into a frame. Column kinds are inferred from
// the text and the tokens "", NA, NaN, null and None are missing. Short rows
// are padded with missing values; long rows are an error.
func ReadCSV(r io.Reader, opts ...CSVOption) (*frame.Frame, error) {
	cfg := &csvConfig{hasHeader: true, comma: ','}
	for _, opt := range opts {
		opt(cfg)
	}
	reader := csv.NewReader(r)
	reader.Comma = cfg.comma
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse csv")
	}
	if len(rows) == 0 {
		return frame.New(0), nil
	}

	var names []string
	if cfg.hasHeader {
		names, rows = rows[0], rows[1:]
	} else {
		for j := range rows[0] {
			names = append(names, fmt.Sprintf("col_%d", j))
		}
	}

	columns := make([][]string, len(names))
	for j := range columns {
		columns[j] = make([]string, len(rows))
	}
	for i, row := range rows {
		if len(row) > len(names) {
			return nil, errors.NewValueError("ReadCSV",
				fmt.Sprintf("row %d has %d fields, header has %d", i+1, len(row), len(names)))
		}
		for j, v := range row {
			columns[j][i] = v
		}
	}

	series := make([]*frame.Series, len(names))
	for j, name := range names {
		series[j] = frame.ParseColumn(name, columns[j])
	}
	return frame.FromSeries(series...)
}

// WriteCSV writes f with a header row. Missing values are written empty.
func WriteCSV(w io.Writer, f *frame.Frame) error {
	cw := csv.NewWriter(w)
	names := f.Names()
	if err := cw.Write(names); err != nil {
		return err
	}
	row := make([]string, len(names))
	for i := 0; i < f.NRows(); i++ {
		for j, name := range names {
			row[j] = cell(f.Column(name), i)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cell(s *frame.Series, i int) string {
	if s.Kind == frame.Numeric {
		v := s.Floats[i]
		if math.IsNaN(v) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	text, ok := s.Text(i)
	if !ok {
		return ""
	}
	return text
}
