package dataset

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/pkg/errors"
)

// ReadJSONRecords decodes a JSON array of objects, or an object whose
// "records" field is such an array, into a frame. Numbers keep their textual
// form until kinds are inferred; nested values are treated as missing.
func ReadJSONRecords(r io.Reader) (*frame.Frame, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read records")
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Records json.RawMessage `json:"records"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, errors.Wrap(err, "decode records")
		}
		if wrapped.Records == nil {
			return nil, errors.NewValueError("ReadJSONRecords", `object payload has no "records" field`)
		}
		data = wrapped.Records
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var records []frame.Record
	if err := dec.Decode(&records); err != nil {
		return nil, errors.Wrap(err, "decode records")
	}
	return frame.FromRecords(records), nil
}

// WriteJSONRecords encodes f as a JSON array of objects with missing values as
// null.
func WriteJSONRecords(w io.Writer, f *frame.Frame) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(f.Records())
}
