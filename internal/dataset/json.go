package dataset

import (
	"encoding/json"
	"fmt"
)

// FromJSONRows decodes a JSON array of row objects into a Frame. When
// cols is nil the schema is inferred and columns are ordered
// alphabetically, since JSON objects carry no key order.
func FromJSONRows(data []byte, cols []Column) (*Frame, error) {
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return FromRecords(records, cols)
}

// MarshalJSONRows encodes the rows as a JSON array of objects.
func (f *Frame) MarshalJSONRows() ([]byte, error) {
	records := f.Records()
	for _, rec := range records {
		for k, v := range rec {
			// Datetimes marshal as RFC3339 strings to stay readable
			// and round-trippable.
			if t, ok := f.ColumnType(k); ok && t == TypeDatetime && v != nil {
				rec[k] = FormatValue(v)
			}
		}
	}
	return json.Marshal(records)
}
