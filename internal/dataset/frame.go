package dataset

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Type classifies the values a column holds.
type Type string

const (
	TypeNumeric     Type = "numeric"
	TypeCategorical Type = "categorical"
	TypeText        Type = "text"
	TypeDatetime    Type = "datetime"
	TypeBool        Type = "bool"
)

// Column describes one named, typed column of a Frame.
type Column struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Frame is an in-memory tabular dataset with a fixed column schema and
// ordered rows. Row order is significant: operations preserve it unless
// reordering is their stated purpose. Missing values are nil.
type Frame struct {
	cols  []Column
	index map[string]int
	rows  [][]any
}

// New creates an empty Frame with the given columns.
func New(cols ...Column) (*Frame, error) {
	index := make(map[string]int, len(cols))
	copied := make([]Column, len(cols))
	for i, col := range cols {
		if col.Name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, exists := index[col.Name]; exists {
			return nil, fmt.Errorf("duplicate column %q", col.Name)
		}
		if col.Type == "" {
			col.Type = TypeText
		}
		index[col.Name] = i
		copied[i] = col
	}
	return &Frame{cols: copied, index: index}, nil
}

// FromRecords builds a Frame from row maps. Keys absent from a record
// become missing values. When cols is nil the schema is inferred from
// the values with column names sorted alphabetically.
func FromRecords(records []map[string]any, cols []Column) (*Frame, error) {
	if cols == nil {
		names := map[string]struct{}{}
		for _, rec := range records {
			for k := range rec {
				names[k] = struct{}{}
			}
		}
		sorted := make([]string, 0, len(names))
		for k := range names {
			sorted = append(sorted, k)
		}
		sort.Strings(sorted)

		values := make([][]any, len(records))
		for i, rec := range records {
			row := make([]any, len(sorted))
			for j, name := range sorted {
				row[j] = rec[name]
			}
			values[i] = row
		}
		cols = InferFromValues(sorted, values)
	}

	frame, err := New(cols...)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		row := make([]any, len(cols))
		for j, col := range cols {
			value, ok := rec[col.Name]
			if !ok {
				continue
			}
			converted, err := Convert(value, col.Type)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col.Name, err)
			}
			row[j] = converted
		}
		frame.rows = append(frame.rows, row)
	}
	return frame, nil
}

// Columns returns a copy of the column schema.
func (f *Frame) Columns() []Column {
	out := make([]Column, len(f.cols))
	copy(out, f.cols)
	return out
}

// ColumnNames returns the column names in schema order.
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.cols))
	for i, col := range f.cols {
		names[i] = col.Name
	}
	return names
}

// HasColumn reports whether the named column exists.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

// ColumnType returns the type of the named column.
func (f *Frame) ColumnType(name string) (Type, bool) {
	i, ok := f.index[name]
	if !ok {
		return "", false
	}
	return f.cols[i].Type, true
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int {
	if f == nil {
		return 0
	}
	return len(f.rows)
}

// NumCols returns the number of columns.
func (f *Frame) NumCols() int {
	if f == nil {
		return 0
	}
	return len(f.cols)
}

// AppendRow adds a row. The value count must match the column count.
func (f *Frame) AppendRow(values ...any) error {
	if len(values) != len(f.cols) {
		return fmt.Errorf("row has %d values, frame has %d columns", len(values), len(f.cols))
	}
	row := make([]any, len(values))
	copy(row, values)
	f.rows = append(f.rows, row)
	return nil
}

// Row returns a copy of row i.
func (f *Frame) Row(i int) []any {
	row := make([]any, len(f.rows[i]))
	copy(row, f.rows[i])
	return row
}

// Value returns the cell at row i of the named column.
func (f *Frame) Value(i int, name string) (any, bool) {
	j, ok := f.index[name]
	if !ok || i < 0 || i >= len(f.rows) {
		return nil, false
	}
	return f.rows[i][j], true
}

// Column returns a copy of the named column's values.
func (f *Frame) Column(name string) ([]any, bool) {
	j, ok := f.index[name]
	if !ok {
		return nil, false
	}
	values := make([]any, len(f.rows))
	for i, row := range f.rows {
		values[i] = row[j]
	}
	return values, true
}

// Float returns the cell at row i of the named column coerced to a
// float64. Missing values and non-numeric cells are errors.
func (f *Frame) Float(i int, name string) (float64, error) {
	value, ok := f.Value(i, name)
	if !ok {
		return 0, fmt.Errorf("no column %q", name)
	}
	if value == nil {
		return 0, fmt.Errorf("missing value in column %q row %d", name, i)
	}
	v, ok := ToFloat(value)
	if !ok {
		return 0, fmt.Errorf("column %q row %d: cannot convert %T to float", name, i, value)
	}
	return v, nil
}

// Select returns a new Frame containing only the named columns, in the
// given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]Column, 0, len(names))
	indices := make([]int, 0, len(names))
	for _, name := range names {
		j, ok := f.index[name]
		if !ok {
			return nil, fmt.Errorf("no column %q", name)
		}
		cols = append(cols, f.cols[j])
		indices = append(indices, j)
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	for _, row := range f.rows {
		next := make([]any, len(indices))
		for k, j := range indices {
			next[k] = row[j]
		}
		out.rows = append(out.rows, next)
	}
	return out, nil
}

// Drop returns a new Frame without the named columns. Unknown names are
// ignored.
func (f *Frame) Drop(names ...string) *Frame {
	dropped := make(map[string]struct{}, len(names))
	for _, name := range names {
		dropped[name] = struct{}{}
	}
	keep := make([]string, 0, len(f.cols))
	for _, col := range f.cols {
		if _, skip := dropped[col.Name]; !skip {
			keep = append(keep, col.Name)
		}
	}
	out, _ := f.Select(keep...)
	return out
}

// WithColumn returns a new Frame with the column appended, or replaced
// when a column of the same name already exists. The value count must
// match the row count.
func (f *Frame) WithColumn(col Column, values []any) (*Frame, error) {
	if len(values) != len(f.rows) {
		return nil, fmt.Errorf("column %q has %d values, frame has %d rows", col.Name, len(values), len(f.rows))
	}
	if j, exists := f.index[col.Name]; exists {
		out := f.Clone()
		out.cols[j] = col
		for i := range out.rows {
			out.rows[i][j] = values[i]
		}
		return out, nil
	}
	cols := append(f.Columns(), col)
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	for i, row := range f.rows {
		next := make([]any, len(row)+1)
		copy(next, row)
		next[len(row)] = values[i]
		out.rows = append(out.rows, next)
	}
	return out, nil
}

// Clone returns a deep copy of the Frame.
func (f *Frame) Clone() *Frame {
	out, _ := New(f.cols...)
	out.rows = make([][]any, len(f.rows))
	for i, row := range f.rows {
		next := make([]any, len(row))
		copy(next, row)
		out.rows[i] = next
	}
	return out
}

// Head returns a new Frame with at most n leading rows.
func (f *Frame) Head(n int) *Frame {
	if n > len(f.rows) {
		n = len(f.rows)
	}
	out, _ := New(f.cols...)
	for i := 0; i < n; i++ {
		out.rows = append(out.rows, f.Row(i))
	}
	return out
}

// Records returns the rows as maps keyed by column name.
func (f *Frame) Records() []map[string]any {
	out := make([]map[string]any, len(f.rows))
	for i, row := range f.rows {
		rec := make(map[string]any, len(f.cols))
		for j, col := range f.cols {
			rec[col.Name] = row[j]
		}
		out[i] = rec
	}
	return out
}

// ToFloat coerces a cell value to float64. Bools map to 0 and 1,
// numeric strings are parsed.
func ToFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// Convert coerces a raw value to the canonical representation for a
// column type: float64 for numeric, bool for bool, time.Time for
// datetime, string otherwise. Nil stays nil.
func Convert(value any, t Type) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch t {
	case TypeNumeric:
		v, ok := ToFloat(value)
		if !ok {
			return nil, fmt.Errorf("cannot convert %T to numeric", value)
		}
		return v, nil
	case TypeBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to bool", v)
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("cannot convert %T to bool", value)
		}
	case TypeDatetime:
		switch v := value.(type) {
		case time.Time:
			return v, nil
		case string:
			parsed, err := ParseDatetime(v)
			if err != nil {
				return nil, err
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("cannot convert %T to datetime", value)
		}
	default:
		switch v := value.(type) {
		case string:
			return v, nil
		default:
			return fmt.Sprintf("%v", v), nil
		}
	}
}

// FormatValue renders a cell for CSV output and table display. Missing
// values render as the empty string.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
