package dataset

import (
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	pkgerrors "github.com/modelroom/modelroom/pkg/errors"
)

// CSVOptions controls CSV decoding.
type CSVOptions struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// Columns fixes the schema. Nil means infer types from the data.
	Columns []Column
}

// ReadCSV decodes a CSV document with a header row into a Frame.
func ReadCSV(r io.Reader, opts CSVOptions) (*Frame, error) {
	reader := stdcsv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("missing header row")
		}
		return nil, err
	}
	names := make([]string, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("empty column name at position %d", i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = struct{}{}
		names[i] = name
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// encoding/csv enforces the header's field count and
			// reports the offending line itself.
			return nil, err
		}
		rows = append(rows, record)
	}

	cols := opts.Columns
	if cols == nil {
		cols = InferTypes(names, rows)
	} else if len(cols) != len(names) {
		return nil, fmt.Errorf("schema has %d columns, header has %d", len(cols), len(names))
	}

	frame, err := New(cols...)
	if err != nil {
		return nil, err
	}
	for i, record := range rows {
		row := make([]any, len(cols))
		for j, cell := range record {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			value, err := Convert(cell, cols[j].Type)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i+1, cols[j].Name, err)
			}
			row[j] = value
		}
		frame.rows = append(frame.rows, row)
	}
	return frame, nil
}

// ReadCSVFile reads a CSV file from disk. Failures are reported as
// parse errors carrying the path.
func ReadCSVFile(path string, opts CSVOptions) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.NewParseError(path, 0, err)
	}
	defer f.Close()

	frame, err := ReadCSV(f, opts)
	if err != nil {
		return nil, pkgerrors.NewParseError(path, 0, err)
	}
	return frame, nil
}

// WriteCSV encodes the Frame as CSV with a header row. Datetimes are
// formatted as RFC3339 and missing values as empty cells.
func WriteCSV(w io.Writer, f *Frame) error {
	writer := stdcsv.NewWriter(w)
	if err := writer.Write(f.ColumnNames()); err != nil {
		return err
	}
	record := make([]string, f.NumCols())
	for i := 0; i < f.NumRows(); i++ {
		row := f.rows[i]
		for j, value := range row {
			record[j] = FormatValue(value)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCSVFile writes the Frame to a CSV file on disk.
func WriteCSVFile(path string, f *Frame) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(out, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
