package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/common"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

const parquetRoot = "parquet_go_root"

// WriteParquet encodes the Frame as a snappy-compressed parquet
// document. Numeric columns map to DOUBLE, bool to BOOLEAN, everything
// else to BYTE_ARRAY with datetimes rendered as RFC3339 strings.
func WriteParquet(w io.Writer, f *Frame) error {
	pfw := writerfile.NewWriterFile(w)
	pw, err := writer.NewJSONWriter(parquetSchema(f.Columns()), pfw, 4)
	if err != nil {
		return fmt.Errorf("open parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i := 0; i < f.NumRows(); i++ {
		row := make(map[string]any, f.NumCols())
		for j, col := range f.cols {
			row[col.Name] = parquetValue(f.rows[i][j], col.Type)
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return pfw.Close()
}

// ReadParquet decodes a parquet document produced by WriteParquet back
// into a Frame with the given column schema.
func ReadParquet(data []byte, cols []Column) (*Frame, error) {
	tmp, err := os.CreateTemp("", "modelroom-parquet-*.parquet")
	if err != nil {
		return nil, err
	}
	path := tmp.Name()
	defer os.Remove(path)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet reader: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetColumnReader(fr, 4)
	if err != nil {
		return nil, fmt.Errorf("read parquet footer: %w", err)
	}
	defer pr.ReadStop()

	numRows := int(pr.GetNumRows())
	frame, err := New(cols...)
	if err != nil {
		return nil, err
	}
	columns := make([][]any, len(cols))
	for j, col := range cols {
		colPath := common.ReformPathStr(parquetRoot + "." + col.Name)
		values, _, dls, err := pr.ReadColumnByPath(colPath, int64(numRows))
		if err != nil {
			return nil, fmt.Errorf("read column %q: %w", col.Name, err)
		}
		// Values run parallel to the definition levels, with nil
		// placeholders where the level marks a missing cell.
		if len(values) != len(dls) {
			return nil, fmt.Errorf("column %q has %d values for %d definition levels", col.Name, len(values), len(dls))
		}
		cells := make([]any, 0, numRows)
		for i, dl := range dls {
			if dl == 0 {
				cells = append(cells, nil)
				continue
			}
			cell, err := Convert(values[i], col.Type)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col.Name, err)
			}
			cells = append(cells, cell)
		}
		if len(cells) != numRows {
			return nil, fmt.Errorf("column %q has %d values, file has %d rows", col.Name, len(cells), numRows)
		}
		columns[j] = cells
	}

	for i := 0; i < numRows; i++ {
		row := make([]any, len(cols))
		for j := range cols {
			row[j] = columns[j][i]
		}
		frame.rows = append(frame.rows, row)
	}
	return frame, nil
}

func parquetSchema(cols []Column) string {
	fields := make([]map[string]string, 0, len(cols))
	for _, col := range cols {
		fields = append(fields, map[string]string{
			"Tag": fmt.Sprintf("name=%s, type=%s, repetitiontype=OPTIONAL", col.Name, parquetPhysicalType(col.Type)),
		})
	}
	out := map[string]any{
		"Tag":    fmt.Sprintf("name=%s, repetitiontype=REQUIRED", parquetRoot),
		"Fields": fields,
	}
	b, _ := json.Marshal(out)
	return string(b)
}

func parquetPhysicalType(t Type) string {
	switch t {
	case TypeNumeric:
		return "DOUBLE"
	case TypeBool:
		return "BOOLEAN"
	default:
		return "BYTE_ARRAY"
	}
}

func parquetValue(value any, t Type) any {
	if value == nil {
		return nil
	}
	switch t {
	case TypeNumeric:
		if v, ok := ToFloat(value); ok {
			return v
		}
		return nil
	case TypeBool:
		if v, ok := value.(bool); ok {
			return v
		}
		return nil
	default:
		return FormatValue(value)
	}
}
