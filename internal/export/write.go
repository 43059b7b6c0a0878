package export

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/parquet-go/parquet-go"
)

// WriteCSV serializes the table as delimited text. The file is
// written to a temp path beside the destination and promoted with an
// atomic rename, so an interrupted export never leaves a truncated
// artifact.
func WriteCSV(t *Table, dest string) error {
	return WriteAtomic(dest, func(f *os.File) error {
		w := csv.NewWriter(f)

		header := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			header[i] = col.Name
		}
		if err := w.Write(header); err != nil {
			return err
		}

		record := make([]string, len(t.Columns))
		for _, row := range t.Rows {
			for i, cell := range row {
				record[i] = formatCell(cell)
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
}

func formatCell(cell interface{}) string {
	switch v := cell.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if math.IsNaN(v) {
			return ""
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// WriteParquet serializes the table in columnar form. Schema fields
// follow the table's column layout; nodata floats become nulls.
func WriteParquet(t *Table, dest string) error {
	group := parquet.Group{}
	for _, col := range t.Columns {
		switch col.Kind {
		case KindInt:
			group[col.Name] = parquet.Optional(parquet.Int(64))
		case KindFloat:
			group[col.Name] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		default:
			group[col.Name] = parquet.Optional(parquet.String())
		}
	}
	schema := parquet.NewSchema(t.Name, group)

	return WriteAtomic(dest, func(f *os.File) error {
		writer := parquet.NewGenericWriter[map[string]interface{}](f, schema)
		records := make([]map[string]interface{}, 0, len(t.Rows))
		for _, row := range t.Rows {
			record := make(map[string]interface{}, len(t.Columns))
			for i, col := range t.Columns {
				if v, ok := row[i].(float64); ok && math.IsNaN(v) {
					continue
				}
				record[col.Name] = row[i]
			}
			records = append(records, record)
		}
		if len(records) > 0 {
			if _, err := writer.Write(records); err != nil {
				return err
			}
		}
		return writer.Close()
	})
}

// WriteAtomic writes through a temp file beside the destination and
// promotes it with a rename on success, so no artifact is ever left
// truncated and a previous artifact survives a failed write.
func WriteAtomic(dest string, write func(*os.File) error) error {
	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", dest, err)
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close temp file for %s: %w", dest, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to promote %s: %w", dest, err)
	}
	return nil
}
