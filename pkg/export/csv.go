package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVRenderer writes tables as CSV. Multiple tables are separated by a blank
// line and introduced by a row holding the table title.
type CSVRenderer struct{}

// NewCSVRenderer builds a CSV renderer.
func NewCSVRenderer() *CSVRenderer {
	return &CSVRenderer{}
}

// Render encodes the tables. The document title is not written.
func (r *CSVRenderer) Render(_ string, tables ...Table) ([]byte, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("csv requires at least one table")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	for i, table := range tables {
		if err := table.validate(); err != nil {
			return nil, err
		}
		if len(tables) > 1 {
			if i > 0 {
				if err := writer.Write(nil); err != nil {
					return nil, fmt.Errorf("write csv separator: %w", err)
				}
			}
			if err := writer.Write([]string{table.Title}); err != nil {
				return nil, fmt.Errorf("write csv title: %w", err)
			}
		}

		headers := make([]string, len(table.Columns))
		for j, column := range table.Columns {
			headers[j] = column.header()
		}
		if err := writer.Write(headers); err != nil {
			return nil, fmt.Errorf("write csv headers: %w", err)
		}
		for _, row := range table.Rows {
			if err := writer.Write(table.record(row)); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
