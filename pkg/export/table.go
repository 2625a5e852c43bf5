package export

import (
	"fmt"
	"strings"
)

// Format names a rendered file type.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat accepts csv or pdf in any case.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatCSV, "":
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// Column describes one table column. Width is a relative weight used by the
// PDF renderer; zero means 1.
type Column struct {
	Key   string
	Label string
	Width float64
}

func (c Column) header() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Key
}

// Table is tabular export content. Rows are keyed by Column.Key.
type Table struct {
	Title   string
	Columns []Column
	Rows    []map[string]string
}

func (t Table) validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %q requires at least one column", t.Title)
	}
	return nil
}

func (t Table) record(row map[string]string) []string {
	record := make([]string, len(t.Columns))
	for i, column := range t.Columns {
		record[i] = row[column.Key]
	}
	return record
}

// Renderer turns tables into a file body.
type Renderer interface {
	Render(title string, tables ...Table) ([]byte, error)
}
