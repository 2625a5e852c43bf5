package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth  = 277.0 // A4 landscape minus margins
	pdfRowHeight  = 6.0
	pdfHeadHeight = 7.0
)

// PDFRenderer lays tables out on landscape A4 pages.
type PDFRenderer struct {
	now func() time.Time
}

// NewPDFRenderer constructs a PDF renderer.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{now: time.Now}
}

// Render writes a titled document with one block per table. Column headers are
// repeated when a table breaks across pages.
func (r *PDFRenderer) Render(title string, tables ...Table) ([]byte, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("pdf requires at least one table")
	}
	for _, table := range tables {
		if err := table.validate(); err != nil {
			return nil, err
		}
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	generated := r.now().UTC().Format(time.RFC3339)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Arial", "I", 7)
		pdf.CellFormat(0, 5, fmt.Sprintf("Generated %s - page %d", generated, pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	for i, table := range tables {
		if i > 0 {
			pdf.Ln(6)
		}
		writeTable(pdf, table)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(columns []Column) []float64 {
	var total float64
	for _, column := range columns {
		total += weight(column)
	}
	widths := make([]float64, len(columns))
	for i, column := range columns {
		widths[i] = pdfPageWidth * weight(column) / total
	}
	return widths
}

func weight(c Column) float64 {
	if c.Width <= 0 {
		return 1
	}
	return c.Width
}

func writeTable(pdf *gofpdf.Fpdf, table Table) {
	widths := columnWidths(table.Columns)
	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, column := range table.Columns {
			pdf.CellFormat(widths[i], pdfHeadHeight, column.header(), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}

	if table.Title != "" {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 8, table.Title, "", 1, "L", false, 0, "")
	}
	header()
	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range table.Rows {
		if pdf.GetY()+pdfRowHeight > pageHeight-bottom-pdfRowHeight {
			pdf.AddPage()
			header()
		}
		for i, value := range table.record(row) {
			pdf.CellFormat(widths[i], pdfRowHeight, truncate(pdf, value, widths[i]), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(table.Rows) == 0 {
		pdf.CellFormat(0, pdfRowHeight, "No rows", "1", 1, "C", false, 0, "")
	}
}

// truncate shortens a value so it fits inside a cell.
func truncate(pdf *gofpdf.Fpdf, value string, width float64) string {
	limit := width - 2
	if pdf.GetStringWidth(value) <= limit {
		return value
	}
	runes := []rune(value)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
