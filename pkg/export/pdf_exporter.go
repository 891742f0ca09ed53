package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders datasets into a tabular PDF attendance sheet.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with a title line, the table body and a
// row-count footer. Long rows wrap onto new pages automatically.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	colWidth := 190.0 / float64(len(data.Headers))
	writeHeader := func() {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 8, header, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
	writeHeader()

	pdf.SetFont("Arial", "", 9)
	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range data.Rows {
		if pdf.GetY()+7 > pageHeight-bottom {
			pdf.AddPage()
			writeHeader()
			pdf.SetFont("Arial", "", 9)
		}
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 6, fmt.Sprintf("%d records", len(data.Rows)), "", 1, "R", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
