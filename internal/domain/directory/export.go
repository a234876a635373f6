package directory

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

type ExportMeta struct {
	CompanyID   string
	Page        int
	Limit       int
	GeneratedAt time.Time
	GeneratedBy string
}

type exportColumn struct {
	title string
	width float64
	value func(Employee) string
}

var exportColumns = []exportColumn{
	{title: "Name", width: 45, value: func(e Employee) string { return e.Name }},
	{title: "Position", width: 40, value: func(e Employee) string { return e.Position }},
	{title: "Department", width: 40, value: func(e Employee) string { return e.Department }},
	{title: "Email", width: 60, value: func(e Employee) string { return e.Email }},
	{title: "Status", width: 25, value: func(e Employee) string { return e.Status }},
	{title: "Hire date", width: 25, value: func(e Employee) string { return e.HireDate }},
}

// RenderPDF writes one directory page as a landscape A4 table. Only successful
// results can be exported.
func RenderPDF(w io.Writer, page Result, meta ExportMeta) error {
	if !page.OK() {
		return fmt.Errorf("%w: %s", ErrExportFailedPage, page.ErrorMessage())
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Employee directory", true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Employee directory")
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Company: %s  Page: %d  Page size: %d  Total: %d", meta.CompanyID, meta.Page, meta.Limit, page.Total)))
	pdf.Ln(6)
	generated := fmt.Sprintf("Generated: %s", meta.GeneratedAt.UTC().Format(time.RFC3339))
	if meta.GeneratedBy != "" {
		generated += " by " + meta.GeneratedBy
	}
	pdf.Cell(0, 6, tr(generated))
	pdf.Ln(9)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range exportColumns {
		pdf.CellFormat(col.width, 7, col.title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	if len(page.Data) == 0 {
		pdf.CellFormat(totalWidth(), 7, "No employees on this page", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
	for _, emp := range page.Data {
		for _, col := range exportColumns {
			pdf.CellFormat(col.width, 7, tr(col.value(emp)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return pdf.Output(w)
}

func totalWidth() float64 {
	total := 0.0
	for _, col := range exportColumns {
		total += col.width
	}
	return total
}
