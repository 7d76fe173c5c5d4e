package export

import (
	"bytes"

	"github.com/go-pdf/fpdf"
)

func renderPDF(lines []Line) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(lines[0].Text, true)
	pdf.SetMargins(18, 18, 18)
	pdf.AddPage()

	for _, ln := range lines {
		switch ln.Style {
		case StyleTitle:
			pdf.SetFont("Helvetica", "B", 18)
			pdf.MultiCell(0, 9, tr(ln.Text), "", "L", false)
			pdf.Ln(3)
		case StyleField:
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, 6, tr(ln.Text), "", "L", false)
		case StyleStep:
			pdf.Ln(3)
			pdf.SetFont("Helvetica", "B", 13)
			pdf.MultiCell(0, 7, tr(ln.Text), "", "L", false)
		default:
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, 6, tr(ln.Text), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
