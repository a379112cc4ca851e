// Package pdfutil extracts plain text from uploaded PDF invoices so the
// extraction capability can work from text when no raster image is available.
package pdfutil

import (
	"bytes"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// maxPages caps extraction; invoices past this length are almost certainly
// not invoices.
const maxPages = 10

// ExtractText returns the concatenated plain text of a PDF invoice.
func ExtractText(data []byte) (string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	pages := doc.NumPage()
	if pages > maxPages {
		pages = maxPages
	}
	var builder strings.Builder
	for page := 1; page <= pages; page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", page, err)
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}
	text := strings.TrimSpace(builder.String())
	if text == "" {
		return "", fmt.Errorf("pdf contains no extractable text")
	}
	return text, nil
}
