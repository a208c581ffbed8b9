// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor reads plain text from the leading pages of a PDF file.
type PDFExtractor struct{}

// Extract returns the text of the first pages pages of the PDF at path,
// one page per line block. Pages without content are skipped. The PDF
// parser panics on some malformed files; that is reported as an error.
func (PDFExtractor) Extract(path string, pages int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parsing %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	n := max(min(r.NumPage(), pages), 0)
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("reading page %d of %s: %w", i, path, err)
		}
		parts = append(parts, content)
	}
	return strings.Join(parts, "\n"), nil
}
