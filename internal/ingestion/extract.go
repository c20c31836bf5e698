package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Page is the extracted text of one page of a source document.
type Page struct {
	// Number is the 1-based page number.
	Number int
	// Text is the plain text content of the page.
	Text string
}

// Extractor turns a staged file into page text.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]Page, error)
}

// PDFExtractor extracts plain text from PDF files page by page.
type PDFExtractor struct{}

// Extract opens the PDF at path and returns the non-empty pages in order.
// Pages without a content stream (or with no extractable text, such as
// scanned images) are skipped. The pdf reader panics on damaged
// cross-reference tables; those panics are returned as errors.
func (PDFExtractor) Extract(ctx context.Context, path string) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("ingestion: extract %s: malformed pdf: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: open pdf %s: %w", path, err)
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("ingestion: read page %d of %s: %w", i, path, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}
