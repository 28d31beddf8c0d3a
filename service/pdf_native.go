package service

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/docmesh/ingest-be/types"
)

// extractNativeText pulls the embedded text layer out of a PDF, page by page.
// Pages without a text layer come back empty; the orchestrator decides whether
// that is good enough.
func extractNativeText(_ context.Context, filePath string) ([]types.Page, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", filePath, err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages := make([]types.Page, 0, total)
	for num := 1; num <= total; num++ {
		page := reader.Page(num)
		if page.V.IsNull() {
			pages = append(pages, types.Page{PageNumber: num})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", num, err)
		}
		pages = append(pages, types.Page{PageNumber: num, Content: cleanText(text)})
	}
	return pages, nil
}
