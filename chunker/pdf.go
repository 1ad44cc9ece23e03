package chunker

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/tmc/langchaingo/schema"
)

// PDFLoader yields one unit per page, numbered from 1.
type PDFLoader struct {
	path string
}

// NewPDFLoader creates a PDF loader.
func NewPDFLoader(path string) Loader {
	return &PDFLoader{path: path}
}

// Load extracts the plain text of every page.
func (l *PDFLoader) Load(ctx context.Context) (docs []schema.Document, err error) {
	// the pdf reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		docs = append(docs, schema.Document{
			PageContent: text,
			Metadata:    map[string]any{pageKey: i, "total_pages": total},
		})
	}
	return docs, nil
}
