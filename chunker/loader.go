package chunker

import (
	"context"

	"github.com/tmc/langchaingo/schema"
)

// pageKey is the metadata key loaders use for 1-based page numbers.
const pageKey = "page"

// Loader reads a file into page-level units.
type Loader interface {
	Load(ctx context.Context) ([]schema.Document, error)
}

// LoaderFunc creates a Loader for the file at path.
type LoaderFunc func(path string) Loader

// DefaultLoaders maps lower-case file extensions to their loaders.
func DefaultLoaders() map[string]LoaderFunc {
	return map[string]LoaderFunc{
		".pdf":  NewPDFLoader,
		".docx": NewDocxLoader,
		".txt":  NewTextLoader,
	}
}

func pageOf(doc schema.Document) int {
	switch v := doc.Metadata[pageKey].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
