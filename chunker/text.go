package chunker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

// TextLoader yields a UTF-8 text file as one unit.
type TextLoader struct {
	path string
}

// NewTextLoader creates a plain text loader.
func NewTextLoader(path string) Loader {
	return &TextLoader{path: path}
}

// Load reads the file. Input that is not valid UTF-8 is rejected.
func (l *TextLoader) Load(ctx context.Context) ([]schema.Document, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, ErrUnsupportedEncoding
	}
	return documentloaders.NewText(bytes.NewReader(data)).Load(ctx)
}
