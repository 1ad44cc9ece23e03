package chunker

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/tmc/langchaingo/schema"
)

// DocxLoader yields the whole document as one unit, one line per paragraph.
type DocxLoader struct {
	path string
}

// NewDocxLoader creates a DOCX loader.
func NewDocxLoader(path string) Loader {
	return &DocxLoader{path: path}
}

// Load reads word/document.xml out of the archive.
func (l *DocxLoader) Load(_ context.Context) ([]schema.Document, error) {
	archive, err := zip.OpenReader(l.path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer archive.Close()

	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read document.xml: %w", err)
		}
		text, err := parseDocumentXML(content)
		if err != nil {
			return nil, err
		}
		return []schema.Document{{PageContent: text, Metadata: map[string]any{}}}, nil
	}
	return nil, fmt.Errorf("docx: word/document.xml not found")
}

type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

func parseDocumentXML(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("parse document.xml: %w", err)
	}

	lines := make([]string, 0, len(doc.Body.Paragraphs))
	for _, p := range doc.Body.Paragraphs {
		var sb strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Text {
				sb.WriteString(t.Content)
			}
		}
		lines = append(lines, sb.String())
	}
	return strings.Join(lines, "\n"), nil
}
