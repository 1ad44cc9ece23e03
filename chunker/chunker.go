package chunker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/poiesic/knowledgebot/core"
)

// qaNameLength is how many runes of a question go into a Q&A source name.
const qaNameLength = 50

// Chunker produces chunks for files, Q&A pairs and articles.
// It is safe for concurrent use.
type Chunker struct {
	size     int
	overlap  int
	splitter *Splitter
	loaders  map[string]LoaderFunc
	logger   *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithChunkSize sets the maximum chunk length in runes.
// Default is DefaultChunkSize.
func WithChunkSize(size int) Option {
	return func(c *Chunker) error {
		if size < 1 {
			return ErrInvalidChunkSize
		}
		c.size = size
		return nil
	}
}

// WithChunkOverlap sets the maximum overlap between consecutive chunks.
// Default is DefaultChunkOverlap.
func WithChunkOverlap(overlap int) Option {
	return func(c *Chunker) error {
		c.overlap = overlap
		return nil
	}
}

// WithLoader registers or replaces the loader for a file extension.
func WithLoader(ext string, fn LoaderFunc) Option {
	return func(c *Chunker) error {
		c.loaders[strings.ToLower(ext)] = fn
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// New creates a Chunker.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		size:    DefaultChunkSize,
		overlap: DefaultChunkOverlap,
		loaders: DefaultLoaders(),
		logger:  slog.Default().With("component", "chunker"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	splitter, err := NewSplitter(c.size, c.overlap)
	if err != nil {
		return nil, err
	}
	c.splitter = splitter
	return c, nil
}

// QASourceName derives the display name of a Q&A source from its question.
func QASourceName(question string) string {
	r := []rune(question)
	if len(r) > qaNameLength {
		r = r[:qaNameLength]
	}
	return "Q&A: " + string(r) + "..."
}

// ChunkQA returns exactly one chunk holding the whole pair.
func (c *Chunker) ChunkQA(question, answer, sourceName string) []core.Chunk {
	return []core.Chunk{{
		Content: fmt.Sprintf("Question: %s\nAnswer: %s", question, answer),
		Metadata: core.ChunkMetadata{
			SourceName: sourceName,
			SourceType: core.SourceTypeQNA,
		},
	}}
}

// ChunkArticle splits an article body. The title is the source name.
func (c *Chunker) ChunkArticle(title, content string) []core.Chunk {
	return c.ChunkText(content, core.ChunkMetadata{
		SourceName: title,
		SourceType: core.SourceTypeArticle,
	})
}

// ChunkText splits text, stamping every chunk with meta and its offset.
func (c *Chunker) ChunkText(text string, meta core.ChunkMetadata) []core.Chunk {
	pieces := c.splitter.Split(text)
	chunks := make([]core.Chunk, len(pieces))
	for i, p := range pieces {
		m := meta
		m.StartIndex = p.Start
		chunks[i] = core.Chunk{Content: p.Text, Metadata: m}
	}
	return chunks
}

// ChunkFile loads the file at path with the loader registered for the
// extension of filename and splits every page-level unit.
//
// Only an unsupported extension or a cancelled ctx is returned as an error.
// Any loader failure is reported as a single placeholder chunk.
func (c *Chunker) ChunkFile(ctx context.Context, path, filename string) ([]core.Chunk, error) {
	open, ok := c.loaders[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, filename)
	}

	c.logger.Debug("loading file", "file", filename)
	units, err := open(path).Load(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		c.logger.Warn("failed to parse file", "file", filename, "err", err)
		return []core.Chunk{parseFailure(filename, err)}, nil
	}

	var chunks []core.Chunk
	for _, unit := range units {
		chunks = append(chunks, c.ChunkText(unit.PageContent, core.ChunkMetadata{
			SourceName: filename,
			SourceType: core.SourceTypeFile,
			Page:       pageOf(unit),
		})...)
	}
	c.logger.Debug("chunked file", "file", filename, "units", len(units), "chunks", len(chunks))
	return chunks, nil
}

func parseFailure(filename string, err error) core.Chunk {
	return core.Chunk{
		Content: "Error while parsing file " + filename,
		Metadata: core.ChunkMetadata{
			SourceName: filename,
			SourceType: core.SourceTypeFile,
			Error:      err.Error(),
		},
	}
}
