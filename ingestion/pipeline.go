package ingestion

import (
	"context"
	"log/slog"

	"github.com/poiesic/knowledgebot/chunker"
	"github.com/poiesic/knowledgebot/core"
	"github.com/poiesic/knowledgebot/storage"
)

// Encoder produces one vector per text, in order.
// *embedding.Engine satisfies it.
type Encoder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline runs chunk, embed and upsert for knowledge sources.
// It is safe for concurrent use.
type Pipeline struct {
	chunker *chunker.Chunker
	encoder Encoder
	store   storage.VectorStore
	logger  *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(ch *chunker.Chunker, encoder Encoder, store storage.VectorStore, opts ...Option) (*Pipeline, error) {
	if ch == nil {
		return nil, ErrChunkerRequired
	}
	if encoder == nil {
		return nil, ErrEncoderRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	p := &Pipeline{
		chunker: ch,
		encoder: encoder,
		store:   store,
		logger:  slog.Default().With("component", "ingestion"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// IngestFile chunks the file at path, named filename, into the workspace
// collection. A file that cannot be parsed is stored as a single
// placeholder chunk rather than failing.
func (p *Pipeline) IngestFile(ctx context.Context, workspaceID, sourceID, path, filename string) error {
	if err := validateIDs(workspaceID, sourceID); err != nil {
		return err
	}
	chunks, err := p.chunker.ChunkFile(ctx, path, filename)
	if err != nil {
		return err
	}
	return p.ingest(ctx, workspaceID, sourceID, chunks)
}

// IngestQA stores a question and answer pair as one chunk.
func (p *Pipeline) IngestQA(ctx context.Context, workspaceID, sourceID, question, answer string) error {
	if err := validateIDs(workspaceID, sourceID); err != nil {
		return err
	}
	chunks := p.chunker.ChunkQA(question, answer, chunker.QASourceName(question))
	return p.ingest(ctx, workspaceID, sourceID, chunks)
}

// IngestArticle splits and stores an article body under its title.
func (p *Pipeline) IngestArticle(ctx context.Context, workspaceID, sourceID, title, content string) error {
	if err := validateIDs(workspaceID, sourceID); err != nil {
		return err
	}
	return p.ingest(ctx, workspaceID, sourceID, p.chunker.ChunkArticle(title, content))
}

// Delete removes every chunk of a source from a collection. Deleting a
// source that has no chunks succeeds.
func (p *Pipeline) Delete(ctx context.Context, collection, sourceID string) (int, error) {
	if err := validateIDs(collection, sourceID); err != nil {
		return 0, err
	}
	if _, err := p.store.GetOrCreate(ctx, collection); err != nil {
		return 0, err
	}
	n, err := p.store.DeleteBySource(ctx, collection, sourceID)
	if err != nil {
		return 0, err
	}
	p.logger.Info("deleted embeddings", "collection", collection, "source_id", sourceID, "count", n)
	return n, nil
}

func (p *Pipeline) ingest(ctx context.Context, workspaceID, sourceID string, chunks []core.Chunk) error {
	if len(chunks) == 0 {
		return ErrNoChunks
	}

	if _, err := p.store.GetOrCreate(ctx, workspaceID); err != nil {
		return err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := p.encoder.Embed(ctx, texts)
	if err != nil {
		return err
	}

	if err := p.store.Upsert(ctx, workspaceID, chunks, vectors, sourceID); err != nil {
		return err
	}

	p.logger.Info("ingested source",
		"workspace_id", workspaceID,
		"source_id", sourceID,
		"source_name", chunks[0].Metadata.SourceName,
		"chunks", len(chunks))
	return nil
}

func validateIDs(workspaceID, sourceID string) error {
	if err := core.ValidateID("workspace_id", workspaceID); err != nil {
		return err
	}
	return core.ValidateID("source_id", sourceID)
}
