package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/poiesic/knowledgebot/ai/mock"
	"github.com/poiesic/knowledgebot/chunker"
	"github.com/poiesic/knowledgebot/core"
	"github.com/poiesic/knowledgebot/embedding"
	"github.com/poiesic/knowledgebot/storage"
	"github.com/poiesic/knowledgebot/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	pipeline *Pipeline
	store    storage.VectorStore
	embedder *mock.MockEmbedder
}

func setupPipeline(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	embedder := mock.NewMockEmbedder()
	engine, err := embedding.NewEngine(ctx, embedder, embedding.WithPoolSize(2))
	require.NoError(t, err)
	t.Cleanup(engine.Release)

	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ch, err := chunker.New(chunker.WithChunkSize(100), chunker.WithChunkOverlap(20))
	require.NoError(t, err)

	p, err := NewPipeline(ch, engine, store)
	require.NoError(t, err)
	return &fixture{pipeline: p, store: store, embedder: embedder}
}

func (f *fixture) all(t *testing.T, workspaceID string) []storage.Match {
	t.Helper()
	matches, err := f.store.Query(context.Background(), workspaceID,
		mock.DeterministicVector("probe", mock.DefaultDimension), 1000)
	require.NoError(t, err)
	return matches
}

func TestNewPipeline_RequiresDependencies(t *testing.T) {
	f := setupPipeline(t)
	ch, err := chunker.New()
	require.NoError(t, err)

	_, err = NewPipeline(nil, f.pipeline.encoder, f.store)
	assert.ErrorIs(t, err, ErrChunkerRequired)
	_, err = NewPipeline(ch, nil, f.store)
	assert.ErrorIs(t, err, ErrEncoderRequired)
	_, err = NewPipeline(ch, f.pipeline.encoder, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)
}

func TestIngestQA(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	ws, src := uuid.NewString(), uuid.NewString()

	require.NoError(t, f.pipeline.IngestQA(ctx, ws, src, "How do I reset my password?", "Use the reset link."))

	content := "Question: How do I reset my password?\nAnswer: Use the reset link."
	matches, err := f.store.Query(ctx, ws, mock.DeterministicVector(content, mock.DefaultDimension), 3)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, src+"_0", m.ID)
	assert.Equal(t, content, m.Document)
	assert.InDelta(t, 0.0, m.Distance, 1e-5)
	assert.Equal(t, core.SourceTypeQNA, m.Metadata.SourceType)
	assert.Equal(t, src, m.Metadata.SourceID)
	assert.Equal(t, "Q&A: How do I reset my password?...", m.Metadata.SourceName)
}

func TestIngestArticle_MultipleChunks(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	ws, src := uuid.NewString(), uuid.NewString()

	body := strings.Repeat("Badgers dig long tunnels under the meadow. ", 10)
	require.NoError(t, f.pipeline.IngestArticle(ctx, ws, src, "Badgers", body))

	matches := f.all(t, ws)
	require.Greater(t, len(matches), 1)
	ids := map[string]bool{}
	for _, m := range matches {
		ids[m.ID] = true
		assert.Equal(t, "Badgers", m.Metadata.SourceName)
		assert.Equal(t, core.SourceTypeArticle, m.Metadata.SourceType)
	}
	for i := range matches {
		assert.True(t, ids[storage.ChunkID(src, i)], "missing chunk %d", i)
	}
}

func TestIngestFile_Text(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	ws, src := uuid.NewString(), uuid.NewString()

	path := filepath.Join(t.TempDir(), "stored_notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("Opening hours are nine to five."), 0644))

	require.NoError(t, f.pipeline.IngestFile(ctx, ws, src, path, "notes.txt"))

	matches := f.all(t, ws)
	require.Len(t, matches, 1)
	assert.Equal(t, "notes.txt", matches[0].Metadata.SourceName)
	assert.Equal(t, core.SourceTypeFile, matches[0].Metadata.SourceType)
	assert.Equal(t, "Opening hours are nine to five.", matches[0].Document)
}

func TestIngestFile_Errors(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	ws, src := uuid.NewString(), uuid.NewString()
	dir := t.TempDir()

	err := f.pipeline.IngestFile(ctx, ws, src, filepath.Join(dir, "a.xlsx"), "a.xlsx")
	assert.ErrorIs(t, err, chunker.ErrUnsupportedFileType)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("  \n "), 0644))
	err = f.pipeline.IngestFile(ctx, ws, src, empty, "empty.txt")
	assert.ErrorIs(t, err, ErrNoChunks)
	assert.Equal(t, "file parsing resulted in 0 documents", ErrNoChunks.Error())
}

func TestIngestFile_UnreadableBecomesPlaceholder(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	ws, src := uuid.NewString(), uuid.NewString()

	require.NoError(t, f.pipeline.IngestFile(ctx, ws, src, filepath.Join(t.TempDir(), "missing.pdf"), "report.pdf"))

	matches := f.all(t, ws)
	require.Len(t, matches, 1)
	assert.Equal(t, "Error while parsing file report.pdf", matches[0].Document)
	assert.NotEmpty(t, matches[0].Metadata.Error)
}

func TestIngest_InvalidIDs(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()

	err := f.pipeline.IngestQA(ctx, "not-a-uuid", uuid.NewString(), "q", "a")
	assert.ErrorIs(t, err, core.ErrInvalidID)

	err = f.pipeline.IngestArticle(ctx, uuid.NewString(), "", "t", "c")
	assert.ErrorIs(t, err, core.ErrInvalidID)

	_, err = f.pipeline.Delete(ctx, uuid.NewString(), "x")
	assert.ErrorIs(t, err, core.ErrInvalidID)
}

func TestIngest_EmbeddingFailureStoresNothing(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	ws, src := uuid.NewString(), uuid.NewString()

	f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("model crashed")
	}

	err := f.pipeline.IngestArticle(ctx, ws, src, "Title", "Some article body.")
	assert.ErrorIs(t, err, embedding.ErrEmbeddingFailed)
	assert.Empty(t, f.all(t, ws))
}

func TestIngestThenDelete(t *testing.T) {
	f := setupPipeline(t)
	ctx := context.Background()
	ws := uuid.NewString()
	keep, drop := uuid.NewString(), uuid.NewString()

	require.NoError(t, f.pipeline.IngestQA(ctx, ws, keep, "Where is the office?", "Second floor."))
	require.NoError(t, f.pipeline.IngestQA(ctx, ws, drop, "Who is on call?", "Alex."))

	n, err := f.pipeline.Delete(ctx, ws, drop)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.pipeline.Delete(ctx, ws, drop)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	matches := f.all(t, ws)
	require.Len(t, matches, 1)
	assert.Equal(t, keep, matches[0].Metadata.SourceID)
}

func TestDelete_UnknownWorkspace(t *testing.T) {
	f := setupPipeline(t)
	n, err := f.pipeline.Delete(context.Background(), uuid.NewString(), uuid.NewString())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
