package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/poiesic/knowledgebot/ai"
	"github.com/poiesic/knowledgebot/ai/mock"
	"github.com/poiesic/knowledgebot/chunker"
	"github.com/poiesic/knowledgebot/core"
	"github.com/poiesic/knowledgebot/embedding"
	"github.com/poiesic/knowledgebot/ingestion"
	"github.com/poiesic/knowledgebot/storage"
	"github.com/poiesic/knowledgebot/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEncoder struct {
	err error
}

func (f *fakeEncoder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

// fakeStore returns canned matches from Query.
type fakeStore struct {
	matches  []storage.Match
	queryErr error
	lastK    int
}

func (f *fakeStore) GetOrCreate(_ context.Context, name string) (*storage.Collection, error) {
	return &storage.Collection{Name: name, Metric: storage.MetricCosine}, nil
}

func (f *fakeStore) Upsert(context.Context, string, []core.Chunk, [][]float32, string) error {
	return nil
}

func (f *fakeStore) DeleteBySource(context.Context, string, string) (int, error) {
	return 0, nil
}

func (f *fakeStore) Query(_ context.Context, _ string, _ []float32, k int) ([]storage.Match, error) {
	f.lastK = k
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.matches) > k {
		return f.matches[:k], nil
	}
	return f.matches, nil
}

func (f *fakeStore) Close() error { return nil }

func match(distance float64, name string, page int, doc string) storage.Match {
	return storage.Match{
		ID:       fmt.Sprintf("src_%g", distance),
		Distance: distance,
		Document: doc,
		Metadata: core.ChunkMetadata{SourceName: name, Page: page},
	}
}

func newTestEngine(t *testing.T, store storage.VectorStore, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(&fakeEncoder{}, store, opts...)
	require.NoError(t, err)
	return e
}

const testWorkspace = "6a1c0d5e-2b3f-4c5d-8e9f-0a1b2c3d4e5f"

func TestAnswer_NoCandidates(t *testing.T) {
	e := newTestEngine(t, &fakeStore{})

	result := e.Answer(context.Background(), testWorkspace, "anything?")
	assert.Equal(t, FallbackAnswer, result.Answer)
	assert.NotNil(t, result.Sources)
	assert.Empty(t, result.Sources)
	assert.False(t, result.HasContext())
}

func TestAnswer_GateBoundary(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		admitted bool
	}{
		{"well inside", 0.1, true},
		{"exactly at threshold", 0.5, true},
		{"just above threshold", 0.50001, false},
		{"far away", 1.2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{matches: []storage.Match{match(tt.distance, "doc.txt", 0, "text")}}
			result := newTestEngine(t, store).Answer(context.Background(), testWorkspace, "q")
			if tt.admitted {
				assert.Len(t, result.Sources, 1)
				assert.NotEqual(t, FallbackAnswer, result.Answer)
			} else {
				assert.Empty(t, result.Sources)
				assert.Equal(t, FallbackAnswer, result.Answer)
			}
		})
	}
}

func TestAnswer_FiltersPerCandidate(t *testing.T) {
	store := &fakeStore{matches: []storage.Match{
		match(0.1, "a.pdf", 2, "alpha"),
		match(0.4, "b.pdf", 0, "beta"),
		match(0.7, "c.pdf", 1, "gamma"),
	}}
	e := newTestEngine(t, store)

	result := e.Answer(context.Background(), testWorkspace, "q")
	require.Len(t, result.Sources, 2)
	assert.Equal(t, DefaultTopK, store.lastK)

	assert.Equal(t, "a.pdf", result.Sources[0].Name)
	require.NotNil(t, result.Sources[0].Page)
	assert.Equal(t, 2, *result.Sources[0].Page)
	assert.Equal(t, "alpha", result.Sources[0].TextChunk)

	assert.Equal(t, "b.pdf", result.Sources[1].Name)
	assert.Nil(t, result.Sources[1].Page)

	expected := stubPrefix +
		"Document 'a.pdf', page 2:\n\"alpha\"\n\n" +
		"Document 'b.pdf', page N/A:\n\"beta\"\n\n"
	assert.Equal(t, expected, result.Answer)
}

func TestAnswer_UnknownSourceName(t *testing.T) {
	store := &fakeStore{matches: []storage.Match{match(0.2, "", 0, "orphan")}}
	result := newTestEngine(t, store).Answer(context.Background(), testWorkspace, "q")

	require.Len(t, result.Sources, 1)
	assert.Equal(t, "Unknown", result.Sources[0].Name)
	assert.Contains(t, result.Answer, "Document 'Unknown', page N/A:")
}

func TestAnswer_TopKAndThresholdOptions(t *testing.T) {
	store := &fakeStore{matches: []storage.Match{
		match(0.6, "a", 0, "a"),
		match(0.65, "b", 0, "b"),
		match(0.69, "c", 0, "c"),
	}}
	e := newTestEngine(t, store, WithTopK(2), WithThreshold(0.7))

	result := e.Answer(context.Background(), testWorkspace, "q")
	assert.Equal(t, 2, store.lastK)
	assert.Len(t, result.Sources, 2)
}

func TestAnswer_LLMBackend(t *testing.T) {
	gen := mock.NewMockGenerator("Ship within 3 days [Source: policy.pdf, p. 4]")
	store := &fakeStore{matches: []storage.Match{match(0.3, "policy.pdf", 4, "Orders ship within 3 days.")}}
	e := newTestEngine(t, store, WithBackend(BackendFor(gen)))

	result := e.Answer(context.Background(), testWorkspace, "How fast do you ship?")
	assert.Equal(t, "Ship within 3 days [Source: policy.pdf, p. 4]", result.Answer)
	require.Len(t, result.Sources, 1)

	prompts := gen.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "[Context]\nDocument 'policy.pdf', page 4:\n\"Orders ship within 3 days.\"")
	assert.Contains(t, prompts[0], "[Question]\nHow fast do you ship?")
	assert.Contains(t, prompts[0], `say "I could not find information on your question"`)
	assert.Contains(t, prompts[0], "[Source: <document name>, p. <page>]")
}

func TestAnswer_LLMNotCalledWithoutContext(t *testing.T) {
	gen := mock.NewMockGenerator("should not be used")
	e := newTestEngine(t, &fakeStore{}, WithBackend(BackendFor(gen)))

	result := e.Answer(context.Background(), testWorkspace, "q")
	assert.Equal(t, FallbackAnswer, result.Answer)
	assert.Equal(t, 0, gen.CallCount())
}

func TestAnswer_EmptyLLMResponse(t *testing.T) {
	for _, gen := range []*mock.MockGenerator{
		mock.NewMockGenerator("   "),
		{GenerateFunc: func(context.Context, string) (string, error) { return "", ai.ErrEmptyResponse }},
	} {
		store := &fakeStore{matches: []storage.Match{match(0.3, "a", 0, "a")}}
		result := newTestEngine(t, store, WithBackend(BackendFor(gen))).Answer(context.Background(), testWorkspace, "q")
		assert.Equal(t, EmptyResponseAnswer, result.Answer)
		assert.Len(t, result.Sources, 1)
	}
}

func TestAnswer_ConnectionFailure(t *testing.T) {
	gen := &mock.MockGenerator{GenerateFunc: func(context.Context, string) (string, error) {
		return "", fmt.Errorf("%w: dial tcp 127.0.0.1:11434: connection refused", ai.ErrBackendUnreachable)
	}}
	store := &fakeStore{matches: []storage.Match{match(0.3, "a", 0, "a")}}
	e := newTestEngine(t, store, WithBackend(BackendFor(gen)))

	result := e.Answer(context.Background(), testWorkspace, "q")
	assert.True(t, strings.HasPrefix(result.Answer, "Error: cannot connect to the LLM service ("))
	assert.Contains(t, result.Answer, "connection refused")
	assert.True(t, strings.HasSuffix(result.Answer, ")."))
	assert.Empty(t, result.Sources)
}

func TestAnswer_InternalFailures(t *testing.T) {
	t.Run("store", func(t *testing.T) {
		store := &fakeStore{queryErr: fmt.Errorf("%w: disk gone", storage.ErrStoreUnavailable)}
		result := newTestEngine(t, store).Answer(context.Background(), testWorkspace, "q")
		assert.True(t, strings.HasPrefix(result.Answer, "An internal error occurred while processing your request: "))
		assert.Contains(t, result.Answer, "disk gone")
		assert.Empty(t, result.Sources)
	})

	t.Run("encoder", func(t *testing.T) {
		e, err := NewEngine(&fakeEncoder{err: errors.New("encoder broke")}, &fakeStore{})
		require.NoError(t, err)
		result := e.Answer(context.Background(), testWorkspace, "q")
		assert.Equal(t, "An internal error occurred while processing your request: encoder broke", result.Answer)
	})

	t.Run("generator", func(t *testing.T) {
		gen := &mock.MockGenerator{GenerateFunc: func(context.Context, string) (string, error) {
			return "", errors.New("bad request")
		}}
		store := &fakeStore{matches: []storage.Match{match(0.3, "a", 0, "a")}}
		result := newTestEngine(t, store, WithBackend(BackendFor(gen))).Answer(context.Background(), testWorkspace, "q")
		assert.Equal(t, "An internal error occurred while processing your request: bad request", result.Answer)
		assert.Empty(t, result.Sources)
	})
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(nil, &fakeStore{})
	assert.ErrorIs(t, err, ErrQueryEncoderRequired)
	_, err = NewEngine(&fakeEncoder{}, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)
	_, err = NewEngine(&fakeEncoder{}, &fakeStore{}, WithTopK(0))
	assert.ErrorIs(t, err, ErrInvalidTopK)
	_, err = NewEngine(&fakeEncoder{}, &fakeStore{}, WithThreshold(-0.1))
	assert.ErrorIs(t, err, ErrInvalidThreshold)
	_, err = NewEngine(&fakeEncoder{}, &fakeStore{}, WithBackend(nil))
	assert.ErrorIs(t, err, ErrBackendRequired)
}

type recordingMonitor struct {
	steps   []string
	nearest *storage.Match
}

func (m *recordingMonitor) OnQueryStart(_, _ string)       { m.steps = append(m.steps, "start") }
func (m *recordingMonitor) OnCandidates(_ []storage.Match) { m.steps = append(m.steps, "candidates") }
func (m *recordingMonitor) OnNoContext(n *storage.Match) {
	m.steps = append(m.steps, "no-context")
	m.nearest = n
}
func (m *recordingMonitor) OnAnswer(_ core.QueryResult) { m.steps = append(m.steps, "answer") }
func (m *recordingMonitor) OnError(_ error)             { m.steps = append(m.steps, "error") }

func TestAnswerWithMonitor(t *testing.T) {
	store := &fakeStore{matches: []storage.Match{match(0.9, "a", 0, "a")}}
	e := newTestEngine(t, store)

	mon := &recordingMonitor{}
	e.AnswerWithMonitor(context.Background(), testWorkspace, "q", mon)
	assert.Equal(t, []string{"start", "candidates", "no-context", "answer"}, mon.steps)
	require.NotNil(t, mon.nearest)
	assert.Equal(t, 0.9, mon.nearest.Distance)

	mon = &recordingMonitor{}
	store.queryErr = errors.New("boom")
	e.AnswerWithMonitor(context.Background(), testWorkspace, "q", mon)
	assert.Equal(t, []string{"start", "error", "answer"}, mon.steps)
}

func TestAnswer_EndToEndQA(t *testing.T) {
	ctx := context.Background()
	engine, err := embedding.NewEngine(ctx, mock.NewMockEmbedder())
	require.NoError(t, err)
	defer engine.Release()

	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	ch, err := chunker.New()
	require.NoError(t, err)
	pipeline, err := ingestion.NewPipeline(ch, engine, store)
	require.NoError(t, err)

	ws, src := uuid.NewString(), uuid.NewString()
	require.NoError(t, pipeline.IngestQA(ctx, ws, src, "What are the opening hours?", "Nine to five."))

	e, err := NewEngine(engine, store)
	require.NoError(t, err)

	// The mock embedder maps identical text to identical vectors.
	stored := "Question: What are the opening hours?\nAnswer: Nine to five."
	result := e.Answer(ctx, ws, stored)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "Q&A: What are the opening hours?...", result.Sources[0].Name)
	assert.Nil(t, result.Sources[0].Page)
	assert.Equal(t, stored, result.Sources[0].TextChunk)
	assert.True(t, strings.HasPrefix(result.Answer, "This is a stub. The LLM was not called.\n\nFound context:\n"))

	_, err = pipeline.Delete(ctx, ws, src)
	require.NoError(t, err)
	result = e.Answer(ctx, ws, stored)
	assert.Equal(t, FallbackAnswer, result.Answer)
	assert.Empty(t, result.Sources)
}
