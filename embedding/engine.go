package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/knowledgebot/ai"
)

// DefaultBatchSize is the number of texts sent to the model per call.
const DefaultBatchSize = 32

const probeText = "dimension probe"

// Engine embeds texts with a single shared model. It is safe for
// concurrent use.
type Engine struct {
	embedder  ai.Embedder
	pool      *ants.Pool
	batchSize int
	dimension int
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithPoolSize sets the number of concurrent model calls.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(e *Engine) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if e.pool != nil {
			e.pool.Release()
		}
		e.pool = pool
		return nil
	}
}

// WithBatchSize sets how many texts go into one model call.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(e *Engine) error {
		if size < 1 {
			return ErrInvalidBatchSize
		}
		e.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates an Engine and probes the embedder to learn the vector
// dimension. It returns ErrModelUnavailable when the probe fails.
func NewEngine(ctx context.Context, embedder ai.Embedder, opts ...Option) (*Engine, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		embedder:  embedder,
		pool:      pool,
		batchSize: DefaultBatchSize,
		logger:    slog.Default().With("component", "embedding-engine"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			e.Release()
			return nil, err
		}
	}

	probe, err := embedder.EmbedText(ctx, probeText)
	if err != nil {
		e.Release()
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	if len(probe) == 0 {
		e.Release()
		return nil, fmt.Errorf("%w: probe returned an empty vector", ErrModelUnavailable)
	}
	e.dimension = len(probe)
	e.logger.Info("embedding model ready", "dimension", e.dimension)

	return e, nil
}

// Dimension is the length of every vector the engine returns.
func (e *Engine) Dimension() int {
	return e.dimension
}

// Embed returns one unit-length vector per text, in input order.
// Any failure is reported wrapping ErrEmbeddingFailed.
func (e *Engine) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
	}

	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			if err := e.embedBatch(ctx, texts[start:end], out[start:end]); err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(err)
			break
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, ctx.Err())
	case <-done:
	}

	if firstErr != nil {
		e.logger.Error("embedding failed", "texts", len(texts), "err", firstErr)
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, firstErr)
	}
	return out, nil
}

// EmbedQuery embeds a single text.
func (e *Engine) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Engine) embedBatch(ctx context.Context, texts []string, out [][]float32) error {
	vectors, err := e.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != e.dimension {
			return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", e.dimension, len(v))
		}
		out[i] = NormalizeVector(v)
	}
	return nil
}

// Release releases the worker pool. The engine should not be used after
// calling Release.
func (e *Engine) Release() {
	if e.pool != nil {
		e.pool.Release()
	}
}
