package retrieval

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/knowledgebot/ai"
	"github.com/poiesic/knowledgebot/core"
	"github.com/poiesic/knowledgebot/storage"
)

const (
	// DefaultTopK is the number of candidates fetched per question.
	DefaultTopK = 3

	// DefaultThreshold is the largest cosine distance a candidate may have
	// to be used as context.
	DefaultThreshold = 0.5
)

// QueryEncoder embeds a question. *embedding.Engine satisfies it.
type QueryEncoder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Engine answers questions against a workspace collection.
// It is safe for concurrent use.
type Engine struct {
	encoder   QueryEncoder
	store     storage.VectorStore
	backend   Backend
	topK      int
	threshold float64
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithTopK sets how many nearest chunks are considered.
func WithTopK(k int) Option {
	return func(e *Engine) error {
		if k <= 0 {
			return ErrInvalidTopK
		}
		e.topK = k
		return nil
	}
}

// WithThreshold sets the relevance cutoff. Candidates with a distance
// above it are never used as context.
func WithThreshold(threshold float64) Option {
	return func(e *Engine) error {
		if threshold < 0 {
			return ErrInvalidThreshold
		}
		e.threshold = threshold
		return nil
	}
}

// WithBackend sets the answer backend. Default is StubBackend.
func WithBackend(backend Backend) Option {
	return func(e *Engine) error {
		if backend == nil {
			return ErrBackendRequired
		}
		e.backend = backend
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates a retrieval engine.
func NewEngine(encoder QueryEncoder, store storage.VectorStore, opts ...Option) (*Engine, error) {
	if encoder == nil {
		return nil, ErrQueryEncoderRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	e := &Engine{
		encoder:   encoder,
		store:     store,
		backend:   StubBackend{},
		topK:      DefaultTopK,
		threshold: DefaultThreshold,
		logger:    slog.Default().With("component", "retrieval"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Answer answers question from the workspace's stored knowledge.
func (e *Engine) Answer(ctx context.Context, workspaceID, question string) core.QueryResult {
	return e.AnswerWithMonitor(ctx, workspaceID, question, nil)
}

// AnswerWithMonitor answers question with monitoring.
// The monitor receives callbacks at each stage of the process.
func (e *Engine) AnswerWithMonitor(ctx context.Context, workspaceID, question string, monitor Monitor) core.QueryResult {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.OnQueryStart(workspaceID, question)

	result, err := e.answer(ctx, workspaceID, question, monitor)
	if err != nil {
		monitor.OnError(err)
		if errors.Is(err, ai.ErrBackendUnreachable) {
			e.logger.Error("cannot connect to model service", "workspace_id", workspaceID, "err", err)
			result = core.QueryResult{Answer: ConnectionErrorAnswer(err)}
		} else {
			e.logger.Error("error answering query", "workspace_id", workspaceID, "err", err)
			result = core.QueryResult{Answer: InternalErrorAnswer(err)}
		}
	}
	if result.Sources == nil {
		result.Sources = []core.QuerySource{}
	}
	monitor.OnAnswer(result)
	return result
}

func (e *Engine) answer(ctx context.Context, workspaceID, question string, monitor Monitor) (core.QueryResult, error) {
	vector, err := e.encoder.EmbedQuery(ctx, question)
	if err != nil {
		return core.QueryResult{}, err
	}

	if _, err := e.store.GetOrCreate(ctx, workspaceID); err != nil {
		return core.QueryResult{}, err
	}
	matches, err := e.store.Query(ctx, workspaceID, vector, e.topK)
	if err != nil {
		return core.QueryResult{}, err
	}
	monitor.OnCandidates(matches)

	if len(matches) == 0 || matches[0].Distance > e.threshold {
		var nearest *storage.Match
		if len(matches) > 0 {
			nearest = &matches[0]
		}
		monitor.OnNoContext(nearest)
		return core.QueryResult{Answer: FallbackAnswer}, nil
	}

	admissible := make([]storage.Match, 0, len(matches))
	for _, m := range matches {
		if m.Distance <= e.threshold {
			admissible = append(admissible, m)
		}
	}
	if len(admissible) == 0 {
		monitor.OnNoContext(&matches[0])
		return core.QueryResult{Answer: FallbackAnswer}, nil
	}

	contextText, sources := assembleContext(admissible)
	answer, err := e.backend.Answer(ctx, BuildPrompt(contextText, question), contextText)
	if err != nil {
		return core.QueryResult{}, err
	}

	e.logger.Info("answered query", "workspace_id", workspaceID, "sources", len(sources))
	return core.QueryResult{Answer: answer, Sources: sources}, nil
}
