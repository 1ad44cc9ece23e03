package ollama

import (
	"context"
	"log/slog"

	"github.com/poiesic/knowledgebot/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Embedder implements ai.Embedder with Ollama embeddings.
type Embedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// Generator implements ai.Generator with Ollama chat completion.
type Generator struct {
	llm         *ollama.LLM
	temperature float64
	logger      *slog.Logger
}

// Provider implements ai.AIProvider against one Ollama server.
type Provider struct {
	embedder  *Embedder
	generator *Generator
}

func newEmbedder(config *ai.Config) (*Embedder, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(ai.BaseURL(config.EmbeddingHost)),
		ollama.WithModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, err
	}
	return &Embedder{
		embedder: embedder,
		logger:   slog.Default().With("component", "ollama-embedder"),
	}, nil
}

func newGenerator(config *ai.Config) (*Generator, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(ai.BaseURL(config.GenerationHost)),
		ollama.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}
	return &Generator{
		llm:         llm,
		temperature: config.Temperature,
		logger:      slog.Default().With("component", "ollama-generator"),
	}, nil
}

// NewGenerator creates a generator for config.GenerationModel.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newGenerator(config)
}

// NewProvider creates an embedder and, when a generation model is
// configured, a generator.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}
	p := &Provider{embedder: embedder}

	if config.GenerationEnabled() {
		if p.generator, err = newGenerator(config); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder { return p.embedder }

// Generator returns the generation service or nil.
func (p *Provider) Generator() ai.Generator {
	if p.generator == nil {
		return nil
	}
	return p.generator
}

// Close is a no-op; the HTTP clients hold no resources.
func (p *Provider) Close() error { return nil }

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Error("failed to generate embedding", "err", err)
		return nil, ai.WrapError(err)
	}
	return vector, nil
}

// EmbedTexts generates vector embeddings for multiple texts in order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, ai.WrapError(err)
	}
	return vectors, nil
}

// Generate returns the model's completion for prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	g.logger.Debug("sending prompt", "length", len(prompt))
	text, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, llms.WithTemperature(g.temperature))
	if err != nil {
		g.logger.Error("failed to generate content", "err", err)
		return "", ai.WrapError(err)
	}
	if text == "" {
		return "", ai.ErrEmptyResponse
	}
	return text, nil
}
