package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces free text from a prompt.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate submits prompt to the model and returns its text verbatim.
	// Failures to reach the model are reported wrapping ErrBackendUnreachable.
	Generate(ctx context.Context, prompt string) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the text generation service, or nil when no
	// generation model is configured.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	Close() error
}

type provider struct {
	embedder  Embedder
	generator Generator
}

// NewProvider combines separately constructed services, for example an
// OpenAI-compatible embedder with an Anthropic generator.
// generator may be nil.
func NewProvider(embedder Embedder, generator Generator) AIProvider {
	return &provider{embedder: embedder, generator: generator}
}

func (p *provider) Embedder() Embedder { return p.embedder }

func (p *provider) Generator() Generator {
	if p.generator == nil {
		return nil
	}
	return p.generator
}

func (p *provider) Close() error { return nil }
