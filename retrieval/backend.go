package retrieval

import (
	"context"
	"errors"
	"strings"

	"github.com/poiesic/knowledgebot/ai"
)

// Backend produces the answer text for an assembled prompt.
type Backend interface {
	// Answer returns the answer for prompt. contextText is the rendered
	// context block the prompt was built from.
	Answer(ctx context.Context, prompt, contextText string) (string, error)
}

// StubBackend is used when no generation model is configured. It echoes
// the retrieved context without calling a model.
type StubBackend struct{}

var _ Backend = StubBackend{}

// Answer implements Backend.
func (StubBackend) Answer(_ context.Context, _, contextText string) (string, error) {
	return stubPrefix + contextText, nil
}

// LLMBackend submits the prompt to a generation model and returns its text
// verbatim.
type LLMBackend struct {
	generator ai.Generator
}

var _ Backend = (*LLMBackend)(nil)

// NewLLMBackend wraps generator.
func NewLLMBackend(generator ai.Generator) *LLMBackend {
	return &LLMBackend{generator: generator}
}

// Answer implements Backend. An empty model response becomes
// EmptyResponseAnswer rather than an error.
func (b *LLMBackend) Answer(ctx context.Context, prompt, _ string) (string, error) {
	text, err := b.generator.Generate(ctx, prompt)
	if errors.Is(err, ai.ErrEmptyResponse) {
		return EmptyResponseAnswer, nil
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return EmptyResponseAnswer, nil
	}
	return text, nil
}

// BackendFor returns an LLMBackend for generator, or StubBackend when
// generator is nil.
func BackendFor(generator ai.Generator) Backend {
	if generator == nil {
		return StubBackend{}
	}
	return NewLLMBackend(generator)
}
