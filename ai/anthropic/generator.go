// Package anthropic provides an ai.Generator backed by the Anthropic
// Messages API. Anthropic has no embedding endpoint, so it is combined
// with another embedder through ai.NewProvider.
package anthropic

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/poiesic/knowledgebot/ai"
)

// DefaultMaxTokens caps the length of generated answers.
const DefaultMaxTokens = 1024

// ErrAPIKeyRequired is returned when no API key is configured.
var ErrAPIKeyRequired = errors.New("anthropic: api key is required")

// Generator implements ai.Generator with Claude models.
type Generator struct {
	client      anthropic.Client
	requestOpts []option.RequestOption
	model       string
	maxTokens   int64
	temperature float64
	logger      *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithMaxTokens overrides DefaultMaxTokens.
func WithMaxTokens(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = int64(n)
		}
	}
}

// WithRequestOptions passes extra client options, for example a base URL.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(g *Generator) {
		g.requestOpts = append(g.requestOpts, opts...)
	}
}

// NewGenerator creates a generator for config.GenerationModel using
// config.APIKey.
func NewGenerator(config *ai.Config, opts ...Option) (ai.Generator, error) {
	if config.APIKey == "" || config.APIKey == "none" {
		return nil, ErrAPIKeyRequired
	}
	if config.GenerationModel == "" {
		return nil, errors.New("ai config: GenerationModel is required")
	}

	g := &Generator{
		requestOpts: []option.RequestOption{option.WithAPIKey(config.APIKey)},
		model:       config.GenerationModel,
		maxTokens:   DefaultMaxTokens,
		temperature: config.Temperature,
		logger:      slog.Default().With("component", "anthropic-generator"),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.client = anthropic.NewClient(g.requestOpts...)
	return g, nil
}

// Generate sends prompt as a single user message and concatenates the
// text blocks of the reply.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if g.temperature > 0 {
		params.Temperature = anthropic.Float(g.temperature)
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		g.logger.Error("messages request failed", "err", err)
		return "", ai.WrapError(err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ai.ErrEmptyResponse
	}
	return sb.String(), nil
}
