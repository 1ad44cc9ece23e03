// Package gemini provides an ai.Generator backed by the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/knowledgebot/ai"
	"google.golang.org/genai"
)

// ErrAPIKeyRequired is returned when no API key is configured.
var ErrAPIKeyRequired = errors.New("gemini: api key is required")

// Generator implements ai.Generator with Gemini models.
type Generator struct {
	client      *genai.Client
	model       string
	temperature float32
	logger      *slog.Logger
}

// NewGenerator creates a Gemini client for config.GenerationModel.
func NewGenerator(ctx context.Context, config *ai.Config) (ai.Generator, error) {
	if config.APIKey == "" || config.APIKey == "none" {
		return nil, ErrAPIKeyRequired
	}
	if config.GenerationModel == "" {
		return nil, errors.New("ai config: GenerationModel is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Generator{
		client:      client,
		model:       config.GenerationModel,
		temperature: float32(config.Temperature),
		logger:      slog.Default().With("component", "gemini-generator"),
	}, nil
}

// Generate returns the text of the first candidate.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	})
	if err != nil {
		g.logger.Error("generate content failed", "err", err)
		return "", ai.WrapError(err)
	}
	text := resp.Text()
	if text == "" {
		return "", ai.ErrEmptyResponse
	}
	return text, nil
}
