// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package knowledgebot assembles the retrieval-augmented answering pipeline:
// model adapters, the embedding engine, the vector store, ingestion and
// retrieval, all built from one config.Config.
package knowledgebot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/knowledgebot/ai"
	"github.com/poiesic/knowledgebot/ai/anthropic"
	"github.com/poiesic/knowledgebot/ai/gemini"
	"github.com/poiesic/knowledgebot/ai/ollama"
	"github.com/poiesic/knowledgebot/ai/openai"
	"github.com/poiesic/knowledgebot/chunker"
	"github.com/poiesic/knowledgebot/config"
	"github.com/poiesic/knowledgebot/core"
	"github.com/poiesic/knowledgebot/embedding"
	"github.com/poiesic/knowledgebot/ingestion"
	"github.com/poiesic/knowledgebot/retrieval"
	"github.com/poiesic/knowledgebot/storage"
	"github.com/poiesic/knowledgebot/storage/badger"
	"github.com/poiesic/knowledgebot/storage/pgvector"
)

// Service is the process-wide pipeline context. One instance is shared by
// every request.
type Service struct {
	provider  ai.AIProvider
	engine    *embedding.Engine
	store     storage.VectorStore
	pipeline  *ingestion.Pipeline
	retrieval *retrieval.Engine
	logger    *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	provider    ai.AIProvider
	generator   ai.Generator
	store       storage.VectorStore
	logger      *slog.Logger
	retrievalOp []retrieval.Option
}

// WithProvider uses provider instead of building one from the config.
func WithProvider(provider ai.AIProvider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithGenerator uses generator as the answer model instead of the
// configured generation backend.
func WithGenerator(generator ai.Generator) ServiceOption {
	return func(o *serviceOptions) {
		o.generator = generator
	}
}

// WithVectorStore uses store instead of opening the configured one. The
// service takes ownership and closes it.
func WithVectorStore(store storage.VectorStore) ServiceOption {
	return func(o *serviceOptions) {
		o.store = store
	}
}

// WithRetrievalOptions passes extra options to the retrieval engine.
func WithRetrievalOptions(opts ...retrieval.Option) ServiceOption {
	return func(o *serviceOptions) {
		o.retrievalOp = append(o.retrievalOp, opts...)
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// NewService builds the pipeline. It fails when the embedding model cannot
// produce a vector, so a returned Service is always able to serve traffic.
func NewService(ctx context.Context, cfg *config.Config, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		logger: slog.Default().With("component", "knowledgebot"),
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	provider := options.provider
	if provider == nil {
		var err error
		if provider, err = newProvider(cfg); err != nil {
			return nil, err
		}
	}

	engineOpts := []embedding.Option{embedding.WithBatchSize(cfg.AI.EmbedBatchSize)}
	if cfg.AI.EmbedWorkers > 0 {
		engineOpts = append(engineOpts, embedding.WithPoolSize(cfg.AI.EmbedWorkers))
	}
	engine, err := embedding.NewEngine(ctx, provider.Embedder(), engineOpts...)
	if err != nil {
		provider.Close()
		return nil, err
	}
	logger.Info("embedding model ready", "model", cfg.AI.EmbeddingModel, "dimension", engine.Dimension())

	store := options.store
	if store == nil {
		if store, err = openVectorStore(ctx, cfg, engine.Dimension()); err != nil {
			engine.Release()
			provider.Close()
			return nil, err
		}
	}

	s := &Service{
		provider: provider,
		engine:   engine,
		store:    store,
		logger:   logger,
	}

	if err := s.build(ctx, cfg, options); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) build(ctx context.Context, cfg *config.Config, options *serviceOptions) error {
	ch, err := chunker.New(
		chunker.WithChunkSize(cfg.Chunking.Size),
		chunker.WithChunkOverlap(cfg.Chunking.Overlap),
	)
	if err != nil {
		return err
	}

	s.pipeline, err = ingestion.NewPipeline(ch, s.engine, s.store)
	if err != nil {
		return err
	}

	generator := options.generator
	if generator == nil {
		if generator, err = newGenerator(ctx, cfg, s.provider); err != nil {
			return err
		}
	}
	if generator == nil {
		s.logger.Warn("no generation backend configured, answers come from the stub backend")
	}

	retrievalOpts := append([]retrieval.Option{
		retrieval.WithTopK(cfg.Retrieval.TopK),
		retrieval.WithThreshold(cfg.Retrieval.Threshold),
		retrieval.WithBackend(retrieval.BackendFor(generator)),
	}, options.retrievalOp...)
	s.retrieval, err = retrieval.NewEngine(s.engine, s.store, retrievalOpts...)
	return err
}

func newProvider(cfg *config.Config) (ai.AIProvider, error) {
	switch cfg.AI.Provider {
	case "openai":
		return openai.NewProvider(cfg.EmbeddingAI())
	case "ollama", "":
		return ollama.NewProvider(cfg.EmbeddingAI())
	}
	return nil, fmt.Errorf("%w: unknown ai provider %q", config.ErrInvalidConfig, cfg.AI.Provider)
}

// newGenerator returns nil for the stub backend. The provider's own
// generator is reused when it already serves the configured model.
func newGenerator(ctx context.Context, cfg *config.Config, provider ai.AIProvider) (ai.Generator, error) {
	genCfg := cfg.GenerationAI()
	switch cfg.AI.Generation.Backend {
	case "stub", "":
		return nil, nil
	case "ollama":
		return ollama.NewGenerator(genCfg)
	case "openai":
		if g := provider.Generator(); g != nil {
			return g, nil
		}
		return openai.NewGenerator(genCfg)
	case "anthropic":
		return anthropic.NewGenerator(genCfg, anthropic.WithMaxTokens(cfg.AI.Generation.MaxTokens))
	case "gemini":
		return gemini.NewGenerator(ctx, genCfg)
	}
	return nil, fmt.Errorf("%w: unknown generation backend %q", config.ErrInvalidConfig, cfg.AI.Generation.Backend)
}

func openVectorStore(ctx context.Context, cfg *config.Config, dimension int) (storage.VectorStore, error) {
	if cfg.VectorStore.DSN != "" {
		return pgvector.Open(ctx, cfg.VectorStore.DSN, pgvector.WithDimension(dimension))
	}
	return badger.OpenStore(cfg.VectorStore.Path, badger.WithDimension(dimension))
}

// Close releases the engine, the store and the provider.
func (s *Service) Close() error {
	if s.engine != nil {
		s.engine.Release()
	}

	var errs []error
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing vector store", "err", err)
		errs = append(errs, err)
	}
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Dimension reports the embedding dimension discovered at startup.
func (s *Service) Dimension() int {
	return s.engine.Dimension()
}

// Pipeline returns the ingestion pipeline.
func (s *Service) Pipeline() *ingestion.Pipeline {
	return s.pipeline
}

// Retrieval returns the retrieval engine.
func (s *Service) Retrieval() *retrieval.Engine {
	return s.retrieval
}

// ProcessFile ingests a stored file.
func (s *Service) ProcessFile(ctx context.Context, workspaceID, sourceID, path, filename string) error {
	return s.pipeline.IngestFile(ctx, workspaceID, sourceID, path, filename)
}

// ProcessQA ingests a question and answer pair.
func (s *Service) ProcessQA(ctx context.Context, workspaceID, sourceID, question, answer string) error {
	return s.pipeline.IngestQA(ctx, workspaceID, sourceID, question, answer)
}

// ProcessArticle ingests an article.
func (s *Service) ProcessArticle(ctx context.Context, workspaceID, sourceID, title, content string) error {
	return s.pipeline.IngestArticle(ctx, workspaceID, sourceID, title, content)
}

// DeleteEmbeddings removes every chunk of a source from a collection.
func (s *Service) DeleteEmbeddings(ctx context.Context, collection, sourceID string) (int, error) {
	return s.pipeline.Delete(ctx, collection, sourceID)
}

// Query answers a question. It never fails; errors are reported in the
// answer text.
func (s *Service) Query(ctx context.Context, workspaceID, question string) core.QueryResult {
	return s.retrieval.Answer(ctx, workspaceID, question)
}
