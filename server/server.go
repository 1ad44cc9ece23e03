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

// Package server exposes the ingestion and retrieval pipeline over HTTP.
//
// All routes live under a configurable prefix (default /api/v1/ai). When
// the underlying service failed to start, every pipeline route answers 503
// and the process keeps running.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/poiesic/knowledgebot"
	"github.com/poiesic/knowledgebot/core"
)

// DefaultPrefix is the route prefix used when none is configured.
const DefaultPrefix = "/api/v1/ai"

// Pipeline is the work the HTTP surface delegates to.
type Pipeline interface {
	ProcessFile(ctx context.Context, workspaceID, sourceID, path, filename string) error
	ProcessQA(ctx context.Context, workspaceID, sourceID, question, answer string) error
	ProcessArticle(ctx context.Context, workspaceID, sourceID, title, content string) error
	DeleteEmbeddings(ctx context.Context, collection, sourceID string) (int, error)
	Query(ctx context.Context, workspaceID, question string) core.QueryResult
}

// Resolver returns the pipeline, or an error when it is not available.
type Resolver func() (Pipeline, error)

// FromHandle adapts a service handle into a Resolver.
func FromHandle(h *knowledgebot.Handle) Resolver {
	return func() (Pipeline, error) {
		svc, err := h.Service()
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
}

// Server serves the pipeline routes.
type Server struct {
	resolve  Resolver
	prefix   string
	validate *validator.Validate
	logger   *slog.Logger
	handler  http.Handler
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server) error

// WithPrefix sets the route prefix.
func WithPrefix(prefix string) Option {
	return func(s *Server) error {
		if prefix != "" && !strings.HasPrefix(prefix, "/") {
			return fmt.Errorf("prefix must start with '/': %q", prefix)
		}
		s.prefix = strings.TrimSuffix(prefix, "/")
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// New creates a Server resolving its pipeline through resolve.
func New(resolve Resolver, opts ...Option) (*Server, error) {
	if resolve == nil {
		return nil, errors.New("resolver cannot be nil")
	}
	s := &Server{
		resolve:  resolve,
		prefix:   DefaultPrefix,
		validate: validator.New(),
		logger:   slog.Default().With("component", "server"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.handler = s.withMiddleware(s.routes())
	return s, nil
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+s.prefix+"/process-file", s.processFile)
	mux.HandleFunc("POST "+s.prefix+"/process-qa", s.processQA)
	mux.HandleFunc("POST "+s.prefix+"/process-article", s.processArticle)
	mux.HandleFunc("POST "+s.prefix+"/delete-embeddings", s.deleteEmbeddings)
	mux.HandleFunc("POST "+s.prefix+"/query", s.query)
	mux.HandleFunc("GET /healthz", s.healthz)
	return mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", "addr", addr, "prefix", s.prefix)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return <-errCh
}
