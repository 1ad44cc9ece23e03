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

// Package knowledge implements the caller-side flows around knowledge
// sources. Questions that no source can answer are flagged for escalation.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/poiesic/knowledgebot/core"
	"github.com/poiesic/knowledgebot/sources"
)

// MaxNameLength bounds the display name derived from a question.
const MaxNameLength = 255

// Dispatcher schedules pipeline work. *orchestrator.Orchestrator
// satisfies it.
type Dispatcher interface {
	DispatchFile(ctx context.Context, workspaceID, sourceID, path, filename string) core.SourceStatus
	DispatchQA(ctx context.Context, workspaceID, sourceID, question, answer string) core.SourceStatus
	DispatchArticle(ctx context.Context, workspaceID, sourceID, title, content string) core.SourceStatus
	DispatchDelete(workspaceID, sourceID string)
	Query(ctx context.Context, workspaceID, sessionID, question string) (core.QueryResult, error)
}

// Service manages the knowledge sources of workspaces.
type Service struct {
	store      sources.Store
	dispatcher Dispatcher
	storageDir string
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithStorageDir sets where uploaded files are kept.
func WithStorageDir(dir string) Option {
	return func(s *Service) error {
		if dir == "" {
			return errors.New("storage dir cannot be empty")
		}
		s.storageDir = dir
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// NewService creates a Service. Uploaded files go to ./data/uploads unless
// WithStorageDir says otherwise.
func NewService(store sources.Store, dispatcher Dispatcher, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if dispatcher == nil {
		return nil, ErrDispatcherRequired
	}
	s := &Service{
		store:      store,
		dispatcher: dispatcher,
		storageDir: filepath.Join("data", "uploads"),
		logger:     slog.Default().With("component", "knowledge"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(s.storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return s, nil
}

// AddFile stores the uploaded bytes and schedules their ingestion.
func (s *Service) AddFile(ctx context.Context, workspaceID, filename string, r io.Reader) (*sources.Source, error) {
	if err := core.ValidateID("workspace id", workspaceID); err != nil {
		return nil, err
	}
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) || strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}

	path := filepath.Join(s.storageDir, fmt.Sprintf("%s_%s_%s", workspaceID, uuid.NewString(), name))
	if err := writeFile(path, r); err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	src := &sources.Source{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Type:        core.SourceTypeFile,
		Name:        name,
		Status:      core.StatusProcessing,
		FilePath:    path,
	}
	if err := s.store.Create(ctx, src); err != nil {
		s.removeFile(path)
		return nil, err
	}

	src.Status = s.dispatcher.DispatchFile(ctx, workspaceID, src.ID, path, name)
	s.logger.Info("file source added", "workspace_id", workspaceID, "source_id", src.ID, "filename", name)
	return src, nil
}

// AddQA records a question/answer pair and schedules its ingestion.
func (s *Service) AddQA(ctx context.Context, workspaceID, question, answer string) (*sources.Source, error) {
	if err := core.ValidateID("workspace id", workspaceID); err != nil {
		return nil, err
	}
	src := &sources.Source{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Type:        core.SourceTypeQNA,
		Name:        truncate(question, MaxNameLength),
		Status:      core.StatusProcessing,
		Question:    question,
		Answer:      answer,
	}
	if err := s.store.Create(ctx, src); err != nil {
		return nil, err
	}

	src.Status = s.dispatcher.DispatchQA(ctx, workspaceID, src.ID, question, answer)
	s.logger.Info("qa source added", "workspace_id", workspaceID, "source_id", src.ID)
	return src, nil
}

// AddArticle records an article and schedules its ingestion.
func (s *Service) AddArticle(ctx context.Context, workspaceID, title, content string) (*sources.Source, error) {
	if err := core.ValidateID("workspace id", workspaceID); err != nil {
		return nil, err
	}
	src := &sources.Source{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Type:        core.SourceTypeArticle,
		Name:        title,
		Status:      core.StatusProcessing,
		Title:       title,
		Content:     content,
	}
	if err := s.store.Create(ctx, src); err != nil {
		return nil, err
	}

	src.Status = s.dispatcher.DispatchArticle(ctx, workspaceID, src.ID, title, content)
	s.logger.Info("article source added", "workspace_id", workspaceID, "source_id", src.ID)
	return src, nil
}

// UpdateQA replaces the content of a Q&A source. Its old chunks are
// scheduled for deletion, then the new pair for ingestion; the dispatcher
// runs them in that order. ARTICLE sources are accepted but only lose
// their chunks.
func (s *Service) UpdateQA(ctx context.Context, workspaceID, sourceID, question, answer string) (*sources.Source, error) {
	src, err := s.Get(ctx, workspaceID, sourceID)
	if err != nil {
		return nil, err
	}
	if src.Type == core.SourceTypeFile {
		return nil, ErrFileNotUpdatable
	}

	s.dispatcher.DispatchDelete(workspaceID, sourceID)

	if src.Type != core.SourceTypeQNA {
		return src, nil
	}

	src.Question = question
	src.Answer = answer
	src.Name = truncate(question, MaxNameLength)
	src.Status = core.StatusProcessing
	if err := s.store.Update(ctx, src); err != nil {
		return nil, err
	}

	src.Status = s.dispatcher.DispatchQA(ctx, workspaceID, src.ID, question, answer)
	return src, nil
}

// Remove deletes a source along with its chunks and stored file.
func (s *Service) Remove(ctx context.Context, workspaceID, sourceID string) error {
	src, err := s.Get(ctx, workspaceID, sourceID)
	if err != nil {
		return err
	}

	s.dispatcher.DispatchDelete(workspaceID, sourceID)

	if src.Type == core.SourceTypeFile && src.FilePath != "" {
		s.removeFile(src.FilePath)
	}

	if err := s.store.Delete(ctx, sourceID); err != nil {
		if errors.Is(err, sources.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, sourceID)
		}
		return err
	}
	s.logger.Info("source removed", "workspace_id", workspaceID, "source_id", sourceID)
	return nil
}

// Ask answers a question for a workspace. needsEscalation is true when
// the answer is not grounded on any source, which is when a human should
// follow up.
func (s *Service) Ask(ctx context.Context, workspaceID, sessionID, question string) (result core.QueryResult, needsEscalation bool, err error) {
	if err := core.ValidateID("workspace id", workspaceID); err != nil {
		return core.QueryResult{}, false, err
	}
	if err := core.ValidateID("session id", sessionID); err != nil {
		return core.QueryResult{}, false, err
	}

	result, err = s.dispatcher.Query(ctx, workspaceID, sessionID, question)
	if err != nil {
		return core.QueryResult{}, false, err
	}
	if !result.HasContext() {
		s.logger.Info("question needs escalation", "workspace_id", workspaceID, "session_id", sessionID)
		return result, true, nil
	}
	return result, false, nil
}

// Get returns a source of the workspace.
func (s *Service) Get(ctx context.Context, workspaceID, sourceID string) (*sources.Source, error) {
	src, err := s.store.Get(ctx, sourceID)
	if err != nil {
		if errors.Is(err, sources.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, sourceID)
		}
		return nil, err
	}
	if src.WorkspaceID != workspaceID {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sourceID)
	}
	return src, nil
}

// List returns the workspace's sources, newest first.
func (s *Service) List(ctx context.Context, workspaceID string) ([]sources.Source, error) {
	return s.store.List(ctx, workspaceID)
}

func (s *Service) removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to delete stored file", "path", path, "err", err)
	}
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
