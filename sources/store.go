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

// Package sources keeps the caller-side records of knowledge sources and
// their ingestion status.
package sources

import (
	"context"
	"errors"
	"time"

	"github.com/poiesic/knowledgebot/core"
)

var (
	ErrNotFound       = errors.New("source not found")
	ErrAlreadyExists  = errors.New("source already exists")
	ErrUnsupportedDSN = errors.New("unsupported database URL")
)

// Source is one piece of knowledge a workspace owns. Only the fields
// matching Type are populated.
type Source struct {
	ID          string
	WorkspaceID string
	Type        core.SourceType
	Name        string
	Status      core.SourceStatus

	FilePath string // FILE

	Question string // QNA
	Answer   string

	Title   string // ARTICLE
	Content string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists Source records.
type Store interface {
	Create(ctx context.Context, src *Source) error
	Get(ctx context.Context, id string) (*Source, error)
	// List returns a workspace's sources, newest first.
	List(ctx context.Context, workspaceID string) ([]Source, error)
	// Update rewrites the mutable fields of an existing source.
	Update(ctx context.Context, src *Source) error
	UpdateStatus(ctx context.Context, id string, status core.SourceStatus) error
	Delete(ctx context.Context, id string) error
	Close() error
}
