package server

import "github.com/poiesic/knowledgebot/core"

type qaInput struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer"`
}

type articleInput struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content"`
}

type fileRequest struct {
	WorkspaceID string `json:"workspace_id" validate:"required,uuid"`
	SourceID    string `json:"source_id" validate:"required,uuid"`
	FilePath    string `json:"file_path" validate:"required"`
	Filename    string `json:"filename" validate:"required"`
}

type qaRequest struct {
	WorkspaceID string   `json:"workspace_id" validate:"required,uuid"`
	SourceID    string   `json:"source_id" validate:"required,uuid"`
	QA          *qaInput `json:"qa_in" validate:"required"`
}

type articleRequest struct {
	WorkspaceID string        `json:"workspace_id" validate:"required,uuid"`
	SourceID    string        `json:"source_id" validate:"required,uuid"`
	Article     *articleInput `json:"article_in" validate:"required"`
}

type deleteRequest struct {
	CollectionName string `json:"collection_name" validate:"required"`
	SourceID       string `json:"source_id" validate:"required,uuid"`
}

type queryRequest struct {
	WorkspaceID string `json:"workspace_id" validate:"required,uuid"`
	Question    string `json:"question" validate:"required"`
	SessionID   string `json:"session_id" validate:"required,uuid"`
}

// statusResponse acknowledges an ingestion or deletion.
type statusResponse struct {
	Status   core.SourceStatus `json:"status"`
	SourceID string            `json:"source_id"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}
