package core

import "strconv"

// SourceType identifies the kind of knowledge a source holds.
type SourceType string

const (
	SourceTypeFile    SourceType = "FILE"
	SourceTypeQNA     SourceType = "QNA"
	SourceTypeArticle SourceType = "ARTICLE"
)

// SourceStatus is the lifecycle state of a knowledge source.
// A source moves from PROCESSING to COMPLETED or FAILED; only a fresh
// ingestion puts it back into PROCESSING.
type SourceStatus string

const (
	StatusProcessing SourceStatus = "PROCESSING"
	StatusCompleted  SourceStatus = "COMPLETED"
	StatusFailed     SourceStatus = "FAILED"
	// StatusDeleted is only reported by the pipeline for deletion calls.
	StatusDeleted SourceStatus = "DELETED"
)

// Terminal reports whether no further transition happens without re-ingestion.
func (s SourceStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ChunkMetadata is the provenance attached to every chunk.
type ChunkMetadata struct {
	SourceName string
	SourceType SourceType
	Page       int // 1-based, 0 when the source has no pages
	SourceID   string
	StartIndex int    // rune offset of the chunk within its page-level unit
	Error      string // set when the chunk is a parse-failure placeholder
}

// Map flattens the metadata into string pairs for stores that keep
// metadata as a document.
func (m ChunkMetadata) Map() map[string]string {
	out := map[string]string{
		"source_name": m.SourceName,
		"source_id":   m.SourceID,
		"start_index": strconv.Itoa(m.StartIndex),
	}
	if m.SourceType != "" {
		out["source_type"] = string(m.SourceType)
	}
	if m.Page > 0 {
		out["page"] = strconv.Itoa(m.Page)
	}
	if m.Error != "" {
		out["error"] = m.Error
	}
	return out
}

// MetadataFromMap is the inverse of ChunkMetadata.Map. Unparseable numbers
// are left at zero.
func MetadataFromMap(in map[string]string) ChunkMetadata {
	m := ChunkMetadata{
		SourceName: in["source_name"],
		SourceType: SourceType(in["source_type"]),
		SourceID:   in["source_id"],
		Error:      in["error"],
	}
	m.Page, _ = strconv.Atoi(in["page"])
	m.StartIndex, _ = strconv.Atoi(in["start_index"])
	return m
}

// Chunk is a bounded span of text with provenance, the unit that gets
// embedded, stored and retrieved.
type Chunk struct {
	Content  string
	Metadata ChunkMetadata
}

// QuerySource is one piece of context an answer was grounded on.
type QuerySource struct {
	Name      string `json:"name"`
	Page      *int   `json:"page"`
	TextChunk string `json:"text_chunk"`
}

// QueryResult is the answer to a question plus the sources used.
// An empty Sources slice means no relevant context was found.
type QueryResult struct {
	Answer  string        `json:"answer"`
	Sources []QuerySource `json:"sources"`
}

// HasContext reports whether the answer was grounded on stored knowledge.
func (r QueryResult) HasContext() bool {
	return len(r.Sources) > 0
}
