package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/knowledgebot/core"
)

// MetricCosine is the only distance metric collections are created with.
const MetricCosine = "cosine"

// Collection describes a per-workspace vector collection.
type Collection struct {
	Name      string
	Metric    string
	Dimension int // 0 until the first vector is written
	CreatedAt time.Time
}

// Match is a single nearest-neighbour result.
type Match struct {
	ID       string
	Distance float64 // cosine distance, smaller is closer
	Document string
	Metadata core.ChunkMetadata
}

// VectorStore stores embedded chunks per workspace and answers
// nearest-neighbour queries. Implementations must be thread-safe.
type VectorStore interface {
	// GetOrCreate returns the collection for a workspace, creating it if
	// needed. Concurrent callers racing on creation all receive the same
	// collection.
	GetOrCreate(ctx context.Context, workspaceID string) (*Collection, error)

	// Upsert writes chunks with their vectors under ids "{sourceID}_{i}".
	// The source id is stamped into every chunk's metadata. Either all
	// chunks are written or none remain.
	Upsert(ctx context.Context, collection string, chunks []core.Chunk, vectors [][]float32, sourceID string) error

	// DeleteBySource removes every chunk of a source and returns how many
	// were removed. Deleting an unknown source is not an error.
	DeleteBySource(ctx context.Context, collection, sourceID string) (int, error)

	// Query returns up to k matches ordered nearest first. An empty
	// collection yields an empty slice.
	Query(ctx context.Context, collection string, vector []float32, k int) ([]Match, error)

	// Close releases the store.
	Close() error
}

// ChunkID returns the id chunk i of a source is stored under.
func ChunkID(sourceID string, i int) string {
	return fmt.Sprintf("%s_%d", sourceID, i)
}

// CheckUpsert validates the arguments of an Upsert call against the
// collection dimension. A zero dimension accepts the length of the first
// vector. It returns the dimension the write will use.
func CheckUpsert(chunks []core.Chunk, vectors [][]float32, dimension int) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("%w: %d chunks, %d vectors", ErrLengthMismatch, len(chunks), len(vectors))
	}
	for i, v := range vectors {
		if dimension == 0 {
			dimension = len(v)
		}
		if len(v) == 0 || len(v) != dimension {
			return 0, fmt.Errorf("%w: vector %d has %d values, want %d", ErrDimensionMismatch, i, len(v), dimension)
		}
	}
	return dimension, nil
}

// StampSource returns the chunk metadata with its source id set.
func StampSource(chunk core.Chunk, sourceID string) core.ChunkMetadata {
	md := chunk.Metadata
	md.SourceID = sourceID
	return md
}
