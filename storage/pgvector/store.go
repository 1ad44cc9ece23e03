// Package pgvector implements storage.VectorStore on PostgreSQL with the
// pgvector extension.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/poiesic/knowledgebot/core"
	"github.com/poiesic/knowledgebot/storage"
)

// ErrDimensionRequired is returned by Open without WithDimension.
var ErrDimensionRequired = errors.New("pgvector store needs a fixed dimension")

// Store keeps all collections in one items table keyed by (collection, id).
type Store struct {
	db        *sql.DB
	dimension int
	logger    *slog.Logger
}

var _ storage.VectorStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithDimension sets the embedding dimension of the items table.
func WithDimension(dim int) Option {
	return func(s *Store) error {
		if dim <= 0 {
			return fmt.Errorf("%w: got %d", ErrDimensionRequired, dim)
		}
		s.dimension = dim
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// Open connects to dsn, creates the schema if needed and returns the store.
func Open(ctx context.Context, dsn string, opts ...Option) (storage.VectorStore, error) {
	s := &Store{logger: slog.Default().With("component", "vector-store")}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.dimension == 0 {
		return nil, ErrDimensionRequired
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", storage.ErrStoreUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", storage.ErrStoreUnavailable, err)
	}

	s.db = db
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %w", storage.ErrStoreUnavailable, err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS rag_collections (
			name TEXT PRIMARY KEY,
			metric TEXT NOT NULL,
			dimension INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS rag_items (
			collection TEXT NOT NULL REFERENCES rag_collections(name) ON DELETE CASCADE,
			id TEXT NOT NULL,
			document TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			PRIMARY KEY (collection, id)
		)`, s.dimension),
		`CREATE INDEX IF NOT EXISTS idx_rag_items_source ON rag_items (collection, (metadata->>'source_id'))`,
		`CREATE INDEX IF NOT EXISTS idx_rag_items_embedding ON rag_items USING hnsw (embedding vector_cosine_ops)`,
	}

	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

// GetOrCreate implements storage.VectorStore.
func (s *Store) GetOrCreate(ctx context.Context, workspaceID string) (*storage.Collection, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, fmt.Errorf("%w: empty name", storage.ErrInvalidCollection)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rag_collections (name, metric, dimension)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING
	`, workspaceID, storage.MetricCosine, s.dimension)
	if err != nil {
		return nil, fmt.Errorf("%w: create collection %s: %w", storage.ErrStoreUnavailable, workspaceID, err)
	}

	c := &storage.Collection{Name: workspaceID}
	err = s.db.QueryRowContext(ctx,
		`SELECT metric, dimension, created_at FROM rag_collections WHERE name = $1`, workspaceID,
	).Scan(&c.Metric, &c.Dimension, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: read collection %s: %w", storage.ErrStoreUnavailable, workspaceID, err)
	}
	return c, nil
}

// Upsert implements storage.VectorStore. The whole call is one transaction.
func (s *Store) Upsert(ctx context.Context, collection string, chunks []core.Chunk, vectors [][]float32, sourceID string) error {
	if _, err := storage.CheckUpsert(chunks, vectors, s.dimension); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", storage.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM rag_collections WHERE name = $1)`, collection,
	).Scan(&exists); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s does not exist", storage.ErrInvalidCollection, collection)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rag_items (collection, id, document, embedding, metadata)
		VALUES ($1, $2, $3, $4::vector, $5)
		ON CONFLICT (collection, id) DO UPDATE SET
			document = EXCLUDED.document,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata
	`)
	if err != nil {
		return fmt.Errorf("%w: prepare upsert: %w", storage.ErrStoreUnavailable, err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		metadata, err := json.Marshal(storage.StampSource(chunk, sourceID).Map())
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		_, err = stmt.ExecContext(ctx, collection, storage.ChunkID(sourceID, i), chunk.Content, formatVector(vectors[i]), metadata)
		if err != nil {
			return fmt.Errorf("%w: upsert item %d: %w", storage.ErrStoreUnavailable, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", storage.ErrStoreUnavailable, err)
	}
	s.logger.Debug("upserted chunks", "collection", collection, "source_id", sourceID, "count", len(chunks))
	return nil
}

// DeleteBySource implements storage.VectorStore.
func (s *Store) DeleteBySource(ctx context.Context, collection, sourceID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM rag_items WHERE collection = $1 AND metadata->>'source_id' = $2`,
		collection, sourceID)
	if err != nil {
		return 0, fmt.Errorf("%w: delete source %s: %w", storage.ErrStoreUnavailable, sourceID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
	}
	return int(n), nil
}

// Query implements storage.VectorStore.
func (s *Store) Query(ctx context.Context, collection string, vector []float32, k int) ([]storage.Match, error) {
	matches := []storage.Match{}
	if k <= 0 {
		return matches, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d values, want %d", storage.ErrDimensionMismatch, len(vector), s.dimension)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document, metadata, embedding <=> $2::vector AS distance
		FROM rag_items
		WHERE collection = $1
		ORDER BY distance, id
		LIMIT $3
	`, collection, formatVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", storage.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var m storage.Match
		var metadata []byte
		if err := rows.Scan(&m.ID, &m.Document, &metadata, &m.Distance); err != nil {
			return nil, fmt.Errorf("%w: scan row: %w", storage.ErrStoreUnavailable, err)
		}
		var md map[string]string
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &md); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", m.ID, err)
			}
		}
		m.Metadata = core.MetadataFromMap(md)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
	}
	return matches, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// formatVector converts a vector to pgvector text form: "[0.1,0.2,0.3]".
func formatVector(v []float32) string {
	buf := make([]byte, 0, len(v)*10+2)
	buf = append(buf, '[')
	for i, x := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendFloat(buf, float64(x), 'g', -1, 32)
	}
	buf = append(buf, ']')
	return string(buf)
}
