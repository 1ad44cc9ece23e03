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

package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/knowledgebot/core"
	"github.com/poiesic/knowledgebot/storage"
	"github.com/timshannon/badgerhold/v4"
)

const (
	defaultBatchSize = 64
	maxTxRetries     = 5
)

// Store is the embedded vector store. Collections and items are badgerhold
// records; queries are a cosine scan over the collection index.
type Store struct {
	backend   *Backend
	dimension int
	batchSize int
	closed    atomic.Bool
	logger    *slog.Logger
}

var _ storage.VectorStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithDimension fixes the dimension new collections are created with.
// Without it a collection takes the length of the first vector written.
func WithDimension(dim int) Option {
	return func(s *Store) error {
		if dim < 0 {
			return fmt.Errorf("dimension must be non-negative, got %d", dim)
		}
		s.dimension = dim
		return nil
	}
}

// WithBatchSize sets how many items are written per transaction.
func WithBatchSize(size int) Option {
	return func(s *Store) error {
		if size <= 0 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		s.batchSize = size
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

// OpenStore opens a persistent vector store rooted at dir.
func OpenStore(dir string, opts ...Option) (storage.VectorStore, error) {
	return openStore(dir, false, opts...)
}

func openStore(dir string, inMemory bool, opts ...Option) (*Store, error) {
	backend, err := OpenBackend(dir, inMemory)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
	}
	s, err := newStore(backend, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return s, nil
}

func newStore(backend *Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend:   backend,
		batchSize: defaultBatchSize,
		logger:    slog.Default().With("component", "vector-store"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// GetOrCreate implements storage.VectorStore.
func (s *Store) GetOrCreate(ctx context.Context, workspaceID string) (*storage.Collection, error) {
	if err := s.check(workspaceID); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var rec collectionRecord
		created := false
		err := s.backend.Update(func(tx *badger.Txn) error {
			err := s.backend.Store().TxGet(tx, workspaceID, &rec)
			if err == nil {
				return nil
			}
			if !errors.Is(err, badgerhold.ErrNotFound) {
				return err
			}
			rec = collectionRecord{
				Name:      workspaceID,
				Metric:    storage.MetricCosine,
				Dimension: s.dimension,
				CreatedAt: time.Now().UTC(),
			}
			created = true
			return s.backend.Store().TxInsert(tx, workspaceID, &rec)
		})

		switch {
		case err == nil:
			if created {
				s.logger.Debug("created collection", "collection", workspaceID, "dimension", rec.Dimension)
			}
			return rec.collection(workspaceID), nil
		case errors.Is(err, badger.ErrConflict), errors.Is(err, badgerhold.ErrKeyExists):
			// Lost a creation race; the next attempt reads the winner.
			continue
		default:
			return nil, fmt.Errorf("%w: get or create %s: %w", storage.ErrStoreUnavailable, workspaceID, err)
		}
	}
	return nil, fmt.Errorf("%w: get or create %s: too many conflicts", storage.ErrStoreUnavailable, workspaceID)
}

// Upsert implements storage.VectorStore.
func (s *Store) Upsert(ctx context.Context, collection string, chunks []core.Chunk, vectors [][]float32, sourceID string) error {
	if err := s.check(collection); err != nil {
		return err
	}
	if len(chunks) == 0 && len(vectors) == 0 {
		return nil
	}

	rec, err := s.getCollection(collection)
	if err != nil {
		return err
	}
	dim, err := storage.CheckUpsert(chunks, vectors, rec.Dimension)
	if err != nil {
		return err
	}

	var written []string
	var replaced []*itemRecord
	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))

		if err := ctx.Err(); err != nil {
			s.compensate(collection, written, replaced)
			return err
		}

		keys := make([]string, 0, end-start)
		var previous []*itemRecord
		err := s.backend.Update(func(tx *badger.Txn) error {
			keys, previous = keys[:0], previous[:0]
			if rec.Dimension == 0 {
				rec.Dimension = dim
				if err := s.backend.Store().TxUpdate(tx, collection, rec); err != nil {
					return err
				}
			}
			for i := start; i < end; i++ {
				item := newItemRecord(collection, sourceID, i, chunks[i], vectors[i])
				var old itemRecord
				err := s.backend.Store().TxGet(tx, item.Key, &old)
				switch {
				case err == nil:
					previous = append(previous, &old)
				case !errors.Is(err, badgerhold.ErrNotFound):
					return err
				}
				if err := s.backend.Store().TxUpsert(tx, item.Key, item); err != nil {
					return err
				}
				keys = append(keys, item.Key)
			}
			return nil
		})
		if err != nil {
			s.compensate(collection, written, replaced)
			return fmt.Errorf("%w: upsert %d items into %s: %w", storage.ErrStoreUnavailable, end-start, collection, err)
		}
		written = append(written, keys...)
		replaced = append(replaced, previous...)
	}

	s.logger.Debug("upserted chunks", "collection", collection, "source_id", sourceID, "count", len(written))
	return nil
}

// compensate undoes the earlier batches of a failed upsert: written keys
// are removed and the records they overwrote are put back.
func (s *Store) compensate(collection string, keys []string, replaced []*itemRecord) {
	if len(keys) == 0 {
		return
	}
	err := s.backend.Update(func(tx *badger.Txn) error {
		for _, key := range keys {
			err := s.backend.Store().TxDelete(tx, key, &itemRecord{})
			if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
				return err
			}
		}
		for _, old := range replaced {
			if err := s.backend.Store().TxUpsert(tx, old.Key, old); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to roll back partial upsert", "collection", collection, "count", len(keys), "err", err)
	}
}

// DeleteBySource implements storage.VectorStore.
func (s *Store) DeleteBySource(ctx context.Context, collection, sourceID string) (int, error) {
	if err := s.check(collection); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	bySource := func() *badgerhold.Query {
		return badgerhold.Where("Collection").Eq(collection).And("SourceID").Eq(sourceID)
	}

	var removed uint64
	err := s.backend.Update(func(tx *badger.Txn) error {
		n, err := s.backend.Store().TxCount(tx, &itemRecord{}, bySource())
		if err != nil {
			return err
		}
		removed = n
		if n == 0 {
			return nil
		}
		return s.backend.Store().TxDeleteMatching(tx, &itemRecord{}, bySource())
	})
	if err != nil {
		return 0, fmt.Errorf("%w: delete source %s from %s: %w", storage.ErrStoreUnavailable, sourceID, collection, err)
	}

	s.logger.Debug("deleted chunks", "collection", collection, "source_id", sourceID, "count", removed)
	return int(removed), nil
}

// Query implements storage.VectorStore.
func (s *Store) Query(ctx context.Context, collection string, vector []float32, k int) ([]storage.Match, error) {
	if err := s.check(collection); err != nil {
		return nil, err
	}
	matches := []storage.Match{}
	if k <= 0 {
		return matches, nil
	}

	rec, err := s.getCollection(collection)
	if errors.Is(err, storage.ErrInvalidCollection) {
		return matches, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Dimension > 0 && len(vector) != rec.Dimension {
		return nil, fmt.Errorf("%w: query has %d values, collection %s has %d",
			storage.ErrDimensionMismatch, len(vector), collection, rec.Dimension)
	}

	err = s.backend.Store().ForEach(badgerhold.Where("Collection").Eq(collection), func(item *itemRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		matches = append(matches, storage.Match{
			ID:       item.ID,
			Distance: cosineDistance(vector, item.Vector),
			Document: item.Document,
			Metadata: core.MetadataFromMap(item.Metadata),
		})
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: query %s: %w", storage.ErrStoreUnavailable, collection, err)
	}

	// Sort by distance ascending, ties by id for stable output
	slices.SortFunc(matches, func(a, b storage.Match) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Close implements storage.VectorStore.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.backend.Close()
}

func (s *Store) check(collection string) error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	if strings.TrimSpace(collection) == "" {
		return fmt.Errorf("%w: empty name", storage.ErrInvalidCollection)
	}
	return nil
}

func (s *Store) getCollection(name string) (*collectionRecord, error) {
	var rec collectionRecord
	err := s.backend.Store().Get(name, &rec)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s does not exist", storage.ErrInvalidCollection, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read collection %s: %w", storage.ErrStoreUnavailable, name, err)
	}
	return &rec, nil
}
