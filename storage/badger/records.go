package badger

import (
	"time"

	"github.com/poiesic/knowledgebot/core"
	"github.com/poiesic/knowledgebot/storage"
)

// collectionRecord is the persisted form of storage.Collection.
type collectionRecord struct {
	Name      string `badgerhold:"key"`
	Metric    string
	Dimension int
	CreatedAt time.Time
}

func (r *collectionRecord) collection(name string) *storage.Collection {
	return &storage.Collection{
		Name:      name,
		Metric:    r.Metric,
		Dimension: r.Dimension,
		CreatedAt: r.CreatedAt,
	}
}

// itemRecord is one stored chunk. Items of all collections share a single
// badgerhold type; Collection and SourceID are indexed for the scans and
// bulk deletes.
type itemRecord struct {
	Key        string `badgerhold:"key"`
	Collection string `badgerhold:"index"`
	SourceID   string `badgerhold:"index"`
	ID         string
	Document   string
	Vector     []float32
	Metadata   map[string]string
}

// itemKey generates the record key for a chunk id within a collection.
// Format: collection/id
func itemKey(collection, id string) string {
	return collection + "/" + id
}

func newItemRecord(collection, sourceID string, i int, chunk core.Chunk, vector []float32) *itemRecord {
	id := storage.ChunkID(sourceID, i)
	return &itemRecord{
		Key:        itemKey(collection, id),
		Collection: collection,
		SourceID:   sourceID,
		ID:         id,
		Document:   chunk.Content,
		Vector:     vector,
		Metadata:   storage.StampSource(chunk, sourceID).Map(),
	}
}
