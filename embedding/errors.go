package embedding

import "errors"

var (
	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrModelUnavailable is returned by NewEngine when the startup probe fails.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrEmbeddingFailed wraps every failure of an Embed call.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrInvalidBatchSize is returned for a batch size below 1.
	ErrInvalidBatchSize = errors.New("batch size must be positive")
)
