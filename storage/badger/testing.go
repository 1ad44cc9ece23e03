package badger

// NewMemoryStore creates an in-memory vector store for testing.
// Caller must close the store when done.
func NewMemoryStore(opts ...Option) (*Store, error) {
	return openStore("", true, opts...)
}
