package badger

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/timshannon/badgerhold/v4"
)

// Backend wraps a badgerhold store and provides low-level operations.
type Backend struct {
	store  *badgerhold.Store
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a badgerhold store at the specified path, or an
// in-memory one when inMemory is set. Creates the directory if it doesn't
// exist.
func OpenBackend(dirPath string, inMemory bool) (*Backend, error) {
	opts := badgerhold.DefaultOptions

	if inMemory {
		opts.Options = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := ensureDir(dirPath); err != nil {
			return nil, err
		}
		opts.Options = badger.DefaultOptions(dirPath)
	}

	logger := slog.Default().With("component", "badger")
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	store, err := badgerhold.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		store:  store,
		logger: logger,
	}, nil
}

func ensureDir(dirPath string) error {
	info, err := os.Stat(dirPath)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dirPath, 0755); err != nil {
			return err
		}
		info, err = os.Stat(dirPath)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dirPath)
	}
	return nil
}

// Store returns the underlying badgerhold store.
func (b *Backend) Store() *badgerhold.Store {
	return b.store
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.store.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.store.Badger().IsClosed()
}

// Update executes fn within a read-write transaction and commits it when fn
// returns nil.
func (b *Backend) Update(fn func(tx *badger.Txn) error) error {
	return b.store.Badger().Update(fn)
}

// View executes fn within a read-only transaction.
func (b *Backend) View(fn func(tx *badger.Txn) error) error {
	return b.store.Badger().View(fn)
}
