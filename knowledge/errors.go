package knowledge

import "errors"

var (
	ErrFileNotUpdatable   = errors.New("cannot update a FILE source, delete and re-upload it")
	ErrNotFound           = errors.New("knowledge source not found")
	ErrInvalidFilename    = errors.New("invalid filename")
	ErrStoreRequired      = errors.New("source store is required")
	ErrDispatcherRequired = errors.New("dispatcher is required")
)
