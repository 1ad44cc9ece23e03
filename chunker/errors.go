package chunker

import "errors"

var (
	// ErrUnsupportedFileType is returned for files whose extension has no loader.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrInvalidChunkSize is returned when the chunk size is not positive.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")

	// ErrInvalidOverlap is returned when the overlap is negative or not smaller than the chunk size.
	ErrInvalidOverlap = errors.New("chunk overlap must be non-negative and smaller than chunk size")

	// ErrUnsupportedEncoding is returned by the text loader for non UTF-8 input.
	ErrUnsupportedEncoding = errors.New("unsupported text encoding")
)
