package util

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the library, store and readers
var (
	// ErrUnsupported indicates a file format is not recognized
	ErrUnsupported = errors.New("unsupported format")

	// ErrNotRenderable indicates a recognized format with no reader (comic archives)
	ErrNotRenderable = fmt.Errorf("%w: no reader for this format", ErrUnsupported)

	// ErrCorrupt indicates a book file could not be parsed
	ErrCorrupt = errors.New("corrupt file")

	// ErrNotFound indicates a book or its file record is missing
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTooLarge indicates a file above the configured size limit
	ErrTooLarge = errors.New("file too large")
)
