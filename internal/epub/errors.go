package epub

import "errors"

var (
	// ErrInvalid indicates the archive has no usable package document
	ErrInvalid = errors.New("epub: invalid archive")

	// ErrMissing indicates a referenced archive entry does not exist
	ErrMissing = errors.New("epub: entry not found")

	// ErrNoCover indicates no cover strategy produced an image
	ErrNoCover = errors.New("epub: no cover image")
)
