package lerc1

import "errors"

var (
	// ErrNotLerc1 is returned when a buffer fails the header checks
	ErrNotLerc1 = errors.New("not a Lerc1 tile")

	// ErrCorrupt is returned when the mask or the tile stream doesn't decode
	ErrCorrupt = errors.New("error during LERC decompression")

	// ErrInvalidImage is returned for images that can't be encoded
	ErrInvalidImage = errors.New("invalid LERC image")

	// ErrSizeMismatch is returned when the written stream differs from its computed size
	ErrSizeMismatch = errors.New("error during LERC1 compression")
)
