package png

import "errors"

var (
	// ErrNotPNG is returned when the buffer doesn't start with the PNG signature
	ErrNotPNG = errors.New("not a PNG stream")

	// ErrCorrupt is returned for malformed chunks and image data
	ErrCorrupt = errors.New("error during PNG decompression")

	// ErrInterlaced is returned when decoding an Adam7 interlaced image
	ErrInterlaced = errors.New("interlaced PNG is not supported")
)
