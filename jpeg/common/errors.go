package common

import "errors"

// Common errors
var (
	ErrInvalidMarker     = errors.New("invalid JPEG marker")
	ErrInvalidSOI        = errors.New("missing SOI marker")
	ErrInvalidSOF        = errors.New("invalid Start of Frame")
	ErrInvalidDHT        = errors.New("invalid Huffman table")
	ErrInvalidDQT        = errors.New("invalid Quantization table")
	ErrInvalidSOS        = errors.New("invalid Start of Scan")
	ErrUnsupportedFormat = errors.New("unsupported JPEG format")
	ErrInvalidData       = errors.New("invalid JPEG data")
	ErrUnexpectedEOF     = errors.New("unexpected end of file")
	ErrInvalidDimensions = errors.New("invalid image dimensions")
	ErrInvalidComponents = errors.New("invalid number of components")
	ErrInvalidQuality    = errors.New("invalid quality factor")
	ErrHuffmanDecode     = errors.New("Huffman decode error")
	ErrBufferTooSmall    = errors.New("buffer too small")
	ErrSegmentTooLarge   = errors.New("marker segment too large")
)

// Warnings reported by the decoder, the first one is kept
const (
	WarnPrematureEnd   = "premature end of data segment"
	WarnMissingEOI     = "premature end of JPEG file"
	WarnExtraneousData = "extraneous bytes before marker"
	WarnBadRestart     = "corrupt data: restart marker not found"
)
