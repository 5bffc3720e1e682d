package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrCodecNotFound is returned when a codec is not found in the registry
	ErrCodecNotFound = errors.New("codec not found")

	// ErrInvalidParameter is returned when encoding/decoding parameters are invalid
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidQuality is returned when quality parameter is invalid
	ErrInvalidQuality = errors.New("invalid quality (must be 1-100)")

	// ErrUnsupportedFormat is returned when the format is not supported
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrFormatUnrecognized is returned for an unknown signature or an input
	// too short to hold one
	ErrFormatUnrecognized = errors.New("format unrecognized")

	// ErrShapeMismatch is returned when the compressed header disagrees with
	// the expected raster
	ErrShapeMismatch = errors.New("raster shape mismatch")

	// ErrUnsupportedType is returned for a data type the codec can't handle
	ErrUnsupportedType = errors.New("unsupported data type")

	// ErrCorrupt is returned for payloads that are inconsistent or truncated
	ErrCorrupt = errors.New("corrupt payload")

	// ErrBufferTooSmall is returned when a buffer can't hold the data
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrCodecUnavailable is returned when a recognized format has no codec
	ErrCodecUnavailable = errors.New("codec not available")
)

// MaxMessageLength caps the length of an error message
const MaxMessageLength = 1024

// Error is returned by the dispatcher
type Error struct {
	Op      string // peek, decode or encode
	Format  Format
	Err     error
	Warning string // First warning from the codec, if any
}

func (e *Error) Error() string {
	msg := e.Op
	if name := e.Format.String(); name != "" {
		msg += " " + name
	}
	msg += ": " + e.Err.Error()
	if e.Warning != "" {
		msg += " (" + e.Warning + ")"
	}
	if len(msg) > MaxMessageLength {
		msg = msg[:MaxMessageLength-3] + "..."
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, f Format, err error, warning string) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Format: f, Err: err, Warning: warning}
}

// CheckBuffer verifies that buf can hold height lines of lineSize bytes, stride apart
func CheckBuffer(buf []byte, height, stride, lineSize int) error {
	if height <= 0 || lineSize <= 0 {
		return fmt.Errorf("%w: empty raster", ErrInvalidParameter)
	}
	if stride < lineSize {
		return fmt.Errorf("%w: line stride %d smaller than line size %d", ErrInvalidParameter, stride, lineSize)
	}
	if need := (height-1)*stride + lineSize; len(buf) < need {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, need, len(buf))
	}
	return nil
}
