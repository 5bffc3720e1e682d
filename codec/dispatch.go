package codec

import (
	"bytes"
	"fmt"
)

// SignatureSize is the number of leading bytes used to detect the format
const SignatureSize = 4

// signatures maps the first bytes of a stream to its format
var signatures = [...]struct {
	sig    [SignatureSize]byte
	format Format
}{
	{[SignatureSize]byte{0x89, 'P', 'N', 'G'}, PNG},
	{[SignatureSize]byte{0xFF, 0xD8, 0xFF, 0xE0}, JPEG},
	{[SignatureSize]byte{0xFF, 0xD8, 0xFF, 0xE1}, JPEG},
	{[SignatureSize]byte{'C', 'n', 't', 'Z'}, LERC},
	{[SignatureSize]byte{0x80, 0x33, 0x42, 0x51}, QB3},
}

// Detect returns the format of src, UnknownFormat if not recognized
func Detect(src []byte) Format {
	if len(src) < SignatureSize {
		return UnknownFormat
	}
	for _, s := range signatures {
		if bytes.Equal(src[:SignatureSize], s.sig[:]) {
			return s.format
		}
	}
	return UnknownFormat
}

// HasSignature reports whether src starts with one of the signatures of f
func HasSignature(src []byte, f Format) bool {
	return f != UnknownFormat && Detect(src) == f
}

func route(src []byte) (Format, Codec, error) {
	if len(src) < SignatureSize {
		return UnknownFormat, nil, fmt.Errorf("%w: input buffer too small", ErrFormatUnrecognized)
	}
	f := Detect(src)
	if f == UnknownFormat {
		return f, nil, fmt.Errorf("%w: unknown signature % x", ErrFormatUnrecognized, src[:SignatureSize])
	}
	c, err := Get(f)
	if err != nil {
		return f, nil, fmt.Errorf("%w: %s", ErrCodecUnavailable, f)
	}
	return f, c, nil
}

// Peek reads the header of src and describes the raster it holds.
// The returned raster carries the detected format even when the header is unusable.
func Peek(src []byte) (Raster, error) {
	f, c, err := route(src)
	if err != nil {
		return Raster{Format: f}, wrap("peek", f, err, "")
	}
	r, err := c.Peek(src)
	r.Format = f
	return r, wrap("peek", f, err, "")
}

// Decode decodes src into dst, which is laid out as described by params.
// params.Raster.Format is set to the detected format, regardless of the decode outcome.
// params.Warning and params.Modified are cleared first, params can be reused across tiles.
func Decode(params *Params, src, dst []byte) error {
	if params == nil {
		return wrap("decode", UnknownFormat, ErrInvalidParameter, "")
	}
	params.Warning, params.Modified = "", false
	f, c, err := route(src)
	params.Raster.Format = f
	if err != nil {
		return wrap("decode", f, err, "")
	}
	return wrap("decode", f, c.Decode(params, src, dst), params.Warning)
}

// Encode encodes src as format f into dst and returns the encoded size.
// Any encodes as JPEG.
func Encode(f Format, params *EncodeParams, src, dst []byte) (int, error) {
	if f == Any {
		f = JPEG
	}
	if params == nil {
		return 0, wrap("encode", f, ErrInvalidParameter, "")
	}
	params.Warning = ""
	c, err := Get(f)
	if err != nil {
		return 0, wrap("encode", f, fmt.Errorf("%w: %s", ErrCodecUnavailable, f), "")
	}
	n, err := c.Encode(params, src, dst)
	return n, wrap("encode", f, err, params.Warning)
}
