// Package qb3 registers the QB3 format with the codec dispatcher.
//
// QB3 streams are recognized by their signature, but no QB3 compressor is
// linked in. Every operation reports codec.ErrCodecUnavailable, so callers
// can tell a QB3 tile apart from an unknown or corrupt one.
package qb3

import (
	"fmt"

	"github.com/cocosip/go-raster-codec/codec"
)

// Codec implements the codec.Codec interface for QB3
type Codec struct{}

var _ codec.Codec = (*Codec)(nil)

// NewCodec creates a new QB3 codec
func NewCodec() *Codec {
	return &Codec{}
}

// Options contains encoding options for QB3
type Options struct {
	// Mode selects the QB3 encoding mode, -1 lets the encoder pick
	Mode int
}

// DefaultOptions returns the default QB3 options
func DefaultOptions() *Options {
	return &Options{Mode: -1}
}

// Validate validates the options
func (o *Options) Validate() error {
	if o.Mode < -1 {
		return fmt.Errorf("%w: QB3 mode %d", codec.ErrInvalidParameter, o.Mode)
	}
	return nil
}

// Available reports whether QB3 streams can be decoded and encoded
func Available() bool {
	return false
}

var errUnavailable = fmt.Errorf("%w: QB3 codec not available", codec.ErrCodecUnavailable)

// Format returns the format this codec handles
func (c *Codec) Format() codec.Format {
	return codec.QB3
}

// Peek only checks the signature
func (c *Codec) Peek(src []byte) (codec.Raster, error) {
	r := codec.Raster{Format: codec.QB3}
	if !codec.HasSignature(src, codec.QB3) {
		return r, fmt.Errorf("%w: Corrupt or invalid QB3", codec.ErrCorrupt)
	}
	return r, errUnavailable
}

// Decode always fails, dst is left untouched
func (c *Codec) Decode(params *codec.Params, src, dst []byte) error {
	if !codec.HasSignature(src, codec.QB3) {
		return fmt.Errorf("%w: Corrupt or invalid QB3", codec.ErrCorrupt)
	}
	return errUnavailable
}

// Encode validates the options and fails
func (c *Codec) Encode(params *codec.EncodeParams, src, dst []byte) (int, error) {
	if params.Options != nil {
		o, ok := params.Options.(*Options)
		if !ok {
			return 0, fmt.Errorf("%w: options %T", codec.ErrInvalidParameter, params.Options)
		}
		if o != nil {
			if err := o.Validate(); err != nil {
				return 0, err
			}
		}
	}
	return 0, errUnavailable
}

func init() {
	codec.Register(NewCodec())
}
