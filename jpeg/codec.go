// Package jpeg implements the JPEG raster codec. Byte rasters with 1 or 3
// bands are stored as baseline JPEG, with a Zen chunk preserving the
// exact position of the all-zero pixels.
package jpeg

import (
	"errors"
	"fmt"

	"github.com/cocosip/go-raster-codec/codec"
	"github.com/cocosip/go-raster-codec/jpeg/baseline"
	"github.com/cocosip/go-raster-codec/jpeg/common"
)

// Codec implements the codec.Codec interface for JPEG
type Codec struct{}

var _ codec.Codec = (*Codec)(nil)

// NewCodec creates a new JPEG codec
func NewCodec() *Codec {
	return &Codec{}
}

// Options contains encoding options for JPEG
type Options struct {
	Quality      int  // 1-100
	Subsample420 bool // Half resolution chroma
}

// DefaultOptions returns the default encoding options
func DefaultOptions() *Options {
	return &Options{Quality: baseline.DefaultQuality}
}

// Validate validates the options
func (o *Options) Validate() error {
	if o.Quality < 1 || o.Quality > 100 {
		return fmt.Errorf("%w: %d", codec.ErrInvalidQuality, o.Quality)
	}
	return nil
}

// Format returns the format this codec handles
func (c *Codec) Format() codec.Format {
	return codec.JPEG
}

// Peek reads the frame header
func (c *Codec) Peek(src []byte) (codec.Raster, error) {
	d := baseline.NewDecoder(src)
	if err := guard(d.ReadHeader); err != nil {
		return codec.Raster{Format: codec.JPEG}, err
	}
	return codec.Raster{
		Width:    d.Width(),
		Height:   d.Height(),
		Bands:    d.Components(),
		DataType: codec.Byte,
		Format:   codec.JPEG,
	}, nil
}

// Decode decodes src into dst, then applies the Zen mask if the stream carries one
func (c *Codec) Decode(params *codec.Params, src, dst []byte) error {
	r := params.Raster
	if r.DataType != codec.Byte {
		return fmt.Errorf("%w: JPEG decode called with %s", codec.ErrUnsupportedType, r.DataType)
	}
	if r.Bands != 1 && r.Bands != 3 {
		return fmt.Errorf("%w: JPEG with wrong number of components %d", codec.ErrInvalidParameter, r.Bands)
	}

	var zen []byte
	hasZen := false

	d := baseline.NewDecoder(src)
	d.OnAPP(func(marker uint16, payload []byte) error {
		if marker != common.MarkerAPP3 {
			return nil
		}
		if packed, ok := ParseZen(payload); ok {
			zen, hasZen = packed, true
		}
		return nil
	})

	if err := guard(d.ReadHeader); err != nil {
		return err
	}
	if d.Width() != r.Width || d.Height() != r.Height {
		return fmt.Errorf("%w: wrong JPEG size on input, %dx%d instead of %dx%d",
			codec.ErrShapeMismatch, d.Width(), d.Height(), r.Width, r.Height)
	}

	stride := params.Stride()
	if err := codec.CheckBuffer(dst, r.Height, stride, r.LineSize()); err != nil {
		return err
	}

	err := guard(func() error { return d.DecodeInto(dst, r.Bands, stride) })
	if w := d.Warning(); w != "" {
		params.Warn(w)
	}
	if err != nil {
		return err
	}

	params.Modified = false
	if !hasZen {
		return nil
	}
	mask, err := LoadZen(zen, r.Width, r.Height)
	if err != nil {
		return err
	}
	params.Modified = ApplyMask(mask, dst, r.Bands, stride)
	return nil
}

// Encode encodes src into dst, always writing a Zen chunk
func (c *Codec) Encode(params *codec.EncodeParams, src, dst []byte) (int, error) {
	r := params.Raster
	if r.DataType != codec.Byte {
		return 0, fmt.Errorf("%w: JPEG encode called with %s", codec.ErrUnsupportedType, r.DataType)
	}
	if r.Bands != 1 && r.Bands != 3 {
		return 0, fmt.Errorf("%w: JPEG with wrong number of components %d", codec.ErrInvalidParameter, r.Bands)
	}

	opts := DefaultOptions()
	if params.Options != nil {
		o, ok := params.Options.(*Options)
		if !ok {
			return 0, fmt.Errorf("%w: options %T", codec.ErrInvalidParameter, params.Options)
		}
		// A nil *Options selects the defaults
		if o != nil {
			opts = o
		}
	}
	if err := opts.Validate(); err != nil {
		return 0, err
	}

	stride := params.Stride()
	if err := codec.CheckBuffer(src, r.Height, stride, r.LineSize()); err != nil {
		return 0, err
	}

	chunk, err := ZenChunk(src, r.Width, r.Height, r.Bands, stride)
	if err != nil {
		return 0, err
	}

	p := baseline.NewParameters(r.Width, r.Height, r.Bands).
		WithQuality(opts.Quality).
		WithSegment(common.MarkerAPP3, chunk)
	p.Stride = stride
	p.Subsample420 = opts.Subsample420

	var out []byte
	err = guard(func() error {
		var err error
		out, err = baseline.EncodeWithParameters(src, p)
		return err
	})
	if err != nil {
		return 0, err
	}

	if len(out) > len(dst) {
		return 0, fmt.Errorf("%w: encoded JPEG needs %d bytes, have %d", codec.ErrBufferTooSmall, len(out), len(dst))
	}
	return copy(dst, out), nil
}

// guard runs one call into the JPEG engine, converting its failures into
// codec errors. A panic inside the engine abandons its state and becomes an error.
func guard(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: JPEG engine failure: %v", codec.ErrCorrupt, r)
		}
	}()
	return classify(f())
}

// classify maps JPEG engine errors to the codec error categories
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrUnsupportedFormat):
		return fmt.Errorf("%w: %w", codec.ErrUnsupportedFormat, err)
	case errors.Is(err, common.ErrBufferTooSmall):
		return fmt.Errorf("%w: %w", codec.ErrBufferTooSmall, err)
	case errors.Is(err, common.ErrInvalidQuality):
		return fmt.Errorf("%w: %w", codec.ErrInvalidQuality, err)
	case errors.Is(err, common.ErrInvalidDimensions), errors.Is(err, common.ErrInvalidComponents):
		return fmt.Errorf("%w: %w", codec.ErrInvalidParameter, err)
	default:
		return fmt.Errorf("%w: %w", codec.ErrCorrupt, err)
	}
}

func init() {
	codec.Register(NewCodec())
}
