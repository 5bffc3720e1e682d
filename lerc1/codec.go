package lerc1

import (
	"errors"
	"fmt"

	"github.com/cocosip/go-raster-codec/codec"
)

// Codec implements the codec.Codec interface for LERC1
type Codec struct{}

var _ codec.Codec = (*Codec)(nil)

// NewCodec creates a new LERC1 codec
func NewCodec() *Codec {
	return &Codec{}
}

// Options contains encoding options for LERC1
type Options struct {
	// Precision is the maximum error per pixel, half of the quantization step.
	// Zero stores the values exactly.
	Precision float64
}

// DefaultOptions returns the options for a raster: half its resolution,
// at least 0.5 for integer types
func DefaultOptions(r codec.Raster) *Options {
	prec := r.Resolution / 2
	if !r.DataType.IsFloat() && prec < 0.5 {
		prec = 0.5
	}
	return &Options{Precision: prec}
}

// Validate validates the options
func (o *Options) Validate() error {
	if !(o.Precision >= 0 && o.Precision <= MaxZErrorLimit) {
		return fmt.Errorf("%w: precision %g", codec.ErrInvalidParameter, o.Precision)
	}
	return nil
}

// Format returns the format this codec handles
func (c *Codec) Format() codec.Format {
	return codec.LERC
}

// Peek reads the header. LERC1 holds float values, so the raster is
// reported as Float32 whatever type it was encoded from.
func (c *Codec) Peek(src []byte) (codec.Raster, error) {
	h, err := ReadHeader(src)
	if err != nil {
		return codec.Raster{Format: codec.LERC}, classify(err)
	}
	return codec.Raster{
		Width:    h.Width,
		Height:   h.Height,
		Bands:    1,
		DataType: codec.Float32,
		Max:      float64(h.MaxValue),
		HasMax:   true,
		Format:   codec.LERC,
	}, nil
}

// Decode decodes src into dst as params.Raster.DataType.
// Invalid pixels receive the NoData value of the raster.
func (c *Codec) Decode(params *codec.Params, src, dst []byte) error {
	r := params.Raster
	if r.Bands != 1 {
		return fmt.Errorf("%w: Lerc1 multi-band is not supported", codec.ErrInvalidParameter)
	}
	if err := checkType(r.DataType); err != nil {
		return err
	}

	h, err := ReadHeader(src)
	if err != nil {
		return classify(err)
	}
	if h.Width != r.Width || h.Height != r.Height {
		return fmt.Errorf("%w: image received has the wrong size, %dx%d instead of %dx%d",
			codec.ErrShapeMismatch, h.Width, h.Height, r.Width, r.Height)
	}
	stride := params.Stride()
	if err := codec.CheckBuffer(dst, r.Height, stride, r.LineSize()); err != nil {
		return err
	}

	img, _, err := Decode(src)
	if err != nil {
		return classify(err)
	}
	return img.ToRaster(r, dst, stride)
}

// Encode encodes src into dst. The exact encoded size is known before
// writing, dst is left untouched when it is too small.
func (c *Codec) Encode(params *codec.EncodeParams, src, dst []byte) (int, error) {
	r := params.Raster
	opts := DefaultOptions(r)
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

	img, err := FromRaster(r, src, params.Stride())
	if err != nil {
		return 0, err
	}
	p, err := img.Plan(opts.Precision)
	if err != nil {
		return 0, classify(err)
	}
	if p.Size() > len(dst) {
		return 0, fmt.Errorf("%w: output buffer overflow, need %d bytes, have %d",
			codec.ErrBufferTooSmall, p.Size(), len(dst))
	}

	out, err := p.AppendTo(dst[:0:len(dst)])
	if err != nil {
		return 0, classify(err)
	}
	return len(out), nil
}

// MaxEncodedSize returns an upper bound of the encoded size of a raster.
// The chosen tiling is never larger than the whole image as a single tile.
func MaxEncodedSize(r codec.Raster) int {
	pixels := r.Width * r.Height
	maskBytes := (pixels + 7) / 8
	maskRLE := maskBytes + 2*(maskBytes/maxRun+2)
	singleTile := 11 + 4*pixels
	return HeaderSize + 2*PartHeaderSize + maskRLE + singleTile
}

// classify maps LERC1 errors to the codec error categories
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotLerc1), errors.Is(err, ErrCorrupt):
		return fmt.Errorf("%w: %w", codec.ErrCorrupt, err)
	case errors.Is(err, ErrInvalidImage):
		return fmt.Errorf("%w: %w", codec.ErrInvalidParameter, err)
	default:
		return err
	}
}

func init() {
	codec.Register(NewCodec())
}
