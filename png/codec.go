package png

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"

	"github.com/cocosip/go-raster-codec/codec"
)

// DefaultCompression is the default zlib level
const DefaultCompression = 6

// maxIDAT is the largest IDAT chunk written
const maxIDAT = 1 << 20

// Codec implements the codec.Codec interface for PNG
type Codec struct{}

var _ codec.Codec = (*Codec)(nil)

// NewCodec creates a new PNG codec
func NewCodec() *Codec {
	return &Codec{}
}

// Options contains encoding options for PNG
type Options struct {
	ColorType        int  // ColorGray, ColorGrayAlpha, ColorRGB or ColorRGBA
	BitDepth         int  // 8 or 16
	CompressionLevel int  // zlib level, 0 to 9
	HasTransparency  bool // Write the NoData value as the transparent color
}

// DefaultOptions returns the options matching the bands and type of a raster
func DefaultOptions(r codec.Raster) *Options {
	o := &Options{ColorType: ColorGray, BitDepth: 8, CompressionLevel: DefaultCompression}
	switch r.Bands {
	case 2:
		o.ColorType = ColorGrayAlpha
	case 3:
		o.ColorType = ColorRGB
	case 4:
		o.ColorType = ColorRGBA
	}
	if r.DataType.Size() == 2 {
		o.BitDepth = 16
	}
	return o
}

// Validate validates the options
func (o *Options) Validate() error {
	switch o.ColorType {
	case ColorGray, ColorRGB:
	case ColorGrayAlpha, ColorRGBA:
		if o.HasTransparency {
			return fmt.Errorf("%w: transparent color with an alpha channel", codec.ErrInvalidParameter)
		}
	default:
		return fmt.Errorf("%w: color type %d", codec.ErrInvalidParameter, o.ColorType)
	}
	if o.BitDepth != 8 && o.BitDepth != 16 {
		return fmt.Errorf("%w: bit depth %d", codec.ErrInvalidParameter, o.BitDepth)
	}
	if o.CompressionLevel < 0 || o.CompressionLevel > 9 {
		return fmt.Errorf("%w: compression level %d", codec.ErrInvalidParameter, o.CompressionLevel)
	}
	return nil
}

// Format returns the format this codec handles
func (c *Codec) Format() codec.Format {
	return codec.PNG
}

// Peek reads the chunks before the image data
func (c *Codec) Peek(src []byte) (codec.Raster, error) {
	h, err := ReadHeader(src)
	if err != nil {
		return codec.Raster{Format: codec.PNG}, classify(err)
	}
	return h.Raster(), nil
}

func checkType(dt codec.DataType) error {
	switch dt {
	case codec.Byte, codec.UInt16, codec.Int16:
		return nil
	}
	return fmt.Errorf("%w: %s in PNG", codec.ErrUnsupportedType, dt)
}

// Decode decodes src into dst. The raster has to match the decoded image,
// 16 bit images decode to either UInt16 or Int16.
func (c *Codec) Decode(params *codec.Params, src, dst []byte) error {
	r := params.Raster
	if err := checkType(r.DataType); err != nil {
		return err
	}
	h, idat, err := parse(src, true, params.Warn)
	if err != nil {
		return classify(err)
	}
	if h.Width != r.Width || h.Height != r.Height || h.Channels() != r.Bands {
		return fmt.Errorf("%w: wrong PNG size on input, %dx%dx%d instead of %dx%dx%d", codec.ErrShapeMismatch,
			h.Width, h.Height, h.Channels(), r.Width, r.Height, r.Bands)
	}
	if h.DataType().Size() != r.DataType.Size() {
		return fmt.Errorf("%w: %d bit PNG into %s", codec.ErrShapeMismatch, h.BitDepth, r.DataType)
	}
	if h.Interlace != 0 {
		return classify(ErrInterlaced)
	}
	stride := params.Stride()
	if err := codec.CheckBuffer(dst, r.Height, stride, r.LineSize()); err != nil {
		return err
	}

	rowBytes := h.rowBytes()
	raw, err := inflate(idat, h.Height*(1+rowBytes), params.Warn)
	if err != nil {
		return classify(err)
	}
	prev := make([]byte, rowBytes)
	bpp := h.bpp()
	for y := 0; y < h.Height; y++ {
		line := raw[y*(1+rowBytes) : (y+1)*(1+rowBytes)]
		if err := unfilter(line[0], line[1:], prev, bpp); err != nil {
			return classify(err)
		}
		prev = line[1:]
	}

	lineSize := r.LineSize()
	for y := 0; y < h.Height; y++ {
		cur := raw[y*(1+rowBytes)+1 : (y+1)*(1+rowBytes)]
		h.expand(dst[y*stride:y*stride+lineSize], cur)
	}
	return nil
}

// inflate returns the first size bytes of the zlib stream
func inflate(idat []byte, size int, warn func(string)) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(idat))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	defer zr.Close()

	raw := make([]byte, size)
	if _, err := io.ReadFull(zr, raw); err != nil {
		return nil, fmt.Errorf("%w: image data: %w", ErrCorrupt, err)
	}
	var extra [1]byte
	if n, _ := zr.Read(extra[:]); n > 0 {
		warn("Too much image data")
	}
	return raw, nil
}

// sample returns sample x of a line of packed samples, most significant bits first
func sample(line []byte, x, depth int) uint16 {
	if depth == 8 {
		return uint16(line[x])
	}
	bit := x * depth
	return uint16(line[bit/8]>>(8-depth-bit%8)) & (1<<depth - 1)
}

// expand converts an unfiltered line to the decoded pixel layout
func (h *Header) expand(out, cur []byte) {
	switch {
	case h.BitDepth == 16:
		for i := 0; i+1 < len(cur); i += 2 {
			out[i], out[i+1] = cur[i+1], cur[i]
		}
	case h.ColorType == ColorPalette:
		bands := h.Channels()
		for x := 0; x < h.Width; x++ {
			idx := int(sample(cur, x, h.BitDepth))
			o := out[x*bands : (x+1)*bands]
			copy(o, h.Palette[3*idx:3*idx+3])
			if bands == 4 {
				o[3] = h.Alpha[idx]
			}
		}
	case h.BitDepth < 8:
		for x := 0; x < h.Width; x++ {
			out[x] = byte(scaleGray(sample(cur, x, h.BitDepth), h.BitDepth))
		}
	default:
		copy(out, cur)
	}
}

// Encode encodes src into dst, which is left untouched when too small
func (c *Codec) Encode(params *codec.EncodeParams, src, dst []byte) (int, error) {
	r := params.Raster
	if err := checkType(r.DataType); err != nil {
		return 0, err
	}
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
	h := &Header{Width: r.Width, Height: r.Height, BitDepth: opts.BitDepth, ColorType: opts.ColorType}
	if h.fileChannels() != r.Bands {
		return 0, fmt.Errorf("%w: color type %d needs %d bands, raster has %d",
			codec.ErrInvalidParameter, opts.ColorType, h.fileChannels(), r.Bands)
	}
	if opts.BitDepth != 8*r.DataType.Size() {
		return 0, fmt.Errorf("%w: bit depth %d for %s", codec.ErrInvalidParameter, opts.BitDepth, r.DataType)
	}
	if opts.HasTransparency && !r.HasNoData {
		return 0, fmt.Errorf("%w: transparency needs a NoData value", codec.ErrInvalidParameter)
	}
	if r.Width > MaxDimension || r.Height > MaxDimension {
		return 0, fmt.Errorf("%w: image size %dx%d", codec.ErrInvalidParameter, r.Width, r.Height)
	}
	stride := params.Stride()
	if err := codec.CheckBuffer(src, r.Height, stride, r.LineSize()); err != nil {
		return 0, err
	}

	out, err := encode(h, r, opts, src, stride)
	if err != nil {
		return 0, err
	}
	if len(out) > len(dst) {
		return 0, fmt.Errorf("%w: output buffer overflow, need %d bytes, have %d",
			codec.ErrBufferTooSmall, len(out), len(dst))
	}
	return copy(dst, out), nil
}

var writerPools [10]sync.Pool

func getWriter(w io.Writer, level int) (*zlib.Writer, error) {
	if zw, ok := writerPools[level].Get().(*zlib.Writer); ok {
		zw.Reset(w)
		return zw, nil
	}
	return zlib.NewWriterLevel(w, level)
}

func encode(h *Header, r codec.Raster, opts *Options, src []byte, stride int) ([]byte, error) {
	out := make([]byte, 0, len(Signature)+64)
	out = append(out, Signature...)

	var ihdr [13]byte
	binary.BigEndian.PutUint32(ihdr[:], uint32(h.Width))
	binary.BigEndian.PutUint32(ihdr[4:], uint32(h.Height))
	ihdr[8], ihdr[9] = byte(h.BitDepth), byte(h.ColorType)
	out = appendChunk(out, "IHDR", ihdr[:])
	if opts.HasTransparency {
		out = appendChunk(out, "tRNS", transparent(r, h.fileChannels()))
	}

	var buf bytes.Buffer
	level := opts.CompressionLevel
	zw, err := getWriter(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", codec.ErrInvalidParameter, err)
	}

	rowBytes := h.rowBytes()
	cur, prev := make([]byte, rowBytes), make([]byte, rowBytes)
	plain := make([]byte, 1+rowBytes)
	var f *filterer
	// Stored blocks gain nothing from filtering
	if level != 0 {
		f = newFilterer(rowBytes, h.bpp())
	}
	for y := 0; y < h.Height; y++ {
		line := src[y*stride : y*stride+rowBytes]
		if h.BitDepth == 16 {
			for i := 0; i+1 < rowBytes; i += 2 {
				cur[i], cur[i+1] = line[i+1], line[i]
			}
		} else {
			copy(cur, line)
		}
		row := plain
		if f != nil {
			row = f.apply(cur, prev)
		} else {
			copy(plain[1:], cur)
		}
		if _, err := zw.Write(row); err != nil {
			return nil, fmt.Errorf("error compressing PNG: %w", err)
		}
		prev, cur = cur, prev
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("error compressing PNG: %w", err)
	}
	writerPools[level].Put(zw)

	for data := buf.Bytes(); len(data) > 0; {
		n := min(len(data), maxIDAT)
		out = appendChunk(out, "IDAT", data[:n])
		data = data[n:]
	}
	return appendChunk(out, "IEND", nil), nil
}

// transparent returns the tRNS payload holding NoData in every channel
func transparent(r codec.Raster, channels int) []byte {
	var tmp [2]byte
	codec.WriteSample(r.DataType, tmp[:], r.NoData)
	v := uint16(tmp[0])
	if r.DataType.Size() == 2 {
		v = binary.LittleEndian.Uint16(tmp[:])
	}
	out := make([]byte, 0, 2*channels)
	for range channels {
		out = binary.BigEndian.AppendUint16(out, v)
	}
	return out
}

// classify maps PNG errors to the codec error categories
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInterlaced):
		return fmt.Errorf("%w: %w", codec.ErrUnsupportedFormat, err)
	case errors.Is(err, ErrNotPNG), errors.Is(err, ErrCorrupt):
		return fmt.Errorf("%w: %w", codec.ErrCorrupt, err)
	default:
		return err
	}
}

func init() {
	codec.Register(NewCodec())
}
