// Package lerc1 implements the LERC1 error bounded raster compressor.
//
// A LERC1 stream holds one band of float values with a validity mask. The
// mask is stored once as a byte RLE block, the values are split into tiles
// that are each stored raw, as a constant or as bit stuffed offsets from the
// tile minimum, quantized to twice the maximum error.
package lerc1

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Stream layout constants
const (
	Signature = "CntZImage "
	Version   = 11
	Type      = 8

	// HeaderSize is the size of the fixed header before the mask part
	HeaderSize = len(Signature) + 4*4 + 8

	// PartHeaderSize is the size of the mask and data part headers
	PartHeaderSize = 16

	// MinSize is the size of the smallest stream, a fully invalid image
	MinSize = HeaderSize + 2*PartHeaderSize + 1

	// MaxDimension bounds the width and height of a stream
	MaxDimension = 20000

	// MaxTiles bounds the tile grid of the data part
	MaxTiles = 10000

	// MaxZErrorLimit bounds the error recorded in a stream
	MaxZErrorLimit = 1e12
)

// Header is the fixed part of a LERC1 stream
type Header struct {
	Width     int
	Height    int
	MaxZError float64

	MaskBytes int     // Size of the mask RLE block, 0 when the mask is constant
	MaskMax   float32 // 1 when some pixel is valid, 0 otherwise

	TilesVert int
	TilesHori int
	DataBytes int     // Size of the tile stream
	MaxValue  float32 // Largest valid value
}

// Size returns the size of the stream described by the header
func (h *Header) Size() int {
	return HeaderSize + 2*PartHeaderSize + h.MaskBytes + h.DataBytes
}

// ReadHeader validates the fixed part of a LERC1 stream against the buffer
// length. Every declared size is checked before it is trusted.
func ReadHeader(src []byte) (Header, error) {
	var h Header
	if len(src) < MinSize {
		return h, fmt.Errorf("%w: %d bytes is too short", ErrNotLerc1, len(src))
	}
	if string(src[:len(Signature)]) != Signature {
		return h, fmt.Errorf("%w: bad signature", ErrNotLerc1)
	}
	le := binary.LittleEndian
	p := src[len(Signature):]

	version, typ := le.Uint32(p), le.Uint32(p[4:])
	if version != Version || typ != Type {
		return h, fmt.Errorf("%w: version %d type %d", ErrNotLerc1, version, typ)
	}
	height, width := le.Uint32(p[8:]), le.Uint32(p[12:])
	if width == 0 || height == 0 || width > MaxDimension || height > MaxDimension {
		return h, fmt.Errorf("%w: size %dx%d", ErrNotLerc1, width, height)
	}
	h.Width, h.Height = int(width), int(height)
	h.MaxZError = math.Float64frombits(le.Uint64(p[16:]))
	if !(h.MaxZError >= 0 && h.MaxZError <= MaxZErrorLimit) {
		return h, fmt.Errorf("%w: max error %g", ErrNotLerc1, h.MaxZError)
	}
	p = p[24:]

	// The mask is always a single block
	if le.Uint32(p) != 0 || le.Uint32(p[4:]) != 0 {
		return h, fmt.Errorf("%w: tiled mask", ErrNotLerc1)
	}
	maskBytes := uint64(le.Uint32(p[8:]))
	h.MaskMax = math.Float32frombits(le.Uint32(p[12:]))
	if h.MaskMax != 0 && h.MaskMax != 1 {
		return h, fmt.Errorf("%w: mask max value %g", ErrNotLerc1, h.MaskMax)
	}
	fixed := uint64(HeaderSize + 2*PartHeaderSize)
	if fixed+maskBytes > uint64(len(src)) {
		return h, fmt.Errorf("%w: mask of %d bytes exceeds the input", ErrNotLerc1, maskBytes)
	}
	h.MaskBytes = int(maskBytes)

	p = src[HeaderSize+PartHeaderSize+h.MaskBytes:]
	vert, hori := le.Uint32(p), le.Uint32(p[4:])
	if vert == 0 || hori == 0 || vert > MaxTiles || hori > MaxTiles {
		return h, fmt.Errorf("%w: %dx%d tiles", ErrNotLerc1, vert, hori)
	}
	h.TilesVert, h.TilesHori = int(vert), int(hori)
	dataBytes := uint64(le.Uint32(p[8:]))
	if fixed+maskBytes+dataBytes > uint64(len(src)) {
		return h, fmt.Errorf("%w: data of %d bytes exceeds the input", ErrNotLerc1, dataBytes)
	}
	h.DataBytes = int(dataBytes)
	h.MaxValue = math.Float32frombits(le.Uint32(p[12:]))

	return h, nil
}

// Decode decodes a LERC1 stream
func Decode(src []byte) (*Image, Header, error) {
	h, err := ReadHeader(src)
	if err != nil {
		return nil, h, err
	}
	img := NewImage(h.Width, h.Height)

	mask := src[HeaderSize+PartHeaderSize:][:h.MaskBytes]
	if h.MaskBytes == 0 {
		img.mask.Fill(h.MaskMax != 0)
	} else if err := img.mask.Load(MaskPacker{}, mask); err != nil {
		return nil, h, err
	}

	data := src[HeaderSize+2*PartHeaderSize+h.MaskBytes:][:h.DataBytes]
	if err := img.readTiles(data, h.TilesVert, h.TilesHori, h.MaxZError, h.MaxValue); err != nil {
		return nil, h, err
	}
	return img, h, nil
}

// Plan computes the layout of the encoded image, without writing it
func (img *Image) Plan(maxZError float64) (*Plan, error) {
	if img.width <= 0 || img.height <= 0 || img.width > MaxDimension || img.height > MaxDimension {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidImage, img.width, img.height)
	}
	if !(maxZError >= 0 && maxZError <= MaxZErrorLimit) {
		return nil, fmt.Errorf("%w: max error %g", ErrInvalidImage, maxZError)
	}

	p := &Plan{img: img}
	p.Header.Width, p.Header.Height = img.width, img.height
	p.Header.MaxZError = maxZError

	invalid := img.mask.CountInvalid()
	switch invalid {
	case 0:
		p.Header.MaskMax = 1
	case img.width * img.height:
		p.Header.MaskMax = 0
	default:
		mask, err := img.mask.Store(MaskPacker{})
		if err != nil {
			return nil, err
		}
		p.mask = mask
		p.Header.MaskBytes = len(mask)
		p.Header.MaskMax = 1
	}

	t := img.findTiling(maxZError)
	p.Header.TilesVert, p.Header.TilesHori = t.vert, t.hori
	p.Header.DataBytes = t.numBytes
	p.Header.MaxValue = t.maxValue
	return p, nil
}

// Plan is an image ready for writing, with its exact encoded size known
type Plan struct {
	Header Header
	img    *Image
	mask   []byte
}

// Size returns the exact size of the encoded stream
func (p *Plan) Size() int {
	return p.Header.Size()
}

// AppendTo appends the encoded stream to dst
func (p *Plan) AppendTo(dst []byte) ([]byte, error) {
	h := &p.Header
	start := len(dst)
	le := binary.LittleEndian

	dst = append(dst, Signature...)
	dst = le.AppendUint32(dst, Version)
	dst = le.AppendUint32(dst, Type)
	dst = le.AppendUint32(dst, uint32(h.Height))
	dst = le.AppendUint32(dst, uint32(h.Width))
	dst = le.AppendUint64(dst, math.Float64bits(h.MaxZError))

	dst = le.AppendUint32(dst, 0)
	dst = le.AppendUint32(dst, 0)
	dst = le.AppendUint32(dst, uint32(h.MaskBytes))
	dst = le.AppendUint32(dst, math.Float32bits(h.MaskMax))
	dst = append(dst, p.mask...)

	dst = le.AppendUint32(dst, uint32(h.TilesVert))
	dst = le.AppendUint32(dst, uint32(h.TilesHori))
	dst = le.AppendUint32(dst, uint32(h.DataBytes))
	dst = le.AppendUint32(dst, math.Float32bits(h.MaxValue))
	dst = p.img.appendTiles(dst, h.TilesVert, h.TilesHori, h.MaxZError)

	if n := len(dst) - start; n != p.Size() {
		return dst, fmt.Errorf("%w: wrote %d bytes, planned %d", ErrSizeMismatch, n, p.Size())
	}
	return dst, nil
}

// Encode encodes the image with the given maximum error per pixel.
// A zero error stores the values exactly.
func (img *Image) Encode(maxZError float64) ([]byte, error) {
	p, err := img.Plan(maxZError)
	if err != nil {
		return nil, err
	}
	return p.AppendTo(make([]byte, 0, p.Size()))
}
