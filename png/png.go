// Package png reads and writes PNG tiles.
//
// Decoding expands every image to 8 or 16 bit samples: palette images become
// RGB, or RGBA when the palette has transparency, and gray images of less
// than 8 bits are scaled to the full byte range. 16 bit samples are returned
// in little-endian order. Interlaced images are not supported.
package png

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/cocosip/go-raster-codec/codec"
)

// Signature is the 8 byte PNG file signature
const Signature = "\x89PNG\r\n\x1a\n"

// Color types, as defined by PNG
const (
	ColorGray      = 0
	ColorRGB       = 2
	ColorPalette   = 3
	ColorGrayAlpha = 4
	ColorRGBA      = 6
)

// MaxDimension bounds the width and height of an image
const MaxDimension = 1 << 24

// maxChunk is the largest chunk length allowed by PNG
const maxChunk = 1<<31 - 1

// Header holds the image parameters read before the image data
type Header struct {
	Width     int
	Height    int
	BitDepth  int
	ColorType int
	Interlace int

	Palette []byte // RGB triplets, padded to 256 entries
	Alpha   []byte // Palette alpha from tRNS, nil when absent

	// Transparent sample values for gray and RGB images
	Transparent    [3]uint16
	HasTransparent bool
}

// fileChannels returns the number of samples per pixel in the image data
func (h *Header) fileChannels() int {
	switch h.ColorType {
	case ColorGray, ColorPalette:
		return 1
	case ColorGrayAlpha:
		return 2
	case ColorRGB:
		return 3
	default:
		return 4
	}
}

// Channels returns the number of bands of the decoded image
func (h *Header) Channels() int {
	if h.ColorType == ColorPalette {
		if h.Alpha != nil {
			return 4
		}
		return 3
	}
	return h.fileChannels()
}

// DataType returns the sample type of the decoded image
func (h *Header) DataType() codec.DataType {
	if h.BitDepth == 16 {
		return codec.UInt16
	}
	return codec.Byte
}

// rowBytes returns the size of a filtered line, without the filter byte
func (h *Header) rowBytes() int {
	return (h.Width*h.fileChannels()*h.BitDepth + 7) / 8
}

// bpp returns the filter distance in bytes
func (h *Header) bpp() int {
	return max(1, h.fileChannels()*h.BitDepth/8)
}

// Raster describes the decoded image. A gray transparent color, or an RGB one
// with equal components, becomes the NoData value.
func (h *Header) Raster() codec.Raster {
	r := codec.Raster{
		Width:    h.Width,
		Height:   h.Height,
		Bands:    h.Channels(),
		DataType: h.DataType(),
		Format:   codec.PNG,
	}
	t := h.Transparent
	switch {
	case !h.HasTransparent:
	case h.ColorType == ColorGray:
		r.NoData, r.HasNoData = float64(scaleGray(t[0], h.BitDepth)), true
	case h.ColorType == ColorRGB && t[0] == t[1] && t[1] == t[2]:
		r.NoData, r.HasNoData = float64(t[0]), true
	}
	return r
}

// scaleGray expands a gray sample of less than 8 bits to the byte range
func scaleGray(v uint16, depth int) uint16 {
	switch depth {
	case 1:
		return v * 0xFF
	case 2:
		return v * 0x55
	case 4:
		return v * 0x11
	default:
		return v
	}
}

func validDepth(colorType, depth int) bool {
	switch colorType {
	case ColorGray:
		return depth == 1 || depth == 2 || depth == 4 || depth == 8 || depth == 16
	case ColorPalette:
		return depth == 1 || depth == 2 || depth == 4 || depth == 8
	case ColorRGB, ColorGrayAlpha, ColorRGBA:
		return depth == 8 || depth == 16
	default:
		return false
	}
}

func parseIHDR(data []byte) (*Header, error) {
	if len(data) != 13 {
		return nil, fmt.Errorf("%w: IHDR length %d", ErrCorrupt, len(data))
	}
	be := binary.BigEndian
	w, ht := be.Uint32(data), be.Uint32(data[4:])
	if w == 0 || ht == 0 || w > MaxDimension || ht > MaxDimension {
		return nil, fmt.Errorf("%w: image size %dx%d", ErrCorrupt, w, ht)
	}
	h := &Header{
		Width:     int(w),
		Height:    int(ht),
		BitDepth:  int(data[8]),
		ColorType: int(data[9]),
		Interlace: int(data[12]),
	}
	if !validDepth(h.ColorType, h.BitDepth) {
		return nil, fmt.Errorf("%w: color type %d with bit depth %d", ErrCorrupt, h.ColorType, h.BitDepth)
	}
	if data[10] != 0 || data[11] != 0 || h.Interlace > 1 {
		return nil, fmt.Errorf("%w: compression %d, filter %d, interlace %d", ErrCorrupt, data[10], data[11], h.Interlace)
	}
	return h, nil
}

func (h *Header) parsePLTE(data []byte) error {
	if h.Palette != nil {
		return fmt.Errorf("%w: duplicate PLTE", ErrCorrupt)
	}
	if len(data) == 0 || len(data)%3 != 0 || len(data) > 3*256 {
		return fmt.Errorf("%w: PLTE length %d", ErrCorrupt, len(data))
	}
	// Out of range indices read as opaque black
	h.Palette = make([]byte, 3*256)
	copy(h.Palette, data)
	return nil
}

// parseTRNS reads the transparency chunk, a problem is only a warning
func (h *Header) parseTRNS(data []byte) string {
	be := binary.BigEndian
	switch h.ColorType {
	case ColorGray:
		if len(data) != 2 {
			return "invalid tRNS length"
		}
		h.Transparent[0] = be.Uint16(data) & (1<<h.BitDepth - 1)
	case ColorRGB:
		if len(data) != 6 {
			return "invalid tRNS length"
		}
		for i := range h.Transparent {
			h.Transparent[i] = be.Uint16(data[2*i:]) & (1<<h.BitDepth - 1)
		}
	case ColorPalette:
		if h.Palette == nil {
			return "tRNS before PLTE"
		}
		if len(data) == 0 || len(data) > 256 {
			return "invalid tRNS length"
		}
		h.Alpha = make([]byte, 256)
		for i := range h.Alpha {
			h.Alpha[i] = 0xFF
		}
		copy(h.Alpha, data)
		return ""
	default:
		return "tRNS invalid with alpha channel"
	}
	h.HasTransparent = true
	return ""
}

// parse walks the chunks of src. Without data it stops at the first IDAT,
// otherwise it returns the concatenated image data. Ancillary chunk problems
// are reported to warn and skipped.
func parse(src []byte, data bool, warn func(string)) (*Header, []byte, error) {
	if len(src) < len(Signature) || string(src[:len(Signature)]) != Signature {
		return nil, nil, ErrNotPNG
	}
	var (
		h    *Header
		idat []byte
		end  bool
	)
	p := src[len(Signature):]
	for !end {
		if len(p) == 0 && idat != nil {
			warn("missing IEND")
			break
		}
		if len(p) < 12 {
			return nil, nil, fmt.Errorf("%w: truncated chunk", ErrCorrupt)
		}
		n := binary.BigEndian.Uint32(p)
		if n > maxChunk || uint64(n)+12 > uint64(len(p)) {
			return nil, nil, fmt.Errorf("%w: chunk length %d exceeds the input", ErrCorrupt, n)
		}
		typ, body := string(p[4:8]), p[8:8+n]
		sum := binary.BigEndian.Uint32(p[8+n:])
		crc := crc32.ChecksumIEEE(p[4 : 8+n])
		p = p[12+n:]

		critical := typ[0]&0x20 == 0
		if crc != sum {
			if critical {
				return nil, nil, fmt.Errorf("%w: %s CRC error", ErrCorrupt, typ)
			}
			warn(typ + ": CRC error")
			continue
		}
		if h == nil && typ != "IHDR" {
			return nil, nil, fmt.Errorf("%w: missing IHDR before %s", ErrCorrupt, typ)
		}

		var err error
		switch typ {
		case "IHDR":
			if h != nil {
				return nil, nil, fmt.Errorf("%w: duplicate IHDR", ErrCorrupt)
			}
			h, err = parseIHDR(body)
		case "PLTE":
			if h.ColorType == ColorGray || h.ColorType == ColorGrayAlpha {
				warn("PLTE in a gray image")
				break
			}
			if idat != nil {
				return nil, nil, fmt.Errorf("%w: PLTE after IDAT", ErrCorrupt)
			}
			err = h.parsePLTE(body)
		case "tRNS":
			if w := h.parseTRNS(body); w != "" {
				warn(w)
			}
		case "IDAT":
			if h.ColorType == ColorPalette && h.Palette == nil {
				return nil, nil, fmt.Errorf("%w: missing PLTE", ErrCorrupt)
			}
			if !data {
				return h, nil, nil
			}
			idat = append(idat, body...)
		case "IEND":
			end = true
		default:
			if critical {
				return nil, nil, fmt.Errorf("%w: unknown critical chunk %q", ErrCorrupt, typ)
			}
		}
		if err != nil {
			return nil, nil, err
		}
	}
	if idat == nil {
		return nil, nil, fmt.Errorf("%w: no image data", ErrCorrupt)
	}
	return h, idat, nil
}

// ReadHeader parses the chunks before the image data
func ReadHeader(src []byte) (*Header, error) {
	h, _, err := parse(src, false, func(string) {})
	return h, err
}

// appendChunk appends a chunk with its length and CRC
func appendChunk(dst []byte, typ string, data []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(data)))
	start := len(dst)
	dst = append(dst, typ...)
	dst = append(dst, data...)
	return binary.BigEndian.AppendUint32(dst, crc32.ChecksumIEEE(dst[start:]))
}
