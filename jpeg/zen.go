package jpeg

import (
	"bytes"
	"fmt"

	"github.com/cocosip/go-raster-codec/bitmask"
	"github.com/cocosip/go-raster-codec/codec"
	"github.com/cocosip/go-raster-codec/jpeg/common"
)

// The Zen chunk is an APP3 segment holding the validity mask of the pixels
// that were all zero before compression. Its payload is the signature
// followed by the RLE packed mask, an empty mask means every pixel is valid.

// ZenSignature starts the payload of a Zen chunk
const ZenSignature = "Zen"

// MaxZenMask is the largest packed mask that fits in a Zen chunk
const MaxZenMask = common.MaxSegmentPayload - len(ZenSignature)

// ParseZen returns the packed mask of a Zen chunk payload,
// false if the payload is not a Zen chunk
func ParseZen(payload []byte) ([]byte, bool) {
	if !bytes.HasPrefix(payload, []byte(ZenSignature)) {
		return nil, false
	}
	return payload[len(ZenSignature):], true
}

// ZeroMask builds the validity mask of a byte pixel buffer, where a pixel is
// invalid when all its bands are zero. It also returns the invalid count.
func ZeroMask(src []byte, width, height, bands, stride int) (*bitmask.Bitmask, int) {
	mask := bitmask.New(width, height)
	zeros := 0
	for y := 0; y < height; y++ {
		line := src[y*stride : y*stride+width*bands]
		for x := 0; x < width; x++ {
			if allZero(line[x*bands : (x+1)*bands]) {
				mask.Clear(x, y)
				zeros++
			}
		}
	}
	return mask, zeros
}

func allZero(px []byte) bool {
	for _, v := range px {
		if v != 0 {
			return false
		}
	}
	return true
}

// ZenChunk builds the Zen chunk payload for a byte pixel buffer.
// Without all-zero pixels the payload is just the signature.
func ZenChunk(src []byte, width, height, bands, stride int) ([]byte, error) {
	mask, zeros := ZeroMask(src, width, height, bands, stride)
	if zeros == 0 {
		return []byte(ZenSignature), nil
	}

	packed, err := mask.Store(bitmask.RLEPacker{})
	if err != nil {
		return nil, err
	}
	if len(packed) > MaxZenMask {
		return nil, fmt.Errorf("%w: zen mask of %d bytes exceeds %d", codec.ErrInvalidParameter, len(packed), MaxZenMask)
	}

	chunk := make([]byte, 0, len(ZenSignature)+len(packed))
	chunk = append(chunk, ZenSignature...)
	return append(chunk, packed...), nil
}

// LoadZen decodes the packed mask of a Zen chunk, an empty mask is all valid
func LoadZen(packed []byte, width, height int) (*bitmask.Bitmask, error) {
	mask := bitmask.New(width, height)
	if len(packed) == 0 {
		return mask, nil
	}
	if err := mask.Load(bitmask.RLEPacker{}, packed); err != nil {
		return nil, fmt.Errorf("%w: error decoding zen mask: %w", codec.ErrCorrupt, err)
	}
	return mask, nil
}

// ApplyMask zeroes every band of the invalid pixels of buf.
// It reports whether the mask has any invalid pixel.
func ApplyMask(mask *bitmask.Bitmask, buf []byte, bands, stride int) bool {
	modified := false
	for y := 0; y < mask.Height(); y++ {
		line := buf[y*stride:]
		for x := 0; x < mask.Width(); x++ {
			if mask.IsValid(x, y) {
				continue
			}
			modified = true
			clear(line[x*bands : (x+1)*bands])
		}
	}
	return modified
}
