package lerc1

import (
	"encoding/binary"
	"fmt"

	"github.com/cocosip/go-raster-codec/bitmask"
)

// Mask block RLE, over the raw mask bytes.
// Each sequence starts with an int16 count. A positive count N is followed by
// N literal bytes, a negative count -N by one byte repeated N times.
const (
	maxRun   = 32767
	minRun   = 5
	endOfRLE = -32768
)

// MaskPacker serializes a mask as the LERC1 mask block
type MaskPacker struct{}

var _ bitmask.Packer = MaskPacker{}

// Pack serializes the mask
func (MaskPacker) Pack(m *bitmask.Bitmask) ([]byte, error) {
	return appendRLE(nil, m.Bytes()), nil
}

// Unpack loads the mask content from data
func (MaskPacker) Unpack(data []byte, m *bitmask.Bitmask) error {
	out := make([]byte, m.Size())
	dst := out
	for len(dst) > 0 {
		count, ok := readCount(&data)
		if !ok || count == endOfRLE {
			return fmt.Errorf("%w: mask stream ends early", ErrCorrupt)
		}
		if count < 0 {
			n := -count
			if n > len(dst) || len(data) < 1 {
				return fmt.Errorf("%w: mask run of %d overflows", ErrCorrupt, n)
			}
			fill(dst[:n], data[0])
			data = data[1:]
			dst = dst[n:]
			continue
		}
		if count > len(dst) || count > len(data) {
			return fmt.Errorf("%w: mask literal of %d overflows", ErrCorrupt, count)
		}
		copy(dst, data[:count])
		data = data[count:]
		dst = dst[count:]
	}

	if count, ok := readCount(&data); !ok || count != endOfRLE {
		return fmt.Errorf("%w: mask end marker missing", ErrCorrupt)
	}
	return m.SetBytes(out)
}

func readCount(data *[]byte) (int, bool) {
	if len(*data) < 2 {
		return 0, false
	}
	count := int(int16(binary.LittleEndian.Uint16(*data)))
	*data = (*data)[2:]
	return count, true
}

func appendCount(dst []byte, count int) []byte {
	return binary.LittleEndian.AppendUint16(dst, uint16(int16(count)))
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

// runLength returns the number of leading bytes equal to src[0], up to maxRun
func runLength(src []byte) int {
	n := 1
	for n < len(src) && n < maxRun && src[n] == src[0] {
		n++
	}
	return n
}

// appendRLE appends the RLE of src to dst
func appendRLE(dst, src []byte) []byte {
	lit := 0 // Start of the pending literal bytes
	flush := func(end int) {
		for lit < end {
			n := min(end-lit, maxRun)
			dst = appendCount(dst, n)
			dst = append(dst, src[lit:lit+n]...)
			lit += n
		}
	}

	for i := 0; i < len(src); {
		run := runLength(src[i:])
		if run < minRun {
			i++
			continue
		}
		flush(i)
		dst = appendCount(dst, -run)
		dst = append(dst, src[i])
		i += run
		lit = i
	}
	flush(len(src))

	return appendCount(dst, endOfRLE)
}
