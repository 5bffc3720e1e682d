package codec

import (
	"encoding/binary"
	"math"
)

// Multi-byte samples in pixel buffers are little-endian.

// ReadSample returns the sample of type dt stored at the start of b
func ReadSample(dt DataType, b []byte) float64 {
	switch dt {
	case Byte:
		return float64(b[0])
	case UInt16:
		return float64(binary.LittleEndian.Uint16(b))
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case UInt32:
		return float64(binary.LittleEndian.Uint32(b))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return 0
}

// WriteSample stores v as type dt at the start of b.
// Integer types are rounded to nearest and clamped to the type range.
func WriteSample(dt DataType, b []byte, v float64) {
	switch dt {
	case Byte:
		b[0] = uint8(clampRound(v, 0, math.MaxUint8))
	case UInt16:
		binary.LittleEndian.PutUint16(b, uint16(clampRound(v, 0, math.MaxUint16)))
	case Int16:
		binary.LittleEndian.PutUint16(b, uint16(int16(clampRound(v, math.MinInt16, math.MaxInt16))))
	case UInt32:
		binary.LittleEndian.PutUint32(b, uint32(clampRound(v, 0, math.MaxUint32)))
	case Int32:
		binary.LittleEndian.PutUint32(b, uint32(int32(clampRound(v, math.MinInt32, math.MaxInt32))))
	case Float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	case Float64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	}
}

func clampRound(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
