package bitmask

import (
	"encoding/binary"
	"fmt"
)

// RLEPacker serializes a mask as bit runs.
//
// The stream is a sequence of unsigned varints holding the lengths of
// alternating runs of invalid and valid pixels, in linear pixel order. The
// first run is always an invalid run and is the only one that may be empty.
// The run lengths add up to the pixel count.
type RLEPacker struct{}

var _ Packer = RLEPacker{}

// Pack serializes the mask
func (RLEPacker) Pack(m *Bitmask) ([]byte, error) {
	n := m.Len()
	out := make([]byte, 0, 16)
	valid := false
	k := 0
	for k < n {
		run := 0
		for k < n && m.Get(k) == valid {
			run++
			k++
		}
		out = binary.AppendUvarint(out, uint64(run))
		valid = !valid
	}
	return out, nil
}

// Unpack loads the mask content from data
func (RLEPacker) Unpack(data []byte, m *Bitmask) error {
	n := m.Len()
	valid := false
	k := 0
	first := true
	for k < n {
		run, sz := binary.Uvarint(data)
		if sz <= 0 {
			return fmt.Errorf("%w: truncated run at pixel %d of %d", ErrCorrupt, k, n)
		}
		data = data[sz:]
		if run > uint64(n-k) {
			return fmt.Errorf("%w: run of %d at pixel %d overflows %d pixels", ErrCorrupt, run, k, n)
		}
		if run == 0 && !first {
			return fmt.Errorf("%w: empty run at pixel %d", ErrCorrupt, k)
		}
		setRun(m, k, int(run), valid)
		k += int(run)
		valid = !valid
		first = false
	}
	if len(data) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(data))
	}
	return nil
}

// setRun sets pixels [k, k+run) to the same state, a byte at a time where possible
func setRun(m *Bitmask, k, run int, valid bool) {
	end := k + run
	for k < end && k&7 != 0 {
		m.SetAt(k, valid)
		k++
	}
	var v byte
	if valid {
		v = 0xFF
	}
	for ; k+8 <= end; k += 8 {
		m.bits[k>>3] = v
	}
	for ; k < end; k++ {
		m.SetAt(k, valid)
	}
}
