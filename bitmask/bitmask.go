// Package bitmask provides a compact one bit per pixel validity mask and
// pluggable serializers for it.
//
// Bits are stored row-major, most significant bit first within a byte.
// A set bit marks a valid pixel. New masks are all valid.
package bitmask

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	// ErrCorrupt is returned when a serialized mask can't be decoded
	ErrCorrupt = errors.New("bitmask: corrupt mask stream")

	// ErrSizeMismatch is returned when raw storage doesn't match the mask size
	ErrSizeMismatch = errors.New("bitmask: size mismatch")
)

// Bitmask holds one validity bit per pixel
type Bitmask struct {
	width  int
	height int
	bits   []byte
}

// New creates a width x height mask with every pixel valid
func New(width, height int) *Bitmask {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	m := &Bitmask{
		width:  width,
		height: height,
		bits:   make([]byte, (width*height+7)/8),
	}
	m.Fill(true)
	return m
}

// Width returns the mask width in pixels
func (m *Bitmask) Width() int { return m.width }

// Height returns the mask height in pixels
func (m *Bitmask) Height() int { return m.height }

// Len returns the number of pixels
func (m *Bitmask) Len() int { return m.width * m.height }

// Size returns the raw storage size in bytes, ceil(width*height/8)
func (m *Bitmask) Size() int { return len(m.bits) }

// IsValid reports whether pixel (x, y) is valid
func (m *Bitmask) IsValid(x, y int) bool {
	return m.Get(y*m.width + x)
}

// Set marks pixel (x, y) as valid or invalid
func (m *Bitmask) Set(x, y int, valid bool) {
	m.SetAt(y*m.width+x, valid)
}

// Clear marks pixel (x, y) as invalid
func (m *Bitmask) Clear(x, y int) {
	m.SetAt(y*m.width+x, false)
}

// Get reports whether the pixel at linear index k is valid
func (m *Bitmask) Get(k int) bool {
	return m.bits[k>>3]&bit(k) != 0
}

// SetAt sets the pixel at linear index k
func (m *Bitmask) SetAt(k int, valid bool) {
	if valid {
		m.bits[k>>3] |= bit(k)
	} else {
		m.bits[k>>3] &^= bit(k)
	}
}

// Fill sets every pixel to the same state
func (m *Bitmask) Fill(valid bool) {
	var v byte
	if valid {
		v = 0xFF
	}
	for i := range m.bits {
		m.bits[i] = v
	}
	m.trimTail()
}

// CountInvalid returns the number of invalid pixels
func (m *Bitmask) CountInvalid() int {
	valid := 0
	for _, b := range m.bits {
		valid += bits.OnesCount8(b)
	}
	return m.Len() - valid
}

// AllValid reports whether no pixel is invalid
func (m *Bitmask) AllValid() bool {
	return m.CountInvalid() == 0
}

// Bytes returns the raw storage, shared with the mask
func (m *Bitmask) Bytes() []byte {
	return m.bits
}

// SetBytes replaces the raw storage content with a copy of b
func (m *Bitmask) SetBytes(b []byte) error {
	if len(b) != len(m.bits) {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(b), len(m.bits))
	}
	copy(m.bits, b)
	m.trimTail()
	return nil
}

// trimTail clears the unused bits of the last byte, so they never count as valid
func (m *Bitmask) trimTail() {
	if r := m.Len() & 7; r != 0 {
		m.bits[len(m.bits)-1] &= byte(0xFF << (8 - r))
	}
}

func bit(k int) byte {
	return 0x80 >> (k & 7)
}

// Packer serializes masks
type Packer interface {
	// Pack serializes the mask
	Pack(m *Bitmask) ([]byte, error)
	// Unpack loads the mask content from data, the mask size must be already set
	Unpack(data []byte, m *Bitmask) error
}

// Store serializes the mask with packer p
func (m *Bitmask) Store(p Packer) ([]byte, error) {
	return p.Pack(m)
}

// Load replaces the mask content with data, decoded by packer p
func (m *Bitmask) Load(p Packer, data []byte) error {
	return p.Unpack(data, m)
}
