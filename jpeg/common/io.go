package common

import (
	"encoding/binary"
	"errors"
	"io"
)

// Reader walks the marker segments of a JPEG stream held in memory.
// Segment payloads are returned as subslices of the stream.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a new JPEG reader
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Pos returns the current offset in the stream
func (r *Reader) Pos() int { return r.pos }

// Seek moves to an absolute offset, clamped to the stream
func (r *Reader) Seek(pos int) {
	r.pos = Clamp(pos, 0, len(r.data))
}

// Remaining returns the unread part of the stream
func (r *Reader) Remaining() []byte {
	return r.data[r.pos:]
}

// ReadByte reads a single byte
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrUnexpectedEOF
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadUint16 reads a 16-bit big-endian value
func (r *Reader) ReadUint16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, ErrUnexpectedEOF
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadMarker reads the marker at the current offset
func (r *Reader) ReadMarker() (uint16, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if b != 0xFF {
		return 0, ErrInvalidMarker
	}

	// Skip any padding 0xFF bytes
	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != 0xFF {
			break
		}
	}

	// 0x00 is a stuffed byte (escaped 0xFF in data), not a marker
	if b == 0x00 {
		return 0, ErrInvalidMarker
	}

	return uint16(0xFF00) | uint16(b), nil
}

// NextMarker reads the next marker, skipping any bytes before it.
// It returns the number of bytes skipped.
func (r *Reader) NextMarker() (uint16, int, error) {
	skipped := 0
	for {
		for r.pos < len(r.data) && r.data[r.pos] != 0xFF {
			r.pos++
			skipped++
		}
		if r.pos >= len(r.data) {
			return 0, skipped, ErrUnexpectedEOF
		}
		start := r.pos
		marker, err := r.ReadMarker()
		if err == nil {
			return marker, skipped, nil
		}
		if !errors.Is(err, ErrInvalidMarker) {
			return 0, skipped, err
		}
		skipped += r.pos - start
	}
}

// ReadSegment reads a segment with its length
// Returns the segment data (without the length field)
func (r *Reader) ReadSegment() ([]byte, error) {
	length, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}

	// Length includes itself (2 bytes)
	if length < 2 {
		return nil, ErrInvalidData
	}
	n := int(length) - 2
	if r.pos+n > len(r.data) {
		return nil, ErrUnexpectedEOF
	}

	data := r.data[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return data, nil
}

// Writer provides utilities for writing JPEG data
type Writer struct {
	w   io.Writer
	buf [2]byte
}

// NewWriter creates a new JPEG writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteUint16 writes a 16-bit big-endian value
func (w *Writer) WriteUint16(v uint16) error {
	binary.BigEndian.PutUint16(w.buf[:2], v)
	_, err := w.w.Write(w.buf[:2])
	return err
}

// WriteMarker writes a JPEG marker
func (w *Writer) WriteMarker(marker uint16) error {
	return w.WriteUint16(marker)
}

// WriteSegment writes a segment with length
// The length field is automatically calculated and includes itself (2 bytes)
func (w *Writer) WriteSegment(marker uint16, data []byte) error {
	if len(data) > MaxSegmentPayload {
		return ErrSegmentTooLarge
	}
	if err := w.WriteMarker(marker); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(len(data) + 2)); err != nil {
		return err
	}
	_, err := w.w.Write(data)
	return err
}

// WriteBytes writes raw bytes
func (w *Writer) WriteBytes(data []byte) error {
	_, err := w.w.Write(data)
	return err
}
