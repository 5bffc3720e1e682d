package common

import "io"

// WriteHuffmanTable writes a Huffman table to the JPEG stream
// class: 0 for DC, 1 for AC
// id: table ID (0 or 1)
func WriteHuffmanTable(writer *Writer, class byte, id byte, table *HuffmanTable) error {
	totalValues := 0
	for _, count := range table.Bits {
		totalValues += count
	}

	data := make([]byte, 1+16+totalValues)
	data[0] = (class << 4) | id

	for i := 0; i < 16; i++ {
		data[1+i] = byte(table.Bits[i])
	}
	copy(data[17:], table.Values[:totalValues])

	return writer.WriteSegment(MarkerDHT, data)
}

// HuffmanCode represents a Huffman code
type HuffmanCode struct {
	Code uint16 // The Huffman code
	Len  int    // Code length in bits
}

// BuildHuffmanCodes builds the code of every symbol of a table
func BuildHuffmanCodes(table *HuffmanTable) []HuffmanCode {
	codes := make([]HuffmanCode, 256)

	code := uint16(0)
	p := 0
	for l := 0; l < 16; l++ {
		for i := 0; i < table.Bits[l] && p < len(table.Values); i++ {
			codes[table.Values[p]] = HuffmanCode{Code: code, Len: l + 1}
			code++
			p++
		}
		code <<= 1
	}

	return codes
}

// HuffmanEncoder writes entropy coded bits with 0xFF byte stuffing
type HuffmanEncoder struct {
	w     io.Writer
	bits  uint32 // Bit buffer
	nBits int    // Number of bits in buffer
	buf   [2]byte
}

// NewHuffmanEncoder creates a new Huffman encoder
func NewHuffmanEncoder(w io.Writer) *HuffmanEncoder {
	return &HuffmanEncoder{w: w}
}

// WriteBits writes the n low bits of bits, n <= 16
func (e *HuffmanEncoder) WriteBits(bits uint32, n int) error {
	if n == 0 {
		return nil
	}

	e.bits = (e.bits << uint(n)) | (bits & ((1 << uint(n)) - 1))
	e.nBits += n

	for e.nBits >= 8 {
		if err := e.writeByte(byte(e.bits >> uint(e.nBits-8))); err != nil {
			return err
		}
		e.nBits -= 8
	}

	return nil
}

// WriteCode writes a Huffman code
func (e *HuffmanEncoder) WriteCode(c HuffmanCode) error {
	if c.Len == 0 {
		return ErrInvalidDHT
	}
	return e.WriteBits(uint32(c.Code), c.Len)
}

// writeByte writes a byte with byte stuffing
func (e *HuffmanEncoder) writeByte(b byte) error {
	e.buf[0] = b
	n := 1
	if b == 0xFF {
		e.buf[1] = 0x00
		n = 2
	}
	_, err := e.w.Write(e.buf[:n])
	return err
}

// Flush pads the last byte with 1 bits and writes it
func (e *HuffmanEncoder) Flush() error {
	if e.nBits > 0 {
		b := byte((e.bits << uint(8-e.nBits)) | ((1 << uint(8-e.nBits)) - 1))
		if err := e.writeByte(b); err != nil {
			return err
		}
	}
	e.nBits = 0
	e.bits = 0
	return nil
}

// EncodeCategory returns the magnitude category of val and its additional bits
func EncodeCategory(val int) (cat int, bits uint32) {
	if val == 0 {
		return 0, 0
	}

	absVal := val
	if absVal < 0 {
		absVal = -absVal
	}

	cat = 1
	for (1 << uint(cat)) <= absVal {
		cat++
	}

	if val > 0 {
		bits = uint32(val)
	} else {
		bits = uint32((1 << uint(cat)) + val - 1)
	}

	return cat, bits
}
