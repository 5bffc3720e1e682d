package common

// HuffmanTable represents a Huffman coding table
type HuffmanTable struct {
	// Number of codes of each length (1-16 bits)
	Bits [16]int
	// Values for each code, in order of code length
	Values []byte
	// Lookup tables for canonical decoding
	minCode [16]int32
	maxCode [16]int32
	valPtr  [16]int32
	// Lookup table for fast decoding of short codes
	lookupTable [256]int16 // value: (nbits << 8) | value, -1 if not found
}

// Build builds lookup tables for fast Huffman decoding.
// It fails when the code lengths oversubscribe the code space or
// don't match the number of values.
func (h *HuffmanTable) Build() error {
	total := 0
	for _, n := range h.Bits {
		if n < 0 {
			return ErrInvalidDHT
		}
		total += n
	}
	if total > 256 || total > len(h.Values) {
		return ErrInvalidDHT
	}

	for i := range h.lookupTable {
		h.lookupTable[i] = -1
	}

	code := int32(0)
	p := 0
	for l := 0; l < 16; l++ {
		n := h.Bits[l]
		if n == 0 {
			h.maxCode[l] = -1
			code <<= 1
			continue
		}
		if code+int32(n) > 1<<uint(l+1) {
			return ErrInvalidDHT
		}
		h.valPtr[l] = int32(p)
		h.minCode[l] = code
		for i := 0; i < n; i++ {
			if l < 8 {
				// Every 8 bit prefix starting with this code
				shift := uint(7 - l)
				base := int(code) << shift
				for j := 0; j < 1<<shift; j++ {
					h.lookupTable[base+j] = int16((l+1)<<8 | int(h.Values[p]))
				}
			}
			code++
			p++
		}
		h.maxCode[l] = code - 1
		code <<= 1
	}

	return nil
}

// BitReader reads entropy coded bits from a scan held in memory.
//
// Stuffed 0xFF00 pairs are unescaped. A marker stops the reader and from
// there on zero bits are supplied, Overrun reports whether any of them were
// consumed.
type BitReader struct {
	data    []byte
	pos     int
	acc     uint64
	nBits   int
	pad     int    // trailing zero bits of acc that come from padding
	marker  uint16 // marker that stopped the reader, 0 if none
	overrun bool
}

// NewBitReader creates a reader for the scan starting at data[0]
func NewBitReader(data []byte) *BitReader {
	return &BitReader{data: data}
}

// nextByte returns the next scan byte, false once a marker or the end is reached
func (br *BitReader) nextByte() (byte, bool) {
	if br.marker != 0 || br.pos >= len(br.data) {
		return 0, false
	}
	b := br.data[br.pos]
	if b != 0xFF {
		br.pos++
		return b, true
	}
	// Skip fill bytes
	n := br.pos + 1
	for n < len(br.data) && br.data[n] == 0xFF {
		n++
	}
	if n >= len(br.data) {
		br.pos = len(br.data)
		return 0, false
	}
	if br.data[n] == 0x00 {
		br.pos = n + 1
		return 0xFF, true
	}
	br.pos = n - 1
	br.marker = 0xFF00 | uint16(br.data[n])
	return 0, false
}

func (br *BitReader) fill() {
	for br.nBits <= 56 {
		b, ok := br.nextByte()
		br.acc = br.acc<<8 | uint64(b)
		br.nBits += 8
		if !ok {
			br.pad += 8
		}
	}
}

func (br *BitReader) consume(n int) {
	br.nBits -= n
	if br.nBits < br.pad {
		br.overrun = true
		br.pad = br.nBits
	}
}

// ReadBits reads n bits (n <= 16) as an unsigned integer
func (br *BitReader) ReadBits(n int) uint32 {
	if n == 0 {
		return 0
	}
	if br.nBits < n {
		br.fill()
	}
	v := uint32(br.acc>>uint(br.nBits-n)) & (1<<uint(n) - 1)
	br.consume(n)
	return v
}

// Decode decodes the next Huffman symbol
func (br *BitReader) Decode(table *HuffmanTable) (byte, error) {
	if br.nBits < 16 {
		br.fill()
	}

	// Fast lookup for codes up to 8 bits
	peek := uint32(br.acc>>uint(br.nBits-8)) & 0xFF
	if entry := table.lookupTable[peek]; entry >= 0 {
		br.consume(int(entry >> 8))
		return byte(entry & 0xFF), nil
	}

	for l := 8; l < 16; l++ {
		code := int32(br.acc>>uint(br.nBits-l-1)) & (1<<uint(l+1) - 1)
		if table.maxCode[l] >= 0 && code <= table.maxCode[l] {
			idx := table.valPtr[l] + code - table.minCode[l]
			if idx < 0 || int(idx) >= len(table.Values) {
				return 0, ErrHuffmanDecode
			}
			br.consume(l + 1)
			return table.Values[idx], nil
		}
	}

	return 0, ErrHuffmanDecode
}

// ReceiveExtend decodes a coefficient value
// This combines RECEIVE and EXTEND operations
func (br *BitReader) ReceiveExtend(ssss int) (int, error) {
	if ssss == 0 {
		return 0, nil
	}
	if ssss > 16 {
		return 0, ErrHuffmanDecode
	}

	val := int(br.ReadBits(ssss))
	if val < 1<<uint(ssss-1) {
		val += (-1 << uint(ssss)) + 1
	}
	return val, nil
}

// Restart discards the buffered bits and steps over the expected restart
// marker. It returns false when the next marker is not a restart marker,
// the reader then keeps supplying zero bits.
func (br *BitReader) Restart() bool {
	br.acc, br.nBits, br.pad = 0, 0, 0
	if br.marker == 0 {
		// Look for the marker past any unread data
		for br.marker == 0 && br.pos < len(br.data) {
			br.nextByte()
		}
	}
	if IsRST(br.marker) {
		br.marker = 0
		br.pos += 2
		return true
	}
	return false
}

// Finish skips the unread scan data and returns the offset of the marker
// ending the scan, or the data length when there is none
func (br *BitReader) Finish() int {
	for br.marker == 0 && br.pos < len(br.data) {
		br.nextByte()
	}
	return br.pos
}

// Overrun reports whether padding bits past the end of the scan were consumed
func (br *BitReader) Overrun() bool {
	return br.overrun
}
