package lerc1

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// Bit stuffed arrays start with a byte holding the bit width in the low 6 bits
// and the width code of the element count in the top 2 bits. The count
// follows, then the elements packed MSB first into little endian 32 bit
// words. The unused trailing bytes of the last word are not stored.

// numBytesUInt returns the byte width of the smallest unsigned type holding k
func numBytesUInt(k uint32) int {
	switch {
	case k < 1<<8:
		return 1
	case k < 1<<16:
		return 2
	default:
		return 4
	}
}

// widthCode maps a 1, 2 or 4 byte width to its 2 bit code
func widthCode(n int) byte {
	if n == 4 {
		return 0
	}
	return byte(3 - n)
}

// codeWidth maps a 2 bit code to a byte width, 0 for the invalid code
func codeWidth(code byte) int {
	switch code {
	case 0:
		return 4
	case 3:
		return 0
	default:
		return 3 - int(code)
	}
}

func appendUInt(dst []byte, k uint32, n int) []byte {
	switch n {
	case 1:
		return append(dst, byte(k))
	case 2:
		return binary.LittleEndian.AppendUint16(dst, uint16(k))
	default:
		return binary.LittleEndian.AppendUint32(dst, k)
	}
}

func readUInt(src []byte, n int) (uint32, []byte, bool) {
	if len(src) < n {
		return 0, src, false
	}
	switch n {
	case 1:
		return uint32(src[0]), src[1:], true
	case 2:
		return uint32(binary.LittleEndian.Uint16(src)), src[2:], true
	default:
		return binary.LittleEndian.Uint32(src), src[4:], true
	}
}

// tailBytes returns the number of bytes stored from the last word
func tailBytes(count, numBits int) int {
	last := (count * numBits) & 31
	if last == 0 {
		return 4
	}
	return (last + 7) >> 3
}

// stuffedSize returns the encoded size of count elements with the given maximum
func stuffedSize(count int, maxElem uint32) int {
	numBits := bits.Len32(maxElem)
	return 1 + numBytesUInt(uint32(count)) + (count*numBits+7)/8
}

// appendStuffed appends the bit stuffed form of data to dst
func appendStuffed(dst []byte, data []uint32) []byte {
	var maxElem uint32
	for _, v := range data {
		maxElem = max(maxElem, v)
	}
	numBits := bits.Len32(maxElem)
	n := numBytesUInt(uint32(len(data)))

	dst = append(dst, byte(numBits)|widthCode(n)<<6)
	dst = appendUInt(dst, uint32(len(data)), n)
	if numBits == 0 {
		return dst
	}

	words := make([]uint32, (len(data)*numBits+31)/32)
	bitPos, w := 0, 0
	for _, v := range data {
		if 32-bitPos >= numBits {
			words[w] |= v << uint(32-bitPos-numBits)
			bitPos += numBits
			if bitPos == 32 {
				bitPos = 0
				w++
			}
			continue
		}
		rest := numBits - (32 - bitPos)
		words[w] |= v >> uint(rest)
		w++
		words[w] |= v << uint(32-rest)
		bitPos = rest
	}

	last := len(words) - 1
	for _, word := range words[:last] {
		dst = binary.LittleEndian.AppendUint32(dst, word)
	}
	tail := tailBytes(len(data), numBits)
	word := words[last] >> uint(8*(4-tail))
	for k := 0; k < tail; k++ {
		dst = append(dst, byte(word>>uint(8*k)))
	}
	return dst
}

// readStuffed decodes a bit stuffed array of at most maxCount elements
func readStuffed(src []byte, maxCount int) ([]uint32, []byte, error) {
	if len(src) < 1 {
		return nil, src, fmt.Errorf("%w: bit stuffer header missing", ErrCorrupt)
	}
	hdr := src[0]
	src = src[1:]

	n := codeWidth(hdr >> 6)
	numBits := int(hdr & 63)
	if n == 0 || numBits >= 32 {
		return nil, src, fmt.Errorf("%w: bit stuffer header %02x", ErrCorrupt, hdr)
	}
	count, src, ok := readUInt(src, n)
	if !ok {
		return nil, src, fmt.Errorf("%w: bit stuffer count missing", ErrCorrupt)
	}
	if uint64(count) > uint64(maxCount) {
		return nil, src, fmt.Errorf("%w: %d elements in a tile of %d pixels", ErrCorrupt, count, maxCount)
	}

	data := make([]uint32, count)
	if numBits == 0 || count == 0 {
		return data, src, nil
	}

	numWords := (int(count)*numBits + 31) / 32
	tail := tailBytes(int(count), numBits)
	size := (numWords-1)*4 + tail
	if len(src) < size {
		return nil, src, fmt.Errorf("%w: bit stuffed data needs %d bytes, have %d", ErrCorrupt, size, len(src))
	}

	words := make([]uint32, numWords)
	for i := range words[:numWords-1] {
		words[i] = binary.LittleEndian.Uint32(src[4*i:])
	}
	var word uint32
	for k := 0; k < tail; k++ {
		word |= uint32(src[(numWords-1)*4+k]) << uint(8*k)
	}
	words[numWords-1] = word << uint(8*(4-tail))

	bitPos, w := 0, 0
	for i := range data {
		data[i] = words[w] << uint(bitPos) >> uint(32-numBits)
		if 32-bitPos >= numBits {
			bitPos += numBits
			if bitPos == 32 {
				bitPos = 0
				w++
			}
			continue
		}
		w++
		bitPos -= 32 - numBits
		data[i] |= words[w] >> uint(32-bitPos)
	}

	return data, src[size:], nil
}
