package lerc1

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Tile encoding modes, in the low 6 bits of the tile byte.
// The top 2 bits hold the width code of the tile minimum.
const (
	modeRaw      = 0 // valid values as float32
	modeStuffed  = 1 // minimum and bit stuffed quantized offsets
	modeZero     = 2 // no valid pixel, or all zero
	modeConstant = 3 // minimum only
)

// maxQuant is the largest quantized range stored with bit stuffing
const maxQuant = 1 << 28

// Candidate tile edges for the tiling search, smallest first
var tileEdges = [...]int{8, 11, 15, 20, 32, 64}

// tiling describes the chosen tile grid
type tiling struct {
	vert, hori int
	numBytes   int     // Size of the tile stream
	maxValue   float32 // Largest valid value
}

type tileStats struct {
	zMin, zMax float32 // Range of the finite valid values
	numValid   int
	numFinite  int
}

// tileCode is the encoding picked for one tile
type tileCode struct {
	mode byte
	zMin float32
	size int
}

// forEachTile calls fn for every tile of a vert x hori grid. The grid tiles
// have equal size, the remainder forms an extra row and column of tiles.
func (img *Image) forEachTile(vert, hori int, fn func(r0, r1, c0, c1 int) error) error {
	for i := 0; i <= vert; i++ {
		tileH := img.height / vert
		r0 := i * tileH
		if i == vert {
			tileH = img.height % vert
		}
		if tileH == 0 {
			continue
		}
		for j := 0; j <= hori; j++ {
			tileW := img.width / hori
			c0 := j * tileW
			if j == hori {
				tileW = img.width % hori
			}
			if tileW == 0 {
				continue
			}
			if err := fn(r0, r0+tileH, c0, c0+tileW); err != nil {
				return err
			}
		}
	}
	return nil
}

func (img *Image) tileStats(r0, r1, c0, c1 int) tileStats {
	var s tileStats
	for y := r0; y < r1; y++ {
		for x := c0; x < c1; x++ {
			if !img.mask.IsValid(x, y) {
				continue
			}
			s.numValid++
			v := img.values[y*img.width+x]
			if isInf32(v) || v != v {
				continue
			}
			s.numFinite++
			if s.numFinite == 1 {
				s.zMin, s.zMax = v, v
				continue
			}
			s.zMin = min(s.zMin, v)
			s.zMax = max(s.zMax, v)
		}
	}
	return s
}

// numBytesFlt returns the number of bytes needed to store z exactly: 1, 2 or 4
func numBytesFlt(z float32) int {
	if float64(z) == math.Trunc(float64(z)) {
		switch {
		case z >= math.MinInt8 && z <= math.MaxInt8:
			return 1
		case z >= math.MinInt16 && z <= math.MaxInt16:
			return 2
		}
	}
	return 4
}

func appendFlt(dst []byte, z float32, n int) []byte {
	switch n {
	case 1:
		return append(dst, byte(int8(z)))
	case 2:
		return binary.LittleEndian.AppendUint16(dst, uint16(int16(z)))
	default:
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(z))
	}
}

func readFlt(src []byte, n int) (float32, []byte, bool) {
	if len(src) < n {
		return 0, src, false
	}
	switch n {
	case 1:
		return float32(int8(src[0])), src[1:], true
	case 2:
		return float32(int16(binary.LittleEndian.Uint16(src))), src[2:], true
	default:
		return math.Float32frombits(binary.LittleEndian.Uint32(src)), src[4:], true
	}
}

// quantize returns the quantized offset of v from zMin
func quantize(v, zMin float32, maxZError float64) uint32 {
	q := (float64(v)-float64(zMin))/(2*maxZError) + 0.5
	if q < 0 {
		return 0
	}
	return uint32(q)
}

// quantCode returns the constant or bit stuffed encoding with minimum zMin
func quantCode(numValid int, zMin, zMax float32, maxZError float64) tileCode {
	c := tileCode{mode: modeConstant, zMin: zMin, size: 1 + numBytesFlt(zMin)}
	if maxElem := quantize(zMax, zMin, maxZError); maxElem > 0 {
		c.mode = modeStuffed
		c.size += stuffedSize(numValid, maxElem)
	}
	return c
}

// planTile picks the smallest encoding of a tile
func planTile(s tileStats, maxZError float64) tileCode {
	if s.numValid == 0 || (s.numFinite == s.numValid && s.zMin == 0 && s.zMax == 0) {
		return tileCode{mode: modeZero, size: 1}
	}
	if maxZError == 0 || s.numFinite != s.numValid ||
		(float64(s.zMax)-float64(s.zMin))/(2*maxZError) > maxQuant {
		return tileCode{mode: modeRaw, size: 1 + 4*s.numValid}
	}

	c := quantCode(s.numValid, s.zMin, s.zMax, maxZError)

	// Raising the minimum by almost the error bound can shorten the range
	zm := float32(float64(s.zMin) + 0.999999*maxZError)
	if zm <= s.zMax && float64(zm)-float64(s.zMin) <= maxZError {
		alt := quantCode(s.numValid, zm, s.zMax, maxZError)
		// An integer minimum may store in fewer bytes
		if fl := float32(math.Floor(float64(zm))); s.zMin < fl {
			if alti := quantCode(s.numValid, fl, s.zMax, maxZError); alti.size < alt.size {
				alt = alti
			}
		}
		if alt.size < c.size {
			c = alt
		}
	}
	return c
}

// measureTiles returns the tile stream size and the largest valid value for a grid
func (img *Image) measureTiles(vert, hori int, maxZError float64) tiling {
	t := tiling{vert: vert, hori: hori}
	found := false
	img.forEachTile(vert, hori, func(r0, r1, c0, c1 int) error {
		s := img.tileStats(r0, r1, c0, c1)
		if s.numFinite > 0 {
			if !found || s.zMax > t.maxValue {
				t.maxValue = s.zMax
			}
			found = true
		}
		t.numBytes += planTile(s, maxZError).size
		return nil
	})
	return t
}

// findTiling returns the grid with the smallest tile stream. The whole
// image as one tile is the baseline, then grids of growing tile edge
// are tried until fewer than two tiles remain.
func (img *Image) findTiling(maxZError float64) tiling {
	best := img.measureTiles(1, 1, maxZError)
	for _, edge := range tileEdges {
		vert, hori := img.height/edge, img.width/edge
		if vert*hori < 2 {
			break
		}
		if t := img.measureTiles(vert, hori, maxZError); t.numBytes < best.numBytes {
			best = t
		}
	}
	return best
}

// appendTiles appends the tile stream of a grid to dst
func (img *Image) appendTiles(dst []byte, vert, hori int, maxZError float64) []byte {
	var q []uint32
	img.forEachTile(vert, hori, func(r0, r1, c0, c1 int) error {
		c := planTile(img.tileStats(r0, r1, c0, c1), maxZError)
		switch c.mode {
		case modeZero:
			dst = append(dst, modeZero)

		case modeRaw:
			dst = append(dst, modeRaw)
			for y := r0; y < r1; y++ {
				for x := c0; x < c1; x++ {
					if img.mask.IsValid(x, y) {
						dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(img.values[y*img.width+x]))
					}
				}
			}

		default:
			n := numBytesFlt(c.zMin)
			dst = append(dst, c.mode|widthCode(n)<<6)
			dst = appendFlt(dst, c.zMin, n)
			if c.mode == modeStuffed {
				q = q[:0]
				for y := r0; y < r1; y++ {
					for x := c0; x < c1; x++ {
						if img.mask.IsValid(x, y) {
							q = append(q, quantize(img.values[y*img.width+x], c.zMin, maxZError))
						}
					}
				}
				dst = appendStuffed(dst, q)
			}
		}
		return nil
	})
	return dst
}

// readTiles decodes the tile stream of a grid into the valid pixels of the image
func (img *Image) readTiles(src []byte, vert, hori int, maxZError float64, maxValue float32) error {
	if vert <= 0 || hori <= 0 {
		return fmt.Errorf("%w: %dx%d tile grid", ErrCorrupt, vert, hori)
	}
	return img.forEachTile(vert, hori, func(r0, r1, c0, c1 int) error {
		var err error
		src, err = img.readTile(src, r0, r1, c0, c1, maxZError, maxValue)
		return err
	})
}

func (img *Image) readTile(src []byte, r0, r1, c0, c1 int, maxZError float64, maxValue float32) ([]byte, error) {
	if len(src) < 1 {
		return src, fmt.Errorf("%w: tile stream ends early", ErrCorrupt)
	}
	flag := src[0]
	src = src[1:]

	// set stores v in every valid pixel of the tile, in order
	set := func(v func() (float32, error)) error {
		for y := r0; y < r1; y++ {
			for x := c0; x < c1; x++ {
				if !img.mask.IsValid(x, y) {
					continue
				}
				z, err := v()
				if err != nil {
					return err
				}
				img.values[y*img.width+x] = z
			}
		}
		return nil
	}

	mode := flag & 63
	switch mode {
	case modeZero:
		err := set(func() (float32, error) { return 0, nil })
		return src, err

	case modeRaw:
		err := set(func() (float32, error) {
			z, rest, ok := readFlt(src, 4)
			if !ok {
				return 0, fmt.Errorf("%w: raw tile ends early", ErrCorrupt)
			}
			src = rest
			return z, nil
		})
		return src, err

	case modeStuffed, modeConstant:
		n := codeWidth(flag >> 6)
		if n == 0 {
			return src, fmt.Errorf("%w: tile flag %02x", ErrCorrupt, flag)
		}
		offset, rest, ok := readFlt(src, n)
		if !ok {
			return src, fmt.Errorf("%w: tile minimum missing", ErrCorrupt)
		}
		src = rest
		if mode == modeConstant {
			err := set(func() (float32, error) { return offset, nil })
			return src, err
		}

		data, rest, err := readStuffed(src, (r1-r0)*(c1-c0))
		if err != nil {
			return src, err
		}
		src = rest
		k := 0
		err = set(func() (float32, error) {
			if k >= len(data) {
				return 0, fmt.Errorf("%w: tile holds %d values, more are valid", ErrCorrupt, len(data))
			}
			z := float32(float64(offset) + float64(data[k])*2*maxZError)
			k++
			return min(z, maxValue), nil
		})
		return src, err

	default:
		return src, fmt.Errorf("%w: tile mode %d", ErrCorrupt, mode)
	}
}
