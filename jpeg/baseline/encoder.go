package baseline

import (
	"bytes"

	"github.com/cocosip/go-raster-codec/jpeg/common"
)

// jfifHeader is the APP0 payload: JFIF 1.01, no units, 1:1 density, no thumbnail
var jfifHeader = []byte{'J', 'F', 'I', 'F', 0, 1, 1, 0, 0, 1, 0, 1, 0, 0}

// Encoder represents a JPEG Baseline encoder
type Encoder struct {
	params *Parameters

	qtables  [2][64]int32
	dcTables [2]*common.HuffmanTable
	acTables [2]*common.HuffmanTable
	dcCodes  [2][]common.HuffmanCode
	acCodes  [2][]common.HuffmanCode

	// Component planes, padded to whole MCUs
	planes      [3][]byte
	planeStride [3]int
	h, v        [3]int // sampling factors
	mcuCols     int
	mcuRows     int
}

// Encode encodes tightly packed pixel data to JPEG Baseline format
// components: 1 for grayscale, 3 for RGB
// quality: 1-100, where 100 is best quality
func Encode(pixelData []byte, width, height, components, quality int) ([]byte, error) {
	return EncodeWithParameters(pixelData, NewParameters(width, height, components).WithQuality(quality))
}

// EncodeWithParameters encodes pixel data laid out as described by p
func EncodeWithParameters(pixelData []byte, p *Parameters) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	stride := p.stride()
	if len(pixelData) < (p.Height-1)*stride+p.Width*p.Components {
		return nil, common.ErrBufferTooSmall
	}

	enc := &Encoder{params: p}
	enc.initTables()
	enc.buildPlanes(pixelData, stride)

	var buf bytes.Buffer
	buf.Grow(p.Width * p.Height * p.Components / 4)
	writer := common.NewWriter(&buf)

	if err := writer.WriteMarker(common.MarkerSOI); err != nil {
		return nil, err
	}
	if err := writer.WriteSegment(common.MarkerAPP0, jfifHeader); err != nil {
		return nil, err
	}
	for _, s := range p.Segments {
		if err := writer.WriteSegment(s.Marker, s.Data); err != nil {
			return nil, err
		}
	}
	if err := enc.writeDQT(writer); err != nil {
		return nil, err
	}
	if err := enc.writeSOF0(writer); err != nil {
		return nil, err
	}
	if err := enc.writeDHT(writer); err != nil {
		return nil, err
	}
	if p.RestartInterval > 0 {
		dri := []byte{byte(p.RestartInterval >> 8), byte(p.RestartInterval)}
		if err := writer.WriteSegment(common.MarkerDRI, dri); err != nil {
			return nil, err
		}
	}
	if err := enc.writeSOS(writer); err != nil {
		return nil, err
	}
	if err := writer.WriteMarker(common.MarkerEOI); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (enc *Encoder) initTables() {
	quality := enc.params.Quality
	enc.qtables[0] = common.ScaleQuantTable(common.DefaultLuminanceQuantTable, quality)
	enc.qtables[1] = common.ScaleQuantTable(common.DefaultChrominanceQuantTable, quality)

	enc.dcTables[0] = common.BuildStandardHuffmanTable(
		common.StandardDCLuminanceBits,
		common.StandardDCLuminanceValues,
	)
	enc.acTables[0] = common.BuildStandardHuffmanTable(
		common.StandardACLuminanceBits,
		common.StandardACLuminanceValues,
	)
	enc.dcTables[1] = common.BuildStandardHuffmanTable(
		common.StandardDCChrominanceBits,
		common.StandardDCChrominanceValues,
	)
	enc.acTables[1] = common.BuildStandardHuffmanTable(
		common.StandardACChrominanceBits,
		common.StandardACChrominanceValues,
	)

	for i := 0; i < 2; i++ {
		enc.dcCodes[i] = common.BuildHuffmanCodes(enc.dcTables[i])
		enc.acCodes[i] = common.BuildHuffmanCodes(enc.acTables[i])
	}
}

// buildPlanes converts the pixels to YCbCr planes padded to whole MCUs,
// replicating the last column and row into the padding
func (enc *Encoder) buildPlanes(pixelData []byte, stride int) {
	p := enc.params
	maxH, maxV := 1, 1
	for i := range enc.h {
		enc.h[i], enc.v[i] = 1, 1
	}
	if p.Components == 3 && p.Subsample420 {
		maxH, maxV = 2, 2
		enc.h[0], enc.v[0] = 2, 2
	}

	enc.mcuCols = common.DivCeil(p.Width, 8*maxH)
	enc.mcuRows = common.DivCeil(p.Height, 8*maxV)
	pw := enc.mcuCols * 8 * maxH
	ph := enc.mcuRows * 8 * maxV

	full := make([][]byte, p.Components)
	for c := range full {
		full[c] = make([]byte, pw*ph)
	}

	for row := 0; row < ph; row++ {
		sy := row
		if sy >= p.Height {
			sy = p.Height - 1
		}
		line := pixelData[sy*stride:]
		for col := 0; col < pw; col++ {
			sx := col
			if sx >= p.Width {
				sx = p.Width - 1
			}
			o := row*pw + col
			if p.Components == 1 {
				full[0][o] = line[sx]
				continue
			}
			r := int(line[sx*3+0])
			g := int(line[sx*3+1])
			b := int(line[sx*3+2])

			// RGB to YCbCr conversion
			yy := (19595*r + 38470*g + 7471*b + 32768) >> 16
			cbVal := (-11056*r - 21712*g + 32768*b + 8421376) >> 16
			crVal := (32768*r - 27440*g - 5328*b + 8421376) >> 16

			full[0][o] = byte(common.Clamp(yy, 0, 255))
			full[1][o] = byte(common.Clamp(cbVal, 0, 255))
			full[2][o] = byte(common.Clamp(crVal, 0, 255))
		}
	}

	for c := 0; c < p.Components; c++ {
		if enc.h[c] == maxH && enc.v[c] == maxV {
			enc.planes[c] = full[c]
			enc.planeStride[c] = pw
			continue
		}
		// 2x2 box average
		cw, ch := pw/2, ph/2
		plane := make([]byte, cw*ch)
		src := full[c]
		for y := 0; y < ch; y++ {
			for x := 0; x < cw; x++ {
				o := 2*y*pw + 2*x
				sum := int(src[o]) + int(src[o+1]) + int(src[o+pw]) + int(src[o+pw+1])
				plane[y*cw+x] = byte((sum + 2) >> 2)
			}
		}
		enc.planes[c] = plane
		enc.planeStride[c] = cw
	}
}

func tableIndex(component int) int {
	if component == 0 {
		return 0
	}
	return 1
}

// writeDQT writes Define Quantization Table segments
func (enc *Encoder) writeDQT(writer *common.Writer) error {
	numTables := 1
	if enc.params.Components == 3 {
		numTables = 2
	}

	for i := 0; i < numTables; i++ {
		data := make([]byte, 1+64)
		data[0] = byte(i) // Precision=0 (8-bit), Table ID=i

		// Write in zigzag order
		for j := 0; j < 64; j++ {
			data[1+j] = byte(enc.qtables[i][common.ZigZag[j]])
		}

		if err := writer.WriteSegment(common.MarkerDQT, data); err != nil {
			return err
		}
	}

	return nil
}

// writeSOF0 writes Start of Frame (Baseline DCT)
func (enc *Encoder) writeSOF0(writer *common.Writer) error {
	p := enc.params
	data := make([]byte, 6+p.Components*3)

	data[0] = 8 // Precision: 8 bits
	data[1] = byte(p.Height >> 8)
	data[2] = byte(p.Height)
	data[3] = byte(p.Width >> 8)
	data[4] = byte(p.Width)
	data[5] = byte(p.Components)

	for c := 0; c < p.Components; c++ {
		data[6+c*3] = byte(c + 1)                  // Component ID
		data[7+c*3] = byte(enc.h[c]<<4 | enc.v[c]) // Sampling factors
		data[8+c*3] = byte(tableIndex(c))          // Quantization table
	}

	return writer.WriteSegment(common.MarkerSOF0, data)
}

// writeDHT writes Define Huffman Table segments
func (enc *Encoder) writeDHT(writer *common.Writer) error {
	numTables := 1
	if enc.params.Components == 3 {
		numTables = 2
	}
	for i := 0; i < numTables; i++ {
		if err := common.WriteHuffmanTable(writer, 0, byte(i), enc.dcTables[i]); err != nil {
			return err
		}
		if err := common.WriteHuffmanTable(writer, 1, byte(i), enc.acTables[i]); err != nil {
			return err
		}
	}
	return nil
}

// writeSOS writes Start of Scan and scan data
func (enc *Encoder) writeSOS(writer *common.Writer) error {
	n := enc.params.Components
	data := make([]byte, 1+n*2+3)
	data[0] = byte(n)

	for c := 0; c < n; c++ {
		t := byte(tableIndex(c))
		data[1+c*2] = byte(c + 1) // Component ID
		data[2+c*2] = t<<4 | t    // DC and AC tables
	}

	// Spectral selection
	data[1+n*2] = 0  // Start of spectral selection
	data[2+n*2] = 63 // End of spectral selection
	data[3+n*2] = 0  // Successive approximation

	if err := writer.WriteSegment(common.MarkerSOS, data); err != nil {
		return err
	}

	return enc.encodeScan(writer)
}

// encodeScan encodes the interleaved MCUs
func (enc *Encoder) encodeScan(writer *common.Writer) error {
	var scanBuf bytes.Buffer
	huffEnc := common.NewHuffmanEncoder(&scanBuf)
	var dcPred [3]int
	interval := enc.params.RestartInterval
	m := 0

	for mcuY := 0; mcuY < enc.mcuRows; mcuY++ {
		for mcuX := 0; mcuX < enc.mcuCols; mcuX++ {
			if interval > 0 && m > 0 && m%interval == 0 {
				if err := huffEnc.Flush(); err != nil {
					return err
				}
				rst := (m/interval - 1) & 7
				scanBuf.Write([]byte{0xFF, byte(common.MarkerRST0&0xFF + rst)})
				dcPred = [3]int{}
			}
			m++
			for c := 0; c < enc.params.Components; c++ {
				for v := 0; v < enc.v[c]; v++ {
					for h := 0; h < enc.h[c]; h++ {
						bx := mcuX*enc.h[c] + h
						by := mcuY*enc.v[c] + v
						if err := enc.encodeBlock(huffEnc, c, bx, by, &dcPred[c]); err != nil {
							return err
						}
					}
				}
			}
		}
	}

	if err := huffEnc.Flush(); err != nil {
		return err
	}

	return writer.WriteBytes(scanBuf.Bytes())
}

// encodeBlock encodes a single 8x8 block
func (enc *Encoder) encodeBlock(huffEnc *common.HuffmanEncoder, c, blockX, blockY int, dcPred *int) error {
	stride := enc.planeStride[c]
	plane := enc.planes[c]

	var block [64]float32
	for y := 0; y < 8; y++ {
		line := plane[(blockY*8+y)*stride+blockX*8:]
		for x := 0; x < 8; x++ {
			block[y*8+x] = float32(line[x]) - 128
		}
	}

	common.DCT(&block)

	tableIdx := tableIndex(c)
	var coef [64]int32
	common.Quantize(&block, &enc.qtables[tableIdx], &coef)

	// Encode DC coefficient
	dcDiff := int(coef[0]) - *dcPred
	*dcPred = int(coef[0])

	cat, bits := common.EncodeCategory(dcDiff)
	if err := huffEnc.WriteCode(enc.dcCodes[tableIdx][cat]); err != nil {
		return err
	}
	if err := huffEnc.WriteBits(bits, cat); err != nil {
		return err
	}

	// Encode AC coefficients
	acCode := enc.acCodes[tableIdx]
	zeroRun := 0

	for k := 1; k < 64; k++ {
		val := int(coef[common.ZigZag[k]])

		if val == 0 {
			zeroRun++
			continue
		}

		// Emit any pending zero runs
		for zeroRun >= 16 {
			// ZRL: 16 zeros
			if err := huffEnc.WriteCode(acCode[0xF0]); err != nil {
				return err
			}
			zeroRun -= 16
		}

		cat, bits := common.EncodeCategory(val)
		if err := huffEnc.WriteCode(acCode[byte(zeroRun<<4|cat)]); err != nil {
			return err
		}
		if err := huffEnc.WriteBits(bits, cat); err != nil {
			return err
		}

		zeroRun = 0
	}

	// EOB if there are trailing zeros
	if zeroRun > 0 {
		if err := huffEnc.WriteCode(acCode[0x00]); err != nil {
			return err
		}
	}

	return nil
}
