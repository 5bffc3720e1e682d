package baseline

import (
	"bytes"
	"fmt"

	"github.com/cocosip/go-raster-codec/jpeg/common"
)

// Component represents a color component in the image
type Component struct {
	ID              byte   // Component identifier
	H               int    // Horizontal sampling factor
	V               int    // Vertical sampling factor
	Tq              int    // Quantization table selector
	width           int    // Component width in blocks, whole MCUs
	height          int    // Component height in blocks, whole MCUs
	dcTableSelector int    // DC Huffman table selector
	acTableSelector int    // AC Huffman table selector
	dcPred          int    // DC prediction value
	data            []byte // Decoded component plane, width*8 bytes per line
}

// APPHandler receives the payload of an application segment.
// A returned error aborts the decode.
type APPHandler func(marker uint16, payload []byte) error

// Decoder represents a JPEG Baseline decoder
type Decoder struct {
	data       []byte
	reader     *common.Reader
	width      int                     // Image width
	height     int                     // Image height
	precision  int                     // Sample precision (bits)
	components []*Component            // Color components
	qtables    [4][64]int32            // Quantization tables, natural order
	qdefined   [4]bool                 // Quantization tables seen
	dcTables   [4]*common.HuffmanTable // DC Huffman tables
	acTables   [4]*common.HuffmanTable // AC Huffman tables
	maxH       int                     // Largest horizontal sampling factor
	maxV       int                     // Largest vertical sampling factor
	mcuCols    int                     // MCUs per line
	mcuRows    int                     // MCU lines
	restartInt int                     // Restart interval
	transform  int                     // Adobe color transform, -1 when absent
	onAPP      APPHandler
	warning    string
	header     bool
}

// NewDecoder creates a decoder for a JPEG stream held in memory
func NewDecoder(data []byte) *Decoder {
	return &Decoder{
		data:      data,
		reader:    common.NewReader(data),
		transform: -1,
	}
}

// OnAPP installs a handler for application segments, APP0 to APP15
func (d *Decoder) OnAPP(h APPHandler) {
	d.onAPP = h
}

// Width returns the image width, valid after ReadHeader
func (d *Decoder) Width() int { return d.width }

// Height returns the image height, valid after ReadHeader
func (d *Decoder) Height() int { return d.height }

// Components returns the number of components, valid after ReadHeader
func (d *Decoder) Components() int { return len(d.components) }

// Warning returns the first recoverable problem found while decoding
func (d *Decoder) Warning() string { return d.warning }

func (d *Decoder) warn(w string) {
	if d.warning == "" {
		d.warning = w
	}
}

// Decode decodes JPEG Baseline data into tightly packed pixels
func Decode(jpegData []byte) (pixelData []byte, width, height, components int, err error) {
	d := NewDecoder(jpegData)
	if err := d.ReadHeader(); err != nil {
		return nil, 0, 0, 0, err
	}
	components = d.Components()
	pixelData = make([]byte, d.width*d.height*components)
	if err := d.DecodeInto(pixelData, components, d.width*components); err != nil {
		return nil, 0, 0, 0, err
	}
	return pixelData, d.width, d.height, components, nil
}

// ReadHeader parses the stream up to and including the frame header
func (d *Decoder) ReadHeader() error {
	if d.header {
		return nil
	}

	marker, err := d.reader.ReadMarker()
	if err != nil || marker != common.MarkerSOI {
		return common.ErrInvalidSOI
	}

	for {
		marker, err := d.nextMarker()
		if err != nil {
			return err
		}

		switch {
		case marker == common.MarkerSOF0 || marker == common.MarkerSOF1:
			if err := d.parseSOF(); err != nil {
				return err
			}
			d.header = true
			return nil

		case common.IsSOF(marker):
			kind := "lossless"
			switch {
			case common.IsArithmetic(marker):
				kind = "arithmetic coded"
			case marker == common.MarkerSOF2:
				kind = "progressive"
			}
			return fmt.Errorf("%w: %s frame (marker %04X)", common.ErrUnsupportedFormat, kind, marker)

		case marker == common.MarkerSOS || marker == common.MarkerEOI:
			return common.ErrInvalidSOF

		default:
			if err := d.parseSegment(marker); err != nil {
				return err
			}
		}
	}
}

// nextMarker reads the next marker, warning about any bytes skipped to reach it
func (d *Decoder) nextMarker() (uint16, error) {
	marker, skipped, err := d.reader.NextMarker()
	if skipped > 0 {
		d.warn(common.WarnExtraneousData)
	}
	return marker, err
}

// parseSegment handles the table and miscellaneous segments
func (d *Decoder) parseSegment(marker uint16) error {
	switch {
	case marker == common.MarkerDQT:
		return d.parseDQT()
	case marker == common.MarkerDHT:
		return d.parseDHT()
	case marker == common.MarkerDRI:
		return d.parseDRI()
	case common.IsAPP(marker):
		data, err := d.reader.ReadSegment()
		if err != nil {
			return err
		}
		if marker == common.MarkerAPP14 && len(data) >= 12 && bytes.HasPrefix(data, []byte("Adobe")) {
			d.transform = int(data[11])
		}
		if d.onAPP != nil {
			return d.onAPP(marker, data)
		}
		return nil
	case common.HasLength(marker):
		// Skip unknown markers
		_, err := d.reader.ReadSegment()
		return err
	}
	return nil
}

// parseSOF parses Start of Frame marker
func (d *Decoder) parseSOF() error {
	data, err := d.reader.ReadSegment()
	if err != nil {
		return err
	}

	if len(data) < 6 {
		return common.ErrInvalidSOF
	}

	d.precision = int(data[0])
	if d.precision != 8 {
		return fmt.Errorf("%w: precision %d (only 8-bit supported)", common.ErrUnsupportedFormat, d.precision)
	}

	d.height = int(data[1])<<8 | int(data[2])
	d.width = int(data[3])<<8 | int(data[4])
	numComponents := int(data[5])

	if d.width <= 0 || d.height <= 0 {
		return common.ErrInvalidDimensions
	}

	if numComponents != 1 && numComponents != 3 {
		return fmt.Errorf("%w: %d", common.ErrInvalidComponents, numComponents)
	}

	if len(data) < 6+numComponents*3 {
		return common.ErrInvalidSOF
	}

	// Parse component specifications
	d.maxH, d.maxV = 1, 1
	d.components = make([]*Component, numComponents)

	for i := 0; i < numComponents; i++ {
		offset := 6 + i*3
		comp := &Component{
			ID: data[offset],
			H:  int(data[offset+1] >> 4),
			V:  int(data[offset+1] & 0x0F),
			Tq: int(data[offset+2]),
		}

		if comp.H <= 0 || comp.H > 4 || comp.V <= 0 || comp.V > 4 || comp.Tq > 3 {
			return common.ErrInvalidSOF
		}
		for _, other := range d.components[:i] {
			if other.ID == comp.ID {
				return common.ErrInvalidSOF
			}
		}

		// A single component scan is not interleaved, its MCU is one block
		if numComponents == 1 {
			comp.H, comp.V = 1, 1
		}

		d.maxH = max(d.maxH, comp.H)
		d.maxV = max(d.maxV, comp.V)
		d.components[i] = comp
	}

	d.mcuCols = common.DivCeil(d.width, d.maxH*8)
	d.mcuRows = common.DivCeil(d.height, d.maxV*8)

	return nil
}

// parseDQT parses Define Quantization Table marker
func (d *Decoder) parseDQT() error {
	data, err := d.reader.ReadSegment()
	if err != nil {
		return err
	}

	offset := 0
	for offset < len(data) {
		pqTq := data[offset]
		pq := pqTq >> 4   // Precision (0=8-bit, 1=16-bit)
		tq := pqTq & 0x0F // Table ID

		if tq > 3 || pq > 1 {
			return common.ErrInvalidDQT
		}

		offset++

		// Tables are stored in zigzag order
		if pq == 0 {
			if offset+64 > len(data) {
				return common.ErrInvalidDQT
			}
			for i := 0; i < 64; i++ {
				d.qtables[tq][common.ZigZag[i]] = int32(data[offset+i])
			}
			offset += 64
		} else {
			if offset+128 > len(data) {
				return common.ErrInvalidDQT
			}
			for i := 0; i < 64; i++ {
				d.qtables[tq][common.ZigZag[i]] = int32(data[offset+i*2])<<8 | int32(data[offset+i*2+1])
			}
			offset += 128
		}
		d.qdefined[tq] = true
	}

	return nil
}

// parseDHT parses Define Huffman Table marker
func (d *Decoder) parseDHT() error {
	data, err := d.reader.ReadSegment()
	if err != nil {
		return err
	}

	offset := 0
	for offset < len(data) {
		tcTh := data[offset]
		tc := tcTh >> 4   // Table class (0=DC, 1=AC)
		th := tcTh & 0x0F // Table ID

		if th > 3 || tc > 1 {
			return common.ErrInvalidDHT
		}

		offset++

		// Read the number of codes for each length
		if offset+16 > len(data) {
			return common.ErrInvalidDHT
		}
		table := &common.HuffmanTable{}
		totalCodes := 0
		for i := 0; i < 16; i++ {
			table.Bits[i] = int(data[offset+i])
			totalCodes += table.Bits[i]
		}
		offset += 16

		// Read the symbol values
		if offset+totalCodes > len(data) {
			return common.ErrInvalidDHT
		}
		table.Values = make([]byte, totalCodes)
		copy(table.Values, data[offset:offset+totalCodes])
		offset += totalCodes

		if err := table.Build(); err != nil {
			return err
		}

		if tc == 0 {
			d.dcTables[th] = table
		} else {
			d.acTables[th] = table
		}
	}

	return nil
}

// parseDRI parses Define Restart Interval marker
func (d *Decoder) parseDRI() error {
	data, err := d.reader.ReadSegment()
	if err != nil {
		return err
	}

	if len(data) != 2 {
		return common.ErrInvalidData
	}

	d.restartInt = int(data[0])<<8 | int(data[1])
	return nil
}

// parseSOS parses Start of Scan marker, a single scan must cover all components
func (d *Decoder) parseSOS() error {
	data, err := d.reader.ReadSegment()
	if err != nil {
		return err
	}

	if len(data) < 1 {
		return common.ErrInvalidSOS
	}

	ns := int(data[0]) // Number of components in scan
	if len(data) < 1+ns*2+3 {
		return common.ErrInvalidSOS
	}
	if ns != len(d.components) {
		return fmt.Errorf("%w: scan with %d of %d components", common.ErrUnsupportedFormat, ns, len(d.components))
	}

	for i := 0; i < ns; i++ {
		cs := data[1+i*2]      // Component selector
		tdTa := data[1+i*2+1]  // DC and AC table selectors
		td := int(tdTa >> 4)   // DC table
		ta := int(tdTa & 0x0F) // AC table

		// Scan components follow frame order
		comp := d.components[i]
		if comp.ID != cs || td > 3 || ta > 3 {
			return common.ErrInvalidSOS
		}
		if d.dcTables[td] == nil || d.acTables[ta] == nil {
			return common.ErrInvalidDHT
		}
		if !d.qdefined[comp.Tq] {
			return common.ErrInvalidDQT
		}

		comp.dcTableSelector = td
		comp.acTableSelector = ta
	}

	ss, se, ahal := data[1+ns*2], data[2+ns*2], data[3+ns*2]
	if ss != 0 || se != 63 || ahal != 0 {
		return fmt.Errorf("%w: spectral selection %d-%d", common.ErrUnsupportedFormat, ss, se)
	}

	return nil
}

// DecodeInto decodes the image into dst, with bands samples per pixel and
// stride bytes between lines. A 3 component image decodes to 1 band as
// its luminance, a 1 component image decodes to 3 bands by replication.
// Nothing is written to dst unless the whole scan decodes.
func (d *Decoder) DecodeInto(dst []byte, bands, stride int) error {
	if err := d.ReadHeader(); err != nil {
		return err
	}
	if bands != 1 && bands != 3 {
		return fmt.Errorf("%w: %d bands", common.ErrInvalidComponents, bands)
	}
	if stride < d.width*bands || len(dst) < (d.height-1)*stride+d.width*bands {
		return common.ErrBufferTooSmall
	}

	// Tables and other segments up to the scan
	for {
		marker, err := d.nextMarker()
		if err != nil {
			return err
		}
		if marker == common.MarkerSOS {
			break
		}
		if marker == common.MarkerEOI || common.IsSOF(marker) {
			return common.ErrInvalidSOS
		}
		if err := d.parseSegment(marker); err != nil {
			return err
		}
	}
	if err := d.parseSOS(); err != nil {
		return err
	}

	for _, comp := range d.components {
		comp.width = d.mcuCols * comp.H
		comp.height = d.mcuRows * comp.V
		comp.data = make([]byte, comp.width*comp.height*64)
	}

	if err := d.decodeScan(); err != nil {
		return err
	}
	d.finish()

	d.convert(dst, bands, stride)
	return nil
}

// decodeScan decodes the entropy coded MCUs
func (d *Decoder) decodeScan() error {
	start := d.reader.Pos()
	br := common.NewBitReader(d.reader.Remaining())

	total := d.mcuCols * d.mcuRows
	for m := 0; m < total; m++ {
		if d.restartInt > 0 && m > 0 && m%d.restartInt == 0 {
			if !br.Restart() {
				d.warn(common.WarnBadRestart)
			}
			for _, comp := range d.components {
				comp.dcPred = 0
			}
		}

		mcuX, mcuY := m%d.mcuCols, m/d.mcuCols
		for _, comp := range d.components {
			for v := 0; v < comp.V; v++ {
				for h := 0; h < comp.H; h++ {
					if err := d.decodeBlock(br, comp, mcuX*comp.H+h, mcuY*comp.V+v); err != nil {
						return fmt.Errorf("MCU %d: %w", m, err)
					}
				}
			}
		}
	}

	if br.Overrun() {
		d.warn(common.WarnPrematureEnd)
	}
	d.reader.Seek(start + br.Finish())
	return nil
}

// finish reads the markers after the scan, up to EOI
func (d *Decoder) finish() {
	for {
		marker, err := d.nextMarker()
		if err != nil {
			d.warn(common.WarnMissingEOI)
			return
		}
		if marker == common.MarkerEOI {
			return
		}
		if marker == common.MarkerSOS || common.IsSOF(marker) {
			// Further scans are not decoded
			d.warn(common.WarnExtraneousData)
			return
		}
		if common.HasLength(marker) {
			if _, err := d.reader.ReadSegment(); err != nil {
				d.warn(common.WarnMissingEOI)
				return
			}
		}
	}
}

// decodeBlock decodes a single 8x8 block
func (d *Decoder) decodeBlock(br *common.BitReader, comp *Component, blockX, blockY int) error {
	var coef [64]int32

	// Decode DC coefficient
	s, err := br.Decode(d.dcTables[comp.dcTableSelector])
	if err != nil {
		return err
	}

	diff, err := br.ReceiveExtend(int(s))
	if err != nil {
		return err
	}

	comp.dcPred += diff
	coef[0] = int32(comp.dcPred)

	// Decode AC coefficients
	acTable := d.acTables[comp.acTableSelector]
	for k := 1; k < 64; {
		rs, err := br.Decode(acTable)
		if err != nil {
			return err
		}

		r := int(rs >> 4)   // Run length of zeros
		s := int(rs & 0x0F) // Coefficient size

		if s == 0 {
			if r != 15 {
				break // EOB
			}
			k += 16 // ZRL
			continue
		}

		k += r
		if k > 63 {
			return common.ErrInvalidData
		}

		val, err := br.ReceiveExtend(s)
		if err != nil {
			return err
		}
		coef[common.ZigZag[k]] = int32(val)
		k++
	}

	// Dequantize
	qtable := &d.qtables[comp.Tq]
	for i := 0; i < 64; i++ {
		coef[i] *= qtable[i]
	}

	stride := comp.width * 8
	common.IDCT(&coef, comp.data[blockY*8*stride+blockX*8:], stride)

	return nil
}

// convert writes the component planes to dst as interleaved pixels
func (d *Decoder) convert(dst []byte, bands, stride int) {
	comps := d.components
	rgb := len(comps) == 3 && d.transform == 0

	for y := 0; y < d.height; y++ {
		line := dst[y*stride : y*stride+d.width*bands]

		if len(comps) == 1 {
			plane := comps[0].data[y*comps[0].width*8:]
			for x := 0; x < d.width; x++ {
				for b := 0; b < bands; b++ {
					line[x*bands+b] = plane[x]
				}
			}
			continue
		}

		for x := 0; x < d.width; x++ {
			var s [3]int
			for i, comp := range comps {
				// Nearest neighbor upsampling
				sx := x * comp.H / d.maxH
				sy := y * comp.V / d.maxV
				s[i] = int(comp.data[sy*comp.width*8+sx])
			}

			var r, g, b int
			if rgb {
				r, g, b = s[0], s[1], s[2]
			} else if bands == 1 {
				line[x] = byte(s[0])
				continue
			} else {
				r, g, b = ycbcrToRGB(s[0], s[1], s[2])
			}

			if bands == 1 {
				line[x] = byte((19595*r + 38470*g + 7471*b + 32768) >> 16)
				continue
			}
			line[x*3+0] = byte(r)
			line[x*3+1] = byte(g)
			line[x*3+2] = byte(b)
		}
	}
}

// ycbcrToRGB converts YCbCr to RGB
func ycbcrToRGB(y, cb, cr int) (int, int, int) {
	cb -= 128
	cr -= 128

	r := y + (91881*cr+32768)>>16
	g := y + (-22554*cb-46802*cr+32768)>>16
	b := y + (116130*cb+32768)>>16

	return common.Clamp(r, 0, 255), common.Clamp(g, 0, 255), common.Clamp(b, 0, 255)
}
