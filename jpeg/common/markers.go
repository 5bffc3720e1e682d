package common

// JPEG marker constants
const (
	// Start of Image
	MarkerSOI = 0xFFD8

	// End of Image
	MarkerEOI = 0xFFD9

	// Start of Frame markers
	MarkerSOF0  = 0xFFC0 // Baseline DCT
	MarkerSOF1  = 0xFFC1 // Extended Sequential DCT
	MarkerSOF2  = 0xFFC2 // Progressive DCT
	MarkerSOF3  = 0xFFC3 // Lossless (Sequential)
	MarkerSOF5  = 0xFFC5 // Differential Sequential DCT
	MarkerSOF7  = 0xFFC7 // Differential Lossless
	MarkerSOF9  = 0xFFC9 // Extended Sequential DCT, Arithmetic coding
	MarkerSOF15 = 0xFFCF // Differential Lossless, Arithmetic coding

	// Define Huffman Table
	MarkerDHT = 0xFFC4

	// Define Arithmetic Coding conditioning
	MarkerDAC = 0xFFCC

	// Define Quantization Table
	MarkerDQT = 0xFFDB

	// Define Restart Interval
	MarkerDRI = 0xFFDD

	// Start of Scan
	MarkerSOS = 0xFFDA

	// Application segments
	MarkerAPP0  = 0xFFE0 // JFIF
	MarkerAPP1  = 0xFFE1 // Exif
	MarkerAPP3  = 0xFFE3 // Zen mask
	MarkerAPP14 = 0xFFEE // Adobe
	MarkerAPP15 = 0xFFEF

	// Comment
	MarkerCOM = 0xFFFE

	// Restart markers
	MarkerRST0 = 0xFFD0
	MarkerRST7 = 0xFFD7
)

// MaxSegmentPayload is the largest payload a marker segment can carry,
// the 16 bit length field counts itself
const MaxSegmentPayload = 0xFFFF - 2

// IsSOF returns true if the marker is a Start of Frame marker
func IsSOF(marker uint16) bool {
	return marker >= MarkerSOF0 && marker <= MarkerSOF15 &&
		marker != MarkerDHT && marker != 0xFFC8 && marker != MarkerDAC
}

// IsArithmetic returns true for the arithmetic coded frame types
func IsArithmetic(marker uint16) bool {
	return IsSOF(marker) && marker >= MarkerSOF9
}

// IsRST returns true if the marker is a Restart marker
func IsRST(marker uint16) bool {
	return marker >= MarkerRST0 && marker <= MarkerRST7
}

// IsAPP returns true for the application segment markers
func IsAPP(marker uint16) bool {
	return marker >= MarkerAPP0 && marker <= MarkerAPP15
}

// HasLength returns true if the marker is followed by a length field
func HasLength(marker uint16) bool {
	// Markers without length: SOI, EOI, RSTn and TEM
	if marker == MarkerSOI || marker == MarkerEOI || marker == 0xFF01 {
		return false
	}
	return !IsRST(marker)
}
