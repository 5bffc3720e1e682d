package baseline

import (
	"fmt"

	"github.com/cocosip/go-raster-codec/jpeg/common"
)

// DefaultQuality is the quality used when none is given
const DefaultQuality = 75

// Segment is a marker segment written by the encoder between the JFIF
// header and the frame
type Segment struct {
	Marker uint16 // APPn or COM
	Data   []byte
}

// Parameters contains parameters for JPEG Baseline compression
type Parameters struct {
	Width      int
	Height     int
	Components int // 1 for grayscale, 3 for RGB

	// Stride is the distance in bytes between lines of the pixel buffer,
	// 0 selects tightly packed lines
	Stride int

	// Quality controls the JPEG compression quality (1-100)
	// - 100: Best quality, minimal compression
	// - 85:  High quality
	// - 75:  Medium quality, good balance (default)
	// - 50:  Lower quality, higher compression
	// - 1:   Lowest quality, maximum compression
	Quality int

	// Subsample420 halves the chroma resolution in both directions.
	// The default keeps full resolution chroma (4:4:4).
	Subsample420 bool

	// RestartInterval inserts a restart marker every RestartInterval MCUs,
	// 0 disables restart markers
	RestartInterval int

	// Segments are written after the JFIF header
	Segments []Segment
}

// NewParameters creates parameters for an image, with default quality
func NewParameters(width, height, components int) *Parameters {
	return &Parameters{
		Width:      width,
		Height:     height,
		Components: components,
		Quality:    DefaultQuality,
	}
}

// Validate checks if the parameters are valid
func (p *Parameters) Validate() error {
	if p.Width <= 0 || p.Height <= 0 || p.Width > 0xFFFF || p.Height > 0xFFFF {
		return fmt.Errorf("%w: %dx%d", common.ErrInvalidDimensions, p.Width, p.Height)
	}
	if p.Components != 1 && p.Components != 3 {
		return fmt.Errorf("%w: %d", common.ErrInvalidComponents, p.Components)
	}
	if p.Quality < 1 || p.Quality > 100 {
		return fmt.Errorf("%w: %d", common.ErrInvalidQuality, p.Quality)
	}
	if p.RestartInterval < 0 || p.RestartInterval > 0xFFFF {
		return fmt.Errorf("%w: restart interval %d", common.ErrInvalidData, p.RestartInterval)
	}
	if p.Stride != 0 && p.Stride < p.Width*p.Components {
		return fmt.Errorf("%w: stride %d", common.ErrBufferTooSmall, p.Stride)
	}
	for _, s := range p.Segments {
		if !common.IsAPP(s.Marker) && s.Marker != common.MarkerCOM {
			return fmt.Errorf("%w: segment marker %04X", common.ErrInvalidMarker, s.Marker)
		}
		if len(s.Data) > common.MaxSegmentPayload {
			return fmt.Errorf("%w: %d bytes", common.ErrSegmentTooLarge, len(s.Data))
		}
	}
	return nil
}

// WithQuality sets the quality and returns the parameters for chaining
func (p *Parameters) WithQuality(quality int) *Parameters {
	p.Quality = quality
	return p
}

// WithSegment appends a marker segment and returns the parameters for chaining
func (p *Parameters) WithSegment(marker uint16, data []byte) *Parameters {
	p.Segments = append(p.Segments, Segment{Marker: marker, Data: data})
	return p
}

func (p *Parameters) stride() int {
	if p.Stride == 0 {
		return p.Width * p.Components
	}
	return p.Stride
}
