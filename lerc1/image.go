package lerc1

import (
	"fmt"
	"math"

	"github.com/cocosip/go-raster-codec/bitmask"
	"github.com/cocosip/go-raster-codec/codec"
)

// NoDataEpsilon is the tolerance used when matching samples against the NoData value
const NoDataEpsilon = 1e-12

// Image is a single band float raster with a validity mask of the same size
type Image struct {
	width  int
	height int
	values []float32
	mask   *bitmask.Bitmask
}

// NewImage creates a zero image with every pixel valid
func NewImage(width, height int) *Image {
	return &Image{
		width:  width,
		height: height,
		values: make([]float32, width*height),
		mask:   bitmask.New(width, height),
	}
}

// Width returns the image width in pixels
func (img *Image) Width() int { return img.width }

// Height returns the image height in pixels
func (img *Image) Height() int { return img.height }

// Values returns the pixel values in row-major order, shared with the image
func (img *Image) Values() []float32 { return img.values }

// Mask returns the validity mask, shared with the image
func (img *Image) Mask() *bitmask.Bitmask { return img.mask }

// At returns the value at (x, y)
func (img *Image) At(x, y int) float32 { return img.values[y*img.width+x] }

// Set stores a valid value at (x, y)
func (img *Image) Set(x, y int, v float32) {
	img.values[y*img.width+x] = v
	img.mask.Set(x, y, true)
}

// IsValid reports whether (x, y) holds a value
func (img *Image) IsValid(x, y int) bool { return img.mask.IsValid(x, y) }

// SetValid marks (x, y) as valid or invalid
func (img *Image) SetValid(x, y int, valid bool) { img.mask.Set(x, y, valid) }

// checkType returns an error for data types LERC1 can't convert
func checkType(dt codec.DataType) error {
	switch dt {
	case codec.Byte, codec.UInt16, codec.Int16, codec.UInt32, codec.Int32, codec.Float32:
		return nil
	}
	return fmt.Errorf("%w: %s is not supported by LERC1", codec.ErrUnsupportedType, dt)
}

// FromRaster converts a single band raster into an image. Samples matching
// the NoData value, when the raster has one, and non-finite samples are invalid.
func FromRaster(r codec.Raster, src []byte, stride int) (*Image, error) {
	if err := checkType(r.DataType); err != nil {
		return nil, err
	}
	if r.Bands != 1 {
		return nil, fmt.Errorf("%w: Lerc1 multi-band is not supported", codec.ErrInvalidParameter)
	}
	if err := codec.CheckBuffer(src, r.Height, stride, r.LineSize()); err != nil {
		return nil, err
	}

	img := NewImage(r.Width, r.Height)
	size := r.DataType.Size()
	ndv := float32(r.NoData)
	for y := 0; y < r.Height; y++ {
		line := src[y*stride:]
		for x := 0; x < r.Width; x++ {
			v := float32(codec.ReadSample(r.DataType, line[x*size:]))
			img.values[y*r.Width+x] = v
			if isInf32(v) || v != v || (r.HasNoData && math.Abs(float64(ndv-v)) < NoDataEpsilon) {
				img.mask.Clear(x, y)
			}
		}
	}
	return img, nil
}

// ToRaster writes the image into dst as r.DataType, lines stride bytes apart.
// Invalid pixels receive the NoData value of r.
func (img *Image) ToRaster(r codec.Raster, dst []byte, stride int) error {
	if err := checkType(r.DataType); err != nil {
		return err
	}
	if r.Width != img.width || r.Height != img.height || r.Bands != 1 {
		return fmt.Errorf("%w: image received has the wrong size", codec.ErrShapeMismatch)
	}
	if err := codec.CheckBuffer(dst, r.Height, stride, r.LineSize()); err != nil {
		return err
	}

	size := r.DataType.Size()
	for y := 0; y < img.height; y++ {
		line := dst[y*stride:]
		for x := 0; x < img.width; x++ {
			v := r.NoData
			if img.mask.IsValid(x, y) {
				v = float64(img.values[y*img.width+x])
			}
			codec.WriteSample(r.DataType, line[x*size:], v)
		}
	}
	return nil
}

func isInf32(v float32) bool {
	return v > math.MaxFloat32 || v < -math.MaxFloat32
}
