package codec

import "strings"

// DataType is the type of a single sample
type DataType int

// Sample data types. Floating point types are kept last.
const (
	Unknown DataType = iota
	Byte
	UInt16
	Int16
	UInt32
	Int32
	Float32
	Float64
)

var dataTypeNames = [...]string{"unknown", "byte", "uint16", "int16", "uint32", "int32", "float32", "float64"}

// String returns the lower case type name
func (dt DataType) String() string {
	if dt < 0 || int(dt) >= len(dataTypeNames) {
		return dataTypeNames[0]
	}
	return dataTypeNames[dt]
}

// Size returns the size of one sample in bytes, 0 for unknown types
func (dt DataType) Size() int {
	switch dt {
	case Byte:
		return 1
	case UInt16, Int16:
		return 2
	case UInt32, Int32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

// IsFloat reports whether dt is a floating point type
func (dt DataType) IsFloat() bool {
	return dt == Float32 || dt == Float64
}

// ParseDataType returns a data type by name, Byte when the name is not known
func ParseDataType(name string) DataType {
	switch strings.ToLower(name) {
	case "uint16":
		return UInt16
	case "int16", "short":
		return Int16
	case "uint32":
		return UInt32
	case "int", "int32", "long":
		return Int32
	case "float", "float32":
		return Float32
	case "double", "float64":
		return Float64
	default:
		return Byte
	}
}

// Format identifies a compressed raster format
type Format int

// Any is the default: decodes to byte, encodes as JPEG
const (
	Any Format = iota
	JPEG
	PNG
	LERC
	QB3
	UnknownFormat
)

var formatNames = [...]string{"image/*", "image/jpeg", "image/png", "raster/lerc", "image/qb3", ""}

// String returns the mime type of the format, empty for unknown
func (f Format) String() string {
	if f < Any || f > UnknownFormat {
		return ""
	}
	return formatNames[f]
}

// ParseFormat returns a format by mime type name
func ParseFormat(name string) Format {
	for f := Any; f < UnknownFormat; f++ {
		if formatNames[f] == name {
			return f
		}
	}
	return UnknownFormat
}

// Raster describes the shape and type of a tile
type Raster struct {
	Width  int // Pixels per line
	Height int // Lines
	Bands  int // Samples per pixel

	DataType DataType

	NoData    float64
	HasNoData bool
	Min       float64
	HasMin    bool
	Max       float64
	HasMax    bool

	Resolution float64

	Format Format
}

// LineSize returns the size of a packed line in bytes
func (r Raster) LineSize() int {
	return r.Width * r.Bands * r.DataType.Size()
}

// BufferSize returns the size of a packed raster in bytes
func (r Raster) BufferSize() int {
	return r.LineSize() * r.Height
}

// SameShape reports whether two rasters have the same size, bands and data type
func (r Raster) SameShape(o Raster) bool {
	return r.Width == o.Width && r.Height == o.Height && r.Bands == o.Bands && r.DataType == o.DataType
}
