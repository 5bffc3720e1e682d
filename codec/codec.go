package codec

// Codec is the universal interface for all raster tile codecs
type Codec interface {
	// Format returns the format this codec handles
	Format() Format

	// Peek parses just enough of the header to describe the raster
	Peek(src []byte) (Raster, error)

	// Decode decodes src into dst, using params.Raster as the expected shape
	// and params.Stride() as the distance between lines in dst
	Decode(params *Params, src, dst []byte) error

	// Encode encodes src into dst and returns the number of bytes written
	Encode(params *EncodeParams, src, dst []byte) (int, error)
}

// Params carries the per call decode state
type Params struct {
	// Raster is the expected raster; Format is overwritten by the dispatcher
	Raster Raster

	// LineStride is the distance in bytes between the starts of two lines
	// in the pixel buffer. Zero means tightly packed lines.
	LineStride int

	// Warning holds the first warning reported by the underlying codec
	Warning string

	// Modified is set when a side channel mask altered the decoded pixels
	Modified bool
}

// NewParams creates decode parameters for the raster, with a packed line stride
func NewParams(r Raster) *Params {
	p := &Params{Raster: r}
	p.Reset()
	return p
}

// Reset recomputes the line stride, call it after modifying the raster
func (p *Params) Reset() {
	p.LineStride = p.Raster.LineSize()
	p.Warning = ""
	p.Modified = false
}

// Stride returns the effective line stride in bytes
func (p *Params) Stride() int {
	if p.LineStride == 0 {
		return p.Raster.LineSize()
	}
	return p.LineStride
}

// BufferSize returns the minimum buffer size in bytes for a strided pixel buffer
func (p *Params) BufferSize() int {
	if p.Raster.Height <= 0 {
		return 0
	}
	return (p.Raster.Height-1)*p.Stride() + p.Raster.LineSize()
}

// Warn records w as the warning, unless one is already present
func (p *Params) Warn(w string) {
	if p.Warning == "" {
		p.Warning = w
	}
}

// EncodeParams contains parameters for encoding
type EncodeParams struct {
	Params
	Options Options // Codec-specific options, nil selects the defaults
}

// NewEncodeParams creates encode parameters for the raster
func NewEncodeParams(r Raster, opts Options) *EncodeParams {
	return &EncodeParams{Params: *NewParams(r), Options: opts}
}

// Options is an interface for codec-specific encoding options
type Options interface {
	// Validate checks if the options are valid
	Validate() error
}
