package codec

// TestPattern returns a packed pixel buffer for r where byte i holds i % 256
func TestPattern(r Raster) []byte {
	buf := make([]byte, r.BufferSize())
	for i := range buf {
		buf[i] = byte(i % 256)
	}
	return buf
}

// TestRamp returns a packed buffer for r where sample i holds i modulo the given period
func TestRamp(r Raster, period int) []byte {
	size := r.DataType.Size()
	n := r.Width * r.Height * r.Bands
	buf := make([]byte, n*size)
	for i := 0; i < n; i++ {
		WriteSample(r.DataType, buf[i*size:], float64(i%period))
	}
	return buf
}

// Restride copies a packed buffer into a new buffer with the given line stride,
// filling the padding with fill
func Restride(r Raster, packed []byte, stride int, fill byte) []byte {
	line := r.LineSize()
	out := make([]byte, (r.Height-1)*stride+line)
	for i := range out {
		out[i] = fill
	}
	for y := 0; y < r.Height; y++ {
		copy(out[y*stride:y*stride+line], packed[y*line:(y+1)*line])
	}
	return out
}
