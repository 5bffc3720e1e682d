package lerc1

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/cocosip/go-raster-codec/codec"
)

func encodeRaster(t *testing.T, r codec.Raster, src []byte, opts *Options) []byte {
	t.Helper()
	params := codec.NewEncodeParams(r, nil)
	if opts != nil {
		params.Options = opts
	}
	dst := make([]byte, MaxEncodedSize(r))
	n, err := NewCodec().Encode(params, src, dst)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return dst[:n]
}

func TestByteScenario(t *testing.T) {
	r := codec.Raster{Width: 100, Height: 100, Bands: 1, DataType: codec.Byte}
	src := codec.TestPattern(r)
	data := encodeRaster(t, r, src, nil)
	t.Logf("Encoded %d bytes into %d", len(src), len(data))

	if !bytes.HasPrefix(data, []byte{0x43, 0x6E, 0x74, 0x5A}) {
		t.Fatalf("Unexpected magic % x", data[:4])
	}

	peek, err := codec.Peek(data)
	if err != nil {
		t.Fatal(err)
	}
	if peek.DataType != codec.Float32 || peek.Bands != 1 || peek.Width != 100 || peek.Height != 100 {
		t.Errorf("Peek: got %+v", peek)
	}
	if peek.Format != codec.LERC || !peek.HasMax || peek.Max != 255 {
		t.Errorf("Peek format %s, max %g", peek.Format, peek.Max)
	}

	params := codec.NewParams(r)
	dst := make([]byte, r.BufferSize())
	if err := codec.Decode(params, data, dst); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dst, src) {
		t.Error("Byte raster differs after round trip")
	}
}

func TestIntegerTypesLossless(t *testing.T) {
	types := []codec.DataType{codec.Byte, codec.UInt16, codec.Int16, codec.UInt32, codec.Int32}
	for _, dt := range types {
		t.Run(dt.String(), func(t *testing.T) {
			r := codec.Raster{Width: 45, Height: 37, Bands: 1, DataType: dt}
			src := codec.TestRamp(r, 1000)
			if dt == codec.Byte {
				src = codec.TestRamp(r, 256)
			}
			data := encodeRaster(t, r, src, nil)

			dst := make([]byte, r.BufferSize())
			if err := NewCodec().Decode(codec.NewParams(r), data, dst); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(dst, src) {
				t.Error("Raster differs after round trip")
			}
		})
	}
}

func TestNoDataRoundTrip(t *testing.T) {
	r := codec.Raster{Width: 40, Height: 30, Bands: 1, DataType: codec.Int16, NoData: -9999, HasNoData: true}
	src := make([]byte, r.BufferSize())
	for i := 0; i < r.Width*r.Height; i++ {
		v := float64(i%300 - 150)
		if i%17 == 0 {
			v = r.NoData
		}
		codec.WriteSample(r.DataType, src[2*i:], v)
	}

	data := encodeRaster(t, r, src, nil)
	h, err := ReadHeader(data)
	if err != nil {
		t.Fatal(err)
	}
	if h.MaskBytes == 0 {
		t.Error("NoData pixels should produce a stored mask")
	}

	dst := make([]byte, r.BufferSize())
	if err := NewCodec().Decode(codec.NewParams(r), data, dst); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dst, src) {
		t.Error("Raster with NoData differs after round trip")
	}

	// Without a NoData value the invalid pixels read as zero
	r.HasNoData, r.NoData = false, 0
	if err := NewCodec().Decode(codec.NewParams(r), data, dst); err != nil {
		t.Fatal(err)
	}
	if v := codec.ReadSample(r.DataType, dst); v != 0 {
		t.Errorf("Invalid pixel: got %g, want 0", v)
	}
}

func TestFloatPrecision(t *testing.T) {
	r := codec.Raster{Width: 64, Height: 48, Bands: 1, DataType: codec.Float32}
	src := make([]byte, r.BufferSize())
	for i := 0; i < r.Width*r.Height; i++ {
		codec.WriteSample(r.DataType, src[4*i:], math.Cos(float64(i)/50)*1000)
	}

	for _, prec := range []float64{0, 0.01, 1} {
		data := encodeRaster(t, r, src, &Options{Precision: prec})
		dst := make([]byte, r.BufferSize())
		if err := NewCodec().Decode(codec.NewParams(r), data, dst); err != nil {
			t.Fatal(err)
		}
		worst := 0.0
		for i := 0; i < r.Width*r.Height; i++ {
			d := math.Abs(codec.ReadSample(r.DataType, dst[4*i:]) - codec.ReadSample(r.DataType, src[4*i:]))
			worst = max(worst, d)
		}
		t.Logf("Precision %g: %d bytes, worst error %g", prec, len(data), worst)
		if worst > prec+1e-3 {
			t.Errorf("Precision %g: worst error %g", prec, worst)
		}
	}
}

func TestDecodeAsOtherType(t *testing.T) {
	r := codec.Raster{Width: 20, Height: 10, Bands: 1, DataType: codec.UInt16}
	src := make([]byte, r.BufferSize())
	for i := 0; i < r.Width*r.Height; i++ {
		codec.WriteSample(r.DataType, src[2*i:], float64(i*25))
	}
	data := encodeRaster(t, r, src, nil)

	f := r
	f.DataType = codec.Float32
	dst := make([]byte, f.BufferSize())
	if err := NewCodec().Decode(codec.NewParams(f), data, dst); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < r.Width*r.Height; i++ {
		want := codec.ReadSample(r.DataType, src[2*i:])
		if got := codec.ReadSample(f.DataType, dst[4*i:]); got != want {
			t.Fatalf("Pixel %d: got %g, want %g", i, got, want)
		}
	}

	// Byte output clamps
	b := r
	b.DataType = codec.Byte
	out := make([]byte, b.BufferSize())
	if err := NewCodec().Decode(codec.NewParams(b), data, out); err != nil {
		t.Fatal(err)
	}
	if out[len(out)-1] != 255 {
		t.Errorf("Clamped pixel: got %d, want 255", out[len(out)-1])
	}
}

func TestDecodeStride(t *testing.T) {
	r := codec.Raster{Width: 13, Height: 11, Bands: 1, DataType: codec.Int32}
	src := codec.TestRamp(r, 777)
	data := encodeRaster(t, r, src, nil)

	stride := r.LineSize() + 6
	dst := bytes.Repeat([]byte{0xCD}, (r.Height-1)*stride+r.LineSize())
	params := codec.NewParams(r)
	params.LineStride = stride
	if err := NewCodec().Decode(params, data, dst); err != nil {
		t.Fatal(err)
	}
	if want := codec.Restride(r, src, stride, 0xCD); !bytes.Equal(dst, want) {
		t.Error("Strided decode differs")
	}
}

func TestEncodeStride(t *testing.T) {
	r := codec.Raster{Width: 13, Height: 11, Bands: 1, DataType: codec.Byte}
	src := codec.TestPattern(r)
	packed := encodeRaster(t, r, src, nil)

	stride := 20
	params := codec.NewEncodeParams(r, nil)
	params.LineStride = stride
	dst := make([]byte, MaxEncodedSize(r))
	n, err := NewCodec().Encode(params, codec.Restride(r, src, stride, 0), dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dst[:n], packed) {
		t.Error("Strided encode differs from the packed encode")
	}
}

func TestCodecChecks(t *testing.T) {
	r := codec.Raster{Width: 16, Height: 16, Bands: 1, DataType: codec.Byte}
	data := encodeRaster(t, r, codec.TestPattern(r), nil)

	tests := []struct {
		name   string
		raster codec.Raster
		src    []byte
		size   int
		want   error
	}{
		{"multi band", codec.Raster{Width: 16, Height: 16, Bands: 3, DataType: codec.Byte}, data, 768, codec.ErrInvalidParameter},
		{"float64", codec.Raster{Width: 16, Height: 16, Bands: 1, DataType: codec.Float64}, data, 2048, codec.ErrUnsupportedType},
		{"wrong size", codec.Raster{Width: 16, Height: 8, Bands: 1, DataType: codec.Byte}, data, 256, codec.ErrShapeMismatch},
		{"small buffer", r, data, 255, codec.ErrBufferTooSmall},
		{"short input", r, data[:MinSize-1], 256, codec.ErrCorrupt},
		{"truncated", r, data[:len(data)-1], 256, codec.ErrCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := bytes.Repeat([]byte{0x5A}, tt.size)
			err := NewCodec().Decode(codec.NewParams(tt.raster), tt.src, dst)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			for _, v := range dst {
				if v != 0x5A {
					t.Fatal("Destination written on a failed decode")
				}
			}
		})
	}
}

func TestEncodeDestinationTooSmall(t *testing.T) {
	r := codec.Raster{Width: 32, Height: 32, Bands: 1, DataType: codec.Byte}
	src := codec.TestPattern(r)
	full := encodeRaster(t, r, src, nil)

	dst := bytes.Repeat([]byte{0x33}, len(full)-1)
	_, err := NewCodec().Encode(codec.NewEncodeParams(r, nil), src, dst)
	if !errors.Is(err, codec.ErrBufferTooSmall) {
		t.Fatalf("Expected ErrBufferTooSmall, got %v", err)
	}
	for _, v := range dst {
		if v != 0x33 {
			t.Fatal("Destination written although the stream did not fit")
		}
	}

	dst = make([]byte, len(full))
	n, err := NewCodec().Encode(codec.NewEncodeParams(r, nil), src, dst)
	if err != nil || n != len(full) {
		t.Errorf("Exact size destination: %d bytes, %v", n, err)
	}
}

func TestEncodeOptions(t *testing.T) {
	r := codec.Raster{Width: 8, Height: 8, Bands: 1, DataType: codec.Byte}
	src := codec.TestPattern(r)
	dst := make([]byte, MaxEncodedSize(r))

	if _, err := NewCodec().Encode(codec.NewEncodeParams(r, &Options{Precision: -1}), src, dst); !errors.Is(err, codec.ErrInvalidParameter) {
		t.Errorf("Negative precision: expected ErrInvalidParameter, got %v", err)
	}
	if _, err := NewCodec().Encode(codec.NewEncodeParams(r, &Options{Precision: math.NaN()}), src, dst); !errors.Is(err, codec.ErrInvalidParameter) {
		t.Errorf("NaN precision: expected ErrInvalidParameter, got %v", err)
	}

	if p := DefaultOptions(r).Precision; p != 0.5 {
		t.Errorf("Byte default precision: got %g, want 0.5", p)
	}
	r.Resolution = 10
	if p := DefaultOptions(r).Precision; p != 5 {
		t.Errorf("Byte default precision at resolution 10: got %g, want 5", p)
	}
	f := codec.Raster{DataType: codec.Float32, Resolution: 0.2}
	if p := DefaultOptions(f).Precision; p != 0.1 {
		t.Errorf("Float default precision: got %g, want 0.1", p)
	}
}

func TestMaxEncodedSize(t *testing.T) {
	r := codec.Raster{Width: 50, Height: 40, Bands: 1, DataType: codec.Float32}
	src := make([]byte, r.BufferSize())
	for i := 0; i < r.Width*r.Height; i++ {
		codec.WriteSample(r.DataType, src[4*i:], float64(i)*1.37e7)
	}
	data := encodeRaster(t, r, src, &Options{Precision: 0})
	if len(data) > MaxEncodedSize(r) {
		t.Errorf("Encoded %d bytes, bound %d", len(data), MaxEncodedSize(r))
	}
}

func TestNilOptionsUseDefaults(t *testing.T) {
	r := codec.Raster{Width: 20, Height: 12, Bands: 1, DataType: codec.Float32}
	src := make([]byte, r.BufferSize())
	for i := 0; i < r.Width*r.Height; i++ {
		codec.WriteSample(r.DataType, src[4*i:], float64(i%17)*0.3)
	}
	want := encodeRaster(t, r, src, DefaultOptions(r))

	dst := make([]byte, MaxEncodedSize(r))
	n, err := codec.Encode(codec.LERC, codec.NewEncodeParams(r, (*Options)(nil)), src, dst)
	if err != nil {
		t.Fatalf("Encode with a nil *Options: %v", err)
	}
	if !bytes.Equal(dst[:n], want) {
		t.Error("Nil *Options encodes differently from the defaults")
	}
}
