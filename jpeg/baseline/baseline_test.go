package baseline

import (
	"bytes"
	"errors"
	"testing"

	"github.com/cocosip/go-raster-codec/jpeg/common"
)

func gradient(width, height, components int) []byte {
	pixelData := make([]byte, width*height*components)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			offset := (y*width + x) * components
			if components == 1 {
				pixelData[offset] = byte((x + y) % 256)
				continue
			}
			pixelData[offset+0] = byte(x * 4 % 256)       // R
			pixelData[offset+1] = byte(y * 4 % 256)       // G
			pixelData[offset+2] = byte((x + y) * 2 % 256) // B
		}
	}
	return pixelData
}

func errorStats(a, b []byte) (maxError int, mean float64) {
	total := 0
	for i := range a {
		diff := int(a[i]) - int(b[i])
		if diff < 0 {
			diff = -diff
		}
		total += diff
		if diff > maxError {
			maxError = diff
		}
	}
	return maxError, float64(total) / float64(len(a))
}

func TestEncodeDecodeGrayscale(t *testing.T) {
	width, height := 64, 64
	pixelData := gradient(width, height, 1)

	jpegData, err := Encode(pixelData, width, height, 1, 85)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	t.Logf("Encoded size: %d bytes (compression ratio: %.2fx)",
		len(jpegData), float64(len(pixelData))/float64(len(jpegData)))

	decodedData, w, h, components, err := Decode(jpegData)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if w != width || h != height {
		t.Errorf("Dimensions mismatch: got %dx%d, want %dx%d", w, h, width, height)
	}
	if components != 1 {
		t.Errorf("Components mismatch: got %d, want 1", components)
	}
	if len(decodedData) != width*height {
		t.Fatalf("Data length mismatch: got %d, want %d", len(decodedData), width*height)
	}

	maxError, mean := errorStats(pixelData, decodedData)
	t.Logf("Maximum pixel error: %d, mean %.3f", maxError, mean)

	if maxError > 50 {
		t.Errorf("Maximum error too large: %d (expected <= 50)", maxError)
	}
}

func TestEncodeDecodeRGB(t *testing.T) {
	width, height := 64, 64
	pixelData := gradient(width, height, 3)

	jpegData, err := Encode(pixelData, width, height, 3, 85)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	t.Logf("Encoded size: %d bytes (compression ratio: %.2fx)",
		len(jpegData), float64(len(pixelData))/float64(len(jpegData)))

	decodedData, w, h, components, err := Decode(jpegData)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if w != width || h != height {
		t.Errorf("Dimensions mismatch: got %dx%d, want %dx%d", w, h, width, height)
	}
	if components != 3 {
		t.Errorf("Components mismatch: got %d, want 3", components)
	}
	if len(decodedData) != width*height*3 {
		t.Fatalf("Data length mismatch: got %d, want %d", len(decodedData), width*height*3)
	}

	maxError, mean := errorStats(pixelData, decodedData)
	t.Logf("Maximum pixel error: %d, mean %.3f", maxError, mean)

	if maxError > 60 {
		t.Errorf("Maximum error too large: %d (expected <= 60)", maxError)
	}
}

func TestOddSizes(t *testing.T) {
	tests := []struct {
		name         string
		width        int
		height       int
		components   int
		subsample420 bool
	}{
		{"gray 37x23", 37, 23, 1, false},
		{"gray 1x1", 1, 1, 1, false},
		{"rgb 37x23", 37, 23, 3, false},
		{"rgb 37x23 4:2:0", 37, 23, 3, true},
		{"rgb 9x17 4:2:0", 9, 17, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pixelData := gradient(tt.width, tt.height, tt.components)
			p := NewParameters(tt.width, tt.height, tt.components).WithQuality(90)
			p.Subsample420 = tt.subsample420

			jpegData, err := EncodeWithParameters(pixelData, p)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			decoded, w, h, _, err := Decode(jpegData)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if w != tt.width || h != tt.height {
				t.Fatalf("Dimensions mismatch: got %dx%d", w, h)
			}

			maxError, mean := errorStats(pixelData, decoded)
			t.Logf("Maximum pixel error: %d, mean %.3f", maxError, mean)
			if mean > 6 {
				t.Errorf("Mean error too large: %.3f", mean)
			}
		})
	}
}

func TestMagicBytes(t *testing.T) {
	jpegData, err := Encode(gradient(16, 16, 1), 16, 16, 1, 75)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(jpegData, []byte{0xFF, 0xD8, 0xFF, 0xE0}) {
		t.Errorf("Unexpected stream start % x", jpegData[:4])
	}
	if !bytes.HasSuffix(jpegData, []byte{0xFF, 0xD9}) {
		t.Errorf("Stream does not end with EOI")
	}
}

func TestRestartInterval(t *testing.T) {
	width, height := 48, 40
	pixelData := gradient(width, height, 3)

	plain, err := Encode(pixelData, width, height, 3, 80)
	if err != nil {
		t.Fatal(err)
	}

	p := NewParameters(width, height, 3).WithQuality(80)
	p.RestartInterval = 4
	withRST, err := EncodeWithParameters(pixelData, p)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(withRST, []byte{0xFF, 0xDD}) {
		t.Fatal("DRI segment missing")
	}

	want, _, _, _, err := Decode(plain)
	if err != nil {
		t.Fatal(err)
	}

	d := NewDecoder(withRST)
	got := make([]byte, len(want))
	if err := d.DecodeInto(got, 3, width*3); err != nil {
		t.Fatalf("Decode with restart markers failed: %v", err)
	}
	if d.Warning() != "" {
		t.Errorf("Unexpected warning: %s", d.Warning())
	}
	if !bytes.Equal(got, want) {
		t.Error("Restart markers changed the decoded pixels")
	}
}

func TestStride(t *testing.T) {
	width, height := 20, 12
	packed := gradient(width, height, 3)
	stride := width*3 + 7

	strided := make([]byte, (height-1)*stride+width*3)
	for y := 0; y < height; y++ {
		copy(strided[y*stride:], packed[y*width*3:(y+1)*width*3])
	}

	a, err := Encode(packed, width, height, 3, 75)
	if err != nil {
		t.Fatal(err)
	}
	p := NewParameters(width, height, 3)
	p.Stride = stride
	b, err := EncodeWithParameters(strided, p)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("Strided source encoded differently")
	}

	dst := bytes.Repeat([]byte{0xAB}, (height-1)*stride+width*3)
	if err := NewDecoder(a).DecodeInto(dst, 3, stride); err != nil {
		t.Fatal(err)
	}
	for y := 0; y < height-1; y++ {
		for i := width * 3; i < stride; i++ {
			if dst[y*stride+i] != 0xAB {
				t.Fatalf("Padding overwritten at line %d offset %d", y, i)
			}
		}
	}

	if err := NewDecoder(a).DecodeInto(dst[:len(dst)-1], 3, stride); !errors.Is(err, common.ErrBufferTooSmall) {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}
}

func TestBandConversion(t *testing.T) {
	width, height := 16, 16
	gray := gradient(width, height, 1)
	jpegData, err := Encode(gray, width, height, 1, 90)
	if err != nil {
		t.Fatal(err)
	}

	one := make([]byte, width*height)
	if err := NewDecoder(jpegData).DecodeInto(one, 1, width); err != nil {
		t.Fatal(err)
	}
	three := make([]byte, width*height*3)
	if err := NewDecoder(jpegData).DecodeInto(three, 3, width*3); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < width*height; i++ {
		if three[i*3] != one[i] || three[i*3+1] != one[i] || three[i*3+2] != one[i] {
			t.Fatalf("Pixel %d not replicated: %v vs %d", i, three[i*3:i*3+3], one[i])
		}
	}

	// Color to luminance
	rgb := make([]byte, width*height*3)
	for i := range rgb {
		rgb[i] = 100
	}
	jpegData, err = Encode(rgb, width, height, 3, 90)
	if err != nil {
		t.Fatal(err)
	}
	if err := NewDecoder(jpegData).DecodeInto(one, 1, width); err != nil {
		t.Fatal(err)
	}
	for i, v := range one {
		if v < 98 || v > 102 {
			t.Fatalf("Luminance of pixel %d: got %d, want about 100", i, v)
		}
	}
}

func TestAPPSegments(t *testing.T) {
	payload := []byte("Zen\x01\x02\x03")
	p := NewParameters(8, 8, 1).WithSegment(common.MarkerAPP3, payload)
	jpegData, err := EncodeWithParameters(make([]byte, 64), p)
	if err != nil {
		t.Fatal(err)
	}

	var got []byte
	var markers []uint16
	d := NewDecoder(jpegData)
	d.OnAPP(func(marker uint16, data []byte) error {
		markers = append(markers, marker)
		if marker == common.MarkerAPP3 {
			got = append([]byte(nil), data...)
		}
		return nil
	})
	if err := d.DecodeInto(make([]byte, 64), 1, 8); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("APP3 payload: got %q, want %q", got, payload)
	}
	if len(markers) != 2 || markers[0] != common.MarkerAPP0 {
		t.Errorf("Unexpected APP markers %04X", markers)
	}

	// Handler errors abort the decode
	stop := errors.New("stop")
	d = NewDecoder(jpegData)
	d.OnAPP(func(uint16, []byte) error { return stop })
	if err := d.ReadHeader(); !errors.Is(err, stop) {
		t.Errorf("Expected handler error, got %v", err)
	}
}

func TestTruncatedScan(t *testing.T) {
	width, height := 64, 64
	jpegData, err := Encode(gradient(width, height, 1), width, height, 1, 85)
	if err != nil {
		t.Fatal(err)
	}

	sos := bytes.Index(jpegData, []byte{0xFF, 0xDA})
	if sos < 0 {
		t.Fatal("SOS not found")
	}
	// Keep the scan header and half of the entropy coded data
	cut := sos + 12 + (len(jpegData)-sos-12)/2

	d := NewDecoder(jpegData[:cut])
	if err := d.DecodeInto(make([]byte, width*height), 1, width); err != nil {
		t.Fatalf("Truncated scan should decode with a warning, got %v", err)
	}
	if d.Warning() != common.WarnPrematureEnd {
		t.Errorf("Warning: got %q, want %q", d.Warning(), common.WarnPrematureEnd)
	}
}

func TestUnsupportedFrames(t *testing.T) {
	jpegData, err := Encode(gradient(16, 16, 1), 16, 16, 1, 85)
	if err != nil {
		t.Fatal(err)
	}
	sof := bytes.Index(jpegData, []byte{0xFF, 0xC0})
	if sof < 0 {
		t.Fatal("SOF0 not found")
	}

	for _, m := range []byte{0xC2, 0xC9, 0xC3} {
		data := append([]byte(nil), jpegData...)
		data[sof+1] = m
		err := NewDecoder(data).ReadHeader()
		if !errors.Is(err, common.ErrUnsupportedFormat) {
			t.Errorf("Marker FF%02X: expected ErrUnsupportedFormat, got %v", m, err)
		}
	}

	if err := NewDecoder([]byte{0x89, 'P', 'N', 'G'}).ReadHeader(); !errors.Is(err, common.ErrInvalidSOI) {
		t.Errorf("Expected ErrInvalidSOI, got %v", err)
	}
	if err := NewDecoder(jpegData[:sof+4]).ReadHeader(); err == nil {
		t.Error("Truncated header should fail")
	}
}

func TestEncodeInvalidParameters(t *testing.T) {
	pixelData := make([]byte, 64*64)

	tests := []struct {
		name       string
		width      int
		height     int
		components int
		quality    int
		wantErr    bool
	}{
		{"Invalid width", 0, 64, 1, 85, true},
		{"Invalid height", 64, 0, 1, 85, true},
		{"Invalid components", 64, 64, 2, 85, true},
		{"Invalid quality low", 64, 64, 1, 0, true},
		{"Invalid quality high", 64, 64, 1, 101, true},
		{"Buffer too small", 64, 64, 3, 85, true},
		{"Valid", 64, 64, 1, 85, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(pixelData, tt.width, tt.height, tt.components, tt.quality)
			if (err != nil) != tt.wantErr {
				t.Errorf("Encode() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestQualityLevels(t *testing.T) {
	width, height := 32, 32
	pixelData := make([]byte, width*height)

	for i := 0; i < len(pixelData); i++ {
		pixelData[i] = byte(i % 256)
	}

	qualities := []int{10, 50, 90}
	var prevSize int

	for _, quality := range qualities {
		jpegData, err := Encode(pixelData, width, height, 1, quality)
		if err != nil {
			t.Fatalf("Encode at quality %d failed: %v", quality, err)
		}

		t.Logf("Quality %d: size = %d bytes", quality, len(jpegData))

		if prevSize > 0 && len(jpegData) < prevSize {
			t.Errorf("Quality %d produced a smaller stream than the previous quality", quality)
		}
		prevSize = len(jpegData)
	}
}

func BenchmarkEncodeGrayscale(b *testing.B) {
	width, height := 512, 512
	pixelData := make([]byte, width*height)

	for i := 0; i < len(pixelData); i++ {
		pixelData[i] = byte(i % 256)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := Encode(pixelData, width, height, 1, 85)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeGrayscale(b *testing.B) {
	width, height := 512, 512
	pixelData := make([]byte, width*height)

	for i := 0; i < len(pixelData); i++ {
		pixelData[i] = byte(i % 256)
	}

	jpegData, err := Encode(pixelData, width, height, 1, 85)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _, _, err := Decode(jpegData)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeRGB(b *testing.B) {
	width, height := 512, 512
	pixelData := make([]byte, width*height*3)

	for i := 0; i < len(pixelData); i++ {
		pixelData[i] = byte(i % 256)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := Encode(pixelData, width, height, 3, 85)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeRGB(b *testing.B) {
	width, height := 512, 512
	pixelData := make([]byte, width*height*3)

	for i := 0; i < len(pixelData); i++ {
		pixelData[i] = byte(i % 256)
	}

	jpegData, err := Encode(pixelData, width, height, 3, 85)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _, _, err := Decode(jpegData)
		if err != nil {
			b.Fatal(err)
		}
	}
}
