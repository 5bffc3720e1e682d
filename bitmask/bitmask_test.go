package bitmask

import (
	"errors"
	"testing"
)

func TestNewAllValid(t *testing.T) {
	m := New(13, 7)
	if m.Width() != 13 || m.Height() != 7 {
		t.Fatalf("Size mismatch: got %dx%d", m.Width(), m.Height())
	}
	if m.Size() != (13*7+7)/8 {
		t.Errorf("Storage size: got %d, want %d", m.Size(), (13*7+7)/8)
	}
	if n := m.CountInvalid(); n != 0 {
		t.Errorf("New mask has %d invalid pixels", n)
	}
	for y := 0; y < 7; y++ {
		for x := 0; x < 13; x++ {
			if !m.IsValid(x, y) {
				t.Fatalf("Pixel (%d,%d) not valid", x, y)
			}
		}
	}
}

func TestSetClear(t *testing.T) {
	m := New(10, 10)
	m.Clear(0, 0)
	m.Clear(9, 9)
	m.Set(5, 5, false)
	m.Set(5, 5, true)
	m.Clear(3, 4)

	if m.IsValid(0, 0) || m.IsValid(9, 9) || m.IsValid(3, 4) {
		t.Error("Cleared pixels still valid")
	}
	if !m.IsValid(5, 5) {
		t.Error("Pixel (5,5) should be valid")
	}
	if n := m.CountInvalid(); n != 3 {
		t.Errorf("CountInvalid: got %d, want 3", n)
	}
	// Row-major, MSB first
	if m.Bytes()[0]&0x80 != 0 {
		t.Errorf("First bit should be clear, byte 0 = %08b", m.Bytes()[0])
	}
}

func TestFill(t *testing.T) {
	m := New(9, 3)
	m.Fill(false)
	if n := m.CountInvalid(); n != 27 {
		t.Errorf("CountInvalid after Fill(false): got %d, want 27", n)
	}
	m.Fill(true)
	if !m.AllValid() {
		t.Error("Mask should be all valid after Fill(true)")
	}
}

func TestSetBytes(t *testing.T) {
	m := New(4, 3) // 12 bits, 2 bytes
	if err := m.SetBytes([]byte{0x0F, 0xFF}); err != nil {
		t.Fatalf("SetBytes failed: %v", err)
	}
	// Tail bits beyond pixel 12 are dropped
	if m.Bytes()[1] != 0xF0 {
		t.Errorf("Tail not trimmed: %08b", m.Bytes()[1])
	}
	if n := m.CountInvalid(); n != 4 {
		t.Errorf("CountInvalid: got %d, want 4", n)
	}
	err := m.SetBytes([]byte{0})
	if !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("Expected ErrSizeMismatch, got %v", err)
	}
}

func TestRLERoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		modify func(m *Bitmask)
	}{
		{"all valid", 17, 9, func(m *Bitmask) {}},
		{"all invalid", 17, 9, func(m *Bitmask) { m.Fill(false) }},
		{"first pixel", 100, 100, func(m *Bitmask) { m.Clear(0, 0) }},
		{"last pixel", 100, 100, func(m *Bitmask) { m.Clear(99, 99) }},
		{"checkerboard", 31, 17, func(m *Bitmask) {
			for y := 0; y < 17; y++ {
				for x := 0; x < 31; x++ {
					m.Set(x, y, (x+y)%2 == 0)
				}
			}
		}},
		{"block", 64, 64, func(m *Bitmask) {
			for y := 10; y < 40; y++ {
				for x := 5; x < 50; x++ {
					m.Clear(x, y)
				}
			}
		}},
		{"single pixel", 1, 1, func(m *Bitmask) { m.Clear(0, 0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := New(tt.w, tt.h)
			tt.modify(src)

			data, err := src.Store(RLEPacker{})
			if err != nil {
				t.Fatalf("Store failed: %v", err)
			}
			t.Logf("%d pixels packed into %d bytes", tt.w*tt.h, len(data))

			dst := New(tt.w, tt.h)
			if err := dst.Load(RLEPacker{}, data); err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			for y := 0; y < tt.h; y++ {
				for x := 0; x < tt.w; x++ {
					if src.IsValid(x, y) != dst.IsValid(x, y) {
						t.Fatalf("Pixel (%d,%d) mismatch", x, y)
					}
				}
			}
			if src.CountInvalid() != dst.CountInvalid() {
				t.Errorf("CountInvalid mismatch: %d vs %d", src.CountInvalid(), dst.CountInvalid())
			}
		})
	}
}

func TestRLEAllValidStartsWithEmptyRun(t *testing.T) {
	data, err := RLEPacker{}.Pack(New(8, 8))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 2 || data[0] != 0 || data[1] != 64 {
		t.Errorf("Unexpected stream % x", data)
	}
}

func TestRLEUnpackRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated varint", []byte{0x80}},
		{"overflow", []byte{0, 65}},
		{"short", []byte{0, 10}},
		{"trailing", []byte{0, 64, 0}},
		{"empty inner run", []byte{10, 0, 54}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(8, 8)
			err := RLEPacker{}.Unpack(tt.data, m)
			if !errors.Is(err, ErrCorrupt) {
				t.Errorf("Expected ErrCorrupt, got %v", err)
			}
		})
	}
}

func BenchmarkRLEPack(b *testing.B) {
	m := New(512, 512)
	for y := 100; y < 300; y++ {
		for x := 50; x < 400; x++ {
			m.Clear(x, y)
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Store(RLEPacker{}); err != nil {
			b.Fatal(err)
		}
	}
}
