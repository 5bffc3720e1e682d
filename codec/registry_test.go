package codec_test

import (
	"errors"
	"testing"

	"github.com/cocosip/go-raster-codec/codec"
	_ "github.com/cocosip/go-raster-codec/jpeg"
	_ "github.com/cocosip/go-raster-codec/lerc1"
	_ "github.com/cocosip/go-raster-codec/png"
	_ "github.com/cocosip/go-raster-codec/qb3"
)

func TestCodecRegistry(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		wantFound  bool
		wantFormat codec.Format
	}{
		{"Get JPEG by name", "image/jpeg", true, codec.JPEG},
		{"Get PNG by name", "image/png", true, codec.PNG},
		{"Get LERC by name", "raster/lerc", true, codec.LERC},
		{"Get QB3 by name", "image/qb3", true, codec.QB3},
		{"Wildcard has no codec", "image/*", false, codec.Any},
		{"Get non-existent codec", "image/tiff", false, codec.UnknownFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if f := codec.ParseFormat(tt.key); f != tt.wantFormat {
				t.Errorf("ParseFormat(%q) = %d, want %d", tt.key, f, tt.wantFormat)
			}
			c, err := codec.Lookup(tt.key)
			if !tt.wantFound {
				if !errors.Is(err, codec.ErrCodecNotFound) {
					t.Errorf("Lookup(%q) error = %v, want %v", tt.key, err, codec.ErrCodecNotFound)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup(%q) unexpected error: %v", tt.key, err)
			}
			if c.Format() != tt.wantFormat {
				t.Errorf("Lookup(%q).Format() = %s, want %s", tt.key, c.Format(), tt.wantFormat)
			}
			if c.Format().String() != tt.key {
				t.Errorf("Format name = %q, want %q", c.Format().String(), tt.key)
			}
		})
	}
}

func TestListCodecs(t *testing.T) {
	codecs := codec.List()
	want := []codec.Format{codec.JPEG, codec.PNG, codec.LERC, codec.QB3}
	if len(codecs) != len(want) {
		t.Fatalf("List() returned %d codecs, want %d", len(codecs), len(want))
	}
	for i, c := range codecs {
		if c.Format() != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, c.Format(), want[i])
		}
	}
}

type stubCodec struct {
	codec.Codec
	format codec.Format
	id     int
}

func (s *stubCodec) Format() codec.Format { return s.format }

func TestRegistryReplace(t *testing.T) {
	reg := codec.NewRegistry()
	if _, err := reg.Get(codec.PNG); !errors.Is(err, codec.ErrCodecNotFound) {
		t.Fatalf("Empty registry: got %v", err)
	}
	reg.Register(&stubCodec{format: codec.PNG, id: 1})
	reg.Register(&stubCodec{format: codec.PNG, id: 2})
	reg.Register(&stubCodec{format: codec.JPEG, id: 3})

	c, err := reg.Get(codec.PNG)
	if err != nil {
		t.Fatal(err)
	}
	if c.(*stubCodec).id != 2 {
		t.Error("Second registration should replace the first")
	}
	if list := reg.List(); len(list) != 2 || list[0].Format() != codec.JPEG {
		t.Errorf("List() = %v", list)
	}
}

func TestJPEGCodecEncodeDecode(t *testing.T) {
	c, err := codec.Get(codec.JPEG)
	if err != nil {
		t.Fatalf("Failed to get JPEG codec: %v", err)
	}

	r := codec.Raster{Width: 64, Height: 64, Bands: 1, DataType: codec.Byte}
	src := make([]byte, r.BufferSize())
	for i := range src {
		src[i] = byte(64 + i%64)
	}

	dst := make([]byte, 2*r.BufferSize()+1024)
	n, err := c.Encode(codec.NewEncodeParams(r, nil), src, dst)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	t.Logf("Compressed size: %d bytes", n)

	peek, err := c.Peek(dst[:n])
	if err != nil {
		t.Fatal(err)
	}
	if !peek.SameShape(r) {
		t.Errorf("Peek = %+v, want %+v", peek, r)
	}

	out := make([]byte, r.BufferSize())
	params := codec.NewParams(r)
	if err := c.Decode(params, dst[:n], out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if params.Modified {
		t.Error("No zero pixels, the mask shouldn't modify the output")
	}
}
