package main

import (
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"github.com/cocosip/go-raster-codec/codec"
	"github.com/cocosip/go-raster-codec/qb3"
)

var testCmd = &cobra.Command{
	Use:   "test <format>",
	Short: "Round trip a 100x100 test pattern through a format",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := parseFormat(args[0])
		if err != nil {
			return err
		}
		return roundTrip(cmd.OutOrStdout(), f)
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
}

// roundTrip encodes a test pattern as f, peeks and decodes it, and checks the result
func roundTrip(w io.Writer, f codec.Format) error {
	switch f {
	case codec.JPEG, codec.Any:
		return testJPEG(w)
	case codec.PNG:
		return testPNG(w)
	case codec.LERC:
		return testLERC(w)
	case codec.QB3:
		if !qb3.Available() {
			return fmt.Errorf("QB3 codec not available")
		}
	}
	return fmt.Errorf("unsupported format %s", f)
}

// compress encodes src into a buffer twice the raw size
func compress(w io.Writer, f codec.Format, params *codec.EncodeParams, src []byte) ([]byte, error) {
	dst := make([]byte, 2*len(src))
	n, err := codec.Encode(f, params, src, dst)
	if err != nil {
		return nil, fmt.Errorf("error compressing %s: %w", f, err)
	}
	fmt.Fprintf(w, "Compressed size: %d\n", n)
	logVerbose("%s digest %s", f, digest(dst[:n]))
	return dst[:n], nil
}

// expand peeks data, checks the shape against want and decodes it as dt
func expand(data []byte, want codec.Raster, dt codec.DataType) (*codec.Params, []byte, error) {
	in, err := codec.Peek(data)
	if err != nil {
		return nil, nil, err
	}
	logVerbose("peek: %s", describe(in))
	if in.Width != want.Width || in.Height != want.Height || in.Bands != want.Bands {
		return nil, nil, fmt.Errorf("size mismatch on unpack, %dx%dx%d instead of %dx%dx%d",
			in.Width, in.Height, in.Bands, want.Width, want.Height, want.Bands)
	}
	in.DataType = dt
	params := codec.NewParams(in)
	out := make([]byte, params.BufferSize())
	if err := codec.Decode(params, data, out); err != nil {
		return nil, nil, fmt.Errorf("error decompressing: %w", err)
	}
	return params, out, nil
}

func mismatch(a, b []byte) error {
	for i := range a {
		if a[i] != b[i] {
			return fmt.Errorf("mismatch at %d", i)
		}
	}
	return nil
}

func testPNG(w io.Writer) error {
	r := codec.Raster{Width: 100, Height: 100, Bands: 3, DataType: codec.Byte}
	src := codec.TestPattern(r)
	data, err := compress(w, codec.PNG, codec.NewEncodeParams(r, nil), src)
	if err != nil {
		return err
	}
	_, out, err := expand(data, r, r.DataType)
	if err != nil {
		return err
	}
	return mismatch(src, out)
}

func testJPEG(w io.Writer) error {
	r := codec.Raster{Width: 100, Height: 100, Bands: 3, DataType: codec.Byte}
	src := codec.TestPattern(r)
	// The first pixel is black, the Zen mask keeps it that way
	src[0], src[1], src[2] = 0, 0, 0

	params := codec.NewEncodeParams(r, jpegOptions(85))
	data, err := compress(w, codec.JPEG, params, src)
	if err != nil {
		return err
	}
	p, out, err := expand(data, r, r.DataType)
	if err != nil {
		return err
	}
	if !p.Modified {
		return fmt.Errorf("the zero mask was not applied")
	}
	if out[0] != 0 || out[1] != 0 || out[2] != 0 {
		return fmt.Errorf("first pixel is %v, not black", out[:3])
	}
	sum := 0.0
	for i := range src {
		sum += math.Abs(float64(src[i]) - float64(out[i]))
	}
	mean := sum / float64(len(src))
	fmt.Fprintf(w, "Mean absolute error: %.3f\n", mean)
	if mean > 4 {
		return fmt.Errorf("mean absolute error %.3f is too large", mean)
	}
	return nil
}

func testLERC(w io.Writer) error {
	r := codec.Raster{Width: 100, Height: 100, Bands: 1, DataType: codec.Byte}
	src := codec.TestPattern(r)
	data, err := compress(w, codec.LERC, codec.NewEncodeParams(r, nil), src)
	if err != nil {
		return err
	}
	in, err := codec.Peek(data)
	if err != nil {
		return err
	}
	if in.DataType != codec.Float32 {
		return fmt.Errorf("data type invalid for LERC, it should be float32, got %s", in.DataType)
	}
	_, out, err := expand(data, r, codec.Byte)
	if err != nil {
		return err
	}
	return mismatch(src, out)
}
