package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cocosip/go-raster-codec/codec"
	"github.com/cocosip/go-raster-codec/jpeg"
	"github.com/cocosip/go-raster-codec/lerc1"
	"github.com/cocosip/go-raster-codec/png"
)

var (
	outPath     string
	formatName  string
	width       int
	height      int
	bands       int
	typeName    string
	noData      float64
	quality     int
	subsample   bool
	precision   float64
	level       int
	transparent bool
)

var peekCmd = &cobra.Command{
	Use:   "peek <tile>",
	Short: "Describe a compressed tile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		r, err := codec.Peek(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %d bytes  %s\n", describe(r), len(data), digest(data))
		return nil
	},
}

var encodeCmd = &cobra.Command{
	Use:   "encode <raw>",
	Short: "Compress a raw little-endian pixel file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := parseFormat(formatName)
		if err != nil {
			return err
		}
		src, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		r := codec.Raster{Width: width, Height: height, Bands: bands, DataType: codec.ParseDataType(typeName)}
		if cmd.Flags().Changed("nodata") {
			r.NoData, r.HasNoData = noData, true
		}
		if len(src) != r.BufferSize() {
			return fmt.Errorf("%s holds %d bytes, a %dx%dx%d %s raster needs %d",
				args[0], len(src), width, height, bands, r.DataType, r.BufferSize())
		}
		logVerbose("encode %s as %s", describe(r), f)

		data, err := compress(cmd.OutOrStdout(), f, codec.NewEncodeParams(r, encodeOptions(f, r)), src)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Digest: %s\n", digest(data))
		return writeOutput(data)
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode <tile>",
	Short: "Decompress a tile to a raw little-endian pixel file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		r, err := codec.Peek(data)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("type") {
			r.DataType = codec.ParseDataType(typeName)
		}
		if cmd.Flags().Changed("nodata") {
			r.NoData, r.HasNoData = noData, true
		}
		params := codec.NewParams(r)
		out := make([]byte, params.BufferSize())
		if err := codec.Decode(params, data, out); err != nil {
			return err
		}
		if params.Warning != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", params.Warning)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  modified=%v\n", describe(params.Raster), params.Modified)
		return writeOutput(out)
	},
}

func init() {
	for _, c := range []*cobra.Command{encodeCmd, decodeCmd} {
		c.Flags().StringVarP(&outPath, "out", "o", "", "output file")
		c.Flags().StringVarP(&typeName, "type", "t", "byte", "sample type")
		c.Flags().Float64Var(&noData, "nodata", 0, "NoData value")
		c.MarkFlagRequired("out")
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(peekCmd)

	fl := encodeCmd.Flags()
	fl.StringVarP(&formatName, "format", "f", "image/jpeg", "output format")
	fl.IntVarP(&width, "width", "W", 0, "raster width")
	fl.IntVarP(&height, "height", "H", 0, "raster height")
	fl.IntVarP(&bands, "bands", "b", 1, "bands per pixel")
	fl.IntVarP(&quality, "quality", "q", 75, "JPEG quality, 1 to 100")
	fl.BoolVar(&subsample, "subsample420", false, "JPEG 4:2:0 chroma subsampling")
	fl.Float64VarP(&precision, "precision", "p", -1, "LERC maximum error, negative for the default")
	fl.IntVarP(&level, "level", "l", png.DefaultCompression, "PNG compression level, 0 to 9")
	fl.BoolVar(&transparent, "transparent", false, "write NoData as the PNG transparent color")
	encodeCmd.MarkFlagRequired("width")
	encodeCmd.MarkFlagRequired("height")
}

func jpegOptions(q int) *jpeg.Options {
	o := jpeg.DefaultOptions()
	o.Quality = q
	return o
}

// encodeOptions builds the options of format f from the flags
func encodeOptions(f codec.Format, r codec.Raster) codec.Options {
	switch f {
	case codec.JPEG, codec.Any:
		o := jpegOptions(quality)
		o.Subsample420 = subsample
		return o
	case codec.PNG:
		o := png.DefaultOptions(r)
		o.CompressionLevel = level
		o.HasTransparency = transparent
		return o
	case codec.LERC:
		o := lerc1.DefaultOptions(r)
		if precision >= 0 {
			o.Precision = precision
		}
		return o
	}
	return nil
}

func writeOutput(data []byte) error {
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	logVerbose("wrote %d bytes to %s", len(data), outPath)
	return nil
}
