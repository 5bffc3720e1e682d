package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/cocosip/go-raster-codec/codec"
	_ "github.com/cocosip/go-raster-codec/jpeg"
	_ "github.com/cocosip/go-raster-codec/lerc1"
	_ "github.com/cocosip/go-raster-codec/png"
	_ "github.com/cocosip/go-raster-codec/qb3"
)

var (
	version = "0.1.0"
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "testicd",
	Short: "Round trip and inspect raster tiles",
	Long: `testicd encodes, decodes and describes raster tiles in the
image/jpeg, image/png, raster/lerc and image/qb3 formats.

Run "testicd test <format>" to round trip a test pattern.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		logVerbose("done: %s", cmd.Name())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"testicd %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

// logVerbose prints a message only when --verbose is set.
func logVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[testicd] "+format+"\n", args...)
	}
}

// parseFormat accepts a mime type name or a short name
func parseFormat(name string) (codec.Format, error) {
	switch name {
	case "jpeg", "jpg":
		return codec.JPEG, nil
	case "png":
		return codec.PNG, nil
	case "lerc", "lerc1":
		return codec.LERC, nil
	case "qb3":
		return codec.QB3, nil
	}
	if f := codec.ParseFormat(name); f != codec.UnknownFormat {
		return f, nil
	}
	return codec.UnknownFormat, fmt.Errorf("unsupported format %s, use image/jpeg, image/png, raster/lerc or image/qb3", name)
}

func describe(r codec.Raster) string {
	s := fmt.Sprintf("%s %dx%dx%d %s", r.Format, r.Width, r.Height, r.Bands, r.DataType)
	if r.HasNoData {
		s += fmt.Sprintf(" nodata=%g", r.NoData)
	}
	if r.HasMax {
		s += fmt.Sprintf(" max=%g", r.Max)
	}
	return s
}
