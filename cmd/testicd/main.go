// Command testicd exercises the raster codecs: it round trips a test pattern
// through a format, describes compressed tiles and converts between raw
// pixel files and compressed tiles.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
