package common

// IDCT performs Inverse Discrete Cosine Transform on an 8x8 block
// Input: 64 dequantized DCT coefficients in natural order
// Output: 64 samples, level shifted back and clamped to 0..255
func IDCT(coef *[64]int32, out []byte, stride int) {
	var tmp [64]float32

	// Columns
	for x := 0; x < 8; x++ {
		if coef[8+x] == 0 && coef[16+x] == 0 && coef[24+x] == 0 && coef[32+x] == 0 &&
			coef[40+x] == 0 && coef[48+x] == 0 && coef[56+x] == 0 {
			dc := float32(coef[x]) * dctMatrix[0][0]
			for y := 0; y < 8; y++ {
				tmp[y*8+x] = dc
			}
			continue
		}
		for y := 0; y < 8; y++ {
			var s float32
			for v := 0; v < 8; v++ {
				s += dctMatrix[v][y] * float32(coef[v*8+x])
			}
			tmp[y*8+x] = s
		}
	}

	// Rows
	for y := 0; y < 8; y++ {
		row := tmp[y*8 : y*8+8]
		line := out[y*stride : y*stride+8]
		for x := 0; x < 8; x++ {
			s := dctMatrix[0][x]*row[0] + dctMatrix[1][x]*row[1] + dctMatrix[2][x]*row[2] +
				dctMatrix[3][x]*row[3] + dctMatrix[4][x]*row[4] + dctMatrix[5][x]*row[5] +
				dctMatrix[6][x]*row[6] + dctMatrix[7][x]*row[7]
			line[x] = byte(Clamp(int(s+128.5), 0, 255))
		}
	}
}
