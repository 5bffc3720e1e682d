package common

import "math"

// dctMatrix[u][x] = C(u)/2 * cos((2x+1)u*pi/16), C(0) = 1/sqrt(2), C(u) = 1 otherwise
var dctMatrix = func() (m [8][8]float32) {
	for u := 0; u < 8; u++ {
		c := 0.5
		if u == 0 {
			c = 0.5 / math.Sqrt2
		}
		for x := 0; x < 8; x++ {
			m[u][x] = float32(c * math.Cos(float64(2*x+1)*float64(u)*math.Pi/16))
		}
	}
	return m
}()

// DCT performs the forward Discrete Cosine Transform of an 8x8 block in place.
// Input: level shifted samples (range -128..127) in natural order
// Output: 64 DCT coefficients in natural order
func DCT(block *[64]float32) {
	var tmp [64]float32

	// Rows
	for y := 0; y < 8; y++ {
		row := block[y*8 : y*8+8]
		for u := 0; u < 8; u++ {
			c := &dctMatrix[u]
			tmp[y*8+u] = c[0]*row[0] + c[1]*row[1] + c[2]*row[2] + c[3]*row[3] +
				c[4]*row[4] + c[5]*row[5] + c[6]*row[6] + c[7]*row[7]
		}
	}

	// Columns
	for x := 0; x < 8; x++ {
		for v := 0; v < 8; v++ {
			c := &dctMatrix[v]
			block[v*8+x] = c[0]*tmp[x] + c[1]*tmp[8+x] + c[2]*tmp[16+x] + c[3]*tmp[24+x] +
				c[4]*tmp[32+x] + c[5]*tmp[40+x] + c[6]*tmp[48+x] + c[7]*tmp[56+x]
		}
	}
}

// Quantize divides the coefficients by the quantization table, rounding to nearest
func Quantize(block *[64]float32, qtable *[64]int32, coef *[64]int32) {
	for i := 0; i < 64; i++ {
		v := block[i] / float32(qtable[i])
		if v < 0 {
			coef[i] = -int32(-v + 0.5)
		} else {
			coef[i] = int32(v + 0.5)
		}
	}
}
