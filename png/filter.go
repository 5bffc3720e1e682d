package png

import "fmt"

// Filter types, the first byte of every filtered line
const (
	ftNone = iota
	ftSub
	ftUp
	ftAverage
	ftPaeth
	nFilter
)

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// paeth returns whichever of a (left), b (up) and c (up left) is closest to a+b-c
func paeth(a, b, c byte) byte {
	pc := int(c)
	pa := abs(int(b) - pc)
	pb := abs(int(a) - pc)
	pc = abs(int(a) + int(b) - 2*pc)
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

// unfilter reverses filter ft in place on cur. prev is the previous
// reconstructed line, all zero for the first line.
func unfilter(ft byte, cur, prev []byte, bpp int) error {
	switch ft {
	case ftNone:
	case ftSub:
		for i := bpp; i < len(cur); i++ {
			cur[i] += cur[i-bpp]
		}
	case ftUp:
		for i, p := range prev {
			cur[i] += p
		}
	case ftAverage:
		for i := 0; i < bpp; i++ {
			cur[i] += prev[i] / 2
		}
		for i := bpp; i < len(cur); i++ {
			cur[i] += byte((int(cur[i-bpp]) + int(prev[i])) / 2)
		}
	case ftPaeth:
		for i := 0; i < bpp; i++ {
			cur[i] += prev[i]
		}
		for i := bpp; i < len(cur); i++ {
			cur[i] += paeth(cur[i-bpp], prev[i], prev[i-bpp])
		}
	default:
		return fmt.Errorf("%w: bad filter type %d", ErrCorrupt, ft)
	}
	return nil
}

// filter applies filter ft to cur into out, which has the same length
func filter(ft byte, out, cur, prev []byte, bpp int) {
	switch ft {
	case ftNone:
		copy(out, cur)
	case ftSub:
		copy(out[:bpp], cur[:bpp])
		for i := bpp; i < len(cur); i++ {
			out[i] = cur[i] - cur[i-bpp]
		}
	case ftUp:
		for i := range cur {
			out[i] = cur[i] - prev[i]
		}
	case ftAverage:
		for i := 0; i < bpp; i++ {
			out[i] = cur[i] - prev[i]/2
		}
		for i := bpp; i < len(cur); i++ {
			out[i] = cur[i] - byte((int(cur[i-bpp])+int(prev[i]))/2)
		}
	case ftPaeth:
		for i := 0; i < bpp; i++ {
			out[i] = cur[i] - prev[i]
		}
		for i := bpp; i < len(cur); i++ {
			out[i] = cur[i] - paeth(cur[i-bpp], prev[i], prev[i-bpp])
		}
	}
}

// filterer picks a filter per line, the one with the smallest sum of
// absolute values taken as signed bytes
type filterer struct {
	bpp  int
	rows [nFilter][]byte // filter byte followed by the filtered line
}

func newFilterer(rowBytes, bpp int) *filterer {
	f := &filterer{bpp: bpp}
	for i := range f.rows {
		f.rows[i] = make([]byte, 1+rowBytes)
		f.rows[i][0] = byte(i)
	}
	return f
}

// apply returns the filtered line, with its filter byte
func (f *filterer) apply(cur, prev []byte) []byte {
	best, bestSum := 0, -1
	for ft := range f.rows {
		row := f.rows[ft]
		filter(byte(ft), row[1:], cur, prev, f.bpp)
		sum := 0
		for _, v := range row[1:] {
			sum += abs(int(int8(v)))
			if bestSum >= 0 && sum >= bestSum {
				break
			}
		}
		if bestSum < 0 || sum < bestSum {
			best, bestSum = ft, sum
		}
	}
	return f.rows[best]
}
