package sinks

import "math"

// logStretchU8 normalizes a dense matrix to u8 via the log-stretch
// procedure in spec.md §4.5: y=(x-min)/(max-min); z=log1p(y);
// z'=(z-min(z))/(max(z)-min(z)); u8=floor(255*z').
func logStretchU8(m [][]float64) []byte {
	rows := len(m)
	if rows == 0 {
		return nil
	}
	cols := len(m[0])

	lo, hi := minMax(m)
	span := hi - lo
	if span == 0 {
		span = 1
	}

	z := make([][]float64, rows)
	zLo, zHi := math.Inf(1), math.Inf(-1)
	for r, row := range m {
		zRow := make([]float64, cols)
		for c, v := range row {
			y := (v - lo) / span
			zv := math.Log1p(y)
			zRow[c] = zv
			if zv < zLo {
				zLo = zv
			}
			if zv > zHi {
				zHi = zv
			}
		}
		z[r] = zRow
	}

	zSpan := zHi - zLo
	if zSpan == 0 {
		zSpan = 1
	}

	out := make([]byte, rows*cols)
	i := 0
	for _, row := range z {
		for _, zv := range row {
			zp := (zv - zLo) / zSpan
			u8 := int(math.Floor(255 * zp))
			if u8 < 0 {
				u8 = 0
			}
			if u8 > 255 {
				u8 = 255
			}
			out[i] = byte(u8)
			i++
		}
	}
	return out
}

func minMax(m [][]float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, row := range m {
		for _, v := range row {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 0
	}
	return lo, hi
}
