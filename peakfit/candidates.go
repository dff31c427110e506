package peakfit

import "math"

// cwtScales mirrors peak_fitting.py's signal.cwt(y, ricker, range(1, 10)):
// Ricker-wavelet scales 1 through 9.
var cwtScales = []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}

// rickerWavelet samples the Ricker ("Mexican hat") wavelet of the given
// width at integer offset t, matching scipy.signal.ricker.
func rickerWavelet(t, width float64) float64 {
	a := 2.0 / (math.Sqrt(3*width) * math.Pow(math.Pi, 0.25))
	wsq := width * width
	tsq := t * t
	mod := 1 - tsq/wsq
	gauss := math.Exp(-tsq / (2 * wsq))
	return a * mod * gauss
}

// convolveRicker convolves y with a Ricker wavelet of the given width,
// same-length ("same" mode) output, matching scipy's cwt row construction.
func convolveRicker(y []float64, width float64) []float64 {
	n := len(y)
	half := int(math.Min(float64(n), 10*width))
	if half < 1 {
		half = 1
	}
	kernel := make([]float64, 2*half+1)
	for i := range kernel {
		t := float64(i - half)
		kernel[i] = rickerWavelet(t, width)
	}

	out := make([]float64, n)
	klen := len(kernel)
	for i := 0; i < n; i++ {
		var sum float64
		for k := 0; k < klen; k++ {
			src := i - (k - half)
			if src < 0 || src >= n {
				continue
			}
			sum += y[src] * kernel[k]
		}
		out[i] = sum
	}
	return out
}

// cwtMatrix computes the Ricker CWT of y at cwtScales, clipped to >= 1e-10
// and log1p-transformed per peak_fitting.py's numerical guards (spec.md
// §4.3 "Robustness: ... clip wavelet response >= 1e-10 before taking log").
func cwtMatrix(y []float64) [][]float64 {
	rows := make([][]float64, len(cwtScales))
	for i, scale := range cwtScales {
		row := convolveRicker(y, scale)
		for j, v := range row {
			if v < 1e-10 {
				v = 1e-10
			}
			row[j] = math.Log1p(v)
		}
		rows[i] = row
	}
	return rows
}

// maxResponse returns, for every sample index, the largest CWT response
// across all scales — peak_fitting.py's "largest_width" (spec.md §4.3:
// "estimate an initial width from the largest wavelet-scale response at
// that index").
func maxResponse(cwt [][]float64) []float64 {
	if len(cwt) == 0 {
		return nil
	}
	n := len(cwt[0])
	out := make([]float64, n)
	for _, row := range cwt {
		for i, v := range row {
			if v > out[i] {
				out[i] = v
			}
		}
	}
	return out
}

// findCandidates locates interior local maxima of y (greater than the left
// neighbour, not less than the right one), returning candidate indices in
// ascending order. The wavelet transform is not consulted here; it only
// feeds the width estimate (maxResponse). This local-maximum test stands
// in for scipy's find_peaks_cwt ridge-line search without porting scipy
// internals.
func findCandidates(y []float64) []int {
	n := len(y)
	var candidates []int
	for i := 1; i < n-1; i++ {
		if y[i] > y[i-1] && y[i] >= y[i+1] {
			candidates = append(candidates, i)
		}
	}
	return candidates
}
