// Package spectral computes the VFFT and IFFT band-pass reconstruction
// derived products from a scan's IntegratedStack (spec.md §4.3 step 8,
// GLOSSARY "VFFT", "IFFT band-pass").
package spectral

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// epsilon guards the VFFT log against a zero magnitude bin.
const epsilon = 1e-5

// DefaultRepeatFactor and DefaultWidth are the IFFT band-pass
// reconstruction defaults from spec.md §4.3 step 8.
const (
	DefaultRepeatFactor = 25
	DefaultWidth        = 0
)

// Options configures the IFFT band-pass reconstruction.
type Options struct {
	RepeatFactor int // default 25 if <= 0
	Width        int // default 0 if < 0
}

func (o Options) normalized() Options {
	if o.RepeatFactor <= 0 {
		o.RepeatFactor = DefaultRepeatFactor
	}
	if o.Width < 0 {
		o.Width = DefaultWidth
	}
	return o
}

// fftColumns runs a complex FFT of length n independently over every column
// of a (n, w) row-major stack, returning the result in the same (n, w)
// row-major layout. stack[r] must have length w for every row r.
func fftColumns(stack [][]float64) [][]complex128 {
	n := len(stack)
	if n == 0 {
		return nil
	}
	w := len(stack[0])

	plan := fourier.NewCmplxFFT(n)
	out := make([][]complex128, n)
	for r := range out {
		out[r] = make([]complex128, w)
	}

	col := make([]complex128, n)
	for c := 0; c < w; c++ {
		for r := 0; r < n; r++ {
			col[r] = complex(stack[r][c], 0)
		}
		coeffs := plan.Coefficients(nil, col)
		for r := 0; r < n; r++ {
			out[r][c] = coeffs[r]
		}
	}
	return out
}

// ifftColumns is the column-wise inverse of fftColumns. gonum's Sequence is
// unnormalized, so each output is scaled by 1/n.
func ifftColumns(spectrum [][]complex128) [][]complex128 {
	n := len(spectrum)
	if n == 0 {
		return nil
	}
	w := len(spectrum[0])

	plan := fourier.NewCmplxFFT(n)
	out := make([][]complex128, n)
	for r := range out {
		out[r] = make([]complex128, w)
	}

	col := make([]complex128, n)
	for c := 0; c < w; c++ {
		for r := 0; r < n; r++ {
			col[r] = spectrum[r][c]
		}
		seq := plan.Sequence(nil, col)
		for r := 0; r < n; r++ {
			out[r][c] = seq[r] / complex(float64(n), 0)
		}
	}
	return out
}

// VFFT computes |log(|FFT along axis 0 of stack| + epsilon)|, the same
// shape as stack (spec.md §4.3 step 8).
func VFFT(stack [][]float64) [][]float64 {
	spectrum := fftColumns(stack)
	if len(spectrum) == 0 {
		return nil
	}
	out := make([][]float64, len(spectrum))
	for r, row := range spectrum {
		out[r] = make([]float64, len(row))
		for c, v := range row {
			out[r][c] = math.Abs(math.Log(math.Abs(v) + epsilon))
		}
	}
	return out
}

// RowSum sums VFFT along axis 1, yielding a 1-D vector of length N — an
// additional derived product kept from original_source/fft.py's
// calculate_fft_items (SPEC_FULL.md §C).
func RowSum(vfft [][]float64) []float64 {
	out := make([]float64, len(vfft))
	for r, row := range vfft {
		var sum float64
		for _, v := range row {
			sum += v
		}
		out[r] = sum
	}
	return out
}

// IFFT performs the band-passed reconstruction: FFT along axis 0, zero
// every row except a symmetric ±width window around each index that is a
// multiple of floor(N/repeat_factor) (spec.md §4.3 step 8, GLOSSARY "IFFT
// band-pass"), inverse FFT, then magnitude.
func IFFT(stack [][]float64, opts Options) [][]float64 {
	opts = opts.normalized()
	n := len(stack)
	if n == 0 {
		return nil
	}
	w := len(stack[0])

	spectrum := fftColumns(stack)

	step := n / opts.RepeatFactor
	if step == 0 {
		step = 1
	}

	keep := make([]bool, n)
	for i := 0; i < n; i += step {
		lo := i - opts.Width
		hi := i + opts.Width
		if lo < 0 {
			lo = 0
		}
		if hi >= n {
			hi = n - 1
		}
		for r := lo; r <= hi; r++ {
			keep[r] = true
		}
	}

	filtered := make([][]complex128, n)
	for r := 0; r < n; r++ {
		if keep[r] {
			filtered[r] = spectrum[r]
		} else {
			filtered[r] = make([]complex128, w)
		}
	}

	recon := ifftColumns(filtered)
	out := make([][]float64, n)
	for r, row := range recon {
		out[r] = make([]float64, w)
		for c, v := range row {
			out[r][c] = cmplxAbs(v)
		}
	}
	return out
}

func cmplxAbs(v complex128) float64 {
	return math.Hypot(real(v), imag(v))
}
