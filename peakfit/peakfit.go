package peakfit

import (
	"math"
	"sort"
)

// Peak is one detected spectral peak (spec.md GLOSSARY "PeakTable").
type Peak struct {
	Index     int
	Amplitude float64
	FWHM      float64
	Flag      bool
}

// Table is a PeakTable: at most K rows, sorted by Index ascending.
type Table []Peak

// DefaultK and DefaultShape are the peak-fitting defaults from spec.md
// §4.3 ("K=2 by default; peak shape = Gaussian by default").
const DefaultK = 2

// Fit computes the PeakTable for one IntegratedLine y (spec.md §4.3 "Peak
// fitting"). It never returns an error: on a fitter that fails to
// converge, rows still come back best-effort with Flag set.
func Fit(y []float64, k int, shape Shape) Table {
	if k <= 0 {
		k = DefaultK
	}
	w := len(y)
	if w == 0 {
		return Table{}
	}

	cwt := cwtMatrix(y)
	resp := maxResponse(cwt)

	candidates := findCandidates(y)
	if len(candidates) == 0 {
		return Table{}
	}

	sort.Slice(candidates, func(i, j int) bool { return y[candidates[i]] < y[candidates[j]] })
	if len(candidates) > k {
		candidates = candidates[len(candidates)-k:]
	}

	const c = gaussianFWHMFactor

	x := make([]float64, w)
	for i := range x {
		x[i] = float64(i)
	}

	inits := make([]component, len(candidates))
	for i, idx := range candidates {
		sigma := resp[idx] / c
		if sigma <= 0 {
			sigma = 1
		}
		comp := component{shape: shape, amplitude: y[idx], center: x[idx], sigma: sigma}
		if shape == ShapeVoigt {
			comp.fwhmL = c * sigma
		}
		inits[i] = comp
	}

	var fitted []component
	converged := false
	if len(inits) == 1 {
		fitted = make([]component, 1)
		fitted[0], converged = fitLevenbergMarquardt(x, y, inits[0])
	} else {
		fitted, converged = fitSimplex(x, y, inits)
	}

	var meanRelResidual float64
	for i := range x {
		r := math.Abs(model(fitted).eval(x[i]) - y[i])
		meanRelResidual += r / (y[i] + 1e-5)
	}
	meanRelResidual /= float64(w)
	flag := !converged || meanRelResidual > 0.10

	rows := make(Table, len(candidates))
	for i, idx := range candidates {
		amp := fitted[i].amplitude
		if amp < 0 {
			amp = 0
		}
		rows[i] = Peak{Index: idx, Amplitude: amp, FWHM: fitted[i].fwhm(), Flag: flag}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Index < rows[j].Index })
	return rows
}
