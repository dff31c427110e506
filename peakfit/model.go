// Package peakfit implements the continuous-wavelet peak candidate finder
// and composite Gaussian/Voigt fitter used to compute a scan's PeakTable
// (spec.md §4.3 "Peak fitting").
package peakfit

import "math"

// Shape selects the per-component lineshape.
type Shape int

// Supported lineshapes (spec.md §4.3: "peak shape = Gaussian by default;
// Voigt supported").
const (
	ShapeGaussian Shape = iota
	ShapeVoigt
)

// gaussianFWHMFactor is C = 2*sqrt(2*ln2), the Gaussian sigma-to-FWHM
// conversion used throughout peak_fitting.py.
const gaussianFWHMFactor = 2 * 1.1774100225154747 // 2*sqrt(2*ln2)

// component is one Gaussian or Voigt term of a composite model. For
// ShapeGaussian only center/amplitude/sigma are used; for ShapeVoigt,
// fwhmL supplies the Lorentzian width and sigma still carries the
// Gaussian contribution.
type component struct {
	shape     Shape
	center    float64
	amplitude float64
	sigma     float64
	fwhmL     float64
}

// eval evaluates the component at x.
func (c component) eval(x float64) float64 {
	switch c.shape {
	case ShapeVoigt:
		return c.amplitude * pseudoVoigt(x-c.center, gaussianFWHMFactor*c.sigma, c.fwhmL)
	default:
		d := x - c.center
		return c.amplitude * math.Exp(-(d*d)/(2*c.sigma*c.sigma))
	}
}

// fwhm returns the component's reported full-width-at-half-maximum
// (spec.md §4.3: "Gaussian: FWHM = C·σ; Voigt: fwhm_G from the fit").
func (c component) fwhm() float64 {
	if c.shape == ShapeVoigt {
		return gaussianFWHMFactor * c.sigma
	}
	return gaussianFWHMFactor * c.sigma
}

// pseudoVoigt evaluates a normalized (peak value 1 at d=0, before the
// amplitude scale) pseudo-Voigt profile via the Olivero-Longbothum
// approximation, avoiding a Faddeeva-function dependency for the true
// Voigt convolution (DESIGN.md, "peakfit/model.go").
func pseudoVoigt(d, fG, fL float64) float64 {
	f := math.Pow(
		math.Pow(fG, 5)+2.69269*math.Pow(fG, 4)*fL+2.42843*math.Pow(fG, 3)*fL*fL+
			4.47163*fG*fG*math.Pow(fL, 3)+0.07842*fG*math.Pow(fL, 4)+math.Pow(fL, 5),
		1.0/5.0,
	)
	if f <= 0 {
		return 0
	}
	ratio := fL / f
	eta := 1.36603*ratio - 0.47719*ratio*ratio + 0.11116*ratio*ratio*ratio

	lorentz := 1.0 / (1.0 + 4*(d/f)*(d/f))
	gauss := math.Exp(-4 * math.Ln2 * (d / f) * (d / f))
	return eta*lorentz + (1-eta)*gauss
}

// model is an additive sum of components (the composite fit function).
type model []component

func (m model) eval(x float64) float64 {
	var sum float64
	for _, c := range m {
		sum += c.eval(x)
	}
	return sum
}

// residuals evaluates y_fit(x_i) - y_i for every sample.
func (m model) residuals(x, y []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = m.eval(x[i]) - y[i]
	}
	return out
}
