package peakfit

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// paramsPerComponent is the flattened parameter count per lineshape:
// Gaussian is (amplitude, center, sigma); Voigt adds fwhmL.
func paramsPerComponent(shape Shape) int {
	if shape == ShapeVoigt {
		return 4
	}
	return 3
}

func packComponents(comps []component) []float64 {
	if len(comps) == 0 {
		return nil
	}
	n := paramsPerComponent(comps[0].shape)
	out := make([]float64, 0, n*len(comps))
	for _, c := range comps {
		out = append(out, c.amplitude, c.center, c.sigma)
		if c.shape == ShapeVoigt {
			out = append(out, c.fwhmL)
		}
	}
	return out
}

func unpackComponents(params []float64, shape Shape, count int) []component {
	n := paramsPerComponent(shape)
	out := make([]component, count)
	for i := 0; i < count; i++ {
		base := i * n
		c := component{shape: shape, amplitude: params[base], center: params[base+1], sigma: math.Abs(params[base+2])}
		if shape == ShapeVoigt {
			c.fwhmL = math.Abs(params[base+3])
		}
		out[i] = c
	}
	return out
}

func sumSquaredResiduals(x, y []float64, comps []component) float64 {
	m := model(comps)
	var sum float64
	for i := range x {
		d := m.eval(x[i]) - y[i]
		sum += d * d
	}
	return sum
}

// fitLevenbergMarquardt refines a single-component model by damped
// Gauss-Newton iteration with a numeric Jacobian (spec.md §4.3: "Fit with
// a nonlinear least-squares fitter: Levenberg-Marquardt for 1 component").
func fitLevenbergMarquardt(x, y []float64, init component) (component, bool) {
	shape := init.shape
	n := paramsPerComponent(shape)
	params := packComponents([]component{init})

	residual := func(p []float64) []float64 {
		comps := unpackComponents(p, shape, 1)
		return model(comps).residuals(x, y)
	}
	cost := func(r []float64) float64 {
		var s float64
		for _, v := range r {
			s += v * v
		}
		return s
	}

	lambda := 1e-3
	r := residual(params)
	bestCost := cost(r)
	converged := false

	const maxIter = 100
	const step = 1e-6

	for iter := 0; iter < maxIter; iter++ {
		m := len(x)
		jac := mat.NewDense(m, n, nil)
		base := residual(params)
		for j := 0; j < n; j++ {
			trial := append([]float64(nil), params...)
			trial[j] += step
			rp := residual(trial)
			for i := 0; i < m; i++ {
				jac.Set(i, j, (rp[i]-base[i])/step)
			}
		}

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		for j := 0; j < n; j++ {
			jtj.Set(j, j, jtj.At(j, j)*(1+lambda))
		}

		rv := mat.NewVecDense(m, base)
		var jtr mat.VecDense
		jtr.MulVec(jac.T(), rv)

		var delta mat.VecDense
		if err := delta.SolveVec(&jtj, &jtr); err != nil {
			lambda *= 10
			continue
		}

		trial := make([]float64, n)
		for j := 0; j < n; j++ {
			trial[j] = params[j] - delta.AtVec(j)
		}

		trialCost := cost(residual(trial))
		if trialCost < bestCost {
			deltaNorm := 0.0
			for j := 0; j < n; j++ {
				d := trial[j] - params[j]
				deltaNorm += d * d
			}
			params = trial
			if bestCost-trialCost < 1e-12*(1+bestCost) || math.Sqrt(deltaNorm) < 1e-9 {
				bestCost = trialCost
				converged = true
				break
			}
			bestCost = trialCost
			lambda = math.Max(lambda/10, 1e-12)
		} else {
			lambda *= 10
			if lambda > 1e12 {
				break
			}
		}
	}

	fitted := unpackComponents(params, shape, 1)[0]
	return fitted, converged
}

// fitSimplex refines a multi-component composite model with Nelder-Mead
// simplex search (spec.md §4.3: "... Simplex LS for >=2 [components]").
func fitSimplex(x, y []float64, inits []component) ([]component, bool) {
	shape := inits[0].shape
	count := len(inits)
	init := packComponents(inits)

	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			comps := unpackComponents(p, shape, count)
			return sumSquaredResiduals(x, y, comps)
		},
	}

	result, err := optimize.Minimize(problem, init, &optimize.Settings{MajorIterations: 2000}, &optimize.NelderMead{})
	if err != nil || result == nil {
		return inits, false
	}
	return unpackComponents(result.X, shape, count), true
}
