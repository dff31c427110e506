package peakfit

import (
	"math"
	"testing"
)

func gaussianLine(n int, centers []float64, amps, sigmas []float64) []float64 {
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		for k, c := range centers {
			d := x - c
			y[i] += amps[k] * math.Exp(-(d*d)/(2*sigmas[k]*sigmas[k]))
		}
	}
	return y
}

func TestFitTwoPeakFixture(t *testing.T) {
	n := 1131
	y := gaussianLine(n, []float64{350, 650}, []float64{100, 80}, []float64{15, 20})

	table := Fit(y, 2, ShapeGaussian)
	if len(table) != 2 {
		t.Fatalf("len(table) = %d, want 2; table=%+v", len(table), table)
	}
	if table[0].Index < 300 || table[0].Index >= 400 {
		t.Fatalf("first peak index = %d, want in [300,400)", table[0].Index)
	}
	if table[1].Index < 600 || table[1].Index >= 700 {
		t.Fatalf("second peak index = %d, want in [600,700)", table[1].Index)
	}
}

func TestFitSinglePeakUsesLevenbergMarquardt(t *testing.T) {
	n := 200
	y := gaussianLine(n, []float64{100}, []float64{50}, []float64{10})

	table := Fit(y, 2, ShapeGaussian)
	if len(table) != 1 {
		t.Fatalf("len(table) = %d, want 1 (only one real peak present)", len(table))
	}
	if table[0].Amplitude <= 0 {
		t.Fatalf("expected a positive fitted amplitude, got %v", table[0].Amplitude)
	}
	if table[0].FWHM <= 0 {
		t.Fatalf("expected a positive FWHM, got %v", table[0].FWHM)
	}
}

func TestFitFlatLineHasNoCandidates(t *testing.T) {
	y := make([]float64, 50)
	table := Fit(y, 2, ShapeGaussian)
	if len(table) != 0 {
		t.Fatalf("expected no candidates on a flat line, got %+v", table)
	}
}

func TestFitEmptyLine(t *testing.T) {
	table := Fit(nil, 2, ShapeGaussian)
	if len(table) != 0 {
		t.Fatalf("expected an empty table for an empty line, got %+v", table)
	}
}

func TestFitDefaultsKWhenNonPositive(t *testing.T) {
	n := 300
	y := gaussianLine(n, []float64{50, 150, 250}, []float64{40, 60, 30}, []float64{8, 8, 8})
	table := Fit(y, 0, ShapeGaussian)
	if len(table) != DefaultK {
		t.Fatalf("len(table) = %d, want DefaultK = %d", len(table), DefaultK)
	}
}

func TestFitVoigtShapeProducesPositiveFWHM(t *testing.T) {
	n := 200
	y := gaussianLine(n, []float64{100}, []float64{50}, []float64{10})
	table := Fit(y, 1, ShapeVoigt)
	if len(table) != 1 {
		t.Fatalf("len(table) = %d, want 1", len(table))
	}
	if table[0].FWHM <= 0 {
		t.Fatalf("expected a positive Voigt FWHM, got %v", table[0].FWHM)
	}
}
