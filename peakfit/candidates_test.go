package peakfit

import "testing"

func TestFindCandidatesSinglePeak(t *testing.T) {
	y := []float64{0, 1, 3, 1, 0}
	got := findCandidates(y)
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("findCandidates(%v) = %v, want [2]", y, got)
	}
}

func TestFindCandidatesFlatLine(t *testing.T) {
	y := make([]float64, 10)
	if got := findCandidates(y); len(got) != 0 {
		t.Fatalf("expected no candidates on a flat line, got %v", got)
	}
}

func TestFindCandidatesMonotonic(t *testing.T) {
	y := []float64{0, 1, 2, 3, 4}
	if got := findCandidates(y); len(got) != 0 {
		t.Fatalf("expected no interior local maxima on a monotonic ramp, got %v", got)
	}
}

func TestMaxResponseTakesMaxAcrossScales(t *testing.T) {
	cwt := [][]float64{
		{1, 5, 2},
		{3, 1, 9},
	}
	got := maxResponse(cwt)
	want := []float64{3, 5, 9}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("maxResponse = %v, want %v", got, want)
		}
	}
}

func TestCwtMatrixClipsAndLogTransforms(t *testing.T) {
	y := make([]float64, 20)
	y[10] = 10
	cwt := cwtMatrix(y)
	if len(cwt) != len(cwtScales) {
		t.Fatalf("len(cwt) = %d, want %d", len(cwt), len(cwtScales))
	}
	for _, row := range cwt {
		for _, v := range row {
			if v < 0 {
				t.Fatalf("expected log1p(clip(v, 1e-10)) to never go negative, got %v", v)
			}
		}
	}
}
