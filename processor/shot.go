package processor

import "math"

// shotCache accumulates IntegratedLines for the frames of the current shot
// (a contiguous block of fReset frames, spec.md §3 "Shot"). It is reset to
// empty after each shot boundary.
type shotCache struct {
	width int
	lines [][]float64
}

func newShotCache(width int) *shotCache {
	return &shotCache{width: width}
}

func (c *shotCache) append(line []float64) {
	c.lines = append(c.lines, line)
}

func (c *shotCache) reset() {
	c.lines = c.lines[:0]
}

// fold sums all cached lines elementwise into a single shot tensor
// (spec.md §4.3 step 5).
func (c *shotCache) fold() []float64 {
	sum := make([]float64, c.width)
	for _, line := range c.lines {
		for i, v := range line {
			sum[i] += v
		}
	}
	return sum
}

// ShotStats tracks rolling mean/variance over completed shot tensors using
// Welford's online algorithm (spec.md §3 "Shot", §4.3 step 6).
type ShotStats struct {
	n     int
	mean  []float64
	m2    []float64
	width int
}

// NewShotStats creates a statistics tracker for shot tensors of the given
// width.
func NewShotStats(width int) *ShotStats {
	return &ShotStats{
		width: width,
		mean:  make([]float64, width),
		m2:    make([]float64, width),
	}
}

// Update folds one completed shot tensor x into the running statistics and
// returns the updated sample count.
func (s *ShotStats) Update(x []float64) int {
	s.n++
	for i, xi := range x {
		delta := xi - s.mean[i]
		s.mean[i] += delta / float64(s.n)
		s.m2[i] += delta * (xi - s.mean[i])
	}
	return s.n
}

// N returns the number of completed shots folded so far.
func (s *ShotStats) N() int { return s.n }

// Mean returns a copy of the rolling mean.
func (s *ShotStats) Mean() []float64 {
	out := make([]float64, len(s.mean))
	copy(out, s.mean)
	return out
}

// Variance returns the rolling variance (M2 / n). Undefined (zero) before
// the first completed shot.
func (s *ShotStats) Variance() []float64 {
	out := make([]float64, s.width)
	if s.n == 0 {
		return out
	}
	inv := 1.0 / float64(s.n)
	for i, m2 := range s.m2 {
		out[i] = m2 * inv
	}
	return out
}

// StdDev returns sqrt(Variance()), per the operational Welford update in
// spec.md §4.3 step 6 (var = M2/n_shots; std = sqrt(var)).
func (s *ShotStats) StdDev() []float64 {
	v := s.Variance()
	out := make([]float64, len(v))
	for i, vi := range v {
		out[i] = math.Sqrt(vi)
	}
	return out
}
