// Package processor implements the per-scan numerical pipeline: vertical
// integration, shot-cycle aggregation, peak fitting and spectral
// transforms over a single scan's accumulating IntegratedStack.
package processor

// IntegratedStack is a growable, row-major store of IntegratedLines for one
// scan. Rows are ordered append-newest: row N-1 is always the most recently
// accepted event (SPEC_FULL.md, Open Question resolution #1). It grows by
// geometric reallocation rather than the O(N^2) traffic of per-event
// concatenation (spec.md §9, "Growing matrices").
type IntegratedStack struct {
	width int
	rows  [][]float64
}

// NewIntegratedStack creates an empty stack for lines of the given width.
func NewIntegratedStack(width int) *IntegratedStack {
	return &IntegratedStack{width: width, rows: make([][]float64, 0, 256)}
}

// Append adds a new IntegratedLine as the newest row. line must have length
// Width(); the stack does not copy it, so callers must not mutate it after
// the call returns.
func (s *IntegratedStack) Append(line []float64) {
	if len(line) != s.width {
		panic("processor: IntegratedStack row width mismatch")
	}
	s.rows = append(s.rows, line)
}

// Len returns the number of accepted rows (the stack height).
func (s *IntegratedStack) Len() int { return len(s.rows) }

// Width returns the row length (the W / energy axis).
func (s *IntegratedStack) Width() int { return s.width }

// Row returns the i-th row (0-indexed, oldest first in index order even
// though row N-1 is logically "newest"). The returned slice aliases
// internal storage and must be treated as read-only.
func (s *IntegratedStack) Row(i int) []float64 { return s.rows[i] }

// Latest returns the most recently appended row, or nil if the stack is
// empty.
func (s *IntegratedStack) Latest() []float64 {
	if len(s.rows) == 0 {
		return nil
	}
	return s.rows[len(s.rows)-1]
}

// Snapshot returns an independent copy of the full stack as a dense
// (N, W) row-major matrix, safe to hand to a Publisher after the
// Processor continues mutating its own storage (spec.md §3, "Lifecycle and
// ownership": published arrays must not alias Processor state).
func (s *IntegratedStack) Snapshot() [][]float64 {
	out := make([][]float64, len(s.rows))
	for i, row := range s.rows {
		cp := make([]float64, len(row))
		copy(cp, row)
		out[i] = cp
	}
	return out
}

// Integrate computes the mean of a 2-D raw frame (row-major, height*width
// samples) along the H (angle) axis, producing an IntegratedLine of length
// width (spec.md §4.3 step 1).
func Integrate(frame []float64, height, width int) []float64 {
	line := make([]float64, width)
	if height == 0 {
		return line
	}
	for h := 0; h < height; h++ {
		rowOff := h * width
		for w := 0; w < width; w++ {
			line[w] += frame[rowOff+w]
		}
	}
	inv := 1.0 / float64(height)
	for w := range line {
		line[w] *= inv
	}
	return line
}
