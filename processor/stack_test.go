package processor

import "testing"

func TestIntegrateAveragesAngleAxis(t *testing.T) {
	// 2 rows (height) x 3 cols (width)
	frame := []float64{1, 2, 3, 3, 4, 5}
	line := Integrate(frame, 2, 3)
	want := []float64{2, 3, 4}
	for i, w := range want {
		if line[i] != w {
			t.Fatalf("line[%d] = %v, want %v", i, line[i], w)
		}
	}
}

func TestIntegrateZeroHeight(t *testing.T) {
	line := Integrate(nil, 0, 3)
	if len(line) != 3 {
		t.Fatalf("len = %d, want 3", len(line))
	}
	for _, v := range line {
		if v != 0 {
			t.Fatalf("expected all zeros, got %v", line)
		}
	}
}

func TestIntegratedStackAppendNewestOrder(t *testing.T) {
	s := NewIntegratedStack(2)
	s.Append([]float64{1, 1})
	s.Append([]float64{2, 2})
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	if s.Latest()[0] != 2 {
		t.Fatalf("Latest() = %v, want row appended last", s.Latest())
	}
	if s.Row(0)[0] != 1 {
		t.Fatalf("Row(0) = %v, want the first-appended row", s.Row(0))
	}
}

func TestIntegratedStackSnapshotIsIndependentCopy(t *testing.T) {
	s := NewIntegratedStack(1)
	s.Append([]float64{5})
	snap := s.Snapshot()
	snap[0][0] = 99
	if s.Row(0)[0] != 5 {
		t.Fatalf("Snapshot aliased internal storage: Row(0) = %v", s.Row(0))
	}
}

func TestIntegratedStackAppendWidthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic on width mismatch")
		}
	}()
	s := NewIntegratedStack(2)
	s.Append([]float64{1})
}
