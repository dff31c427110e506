package processor

import "testing" // lifecycle test: spec.md §8 "exactly 2 Results for f_reset=5, 10 frames"

func TestProcessEventLifecycleEmitsOnBoundariesOnly(t *testing.T) {
	width := 8
	p := NewProcessor(width, Options{FReset: 5, PeakK: 2})

	frame := func(v float64) []float64 {
		f := make([]float64, width)
		for i := range f {
			f[i] = v
		}
		return f
	}

	var results int
	for fn := 1; fn <= 10; fn++ {
		r := p.ProcessEvent(fn, frame(float64(fn)), 1, width)
		if r != nil {
			results++
			if r.FrameNumber != fn {
				t.Fatalf("Result.FrameNumber = %d, want %d", r.FrameNumber, fn)
			}
			if len(r.IntegratedStack) != fn {
				t.Fatalf("at frame %d: IntegratedStack height = %d, want %d", fn, len(r.IntegratedStack), fn)
			}
		}
	}
	if results != 2 {
		t.Fatalf("got %d Results for 10 frames at f_reset=5, want 2", results)
	}
	if p.Timing() == nil {
		t.Fatal("expected a non-nil timing ledger")
	}
	if len(p.Timing().Table()) != 10 {
		t.Fatalf("len(timing table) = %d, want 10 (one row per processed frame)", len(p.Timing().Table()))
	}
}

func TestProcessEventFrameZeroNeverEmits(t *testing.T) {
	width := 4
	p := NewProcessor(width, Options{FReset: 1})
	r := p.ProcessEvent(0, make([]float64, width), 1, width)
	if r != nil {
		t.Fatal("frame_number == 0 must never produce a Result")
	}
	if p.stack.Len() != 1 {
		t.Fatalf("expected frame 0 to still seed the stack, got height %d", p.stack.Len())
	}
}

func TestProcessEventResultDoesNotAliasProcessorState(t *testing.T) {
	width := 2
	p := NewProcessor(width, Options{FReset: 1})
	r1 := p.ProcessEvent(1, []float64{1, 1}, 1, width)
	if r1 == nil {
		t.Fatal("expected a Result at the first boundary")
	}
	r1.IntegratedStack[0][0] = 999

	r2 := p.ProcessEvent(2, []float64{2, 2}, 1, width)
	if r2 == nil {
		t.Fatal("expected a Result at the second boundary")
	}
	if r2.IntegratedStack[0][0] == 999 {
		t.Fatal("mutating a published Result leaked back into Processor state")
	}
}
