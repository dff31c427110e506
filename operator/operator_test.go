package operator

import (
	"sync"
	"testing"
	"time"

	"github.com/als-computing/tr-ap-xps/pipeline"
	"github.com/als-computing/tr-ap-xps/processor"
	"github.com/als-computing/tr-ap-xps/wire"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []pipeline.Message
}

func (r *recordingPublisher) Publish(msg pipeline.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingPublisher) snapshot() []pipeline.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pipeline.Message(nil), r.msgs...)
}

func waitForCount(t *testing.T, r *recordingPublisher, pred func(pipeline.Message) bool, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n := 0
		for _, m := range r.snapshot() {
			if pred(m) {
				n++
			}
		}
		if n >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d matching messages", want)
}

func scanStart(name string, fReset, width int) *wire.ScanStart {
	return &wire.ScanStart{
		ScanName: name,
		FReset:   fReset,
		Image:    wire.ImageInfo{Height: 1, Width: width, DType: wire.DTypeU8},
	}
}

func TestOperatorLifecycleEmitsExpectedResultsAndStop(t *testing.T) {
	pub := &recordingPublisher{}
	op := New(pub, processor.Options{}, nil)

	in := make(chan wire.Message, 16)
	go op.Run(in)

	width := 4
	in <- wire.Message{Start: scanStart("scan-1", 5, width)}
	for fn := 1; fn <= 10; fn++ {
		in <- wire.Message{Event: &wire.RawEvent{
			FrameNumber: fn,
			Image:       wire.ImageInfo{Height: 1, Width: width},
			Frame:       make([]float64, width),
		}}
	}
	in <- wire.Message{Stop: &wire.ScanStop{Metadata: map[string]any{"k": "v"}}}
	close(in)

	waitForCount(t, pub, func(m pipeline.Message) bool { return m.Result != nil }, 2)
	waitForCount(t, pub, func(m pipeline.Message) bool { return m.Stop != nil }, 1)

	msgs := pub.snapshot()
	if msgs[0].Start == nil || msgs[0].Start.ScanName != "scan-1" {
		t.Fatalf("expected the first published message to be Start, got %+v", msgs[0])
	}

	var results int
	var stop *pipeline.ResultStop
	for _, m := range msgs {
		if m.Result != nil {
			results++
		}
		if m.Stop != nil {
			stop = m.Stop
		}
	}
	if results != 2 {
		t.Fatalf("got %d Result messages, want 2", results)
	}
	if stop == nil || stop.Metadata["k"] != "v" {
		t.Fatalf("expected Stop to carry through the scan's metadata, got %+v", stop)
	}
	if len(stop.Timing) != 10 {
		t.Fatalf("len(stop.Timing) = %d, want 10", len(stop.Timing))
	}
}

func TestOperatorDropsEventsWhileIdle(t *testing.T) {
	pub := &recordingPublisher{}
	op := New(pub, processor.Options{}, nil)

	in := make(chan wire.Message, 4)
	go op.Run(in)

	in <- wire.Message{Event: &wire.RawEvent{FrameNumber: 1, Image: wire.ImageInfo{Height: 1, Width: 2}, Frame: []float64{1, 2}}}
	close(in)

	time.Sleep(50 * time.Millisecond)
	if len(pub.snapshot()) != 0 {
		t.Fatalf("expected events received while idle to be dropped, got %+v", pub.snapshot())
	}
}

func TestOperatorScanReplacementDiscardsPreviousScanWithoutAStop(t *testing.T) {
	pub := &recordingPublisher{}
	op := New(pub, processor.Options{}, nil)

	in := make(chan wire.Message, 8)
	go op.Run(in)

	width := 2
	in <- wire.Message{Start: scanStart("scan-a", 1, width)}
	in <- wire.Message{Event: &wire.RawEvent{FrameNumber: 1, Image: wire.ImageInfo{Height: 1, Width: width}, Frame: make([]float64, width)}}
	in <- wire.Message{Start: scanStart("scan-b", 1, width)}
	in <- wire.Message{Event: &wire.RawEvent{FrameNumber: 1, Image: wire.ImageInfo{Height: 1, Width: width}, Frame: make([]float64, width)}}
	close(in)

	waitForCount(t, pub, func(m pipeline.Message) bool { return m.Start != nil }, 2)
	waitForCount(t, pub, func(m pipeline.Message) bool { return m.Result != nil }, 2)

	var stops int
	for _, m := range pub.snapshot() {
		if m.Stop != nil {
			stops++
		}
	}
	if stops != 0 {
		t.Fatalf("scan replacement must not publish a Stop for the discarded scan, got %d", stops)
	}
}
