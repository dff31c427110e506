package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// TestMetricsLifecycle exercises every collector through a single Metrics
// instance: promauto registers against the default registry, and a second
// New() call in the same test binary would panic on duplicate registration.
func TestMetricsLifecycle(t *testing.T) {
	m := New()

	m.FrameDecoded()
	m.FrameDecoded()
	m.DecodeError()
	m.ScanStarted()
	m.SetQueueLength("websocket", 3)
	m.RecordDrop("websocket")
	m.ObserveSinkLatency("archive", 5*time.Millisecond)

	if got := counterValue(t, m.framesDecoded); got != 2 {
		t.Fatalf("framesDecoded = %v, want 2", got)
	}
	if got := counterValue(t, m.decodeErrors); got != 1 {
		t.Fatalf("decodeErrors = %v, want 1", got)
	}
	if got := gaugeValue(t, m.scansActive); got != 1 {
		t.Fatalf("scansActive = %v, want 1 after ScanStarted", got)
	}
	m.ScanStopped()
	if got := gaugeValue(t, m.scansActive); got != 0 {
		t.Fatalf("scansActive = %v, want 0 after ScanStopped", got)
	}

	stop := make(chan struct{})
	go m.StartProcessSampler(10*time.Millisecond, stop)
	time.Sleep(30 * time.Millisecond)
	close(stop)
}

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var out dto.Metric
	if err := c.Write(&out); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return out.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var out dto.Metric
	if err := g.Write(&out); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return out.GetGauge().GetValue()
}
