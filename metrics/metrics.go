// Package metrics exposes Prometheus counters/gauges for the pipeline's
// lifecycle, queue health and process resource usage, grounded on the
// teacher's promauto.NewGaugeVec composition pattern.
package metrics

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/process"
)

// Metrics holds every Prometheus collector the pipeline registers.
type Metrics struct {
	framesDecoded     prometheus.Counter
	decodeErrors      prometheus.Counter
	scansActive       prometheus.Gauge
	scansStarted      prometheus.Counter
	publisherQueueLen *prometheus.GaugeVec
	publisherDrops    *prometheus.CounterVec
	sinkLatency       *prometheus.HistogramVec
	processCPU        prometheus.Gauge
	processRSS        prometheus.Gauge
}

// New registers and returns the pipeline's metric collectors against the
// default Prometheus registry.
func New() *Metrics {
	return &Metrics{
		framesDecoded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "xps_frames_decoded_total",
			Help: "Total raw frames successfully decoded from the detector wire stream.",
		}),
		decodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "xps_decode_errors_total",
			Help: "Total frames dropped due to a decode error.",
		}),
		scansActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "xps_scans_active",
			Help: "1 while a scan is ACTIVE, 0 while IDLE.",
		}),
		scansStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "xps_scans_started_total",
			Help: "Total ScanStart messages accepted.",
		}),
		publisherQueueLen: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xps_publisher_queue_length",
			Help: "Current depth of a publisher's per-sink queue.",
		}, []string{"sink"}),
		publisherDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "xps_publisher_drops_total",
			Help: "Total Result messages dropped under backpressure, by sink.",
		}, []string{"sink"}),
		sinkLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "xps_sink_delivery_seconds",
			Help:    "Wall-clock time a sink spends delivering one message.",
			Buckets: prometheus.DefBuckets,
		}, []string{"sink"}),
		processCPU: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "xps_process_cpu_percent",
			Help: "Process CPU utilization percentage.",
		}),
		processRSS: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "xps_process_rss_bytes",
			Help: "Process resident set size in bytes.",
		}),
	}
}

// FrameDecoded increments the decoded-frame counter.
func (m *Metrics) FrameDecoded() { m.framesDecoded.Inc() }

// DecodeError increments the decode-error counter.
func (m *Metrics) DecodeError() { m.decodeErrors.Inc() }

// ScanStarted marks a scan transitioning to ACTIVE.
func (m *Metrics) ScanStarted() {
	m.scansStarted.Inc()
	m.scansActive.Set(1)
}

// ScanStopped marks a scan returning to IDLE.
func (m *Metrics) ScanStopped() { m.scansActive.Set(0) }

// SetQueueLength records a publisher sink's current queue depth.
func (m *Metrics) SetQueueLength(sink string, n int) {
	m.publisherQueueLen.WithLabelValues(sink).Set(float64(n))
}

// RecordDrop increments the per-sink drop counter.
func (m *Metrics) RecordDrop(sink string) {
	m.publisherDrops.WithLabelValues(sink).Inc()
}

// ObserveSinkLatency records how long a sink took to deliver one message.
func (m *Metrics) ObserveSinkLatency(sink string, d time.Duration) {
	m.sinkLatency.WithLabelValues(sink).Observe(d.Seconds())
}

// StartProcessSampler periodically samples this process's CPU and RSS via
// gopsutil and publishes them as gauges, stopping when stop is closed.
func (m *Metrics) StartProcessSampler(interval time.Duration, stop <-chan struct{}) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if pct, err := proc.CPUPercent(); err == nil {
				m.processCPU.Set(pct)
			}
			if info, err := proc.MemoryInfo(); err == nil && info != nil {
				m.processRSS.Set(float64(info.RSS))
			}
		}
	}
}
