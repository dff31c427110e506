package sinks

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/als-computing/tr-ap-xps/pipeline"
	"github.com/als-computing/tr-ap-xps/processor"
)

// archiveJob is one outbound write, queued so the HTTP round-trip never
// blocks the fan-out worker feeding this sink (spec.md §4.5 "Archive sink:
// blocking I/O calls are offloaded to a worker pool").
type archiveJob struct {
	path string
	body []byte
}

// ArchiveSink writes a scan's derived products to a tiled-style HTTP
// archive, organized as runs/<scan_name>/{integrated_frames,
// detected_peaks, vfft, ifft, timing} (spec.md §4.5, §7 "Outbound to
// Archive"). Every container write is msgpack-encoded and zstd-compressed,
// since the archive is an HTTP endpoint rather than a generated gRPC
// client (SPEC_FULL.md §B).
type ArchiveSink struct {
	baseURL    string
	credential string
	client     *http.Client
	encoder    *zstd.Encoder
	log        *slog.Logger

	jobs chan archiveJob
	wg   sync.WaitGroup

	mu           sync.Mutex
	materialized map[string]bool
}

// NewArchiveSink creates an ArchiveSink posting to baseURL with credential
// as a bearer token, running workerCount background writers.
func NewArchiveSink(baseURL, credential string, workerCount int, log *slog.Logger) *ArchiveSink {
	if log == nil {
		log = slog.Default()
	}
	if workerCount <= 0 {
		workerCount = 4
	}
	enc, _ := zstd.NewWriter(nil)
	s := &ArchiveSink{
		baseURL:      baseURL,
		credential:   credential,
		client:       &http.Client{Timeout: 30 * time.Second},
		encoder:      enc,
		log:          log,
		jobs:         make(chan archiveJob, 256),
		materialized: make(map[string]bool),
	}
	for i := 0; i < workerCount; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

func (s *ArchiveSink) worker() {
	defer s.wg.Done()
	for job := range s.jobs {
		s.send(job)
	}
}

func (s *ArchiveSink) send(job archiveJob) {
	compressed := s.encoder.EncodeAll(job.body, nil)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, s.baseURL+job.path, bytes.NewReader(compressed))
	if err != nil {
		s.log.Error("archive request build failed", "path", job.path, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/msgpack")
	req.Header.Set("Content-Encoding", "zstd")
	if s.credential != "" {
		req.Header.Set("Authorization", "Bearer "+s.credential)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("archive write failed", "path", job.path, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.log.Warn("archive write rejected", "path", job.path, "status", resp.StatusCode)
	}
}

func (s *ArchiveSink) enqueue(scanName, path string, v any) {
	body, err := msgpack.Marshal(v)
	if err != nil {
		s.log.Error("archive payload marshal failed", "path", path, "error", err)
		return
	}
	full := fmt.Sprintf("/runs/%s/%s", scanName, path)
	select {
	case s.jobs <- archiveJob{path: full, body: body}:
	default:
		s.log.Warn("archive queue full, dropping write", "path", full)
	}
}

// Deliver implements publisher.Sink.
func (s *ArchiveSink) Deliver(msg pipeline.Message) {
	switch {
	case msg.Start != nil:
		s.mu.Lock()
		s.materialized = map[string]bool{msg.Start.ScanName: false}
		scanName := msg.Start.ScanName
		s.mu.Unlock()
		s.enqueue(scanName, "metadata", msg.Start)
	case msg.Result != nil:
		s.deliverResult(msg.Result)
	case msg.Stop != nil:
		s.enqueue(msg.Stop.ScanName, "timing", msg.Stop.Timing)
		s.mu.Lock()
		delete(s.materialized, msg.Stop.ScanName)
		s.mu.Unlock()
	}
}

func (s *ArchiveSink) deliverResult(r *processor.Result) {
	// The scan_name that frames belong to travels with ScanStart only;
	// the Result itself carries frame_number. Since an Operator owns at
	// most one active scan, the archive tracks "current" scan via the
	// most recent ScanStart write path instead of threading scan_name
	// through every Result (kept out of processor.Result on purpose:
	// that type has no business knowing about archive addressing).
	s.mu.Lock()
	var scanName string
	for name := range s.materialized {
		scanName = name
	}
	first := scanName != "" && !s.materialized[scanName]
	if first {
		s.materialized[scanName] = true
	}
	s.mu.Unlock()

	if first {
		s.enqueue(scanName, "detected_peaks", r.PeakTable)
		s.enqueue(scanName, "vfft", r.VFFT)
		s.enqueue(scanName, "ifft", r.IFFT)
		s.enqueue(scanName, "integrated_frames", r.IntegratedStack)
		return
	}

	newest := r.IntegratedStack
	var lastRow []float64
	if len(newest) > 0 {
		lastRow = newest[len(newest)-1]
	}
	s.enqueue(scanName, "integrated_frames/append", lastRow)
	s.enqueue(scanName, "detected_peaks", r.PeakTable)
	s.enqueue(scanName, "vfft", r.VFFT)
	s.enqueue(scanName, "ifft", r.IFFT)
}

// Close drains the work queue and stops all workers.
func (s *ArchiveSink) Close() {
	close(s.jobs)
	s.wg.Wait()
}
