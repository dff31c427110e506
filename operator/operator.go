// Package operator implements the scan lifecycle state machine that owns a
// single Processor instance at a time (spec.md §4.2).
package operator

import (
	"log/slog"
	"sync"

	"github.com/als-computing/tr-ap-xps/pipeline"
	"github.com/als-computing/tr-ap-xps/processor"
	"github.com/als-computing/tr-ap-xps/wire"
)

type state int

const (
	stateIdle state = iota
	stateActive
)

// boundaryJob is dispatched to the compute worker for every accepted event,
// keeping the shot-boundary peak fitting and spectral transforms off the
// Operator's control path (spec.md §5 "Offload discipline").
type boundaryJob struct {
	proc        *processor.Processor
	pub         pipeline.Publisher
	frameNumber int
	frame       []float64
	height      int
	width       int
}

// Operator runs as its own task, reading decoded wire.Message values and
// driving the state machine in §4.2. It must be run from a single
// goroutine (Run); nothing else may call into it concurrently.
type Operator struct {
	opts processor.Options
	pub  pipeline.Publisher
	log  *slog.Logger

	state    state
	scanName string
	fReset   int
	proc     *processor.Processor

	jobs chan boundaryJob
	wg   sync.WaitGroup
}

// New creates an idle Operator publishing to pub.
func New(pub pipeline.Publisher, opts processor.Options, log *slog.Logger) *Operator {
	if log == nil {
		log = slog.Default()
	}
	o := &Operator{
		opts: opts,
		pub:  pub,
		log:  log,
		jobs: make(chan boundaryJob, 8),
	}
	go o.computeWorker()
	return o
}

// Run consumes decoded messages until in is closed. It is the Operator's
// single task (spec.md §5 "Scheduling model").
func (o *Operator) Run(in <-chan wire.Message) {
	for msg := range in {
		switch {
		case msg.Start != nil:
			o.handleStart(msg.Start)
		case msg.Event != nil:
			o.handleEvent(msg.Event)
		case msg.Stop != nil:
			o.handleStop(msg.Stop)
		}
	}
}

func (o *Operator) handleStart(start *wire.ScanStart) {
	// IDLE->ACTIVE and ACTIVE->ACTIVE (replacement) both discard any
	// existing Processor without a ResultStop (spec.md §4.2 state table).
	o.wg.Wait()
	scanOpts := o.opts
	scanOpts.FReset = start.FReset
	o.proc = processor.NewProcessor(start.Image.Width, scanOpts)
	o.scanName = start.ScanName
	o.fReset = start.FReset
	o.state = stateActive
	o.pub.Publish(pipeline.Message{Start: start})
}

func (o *Operator) handleEvent(event *wire.RawEvent) {
	if o.state != stateActive {
		o.log.Warn("dropping event received while idle", "frame_number", event.FrameNumber)
		return
	}

	o.wg.Add(1)
	// Every accepted event goes through the single compute lane, so the
	// Processor is only ever touched by computeWorker and sees events in
	// arrival order. proc and pub are captured now, at submit time, so a
	// later scan replacement never changes what an already-queued job
	// operates on.
	o.jobs <- boundaryJob{
		proc: o.proc, pub: o.pub,
		frameNumber: event.FrameNumber, frame: event.Frame,
		height: event.Image.Height, width: event.Image.Width,
	}
}

// computeWorker is the Operator's single compute lane (spec.md §5 "CPU-heavy
// Processor steps ... are dispatched to a worker pool"). One worker
// consuming a FIFO channel processes events in arrival order and keeps
// Result delivery ordered without extra bookkeeping.
func (o *Operator) computeWorker() {
	for job := range o.jobs {
		result := job.proc.ProcessEvent(job.frameNumber, job.frame, job.height, job.width)
		if result != nil {
			job.pub.Publish(pipeline.Message{Result: result})
		}
		o.wg.Done()
	}
}

func (o *Operator) handleStop(stop *wire.ScanStop) {
	if o.state != stateActive {
		return
	}
	o.wg.Wait()

	var timing []processor.TimingRow
	if o.proc != nil {
		timing = o.proc.Timing().Table()
	}
	o.pub.Publish(pipeline.Message{Stop: &pipeline.ResultStop{
		ScanName: o.scanName,
		Metadata: stop.Metadata,
		Timing:   timing,
	}})

	o.proc = nil
	o.scanName = ""
	o.fReset = 0
	o.state = stateIdle
}
