package processor

import (
	"github.com/als-computing/tr-ap-xps/peakfit"
	"github.com/als-computing/tr-ap-xps/spectral"
)

// Result is the per-shot-boundary output of a Processor (spec.md §4.3 step
// 9). IntegratedStack, PeakTable, VFFT and IFFT are independent copies:
// nothing here aliases Processor-owned storage.
type Result struct {
	FrameNumber     int
	IntegratedStack [][]float64
	PeakTable       peakfit.Table
	VFFT            [][]float64
	IFFT            [][]float64
	RowSum          []float64 // SPEC_FULL.md §C: VFFT summed along the energy axis
	NShots          int
	ShotRecent      []float64
	RollingMean     []float64
	RollingStd      []float64
}

// Options configures a Processor's numerical parameters, all sourced from
// config (spec.md §6 "the core consumes ... FFT repeat_factor, FFT width,
// peak count K, peak shape").
type Options struct {
	FReset       int
	PeakK        int
	PeakShape    peakfit.Shape
	RepeatFactor int
	Width        int
}

func (o Options) normalized() Options {
	if o.FReset <= 0 {
		o.FReset = 1
	}
	if o.PeakK <= 0 {
		o.PeakK = peakfit.DefaultK
	}
	return o
}

// Processor holds all per-scan numerical state: the accumulating
// IntegratedStack, the in-flight shot cache, rolling shot statistics and a
// timing ledger. A Processor is owned by exactly one Operator for the
// lifetime of one scan (spec.md §4.2, §4.3).
type Processor struct {
	opts   Options
	width  int
	stack  *IntegratedStack
	shots  *shotCache
	stats  *ShotStats
	timing *TimingLedger

	shotRecent []float64
}

// NewProcessor creates a Processor for a scan whose frames have the given
// width (the W / energy axis length from ScanStart's ImageInfo).
func NewProcessor(width int, opts Options) *Processor {
	opts = opts.normalized()
	return &Processor{
		opts:   opts,
		width:  width,
		stack:  NewIntegratedStack(width),
		shots:  newShotCache(width),
		stats:  NewShotStats(width),
		timing: NewTimingLedger(),
	}
}

// Timing exposes the processor's timing ledger, published in ResultStop
// once the parent scan stops.
func (p *Processor) Timing() *TimingLedger { return p.timing }

// ProcessEvent performs the per-event work, and on a shot boundary the
// shot-boundary work, returning a Result when one was produced (spec.md
// §4.3 steps 1-9). frame_number == 0 never produces a Result (SPEC_FULL.md
// §D, Open Question resolution #3): it only seeds the stack.
func (p *Processor) ProcessEvent(frameNumber int, frame []float64, height, width int) *Result {
	var line []float64
	p.timing.Time("integrate", func() {
		line = Integrate(frame, height, width)
	})
	p.stack.Append(line)
	p.shots.append(line)

	if frameNumber <= 0 || frameNumber%p.opts.FReset != 0 {
		p.timing.EndFrame()
		return nil
	}

	shotSum := p.shots.fold()
	nShots := p.stats.Update(shotSum)
	p.shotRecent = shotSum
	p.shots.reset()

	var table peakfit.Table
	p.timing.Time("peak_fit", func() {
		table = peakfit.Fit(p.stack.Latest(), p.opts.PeakK, p.opts.PeakShape)
	})

	snapshot := p.stack.Snapshot()

	var vfft, ifft [][]float64
	var rowSum []float64
	p.timing.Time("vfft", func() {
		vfft = spectral.VFFT(snapshot)
		rowSum = spectral.RowSum(vfft)
	})
	p.timing.Time("ifft", func() {
		ifft = spectral.IFFT(snapshot, spectral.Options{RepeatFactor: p.opts.RepeatFactor, Width: p.opts.Width})
	})

	result := &Result{
		FrameNumber:     frameNumber,
		IntegratedStack: snapshot,
		PeakTable:       table,
		VFFT:            vfft,
		IFFT:            ifft,
		RowSum:          rowSum,
		NShots:          nShots,
		ShotRecent:      append([]float64(nil), p.shotRecent...),
		RollingMean:     p.stats.Mean(),
		RollingStd:      p.stats.StdDev(),
	}
	p.timing.EndFrame()
	return result
}
