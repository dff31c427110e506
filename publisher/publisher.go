// Package publisher implements the per-subscriber bounded-queue fan-out
// described in spec.md §4.4: the Operator publishes once, and each
// registered sink receives every message through its own queue with its
// own backpressure policy.
package publisher

import (
	"log/slog"
	"sync"

	"github.com/als-computing/tr-ap-xps/pipeline"
)

// Sink is anything a Publisher can deliver a pipeline.Message to. Deliver
// must not block for long; a Publisher's own queue absorbs bursts, but a
// Sink that hangs forever will eventually back the queue up.
type Sink interface {
	Deliver(pipeline.Message)
}

// queueItem pairs a message with whether it is droppable under backpressure.
type queueItem struct {
	msg       pipeline.Message
	droppable bool
}

// FanOut is the Operator-facing Publisher (pipeline.Publisher). It holds a
// set of per-sink queues and workers. Publishing a Result never blocks;
// publishing a ScanStart or ScanStop blocks while any subscriber's queue is
// full (see Publish).
type FanOut struct {
	mu   sync.RWMutex
	subs []*subscriber
	log  *slog.Logger
}

// New creates an empty fan-out publisher.
func New(log *slog.Logger) *FanOut {
	if log == nil {
		log = slog.Default()
	}
	return &FanOut{log: log}
}

// Register adds a Sink with the given queue capacity and starts its
// drain worker. Must be called before the pipeline starts publishing.
func (f *FanOut) Register(name string, sink Sink, capacity int) {
	if capacity <= 0 {
		capacity = 1
	}
	sub := &subscriber{
		name:  name,
		sink:  sink,
		queue: make(chan queueItem, capacity),
		log:   f.log,
	}
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	go sub.run()
}

// Publish implements pipeline.Publisher. Every registered subscriber
// receives the message through its own queue, offered to subscribers in
// registration order. A Result offered to a full queue displaces the oldest
// queued Result, so Results never block. A ScanStart or ScanStop is never
// dropped: offered to a full queue it waits for that subscriber's worker to
// make room, which blocks the caller and delays delivery to the
// subscribers after it.
func (f *FanOut) Publish(msg pipeline.Message) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	droppable := msg.Result != nil
	for _, sub := range f.subs {
		sub.offer(queueItem{msg: msg, droppable: droppable})
	}
}

// subscriber owns one Sink's queue and drain worker.
type subscriber struct {
	name  string
	sink  Sink
	queue chan queueItem
	log   *slog.Logger
}

// offer enqueues msg, applying drop-oldest backpressure for droppable
// (Result) messages; ScanStart/ScanStop are never dropped (spec.md §4.4).
func (s *subscriber) offer(item queueItem) {
	if !item.droppable {
		s.queue <- item
		return
	}
	select {
	case s.queue <- item:
	default:
		select {
		case dropped := <-s.queue:
			_ = dropped
			s.log.Warn("publisher queue full, dropping oldest result", "sink", s.name)
		default:
		}
		select {
		case s.queue <- item:
		default:
			s.log.Warn("publisher queue still full after drop, discarding result", "sink", s.name)
		}
	}
}

func (s *subscriber) run() {
	for item := range s.queue {
		s.sink.Deliver(item.msg)
	}
}
