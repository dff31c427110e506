// Package pipeline defines the message types and Publisher contract shared
// between the Operator, the fan-out Publisher and the Sinks (spec.md §4.4).
package pipeline

import (
	"github.com/als-computing/tr-ap-xps/processor"
	"github.com/als-computing/tr-ap-xps/wire"
)

// ResultStop carries the scan's accumulated per-stage timing table and any
// stop metadata, published once a scan ends (spec.md §4.2, §4.3 "Timing").
type ResultStop struct {
	ScanName string
	Metadata map[string]any
	Timing   []processor.TimingRow
}

// Message is the sum type flowing through the fan-out: exactly one of
// Start, Result or Stop is non-nil (spec.md §4.4 "Publishing is atomic
// per-message").
type Message struct {
	Start  *wire.ScanStart
	Result *processor.Result
	Stop   *ResultStop
}

// Publisher receives every Message published by the Operator, in order.
// Queueing and backpressure policy live on the Publisher side (spec.md
// §4.4); whether Publish can block the Operator depends on that policy.
type Publisher interface {
	Publish(Message)
}
