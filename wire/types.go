// Package wire reconstructs typed scan messages from the detector's framed
// wire protocol: a JSON frame, optionally followed by one binary frame.
package wire

import (
	"encoding/json"
	"fmt"
)

// DType is the pixel element type declared by a scan's ScanStart message.
type DType string

const (
	DTypeU8     DType = "U8"
	DTypeU16    DType = "U16"
	DTypeU32    DType = "U32"
	DTypeU64    DType = "U64"
	DTypeI8     DType = "I8"
	DTypeI16    DType = "I16"
	DTypeI32    DType = "I32"
	DTypeI64    DType = "I64"
	DTypeSingle DType = "Single Float"
	DTypeDouble DType = "Double Float"
)

// ByteWidth returns the on-wire size in bytes of one pixel of this dtype.
func (d DType) ByteWidth() (int, error) {
	switch d {
	case DTypeU8, DTypeI8:
		return 1, nil
	case DTypeU16, DTypeI16:
		return 2, nil
	case DTypeU32, DTypeI32, DTypeSingle:
		return 4, nil
	case DTypeU64, DTypeI64, DTypeDouble:
		return 8, nil
	default:
		return 0, fmt.Errorf("unmapped dtype %q", string(d))
	}
}

// Rectangle is the detector's acquisition window on the CCD, as declared in
// ScanStart. Height is the angle axis, Width is the energy axis.
type Rectangle struct {
	Left     int `json:"Left"`
	Top      int `json:"Top"`
	Right    int `json:"Right"`
	Bottom   int `json:"Bottom"`
	Rotation int `json:"Rotation"`
}

// ImageInfo is derived once per scan from ScanStart and handed unchanged to
// every RawEvent produced for that scan.
type ImageInfo struct {
	Height int
	Width  int
	DType  DType
}

// PixelCount returns the number of pixels implied by the rectangle.
func (r Rectangle) PixelCount() int {
	return (r.Bottom - r.Top) * (r.Right - r.Left)
}

// ScanStart announces scan geometry and optional instrument metadata.
type ScanStart struct {
	ScanName  string    `json:"scan_name"`
	DataType  DType     `json:"data_type"`
	FReset    int       `json:"F_Reset"`
	Rectangle Rectangle `json:"Rectangle"`

	// Optional instrument metadata, passed through verbatim to sinks.
	Extra map[string]any `json:"-"`

	Image ImageInfo `json:"-"`
}

// RawEvent carries one raw 2-D detector frame, already decoded from its
// trailing binary blob into host-native form.
type RawEvent struct {
	FrameNumber int
	Image       ImageInfo
	// Frame is row-major, Height rows of Width float64 samples, upconverted
	// from the declared dtype. Processing always happens on f64.
	Frame []float64
}

// ScanStop closes a scan. Metadata is optional and inconsistent across
// detector variants, so it is carried as an untyped bag (see SPEC_FULL.md,
// Open Question resolution #2).
type ScanStop struct {
	Metadata map[string]any
}

// MarshalJSON flattens Extra alongside the declared fields, so a sink that
// forwards ScanStart to a downstream consumer (e.g. the WebSocket sink's
// start notice) sees the full instrument metadata bag, not just geometry.
func (s ScanStart) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"scan_name": s.ScanName,
		"data_type": s.DataType,
		"F_Reset":   s.FReset,
		"Rectangle": s.Rectangle,
	}
	for k, v := range s.Extra {
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// Message is the closed sum type over {ScanStart, RawEvent, ScanStop}
// produced by the Decoder. Exactly one concrete field is non-nil.
type Message struct {
	Start *ScanStart
	Event *RawEvent
	Stop  *ScanStop
}
