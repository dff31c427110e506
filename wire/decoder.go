package wire

import (
	"errors"
	"fmt"
	"io"
	"log"
)

// mode is the Decoder's small internal register driving the §4.1
// IDLE -> ARMED -> AWAITING_BLOB -> ARMED resynchronization loop.
type mode int

const (
	modeIdle mode = iota
	modeArmed
	modeAwaitingBlob
)

// Decoder reconstructs typed Messages from a single upstream FrameSource.
// It never skips or reorders accepted messages; a malformed framing
// sequence is a recoverable error that discards the offending frame and
// resynchronizes on the next JSON-parseable frame (spec.md §4.1, §7).
type Decoder struct {
	src FrameSource

	state     mode
	imageInfo ImageInfo
	pendingFN int
}

// NewDecoder constructs a Decoder reading from src.
func NewDecoder(src FrameSource) *Decoder {
	return &Decoder{src: src, state: modeIdle}
}

// Next blocks for and returns the next accepted Message. It returns a
// non-nil error only for socket-level failures (io.EOF included); protocol
// errors are logged and absorbed internally, continuing the read loop.
func (d *Decoder) Next() (Message, error) {
	for {
		frame, err := d.src.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Message{}, io.EOF
			}
			return Message{}, fmt.Errorf("decoder read: %w", err)
		}

		if d.state == modeAwaitingBlob {
			msg, ok, err := d.consumeBlob(frame)
			d.state = modeArmed
			if err != nil {
				log.Printf("wire: discarding malformed binary frame: %v", err)
				continue
			}
			if ok {
				return msg, nil
			}
			log.Printf("wire: event frame_number=%d arrived without its binary frame; resyncing on the JSON frame", d.pendingFN)
		}

		msgType, err := msgTypeOf(frame)
		if err != nil {
			log.Printf("wire: discarding unparseable frame: %v", err)
			continue
		}

		switch msgType {
		case "start":
			start, err := decodeScanStart(frame)
			if err != nil {
				log.Printf("wire: discarding malformed start frame: %v", err)
				continue
			}
			if ok, found, verErr := CheckFileVersion(start); verErr != nil {
				log.Printf("wire: start frame File Ver %q did not parse: %v", found, verErr)
			} else if !ok {
				log.Printf("wire: start frame File Ver %s is below the minimum supported version %s", found, MinSupportedFileVer)
			}
			d.imageInfo = start.Image
			d.state = modeArmed
			return Message{Start: start}, nil

		case "event":
			env, err := decodeEventEnvelope(frame)
			if err != nil {
				log.Printf("wire: discarding malformed event frame: %v", err)
				continue
			}
			if d.state == modeIdle {
				log.Printf("wire: dropping event frame_number=%d received outside an active scan", env.FrameNumber)
				continue
			}
			d.pendingFN = env.FrameNumber
			d.state = modeAwaitingBlob
			continue

		case "stop":
			stop, err := decodeStop(frame)
			if err != nil {
				log.Printf("wire: discarding malformed stop frame: %v", err)
				continue
			}
			d.state = modeIdle
			return Message{Stop: stop}, nil

		default:
			log.Printf("wire: discarding frame with unknown msg_type %q", msgType)
			continue
		}
	}
}

// consumeBlob interprets frame as the binary pixel payload following an
// "event" JSON frame. ok is false only when frame itself turned out to be
// another JSON frame rather than the expected blob (a sender that skipped
// the blob); in that case the caller should resync without consuming an
// extra frame from the wire.
func (d *Decoder) consumeBlob(frame []byte) (Message, bool, error) {
	count := d.imageInfo.Height * d.imageInfo.Width
	pixels, err := decodePixels(frame, d.imageInfo.DType, count)
	if err != nil {
		if _, jsonErr := msgTypeOf(frame); jsonErr == nil {
			return Message{}, false, nil
		}
		return Message{}, false, err
	}
	return Message{Event: &RawEvent{
		FrameNumber: d.pendingFN,
		Image:       d.imageInfo,
		Frame:       pixels,
	}}, true, nil
}
