package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FrameSource yields the ordered sequence of framed messages from a single
// upstream socket. It never skips or reorders frames; only the Decoder
// interprets their contents.
type FrameSource interface {
	ReadFrame() ([]byte, error)
}

// LengthPrefixedReader reads frames as a 4-byte big-endian length prefix
// followed by that many payload bytes, the transport-agnostic framing this
// package assumes sits underneath the detector's ZMQ PUB/SUB compatible
// stream (spec.md §6).
type LengthPrefixedReader struct {
	r io.Reader
}

// NewLengthPrefixedReader wraps r as a FrameSource.
func NewLengthPrefixedReader(r io.Reader) *LengthPrefixedReader {
	return &LengthPrefixedReader{r: r}
}

// MaxFrameBytes bounds a single frame to guard against a corrupt length
// prefix turning a resync attempt into an unbounded allocation.
const MaxFrameBytes = 256 << 20

func (l *LengthPrefixedReader) ReadFrame() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(l.r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameBytes {
		return nil, fmt.Errorf("frame length %d exceeds maximum %d", n, MaxFrameBytes)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(l.r, buf); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return buf, nil
}
