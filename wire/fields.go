package wire

import (
	"encoding/json"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// knownStartFields lists the start envelope's validated fields, spelled as
// the detector emits them. Anything else in the
// JSON object is passed through as Extra metadata rather than dropped,
// mirroring original_source/schemas.py's treatment of unlisted metadata.
var knownStartFields = map[string]bool{
	"msg_type":  true,
	"scan_name": true,
	"data_type": true,
	"F_Reset":   true,
	"Rectangle": true,
}

// normalizeFieldName case-folds a detector field name for tolerant lookups
// (e.g. "frame number" vs "Frame Number"); the canonical stored key is
// always the detector's own spelling.
var titleCaser = cases.Title(language.English)

func normalizeFieldName(name string) string {
	return titleCaser.String(name)
}

// rawStartEnvelope mirrors the wire shape of a "start" message before
// splitting it into the validated ScanStart and its passthrough Extra bag.
type rawStartEnvelope struct {
	MsgType   string         `json:"msg_type"`
	ScanName  string         `json:"scan_name"`
	DataType  DType          `json:"data_type"`
	FReset    int            `json:"F_Reset"`
	Rectangle Rectangle      `json:"Rectangle"`
	Raw       map[string]any `json:"-"`
}

func decodeScanStart(payload []byte) (*ScanStart, error) {
	var generic map[string]any
	if err := json.Unmarshal(payload, &generic); err != nil {
		return nil, fmt.Errorf("decode start envelope: %w", err)
	}

	var env rawStartEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode start fields: %w", err)
	}
	if env.ScanName == "" {
		return nil, fmt.Errorf("start message missing required field scan_name")
	}
	if env.FReset <= 0 {
		return nil, fmt.Errorf("start message F_Reset must be a positive integer, got %d", env.FReset)
	}
	if _, err := env.DataType.ByteWidth(); err != nil {
		return nil, fmt.Errorf("start message data_type: %w", err)
	}

	extra := make(map[string]any, len(generic))
	for k, v := range generic {
		if !knownStartFields[normalizeFieldName(k)] && !knownStartFields[k] {
			extra[k] = v
		}
	}

	height := env.Rectangle.Bottom - env.Rectangle.Top
	width := env.Rectangle.Right - env.Rectangle.Left
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("start message rectangle implies non-positive dimensions (h=%d w=%d)", height, width)
	}

	return &ScanStart{
		ScanName:  env.ScanName,
		DataType:  env.DataType,
		FReset:    env.FReset,
		Rectangle: env.Rectangle,
		Extra:     extra,
		Image: ImageInfo{
			Height: height,
			Width:  width,
			DType:  env.DataType,
		},
	}, nil
}

// eventEnvelope is the JSON frame preceding an event's binary blob.
type eventEnvelope struct {
	MsgType     string `json:"msg_type"`
	FrameNumber int    `json:"Frame Number"`
}

func decodeEventEnvelope(payload []byte) (*eventEnvelope, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	if env.FrameNumber < 0 {
		return nil, fmt.Errorf("event Frame Number must be non-negative, got %d", env.FrameNumber)
	}
	return &env, nil
}

// stopEnvelope is the standalone JSON frame for "stop" messages. Its
// metadata sub-object is optional and its schema varies across detector
// variants (SPEC_FULL.md Open Question resolution #2), so it decodes into
// an untyped bag.
type stopEnvelope struct {
	MsgType  string         `json:"msg_type"`
	Metadata map[string]any `json:"metadata"`
}

func decodeStop(payload []byte) (*ScanStop, error) {
	var env stopEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode stop envelope: %w", err)
	}
	return &ScanStop{Metadata: env.Metadata}, nil
}

// msgTypeOf extracts only the "msg_type" discriminator from a JSON frame,
// without validating the remainder of the payload.
func msgTypeOf(payload []byte) (string, error) {
	var probe struct {
		MsgType string `json:"msg_type"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return "", fmt.Errorf("decode msg_type: %w", err)
	}
	if probe.MsgType == "" {
		return "", fmt.Errorf("frame missing required field msg_type")
	}
	return probe.MsgType, nil
}
