package wire

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// MinSupportedFileVer is the lowest detector wire-protocol version this
// decoder understands. ScanStart's optional "File Ver" field is compared
// against it; older detectors are still decoded (the field is optional and
// informational for every message type besides this gate) but logged.
var MinSupportedFileVer = version.Must(version.NewVersion("1.0.0"))

// CheckFileVersion reports whether the optional "File Ver" entry in a
// ScanStart's Extra metadata satisfies MinSupportedFileVer. A missing or
// unparseable field is not an error: older detector builds omit it
// entirely, and this check is advisory rather than a protocol requirement.
func CheckFileVersion(start *ScanStart) (ok bool, found string, err error) {
	raw, present := start.Extra["File Ver"]
	if !present {
		return true, "", nil
	}
	s, isString := raw.(string)
	if !isString {
		return true, fmt.Sprintf("%v", raw), nil
	}
	v, parseErr := version.NewVersion(s)
	if parseErr != nil {
		return true, s, fmt.Errorf("parse File Ver %q: %w", s, parseErr)
	}
	return v.GreaterThanOrEqual(MinSupportedFileVer), s, nil
}
