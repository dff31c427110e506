package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// decodePixels converts a big-endian binary pixel buffer of the given
// dtype into host-native f64 samples. All downstream processing (spec.md
// §4.3 step 1) operates on f64, so the conversion happens once here.
func decodePixels(buf []byte, dtype DType, count int) ([]float64, error) {
	width, err := dtype.ByteWidth()
	if err != nil {
		return nil, err
	}
	if len(buf) != width*count {
		return nil, fmt.Errorf("blob size mismatch: got %d bytes, want %d (count=%d, dtype=%s)",
			len(buf), width*count, count, dtype)
	}

	out := make([]float64, count)
	switch dtype {
	case DTypeU8:
		for i := 0; i < count; i++ {
			out[i] = float64(buf[i])
		}
	case DTypeI8:
		for i := 0; i < count; i++ {
			out[i] = float64(int8(buf[i]))
		}
	case DTypeU16:
		for i := 0; i < count; i++ {
			out[i] = float64(binary.BigEndian.Uint16(buf[i*2:]))
		}
	case DTypeI16:
		for i := 0; i < count; i++ {
			out[i] = float64(int16(binary.BigEndian.Uint16(buf[i*2:])))
		}
	case DTypeU32:
		for i := 0; i < count; i++ {
			out[i] = float64(binary.BigEndian.Uint32(buf[i*4:]))
		}
	case DTypeI32:
		for i := 0; i < count; i++ {
			out[i] = float64(int32(binary.BigEndian.Uint32(buf[i*4:])))
		}
	case DTypeSingle:
		for i := 0; i < count; i++ {
			out[i] = float64(math.Float32frombits(binary.BigEndian.Uint32(buf[i*4:])))
		}
	case DTypeU64:
		for i := 0; i < count; i++ {
			out[i] = float64(binary.BigEndian.Uint64(buf[i*8:]))
		}
	case DTypeI64:
		for i := 0; i < count; i++ {
			out[i] = float64(int64(binary.BigEndian.Uint64(buf[i*8:])))
		}
	case DTypeDouble:
		for i := 0; i < count; i++ {
			out[i] = math.Float64frombits(binary.BigEndian.Uint64(buf[i*8:]))
		}
	default:
		return nil, fmt.Errorf("unmapped dtype %q", string(dtype))
	}
	return out, nil
}
