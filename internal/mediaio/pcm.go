package mediaio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// decodeFloat32LE reinterprets raw is a packed little-endian float32 PCM
// buffer (the format the resampler in source.go is configured to produce)
// into the caller-supplied out slice.
func decodeFloat32LE(raw []byte, out []float32) error {
	need := len(out) * 4
	if len(raw) < need {
		return fmt.Errorf("short PCM buffer: have %d bytes, need %d", len(raw), need)
	}
	for i := range out {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return nil
}
