package encode

import (
	"encoding/binary"
	"math"
)

// putFloat32LE writes v into dst as 4 little-endian bytes.
func putFloat32LE(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}
