package encode

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPutFloat32LERoundTrips(t *testing.T) {
	buf := make([]byte, 4)
	putFloat32LE(buf, 0.5)

	var got float32
	got = math.Float32frombits(uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24)
	assert.Equal(t, float32(0.5), got)
}
