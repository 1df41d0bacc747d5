package mediaio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFloat32LE(t *testing.T) {
	want := []float32{0, 0.5, -0.25, 1}
	raw := make([]byte, len(want)*4)
	for i, v := range want {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}

	got := make([]float32, len(want))
	require.NoError(t, decodeFloat32LE(raw, got))
	assert.Equal(t, want, got)
}

func TestDecodeFloat32LEShortBuffer(t *testing.T) {
	out := make([]float32, 4)
	err := decodeFloat32LE([]byte{0, 1, 2}, out)
	assert.Error(t, err)
}
