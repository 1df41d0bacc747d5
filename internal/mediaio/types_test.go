package mediaio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVideoFrameCloneIsDeep(t *testing.T) {
	orig := VideoFrame{
		Geometry: Geometry{Width: 4, Height: 2},
		Planes:   [][]byte{{1, 2, 3}},
		Linesize: []int{3},
	}
	clone := orig.Clone()
	clone.Planes[0][0] = 99

	assert.Equal(t, byte(1), orig.Planes[0][0])
	assert.Equal(t, byte(99), clone.Planes[0][0])
	assert.Equal(t, orig.Geometry, clone.Geometry)
}

func TestAudioSamplesNumFrames(t *testing.T) {
	a := AudioSamples{Interleaved: make([]float32, 960), Channels: 2}
	assert.Equal(t, 480, a.NumFrames())
}

func TestAudioSamplesNumFramesZeroChannels(t *testing.T) {
	a := AudioSamples{Interleaved: make([]float32, 10), Channels: 0}
	assert.Equal(t, 0, a.NumFrames())
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "file", File.String())
	assert.Equal(t, "network", Network.String())
}
