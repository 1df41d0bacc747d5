package handoff

import (
	"testing"

	"github.com/jmylchreest/avfailover/internal/mediaio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryTakeVideoRequiresConnectedAndHasVideo(t *testing.T) {
	b := New(1000)
	var dst mediaio.VideoFrame

	assert.False(t, b.TryTakeVideo(&dst))

	b.MarkConnected(true)
	assert.False(t, b.TryTakeVideo(&dst))

	frame := mediaio.VideoFrame{Geometry: mediaio.Geometry{Width: 2, Height: 2}}
	b.PublishVideo(frame)
	ok := b.TryTakeVideo(&dst)
	require.True(t, ok)
	assert.Equal(t, frame.Geometry, dst.Geometry)
}

func TestTryTakeVideoDoesNotClearHasVideo(t *testing.T) {
	b := New(1000)
	b.MarkConnected(true)
	b.PublishVideo(mediaio.VideoFrame{Geometry: mediaio.Geometry{Width: 1, Height: 1}})

	var dst mediaio.VideoFrame
	require.True(t, b.TryTakeVideo(&dst))
	require.True(t, b.TryTakeVideo(&dst), "has_video must not be cleared on read (frame repetition)")
}

func TestMarkConnectedFalseClearsVideoAndAudio(t *testing.T) {
	b := New(1000)
	b.MarkConnected(true)
	b.PublishVideo(mediaio.VideoFrame{Geometry: mediaio.Geometry{Width: 1, Height: 1}})
	b.PublishAudio([]float32{1, 2, 3, 4})

	b.MarkConnected(false)

	var dst mediaio.VideoFrame
	assert.False(t, b.TryTakeVideo(&dst))
	assert.Empty(t, b.DrainAudio())
}

func TestPublishAudioDropsOldestOnOverflow(t *testing.T) {
	b := New(4)
	b.PublishAudio([]float32{1, 2, 3})
	b.PublishAudio([]float32{4, 5, 6})

	got := b.DrainAudio()
	assert.Equal(t, []float32{3, 4, 5, 6}, got)
}

func TestDrainAudioEmptiesQueue(t *testing.T) {
	b := New(100)
	b.PublishAudio([]float32{1, 2})
	first := b.DrainAudio()
	assert.Equal(t, []float32{1, 2}, first)
	assert.Empty(t, b.DrainAudio())
}

func TestLastActivityAgeAdvancesOnPublish(t *testing.T) {
	b := New(100)
	b.PublishAudio([]float32{1})
	assert.Less(t, b.LastActivityAge().Nanoseconds(), int64(1e9))
}
