package compositor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdvanceVideoIsMonotonic(t *testing.T) {
	c := newPTSClock(30, 48000)
	assert.EqualValues(t, 0, c.AdvanceVideo())
	assert.EqualValues(t, 1, c.AdvanceVideo())
	assert.EqualValues(t, 2, c.AdvanceVideo())
}

func TestTargetAudioSamplesTracksVideoPTS(t *testing.T) {
	c := newPTSClock(30, 48000)
	c.AdvanceVideo() // video_pts = 1
	assert.EqualValues(t, 48000/30, c.TargetAudioSamples())
}

func TestAudioCaughtUp(t *testing.T) {
	c := newPTSClock(30, 48000)
	c.AdvanceVideo()
	assert.False(t, c.AudioCaughtUp())
	c.AdvanceAudio(int(c.TargetAudioSamples()))
	assert.True(t, c.AudioCaughtUp())
}

func TestAdvanceAudioAdvancesByFrameSizeOnly(t *testing.T) {
	c := newPTSClock(30, 48000)
	first := c.AdvanceAudio(960)
	second := c.AdvanceAudio(960)
	assert.EqualValues(t, 0, first)
	assert.EqualValues(t, 960, second)
	assert.EqualValues(t, 1920, c.AudioPTS())
}
