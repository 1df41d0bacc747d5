package compositor

// ptsClock tracks the two monotonic PTS counters: video_pts in frame
// units, audio_pts in sample units. It does not bound one by the other:
// AudioCaughtUp is true once audio_pts ≥ video_pts × sample_rate / fps,
// so a caller emitting whole audio frames until caught up leaves
// audio_pts at that target or past it by less than one frame.
type ptsClock struct {
	fps        int
	sampleRate int

	videoPTS int64
	audioPTS int64
}

func newPTSClock(fps, sampleRate int) *ptsClock {
	return &ptsClock{fps: fps, sampleRate: sampleRate}
}

// AdvanceVideo increments video_pts and returns the PTS the frame just
// emitted should carry.
func (c *ptsClock) AdvanceVideo() int64 {
	pts := c.videoPTS
	c.videoPTS++
	return pts
}

// TargetAudioSamples computes video_pts × sample_rate / fps.
func (c *ptsClock) TargetAudioSamples() int64 {
	return c.videoPTS * int64(c.sampleRate) / int64(c.fps)
}

// AudioCaughtUp reports whether audio_pts has reached the target for the
// current video_pts.
func (c *ptsClock) AudioCaughtUp() bool {
	return c.audioPTS >= c.TargetAudioSamples()
}

// AdvanceAudio returns the PTS the next audio frame should carry, then
// advances audio_pts by frameSize samples.
func (c *ptsClock) AdvanceAudio(frameSize int) int64 {
	pts := c.audioPTS
	c.audioPTS += int64(frameSize)
	return pts
}

// VideoPTS returns the current video_pts (frames emitted so far).
func (c *ptsClock) VideoPTS() int64 { return c.videoPTS }

// AudioPTS returns the current audio_pts (samples emitted so far).
func (c *ptsClock) AudioPTS() int64 { return c.audioPTS }
