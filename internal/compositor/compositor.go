// Package compositor implements the single paced tick loop that reads
// from the local fallback source and the primary handoff buffer, selects
// one video frame and an audio mode per tick, and drives the encoder at a
// fixed cadence.
package compositor

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jmylchreest/avfailover/internal/encode"
	"github.com/jmylchreest/avfailover/internal/events"
	"github.com/jmylchreest/avfailover/internal/handoff"
	"github.com/jmylchreest/avfailover/internal/mediaio"
)

// maxFallbackReadsPerTick bounds how many packets the fallback decode pump
// will consume while hunting for the tick's video frame, so a fallback
// file with a pathological stream layout can never hang a tick.
const maxFallbackReadsPerTick = 256

// videoSource names which side fed the frame most recently emitted, used
// only to decide whether a video_primary/video_fallback event is due.
type videoSource int

const (
	videoSourceNone videoSource = iota
	videoSourcePrimary
	videoSourceFallback
)

// Config fixes the compositor's cadence and buffer sizing for its whole
// lifetime; it is never mutated after construction.
type Config struct {
	FPS          int
	SampleRate   int
	Channels     int
	GracePeriod  time.Duration
	JitterBudget time.Duration
}

// Compositor owns the single execution context of the tick loop:
// everything here is touched from exactly one goroutine, the one
// running Run.
type Compositor struct {
	cfg Config

	fallback *mediaio.Source
	buffer   *handoff.Buffer
	enc      *encode.Encoder
	sink     *events.Sink
	cancel   *events.Cancel
	logger   *slog.Logger

	pts  *ptsClock
	mode *audioModeMachine

	primaryLocalQueue *sampleQueue
	fallbackQueue     *sampleQueue

	frameSize          int
	jitterBudgetFrames int

	lastVideoFrame  mediaio.VideoFrame
	haveLastVideo   bool
	lastVideoSource videoSource
}

// New wires a Compositor. fallback must already be open; buffer, enc,
// sink and cancel are the shared collaborators the ingestion worker and
// the app wiring also hold.
func New(fallback *mediaio.Source, buffer *handoff.Buffer, enc *encode.Encoder, sink *events.Sink, cancel *events.Cancel, logger *slog.Logger, cfg Config) *Compositor {
	c := &Compositor{
		cfg:               cfg,
		fallback:          fallback,
		buffer:            buffer,
		enc:               enc,
		sink:              sink,
		cancel:            cancel,
		logger:            logger,
		pts:               newPTSClock(cfg.FPS, cfg.SampleRate),
		primaryLocalQueue: newSampleQueue(cfg.Channels),
		fallbackQueue:     newSampleQueue(cfg.Channels),
		frameSize:         enc.FrameSize(),
		lastVideoSource:   videoSourceNone,
	}
	c.jitterBudgetFrames = int(cfg.JitterBudget.Seconds() * float64(cfg.SampleRate))
	c.mode = newAudioModeMachine(cfg.GracePeriod, c.onEnterPrimary, c.onEnterGrace)
	c.mode.onEnterFallback = c.onEnterFallback
	return c
}

func (c *Compositor) onEnterPrimary() {
	c.fallbackQueue.Clear()
	c.sink.PrimaryActive()
}

func (c *Compositor) onEnterGrace() {
	c.fallbackQueue.Clear()
	c.primaryLocalQueue.Clear()
	c.sink.GraceEntered()
}

func (c *Compositor) onEnterFallback() {
	c.sink.FallbackAudioOn()
}

// Run drives the tick loop until cancel is requested or a fatal error
// occurs. Fatal errors here are always KindEncode/KindSinkWrite/
// KindFallbackRead: primary-side failures never reach this loop, they
// only ever change what TryTakeVideo returns.
func (c *Compositor) Run() error {
	tickInterval := time.Second / time.Duration(c.cfg.FPS)
	for !c.cancel.Requested() {
		tickStart := time.Now()
		if err := c.tick(); err != nil {
			return err
		}
		// Sleep only if there's time left in the tick budget. If the tick
		// ran long, the next tick starts immediately — no frame is ever
		// dropped or doubled to compensate.
		if sleep := tickInterval - time.Since(tickStart); sleep > 0 {
			time.Sleep(sleep)
		}
	}
	return nil
}

func (c *Compositor) tick() error {
	fallbackVideo, err := c.pumpFallback()
	if err != nil {
		return err
	}

	var primaryFrame mediaio.VideoFrame
	primaryAvailable := c.buffer.TryTakeVideo(&primaryFrame)

	if err := c.selectAndEmitVideo(primaryAvailable, primaryFrame, fallbackVideo); err != nil {
		return err
	}

	c.mode.step(primaryAvailable, time.Now())

	if c.mode.mode == Primary {
		if drained := c.buffer.DrainAudio(); len(drained) > 0 {
			c.primaryLocalQueue.Push(drained)
		}
		c.primaryLocalQueue.TrimOldest(c.jitterBudgetFrames)
	}

	if err := c.emitAudioUntilCaughtUp(); err != nil {
		return err
	}

	if c.cfg.FPS > 0 && c.pts.VideoPTS()%int64(c.cfg.FPS) == 0 {
		c.sink.StatsEvent(events.StatsSnapshot{
			FPS:              c.cfg.FPS,
			PrimaryConnected: c.buffer.Connected(),
			AudioMode:        c.mode.mode.String(),
		})
	}

	return nil
}

// pumpFallback reads from the local loop until it produces a video frame,
// looping the file on end-of-stream, and queues any audio it encounters
// along the way. It returns nil, nil if the fallback never produced a
// video frame within the per-tick read budget — the tick will then fall
// through to frame repetition.
func (c *Compositor) pumpFallback() (*mediaio.VideoFrame, error) {
	for reads := 0; reads < maxFallbackReadsPerTick; reads++ {
		vf, as, err := c.fallback.ReadOne()
		if err != nil {
			if errors.Is(err, mediaio.ErrEndOfStream) {
				if resetErr := c.fallback.LoopReset(); resetErr != nil {
					return nil, &Error{Kind: KindFallbackRead, Msg: "looping fallback source", Err: resetErr}
				}
				continue
			}
			return nil, &Error{Kind: KindFallbackRead, Msg: "reading fallback source", Err: err}
		}
		if as != nil {
			c.fallbackQueue.Push(as.Interleaved)
		}
		if vf != nil {
			return vf, nil
		}
	}
	return nil, nil
}

// selectAndEmitVideo picks primary video whenever available, otherwise a
// freshly decoded fallback frame, otherwise the last frame emitted (frame
// repetition). video_pts advances exactly once per tick regardless of
// which source fed the frame.
func (c *Compositor) selectAndEmitVideo(primaryAvailable bool, primaryFrame mediaio.VideoFrame, fallbackVideo *mediaio.VideoFrame) error {
	var frame mediaio.VideoFrame
	source := videoSourceNone

	switch {
	case primaryAvailable:
		frame = primaryFrame
		source = videoSourcePrimary
	case fallbackVideo != nil:
		frame = *fallbackVideo
		source = videoSourceFallback
	case c.haveLastVideo:
		frame = c.lastVideoFrame
		source = videoSourceFallback
	default:
		return nil
	}

	c.lastVideoFrame = frame
	c.haveLastVideo = true

	pts := c.pts.AdvanceVideo()
	if err := c.enc.EncodeVideo(frame.Planes, frame.Linesize, pts); err != nil {
		return &Error{Kind: KindEncode, Msg: "encoding video frame", Err: err}
	}

	if source != c.lastVideoSource {
		if source == videoSourcePrimary {
			c.sink.VideoPrimary()
		} else {
			c.sink.VideoFallback()
		}
		c.lastVideoSource = source
	}
	return nil
}

// emitAudioUntilCaughtUp keeps emitting encoder-sized audio frames, one
// mode-dependent branch at a time, until audio_pts has caught up to the
// target implied by the video_pts this tick just set.
func (c *Compositor) emitAudioUntilCaughtUp() error {
	for !c.pts.AudioCaughtUp() {
		var frame []float32

		switch c.mode.mode {
		case Primary:
			if c.primaryLocalQueue.FrameCount() < c.frameSize {
				return nil
			}
			frame = c.primaryLocalQueue.PopFrame(c.frameSize)
		case Grace:
			frame = make([]float32, c.frameSize*c.cfg.Channels)
			c.primaryLocalQueue.Clear()
			c.fallbackQueue.Clear()
		default: // Fallback
			if c.fallbackQueue.FrameCount() >= c.frameSize {
				frame = c.fallbackQueue.PopFrame(c.frameSize)
			} else {
				frame = c.fallbackQueue.PopAvailableZeroPadded(c.frameSize)
			}
		}

		pts := c.pts.AdvanceAudio(c.frameSize)
		if err := c.enc.EncodeAudio(frame, pts); err != nil {
			return &Error{Kind: KindEncode, Msg: "encoding audio frame", Err: err}
		}
	}
	return nil
}
