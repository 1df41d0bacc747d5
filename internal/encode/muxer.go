package encode

import (
	"fmt"
	"io"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"
)

const (
	videoPID = 0x0100
	audioPID = 0x0101

	// mpegTSClockHz is the fixed 90 kHz clock every PTS/DTS value on the
	// wire is expressed in, independent of the encoder's own time base.
	mpegTSClockHz = 90000
)

// tsWriter adapts io.Writer to the mpegts package's Writer interface.
type tsWriter struct {
	w io.Writer
}

func (t tsWriter) Write(p []byte) (int, error) { return t.w.Write(p) }

// muxer wraps a mediacommon MPEG-TS writer fixed to a single H.264 video
// track and a single AAC (MPEG-4 audio) track — the only codec pair this
// module ever produces: output codec and container are fixed by
// configuration, with no dynamic switching. Trimmed of the
// H.265/AC-3/E-AC-3/Opus/MPEG-1 branches a general-purpose relay muxer
// would carry.
type muxer struct {
	w           *mpegts.Writer
	videoTrack  *mpegts.Track
	audioTrack  *mpegts.Track
	params      *paramHelper
	audioConfig *mpeg4audio.Config

	// fps and sampleRate are the encoder's own PTS units (frame counts and
	// sample counts respectively); every PTS handed to WriteVideo/WriteAudio
	// is in one of these, and must be rescaled to the 90 kHz TS clock
	// before it reaches the mpegts.Writer.
	fps        int
	sampleRate int
}

// newMuxer builds a muxer writing into dst. It always declares both the
// video and the audio track: even a primary source with no audio stream
// is output with an audio track, filled by the audio-mode policy.
func newMuxer(dst io.Writer, fps, sampleRate, channels int) (*muxer, error) {
	videoTrack := &mpegts.Track{PID: videoPID, Codec: &mpegts.CodecH264{}}

	audioConfig := &mpeg4audio.Config{
		Type:         mpeg4audio.ObjectTypeAACLC,
		SampleRate:   sampleRate,
		ChannelCount: channels,
	}
	audioTrack := &mpegts.Track{PID: audioPID, Codec: &mpegts.CodecMPEG4Audio{Config: *audioConfig}}

	w := &mpegts.Writer{W: tsWriter{dst}, Tracks: []*mpegts.Track{videoTrack, audioTrack}}
	if err := w.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing TS writer: %w", err)
	}

	return &muxer{
		w:           w,
		videoTrack:  videoTrack,
		audioTrack:  audioTrack,
		params:      newParamHelper(),
		audioConfig: audioConfig,
		fps:         fps,
		sampleRate:  sampleRate,
	}, nil
}

// toTSClock rescales a PTS given in units-per-second ticks (fps for video
// frame counts, sampleRate for audio sample counts) onto the fixed 90 kHz
// MPEG-TS clock every mpegts.Writer call expects.
func toTSClock(pts int64, unitsPerSecond int) int64 {
	return pts * mpegTSClockHz / int64(unitsPerSecond)
}

// WriteVideo muxes one encoded Annex-B video access unit (possibly several
// NALs) at the given PTS (in encoder frame-count units), prepending cached
// SPS/PPS ahead of keyframes.
func (m *muxer) WriteVideo(pts int64, annexB []byte) error {
	nalus := splitAnnexB(annexB)
	nalus = m.params.PrependToKeyframe(nalus)
	tsPTS := toTSClock(pts, m.fps)
	return m.w.WriteH264(m.videoTrack, tsPTS, tsPTS, nalus)
}

// WriteAudio muxes one raw AAC access unit at the given PTS (in encoder
// sample-count units).
func (m *muxer) WriteAudio(pts int64, au []byte) error {
	tsPTS := toTSClock(pts, m.sampleRate)
	return m.w.WriteMPEG4Audio(m.audioTrack, tsPTS, [][]byte{au})
}
