package mediaio

import (
	"fmt"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/jmylchreest/avfailover/internal/events"
)

// networkDictOptions are the low-delay, nonbuffering hints required
// for NETWORK mode: short analysis windows, no input buffering, and a
// demuxer-level stall timeout so a dead remote doesn't hang the open.
// Grounded on e1z0-QAnotherRTSP/src/video.go's openAndDecode dictionary.
func networkDictOptions(openTimeout time.Duration) map[string]string {
	return map[string]string{
		"rtsp_transport":              "tcp",
		"buffer_size":                 "1048576",
		"flags":                       "+low_delay",
		"fflags":                      "+nobuffer+discardcorrupt+genpts",
		"max_delay":                   "500000",
		"use_wallclock_as_timestamps": "1",
		"reorder_queue_size":          "0",
		"stimeout":                    fmt.Sprintf("%d", openTimeout.Microseconds()),
	}
}

// Source is the concrete façade over one astiav-backed media container, in
// either File or Network mode. A Source is used on exactly one
// goroutine for its whole lifetime.
type Source struct {
	mode   Mode
	url    string
	cancel *events.Cancel

	// readDeadline bounds how long a single blocking ReadFrame call may
	// run once steady-state reading has begun; zero means unbounded.
	// ExtendReadDeadline is the only way to move it, so a caller not
	// driving a stall timer (the fallback source) never sets it. timedOut
	// records whether the interrupt callback fired because of the
	// deadline rather than cancellation, so ReadOne can tell the two
	// apart.
	readDeadline time.Time
	timedOut     bool

	fmtCtx *astiav.FormatContext

	videoStreamIndex int
	audioStreamIndex int
	videoCodecCtx    *astiav.CodecContext
	audioCodecCtx    *astiav.CodecContext

	decFrame *astiav.Frame

	scaler      *astiav.SoftwareScaleContext
	scaledFrame *astiav.Frame
	outGeometry Geometry
	outPixFmt   astiav.PixelFormat

	resampler      *astiav.SoftwareResampleContext
	resampledFrame *astiav.Frame
	outSampleRate  int
	outChannels    int

	pkt *astiav.Packet
}

// Options carries the output geometry/rate every Source scales and
// resamples into, regardless of the input container's own format.
// Consumers never see raw input formats.
type Options struct {
	Geometry    Geometry
	SampleRate  int
	Channels    int
	OpenTimeout time.Duration
	Cancel      *events.Cancel
}

// Open opens descriptor in the given mode, applying NETWORK's low-delay
// hints and cancellation hook when mode is Network. It fails with a
// KindOpenTimeout or KindConnect *Error within opts.OpenTimeout even if the
// remote never responds, because the interrupt callback below polls
// opts.Cancel and the demuxer-level stimeout option bounds blocking reads.
func Open(descriptor string, mode Mode, opts Options) (*Source, error) {
	s := &Source{
		mode:             mode,
		url:              descriptor,
		cancel:           opts.Cancel,
		videoStreamIndex: -1,
		audioStreamIndex: -1,
		outGeometry:      opts.Geometry,
		outPixFmt:        astiav.PixelFormatYuv420P,
		outSampleRate:    opts.SampleRate,
		outChannels:      opts.Channels,
	}

	s.fmtCtx = astiav.AllocFormatContext()
	if s.fmtCtx == nil {
		return nil, connectErr("allocating format context", nil)
	}

	deadline := time.Now().Add(opts.OpenTimeout)
	opening := true
	s.fmtCtx.SetInterruptCallback(func() int {
		if s.cancel != nil && s.cancel.Requested() {
			return 1
		}
		if mode == Network && opening && opts.OpenTimeout > 0 && time.Now().After(deadline) {
			return 1
		}
		if mode == Network && !s.readDeadline.IsZero() && time.Now().After(s.readDeadline) {
			s.timedOut = true
			return 1
		}
		return 0
	})

	dict := astiav.NewDictionary()
	defer dict.Free()
	if mode == Network {
		for k, v := range networkDictOptions(opts.OpenTimeout) {
			_ = dict.Set(k, v, 0)
		}
	}

	if err := s.fmtCtx.OpenInput(descriptor, nil, dict); err != nil {
		s.fmtCtx.Free()
		if mode == Network && time.Now().After(deadline) {
			return nil, openTimeoutErr("open timed out", err)
		}
		return nil, connectErr("opening input", err)
	}

	if err := s.fmtCtx.FindStreamInfo(nil); err != nil {
		s.fmtCtx.CloseInput()
		return nil, connectErr("finding stream info", err)
	}
	// The open deadline no longer applies once the input is open; from
	// here on only readDeadline bounds blocking reads.
	opening = false

	for i, stream := range s.fmtCtx.Streams() {
		params := stream.CodecParameters()
		switch params.MediaType() {
		case astiav.MediaTypeVideo:
			if s.videoStreamIndex != -1 {
				continue
			}
			ctx, err := openCodecContext(params)
			if err != nil {
				s.Close()
				return nil, connectErr("opening video decoder", err)
			}
			s.videoStreamIndex = i
			s.videoCodecCtx = ctx
		case astiav.MediaTypeAudio:
			if s.audioStreamIndex != -1 {
				continue
			}
			ctx, err := openCodecContext(params)
			if err != nil {
				s.Close()
				return nil, connectErr("opening audio decoder", err)
			}
			s.audioStreamIndex = i
			s.audioCodecCtx = ctx
		}
	}

	if s.videoStreamIndex == -1 && s.audioStreamIndex == -1 {
		s.Close()
		return nil, connectErr("no decodable video or audio stream", nil)
	}

	s.pkt = astiav.AllocPacket()
	s.decFrame = astiav.AllocFrame()

	return s, nil
}

func openCodecContext(params *astiav.CodecParameters) (*astiav.CodecContext, error) {
	decoder := astiav.FindDecoder(params.CodecID())
	if decoder == nil {
		return nil, fmt.Errorf("no decoder for codec id %v", params.CodecID())
	}
	ctx := astiav.AllocCodecContext(decoder)
	if ctx == nil {
		return nil, fmt.Errorf("allocating codec context")
	}
	if err := params.ToCodecContext(ctx); err != nil {
		ctx.Free()
		return nil, fmt.Errorf("copying codec parameters: %w", err)
	}
	ctx.SetThreadCount(1)
	if err := ctx.Open(decoder, nil); err != nil {
		ctx.Free()
		return nil, fmt.Errorf("opening decoder: %w", err)
	}
	return ctx, nil
}

// packetKind classifies a read packet for the caller's dispatch.
type packetKind int

const (
	packetVideo packetKind = iota
	packetAudio
	packetOther
)

// ExtendReadDeadline pushes the read deadline out by d from now. A NETWORK
// mode Source whose blocking ReadFrame call runs past this deadline has
// the interrupt callback abort it, and the resulting ReadOne error carries
// KindReadTimeout. File mode sources ignore this: the fallback source is
// never expected to stall.
func (s *Source) ExtendReadDeadline(d time.Duration) {
	if s.mode != Network {
		return
	}
	s.readDeadline = time.Now().Add(d)
}

// ReadOne blocks for the next demuxed packet, decodes it, scales/resamples
// it to the output geometry/rate, and returns exactly one of a VideoFrame
// or AudioSamples. It returns ErrEndOfStream when the source is exhausted.
func (s *Source) ReadOne() (*VideoFrame, *AudioSamples, error) {
	for {
		if s.cancel != nil && s.cancel.Requested() {
			return nil, nil, readErr("cancelled", nil)
		}

		if err := s.fmtCtx.ReadFrame(s.pkt); err != nil {
			if err == astiav.ErrEof {
				return nil, nil, ErrEndOfStream
			}
			if s.timedOut {
				s.timedOut = false
				return nil, nil, readTimeoutErr("read stalled past timeout", err)
			}
			return nil, nil, readErr("reading packet", err)
		}

		kind, ctx := s.classify(s.pkt.StreamIndex())
		if kind == packetOther {
			s.pkt.Unref()
			continue
		}

		if err := ctx.SendPacket(s.pkt); err != nil {
			s.pkt.Unref()
			return nil, nil, decodeErr("sending packet to decoder", err)
		}
		s.pkt.Unref()

		switch kind {
		case packetVideo:
			frame, err := s.receiveVideoFrame()
			if err != nil {
				return nil, nil, err
			}
			if frame == nil {
				continue
			}
			return frame, nil, nil
		case packetAudio:
			samples, err := s.receiveAudioFrame()
			if err != nil {
				return nil, nil, err
			}
			if samples == nil {
				continue
			}
			return nil, samples, nil
		}
	}
}

func (s *Source) classify(streamIndex int) (packetKind, *astiav.CodecContext) {
	switch streamIndex {
	case s.videoStreamIndex:
		return packetVideo, s.videoCodecCtx
	case s.audioStreamIndex:
		return packetAudio, s.audioCodecCtx
	default:
		return packetOther, nil
	}
}

func (s *Source) receiveVideoFrame() (*VideoFrame, error) {
	if err := s.videoCodecCtx.ReceiveFrame(s.decFrame); err != nil {
		if err == astiav.ErrEagain || err == astiav.ErrEof {
			return nil, nil
		}
		return nil, decodeErr("receiving video frame", err)
	}
	defer s.decFrame.Unref()

	if err := s.ensureScaler(s.decFrame); err != nil {
		return nil, decodeErr("configuring scaler", err)
	}
	if err := s.scaler.ScaleFrame(s.decFrame, s.scaledFrame); err != nil {
		return nil, decodeErr("scaling frame", err)
	}

	vf := VideoFrame{
		Geometry: s.outGeometry,
		Planes: [][]byte{
			append([]byte(nil), s.scaledFrame.Data().Bytes(0)...),
			append([]byte(nil), s.scaledFrame.Data().Bytes(1)...),
			append([]byte(nil), s.scaledFrame.Data().Bytes(2)...),
		},
		Linesize: []int{
			s.scaledFrame.Linesize(0),
			s.scaledFrame.Linesize(1),
			s.scaledFrame.Linesize(2),
		},
		PixFmtName: "yuv420p",
	}
	return &vf, nil
}

func (s *Source) ensureScaler(src *astiav.Frame) error {
	if s.scaler != nil {
		return nil
	}
	scaler, err := astiav.CreateSoftwareScaleContext(
		src.Width(), src.Height(), src.PixelFormat(),
		s.outGeometry.Width, s.outGeometry.Height, s.outPixFmt,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return err
	}
	dst := astiav.AllocFrame()
	dst.SetWidth(s.outGeometry.Width)
	dst.SetHeight(s.outGeometry.Height)
	dst.SetPixelFormat(s.outPixFmt)
	if err := dst.AllocBuffer(1); err != nil {
		scaler.Free()
		dst.Free()
		return err
	}
	s.scaler = scaler
	s.scaledFrame = dst
	return nil
}

func (s *Source) receiveAudioFrame() (*AudioSamples, error) {
	if err := s.audioCodecCtx.ReceiveFrame(s.decFrame); err != nil {
		if err == astiav.ErrEagain || err == astiav.ErrEof {
			return nil, nil
		}
		return nil, decodeErr("receiving audio frame", err)
	}
	defer s.decFrame.Unref()

	if err := s.ensureResampler(s.decFrame); err != nil {
		return nil, decodeErr("configuring resampler", err)
	}

	s.resampledFrame.SetNbSamples(s.decFrame.NbSamples())
	if err := s.resampler.ConvertFrame(s.decFrame, s.resampledFrame); err != nil {
		return nil, decodeErr("resampling frame", err)
	}

	n := s.resampledFrame.NbSamples() * s.outChannels
	raw := s.resampledFrame.Data().Bytes(0)
	samples := make([]float32, n)
	if err := decodeFloat32LE(raw, samples); err != nil {
		return nil, decodeErr("decoding resampled PCM", err)
	}

	return &AudioSamples{Interleaved: samples, Channels: s.outChannels, SampleRate: s.outSampleRate}, nil
}

func (s *Source) ensureResampler(src *astiav.Frame) error {
	if s.resampler != nil {
		return nil
	}
	swr := astiav.AllocSoftwareResampleContext()
	if swr == nil {
		return fmt.Errorf("allocating resample context")
	}
	dst := astiav.AllocFrame()
	dst.SetSampleFormat(astiav.SampleFormatFlt)
	dst.SetSampleRate(s.outSampleRate)
	dst.SetChannelLayout(astiav.ChannelLayoutStereo)
	dst.SetNbSamples(src.NbSamples())
	if err := dst.AllocBuffer(0); err != nil {
		swr.Free()
		dst.Free()
		return err
	}
	s.resampler = swr
	s.resampledFrame = dst
	return nil
}

// LoopReset seeks the source back to the start and flushes decoder state,
// used by the fallback decode pump on EndOfStream.
func (s *Source) LoopReset() error {
	if err := s.fmtCtx.SeekFrame(-1, 0, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
		return readErr("seeking to start", err)
	}
	if s.videoCodecCtx != nil {
		s.videoCodecCtx.FlushBuffers()
	}
	if s.audioCodecCtx != nil {
		s.audioCodecCtx.FlushBuffers()
	}
	return nil
}

// Close releases every astiav resource this Source holds. Safe to call
// more than once.
func (s *Source) Close() {
	if s.resampledFrame != nil {
		s.resampledFrame.Free()
		s.resampledFrame = nil
	}
	if s.resampler != nil {
		s.resampler.Free()
		s.resampler = nil
	}
	if s.scaledFrame != nil {
		s.scaledFrame.Free()
		s.scaledFrame = nil
	}
	if s.scaler != nil {
		s.scaler.Free()
		s.scaler = nil
	}
	if s.decFrame != nil {
		s.decFrame.Free()
		s.decFrame = nil
	}
	if s.pkt != nil {
		s.pkt.Free()
		s.pkt = nil
	}
	if s.videoCodecCtx != nil {
		s.videoCodecCtx.Free()
		s.videoCodecCtx = nil
	}
	if s.audioCodecCtx != nil {
		s.audioCodecCtx.Free()
		s.audioCodecCtx = nil
	}
	if s.fmtCtx != nil {
		s.fmtCtx.CloseInput()
		s.fmtCtx.Free()
		s.fmtCtx = nil
	}
}
