// Package mediaio is the uniform façade over both the primary and
// fallback media sources. A single Source implementation backs both; the
// only difference between them is the Mode passed to Open, which selects
// network-hardened or file-normal options.
package mediaio

// Mode selects the option set Open applies when opening a source.
type Mode int

const (
	// File mode is used for the local looping fallback source: normal
	// demuxer defaults, no read timeout, seekable.
	File Mode = iota
	// Network mode is used for the live primary source: low-delay,
	// nonbuffering hints, a read/open timeout, and a cancellation hook.
	Network
)

func (m Mode) String() string {
	if m == Network {
		return "network"
	}
	return "file"
}

// Geometry is the fixed output frame size shared by every VideoFrame this
// process produces.
type Geometry struct {
	Width  int
	Height int
}

// VideoFrame is a raw planar image at the output geometry and pixel
// format, produced by the media adapter and consumed by the compositor.
// It carries no timestamp: the compositor assigns output PTS.
type VideoFrame struct {
	Geometry Geometry
	// Planes holds one byte slice per plane in the output pixel format
	// (YUV420P: Y, U, V). Ownership: the caller of ReadOne owns the
	// backing storage, since ReadOne copies every plane out of the scaler's
	// frame (see Source.receiveVideoFrame); handoff.Buffer.PublishVideo
	// stores those slices as they are, without copying again.
	Planes     [][]byte
	Linesize   []int
	PixFmtName string
}

// Clone returns a deep copy of f. The handoff buffer's tail-drop cell does
// not use it: frames returned by ReadOne already own their planes.
func (f VideoFrame) Clone() VideoFrame {
	planes := make([][]byte, len(f.Planes))
	for i, p := range f.Planes {
		cp := make([]byte, len(p))
		copy(cp, p)
		planes[i] = cp
	}
	linesize := make([]int, len(f.Linesize))
	copy(linesize, f.Linesize)
	return VideoFrame{Geometry: f.Geometry, Planes: planes, Linesize: linesize, PixFmtName: f.PixFmtName}
}

// AudioSamples is a variable-length block of interleaved float samples at the
// output sample rate and channel count. The compositor slices these into
// fixed-size encoder frames; the media adapter never assigns PTS.
type AudioSamples struct {
	// Interleaved holds one float32 per sample per channel, interleaved
	// (L,R,L,R,...), which is what internal/encode and internal/handoff
	// operate on — interleaving is done once here so nothing downstream
	// needs to know the source's original channel layout.
	Interleaved []float32
	Channels    int
	SampleRate  int
}

// NumFrames returns the number of per-channel sample frames represented.
func (a AudioSamples) NumFrames() int {
	if a.Channels == 0 {
		return 0
	}
	return len(a.Interleaved) / a.Channels
}
