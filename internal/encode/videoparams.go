package encode

import "bytes"

// H.264 NAL unit type constants (low 5 bits of the NAL header byte),
// trimmed to what keyframe parameter-set handling needs: this module
// always encodes the single fixed output codec, so there's no runtime
// codec switching and no need for the H.265/AC3/Opus handling a
// general-purpose relay would carry.
const (
	h264NALTypeIDR = 5
	h264NALTypeSPS = 7
	h264NALTypePPS = 8
)

// paramHelper caches the most recent SPS/PPS NAL units seen on the encoded
// video stream and prepends them to every keyframe access unit, so a
// downstream decoder that tunes in mid-stream (or a muxer reader that only
// buffers from the last keyframe) always has the parameter sets it needs.
type paramHelper struct {
	sps []byte
	pps []byte
}

func newParamHelper() *paramHelper {
	return &paramHelper{}
}

// Observe scans nalus for SPS/PPS and caches the latest copies.
func (h *paramHelper) Observe(nalus [][]byte) {
	for _, nal := range nalus {
		if len(nal) == 0 {
			continue
		}
		switch nal[0] & 0x1F {
		case h264NALTypeSPS:
			h.sps = append([]byte(nil), nal...)
		case h264NALTypePPS:
			h.pps = append([]byte(nil), nal...)
		}
	}
}

// isKeyframe reports whether nalus contains an IDR slice.
func isKeyframe(nalus [][]byte) bool {
	for _, nal := range nalus {
		if len(nal) == 0 {
			continue
		}
		if nal[0]&0x1F == h264NALTypeIDR {
			return true
		}
	}
	return false
}

// hasParams reports whether nalus already carries its own SPS/PPS.
func hasParams(nalus [][]byte) bool {
	sawSPS, sawPPS := false, false
	for _, nal := range nalus {
		if len(nal) == 0 {
			continue
		}
		switch nal[0] & 0x1F {
		case h264NALTypeSPS:
			sawSPS = true
		case h264NALTypePPS:
			sawPPS = true
		}
	}
	return sawSPS && sawPPS
}

// PrependToKeyframe inserts the cached SPS/PPS ahead of a keyframe access
// unit's NALs when it doesn't already carry its own, observing any
// parameter sets already present in nalus along the way.
func (h *paramHelper) PrependToKeyframe(nalus [][]byte) [][]byte {
	h.Observe(nalus)

	if !isKeyframe(nalus) || hasParams(nalus) {
		return nalus
	}
	if h.sps == nil || h.pps == nil {
		return nalus
	}

	out := make([][]byte, 0, len(nalus)+2)
	out = append(out, h.sps, h.pps)
	out = append(out, nalus...)
	return out
}

// splitAnnexB splits a single Annex-B byte stream (NALs separated by
// 0x000001 or 0x00000001 start codes) into individual NAL units.
func splitAnnexB(data []byte) [][]byte {
	var nalus [][]byte
	start := -1
	i := 0
	for i < len(data) {
		if isStartCode(data[i:]) {
			if start >= 0 {
				nalus = append(nalus, trimTrailingZero(data[start:i]))
			}
			i += startCodeLen(data[i:])
			start = i
			continue
		}
		i++
	}
	if start >= 0 && start < len(data) {
		nalus = append(nalus, trimTrailingZero(data[start:]))
	}
	return nalus
}

func isStartCode(b []byte) bool {
	return bytes.HasPrefix(b, []byte{0, 0, 1}) || bytes.HasPrefix(b, []byte{0, 0, 0, 1})
}

func startCodeLen(b []byte) int {
	if bytes.HasPrefix(b, []byte{0, 0, 0, 1}) {
		return 4
	}
	return 3
}

func trimTrailingZero(nal []byte) []byte {
	for len(nal) > 0 && nal[len(nal)-1] == 0 {
		nal = nal[:len(nal)-1]
	}
	return nal
}
